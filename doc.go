/*
Package dbx is a thin client for a subset of the Dropbox HTTP API v2: token
validation, file and folder download, shared-link download, single-shot
upload, chunked upload-session upload with batch commit, and shared-link
creation/lookup.

# Usage

Construct a Client with a bearer token, then call endpoint methods directly:

	client := dbx.NewClient(os.Getenv("DBX_ACCESS_TOKEN"))

	if err := client.CheckUser(ctx); err != nil {
	    // token is invalid or the service is unreachable
	}

	f, _ := os.Create("report.pdf")
	defer f.Close()
	meta, err := client.Download(ctx, "/reports/report.pdf", f)

For uploading many files as one batch, use BatchUploader. Each Start streams
one local file into an upload session and queues a commit; Finish submits all
queued commits as a single finish-batch call and waits for the server-side
job to complete:

	uploader := dbx.NewBatchUploader(client)

	for _, name := range names {
	    if _, err := uploader.Start(ctx, name, "/backup/"+name); err != nil {
	        // a failed Start never queues a commit
	    }
	}

	metas, err := uploader.Finish(ctx)

Start calls may be issued concurrently, one goroutine per file. A Start that
begins after Finish has taken its snapshot lands in the next batch.

# Authentication

Every request carries the token given to NewClient verbatim as a bearer
token. Obtaining and refreshing tokens is the caller's concern; the client
performs no OAuth flow. A 401 response surfaces as *AuthError.

# Retry

The only retry performed is the one the API mandates: on a 429 response the
client honors the Retry-After header (default one second when absent) up to
a configurable attempt cap. Everything else is surfaced to the caller on
first failure.

# Errors

Failures are distinguishable with errors.As: *TransportError for network/IO
failure, *AuthError for rejected credentials, *APIError for any other
service-reported error (with the service's error payload attached),
*BatchError for a finish-batch job that reported per-entry failures, and
*PollTimeoutError when the poll budget is exhausted before the job settles.
*/
package dbx
