// Package dbxtest provides an in-process double of the Dropbox HTTP API for
// exercising dbx.Client and dbx.BatchUploader against real HTTP traffic.
//
// The server keeps uploaded files in memory and exposes knobs for the
// awkward-to-reach service behaviors: async batch commits, jobs that stay
// in progress for a configurable number of polls, per-path commit failures,
// and rate-limited responses.
package dbxtest

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/batchbox/dbx"
	"github.com/batchbox/dbx/options"
)

// Token is the bearer token the server accepts.
const Token = "dbxtest-token"

type session struct {
	buf    bytes.Buffer
	closed bool
}

type job struct {
	remaining int
	entries   []*dbx.UploadSessionFinishBatchResultEntry
}

// Server is a fake Dropbox service backed by httptest. Configure the public
// fields before issuing the requests they should affect.
type Server struct {
	// AsyncFinish makes finish_batch launch an async job instead of
	// returning results inline.
	AsyncFinish bool

	// PollsUntilComplete is how many times an async job reports in_progress
	// before completing. Negative means the job never completes.
	PollsUntilComplete int

	// FailCommits maps dropbox paths to the failure reason tag their batch
	// commit entry should carry.
	FailCommits map[string]string

	// RateLimitNext makes the server answer the next n requests with 429
	// and Retry-After: 0.
	RateLimitNext int

	ts *httptest.Server

	mu       sync.Mutex
	requests int
	files    map[string][]byte
	sessions map[string]*session
	links    map[string]string // dropbox path -> shared link url
	jobs     map[string]*job
}

// NewServer starts a fake Dropbox service. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		files:    make(map[string][]byte),
		sessions: make(map[string]*session),
		links:    make(map[string]string),
		jobs:     make(map[string]*job),
	}

	r := mux.NewRouter()
	r.Use(s.intercept)
	r.HandleFunc("/2/check/user", s.checkUser).Methods(http.MethodPost)
	r.HandleFunc("/2/files/download", s.download).Methods(http.MethodPost)
	r.HandleFunc("/2/files/download_zip", s.downloadZip).Methods(http.MethodPost)
	r.HandleFunc("/2/files/upload", s.upload).Methods(http.MethodPost)
	r.HandleFunc("/2/files/upload_session/start", s.sessionStart).Methods(http.MethodPost)
	r.HandleFunc("/2/files/upload_session/append_v2", s.sessionAppend).Methods(http.MethodPost)
	r.HandleFunc("/2/files/upload_session/finish_batch", s.finishBatch).Methods(http.MethodPost)
	r.HandleFunc("/2/files/upload_session/finish_batch/check", s.finishBatchCheck).Methods(http.MethodPost)
	r.HandleFunc("/2/sharing/create_shared_link_with_settings", s.createSharedLink).Methods(http.MethodPost)
	r.HandleFunc("/2/sharing/get_shared_link_metadata", s.sharedLinkMetadata).Methods(http.MethodPost)
	r.HandleFunc("/2/sharing/get_shared_link_file", s.sharedLinkFile).Methods(http.MethodPost)

	s.ts = httptest.NewServer(r)
	return s
}

// Close shuts the underlying test server down.
func (s *Server) Close() {
	s.ts.Close()
}

// URL is the server's base url, suitable for dbx.WithHosts.
func (s *Server) URL() string {
	return s.ts.URL
}

// Client returns a dbx.Client pointed at this server.
func (s *Server) Client(opts ...options.Option[dbx.Client]) *dbx.Client {
	all := append([]options.Option[dbx.Client]{dbx.WithHosts(s.ts.URL, s.ts.URL)}, opts...)
	return dbx.NewClient(Token, all...)
}

// Requests reports how many requests the server has received, rate-limited
// ones included.
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// SetFile seeds a file's content, as if it had been uploaded earlier.
func (s *Server) SetFile(dropboxPath string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[dropboxPath] = append([]byte(nil), data...)
}

// File returns the stored content of a path, and whether it exists.
func (s *Server) File(dropboxPath string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[dropboxPath]
	return data, ok
}

// intercept counts requests, serves configured 429s, and checks the bearer
// token.
func (s *Server) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests++
		limited := s.RateLimitNext > 0
		if limited {
			s.RateLimitNext--
		}
		s.mu.Unlock()

		if limited {
			w.Header().Set("Retry-After", "0")
			writeAPIError(w, http.StatusTooManyRequests, "too_many_requests/..", "too_many_requests")
			return
		}

		if r.Header.Get("Authorization") != "Bearer "+Token {
			writeAPIError(w, http.StatusUnauthorized, "invalid_access_token/..", "invalid_access_token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkUser(w http.ResponseWriter, r *http.Request) {
	var arg struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&arg); err != nil {
		writeAPIError(w, http.StatusBadRequest, "malformed_request/..", "malformed_request")
		return
	}
	writeJSON(w, map[string]string{"result": arg.Query})
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	var arg struct {
		Path string `json:"path"`
	}
	if !decodeHeaderArg(w, r, &arg) {
		return
	}

	s.mu.Lock()
	data, ok := s.files[arg.Path]
	s.mu.Unlock()
	if !ok {
		writeAPIError(w, http.StatusConflict, "path/not_found/..", "path")
		return
	}

	setResultHeader(w, fileMetadata(arg.Path, len(data)))
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}

func (s *Server) downloadZip(w http.ResponseWriter, r *http.Request) {
	var arg struct {
		Path string `json:"path"`
	}
	if !decodeHeaderArg(w, r, &arg) {
		return
	}

	prefix := strings.ToLower(arg.Path) + "/"
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	s.mu.Lock()
	found := false
	for p, data := range s.files {
		if strings.HasPrefix(strings.ToLower(p), prefix) {
			found = true
			f, err := zw.Create(strings.TrimPrefix(p, "/"))
			if err == nil {
				_, _ = f.Write(data)
			}
		}
	}
	s.mu.Unlock()
	_ = zw.Close()

	if !found {
		writeAPIError(w, http.StatusConflict, "path/not_found/..", "path")
		return
	}

	setResultHeader(w, map[string]any{"metadata": map[string]any{
		"name":         path.Base(arg.Path),
		"path_lower":   strings.ToLower(arg.Path),
		"path_display": arg.Path,
	}})
	w.Header().Set("Content-Type", "application/zip")
	_, _ = buf.WriteTo(w)
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	var arg struct {
		Path string `json:"path"`
	}
	if !decodeHeaderArg(w, r, &arg) {
		return
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r.Body); err != nil {
		writeAPIError(w, http.StatusBadRequest, "malformed_request/..", "malformed_request")
		return
	}

	s.mu.Lock()
	s.files[arg.Path] = buf.Bytes()
	s.mu.Unlock()

	writeJSON(w, fileMetadata(arg.Path, buf.Len()))
}

func (s *Server) sessionStart(w http.ResponseWriter, r *http.Request) {
	var arg struct {
		Close bool `json:"close"`
	}
	if !decodeHeaderArg(w, r, &arg) {
		return
	}

	sess := &session{closed: arg.Close}
	if _, err := sess.buf.ReadFrom(r.Body); err != nil {
		writeAPIError(w, http.StatusBadRequest, "malformed_request/..", "malformed_request")
		return
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	writeJSON(w, map[string]string{"session_id": id})
}

func (s *Server) sessionAppend(w http.ResponseWriter, r *http.Request) {
	var arg struct {
		Cursor struct {
			SessionID string `json:"session_id"`
			Offset    uint64 `json:"offset"`
		} `json:"cursor"`
		Close bool `json:"close"`
	}
	if !decodeHeaderArg(w, r, &arg) {
		return
	}

	s.mu.Lock()
	sess, ok := s.sessions[arg.Cursor.SessionID]
	s.mu.Unlock()
	if !ok {
		writeAPIError(w, http.StatusConflict, "not_found/..", "not_found")
		return
	}
	if sess.closed {
		writeAPIError(w, http.StatusConflict, "closed/..", "closed")
		return
	}
	if uint64(sess.buf.Len()) != arg.Cursor.Offset {
		writeAPIError(w, http.StatusConflict, "incorrect_offset/..", "incorrect_offset")
		return
	}

	if _, err := sess.buf.ReadFrom(r.Body); err != nil {
		writeAPIError(w, http.StatusBadRequest, "malformed_request/..", "malformed_request")
		return
	}
	sess.closed = arg.Close

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("{}"))
}

func (s *Server) finishBatch(w http.ResponseWriter, r *http.Request) {
	var arg dbx.UploadSessionFinishBatchArg
	if err := json.NewDecoder(r.Body).Decode(&arg); err != nil {
		writeAPIError(w, http.StatusBadRequest, "malformed_request/..", "malformed_request")
		return
	}

	entries := s.commitEntries(arg.Entries)

	if !s.AsyncFinish {
		writeJSON(w, map[string]any{".tag": "complete", "entries": entries})
		return
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.jobs[id] = &job{remaining: s.PollsUntilComplete, entries: entries}
	s.mu.Unlock()

	writeJSON(w, map[string]any{".tag": "async_job_id", "async_job_id": id})
}

func (s *Server) finishBatchCheck(w http.ResponseWriter, r *http.Request) {
	var arg struct {
		AsyncJobID string `json:"async_job_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&arg); err != nil {
		writeAPIError(w, http.StatusBadRequest, "malformed_request/..", "malformed_request")
		return
	}

	s.mu.Lock()
	j, ok := s.jobs[arg.AsyncJobID]
	inProgress := ok && j.remaining != 0
	if ok && j.remaining > 0 {
		j.remaining--
	}
	s.mu.Unlock()

	if !ok {
		writeAPIError(w, http.StatusConflict, "invalid_async_job_id/..", "invalid_async_job_id")
		return
	}
	if inProgress {
		writeJSON(w, map[string]any{".tag": "in_progress"})
		return
	}
	writeJSON(w, map[string]any{".tag": "complete", "entries": j.entries})
}

// commitEntries materializes a batch's per-entry results, writing committed
// session content into the file store.
func (s *Server) commitEntries(commits []*dbx.UploadSessionFinishArg) []*dbx.UploadSessionFinishBatchResultEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]*dbx.UploadSessionFinishBatchResultEntry, 0, len(commits))
	for _, commit := range commits {
		if tag, bad := s.FailCommits[commit.Commit.Path]; bad {
			entries = append(entries, &dbx.UploadSessionFinishBatchResultEntry{
				Tag: "failure",
				Failure: &dbx.UploadSessionFinishError{
					Tag:  tag,
					Path: &dbx.TaggedTag{Tag: "conflict"},
				},
			})
			continue
		}

		sess, ok := s.sessions[commit.Cursor.SessionID]
		if !ok || uint64(sess.buf.Len()) != commit.Cursor.Offset {
			entries = append(entries, &dbx.UploadSessionFinishBatchResultEntry{
				Tag:     "failure",
				Failure: &dbx.UploadSessionFinishError{Tag: "lookup_failed"},
			})
			continue
		}

		data := sess.buf.Bytes()
		s.files[commit.Commit.Path] = append([]byte(nil), data...)
		delete(s.sessions, commit.Cursor.SessionID)

		entry := &dbx.UploadSessionFinishBatchResultEntry{Tag: "success"}
		entry.Name = path.Base(commit.Commit.Path)
		entry.PathLower = strings.ToLower(commit.Commit.Path)
		entry.PathDisplay = commit.Commit.Path
		entry.Size = uint64(len(data))
		entry.ID = "id:" + uuid.NewString()
		entry.Rev = uuid.NewString()[:12]
		entries = append(entries, entry)
	}
	return entries
}

func (s *Server) createSharedLink(w http.ResponseWriter, r *http.Request) {
	var arg struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&arg); err != nil {
		writeAPIError(w, http.StatusBadRequest, "malformed_request/..", "malformed_request")
		return
	}

	s.mu.Lock()
	data, exists := s.files[arg.Path]
	link, linked := s.links[arg.Path]
	if exists && !linked {
		link = fmt.Sprintf("https://www.dropbox.com/s/%s/%s?dl=0", uuid.NewString()[:15], path.Base(arg.Path))
		s.links[arg.Path] = link
	}
	s.mu.Unlock()

	if !exists {
		writeAPIError(w, http.StatusConflict, "path/not_found/..", "path")
		return
	}
	if linked {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		writeBody(w, map[string]any{
			"error_summary": "shared_link_already_exists/..",
			"error": map[string]any{
				".tag": "shared_link_already_exists",
				"shared_link_already_exists": map[string]any{
					"metadata": sharedLinkMetadata(link, arg.Path, len(data)),
				},
			},
		})
		return
	}

	writeJSON(w, sharedLinkMetadata(link, arg.Path, len(data)))
}

func (s *Server) sharedLinkMetadata(w http.ResponseWriter, r *http.Request) {
	var arg struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&arg); err != nil {
		writeAPIError(w, http.StatusBadRequest, "malformed_request/..", "malformed_request")
		return
	}

	p, data, ok := s.lookupLink(arg.URL)
	if !ok {
		writeAPIError(w, http.StatusConflict, "shared_link_not_found/..", "shared_link_not_found")
		return
	}
	writeJSON(w, sharedLinkMetadata(arg.URL, p, len(data)))
}

func (s *Server) sharedLinkFile(w http.ResponseWriter, r *http.Request) {
	var arg struct {
		URL string `json:"url"`
	}
	if !decodeHeaderArg(w, r, &arg) {
		return
	}

	p, data, ok := s.lookupLink(arg.URL)
	if !ok {
		writeAPIError(w, http.StatusConflict, "shared_link_not_found/..", "shared_link_not_found")
		return
	}

	setResultHeader(w, sharedLinkMetadata(arg.URL, p, len(data)))
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}

func (s *Server) lookupLink(url string) (string, []byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for p, link := range s.links {
		if link == url {
			return p, s.files[p], true
		}
	}
	return "", nil, false
}

func fileMetadata(p string, size int) map[string]any {
	return map[string]any{
		"id":           "id:" + strings.ToLower(path.Base(p)),
		"name":         path.Base(p),
		"path_lower":   strings.ToLower(p),
		"path_display": p,
		"size":         size,
	}
}

func sharedLinkMetadata(url, p string, size int) map[string]any {
	return map[string]any{
		".tag":       "file",
		"url":        url,
		"name":       path.Base(p),
		"path_lower": strings.ToLower(p),
		"size":       size,
	}
}

func decodeHeaderArg(w http.ResponseWriter, r *http.Request, arg any) bool {
	raw := r.Header.Get("Dropbox-API-Arg")
	if err := json.Unmarshal([]byte(raw), arg); err != nil {
		writeAPIError(w, http.StatusBadRequest, "malformed_request/..", "malformed_request")
		return false
	}
	return true
}

func setResultHeader(w http.ResponseWriter, v any) {
	b, _ := json.Marshal(v)
	w.Header().Set("Dropbox-API-Result", string(b))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	writeBody(w, v)
}

func writeBody(w http.ResponseWriter, v any) {
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, summary, tag string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error_summary": summary,
		"error":         map[string]string{".tag": tag},
	})
}
