// dbxcp copies files to and from Dropbox: local files up through a batched
// upload session, shared links down to local files.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/mitchellh/go-homedir"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"

	"github.com/batchbox/dbx"
	"github.com/batchbox/dbx/utils"
)

const tokenFile = ".dbx_token"

func main() {
	app := cli.NewApp()
	app.Name = "dbxcp"
	app.Usage = "Copies files to and from Dropbox using batched upload sessions"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "token",
			Usage:  "dropbox access token (falls back to ~/" + tokenFile + ")",
			EnvVar: "DBX_ACCESS_TOKEN",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:      "put",
			Usage:     "upload local files into a dropbox folder as one batch",
			ArgsUsage: "FILE [FILE...] DROPBOX_FOLDER",
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:  "link",
					Usage: "print a shared link for each uploaded file",
				},
				cli.IntFlag{
					Name:  "parallel",
					Usage: "number of concurrent uploads",
					Value: 4,
				},
			},
			Action: put,
		},
		{
			Name:      "get",
			Usage:     "download the file behind a shared link",
			ArgsUsage: "SHARED_LINK [LOCAL_FILE]",
			Action:    get,
		},
	}

	if err := app.Run(os.Args); err != nil {
		color.Red("dbxcp: %v", err)
		os.Exit(1)
	}
}

func newClient(c *cli.Context) (*dbx.Client, error) {
	token, err := resolveToken(c.GlobalString("token"))
	if err != nil {
		return nil, err
	}

	client := dbx.NewClient(token, dbx.WithUserAgent("dbxcp"))
	if err := client.CheckUser(context.Background()); err != nil {
		return nil, err
	}
	return client, nil
}

// resolveToken prefers the flag (or env) and falls back to ~/.dbx_token.
func resolveToken(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}

	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(filepath.Join(home, tokenFile))
	if err != nil {
		return "", errors.New("no access token: pass --token, set DBX_ACCESS_TOKEN, or write ~/" + tokenFile)
	}
	return strings.TrimSpace(string(data)), nil
}

func put(c *cli.Context) error {
	args := c.Args()
	if len(args) < 2 {
		return errors.New("put requires at least one local file and a dropbox folder")
	}

	locals := args[:len(args)-1]
	folder := utils.RemoveTrailingSlash(utils.EnsureLeadingSlash(args[len(args)-1]))

	client, err := newClient(c)
	if err != nil {
		return err
	}
	uploader := dbx.NewBatchUploader(client)

	ctx := context.Background()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.Int("parallel"))
	for _, local := range locals {
		local := local
		g.Go(func() error {
			dest := folder + "/" + filepath.Base(local)
			if _, err := uploader.Start(gctx, local, dest); err != nil {
				return fmt.Errorf("%s: %w", local, err)
			}
			fmt.Printf("staged %s -> %s\n", local, dest)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	metas, err := uploader.Finish(ctx)
	if err != nil {
		var batchErr *dbx.BatchError
		if errors.As(err, &batchErr) {
			for _, entry := range batchErr.Failed() {
				color.Red("commit failed: %s", entry.Failure.Tag)
			}
		}
		return err
	}

	for _, meta := range metas {
		color.Green("uploaded %s (%d bytes)", meta.PathDisplay, meta.Size)
		if c.Bool("link") {
			link, err := client.CreateSharedLink(ctx, meta.PathDisplay)
			if err != nil {
				return err
			}
			fmt.Println(link.URL)
		}
	}
	return nil
}

func get(c *cli.Context) error {
	link := c.Args().Get(0)
	if link == "" {
		return errors.New("get requires a shared link")
	}

	local := c.Args().Get(1)
	if local == "" {
		name, err := utils.SharedLinkName(link)
		if err != nil {
			return err
		}
		local = name
	}

	client, err := newClient(c)
	if err != nil {
		return err
	}

	f, err := os.Create(local)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	meta, err := client.DownloadSharedLink(context.Background(), link, f)
	if err != nil {
		return err
	}

	color.Green("downloaded %s -> %s (%d bytes)", meta.Name, local, meta.Size)
	return nil
}
