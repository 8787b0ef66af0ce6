// Package ota provides shell commands of firmware updates.
package ota

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/robofw/pkg/cli/sh"
	"github.com/robotalks/robofw/pkg/ota/msgs"
	"github.com/robotalks/robofw/pkg/ota/push"
	"github.com/robotalks/robofw/pkg/target/gcs"
)

var (
	// PushCmd pushes a firmware image.
	PushCmd = ishell.Cmd{
		Name:    "ota.push",
		Aliases: []string{"push"},
		Help:    "FILE|gs://BUCKET/OBJECT [CHUNK-SIZE]",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("FILE required"))
				return
			}
			s := sh.ShellFrom(c)
			p := push.New(s.Loop.Conn)
			if len(c.Args) > 1 {
				val, err := strconv.Atoi(c.Args[1])
				if err != nil || val <= 0 {
					c.Err(fmt.Errorf("Invalid CHUNK-SIZE: %q", c.Args[1]))
					return
				}
				p.ChunkSize = val
			}
			rd, size, err := OpenImage(s.Loop.Ctx, c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			defer rd.Close()

			if s.Interactive {
				bar := c.ProgressBar()
				bar.Start()
				p.Progress = func(sent, total int64) {
					bar.Progress(int(sent * 100 / total))
					bar.Suffix(fmt.Sprintf(" %d/%d", sent, total))
				}
				defer bar.Stop()
			}
			if err := p.Push(s.Loop.Ctx, rd, size); err != nil {
				c.Err(err)
				return
			}
			c.Printf("pushed %d bytes\n", size)
		}),
	}

	// StatusCmd queries the update status.
	StatusCmd = ishell.Cmd{
		Name:    "ota.status",
		Aliases: []string{"ost"},
		Help:    "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			sh.DoCommand(c, &msgs.UpdateStatusQuery{})
		}),
	}

	// AbortCmd aborts the update in progress.
	AbortCmd = ishell.Cmd{
		Name:    "ota.abort",
		Aliases: []string{"oab"},
		Help:    "[REASON]",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			sh.DoCommand(c, &msgs.UpdateAbort{Reason: strings.Join(c.Args, " ")})
		}),
	}
)

// OpenImage opens a local file or a gs:// object with its size.
func OpenImage(ctx context.Context, name string) (io.ReadCloser, int64, error) {
	if strings.HasPrefix(name, "gs://") {
		loc, err := gcs.ParseURL(name)
		if err != nil {
			return nil, 0, err
		}
		client, err := gcs.NewClient(ctx, os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
		if err != nil {
			return nil, 0, err
		}
		rd, size, err := gcs.OpenReader(ctx, client, loc)
		if err != nil {
			client.Close()
			return nil, 0, err
		}
		return &closeBoth{ReadCloser: rd, client: client}, size, nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

type closeBoth struct {
	io.ReadCloser
	client io.Closer
}

func (c *closeBoth) Close() error {
	err := c.ReadCloser.Close()
	if cerr := c.client.Close(); err == nil {
		err = cerr
	}
	return err
}

func init() {
	sh.AddCmds(
		&PushCmd,
		&StatusCmd,
		&AbortCmd,
	)
}
