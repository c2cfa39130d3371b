package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rubiojr/marketsearch/pkg/config"
	"github.com/urfave/cli/v3"
)

// FirehoseCommand creates a CLI command that tails the search firehose of a
// running `marketsearch serve` and writes NDJSON search events to stdout.
//
// Typical usage:
//
//	marketsearch firehose
//	marketsearch firehose --server http://127.0.0.1:8090
//	marketsearch firehose | jq -r '.search.query'
//
// The command reconnects with exponential backoff if the server is not yet
// available or the connection drops, unless --no-retry is set.
func FirehoseCommand() *cli.Command {
	return &cli.Command{
		Name:  "firehose",
		Usage: "Stream completed searches (NDJSON) from a running server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "server",
				Usage: "Server base URL (defaults to http://<listen> from config)",
			},
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Print all message types instead of only search events",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print JSON instead of raw single-line",
			},
			&cli.BoolFlag{
				Name:  "no-retry",
				Usage: "Do not retry on failures; exit on first connection error",
			},
			&cli.DurationFlag{
				Name:  "initial-backoff",
				Usage: "Initial reconnect backoff",
				Value: 1 * time.Second,
			},
			&cli.DurationFlag{
				Name:  "max-backoff",
				Usage: "Maximum reconnect backoff",
				Value: 30 * time.Second,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			server := c.String("server")
			if server == "" {
				cfg, err := config.LoadConfig(c.String("config"))
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				server = "http://" + cfg.Listen
			}
			wsURL, err := firehoseURL(server)
			if err != nil {
				return err
			}

			opts := firehoseTailOptions{
				url:            wsURL,
				includeAll:     c.Bool("all"),
				pretty:         c.Bool("pretty"),
				noRetry:        c.Bool("no-retry"),
				initialBackoff: c.Duration("initial-backoff"),
				maxBackoff:     c.Duration("max-backoff"),
				stdout:         os.Stdout,
				stderr:         os.Stderr,
			}
			return tailFirehose(ctx, opts)
		},
	}
}

// firehoseURL maps a server base URL onto its firehose WebSocket URL.
func firehoseURL(server string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", server, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid server URL %q: unsupported scheme", server)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/firehose/ws"
	return u.String(), nil
}

type firehoseTailOptions struct {
	url            string
	includeAll     bool
	pretty         bool
	noRetry        bool
	initialBackoff time.Duration
	maxBackoff     time.Duration
	stdout         io.Writer
	stderr         io.Writer
}

func tailFirehose(ctx context.Context, opts firehoseTailOptions) error {
	if opts.initialBackoff <= 0 {
		opts.initialBackoff = time.Second
	}
	if opts.maxBackoff < opts.initialBackoff {
		opts.maxBackoff = 30 * time.Second
	}

	_, _ = fmt.Fprintf(opts.stderr, "Firehose: connecting to %s\n", opts.url)
	backoff := opts.initialBackoff

	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, opts.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if opts.noRetry {
				return fmt.Errorf("dial: %w", err)
			}
			_, _ = fmt.Fprintf(opts.stderr, "Firehose: dial failed (%v), retrying in %s\n", err, backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > opts.maxBackoff {
				backoff = opts.maxBackoff
			}
			continue
		}

		_, _ = fmt.Fprintf(opts.stderr, "Firehose: connected (backoff reset)\n")
		backoff = opts.initialBackoff

		if err := streamEvents(ctx, conn, opts); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			if opts.noRetry {
				return err
			}
			_, _ = fmt.Fprintf(opts.stderr, "Firehose: stream error (%v), reconnecting...\n", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(250 * time.Millisecond):
			}
			continue
		}

		if opts.noRetry {
			return nil
		}
		_, _ = fmt.Fprintf(opts.stderr, "Firehose: disconnected, attempting reconnect...\n")
	}
}

func streamEvents(ctx context.Context, conn *websocket.Conn, opts firehoseTailOptions) error {
	defer func() { _ = conn.Close() }()

	// Unblock ReadMessage when the context ends.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}

		line := strings.TrimSpace(string(data))
		if line == "" {
			continue
		}

		if !opts.includeAll {
			var msg struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "search" {
				continue
			}
		}

		if opts.pretty {
			var anyJSON any
			if err := json.Unmarshal(data, &anyJSON); err == nil {
				if b, err := json.MarshalIndent(anyJSON, "", "  "); err == nil {
					line = string(b)
				}
			}
		}
		_, _ = fmt.Fprintln(opts.stdout, line)
	}
}
