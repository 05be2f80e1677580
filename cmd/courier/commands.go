package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/bft-labs/courier/internal/cliconfig"
	"github.com/bft-labs/courier/internal/httpapi"
)

const clientTimeout = 30 * time.Second

// clientCmd builds a subcommand that talks to a running daemon.
func clientCmd(cfg *cliconfig.Config, cfgPath *string, use, short string, args cobra.PositionalArgs,
	fn func(ctx context.Context, c *httpapi.Client, args []string) (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := loadConfig(cmd, cfg, *cfgPath); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), clientTimeout)
			defer cancel()

			client := httpapi.NewClient(cfg.ListenAddr, &http.Client{Timeout: clientTimeout})
			out, err := fn(ctx, client, args)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func printJSON(w io.Writer, v any) error {
	if v == nil {
		return nil
	}
	b, err := gojson.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func newStatusCmd(cfg *cliconfig.Config, cfgPath *string) *cobra.Command {
	return clientCmd(cfg, cfgPath, "status", "Show daemon connectivity and queue status", cobra.NoArgs,
		func(ctx context.Context, c *httpapi.Client, _ []string) (any, error) {
			return c.Status(ctx)
		})
}

func newQueueCmd(cfg *cliconfig.Config, cfgPath *string) *cobra.Command {
	return clientCmd(cfg, cfgPath, "queue", "List pending operations", cobra.NoArgs,
		func(ctx context.Context, c *httpapi.Client, _ []string) (any, error) {
			return c.Queue(ctx)
		})
}

func newEnqueueCmd(cfg *cliconfig.Config, cfgPath *string) *cobra.Command {
	return clientCmd(cfg, cfgPath, "enqueue <kind> [json|-]", "Queue an operation (payload from argument or stdin)",
		cobra.RangeArgs(1, 2),
		func(ctx context.Context, c *httpapi.Client, args []string) (any, error) {
			data, err := readPayload(args, os.Stdin)
			if err != nil {
				return nil, err
			}
			return c.Enqueue(ctx, args[0], data)
		})
}

// readPayload returns the optional JSON payload in args[1]; "-" reads stdin.
func readPayload(args []string, stdin io.Reader) (json.RawMessage, error) {
	if len(args) < 2 {
		return nil, nil
	}
	raw := []byte(args[1])
	if args[1] == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		raw = b
	}
	if !gojson.Valid(raw) {
		return nil, fmt.Errorf("payload is not valid JSON")
	}
	return json.RawMessage(raw), nil
}

func newSyncCmd(cfg *cliconfig.Config, cfgPath *string) *cobra.Command {
	return clientCmd(cfg, cfgPath, "sync", "Replay the queue now", cobra.NoArgs,
		func(ctx context.Context, c *httpapi.Client, _ []string) (any, error) {
			return c.Sync(ctx)
		})
}

func newSweepCmd(cfg *cliconfig.Config, cfgPath *string) *cobra.Command {
	return clientCmd(cfg, cfgPath, "sweep", "Evict expired cache entries and operations", cobra.NoArgs,
		func(ctx context.Context, c *httpapi.Client, _ []string) (any, error) {
			return c.Sweep(ctx)
		})
}

func newCancelCmd(cfg *cliconfig.Config, cfgPath *string) *cobra.Command {
	return clientCmd(cfg, cfgPath, "cancel <id>", "Remove a pending operation", cobra.ExactArgs(1),
		func(ctx context.Context, c *httpapi.Client, args []string) (any, error) {
			return nil, c.Cancel(ctx, args[0])
		})
}

func newOnlineCmd(cfg *cliconfig.Config, cfgPath *string) *cobra.Command {
	return clientCmd(cfg, cfgPath, "online <true|false>", "Override the daemon's connectivity state", cobra.ExactArgs(1),
		func(ctx context.Context, c *httpapi.Client, args []string) (any, error) {
			online, err := strconv.ParseBool(args[0])
			if err != nil {
				return nil, fmt.Errorf("invalid online value %q: %w", args[0], err)
			}
			return c.SetOnline(ctx, online)
		})
}
