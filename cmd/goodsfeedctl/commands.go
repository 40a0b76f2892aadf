package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Gunvolt24/goodsfeed/internal/domain"
	"github.com/Gunvolt24/goodsfeed/internal/events"
	"github.com/Gunvolt24/goodsfeed/internal/ports"
	"github.com/Gunvolt24/goodsfeed/pkg/ctxmeta"
)

// rebuildParallelism - сколько партиций перестраивается одновременно.
const rebuildParallelism = 4

type rootOptions struct {
	timeout time.Duration
}

func newRootCmd(open opener) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "goodsfeedctl",
		Short:         "Administrative tool for goods feeds and favorite counters",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "overall command timeout")

	root.AddCommand(
		newReconcileCmd(open, opts),
		newSyncCmd(open, opts),
		newRebuildCmd(open, opts),
		newPageCmd(open, opts),
		newReplayCmd(open, opts),
	)
	return root
}

// withFeed - открыть прикладной слой на время команды.
func withFeed(cmd *cobra.Command, open opener, opts *rootOptions, fn func(ctx context.Context, f feed, log ports.Logger) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = ctxmeta.WithOrigin(ctx, ctxmeta.OriginCLI)
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	f, log, closeFn, err := open(ctx)
	if err != nil {
		return fmt.Errorf("open feed: %w", err)
	}
	defer closeFn()

	return fn(ctx, f, log)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newReconcileCmd(open opener, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run one counter reconciliation pass now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withFeed(cmd, open, opts, func(ctx context.Context, f feed, _ ports.Logger) error {
				report, err := f.TriggerScheduledReconciliation(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
}

func newSyncCmd(open opener, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync <goods-id>...",
		Short: "Force-sync favorite counters of the given goods to the store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return withFeed(cmd, open, opts, func(ctx context.Context, f feed, _ ports.Logger) error {
				out := make(map[int64]domain.SyncOutcome, len(ids))
				for _, id := range ids {
					outcome, err := f.ForceSyncCounter(ctx, id)
					if err != nil {
						return fmt.Errorf("sync goods %d: %w", id, err)
					}
					out[id] = outcome
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
}

func newRebuildCmd(open opener, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild <partition>...",
		Short: "Rebuild ordered indexes (e.g. category:5, owner:7, all-active, user-registry)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parts := make([]domain.Partition, 0, len(args))
			for _, a := range args {
				p, err := domain.ParsePartition(a)
				if err != nil {
					return err
				}
				parts = append(parts, p)
			}
			return withFeed(cmd, open, opts, func(ctx context.Context, f feed, _ ports.Logger) error {
				g, gctx := errgroup.WithContext(ctx)
				g.SetLimit(rebuildParallelism)
				for _, p := range parts {
					g.Go(func() error {
						if err := f.RebuildPartition(gctx, p); err != nil {
							return fmt.Errorf("rebuild %s: %w", p, err)
						}
						return nil
					})
				}
				if err := g.Wait(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rebuilt %d partition(s)\n", len(parts))
				return nil
			})
		},
	}
}

type pageOptions struct {
	cursor int64
	size   int
	pages  int
}

func newPageCmd(open opener, opts *rootOptions) *cobra.Command {
	po := &pageOptions{}
	cmd := &cobra.Command{
		Use:   "page <partition>",
		Short: "Print pages of a partition following next_cursor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := domain.ParsePartition(args[0])
			if err != nil {
				return err
			}
			return withFeed(cmd, open, opts, func(ctx context.Context, f feed, _ ports.Logger) error {
				return printPages(ctx, cmd.OutOrStdout(), f, p, po)
			})
		},
	}
	cmd.Flags().Int64Var(&po.cursor, "cursor", 0, "start cursor (epoch ms); 0 means now")
	cmd.Flags().IntVar(&po.size, "size", 0, "page size; 0 means default")
	cmd.Flags().IntVar(&po.pages, "pages", 1, "how many pages to follow")
	return cmd
}

func printPages(ctx context.Context, w io.Writer, f feed, p domain.Partition, po *pageOptions) error {
	cursor := po.cursor
	for i := 0; i < max(po.pages, 1); i++ {
		var (
			page any
			next *int64
		)
		if p.Kind == domain.KindUserRegistry {
			pg, err := f.UsersPage(ctx, cursor, po.size)
			if err != nil {
				return err
			}
			page, next = pg, pg.NextCursor
		} else {
			pg, err := f.GoodsPage(ctx, p, cursor, po.size)
			if err != nil {
				return err
			}
			page, next = pg, pg.NextCursor
		}
		if err := printJSON(w, page); err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		cursor = *next
	}
	return nil
}

type replayOptions struct {
	format string
}

func newReplayCmd(open opener, opts *rootOptions) *cobra.Command {
	ro := &replayOptions{}
	cmd := &cobra.Command{
		Use:   "replay <file|->",
		Short: "Apply goods events from a JSON/JSONL file (\"-\" reads JSONL from stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format := events.InputFormat(ro.format)
			switch format {
			case events.FormatAuto, events.FormatJSON, events.FormatJSONL:
			default:
				return fmt.Errorf("unknown format %q (want auto|json|jsonl)", ro.format)
			}
			return withFeed(cmd, open, opts, func(ctx context.Context, f feed, log ports.Logger) error {
				h := events.NewHandler(f, log)
				var (
					res events.ReplayResult
					err error
				)
				if args[0] == "-" {
					res, err = events.ReplayJSONLStream(ctx, h, cmd.InOrStdin())
				} else {
					res, err = events.ReplayFile(ctx, h, args[0], format)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "replay: %s\n", res)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&ro.format, "format", string(events.FormatAuto), "input format: auto|json|jsonl")
	return cmd
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("bad goods id %q", a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
