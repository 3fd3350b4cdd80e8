package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/koustreak/pgdescribe/internal/describe"
	"github.com/koustreak/pgdescribe/internal/errs"
	"github.com/koustreak/pgdescribe/internal/filestore/backend"
	"github.com/koustreak/pgdescribe/internal/offline"
	"github.com/koustreak/pgdescribe/internal/session"
)

type describeOptions struct {
	save    bool
	offline bool
	format  string
}

func newDescribeCmd(root *rootOptions) *cobra.Command {
	opts := &describeOptions{}
	cmd := &cobra.Command{
		Use:   "describe [sql]",
		Short: "Describe one statement; reads it from stdin when no argument is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sql, err := readSQL(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			return runDescribe(cmd.Context(), root, opts, sql, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&opts.save, "save", false, "store the result in the offline cache")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "answer from the offline cache without connecting")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "output format: text or json")
	cmd.MarkFlagsMutuallyExclusive("save", "offline")
	return cmd
}

func readSQL(in io.Reader, args []string) (string, error) {
	var sql string
	if len(args) == 1 {
		sql = args[0]
	} else {
		b, err := io.ReadAll(in)
		if err != nil {
			return "", errs.Wrap(errs.ErrKindInvalidInput, "failed to read statement from stdin", err)
		}
		sql = string(b)
	}
	sql = strings.TrimSpace(sql)
	if sql == "" {
		return "", errs.New(errs.ErrKindInvalidInput, "no statement given")
	}
	return sql, nil
}

func runDescribe(ctx context.Context, root *rootOptions, opts *describeOptions, sql string, out io.Writer) error {
	if opts.format != "text" && opts.format != "json" {
		return errs.Newf(errs.ErrKindInvalidInput, "unknown format %q", opts.format)
	}
	cfg, log, err := root.load()
	if err != nil {
		return err
	}

	var cache *offline.Cache
	if opts.save || opts.offline {
		store, err := backend.Open(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer store.Close()
		cache = offline.New(store, log)
	}

	var res *describe.Result
	if opts.offline {
		res, err = cache.Load(ctx, sql)
		if err != nil {
			return err
		}
	} else {
		if err := cfg.RequireDSN(); err != nil {
			return err
		}
		if cfg.Database.QueryTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.Database.QueryTimeout)
			defer cancel()
		}
		sess, err := session.Open(ctx, cfg.Database, cfg.Describe)
		if err != nil {
			return err
		}
		defer sess.Close(context.WithoutCancel(ctx))

		res, err = sess.Describe(ctx, sql)
		if err != nil {
			return err
		}
		if opts.save {
			if err := cache.Save(ctx, sql, res); err != nil {
				return err
			}
			log.InfoWith("saved describe result", map[string]interface{}{"key": offline.Key(sql)})
		}
	}

	if opts.format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	return writeText(out, res)
}

// writeText prints res as two aligned tables.
func writeText(out io.Writer, res *describe.Result) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	if len(res.Parameters) > 0 {
		fmt.Fprintln(tw, "PARAM\tTYPE")
		for _, p := range res.Parameters {
			fmt.Fprintf(tw, "$%d\t%s\n", p.Ordinal+1, p.Type)
		}
		fmt.Fprintln(tw)
	}
	fmt.Fprintln(tw, "#\tCOLUMN\tTYPE\tNULLABLE")
	for _, c := range res.Columns {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", c.Ordinal, c.Name, c.Type, c.Nullable)
	}
	return tw.Flush()
}
