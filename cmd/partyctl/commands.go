package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/stake-plus/raidparty/src/data"
	"github.com/stake-plus/raidparty/src/party"
	"github.com/urfave/cli/v2"
)

func activeCommand() *cli.Command {
	return &cli.Command{
		Name:  "active",
		Usage: "List active parties",
		Action: func(c *cli.Context) error {
			return withStore(c, func(store data.Store) error {
				return listActive(c.Context, store, c.App.Writer, c.Bool("json"))
			})
		},
	}
}

func showCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Print the stored record of one active party",
		ArgsUsage: "CHANNEL_ID",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("missing required argument: channel id")
			}
			return withStore(c, func(store data.Store) error {
				return showActive(c.Context, store, c.App.Writer, c.Args().Get(0))
			})
		},
	}
}

func archiveCommand() *cli.Command {
	return &cli.Command{
		Name:      "archive",
		Usage:     "List parties archived under a location key",
		ArgsUsage: "KEY",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("missing required argument: archive key")
			}
			return withStore(c, func(store data.Store) error {
				return listArchived(c.Context, store, c.App.Writer, c.Args().Get(0), c.Bool("json"))
			})
		},
	}
}

func withStore(c *cli.Context, fn func(data.Store) error) error {
	opts := data.OpenOptions{
		Backend:     c.String("backend"),
		RedisURL:    c.String("redis-url"),
		RedisPrefix: c.String("redis-prefix"),
	}
	if opts.Backend == "mysql" {
		db, err := data.ConnectMySQL(c.String("mysql-dsn"))
		if err != nil {
			return fmt.Errorf("connect mysql: %w", err)
		}
		opts.DB = db
	}

	store, closeStore, err := data.OpenStore(c.Context, opts)
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(store)
}

func listActive(ctx context.Context, store data.Store, w io.Writer, raw bool) error {
	records, err := store.ListActive(ctx)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	if raw {
		for _, id := range ids {
			fmt.Fprintln(w, string(records[id]))
		}
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHANNEL\tTYPE\tCREATED\tATTENDEES\tDELETION")
	for _, id := range ids {
		p, err := party.DecodeRecord(records[id])
		if err != nil {
			fmt.Fprintf(tw, "%s\tINVALID\t-\t-\t%v\n", id, err)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			p.ChannelID(), p.Type(), p.CreationTime().UTC().Format(time.RFC3339), p.AttendeeCount(""), deletionLabel(p.DeletionTime()))
	}
	return tw.Flush()
}

func showActive(ctx context.Context, store data.Store, w io.Writer, channelID string) error {
	raw, err := store.GetActive(ctx, channelID)
	if err != nil {
		return fmt.Errorf("%s: %w", channelID, err)
	}
	if _, err := party.DecodeRecord(raw); err != nil {
		fmt.Fprintf(w, "# record does not decode: %v\n", err)
	}
	_, err = fmt.Fprintln(w, string(raw))
	return err
}

func listArchived(ctx context.Context, store data.Store, w io.Writer, key string, raw bool) error {
	records, err := store.ListArchived(ctx, key)
	if err != nil {
		return err
	}
	if raw {
		for _, rec := range records {
			fmt.Fprintln(w, string(rec))
		}
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHANNEL\tTYPE\tCREATED\tATTENDEES")
	for i, rec := range records {
		p, err := party.DecodeRecord(rec)
		if err != nil {
			fmt.Fprintf(tw, "#%d\tINVALID\t-\t%v\n", i, err)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n",
			p.ChannelID(), p.Type(), p.CreationTime().UTC().Format(time.RFC3339), p.AttendeeCount(""))
	}
	return tw.Flush()
}

func deletionLabel(ms int64) string {
	switch {
	case ms == party.ProtectedFromDeletion:
		return "protected"
	case ms <= 0:
		return "-"
	default:
		return time.UnixMilli(ms).UTC().Format(time.RFC3339)
	}
}
