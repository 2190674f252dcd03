package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/oggopus/pkg/cli"
	"github.com/haivivi/oggopus/pkg/seekindex"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage seek indexes",
	Long: `Build and manage seek indexes.

A seek index records, for every page on which an audio packet begins, the
page's byte offset and the stream position. Indexes live in a badger
database in the context's index directory.`,
}

var indexBuildCmd = &cobra.Command{
	Use:   "build <path>",
	Short: "Scan a stream and store its seek index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := getContext()
		if err != nil {
			return err
		}
		s, err := resolveStream(c, args[0])
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		r, err := s.store.Open(ctx, s.path)
		if err != nil {
			return err
		}
		defer r.Close()

		rec, err := seekindex.Build(ctx, s.source, r, extractorOptions(c)...)
		if err != nil {
			return err
		}

		idx, err := openIndex(c)
		if err != nil {
			return err
		}
		defer idx.Close()
		if err := idx.Put(ctx, rec); err != nil {
			return err
		}
		return output(cmd, recordList{rec})
	},
}

var indexShowCmd = &cobra.Command{
	Use:   "show <path|id>",
	Short: "Show the seek index of a stream",
	Long: `Show a stored seek index, looked up by stream path or by record ID.

Example:
  oggopus index show song.opus -o json --jq '.table.points | length'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := getContext()
		if err != nil {
			return err
		}
		idx, err := openIndex(c)
		if err != nil {
			return err
		}
		defer idx.Close()

		ctx := cmd.Context()
		rec, err := idx.Get(ctx, args[0])
		if errors.Is(err, seekindex.ErrNotFound) {
			s, rerr := resolveStream(c, args[0])
			if rerr != nil {
				return rerr
			}
			rec, err = idx.Lookup(ctx, s.source)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		return output(cmd, recordView{rec})
	},
}

var indexListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List stored seek indexes",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := getContext()
		if err != nil {
			return err
		}
		idx, err := openIndex(c)
		if err != nil {
			return err
		}
		defer idx.Close()

		list := recordList{}
		for rec, err := range idx.List(cmd.Context()) {
			if err != nil {
				return err
			}
			list = append(list, rec)
		}
		return output(cmd, list)
	},
}

var indexDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a seek index by record ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := getContext()
		if err != nil {
			return err
		}
		idx, err := openIndex(c)
		if err != nil {
			return err
		}
		defer idx.Close()

		if err := idx.Delete(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		cli.PrintSuccess(cmd.OutOrStdout(), "Index %s deleted", args[0])
		return nil
	},
}

func init() {
	indexCmd.AddCommand(indexBuildCmd)
	indexCmd.AddCommand(indexShowCmd)
	indexCmd.AddCommand(indexListCmd)
	indexCmd.AddCommand(indexDeleteCmd)
	rootCmd.AddCommand(indexCmd)
}

// recordView prints a single record, with its seek points as the table.
type recordView struct {
	rec *seekindex.Record
}

func (v recordView) MarshalJSON() ([]byte, error) { return json.Marshal(v.rec) }
func (v recordView) MarshalYAML() (any, error)    { return v.rec, nil }

func (v recordView) Table() *cli.Table {
	t := &cli.Table{Headers: []string{"TIME", "GRANULE", "OFFSET"}}
	for _, p := range v.rec.Table.Points {
		t.Append(cli.FormatMicros(p.TimeUs), strconv.FormatInt(p.Granule, 10), strconv.FormatInt(p.Offset, 10))
	}
	return t
}

// recordList prints records as a summary table. Structured formats keep
// the full records.
type recordList []*seekindex.Record

func (l recordList) Table() *cli.Table {
	t := &cli.Table{Headers: []string{"ID", "SOURCE", "PACKETS", "DURATION", "POINTS", "CREATED"}, MaxWidth: 48}
	for _, rec := range l {
		t.Append(
			rec.ID,
			rec.Source,
			strconv.FormatInt(rec.Summary.Packets, 10),
			cli.FormatMicros(rec.Table.DurationUs),
			strconv.Itoa(len(rec.Table.Points)),
			rec.CreatedAt.Local().Format(time.DateTime),
		)
	}
	return t
}
