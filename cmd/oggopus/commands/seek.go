package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/oggopus/pkg/audio/codec/oggopus"
	"github.com/haivivi/oggopus/pkg/cli"
	"github.com/haivivi/oggopus/pkg/seekindex"
)

var seekCmd = &cobra.Command{
	Use:   "seek <path>",
	Short: "Enter a stream at a time offset",
	Long: `Find the seek point at or before --at, reopen the stream at that byte
offset and list the packets that play from --at onwards.

The stored seek index of the stream is used when there is one; otherwise
the stream is scanned first.

Example:
  oggopus seek song.opus --at 1m30s --count 10 -o table`,
	Args: cobra.ExactArgs(1),
	RunE: runSeek,
}

func init() {
	seekCmd.Flags().Duration("at", 0, "target time")
	seekCmd.Flags().Int("count", 5, "number of packets to list")
	seekCmd.Flags().Bool("scan", false, "ignore the stored index and scan the stream")
	rootCmd.AddCommand(seekCmd)
}

type seekResult struct {
	Source    string            `json:"source" yaml:"source"`
	TargetUs  int64             `json:"target_us" yaml:"target_us"`
	Point     oggopus.SeekPoint `json:"point" yaml:"point"`
	FromIndex bool              `json:"from_index" yaml:"from_index"`
	Packets   packetList        `json:"packets" yaml:"packets"`
}

func (r *seekResult) Table() *cli.Table {
	return r.Packets.Table()
}

func runSeek(cmd *cobra.Command, args []string) error {
	at, err := cmd.Flags().GetDuration("at")
	if err != nil {
		return fmt.Errorf("failed to read 'at' flag: %w", err)
	}
	if at < 0 {
		return fmt.Errorf("--at must not be negative")
	}
	count, err := cmd.Flags().GetInt("count")
	if err != nil {
		return fmt.Errorf("failed to read 'count' flag: %w", err)
	}
	scan, err := cmd.Flags().GetBool("scan")
	if err != nil {
		return fmt.Errorf("failed to read 'scan' flag: %w", err)
	}

	c, err := getContext()
	if err != nil {
		return err
	}
	s, err := resolveStream(c, args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	result := &seekResult{Source: s.source, TargetUs: at.Microseconds(), Packets: packetList{}}

	var table *oggopus.SeekTable
	if !scan {
		table, err = storedTable(cmd, c, s.source)
		if err != nil {
			return err
		}
		result.FromIndex = table != nil
	}
	if table == nil {
		r, err := s.store.Open(ctx, s.path)
		if err != nil {
			return err
		}
		rec, err := seekindex.Build(ctx, s.source, r, extractorOptions(c)...)
		r.Close()
		if err != nil {
			return err
		}
		table = &rec.Table
	}

	point, ok := table.Lookup(result.TargetUs)
	if !ok {
		// No audio packets.
		return output(cmd, result)
	}
	result.Point = point
	slog.Debug("seek point", "target_us", result.TargetUs, "time_us", point.TimeUs, "offset", point.Offset)

	// Headers are always read from the start of the stream.
	r, err := s.store.Open(ctx, s.path)
	if err != nil {
		return err
	}
	x := oggopus.NewExtractor(r, extractorOptions(c)...)
	_, err = x.ReadHeaders(ctx)
	r.Close()
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	ra, err := s.store.OpenAt(ctx, s.path, point.Offset)
	if err != nil {
		return err
	}
	defer ra.Close()
	if err := x.Resume(ra, point); err != nil {
		return err
	}

	for p, err := range x.Packets(ctx) {
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		if p.TimeUs+p.DurationUs <= result.TargetUs {
			continue
		}
		result.Packets = append(result.Packets, newPacketRow(p))
		if count > 0 && len(result.Packets) >= count {
			break
		}
	}
	return output(cmd, result)
}

// storedTable returns the indexed seek table of source, or nil when the
// source has not been indexed.
func storedTable(cmd *cobra.Command, c *cli.Context, source string) (*oggopus.SeekTable, error) {
	idx, err := openIndex(c)
	if err != nil {
		return nil, err
	}
	defer idx.Close()

	rec, err := idx.Lookup(cmd.Context(), source)
	if errors.Is(err, seekindex.ErrNotFound) {
		slog.Debug("stream not indexed, scanning", "source", source)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	slog.Debug("using stored index", "id", rec.ID, "points", len(rec.Table.Points),
		"age", time.Since(rec.CreatedAt).Round(time.Second))
	return &rec.Table, nil
}
