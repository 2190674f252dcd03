package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haivivi/oggopus/pkg/audio/codec/oggopus"
	"github.com/haivivi/oggopus/pkg/cli"
)

var probeCmd = &cobra.Command{
	Use:   "probe <path>",
	Short: "Summarize an Ogg Opus stream",
	Long: `Read the identification and comment headers of a stream, then scan
its audio packets to report the packet count and duration.

Example:
  oggopus probe song.opus
  oggopus probe song.opus -o json --jq '.config.header.pre_skip'`,
	Args: cobra.ExactArgs(1),
	RunE: runProbe,
}

func init() {
	probeCmd.Flags().Bool("headers-only", false, "stop after the header phase")
	rootCmd.AddCommand(probeCmd)
}

type probeResult struct {
	Source     string               `json:"source" yaml:"source"`
	Size       int64                `json:"size" yaml:"size"`
	Serial     uint32               `json:"serial" yaml:"serial"`
	Config     *oggopus.CodecConfig `json:"config" yaml:"config"`
	Packets    int64                `json:"packets" yaml:"packets"`
	DurationUs int64                `json:"duration_us" yaml:"duration_us"`
	// PlayableUs is the duration with the pre-skip removed.
	PlayableUs int64 `json:"playable_us" yaml:"playable_us"`
}

func (r *probeResult) Table() *cli.Table {
	t := &cli.Table{Headers: []string{"FIELD", "VALUE"}, MaxWidth: 64}
	h := r.Config.Header
	t.Append("source", r.Source)
	t.Append("size", cli.FormatBytes(r.Size))
	t.Append("serial", fmt.Sprintf("%#08x", r.Serial))
	t.Append("mime type", r.Config.MimeType)
	t.Append("channels", strconv.Itoa(r.Config.Channels))
	t.Append("sample rate", strconv.Itoa(r.Config.SampleRate))
	t.Append("input sample rate", strconv.FormatUint(uint64(h.InputSampleRate), 10))
	t.Append("pre-skip", fmt.Sprintf("%d (%s)", h.PreSkip, cli.FormatMicros(r.Config.PreSkipUs())))
	t.Append("output gain", fmt.Sprintf("%.2f dB", float64(h.OutputGain)/256))
	t.Append("mapping family", strconv.Itoa(int(h.MappingFamily)))
	t.Append("packets", strconv.FormatInt(r.Packets, 10))
	t.Append("duration", cli.FormatMicros(r.DurationUs))
	t.Append("playable", cli.FormatMicros(r.PlayableUs))
	for _, e := range r.Config.Metadata {
		t.Append("tag "+strings.ToUpper(e.Key), e.Value)
	}
	return t
}

func runProbe(cmd *cobra.Command, args []string) error {
	headersOnly, err := cmd.Flags().GetBool("headers-only")
	if err != nil {
		return fmt.Errorf("failed to read 'headers-only' flag: %w", err)
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

	size, err := s.store.Size(ctx, s.path)
	if err != nil {
		return err
	}
	r, err := s.store.Open(ctx, s.path)
	if err != nil {
		return err
	}
	defer r.Close()

	x := oggopus.NewExtractor(r, extractorOptions(c)...)
	cfg, err := x.ReadHeaders(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	result := &probeResult{
		Source: s.source,
		Size:   size,
		Serial: x.SerialNo(),
		Config: cfg,
	}
	if !headersOnly {
		for _, err := range x.Packets(ctx) {
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			result.Packets++
		}
		table := x.SeekTable()
		result.DurationUs = table.DurationUs
		result.PlayableUs = max(0, table.DurationUs-cfg.PreSkipUs())
	}
	return output(cmd, result)
}
