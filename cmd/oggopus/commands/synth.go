package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haivivi/oggopus/pkg/audio/codec/ogg"
	"github.com/haivivi/oggopus/pkg/audio/codec/opus"
	"github.com/haivivi/oggopus/pkg/cli"
)

var synthCmd = &cobra.Command{
	Use:   "synth <path>",
	Short: "Write a synthetic Ogg Opus stream",
	Long: `Write a stream of identical audio packets built from a TOC byte. The
packets carry no real audio; the stream exercises parsers, indexes and
seeking.

Example:
  oggopus synth test.opus --count 500 --toc 0xFC --channels 2 --tag TITLE=test
  oggopus synth code3.opus --toc 0x03 --frames 3`,
	Args: cobra.ExactArgs(1),
	RunE: runSynth,
}

func init() {
	synthCmd.Flags().Int("count", 50, "number of audio packets")
	synthCmd.Flags().String("toc", "0xFC", "TOC byte of every packet")
	synthCmd.Flags().Int("frames", 2, "frame count byte value for code 3 TOCs")
	synthCmd.Flags().Int("size", 40, "packet size in bytes")
	synthCmd.Flags().Int("channels", 2, "channel count, 1 or 2")
	synthCmd.Flags().Int("pre-skip", 3840, "pre-skip in 48 kHz samples")
	synthCmd.Flags().String("vendor", "oggopus synth", "OpusTags vendor string")
	synthCmd.Flags().StringArray("tag", nil, "comment in KEY=VALUE form (repeatable)")
	rootCmd.AddCommand(synthCmd)
}

type synthResult struct {
	Path       string `json:"path" yaml:"path"`
	Serial     uint32 `json:"serial" yaml:"serial"`
	Packets    int    `json:"packets" yaml:"packets"`
	Granule    int64  `json:"granule" yaml:"granule"`
	DurationUs int64  `json:"duration_us" yaml:"duration_us"`
}

// synthPacket builds a packet of size bytes starting with toc.
func synthPacket(toc byte, frames, size int) ([]byte, error) {
	pkt := make([]byte, max(size, 2))
	pkt[0] = toc
	if opus.TOC(toc).FrameCode() == opus.ArbitraryFrames {
		if frames < 1 || frames > 48 {
			return nil, fmt.Errorf("--frames must be between 1 and 48, got %d", frames)
		}
		pkt[1] = byte(frames)
	}
	for i := 2; i < len(pkt); i++ {
		pkt[i] = byte(i)
	}
	return pkt, nil
}

func runSynth(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	count, _ := flags.GetInt("count")
	tocFlag, _ := flags.GetString("toc")
	frames, _ := flags.GetInt("frames")
	size, _ := flags.GetInt("size")
	channels, _ := flags.GetInt("channels")
	preSkip, _ := flags.GetInt("pre-skip")
	vendor, _ := flags.GetString("vendor")
	tags, _ := flags.GetStringArray("tag")

	toc, err := strconv.ParseUint(tocFlag, 0, 8)
	if err != nil {
		return fmt.Errorf("invalid --toc %q: %w", tocFlag, err)
	}
	if channels != 1 && channels != 2 {
		return fmt.Errorf("--channels must be 1 or 2, got %d", channels)
	}
	if preSkip < 0 || preSkip > 0xffff {
		return fmt.Errorf("--pre-skip out of range: %d", preSkip)
	}
	for _, tag := range tags {
		if !strings.Contains(tag, "=") {
			return fmt.Errorf("invalid --tag %q, want KEY=VALUE", tag)
		}
	}
	pkt, err := synthPacket(byte(toc), frames, size)
	if err != nil {
		return err
	}

	c, err := getContext()
	if err != nil {
		return err
	}
	s, err := resolveStream(c, args[0])
	if err != nil {
		return err
	}
	out, err := s.store.Create(cmd.Context(), s.path)
	if err != nil {
		return err
	}

	ps := uint16(preSkip)
	w, err := ogg.NewOpusWriter(out, ogg.OpusWriterOptions{
		Channels: channels,
		PreSkip:  &ps,
		Vendor:   vendor,
		Comments: tags,
	})
	if err != nil {
		out.Close()
		return err
	}
	for range count {
		if err := w.Write(opus.Frame(pkt)); err != nil {
			w.Close()
			return err
		}
	}
	result := &synthResult{
		Path:       s.source,
		Serial:     w.SerialNo(),
		Packets:    count,
		Granule:    w.Granule(),
		DurationUs: int64(count) * opus.Frame(pkt).Duration().Microseconds(),
	}
	// Close flushes the last page and closes out.
	if err := w.Close(); err != nil {
		return err
	}
	if outputFormat == string(cli.FormatTable) && jqExpr == "" {
		cli.PrintSuccess(cmd.OutOrStdout(), "Wrote %d packets (%s) to %s",
			count, cli.FormatMicros(result.DurationUs), s.source)
		return nil
	}
	return output(cmd, result)
}
