package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/haivivi/oggopus/pkg/audio/codec/oggopus"
	"github.com/haivivi/oggopus/pkg/audio/codec/opus"
	"github.com/haivivi/oggopus/pkg/cli"
)

var packetsCmd = &cobra.Command{
	Use:   "packets <path>",
	Short: "List the audio packets of a stream",
	Long: `List audio packets with their TOC fields, duration and stream position.

Example:
  oggopus packets song.opus --limit 20 -o table
  oggopus packets song.opus -o json --jq '.[] | select(.mode == "CELT") | .packet_no'`,
	Args: cobra.ExactArgs(1),
	RunE: runPackets,
}

func init() {
	packetsCmd.Flags().Int("limit", 0, "maximum number of packets to list (0 = all)")
	rootCmd.AddCommand(packetsCmd)
}

// packetRow is one audio packet as listed by packets and seek.
type packetRow struct {
	PacketNo     int64  `json:"packet_no" yaml:"packet_no"`
	TimeUs       int64  `json:"time_us" yaml:"time_us"`
	DurationUs   int64  `json:"duration_us" yaml:"duration_us"`
	GranuleDelta int64  `json:"granule_delta" yaml:"granule_delta"`
	Granule      int64  `json:"granule" yaml:"granule"`
	PageOffset   int64  `json:"page_offset" yaml:"page_offset"`
	Size         int    `json:"size" yaml:"size"`
	Samples      int    `json:"samples" yaml:"samples"`
	Config       int    `json:"config" yaml:"config"`
	Mode         string `json:"mode" yaml:"mode"`
	Bandwidth    string `json:"bandwidth" yaml:"bandwidth"`
	SampleRate   int    `json:"sample_rate" yaml:"sample_rate"`
	Stereo       bool   `json:"stereo" yaml:"stereo"`
	Frames       int    `json:"frames" yaml:"frames"`
}

func newPacketRow(p *oggopus.AudioPacket) packetRow {
	toc := p.Frame().TOC()
	c := toc.Configuration()
	frames, _ := opus.FrameCount(p.Data)
	return packetRow{
		PacketNo:     p.PacketNo,
		TimeUs:       p.TimeUs,
		DurationUs:   p.DurationUs,
		GranuleDelta: p.GranuleDelta,
		Granule:      p.Granule,
		PageOffset:   p.PageOffset,
		Size:         len(p.Data),
		Samples:      p.Frame().Samples(),
		Config:       int(c),
		Mode:         c.Mode().String(),
		Bandwidth:    c.Bandwidth().String(),
		SampleRate:   c.Bandwidth().SampleRate(),
		Stereo:       toc.IsStereo(),
		Frames:       frames,
	}
}

type packetList []packetRow

func (l packetList) Table() *cli.Table {
	t := &cli.Table{Headers: []string{"NO", "TIME", "DURATION", "GRANULE", "OFFSET", "SIZE", "MODE", "BANDWIDTH", "FRAMES"}}
	for _, r := range l {
		t.Append(
			strconv.FormatInt(r.PacketNo, 10),
			cli.FormatMicros(r.TimeUs),
			cli.FormatMicros(r.DurationUs),
			strconv.FormatInt(r.Granule, 10),
			strconv.FormatInt(r.PageOffset, 10),
			strconv.Itoa(r.Size),
			r.Mode,
			r.Bandwidth,
			strconv.Itoa(r.Frames),
		)
	}
	return t
}

func runPackets(cmd *cobra.Command, args []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return fmt.Errorf("failed to read 'limit' flag: %w", err)
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

	r, err := s.store.Open(ctx, s.path)
	if err != nil {
		return err
	}
	defer r.Close()

	x := oggopus.NewExtractor(r, extractorOptions(c)...)
	if _, err := x.ReadHeaders(ctx); err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	list := packetList{}
	for p, err := range x.Packets(ctx) {
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		list = append(list, newPacketRow(p))
		if limit > 0 && len(list) >= limit {
			break
		}
	}
	return output(cmd, list)
}
