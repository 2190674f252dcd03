// Package oggopus parses the header and framing layer of an Ogg Opus stream.
//
// The header phase is driven by ReadHeader, which recognizes the OpusHead
// and OpusTags packets by their 8-byte signatures and builds a CodecConfig.
// Once ReadHeader reports false, the packet it was given is the first audio
// packet. The duration of each audio packet comes from its TOC byte (see
// opus.PacketDurationUs) and is converted into a granule delta with a Clock.
//
// Extractor wires these pieces to an Ogg page source:
//
//	x := oggopus.NewExtractor(f)
//	cfg, err := x.ReadHeaders(ctx)
//	if err != nil {
//	    return err
//	}
//	for pkt, err := range x.Packets(ctx) {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(pkt.TimeUs, pkt.DurationUs, pkt.Granule)
//	}
package oggopus
