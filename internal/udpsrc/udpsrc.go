// Package udpsrc strips the RTP header from SAT>IP data-socket datagrams
// and splits the remainder into 188-byte transport-stream packets.
package udpsrc

import "github.com/stpf99/mini-satip-scan/internal/tsreasm"

// rtpHeaderLen assumes a fixed 12-byte RTP header with no CSRC list and no
// extension.
const rtpHeaderLen = 12

// SplitDatagram strips the 12-byte RTP header from a UDP datagram of
// length n and returns the 188-byte TS packets it contains, discarding any
// trailing partial packet. Datagrams with n <= 12 carry no payload and
// yield nothing.
func SplitDatagram(buf []byte, n int) [][]byte {
	if n <= rtpHeaderLen {
		return nil
	}
	payload := buf[rtpHeaderLen:n]

	count := len(payload) / tsreasm.PacketLen
	packets := make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		start := i * tsreasm.PacketLen
		packets = append(packets, payload[start:start+tsreasm.PacketLen])
	}
	return packets
}
