// Package tsreasm reassembles 188-byte MPEG-TS packets into PSI/SI section
// buffers per continuity-counter and payload-unit-start-indicator rules.
// TS packets whose length is not exactly 188 bytes are out of scope and
// rejected by SplitPacket.
package tsreasm

import "log"

const (
	// PacketLen is the fixed MPEG-TS packet size this scanner supports.
	PacketLen = 188

	// NullPID is never assembled.
	NullPID = 0x1FFF

	maxSectionLen = 4096 // 3 header bytes + up to 4093 payload
	maxDeclared   = 4093
)

// PidState tracks reassembly for one subscribed PID.
type PidState struct {
	PID uint16

	hasCC   bool
	prevCC  byte
	buf     [maxSectionLen]byte
	fill    int
	declLen int // 0 until the 3-byte section header has been seen

	// DispatchByExt selects whether this PID's filter bank matches on
	// table_id_extension (true) or table_id alone (false).
	DispatchByExt bool
}

// NewPidState returns a fresh, unsubscribed-reset PidState for pid.
func NewPidState(pid uint16) *PidState {
	return &PidState{PID: pid}
}

// Reset discards any in-progress reassembly, as happens on a continuity
// break or an over-length section. Continuity-counter tracking is kept.
func (p *PidState) Reset() {
	p.fill = 0
	p.declLen = 0
}

// Feed processes one TS packet payload (excluding the 4-byte TS header) for
// this PID and invokes onSection for every section that completes. cc is
// the packet's continuity counter; pusi is the payload_unit_start bit.
// payload must already have the adaptation-field prefix stripped.
func (p *PidState) Feed(cc byte, pusi bool, payload []byte, onSection func(section []byte)) {
	ccBroke := false
	if p.hasCC {
		want := (p.prevCC + 1) & 0x0F
		if cc != want {
			log.Printf("tsreasm: pid 0x%04x continuity break: got cc=%d want=%d, resetting", p.PID, cc, want)
			p.Reset()
			ccBroke = true
		}
	}
	p.prevCC = cc
	p.hasCC = true

	if !pusi {
		if ccBroke {
			return
		}
		p.appendAndMaybeFinalize(payload, onSection)
		return
	}

	if len(payload) == 0 {
		return
	}
	ptr := int(payload[0])
	rest := payload[1:]
	if ptr > len(rest) {
		ptr = len(rest)
	}
	// Bytes up to the pointer continue the previous section; a continuity
	// break just reset that buffer, so they belong to a section this PID
	// never saw the start of and must be discarded, not appended.
	if !ccBroke {
		p.appendAndMaybeFinalize(rest[:ptr], onSection)
	}
	rest = rest[ptr:]

	// Back-to-back sections may follow until padding (0xFF) or packet end.
	for len(rest) > 0 && rest[0] != 0xFF {
		if len(rest) < 3 {
			break
		}
		declared := 3 + (int(rest[1]&0x0F)<<8 | int(rest[2]))
		if declared > maxSectionLen {
			log.Printf("tsreasm: pid 0x%04x declared section length %d exceeds max, resetting", p.PID, declared)
			p.Reset()
			return
		}
		p.Reset()
		p.declLen = declared
		n := len(rest)
		if n > declared {
			n = declared
		}
		copy(p.buf[:], rest[:n])
		p.fill = n
		if p.fill == p.declLen {
			sec := make([]byte, p.fill)
			copy(sec, p.buf[:p.fill])
			p.Reset()
			onSection(sec)
		}
		rest = rest[n:]
	}
}

func (p *PidState) appendAndMaybeFinalize(b []byte, onSection func(section []byte)) {
	if len(b) == 0 {
		return
	}
	if p.declLen == 0 {
		if p.fill+len(b) < 3 {
			p.copyIn(b)
			return
		}
		p.copyIn(b)
		if p.fill >= 3 {
			declared := 3 + (int(p.buf[1]&0x0F)<<8 | int(p.buf[2]))
			if declared > maxSectionLen {
				log.Printf("tsreasm: pid 0x%04x declared section length %d exceeds max, resetting", p.PID, declared)
				p.Reset()
				return
			}
			p.declLen = declared
		}
	} else {
		p.copyIn(b)
	}
	if p.declLen > 0 && p.fill >= p.declLen {
		sec := make([]byte, p.declLen)
		copy(sec, p.buf[:p.declLen])
		p.Reset()
		onSection(sec)
	}
}

func (p *PidState) copyIn(b []byte) {
	room := maxSectionLen - p.fill
	n := len(b)
	if n > room {
		n = room
	}
	copy(p.buf[p.fill:], b[:n])
	p.fill += n
}

// SplitPacket computes pid/pusi/cc and the payload slice for one 188-byte
// TS packet. ok is false for packets this scanner does not reassemble
// (invalid adaptation field, null PID).
func SplitPacket(pkt []byte) (pid uint16, pusi bool, cc byte, payload []byte, ok bool) {
	if len(pkt) != PacketLen || pkt[0] != 0x47 {
		return 0, false, 0, nil, false
	}
	pid = uint16(pkt[1]&0x1F)<<8 | uint16(pkt[2])
	if pid == NullPID {
		return pid, false, 0, nil, false
	}
	pusi = pkt[1]&0x40 != 0
	afc := (pkt[3] >> 4) & 0x03
	cc = pkt[3] & 0x0F

	switch afc {
	case 0, 2:
		return pid, pusi, cc, nil, true
	case 1:
		return pid, pusi, cc, pkt[4:], true
	default: // 3: adaptation field + payload
		if len(pkt) < 5 {
			return pid, pusi, cc, nil, false
		}
		afLen := int(pkt[4])
		if afLen >= 184 {
			return pid, pusi, cc, nil, false
		}
		start := 5 + afLen
		if start > len(pkt) {
			return pid, pusi, cc, nil, false
		}
		return pid, pusi, cc, pkt[start:], true
	}
}
