// Package section frames and validates a completed PSI/SI section buffer:
// CRC-32 verification, current_next_indicator gating, and header field
// extraction.
package section

import "github.com/stpf99/mini-satip-scan/internal/dvbcrc"

// Section is one parsed, CRC-validated PSI/SI section.
type Section struct {
	TableID           byte
	SyntaxIndicator   bool
	TableIDExtension  uint16
	VersionNumber     byte // 5 bits
	CurrentNext       bool
	SectionNumber     byte
	LastSectionNumber byte

	// Payload is the section body after the 8-byte header (table_id
	// through last_section_number) and before the trailing CRC (when
	// present).
	Payload []byte

	// Raw is the full section including header and trailer, kept for
	// decoders that need byte offsets matching the wire layout directly.
	Raw []byte
}

// Parse validates and decodes a completed section buffer (fill ==
// declared_length >= 8). It returns ok=false for sections that must be
// silently discarded: too short, bad CRC, or current_next_indicator unset
// (a scheduled-future table).
func Parse(buf []byte) (s Section, ok bool) {
	if len(buf) < 8 {
		return Section{}, false
	}
	s.TableID = buf[0]
	s.SyntaxIndicator = buf[1]&0x80 != 0
	s.TableIDExtension = uint16(buf[3])<<8 | uint16(buf[4])
	s.VersionNumber = (buf[5] >> 1) & 0x1F
	s.CurrentNext = buf[5]&0x01 != 0
	s.SectionNumber = buf[6]
	s.LastSectionNumber = buf[7]
	s.Raw = buf

	if s.SyntaxIndicator {
		if !dvbcrc.Valid(buf) {
			return Section{}, false
		}
		if len(buf) < 12 {
			return Section{}, false
		}
		s.Payload = buf[8 : len(buf)-4]
	} else {
		s.Payload = buf[8:]
	}

	if !s.CurrentNext {
		return Section{}, false
	}
	return s, true
}
