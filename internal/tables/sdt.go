package tables

import (
	"github.com/stpf99/mini-satip-scan/internal/dvbtext"
	"github.com/stpf99/mini-satip-scan/internal/filter"
	"github.com/stpf99/mini-satip-scan/internal/model"
	"github.com/stpf99/mini-satip-scan/internal/section"
)

const descService = 0x48

// DecodeSDT implements the SDT decoder.
// Payload starts at original_network_id (the section's 8-byte common
// header, including table_id_extension=transport_stream_id, has already
// been stripped by internal/section).
func (c *Context) DecodeSDT(f *filter.Filter, sec section.Section, _ bool) (decoded bool, isEIT bool) {
	p := sec.Payload
	if len(p) < 3 {
		return false, false
	}
	c.TSID = sec.TableIDExtension
	c.ONID = uint16(p[0])<<8 | uint16(p[1])
	pos := 3 // skip onid(2) + reserved_future_use(1)

	for pos+5 <= len(p) {
		sid := uint16(p[pos])<<8 | uint16(p[pos+1])
		eitFlags := p[pos+2]
		lenByte := p[pos+3] // running_status(3) | free_CA_mode(1) | desc_loop_len_hi(4)
		descLoopLen := int(uint16(lenByte&0x0F))<<8 | int(p[pos+4])
		pos += 5
		descEnd := pos + descLoopLen
		if descEnd > len(p) {
			descEnd = len(p)
		}

		svc := c.Service(sid)
		svc.TSID = sec.TableIDExtension
		svc.ONID = c.ONID
		svc.EITSched = eitFlags&0x02 != 0
		svc.EITPF = eitFlags&0x01 != 0
		svc.CAMode = lenByte&0x10 != 0

		dpos := pos
		for dpos+2 <= descEnd {
			tag := p[dpos]
			dlen := int(p[dpos+1])
			dpos += 2
			if dpos+dlen > descEnd {
				break
			}
			if tag == descService && dlen >= 3 {
				decodeServiceDescriptor(svc, p[dpos:dpos+dlen])
				svc.GotSDT = true
			}
			dpos += dlen
		}

		if c.Spec.ScanEIT && svc.EITSched && sidAllowed(c.Spec.EITSids, sid) {
			c.install(PidEIT, TidEITSchedStart, sid, filter.ExtMatch, TimeoutEITBase)
		}

		pos = descEnd
	}

	if c.Stats != nil {
		c.Stats.SectionDecoded()
	}
	return true, false
}

func decodeServiceDescriptor(svc *model.Service, d []byte) {
	provLen := int(d[1])
	if 2+provLen+1 > len(d) {
		return
	}
	svc.SetProviderName(dvbtext.Decode(d[2 : 2+provLen]))
	snOff := 2 + provLen
	snLen := int(d[snOff])
	snOff++
	if snOff+snLen > len(d) {
		return
	}
	svc.SetServiceName(dvbtext.Decode(d[snOff : snOff+snLen]))
}

func sidAllowed(allow []uint16, sid uint16) bool {
	if len(allow) == 0 {
		return true
	}
	for _, s := range allow {
		if s == sid {
			return true
		}
	}
	return false
}
