package tables

import (
	"github.com/stpf99/mini-satip-scan/internal/dvbtext"
	"github.com/stpf99/mini-satip-scan/internal/filter"
	"github.com/stpf99/mini-satip-scan/internal/model"
	"github.com/stpf99/mini-satip-scan/internal/section"
)

const descShortEvent = 0x4D

// DecodeEIT implements the EIT decoder.
// extension = sid. On a version refresh it deletes every previously
// decoded event whose table_id and service_id equal this subtable's,
// before decoding the new event loop.
func (c *Context) DecodeEIT(f *filter.Filter, sec section.Section, refresh bool) (decoded bool, isEIT bool) {
	p := sec.Payload
	if len(p) < 6 {
		return false, true
	}
	tsid := uint16(p[0])<<8 | uint16(p[1])
	onid := uint16(p[2])<<8 | uint16(p[3])
	sid := sec.TableIDExtension

	if refresh {
		deleted := 0
		for k, ev := range c.Events {
			if ev.TableID == sec.TableID && k.SID == sid {
				delete(c.Events, k)
				deleted++
			}
		}
		if deleted > 0 && c.Stats != nil {
			c.Stats.EITEventsDeleted(deleted)
		}
	}

	pos := 6
	for pos+12 <= len(p) {
		eid := uint16(p[pos])<<8 | uint16(p[pos+1])
		var start [5]byte
		copy(start[:], p[pos+2:pos+7])
		var dur [3]byte
		copy(dur[:], p[pos+7:pos+10])
		descLoopLen := int(uint16(p[pos+10]&0x0F))<<8 | int(p[pos+11])
		pos += 12
		descEnd := pos + descLoopLen
		if descEnd > len(p) {
			descEnd = len(p)
		}

		ev := &model.Event{
			Key:       model.EventKey{ONID: onid, TSID: tsid, SID: sid, EID: eid},
			StartTime: start,
			Duration:  dur,
			TableID:   sec.TableID,
		}

		dpos := pos
		for dpos+2 <= descEnd {
			tag := p[dpos]
			dlen := int(p[dpos+1])
			dpos += 2
			if dpos+dlen > descEnd {
				break
			}
			if tag == descShortEvent {
				decodeShortEventDescriptor(ev, p[dpos:dpos+dlen])
			}
			dpos += dlen
		}

		c.Events[ev.Key] = ev
		pos = descEnd
	}

	if c.Stats != nil {
		c.Stats.SectionDecoded()
	}
	return true, true
}

func decodeShortEventDescriptor(ev *model.Event, d []byte) {
	if len(d) < 5 {
		return
	}
	copy(ev.Lang[:], d[0:3])
	nameLen := int(d[3])
	if 4+nameLen+1 > len(d) {
		return
	}
	ev.ShortName = append([]byte(nil), d[4:4+nameLen]...)
	txOff := 4 + nameLen
	txLen := int(d[txOff])
	txOff++
	if txOff+txLen > len(d) {
		return
	}
	ev.ShortText = append([]byte(nil), d[txOff:txOff+txLen]...)
}

// EventLang returns ev's 3-character short_event_descriptor language code.
func EventLang(ev *model.Event) string { return string(ev.Lang[:]) }

// EventName decodes ev's short_event_descriptor name to UTF-8.
func EventName(ev *model.Event) string { return dvbtext.Decode(ev.ShortName) }

// EventText decodes ev's short_event_descriptor text to UTF-8.
func EventText(ev *model.Event) string { return dvbtext.Decode(ev.ShortText) }
