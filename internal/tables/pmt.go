package tables

import (
	"github.com/stpf99/mini-satip-scan/internal/filter"
	"github.com/stpf99/mini-satip-scan/internal/model"
	"github.com/stpf99/mini-satip-scan/internal/section"
)

var videoStreamTypes = map[byte]bool{
	0x01: true, 0x02: true, 0x10: true, 0x1B: true,
	0x24: true, 0x42: true, 0xEA: true, 0xD1: true,
}

var audioStreamTypes = map[byte]bool{
	0x03: true, 0x04: true, 0x0F: true, 0x11: true,
	0x81: true, 0x82: true, 0x83: true,
}

const (
	descTeletext = 0x56
	descSubtitle = 0x59
)

var privateAudioDescriptors = map[byte]bool{0x0A: true, 0x6A: true, 0x7A: true}

// DecodePMT implements the PMT decoder. The
// extension/program_number match against the installing filter is already
// enforced by filter.Table.Dispatch before this is called.
func (c *Context) DecodePMT(f *filter.Filter, sec section.Section, _ bool) (decoded bool, isEIT bool) {
	program := sec.TableIDExtension
	svc := c.Service(program)

	p := sec.Payload
	if len(p) < 4 {
		return false, false
	}
	svc.PCRPid = (uint16(p[0])&0x1F)<<8 | uint16(p[1])
	infoLen := int(uint16(p[2]&0x0F))<<8 | int(p[3])
	pos := 4 + infoLen
	if pos > len(p) {
		return false, false
	}

	for pos+5 <= len(p) {
		streamType := p[pos]
		pid := (uint16(p[pos+1])&0x1F)<<8 | uint16(p[pos+2])
		esInfoLen := int(uint16(p[pos+3]&0x0F))<<8 | int(p[pos+4])
		descStart := pos + 5
		descEnd := descStart + esInfoLen
		if descEnd > len(p) {
			descEnd = len(p)
		}

		switch {
		case videoStreamTypes[streamType]:
			svc.VPid = pid
		case audioStreamTypes[streamType]:
			svc.AddAPid(pid)
		case streamType == 0x06:
			classifyPrivateData(svc, pid, p[descStart:descEnd])
		}

		pos = descEnd
	}

	svc.GotPMT = true
	if c.Stats != nil {
		c.Stats.SectionDecoded()
	}
	return true, false
}

func classifyPrivateData(svc *model.Service, pid uint16, descs []byte) {
	pos := 0
	for pos+2 <= len(descs) {
		tag := descs[pos]
		dlen := int(descs[pos+1])
		pos += 2
		if pos+dlen > len(descs) {
			break
		}
		switch {
		case tag == descTeletext:
			svc.TeletextPid = pid
		case tag == descSubtitle:
			svc.SubtitlePid = pid
		case privateAudioDescriptors[tag]:
			svc.AddAPid(pid)
		}
		pos += dlen
	}
}
