package tables

import (
	"github.com/stpf99/mini-satip-scan/internal/filter"
	"github.com/stpf99/mini-satip-scan/internal/section"
)

// DecodePAT implements the PAT decoder:
// records the transport_stream_id and installs PMT/SDT/NIT follow-on
// filters for every program entry.
func (c *Context) DecodePAT(f *filter.Filter, sec section.Section, _ bool) (decoded bool, isEIT bool) {
	c.TSID = sec.TableIDExtension

	p := sec.Payload
	for i := 0; i+4 <= len(p); i += 4 {
		program := uint16(p[i])<<8 | uint16(p[i+1])
		pid := (uint16(p[i+2])&0x1F)<<8 | uint16(p[i+3])

		if program == 0 {
			c.install(pid, TidNITActual, 0, filter.ExtIgnore, TimeoutNIT)
			continue
		}
		c.install(pid, TidPMT, program, filter.ExtMatch, TimeoutPMT)
		// SDT actual is carried once per transport on PID 0x11, tid 0x42;
		// see DESIGN.md on why this is installed with ExtLearn rather than
		// ExtMatch(program_number).
		c.install(PidSDT, TidSDTActual, program, filter.ExtLearn, TimeoutSDT)
	}

	if c.Stats != nil {
		c.Stats.SectionDecoded()
	}
	return true, false
}
