// Package tables decodes PAT, PMT, NIT, SDT, and EIT sections into the
// Service/Event model and installs the follow-on filters each table
// announces.
package tables

import (
	"time"

	"github.com/stpf99/mini-satip-scan/internal/filter"
	"github.com/stpf99/mini-satip-scan/internal/model"
	"github.com/stpf99/mini-satip-scan/internal/stats"
)

// Well-known PIDs.
const (
	PidPAT = 0x0000
	PidNIT = 0x0010
	PidSDT = 0x0011
	PidEIT = 0x0012
)

// Table IDs.
const (
	TidPAT       = 0x00
	TidPMT       = 0x02
	TidNITActual = 0x40
	TidNITOther  = 0x41
	TidSDTActual = 0x42
	TidSDTOther  = 0x46
	TidEITPF     = 0x4E
	TidEITPFOth  = 0x4F
	TidEITSchedStart = 0x50
	TidEITSchedEnd   = 0x5F
	TidEITSchedOthStart = 0x60
	TidEITSchedOthEnd   = 0x6F
)

// Default filter timeouts.
const (
	TimeoutPAT     = 60 * time.Second
	TimeoutPMT     = 60 * time.Second
	TimeoutSDT     = 60 * time.Second
	TimeoutNIT     = 120 * time.Second
	TimeoutEITBase = 15 * time.Second
	TimeoutEITSib  = 45 * time.Second
)

// Context bundles the per-transponder state the decoders mutate: the
// filter scheduler, the Service/Event model, and the collaborators needed
// to enqueue NIT-discovered transponders and record statistics.
type Context struct {
	Filters *filter.Table
	Spec    model.TransponderSpec

	TSID uint16
	ONID uint16

	Services map[uint16]*model.Service
	Events   map[model.EventKey]*model.Event

	Enqueue func(model.TransponderSpec)
	Stats   *stats.Accumulator

	now func() time.Time
}

// NewContext returns a fresh decode context for one transponder scan.
func NewContext(ft *filter.Table, spec model.TransponderSpec, enqueue func(model.TransponderSpec), st *stats.Accumulator) *Context {
	return &Context{
		Filters:  ft,
		Spec:     spec,
		Services: map[uint16]*model.Service{},
		Events:   map[model.EventKey]*model.Event{},
		Enqueue:  enqueue,
		Stats:    st,
		now:      time.Now,
	}
}

// Service returns the Service for sid, creating it on first reference.
func (c *Context) Service(sid uint16) *model.Service {
	s, ok := c.Services[sid]
	if !ok {
		s = &model.Service{SID: sid}
		c.Services[sid] = s
	}
	return s
}

func (c *Context) install(pid uint16, tableID byte, ext uint16, mode filter.ExtMode, timeout time.Duration) *filter.Filter {
	f := c.Filters.Install(pid, tableID, ext, mode, timeout, c.now())
	if c.Stats != nil {
		c.Stats.FilterInstalled()
	}
	return f
}

// installSiblings is the filter.SiblingInstaller every table decoder
// shares: EIT schedule subtables announce PID 0x12 filters for
// tid+1..tid+(segmentLast&0x0F).
func (c *Context) installSiblings(baseTableID byte, ext uint16, segmentLast byte) {
	n := segmentLast & 0x0F
	for i := byte(1); i <= n; i++ {
		tid := baseTableID + i
		if tid > TidEITSchedEnd && baseTableID < TidEITSchedOthStart {
			break
		}
		c.install(PidEIT, tid, ext, filter.ExtMatch, TimeoutEITSib)
	}
}

// InstallSiblingsFunc exposes installSiblings as a filter.SiblingInstaller
// for callers outside this package (the Scan Driver's dispatch loop).
func (c *Context) InstallSiblingsFunc() filter.SiblingInstaller {
	return c.installSiblings
}
