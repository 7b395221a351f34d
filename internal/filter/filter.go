// Package filter implements the per-PID section-filter scheduler: filter
// installation, version/section-completeness tracking, and timeout-driven
// force-completion.
//
// Filters live in one owning slab (Table.filters) indexed by a dense int;
// the per-PID and active-filter indices hold those indices, not pointers,
// so removal from the active index is an O(1) map delete with no
// back-pointer ownership ambiguity.
package filter

import (
	"time"

	"github.com/stpf99/mini-satip-scan/internal/section"
)

// ExtMode controls how a filter matches table_id_extension.
type ExtMode int

const (
	ExtIgnore ExtMode = iota // extension is not part of the match
	ExtLearn                 // first section seen sets Ext and upgrades to ExtMatch
	ExtMatch                 // extension must equal Ext exactly
)

const bitmapWords = 4 // 4 x 64 bits = 256-bit todo bitmap

// Filter is one (pid, table_id, optional extension) section filter.
type Filter struct {
	index int

	PID     uint16
	TableID byte
	Ext     uint16
	ExtMode ExtMode

	versionSet bool
	Version    byte

	todo     [bitmapWords]uint64
	todoSet  bool
	Complete bool

	Deadline time.Time
	Timeout  time.Duration

	// LastSectionNumber is the last_section_number most recently observed
	// for the current (tid, ext, version) triple; used by the "todo
	// bitmap's highest set bit" invariant.
	LastSectionNumber byte
}

func (f *Filter) initTodo(last byte) {
	f.todo = [bitmapWords]uint64{}
	for n := 0; n <= int(last); n++ {
		f.todo[n/64] |= 1 << uint(n%64)
	}
	f.todoSet = true
	f.LastSectionNumber = last
}

func (f *Filter) bitSet(n byte) bool {
	return f.todo[n/64]&(1<<uint(n%64)) != 0
}

func (f *Filter) clearBit(n byte) {
	f.todo[n/64] &^= 1 << uint(n%64)
}

func (f *Filter) allClear() bool {
	for _, w := range f.todo {
		if w != 0 {
			return false
		}
	}
	return true
}

// Subscriber is notified the first time a PID gains a filter, so the
// caller can update the RTSP PID subscription: installing a filter on a
// new PID implicitly subscribes that PID.
type Subscriber interface {
	SubscribePID(pid uint16)
}

// Table owns every filter for the current transponder.
type Table struct {
	sub Subscriber

	filters []*Filter      // dense slab, index == Filter.index
	byPID   map[uint16][]int
	active  map[int]struct{} // incomplete filters, for timeout scanning

	subscribed map[uint16]bool
}

// NewTable returns an empty filter table that notifies sub when a PID is
// subscribed for the first time.
func NewTable(sub Subscriber) *Table {
	return &Table{
		sub:        sub,
		byPID:      map[uint16][]int{},
		active:     map[int]struct{}{},
		subscribed: map[uint16]bool{},
	}
}

// Install adds a filter for (pid, tableID, ext) with the given extension
// mode and timeout, or returns the existing one if already present —
// idempotent on the (pid, tid, ext) triple.
func (t *Table) Install(pid uint16, tableID byte, ext uint16, mode ExtMode, timeout time.Duration, now time.Time) *Filter {
	for _, idx := range t.byPID[pid] {
		f := t.filters[idx]
		if f.TableID != tableID {
			continue
		}
		// A filter still in ExtIgnore/ExtLearn mode hasn't committed to a
		// specific extension yet, so any further install call for the
		// same (pid, tableID) is the same logical filter (see DESIGN.md
		// on SDT actual being installed once per transport regardless of
		// which program's PAT entry triggered it).
		if mode == ExtIgnore || f.ExtMode != ExtMatch || f.Ext == ext {
			return f
		}
	}

	f := &Filter{
		index:    len(t.filters),
		PID:      pid,
		TableID:  tableID,
		Ext:      ext,
		ExtMode:  mode,
		Deadline: now.Add(timeout),
		Timeout:  timeout,
	}
	t.filters = append(t.filters, f)
	t.byPID[pid] = append(t.byPID[pid], f.index)
	t.active[f.index] = struct{}{}

	if !t.subscribed[pid] {
		t.subscribed[pid] = true
		if t.sub != nil {
			t.sub.SubscribePID(pid)
		}
	}
	return f
}

// OnPID returns every filter installed on pid (in installation order).
func (t *Table) OnPID(pid uint16) []*Filter {
	idxs := t.byPID[pid]
	out := make([]*Filter, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, t.filters[i])
	}
	return out
}

// DecodeFunc decodes one section for a matched, not-yet-applied filter. It
// returns whether the section was successfully decoded (in which case its
// section_number bit is cleared) and whether this is an EIT subtable (in
// which case segment-sibling bits are also cleared).
type DecodeFunc func(f *Filter, sec section.Section, refresh bool) (decoded bool, isEIT bool)

// eitSegmentLast reads segment_last_section_number from an EIT section's
// extended common header (byte 4 of the payload that follows the generic
// 8-byte table_id..last_section_number header: transport_stream_id(2),
// original_network_id(2), segment_last_section_number(1),
// last_table_id(1)).
func eitSegmentLast(sec section.Section) byte {
	if len(sec.Payload) < 5 {
		return sec.LastSectionNumber
	}
	return sec.Payload[4]
}

// SiblingInstaller is called once per EIT subtable's first section to
// install the PID 0x12 sibling filters for tid+1..tid+(segmentLast&0x0F).
type SiblingInstaller func(baseTableID byte, ext uint16, segmentLast byte)

// Dispatch applies one completed, CRC-valid section on pid to every
// matching filter.
func (t *Table) Dispatch(pid uint16, sec section.Section, now time.Time, decode DecodeFunc, installSiblings SiblingInstaller) {
	tableID, ext := sec.TableID, sec.TableIDExtension
	version, sectionNumber, lastSectionNumber := sec.VersionNumber, sec.SectionNumber, sec.LastSectionNumber

	for _, idx := range t.byPID[pid] {
		f := t.filters[idx]
		if f.TableID != tableID {
			continue
		}

		switch f.ExtMode {
		case ExtMatch:
			if f.Ext != ext {
				continue
			}
		case ExtLearn:
			f.Ext = ext
			f.ExtMode = ExtMatch
		case ExtIgnore:
			// extension is not part of the match
		}

		refresh := false
		if !f.versionSet {
			f.versionSet = true
			f.Version = version
		} else if f.Version != version {
			f.todoSet = false
			f.Version = version
			refresh = true
		}

		if f.Complete {
			continue
		}

		if !f.todoSet {
			f.initTodo(lastSectionNumber)
			if isEITTableID(tableID) && installSiblings != nil {
				installSiblings(tableID, ext, eitSegmentLast(sec))
			}
		}

		if !f.bitSet(sectionNumber) {
			continue // already decoded or out of range
		}

		decoded, isEIT := decode(f, sec, refresh)
		if !decoded {
			continue
		}
		f.clearBit(sectionNumber)
		if isEIT {
			// EIT segments pack eight sections; segment_last_section_number
			// marks the last occupied bit in the segment, so the slots
			// after it up to the segment boundary never arrive on the wire
			// and must be retired directly rather than left waiting.
			segLast := int(eitSegmentLast(sec))
			for n := segLast + 1; n <= segLast|7 && n <= 255; n++ {
				f.clearBit(byte(n))
			}
		}

		if f.allClear() {
			f.Complete = true
			delete(t.active, f.index)
		} else {
			f.Deadline = now.Add(f.Timeout)
		}
	}
}

func isEITTableID(tableID byte) bool {
	return tableID == 0x50 || tableID == 0x60
}

// ExpireTimeouts force-completes every active filter whose deadline has
// passed.
// Treated as successful completion with partial data.
func (t *Table) ExpireTimeouts(now time.Time) []*Filter {
	var expired []*Filter
	for idx := range t.active {
		f := t.filters[idx]
		if !now.Before(f.Deadline) {
			f.Complete = true
			expired = append(expired, f)
		}
	}
	for _, f := range expired {
		delete(t.active, f.index)
	}
	return expired
}

// ForceRetireAll marks every remaining active filter complete, for
// session-cap force retirement.
func (t *Table) ForceRetireAll() {
	for idx := range t.active {
		t.filters[idx].Complete = true
	}
	t.active = map[int]struct{}{}
}

// AllDone reports whether every installed filter has completed.
func (t *Table) AllDone() bool {
	return len(t.active) == 0
}

// Len returns the total number of filters ever installed.
func (t *Table) Len() int {
	return len(t.filters)
}
