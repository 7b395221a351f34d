// Package stats replaces the source's global mutable counters
// (eit_size, eit_events, ...) with an owned accumulator the Scan Driver
// holds and prints at teardown. Counters are additionally
// exported as Prometheus metrics so a long-running scanner can be scraped.
package stats

import (
	"fmt"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Accumulator holds per-transponder and process-wide scan counters.
type Accumulator struct {
	sectionsDecoded     atomic.Uint64
	crcFailures         atomic.Uint64
	ccBreaks            atomic.Uint64
	filtersInstalled    atomic.Uint64
	filtersCompleted    atomic.Uint64
	filtersTimedOut     atomic.Uint64
	eitEventsDeleted    atomic.Uint64
	transpondersQueued  atomic.Uint64
	transpondersScanned atomic.Uint64

	promSections  prometheus.Counter
	promCRCFail   prometheus.Counter
	promCCBreaks  prometheus.Counter
	promFilterTO  prometheus.Counter
	promEITDelete prometheus.Counter
	promTpScanned prometheus.Counter
}

// New registers the Prometheus collectors on reg (promauto-style naming,
// may be nil to skip registration entirely — useful in tests).
func New(reg prometheus.Registerer) *Accumulator {
	a := &Accumulator{
		promSections:  prometheus.NewCounter(prometheus.CounterOpts{Name: "satipscan_sections_decoded_total", Help: "PSI/SI sections successfully decoded."}),
		promCRCFail:   prometheus.NewCounter(prometheus.CounterOpts{Name: "satipscan_crc_failures_total", Help: "Sections discarded for bad CRC-32."}),
		promCCBreaks:  prometheus.NewCounter(prometheus.CounterOpts{Name: "satipscan_cc_breaks_total", Help: "Continuity-counter discontinuities observed."}),
		promFilterTO:  prometheus.NewCounter(prometheus.CounterOpts{Name: "satipscan_filters_timed_out_total", Help: "Section filters force-completed by deadline or session cap."}),
		promEITDelete: prometheus.NewCounter(prometheus.CounterOpts{Name: "satipscan_eit_events_deleted_total", Help: "EPG events deleted on an EIT version refresh."}),
		promTpScanned: prometheus.NewCounter(prometheus.CounterOpts{Name: "satipscan_transponders_scanned_total", Help: "Transponders fully scanned."}),
	}
	if reg != nil {
		reg.MustRegister(a.promSections, a.promCRCFail, a.promCCBreaks, a.promFilterTO, a.promEITDelete, a.promTpScanned)
	}
	return a
}

func (a *Accumulator) SectionDecoded() {
	a.sectionsDecoded.Add(1)
	a.promSections.Inc()
}

func (a *Accumulator) CRCFailure() {
	a.crcFailures.Add(1)
	a.promCRCFail.Inc()
}

// CCBreak and FilterCompleted have no caller in the scan pipeline, so the
// cc_breaks and filters_completed counts stay at zero.
func (a *Accumulator) CCBreak() {
	a.ccBreaks.Add(1)
	a.promCCBreaks.Inc()
}

func (a *Accumulator) FilterInstalled() { a.filtersInstalled.Add(1) }
func (a *Accumulator) FilterCompleted() { a.filtersCompleted.Add(1) }

func (a *Accumulator) FilterTimedOut() {
	a.filtersTimedOut.Add(1)
	a.promFilterTO.Inc()
}

func (a *Accumulator) EITEventsDeleted(n int) {
	a.eitEventsDeleted.Add(uint64(n))
	a.promEITDelete.Add(float64(n))
}

func (a *Accumulator) TransponderQueued() { a.transpondersQueued.Add(1) }

func (a *Accumulator) TransponderScanned() {
	a.transpondersScanned.Add(1)
	a.promTpScanned.Inc()
}

// String renders a plain-text dump, printed at scan teardown the way the
// source dumped its counters on exit.
func (a *Accumulator) String() string {
	return fmt.Sprintf(
		"sections=%d crc_failures=%d cc_breaks=%d filters_installed=%d filters_completed=%d filters_timed_out=%d eit_events_deleted=%d transponders_queued=%d transponders_scanned=%d",
		a.sectionsDecoded.Load(), a.crcFailures.Load(), a.ccBreaks.Load(), a.filtersInstalled.Load(),
		a.filtersCompleted.Load(), a.filtersTimedOut.Load(), a.eitEventsDeleted.Load(),
		a.transpondersQueued.Load(), a.transpondersScanned.Load(),
	)
}
