// Package scan implements the per-transponder Scan Driver:
// bootstrap filter installation, the single-threaded cooperative main
// pump, and the three termination conditions.
package scan

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/stpf99/mini-satip-scan/internal/dvbcrc"
	"github.com/stpf99/mini-satip-scan/internal/filter"
	"github.com/stpf99/mini-satip-scan/internal/model"
	"github.com/stpf99/mini-satip-scan/internal/rtsp"
	"github.com/stpf99/mini-satip-scan/internal/section"
	"github.com/stpf99/mini-satip-scan/internal/stats"
	"github.com/stpf99/mini-satip-scan/internal/tables"
	"github.com/stpf99/mini-satip-scan/internal/tsreasm"
	"github.com/stpf99/mini-satip-scan/internal/udpsrc"
)

// multiplexTimeout is the 1 s wait the main pump gives control/UDP I/O on
// each iteration.
const multiplexTimeout = 1 * time.Second

// Config bounds one transponder scan's termination conditions, overridable
// from internal/config for tests.
type Config struct {
	SessionCap   time.Duration // hard cap; default 300s
	QuietTimeout time.Duration // default 30s
}

func (c Config) withDefaults() Config {
	if c.SessionCap <= 0 {
		c.SessionCap = 300 * time.Second
	}
	if c.QuietTimeout <= 0 {
		c.QuietTimeout = 30 * time.Second
	}
	return c
}

// pidSubscriber implements filter.Subscriber by pushing the full current
// PID set to the RTSP collaborator on every change: installing a filter on
// a new PID implicitly subscribes that PID on the wire.
type pidSubscriber struct {
	client    *rtsp.Client
	tuneQuery string
	pids      []uint16
}

func (s *pidSubscriber) SubscribePID(pid uint16) {
	s.pids = append(s.pids, pid)
	if err := s.client.SetPids(s.tuneQuery, s.pids); err != nil {
		log.Printf("scan: SetPids: %v", err)
	}
}

// Result is everything a completed transponder scan produced, handed to
// the caller for output rendering.
type Result struct {
	Spec      model.TransponderSpec
	TuneQuery string
	Services  map[uint16]*model.Service
	Events    map[model.EventKey]*model.Event
}

// Run executes one transponder scan's full life cycle against host: dial,
// bootstrap filters, main pump, termination, teardown. enqueue receives
// NIT-discovered specs for the caller's Transponder Queue.
func Run(host string, rtspPort int, spec model.TransponderSpec, cfg Config, st *stats.Accumulator, enqueue func(model.TransponderSpec)) (Result, error) {
	cfg = cfg.withDefaults()
	tuneQuery := BuildTuneQuery(spec)

	client, err := rtsp.Dial(host, rtspPort)
	if err != nil {
		return Result{}, fmt.Errorf("scan: dial: %w", err)
	}
	defer client.Teardown()

	if err := client.Setup(tuneQuery); err != nil {
		return Result{}, fmt.Errorf("scan: setup: %w", err)
	}

	sub := &pidSubscriber{client: client, tuneQuery: tuneQuery}
	ft := filter.NewTable(sub)
	ctx := tables.NewContext(ft, spec, enqueue, st)

	decode := buildDecoder(ctx)
	installSiblings := ctx.InstallSiblingsFunc()

	now := time.Now()
	ft.Install(tables.PidPAT, tables.TidPAT, 0, filter.ExtIgnore, tables.TimeoutPAT, now)
	ft.Install(tables.PidSDT, tables.TidSDTActual, 0, filter.ExtLearn, tables.TimeoutSDT, now)
	if spec.UseNIT {
		ft.Install(tables.PidNIT, tables.TidNITActual, 0, filter.ExtIgnore, tables.TimeoutNIT, now)
	}
	bootstrapFilters := ft.Len()

	pids := map[uint16]*tsreasm.PidState{}
	pidState := func(pid uint16) *tsreasm.PidState {
		p, ok := pids[pid]
		if !ok {
			p = tsreasm.NewPidState(pid)
			pids[pid] = p
		}
		return p
	}

	start := time.Now()
	lastData := start
	deadline := start.Add(cfg.SessionCap)
	udpBuf := make([]byte, 65536)

	for {
		loopNow := time.Now()
		if !loopNow.Before(deadline) {
			log.Printf("scan: session cap reached, force-retiring remaining filters")
			ft.ForceRetireAll()
			if st != nil {
				st.FilterTimedOut()
			}
			break
		}

		for _, f := range ft.ExpireTimeouts(loopNow) {
			_ = f
			if st != nil {
				st.FilterTimedOut()
			}
		}

		if ft.AllDone() {
			break
		}

		bootstrapDone := bootstrapComplete(ft)
		if bootstrapDone && time.Since(lastData) > cfg.QuietTimeout {
			log.Printf("scan: bootstrap filters complete, %s without data, stopping", cfg.QuietTimeout)
			ft.ForceRetireAll()
			break
		}

		if client.ControlReady(multiplexTimeout / 2) {
			client.ReadControl()
		}

		n, ok := client.ReadUDP(udpBuf, multiplexTimeout/2)
		if !ok || n <= 12 {
			continue
		}
		lastData = time.Now()

		for _, pkt := range udpsrc.SplitDatagram(udpBuf, n) {
			pid, pusi, cc, payload, ok := tsreasm.SplitPacket(pkt)
			if !ok {
				continue
			}
			ps := pidState(pid)
			ps.Feed(cc, pusi, payload, func(raw []byte) {
				sec, ok := section.Parse(raw)
				if !ok {
					// Only a failed CRC counts; short sections and
					// current_next_indicator=0 are dropped uncounted.
					if st != nil && len(raw) >= 8 && raw[1]&0x80 != 0 && !dvbcrc.Valid(raw) {
						st.CRCFailure()
					}
					return
				}
				ft.Dispatch(pid, sec, time.Now(), decode, installSiblings)
			})
		}
	}

	if st != nil {
		log.Printf("scan: transponder %s done: %s", spec, st.String())
	}
	_ = bootstrapFilters

	return Result{Spec: spec, TuneQuery: tuneQuery, Services: ctx.Services, Events: ctx.Events}, nil
}

func bootstrapComplete(ft *filter.Table) bool {
	for _, f := range ft.OnPID(tables.PidPAT) {
		if f.TableID == tables.TidPAT && !f.Complete {
			return false
		}
	}
	for _, f := range ft.OnPID(tables.PidSDT) {
		if f.TableID == tables.TidSDTActual && !f.Complete {
			return false
		}
	}
	for _, f := range ft.OnPID(tables.PidNIT) {
		if (f.TableID == tables.TidNITActual || f.TableID == tables.TidNITOther) && !f.Complete {
			return false
		}
	}
	return true
}

func buildDecoder(ctx *tables.Context) filter.DecodeFunc {
	return func(f *filter.Filter, sec section.Section, refresh bool) (bool, bool) {
		switch {
		case f.TableID == tables.TidPAT:
			return ctx.DecodePAT(f, sec, refresh)
		case f.TableID == tables.TidPMT:
			return ctx.DecodePMT(f, sec, refresh)
		case f.TableID == tables.TidSDTActual || f.TableID == tables.TidSDTOther:
			return ctx.DecodeSDT(f, sec, refresh)
		case f.TableID == tables.TidNITActual || f.TableID == tables.TidNITOther:
			return ctx.DecodeNIT(f, sec, refresh)
		case f.TableID >= tables.TidEITPF && f.TableID <= tables.TidEITSchedOthEnd:
			return ctx.DecodeEIT(f, sec, refresh)
		}
		return false, false
	}
}

// BuildTuneQuery renders the SAT>IP tune query string from a
// TransponderSpec: "key=value&key=value..." built from whichever of
// src,freq[.frac],pol,msys,mtype,ro,sr,fec,bw,tmode,gi apply to its
// delivery system. plts is never emitted.
func BuildTuneQuery(spec model.TransponderSpec) string {
	var parts []string
	add := func(k, v string) { parts = append(parts, k+"="+v) }

	if spec.Source != 0 {
		add("src", strconv.Itoa(spec.Source))
	}
	freq := strconv.Itoa(spec.FrequencyMHz)
	if spec.FreqFrac != 0 {
		freq += "." + fmt.Sprintf("%04d", spec.FreqFrac)
	}
	add("freq", freq)

	switch spec.Delivery {
	case model.DVBS, model.DVBS2:
		add("pol", polarizationQuery(spec.Polarization))
		add("msys", spec.Delivery.String())
		if spec.SymbolRate != 0 {
			add("sr", strconv.Itoa(spec.SymbolRate))
		}
		if spec.FEC != 0 {
			add("fec", strconv.Itoa(spec.FEC))
		}
		add("ro", rollOffQuery(spec.RollOff))
	case model.DVBC, model.DVBC2:
		add("msys", spec.Delivery.String())
		if spec.SymbolRate != 0 {
			add("sr", strconv.Itoa(spec.SymbolRate))
		}
	case model.DVBT, model.DVBT2:
		add("msys", spec.Delivery.String())
		if spec.BandwidthMHz != 0 {
			add("bw", strconv.Itoa(spec.BandwidthMHz))
		}
		add("tmode", strconv.Itoa(spec.TransmissionMode))
		add("gi", strconv.Itoa(spec.GuardInterval))
	}
	if spec.Modulation != 0 {
		add("mtype", strconv.Itoa(spec.Modulation))
	}
	return strings.Join(parts, "&")
}

func polarizationQuery(p model.Polarization) string {
	switch p {
	case model.PolH:
		return "h"
	case model.PolV:
		return "v"
	case model.PolL:
		return "l"
	case model.PolR:
		return "r"
	}
	return "h"
}

func rollOffQuery(ro int) string {
	switch ro {
	case 1:
		return "0.25"
	case 2:
		return "0.20"
	default:
		return "0.35"
	}
}
