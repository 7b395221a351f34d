// Package output renders the scan result text blocks and M3U playlist
// entries.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/stpf99/mini-satip-scan/internal/mjd"
	"github.com/stpf99/mini-satip-scan/internal/model"
	"github.com/stpf99/mini-satip-scan/internal/tables"
)

// Playlist is the M3U output file opened by the CLI's `-c FILE` (create,
// truncating and writing the #EXTM3U header) or `-a FILE` (append, no
// header) flags.
type Playlist struct {
	f *os.File
}

// OpenPlaylist opens path for the requested mode. create=true truncates
// the file and writes the #EXTM3U header; create=false appends to an
// existing file (or creates one without a header if absent).
func OpenPlaylist(path string, create bool) (*Playlist, error) {
	flags := os.O_WRONLY | os.O_CREATE
	if create {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("output: open playlist %s: %w", path, err)
	}
	p := &Playlist{f: f}
	if create {
		WriteM3UHeader(f)
	}
	return p, nil
}

// WriteService appends one service's M3U entry.
func (p *Playlist) WriteService(host string, port int, tuneQuery string, svc *model.Service) {
	M3ULine(p.f, host, port, tuneQuery, svc)
}

// Close flushes and closes the underlying file.
func (p *Playlist) Close() error {
	return p.f.Close()
}

// WriteTune writes the `TUNE:<query>` line that precedes a transponder
// block.
func WriteTune(w io.Writer, tuneQuery string) {
	fmt.Fprintf(w, "TUNE:%s\n", tuneQuery)
}

// WriteService writes one SERVICE...END block.
func WriteService(w io.Writer, svc *model.Service) {
	fmt.Fprintln(w, "SERVICE")
	fmt.Fprintf(w, "SID:%d\n", svc.SID)
	fmt.Fprintf(w, "TSID:%d\n", svc.TSID)
	fmt.Fprintf(w, "ONID:%d\n", svc.ONID)
	fmt.Fprintf(w, "PROVIDER:%s\n", svc.ProviderName)
	fmt.Fprintf(w, "NAME:%s\n", svc.ServiceName)
	fmt.Fprintf(w, "PMT_PID:%d\n", svc.PMTPid)
	fmt.Fprintf(w, "PCR_PID:%d\n", svc.PCRPid)
	fmt.Fprintf(w, "VPID:%d\n", svc.VPid)
	apids := make([]string, len(svc.APids))
	for i, p := range svc.APids {
		apids[i] = fmt.Sprint(p)
	}
	fmt.Fprintf(w, "APIDS:%s\n", strings.Join(apids, ","))
	if svc.TeletextPid != 0 {
		fmt.Fprintf(w, "TELETEXT_PID:%d\n", svc.TeletextPid)
	}
	if svc.SubtitlePid != 0 {
		fmt.Fprintf(w, "SUBTITLE_PID:%d\n", svc.SubtitlePid)
	}
	fmt.Fprintf(w, "CA_MODE:%t\n", svc.CAMode)
	fmt.Fprintf(w, "EIT_PF:%t\n", svc.EITPF)
	fmt.Fprintf(w, "EIT_SCHED:%t\n", svc.EITSched)
	fmt.Fprintln(w, "END")
}

// WriteEvent writes one EVENT...END block, decoding the event's raw
// MJD/BCD time fields and EN 300 468 string fields to human-readable
// UTF-8 on output.
func WriteEvent(w io.Writer, ev *model.Event) {
	fmt.Fprintln(w, "EVENT")
	fmt.Fprintf(w, "SID:%d\n", ev.Key.SID)
	fmt.Fprintf(w, "EID:%d\n", ev.Key.EID)
	if start, ok := mjd.Time(ev.StartTime[:]); ok {
		fmt.Fprintf(w, "START:%s\n", start.Format("2006-01-02T15:04:05"))
	}
	if dur, ok := mjd.Duration(ev.Duration[:]); ok {
		fmt.Fprintf(w, "DURATION:%s\n", dur)
	}
	fmt.Fprintf(w, "LANG:%s\n", tables.EventLang(ev))
	fmt.Fprintf(w, "NAME:%s\n", tables.EventName(ev))
	fmt.Fprintf(w, "TEXT:%s\n", tables.EventText(ev))
	fmt.Fprintln(w, "END")
}

// M3ULine renders one #EXTINF/url pair for a service on host:port.
func M3ULine(w io.Writer, host string, port int, tuneQuery string, svc *model.Service) {
	pids := collectPids(svc)
	fmt.Fprintf(w, "#EXTINF:-1,%s\n", svc.ServiceName)
	fmt.Fprintf(w, "rtsp://%s:%d/?%s&pids=%s\n", host, port, tuneQuery, strings.Join(pids, ","))
}

func collectPids(svc *model.Service) []string {
	pids := []string{}
	add := func(pid uint16) {
		if pid != 0 {
			pids = append(pids, fmt.Sprint(pid))
		}
	}
	add(svc.PMTPid)
	add(svc.PCRPid)
	add(svc.VPid)
	for _, p := range svc.APids {
		add(p)
	}
	add(svc.TeletextPid)
	add(svc.SubtitlePid)
	return pids
}

// WriteM3UHeader writes the #EXTM3U header line, for use when creating a
// new playlist file.
func WriteM3UHeader(w io.Writer) {
	fmt.Fprintln(w, "#EXTM3U")
}
