// Command satipscan drives a full DVB/SAT>IP service-discovery scan
// against one tuner host: it walks a transponder queue, decodes PAT,
// PMT, SDT, NIT, and (optionally) EIT sections off the tuner's RTP/UDP
// data socket, and writes the discovered services and events as text
// blocks and an M3U playlist.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stpf99/mini-satip-scan/internal/config"
	"github.com/stpf99/mini-satip-scan/internal/health"
	"github.com/stpf99/mini-satip-scan/internal/model"
	"github.com/stpf99/mini-satip-scan/internal/output"
	"github.com/stpf99/mini-satip-scan/internal/queue"
	"github.com/stpf99/mini-satip-scan/internal/scan"
	"github.com/stpf99/mini-satip-scan/internal/stats"
)

func main() {
	var (
		host       = flag.String("host", "", "SAT>IP tuner host (required)")
		delivery   = flag.String("msys", "dvbs", "delivery system: dvbs, dvbs2, dvbc, dvbc2, dvbt, dvbt2")
		freq       = flag.String("freq", "", "frequency in MHz, optionally freq.frac (required)")
		pol        = flag.String("pol", "h", "polarization: h, v, l, r (satellite only)")
		src        = flag.Int("src", 1, "satellite source / tuner index")
		sr         = flag.Int("sr", 0, "symbol rate, kSym/s (satellite/cable)")
		fec        = flag.Int("fec", 0, "forward error correction code")
		mtype      = flag.Int("mtype", 0, "modulation type")
		rolloff    = flag.Int("ro", 0, "roll-off: 0=0.35 1=0.25 2=0.20 (satellite)")
		bw         = flag.Int("bw", 8, "bandwidth MHz (terrestrial)")
		tmode      = flag.Int("tmode", 0, "transmission mode (terrestrial)")
		gi         = flag.Int("gi", 0, "guard interval (terrestrial)")
		useNIT     = flag.Bool("n", false, "follow NIT delivery-system descriptors to queue sibling transponders")
		scanEIT    = flag.Bool("eit", false, "decode EIT present/following and schedule tables")
		eitSids    = flag.String("eit-sids", "", "comma-separated service-id allow list for EIT (empty = all)")
		createPath = flag.String("c", "", "create (truncate) M3U playlist at this path")
		appendPath = flag.String("a", "", "append services to the M3U playlist at this path")
		metricsAddr = flag.String("metrics-addr", "", "serve Prometheus metrics on this address (overrides SATIPSCAN_METRICS_ADDR)")
	)
	flag.Parse()

	if *host == "" || *freq == "" {
		fmt.Fprintln(os.Stderr, "satipscan: -host and -freq are required")
		flag.Usage()
		os.Exit(2)
	}

	config.LoadEnvFile(".env")
	cfg := config.Load()
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		st := stats.New(reg)
		http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			log.Printf("satipscan: serving metrics on %s", cfg.MetricsAddr)
			if err := http.ListenAndServe(cfg.MetricsAddr, nil); err != nil {
				log.Printf("satipscan: metrics listener: %v", err)
			}
		}()
		run(*host, cfg, st, buildSeedSpec(*delivery, *freq, *pol, *src, *sr, *fec, *mtype, *rolloff, *bw, *tmode, *gi, *useNIT, *scanEIT, *eitSids), *createPath, *appendPath)
		return
	}

	st := stats.New(nil)
	run(*host, cfg, st, buildSeedSpec(*delivery, *freq, *pol, *src, *sr, *fec, *mtype, *rolloff, *bw, *tmode, *gi, *useNIT, *scanEIT, *eitSids), *createPath, *appendPath)
}

func run(host string, cfg *config.Config, st *stats.Accumulator, seed model.TransponderSpec, createPath, appendPath string) {
	descURL := fmt.Sprintf("http://%s:1400/desc.xml", host)
	if err := health.CheckTuner(context.Background(), descURL); err != nil {
		log.Printf("satipscan: tuner capability probe failed, continuing anyway: %v", err)
	}

	q := queue.New(st, seed)

	var playlist *output.Playlist
	if createPath != "" {
		p, err := output.OpenPlaylist(createPath, true)
		if err != nil {
			log.Fatalf("satipscan: %v", err)
		}
		playlist = p
	} else if appendPath != "" {
		p, err := output.OpenPlaylist(appendPath, false)
		if err != nil {
			log.Fatalf("satipscan: %v", err)
		}
		playlist = p
	}
	if playlist != nil {
		defer playlist.Close()
	}

	scanCfg := scan.Config{SessionCap: cfg.SessionCap, QuietTimeout: cfg.QuietTimeout}

	for {
		tspec, ok := q.Next(context.Background())
		if !ok {
			break
		}
		log.Printf("satipscan: scanning %s", tspec)

		result, err := scan.Run(host, cfg.RTSPPort, tspec, scanCfg, st, q.Enqueue)
		if err != nil {
			log.Printf("satipscan: scan %s: %v", tspec, err)
			q.Done(tspec)
			continue
		}

		output.WriteTune(os.Stdout, result.TuneQuery)
		for _, svc := range result.Services {
			output.WriteService(os.Stdout, svc)
			if playlist != nil {
				playlist.WriteService(host, cfg.RTSPPort, result.TuneQuery, svc)
			}
		}
		for _, ev := range result.Events {
			output.WriteEvent(os.Stdout, ev)
		}

		q.Done(tspec)
		if q.Len() == 0 {
			break
		}
	}

	log.Printf("satipscan: done: %s", st.String())
}

func buildSeedSpec(delivery, freqStr, polStr string, src, sr, fec, mtype, rolloff, bw, tmode, gi int, useNIT, scanEIT bool, eitSidsCSV string) model.TransponderSpec {
	freqMHz, freqFrac := parseFreq(freqStr)

	spec := model.TransponderSpec{
		Delivery:         parseDelivery(delivery),
		FrequencyMHz:     freqMHz,
		FreqFrac:         freqFrac,
		Source:           src,
		Polarization:     parsePolarization(polStr),
		SymbolRate:       sr,
		Modulation:       mtype,
		FEC:              fec,
		RollOff:          rolloff,
		BandwidthMHz:     bw,
		TransmissionMode: tmode,
		GuardInterval:    gi,
		UseNIT:           useNIT,
		ScanEIT:          scanEIT,
		EITSids:          parseSids(eitSidsCSV),
	}
	return spec
}

func parseFreq(s string) (mhz, frac int) {
	whole, fracStr, hasFrac := strings.Cut(s, ".")
	mhz, _ = strconv.Atoi(whole)
	if hasFrac {
		for len(fracStr) < 4 {
			fracStr += "0"
		}
		frac, _ = strconv.Atoi(fracStr[:4])
	}
	return mhz, frac
}

func parseDelivery(s string) model.DeliverySystem {
	switch strings.ToLower(s) {
	case "dvbc":
		return model.DVBC
	case "dvbc2":
		return model.DVBC2
	case "dvbt":
		return model.DVBT
	case "dvbt2":
		return model.DVBT2
	case "dvbs2":
		return model.DVBS2
	default:
		return model.DVBS
	}
}

func parsePolarization(s string) model.Polarization {
	switch strings.ToLower(s) {
	case "v":
		return model.PolV
	case "l":
		return model.PolL
	case "r":
		return model.PolR
	default:
		return model.PolH
	}
}

func parseSids(csv string) []uint16 {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	sids := make([]uint16, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			continue
		}
		sids = append(sids, uint16(n))
	}
	return sids
}
