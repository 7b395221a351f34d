package tables

import (
	"testing"

	"github.com/stpf99/mini-satip-scan/internal/filter"
	"github.com/stpf99/mini-satip-scan/internal/model"
	"github.com/stpf99/mini-satip-scan/internal/section"
)

func newTestContext(spec model.TransponderSpec, enqueue func(model.TransponderSpec)) (*Context, *filter.Table) {
	ft := filter.NewTable(nil)
	ctx := NewContext(ft, spec, enqueue, nil)
	return ctx, ft
}

func TestDecodePAT_installsPMTAndSDTFilters(t *testing.T) {
	ctx, ft := newTestContext(model.TransponderSpec{}, nil)

	// program_number=0 -> NIT; program_number=100 -> PMT pid 200.
	payload := []byte{
		0x00, 0x00, 0xE0, 0x10, // program 0 -> pid 0x0010 (network_PID)
		0x00, 0x64, 0x20, 0xC8, // program 100 -> pid 0x00C8
	}
	sec := section.Section{TableID: TidPAT, TableIDExtension: 7, Payload: payload}
	decoded, isEIT := ctx.DecodePAT(nil, sec, false)
	if !decoded || isEIT {
		t.Fatalf("DecodePAT returned decoded=%v isEIT=%v", decoded, isEIT)
	}
	if ctx.TSID != 7 {
		t.Errorf("TSID = %d, want 7", ctx.TSID)
	}
	if len(ft.OnPID(0x00C8)) != 1 {
		t.Error("expected one PMT filter installed on pid 0x00C8")
	}
	if len(ft.OnPID(PidSDT)) != 1 {
		t.Error("expected one SDT filter installed on the SDT PID")
	}
	if len(ft.OnPID(PidNIT)) != 1 {
		t.Error("expected one NIT filter installed from the network_PID entry")
	}
}

func TestDecodePMT_classifiesStreams(t *testing.T) {
	ctx, _ := newTestContext(model.TransponderSpec{}, nil)

	payload := []byte{
		0x1F, 0xFF, 0x00, 0x00, // pcr_pid=0x1FFF, program_info_length=0
		0x02, 0x01, 0x00, 0x00, 0x00, // video (mpeg2) pid 0x0100
		0x04, 0x01, 0x01, 0x00, 0x00, // audio (mpeg2) pid 0x0101
	}
	sec := section.Section{TableID: TidPMT, TableIDExtension: 100, Payload: payload}
	decoded, _ := ctx.DecodePMT(nil, sec, false)
	if !decoded {
		t.Fatal("expected DecodePMT to succeed")
	}
	svc := ctx.Service(100)
	if svc.VPid != 0x0100 {
		t.Errorf("VPid = 0x%04X, want 0x0100", svc.VPid)
	}
	if len(svc.APids) != 1 || svc.APids[0] != 0x0101 {
		t.Errorf("APids = %v, want [0x0101]", svc.APids)
	}
	if !svc.GotPMT {
		t.Error("expected GotPMT true")
	}
}

func TestDecodeSDT_decodesServiceNames(t *testing.T) {
	ctx, _ := newTestContext(model.TransponderSpec{}, nil)
	// TSID is never pre-seeded here: it must come from the SDT section's
	// own table_id_extension, not from a prior PAT decode.

	name := "Channel One"
	prov := "Provider"
	descLen := 3 + len(prov) + len(name)
	desc := make([]byte, 0, 2+descLen)
	desc = append(desc, 0x48, byte(descLen))
	desc = append(desc, 0x01) // service_type
	desc = append(desc, byte(len(prov)))
	desc = append(desc, []byte(prov)...)
	desc = append(desc, byte(len(name)))
	desc = append(desc, []byte(name)...)

	payload := []byte{0x00, 0x02, 0x00} // onid=2, reserved
	payload = append(payload, 0x00, 0x65) // sid=101
	payload = append(payload, 0x03)       // eit_schedule|eit_present_following
	payload = append(payload, byte(len(desc)>>8)&0x0F, byte(len(desc)))
	payload = append(payload, desc...)

	sec := section.Section{TableID: TidSDTActual, TableIDExtension: 7, Payload: payload}
	decoded, _ := ctx.DecodeSDT(nil, sec, false)
	if !decoded {
		t.Fatal("expected DecodeSDT to succeed")
	}
	svc := ctx.Service(101)
	if svc.ServiceName != name {
		t.Errorf("ServiceName = %q, want %q", svc.ServiceName, name)
	}
	if svc.ProviderName != prov {
		t.Errorf("ProviderName = %q, want %q", svc.ProviderName, prov)
	}
	if svc.TSID != 7 || svc.ONID != 2 {
		t.Errorf("TSID/ONID = %d/%d, want 7/2", svc.TSID, svc.ONID)
	}
	if !svc.EITPF || !svc.EITSched {
		t.Error("expected both EIT flags set")
	}
	if !svc.GotSDT {
		t.Error("expected GotSDT true once a service descriptor was decoded")
	}
}

func TestDecodeSDT_withoutServiceDescriptorLeavesGotSDTFalse(t *testing.T) {
	ctx, _ := newTestContext(model.TransponderSpec{}, nil)

	payload := []byte{0x00, 0x02, 0x00} // onid=2, reserved
	payload = append(payload, 0x00, 0x65) // sid=101
	payload = append(payload, 0x00)       // no eit flags
	payload = append(payload, 0x00, 0x00) // descriptors_loop_length=0, no descriptors at all

	sec := section.Section{TableID: TidSDTActual, TableIDExtension: 9, Payload: payload}
	decoded, _ := ctx.DecodeSDT(nil, sec, false)
	if !decoded {
		t.Fatal("expected DecodeSDT to succeed")
	}
	svc := ctx.Service(101)
	if svc.GotSDT {
		t.Error("expected GotSDT to stay false without a service descriptor")
	}
}

func TestDecodeNIT_skippedWhenUseNITFalse(t *testing.T) {
	ctx, _ := newTestContext(model.TransponderSpec{UseNIT: false}, nil)
	sec := section.Section{TableID: TidNITActual, Payload: []byte{0, 0, 0, 0}}
	decoded, _ := ctx.DecodeNIT(nil, sec, false)
	if !decoded {
		t.Fatal("expected DecodeNIT to report decoded even when skipped")
	}
}

func TestDecodeNIT_cableDescriptorEnqueuesTransponder(t *testing.T) {
	var enqueued []model.TransponderSpec
	ctx, _ := newTestContext(model.TransponderSpec{UseNIT: true}, func(s model.TransponderSpec) {
		enqueued = append(enqueued, s)
	})

	// cable_delivery_system_descriptor: freq BCD(4) + reserved(1) +
	// fec_outer(1, low nibble) + modulation(1) + symbol_rate BCD(3)+fec(nibble).
	cableDesc := []byte{
		0x03, 0x06, 0x00, 0x00, // frequency 306.00000 MHz (BCD *10000)
		0xFF, 0x01, // reserved, fec_outer
		0x02,                   // modulation = QAM (1..5 range expected)
		0x00, 0x27, 0x00, 0x30, // symbol_rate BCD -> 2700 kSym/s, fec in low nibble
	}
	descEntry := append([]byte{0x44, byte(len(cableDesc))}, cableDesc...) // tag + length + data

	nd := []byte{}                            // network descriptors loop: empty
	tsLoop := []byte{0x00, 0x01, 0x00, 0x02} // transport_stream_id, original_network_id
	tsLoop = append(tsLoop, byte(len(descEntry)>>8)&0x0F, byte(len(descEntry)))
	tsLoop = append(tsLoop, descEntry...)

	payload := []byte{byte(len(nd)>>8) & 0x0F, byte(len(nd))}
	payload = append(payload, nd...)
	payload = append(payload, byte(len(tsLoop)>>8)&0x0F, byte(len(tsLoop)))
	payload = append(payload, tsLoop...)

	sec := section.Section{TableID: TidNITActual, Payload: payload}
	decoded, _ := ctx.DecodeNIT(nil, sec, false)
	if !decoded {
		t.Fatal("expected DecodeNIT to succeed")
	}
	if len(enqueued) != 1 {
		t.Fatalf("expected 1 enqueued transponder, got %d", len(enqueued))
	}
	if enqueued[0].Delivery != model.DVBC {
		t.Errorf("Delivery = %v, want DVBC", enqueued[0].Delivery)
	}
}
