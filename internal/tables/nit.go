package tables

import (
	"log"

	"github.com/stpf99/mini-satip-scan/internal/bitreader"
	"github.com/stpf99/mini-satip-scan/internal/filter"
	"github.com/stpf99/mini-satip-scan/internal/mjd"
	"github.com/stpf99/mini-satip-scan/internal/model"
	"github.com/stpf99/mini-satip-scan/internal/section"
)

const (
	descSatellite   = 0x43
	descCable       = 0x44
	descTerrestrial = 0x83
	descT2          = 0x87
)

// DecodeNIT implements the NIT decoder. Only
// runs when the current transponder requested UseNIT; each decoded
// delivery-system descriptor is offered to the transponder queue.
func (c *Context) DecodeNIT(f *filter.Filter, sec section.Section, _ bool) (decoded bool, isEIT bool) {
	if !c.Spec.UseNIT {
		return true, false
	}

	p := sec.Payload
	if len(p) < 2 {
		return false, false
	}
	ndLen := int(uint16(p[0]&0x0F))<<8 | int(p[1])
	pos := 2 + ndLen
	if pos+2 > len(p) {
		return false, false
	}
	tsLoopLen := int(uint16(p[pos]&0x0F))<<8 | int(p[pos+1])
	pos += 2
	end := pos + tsLoopLen
	if end > len(p) {
		end = len(p)
	}

	for pos+6 <= end {
		// transport_stream_id(2), original_network_id(2) are informational
		// only here; the physical identity comes from the descriptors.
		pos += 4
		descLen := int(uint16(p[pos]&0x0F))<<8 | int(p[pos+1])
		pos += 2
		descEnd := pos + descLen
		if descEnd > end {
			descEnd = end
		}

		dpos := pos
		for dpos+2 <= descEnd {
			tag := p[dpos]
			dlen := int(p[dpos+1])
			dpos += 2
			if dpos+dlen > descEnd {
				break
			}
			if spec, ok := decodeDeliveryDescriptor(tag, p[dpos:dpos+dlen]); ok {
				c.Spec2Enqueue(spec)
			}
			dpos += dlen
		}
		pos = descEnd
	}

	if c.Stats != nil {
		c.Stats.SectionDecoded()
	}
	return true, false
}

// Spec2Enqueue offers a NIT-decoded spec to the transponder queue.
func (c *Context) Spec2Enqueue(spec model.TransponderSpec) {
	if c.Enqueue != nil {
		c.Enqueue(spec)
	}
}

func decodeDeliveryDescriptor(tag byte, d []byte) (model.TransponderSpec, bool) {
	switch tag {
	case descSatellite:
		return decodeSatellite(d)
	case descCable:
		return decodeCable(d)
	case descTerrestrial, descT2:
		return decodeTerrestrial(d)
	}
	return model.TransponderSpec{}, false
}

func decodeSatellite(d []byte) (model.TransponderSpec, bool) {
	if len(d) < 11 {
		return model.TransponderSpec{}, false
	}
	freq, ok := mjd.BCDUint(d[0:4])
	if !ok {
		return model.TransponderSpec{}, false
	}
	orbital, _ := mjd.BCDUint(d[4:6])

	br := bitreader.New(d[6:7])
	eastWest := br.Bool()
	pol := byte(br.Bits(2))
	rollOff := byte(br.Bits(2))
	deliveryBit := byte(br.Bits(1))
	modulation := byte(br.Bits(2))
	if br.Err != nil {
		return model.TransponderSpec{}, false
	}

	srDigits, ok := mjd.BCDUint(d[7:10])
	if !ok {
		return model.TransponderSpec{}, false
	}
	srDigits = srDigits*10 + uint64(d[10]>>4)
	fec := d[10] & 0x0F

	delivery := model.DVBS
	if deliveryBit == 1 {
		delivery = model.DVBS2
	}

	spec := model.TransponderSpec{
		Delivery:        delivery,
		FrequencyMHz:    int(freq / 100),
		Polarization:    canonicalPolarization(pol),
		OrbitalPosition: int(orbital),
		RollOff:         int(rollOff),
		Modulation:      int(modulation),
		SymbolRate:      int(srDigits / 10),
		FEC:             int(fec),
	}
	if !eastWest {
		spec.OrbitalPosition = -spec.OrbitalPosition
	}
	return spec, true
}

// canonicalPolarization canonicalizes the wire polarization value via
// `1 ^ pol`: H/V/L/R.
func canonicalPolarization(pol byte) model.Polarization {
	switch 1 ^ pol {
	case 0:
		return model.PolH
	case 1:
		return model.PolV
	case 2:
		return model.PolL
	case 3:
		return model.PolR
	}
	return model.PolNone
}

func decodeCable(d []byte) (model.TransponderSpec, bool) {
	if len(d) < 11 {
		return model.TransponderSpec{}, false
	}
	freq, ok := mjd.BCDUint(d[0:4])
	if !ok {
		return model.TransponderSpec{}, false
	}
	modulation := d[6]

	srDigits, ok := mjd.BCDUint(d[7:10])
	if !ok {
		return model.TransponderSpec{}, false
	}
	srDigits = srDigits*10 + uint64(d[10]>>4)
	fec := d[10] & 0x0F

	freqMHz := int(freq / 10000)
	freqFrac := int(freq % 10000)
	srKsym := int(srDigits / 10)

	// Sanity filter: freq 50..1000 MHz, sr 1000..7100 kS,
	// mod 1..5.
	if freqMHz < 50 || freqMHz > 1000 || srKsym < 1000 || srKsym > 7100 || modulation < 1 || modulation > 5 {
		log.Printf("nit: cable descriptor failed sanity check freq=%d sr=%d mod=%d, raw=% x", freqMHz, srKsym, modulation, d)
		return model.TransponderSpec{}, false
	}

	return model.TransponderSpec{
		Delivery:     model.DVBC,
		FrequencyMHz: freqMHz,
		FreqFrac:     freqFrac,
		Modulation:   int(modulation),
		SymbolRate:   srKsym,
		FEC:          int(fec),
	}, true
}

func decodeTerrestrial(d []byte) (model.TransponderSpec, bool) {
	if len(d) < 6 {
		return model.TransponderSpec{}, false
	}
	freq, ok := mjd.BCDUint(d[0:4])
	if !ok {
		return model.TransponderSpec{}, false
	}
	// bandwidth lives in the top 2 bits of byte 4; transmission_mode and
	// guard_interval live in the top 6 bits of the following byte 5.
	br := bitreader.New(d[4:6])
	bandwidth := byte(br.Bits(2))
	br.Skip(6)
	tmode := byte(br.Bits(3))
	guard := byte(br.Bits(3))
	if br.Err != nil {
		return model.TransponderSpec{}, false
	}

	return model.TransponderSpec{
		Delivery:         model.DVBT,
		FrequencyMHz:     int(freq / 100),
		BandwidthMHz:     int(bandwidth),
		TransmissionMode: int(tmode),
		GuardInterval:    int(guard),
	}, true
}
