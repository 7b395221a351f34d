// Package mjd decodes and encodes the EN 300 468 Annex C Modified Julian
// Date + BCD time representation used throughout EIT. Local-time-zone
// correctness is explicitly out of scope (spec Non-goals); everything here
// is UTC.
package mjd

import "time"

// Decode converts a 16-bit Modified Julian Day into a Gregorian calendar
// date (UTC, midnight). Valid for the window 1 March 2000 .. 28 February
// 2100: a 16-bit value below 51604 (1 March 2000) is taken to have wrapped
// past 65535 and has 65536 added, so the window covers MJD
// 51604 .. 51604+65535.
func Decode(d uint16) time.Time {
	mjd := int(d)
	if mjd < 51604 {
		mjd += 65536
	}
	yp := int((float64(mjd) - 15078.2) / 365.25)
	mp := int((float64(mjd) - 14956.1 - float64(int(float64(yp)*365.25))) / 30.6001)
	day := mjd - 14956 - int(float64(yp)*365.25) - int(float64(mp)*30.6001)
	k := 0
	if mp == 14 || mp == 15 {
		k = 1
	}
	year := yp + k + 1900
	month := mp - 1 - k*12
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// Encode is the inverse of Decode: given a UTC date, returns the Modified
// Julian Day number per EN 300 468 Annex C, truncated to the 16 bits
// carried on the wire.
func Encode(t time.Time) uint16 {
	y := t.Year() - 1900
	m := int(t.Month())
	d := t.Day()
	l := 0
	if m == 1 || m == 2 {
		l = 1
	}
	mjd := 14956 + d + int(float64(y-l)*365.25) + int(float64(m+1+l*12)*30.6001)
	return uint16(mjd)
}

// BCDByte decodes one binary-coded-decimal byte (e.g. 0x23 -> 23). Returns
// false if either nibble is not a valid decimal digit (0-9).
func BCDByte(b byte) (value int, ok bool) {
	hi, lo := b>>4, b&0x0F
	if hi > 9 || lo > 9 {
		return 0, false
	}
	return int(hi)*10 + int(lo), true
}

// EncodeBCDByte is the inverse of BCDByte for v in 0..99.
func EncodeBCDByte(v int) byte {
	return byte((v/10)<<4 | (v % 10))
}

// Time decodes a 5-byte MJD(2)+BCD(hour,minute,second) start-time field.
// Returns the zero time if the bytes are the DVB "undefined" sentinel
// (0xFF 0xFF ...) or any BCD nibble is invalid.
func Time(b []byte) (time.Time, bool) {
	if len(b) < 5 {
		return time.Time{}, false
	}
	if b[0] == 0xFF && b[1] == 0xFF {
		return time.Time{}, false
	}
	d := Decode(uint16(b[0])<<8 | uint16(b[1]))
	h, ok1 := BCDByte(b[2])
	m, ok2 := BCDByte(b[3])
	s, ok3 := BCDByte(b[4])
	if !ok1 || !ok2 || !ok3 || h > 23 || m > 59 || s > 59 {
		return time.Time{}, false
	}
	return time.Date(d.Year(), d.Month(), d.Day(), h, m, s, 0, time.UTC), true
}

// BCDUint decodes a multi-byte BCD field (each nibble one decimal digit,
// most significant nibble first) as used by NIT delivery-system
// descriptors for frequency, symbol rate, and orbital position.
func BCDUint(b []byte) (value uint64, ok bool) {
	for _, byt := range b {
		hi, lo := byt>>4, byt&0x0F
		if hi > 9 || lo > 9 {
			return 0, false
		}
		value = value*100 + uint64(hi)*10 + uint64(lo)
	}
	return value, true
}

// Duration decodes a 3-byte BCD HHMMSS duration field.
func Duration(b []byte) (time.Duration, bool) {
	if len(b) < 3 {
		return 0, false
	}
	h, ok1 := BCDByte(b[0])
	m, ok2 := BCDByte(b[1])
	s, ok3 := BCDByte(b[2])
	if !ok1 || !ok2 || !ok3 {
		return 0, false
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second, true
}
