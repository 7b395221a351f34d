package mjd

import (
	"testing"
	"time"
)

func TestDecodeEncode_roundTrip(t *testing.T) {
	dates := []time.Time{
		time.Date(2000, time.March, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.December, 25, 0, 0, 0, 0, time.UTC),
		time.Date(2099, time.February, 28, 0, 0, 0, 0, time.UTC),
	}
	for _, d := range dates {
		mjd := Encode(d)
		got := Decode(mjd)
		if !got.Equal(d) {
			t.Errorf("round trip %v: Decode(Encode(d))=%v", d, got)
		}
	}
}

func TestBCDByte(t *testing.T) {
	cases := []struct {
		b     byte
		value int
		ok    bool
	}{
		{0x00, 0, true},
		{0x23, 23, true},
		{0x99, 99, true},
		{0xA0, 0, false},
		{0x0A, 0, false},
	}
	for _, c := range cases {
		v, ok := BCDByte(c.b)
		if v != c.value || ok != c.ok {
			t.Errorf("BCDByte(0x%02X) = (%d, %v), want (%d, %v)", c.b, v, ok, c.value, c.ok)
		}
	}
}

func TestEncodeBCDByte(t *testing.T) {
	if got := EncodeBCDByte(23); got != 0x23 {
		t.Errorf("EncodeBCDByte(23) = 0x%02X, want 0x23", got)
	}
}

func TestTime_undefinedSentinel(t *testing.T) {
	b := []byte{0xFF, 0xFF, 0x12, 0x30, 0x00}
	if _, ok := Time(b); ok {
		t.Fatal("expected Time to reject the 0xFF 0xFF undefined sentinel")
	}
}

func TestTime_decodesStartTime(t *testing.T) {
	day := time.Date(2024, time.December, 25, 0, 0, 0, 0, time.UTC)
	mjdVal := Encode(day)
	b := []byte{byte(mjdVal >> 8), byte(mjdVal), 0x20, 0x15, 0x30}
	got, ok := Time(b)
	if !ok {
		t.Fatal("expected Time to decode a valid field")
	}
	want := time.Date(2024, time.December, 25, 20, 15, 30, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Time() = %v, want %v", got, want)
	}
}

func TestTime_invalidBCDRejected(t *testing.T) {
	day := time.Date(2024, time.December, 25, 0, 0, 0, 0, time.UTC)
	mjdVal := Encode(day)
	b := []byte{byte(mjdVal >> 8), byte(mjdVal), 0xFA, 0x00, 0x00}
	if _, ok := Time(b); ok {
		t.Fatal("expected Time to reject an invalid BCD hour nibble")
	}
}

func TestBCDUint(t *testing.T) {
	v, ok := BCDUint([]byte{0x01, 0x23, 0x45, 0x67})
	if !ok || v != 1234567 {
		t.Errorf("BCDUint = (%d, %v), want (1234567, true)", v, ok)
	}
}

func TestDuration(t *testing.T) {
	d, ok := Duration([]byte{0x01, 0x30, 0x15})
	if !ok {
		t.Fatal("expected Duration to decode")
	}
	want := 1*time.Hour + 30*time.Minute + 15*time.Second
	if d != want {
		t.Errorf("Duration() = %v, want %v", d, want)
	}
}

func TestDuration_tooShort(t *testing.T) {
	if _, ok := Duration([]byte{0x01, 0x30}); ok {
		t.Fatal("expected Duration to reject a short buffer")
	}
}
