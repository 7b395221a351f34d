package dvbcrc

import "testing"

// TestCompute_knownVector uses the CRC-32/MPEG-2 check value published for
// the ASCII string "123456789" (0x0376E6E7), the standard catalog vector
// for this exact polynomial/init/no-reflection combination.
func TestCompute_knownVector(t *testing.T) {
	got := Compute([]byte("123456789"))
	want := uint32(0x0376E6E7)
	if got != want {
		t.Errorf("Compute(%q) = 0x%08X, want 0x%08X", "123456789", got, want)
	}
}

func TestValid_appendedCRCPasses(t *testing.T) {
	body := []byte("123456789")
	crc := Compute(body)
	section := append(append([]byte{}, body...),
		byte(crc>>24), byte(crc>>16), byte(crc>>8), byte(crc))
	if !Valid(section) {
		t.Fatal("expected Valid to accept a correctly appended CRC")
	}
}

func TestValid_corruptedByteFails(t *testing.T) {
	body := []byte("123456789")
	crc := Compute(body)
	section := append(append([]byte{}, body...),
		byte(crc>>24), byte(crc>>16), byte(crc>>8), byte(crc))
	section[0] ^= 0xFF
	if Valid(section) {
		t.Fatal("expected Valid to reject a corrupted section")
	}
}

func TestValid_tooShort(t *testing.T) {
	if Valid([]byte{1, 2, 3}) {
		t.Fatal("expected Valid to reject a buffer shorter than the CRC trailer")
	}
}
