package udpsrc

import "testing"

func TestSplitDatagram_stripsHeaderAndSplitsPackets(t *testing.T) {
	buf := make([]byte, 12+2*188)
	buf[12] = 0x47
	buf[12+188] = 0x47
	packets := SplitDatagram(buf, len(buf))
	if len(packets) != 2 {
		t.Fatalf("got %d packets, want 2", len(packets))
	}
	if packets[0][0] != 0x47 || packets[1][0] != 0x47 {
		t.Error("expected both packets to start with the sync byte")
	}
}

func TestSplitDatagram_discardsTrailingPartialPacket(t *testing.T) {
	buf := make([]byte, 12+188+50)
	buf[12] = 0x47
	packets := SplitDatagram(buf, len(buf))
	if len(packets) != 1 {
		t.Fatalf("got %d packets, want 1 (trailing partial discarded)", len(packets))
	}
}

func TestSplitDatagram_tooShortYieldsNil(t *testing.T) {
	if got := SplitDatagram(make([]byte, 12), 12); got != nil {
		t.Errorf("expected nil for n<=12, got %v", got)
	}
	if got := SplitDatagram(make([]byte, 5), 5); got != nil {
		t.Errorf("expected nil for n<12, got %v", got)
	}
}

func TestSplitDatagram_emptyPayloadYieldsNoPackets(t *testing.T) {
	buf := make([]byte, 13)
	if got := SplitDatagram(buf, 13); len(got) != 0 {
		t.Errorf("expected no packets for a 1-byte payload, got %d", len(got))
	}
}
