package reader

import (
	"bytes"
	"errors"
	"testing"
)

// chipFrame builds a chip-to-host information frame.
func chipFrame(body ...byte) []byte {
	data := append([]byte{tfiChip}, body...)
	n := byte(len(data))
	f := []byte{0x00, 0x00, 0xFF, n, ^n + 1}
	f = append(f, data...)
	var sum byte
	for _, b := range data {
		sum += b
	}
	return append(f, ^sum+1, 0x00)
}

func TestEncodeFrame(t *testing.T) {
	got := encodeFrame(cmdGetFirmwareVersion, nil)
	want := []byte{0x00, 0x00, 0xFF, 0x02, 0xFE, 0xD4, 0x02, 0x2A, 0x00}
	if !bytes.Equal(got, want) {
		t.Fatalf("encodeFrame = % x, want % x", got, want)
	}

	got = encodeFrame(cmdSAMConfiguration, []byte{0x01, 0x14, 0x01})
	want = []byte{0x00, 0x00, 0xFF, 0x05, 0xFB, 0xD4, 0x14, 0x01, 0x14, 0x01, 0x02, 0x00}
	if !bytes.Equal(got, want) {
		t.Fatalf("encodeFrame = % x, want % x", got, want)
	}
}

func TestDecodeAck(t *testing.T) {
	f, n, err := decodeFrame(ackFrame)
	if err != nil || !f.ack || n != len(ackFrame) {
		t.Fatalf("expected ack consuming %d bytes, got %+v %d %v", len(ackFrame), f, n, err)
	}
}

func TestDecodeResponseAfterGarbage(t *testing.T) {
	buf := append([]byte{0x55, 0x13}, chipFrame(0x03, 0x32, 0x01, 0x06, 0x07)...)
	f, n, err := decodeFrame(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("expected to consume %d bytes, got %d", len(buf), n)
	}
	if !bytes.Equal(f.body, []byte{0x03, 0x32, 0x01, 0x06, 0x07}) {
		t.Fatalf("unexpected body % x", f.body)
	}
}

func TestDecodeAckThenResponse(t *testing.T) {
	resp := chipFrame(0x4B, 0x00)
	buf := append(append([]byte(nil), ackFrame...), resp...)

	f, n, err := decodeFrame(buf)
	if err != nil || !f.ack {
		t.Fatalf("expected ack first, got %+v %v", f, err)
	}
	f, _, err = decodeFrame(buf[n:])
	if err != nil || !bytes.Equal(f.body, []byte{0x4B, 0x00}) {
		t.Fatalf("expected response, got %+v %v", f, err)
	}
}

func TestDecodeIncomplete(t *testing.T) {
	full := chipFrame(0x03, 0x32)
	for i := 0; i < len(full)-1; i++ {
		_, _, err := decodeFrame(full[:i])
		if !errors.Is(err, errIncomplete) {
			t.Fatalf("prefix of %d bytes: expected incomplete, got %v", i, err)
		}
	}
}

func TestDecodeKeepsTrailingZero(t *testing.T) {
	_, n, err := decodeFrame([]byte{0x12, 0x34, 0x00})
	if !errors.Is(err, errIncomplete) || n != 2 {
		t.Fatalf("expected to keep trailing zero, consumed %d err %v", n, err)
	}
}

func TestDecodeBadChecksum(t *testing.T) {
	f := chipFrame(0x03, 0x32)
	f[len(f)-2]++
	if _, _, err := decodeFrame(f); !errors.Is(err, ErrBadFrame) {
		t.Fatalf("expected bad frame, got %v", err)
	}

	f = chipFrame(0x03, 0x32)
	f[4]++
	if _, _, err := decodeFrame(f); !errors.Is(err, ErrBadFrame) {
		t.Fatalf("expected bad length checksum, got %v", err)
	}
}

func TestDecodeErrorFrame(t *testing.T) {
	buf := []byte{0x00, 0x00, 0xFF, 0x01, 0xFF, 0x7F, 0x81, 0x00}
	if _, _, err := decodeFrame(buf); !errors.Is(err, ErrChipError) {
		t.Fatalf("expected chip error, got %v", err)
	}
}
