package reader

import (
	"bytes"
	"errors"
)

// Frame identifiers.
const (
	tfiHost  = 0xD4
	tfiChip  = 0xD5
	tfiError = 0x7F
)

var (
	ackFrame  = []byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00}
	startCode = []byte{0x00, 0xFF}

	// wakeUp is sent ahead of the first command on the HSU link to bring the
	// chip out of power down.
	wakeUp = []byte{0x55, 0x55, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
)

var (
	ErrBadFrame    = errors.New("pn532: malformed frame")
	ErrNoAck       = errors.New("pn532: command not acknowledged")
	ErrNoResponse  = errors.New("pn532: no response")
	ErrChipError   = errors.New("pn532: application error frame")
	errIncomplete  = errors.New("pn532: incomplete frame")
	errUnsupported = errors.New("pn532: unexpected response")
)

// encodeFrame builds a normal information frame for cmd.
func encodeFrame(cmd byte, params []byte) []byte {
	n := byte(len(params) + 2)
	f := make([]byte, 0, len(params)+9)
	f = append(f, 0x00, 0x00, 0xFF, n, ^n+1, tfiHost, cmd)
	f = append(f, params...)

	sum := byte(tfiHost) + cmd
	for _, b := range params {
		sum += b
	}
	return append(f, ^sum+1, 0x00)
}

// frame is a decoded chip-to-host frame.
type frame struct {
	ack  bool
	body []byte // command code followed by data, TFI stripped
}

// decodeFrame parses the first frame in buf. It returns the number of bytes
// consumed, including any garbage before the start code. errIncomplete means
// more input is needed; consumed is still valid for discarding garbage.
func decodeFrame(buf []byte) (frame, int, error) {
	i := bytes.Index(buf, startCode)
	if i < 0 {
		// Keep a trailing 0x00 that may begin the next start code.
		if n := len(buf); n > 0 && buf[n-1] == 0x00 {
			return frame{}, n - 1, errIncomplete
		}
		return frame{}, len(buf), errIncomplete
	}
	if len(buf) < i+4 {
		return frame{}, i, errIncomplete
	}

	n, lcs := buf[i+2], buf[i+3]
	if n == 0x00 && lcs == 0xFF {
		return frame{ack: true}, skipPostamble(buf, i+4), nil
	}
	if n == 0x00 || n+lcs != 0 {
		return frame{}, i + 2, ErrBadFrame
	}
	end := i + 4 + int(n)
	if len(buf) < end+1 {
		return frame{}, i, errIncomplete
	}

	data := buf[i+4 : end]
	var sum byte
	for _, b := range data {
		sum += b
	}
	consumed := skipPostamble(buf, end+1)
	if sum+buf[end] != 0 {
		return frame{}, consumed, ErrBadFrame
	}

	switch data[0] {
	case tfiChip:
		if len(data) < 2 {
			return frame{}, consumed, ErrBadFrame
		}
		body := make([]byte, len(data)-1)
		copy(body, data[1:])
		return frame{body: body}, consumed, nil
	case tfiError:
		return frame{}, consumed, ErrChipError
	default:
		return frame{}, consumed, ErrBadFrame
	}
}

func skipPostamble(buf []byte, at int) int {
	if at < len(buf) && buf[at] == 0x00 {
		return at + 1
	}
	return at
}
