package tag

import (
	"encoding/hex"
	"strings"
	"time"
)

// MaxUIDLength is the largest identifier any supported protocol returns
// (a FeliCa IDm).
const MaxUIDLength = 8

// Protocol identifies the contactless protocol a tag was read with.
type Protocol int

const (
	FeliCa Protocol = iota
	ISO14443A
)

// String returns the display name used in detection reports.
func (p Protocol) String() string {
	switch p {
	case FeliCa:
		return "FeliCa"
	case ISO14443A:
		return "ISO14443A"
	default:
		return "Unknown"
	}
}

// UID is a tag identifier of 1..MaxUIDLength bytes.
type UID struct {
	b [MaxUIDLength]byte
	n uint8
}

// NewUID copies b into a UID, truncating anything past MaxUIDLength.
func NewUID(b []byte) UID {
	var u UID
	u.n = uint8(copy(u.b[:], b))
	return u
}

// Bytes returns the meaningful bytes of the identifier.
func (u UID) Bytes() []byte {
	return u.b[:u.n]
}

// Len returns the number of meaningful bytes.
func (u UID) Len() int {
	return int(u.n)
}

// IsZero reports whether the UID holds no bytes.
func (u UID) IsZero() bool {
	return u.n == 0
}

// String renders the identifier as uppercase hex pairs with no separators.
func (u UID) String() string {
	return strings.ToUpper(hex.EncodeToString(u.Bytes()))
}

// Event is a single successful poll.
type Event struct {
	Protocol Protocol
	UID      UID
	// ObservedAt is monotonic time since process start.
	ObservedAt time.Duration
}
