// Package account implements the 32-byte chain account identifier and its
// SS58 textual form.
package account

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// Size is the length of an account identifier in bytes.
const Size = 32

// networkPrefix is the generic Substrate SS58 network identifier used when
// encoding. Decoding accepts any single-byte prefix.
const networkPrefix = 42

// ss58ChecksumPreimage prefixes the checksum input per the SS58 spec.
var ss58ChecksumPreimage = []byte("SS58PRE")

var (
	// ErrInvalidLength is returned when the raw identifier is not 32 bytes.
	ErrInvalidLength = errors.New("account id must be 32 bytes")
	// ErrInvalidEncoding is returned when the textual form does not decode.
	ErrInvalidEncoding = errors.New("invalid account id encoding")
	// ErrChecksumMismatch is returned when the SS58 checksum does not verify.
	ErrChecksumMismatch = errors.New("account id checksum mismatch")
)

// AccountID is an opaque 32-byte public-key identifier. Equality is byte
// equality; the zero value is a valid (if unlikely) identifier.
type AccountID [Size]byte

// FromBytes builds an AccountID from a raw 32-byte slice.
func FromBytes(b []byte) (AccountID, error) {
	var id AccountID
	if len(b) != Size {
		return id, fmt.Errorf("%w: got %d", ErrInvalidLength, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// Parse decodes the SS58 textual form of an account identifier.
func Parse(s string) (AccountID, error) {
	var id AccountID

	raw, err := base58.Decode(s)
	if err != nil {
		return id, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	// single-byte network prefix + 32-byte body + 2-byte checksum
	if len(raw) != 1+Size+2 {
		return id, fmt.Errorf("%w: decoded length %d", ErrInvalidEncoding, len(raw))
	}

	body := raw[:1+Size]
	sum := checksum(body)
	if !bytes.Equal(sum, raw[1+Size:]) {
		return id, ErrChecksumMismatch
	}

	copy(id[:], body[1:])
	return id, nil
}

// String encodes the identifier in SS58 form with the generic network prefix.
func (id AccountID) String() string {
	body := make([]byte, 0, 1+Size+2)
	body = append(body, networkPrefix)
	body = append(body, id[:]...)
	body = append(body, checksum(body)...)
	return base58.Encode(body)
}

// Bytes returns a copy of the raw identifier.
func (id AccountID) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, id[:])
	return out
}

// MarshalText implements encoding.TextMarshaler using the SS58 form.
func (id AccountID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *AccountID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// checksum computes the 2-byte SS58 checksum over prefix+body.
func checksum(body []byte) []byte {
	h, _ := blake2b.New512(nil)
	h.Write(ss58ChecksumPreimage)
	h.Write(body)
	return h.Sum(nil)[:2]
}
