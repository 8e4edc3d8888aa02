package account

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		fill byte
	}{
		{"zero", 0x00},
		{"ones", 0x01},
		{"high", 0xff},
		{"mixed", 0x5a},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := bytes.Repeat([]byte{tt.fill}, Size)
			id, err := FromBytes(raw)
			if err != nil {
				t.Fatal(err)
			}

			encoded := id.String()
			decoded, err := Parse(encoded)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", encoded, err)
			}
			if decoded != id {
				t.Errorf("round trip mismatch: %v != %v", decoded, id)
			}
		})
	}
}

func TestParseWellKnown(t *testing.T) {
	// Alice's sr25519 dev account on the generic network.
	const alice = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"

	id, err := Parse(alice)
	if err != nil {
		t.Fatalf("Parse(alice) error: %v", err)
	}
	if got := id.String(); got != alice {
		t.Errorf("String() = %q, want %q", got, alice)
	}
}

func TestParseErrors(t *testing.T) {
	valid, _ := FromBytes(bytes.Repeat([]byte{7}, Size))
	encoded := valid.String()

	// Flip a character in the body to break the checksum. Pick a position
	// whose replacement stays in the base58 alphabet.
	corrupt := []byte(encoded)
	if corrupt[10] == 'x' {
		corrupt[10] = 'y'
	} else {
		corrupt[10] = 'x'
	}

	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"not base58", "0OIl"},
		{"too short", "5Grwva"},
		{"checksum", string(corrupt)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.input); err == nil {
				t.Errorf("Parse(%q) succeeded, want error", tt.input)
			}
		})
	}
}

func TestFromBytesLength(t *testing.T) {
	if _, err := FromBytes(make([]byte, 31)); err == nil {
		t.Error("FromBytes(31 bytes) succeeded, want error")
	}
	if _, err := FromBytes(make([]byte, 33)); err == nil {
		t.Error("FromBytes(33 bytes) succeeded, want error")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	id, _ := FromBytes(bytes.Repeat([]byte{0xab}, Size))

	data, err := json.Marshal(id)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), `"`) {
		t.Fatalf("expected string encoding, got %s", data)
	}

	var decoded AccountID
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded != id {
		t.Errorf("JSON round trip mismatch")
	}
}
