package bidding

import (
	"encoding/hex"
	"math/big"
	"strings"
	"testing"

	"github.com/evcraddock/propchain/internal/apperr"
)

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1", "1000000000000000000"},
		{"0.5", "500000000000000000"},
		{" 2.25 ", "2250000000000000000"},
		{"0.000000000000000001", "1"},
		{"1.000000000000000000", "1000000000000000000"},
		{"1e58", "1" + strings.Repeat("0", 76)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ToBaseUnits(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestToBaseUnitsErrors(t *testing.T) {
	tests := []struct {
		in   string
		code string
	}{
		{"", "missing_fields"},
		{"   ", "missing_fields"},
		{"abc", "invalid_amount"},
		{"0", "invalid_amount"},
		{"-3", "invalid_amount"},
		{"1.0000000000000000001", "invalid_amount"},
		{"1e10000000", "invalid_amount"},
		{"1e-10000000", "invalid_amount"},
		{"1e60", "invalid_amount"},
		{"2" + strings.Repeat("0", 59), "invalid_amount"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := ToBaseUnits(tt.in)
			if !apperr.Is(err, apperr.KindValidation) {
				t.Fatalf("error = %v, want validation", err)
			}
			if apperr.CodeOf(err) != tt.code {
				t.Errorf("code = %q, want %q", apperr.CodeOf(err), tt.code)
			}
		})
	}
}

func TestFormatBaseUnits(t *testing.T) {
	n, _ := new(big.Int).SetString("1500000000000000000", 10)
	if got := FormatBaseUnits(n); got != "1.5" {
		t.Errorf("got %q, want 1.5", got)
	}
	if got := FormatBaseUnits(nil); got != "0" {
		t.Errorf("got %q, want 0", got)
	}
}

func TestSameIdentity(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"0x5B38Da6a701c568545dCfcB03FcB875f56beddC4", "0x5b38da6a701c568545dcfcb03fcb875f56beddc4", true},
		{" User@Example.com ", "user@example.com", true},
		{"0x5B38Da6a701c568545dCfcB03FcB875f56beddC4", "0xAb8483F64d9C6d1EcF9b849Ae677dD3315835cb2", false},
		{"", "", false},
		{"alice", "bob", false},
	}

	for _, tt := range tests {
		if got := SameIdentity(tt.a, tt.b); got != tt.want {
			t.Errorf("SameIdentity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestIDHash(t *testing.T) {
	// keccak256("") is a well-known constant.
	got := IDHash("")
	want := "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"
	if hex.EncodeToString(got[:]) != want {
		t.Errorf("IDHash(\"\") = %x", got)
	}
	if IDHash("a") == IDHash("b") {
		t.Error("distinct ids should hash differently")
	}
}
