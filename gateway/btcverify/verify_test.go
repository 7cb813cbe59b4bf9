package btcverify

import (
	"errors"
	"strings"
	"testing"
	"time"

	protoerr "bollar/core/errors"
)

const validTxHash = "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b"

func newTestVerifier(t *testing.T) *Verifier {
	t.Helper()
	v := NewVerifier()
	v.SetClock(func() time.Time { return time.Unix(1_700_000_000, 0).UTC() })
	return v
}

func TestClassifyAddress(t *testing.T) {
	cases := []struct {
		name    string
		address string
		kind    AddressKind
		wantErr bool
	}{
		{name: "p2pkh", address: "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", kind: AddressP2PKH},
		{name: "p2sh", address: "3J98t1WpEZ73CNmQviecrnyiWrnqRhWNLy", kind: AddressP2SH},
		{name: "bech32", address: "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", kind: AddressBech32},
		{name: "bad checksum", address: "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNb", wantErr: true},
		{name: "wrong length legacy", address: "1A1zP1eP5QGefi2", wantErr: true},
		{name: "uppercase bech32", address: "BC1QW508D6QEJXTDG4Y5R3ZARVARY0C5XW7KV8F3T4", wantErr: true},
		{name: "bech32 too short", address: "bc1qw508d", wantErr: true},
		{name: "unknown prefix", address: "ltc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", wantErr: true},
		{name: "empty", address: "", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			kind, err := ClassifyAddress(tc.address)
			if tc.wantErr {
				if !errors.Is(err, protoerr.ErrInvalidAddress) {
					t.Fatalf("expected InvalidAddress, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("classify: %v", err)
			}
			if kind != tc.kind {
				t.Fatalf("expected %s, got %s", tc.kind, kind)
			}
		})
	}
}

func TestVerifyAcceptsValidDeposit(t *testing.T) {
	v := newTestVerifier(t)
	observed := time.Unix(1_700_000_000, 0).Add(-time.Hour).UTC()

	tx, err := v.Verify(strings.ToUpper(validTxHash), 1_000_000, "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", 6, observed)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if tx.TxHash != validTxHash {
		t.Fatalf("hash must be normalised to lowercase: %s", tx.TxHash)
	}
	if tx.AddressKind != AddressP2PKH {
		t.Fatalf("unexpected address kind: %s", tx.AddressKind)
	}
	if tx.AmountSats != 1_000_000 || tx.Confirmations != 6 {
		t.Fatalf("unexpected record: %+v", tx)
	}
}

func TestVerifyRejections(t *testing.T) {
	v := newTestVerifier(t)
	observed := time.Unix(1_700_000_000, 0).Add(-time.Hour).UTC()
	address := "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"

	if _, err := v.Verify("deadbeef", 1_000_000, address, 6, observed); !errors.Is(err, ErrInvalidTxHash) {
		t.Fatalf("expected InvalidTxHash for short hash, got %v", err)
	}
	badHex := strings.Replace(validTxHash, "4", "g", 1)
	if _, err := v.Verify(badHex, 1_000_000, address, 6, observed); !errors.Is(err, ErrInvalidTxHash) {
		t.Fatalf("expected InvalidTxHash for non-hex, got %v", err)
	}
	if _, err := v.Verify(validTxHash, 0, address, 6, observed); !errors.Is(err, protoerr.ErrInvalidAmount) {
		t.Fatalf("expected InvalidAmount, got %v", err)
	}
	if _, err := v.Verify(validTxHash, 1_000_000, address, 5, observed); !errors.Is(err, ErrInsufficientConfirmations) {
		t.Fatalf("expected InsufficientConfirmations, got %v", err)
	}
	old := time.Unix(1_700_000_000, 0).Add(-25 * time.Hour).UTC()
	if _, err := v.Verify(validTxHash, 1_000_000, address, 6, old); !errors.Is(err, ErrTxTooOld) {
		t.Fatalf("expected TxTooOld, got %v", err)
	}
	if _, err := v.Verify(validTxHash, 1_000_000, address, 6, time.Time{}); !errors.Is(err, ErrTxTooOld) {
		t.Fatalf("expected TxTooOld for zero timestamp, got %v", err)
	}
	if _, err := v.Verify(validTxHash, 1_000_000, "not-an-address", 6, observed); !errors.Is(err, protoerr.ErrInvalidAddress) {
		t.Fatalf("expected InvalidAddress, got %v", err)
	}
}
