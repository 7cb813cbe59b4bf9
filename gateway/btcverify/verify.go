package btcverify

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcutil/base58"
	"github.com/btcsuite/btcutil/bech32"

	protoerr "bollar/core/errors"
)

// AddressKind identifies the accepted Bitcoin address families.
type AddressKind string

const (
	AddressP2PKH  AddressKind = "p2pkh"
	AddressP2SH   AddressKind = "p2sh"
	AddressBech32 AddressKind = "bech32"
)

const (
	// MinConfirmations is the confirmation depth required before a deposit
	// transaction is trusted.
	MinConfirmations = 6
	// MaxTxAge bounds how long ago the transaction may have been observed.
	MaxTxAge = 24 * time.Hour

	txHashLength     = 64
	legacyAddrLength = 34
	bech32MinLength  = 39
	bech32MaxLength  = 62
	p2pkhVersionByte = 0x00
	p2shVersionByte  = 0x05
)

var (
	// ErrInsufficientConfirmations rejects transactions below the depth floor.
	ErrInsufficientConfirmations = errors.New("btc: insufficient confirmations")
	// ErrTxTooOld rejects transactions observed beyond the age window.
	ErrTxTooOld = errors.New("btc: transaction observed too long ago")
	// ErrInvalidTxHash rejects malformed transaction hashes.
	ErrInvalidTxHash = errors.New("btc: invalid transaction hash")
)

// VerifiedTx is the authenticated deposit handed to the CDP registry.
type VerifiedTx struct {
	TxHash        string      `json:"txHash"`
	AmountSats    uint64      `json:"amountSats"`
	Address       string      `json:"address"`
	AddressKind   AddressKind `json:"addressKind"`
	Confirmations uint32      `json:"confirmations"`
	ObservedAt    time.Time   `json:"observedAt"`
}

// Verifier authenticates inbound deposit transactions against the protocol's
// acceptance rules. The wire-level transaction itself is fetched and parsed
// upstream; this validates the reported facts.
type Verifier struct {
	now func() time.Time
}

// NewVerifier constructs a verifier using the wall clock.
func NewVerifier() *Verifier {
	return &Verifier{now: func() time.Time { return time.Now().UTC() }}
}

// SetClock overrides the time source for deterministic tests.
func (v *Verifier) SetClock(now func() time.Time) {
	if v == nil || now == nil {
		return
	}
	v.now = now
}

// Verify checks hash format, confirmation depth, observation age, and address
// format, returning the verified record on success.
func (v *Verifier) Verify(txHash string, amountSats uint64, address string, confirmations uint32, observedAt time.Time) (*VerifiedTx, error) {
	if v == nil {
		return nil, fmt.Errorf("btc: verifier not configured")
	}
	hash := strings.ToLower(strings.TrimSpace(txHash))
	if len(hash) != txHashLength || !isHex(hash) {
		return nil, ErrInvalidTxHash
	}
	if amountSats == 0 {
		return nil, protoerr.ErrInvalidAmount
	}
	if confirmations < MinConfirmations {
		return nil, fmt.Errorf("%w: %d < %d", ErrInsufficientConfirmations, confirmations, MinConfirmations)
	}
	now := v.now()
	if observedAt.IsZero() || now.Sub(observedAt) > MaxTxAge {
		return nil, ErrTxTooOld
	}
	kind, err := ClassifyAddress(address)
	if err != nil {
		return nil, err
	}
	return &VerifiedTx{
		TxHash:        hash,
		AmountSats:    amountSats,
		Address:       strings.TrimSpace(address),
		AddressKind:   kind,
		Confirmations: confirmations,
		ObservedAt:    observedAt,
	}, nil
}

// ClassifyAddress validates an address against the three accepted families:
// P2PKH (1..., base58check version 0), P2SH (3..., base58check version 5),
// and Bech32 (bc1..., lowercase).
func ClassifyAddress(address string) (AddressKind, error) {
	addr := strings.TrimSpace(address)
	switch {
	case strings.HasPrefix(addr, "bc1"):
		if len(addr) < bech32MinLength || len(addr) > bech32MaxLength {
			return "", protoerr.ErrInvalidAddress
		}
		if addr != strings.ToLower(addr) {
			return "", protoerr.ErrInvalidAddress
		}
		hrp, _, err := bech32.Decode(addr)
		if err != nil || hrp != "bc" {
			return "", protoerr.ErrInvalidAddress
		}
		return AddressBech32, nil
	case strings.HasPrefix(addr, "1"), strings.HasPrefix(addr, "3"):
		if len(addr) != legacyAddrLength {
			return "", protoerr.ErrInvalidAddress
		}
		payload, version, err := base58.CheckDecode(addr)
		if err != nil || len(payload) != 20 {
			return "", protoerr.ErrInvalidAddress
		}
		switch version {
		case p2pkhVersionByte:
			return AddressP2PKH, nil
		case p2shVersionByte:
			return AddressP2SH, nil
		}
		return "", protoerr.ErrInvalidAddress
	default:
		return "", protoerr.ErrInvalidAddress
	}
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	return true
}
