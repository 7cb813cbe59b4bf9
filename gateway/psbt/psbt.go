package psbt

import (
	"errors"
	"strings"
)

// TxInput is one input of a summarised transaction. UTXORef names the
// outpoint being spent.
type TxInput struct {
	UTXORef   string `json:"utxoRef"`
	ValueSats uint64 `json:"valueSats"`
}

// TxOutput is one output of a summarised transaction.
type TxOutput struct {
	Address   string `json:"address"`
	ValueSats uint64 `json:"valueSats"`
}

// TxSummary is the structural view of a transaction exchanged with the
// build/sign pipeline. Wire parsing and signing happen upstream; only the
// summaries cross this boundary.
type TxSummary struct {
	Inputs  []TxInput  `json:"inputs"`
	Outputs []TxOutput `json:"outputs"`
}

// feeDivisor caps the fee at 1% of total input value.
const feeDivisor = 100

var (
	ErrInputCountMismatch  = errors.New("psbt: signed input count differs from unsigned")
	ErrOutputCountMismatch = errors.New("psbt: signed output count differs from unsigned")
	ErrMissingUTXORef      = errors.New("psbt: input missing UTXO reference")
	ErrValueNotCovered     = errors.New("psbt: total input value must exceed total output value")
	ErrFeeTooHigh          = errors.New("psbt: fee exceeds 1% of input value")
)

// TotalInput sums input values.
func (t TxSummary) TotalInput() uint64 {
	var total uint64
	for _, in := range t.Inputs {
		total += in.ValueSats
	}
	return total
}

// TotalOutput sums output values.
func (t TxSummary) TotalOutput() uint64 {
	var total uint64
	for _, out := range t.Outputs {
		total += out.ValueSats
	}
	return total
}

// ValidateSigned checks a signed transaction summary against the unsigned
// template it was produced from: matching shapes, complete UTXO references,
// positive fee, and the fee cap.
func ValidateSigned(unsigned, signed TxSummary) error {
	if len(signed.Inputs) != len(unsigned.Inputs) {
		return ErrInputCountMismatch
	}
	if len(signed.Outputs) != len(unsigned.Outputs) {
		return ErrOutputCountMismatch
	}
	for _, in := range signed.Inputs {
		if strings.TrimSpace(in.UTXORef) == "" {
			return ErrMissingUTXORef
		}
	}
	totalIn := signed.TotalInput()
	totalOut := signed.TotalOutput()
	if totalIn <= totalOut {
		return ErrValueNotCovered
	}
	fee := totalIn - totalOut
	if fee > totalIn/feeDivisor {
		return ErrFeeTooHigh
	}
	return nil
}
