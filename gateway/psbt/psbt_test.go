package psbt

import (
	"errors"
	"testing"
)

func sampleUnsigned() TxSummary {
	return TxSummary{
		Inputs: []TxInput{
			{UTXORef: "4a5e1e4b:0", ValueSats: 600_000},
			{UTXORef: "9b0fc92b:1", ValueSats: 400_000},
		},
		Outputs: []TxOutput{
			{Address: "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", ValueSats: 995_000},
		},
	}
}

func TestValidateSignedAccepts(t *testing.T) {
	unsigned := sampleUnsigned()
	signed := sampleUnsigned()
	if err := ValidateSigned(unsigned, signed); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateSignedShapeMismatches(t *testing.T) {
	unsigned := sampleUnsigned()

	signed := sampleUnsigned()
	signed.Inputs = signed.Inputs[:1]
	if err := ValidateSigned(unsigned, signed); !errors.Is(err, ErrInputCountMismatch) {
		t.Fatalf("expected InputCountMismatch, got %v", err)
	}

	signed = sampleUnsigned()
	signed.Outputs = append(signed.Outputs, TxOutput{Address: "x", ValueSats: 1})
	if err := ValidateSigned(unsigned, signed); !errors.Is(err, ErrOutputCountMismatch) {
		t.Fatalf("expected OutputCountMismatch, got %v", err)
	}

	signed = sampleUnsigned()
	signed.Inputs[1].UTXORef = "  "
	if err := ValidateSigned(unsigned, signed); !errors.Is(err, ErrMissingUTXORef) {
		t.Fatalf("expected MissingUTXORef, got %v", err)
	}
}

func TestValidateSignedValueRules(t *testing.T) {
	unsigned := sampleUnsigned()

	// Outputs equal to inputs leave no fee.
	signed := sampleUnsigned()
	signed.Outputs[0].ValueSats = 1_000_000
	if err := ValidateSigned(unsigned, signed); !errors.Is(err, ErrValueNotCovered) {
		t.Fatalf("expected ValueNotCovered, got %v", err)
	}

	// Fee of 20,000 on 1,000,000 input exceeds the 1% cap.
	signed = sampleUnsigned()
	signed.Outputs[0].ValueSats = 980_000
	if err := ValidateSigned(unsigned, signed); !errors.Is(err, ErrFeeTooHigh) {
		t.Fatalf("expected FeeTooHigh, got %v", err)
	}

	// Exactly 1% passes.
	signed = sampleUnsigned()
	signed.Outputs[0].ValueSats = 990_000
	if err := ValidateSigned(unsigned, signed); err != nil {
		t.Fatalf("boundary fee must be accepted: %v", err)
	}
}

func TestTotals(t *testing.T) {
	tx := sampleUnsigned()
	if tx.TotalInput() != 1_000_000 {
		t.Fatalf("unexpected total input: %d", tx.TotalInput())
	}
	if tx.TotalOutput() != 995_000 {
		t.Fatalf("unexpected total output: %d", tx.TotalOutput())
	}
}
