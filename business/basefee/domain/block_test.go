package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/fd1az/gaswatch/internal/apperror"
)

func rawHeader(t *testing.T, number uint64, drop ...string) json.RawMessage {
	t.Helper()
	zeroHash := "0x" + strings.Repeat("0", 64)
	fields := map[string]any{
		"parentHash":       zeroHash,
		"sha3Uncles":       zeroHash,
		"miner":            "0x" + strings.Repeat("0", 40),
		"stateRoot":        zeroHash,
		"transactionsRoot": zeroHash,
		"receiptsRoot":     zeroHash,
		"logsBloom":        "0x" + strings.Repeat("0", 512),
		"difficulty":       "0x0",
		"number":           fmt.Sprintf("0x%x", number),
		"gasLimit":         "0x1c9c380",
		"gasUsed":          "0xe4e1c0",
		"timestamp":        "0x65920080",
		"extraData":        "0x",
		"baseFeePerGas":    "0x3b9aca00",
	}
	for _, name := range drop {
		delete(fields, name)
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("marshal header: %v", err)
	}
	return raw
}

func TestDecodeBlock(t *testing.T) {
	b, err := DecodeBlock(rawHeader(t, 42))
	if err != nil {
		t.Fatalf("DecodeBlock: %v", err)
	}
	if b.Number != 42 || b.GasLimit != 30_000_000 || b.GasUsed != 15_000_000 {
		t.Errorf("unexpected block %+v", b)
	}
	if b.BaseFee == nil || b.BaseFee.Int64() != 1_000_000_000 {
		t.Errorf("base fee = %v", b.BaseFee)
	}
}

func TestDecodeBlock_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  json.RawMessage
	}{
		{"missing_gas_limit", rawHeader(t, 42, "gasLimit")},
		{"missing_number", rawHeader(t, 42, "number")},
		{"not_an_object", json.RawMessage(`"0x2a"`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeBlock(tt.raw)
			if apperror.GetCode(err) != apperror.CodeMalformedHeader {
				t.Errorf("expected malformed header, got %v", err)
			}
		})
	}
}
