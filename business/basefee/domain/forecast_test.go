package domain

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/gaswatch/internal/apperror"
)

func gwei(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000))
}

func TestForecast(t *testing.T) {
	tests := []struct {
		name            string
		prev            *big.Int
		gasUsed         uint64
		gasLimit        uint64
		wantUtilization string
		wantNext        string // wei
	}{
		{
			name:            "half_full_unchanged",
			prev:            gwei(1),
			gasUsed:         15_000_000,
			gasLimit:        30_000_000,
			wantUtilization: "0.5",
			wantNext:        "1000000000",
		},
		{
			name:            "full_block_plus_12_5_percent",
			prev:            gwei(1),
			gasUsed:         30_000_000,
			gasLimit:        30_000_000,
			wantUtilization: "1",
			wantNext:        "1125000000",
		},
		{
			name:            "empty_block_minus_12_5_percent",
			prev:            gwei(1),
			gasUsed:         0,
			gasLimit:        30_000_000,
			wantUtilization: "0",
			wantNext:        "875000000",
		},
		{
			name:            "three_quarters_plus_6_25_percent",
			prev:            gwei(40),
			gasUsed:         22_500_000,
			gasLimit:        30_000_000,
			wantUtilization: "0.75",
			wantNext:        "42500000000",
		},
		{
			name:            "over_full_tolerated",
			prev:            gwei(8),
			gasUsed:         45_000_000,
			gasLimit:        30_000_000,
			wantUtilization: "1.5",
			wantNext:        "10000000000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Forecast(tt.prev, tt.gasUsed, tt.gasLimit)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			wantU := decimal.RequireFromString(tt.wantUtilization)
			if !got.Utilization.Equal(wantU) {
				t.Errorf("utilization = %s, want %s", got.Utilization, wantU)
			}

			wantNext := decimal.RequireFromString(tt.wantNext)
			if !got.NextBaseFee.Equal(wantNext) {
				t.Errorf("next base fee = %s, want %s", got.NextBaseFee, wantNext)
			}
		})
	}
}

func TestForecast_ZeroGasLimit(t *testing.T) {
	for _, used := range []uint64{0, 1, 30_000_000} {
		_, err := Forecast(gwei(1), used, 0)
		if err == nil {
			t.Fatalf("gasUsed=%d: expected error for zero gas limit", used)
		}
		if !errors.Is(err, apperror.New(apperror.CodeMalformedHeader)) {
			t.Errorf("gasUsed=%d: expected MALFORMED_HEADER, got %v", used, err)
		}
	}
}

func TestForecast_MissingBaseFee(t *testing.T) {
	_, err := Forecast(nil, 1, 2)
	if apperror.GetCode(err) != apperror.CodeMalformedHeader {
		t.Fatalf("expected MALFORMED_HEADER, got %v", err)
	}
}

func TestForecaster_ForecastBlock(t *testing.T) {
	block := &Block{
		Number:    20_000_000,
		Timestamp: time.Unix(1_700_000_000, 0),
		GasUsed:   15_000_000,
		GasLimit:  30_000_000,
		BaseFee:   gwei(1),
	}

	t.Run("mainnet_adds_protocol_value", func(t *testing.T) {
		res, err := NewForecaster(1).ForecastBlock(block)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.ProtocolBaseFee == nil {
			t.Fatal("expected protocol base fee on mainnet")
		}
		// At exactly the gas target the protocol keeps the fee unchanged.
		if res.ProtocolBaseFee.Cmp(gwei(1)) != 0 {
			t.Errorf("protocol base fee = %s, want %s", res.ProtocolBaseFee, gwei(1))
		}
	})

	t.Run("unknown_chain_linear_only", func(t *testing.T) {
		res, err := NewForecaster(424242).ForecastBlock(block)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.ProtocolBaseFee != nil {
			t.Errorf("expected no protocol value, got %s", res.ProtocolBaseFee)
		}
		if !res.NextBaseFeeGwei().Equal(decimal.NewFromInt(1)) {
			t.Errorf("next fee gwei = %s, want 1", res.NextBaseFeeGwei())
		}
	})

	t.Run("zero_limit_names_block", func(t *testing.T) {
		bad := *block
		bad.GasLimit = 0
		_, err := NewForecaster(1).ForecastBlock(&bad)
		if apperror.GetCode(err) != apperror.CodeMalformedHeader {
			t.Fatalf("expected MALFORMED_HEADER, got %v", err)
		}
		if got := apperror.Reason(err); got != "block 20000000: gas limit is zero" {
			t.Errorf("unexpected reason %q", got)
		}
	})
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to ConnectionState
		want     bool
	}{
		{StateDisconnected, StateConnecting, true},
		{StateConnecting, StateLive, true},
		{StateConnecting, StateRecovering, true},
		{StateLive, StateLive, true},
		{StateLive, StateRecovering, true},
		{StateRecovering, StateConnecting, true},
		{StateRecovering, StateLive, false},
		{StateDisconnected, StateLive, false},
		{StateLive, StateConnecting, false},
		{StateLive, StateDisconnected, true},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
