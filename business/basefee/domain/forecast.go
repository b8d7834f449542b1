package domain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/consensus/misc/eip1559"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"github.com/shopspring/decimal"

	"github.com/fd1az/gaswatch/internal/apperror"
)

// EIP-1559 linear update constants.
var (
	targetUtilization = decimal.RequireFromString("0.5")
	maxChangeRate     = decimal.RequireFromString("0.125") // 1 / BaseFeeChangeDenominator
	one               = decimal.NewFromInt(1)
)

// gweiDecimals is the decimal exponent between wei and gwei.
const gweiDecimals int32 = 9

// ForecastResult is derived from one header and only meaningful with it.
type ForecastResult struct {
	Utilization decimal.Decimal // gasUsed / gasLimit, not clamped
	NextBaseFee decimal.Decimal // wei, linear EIP-1559 estimate

	// ProtocolBaseFee is the consensus-exact integer value for the next
	// block. Nil when the chain config is unknown or pre-London.
	ProtocolBaseFee *big.Int
}

// UtilizationPercent returns utilization * 100.
func (f ForecastResult) UtilizationPercent() decimal.Decimal {
	return f.Utilization.Shift(2)
}

// NextBaseFeeGwei returns the linear estimate in gwei.
func (f ForecastResult) NextBaseFeeGwei() decimal.Decimal {
	return f.NextBaseFee.Shift(-gweiDecimals)
}

// ChangePercent returns the estimated change of the base fee in percent,
// within [-12.5, +12.5] for utilization in [0, 1].
func (f ForecastResult) ChangePercent() decimal.Decimal {
	return f.Utilization.Sub(targetUtilization).Mul(maxChangeRate).Div(targetUtilization).Shift(2)
}

// Forecast computes utilization and the next base fee:
//
//	next = prev * (1 + 0.125 * (utilization - 0.5) / 0.5)
//
// A zero gas limit or a missing base fee is a malformed header.
func Forecast(prevBaseFee *big.Int, gasUsed, gasLimit uint64) (ForecastResult, error) {
	if gasLimit == 0 {
		return ForecastResult{}, apperror.New(apperror.CodeMalformedHeader,
			apperror.WithContext("gas limit is zero"))
	}
	if prevBaseFee == nil {
		return ForecastResult{}, apperror.New(apperror.CodeMalformedHeader,
			apperror.WithContext("base fee is missing"))
	}

	used := decimal.NewFromBigInt(new(big.Int).SetUint64(gasUsed), 0)
	limit := decimal.NewFromBigInt(new(big.Int).SetUint64(gasLimit), 0)
	utilization := used.Div(limit)

	factor := one.Add(maxChangeRate.Mul(utilization.Sub(targetUtilization)).Div(targetUtilization))
	next := decimal.NewFromBigInt(prevBaseFee, 0).Mul(factor)

	return ForecastResult{
		Utilization: utilization,
		NextBaseFee: next,
	}, nil
}

// Forecaster applies Forecast to whole blocks and, when it knows the
// chain, adds the protocol-exact next base fee.
type Forecaster struct {
	Chain *params.ChainConfig
}

// NewForecaster returns a Forecaster for the given chain id. Unknown chains
// get the linear estimate only.
func NewForecaster(chainID uint64) Forecaster {
	return Forecaster{Chain: ChainConfigByID(chainID)}
}

// ForecastBlock forecasts from a block header.
func (f Forecaster) ForecastBlock(b *Block) (ForecastResult, error) {
	if b == nil {
		return ForecastResult{}, apperror.New(apperror.CodeMalformedHeader,
			apperror.WithContext("header is nil"))
	}

	res, err := Forecast(b.BaseFee, b.GasUsed, b.GasLimit)
	if err != nil {
		return ForecastResult{}, apperror.New(apperror.CodeMalformedHeader,
			apperror.WithContext(fmt.Sprintf("block %d: %s", b.Number, apperror.Reason(err))))
	}

	res.ProtocolBaseFee = f.protocolBaseFee(b)
	return res, nil
}

func (f Forecaster) protocolBaseFee(b *Block) *big.Int {
	if f.Chain == nil {
		return nil
	}

	number := new(big.Int).SetUint64(b.Number)
	if !f.Chain.IsLondon(number) {
		return nil
	}
	// CalcBaseFee divides by the gas target.
	if b.GasLimit/f.Chain.ElasticityMultiplier() == 0 {
		return nil
	}

	parent := &types.Header{
		Number:   number,
		GasLimit: b.GasLimit,
		GasUsed:  b.GasUsed,
		BaseFee:  b.BaseFee,
	}
	return eip1559.CalcBaseFee(f.Chain, parent)
}

// ChainConfigByID returns the go-ethereum chain config for well-known networks.
func ChainConfigByID(chainID uint64) *params.ChainConfig {
	switch chainID {
	case params.MainnetChainConfig.ChainID.Uint64():
		return params.MainnetChainConfig
	case params.SepoliaChainConfig.ChainID.Uint64():
		return params.SepoliaChainConfig
	case params.HoleskyChainConfig.ChainID.Uint64():
		return params.HoleskyChainConfig
	default:
		return nil
	}
}

// WeiToGwei converts an integer wei amount to gwei.
func WeiToGwei(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -gweiDecimals)
}
