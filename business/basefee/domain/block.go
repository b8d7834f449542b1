// Package domain contains the core domain types for the base fee dashboard.
package domain

import (
	"encoding/json"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fd1az/gaswatch/internal/apperror"
)

// Block is the subset of an Ethereum block header the dashboard reads.
type Block struct {
	Number    uint64
	Hash      common.Hash
	Timestamp time.Time
	GasLimit  uint64
	GasUsed   uint64
	BaseFee   *big.Int // nil before London or when the node omits it
}

// BlockFromHeader converts a go-ethereum header.
func BlockFromHeader(header *types.Header) *Block {
	var number uint64
	if header.Number != nil {
		number = header.Number.Uint64()
	}

	return &Block{
		Number:    number,
		Hash:      header.Hash(),
		Timestamp: time.Unix(int64(header.Time), 0),
		GasLimit:  header.GasLimit,
		GasUsed:   header.GasUsed,
		BaseFee:   header.BaseFee,
	}
}

// DecodeBlock decodes a JSON-RPC header object. A header missing a required
// field fails with MALFORMED_HEADER.
func DecodeBlock(raw json.RawMessage) (*Block, error) {
	var header types.Header
	if err := json.Unmarshal(raw, &header); err != nil {
		return nil, apperror.New(apperror.CodeMalformedHeader,
			apperror.WithCause(err), apperror.WithContext("decode header"))
	}
	return BlockFromHeader(&header), nil
}

// Latency returns how long ago the block was produced relative to now.
func (b *Block) Latency(now time.Time) time.Duration {
	return now.Sub(b.Timestamp)
}
