// Package transfer builds the transaction submitted right after a connect.
package transfer

import (
	"fmt"
	"math/big"
	"strings"

	"evmconnect/pkg/config"
	"evmconnect/pkg/models"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const erc20TransferABI = `[{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}]`

var erc20 abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(erc20TransferABI))
	if err != nil {
		panic(err)
	}
	erc20 = parsed
}

// Builder turns the configured transfer into eth_sendTransaction params for
// a given sender.
type Builder struct {
	to       common.Address
	gas      uint64
	gasPrice *big.Int
	value    *big.Int
	data     []byte
}

// NewBuilder validates cfg and pre-encodes the calldata. A raw cfg.Data wins
// over the ERC-20 recipient/amount pair.
func NewBuilder(cfg config.TransferConfig) (*Builder, error) {
	if !common.IsHexAddress(cfg.To) {
		return nil, fmt.Errorf("transfer: invalid to address %q", cfg.To)
	}
	b := &Builder{
		to:  common.HexToAddress(cfg.To),
		gas: cfg.Gas,
	}

	var err error
	if b.gasPrice, err = parseAmount("gas_price", cfg.GasPrice); err != nil {
		return nil, err
	}
	if b.value, err = parseAmount("value", cfg.Value); err != nil {
		return nil, err
	}

	if cfg.Data != "" {
		if b.data, err = hexutil.Decode(cfg.Data); err != nil {
			return nil, fmt.Errorf("transfer: invalid data: %w", err)
		}
		return b, nil
	}

	if !common.IsHexAddress(cfg.Recipient) {
		return nil, fmt.Errorf("transfer: invalid recipient %q", cfg.Recipient)
	}
	amount, err := parseAmount("amount", cfg.Amount)
	if err != nil {
		return nil, err
	}
	b.data, err = erc20.Pack("transfer", common.HexToAddress(cfg.Recipient), amount)
	if err != nil {
		return nil, fmt.Errorf("transfer: encode calldata: %w", err)
	}
	return b, nil
}

func parseAmount(field, s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("transfer: invalid %s %q", field, s)
	}
	return n, nil
}

// Build returns the transaction params with from set to the connected account.
func (b *Builder) Build(from string) (models.TxParams, error) {
	if !common.IsHexAddress(from) {
		return models.TxParams{}, fmt.Errorf("transfer: invalid from address %q", from)
	}
	tx := models.TxParams{
		From: from,
		To:   b.to.Hex(),
	}
	if b.gas > 0 {
		tx.Gas = hexutil.EncodeUint64(b.gas)
	}
	if b.gasPrice != nil {
		tx.GasPrice = hexutil.EncodeBig(b.gasPrice)
	}
	if b.value != nil {
		tx.Value = hexutil.EncodeBig(b.value)
	}
	if len(b.data) > 0 {
		tx.Data = hexutil.Encode(b.data)
	}
	return tx, nil
}
