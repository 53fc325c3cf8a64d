// Package wallet builds contract-call signing requests and hands them to an
// external signer. Keys never pass through this process.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/pvzzle/stxwatch/internal/clarity"
	"github.com/pvzzle/stxwatch/internal/stacks"
)

const MicroDecimals = 6

var (
	// ErrSignerRejected wraps any failure reported by the signer. The wrapped
	// message is the provider's own text.
	ErrSignerRejected = errors.New("wallet: signer rejected request")
	ErrInvalidAmount  = errors.New("wallet: amount must be positive")
)

// PostCondition mirrors the wallet-provider JSON form.
type PostCondition struct {
	Type      string `json:"type"`
	Address   string `json:"address"`
	Condition string `json:"condition"`
	Amount    string `json:"amount,omitempty"`
	Asset     string `json:"asset,omitempty"`
	AssetID   string `json:"assetId,omitempty"`
}

// ContractCall is the signing request. FunctionArgs are 0x-prefixed wire hex.
type ContractCall struct {
	Contract          string          `json:"contract"`
	FunctionName      string          `json:"functionName"`
	FunctionArgs      []string        `json:"functionArgs"`
	Network           string          `json:"network"`
	PostConditions    []PostCondition `json:"postConditions,omitempty"`
	PostConditionMode string          `json:"postConditionMode,omitempty"`
}

// Signer asks the user's wallet to sign and broadcast a call, returning the
// transaction id.
type Signer interface {
	RequestSignedCall(ctx context.Context, call ContractCall) (string, error)
}

// NetworkFromURL maps an API base URL to the wallet network name.
func NetworkFromURL(base string) string {
	if strings.Contains(strings.ToLower(base), "mainnet") {
		return "mainnet"
	}
	return "testnet"
}

// ParseAmount converts a decimal token amount to micro-units, rounding down.
func ParseAmount(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	micro := d.Shift(MicroDecimals).Floor()
	if !micro.IsPositive() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return micro.BigInt(), nil
}

// NewCall encodes args and fills the network. Post-conditions default to deny
// mode, so any transfer not covered aborts the transaction.
func NewCall(c stacks.ContractID, fn, network string, args []clarity.Value, pcs ...PostCondition) (ContractCall, error) {
	if err := c.Validate(); err != nil {
		return ContractCall{}, err
	}
	hexArgs := make([]string, 0, len(args))
	for i, a := range args {
		h, err := clarity.SerializeHex(a)
		if err != nil {
			return ContractCall{}, fmt.Errorf("%s arg %d: %w", fn, i, err)
		}
		hexArgs = append(hexArgs, h)
	}
	call := ContractCall{
		Contract:       c.String(),
		FunctionName:   fn,
		FunctionArgs:   hexArgs,
		Network:        network,
		PostConditions: pcs,
	}
	if len(pcs) > 0 {
		call.PostConditionMode = "deny"
	}
	return call, nil
}

// NFTSends asserts that owner gives up token id of the given asset.
func NFTSends(owner string, nft stacks.ContractID, assetName string, tokenID uint64) (PostCondition, error) {
	id, err := clarity.SerializeHex(clarity.NewUInt(tokenID))
	if err != nil {
		return PostCondition{}, err
	}
	return PostCondition{
		Type:      "nft-postcondition",
		Address:   owner,
		Condition: "sent",
		Asset:     nft.String() + "::" + assetName,
		AssetID:   id,
	}, nil
}

// STXSendsEqual asserts that the origin pays exactly amount micro-STX.
func STXSendsEqual(origin string, amount *big.Int) PostCondition {
	return PostCondition{
		Type:      "stx-postcondition",
		Address:   origin,
		Condition: "eq",
		Amount:    amount.String(),
	}
}
