package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"github.com/pvzzle/stxwatch/internal/clarity"
	"github.com/pvzzle/stxwatch/internal/logging"
	"github.com/pvzzle/stxwatch/internal/stacks"
)

type Contracts struct {
	NFT         stacks.ContractID
	Marketplace stacks.ContractID
	Staking     stacks.ContractID
	// AssetName is the non-fungible asset defined by the NFT contract.
	AssetName string
}

// Actions builds the marketplace and staking calls and sends them to the
// signer. Every method returns a 0x-prefixed transaction id.
type Actions struct {
	signer    Signer
	contracts Contracts
	network   string
	log       *zap.Logger
}

func NewActions(signer Signer, contracts Contracts, network string, logger *zap.Logger) *Actions {
	if contracts.AssetName == "" {
		contracts.AssetName = "rwa-nft"
	}
	return &Actions{
		signer:    signer,
		contracts: contracts,
		network:   network,
		log:       logging.OrNop(logger).Named("wallet"),
	}
}

// ListAsset puts owner's token up for sale at price micro-STX. The token
// leaves the owner's account, so the call carries an NFT sends condition.
func (a *Actions) ListAsset(ctx context.Context, owner string, tokenID uint64, price *big.Int) (string, error) {
	if price == nil || price.Sign() <= 0 {
		return "", ErrInvalidAmount
	}
	pc, err := NFTSends(owner, a.contracts.NFT, a.contracts.AssetName, tokenID)
	if err != nil {
		return "", err
	}
	call, err := NewCall(a.contracts.Marketplace, "list-asset", a.network,
		[]clarity.Value{clarity.NewUInt(tokenID), clarity.UInt{V: new(big.Int).Set(price)}}, pc)
	if err != nil {
		return "", err
	}
	return a.send(ctx, call)
}

// PurchaseAsset buys a listed token. The buyer pays exactly price.
func (a *Actions) PurchaseAsset(ctx context.Context, buyer string, tokenID uint64, price *big.Int) (string, error) {
	if price == nil || price.Sign() <= 0 {
		return "", ErrInvalidAmount
	}
	call, err := NewCall(a.contracts.Marketplace, "purchase-asset", a.network,
		[]clarity.Value{clarity.NewUInt(tokenID)}, STXSendsEqual(buyer, price))
	if err != nil {
		return "", err
	}
	return a.send(ctx, call)
}

func (a *Actions) Stake(ctx context.Context, amount *big.Int) (string, error) {
	return a.amountCall(ctx, "stake", amount)
}

func (a *Actions) Unstake(ctx context.Context, amount *big.Int) (string, error) {
	return a.amountCall(ctx, "unstake", amount)
}

func (a *Actions) ClaimRewards(ctx context.Context) (string, error) {
	call, err := NewCall(a.contracts.Staking, "claim-rewards", a.network, nil)
	if err != nil {
		return "", err
	}
	return a.send(ctx, call)
}

func (a *Actions) amountCall(ctx context.Context, fn string, amount *big.Int) (string, error) {
	if amount == nil || amount.Sign() <= 0 {
		return "", ErrInvalidAmount
	}
	call, err := NewCall(a.contracts.Staking, fn, a.network,
		[]clarity.Value{clarity.UInt{V: new(big.Int).Set(amount)}})
	if err != nil {
		return "", err
	}
	return a.send(ctx, call)
}

func (a *Actions) send(ctx context.Context, call ContractCall) (string, error) {
	log := a.log.With(zap.String("contract", call.Contract), zap.String("fn", call.FunctionName))

	txID, err := a.signer.RequestSignedCall(ctx, call)
	if err != nil {
		log.Warn("signing failed", zap.Error(err))
		if errors.Is(err, ErrSignerRejected) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrSignerRejected, err)
	}

	id, err := stacks.NormalizeTxID(txID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSignerRejected, err)
	}
	log.Info("call signed", zap.String("tx", id))
	return id, nil
}
