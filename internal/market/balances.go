package market

import (
	"context"
	"fmt"
	"math/big"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pvzzle/stxwatch/internal/clarity"
	"github.com/pvzzle/stxwatch/internal/logging"
	"github.com/pvzzle/stxwatch/internal/stacks"
)

// Balance holds one principal's amounts in base units. Fields that could not
// be read are zero.
type Balance struct {
	Spendable *big.Int
	Staked    *big.Int
	Claimable *big.Int
}

type BalanceReader struct {
	reader    Reader
	contracts Contracts
	sender    string
	log       *zap.Logger
}

func NewBalanceReader(reader Reader, contracts Contracts, sender string, logger *zap.Logger) *BalanceReader {
	return &BalanceReader{
		reader:    reader,
		contracts: contracts,
		sender:    sender,
		log:       logging.OrNop(logger).Named("balances"),
	}
}

// Get runs the three reads together. Only an invalid principal is an error.
func (b *BalanceReader) Get(ctx context.Context, principal string) (Balance, error) {
	p, err := clarity.ParsePrincipal(principal)
	if err != nil {
		return Balance{}, fmt.Errorf("balance owner: %w", err)
	}
	var bal Balance
	var g errgroup.Group
	g.Go(func() error {
		bal.Spendable = b.read(ctx, b.contracts.Token, "get-balance", p)
		return nil
	})
	g.Go(func() error {
		bal.Staked = b.read(ctx, b.contracts.Staking, "get-staked-balance-for", p)
		return nil
	})
	g.Go(func() error {
		bal.Claimable = b.read(ctx, b.contracts.Staking, "get-claimable-rewards-for", p)
		return nil
	})
	_ = g.Wait()

	return bal, nil
}

func (b *BalanceReader) read(ctx context.Context, c stacks.ContractID, fn string, owner clarity.Principal) *big.Int {
	v := b.reader.Call(ctx, stacks.CallRequest{
		Contract: c,
		Function: fn,
		Args:     []clarity.Value{owner},
		Sender:   b.sender,
	})
	if clarity.IsAbsent(v) {
		b.log.Debug("balance read unavailable", zap.String("contract", c.String()), zap.String("fn", fn))
		return new(big.Int)
	}
	return clarity.BigUint(v)
}
