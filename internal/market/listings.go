// Package market assembles marketplace listings and account balances from
// read-only contract calls and off-chain metadata.
package market

import (
	"context"
	"math/big"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pvzzle/stxwatch/internal/clarity"
	"github.com/pvzzle/stxwatch/internal/logging"
	"github.com/pvzzle/stxwatch/internal/metrics"
	"github.com/pvzzle/stxwatch/internal/stacks"
)

// Reader is the best-effort read path: failures come back as clarity.Absent.
type Reader interface {
	Call(ctx context.Context, req stacks.CallRequest) clarity.Value
}

type Contracts struct {
	NFT         stacks.ContractID
	Marketplace stacks.ContractID
	Staking     stacks.ContractID
	Token       stacks.ContractID
}

// Listing exists only when both the on-chain listing and its metadata
// resolved.
type Listing struct {
	TokenID     uint64
	Price       *big.Int // micro-units
	Seller      string
	MetadataCID string
	Metadata    Metadata
}

type AggregatorConfig struct {
	// Concurrency bounds in-flight per-index pipelines.
	Concurrency int
	// Sender is used for every read; empty means the contract address.
	Sender string
	// MaxIndex caps the scanned token range. The counter comes from the
	// chain and is not trusted.
	MaxIndex uint64
}

const defaultMaxListingIndex = 10_000

type Aggregator struct {
	reader    Reader
	meta      MetadataFetcher
	contracts Contracts
	cfg       AggregatorConfig
	log       *zap.Logger
}

func NewAggregator(reader Reader, meta MetadataFetcher, contracts Contracts, cfg AggregatorConfig, logger *zap.Logger) *Aggregator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.MaxIndex == 0 {
		cfg.MaxIndex = defaultMaxListingIndex
	}
	return &Aggregator{
		reader:    reader,
		meta:      meta,
		contracts: contracts,
		cfg:       cfg,
		log:       logging.OrNop(logger).Named("listings"),
	}
}

// LastTokenID reads the highest minted token id. Zero when unknown.
func (a *Aggregator) LastTokenID(ctx context.Context) uint64 {
	v := a.reader.Call(ctx, a.call(a.contracts.NFT, "get-last-token-id"))
	n, _ := clarity.Uint64(v)
	return n
}

// Listings reads the last token id and lists every index up to it.
func (a *Aggregator) Listings(ctx context.Context) []Listing {
	return a.ListAll(ctx, a.LastTokenID(ctx))
}

// ListAll runs one independent pipeline per index in 1..maxIndex and returns
// the listings that resolved fully, in ascending token id order. A failing
// index never affects the others.
func (a *Aggregator) ListAll(ctx context.Context, maxIndex uint64) []Listing {
	if maxIndex == 0 {
		return nil
	}
	if maxIndex > a.cfg.MaxIndex {
		a.log.Warn("token counter above scan limit, clamping",
			zap.Uint64("counter", maxIndex),
			zap.Uint64("limit", a.cfg.MaxIndex),
		)
		maxIndex = a.cfg.MaxIndex
	}

	slots := make([]*Listing, maxIndex)

	var g errgroup.Group
	g.SetLimit(a.cfg.Concurrency)
	for i := uint64(1); i <= maxIndex; i++ {
		idx := i
		g.Go(func() error {
			slots[idx-1] = a.listing(ctx, idx)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]Listing, 0, len(slots))
	for _, l := range slots {
		if l != nil {
			out = append(out, *l)
		}
	}
	metrics.ListingsAssembled.Add(float64(len(out)))
	return out
}

func (a *Aggregator) listing(ctx context.Context, idx uint64) *Listing {
	log := a.log.With(zap.Uint64("token_id", idx))
	arg := []clarity.Value{clarity.NewUInt(idx)}

	// 1) listing record
	rec := a.reader.Call(ctx, a.call(a.contracts.Marketplace, "get-listing", arg...))
	if clarity.IsAbsent(rec) {
		return nil
	}

	// 2) price and seller
	priceV := clarity.Field(rec, "price")
	seller, ok := clarity.Text(clarity.Field(rec, "seller"))
	if clarity.IsAbsent(priceV) || !ok {
		log.Debug("listing record missing price or seller")
		return nil
	}

	// 3) metadata pointer
	uri, ok := clarity.Text(a.reader.Call(ctx, a.call(a.contracts.NFT, "get-token-uri", arg...)))
	cid := CIDFromURI(uri)
	if !ok || cid == "" {
		log.Debug("token has no metadata uri")
		return nil
	}

	// 4) metadata document
	meta, err := a.meta.Fetch(ctx, cid)
	if err != nil {
		log.Debug("metadata unavailable", zap.String("cid", cid), zap.Error(err))
		return nil
	}

	return &Listing{
		TokenID:     idx,
		Price:       clarity.BigUint(priceV),
		Seller:      seller,
		MetadataCID: cid,
		Metadata:    meta,
	}
}

func (a *Aggregator) call(c stacks.ContractID, fn string, args ...clarity.Value) stacks.CallRequest {
	return stacks.CallRequest{Contract: c, Function: fn, Args: args, Sender: a.cfg.Sender}
}
