package tracker

import (
	"math/big"
	"regexp"
	"strings"

	"github.com/pvzzle/stxwatch/internal/clarity"
	"github.com/pvzzle/stxwatch/internal/stacks"
)

// Event type tags that have carried NFT mints across indexer versions.
const (
	eventNFTAsset    = "non_fungible_token_asset"
	eventNFTMint     = "nft_mint_event"
	eventContractLog = "smart_contract_log"
)

var reReprUint = regexp.MustCompile(`u(\d+)`)

// MintedTokenID returns the token id of the first event that looks like an NFT
// mint, or nil.
func MintedTokenID(events []stacks.Event) *big.Int {
	for _, e := range events {
		if id := mintID(e); id != nil {
			return id
		}
	}
	return nil
}

func mintID(e stacks.Event) *big.Int {
	switch e.EventType {
	case eventNFTAsset, eventNFTMint:
		for _, a := range []*stacks.AssetEvent{e.Asset, e.NFTAssetEvent} {
			if a == nil {
				continue
			}
			// Transfers and burns share the asset event type.
			if a.AssetEventType != "" && a.AssetEventType != "mint" {
				return nil
			}
			if id := valueID(a.Value); id != nil {
				return id
			}
		}
	case eventContractLog:
		if e.ContractLog == nil || e.ContractLog.Value == nil {
			return nil
		}
		repr := e.ContractLog.Value.Repr
		if !strings.Contains(repr, "mint") {
			return nil
		}
		if m := reReprUint.FindStringSubmatch(repr); m != nil {
			n, ok := new(big.Int).SetString(m[1], 10)
			if ok {
				return n
			}
		}
	}
	return nil
}

// valueID reads "u<digits>" from repr, falling back to the wire hex.
func valueID(v *stacks.EventValue) *big.Int {
	if v == nil {
		return nil
	}
	if r := strings.TrimSpace(v.Repr); strings.HasPrefix(r, "u") {
		if n, ok := new(big.Int).SetString(r[1:], 10); ok {
			return n
		}
	}
	if v.Hex == "" {
		return nil
	}
	cv, err := clarity.DecodeHex(v.Hex)
	if err != nil {
		return nil
	}
	if _, ok := cv.(clarity.UInt); !ok {
		return nil
	}
	return clarity.BigUint(cv)
}
