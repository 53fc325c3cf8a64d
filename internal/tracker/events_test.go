package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pvzzle/stxwatch/internal/stacks"
)

func TestMintedTokenID_Shapes(t *testing.T) {
	cases := []struct {
		name   string
		events []stacks.Event
		want   string
	}{
		{
			name:   "asset repr",
			events: []stacks.Event{mintEvent("u7")},
			want:   "7",
		},
		{
			name: "legacy nft_mint_event",
			events: []stacks.Event{{
				EventType:     "nft_mint_event",
				NFTAssetEvent: &stacks.AssetEvent{Value: &stacks.EventValue{Repr: "u12"}},
			}},
			want: "12",
		},
		{
			name: "hex only",
			events: []stacks.Event{{
				EventType: "non_fungible_token_asset",
				Asset: &stacks.AssetEvent{
					AssetEventType: "mint",
					Value:          &stacks.EventValue{Hex: "0x0100000000000000000000000000000009"},
				},
			}},
			want: "9",
		},
		{
			name: "contract log",
			events: []stacks.Event{{
				EventType: "smart_contract_log",
				ContractLog: &stacks.ContractLog{
					Topic: "print",
					Value: &stacks.EventValue{Repr: `(tuple (event "mint") (token-id u42))`},
				},
			}},
			want: "42",
		},
		{
			name: "transfer skipped, later mint used",
			events: []stacks.Event{
				{
					EventType: "non_fungible_token_asset",
					Asset: &stacks.AssetEvent{
						AssetEventType: "transfer",
						Value:          &stacks.EventValue{Repr: "u3"},
					},
				},
				{EventType: "stx_asset"},
				mintEvent("u4"),
			},
			want: "4",
		},
		{
			name:   "max uint",
			events: []stacks.Event{mintEvent("u340282366920938463463374607431768211455")},
			want:   "340282366920938463463374607431768211455",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id := MintedTokenID(tc.events)
			require.NotNil(t, id)
			assert.Equal(t, tc.want, id.String())
		})
	}
}

func TestMintedTokenID_None(t *testing.T) {
	assert.Nil(t, MintedTokenID(nil))

	assert.Nil(t, MintedTokenID([]stacks.Event{{
		EventType: "smart_contract_log",
		ContractLog: &stacks.ContractLog{
			Value: &stacks.EventValue{Repr: `(tuple (event "list") (id u5))`},
		},
	}}))

	assert.Nil(t, MintedTokenID([]stacks.Event{{
		EventType: "non_fungible_token_asset",
		Asset:     &stacks.AssetEvent{AssetEventType: "mint", Value: &stacks.EventValue{Repr: "garbage"}},
	}}))
}
