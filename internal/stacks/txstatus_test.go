package stacks

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mintedTxJSON = `{
  "tx_id": "0x5e1ab7b1f0c9d0b7e0a1d1d1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5",
  "tx_status": "success",
  "tx_type": "contract_call",
  "sender_address": "ST16W5DG0N8VP85W6DK1ZB4ME3BK3WN2750H78FNX",
  "block_height": 120034,
  "contract_call": {"contract_id": "ST16W5DG0N8VP85W6DK1ZB4ME3BK3WN2750H78FNX.rwa-nft-contract-v4", "function_name": "mint"},
  "tx_result": {"hex": "0x070100000000000000000000000000000007", "repr": "(ok u7)"},
  "events": [
    {
      "event_index": 0,
      "event_type": "non_fungible_token_asset",
      "tx_id": "0x5e1a",
      "asset": {
        "asset_event_type": "mint",
        "asset_id": "ST16W5DG0N8VP85W6DK1ZB4ME3BK3WN2750H78FNX.rwa-nft-contract-v4::rwa-nft",
        "recipient": "ST16W5DG0N8VP85W6DK1ZB4ME3BK3WN2750H78FNX",
        "value": {"hex": "0x0100000000000000000000000000000007", "repr": "u7"}
      }
    }
  ]
}`

func TestGetTransaction(t *testing.T) {
	paths := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.Path
		_, _ = io.WriteString(w, mintedTxJSON)
	}))
	defer srv.Close()

	c := NewStatusClient(srv.URL, nil, nil)
	d, err := c.GetTransaction(context.Background(), "5e1a")
	require.NoError(t, err)

	assert.Equal(t, "/extended/v1/tx/0x5e1a", <-paths)
	assert.True(t, d.TxStatus.IsSuccess())
	assert.Equal(t, uint64(120034), d.BlockHeight)
	require.Len(t, d.Events, 1)
	require.NotNil(t, d.Events[0].Asset)
	assert.Equal(t, "mint", d.Events[0].Asset.AssetEventType)
	assert.Equal(t, "u7", d.Events[0].Asset.Value.Repr)
	assert.Equal(t, "mint", d.ContractCall.FunctionName)
}

func TestGetTransaction_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"could not find transaction by ID"}`)
	}))
	defer srv.Close()

	_, err := NewStatusClient(srv.URL, nil, nil).GetTransaction(context.Background(), "0xabc")
	assert.ErrorIs(t, err, ErrTxNotFound)
}

func TestGetTransaction_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewStatusClient(srv.URL, nil, nil).GetTransaction(context.Background(), "0xabc")
	assert.ErrorIs(t, err, ErrProtocolReject)
	assert.NotErrorIs(t, err, ErrTxNotFound)
}

func TestTxStatus_Classes(t *testing.T) {
	assert.True(t, StatusPending.IsPending())
	assert.True(t, TxStatus("dropped_replace_by_fee").IsPending())
	assert.True(t, StatusAbortByResponse.IsAbort())
	assert.True(t, StatusAbortByPostCondition.IsAbort())
	assert.False(t, StatusSuccess.IsPending())
	assert.False(t, StatusSuccess.IsAbort())
}
