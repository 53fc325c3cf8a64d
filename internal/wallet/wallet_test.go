package wallet

import (
	"context"
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pvzzle/stxwatch/internal/stacks"
)

const (
	testDeployer = "ST16W5DG0N8VP85W6DK1ZB4ME3BK3WN2750H78FNX"
	testTxID     = "0x00000000000000000000000000000000000000000000000000000000000000aa"
)

var testContracts = Contracts{
	NFT:         stacks.ContractID{Address: testDeployer, Name: "rwa-nft-contract-v4"},
	Marketplace: stacks.ContractID{Address: testDeployer, Name: "marketplace-contract-v6"},
	Staking:     stacks.ContractID{Address: testDeployer, Name: "staking-contract-v7"},
}

type recordingSigner struct {
	calls []ContractCall
	reply string
	err   error
}

func (s *recordingSigner) RequestSignedCall(_ context.Context, call ContractCall) (string, error) {
	s.calls = append(s.calls, call)
	return s.reply, s.err
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1", "1000000"},
		{"1.5", "1500000"},
		{"0.0000019", "1"},
		{" 2.25 ", "2250000"},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got.String(), tc.in)
	}

	for _, bad := range []string{"0", "-1", "0.0000001", "abc", ""} {
		_, err := ParseAmount(bad)
		assert.ErrorIs(t, err, ErrInvalidAmount, bad)
	}
}

func TestNetworkFromURL(t *testing.T) {
	assert.Equal(t, "mainnet", NetworkFromURL("https://api.mainnet.hiro.so"))
	assert.Equal(t, "testnet", NetworkFromURL("https://api.testnet.hiro.so"))
	assert.Equal(t, "testnet", NetworkFromURL("http://localhost:3999"))
}

func TestActions_ListAsset(t *testing.T) {
	s := &recordingSigner{reply: strings.TrimPrefix(testTxID, "0x")}
	a := NewActions(s, testContracts, "testnet", nil)

	id, err := a.ListAsset(context.Background(), testDeployer, 7, big.NewInt(2_500_000))
	require.NoError(t, err)
	assert.Equal(t, testTxID, id)

	require.Len(t, s.calls, 1)
	call := s.calls[0]
	assert.Equal(t, testDeployer+".marketplace-contract-v6", call.Contract)
	assert.Equal(t, "list-asset", call.FunctionName)
	assert.Equal(t, "testnet", call.Network)
	assert.Equal(t, []string{
		"0x0100000000000000000000000000000007",
		"0x01000000000000000000000000002625a0",
	}, call.FunctionArgs)

	require.Len(t, call.PostConditions, 1)
	pc := call.PostConditions[0]
	assert.Equal(t, "nft-postcondition", pc.Type)
	assert.Equal(t, "sent", pc.Condition)
	assert.Equal(t, testDeployer, pc.Address)
	assert.Equal(t, testDeployer+".rwa-nft-contract-v4::rwa-nft", pc.Asset)
	assert.Equal(t, "0x0100000000000000000000000000000007", pc.AssetID)
	assert.Equal(t, "deny", call.PostConditionMode)
}

func TestActions_PurchaseAsset(t *testing.T) {
	s := &recordingSigner{reply: testTxID}
	a := NewActions(s, testContracts, "mainnet", nil)

	_, err := a.PurchaseAsset(context.Background(), testDeployer, 3, big.NewInt(1_000_000))
	require.NoError(t, err)

	call := s.calls[0]
	assert.Equal(t, "purchase-asset", call.FunctionName)
	assert.Equal(t, []string{"0x0100000000000000000000000000000003"}, call.FunctionArgs)
	require.Len(t, call.PostConditions, 1)
	assert.Equal(t, PostCondition{
		Type:      "stx-postcondition",
		Address:   testDeployer,
		Condition: "eq",
		Amount:    "1000000",
	}, call.PostConditions[0])
}

func TestActions_Staking(t *testing.T) {
	s := &recordingSigner{reply: testTxID}
	a := NewActions(s, testContracts, "testnet", nil)
	ctx := context.Background()

	_, err := a.Stake(ctx, big.NewInt(1_000_000))
	require.NoError(t, err)
	_, err = a.Unstake(ctx, big.NewInt(1))
	require.NoError(t, err)
	_, err = a.ClaimRewards(ctx)
	require.NoError(t, err)

	require.Len(t, s.calls, 3)
	assert.Equal(t, "stake", s.calls[0].FunctionName)
	assert.Equal(t, "unstake", s.calls[1].FunctionName)
	assert.Equal(t, "claim-rewards", s.calls[2].FunctionName)
	assert.Empty(t, s.calls[2].FunctionArgs)
	for _, c := range s.calls {
		assert.Equal(t, testDeployer+".staking-contract-v7", c.Contract)
		assert.Empty(t, c.PostConditions)
	}

	_, err = a.Stake(ctx, big.NewInt(0))
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = a.Unstake(ctx, nil)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.Len(t, s.calls, 3)
}

func TestActions_SignerFailure(t *testing.T) {
	s := &recordingSigner{err: errors.New("User rejected request")}
	a := NewActions(s, testContracts, "testnet", nil)

	_, err := a.ClaimRewards(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSignerRejected)
	assert.Contains(t, err.Error(), "User rejected request")
}

func TestBridgeSigner_Replies(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		wantID  string
		wantErr string
	}{
		{name: "bare", status: 200, body: testTxID, wantID: testTxID},
		{name: "string literal", status: 200, body: `"` + testTxID + `"`, wantID: testTxID},
		{name: "txid object", status: 200, body: `{"txid":"` + testTxID + `"}`, wantID: testTxID},
		{name: "result object", status: 200, body: `{"result":{"txid":"` + testTxID + `"}}`, wantID: testTxID},
		{name: "nested error", status: 400, body: `{"error":{"message":"User rejected"}}`, wantErr: "User rejected"},
		{name: "flat message", status: 500, body: `{"message":"Bridge offline"}`, wantErr: "Bridge offline"},
		{name: "plain error", status: 502, body: "bad gateway", wantErr: "bad gateway"},
		{name: "empty", status: 200, body: "", wantErr: "empty reply"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			s := NewBridgeSigner(srv.URL, srv.Client(), nil)
			id, err := s.RequestSignedCall(context.Background(), ContractCall{Contract: "x.y", FunctionName: "f"})
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrSignerRejected)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantID, id)
		})
	}
}

func TestBridgeSigner_PostsRequest(t *testing.T) {
	got := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = sonic.Unmarshal(raw, &body)
		got <- body
		_, _ = w.Write([]byte(`{"txid":"` + testTxID + `"}`))
	}))
	defer srv.Close()

	a := NewActions(NewBridgeSigner(srv.URL, srv.Client(), nil), testContracts, "testnet", nil)
	id, err := a.PurchaseAsset(context.Background(), testDeployer, 1, big.NewInt(5))
	require.NoError(t, err)
	assert.Equal(t, testTxID, id)

	body := <-got
	assert.Equal(t, testDeployer+".marketplace-contract-v6", body["contract"])
	assert.Equal(t, "purchase-asset", body["functionName"])
	assert.Equal(t, "testnet", body["network"])
	assert.Len(t, body["functionArgs"], 1)
	assert.Len(t, body["postConditions"], 1)
}

func TestBridgeSigner_NotConfigured(t *testing.T) {
	_, err := NewBridgeSigner("", nil, nil).RequestSignedCall(context.Background(), ContractCall{})
	assert.ErrorIs(t, err, ErrSignerRejected)
}
