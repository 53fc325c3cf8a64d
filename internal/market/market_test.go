package market

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pvzzle/stxwatch/internal/clarity"
	"github.com/pvzzle/stxwatch/internal/stacks"
)

const testDeployer = "ST16W5DG0N8VP85W6DK1ZB4ME3BK3WN2750H78FNX"

var testContracts = Contracts{
	NFT:         stacks.ContractID{Address: testDeployer, Name: "rwa-nft-contract-v4"},
	Marketplace: stacks.ContractID{Address: testDeployer, Name: "marketplace-contract-v6"},
	Staking:     stacks.ContractID{Address: testDeployer, Name: "staking-contract-v7"},
	Token:       stacks.ContractID{Address: testDeployer, Name: "aria-token-v2"},
}

// fakeReader answers by "<contract>.<fn>/<first arg>" key.
type fakeReader struct {
	mu    sync.Mutex
	vals  map[string]clarity.Value
	calls []stacks.CallRequest
}

func newFakeReader() *fakeReader {
	return &fakeReader{vals: map[string]clarity.Value{}}
}

func readKey(c stacks.ContractID, fn string, arg string) string {
	return c.Name + "." + fn + "/" + arg
}

func argString(args []clarity.Value) string {
	if len(args) == 0 {
		return ""
	}
	switch a := args[0].(type) {
	case clarity.UInt:
		return a.V.String()
	case clarity.Principal:
		return a.String()
	}
	return "?"
}

func (f *fakeReader) set(c stacks.ContractID, fn, arg string, v clarity.Value) {
	f.vals[readKey(c, fn, arg)] = v
}

func (f *fakeReader) Call(_ context.Context, req stacks.CallRequest) clarity.Value {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	v, ok := f.vals[readKey(req.Contract, req.Function, argString(req.Args))]
	if !ok {
		return clarity.Absent
	}
	return clarity.Unwrap(v)
}

type fakeMeta struct {
	docs map[string]Metadata
}

func (f *fakeMeta) Fetch(_ context.Context, cid string) (Metadata, error) {
	m, ok := f.docs[cid]
	if !ok {
		return Metadata{}, errors.New("gateway unavailable")
	}
	return m, nil
}

func listingTuple(price uint64, seller string) clarity.Value {
	return clarity.Some{Inner: clarity.Tuple{
		"price":  clarity.NewUInt(price),
		"seller": clarity.MustPrincipal(seller),
	}}
}

func seedListing(r *fakeReader, m *fakeMeta, idx uint64, price uint64, withMeta bool) {
	i := fmt.Sprint(idx)
	cid := "Qm" + i
	r.set(testContracts.Marketplace, "get-listing", i, listingTuple(price, testDeployer))
	r.set(testContracts.NFT, "get-token-uri", i, clarity.ResponseOk{Inner: clarity.Some{Inner: clarity.StringASCII("ipfs://" + cid)}})
	if withMeta {
		m.docs[cid] = Metadata{Name: "Asset " + i, Image: "ipfs://img" + i}
	}
}

func TestAggregator_ListAll_SkipsFailedIndex(t *testing.T) {
	r := newFakeReader()
	m := &fakeMeta{docs: map[string]Metadata{}}
	seedListing(r, m, 1, 1_000_000, true)
	seedListing(r, m, 2, 2_000_000, false)
	seedListing(r, m, 3, 3_000_000, true)

	agg := NewAggregator(r, m, testContracts, AggregatorConfig{Concurrency: 2}, nil)
	got := agg.ListAll(context.Background(), 3)

	require.Len(t, got, 2)
	assert.Equal(t, uint64(1), got[0].TokenID)
	assert.Equal(t, uint64(3), got[1].TokenID)
	assert.Equal(t, big.NewInt(1_000_000), got[0].Price)
	assert.Equal(t, big.NewInt(3_000_000), got[1].Price)
	assert.Equal(t, testDeployer, got[0].Seller)
	assert.Equal(t, "Asset 3", got[1].Metadata.Name)
	assert.Equal(t, "Qm3", got[1].MetadataCID)
}

func TestAggregator_ListAll_OrderIndependentOfCompletion(t *testing.T) {
	r := newFakeReader()
	m := &fakeMeta{docs: map[string]Metadata{}}
	for i := uint64(1); i <= 20; i++ {
		seedListing(r, m, i, i*10, i%3 != 0)
	}

	agg := NewAggregator(r, m, testContracts, AggregatorConfig{Concurrency: 8}, nil)
	got := agg.ListAll(context.Background(), 20)

	require.Len(t, got, 14)
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1].TokenID, got[i].TokenID)
	}
}

func TestAggregator_ListAll_AbsentAndIncompleteListings(t *testing.T) {
	r := newFakeReader()
	m := &fakeMeta{docs: map[string]Metadata{"Qm1": {Name: "one"}, "Qm2": {Name: "two"}, "Qm3": {Name: "three"}}}

	// 1: no listing at all
	r.set(testContracts.NFT, "get-token-uri", "1", clarity.StringASCII("ipfs://Qm1"))
	// 2: listing without seller
	r.set(testContracts.Marketplace, "get-listing", "2", clarity.Some{Inner: clarity.Tuple{"price": clarity.NewUInt(5)}})
	r.set(testContracts.NFT, "get-token-uri", "2", clarity.StringASCII("ipfs://Qm2"))
	// 3: metadata pointer is not a string
	r.set(testContracts.Marketplace, "get-listing", "3", listingTuple(5, testDeployer))
	r.set(testContracts.NFT, "get-token-uri", "3", clarity.NewUInt(3))

	agg := NewAggregator(r, m, testContracts, AggregatorConfig{}, nil)
	assert.Empty(t, agg.ListAll(context.Background(), 3))
	assert.Nil(t, agg.ListAll(context.Background(), 0))
}

func TestAggregator_ListAll_WrappedFields(t *testing.T) {
	r := newFakeReader()
	m := &fakeMeta{docs: map[string]Metadata{"QmW": {Name: "wrapped"}}}

	r.set(testContracts.Marketplace, "get-listing", "1", clarity.ResponseOk{Inner: clarity.Some{Inner: clarity.Tuple{
		"price":  clarity.Tuple{"value": clarity.NewUInt(42)},
		"seller": clarity.Tuple{"value": clarity.MustPrincipal(testDeployer)},
	}}})
	r.set(testContracts.NFT, "get-token-uri", "1", clarity.StringUTF8("https://gateway.pinata.cloud/ipfs/QmW"))

	agg := NewAggregator(r, m, testContracts, AggregatorConfig{}, nil)
	got := agg.ListAll(context.Background(), 1)

	require.Len(t, got, 1)
	assert.Equal(t, big.NewInt(42), got[0].Price)
	assert.Equal(t, testDeployer, got[0].Seller)
	assert.Equal(t, "wrapped", got[0].Metadata.Name)
}

func TestAggregator_Listings_UsesLastTokenID(t *testing.T) {
	r := newFakeReader()
	m := &fakeMeta{docs: map[string]Metadata{}}
	r.set(testContracts.NFT, "get-last-token-id", "", clarity.ResponseOk{Inner: clarity.NewUInt(2)})
	seedListing(r, m, 1, 10, true)
	seedListing(r, m, 2, 20, true)
	seedListing(r, m, 3, 30, true)

	agg := NewAggregator(r, m, testContracts, AggregatorConfig{Sender: testDeployer}, nil)
	assert.Equal(t, uint64(2), agg.LastTokenID(context.Background()))

	got := agg.Listings(context.Background())
	require.Len(t, got, 2)
	assert.Equal(t, uint64(2), got[1].TokenID)

	for _, c := range r.calls {
		assert.Equal(t, testDeployer, c.Sender)
	}
}

func TestAggregator_Listings_ClampsHugeCounter(t *testing.T) {
	r := newFakeReader()
	m := &fakeMeta{docs: map[string]Metadata{}}
	r.set(testContracts.NFT, "get-last-token-id", "", clarity.ResponseOk{Inner: clarity.NewUInt(1 << 62)})
	seedListing(r, m, 1, 10, true)
	seedListing(r, m, 4, 40, true)
	seedListing(r, m, 5, 50, true)

	agg := NewAggregator(r, m, testContracts, AggregatorConfig{MaxIndex: 4}, nil)

	var got []Listing
	require.NotPanics(t, func() { got = agg.Listings(context.Background()) })
	require.Len(t, got, 2)
	assert.Equal(t, uint64(1), got[0].TokenID)
	assert.Equal(t, uint64(4), got[1].TokenID)

	listingReads := 0
	for _, c := range r.calls {
		if c.Function == "get-listing" {
			listingReads++
		}
	}
	assert.Equal(t, 4, listingReads)
}

func TestAggregator_DefaultMaxIndex(t *testing.T) {
	agg := NewAggregator(newFakeReader(), &fakeMeta{}, testContracts, AggregatorConfig{}, nil)
	assert.Equal(t, uint64(defaultMaxListingIndex), agg.cfg.MaxIndex)
}

func TestBalanceReader_Get(t *testing.T) {
	r := newFakeReader()
	r.set(testContracts.Token, "get-balance", testDeployer, clarity.ResponseOk{Inner: clarity.NewUInt(5_000_000)})
	r.set(testContracts.Staking, "get-staked-balance-for", testDeployer, clarity.Tuple{"amount": clarity.NewUInt(2_000_000)})

	br := NewBalanceReader(r, testContracts, "", nil)
	bal, err := br.Get(context.Background(), testDeployer)
	require.NoError(t, err)

	assert.Equal(t, big.NewInt(5_000_000), bal.Spendable)
	assert.Equal(t, big.NewInt(2_000_000), bal.Staked)
	assert.Equal(t, 0, bal.Claimable.Sign())
	assert.Len(t, r.calls, 3)
}

func TestBalanceReader_InvalidPrincipal(t *testing.T) {
	br := NewBalanceReader(newFakeReader(), testContracts, "", nil)
	_, err := br.Get(context.Background(), "not-a-principal")
	require.Error(t, err)
	assert.ErrorIs(t, err, clarity.ErrInvalidPrincipal)
}

func TestGateway_FetchCachesSuccess(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/ipfs/QmGood":
			_, _ = w.Write([]byte(`{"name":"Villa","image":"ipfs://QmImg","extra":1}`))
		case "/ipfs/QmArray":
			_, _ = w.Write([]byte(`[1,2]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	g, err := NewGateway(GatewayConfig{BaseURL: srv.URL + "/ipfs/"}, srv.Client(), nil)
	require.NoError(t, err)

	ctx := context.Background()
	m, err := g.Fetch(ctx, "ipfs://QmGood")
	require.NoError(t, err)
	assert.Equal(t, "Villa", m.Name)
	assert.Equal(t, srv.URL+"/ipfs/QmImg", g.ImageURL(m))

	_, err = g.Fetch(ctx, "QmGood")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())

	_, err = g.Fetch(ctx, "QmMissing")
	require.Error(t, err)
	_, err = g.Fetch(ctx, "QmMissing")
	require.Error(t, err)
	assert.Equal(t, int32(3), hits.Load())

	_, err = g.Fetch(ctx, "QmArray")
	require.Error(t, err)

	_, err = g.Fetch(ctx, "")
	require.Error(t, err)
}

func TestCIDFromURI(t *testing.T) {
	cases := map[string]string{
		"ipfs://QmAbc":                            "QmAbc",
		"ipfs://ipfs/QmAbc":                       "QmAbc",
		"https://gateway.pinata.cloud/ipfs/QmAbc": "QmAbc",
		" QmAbc ":                                 "QmAbc",
		"":                                        "",
	}
	for in, want := range cases {
		assert.Equal(t, want, CIDFromURI(in), in)
	}
}
