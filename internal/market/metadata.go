package market

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/pvzzle/stxwatch/internal/logging"
	"github.com/pvzzle/stxwatch/internal/metrics"
)

const maxMetadataBytes = 1 << 20

// Metadata is the off-chain token document. Only Name and Image are read; the
// full document is kept in Raw.
type Metadata struct {
	Name  string
	Image string
	Raw   map[string]any
}

type MetadataFetcher interface {
	Fetch(ctx context.Context, cid string) (Metadata, error)
}

type GatewayConfig struct {
	BaseURL   string
	CacheSize int
	Timeout   time.Duration
}

// Gateway fetches documents from a content-addressed HTTP gateway. Documents
// are immutable per CID, so successful fetches are cached.
type Gateway struct {
	base    string
	timeout time.Duration
	hc      *http.Client
	cache   *lru.Cache[string, Metadata]
	log     *zap.Logger
}

func NewGateway(cfg GatewayConfig, hc *http.Client, logger *zap.Logger) (*Gateway, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://gateway.pinata.cloud/ipfs"
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 256
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if hc == nil {
		hc = http.DefaultClient
	}

	cache, err := lru.New[string, Metadata](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("metadata cache: %w", err)
	}

	return &Gateway{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		hc:      hc,
		cache:   cache,
		log:     logging.OrNop(logger).Named("gateway"),
	}, nil
}

func (g *Gateway) Fetch(ctx context.Context, cid string) (Metadata, error) {
	cid = CIDFromURI(cid)
	if cid == "" {
		return Metadata{}, errors.New("metadata: empty content id")
	}
	if m, ok := g.cache.Get(cid); ok {
		metrics.MetadataFetches.WithLabelValues("hit").Inc()
		return m, nil
	}

	m, err := g.fetch(ctx, cid)
	if err != nil {
		metrics.MetadataFetches.WithLabelValues("error").Inc()
		g.log.Debug("metadata fetch failed", zap.String("cid", cid), zap.Error(err))
		return Metadata{}, err
	}
	metrics.MetadataFetches.WithLabelValues("ok").Inc()
	g.cache.Add(cid, m)
	return m, nil
}

func (g *Gateway) fetch(ctx context.Context, cid string) (Metadata, error) {
	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(cctx, http.MethodGet, g.base+"/"+cid, nil)
	if err != nil {
		return Metadata{}, fmt.Errorf("metadata request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.hc.Do(req)
	if err != nil {
		return Metadata{}, fmt.Errorf("metadata %s: %w", cid, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Metadata{}, fmt.Errorf("metadata %s: HTTP %d", cid, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxMetadataBytes))
	if err != nil {
		return Metadata{}, fmt.Errorf("metadata %s: read: %w", cid, err)
	}
	return ParseMetadata(raw)
}

// ParseMetadata accepts any JSON object.
func ParseMetadata(raw []byte) (Metadata, error) {
	var doc map[string]any
	if err := sonic.Unmarshal(raw, &doc); err != nil {
		return Metadata{}, fmt.Errorf("metadata: %w", err)
	}
	if doc == nil {
		return Metadata{}, errors.New("metadata: not a JSON object")
	}

	m := Metadata{Raw: doc}
	m.Name, _ = doc["name"].(string)
	m.Image, _ = doc["image"].(string)
	return m, nil
}

// ImageURL resolves ipfs:// image references against the gateway.
func (g *Gateway) ImageURL(m Metadata) string {
	if cid := strings.TrimPrefix(m.Image, "ipfs://"); cid != m.Image {
		return g.base + "/" + strings.TrimPrefix(cid, "ipfs/")
	}
	return m.Image
}

// CIDFromURI strips ipfs:// and gateway-style prefixes from a token URI.
func CIDFromURI(uri string) string {
	s := strings.TrimSpace(uri)
	s = strings.TrimPrefix(s, "ipfs://")
	s = strings.TrimPrefix(s, "ipfs/")
	if i := strings.Index(s, "/ipfs/"); i >= 0 && strings.HasPrefix(s, "http") {
		s = s[i+len("/ipfs/"):]
	}
	return strings.Trim(s, "/")
}
