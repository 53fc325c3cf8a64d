package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/pvzzle/stxwatch/internal/stacks"
	"github.com/pvzzle/stxwatch/internal/wallet"
)

type Config struct {
	// Required by serve only.
	TelegramToken string `env:"TELEGRAM_TOKEN"`
	PostgresURL   string `env:"POSTGRES_URL"`

	Network   string   `env:"STACKS_NETWORK"`
	Endpoints []string `env:"STACKS_ENDPOINTS" envSeparator:","`

	ReadMaxRetries int           `env:"READ_MAX_RETRIES"`
	ReadTimeout    time.Duration `env:"READ_TIMEOUT"`
	ReadBaseDelay  time.Duration `env:"READ_BASE_DELAY"`
	ReadRPS        float64       `env:"READ_RPS"`
	ReadSender     string        `env:"READ_SENDER"`

	BroadcastURL string `env:"BROADCAST_URL"`
	StatusURL    string `env:"STATUS_URL"`

	PollInterval    time.Duration `env:"POLL_INTERVAL"`
	PollMaxAttempts int           `env:"POLL_MAX_ATTEMPTS"`

	IPFSGateway        string `env:"IPFS_GATEWAY"`
	MetadataCacheSize  int    `env:"METADATA_CACHE_SIZE"`
	ListingConcurrency int    `env:"LISTING_CONCURRENCY"`
	MaxListingIndex    uint64 `env:"MAX_LISTING_INDEX"`

	Deployer            string `env:"DEPLOYER_ADDRESS"`
	NFTContract         string `env:"NFT_CONTRACT"`
	MarketplaceContract string `env:"MARKETPLACE_CONTRACT"`
	StakingContract     string `env:"STAKING_CONTRACT"`
	TokenContract       string `env:"TOKEN_CONTRACT"`
	NFTAssetName        string `env:"NFT_ASSET_NAME"`
	ContractsFile       string `env:"CONTRACTS_FILE"`

	WatcherWorkers int `env:"WATCHER_WORKERS"`
	TasksBuffer    int `env:"TASKS_BUFFER"`
	NotifyBuffer   int `env:"NOTIFY_BUFFER"`

	MetricsAddr     string `env:"METRICS_ADDR"`
	LogLevel        string `env:"LOG_LEVEL"`
	LogDev          bool   `env:"LOG_DEV"`
	WalletBridgeURL string `env:"WALLET_BRIDGE_URL"`
}

// contractsFile overrides the deployer and contract names. Entries may be a
// bare name (deployed by Deployer) or a full "address.name" id.
type contractsFile struct {
	Deployer    string `yaml:"deployer"`
	NFT         string `yaml:"nft"`
	Marketplace string `yaml:"marketplace"`
	Staking     string `yaml:"staking"`
	Token       string `yaml:"token"`
	AssetName   string `yaml:"asset_name"`
}

// Contracts is the resolved contract set.
type Contracts struct {
	NFT         stacks.ContractID
	Marketplace stacks.ContractID
	Staking     stacks.ContractID
	Token       stacks.ContractID
	AssetName   string
}

var defaultEndpoints = map[string][]string{
	"testnet": {
		"https://api.testnet.hiro.so",
		"https://stacks-node-api.testnet.stacks.co",
		"https://stacks-node-api.blockstack.org",
	},
	"mainnet": {
		"https://api.mainnet.hiro.so",
		"https://stacks-node-api.mainnet.stacks.co",
		"https://stacks-node-api.blockstack.org",
	},
}

func defaultConfig() Config {
	return Config{
		ReadMaxRetries:      3,
		ReadTimeout:         7 * time.Second,
		ReadBaseDelay:       400 * time.Millisecond,
		PollInterval:        5 * time.Second,
		PollMaxAttempts:     60,
		IPFSGateway:         "https://gateway.pinata.cloud/ipfs",
		MetadataCacheSize:   256,
		ListingConcurrency:  8,
		MaxListingIndex:     10_000,
		Deployer:            "ST16W5DG0N8VP85W6DK1ZB4ME3BK3WN2750H78FNX",
		NFTContract:         "rwa-nft-contract-v4",
		MarketplaceContract: "marketplace-contract-v6",
		StakingContract:     "staking-contract-v7",
		TokenContract:       "aria-token-v2",
		NFTAssetName:        "rwa-nft",
		WatcherWorkers:      8,
		TasksBuffer:         4096,
		NotifyBuffer:        4096,
		LogLevel:            "info",
	}
}

func LoadConfig() (Config, error) {
	err := godotenv.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Warning: .env file not found, relying on environment variables")
	}

	config := defaultConfig()

	if err := env.Parse(&config); err != nil {
		return Config{}, err
	}

	if config.ContractsFile != "" {
		if err := config.applyContractsFile(config.ContractsFile); err != nil {
			return Config{}, err
		}
	}

	if err := config.finish(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c *Config) applyContractsFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("contracts file: %w", err)
	}
	var f contractsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("contracts file %s: %w", path, err)
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Deployer, f.Deployer)
	set(&c.NFTContract, f.NFT)
	set(&c.MarketplaceContract, f.Marketplace)
	set(&c.StakingContract, f.Staking)
	set(&c.TokenContract, f.Token)
	set(&c.NFTAssetName, f.AssetName)
	return nil
}

// finish fills values derived from other settings.
func (c *Config) finish() error {
	eps := c.Endpoints[:0]
	for _, e := range c.Endpoints {
		if e = strings.TrimSpace(e); e != "" {
			eps = append(eps, e)
		}
	}
	c.Endpoints = eps

	// Without an explicit network, the primary endpoint decides.
	c.Network = strings.ToLower(strings.TrimSpace(c.Network))
	switch {
	case c.Network != "":
	case len(c.Endpoints) > 0:
		c.Network = wallet.NetworkFromURL(c.Endpoints[0])
	default:
		c.Network = "testnet"
	}
	if _, ok := defaultEndpoints[c.Network]; !ok {
		return fmt.Errorf("STACKS_NETWORK: unknown network %q", c.Network)
	}
	if len(c.Endpoints) == 0 {
		c.Endpoints = append([]string(nil), defaultEndpoints[c.Network]...)
	}

	if c.BroadcastURL == "" {
		c.BroadcastURL = c.Endpoints[0]
	}
	if c.StatusURL == "" {
		c.StatusURL = c.Endpoints[0]
	}
	if c.ReadSender == "" {
		c.ReadSender = c.Deployer
	}
	return nil
}

// Contracts resolves the configured names against the deployer.
func (c Config) Contracts() (Contracts, error) {
	resolve := func(field, v string) (stacks.ContractID, error) {
		if !strings.Contains(v, ".") {
			v = c.Deployer + "." + v
		}
		id, err := stacks.ParseContractID(v)
		if err != nil {
			return stacks.ContractID{}, fmt.Errorf("%s: %w", field, err)
		}
		return id, nil
	}

	var (
		out Contracts
		err error
	)
	if out.NFT, err = resolve("NFT_CONTRACT", c.NFTContract); err != nil {
		return Contracts{}, err
	}
	if out.Marketplace, err = resolve("MARKETPLACE_CONTRACT", c.MarketplaceContract); err != nil {
		return Contracts{}, err
	}
	if out.Staking, err = resolve("STAKING_CONTRACT", c.StakingContract); err != nil {
		return Contracts{}, err
	}
	if out.Token, err = resolve("TOKEN_CONTRACT", c.TokenContract); err != nil {
		return Contracts{}, err
	}
	out.AssetName = c.NFTAssetName
	return out, nil
}
