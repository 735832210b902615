// Package chain holds the selectable chain descriptors and the process-wide
// current selection.
package chain

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/lugondev/anchorlite/internal/config"
)

// Kind separates EVM chains from the non-EVM (Solana) chain.
type Kind string

const (
	KindEVM    Kind = "evm"
	KindNonEVM Kind = "non-evm"
)

// DefaultFallbackCluster is used when the active cluster has no endpoint or
// explorer entry.
const DefaultFallbackCluster = "mainnet-beta"

// Descriptor describes one selectable chain.
type Descriptor struct {
	Key         string
	Kind        Kind
	DisplayName string

	// EVM only.
	ChainIDHex string
	Contract   string

	Cluster   string
	Endpoints map[string]string
	Explorers map[string]string

	// Non-EVM only.
	ProgramID string
	IDLPath   string
}

// IsNonEVM reports whether the descriptor is the non-EVM chain.
func (d Descriptor) IsNonEVM() bool {
	return d.Kind == KindNonEVM
}

// Endpoint returns the RPC endpoint of the active cluster, falling back to
// the mainnet-beta entry.
func (d Descriptor) Endpoint() string {
	return lookupCluster(d.Endpoints, d.Cluster)
}

// ExplorerBase returns the explorer base URL of the active cluster.
func (d Descriptor) ExplorerBase() string {
	return lookupCluster(d.Explorers, d.Cluster)
}

// ExplorerTxLink returns the explorer URL for a transaction signature or hash.
// A query on the base URL (such as ?cluster=devnet) is kept after the path.
func (d Descriptor) ExplorerTxLink(id string) string {
	return TxLink(d.ExplorerBase(), id)
}

// ChainID decodes the hexadecimal EVM chain id.
func (d Descriptor) ChainID() (uint64, error) {
	return hexutil.DecodeUint64(d.ChainIDHex)
}

// Validate checks the descriptor fields required by its kind.
func (d Descriptor) Validate() error {
	if d.Key == "" {
		return fmt.Errorf("chain descriptor has empty key")
	}

	switch d.Kind {
	case KindEVM:
		if _, err := d.ChainID(); err != nil {
			return fmt.Errorf("chain %s: invalid chain id %q: %w", d.Key, d.ChainIDHex, err)
		}
		if d.Contract != "" && !common.IsHexAddress(d.Contract) {
			return fmt.Errorf("chain %s: invalid contract address %q", d.Key, d.Contract)
		}
	case KindNonEVM:
		if d.ProgramID == "" {
			return fmt.Errorf("chain %s: program id is required", d.Key)
		}
		if d.Endpoint() == "" {
			return fmt.Errorf("chain %s: no endpoint for cluster %q", d.Key, d.Cluster)
		}
	default:
		return fmt.Errorf("chain %s: unknown kind %q", d.Key, d.Kind)
	}
	return nil
}

// Context snapshots the descriptor.
func (d Descriptor) Context() Context {
	return Context{
		Key:          d.Key,
		Cluster:      d.Cluster,
		Endpoint:     d.Endpoint(),
		ExplorerBase: d.ExplorerBase(),
		ProgramID:    d.ProgramID,
		IDLPath:      d.IDLPath,
	}
}

func (d Descriptor) clone() Descriptor {
	d.Endpoints = cloneMap(d.Endpoints)
	d.Explorers = cloneMap(d.Explorers)
	return d
}

// TxLink joins an explorer base and a transaction id as <base>/tx/<id>.
func TxLink(base, id string) string {
	if base == "" {
		return ""
	}

	u, err := url.Parse(base)
	if err != nil {
		return strings.TrimRight(base, "/") + "/tx/" + id
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/tx/" + id
	return u.String()
}

func lookupCluster(m map[string]string, cluster string) string {
	if v, ok := m[cluster]; ok && v != "" {
		return v
	}
	return m[DefaultFallbackCluster]
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Defaults returns the built-in descriptors: two EVM chains and Solana on the
// given cluster.
func Defaults(solana config.SolanaConfig) []Descriptor {
	cluster := solana.Cluster
	if cluster == "" {
		cluster = DefaultFallbackCluster
	}

	endpoints := map[string]string{
		"mainnet-beta": "https://api.mainnet-beta.solana.com",
		"mainnet":      "https://api.mainnet-beta.solana.com",
		"devnet":       "https://api.devnet.solana.com",
		"testnet":      "https://api.testnet.solana.com",
		"localnet":     "http://localhost:8899",
	}
	if solana.RPC != "" {
		endpoints[cluster] = solana.RPC
	}

	return []Descriptor{
		{
			Key:         "bsc",
			Kind:        KindEVM,
			DisplayName: "BNB Chain",
			ChainIDHex:  "0x38",
			Contract:    "0x499cEA3f6e1902d8f33b56c37271C85Bac68F6FC",
			Cluster:     "mainnet",
			Endpoints:   map[string]string{"mainnet": "https://bsc-dataseed1.binance.org/"},
			Explorers:   map[string]string{"mainnet": "https://bscscan.com"},
		},
		{
			Key:         "opbnb",
			Kind:        KindEVM,
			DisplayName: "opBNB",
			ChainIDHex:  "0xcc",
			Contract:    "0x31C5645Ffd25f9e4Fe984C63A80C72A866f67d35",
			Cluster:     "mainnet",
			Endpoints:   map[string]string{"mainnet": "https://opbnb-mainnet-rpc.bnbchain.org"},
			Explorers:   map[string]string{"mainnet": "https://opbnbscan.com"},
		},
		{
			Key:         "solana",
			Kind:        KindNonEVM,
			DisplayName: "Solana",
			Cluster:     cluster,
			Endpoints:   endpoints,
			Explorers: map[string]string{
				"mainnet-beta": "https://explorer.solana.com",
				"mainnet":      "https://explorer.solana.com",
				"devnet":       "https://explorer.solana.com?cluster=devnet",
				"testnet":      "https://explorer.solana.com?cluster=testnet",
				"localnet":     "https://explorer.solana.com?cluster=custom&customUrl=http%3A%2F%2Flocalhost%3A8899",
			},
			ProgramID: solana.ProgramID,
			IDLPath:   solana.IDLPath,
		},
	}
}

// FromConfig builds descriptors from the chains section, or returns the
// built-in defaults when no items are configured.
func FromConfig(cfg *config.Config) ([]Descriptor, error) {
	if len(cfg.Chains.Items) == 0 {
		return Defaults(cfg.Solana), nil
	}

	out := make([]Descriptor, 0, len(cfg.Chains.Items))
	for _, item := range cfg.Chains.Items {
		d := Descriptor{
			Key:         item.Key,
			Kind:        Kind(strings.ToLower(item.Kind)),
			DisplayName: item.DisplayName,
			ChainIDHex:  item.ChainIDHex,
			Contract:    item.Contract,
			Cluster:     item.Cluster,
			Endpoints:   cloneMap(item.Endpoints),
			Explorers:   cloneMap(item.Explorers),
			ProgramID:   item.ProgramID,
			IDLPath:     item.IDLPath,
		}
		if d.Kind == "solana" || d.Kind == "nonevm" {
			d.Kind = KindNonEVM
		}
		if d.IsNonEVM() {
			if d.ProgramID == "" {
				d.ProgramID = cfg.Solana.ProgramID
			}
			if d.IDLPath == "" {
				d.IDLPath = cfg.Solana.IDLPath
			}
		}
		if err := d.Validate(); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
