package config

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/omnimint-bridge/internal/types"
	"github.com/yourorg/omnimint-bridge/internal/validation"
)

//go:embed chains.toml
var defaultRegistryTOML string

// registryFile is the on-disk layout of the chain registry
type registryFile struct {
	Chains      []types.ChainDescriptor        `toml:"chains"`
	Contracts   map[string]map[string]string   `toml:"contracts"`
	Unavailable map[string]map[string][]string `toml:"unavailable"`
}

// Registry is the chain list, the per-network contract address book and the
// unavailable-route matrix
type Registry struct {
	chains      []types.ChainDescriptor
	byNetwork   map[types.NetworkName]types.ChainDescriptor
	contracts   map[types.ProtocolKind]map[types.NetworkName]common.Address
	unavailable map[types.ProtocolKind]map[types.NetworkName]map[types.NetworkName]bool
}

// LoadRegistry reads a TOML registry from path, or the built-in one when path is empty
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return DefaultRegistry()
	}

	var f registryFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("failed to parse chain registry %s: %w", path, err)
	}
	r, err := newRegistry(f)
	if err != nil {
		return nil, fmt.Errorf("chain registry %s: %w", path, err)
	}
	logrus.Infof("Loaded %d chains from %s", len(r.chains), path)
	return r, nil
}

// DefaultRegistry returns the built-in registry
func DefaultRegistry() (*Registry, error) {
	return ParseRegistry(defaultRegistryTOML)
}

// ParseRegistry decodes a registry from TOML text
func ParseRegistry(data string) (*Registry, error) {
	var f registryFile
	if _, err := toml.Decode(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse chain registry: %w", err)
	}
	return newRegistry(f)
}

func newRegistry(f registryFile) (*Registry, error) {
	r := &Registry{
		chains:      validation.FilterChains(f.Chains),
		byNetwork:   make(map[types.NetworkName]types.ChainDescriptor),
		contracts:   make(map[types.ProtocolKind]map[types.NetworkName]common.Address),
		unavailable: make(map[types.ProtocolKind]map[types.NetworkName]map[types.NetworkName]bool),
	}
	if len(r.chains) == 0 {
		return nil, fmt.Errorf("no valid chains")
	}
	if dropped := len(f.Chains) - len(r.chains); dropped > 0 {
		logrus.Warnf("Dropped %d invalid chain entries from registry", dropped)
	}
	for _, c := range r.chains {
		r.byNetwork[c.Network] = c
	}

	for rawProtocol, book := range f.Contracts {
		protocol, err := types.ParseProtocol(rawProtocol)
		if err != nil {
			return nil, fmt.Errorf("contracts: %w", err)
		}
		r.contracts[protocol] = make(map[types.NetworkName]common.Address)
		for network, addr := range book {
			if isPlaceholder(addr) {
				continue
			}
			if !common.IsHexAddress(strings.TrimSpace(addr)) {
				return nil, fmt.Errorf("contracts.%s.%s: invalid address %q", rawProtocol, network, addr)
			}
			if a := common.HexToAddress(strings.TrimSpace(addr)); a != (common.Address{}) {
				r.contracts[protocol][types.NetworkName(network)] = a
			}
		}
	}

	for rawProtocol, matrix := range f.Unavailable {
		protocol, err := types.ParseProtocol(rawProtocol)
		if err != nil {
			return nil, fmt.Errorf("unavailable: %w", err)
		}
		r.unavailable[protocol] = make(map[types.NetworkName]map[types.NetworkName]bool)
		for from, dests := range matrix {
			set := make(map[types.NetworkName]bool, len(dests))
			for _, to := range dests {
				set[types.NetworkName(to)] = true
			}
			r.unavailable[protocol][types.NetworkName(from)] = set
		}
	}

	return r, nil
}

// isPlaceholder reports the "" and "0x" entries used for networks without a deployment
func isPlaceholder(addr string) bool {
	addr = strings.TrimSpace(addr)
	return addr == "" || strings.EqualFold(addr, "0x")
}

// Chains returns the registered chains in file order
func (r *Registry) Chains() []types.ChainDescriptor {
	out := make([]types.ChainDescriptor, len(r.chains))
	copy(out, r.chains)
	return out
}

// Chain looks a chain up by network name
func (r *Registry) Chain(network types.NetworkName) (types.ChainDescriptor, bool) {
	c, ok := r.byNetwork[network]
	return c, ok
}

// ChainByID looks a chain up by EVM chain id
func (r *Registry) ChainByID(id int64) (types.ChainDescriptor, bool) {
	for _, c := range r.chains {
		if c.ChainID == id {
			return c, true
		}
	}
	return types.ChainDescriptor{}, false
}

// ContractAddress returns the protocol's contract on network; false means not deployed
func (r *Registry) ContractAddress(protocol types.ProtocolKind, network types.NetworkName) (common.Address, bool) {
	addr, ok := r.contracts[protocol][network]
	return addr, ok
}

// Available reports whether protocol can carry a message from one network to
// another: both ends need a deployed contract and the pair must not be listed
// as unavailable.
func (r *Registry) Available(protocol types.ProtocolKind, from, to types.NetworkName) bool {
	if from == to {
		return false
	}
	if _, ok := r.ContractAddress(protocol, from); !ok {
		return false
	}
	if _, ok := r.ContractAddress(protocol, to); !ok {
		return false
	}
	return !r.unavailable[protocol][from][to]
}

// Networks returns the networks where protocol is deployed, in chain order
func (r *Registry) Networks(protocol types.ProtocolKind) []types.NetworkName {
	var out []types.NetworkName
	for _, c := range r.chains {
		if _, ok := r.ContractAddress(protocol, c.Network); ok {
			out = append(out, c.Network)
		}
	}
	return out
}
