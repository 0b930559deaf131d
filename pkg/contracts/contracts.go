// Package contracts binds the gateway's contract set: the pair of checksum
// address and ABI per contract, validated against per-contract version
// ranges at startup.
package contracts

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// Contract names as they appear in configuration.
const (
	NectarToken    = "nectar_token"
	BountyRegistry = "bounty_registry"
	ArbiterStaking = "arbiter_staking"
	ERC20Relay     = "erc20_relay"
	OfferRegistry  = "offer_registry"
	OfferMultiSig  = "offer_multisig"
)

var rawABIs = map[string]string{
	NectarToken:    NectarTokenABI,
	BountyRegistry: BountyRegistryABI,
	ArbiterStaking: ArbiterStakingABI,
	ERC20Relay:     ERC20RelayABI,
	OfferRegistry:  OfferRegistryABI,
	OfferMultiSig:  OfferMultiSigABI,
}

// versionRanges holds the accepted [min, max) VERSION() range per contract.
// Contracts absent from the map aren't version-checked.
var versionRanges = map[string][2]string{
	ArbiterStaking: {"1.2.0", "1.3.0"},
	BountyRegistry: {"1.6.0", "1.7.0"},
	ERC20Relay:     {"1.2.0", "1.4.0"},
	OfferRegistry:  {"1.2.0", "1.3.0"},
}

// Binding is a deployed contract handle: checksum address plus parsed ABI.
// Bindings are immutable after startup.
type Binding struct {
	Name    string
	Address common.Address
	ABI     abi.ABI

	contract *bind.BoundContract
}

// NewBinding parses the ABI for name and binds it at address on backend.
func NewBinding(name string, address common.Address, backend bind.ContractBackend) (*Binding, error) {
	raw, ok := rawABIs[name]
	if !ok {
		return nil, fmt.Errorf("unknown contract %q", name)
	}
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing %s abi: %s", name, err)
	}
	return &Binding{
		Name:     name,
		Address:  address,
		ABI:      parsed,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
	}, nil
}

// Call invokes a view function and stores the outputs in results.
func (b *Binding) Call(ctx context.Context, results *[]interface{}, method string, params ...interface{}) error {
	return b.contract.Call(&bind.CallOpts{Context: ctx}, results, method, params...)
}

// Pack encodes calldata for method.
func (b *Binding) Pack(method string, params ...interface{}) ([]byte, error) {
	return b.ABI.Pack(method, params...)
}

// CheckVersion validates the on-chain VERSION() against the accepted range
// for this contract. It is called once at startup; a mismatch is fatal.
func (b *Binding) CheckVersion(ctx context.Context) error {
	bounds, ok := versionRanges[b.Name]
	if !ok {
		return nil
	}
	var out []interface{}
	if err := b.Call(ctx, &out, "VERSION"); err != nil {
		return fmt.Errorf("calling %s VERSION(): %s", b.Name, err)
	}
	reported, ok := out[0].(string)
	if !ok {
		return fmt.Errorf("%s VERSION() returned a non-string", b.Name)
	}
	version, err := semver.NewVersion(reported)
	if err != nil {
		return fmt.Errorf("parsing %s version %q: %s", b.Name, reported, err)
	}
	constraint, err := semver.NewConstraint(fmt.Sprintf(">= %s, < %s", bounds[0], bounds[1]))
	if err != nil {
		return fmt.Errorf("building %s version constraint: %s", b.Name, err)
	}
	if !constraint.Check(version) {
		return fmt.Errorf("%s version %s outside supported range [%s, %s)",
			b.Name, reported, bounds[0], bounds[1])
	}
	return nil
}

// MustABI parses one of the raw ABI constants; it panics on malformed input
// and is meant for package-level ABI tables.
func MustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// EventID returns the topic hash for event in the named contract's ABI.
func EventID(contract, event string) (common.Hash, error) {
	raw, ok := rawABIs[contract]
	if !ok {
		return common.Hash{}, fmt.Errorf("unknown contract %q", contract)
	}
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		return common.Hash{}, err
	}
	ev, ok := parsed.Events[event]
	if !ok {
		return common.Hash{}, fmt.Errorf("contract %s has no event %s", contract, event)
	}
	return ev.ID, nil
}
