// Package chains builds the per-chain stack: node clients, contract
// bindings, codec, event hub, relay, and receipt extractor. Everything the
// gateway knows about a chain hangs off the Chain value; there is no
// process-global chain state.
package chains

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/polyswarm/go-polyswarmd/internal/events"
	"github.com/polyswarm/go-polyswarmd/pkg/contracts"
	"github.com/polyswarm/go-polyswarmd/pkg/eventfilter"
	"github.com/polyswarm/go-polyswarmd/pkg/messages"
	"github.com/polyswarm/go-polyswarmd/pkg/receipts"
	"github.com/polyswarm/go-polyswarmd/pkg/relay"
)

// Chain names.
const (
	HomeName = "home"
	SideName = "side"
)

// Receipt-wait deadlines per chain. The home chain mines slower.
const (
	homeReceiptTimeout = time.Second * 60
	sideReceiptTimeout = time.Second * 10
)

// Config describes one chain from the gateway configuration.
type Config struct {
	Name      string
	ChainID   int64
	Endpoint  string
	Free      bool
	Trace     bool
	Contracts map[string]string
}

// Chain is one configured network with its immutable contract bindings and
// the components serving it. A Chain lives for the process lifetime.
type Chain struct {
	Name string
	ID   *big.Int
	Free bool

	Client   *ethclient.Client
	RPC      *rpc.Client
	Bindings map[string]*contracts.Binding

	Codec     *messages.Codec
	Hub       *events.Hub
	Relay     *relay.Relay
	Extractor *receipts.Extractor

	msigABI abi.ABI

	offerMu   sync.Mutex
	offerHubs map[string]*events.Hub
}

// New dials the chain, binds and version-checks its contracts, and wires the
// event and relay components.
func New(ctx context.Context, cfg Config, resolver messages.MetadataResolver) (*Chain, error) {
	if cfg.Name != HomeName && cfg.Name != SideName {
		return nil, fmt.Errorf("unknown chain name %q", cfg.Name)
	}
	rpcClient, err := rpc.DialContext(ctx, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("dialing %s endpoint: %s", cfg.Name, err)
	}
	client := ethclient.NewClient(rpcClient)

	c := &Chain{
		Name:      cfg.Name,
		ID:        big.NewInt(cfg.ChainID),
		Free:      cfg.Free,
		Client:    client,
		RPC:       rpcClient,
		Bindings:  map[string]*contracts.Binding{},
		msigABI:   contracts.MustABI(contracts.OfferMultiSigABI),
		offerHubs: map[string]*events.Hub{},
	}

	for name, addr := range cfg.Contracts {
		binding, err := contracts.NewBinding(name, common.HexToAddress(addr), client)
		if err != nil {
			return nil, fmt.Errorf("binding %s on %s: %s", name, cfg.Name, err)
		}
		if err := binding.CheckVersion(ctx); err != nil {
			return nil, fmt.Errorf("version check on %s: %s", cfg.Name, err)
		}
		c.Bindings[name] = binding
	}
	for _, required := range []string{
		contracts.NectarToken, contracts.BountyRegistry,
		contracts.ArbiterStaking, contracts.ERC20Relay,
	} {
		if _, ok := c.Bindings[required]; !ok {
			return nil, fmt.Errorf("chain %s is missing the %s contract", cfg.Name, required)
		}
	}
	if cfg.Name == HomeName {
		if _, ok := c.Bindings[contracts.OfferRegistry]; !ok {
			return nil, fmt.Errorf("home chain is missing the %s contract", contracts.OfferRegistry)
		}
	}

	abis := make([]abi.ABI, 0, len(c.Bindings)+1)
	for _, b := range c.Bindings {
		abis = append(abis, b.ABI)
	}
	abis = append(abis, c.msigABI)
	c.Codec = messages.NewCodec(abis, resolver)

	filterClient := eventfilter.NewClient(rpcClient)
	c.Hub = events.NewHub(cfg.Name, func() (events.FilterManager, error) {
		m, err := eventfilter.NewManager(cfg.Name, filterClient, c.Codec, c.filterSpecs())
		if err != nil {
			return nil, err
		}
		return m, nil
	})

	whitelist := map[common.Address]string{}
	for name, b := range c.Bindings {
		whitelist[b.Address] = name
	}
	c.Relay = relay.New(
		cfg.Name,
		c.ID,
		whitelist,
		c.Bindings[contracts.NectarToken].Address,
		c.Bindings[contracts.ERC20Relay].Address,
		c.Bindings[contracts.NectarToken].ABI,
	)

	timeout := sideReceiptTimeout
	if cfg.Name == HomeName {
		timeout = homeReceiptTimeout
	}
	var traceRPC *rpc.Client
	if cfg.Trace {
		traceRPC = rpcClient
	}
	c.Extractor = receipts.New(cfg.Name, client, traceRPC, c.Codec, c.extractionTable(), timeout)

	return c, nil
}

// Close shuts the hubs and the node connection.
func (c *Chain) Close() {
	c.Hub.Close()
	c.offerMu.Lock()
	hubs := make([]*events.Hub, 0, len(c.offerHubs))
	for _, h := range c.offerHubs {
		hubs = append(hubs, h)
	}
	c.offerHubs = map[string]*events.Hub{}
	c.offerMu.Unlock()
	for _, h := range hubs {
		h.Close()
	}
	c.RPC.Close()
}

// OfferHub returns the hub streaming a single offer channel's multisig
// events, creating it on first use. msig is the channel's multisig address.
func (c *Chain) OfferHub(guid string, msig common.Address) *events.Hub {
	c.offerMu.Lock()
	defer c.offerMu.Unlock()
	if h, ok := c.offerHubs[guid]; ok {
		return h
	}
	filterClient := eventfilter.NewClient(c.RPC)
	h := events.NewHub(c.Name+":"+guid, func() (events.FilterManager, error) {
		m, err := eventfilter.NewManager(c.Name, filterClient, c.Codec, c.offerFilterSpecs(msig))
		if err != nil {
			return nil, err
		}
		return m, nil
	})
	c.offerHubs[guid] = h
	return h
}

// filterSpecs is the filter set behind the chain-wide event stream. The
// block tick and NewBounty poll at the floor interval; the rest back off
// while idle.
func (c *Chain) filterSpecs() []eventfilter.Spec {
	registry := c.Bindings[contracts.BountyRegistry]
	specs := []eventfilter.Spec{
		eventfilter.BlockTickSpec(),
		c.spec(registry, "NewBounty", false),
		c.spec(registry, "FeesUpdated", true),
		c.spec(registry, "WindowsUpdated", true),
		c.spec(registry, "NewAssertion", true),
		c.spec(registry, "NewVote", true),
		c.spec(registry, "QuorumReached", true),
		c.spec(registry, "SettledBounty", true),
		c.spec(registry, "RevealedAssertion", true),
		c.spec(registry, "Deprecated", true),
		c.spec(registry, "Undeprecated", true),
	}
	if offers, ok := c.Bindings[contracts.OfferRegistry]; ok {
		specs = append(specs, c.spec(offers, "InitializedChannel", true))
	}
	return specs
}

func (c *Chain) offerFilterSpecs(msig common.Address) []eventfilter.Spec {
	names := []string{"ClosedAgreement", "StartedSettle", "SettleStateChallenged"}
	specs := make([]eventfilter.Spec, 0, len(names))
	for _, name := range names {
		specs = append(specs, eventfilter.Spec{
			Event:   name,
			Address: msig,
			Topic:   c.msigABI.Events[name].ID,
			Backoff: true,
		})
	}
	return specs
}

func (c *Chain) spec(b *contracts.Binding, event string, backoff bool) eventfilter.Spec {
	return eventfilter.Spec{
		Event:   event,
		Address: b.Address,
		Topic:   b.ABI.Events[event].ID,
		Backoff: backoff,
	}
}

// extractionTable maps receipt logs to the grouped keys of
// GET /transactions responses.
func (c *Chain) extractionTable() []receipts.Extraction {
	table := []receipts.Extraction{}
	add := func(b *contracts.Binding, event, key string) {
		table = append(table, receipts.Extraction{
			Address: b.Address,
			Topic:   b.ABI.Events[event].ID,
			Key:     key,
		})
	}
	add(c.Bindings[contracts.NectarToken], "Transfer", "transfers")
	registry := c.Bindings[contracts.BountyRegistry]
	add(registry, "NewBounty", "bounties")
	add(registry, "NewAssertion", "assertions")
	add(registry, "NewVote", "votes")
	add(registry, "RevealedAssertion", "reveals")
	staking := c.Bindings[contracts.ArbiterStaking]
	add(staking, "NewWithdrawal", "withdrawals")
	add(staking, "NewDeposit", "deposits")

	if offers, ok := c.Bindings[contracts.OfferRegistry]; ok {
		add(offers, "InitializedChannel", "offers_initialized")
		// Multisig instances live at per-channel addresses, so match by
		// topic only.
		msig := func(event, key string) {
			table = append(table, receipts.Extraction{
				Topic: c.msigABI.Events[event].ID,
				Key:   key,
			})
		}
		msig("OpenedAgreement", "offers_opened")
		msig("CanceledAgreement", "offers_canceled")
		msig("JoinedAgreement", "offers_joined")
		msig("ClosedAgreement", "offers_closed")
		msig("StartedSettle", "offers_settled")
		msig("SettleStateChallenged", "offers_challenged")
	}
	return table
}

// Set is the pair of configured chains. Side may be nil.
type Set struct {
	Home *Chain
	Side *Chain
}

// ByName resolves a chain query parameter. An empty name selects home.
func (s *Set) ByName(name string) (*Chain, error) {
	switch name {
	case "", HomeName:
		return s.Home, nil
	case SideName:
		if s.Side == nil {
			return nil, fmt.Errorf("side chain is not configured")
		}
		return s.Side, nil
	default:
		return nil, fmt.Errorf("unknown chain %q", name)
	}
}

// Close closes both chains.
func (s *Set) Close() {
	if s.Home != nil {
		s.Home.Close()
	}
	if s.Side != nil {
		s.Side.Close()
	}
}
