package eventfilter

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	logger "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/global"
	"go.opentelemetry.io/otel/metric/instrument"
	"golang.org/x/sync/errgroup"

	"github.com/polyswarm/go-polyswarmd/pkg/messages"
)

const uninstallTimeout = time.Second * 5

// Manager owns the set of installed filters for one chain, runs a polling
// worker per filter, and forwards decoded messages to a single output
// channel. Start and Stop are serialized; Stop is idempotent.
type Manager struct {
	log   zerolog.Logger
	chain string

	client ChainClient
	codec  *messages.Codec
	specs  []Spec

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	eg      *errgroup.Group
	filters []*filter

	mEventCounter instrument.Int64Counter
}

// NewManager returns a manager that will maintain one filter per spec.
func NewManager(chain string, client ChainClient, codec *messages.Codec, specs []Spec) (*Manager, error) {
	meter := global.MeterProvider().Meter("polyswarmd")
	counter, err := meter.Int64Counter("polyswarmd.events.decoded",
		instrument.WithDescription("Decoded contract events by wire type"))
	if err != nil {
		return nil, fmt.Errorf("creating event counter: %s", err)
	}
	return &Manager{
		log:           logger.With().Str("component", "eventfilter").Str("chain", chain).Logger(),
		chain:         chain,
		client:        client,
		codec:         codec,
		specs:         specs,
		mEventCounter: counter,
	}, nil
}

// Start installs every filter and spawns one worker per filter, forwarding
// decoded messages to out. The channel is never closed by the manager.
func (m *Manager) Start(out chan<- messages.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return fmt.Errorf("filter manager already started")
	}

	ctx, cancel := context.WithCancel(context.Background())
	filters, err := m.install(ctx)
	if err != nil {
		cancel()
		m.uninstall(filters)
		return err
	}

	eg, ctx := errgroup.WithContext(ctx)
	for _, f := range filters {
		f := f
		eg.Go(func() error {
			return m.runFilter(ctx, f, out)
		})
	}

	m.started = true
	m.cancel = cancel
	m.eg = eg
	m.filters = filters
	m.log.Info().Int("filters", len(filters)).Msg("started")
	return nil
}

// Stop cancels all workers and removes the node-side filters. Calling Stop
// on a stopped manager does nothing.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return
	}
	m.cancel()
	_ = m.eg.Wait()
	m.uninstall(m.filters)
	m.filters = nil
	m.started = false
	m.log.Info().Msg("stopped")
}

func (m *Manager) install(ctx context.Context) ([]*filter, error) {
	filters := make([]*filter, 0, len(m.specs))
	for _, spec := range m.specs {
		f := &filter{spec: spec}
		if spec.Event != "" {
			cctx, cls := context.WithTimeout(ctx, pollTimeout)
			id, err := m.client.NewFilter(cctx, filterQuery(spec))
			cls()
			if err != nil {
				return filters, fmt.Errorf("installing %s filter: %s", spec.Event, err)
			}
			f.id = id
		}
		filters = append(filters, f)
	}
	return filters, nil
}

// uninstall best-effort removes node-side filters; failures are logged only.
// The manager guarantees each filter is uninstalled exactly once.
func (m *Manager) uninstall(filters []*filter) {
	for _, f := range filters {
		if f.id == "" {
			continue
		}
		ctx, cls := context.WithTimeout(context.Background(), uninstallTimeout)
		if _, err := m.client.UninstallFilter(ctx, f.id); err != nil {
			m.log.Warn().Err(err).Str("event", f.spec.Event).Msg("uninstalling filter")
		}
		cls()
		f.id = ""
	}
}

// runFilter is the worker loop for one filter. Transport errors back off and
// retry; decode errors skip the offending log. The loop exits only on
// context cancellation.
func (m *Manager) runFilter(ctx context.Context, f *filter, out chan<- messages.Message) error {
	for {
		if !sleep(ctx, f.nextWait()) {
			return nil
		}
		if f.spec.Event == "" {
			m.pollBlockTick(ctx, f, out)
			continue
		}
		m.pollLogs(ctx, f, out)
	}
}

func (m *Manager) pollLogs(ctx context.Context, f *filter, out chan<- messages.Message) {
	cctx, cls := context.WithTimeout(ctx, pollTimeout)
	logs, err := m.client.FilterChanges(cctx, f.id)
	cls()
	switch {
	case err != nil:
		if ctx.Err() != nil {
			return
		}
		f.recordError()
		m.log.Warn().Err(err).Str("event", f.spec.Event).Msg("polling filter")
		if filterGone(err) {
			m.reinstall(ctx, f)
		}
	case len(logs) == 0:
		f.recordEmpty()
	default:
		f.recordResults()
		for _, l := range logs {
			msg, err := m.codec.Decode(ctx, l)
			if err != nil {
				m.log.Warn().Err(err).
					Str("event", f.spec.Event).
					Str("txn_hash", l.TxHash.Hex()).
					Msg("decoding log, skipping")
				continue
			}
			m.mEventCounter.Add(ctx, 1,
				attribute.String("chain", m.chain), attribute.String("event", msg.Event))
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

// reinstall replaces a filter the node no longer knows about, which happens
// when a node restart drops its installed-filter table.
func (m *Manager) reinstall(ctx context.Context, f *filter) {
	cctx, cls := context.WithTimeout(ctx, pollTimeout)
	defer cls()
	id, err := m.client.NewFilter(cctx, filterQuery(f.spec))
	if err != nil {
		m.log.Warn().Err(err).Str("event", f.spec.Event).Msg("reinstalling filter")
		return
	}
	f.id = id
	m.log.Info().Str("event", f.spec.Event).Msg("filter reinstalled")
}

// filterGone reports whether a poll error means the node forgot the filter,
// as opposed to a transient transport fault.
func filterGone(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "filter not found")
}

func filterQuery(spec Spec) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		Addresses: []common.Address{spec.Address},
		Topics:    [][]common.Hash{{spec.Topic}},
	}
}

func (m *Manager) pollBlockTick(ctx context.Context, f *filter, out chan<- messages.Message) {
	cctx, cls := context.WithTimeout(ctx, pollTimeout)
	number, err := m.client.BlockNumber(cctx)
	cls()
	switch {
	case err != nil:
		if ctx.Err() != nil {
			return
		}
		f.recordError()
		m.log.Warn().Err(err).Msg("polling block number")
	case number <= f.lastBlock:
		f.recordEmpty()
	default:
		f.recordResults()
		f.lastBlock = number
		select {
		case out <- messages.NewBlockTick(number):
		case <-ctx.Done():
		}
	}
}
