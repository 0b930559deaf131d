// Package events fans contract-event messages out to websocket subscribers.
// One Hub exists per chain; it lazily runs a filter manager while at least
// one subscriber is attached.
package events

import (
	"context"
	"fmt"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	logger "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/global"
	"go.opentelemetry.io/otel/metric/instrument"

	"github.com/polyswarm/go-polyswarmd/pkg/messages"
)

// managerQueueSize buffers decoded messages between the filter manager's
// workers and the broadcast pump.
const managerQueueSize = 64

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// FilterManager is the filter lifecycle the hub drives. Implemented by
// pkg/eventfilter.Manager.
type FilterManager interface {
	Start(out chan<- messages.Message) error
	Stop()
}

// Hub tracks the live subscribers of one chain's event stream and broadcasts
// decoded messages to all of them. The filter manager is constructed when
// the first subscriber registers and stopped when the last one leaves.
type Hub struct {
	log        zerolog.Logger
	chain      string
	newManager func() (FilterManager, error)

	mu          sync.Mutex
	subscribers map[*Subscriber]struct{}
	manager     FilterManager
	quit        chan struct{}

	mSubscribers instrument.Int64UpDownCounter
}

// NewHub returns a hub that builds its filter manager with newManager.
func NewHub(chain string, newManager func() (FilterManager, error)) *Hub {
	meter := global.MeterProvider().Meter("polyswarmd")
	subscribers, err := meter.Int64UpDownCounter("polyswarmd.hub.subscribers",
		instrument.WithDescription("Attached websocket subscribers"))
	if err != nil {
		logger.Error().Err(err).Msg("creating subscriber counter")
	}
	return &Hub{
		log:         logger.With().Str("component", "hub").Str("chain", chain).Logger(),
		chain:       chain,
		newManager:  newManager,
		subscribers: map[*Subscriber]struct{}{},

		mSubscribers: subscribers,
	}
}

// Register attaches a subscriber, starting the filter manager if this is the
// first one.
func (h *Hub) Register(s *Subscriber) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.manager == nil {
		manager, err := h.newManager()
		if err != nil {
			return fmt.Errorf("building filter manager: %s", err)
		}
		out := make(chan messages.Message, managerQueueSize)
		if err := manager.Start(out); err != nil {
			return fmt.Errorf("starting filter manager: %s", err)
		}
		quit := make(chan struct{})
		go h.pump(out, quit)
		h.manager = manager
		h.quit = quit
	}
	h.subscribers[s] = struct{}{}
	if h.mSubscribers != nil {
		h.mSubscribers.Add(context.Background(), 1, attribute.String("chain", h.chain))
	}
	h.log.Debug().Int("subscribers", len(h.subscribers)).Msg("subscriber registered")
	return nil
}

// Unregister detaches a subscriber. When the last one leaves the filter
// manager is stopped and its node-side filters removed.
func (h *Hub) Unregister(s *Subscriber) {
	h.mu.Lock()
	if _, ok := h.subscribers[s]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.subscribers, s)
	var manager FilterManager
	var quit chan struct{}
	if len(h.subscribers) == 0 && h.manager != nil {
		manager = h.manager
		quit = h.quit
		h.manager = nil
		h.quit = nil
	}
	remaining := len(h.subscribers)
	h.mu.Unlock()

	if h.mSubscribers != nil {
		h.mSubscribers.Add(context.Background(), -1, attribute.String("chain", h.chain))
	}
	h.log.Debug().Int("subscribers", remaining).Msg("subscriber unregistered")
	if manager != nil {
		manager.Stop()
		close(quit)
	}
}

// Broadcast enqueues a message to every subscriber. A subscriber whose queue
// is full is dropped without affecting the others; no I/O happens under the
// hub lock.
func (h *Hub) Broadcast(msg messages.Message) {
	frame, err := jsonAPI.Marshal(msg)
	if err != nil {
		h.log.Error().Err(err).Str("event", msg.Event).Msg("marshaling frame")
		return
	}

	var slow []*Subscriber
	h.mu.Lock()
	for s := range h.subscribers {
		if !s.enqueue(frame) {
			slow = append(slow, s)
		}
	}
	h.mu.Unlock()

	for _, s := range slow {
		h.log.Warn().Msg("dropping slow subscriber")
		h.Unregister(s)
		go s.closeSlow()
	}
}

// Close drops every subscriber and stops the filter manager. Used at
// shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	subscribers := make([]*Subscriber, 0, len(h.subscribers))
	for s := range h.subscribers {
		subscribers = append(subscribers, s)
	}
	h.mu.Unlock()

	for _, s := range subscribers {
		h.Unregister(s)
		s.closeNormal()
	}
}

func (h *Hub) pump(out <-chan messages.Message, quit <-chan struct{}) {
	for {
		select {
		case msg := <-out:
			h.Broadcast(msg)
		case <-quit:
			return
		}
	}
}
