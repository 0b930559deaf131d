package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	logger "github.com/rs/zerolog/log"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/polyswarm/go-polyswarmd/pkg/offers"
)

// relayFrameSchema constrains frames received on /messages/{guid}.
const relayFrameSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"properties": {
		"type": {"type": "string"},
		"state": {"type": "string"},
		"from_socket": {"type": "string"},
		"to_socket": {"type": "string"},
		"artifact": {"type": "string"},
		"r": {"type": "string"},
		"v": {"type": "integer"},
		"s": {"type": "string"}
	},
	"required": ["type", "state"]
}`

var compiledRelayFrameSchema = jsonschema.MustCompileString("relay-frame.json", relayFrameSchema)

// relayFrame is a decoded inbound frame.
type relayFrame struct {
	Type       string      `json:"type"`
	State      string      `json:"state"`
	FromSocket string      `json:"from_socket,omitempty"`
	ToSocket   string      `json:"to_socket,omitempty"`
	Artifact   string      `json:"artifact,omitempty"`
	R          string      `json:"r,omitempty"`
	V          interface{} `json:"v,omitempty"`
	S          string      `json:"s,omitempty"`
}

// GroupRegistry tracks the bidirectional relay groups keyed by offer channel
// GUID. A group exists while it has members.
type GroupRegistry struct {
	log    zerolog.Logger
	mu     sync.Mutex
	groups map[string]*group
}

type group struct {
	guid    string
	mu      sync.Mutex
	members map[string]*Member
}

// Member is one websocket participant of a relay group.
type Member struct {
	ID    string
	conn  *websocket.Conn
	queue chan []byte
	done  chan struct{}
	once  sync.Once
}

// NewGroupRegistry returns an empty registry.
func NewGroupRegistry() *GroupRegistry {
	return &GroupRegistry{
		log:    logger.With().Str("component", "msggroups").Logger(),
		groups: map[string]*group{},
	}
}

// Join adds a new member to the group for guid, creating the group when
// needed.
func (r *GroupRegistry) Join(guid string, conn *websocket.Conn) *Member {
	r.mu.Lock()
	g, ok := r.groups[guid]
	if !ok {
		g = &group{guid: guid, members: map[string]*Member{}}
		r.groups[guid] = g
	}
	r.mu.Unlock()

	m := &Member{
		ID:    uuid.NewString(),
		conn:  conn,
		queue: make(chan []byte, subscriberQueueSize),
		done:  make(chan struct{}),
	}
	g.mu.Lock()
	g.members[m.ID] = m
	g.mu.Unlock()
	go m.writePump()
	return m
}

// Leave removes a member; the group is deleted once empty.
func (r *GroupRegistry) Leave(guid string, m *Member) {
	r.mu.Lock()
	g, ok := r.groups[guid]
	r.mu.Unlock()
	if !ok {
		return
	}
	g.mu.Lock()
	delete(g.members, m.ID)
	empty := len(g.members) == 0
	g.mu.Unlock()
	m.close()

	if empty {
		r.mu.Lock()
		if g, ok := r.groups[guid]; ok && len(g.members) == 0 {
			delete(r.groups, guid)
		}
		r.mu.Unlock()
	}
}

// Relay validates an inbound frame from a group member, decodes the offer
// state it carries, and rebroadcasts it to every other member. Senders must
// already be members, and frames addressed to an unknown to_socket are
// rejected.
func (r *GroupRegistry) Relay(guid string, sender *Member, raw []byte) error {
	r.mu.Lock()
	g, ok := r.groups[guid]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("no message group for channel %s", guid)
	}

	var parsed interface{}
	if err := jsonAPI.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("parsing frame: %s", err)
	}
	if err := compiledRelayFrameSchema.Validate(parsed); err != nil {
		return fmt.Errorf("invalid frame: %s", err)
	}
	var frame relayFrame
	if err := jsonAPI.Unmarshal(raw, &frame); err != nil {
		return fmt.Errorf("parsing frame: %s", err)
	}

	g.mu.Lock()
	_, senderKnown := g.members[sender.ID]
	_, targetKnown := g.members[frame.ToSocket]
	g.mu.Unlock()
	if !senderKnown {
		return fmt.Errorf("sender is not a member of channel %s", guid)
	}
	if frame.ToSocket != "" && !targetKnown {
		return fmt.Errorf("unknown to_socket %q", frame.ToSocket)
	}

	state, err := offers.DecodeState(frame.State)
	if err != nil {
		return fmt.Errorf("decoding offer state: %s", err)
	}
	if frame.Type != "accept" && frame.Type != "payout" {
		delete(state, "mask")
		delete(state, "verdicts")
	}
	state["guid"] = guid

	out := map[string]interface{}{
		"type":        frame.Type,
		"raw_state":   frame.State,
		"state":       state,
		"from_socket": sender.ID,
	}
	if frame.ToSocket != "" {
		out["to_socket"] = frame.ToSocket
	}
	if frame.Artifact != "" {
		out["artifact"] = frame.Artifact
	}
	if frame.R != "" {
		out["r"] = frame.R
		out["v"] = frame.V
		out["s"] = frame.S
	}
	encoded, err := jsonAPI.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshaling relayed frame: %s", err)
	}

	g.mu.Lock()
	for id, m := range g.members {
		if id == sender.ID {
			continue
		}
		if frame.ToSocket != "" && id != frame.ToSocket {
			continue
		}
		select {
		case m.queue <- encoded:
		default:
			r.log.Warn().Str("guid", guid).Msg("dropping frame for slow group member")
		}
	}
	g.mu.Unlock()
	return nil
}

// ReadLoop consumes frames from the member's socket until it disconnects,
// relaying each one. Relay errors are reported back to the sender and don't
// terminate the connection.
func (r *GroupRegistry) ReadLoop(guid string, m *Member) {
	m.conn.SetReadLimit(maxFrameSize)
	for {
		kind, raw, err := m.conn.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		if err := r.Relay(guid, m, raw); err != nil {
			r.log.Debug().Err(err).Str("guid", guid).Msg("rejecting relay frame")
			reply, merr := jsonAPI.Marshal(map[string]interface{}{"errors": []string{err.Error()}})
			if merr == nil {
				select {
				case m.queue <- reply:
				default:
				}
			}
		}
	}
}

func (m *Member) writePump() {
	for {
		select {
		case frame := <-m.queue:
			_ = m.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := m.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				m.close()
				return
			}
		case <-m.done:
			return
		}
	}
}

func (m *Member) close() {
	m.once.Do(func() {
		close(m.done)
		_ = m.conn.Close()
	})
}
