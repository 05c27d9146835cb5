package ledgerrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	cws "github.com/coder/websocket"

	"github.com/crankd/crankd/pkg/logger"
)

const (
	reconnectMin = time.Second
	reconnectMax = 30 * time.Second
)

// SlotStream subscribes to the ledger's slot notifications over WebSocket
// and delivers a strictly increasing sequence of slots. The connection is
// re-dialed with capped exponential backoff; slots that arrive out of order
// or repeat across reconnects are dropped so consumers can treat every
// received value as a new tick.
type SlotStream struct {
	url   string
	log   logger.Logger
	slots chan uint64

	cancel context.CancelFunc
	done   chan struct{}

	mu   sync.Mutex
	last uint64
}

// DialSlots starts a slot subscription against the ledger WebSocket endpoint
// at wsURL. The stream runs until Close is called or ctx is cancelled.
func DialSlots(ctx context.Context, wsURL string, l logger.Logger) *SlotStream {
	if l == nil {
		l = logger.NewNopLogger()
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &SlotStream{
		url:    wsURL,
		log:    l,
		slots:  make(chan uint64, 16),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.run(ctx)
	return s
}

// Slots returns the tick channel. It is closed when the stream stops.
func (s *SlotStream) Slots() <-chan uint64 {
	return s.slots
}

// Close stops the stream and waits for the reader goroutine to exit.
func (s *SlotStream) Close() error {
	s.cancel()
	<-s.done
	return nil
}

func (s *SlotStream) run(ctx context.Context) {
	defer close(s.done)
	defer close(s.slots)
	backoff := reconnectMin
	for {
		if ctx.Err() != nil {
			return
		}
		err := s.subscribe(ctx)
		if ctx.Err() != nil {
			return
		}
		s.log.Warning("slot stream disconnected: %v (reconnecting in %s)", err, backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > reconnectMax {
			backoff = reconnectMax
		}
	}
}

type slotNotification struct {
	Method string `json:"method"`
	Params struct {
		Result struct {
			Slot uint64 `json:"slot"`
		} `json:"result"`
	} `json:"params"`
}

// subscribe dials one WebSocket connection, issues slotSubscribe and pumps
// notifications until the connection drops.
func (s *SlotStream) subscribe(ctx context.Context) error {
	conn, _, err := cws.Dial(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", s.url, err)
	}
	defer conn.Close(cws.StatusNormalClosure, "")

	sub := map[string]any{"jsonrpc": "2.0", "id": 1, "method": "slotSubscribe"}
	buf, _ := json.Marshal(sub)
	if err := conn.Write(ctx, cws.MessageText, buf); err != nil {
		return fmt.Errorf("subscribing: %w", err)
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		var note slotNotification
		if err := json.Unmarshal(data, &note); err != nil {
			s.log.Warning("slot stream: bad frame: %v", err)
			continue
		}
		if note.Method != "slotNotification" {
			// Subscription confirmations and other chatter.
			continue
		}
		if slot, ok := s.advance(note.Params.Result.Slot); ok {
			select {
			case s.slots <- slot:
			case <-ctx.Done():
				return ctx.Err()
			default:
				// A slow consumer loses intermediate ticks, never
				// the stream. The engine coalesces anyway.
			}
		}
	}
}

// advance records slot if it moves the stream forward.
func (s *SlotStream) advance(slot uint64) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slot <= s.last {
		return 0, false
	}
	s.last = slot
	return slot, true
}

// Last returns the most recent slot delivered.
func (s *SlotStream) Last() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
