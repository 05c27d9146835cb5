package crankcli

import (
	"encoding/json"

	"github.com/crankd/crankd/common"
)

// Handler defines the interface for processing daemon updates.
// Implementations receive raw JSON messages and are responsible for
// unmarshaling and processing them appropriately.
type Handler interface {
	Handle(json.RawMessage) error
}

// NewRoundHandler creates a handler for round updates pushed by the daemon
// to watch subscribers. The callback is invoked once per scheduling round.
func NewRoundHandler(callback func(*common.RoundUpdate) error) *RoundHandler {
	return &RoundHandler{Callback: callback}
}

// RoundHandler processes round updates from the daemon.
type RoundHandler struct {
	Callback func(*common.RoundUpdate) error
}

// Handle unmarshals a round update and invokes the callback.
func (h *RoundHandler) Handle(m json.RawMessage) error {
	var v common.RoundUpdate
	if err := json.Unmarshal(m, &v); err != nil {
		return err
	}
	return h.Callback(&v)
}
