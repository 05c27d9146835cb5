package api

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/crankd/crankd/common"
	"github.com/crankd/crankd/internal/server"
	"github.com/crankd/crankd/pkg/cranklib"
)

// parseRef extracts and validates the automation address from a request
// body carrying RefParams.
func parseRef(body json.RawMessage) (cranklib.Address, error) {
	var m common.RefParams
	if err := json.Unmarshal(body, &m); err != nil {
		return cranklib.Address{}, err
	}
	if m.Ref == "" {
		return cranklib.Address{}, errors.New("ref is required")
	}
	return cranklib.ParseAddress(m.Ref)
}

// pauseHandler stops trigger evaluation for an automation without touching
// its on-chain state. The automation must currently be tracked.
func (s *Api) pauseHandler(sconn *server.SyncConn, pool *server.Pool, body json.RawMessage) (common.UpdateType, any, error) {
	ref, err := parseRef(body)
	if err != nil {
		return common.UPDATE_PAUSE, nil, err
	}
	if _, ok := s.obs.Automation(ref); !ok {
		return common.UPDATE_PAUSE, nil, errors.New("automation not tracked")
	}
	s.obs.Pause(ref)
	s.log.Info("paused automation %s", ref.Short())
	return common.UPDATE_PAUSE, fmt.Sprintf("paused %s", ref), nil
}
