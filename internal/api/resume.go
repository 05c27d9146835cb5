package api

import (
	"encoding/json"
	"fmt"

	"github.com/crankd/crankd/common"
	"github.com/crankd/crankd/internal/server"
)

// resumeHandler lifts a local pause. Resuming an automation that was never
// paused is a no-op rather than an error.
func (s *Api) resumeHandler(sconn *server.SyncConn, pool *server.Pool, body json.RawMessage) (common.UpdateType, any, error) {
	ref, err := parseRef(body)
	if err != nil {
		return common.UPDATE_RESUME, nil, err
	}
	s.obs.Resume(ref)
	s.log.Info("resumed automation %s", ref.Short())
	return common.UPDATE_RESUME, fmt.Sprintf("resumed %s", ref), nil
}
