package api

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/crankd/crankd/common"
	"github.com/crankd/crankd/internal/server"
)

// stopHandler shuts the daemon down. The stop callback fires after a short
// delay so the acknowledgement reaches the client first.
func (s *Api) stopHandler(sconn *server.SyncConn, pool *server.Pool, body json.RawMessage) (common.UpdateType, any, error) {
	if s.stop == nil {
		return common.UPDATE_STOP, nil, errors.New("daemon does not accept remote stop")
	}
	time.AfterFunc(100*time.Millisecond, s.stop)
	return common.UPDATE_STOP, "stopping", nil
}
