package api

import (
	"encoding/json"
	"fmt"

	"github.com/crankd/crankd/common"
	"github.com/crankd/crankd/internal/server"
)

// flushHandler clears an automation's backoff counters and in-flight
// transaction record so the next trigger schedules it immediately.
func (s *Api) flushHandler(sconn *server.SyncConn, pool *server.Pool, body json.RawMessage) (common.UpdateType, any, error) {
	ref, err := parseRef(body)
	if err != nil {
		return common.UPDATE_FLUSH, nil, err
	}
	s.exec.Flush(ref)
	s.log.Info("flushed automation %s", ref.Short())
	return common.UPDATE_FLUSH, fmt.Sprintf("flushed %s", ref), nil
}
