package api

import (
	"encoding/json"

	"github.com/crankd/crankd/common"
	"github.com/crankd/crankd/internal/server"
)

// watchHandler subscribes the connection to round updates. The client keeps
// reading round frames off the same connection until it disconnects.
func (s *Api) watchHandler(sconn *server.SyncConn, pool *server.Pool, body json.RawMessage) (common.UpdateType, any, error) {
	pool.Subscribe(common.UPDATE_ROUND, sconn.Conn)
	st := s.status()
	return common.UPDATE_WATCH, &st, nil
}
