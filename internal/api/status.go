package api

import (
	"encoding/json"

	"github.com/crankd/crankd/common"
	"github.com/crankd/crankd/internal/server"
)

func (s *Api) statusHandler(sconn *server.SyncConn, pool *server.Pool, body json.RawMessage) (common.UpdateType, any, error) {
	st := s.status()
	return common.UPDATE_STATUS, &st, nil
}
