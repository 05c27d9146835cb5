package api

import (
	"encoding/json"

	"github.com/crankd/crankd/common"
	"github.com/crankd/crankd/internal/server"
)

func (s *Api) historyHandler(sconn *server.SyncConn, pool *server.Pool, body json.RawMessage) (common.UpdateType, any, error) {
	var m common.HistoryParams
	if len(body) > 0 {
		if err := json.Unmarshal(body, &m); err != nil {
			return common.UPDATE_HISTORY, nil, err
		}
	}
	entries, err := s.jrnl.Query(m)
	if err != nil {
		return common.UPDATE_HISTORY, nil, err
	}
	return common.UPDATE_HISTORY, &common.HistoryResponse{Entries: entries}, nil
}
