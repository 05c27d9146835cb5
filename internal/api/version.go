package api

import (
	"encoding/json"

	"github.com/crankd/crankd/common"
	"github.com/crankd/crankd/internal/server"
)

// versionHandler returns the daemon's build information.
func (s *Api) versionHandler(sconn *server.SyncConn, pool *server.Pool, body json.RawMessage) (common.UpdateType, any, error) {
	return common.UPDATE_VERSION, &common.VersionResponse{
		Version:   s.version,
		Commit:    s.commit,
		BuildType: s.buildType,
	}, nil
}
