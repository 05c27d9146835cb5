package common

import "time"

// MaxMessageSize caps a single IPC frame. History responses are paginated,
// so anything larger indicates a corrupt or hostile peer.
const MaxMessageSize = 8 << 20

// DefaultDialTimeout bounds client connection attempts to the daemon.
const DefaultDialTimeout = 2 * time.Second

// UpdateType names an IPC method and doubles as the type tag on pushed
// updates, so a subscription to a method's type receives its broadcasts.
type UpdateType string

const (
	UPDATE_STATUS  UpdateType = "status"
	UPDATE_WATCH   UpdateType = "watch"
	UPDATE_ROUND   UpdateType = "round"
	UPDATE_HISTORY UpdateType = "history"
	UPDATE_PAUSE   UpdateType = "pause"
	UPDATE_RESUME  UpdateType = "resume"
	UPDATE_FLUSH   UpdateType = "flush"
	UPDATE_STOP    UpdateType = "stop"
	UPDATE_VERSION UpdateType = "version"
)
