// Package api wires the daemon's IPC methods to the scheduling engine,
// observer and journal.
package api

import (
	"errors"

	"github.com/crankd/crankd/common"
	"github.com/crankd/crankd/internal/journal"
	"github.com/crankd/crankd/internal/observer"
	"github.com/crankd/crankd/internal/server"
	"github.com/crankd/crankd/pkg/cranklib"
	"github.com/crankd/crankd/pkg/logger"
)

// Flusher clears an automation's scheduling state. Satisfied by
// cranklib.Executor.
type Flusher interface {
	Flush(ref cranklib.Address)
}

// Options carries the collaborators and build metadata for NewApi.
type Options struct {
	// Status supplies the daemon's current status snapshot.
	Status func() common.StatusResponse
	// Observer tracks automations; pause and resume act on it.
	Observer *observer.Observer
	// Journal answers history queries.
	Journal *journal.Journal
	// Executor handles flush requests.
	Executor Flusher
	// Stop shuts the daemon down. Invoked by the stop method after the
	// response is written.
	Stop func()

	Version   string
	Commit    string
	BuildType string
}

type Api struct {
	log    logger.Logger
	status func() common.StatusResponse
	obs    *observer.Observer
	jrnl   *journal.Journal
	exec   Flusher
	stop   func()

	version   string
	commit    string
	buildType string
}

func NewApi(l logger.Logger, opts *Options) (*Api, error) {
	if opts == nil || opts.Status == nil || opts.Observer == nil || opts.Journal == nil || opts.Executor == nil {
		return nil, errors.New("api requires status, observer, journal and executor")
	}
	return &Api{
		log:       l,
		status:    opts.Status,
		obs:       opts.Observer,
		jrnl:      opts.Journal,
		exec:      opts.Executor,
		stop:      opts.Stop,
		version:   opts.Version,
		commit:    opts.Commit,
		buildType: opts.BuildType,
	}, nil
}

func (s *Api) RegisterHandlers(srv *server.Server) {
	srv.RegisterHandler(common.UPDATE_STATUS, s.statusHandler)
	srv.RegisterHandler(common.UPDATE_WATCH, s.watchHandler)
	srv.RegisterHandler(common.UPDATE_HISTORY, s.historyHandler)
	srv.RegisterHandler(common.UPDATE_PAUSE, s.pauseHandler)
	srv.RegisterHandler(common.UPDATE_RESUME, s.resumeHandler)
	srv.RegisterHandler(common.UPDATE_FLUSH, s.flushHandler)
	srv.RegisterHandler(common.UPDATE_STOP, s.stopHandler)
	srv.RegisterHandler(common.UPDATE_VERSION, s.versionHandler)
}
