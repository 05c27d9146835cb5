package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	cws "github.com/coder/websocket"
	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"

	"github.com/crankd/crankd/common"
	"github.com/crankd/crankd/pkg/logger"
)

// Custom JSON-RPC error codes for the debug endpoint.
const (
	codeInvalidParams = jrpc2.Code(-32602)
	codeUnavailable   = jrpc2.Code(-32001)
)

// RPCConfig holds configuration for the JSON-RPC debug endpoint.
type RPCConfig struct {
	Addr      string // Listen address (empty means RPC disabled)
	Secret    string // Auth token (required -- empty means RPC disabled)
	Version   string // Daemon version
	Commit    string // Git commit
	BuildType string // Build type
}

// StatusFunc supplies the daemon's current status snapshot.
type StatusFunc func() common.StatusResponse

// HistoryFunc queries the scheduling journal.
type HistoryFunc func(common.HistoryParams) ([]common.HistoryEntry, error)

// RPCServer exposes read-only daemon inspection over JSON-RPC 2.0, both as
// an HTTP bridge and over WebSocket. It is meant for dashboards and
// debugging, not as the control path: mutations stay on the local socket.
type RPCServer struct {
	bridge    jhttp.Bridge
	methods   handler.Map
	secret    string
	addr      string
	version   string
	commit    string
	buildType string
	status    StatusFunc
	history   HistoryFunc
	log       logger.Logger

	mu     sync.Mutex
	server *http.Server
}

// NewRPCServer creates the debug RPC server. status and history may be nil,
// in which case the corresponding methods report unavailable.
func NewRPCServer(cfg *RPCConfig, status StatusFunc, history HistoryFunc, l logger.Logger) *RPCServer {
	rs := &RPCServer{
		secret:    cfg.Secret,
		addr:      cfg.Addr,
		version:   cfg.Version,
		commit:    cfg.Commit,
		buildType: cfg.BuildType,
		status:    status,
		history:   history,
		log:       l,
	}

	rs.methods = handler.Map{
		"crankd.getVersion": handler.New(rs.getVersion),
		"crankd.getStatus":  handler.New(rs.getStatus),
		"crankd.getHistory": handler.New(rs.getHistory),
	}
	rs.bridge = jhttp.NewBridge(rs.methods, nil)
	return rs
}

func (rs *RPCServer) getVersion(_ context.Context) (*common.VersionResponse, error) {
	return &common.VersionResponse{
		Version:   rs.version,
		Commit:    rs.commit,
		BuildType: rs.buildType,
	}, nil
}

func (rs *RPCServer) getStatus(_ context.Context) (*common.StatusResponse, error) {
	if rs.status == nil {
		return nil, &jrpc2.Error{Code: codeUnavailable, Message: "status unavailable"}
	}
	st := rs.status()
	return &st, nil
}

func (rs *RPCServer) getHistory(_ context.Context, p *common.HistoryParams) (*common.HistoryResponse, error) {
	if rs.history == nil {
		return nil, &jrpc2.Error{Code: codeUnavailable, Message: "journal unavailable"}
	}
	if p.Limit < 0 {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "limit must not be negative"}
	}
	entries, err := rs.history(*p)
	if err != nil {
		return nil, &jrpc2.Error{Code: codeUnavailable, Message: err.Error()}
	}
	return &common.HistoryResponse{Entries: entries}, nil
}

// Handler returns the authenticated HTTP handler: POST requests go through
// the jhttp bridge, WebSocket upgrades get a dedicated jrpc2 server.
func (rs *RPCServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/rpc", rs.bridge)
	mux.HandleFunc("/rpc/ws", rs.serveWS)
	return requireToken(rs.secret, mux)
}

func (rs *RPCServer) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := cws.Accept(w, r, nil)
	if err != nil {
		rs.log.Error("websocket accept: %s", err.Error())
		return
	}
	ch := &wsChannel{conn: conn, ctx: r.Context()}
	srv := jrpc2.NewServer(rs.methods, nil)
	srv.Start(ch)
	if err := srv.Wait(); err != nil {
		rs.log.Info("websocket rpc session ended: %s", err.Error())
	}
	_ = ch.Close()
}

// Start runs the debug endpoint until the context is canceled. It returns
// immediately when the endpoint is disabled by configuration.
func (rs *RPCServer) Start(ctx context.Context) error {
	if rs.addr == "" || rs.secret == "" {
		return nil
	}
	rs.mu.Lock()
	rs.server = &http.Server{
		Addr:    rs.addr,
		Handler: rs.Handler(),
	}
	rs.mu.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = rs.Shutdown(shutdownCtx)
	}()

	rs.log.Info("debug rpc listening on %s", rs.addr)
	err := rs.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the HTTP server and closes the jrpc2 bridge.
func (rs *RPCServer) Shutdown(ctx context.Context) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.server == nil {
		return nil
	}
	err := rs.server.Shutdown(ctx)
	_ = rs.bridge.Close()
	rs.server = nil
	return err
}
