package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/crankd/crankd/common"
	"github.com/crankd/crankd/internal/api"
	"github.com/crankd/crankd/internal/engine"
	"github.com/crankd/crankd/internal/journal"
	"github.com/crankd/crankd/internal/observer"
	"github.com/crankd/crankd/internal/policy"
	"github.com/crankd/crankd/internal/server"
	"github.com/crankd/crankd/pkg/cranklib"
	"github.com/crankd/crankd/pkg/keymgr"
	"github.com/crankd/crankd/pkg/ledgerrpc"
	"github.com/crankd/crankd/pkg/logger"
)

const journalFileName = "journal.db"

// DaemonComponents holds all initialized daemon components. This allows
// for unified initialization and cleanup across the daemon command and
// tests.
type DaemonComponents struct {
	Client    *ledgerrpc.Client
	Executor  *cranklib.Executor
	Observer  *observer.Observer
	Journal   *journal.Journal
	Engine    *engine.Engine
	Api       *api.Api
	Server    *server.Server
	Debug     *server.RPCServer
	Signatory cranklib.Address

	log logger.Logger
}

// Close releases all daemon component resources in reverse order of
// initialization. The server and debug bridge shut down through their
// run contexts.
func (c *DaemonComponents) Close() {
	if c.log != nil {
		c.log.Info("shutting down daemon")
	}
	if c.Journal != nil {
		_ = c.Journal.Close()
	}
	if c.Client != nil {
		_ = c.Client.Close()
	}
	if c.log != nil {
		c.log.Info("daemon stopped")
	}
}

// initDaemonComponents initializes all daemon components with the provided
// logger. stop is invoked by the IPC stop method after its response is
// written.
//
// On error, any partially initialized components are cleaned up before
// returning.
var initDaemonComponents = func(log logger.Logger, stop func()) (*DaemonComponents, error) {
	store := keymgr.NewStore(configDir())
	kp, err := store.Load(passphrase)
	if err != nil {
		if err == keymgr.ErrNoKeypair {
			return nil, fmt.Errorf("no keypair found, run 'crankd key init' first")
		}
		return nil, fmt.Errorf("loading keypair: %w", err)
	}

	client, err := ledgerrpc.NewClient(rpcURL, &ledgerrpc.Options{
		ProxyURL: proxyURL,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}

	builder, err := cranklib.NewTxBuilder(kp, workerID, poolID, client)
	if err != nil {
		client.Close()
		return nil, err
	}

	dir := policyDir
	if dir == "" {
		dir = filepath.Join(configDir(), "policy.d")
	}
	pol, err := policy.Load(afero.NewOsFs(), dir, log)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("loading policies: %w", err)
	}

	// The policy hook reads failure counts from the executor it guards, so
	// the lookup closes over the variable assigned right after.
	var exec *cranklib.Executor
	hook := pol.Hook(func(ref cranklib.Address) uint64 {
		if exec == nil {
			return 0
		}
		md, _ := exec.Metadata(ref)
		return md.SimulationFailures
	})
	exec, err = cranklib.NewExecutor(client, client, client, builder, &cranklib.ExecutorOpts{
		WorkerID: workerID,
		PoolID:   poolID,
		Hook:     hook,
		Logger:   log,
	})
	if err != nil {
		client.Close()
		return nil, err
	}

	obs := observer.New(client, log)

	jrnl, err := journal.Open(filepath.Join(configDir(), journalFileName), log)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("opening journal: %w", err)
	}

	serv := server.NewServer(log, common.TCPPort())

	eng, err := engine.New(&engine.Opts{
		Executor:  exec,
		Observer:  obs,
		Journal:   jrnl,
		Pool:      serv.Pool(),
		Ledger:    client,
		ProgramID: cranklib.AutomationProgramID,
		WorkerID:  workerID,
		Signatory: kp.Address(),
		Logger:    log,
	})
	if err != nil {
		jrnl.Close()
		client.Close()
		return nil, err
	}

	a, err := api.NewApi(log, &api.Options{
		Status:    eng.Status,
		Observer:  obs,
		Journal:   jrnl,
		Executor:  exec,
		Stop:      stop,
		Version:   currentBuildArgs.Version,
		Commit:    currentBuildArgs.Commit,
		BuildType: currentBuildArgs.BuildType,
	})
	if err != nil {
		jrnl.Close()
		client.Close()
		return nil, err
	}
	a.RegisterHandlers(serv)

	debug := server.NewRPCServer(&server.RPCConfig{
		Addr:      debugAddr,
		Secret:    debugSecret,
		Version:   currentBuildArgs.Version,
		Commit:    currentBuildArgs.Commit,
		BuildType: currentBuildArgs.BuildType,
	}, eng.Status, jrnl.Query, log)

	return &DaemonComponents{
		Client:    client,
		Executor:  exec,
		Observer:  obs,
		Journal:   jrnl,
		Engine:    eng,
		Api:       a,
		Server:    serv,
		Debug:     debug,
		Signatory: kp.Address(),
		log:       log,
	}, nil
}
