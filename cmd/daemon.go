package cmd

import (
	"fmt"
	"time"

	"github.com/urfave/cli"

	"github.com/crankd/crankd/cmd/common"
	"github.com/crankd/crankd/internal/journal"
	"github.com/crankd/crankd/pkg/ledgerrpc"
	"github.com/crankd/crankd/pkg/logger"
)

var (
	rpcURL      string
	wsURL       string
	workerID    uint64
	poolID      uint64
	passphrase  string
	policyDir   string
	proxyURL    string
	debugAddr   string
	debugSecret string
	retention   time.Duration

	daemonFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "rpc-url, r",
			Usage:       "ledger JSON-RPC endpoint",
			Value:       DEF_RPC_URL,
			Destination: &rpcURL,
			EnvVar:      "CRANKD_RPC_URL",
		},
		cli.StringFlag{
			Name:        "ws-url, w",
			Usage:       "ledger WebSocket endpoint for the slot stream",
			Value:       DEF_WS_URL,
			Destination: &wsURL,
			EnvVar:      "CRANKD_WS_URL",
		},
		cli.Uint64Flag{
			Name:        "worker-id, i",
			Usage:       "registered worker id of this keeper",
			Destination: &workerID,
			EnvVar:      "CRANKD_WORKER_ID",
		},
		cli.Uint64Flag{
			Name:        "pool-id, p",
			Usage:       "worker pool to coordinate with (default: 0)",
			Destination: &poolID,
			EnvVar:      "CRANKD_POOL_ID",
		},
		cli.StringFlag{
			Name:        "passphrase",
			Usage:       "keypair passphrase (only for passphrase-protected keypairs)",
			Destination: &passphrase,
			EnvVar:      "CRANKD_PASSPHRASE",
		},
		cli.StringFlag{
			Name:        "policy-dir",
			Usage:       "directory of policy scripts reviewing each transaction (default: <config>/policy.d)",
			Destination: &policyDir,
			EnvVar:      "CRANKD_POLICY_DIR",
		},
		cli.StringFlag{
			Name:        "proxy",
			Usage:       "route ledger RPC traffic through a SOCKS5 proxy",
			Destination: &proxyURL,
			EnvVar:      "CRANKD_PROXY",
		},
		cli.StringFlag{
			Name:        "debug-rpc-addr",
			Usage:       "listen address for the JSON-RPC debug bridge (disabled if empty)",
			Destination: &debugAddr,
			EnvVar:      "CRANKD_DEBUG_RPC_ADDR",
		},
		cli.StringFlag{
			Name:        "debug-rpc-secret",
			Usage:       "bearer token required by the debug bridge",
			Destination: &debugSecret,
			EnvVar:      "CRANKD_DEBUG_RPC_SECRET",
		},
		cli.DurationFlag{
			Name:        "journal-retention",
			Usage:       "how long journal entries are kept before the sweeper removes them",
			Value:       journal.DefaultRetention,
			Destination: &retention,
			EnvVar:      "CRANKD_JOURNAL_RETENTION",
		},
	}
)

func daemon(ctx *cli.Context) error {
	if pid, err := ReadPidFile(); err == nil && isProcessRunning(pid) {
		fmt.Printf("Daemon already running (PID %d)\n", pid)
		return nil
	}

	l := logger.Default()
	defer l.Close()

	runCtx, cancel := setupShutdownHandler()
	defer cancel()

	c, err := initDaemonComponents(l, cancel)
	if err != nil {
		common.PrintRuntimeErr(ctx, "daemon", "init", err)
		return nil
	}
	defer c.Close()

	if err := WritePidFile(); err != nil {
		common.PrintRuntimeErr(ctx, "daemon", "pidfile", err)
		return nil
	}
	defer RemovePidFile()

	if err := c.Journal.StartSweeper(runCtx, journal.DefaultSweepSchedule, retention); err != nil {
		l.Warning("journal sweeper disabled: %s", err.Error())
	}
	go func() {
		if err := c.Server.Start(runCtx); err != nil {
			l.Error("server stopped: %s", err.Error())
			cancel()
		}
	}()
	go func() {
		if err := c.Debug.Start(runCtx); err != nil {
			l.Error("debug bridge stopped: %s", err.Error())
		}
	}()

	if err := c.Engine.Seed(runCtx); err != nil {
		common.PrintRuntimeErr(ctx, "daemon", "seed", err)
		return nil
	}

	stream := ledgerrpc.DialSlots(runCtx, wsURL, l)
	defer stream.Close()

	l.Info("crankd %s serving worker %d (signatory %s)",
		currentBuildArgs.Version, workerID, c.Signatory)
	c.Engine.Run(runCtx, stream.Slots())
	return nil
}
