package cmd

import (
	"fmt"
	"os"

	"github.com/urfave/cli"

	"github.com/crankd/crankd/pkg/crankcli"
)

func stopDaemon(ctx *cli.Context) error {
	// Prefer the IPC stop method: the daemon finishes its in-flight round
	// before exiting. Fall back to signals when the socket is gone.
	if client, err := crankcli.NewClient(); err == nil {
		msg, err := client.StopDaemon()
		client.Close()
		if err == nil {
			fmt.Println(msg)
			return nil
		}
	}

	pid, err := ReadPidFile()
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("Daemon is not running (PID file not found)")
			return nil
		}
		fmt.Fprintf(os.Stderr, "Error reading PID file: %v\n", err)
		return nil
	}

	fmt.Printf("Stopping daemon (PID %d)...\n", pid)

	if err := killDaemon(pid); err != nil {
		fmt.Fprintf(os.Stderr, "Error stopping daemon: %v\n", err)
		return nil
	}

	// Note: PID file is removed by daemon's deferred cleanup
	fmt.Println("Daemon stopped successfully")
	return nil
}
