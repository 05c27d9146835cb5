// Package common provides shared types and constants used across the crankd
// client-server communication layer.
package common

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Environment variable names for configuration.
const (
	// SocketPathEnv is the environment variable for a custom socket path.
	SocketPathEnv = "CRANKD_SOCKET_PATH"

	// PipeNameEnv is the environment variable for a custom named pipe
	// (Windows only).
	PipeNameEnv = "CRANKD_PIPE_NAME"

	// TCPPortEnv is the environment variable for a custom TCP port.
	TCPPortEnv = "CRANKD_TCP_PORT"

	// ForceTCPEnv is the environment variable to force TCP connections.
	ForceTCPEnv = "CRANKD_FORCE_TCP"

	// DebugEnv is the environment variable to enable debug logging.
	DebugEnv = "CRANKD_DEBUG"
)

// TCPHost is the host the TCP fallback listener binds to. Loopback only;
// the daemon is a local-machine service.
const TCPHost = "127.0.0.1"

// DefaultTCPPort is the TCP fallback port used when no socket transport is
// available.
const DefaultTCPPort = 4427

// DefaultPipeName is the Windows named pipe the daemon listens on.
const DefaultPipeName = `\\.\pipe\crankd`

// SocketPath returns the Unix socket path, honoring CRANKD_SOCKET_PATH.
func SocketPath() string {
	if path := os.Getenv(SocketPathEnv); path != "" {
		return path
	}
	return filepath.Join(os.TempDir(), "crankd.sock")
}

// PipePath returns the Windows named pipe path, honoring CRANKD_PIPE_NAME.
func PipePath() string {
	if name := os.Getenv(PipeNameEnv); name != "" {
		return name
	}
	return DefaultPipeName
}

// TCPPort returns the TCP fallback port, honoring CRANKD_TCP_PORT.
func TCPPort() int {
	if v := os.Getenv(TCPPortEnv); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 && port < 65536 {
			return port
		}
	}
	return DefaultTCPPort
}

// ForceTCP reports whether CRANKD_FORCE_TCP requests skipping the socket or
// pipe transport entirely.
func ForceTCP() bool {
	switch strings.ToLower(os.Getenv(ForceTCPEnv)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
