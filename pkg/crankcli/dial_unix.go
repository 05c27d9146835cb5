//go:build !windows

package crankcli

import (
	"fmt"
	"net"

	"github.com/crankd/crankd/common"
)

// dial establishes a connection to the daemon using a Unix socket with TCP
// fallback. Transport priority: Unix socket > TCP.
func dial() (net.Conn, error) {
	if common.ForceTCP() {
		debugLog("force TCP mode enabled")
		return dialFunc("tcp", tcpAddress())
	}
	debugLog("attempting connection via unix socket at %s", common.SocketPath())
	conn, unixErr := dialFunc("unix", common.SocketPath())
	if unixErr != nil {
		debugLog("unix socket connection failed: %v, falling back to tcp", unixErr)
		conn, err := dialFunc("tcp", tcpAddress())
		if err != nil {
			return nil, fmt.Errorf("failed to connect: unix socket error: %v; tcp error: %w", unixErr, err)
		}
		debugLog("connected via tcp fallback to %s", tcpAddress())
		return conn, nil
	}
	debugLog("connected via unix socket")
	return conn, nil
}
