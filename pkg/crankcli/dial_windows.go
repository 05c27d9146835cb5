//go:build windows

package crankcli

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/Microsoft/go-winio"

	"github.com/crankd/crankd/common"
)

// dialPipeFunc points to the pipe dialer so tests can stub it.
var dialPipeFunc = dialPipeImpl

func dialPipeImpl(path string, timeout *time.Duration) (net.Conn, error) {
	if timeout == nil {
		defaultTimeout := common.DefaultDialTimeout
		timeout = &defaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	return winio.DialPipeContext(ctx, path)
}

// dial establishes a connection to the daemon using a named pipe with TCP
// fallback. Transport priority: named pipe > TCP.
func dial() (net.Conn, error) {
	if common.ForceTCP() {
		debugLog("force TCP mode enabled")
		return dialFunc("tcp", tcpAddress())
	}
	pipePath := common.PipePath()
	debugLog("attempting connection via named pipe at %s", pipePath)
	timeout := common.DefaultDialTimeout
	conn, pipeErr := dialPipeFunc(pipePath, &timeout)
	if pipeErr != nil {
		debugLog("named pipe connection failed: %v, falling back to tcp", pipeErr)
		conn, err := dialFunc("tcp", tcpAddress())
		if err != nil {
			return nil, fmt.Errorf("failed to connect: named pipe error: %v; tcp error: %w", pipeErr, err)
		}
		debugLog("connected via tcp fallback to %s", tcpAddress())
		return conn, nil
	}
	debugLog("connected via named pipe")
	return conn, nil
}
