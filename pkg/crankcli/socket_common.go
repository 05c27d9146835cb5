package crankcli

import (
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"github.com/crankd/crankd/common"
)

// dialFunc points to the dialer so tests can stub transports.
var dialFunc = func(network, address string) (net.Conn, error) {
	return net.DialTimeout(network, address, common.DefaultDialTimeout)
}

func tcpAddress() string {
	return fmt.Sprintf("%s:%d", common.TCPHost, common.TCPPort())
}

func debugMode() bool {
	return os.Getenv(common.DebugEnv) == "1"
}

// debugLog logs only if CRANKD_DEBUG=1.
func debugLog(format string, args ...any) {
	if debugMode() {
		log.Printf(format, args...)
	}
}

// isDaemonRunning reports whether something answers on the platform
// transport.
func isDaemonRunning() bool {
	conn, err := dial()
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// waitForDaemon polls until the daemon answers or the timeout expires.
func waitForDaemon(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if isDaemonRunning() {
			return nil
		}
		time.Sleep(socketPollInterval)
	}
	return fmt.Errorf("daemon failed to start within %v", timeout)
}
