//go:build !windows

package server

import (
	"os"

	"github.com/crankd/crankd/common"
)

// cleanupSocket removes the Unix socket file. Returns an error if removal
// fails, unless the file doesn't exist.
func cleanupSocket() error {
	if err := os.Remove(common.SocketPath()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
