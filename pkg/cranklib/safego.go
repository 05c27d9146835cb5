package cranklib

import (
	"runtime/debug"
	"sync"

	"github.com/crankd/crankd/pkg/logger"
)

// safeGo runs fn in a goroutine with panic recovery. A panicking build task
// must never take the round driver down with it.
// If wg is non-nil it is decremented on completion, normal or panic.
func safeGo(l logger.Logger, wg *sync.WaitGroup, context string, fn func()) {
	go func() {
		if wg != nil {
			defer wg.Done()
		}
		defer func() {
			if r := recover(); r != nil {
				if l != nil {
					l.Error("panic [%s]: %v\n%s", context, r, debug.Stack())
				}
			}
		}()
		fn()
	}()
}
