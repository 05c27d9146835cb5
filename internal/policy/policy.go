// Package policy runs operator-supplied JavaScript hooks that review each
// built transaction before the batch phase. A script that returns false from
// its review function vetoes the transaction for that round; the automation's
// bookkeeping is untouched, exactly like a dedupe rejection. Script errors
// fail open so a broken policy file can never stall execution.
package policy

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
	"github.com/spf13/afero"

	"github.com/crankd/crankd/pkg/cranklib"
	"github.com/crankd/crankd/pkg/logger"
)

// reviewBudget is the hard per-call execution budget; a runaway script is
// interrupted and its vote fails open.
const reviewBudget = 250 * time.Millisecond

// FailureLookup resolves the current simulation-failure count for a ref, so
// scripts can veto automations that keep failing.
type FailureLookup func(ref cranklib.Address) uint64

// Review is the payload handed to each script's review function.
type Review struct {
	Ref       string `json:"ref"`
	Slot      uint64 `json:"slot"`
	Signature string `json:"signature"`
	Failures  uint64 `json:"failures"`
}

// script is one loaded policy file with its own sandboxed runtime. goja
// runtimes are single-threaded; the mutex serializes review calls from
// concurrent build tasks.
type script struct {
	name   string
	mu     sync.Mutex
	vm     *goja.Runtime
	review goja.Callable
}

// Engine holds the loaded policy scripts.
type Engine struct {
	log     logger.Logger
	scripts []*script
}

// consolePrinter routes script console output through the daemon logger.
type consolePrinter struct {
	name string
	log  logger.Logger
}

func (p consolePrinter) Log(s string)   { p.log.Info("policy %s: %s", p.name, s) }
func (p consolePrinter) Warn(s string)  { p.log.Warning("policy %s: %s", p.name, s) }
func (p consolePrinter) Error(s string) { p.log.Error("policy %s: %s", p.name, s) }

// Load reads every *.js file under dir and compiles it into its own runtime.
// A missing directory yields an empty, no-op engine. Individual scripts that
// fail to load are logged and skipped; the rest still apply.
func Load(fs afero.Fs, dir string, l logger.Logger) (*Engine, error) {
	if l == nil {
		l = logger.NewNopLogger()
	}
	e := &Engine{log: l}
	if dir == "" {
		return e, nil
	}
	if ok, err := afero.DirExists(fs, dir); err != nil || !ok {
		return e, err
	}
	infos, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("reading policy dir %s: %w", dir, err)
	}
	for _, info := range infos {
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".js") {
			continue
		}
		src, err := afero.ReadFile(fs, filepath.Join(dir, info.Name()))
		if err != nil {
			l.Warning("policy %s: %v (skipped)", info.Name(), err)
			continue
		}
		sc, err := e.compile(info.Name(), string(src))
		if err != nil {
			l.Warning("policy %s: %v (skipped)", info.Name(), err)
			continue
		}
		e.scripts = append(e.scripts, sc)
	}
	sort.Slice(e.scripts, func(i, j int) bool { return e.scripts[i].name < e.scripts[j].name })
	if len(e.scripts) > 0 {
		l.Info("loaded %d policy script(s) from %s", len(e.scripts), dir)
	}
	return e, nil
}

func (e *Engine) compile(name, src string) (*script, error) {
	vm := goja.New()
	// Scripts see the json names: review({ref, slot, signature, failures}).
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	registry := new(require.Registry)
	registry.Enable(vm)
	registry.RegisterNativeModule(console.ModuleName, console.RequireWithPrinter(consolePrinter{name: name, log: e.log}))
	console.Enable(vm)

	if _, err := vm.RunScript(name, src); err != nil {
		return nil, fmt.Errorf("running script: %w", err)
	}
	review, ok := goja.AssertFunction(vm.Get("review"))
	if !ok {
		return nil, fmt.Errorf("script does not define a review function")
	}
	return &script{name: name, vm: vm, review: review}, nil
}

// Count returns the number of loaded scripts.
func (e *Engine) Count() int {
	return len(e.scripts)
}

// Hook adapts the engine to the executor's submit-hook slot. A transaction
// is kept only if every script approves it; with no scripts loaded the hook
// is nil so the executor skips the review pass entirely.
func (e *Engine) Hook(failures FailureLookup) cranklib.SubmitHook {
	if len(e.scripts) == 0 {
		return nil
	}
	return func(ref cranklib.Address, tx *cranklib.Transaction, slot uint64) bool {
		review := Review{
			Ref:       ref.String(),
			Slot:      slot,
			Signature: tx.Signature().String(),
		}
		if failures != nil {
			review.Failures = failures(ref)
		}
		for _, sc := range e.scripts {
			keep, err := sc.call(review)
			if err != nil {
				// Fail open: a broken script never blocks work.
				e.log.Warning("policy %s: %v (allowing %s)", sc.name, err, review.Ref)
				continue
			}
			if !keep {
				return false
			}
		}
		return true
	}
}

func (sc *script) call(review Review) (bool, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	timer := time.AfterFunc(reviewBudget, func() {
		sc.vm.Interrupt("review budget exceeded")
	})
	defer func() {
		timer.Stop()
		sc.vm.ClearInterrupt()
	}()
	val, err := sc.review(goja.Undefined(), sc.vm.ToValue(review))
	if err != nil {
		return false, err
	}
	return val.ToBoolean(), nil
}
