package policy

import (
	"testing"

	"github.com/spf13/afero"

	"github.com/crankd/crankd/pkg/cranklib"
	"github.com/crankd/crankd/pkg/logger"
)

func addrOf(b byte) cranklib.Address {
	var a cranklib.Address
	a[0] = b
	a[31] = b
	return a
}

func signedTx(t *testing.T) *cranklib.Transaction {
	t.Helper()
	kp, err := cranklib.NewKeypair()
	if err != nil {
		t.Fatalf("NewKeypair: %v", err)
	}
	tx := cranklib.NewTransaction(kp.Address(), cranklib.Hash{}, cranklib.Instruction{
		ProgramID: cranklib.AutomationProgramID,
		Data:      []byte{1, 2, 3},
	})
	if err := tx.Sign(kp); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return tx
}

func loadScripts(t *testing.T, scripts map[string]string) *Engine {
	t.Helper()
	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll("/policy", 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	for name, src := range scripts {
		if err := afero.WriteFile(fs, "/policy/"+name, []byte(src), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	e, err := Load(fs, "/policy", logger.NewNopLogger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return e
}

func TestEmptyEngineHasNilHook(t *testing.T) {
	e, err := Load(afero.NewMemMapFs(), "/missing", logger.NewNopLogger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if e.Count() != 0 {
		t.Errorf("Count = %d", e.Count())
	}
	if e.Hook(nil) != nil {
		t.Error("want nil hook for empty engine")
	}
}

func TestVetoByRef(t *testing.T) {
	e := loadScripts(t, map[string]string{
		"deny.js": `
			var banned = ` + "`" + addrOf(1).String() + "`" + `;
			function review(tx) { return tx.ref !== banned; }
		`,
	})
	hook := e.Hook(nil)
	if hook == nil {
		t.Fatal("nil hook")
	}
	tx := signedTx(t)
	if hook(addrOf(1), tx, 100) {
		t.Error("banned ref not vetoed")
	}
	if !hook(addrOf(2), tx, 100) {
		t.Error("allowed ref vetoed")
	}
}

func TestVetoByFailures(t *testing.T) {
	e := loadScripts(t, map[string]string{
		"flaky.js": `function review(tx) { return tx.failures < 3; }`,
	})
	counts := map[cranklib.Address]uint64{addrOf(1): 4, addrOf(2): 1}
	hook := e.Hook(func(ref cranklib.Address) uint64 { return counts[ref] })
	tx := signedTx(t)
	if hook(addrOf(1), tx, 50) {
		t.Error("flaky automation not vetoed")
	}
	if !hook(addrOf(2), tx, 50) {
		t.Error("healthy automation vetoed")
	}
}

func TestAllScriptsMustApprove(t *testing.T) {
	e := loadScripts(t, map[string]string{
		"allow.js": `function review(tx) { return true; }`,
		"deny.js":  `function review(tx) { return false; }`,
	})
	if e.Count() != 2 {
		t.Fatalf("Count = %d", e.Count())
	}
	if e.Hook(nil)(addrOf(1), signedTx(t), 1) {
		t.Error("transaction passed despite a vetoing script")
	}
}

func TestBrokenScriptFailsOpen(t *testing.T) {
	e := loadScripts(t, map[string]string{
		"throw.js": `function review(tx) { throw new Error("boom"); }`,
	})
	if !e.Hook(nil)(addrOf(1), signedTx(t), 1) {
		t.Error("throwing script vetoed instead of failing open")
	}
}

func TestRunawayScriptInterrupted(t *testing.T) {
	e := loadScripts(t, map[string]string{
		"spin.js": `function review(tx) { while (true) {} }`,
	})
	// The interrupt surfaces as a script error, which fails open.
	if !e.Hook(nil)(addrOf(1), signedTx(t), 1) {
		t.Error("interrupted script vetoed instead of failing open")
	}
}

func TestBadScriptsSkippedAtLoad(t *testing.T) {
	e := loadScripts(t, map[string]string{
		"syntax.js":   `function review( {`,
		"noreview.js": `var x = 1;`,
		"good.js":     `function review(tx) { return true; }`,
		"notes.txt":   `not a script`,
	})
	if e.Count() != 1 {
		t.Errorf("Count = %d, want 1 (only good.js)", e.Count())
	}
}

func TestConsoleAvailable(t *testing.T) {
	log := logger.NewMockLogger()
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/p/log.js", []byte(`
		function review(tx) { console.log("reviewing " + tx.ref); return true; }
	`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	e, err := Load(fs, "/p", log)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !e.Hook(nil)(addrOf(3), signedTx(t), 7) {
		t.Fatal("vetoed")
	}
	if len(log.InfoCalls) == 0 {
		t.Error("console.log did not reach the logger")
	}
}
