package security

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"localagent/pkg/capability"
	"localagent/pkg/request"
)

func testGate(policies ...Policy) *Gate {
	return NewGate(map[string]capability.Tier{
		"create_file": capability.TierMedium,
		"delete_file": capability.TierDangerous,
		"run_script":  capability.TierCritical,
	}, policies...)
}

func TestGateTierDefaultsToSafe(t *testing.T) {
	gate := testGate()
	if tier := gate.Tier("message"); tier != capability.TierSafe {
		t.Errorf("Tier(message) = %v, want safe", tier)
	}
	if tier := gate.Tier("run_script"); tier != capability.TierCritical {
		t.Errorf("Tier(run_script) = %v, want critical", tier)
	}
}

func TestGateConfirmation(t *testing.T) {
	tests := []struct {
		name    string
		command string
		params  capability.Params
		allowed bool
	}{
		{"safe without confirm", "message", capability.Params{"text": "hi"}, true},
		{"medium without confirm", "create_file", capability.Params{"path": "/tmp/x"}, true},
		{"dangerous omitted", "delete_file", capability.Params{"path": "/tmp/x"}, false},
		{"dangerous false", "delete_file", capability.Params{"path": "/tmp/x", "confirm": false}, false},
		{"dangerous string true", "delete_file", capability.Params{"path": "/tmp/x", "confirm": "true"}, false},
		{"dangerous numeric", "delete_file", capability.Params{"path": "/tmp/x", "confirm": float64(1)}, false},
		{"dangerous confirmed", "delete_file", capability.Params{"path": "/tmp/x", "confirm": true}, true},
		{"critical omitted", "run_script", capability.Params{"script": "ls"}, false},
		{"critical confirmed", "run_script", capability.Params{"script": "ls", "confirm": true}, true},
	}
	gate := testGate()
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := gate.Check(request.CommandRequest{Name: test.command, Params: test.params})
			if test.allowed && err != nil {
				t.Fatalf("Check() = %v, want allowed", err)
			}
			if !test.allowed && !errors.Is(err, ErrConfirmationRequired) {
				t.Fatalf("Check() = %v, want ErrConfirmationRequired", err)
			}
		})
	}
}

func TestGateDoesNotStripConfirm(t *testing.T) {
	params := capability.Params{"path": "/tmp/x", "confirm": true}
	if _, err := testGate().Check(request.CommandRequest{Name: "delete_file", Params: params}); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if params["confirm"] != true {
		t.Error("confirm was removed from params")
	}
}

func TestGatePoliciesRunAfterConfirmation(t *testing.T) {
	calls := 0
	deny := errors.New("denied")
	gate := testGate(func(request.CommandRequest, capability.Tier) error {
		calls++
		return deny
	})

	_, err := gate.Check(request.CommandRequest{Name: "delete_file", Params: capability.Params{}})
	if !errors.Is(err, ErrConfirmationRequired) || calls != 0 {
		t.Fatalf("unconfirmed: err=%v calls=%d", err, calls)
	}
	_, err = gate.Check(request.CommandRequest{Name: "delete_file", Params: capability.Params{"confirm": true}})
	if !errors.Is(err, deny) || calls != 1 {
		t.Fatalf("confirmed: err=%v calls=%d", err, calls)
	}
}

func TestProtectedPaths(t *testing.T) {
	root := t.TempDir()
	protected := filepath.Join(root, "system")
	if err := os.Mkdir(protected, 0o755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(root, "shortcut")
	if err := os.Symlink(protected, link); err != nil {
		t.Fatal(err)
	}
	gate := testGate(ProtectedPaths([]string{protected, ""}))

	tests := []struct {
		name    string
		command string
		params  capability.Params
		blocked bool
	}{
		{"inside", "delete_file", capability.Params{"path": filepath.Join(protected, "a"), "confirm": true}, true},
		{"root itself", "create_file", capability.Params{"path": protected}, true},
		{"sibling prefix", "create_file", capability.Params{"path": protected + "2"}, false},
		{"outside", "create_file", capability.Params{"path": filepath.Join(root, "other")}, false},
		{"safe read inside", "read_file", capability.Params{"path": filepath.Join(protected, "a")}, false},
		{"move destination", "create_file", capability.Params{"to_path": filepath.Join(protected, "b")}, true},
		{"safe output inside", "read_file", capability.Params{"path": root, "output": filepath.Join(protected, "c")}, true},
		{"database inside", "sqlite_exec", capability.Params{"statement": "DELETE FROM t", "database": filepath.Join(protected, "db.sqlite"), "confirm": true}, true},
		{"database outside", "sqlite_exec", capability.Params{"statement": "DELETE FROM t", "database": filepath.Join(root, "db.sqlite"), "confirm": true}, false},
		{"through symlink", "create_file", capability.Params{"path": filepath.Join(link, "new", "file.txt")}, true},
		{"symlink itself", "delete_file", capability.Params{"path": link, "confirm": true}, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := gate.Check(request.CommandRequest{Name: test.command, Params: test.params})
			if test.blocked != errors.Is(err, ErrProtectedPath) {
				t.Fatalf("Check() = %v, blocked want %v", err, test.blocked)
			}
		})
	}
}

func TestProtectedRootGivenThroughSymlink(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "real")
	if err := os.Mkdir(target, 0o755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(root, "alias")
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}
	gate := testGate(ProtectedPaths([]string{link}))
	_, err := gate.Check(request.CommandRequest{Name: "create_file", Params: capability.Params{"path": filepath.Join(target, "x")}})
	if !errors.Is(err, ErrProtectedPath) {
		t.Fatalf("Check() = %v, want ErrProtectedPath", err)
	}
}

func TestResolveKeepsMissingComponents(t *testing.T) {
	root := t.TempDir()
	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		t.Fatal(err)
	}
	got := resolve(filepath.Join(root, "a", "b.txt"))
	if want := filepath.Join(resolvedRoot, "a", "b.txt"); got != want {
		t.Errorf("resolve() = %q, want %q", got, want)
	}
}
