package golden

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestIdentifierFromTestFlattensSubtests(t *testing.T) {
	t.Run("nested/name", func(t *testing.T) {
		id := IdentifierFromTest(t)
		if strings.ContainsRune(id, '/') {
			t.Fatalf("expected flattened identifier, got %q", id)
		}
		if id != "TestIdentifierFromTestFlattensSubtests-nested-name" {
			t.Fatalf("unexpected identifier %q", id)
		}
	})
}

// fakeTB captures cleanup callbacks and failures so the ForTest guard can be
// exercised without failing the real test.
type fakeTB struct {
	testing.TB
	name     string
	cleanups []func()
	failed   bool
}

func (f *fakeTB) Helper() {}

func (f *fakeTB) Name() string { return f.name }

func (f *fakeTB) Cleanup(fn func()) { f.cleanups = append(f.cleanups, fn) }

func (f *fakeTB) Errorf(format string, args ...any) { f.failed = true }

func (f *fakeTB) runCleanups() {
	for i := len(f.cleanups) - 1; i >= 0; i-- {
		f.cleanups[i]()
	}
}

func TestForTestFailsWhenRecordingNeverCompletes(t *testing.T) {
	c := newTestController(t, newStubStore(), newStubMock())
	tb := &fakeTB{name: "TestSomething/case_one"}

	session, err := ForTest(tb, c)
	if err != nil {
		t.Fatalf("for test: %v", err)
	}
	if session.Identifier() != "TestSomething-case_one" {
		t.Fatalf("unexpected identifier %q", session.Identifier())
	}

	tb.runCleanups()
	if !tb.failed {
		t.Fatalf("expected cleanup to flag the unfinished recording")
	}
}

func TestForTestPassesAfterComplete(t *testing.T) {
	c := newTestController(t, newStubStore(), newStubMock())
	tb := &fakeTB{name: "TestSomething"}

	session, err := ForTest(tb, c)
	if err != nil {
		t.Fatalf("for test: %v", err)
	}
	if err := session.Complete([]byte("body")); err != nil {
		t.Fatalf("complete: %v", err)
	}

	tb.runCleanups()
	if tb.failed {
		t.Fatalf("expected no failure after completed recording")
	}
}

func TestForTestReplayRegistersNoCleanup(t *testing.T) {
	store := newStubStore()
	store.files["TestReplayCase"] = []byte("cached")
	c := newTestController(t, store, newStubMock())
	tb := &fakeTB{name: "TestReplayCase"}

	session, err := ForTest(tb, c)
	if err != nil {
		t.Fatalf("for test: %v", err)
	}
	if session.Mode() != ModeReplay {
		t.Fatalf("expected replay, got %v", session.Mode())
	}
	if len(tb.cleanups) != 0 {
		t.Fatalf("expected no cleanup for replay sessions")
	}
}

func TestFromEnvBuildsWorkingController(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GOLDTAPE_DIR", dir)
	t.Setenv("GOLDTAPE_EXT", ".json")
	t.Setenv("GOLDTAPE_UPDATE", "false")
	t.Setenv("GOLDTAPE_ALLOW_EXTERNAL", "true")

	c, err := FromEnv(newStubMock())
	if err != nil {
		t.Fatalf("from env: %v", err)
	}

	session, err := c.Decide("users_list")
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if session.Mode() != ModeRecord {
		t.Fatalf("expected record for empty fixtures dir, got %v", session.Mode())
	}
	if err := session.Complete([]byte(`[{"id":1}]`)); err != nil {
		t.Fatalf("complete: %v", err)
	}

	body, err := os.ReadFile(filepath.Join(dir, "users_list.json"))
	if err != nil {
		t.Fatalf("read persisted fixture: %v", err)
	}
	if string(body) != `[{"id":1}]` {
		t.Fatalf("expected persisted body, got %q", body)
	}
}

func TestFromEnvRejectsInvalidToggle(t *testing.T) {
	t.Setenv("GOLDTAPE_UPDATE", "sometimes")

	if _, err := FromEnv(newStubMock()); err == nil {
		t.Fatalf("expected error for invalid GOLDTAPE_UPDATE")
	}
}
