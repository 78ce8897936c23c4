package golden

import (
	"strings"
	"testing"

	"github.com/goldtape/goldtape/pkg/config"
	"github.com/goldtape/goldtape/pkg/fixture"
)

// FromEnv constructs a controller whose store and mode toggles are resolved
// through config.Load: the .goldtape.yaml project file (if present) layered
// with the GOLDTAPE_* environment variables, read once.
func FromEnv(mock MockServer) (*Controller, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	store := fixture.New(cfg.Dir, fixture.WithExtension(cfg.Extension))
	return New(Config{
		Store:         store,
		Mock:          mock,
		UpdateGolden:  cfg.Update,
		AllowExternal: cfg.AllowExternal,
	})
}

// IdentifierFromTest derives a fixture identifier from the test name,
// flattening subtest path separators so one fixture file maps to one test.
func IdentifierFromTest(t testing.TB) string {
	return strings.ReplaceAll(t.Name(), "/", "-")
}

// ForTest opens a session for the calling test, deriving the fixture
// identifier from the test name. When the session records, a cleanup is
// registered that fails the test if Complete was never called, so a test
// cannot silently finish without persisting its golden fixture.
func ForTest(t testing.TB, c *Controller) (*Session, error) {
	t.Helper()

	session, err := c.Decide(IdentifierFromTest(t))
	if err != nil {
		return nil, err
	}

	if session.Mode() == ModeRecord {
		t.Cleanup(func() {
			if session.Pending() {
				t.Errorf("golden fixture %s was never recorded: call Session.Complete with the real response body", session.Identifier())
			}
		})
	}
	return session, nil
}
