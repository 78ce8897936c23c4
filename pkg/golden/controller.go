// Package golden decides, per fixture identifier, whether a test should
// record a real external API response or replay a previously persisted one.
//
// A Controller consults an injected fixture store and programs an injected
// mock server: when a fixture exists (and no update is requested) the stored
// body is returned and registered with the mock so the code under test can be
// pointed at the mock's base URI; otherwise the caller performs the real
// request itself and hands the response body back through
// Session.Complete, which persists it and brings the mock in sync. The
// controller never issues network I/O.
package golden

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goldtape/goldtape/pkg/fixture"
	pkglog "github.com/goldtape/goldtape/pkg/log"
)

var (
	// ErrNilStore indicates the controller was built without a fixture store.
	ErrNilStore = errors.New("fixture store is required")
	// ErrNilMock indicates the controller was built without a mock server.
	ErrNilMock = errors.New("mock server is required")
	// ErrUpdateNeedsExternal is returned when updates are requested while
	// external calls are disallowed; there is no source to update from.
	ErrUpdateNeedsExternal = errors.New("cannot update golden fixtures without allowing external calls")
	// ErrExternalDisallowed is returned when a fixture must be recorded but
	// external calls are disallowed.
	ErrExternalDisallowed = errors.New("fixture must be recorded but external calls are disallowed")
	// ErrRecordingPending is returned by Decide while an earlier recording
	// session for the same identifier has not completed.
	ErrRecordingPending = errors.New("a recording session for this fixture is already pending")
	// ErrNotRecording is returned by Complete on a session that is not
	// awaiting a recorded body.
	ErrNotRecording = errors.New("session is not awaiting a recording")
	// ErrMockRegistration wraps failures to program the mock server.
	ErrMockRegistration = errors.New("mock registration failed")
)

// FixtureStore is the persistence surface the controller depends on. Read
// must report a missing fixture with an error wrapping fixture.ErrNotFound.
// *fixture.Store satisfies it.
type FixtureStore interface {
	Exists(identifier string) (bool, error)
	Read(identifier string) ([]byte, error)
	Write(identifier string, body []byte) error
}

// MockServer is the collaborator the controller programs with canned
// responses. *mockserver.Server satisfies it; the controller never starts or
// stops the server.
type MockServer interface {
	BaseURI() string
	RegisterResponse(identifier string, body []byte) error
}

// Config carries the controller's collaborators and the process-wide mode
// toggles. The toggles are read once at construction and immutable for the
// controller's lifetime.
type Config struct {
	// Store persists and serves fixture bodies. Required.
	Store FixtureStore
	// Mock receives canned responses for replay. Required.
	Mock MockServer
	// UpdateGolden forces recording even when a fixture exists.
	UpdateGolden bool
	// AllowExternal permits recording sessions. When false, only replay is
	// possible and a missing fixture is an error.
	AllowExternal bool
	// Logger overrides the shared logger.
	Logger *zap.SugaredLogger
}

// Controller owns the per-identifier session state for one test process. It
// is safe for use from parallel subtests as long as each identifier is driven
// by a single test at a time; Decide enforces that discipline.
type Controller struct {
	store         FixtureStore
	mock          MockServer
	updateGolden  bool
	allowExternal bool
	logger        *zap.SugaredLogger

	mu       sync.Mutex
	sessions map[string]*Session
}

// New constructs a controller from the provided configuration.
func New(cfg Config) (*Controller, error) {
	if cfg.Store == nil {
		return nil, ErrNilStore
	}
	if cfg.Mock == nil {
		return nil, ErrNilMock
	}
	if cfg.UpdateGolden && !cfg.AllowExternal {
		return nil, ErrUpdateNeedsExternal
	}

	logger := cfg.Logger
	if logger == nil {
		logger = pkglog.Named("golden")
	}

	return &Controller{
		store:         cfg.Store,
		mock:          cfg.Mock,
		updateGolden:  cfg.UpdateGolden,
		allowExternal: cfg.AllowExternal,
		logger:        logger,
		sessions:      make(map[string]*Session),
	}, nil
}

// BaseURI exposes the mock server's base URI so callers can point their
// request code at it during replay.
func (c *Controller) BaseURI() string {
	return c.mock.BaseURI()
}

// UpdateGolden reports whether the controller forces re-recording.
func (c *Controller) UpdateGolden() bool {
	return c.updateGolden
}

// Decide resolves the mode for a fixture identifier.
//
// It returns a replay session holding the stored body when the fixture exists
// and no update is requested, registering the body with the mock server. It
// returns a recording session when the fixture is absent or an update is
// requested; the caller must perform the real request and call
// Session.Complete with the response body. A fixture that disappears between
// the existence check and the read is treated as absent rather than as a
// failure.
func (c *Controller) Decide(identifier string) (*Session, error) {
	c.mu.Lock()
	if prev, ok := c.sessions[identifier]; ok && prev.Pending() {
		c.mu.Unlock()
		return nil, fmt.Errorf("decide %s: %w", identifier, ErrRecordingPending)
	}
	c.mu.Unlock()

	logger := c.logger.With("fixture", identifier, "session", uuid.NewString())

	mode := ModeRecord
	if !c.updateGolden {
		exists, err := c.store.Exists(identifier)
		if err != nil {
			return nil, fmt.Errorf("decide %s: %w", identifier, err)
		}
		if exists {
			mode = ModeReplay
		}
	}

	if mode == ModeReplay {
		body, err := c.store.Read(identifier)
		switch {
		case err == nil:
			if err := c.register(identifier, body); err != nil {
				return nil, err
			}
			logger.Debugw("replaying stored fixture", "bytes", len(body))
			return c.track(newReadySession(identifier, ModeReplay, body)), nil
		case errors.Is(err, fixture.ErrNotFound):
			// Narrow race: the fixture vanished after the existence check.
			// It is effectively absent, so fall through to recording.
			logger.Debugw("fixture disappeared before read, falling back to record")
		default:
			return nil, fmt.Errorf("decide %s: %w", identifier, err)
		}
	}

	if !c.allowExternal {
		return nil, fmt.Errorf("decide %s: %w", identifier, ErrExternalDisallowed)
	}

	logger.Debugw("awaiting recording of real response")
	return c.track(newRecordSession(c, identifier, logger)), nil
}

func (c *Controller) track(s *Session) *Session {
	c.mu.Lock()
	c.sessions[s.identifier] = s
	c.mu.Unlock()
	return s
}

func (c *Controller) register(identifier string, body []byte) error {
	if err := c.mock.RegisterResponse(identifier, body); err != nil {
		return fmt.Errorf("register mock response for %s: %w: %w", identifier, ErrMockRegistration, err)
	}
	return nil
}
