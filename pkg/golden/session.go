package golden

import (
	"fmt"

	"go.uber.org/zap"
)

// Mode identifies how a session sources its response body.
type Mode int

const (
	// ModeRecord means the caller performs the real external request and
	// must hand the response body back through Complete.
	ModeRecord Mode = iota
	// ModeReplay means the stored fixture body is served; no external
	// request may be made.
	ModeReplay
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeRecord:
		return "record"
	case ModeReplay:
		return "replay"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

type sessionState int

const (
	stateAwaitingRecord sessionState = iota
	stateReady
)

// Session is the per-identifier handle returned by Decide. A replay session
// is Ready immediately; a recording session stays pending until Complete is
// called with the real response body.
type Session struct {
	controller *Controller
	identifier string
	mode       Mode
	state      sessionState
	body       []byte
	logger     *zap.SugaredLogger
}

func newReadySession(identifier string, mode Mode, body []byte) *Session {
	return &Session{
		identifier: identifier,
		mode:       mode,
		state:      stateReady,
		body:       body,
	}
}

func newRecordSession(c *Controller, identifier string, logger *zap.SugaredLogger) *Session {
	return &Session{
		controller: c,
		identifier: identifier,
		mode:       ModeRecord,
		state:      stateAwaitingRecord,
		logger:     logger,
	}
}

// Identifier returns the fixture identifier the session was opened for.
func (s *Session) Identifier() string {
	return s.identifier
}

// Mode reports whether the session records or replays.
func (s *Session) Mode() Mode {
	return s.mode
}

// Pending reports whether a recording session still awaits its body.
func (s *Session) Pending() bool {
	return s.state == stateAwaitingRecord
}

// Body returns the response body held by a Ready session: the stored fixture
// for replay, or the just-recorded response after Complete. It is nil while a
// recording is pending.
func (s *Session) Body() []byte {
	if s.state != stateReady {
		return nil
	}
	return s.body
}

// Complete persists the real response body obtained by the caller and brings
// the mock server in sync, so further requests within the same test run are
// served locally. Only a pending recording session accepts a body; a write or
// mock registration failure is fatal and leaves the session pending.
func (s *Session) Complete(body []byte) error {
	if s.state != stateAwaitingRecord {
		return fmt.Errorf("complete %s: %w", s.identifier, ErrNotRecording)
	}

	if err := s.controller.store.Write(s.identifier, body); err != nil {
		return fmt.Errorf("complete %s: %w", s.identifier, err)
	}
	if err := s.controller.register(s.identifier, body); err != nil {
		return err
	}

	s.state = stateReady
	s.body = body
	s.logger.Debugw("recorded fixture persisted", "bytes", len(body))
	return nil
}
