package editor

import "sync"

// State is the lifecycle of one open block.
type State int

const (
	// Presenting shows rendered markdown.
	Presenting State = iota
	// Editing exposes the raw text for typing.
	Editing
	// Loading validates new text after focus-out.
	Loading
)

func (s State) String() string {
	switch s {
	case Editing:
		return "editing"
	case Loading:
		return "loading"
	default:
		return "presenting"
	}
}

// Session tracks one block's edit state: Presenting -> Editing (open) ->
// Loading (focus-out, validating) -> Presenting. Loading is reentrant: a
// second focus-out while one validation is in flight issues a new generation,
// and only the latest generation's response is applied.
type Session struct {
	mu      sync.Mutex
	state   State
	gen     uint64 // latest issued validation
	applied uint64 // latest applied validation
}

// NewSession starts in Presenting.
func NewSession() *Session {
	return &Session{}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Edit enters Editing.
func (s *Session) Edit() {
	s.mu.Lock()
	s.state = Editing
	s.mu.Unlock()
}

// BeginLoad enters Loading and returns the validation generation to pass to
// TryFinish.
func (s *Session) BeginLoad() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Loading
	s.gen++
	return s.gen
}

// TryFinish reports whether the response for the given generation should be
// applied. Only the latest issued generation wins; winning returns the
// session to Presenting. Stale responses are discarded and leave the state
// alone.
func (s *Session) TryFinish(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || gen <= s.applied {
		return false
	}
	s.applied = gen
	s.state = Presenting
	return true
}

// Fail records a validation that could not complete. The session stays in
// Loading with the last-known-good render so the user can retry; if a newer
// validation is already in flight its outcome is unaffected.
func (s *Session) Fail(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	// Keep Loading: original text preserved for retry.
}
