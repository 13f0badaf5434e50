package browser

import "fmt"

// SessionStartError means Chrome could not be launched or attached to.
// Nothing downstream is recoverable when this fires.
type SessionStartError struct {
	Err error
}

func (e *SessionStartError) Error() string { return fmt.Sprintf("start browser session: %v", e.Err) }
func (e *SessionStartError) Unwrap() error { return e.Err }

// PageCreateError means a tab could not be opened or prepared inside an
// otherwise healthy session.
type PageCreateError struct {
	Err error
}

func (e *PageCreateError) Error() string { return fmt.Sprintf("create page: %v", e.Err) }
func (e *PageCreateError) Unwrap() error { return e.Err }

// StateCorruptError means a persisted login-state file exists but cannot be
// decoded. The caller decides whether to discard it and fall back to a
// fresh login.
type StateCorruptError struct {
	Path string
	Err  error
}

func (e *StateCorruptError) Error() string {
	return fmt.Sprintf("login state %s is corrupt: %v", e.Path, e.Err)
}
func (e *StateCorruptError) Unwrap() error { return e.Err }
