package convstore

import "errors"

// Sentinel errors returned by Store methods, classified per spec §7's error
// taxonomy. Callers use errors.Is to distinguish local-recovery cases
// (NotFound, Malformed) from the fatal BrokenLog case.
var (
	// ErrNotFound is returned when a template or session file does not exist.
	ErrNotFound = errors.New("convstore: not found")

	// ErrMalformed is returned when a template or session file cannot be
	// parsed. Callers should tolerate this during a watcher-triggered read
	// (the file may be mid-write) and retry after the stability window.
	ErrMalformed = errors.New("convstore: malformed file")

	// ErrBrokenLog is returned when any tool_result in a session's log has
	// a tool_call_id that cannot be matched to an earlier assistant
	// tool_call in the same log. ReadSession refuses such a session, so it
	// is never advanced again; the file's status field is left as written
	// and is not set to error.
	ErrBrokenLog = errors.New("convstore: broken log")
)
