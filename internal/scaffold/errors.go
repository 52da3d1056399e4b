package scaffold

import (
	"fmt"
	"net/http"
)

// InputError reports a missing prompt or unusable workspace root.
// It is raised before any network or filesystem activity.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return "input error: " + e.Reason
}

// NetworkError reports a transport failure or timeout talking to the
// generation service.
type NetworkError struct {
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error [%s]: %v", e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ProtocolError reports a response that does not match the descriptor
// schema. Field names the first offending location, e.g. "files[2].path".
// Status is set when the service answered with a non-2xx code.
type ProtocolError struct {
	Field  string
	Reason string
	Status int
}

func (e *ProtocolError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("protocol error: service returned %d %s: %s",
			e.Status, http.StatusText(e.Status), e.Reason)
	}
	return fmt.Sprintf("protocol error: %s: %s", e.Field, e.Reason)
}

// PathSecurityError reports a relative path that was rejected by the path
// resolver. The entry is never written.
type PathSecurityError struct {
	Path   string
	Reason string
}

func (e *PathSecurityError) Error() string {
	return fmt.Sprintf("rejected path %q: %s", e.Path, e.Reason)
}

// IOError reports a failed mkdir or write for a single entry.
type IOError struct {
	Path string
	Op   string // "mkdir", "write", "encode"
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("io error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
