package scaffold

import "strings"

// Request is the body sent to the generation service.
type Request struct {
	SessionID string `json:"session_id"`
	Prompt    string `json:"input"`
}

// Validate checks that both fields carry a value.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return &InputError{Reason: "prompt is empty"}
	}
	if r.SessionID == "" {
		return &InputError{Reason: "session id is empty"}
	}
	return nil
}

// Descriptor is the validated file set returned by the generation service.
// Files keep the order of the response, which is also the write order.
type Descriptor struct {
	Files []FileEntry `json:"files" yaml:"files"`
}

// FileEntry is a single file as described by the service. Path is relative
// to the workspace root and untrusted until resolved.
type FileEntry struct {
	Path    string `json:"path" yaml:"path"`
	Content string `json:"content" yaml:"content"`
}

// ResolvedWrite is a FileEntry whose destination has passed path validation.
type ResolvedWrite struct {
	RelPath string
	AbsPath string
	Content string
}

// Change describes what a successful write did to the file on disk.
type Change int

const (
	Created Change = iota
	Overwritten
	Unchanged
)

func (c Change) String() string {
	switch c {
	case Created:
		return "created"
	case Overwritten:
		return "overwritten"
	case Unchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// Failure pairs a relative path with the reason it was not written.
type Failure struct {
	Path string
	Err  error
}

// Result collects the per-entry outcomes of one materialization.
//
// Succeeded and Failed behave as a set and a map keyed by relative path:
// a path appears at most once across both, and a later entry for the same
// path replaces the earlier outcome. Each slice is in recording order; a
// path that moves between them is appended to the end of its new slice,
// while a repeat outcome of the same kind keeps its position.
type Result struct {
	Succeeded []string
	Failed    []Failure
	Changes   map[string]Change
}

// NewResult returns an empty Result ready for recording.
func NewResult() *Result {
	return &Result{Changes: make(map[string]Change)}
}

// RecordSuccess marks path as written.
func (r *Result) RecordSuccess(path string, change Change) {
	r.dropFailure(path)
	if r.Changes == nil {
		r.Changes = make(map[string]Change)
	}
	if _, seen := r.Changes[path]; !seen {
		r.Succeeded = append(r.Succeeded, path)
	}
	r.Changes[path] = change
}

// RecordFailure marks path as failed with err.
func (r *Result) RecordFailure(path string, err error) {
	r.dropSuccess(path)
	for i := range r.Failed {
		if r.Failed[i].Path == path {
			r.Failed[i].Err = err
			return
		}
	}
	r.Failed = append(r.Failed, Failure{Path: path, Err: err})
}

// Attempted returns the number of distinct paths with a recorded outcome.
func (r *Result) Attempted() int {
	return len(r.Succeeded) + len(r.Failed)
}

// FailedPaths returns the failed relative paths in order.
func (r *Result) FailedPaths() []string {
	paths := make([]string, len(r.Failed))
	for i, f := range r.Failed {
		paths[i] = f.Path
	}
	return paths
}

// FailureFor returns the recorded error for path, or nil.
func (r *Result) FailureFor(path string) error {
	for _, f := range r.Failed {
		if f.Path == path {
			return f.Err
		}
	}
	return nil
}

func (r *Result) dropSuccess(path string) {
	if _, ok := r.Changes[path]; !ok {
		return
	}
	delete(r.Changes, path)
	for i, p := range r.Succeeded {
		if p == path {
			r.Succeeded = append(r.Succeeded[:i], r.Succeeded[i+1:]...)
			return
		}
	}
}

func (r *Result) dropFailure(path string) {
	for i, f := range r.Failed {
		if f.Path == path {
			r.Failed = append(r.Failed[:i], r.Failed[i+1:]...)
			return
		}
	}
}
