// Package scaffold defines the data exchanged between the generation
// service and the file materializer, plus the error taxonomy shared by
// every stage of a generation run.
//
// # Lifecycle
//
// A Request is built from the prompt and the session id, sent by the
// client, and answered with a Descriptor. Each FileEntry in the descriptor
// is resolved into a ResolvedWrite against the workspace root and handed to
// the materializer, which records the outcome of every entry in a Result.
//
// None of these values outlive a single invocation.
//
// # Errors
//
// Flow-aborting errors (InputError, NetworkError, ProtocolError) stop a run
// before any file is touched. Entry-scoped errors (PathSecurityError,
// IOError) are collected in Result.Failed and never stop sibling entries.
package scaffold
