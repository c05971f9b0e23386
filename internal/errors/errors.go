// internal/errors/errors.go
package appErrors

import "fmt"

// ErrJobNotFound is a sentinel error
type ErrJobNotFound struct {
    JobID string
}

func (e *ErrJobNotFound) Error() string {
    return fmt.Sprintf("job with ID %s not found", e.JobID)
}

// Helper constructor
func NewJobNotFound(id string) error {
    return &ErrJobNotFound{JobID: id}
}

// ErrUnknownChannel marks a channel name the pipeline has no adapter for
type ErrUnknownChannel struct {
    Channel string
}

func (e *ErrUnknownChannel) Error() string {
    return fmt.Sprintf("unknown channel: %s", e.Channel)
}

func NewUnknownChannel(channel string) error {
    return &ErrUnknownChannel{Channel: channel}
}

// ErrTargetLookup wraps a contact-lookup collaborator failure so callers can
// tell "lookup failed" apart from "audience genuinely empty".
type ErrTargetLookup struct {
    Kind string
    Ref  int64
    Err  error
}

func (e *ErrTargetLookup) Error() string {
    return fmt.Sprintf("target lookup failed for %s %d: %v", e.Kind, e.Ref, e.Err)
}

func (e *ErrTargetLookup) Unwrap() error { return e.Err }

func NewTargetLookup(kind string, ref int64, err error) error {
    return &ErrTargetLookup{Kind: kind, Ref: ref, Err: err}
}
