package alerts

import "fmt"

// ValidationError rejects a submission before any commit is attempted. The
// offending intent set is never partially persisted.
type ValidationError struct {
	Field FieldLabel
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid submission: %s: %s", e.Field, e.Msg)
	}
	return fmt.Sprintf("invalid submission: %s", e.Msg)
}

// ReadError wraps a failure to fetch the previous current snapshot. No
// commit was attempted; the caller may retry the whole submission.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string { return fmt.Sprintf("read current snapshot: %v", e.Err) }
func (e *ReadError) Unwrap() error { return e.Err }

// CommitError wraps a rejected supersession batch. The store rolled the
// batch back completely, so the previous snapshot is still current and the
// submission may be retried from scratch.
type CommitError struct {
	Err error
}

func (e *CommitError) Error() string { return fmt.Sprintf("commit snapshot: %v", e.Err) }
func (e *CommitError) Unwrap() error { return e.Err }
