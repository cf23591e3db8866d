package executor

import "fmt"

// UpstreamFailureError marks a node that was skipped because a node it
// consumes from failed. The node itself never ran.
type UpstreamFailureError struct {
	NodeID   string
	Upstream string
}

func (e *UpstreamFailureError) Error() string {
	return fmt.Sprintf("node %q skipped: upstream node %q failed", e.NodeID, e.Upstream)
}

// Kind returns the machine-readable error kind.
func (e *UpstreamFailureError) Kind() string { return "upstream_failure" }

// CancelledError marks a node that did not get to run because the caller's
// cancellation signal was observed first. It is a distinct, non-error
// termination in the taxonomy: the workflow is fine, this run was stopped.
type CancelledError struct {
	NodeID string
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("node %q cancelled before dispatch", e.NodeID)
}

// Kind returns the machine-readable error kind.
func (e *CancelledError) Kind() string { return "cancelled" }

// ErrKind extracts the machine-readable kind from an error, falling back to
// "node_failure" for plain runner errors.
func ErrKind(err error) string {
	if err == nil {
		return ""
	}
	if k, ok := err.(interface{ Kind() string }); ok {
		return k.Kind()
	}
	return "node_failure"
}
