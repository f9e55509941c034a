package convo

import "errors"

// ErrorKind is the closed error taxonomy every ActionResult failure is
// tagged with. Per-action errors are always captured into a result,
// never raised as an exception.
type ErrorKind string

const (
	ErrMissingParam     ErrorKind = "MissingParam"
	ErrInvalidParam     ErrorKind = "InvalidParam"
	ErrSourceNotFound   ErrorKind = "SourceNotFound"
	ErrIOError          ErrorKind = "IOError"
	ErrTransportTimeout ErrorKind = "TransportTimeout"
	ErrRemoteError      ErrorKind = "RemoteError"
	ErrExecutionFailure ErrorKind = "ExecutionFailure"
	ErrPlanParseError   ErrorKind = "PlanParseError"
	ErrPersistenceError ErrorKind = "PersistenceError"
)

// ErrUnknownActionKind is returned by the Orchestrator's dispatch table
// when asked to execute a kind outside the closed set.
var ErrUnknownActionKind = errors.New("convo: unknown action kind")
