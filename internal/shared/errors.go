package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Transport errors
	ErrNotConnected     = fmt.Errorf("not connected to control plane")
	ErrConnectionClosed = fmt.Errorf("control plane connection closed")
	ErrRequestFailed    = fmt.Errorf("control plane request failed")
	ErrMalformedMessage = fmt.Errorf("malformed message")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// Session errors
	ErrSessionStarted     = fmt.Errorf("aggregation session already started")
	ErrSessionClosed      = fmt.Errorf("popup session closed")
	ErrQueriesAbandoned   = fmt.Errorf("player state queries abandoned")
	ErrEnumerationFailed  = fmt.Errorf("music tab enumeration failed")
	ErrTabNotFound        = fmt.Errorf("tab not found")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Persistence errors
	ErrAnomalyNotFound = fmt.Errorf("anomaly not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidCommand  = fmt.Errorf("invalid player command")
)
