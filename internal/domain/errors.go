package domain

import "errors"

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// NetworkError represents a feed transport error that may be retriable
type NetworkError struct {
	Op        string // Operation that failed (e.g., "dial", "read", "subscribe")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// NewFatalNetworkError creates a non-retriable network error
func NewFatalNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: false}
}

// OrderError wraps an order rejection with the field that failed
// validation. The ledger guarantees no state was mutated when one of
// these is returned.
type OrderError struct {
	Field string
	Err   error
}

func (e *OrderError) Error() string {
	return "order rejected [" + e.Field + "]: " + e.Err.Error()
}

func (e *OrderError) Unwrap() error {
	return e.Err
}

var (
	// ErrStaleTick marks a tick whose timestamp is older than the stored
	// latest tick for its symbol. Stale ticks are dropped, not queued;
	// ingestion continues.
	ErrStaleTick = errors.New("stale tick")

	// ErrInvalidTick is returned for non-positive prices or empty symbols.
	ErrInvalidTick = errors.New("invalid tick")

	// ErrInvalidOrder is returned when qty or price fails validation.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrInsufficientPosition is returned when a SELL exceeds the held
	// quantity. Paper trading never goes short.
	ErrInsufficientPosition = errors.New("insufficient position")

	// ErrUnknownSymbol is returned by read-side lookups for names never
	// seen by any tick or order.
	ErrUnknownSymbol = errors.New("unknown symbol")

	// ErrConnectionFailed is returned when a feed connection fails. It's usually retriable.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrConfigNotFound is returned when the configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)
