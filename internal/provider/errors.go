package provider

import "fmt"

// SymbolNotFoundError reports that the upstream has no such ticker.
// The API layer maps it to 404.
type SymbolNotFoundError struct {
	Symbol string
}

func (e *SymbolNotFoundError) Error() string {
	return fmt.Sprintf("symbol %q not found", e.Symbol)
}

// UpstreamError reports a transient external failure. Maps to 502.
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// TimeoutError reports that a fetch exceeded its deadline. Maps to 504.
type TimeoutError struct {
	Service string
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s fetch timed out: %v", e.Service, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// InsufficientHistoryError reports that a history does not hold enough
// points for the requested analysis window. Maps to 404.
type InsufficientHistoryError struct {
	Ticker string
	Need   int
	Have   int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history for %s: need %d points, have %d", e.Ticker, e.Need, e.Have)
}

// MalformedHistoryError reports history input that violates the point
// sequence invariants. Maps to 400.
type MalformedHistoryError struct {
	Ticker string
	Reason string
}

func (e *MalformedHistoryError) Error() string {
	return fmt.Sprintf("malformed history for %s: %s", e.Ticker, e.Reason)
}

// InvalidTimeframeError reports a timeframe outside the supported range.
// Maps to 400.
type InvalidTimeframeError struct {
	Days int
	Min  int
	Max  int
}

func (e *InvalidTimeframeError) Error() string {
	return fmt.Sprintf("timeframe %d days outside supported range [%d, %d]", e.Days, e.Min, e.Max)
}

// ConsistencyError is an internal invariant breach. It is always a
// programming defect, never caused by user input.
type ConsistencyError struct {
	Reason string
}

func (e *ConsistencyError) Error() string {
	return "cache consistency violation: " + e.Reason
}
