package formulas

import "errors"

// Degeneracies are reported as errors so callers never receive NaN or Inf.
var (
	ErrEmptySeries        = errors.New("empty series")
	ErrInsufficientData   = errors.New("insufficient data")
	ErrLengthMismatch     = errors.New("series length mismatch")
	ErrZeroSpan           = errors.New("zero calendar span")
	ErrNonPositiveCapital = errors.New("non-positive capital")
	ErrZeroVariance       = errors.New("zero benchmark variance")
	ErrZeroVolatility     = errors.New("zero volatility")
	ErrZeroTrackingError  = errors.New("zero tracking error")
)
