package errors

import "errors"

var (
	ErrUpstreamUnavailable   = errors.New("upstream capability unavailable")
	ErrMalformedResponse     = errors.New("upstream response is malformed")
	ErrInsufficientFunds     = errors.New("treasury balance is insufficient for transfer")
	ErrSubmissionFailed      = errors.New("transfer submission failed")
	ErrConfirmationTimeout   = errors.New("transfer confirmation timed out")
	ErrNoEligibleHolder      = errors.New("no eligible holder")
	ErrDuplicateWindowRecord = errors.New("distribution record already exists for window")
	ErrRecordNotFound        = errors.New("distribution record not found")
	ErrWindowInProgress      = errors.New("window distribution already in progress")
	ErrInvalidConfiguration  = errors.New("holder lottery configuration is invalid")
)

// IsRetryable reports whether a failed window can be retried wholesale on the
// next trigger. Malformed upstream responses retry like unavailable ones.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable) ||
		errors.Is(err, ErrMalformedResponse) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrSubmissionFailed)
}
