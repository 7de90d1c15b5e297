package services

import "errors"

// Standard service errors
var (
	// Transport and storage errors
	ErrChannelUnavailable = errors.New("messaging channel unavailable")
	ErrTimeout            = errors.New("operation timed out")
	ErrStoreUnavailable   = errors.New("folder store unavailable")

	// Data errors
	ErrInvalidInput   = errors.New("invalid input provided")
	ErrDataInvalid    = errors.New("folder data failed validation")
	ErrFolderNotFound = errors.New("folder not found")
)

// IsRetryableError determines if an error should be retried
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrChannelUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrStoreUnavailable)
}
