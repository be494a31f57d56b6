package domain

import "errors"

// Error taxonomy shared by every component. Wrap with fmt.Errorf("%w: ...") and test with errors.Is.
var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrLimitReached      = errors.New("daily limit reached")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrGateway           = errors.New("gateway error")
	ErrStore             = errors.New("store error")
)

// IsDomainError reports whether err already carries one of the taxonomy errors.
func IsDomainError(err error) bool {
	for _, target := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrLimitReached, ErrInsufficientFunds, ErrGateway, ErrStore} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
