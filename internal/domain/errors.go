package domain

import "fmt"

// ValidationError rejects a draft synchronously, before any network call.
// It never enters the message store.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid draft: %s %s", e.Field, e.Reason)
}
