package auth

import "fmt"

// CredentialError means the remote service cannot be reached on the user's
// behalf: credentials are missing, rejected, or could not be refreshed.
type CredentialError struct {
	Reason string
	Err    error
}

func (e *CredentialError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("credentials: %s: %v", e.Reason, e.Err)
	}
	return "credentials: " + e.Reason
}

func (e *CredentialError) Unwrap() error { return e.Err }
