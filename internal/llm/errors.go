package llm

import "fmt"

// MissingCredentialError is returned when a provider is constructed without
// its API key.
type MissingCredentialError struct {
	Variable string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("%s not found in environment", e.Variable)
}

// Is lets errors.Is(err, ErrMissingCredential) match any missing key.
func (e *MissingCredentialError) Is(target error) bool {
	_, ok := target.(*MissingCredentialError)
	return ok
}

// ErrMissingCredential matches every *MissingCredentialError.
var ErrMissingCredential = &MissingCredentialError{}

// UpstreamError is a non-success answer from the completion endpoint. Status
// and body are kept verbatim.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.StatusCode, e.Body)
}

// MalformedResponseError is a success answer whose envelope does not carry
// the reply text where it is expected.
type MalformedResponseError struct {
	Provider string
	Body     string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("unexpected %s response format: %s", e.Provider, e.Body)
}
