package model

// VerificationStatus classifies an email verification outcome.
type VerificationStatus string

const (
	VerificationValid   VerificationStatus = "valid"
	VerificationInvalid VerificationStatus = "invalid"
	VerificationRisky   VerificationStatus = "risky"
	VerificationUnknown VerificationStatus = "unknown"
)

// VerificationResult is the outcome of verifying a single email address.
type VerificationResult struct {
	Email    string             `json:"email"`
	Verified bool               `json:"verified"`
	Status   VerificationStatus `json:"status"`
	Details  string             `json:"details,omitempty"`
}
