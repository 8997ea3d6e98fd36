package dto

// CreateBillingCheckRequest carries the short-lived access token to check with.
// The token is parked in the credential exchange and never echoed back.
type CreateBillingCheckRequest struct {
	Token string `json:"token" binding:"required"`
}

// BillingCheckAcceptedResponse is returned when a check has been queued
type BillingCheckAcceptedResponse struct {
	ReferenceKey string `json:"reference_key"`
	JobID        string `json:"job_id"`
}
