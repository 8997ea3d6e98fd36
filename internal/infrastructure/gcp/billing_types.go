package gcp

import "fmt"

// lifecycleStateActive is the only project state whose billing is checked
const lifecycleStateActive = "ACTIVE"

// Project is an entry of the Cloud Resource Manager projects list
type Project struct {
	ProjectID      string `json:"projectId"`
	ProjectNumber  string `json:"projectNumber,omitempty"`
	Name           string `json:"name,omitempty"`
	LifecycleState string `json:"lifecycleState,omitempty"`
}

// ListProjectsResponse is one page of projects
type ListProjectsResponse struct {
	Projects      []Project `json:"projects"`
	NextPageToken string    `json:"nextPageToken,omitempty"`
}

// ProjectBillingInfo is the billing information of a project
type ProjectBillingInfo struct {
	Name               string `json:"name"`
	ProjectID          string `json:"projectId"`
	BillingAccountName string `json:"billingAccountName,omitempty"`
	BillingEnabled     bool   `json:"billingEnabled"`
}

// APIError is a non-2xx response from a Google API
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gcp: %s returned HTTP %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("gcp: %s returned HTTP %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// errorEnvelope is the standard Google API error body
type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}
