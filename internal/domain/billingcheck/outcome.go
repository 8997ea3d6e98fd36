package billingcheck

// Status is the terminal status of a check run
type Status string

const (
	StatusRan     Status = "ran"
	StatusSkipped Status = "skipped"
)

// SkipReason names the expected absence that ended a run early
type SkipReason string

const (
	SkipReasonNone                  SkipReason = ""
	SkipReasonMissingReferenceKey   SkipReason = "missing_reference_key"
	SkipReasonCredentialUnavailable SkipReason = "credential_unavailable"
	SkipReasonLeaseHeld             SkipReason = "lease_held"
)

// Outcome is the result of one check run
type Outcome struct {
	Status     Status
	SkipReason SkipReason

	// Set only when Status is StatusRan
	BillingEnabled  bool
	Transitioned    bool
	EnabledProjects []string
}

// Skipped returns an outcome for a run that ended on an expected absence
func Skipped(reason SkipReason) Outcome {
	return Outcome{Status: StatusSkipped, SkipReason: reason}
}

// Ran returns an outcome for a run that completed the external check
func Ran(enabledProjects []string, transitioned bool) Outcome {
	return Outcome{
		Status:          StatusRan,
		BillingEnabled:  len(enabledProjects) > 0,
		Transitioned:    transitioned,
		EnabledProjects: enabledProjects,
	}
}

// IsSkipped returns true if the run ended early
func (o Outcome) IsSkipped() bool {
	return o.Status == StatusSkipped
}
