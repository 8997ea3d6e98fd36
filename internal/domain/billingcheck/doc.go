// Package billingcheck provides the domain model for the periodic project billing check.
//
// A check run is triggered with a reference key. The key resolves to a short-lived
// credential held in the shared store, a lease derived from the credential gates
// concurrent runs, and the billing-enabled state of the previous run is compared
// with the current one to count disabled-to-enabled transitions.
//
// Key types:
//   - KeySpace: derives every shared-store key used by a run
//   - PreviousState: the raw state recorded by the previous run
//   - Outcome: the result of a run, either ran or skipped with a reason
//
// Ports implemented by the infrastructure layer:
//   - LeaseManager, CredentialExchange, StateTracker, BillingChecker
package billingcheck
