package billingcheck

import (
	"crypto/sha1" //nolint:gosec // key placement only, matches existing state keys
	"encoding/hex"
	"time"

	"github.com/zeebo/blake3"
)

// Default visibility windows
const (
	DefaultKeyPrefix    = "gitlab:gcp"
	DefaultLeaseTimeout = 3 * time.Second
	DefaultSessionTTL   = 5 * time.Minute
	DefaultStateTTL     = 1 * time.Hour
)

const leaseNamespace = "check_project_billing"

// KeySpace derives the shared-store keys for a given prefix.
type KeySpace struct {
	Prefix string
}

// NewKeySpace returns a KeySpace, falling back to DefaultKeyPrefix for an empty prefix
func NewKeySpace(prefix string) KeySpace {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return KeySpace{Prefix: prefix}
}

// SessionKey returns <prefix>:session:<referenceKey>
func (k KeySpace) SessionKey(referenceKey string) string {
	return k.Prefix + ":session:" + referenceKey
}

// StateKey returns <prefix>:<sha1(credential)>:billing_enabled
func (k KeySpace) StateKey(credential string) string {
	return k.Prefix + ":" + CredentialDigest(credential) + ":billing_enabled"
}

// ChangesCounterKey returns <prefix>:billing_enabled_changes
func (k KeySpace) ChangesCounterKey() string {
	return k.Prefix + ":billing_enabled_changes"
}

// LeaseKey returns the lease key scoped to a credential.
// The hash is stable across processes so every worker contends on the same key.
func (k KeySpace) LeaseKey(credential string) string {
	sum := blake3.Sum256([]byte(credential))
	return k.Prefix + ":lease:" + leaseNamespace + ":" + hex.EncodeToString(sum[:16])
}

// CredentialDigest is the hex SHA-1 of the credential used for state keys
func CredentialDigest(credential string) string {
	sum := sha1.Sum([]byte(credential)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}
