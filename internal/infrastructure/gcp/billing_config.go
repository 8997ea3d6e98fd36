package gcp

import (
	"errors"
	"time"
)

// Config errors
var (
	ErrConfigMissingResourceManagerURL = errors.New("gcp: resource manager URL is required")
	ErrConfigMissingBillingURL         = errors.New("gcp: billing URL is required")
)

// BillingConfig holds endpoints and limits of the billing checker
type BillingConfig struct {
	ResourceManagerURL string
	BillingURL         string
	MaxConcurrency     int
	RequestTimeout     time.Duration
}

// DefaultBillingConfig returns the public Google API endpoints
func DefaultBillingConfig() *BillingConfig {
	return &BillingConfig{
		ResourceManagerURL: "https://cloudresourcemanager.googleapis.com",
		BillingURL:         "https://cloudbilling.googleapis.com",
		MaxConcurrency:     8,
		RequestTimeout:     30 * time.Second,
	}
}

// Validate checks required fields and fills limits left at zero
func (c *BillingConfig) Validate() error {
	if c.ResourceManagerURL == "" {
		return ErrConfigMissingResourceManagerURL
	}
	if c.BillingURL == "" {
		return ErrConfigMissingBillingURL
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 8
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	return nil
}
