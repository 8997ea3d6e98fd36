// Package gcp checks which Google Cloud projects reachable with an access token
// have billing enabled.
package gcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/billingwatch/backend/internal/domain/billingcheck"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

// maxResponseSize limits the response body size to prevent memory exhaustion
const maxResponseSize = 10 * 1024 * 1024

// maxProjectPages bounds one project listing
const maxProjectPages = 1000

var (
	// ErrRepeatedPageToken is returned when the project listing hands back a page token it already gave
	ErrRepeatedPageToken = errors.New("gcp: project listing repeated a page token")
	// ErrTooManyPages is returned when the project listing exceeds maxProjectPages
	ErrTooManyPages = errors.New("gcp: project listing exceeded page limit")
)

// BillingAdapter implements billingcheck.BillingChecker against the Cloud
// Resource Manager and Cloud Billing REST APIs.
type BillingAdapter struct {
	config    *BillingConfig
	transport http.RoundTripper
	logger    *zap.Logger
}

// AdapterOption configures a BillingAdapter
type AdapterOption func(*BillingAdapter)

// WithTransport sets the base transport under the bearer-token transport
func WithTransport(rt http.RoundTripper) AdapterOption {
	return func(a *BillingAdapter) {
		a.transport = rt
	}
}

// WithAdapterLogger sets the adapter logger
func WithAdapterLogger(logger *zap.Logger) AdapterOption {
	return func(a *BillingAdapter) {
		a.logger = logger
	}
}

// NewBillingAdapter creates a new billing adapter
func NewBillingAdapter(config *BillingConfig, opts ...AdapterOption) (*BillingAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	a := &BillingAdapter{
		config:    config,
		transport: http.DefaultTransport,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// httpClientFor returns a client that authenticates every request with token
func (a *BillingAdapter) httpClientFor(token string) *http.Client {
	return &http.Client{
		Timeout: a.config.RequestTimeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   a.transport,
		},
	}
}

// Execute returns the IDs of active projects with billing enabled.
// Any API failure fails the whole check.
func (a *BillingAdapter) Execute(ctx context.Context, credential string) ([]string, error) {
	client := a.httpClientFor(credential)

	projects, err := a.listProjects(ctx, client)
	if err != nil {
		return nil, err
	}

	enabled := make([]bool, len(projects))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.config.MaxConcurrency)

	for i, project := range projects {
		g.Go(func() error {
			info, err := a.getBillingInfo(gctx, client, project.ProjectID)
			if err != nil {
				return err
			}
			enabled[i] = info.BillingEnabled
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := make([]string, 0, len(projects))
	for i, project := range projects {
		if enabled[i] {
			result = append(result, project.ProjectID)
		}
	}

	a.logger.Debug("Billing check completed",
		zap.Int("projects", len(projects)),
		zap.Int("billing_enabled", len(result)),
	)

	return result, nil
}

// listProjects pages through every active project visible to the token
func (a *BillingAdapter) listProjects(ctx context.Context, client *http.Client) ([]Project, error) {
	var projects []Project
	pageToken := ""
	seen := make(map[string]struct{})

	for pages := 0; ; pages++ {
		if pages == maxProjectPages {
			return nil, ErrTooManyPages
		}

		query := url.Values{}
		query.Set("filter", "lifecycleState:"+lifecycleStateActive)
		if pageToken != "" {
			query.Set("pageToken", pageToken)
		}
		endpoint := strings.TrimRight(a.config.ResourceManagerURL, "/") + "/v1/projects?" + query.Encode()

		var page ListProjectsResponse
		if err := a.getJSON(ctx, client, endpoint, &page); err != nil {
			return nil, err
		}

		for _, p := range page.Projects {
			if p.LifecycleState == "" || p.LifecycleState == lifecycleStateActive {
				projects = append(projects, p)
			}
		}

		if page.NextPageToken == "" {
			return projects, nil
		}
		if _, ok := seen[page.NextPageToken]; ok {
			return nil, ErrRepeatedPageToken
		}
		seen[page.NextPageToken] = struct{}{}
		pageToken = page.NextPageToken
	}
}

// getBillingInfo fetches billing information of a project
func (a *BillingAdapter) getBillingInfo(ctx context.Context, client *http.Client, projectID string) (*ProjectBillingInfo, error) {
	endpoint := strings.TrimRight(a.config.BillingURL, "/") + "/v1/projects/" + url.PathEscape(projectID) + "/billingInfo"

	var info ProjectBillingInfo
	if err := a.getJSON(ctx, client, endpoint, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// getJSON performs a GET and decodes a JSON body into out
func (a *BillingAdapter) getJSON(ctx context.Context, client *http.Client, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("gcp: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("gcp: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("gcp: failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Endpoint: req.URL.Path}
		var envelope errorEnvelope
		if json.Unmarshal(body, &envelope) == nil {
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("gcp: failed to decode response: %w", err)
	}
	return nil
}

// Ensure BillingAdapter implements billingcheck.BillingChecker
var _ billingcheck.BillingChecker = (*BillingAdapter)(nil)
