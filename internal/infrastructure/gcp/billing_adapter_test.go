package gcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeGoogleAPI serves both the resource manager and billing endpoints
type fakeGoogleAPI struct {
	pages          []ListProjectsResponse
	billingEnabled map[string]bool
	billingStatus  map[string]int
	token          string
	requests       atomic.Int32
}

func (f *fakeGoogleAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.requests.Add(1)

	if r.Header.Get("Authorization") != "Bearer "+f.token {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":401,"message":"Request had invalid authentication credentials.","status":"UNAUTHENTICATED"}}`))
		return
	}

	switch {
	case r.URL.Path == "/v1/projects":
		page := 0
		if token := r.URL.Query().Get("pageToken"); token != "" {
			page = int(token[0] - '0')
		}
		_ = json.NewEncoder(w).Encode(f.pages[page])

	case strings.HasPrefix(r.URL.Path, "/v1/projects/") && strings.HasSuffix(r.URL.Path, "/billingInfo"):
		projectID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/projects/"), "/billingInfo")
		if status, ok := f.billingStatus[projectID]; ok {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"code":403,"message":"permission denied"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(ProjectBillingInfo{
			Name:           "projects/" + projectID + "/billingInfo",
			ProjectID:      projectID,
			BillingEnabled: f.billingEnabled[projectID],
		})

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestAdapter(t *testing.T, api *fakeGoogleAPI) *BillingAdapter {
	t.Helper()
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	cfg := DefaultBillingConfig()
	cfg.ResourceManagerURL = server.URL
	cfg.BillingURL = server.URL + "/"
	cfg.MaxConcurrency = 2

	adapter, err := NewBillingAdapter(cfg,
		WithAdapterLogger(zaptest.NewLogger(t)),
		WithTransport(server.Client().Transport),
	)
	require.NoError(t, err)
	return adapter
}

func TestBillingConfig_Validate(t *testing.T) {
	t.Run("default config is valid", func(t *testing.T) {
		assert.NoError(t, DefaultBillingConfig().Validate())
	})

	t.Run("missing resource manager url", func(t *testing.T) {
		cfg := DefaultBillingConfig()
		cfg.ResourceManagerURL = ""
		assert.ErrorIs(t, cfg.Validate(), ErrConfigMissingResourceManagerURL)
	})

	t.Run("missing billing url", func(t *testing.T) {
		cfg := DefaultBillingConfig()
		cfg.BillingURL = ""
		assert.ErrorIs(t, cfg.Validate(), ErrConfigMissingBillingURL)
	})

	t.Run("fills zero limits", func(t *testing.T) {
		cfg := &BillingConfig{ResourceManagerURL: "http://a", BillingURL: "http://b"}
		require.NoError(t, cfg.Validate())
		assert.Equal(t, 8, cfg.MaxConcurrency)
		assert.NotZero(t, cfg.RequestTimeout)
	})
}

func TestBillingAdapter_Execute(t *testing.T) {
	t.Run("returns projects with billing enabled across pages", func(t *testing.T) {
		api := &fakeGoogleAPI{
			token: "tok-A",
			pages: []ListProjectsResponse{
				{
					Projects: []Project{
						{ProjectID: "proj-1", LifecycleState: "ACTIVE"},
						{ProjectID: "proj-2", LifecycleState: "ACTIVE"},
					},
					NextPageToken: "1",
				},
				{
					Projects: []Project{
						{ProjectID: "proj-3", LifecycleState: "ACTIVE"},
						{ProjectID: "proj-old", LifecycleState: "DELETE_REQUESTED"},
					},
				},
			},
			billingEnabled: map[string]bool{"proj-1": true, "proj-3": true, "proj-old": true},
		}
		adapter := newTestAdapter(t, api)

		projects, err := adapter.Execute(context.Background(), "tok-A")
		require.NoError(t, err)
		assert.Equal(t, []string{"proj-1", "proj-3"}, projects)
	})

	t.Run("returns empty set when nothing is billed", func(t *testing.T) {
		api := &fakeGoogleAPI{
			token: "tok-B",
			pages: []ListProjectsResponse{{Projects: []Project{{ProjectID: "proj-1"}}}},
		}
		adapter := newTestAdapter(t, api)

		projects, err := adapter.Execute(context.Background(), "tok-B")
		require.NoError(t, err)
		assert.Empty(t, projects)
	})

	t.Run("no projects", func(t *testing.T) {
		api := &fakeGoogleAPI{token: "tok-C", pages: []ListProjectsResponse{{}}}
		adapter := newTestAdapter(t, api)

		projects, err := adapter.Execute(context.Background(), "tok-C")
		require.NoError(t, err)
		assert.Empty(t, projects)
		assert.Equal(t, int32(1), api.requests.Load())
	})

	t.Run("invalid credential fails with api error", func(t *testing.T) {
		api := &fakeGoogleAPI{token: "good", pages: []ListProjectsResponse{{}}}
		adapter := newTestAdapter(t, api)

		_, err := adapter.Execute(context.Background(), "bad")
		require.Error(t, err)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		assert.Contains(t, apiErr.Message, "invalid authentication credentials")
	})

	t.Run("repeated page token stops the listing", func(t *testing.T) {
		api := &fakeGoogleAPI{
			token: "tok-E",
			pages: []ListProjectsResponse{
				{Projects: []Project{{ProjectID: "proj-1"}}, NextPageToken: "0"},
			},
		}
		adapter := newTestAdapter(t, api)

		projects, err := adapter.Execute(context.Background(), "tok-E")
		assert.Nil(t, projects)
		require.ErrorIs(t, err, ErrRepeatedPageToken)
		assert.Equal(t, int32(2), api.requests.Load())
	})

	t.Run("billing info failure fails the check", func(t *testing.T) {
		api := &fakeGoogleAPI{
			token: "tok-D",
			pages: []ListProjectsResponse{{Projects: []Project{
				{ProjectID: "proj-1"},
				{ProjectID: "proj-denied"},
			}}},
			billingEnabled: map[string]bool{"proj-1": true},
			billingStatus:  map[string]int{"proj-denied": http.StatusForbidden},
		}
		adapter := newTestAdapter(t, api)

		projects, err := adapter.Execute(context.Background(), "tok-D")
		assert.Nil(t, projects)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	})
}

func TestAPIError_Error(t *testing.T) {
	err := &APIError{StatusCode: 500, Endpoint: "/v1/projects"}
	assert.Equal(t, "gcp: /v1/projects returned HTTP 500", err.Error())

	err.Message = "backend error"
	assert.Equal(t, "gcp: /v1/projects returned HTTP 500: backend error", err.Error())
}
