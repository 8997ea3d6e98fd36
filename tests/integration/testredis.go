// Package integration runs the billing check against a real Redis started
// with testcontainers.
package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/billingwatch/backend/internal/infrastructure/cache"
	"github.com/billingwatch/backend/internal/infrastructure/gcp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	// Shared container for all tests in the package
	sharedRedis     testcontainers.Container
	sharedRedisAddr string
	sharedRedisMu   sync.Mutex
)

// TestRedis is a Redis connection scoped to one test
type TestRedis struct {
	Client *redis.Client
	Store  *cache.RedisSharedStore
	Prefix string
}

// NewTestRedis returns a client against the package's Redis container.
// Each test gets its own key prefix; its keys are deleted on cleanup.
func NewTestRedis(t *testing.T) *TestRedis {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	client := redis.NewClient(&redis.Options{Addr: redisAddr(t)})
	require.NoError(t, client.Ping(t.Context()).Err(), "Redis container not reachable")

	prefix := "it:" + strings.ReplaceAll(t.Name(), "/", ":")

	t.Cleanup(func() {
		ctx := context.Background()
		iter := client.Scan(ctx, 0, prefix+":*", 100).Iterator()
		for iter.Next(ctx) {
			_ = client.Del(ctx, iter.Val()).Err()
		}
		_ = client.Close()
	})

	return &TestRedis{
		Client: client,
		Store:  cache.NewRedisSharedStoreWithClient(client),
		Prefix: prefix,
	}
}

func redisAddr(t *testing.T) string {
	t.Helper()

	sharedRedisMu.Lock()
	defer sharedRedisMu.Unlock()

	if sharedRedis != nil {
		return sharedRedisAddr
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start Redis container")

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err, "Failed to get Redis endpoint")

	sharedRedis = container
	sharedRedisAddr = endpoint
	return endpoint
}

// FakeGoogleAPI serves the two Google endpoints the billing adapter calls.
// Each token maps to the projects it can see and their billing flag.
type FakeGoogleAPI struct {
	Server *httptest.Server

	mu       sync.Mutex
	projects map[string]map[string]bool // token -> projectID -> billing enabled
	delay    time.Duration
	requests atomic.Int64
}

// NewFakeGoogleAPI starts a fake Google API server
func NewFakeGoogleAPI(t *testing.T) *FakeGoogleAPI {
	t.Helper()

	f := &FakeGoogleAPI{projects: make(map[string]map[string]bool)}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

// SetProjects replaces the projects visible to token
func (f *FakeGoogleAPI) SetProjects(token string, projects map[string]bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects[token] = projects
}

// SetDelay slows every response down
func (f *FakeGoogleAPI) SetDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

// ProjectListRequests returns how many project list pages were served
func (f *FakeGoogleAPI) ProjectListRequests() int64 {
	return f.requests.Load()
}

// Transport returns the round tripper of the fake server's client
func (f *FakeGoogleAPI) Transport() http.RoundTripper {
	return f.Server.Client().Transport
}

// Config returns an adapter configuration pointing at the fake
func (f *FakeGoogleAPI) Config() *gcp.BillingConfig {
	return &gcp.BillingConfig{
		ResourceManagerURL: f.Server.URL,
		BillingURL:         f.Server.URL,
		MaxConcurrency:     4,
		RequestTimeout:     5 * time.Second,
	}
}

func (f *FakeGoogleAPI) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	delay := f.delay
	projects, ok := f.projects[strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")]
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":401,"message":"Request had invalid authentication credentials.","status":"UNAUTHENTICATED"}}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.URL.Path == "/v1/projects":
		f.requests.Add(1)
		page := gcp.ListProjectsResponse{}
		for id := range projects {
			page.Projects = append(page.Projects, gcp.Project{ProjectID: id, LifecycleState: "ACTIVE"})
		}
		_ = json.NewEncoder(w).Encode(page)
	case strings.HasPrefix(r.URL.Path, "/v1/projects/") && strings.HasSuffix(r.URL.Path, "/billingInfo"):
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/projects/"), "/billingInfo")
		_ = json.NewEncoder(w).Encode(gcp.ProjectBillingInfo{
			Name:           "projects/" + id + "/billingInfo",
			ProjectID:      id,
			BillingEnabled: projects[id],
		})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}
