package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniedit/mediagen/internal/infra/config"
)

func newFakeOpenAI(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images/generations" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"created": 1, "data": [{"url": "https://cdn.example.com/cat.png"}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(openAIURL string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Mode: "test", Address: "127.0.0.1:0"},
		Log:    config.LogConfig{Level: "error"},
		Auth:   config.AuthConfig{AnonymousOwner: "local"},
		Store:  config.StoreConfig{Driver: StoreMemory},
		Providers: map[string]config.ProviderConfig{
			"openai": {BaseURL: openAIURL, APIKey: "sk-test"},
			"luma":   {}, // no key, not registered
		},
		Recovery: config.RecoveryConfig{
			Templates: []config.TemplateConfig{
				{Name: "cdn", Template: "https://cdn.example.com/{task_id}.{ext}", MediaTypes: []string{"Video"}},
				{Name: "empty"},
			},
		},
		Gallery: config.GalleryConfig{Enabled: true},
	}
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	a, err := New(testConfig(newFakeOpenAI(t).URL), "")
	require.NoError(t, err)
	t.Cleanup(a.Stop)
	return a
}

func serve(a *App, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, req)
	return w
}

func TestApp_GenerateImageEndToEnd(t *testing.T) {
	a := newTestApp(t)

	w := serve(a, http.MethodPost, "/api/v1/media/tasks", map[string]any{
		"prompt":     "a cat",
		"media_type": "image",
		"model":      "dall-e-3",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var task struct {
		ID       string `json:"id"`
		Status   string `json:"status"`
		MediaURL string `json:"media_url"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &task))
	assert.Equal(t, "completed", task.Status)
	assert.Equal(t, "https://cdn.example.com/cat.png", task.MediaURL)

	w = serve(a, http.MethodGet, "/api/v1/media/tasks/"+task.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Eventually(t, func() bool {
		w := serve(a, http.MethodGet, "/api/v1/media/gallery", nil)
		return w.Code == http.StatusOK && bytes.Contains(w.Body.Bytes(), []byte(task.ID))
	}, time.Second, 10*time.Millisecond)
}

func TestApp_UnknownModel(t *testing.T) {
	a := newTestApp(t)

	w := serve(a, http.MethodPost, "/api/v1/media/tasks", map[string]any{
		"prompt":     "a cat walking",
		"media_type": "video",
		"model":      "ray-2",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown_model")
}

func TestApp_OperationalRoutes(t *testing.T) {
	a := newTestApp(t)

	w := serve(a, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w = serve(a, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "mediagen_http_requests_total")

	w = serve(a, http.MethodGet, "/api/v1/media/providers", nil)
	assert.Contains(t, w.Body.String(), `"name":"openai"`)
	assert.NotContains(t, w.Body.String(), `"name":"luma"`)
}

func TestApp_HealthReportsDependencies(t *testing.T) {
	a := newTestApp(t)
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	a.deps.Redis = client

	w := serve(a, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "service_unavailable", body.Error.Code)
	assert.Contains(t, body.Error.Details, "redis")
}

func TestTemplateCandidates(t *testing.T) {
	candidates := TemplateCandidates(testConfig("").Recovery.Templates)

	require.Len(t, candidates, 1)
	assert.Equal(t, "cdn", candidates[0].Name)
	assert.Equal(t, "video", string(candidates[0].MediaTypes[0]))
}

func TestProvideTaskStore_UnknownDriver(t *testing.T) {
	cfg := testConfig("")
	cfg.Store.Driver = "cassandra"

	_, err := ProvideTaskStore(cfg, nil, nil)
	assert.Error(t, err)
}

func TestProvideRedisClient_RequiredForRedisStore(t *testing.T) {
	cfg := testConfig("")
	cfg.Store.Driver = StoreRedis

	_, _, err := ProvideRedisClient(cfg, nil)
	assert.Error(t, err)
}
