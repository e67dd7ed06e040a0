package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagetrail/pagetrail/internal/adapter"
	"github.com/pagetrail/pagetrail/internal/api/middleware"
	"github.com/pagetrail/pagetrail/internal/domain"
	"github.com/pagetrail/pagetrail/internal/history"
	"github.com/pagetrail/pagetrail/internal/logger"
	"github.com/pagetrail/pagetrail/internal/pages"
	"github.com/pagetrail/pagetrail/internal/store"
)

const testAPIKey = "test-api-key"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := logger.Initialize(logger.Config{Debug: true}); err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

type apiFixture struct {
	router   *gin.Engine
	repo     *pages.MemoryRepository
	store    store.Store
	recorder *history.Recorder
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	clock := adapter.NewClock()
	s := store.NewMemoryStore()
	repo := pages.NewMemoryRepository(clock)
	segments := history.NewRootSegmentIndex(s, clock)
	require.NoError(t, segments.Load(context.Background()))
	patterns := history.MustPatterns()

	recorder := history.NewRecorder(s, repo, segments, patterns, clock, 0)
	recorder.AttachHooks(repo.Hooks())

	router := gin.New()
	handler := NewHandler(
		history.NewResolver(s, repo, segments, 0),
		history.NewVirtualResolver(s, repo, patterns),
		recorder,
		repo,
		segments,
	)
	SetupRoutes(router, handler, middleware.AuthConfig{APIKeys: []string{testAPIKey}})

	return &apiFixture{router: router, repo: repo, store: s, recorder: recorder}
}

// addPage inserts a page old enough to pass the recorder's minimum-age guard
func (f *apiFixture) addPage(parentID int64, name string) *domain.Page {
	return f.repo.Add(domain.Page{
		ParentID:  parentID,
		Names:     map[domain.LanguageID]string{domain.DefaultLanguage: name},
		CreatedAt: time.Now().Add(-time.Hour),
	})
}

func (f *apiFixture) request(t *testing.T, method, target string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, req)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	return body
}

func TestHealthCheck(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.request(t, http.MethodGet, "/health", nil, nil)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "ok", decodeBody(t, resp)["status"])
}

func TestResolvePath(t *testing.T) {
	f := newAPIFixture(t)
	parent := f.addPage(0, "docs")
	page := f.addPage(parent.ID, "setup")
	require.NoError(t, f.repo.Move(context.Background(), page.ID, 0))

	t.Run("resolves a moved page", func(t *testing.T) {
		resp := f.request(t, http.MethodGet, "/v1/resolve?path=/docs/setup", nil, nil)

		require.Equal(t, http.StatusOK, resp.Code)
		body := decodeBody(t, resp)
		assert.Equal(t, float64(page.ID), body["page_id"])
		assert.Equal(t, "/setup", body["path"])
		assert.Equal(t, "exact", body["match"])
	})

	t.Run("unknown path is not found", func(t *testing.T) {
		resp := f.request(t, http.MethodGet, "/v1/resolve?path=/nowhere/at/all", nil, nil)

		assert.Equal(t, http.StatusNotFound, resp.Code)
	})

	t.Run("missing path parameter is rejected", func(t *testing.T) {
		resp := f.request(t, http.MethodGet, "/v1/resolve", nil, nil)

		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})
}

func TestResolvePathPartialMatch(t *testing.T) {
	f := newAPIFixture(t)
	page := f.repo.Add(domain.Page{
		Names:     map[domain.LanguageID]string{domain.DefaultLanguage: "blog"},
		Template:  domain.Template{AllowURLSegments: true},
		CreatedAt: time.Now().Add(-time.Hour),
	})
	require.NoError(t, f.repo.Rename(context.Background(), page.ID, domain.DefaultLanguage, "news"))

	resp := f.request(t, http.MethodGet, "/v1/resolve?path=/blog/2024/05/hello", nil, nil)

	require.Equal(t, http.StatusOK, resp.Code)
	body := decodeBody(t, resp)
	assert.Equal(t, float64(page.ID), body["page_id"])
	assert.Equal(t, "partial", body["match"])
	assert.Equal(t, "/2024/05/hello", body["segments"])
}

func TestGetPageHistory(t *testing.T) {
	f := newAPIFixture(t)
	page := f.addPage(0, "guide")
	require.NoError(t, f.repo.Rename(context.Background(), page.ID, domain.DefaultLanguage, "manual"))

	t.Run("returns paths by default", func(t *testing.T) {
		resp := f.request(t, http.MethodGet, fmt.Sprintf("/v1/pages/%d/history", page.ID), nil, nil)

		require.Equal(t, http.StatusOK, resp.Code)
		body := decodeBody(t, resp)
		assert.Equal(t, []any{"/guide"}, body["paths"])
	})

	t.Run("verbose returns full records", func(t *testing.T) {
		resp := f.request(t, http.MethodGet, fmt.Sprintf("/v1/pages/%d/history?verbose=true", page.ID), nil, nil)

		require.Equal(t, http.StatusOK, resp.Code)
		body := decodeBody(t, resp)
		records, ok := body["records"].([]any)
		require.True(t, ok)
		require.Len(t, records, 1)
		record, ok := records[0].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "/guide", record["path"])
		assert.Equal(t, false, record["virtual"])
	})

	t.Run("unknown page is not found", func(t *testing.T) {
		resp := f.request(t, http.MethodGet, "/v1/pages/9999/history", nil, nil)

		assert.Equal(t, http.StatusNotFound, resp.Code)
	})

	t.Run("invalid language is rejected", func(t *testing.T) {
		resp := f.request(t, http.MethodGet, fmt.Sprintf("/v1/pages/%d/history?language=abc", page.ID), nil, nil)

		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})
}

func TestAddPageHistory(t *testing.T) {
	f := newAPIFixture(t)
	page := f.addPage(0, "about")

	t.Run("adds an entry", func(t *testing.T) {
		resp := f.request(t, http.MethodPost, fmt.Sprintf("/v1/pages/%d/history", page.ID),
			map[string]any{"path": "/about-us"}, nil)

		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, true, decodeBody(t, resp)["added"])
	})

	t.Run("duplicate entry reports added false", func(t *testing.T) {
		resp := f.request(t, http.MethodPost, fmt.Sprintf("/v1/pages/%d/history", page.ID),
			map[string]any{"path": "/about-us"}, nil)

		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, false, decodeBody(t, resp)["added"])
	})

	t.Run("rejects another page's live path", func(t *testing.T) {
		other := f.addPage(0, "contact")
		resp := f.request(t, http.MethodPost, fmt.Sprintf("/v1/pages/%d/history", page.ID),
			map[string]any{"path": "/contact"}, nil)

		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, false, decodeBody(t, resp)["added"])
		_ = other
	})

	t.Run("missing path is rejected", func(t *testing.T) {
		resp := f.request(t, http.MethodPost, fmt.Sprintf("/v1/pages/%d/history", page.ID),
			map[string]any{}, nil)

		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})
}

func TestDeletePageHistory(t *testing.T) {
	f := newAPIFixture(t)
	page := f.addPage(0, "team")
	ctx := context.Background()

	added, err := f.recorder.AddPathHistory(ctx, page, "/staff", domain.DefaultLanguage)
	require.NoError(t, err)
	require.True(t, added)
	added, err = f.recorder.AddPathHistory(ctx, page, "/people", domain.DefaultLanguage)
	require.NoError(t, err)
	require.True(t, added)

	t.Run("deletes a single entry", func(t *testing.T) {
		resp := f.request(t, http.MethodDelete, fmt.Sprintf("/v1/pages/%d/history?path=/staff", page.ID), nil, nil)

		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, float64(1), decodeBody(t, resp)["deleted"])

		entries, err := f.store.ListPathHistoryByPage(ctx, page.ID, nil)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "/people", entries[0].Path)
	})

	t.Run("deletes all entries for the page", func(t *testing.T) {
		resp := f.request(t, http.MethodDelete, fmt.Sprintf("/v1/pages/%d/history", page.ID), nil, nil)

		require.Equal(t, http.StatusOK, resp.Code)

		entries, err := f.store.ListPathHistoryByPage(ctx, page.ID, nil)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestDeleteAllHistory(t *testing.T) {
	f := newAPIFixture(t)
	page := f.addPage(0, "projects")
	ctx := context.Background()

	added, err := f.recorder.AddPathHistory(ctx, page, "/work", domain.DefaultLanguage)
	require.NoError(t, err)
	require.True(t, added)

	t.Run("requires authentication", func(t *testing.T) {
		resp := f.request(t, http.MethodDelete, "/v1/history", nil, nil)

		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("deletes everything with an API key", func(t *testing.T) {
		resp := f.request(t, http.MethodDelete, "/v1/history", nil,
			map[string]string{"Authorization": "ApiKey " + testAPIKey})

		require.Equal(t, http.StatusOK, resp.Code)

		entries, err := f.store.ListPathHistoryByPage(ctx, page.ID, nil)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestRebuildSegments(t *testing.T) {
	f := newAPIFixture(t)
	page := f.addPage(0, "shop")
	ctx := context.Background()

	added, err := f.recorder.AddPathHistory(ctx, page, "/store/front", domain.DefaultLanguage)
	require.NoError(t, err)
	require.True(t, added)

	t.Run("requires authentication", func(t *testing.T) {
		resp := f.request(t, http.MethodPost, "/v1/history/segments/rebuild", nil, nil)

		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("returns the rebuilt segment list", func(t *testing.T) {
		resp := f.request(t, http.MethodPost, "/v1/history/segments/rebuild", nil,
			map[string]string{"Authorization": "ApiKey " + testAPIKey})

		require.Equal(t, http.StatusOK, resp.Code)
		body := decodeBody(t, resp)
		assert.Equal(t, []any{"store"}, body["segments"])
	})
}
