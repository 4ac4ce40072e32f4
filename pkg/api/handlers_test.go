package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proverops/buildboard/pkg/api/store"
)

const actionConfig2023 = "jobs:\n  build:\n    steps:\n" +
	"      - uses: proverops/isabelle-theory-build-github-action@v3\n" +
	"        with:\n          isabelle-version: \"2023\"\n"

const actionConfig2024 = "jobs:\n  build:\n    steps:\n" +
	"      - uses: proverops/isabelle-theory-build-github-action@v3\n" +
	"        with:\n          isabelle-version: \"2024\"\n"

func seedBuild(
	t *testing.T, s *server, reponame, datetime string, result int, cfg string,
) {
	t.Helper()

	require.NoError(t, s.store.InsertBuild(context.Background(), &store.Build{
		Reponame: reponame,
		Datetime: datetime,
		Result:   result,
		Config:   cfg,
	}))
}

func get(handler http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	return rec
}

func TestHandleHealth(t *testing.T) {
	_, handler := newTestServer(t, testConfig())

	rec := get(handler, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestHandleLatest(t *testing.T) {
	s, handler := newTestServer(t, testConfig())

	seedBuild(t, s, "alice/proj", "2024-01-01T00:00:00", 1, actionConfig2023)
	seedBuild(t, s, "alice/proj", "2024-01-02T00:00:00", 0, actionConfig2023)
	seedBuild(t, s, "bob/tool", "2024-01-03T00:00:00", 1, actionConfig2024)

	rec := get(handler, "/")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "Latest builds")
	assert.Contains(t, body, "alice/proj")
	assert.Contains(t, body, "bob/tool")
	// Only the latest alice/proj build is shown.
	assert.Contains(t, body, "2024-01-02T00:00:00")
	assert.NotContains(t, body, "2024-01-01T00:00:00")
	assert.Contains(t, body, "Failure")
}

func TestHandleByVersion(t *testing.T) {
	s, handler := newTestServer(t, testConfig())

	seedBuild(t, s, "alice/proj", "2024-01-01T00:00:00", 0, actionConfig2023)
	seedBuild(t, s, "bob/tool", "2024-01-02T00:00:00", 0, actionConfig2024)

	rec := get(handler, "/by_version/2023")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "Latest builds for Isabelle 2023")
	assert.Contains(t, body, "alice/proj")
	assert.NotContains(t, body, "bob/tool")
}

func TestHandleUser(t *testing.T) {
	s, handler := newTestServer(t, testConfig())

	seedBuild(t, s, "alice/proj", "2024-01-01T00:00:00", 0, actionConfig2023)
	seedBuild(t, s, "alice/tool", "2024-01-02T00:00:00", 0, actionConfig2024)
	seedBuild(t, s, "bob/tool", "2024-01-03T00:00:00", 0, actionConfig2023)

	rec := get(handler, "/user/alice")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "Latest builds for alice")
	assert.Contains(t, body, "alice/proj")
	assert.Contains(t, body, "alice/tool")
	assert.NotContains(t, body, "bob/tool")
}

func TestHandleUserAndVersion(t *testing.T) {
	s, handler := newTestServer(t, testConfig())

	seedBuild(t, s, "alice/proj", "2024-01-01T00:00:00", 0, actionConfig2023)
	seedBuild(t, s, "alice/tool", "2024-01-02T00:00:00", 0, actionConfig2024)
	seedBuild(t, s, "bob/tool", "2024-01-03T00:00:00", 0, actionConfig2023)

	rec := get(handler, "/by_user_and_version/alice/2023")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "Latest builds for alice on Isabelle 2023")
	assert.Contains(t, body, "alice/proj")
	assert.NotContains(t, body, "alice/tool")
	assert.NotContains(t, body, "bob/tool")
}

func TestHandleRepoHistory(t *testing.T) {
	s, handler := newTestServer(t, testConfig())

	seedBuild(t, s, "alice/proj", "2024-01-01T00:00:00", 1, actionConfig2023)
	seedBuild(t, s, "alice/proj", "2024-01-02T00:00:00", 0, actionConfig2023)

	rec := get(handler, "/repo/alice/proj")
	require.Equal(t, http.StatusOK, rec.Code)

	// History shows every build, not just the latest.
	body := rec.Body.String()
	assert.Contains(t, body, "Build history for alice/proj")
	assert.Contains(t, body, "2024-01-01T00:00:00")
	assert.Contains(t, body, "2024-01-02T00:00:00")

	// A repository without builds renders an empty page, not an error.
	rec = get(handler, "/repo/nobody/nothing")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No builds recorded")
}

func TestReadEndpointsRequireToken(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.AnonymousRead = false
	cfg.Auth.ReadToken = "read-me"

	_, handler := newTestServer(t, cfg)

	// Without a token.
	rec := get(handler, "/")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// With a wrong token.
	req := httptest.NewRequest(http.MethodGet, "/raw_recent_data", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// With the configured token.
	req = httptest.NewRequest(http.MethodGet, "/raw_recent_data", nil)
	req.Header.Set("Authorization", "Bearer read-me")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health stays public.
	rec = get(handler, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	// Submissions use their own authentication and stay open.
	payload := `{"reponame":"a/b","datetime":"2024","result":0,"config":""}`
	subRec := signedSubmit(handler, testSecret, payload)
	assert.Equal(t, http.StatusOK, subRec.Code)
}

func TestUsernameOf(t *testing.T) {
	tests := []struct {
		reponame string
		want     string
	}{
		{reponame: "alice/proj", want: "alice"},
		{reponame: "alice/nested/proj", want: "alice"},
		{reponame: "no-separator", want: ""},
		{reponame: "", want: ""},
		{reponame: "/leading", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.reponame, func(t *testing.T) {
			assert.Equal(t, tt.want, usernameOf(tt.reponame))
		})
	}
}

func TestResultText(t *testing.T) {
	assert.Equal(t, "Success", resultText(0))
	assert.Equal(t, "Failure", resultText(1))
	assert.Equal(t, "Unknown", resultText(42))
	assert.Equal(t, "Unknown", resultText(-1))
}
