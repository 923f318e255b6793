package api

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"codeshare/internal/models"

	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/health", "", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health HealthResponse
	decode(t, resp, &health)
	require.Equal(t, "ok", health.Status)
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")

	resp := env.doJSON(t, http.MethodPost, "/api/register", "", RegisterRequest{
		Username: "alice", Email: "other@example.com", Password: "password123",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = env.doJSON(t, http.MethodPost, "/api/register", "", RegisterRequest{
		Username: "bob", Email: "bob@example.com", Password: "short",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.doJSON(t, http.MethodPost, "/api/login", "", LoginRequest{Email: "alice@example.com", Password: "password123"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var auth AuthResponse
	decode(t, resp, &auth)
	require.Equal(t, "alice", auth.User.Username)
	require.Equal(t, models.RoleUser, auth.User.Role)

	resp = env.doJSON(t, http.MethodPost, "/api/login", "", LoginRequest{Email: "alice@example.com", Password: "nope-nope"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var errResp ErrorResponse
	decode(t, resp, &errResp)
	require.Equal(t, "invalid email or password", errResp.Error)

	resp = env.do(t, http.MethodPost, "/api/login", "", strings.NewReader("{"), "application/json")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "alice")

	resp := env.do(t, http.MethodGet, "/api/me", "", nil, "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/me", "not-a-jwt", nil, "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/me", token, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me UserResponse
	decode(t, resp, &me)
	require.Equal(t, "alice", me.Username)
}

func TestFileShareFlow(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "alice")
	data := []byte("quarterly numbers")

	resp := env.upload(t, token, "report.txt", data)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created ShareResponse
	decode(t, resp, &created)
	require.Len(t, created.ShareCode, 8)
	require.Equal(t, models.KindFile, created.Type)
	require.Equal(t, "report.txt", created.FileName)
	require.Equal(t, int64(len(data)), created.FileSize)

	resp = env.do(t, http.MethodGet, "/api/share/"+created.ShareCode+"/info", "", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var info ShareResponse
	decode(t, resp, &info)
	require.Zero(t, info.Downloads, "info does not count as a download")

	resp = env.do(t, http.MethodGet, "/api/share/"+created.ShareCode, "", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/octet-stream", resp.Header.Get("Content-Type"))
	require.Equal(t, `attachment; filename=report.txt`, resp.Header.Get("Content-Disposition"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, data, body)

	resp = env.do(t, http.MethodGet, "/api/share/"+created.ShareCode+"/info", "", nil, "")
	decode(t, resp, &info)
	require.Equal(t, int64(1), info.Downloads)
}

func TestUploadRejects(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "alice")

	resp := env.upload(t, "", "a.txt", []byte("x"))
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.upload(t, token, "run.exe", []byte("MZ"))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.upload(t, token, "big.txt", make([]byte, 2048))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/upload", token, strings.NewReader("plain"), "text/plain")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTextShareFlow(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "alice")

	resp := env.doJSON(t, http.MethodPost, "/api/text", token, CreateTextRequest{Content: "hello, world"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created ShareResponse
	decode(t, resp, &created)
	require.Equal(t, models.KindText, created.Type)
	require.Equal(t, int64(len("hello, world")), created.FileSize)

	resp = env.do(t, http.MethodGet, "/api/share/"+created.ShareCode+"/info", "", nil, "")
	var info ShareResponse
	decode(t, resp, &info)
	require.Nil(t, info.TextContent)

	resp = env.do(t, http.MethodGet, "/api/share/"+created.ShareCode, "", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fetched ShareResponse
	decode(t, resp, &fetched)
	require.NotNil(t, fetched.TextContent)
	require.Equal(t, "hello, world", *fetched.TextContent)
	require.Equal(t, int64(1), fetched.Downloads)

	resp = env.doJSON(t, http.MethodPost, "/api/text", token, CreateTextRequest{Content: "   "})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.doJSON(t, http.MethodPost, "/api/text", token, CreateTextRequest{Content: strings.Repeat("a", 257)})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUnknownAndMalformedCodes(t *testing.T) {
	env := newTestEnv(t)

	for _, code := range []string{"abcdefgh", "short", "waytoolongcode", "abc-defg"} {
		resp := env.do(t, http.MethodGet, "/api/share/"+code, "", nil, "")
		require.Equal(t, http.StatusNotFound, resp.StatusCode, code)

		resp = env.do(t, http.MethodGet, "/api/share/"+code+"/info", "", nil, "")
		require.Equal(t, http.StatusNotFound, resp.StatusCode, code)
	}
}

func TestListMyShares(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")

	env.doJSON(t, http.MethodPost, "/api/text", alice, CreateTextRequest{Content: "first"})
	env.doJSON(t, http.MethodPost, "/api/text", alice, CreateTextRequest{Content: "second"})
	env.doJSON(t, http.MethodPost, "/api/text", bob, CreateTextRequest{Content: "bob's"})

	resp := env.do(t, http.MethodGet, "/api/shares", alice, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var shares []ShareResponse
	decode(t, resp, &shares)
	require.Len(t, shares, 2)
	require.Equal(t, "second", *shares[0].TextContent, "newest first")
	require.Equal(t, "first", *shares[1].TextContent)
}

func TestDeleteShare(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	root := env.admin(t, "root")

	newShare := func() string {
		resp := env.upload(t, alice, "notes.txt", []byte("notes"))
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var created ShareResponse
		decode(t, resp, &created)
		return created.ShareCode
	}

	code := newShare()
	resp := env.do(t, http.MethodDelete, "/api/share/"+code, "", nil, "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/api/share/"+code, bob, nil, "")
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/api/share/"+code, alice, nil, "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/api/share/"+code, alice, nil, "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/share/"+code, "", nil, "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	code = newShare()
	resp = env.do(t, http.MethodDelete, "/api/share/"+code, root, nil, "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode, "admins delete any share")
}

func TestAdminEndpoints(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	root := env.admin(t, "root")

	env.upload(t, alice, "a.txt", []byte("12345"))
	env.doJSON(t, http.MethodPost, "/api/text", alice, CreateTextRequest{Content: "abc"})

	for _, path := range []string{"/api/admin/stats", "/api/admin/shares", "/api/admin/users"} {
		resp := env.do(t, http.MethodGet, path, alice, nil, "")
		require.Equal(t, http.StatusForbidden, resp.StatusCode, path)

		resp = env.do(t, http.MethodGet, path, "", nil, "")
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}

	resp := env.do(t, http.MethodGet, "/api/admin/stats", root, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats models.Stats
	decode(t, resp, &stats)
	require.Equal(t, models.Stats{Users: 2, TotalShares: 2, FileShares: 1, TextShares: 1, TotalFileBytes: 5}, stats)

	resp = env.do(t, http.MethodGet, "/api/admin/shares", root, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var shares []AdminShareResponse
	decode(t, resp, &shares)
	require.Len(t, shares, 2)
	for _, s := range shares {
		require.Equal(t, "alice", s.Username)
		require.Nil(t, s.TextContent)
	}

	resp = env.do(t, http.MethodGet, "/api/admin/users", root, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var users []UserResponse
	decode(t, resp, &users)
	require.Len(t, users, 2)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/health", "", nil, "")

	resp := env.do(t, http.MethodGet, "/metrics", "", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "codeshare_http_requests_total")
	require.Contains(t, string(body), `route="/health"`)
}

func TestWebsocketRequiresToken(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/ws", "", nil, "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/ws?token=garbage", "", nil, "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
