package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"codeshare/internal/codegen"
	"codeshare/internal/config"
	"codeshare/internal/memory"
	"codeshare/internal/service"
	"codeshare/internal/storage"
	"codeshare/internal/websocket"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

const testSecret = "api_test_secret_that_is_long_enough_42"

type testEnv struct {
	srv      *httptest.Server
	identity *service.IdentityService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger, _ := test.NewNullLogger()

	cfg := &config.Config{
		Server: config.ServerConfig{RequestTimeout: 30 * time.Second, CORSOrigins: []string{"*"}},
		JWT:    config.JWTConfig{Secret: testSecret, TTL: time.Hour},
		Shares: config.SharesConfig{
			MaxFileBytes:    1024,
			MaxTextBytes:    256,
			MaxCodeAttempts: 5,
		},
	}

	content, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	codes, err := codegen.New(codegen.DefaultLength)
	require.NoError(t, err)

	db := memory.New()
	identity := service.NewIdentityService(db, cfg.JWT.Secret, cfg.JWT.TTL, logger)
	opts := service.ShareOptions{
		MaxFileBytes:      cfg.Shares.MaxFileBytes,
		MaxTextBytes:      cfg.Shares.MaxTextBytes,
		AllowedExtensions: []string{".txt", ".pdf"},
		MaxCodeAttempts:   cfg.Shares.MaxCodeAttempts,
	}

	ctx, cancel := context.WithCancel(context.Background())
	hub := websocket.NewHub(logger, cfg.Server.CORSOrigins)
	go hub.Run(ctx)

	server := NewServer(cfg, Services{
		Identity: identity,
		Shares:   service.NewShareService(db, content, codes, opts, logger),
		Stats:    service.NewStatsService(db, db),
		Health:   db,
	}, hub, logger)

	srv := httptest.NewServer(server.Routes())
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return &testEnv{srv: srv, identity: identity}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, body)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) doJSON(t *testing.T, method, path, token string, payload interface{}) *http.Response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	return e.do(t, method, path, token, body, "application/json")
}

func (e *testEnv) register(t *testing.T, username string) string {
	t.Helper()
	resp := e.doJSON(t, http.MethodPost, "/api/register", "", RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "password123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var auth AuthResponse
	decode(t, resp, &auth)
	return auth.Token
}

func (e *testEnv) admin(t *testing.T, username string) string {
	t.Helper()
	token := e.register(t, username)
	_, err := e.identity.Promote(context.Background(), username)
	require.NoError(t, err)
	return token
}

func (e *testEnv) upload(t *testing.T, token, fileName string, data []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return e.do(t, http.MethodPost, "/api/upload", token, &buf, mw.FormDataContentType())
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}
