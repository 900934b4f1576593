package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sells-group/churn-cli/internal/config"
	"github.com/sells-group/churn-cli/internal/session"
	"github.com/sells-group/churn-cli/internal/store"
)

const (
	testArtifact  = "../internal/gateway/testdata/churn_model.json"
	testReference = "../internal/validate/testdata/Churn_Modelling.csv"
)

func testModelConfig() config.ModelConfig {
	return config.ModelConfig{ArtifactPath: testArtifact, ReferenceDataPath: testReference}
}

func testScoringEnv(t *testing.T) *scoringEnv {
	t.Helper()
	env, err := loadScoringEnv(context.Background(), testModelConfig(),
		config.ValidationConfig{MaxBalance: 300000, MaxSalary: 300000},
		config.BatchConfig{TopN: 10, HistogramBins: 20},
	)
	require.NoError(t, err)
	return env
}

type testAPI struct {
	handler  http.Handler
	sessions *session.Manager
}

func newTestAPI(t *testing.T, opts serverOptions) *testAPI {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "accounts.db"), store.WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	if opts.AllowedOrigins == nil {
		opts.AllowedOrigins = []string{"*"}
	}
	sessions := session.NewManager(16, time.Hour)
	api := newAPIServer(testScoringEnv(t), st, sessions, opts)
	return &testAPI{handler: buildMux(api), sessions: sessions}
}

func (a *testAPI) do(t *testing.T, method, path string, body io.Reader, contentType string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) doJSON(t *testing.T, method, path string, v any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if v != nil {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}
	return a.do(t, method, path, body, "application/json", cookie)
}

func registration(email string) store.Registration {
	return store.Registration{
		Email:      email,
		Password:   "s3cret-pass",
		Username:   "Ana Lopez",
		Company:    "Acme Bank",
		Role:       "Manager",
		Experience: "6-10 years",
	}
}

// signIn registers an account and returns the session cookie from login.
func (a *testAPI) signIn(t *testing.T, email string) *http.Cookie {
	t.Helper()
	rec := a.doJSON(t, http.MethodPost, "/api/auth/register", registration(email), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.doJSON(t, http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": "s3cret-pass"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	t.Fatal("login did not set a session cookie")
	return nil
}

func (a *testAPI) upload(t *testing.T, cookie *http.Cookie, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	return a.do(t, http.MethodPost, "/api/batch", &buf, mw.FormDataContentType(), cookie)
}

func readReference(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(testReference)
	require.NoError(t, err)
	return data
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}
