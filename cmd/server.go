package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/churn-cli/internal/model"
	"github.com/sells-group/churn-cli/internal/predict"
	"github.com/sells-group/churn-cli/internal/session"
	"github.com/sells-group/churn-cli/internal/store"
	"github.com/sells-group/churn-cli/internal/validate"
)

// apiServer holds the dependencies of the HTTP handlers.
type apiServer struct {
	env      *scoringEnv
	store    store.Store
	sessions *session.Manager

	allowedOrigins []string
	maxUploadBytes int64
	secureCookies  bool
	trustProxy     bool
	loginRate      rate.Limit
	loginBurst     int

	limiterMu     sync.Mutex
	loginLimiters *expirable.LRU[string, *rate.Limiter]
}

// serverOptions are the HTTP-specific knobs from config.
type serverOptions struct {
	AllowedOrigins  []string
	MaxUploadMB     int
	LoginRatePerMin int
	SecureCookies   bool
	TrustProxy      bool
}

func newAPIServer(env *scoringEnv, st store.Store, sessions *session.Manager, opts serverOptions) *apiServer {
	perMin := opts.LoginRatePerMin
	if perMin <= 0 {
		perMin = 30
	}
	uploadMB := opts.MaxUploadMB
	if uploadMB <= 0 {
		uploadMB = 32
	}
	return &apiServer{
		env:            env,
		store:          st,
		sessions:       sessions,
		allowedOrigins: opts.AllowedOrigins,
		maxUploadBytes: int64(uploadMB) << 20,
		secureCookies:  opts.SecureCookies,
		trustProxy:     opts.TrustProxy,
		loginRate:      rate.Every(time.Minute / time.Duration(perMin)),
		loginBurst:     perMin,
		loginLimiters:  expirable.NewLRU[string, *rate.Limiter](4096, nil, 10*time.Minute),
	}
}

// buildMux wires every route. Everything under /api except register and
// login requires a live session cookie. Forwarded client addresses are
// honored only when the server sits behind a trusted proxy; otherwise the
// login limiter keys on the TCP peer.
func buildMux(s *apiServer) http.Handler {
	r := chi.NewRouter()
	if s.trustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)
			r.Post("/auth/logout", s.handleLogout)
			r.Get("/me", s.handleMe)
			r.Get("/domains", s.handleDomains)
			r.Get("/model", s.handleModel)
			r.Post("/predict", s.handlePredict)
			r.Post("/batch", s.handleBatchUpload)
			r.Get("/batch", s.handleBatchSummary)
			r.Get("/batch/export", s.handleBatchExport)
		})
	})

	return r
}

type sessionKey struct{}

func (s *apiServer) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(session.CookieName)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}
		sess, ok := s.sessions.Get(c.Value)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	})
}

func currentSession(r *http.Request) *session.Session {
	sess, _ := r.Context().Value(sessionKey{}).(*session.Session)
	return sess
}

func (s *apiServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var reg store.Registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	acct, err := s.store.CreateAccount(r.Context(), reg)
	var verr *model.ValidationError
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, acct.Identity())
	case errors.As(err, &verr):
		writeValidation(w, http.StatusBadRequest, verr)
	case errors.Is(err, store.ErrEmailTaken):
		writeError(w, http.StatusConflict, err.Error())
	default:
		zap.L().Error("register failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal")
	}
}

func (s *apiServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.loginLimiter(clientIP(r)).Allow() {
		writeError(w, http.StatusTooManyRequests, "too many login attempts")
		return
	}

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	acct, err := s.store.Authenticate(r.Context(), req.Email, req.Password)
	if errors.Is(err, store.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		zap.L().Error("login failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}

	sess := s.sessions.Create(acct.Identity())
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	zap.L().Info("user signed in", zap.String("account_id", acct.ID))
	writeJSON(w, http.StatusOK, sess.User)
}

func (s *apiServer) loginLimiter(key string) *rate.Limiter {
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()
	if l, ok := s.loginLimiters.Get(key); ok {
		return l
	}
	l := rate.NewLimiter(s.loginRate, s.loginBurst)
	s.loginLimiters.Add(key, l)
	return l
}

func (s *apiServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Destroy(currentSession(r).ID)
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentSession(r).User)
}

func (s *apiServer) handleDomains(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.env.Validator.Domains())
}

func (s *apiServer) handleModel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.env.Card)
}

func (s *apiServer) handlePredict(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeRawRecord(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	verdict, err := s.env.Predictor.PredictOne(raw)
	var verr *model.ValidationError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, verdict)
	case errors.As(err, &verr):
		writeValidation(w, http.StatusUnprocessableEntity, verr)
	default:
		writeError(w, http.StatusInternalServerError, "internal")
	}
}

func (s *apiServer) handleBatchUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeIngest(w, err)
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close() //nolint:errcheck

	res, err := s.env.Scorer.ScoreBatch(r.Context(), header.Filename, file)
	var (
		missing *model.MissingColumns
		ierr    *model.IngestError
	)
	switch {
	case err == nil:
	case errors.As(err, &missing):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": "missing_columns", "columns": missing.Columns})
		return
	case errors.As(err, &ierr):
		writeIngest(w, err)
		return
	default:
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}

	sess := currentSession(r)
	sess.SetResult(res)
	zap.L().Info("batch stored",
		zap.String("username", sess.User.Username),
		zap.String("file", header.Filename),
		zap.Int("rows", res.Summary.Total),
	)
	writeJSON(w, http.StatusOK, res)
}

func (s *apiServer) handleBatchSummary(w http.ResponseWriter, r *http.Request) {
	res := currentSession(r).Result()
	if res == nil {
		writeError(w, http.StatusNotFound, "no batch result")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *apiServer) handleBatchExport(w http.ResponseWriter, r *http.Request) {
	res := currentSession(r).Result()
	if res == nil {
		writeError(w, http.StatusNotFound, "no batch result")
		return
	}

	w.Header().Set("Content-Type", predict.ExportContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", predict.ExportFilename))
	if err := res.Export(w); err != nil {
		zap.L().Error("export failed", zap.Error(err))
	}
}

// decodeRawRecord accepts field values as JSON strings, numbers, or
// booleans and hands them to validation as text.
func decodeRawRecord(r *http.Request) (validate.RawRecord, error) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return nil, err
	}

	raw := make(validate.RawRecord, len(body))
	for k, v := range body {
		switch val := v.(type) {
		case nil:
			raw[k] = ""
		case string:
			raw[k] = val
		case json.Number:
			raw[k] = val.String()
		case bool:
			raw[k] = strconv.FormatBool(val)
		default:
			return nil, eris.Errorf("field %s: unsupported value", k)
		}
	}
	return raw, nil
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeValidation(w http.ResponseWriter, status int, verr *model.ValidationError) {
	writeJSON(w, status, map[string]string{"error": "validation", "field": verr.Field, "reason": verr.Reason})
}

func writeIngest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ingest", "message": err.Error()})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

// resolvePort prefers the flag value over the configured port.
func resolvePort(flagPort, cfgPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	return cfgPort
}

// startServer serves handler on port until ctx is cancelled, then shuts
// down gracefully.
func startServer(ctx context.Context, handler http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		errCh <- srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server listen")
	}
	return <-errCh
}
