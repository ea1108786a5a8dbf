package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/fodder-analyzer/internal/config"
	"github.com/fodder-analyzer/internal/controller"
	"github.com/fodder-analyzer/internal/domain"
	"github.com/fodder-analyzer/internal/engine"
	"github.com/fodder-analyzer/internal/logging"
	"github.com/fodder-analyzer/internal/upload"
)

// multipartMemory is the part of an upload kept in memory while parsing
const multipartMemory = 8 << 20

// Server is the HTTP front end of a controller
type Server struct {
	port    int
	ctrl    *controller.Controller
	cfg     *config.Config
	logger  *logging.Logger
	limiter *RateLimiter
	httpSrv *http.Server
}

// NewServer creates a web server on port. A zero port uses the configured
// one.
func NewServer(port int, ctrl *controller.Controller) *Server {
	cfg := ctrl.Config()
	if port == 0 {
		port = cfg.Server.Port
	}

	logger, err := logging.New(logging.Config{
		Level:       logging.ParseLevel(cfg.Logging.Level),
		LogDir:      cfg.Logging.LogDir,
		EnableFile:  cfg.Logging.EnableFile,
		EnableJSON:  cfg.Logging.EnableJSON,
		EnableColor: cfg.Logging.EnableColor,
		Component:   "web",
		Version:     controller.Version,
	})
	if err != nil || logger == nil {
		logger = logging.GetDefault()
	}
	return newServer(port, ctrl, logger)
}

func newServer(port int, ctrl *controller.Controller, logger *logging.Logger) *Server {
	cfg := ctrl.Config()
	s := &Server{
		port:   port,
		ctrl:   ctrl,
		cfg:    cfg,
		logger: logger,
	}
	if cfg.Server.RateLimit > 0 {
		s.limiter = NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
	}
	return s
}

// Handler returns the routed API
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: s.cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler)

	r.Get("/", s.handleIndex)
	r.Get("/api/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.Middleware)
		}
		r.Get("/data", s.handleData)
		r.Get("/insights", s.handleInsights)
		r.Get("/regions", s.handleRegions)
		r.Get("/forecast", s.handleForecast)
		r.Get("/scenario", s.handleScenario)
		r.Post("/chat", s.handleChat)
		r.Post("/chat/stream", s.handleChatStream)
		r.Post("/upload", s.handleUpload)
		r.Get("/upload/latest", s.handleLatestUpload)
		r.Post("/cache/refresh", s.handleCacheRefresh)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	return r
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}
	s.logger.Info("Starting web API at http://localhost%s", s.httpSrv.Addr)
	fmt.Printf("🌐 Starting web API at http://localhost%s\n", s.httpSrv.Addr)

	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "fodder-analyzer",
		"version": controller.Version,
		"endpoints": []string{
			"GET /api/health",
			"GET /api/data",
			"GET /api/insights",
			"GET /api/regions",
			"GET /api/forecast?region=&months=&jitter=&seed=",
			"GET /api/scenario?region=&drop=",
			"POST /api/chat",
			"POST /api/chat/stream",
			"POST /api/upload",
			"GET /api/upload/latest",
			"POST /api/cache/refresh",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Health(r.Context()))
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Data(r.Context()))
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	report, err := s.ctrl.Insights(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "report": report})
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	regions, err := s.ctrl.RegionInsights(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "regions": regions})
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := controller.ForecastRequest{Region: q.Get("region")}

	var err error
	if req.Months, err = intParam(q.Get("months")); err != nil {
		writeError(w, http.StatusBadRequest, "months must be an integer")
		return
	}
	if v := q.Get("jitter"); v != "" {
		if req.Jitter, err = strconv.ParseFloat(v, 64); err != nil {
			writeError(w, http.StatusBadRequest, "jitter must be a number")
			return
		}
	}
	if v := q.Get("seed"); v != "" {
		if req.Seed, err = strconv.ParseUint(v, 10, 64); err != nil {
			writeError(w, http.StatusBadRequest, "seed must be a non-negative integer")
			return
		}
	}

	resp, err := s.ctrl.Forecast(r.Context(), req)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleScenario(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	drop, err := intParam(q.Get("drop"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "drop must be an integer percentage")
		return
	}
	resp, err := s.ctrl.Scenario(r.Context(), controller.ScenarioRequest{Region: q.Get("region"), DropPct: drop})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req controller.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	// Internal failures still answer in the chat shape
	defer func() {
		if v := recover(); v != nil {
			s.logger.Error("chat panic: %v", v)
			writeJSON(w, http.StatusOK, controller.ChatResponse{
				Response: fmt.Sprintf("%s: %v", engine.SystemErrorPrefix, v),
			})
		}
	}()

	resp, err := s.ctrl.Chat(r.Context(), req)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req controller.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.fail(w, controller.ErrEmptyMessage)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(w)

	defer func() {
		if v := recover(); v != nil {
			s.logger.Error("chat stream panic: %v", v)
			fmt.Fprintf(w, "%s: %v", engine.SystemErrorPrefix, v)
		}
	}()

	for chunk, err := range s.ctrl.ChatStream(r.Context(), req) {
		if err != nil {
			fmt.Fprintf(w, "%s: %v", engine.SystemErrorPrefix, err)
			return
		}
		if _, err := w.Write([]byte(chunk)); err != nil {
			return
		}
		_ = rc.Flush()
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if limit := s.cfg.Upload.MaxBytes; limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+multipartMemory)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid upload: "+err.Error())
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing form field \"file\"")
		return
	}
	defer file.Close()

	resp, err := s.ctrl.Upload(r.Context(), hdr.Filename, file)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLatestUpload(w http.ResponseWriter, r *http.Request) {
	latest, err := s.ctrl.LatestUpload(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, controller.UploadResponse{Success: true, Result: latest})
}

func (s *Server) handleCacheRefresh(w http.ResponseWriter, r *http.Request) {
	regions := s.ctrl.RefreshData()
	s.logger.Info("Dataset cache refreshed: %d regions", regions)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Dataset reloaded: %d regions", regions),
		"regions": regions,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// fail writes err with the status StatusFor picks
func (s *Server) fail(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed: %v", err)
	}
	writeError(w, status, err.Error())
}

// StatusFor maps controller errors to HTTP status codes
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrMalformedUpload), errors.Is(err, domain.ErrInvalidParameter),
		errors.Is(err, controller.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnresolvedEntity), errors.Is(err, upload.ErrNoUpload):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrMissingDataset):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{"success": false, "error": msg})
}
