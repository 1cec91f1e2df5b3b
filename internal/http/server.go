package http

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"paytrack/internal/cache"
	"paytrack/internal/core"
	"paytrack/internal/log"
	"paytrack/internal/middleware/ratelimit"
	"paytrack/internal/middleware/security"
	"paytrack/internal/middleware/trace"
	"paytrack/internal/services"
)

type Server struct {
	http.Server
	transactions *services.TransactionService
	recurrence   *services.RecurrenceService

	limiter  *ratelimit.Limiter
	detector *security.Detector
	audit    *log.StructuredLogger

	// Weekly balance reports are expensive (one range query per week
	// plus the carry-over scan), so they are cached per year-month.
	// Any write flushes the whole cache: a backdated transaction can
	// shift the carry-over of every later month.
	weeklyCache  *cache.LRUCache[[]core.WeeklyBalance]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a
// ready-to-run http.Server.
func NewServer(addr string, transactions *services.TransactionService, recurrence *services.RecurrenceService) *Server {
	mux := http.NewServeMux()

	logger := log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP)

	s := &Server{
		transactions: transactions,
		recurrence:   recurrence,
		limiter:      ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		detector:     security.NewDetector(),
		audit:        log.NewStructuredLogger(logger),
		weeklyCache:  cache.NewLRUCache[[]core.WeeklyBalance](100, 5*time.Minute),
		cacheManager: cache.NewManager(),
	}
	s.cacheManager.Register(s.weeklyCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /transactions", s.handleListTransactions)
	mux.HandleFunc("POST /transactions/batch", s.handleCreateBatch)
	mux.HandleFunc("POST /transactions/import", s.handleImportCSV)
	mux.HandleFunc("GET /transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("PUT /transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /transactions/{id}", s.handleDeleteTransaction)

	mux.HandleFunc("GET /templates", s.handleListTemplates)
	mux.HandleFunc("GET /templates/{id}/instances", s.handleTemplateInstances)
	mux.HandleFunc("POST /templates/{id}/generate", s.handleGenerateTemplate)
	mux.HandleFunc("POST /generate", s.handleGenerateAll)

	mux.HandleFunc("GET /balance", s.handleBalance)
	mux.HandleFunc("GET /balances/weekly", s.handleWeeklyBalances)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	tracer := trace.NewMiddleware(s.detector.ExtractClientIP)

	// Trace runs before the logger middleware so the request id it
	// generates is available to attach to the context logger.
	handler := s.guard(mux)
	handler = log.RequestIDMiddleware(func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	})(handler)
	handler = log.Middleware(logger)(handler)

	s.Server = http.Server{
		Addr:    addr,
		Handler: headers.Middleware(tracer.Middleware(handler)),
	}

	return s
}

// guard applies rate limiting to mutating requests and logs requests
// that match known probe patterns. Suspicious traffic is observed, not
// blocked; the log line is the signal.
func (s *Server) guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := s.detector.ExtractClientIP(r)

		if s.detector.DetectSuspiciousRequest(r) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request detected",
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
		}

		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodDelete:
			if !s.limiter.Allow(clientIP) {
				log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
					log.FieldClientIP, clientIP,
					log.FieldMethod, r.Method,
					log.FieldPath, r.URL.Path)
				ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").
					Header("Retry-After", "60").
					Write(w)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// Shutdown gracefully shuts down the server and its background
// routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) weeklyCacheKey(year, month int) string {
	return strconv.Itoa(year) + "-" + strconv.Itoa(month)
}

// invalidateReports is called after every successful write.
func (s *Server) invalidateReports() {
	s.weeklyCache.Flush()
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
