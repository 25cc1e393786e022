package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"clothingrental/internal/config"
	"clothingrental/internal/domain"
	"clothingrental/internal/export"
	"clothingrental/internal/metrics"
	"clothingrental/internal/models"
	"clothingrental/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// HTTPServer exposes the catalog, bookings and session over JSON.
type HTTPServer struct {
	cfg      *config.APIConfig
	catalog  domain.CatalogService
	bookings domain.BookingService
	auth     domain.AuthService
	backend  Pinger
	logger   zerolog.Logger
	guard    *HTTPAuth
	handler  http.Handler
	server   *http.Server
}

func NewHTTPServer(
	cfg *config.APIConfig,
	catalog domain.CatalogService,
	bookings domain.BookingService,
	auth domain.AuthService,
	backend Pinger,
	logger *zerolog.Logger,
) *HTTPServer {
	srv := &HTTPServer{
		cfg:      cfg,
		catalog:  catalog,
		bookings: bookings,
		auth:     auth,
		backend:  backend,
		logger:   zerolog.Nop(),
		guard:    NewHTTPAuth(cfg),
	}
	if logger != nil {
		srv.logger = logger.With().Str("component", "http").Logger()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", srv.handleHealth)
	mux.HandleFunc("GET /readyz", srv.handleReady)

	mux.Handle("GET /api/v1/items", srv.guard.Wrap(permReadItems, srv.handleListItems))
	mux.Handle("GET /api/v1/items/{id}", srv.guard.Wrap(permReadItems, srv.handleGetItem))
	mux.Handle("POST /api/v1/items", srv.guard.Wrap("", srv.handleCreateItem))
	mux.Handle("PUT /api/v1/items/{id}/status", srv.guard.Wrap("", srv.handleSetItemStatus))

	mux.Handle("GET /api/v1/bookings/conflict", srv.guard.Wrap(permReadItems, srv.handleCheckConflict))
	mux.Handle("GET /api/v1/bookings/export", srv.guard.Wrap("", srv.handleExportBookings))
	mux.Handle("GET /api/v1/bookings", srv.guard.Wrap("", srv.handleListBookings))
	mux.Handle("POST /api/v1/bookings", srv.guard.Wrap(permWriteBookings, srv.handleCreateBooking))
	mux.Handle("PUT /api/v1/bookings/{id}/status", srv.guard.Wrap("", srv.handleSetBookingStatus))

	mux.Handle("POST /api/v1/session/login", srv.guard.Wrap("", srv.handleLogin))
	mux.Handle("POST /api/v1/session/logout", srv.guard.Wrap("", srv.handleLogout))
	mux.Handle("GET /api/v1/session", srv.guard.Wrap("", srv.handleSession))

	srv.handler = loggingMiddleware(&srv.logger, mux)
	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	return srv
}

// Handler returns the fully wrapped router.
func (s *HTTPServer) Handler() http.Handler { return s.handler }

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.backend != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.backend.Ping(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("readiness check failed")
			writeError(w, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *HTTPServer) handleListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	views, err := s.catalog.ListItemViews(r.Context(), models.ItemFilter{
		Date: q.Get("date"),
		Name: q.Get("name"),
		Code: q.Get("code"),
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": views})
}

func (s *HTTPServer) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.catalog.GetItem(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *HTTPServer) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	var input models.NewItemInput
	if !decodeBody(w, r, &input) {
		return
	}
	item, err := s.catalog.CreateItem(r.Context(), input)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *HTTPServer) handleSetItemStatus(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	var body statusRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if err := s.catalog.SetItemStatus(r.Context(), r.PathValue("id"), models.AdminStatus(body.Status)); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleCheckConflict(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	productID := strings.TrimSpace(q.Get("product_id"))
	if productID == "" {
		writeError(w, http.StatusBadRequest, "product_id is required")
		return
	}
	conflict, err := s.bookings.CheckConflict(r.Context(), productID, q.Get("from"), q.Get("to"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"conflict": conflict})
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var input models.NewBookingInput
	if !decodeBody(w, r, &input) {
		return
	}
	booking, err := s.bookings.CreateBooking(r.Context(), input)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func bookingFilter(r *http.Request) models.BookingFilter {
	q := r.URL.Query()
	return models.BookingFilter{
		ProductCode:  q.Get("product_code"),
		ProductName:  q.Get("product_name"),
		CustomerName: q.Get("customer_name"),
	}
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	details, err := s.bookings.ListBookings(r.Context(), bookingFilter(r))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": details})
}

func (s *HTTPServer) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	details, err := s.bookings.ListBookings(r.Context(), bookingFilter(r))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	f, err := export.BookingsWorkbook(details)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to build bookings export")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="bookings.xlsx"`)
	if _, err := f.WriteTo(w); err != nil {
		// заголовки уже отправлены
		s.logger.Error().Err(err).Msg("failed to write bookings export")
	}
}

func (s *HTTPServer) handleSetBookingStatus(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	var body statusRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if err := s.bookings.SetBookingStatus(r.Context(), r.PathValue("id"), models.BookingStatus(body.Status)); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if !decodeBody(w, r, &body) {
		return
	}
	ok, err := s.auth.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	s.handleSession(w, r)
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Logout(r.Context()); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleSession(w http.ResponseWriter, r *http.Request) {
	user, err := s.auth.Current(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (s *HTTPServer) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if err := s.auth.RequireAdmin(r.Context()); err != nil {
		s.writeServiceError(w, err)
		return false
	}
	return true
}

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": verr.Fields})
	case errors.Is(err, service.ErrBookingConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrVersionConflict):
		writeError(w, http.StatusConflict, "the data was modified concurrently, please retry")
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrItemNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// HTTPAuth provides API-key auth and per-key rate limiting for HTTP endpoints.
type HTTPAuth struct {
	cfg     *config.APIConfig
	clients map[string]config.APIClientKey
	limiter *rateLimiter
}

func NewHTTPAuth(cfg *config.APIConfig) *HTTPAuth {
	return &HTTPAuth{
		cfg:     cfg,
		clients: clientsByKey(cfg.Auth.APIKeys),
		limiter: newRateLimiter(cfg),
	}
}

// Wrap guards next with the api key check for permission required.
// Routes with an empty permission are open and only rate limited.
func (a *HTTPAuth) Wrap(required string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.cfg.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		if a.cfg.Auth.Enabled && required != "" {
			if err := a.checkAuth(r, required); err != nil {
				statusCode := http.StatusUnauthorized
				if errors.Is(err, errPermissionDenied) {
					statusCode = http.StatusForbidden
				}
				writeError(w, statusCode, err.Error())
				return
			}
		}

		if a.limiter.enabled() && !a.limiter.getLimiter(a.clientKey(r)).Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

var errPermissionDenied = errors.New("permission denied")

func (a *HTTPAuth) checkAuth(r *http.Request, required string) error {
	apiKey := strings.TrimSpace(r.Header.Get(headerName(a.cfg.Auth.HeaderAPIKey, apiKeyHeaderDefault)))
	extra := strings.TrimSpace(r.Header.Get(headerName(a.cfg.Auth.HeaderExtra, apiExtraHeaderDefault)))
	if apiKey == "" || extra == "" {
		return errors.New("missing api key headers")
	}

	client, ok := a.clients[apiKey]
	if !ok {
		return errors.New("invalid api key")
	}
	if subtle.ConstantTimeCompare([]byte(client.Extra), []byte(extra)) != 1 {
		return errors.New("invalid extra header")
	}

	if !hasPermission(client, required) {
		return errPermissionDenied
	}
	return nil
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(headerName(a.cfg.Auth.HeaderAPIKey, apiKeyHeaderDefault))); apiKey != "" {
		return apiKey
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}

func loggingMiddleware(logger *zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDMetadataKey))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDMetadataKey, requestID)

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		// ServeMux проставляет r.Pattern при маршрутизации
		pattern := r.Pattern
		if pattern == "" {
			pattern = "unmatched"
		}
		metrics.IncHTTP(pattern)

		logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
