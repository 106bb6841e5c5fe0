// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	gws "github.com/gorilla/websocket"

	"github.com/sony/gobreaker/v2"

	"github.com/goccy/go-json"

	"github.com/tomtom215/excubitor/internal/auth"
	"github.com/tomtom215/excubitor/internal/config"
	"github.com/tomtom215/excubitor/internal/events"
	"github.com/tomtom215/excubitor/internal/frigate"
	"github.com/tomtom215/excubitor/internal/history"
	"github.com/tomtom215/excubitor/internal/logging"
	"github.com/tomtom215/excubitor/internal/notify"
	"github.com/tomtom215/excubitor/internal/validation"
	"github.com/tomtom215/excubitor/internal/websocket"
)

// FrigateClient is the upstream surface the handlers need.
type FrigateClient interface {
	Events(ctx context.Context, q frigate.EventsQuery) ([]frigate.Event, error)
	FetchSnapshot(ctx context.Context, eventID string) ([]byte, error)
	Version(ctx context.Context) (string, error)
	Status() frigate.AuthStatus
	ResetSession()
}

// HistoryStore is the recorded-event query surface.
type HistoryStore interface {
	RecentEvents(ctx context.Context, filter history.EventFilter) ([]history.StoredEvent, error)
	EventByUID(ctx context.Context, uid string) (*history.StoredEvent, error)
	CountsByCamera(ctx context.Context, since time.Time) ([]history.CameraCount, error)
	Notifications(ctx context.Context, limit int) ([]history.NotificationRecord, error)
	Ping(ctx context.Context) error
}

// BrokerStatus reports ingest broker connectivity for readiness and status.
type BrokerStatus interface {
	Connected() bool
}

// Handler carries the dependencies behind every endpoint. Optional fields
// may be nil; the affected endpoints then degrade or 404.
type Handler struct {
	cfg        *config.Config
	upstream   FrigateClient
	store      HistoryStore
	dispatcher *notify.Dispatcher
	hub        *websocket.Hub
	authSvc    *auth.Service
	broker     BrokerStatus

	version   string
	startedAt time.Time
	log       *logging.EventLogger
}

// HandlerOptions configures NewHandler.
type HandlerOptions struct {
	Config     *config.Config
	Upstream   FrigateClient
	Store      HistoryStore
	Dispatcher *notify.Dispatcher
	Hub        *websocket.Hub
	Auth       *auth.Service
	Broker     BrokerStatus
	Version    string
}

// NewHandler creates the API handler set.
func NewHandler(opts HandlerOptions) *Handler {
	return &Handler{
		cfg:        opts.Config,
		upstream:   opts.Upstream,
		store:      opts.Store,
		dispatcher: opts.Dispatcher,
		hub:        opts.Hub,
		authSvc:    opts.Auth,
		broker:     opts.Broker,
		version:    opts.Version,
		startedAt:  time.Now(),
		log:        logging.NewEventLogger(),
	}
}

// HealthResponse is the /api/v1/health payload.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	UptimeSec int64  `json:"uptime_seconds"`
}

// Health godoc
//
//	@Summary	Overall health
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	APIResponse{data=HealthResponse}
//	@Router		/api/v1/health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, HealthResponse{
		Status:    "ok",
		Version:   h.version,
		UptimeSec: int64(time.Since(h.startedAt).Seconds()),
	})
}

// HealthLive godoc
//
//	@Summary	Liveness probe
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	APIResponse
//	@Router		/api/v1/health/live [get]
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// HealthReady godoc
//
//	@Summary	Readiness probe; checks the history store when enabled
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	APIResponse
//	@Failure	503	{object}	APIResponse
//	@Router		/api/v1/health/ready [get]
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable,
				"history store not ready", err)
			return
		}
	}
	respondJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// LoginRequest is the /api/v1/auth/login body.
type LoginRequest struct {
	Username string `json:"username" validate:"required,min=1,max=128"`
	Password string `json:"password" validate:"required,min=1,max=512"`
}

// LoginResponse carries the issued session token.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login godoc
//
//	@Summary	Exchange admin credentials for a session token
//	@Tags		auth
//	@Accept		json
//	@Produce	json
//	@Param		request	body		LoginRequest	true	"credentials"
//	@Success	200		{object}	APIResponse{data=LoginResponse}
//	@Failure	400		{object}	APIResponse
//	@Failure	401		{object}	APIResponse
//	@Router		/api/v1/auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body", nil)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, verr.Error(), nil)
		return
	}

	token, ttl, err := h.authSvc.LoginBasic(r, req.Username, req.Password)
	if err != nil {
		respondError(w, r, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid credentials", nil)
		return
	}

	respondJSON(w, r, http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(ttl),
	})
}

// StatusResponse is the /api/v1/status payload.
type StatusResponse struct {
	Version        string             `json:"version"`
	UptimeSec      int64              `json:"uptime_seconds"`
	FrigateAuth    frigate.AuthStatus `json:"frigate_auth"`
	FrigateVersion string             `json:"frigate_version,omitempty"`
	BreakerState   string             `json:"breaker_state,omitempty"`
	MQTTConnected  *bool              `json:"mqtt_connected,omitempty"`
	WSClients      int                `json:"websocket_clients"`
	AuthMode       string             `json:"auth_mode"`
}

// Status godoc
//
//	@Summary	Bridge status: upstream session, broker, live clients
//	@Tags		status
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	APIResponse{data=StatusResponse}
//	@Router		/api/v1/status [get]
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Version:   h.version,
		UptimeSec: int64(time.Since(h.startedAt).Seconds()),
		AuthMode:  h.authSvc.Mode(),
	}
	if h.upstream != nil {
		resp.FrigateAuth = h.upstream.Status()

		// Circuit breaker state when the upstream is breaker-wrapped.
		if breaker, ok := h.upstream.(interface{ State() gobreaker.State }); ok {
			resp.BreakerState = breaker.State().String()
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if version, err := h.upstream.Version(ctx); err == nil {
			resp.FrigateVersion = version
		}
	}
	if h.broker != nil {
		connected := h.broker.Connected()
		resp.MQTTConnected = &connected
	}
	if h.hub != nil {
		resp.WSClients = h.hub.GetClientCount()
	}

	respondJSON(w, r, http.StatusOK, resp)
}

// Events godoc
//
//	@Summary	Recorded events, newest first
//	@Tags		events
//	@Produce	json
//	@Security	BearerAuth
//	@Param		camera	query		string	false	"camera filter"
//	@Param		label	query		string	false	"label filter"
//	@Param		since	query		string	false	"RFC 3339 lower bound"
//	@Param		limit	query		int		false	"page size"
//	@Param		offset	query		int		false	"page offset"
//	@Success	200		{object}	APIResponse{data=[]history.StoredEvent}
//	@Failure	503		{object}	APIResponse
//	@Router		/api/v1/events [get]
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable,
			"event history is disabled", nil)
		return
	}

	filter := history.EventFilter{
		Camera: r.URL.Query().Get("camera"),
		Label:  r.URL.Query().Get("label"),
		Limit:  h.pageLimit(r),
		Offset: queryInt(r, "offset", 0),
	}
	if since := r.URL.Query().Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest,
				"since must be RFC 3339", nil)
			return
		}
		filter.Since = t
	}

	items, err := h.store.RecentEvents(r.Context(), filter)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError,
			"failed to query events", err)
		return
	}
	respondList(w, r, items, len(items))
}

// EventStats godoc
//
//	@Summary	Per-camera event counts
//	@Tags		events
//	@Produce	json
//	@Security	BearerAuth
//	@Param		since	query		string	false	"RFC 3339 lower bound (default 24h ago)"
//	@Success	200		{object}	APIResponse{data=[]history.CameraCount}
//	@Failure	503		{object}	APIResponse
//	@Router		/api/v1/events/stats [get]
func (h *Handler) EventStats(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable,
			"event history is disabled", nil)
		return
	}

	since := time.Now().UTC().Add(-24 * time.Hour)
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest,
				"since must be RFC 3339", nil)
			return
		}
		since = t
	}

	counts, err := h.store.CountsByCamera(r.Context(), since)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError,
			"failed to query event stats", err)
		return
	}
	respondList(w, r, counts, len(counts))
}

// EventByID godoc
//
//	@Summary	One recorded event by UID
//	@Tags		events
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"event UID"
//	@Success	200	{object}	APIResponse{data=history.StoredEvent}
//	@Failure	404	{object}	APIResponse
//	@Router		/api/v1/events/{id} [get]
func (h *Handler) EventByID(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable,
			"event history is disabled", nil)
		return
	}

	uid := routeParam(r, "id")
	ev, err := h.store.EventByUID(r.Context(), uid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "event not found", nil)
			return
		}
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError,
			"failed to query event", err)
		return
	}
	respondJSON(w, r, http.StatusOK, ev)
}

// EventSnapshot godoc
//
//	@Summary	Proxy the event snapshot from Frigate
//	@Tags		events
//	@Produce	jpeg
//	@Security	BearerAuth
//	@Param		id	path	string	true	"event UID"
//	@Success	200
//	@Failure	404	{object}	APIResponse
//	@Failure	502	{object}	APIResponse
//	@Router		/api/v1/events/{id}/snapshot [get]
func (h *Handler) EventSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.store == nil || h.upstream == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable,
			"snapshot proxy unavailable", nil)
		return
	}

	uid := routeParam(r, "id")
	ev, err := h.store.EventByUID(r.Context(), uid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "event not found", nil)
			return
		}
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError,
			"failed to query event", err)
		return
	}
	if !ev.HasSnapshot {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "event has no snapshot", nil)
		return
	}

	data, err := h.upstream.FetchSnapshot(r.Context(), ev.FrigateID)
	if err != nil {
		respondError(w, r, http.StatusBadGateway, ErrCodeUpstreamError,
			"failed to fetch snapshot", err)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "private, max-age=300")
	if _, err := w.Write(data); err != nil {
		h.log.Warn("snapshot write failed", "error", err.Error())
	}
}

// Notifications godoc
//
//	@Summary	Recent notification deliveries
//	@Tags		notifications
//	@Produce	json
//	@Security	BearerAuth
//	@Param		limit	query		int	false	"page size"
//	@Success	200		{object}	APIResponse{data=[]history.NotificationRecord}
//	@Router		/api/v1/notifications [get]
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable,
			"event history is disabled", nil)
		return
	}

	items, err := h.store.Notifications(r.Context(), h.pageLimit(r))
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError,
			"failed to query notifications", err)
		return
	}
	respondList(w, r, items, len(items))
}

// NotifyTest godoc
//
//	@Summary	Send a synthetic alert through every enabled notifier
//	@Tags		notifications
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	APIResponse
//	@Failure	502	{object}	APIResponse
//	@Router		/api/v1/notify/test [post]
func (h *Handler) NotifyTest(w http.ResponseWriter, r *http.Request) {
	if h.dispatcher == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable,
			"notifications are disabled", nil)
		return
	}

	ev := events.NewCameraEvent(events.SourcePoller)
	ev.FrigateID = "test-event"
	ev.Type = events.EventTypeNew
	ev.Camera = "test-camera"
	ev.Label = "test"
	ev.Score = 1
	ev.StartedAt = time.Now().UTC()
	alert := &notify.Alert{
		Event:     ev,
		Title:     "Excubitor test notification",
		Message:   "Test alert issued from the admin API.",
		CreatedAt: time.Now().UTC(),
	}

	if err := h.dispatcher.Dispatch(r.Context(), alert); err != nil {
		respondError(w, r, http.StatusBadGateway, ErrCodeUpstreamError,
			"one or more notifiers failed", err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]string{"status": "sent"})
}

// AuthReset godoc
//
//	@Summary	Drop the upstream Frigate session, forcing a fresh login
//	@Tags		admin
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	APIResponse
//	@Router		/api/v1/admin/auth/reset [post]
func (h *Handler) AuthReset(w http.ResponseWriter, r *http.Request) {
	if h.upstream == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable,
			"upstream client unavailable", nil)
		return
	}

	h.upstream.ResetSession()

	actor := "anonymous"
	if subject := auth.SubjectFromContext(r.Context()); subject != nil {
		actor = subject.Username
	}
	logging.NewSecurityLogger().LogSessionReset(actor, r.RemoteAddr)

	respondJSON(w, r, http.StatusOK, map[string]string{"status": "reset"})
}

// ConfigView godoc
//
//	@Summary	Running configuration with secrets masked
//	@Tags		admin
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	APIResponse
//	@Router		/api/v1/config [get]
func (h *Handler) ConfigView(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, h.cfg.Redacted())
}

// WebSocket upgrades the connection and attaches the client to the hub.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable,
			"live feed is disabled", nil)
		return
	}

	upgrader := h.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.log.Warn("websocket upgrade failed", "error", err.Error())
		return
	}

	client := websocket.NewClient(h.hub, conn)
	h.hub.Register <- client
	client.Start()
}

func (h *Handler) upgrader() gws.Upgrader {
	return gws.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      h.checkOrigin,
	}
}

// checkOrigin admits non-browser clients (no Origin header) and browsers
// whose Origin matches the CORS allow-list.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if h.cfg == nil {
		return true
	}
	for _, allowed := range h.cfg.Security.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	h.log.Warn("websocket connection rejected", "origin", origin)
	return false
}

func (h *Handler) pageLimit(r *http.Request) int {
	def, upper := 100, 1000
	if h.cfg != nil {
		if h.cfg.API.DefaultPageSize > 0 {
			def = h.cfg.API.DefaultPageSize
		}
		if h.cfg.API.MaxPageSize > 0 {
			upper = h.cfg.API.MaxPageSize
		}
	}
	limit := queryInt(r, "limit", def)
	if limit <= 0 {
		limit = def
	}
	if limit > upper {
		limit = upper
	}
	return limit
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return value
}
