package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/LeventeLantos/wa-inbox/internal/model"
	"github.com/LeventeLantos/wa-inbox/internal/payload"
	"github.com/LeventeLantos/wa-inbox/internal/scheduler"
	"github.com/LeventeLantos/wa-inbox/internal/service"
)

const (
	maxWebhookBody = 1 << 20
	maxSendBody    = 64 << 10
	healthTimeout  = 3 * time.Second
)

type InboxService interface {
	ListConversations(ctx context.Context) ([]model.Conversation, error)
	ListMessages(ctx context.Context, waID string) ([]model.Message, error)
	SendMessage(ctx context.Context, req service.SendRequest) (model.Message, error)
	ApplyWebhook(ctx context.Context, data []byte) (payload.Kind, error)
	Ping(ctx context.Context) error
}

type Handler struct {
	inbox InboxService
	sched *scheduler.Scheduler
}

// NewHandler wires the HTTP handlers. sched may be nil when periodic rescans
// are not configured.
func NewHandler(inbox InboxService, sched *scheduler.Scheduler) *Handler {
	return &Handler{inbox: inbox, sched: sched}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	start := time.Now()
	if err := h.inbox.Ping(ctx); err != nil {
		slog.Warn("health check failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "degraded",
			"store":  "fail",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"store":         "pass",
		"store_latency": time.Since(start).String(),
	})
}

func (h *Handler) ListChats(w http.ResponseWriter, r *http.Request) {
	convs, err := h.inbox.ListConversations(r.Context())
	if err != nil {
		slog.Error("list conversations failed", "err", err)
		writeError(w, statusFor(err), "Failed to fetch chats.")
		return
	}
	writeJSON(w, http.StatusOK, convs)
}

func (h *Handler) ListChatMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.inbox.ListMessages(r.Context(), chi.URLParam(r, "wa_id"))
	if err != nil {
		slog.Error("list messages failed", "err", err)
		writeError(w, statusFor(err), "Failed to fetch messages for this chat.")
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(w, r, maxSendBody)
	if err != nil {
		writeBodyError(w, err)
		return
	}
	if err := validateSendRequest(raw); err != nil {
		writeError(w, http.StatusBadRequest, "to and body are required.")
		return
	}

	var req service.SendRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		writeError(w, http.StatusBadRequest, "to and body are required.")
		return
	}

	msg, err := h.inbox.SendMessage(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, msg)
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("send message failed", "to", req.To, "err", err)
		writeError(w, statusFor(err), "Failed to save message.")
	}
}

func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(w, r, maxWebhookBody)
	if err != nil {
		writeBodyError(w, err)
		return
	}

	kind, err := h.inbox.ApplyWebhook(r.Context(), raw)
	if err != nil {
		if errors.Is(err, payload.ErrMalformedPayload) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("webhook apply failed", "kind", kind.String(), "err", err)
		writeError(w, statusFor(err), "Failed to apply webhook.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": kind.String()})
}

func (h *Handler) RescanStatus(w http.ResponseWriter, r *http.Request) {
	if h.sched == nil {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false, "running": false})
		return
	}
	writeJSON(w, http.StatusOK, h.rescanState())
}

func (h *Handler) RescanStart(w http.ResponseWriter, r *http.Request) {
	if h.sched == nil {
		writeError(w, http.StatusConflict, "periodic rescans are not configured")
		return
	}
	h.sched.Start()
	writeJSON(w, http.StatusOK, h.rescanState())
}

func (h *Handler) RescanStop(w http.ResponseWriter, r *http.Request) {
	if h.sched == nil {
		writeError(w, http.StatusConflict, "periodic rescans are not configured")
		return
	}
	h.sched.Stop()
	writeJSON(w, http.StatusOK, h.rescanState())
}

func (h *Handler) rescanState() map[string]any {
	state := map[string]any{
		"enabled": true,
		"name":    h.sched.Name(),
		"running": h.sched.IsRunning(),
		"ticks":   h.sched.Ticks(),
	}
	if last := h.sched.LastTick(); !last.IsZero() {
		state["last_tick"] = last.UTC().Format(time.RFC3339Nano)
	}
	return state
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrRelayFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
}

func writeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, "failed to read request body")
}

// writeJSON encodes fully before writing the status; encode failures are 500s.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		slog.Error("response encode failed", "err", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to encode response"}` + "\n"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
