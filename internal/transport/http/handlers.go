package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"vigil/internal/challenge"
	"vigil/internal/domain"
	"vigil/internal/handshake"
	"vigil/internal/verify"
)

// Handler delegates inbound events to the verification services.
type Handler struct {
	tracker   *challenge.Tracker
	completer *handshake.Completer
	gate      *verify.Gate
	logger    *slog.Logger
}

func NewHandler(tracker *challenge.Tracker, completer *handshake.Completer, gate *verify.Gate, logger *slog.Logger) *Handler {
	return &Handler{tracker: tracker, completer: completer, gate: gate, logger: logger}
}

type challengeOpenRequest struct {
	DeviceID string `json:"deviceId"`
	TS       int64  `json:"ts"`
}

func (h *Handler) handleChallengeOpen(w http.ResponseWriter, r *http.Request) {
	var req challengeOpenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.tracker.OpenWindow(r.Context(), req.DeviceID, time.Now()); err != nil {
		h.logger.Error("open window failed", "device_id", req.DeviceID, "error", err)
		writeStatus(w, http.StatusInternalServerError, "store unavailable")
		return
	}
	writeStatus(w, http.StatusAccepted, "window opened")
}

type handshakeResponseRequest struct {
	B64    string `json:"b64"`
	IPAddr string `json:"ipAddr"`
}

func (h *Handler) handleHandshakeResponse(w http.ResponseWriter, r *http.Request) {
	var req handshakeResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid json")
		return
	}
	result, err := h.completer.CompleteResponse(r.Context(), req.B64, req.IPAddr, time.Now())
	if err != nil {
		h.logger.Error("handshake completion failed", "error", err)
		writeStatus(w, http.StatusInternalServerError, "store unavailable")
		return
	}
	// Discards are deliberately indistinguishable from success toward the
	// device; the result is surfaced only for operators.
	h.logger.Info("handshake response processed", "result", result.String())
	writeStatus(w, http.StatusAccepted, "processed")
}

type telemetryRequest struct {
	DeviceID    string   `json:"deviceId"`
	IPAddr      string   `json:"ipAddr"`
	TS          int64    `json:"ts"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
}

func (h *Handler) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	var req telemetryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid json")
		return
	}
	ev := verify.TelemetryEvent{
		DeviceID:    req.DeviceID,
		IPAddr:      req.IPAddr,
		Temperature: req.Temperature,
		Humidity:    req.Humidity,
	}
	if req.TS > 0 {
		ev.Timestamp = time.Unix(req.TS, 0)
	}
	outcome, err := h.gate.Process(r.Context(), ev, time.Now())
	if err != nil {
		h.logger.Error("telemetry processing failed",
			"device_id", req.DeviceID, "error", err)
		writeStatus(w, http.StatusInternalServerError, "store unavailable")
		return
	}
	switch outcome {
	case domain.OutcomeAccepted:
		writeStatus(w, http.StatusAccepted, outcome.String())
	case domain.OutcomeRejectedMalformed:
		writeStatus(w, http.StatusBadRequest, outcome.String())
	default:
		writeStatus(w, http.StatusForbidden, outcome.String())
	}
}

type timeoutCheckRequest struct {
	DeviceID string `json:"deviceId"`
}

func (h *Handler) handleTimeoutCheck(w http.ResponseWriter, r *http.Request) {
	var req timeoutCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid json")
		return
	}
	revoked, err := h.tracker.CheckAndEnforceTimeout(r.Context(), req.DeviceID, time.Now())
	if err != nil {
		h.logger.Error("timeout check failed", "device_id", req.DeviceID, "error", err)
		writeStatus(w, http.StatusInternalServerError, "store unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]bool{"revoked": revoked})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, http.StatusOK, "ok")
}

func writeStatus(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": message})
}
