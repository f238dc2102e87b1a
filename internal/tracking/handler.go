package tracking

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/marketing-engine/internal/pkg/logger"
)

// 1x1 transparent GIF
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
	0x80, 0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x2c,
	0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02,
	0x02, 0x44, 0x01, 0x00, 0x3b,
}

// Handler serves the tracking endpoints. The HTTP contract is absolute:
// opens always get the pixel, clicks always get a redirect, whatever goes
// wrong internally. Errors are logged and swallowed.
type Handler struct {
	ingest      *Ingestor
	fallbackURL string
	log         *logger.Logger
}

// NewHandler creates a tracking handler. fallbackURL is where clicks with a
// missing or unparseable destination are sent.
func NewHandler(ingest *Ingestor, fallbackURL string) *Handler {
	return &Handler{
		ingest:      ingest,
		fallbackURL: fallbackURL,
		log:         logger.Component("tracking"),
	}
}

// Routes mounts the tracking endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/track/open/{messageID}/{email}", h.HandleOpen)
	r.Get("/track/click/{messageID}/{linkIndex}/{email}", h.HandleClick)
	r.Get("/track/unsubscribe/{messageID}/{email}", h.HandleUnsubscribe)
	r.Post("/track/webhooks/provider", h.HandleProviderWebhook)
	return r
}

// HandleOpen records an open and serves the pixel unconditionally.
func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")
	email, _ := url.PathUnescape(chi.URLParam(r, "email"))

	if messageID != "" && email != "" {
		recorded, err := h.ingest.RecordOpen(r.Context(), messageID, email, r.UserAgent(), realIP(r))
		if err != nil {
			h.log.Error("open tracking failed", "message_id", messageID, "error", err.Error())
		} else if recorded {
			h.log.Debug("open recorded", "message_id", messageID, "email", email)
		}
	}

	h.servePixel(w)
}

// HandleClick records a click and redirects to the destination. A bad or
// missing url parameter falls back to the configured home page.
func (h *Handler) HandleClick(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")
	email, _ := url.PathUnescape(chi.URLParam(r, "email"))
	linkIndex, _ := strconv.Atoi(chi.URLParam(r, "linkIndex"))

	destination := r.URL.Query().Get("url")
	if !validDestination(destination) {
		destination = h.fallbackURL
	}

	if messageID != "" && email != "" {
		if err := h.ingest.RecordClick(r.Context(), messageID, linkIndex, email, destination, r.UserAgent(), realIP(r)); err != nil {
			h.log.Error("click tracking failed", "message_id", messageID, "error", err.Error())
		}
	}

	http.Redirect(w, r, destination, http.StatusFound)
}

// HandleUnsubscribe flips the subscription flag and shows a confirmation.
func (h *Handler) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")
	email, _ := url.PathUnescape(chi.URLParam(r, "email"))

	if messageID != "" && email != "" {
		if err := h.ingest.RecordUnsubscribe(r.Context(), messageID, email); err != nil {
			h.log.Error("unsubscribe failed", "message_id", messageID, "error", err.Error())
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(`<!DOCTYPE html><html><body style="font-family:Arial,sans-serif;text-align:center;padding:50px;">
		<h1>You have been unsubscribed</h1>
		<p>You will no longer receive emails from us.</p>
	</body></html>`))
}

type providerNotification struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id"`
	Email     string `json:"email"`
}

// HandleProviderWebhook ingests bounce and complaint notifications pushed
// by the email provider.
func (h *Handler) HandleProviderWebhook(w http.ResponseWriter, r *http.Request) {
	var n providerNotification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if n.Email == "" {
		http.Error(w, "email is required", http.StatusBadRequest)
		return
	}

	var err error
	switch n.Type {
	case "bounce":
		err = h.ingest.RecordBounce(r.Context(), n.MessageID, n.Email)
	case "complaint":
		err = h.ingest.RecordComplaint(r.Context(), n.MessageID, n.Email)
	default:
		http.Error(w, "unknown notification type", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.log.Error("webhook ingestion failed", "type", n.Type, "error", err.Error())
		http.Error(w, "ingestion failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) servePixel(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Write(pixelGIF)
}

func validDestination(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func realIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
