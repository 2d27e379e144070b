package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/wadjakorntonsri/kv-shortener/pkg/core/domain"
	"github.com/wadjakorntonsri/kv-shortener/pkg/ports"
)

const maxBodyBytes = 1 << 20

type HTTPHandler struct {
	service  ports.LinkService
	renderer *Renderer
	baseURL  string
	log      *zap.Logger
}

func NewHTTPHandler(service ports.LinkService, baseURL string, log *zap.Logger) *HTTPHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPHandler{
		service:  service,
		renderer: NewRenderer(),
		baseURL:  baseURL,
		log:      log,
	}
}

// ShortenResponse payload
type ShortenResponse struct {
	ShortURL string `json:"shortUrl"`
	Path     string `json:"path"`
}

// ReplaceStatsRequest payload
type ReplaceStatsRequest struct {
	Visits []domain.Visit `json:"visits"`
}

// Redirect resolves a short link: crawlers get a preview page, everyone
// else a permanent redirect.
func (h *HTTPHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, r.PathValue("key"))
}

func (h *HTTPHandler) resolve(w http.ResponseWriter, r *http.Request, key string) {
	link, err := h.service.GetLink(r.Context(), key)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	visit := domain.VisitInput{
		IP:       clientIP(r),
		Country:  clientCountry(r),
		Referrer: r.Referer(),
	}
	if err := h.service.RecordVisit(r.Context(), key, visit); err != nil {
		h.log.Warn("record visit failed",
			zap.String("key", key),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
	}

	if h.service.IsCrawler(r.UserAgent()) {
		h.render(w, r, "preview.html", newPreviewPage(link, h.shortURL(r, key)))
		return
	}
	http.Redirect(w, r, link.TargetURL, http.StatusMovedPermanently)
}

// View shows the detail page for a link. Keys that really start with
// "view/" fall through to the redirect.
func (h *HTTPHandler) View(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	link, err := h.service.GetLink(r.Context(), key)
	if errors.Is(err, domain.ErrNotFound) {
		h.resolve(w, r, "view/"+key)
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	shortURL := h.shortURL(r, key)
	qr, err := qrDataURL(shortURL)
	if err != nil {
		h.log.Warn("qr code generation failed", zap.String("key", key), zap.Error(err))
	}
	h.render(w, r, "detail.html", detailPage{Link: link, ShortURL: shortURL, QRCode: qr})
}

func (h *HTTPHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "dashboard.html", nil)
}

// ListLinks returns one page of links; a missing or invalid page is page 1.
func (h *HTTPHandler) ListLinks(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	result, err := h.service.ListLinks(r.Context(), page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *HTTPHandler) Shorten(w http.ResponseWriter, r *http.Request) {
	var req domain.ShortenInput
	if err := decodeBody(w, r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	link, err := h.service.Shorten(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.log.Info("link created", zap.String("key", link.Key), zap.String("url", link.TargetURL))
	writeJSON(w, http.StatusOK, ShortenResponse{
		ShortURL: h.shortURL(r, link.Key),
		Path:     link.Key,
	})
}

func (h *HTTPHandler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteLink(r.Context(), r.PathValue("key")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeText(w, http.StatusOK, "Deleted")
}

func (h *HTTPHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStats(r.Context(), r.PathValue("key"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *HTTPHandler) ReplaceStats(w http.ResponseWriter, r *http.Request) {
	var req ReplaceStatsRequest
	if err := decodeBody(w, r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Visits == nil {
		http.Error(w, "visits is required", http.StatusBadRequest)
		return
	}

	if err := h.service.ReplaceStats(r.Context(), r.PathValue("key"), req.Visits); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeText(w, http.StatusOK, "Updated")
}

func (h *HTTPHandler) DeleteStats(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteStats(r.Context(), r.PathValue("key")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeText(w, http.StatusOK, "Deleted")
}

func (h *HTTPHandler) shortURL(r *http.Request, key string) string {
	return baseURL(h.baseURL, r) + "/" + key
}

// writeError maps service errors onto status codes. Unexpected errors are
// logged and hidden from the client.
func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "Not Found", http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrKeyExists):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
