package handler

import (
	"bytes"
	"embed"
	"encoding/base64"
	"html/template"
	"net/http"

	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/wadjakorntonsri/kv-shortener/pkg/core/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

const defaultPreviewTitle = "Shared Link"

type Renderer struct {
	tmpl *template.Template
}

func NewRenderer() *Renderer {
	return &Renderer{tmpl: template.Must(template.ParseFS(templateFS, "templates/*.html"))}
}

// previewPage feeds the Open Graph / Twitter card page served to crawlers.
type previewPage struct {
	Title       string
	Description string
	Image       string
	TargetURL   string
	ShortURL    string
}

func newPreviewPage(link *domain.Link, shortURL string) previewPage {
	title := link.Title
	if title == "" {
		title = defaultPreviewTitle
	}
	return previewPage{
		Title:       title,
		Description: link.Description,
		Image:       link.Image,
		TargetURL:   link.TargetURL,
		ShortURL:    shortURL,
	}
}

type detailPage struct {
	Link     *domain.Link
	ShortURL string
	QRCode   template.URL
}

// render executes into a buffer first so a template error becomes a clean 500.
func (h *HTTPHandler) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	var buf bytes.Buffer
	if err := h.renderer.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		h.log.Error("render failed", zap.String("template", name), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func qrDataURL(content string) (template.URL, error) {
	png, err := qrcode.Encode(content, qrcode.Medium, 256)
	if err != nil {
		return "", err
	}
	return template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png)), nil
}
