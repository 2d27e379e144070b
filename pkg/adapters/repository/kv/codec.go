package kv

import (
	"fmt"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/wadjakorntonsri/kv-shortener/pkg/core/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Format selects how link records are written. Both formats are always readable.
type Format string

const (
	FormatJSON   Format = "json"
	FormatLegacy Format = "legacy"
)

// linkRecord is the stored form of a link. The key is not part of the value.
type linkRecord struct {
	TargetURL   string `json:"targetUrl"`
	Image       string `json:"image,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	CreatedAt   int64  `json:"createdAt,omitempty"`
}

func EncodeLink(link *domain.Link, format Format) (string, error) {
	if format == FormatLegacy {
		return encodeLegacy(link)
	}
	b, err := json.Marshal(linkRecord{
		TargetURL:   link.TargetURL,
		Image:       link.Image,
		Title:       link.Title,
		Description: link.Description,
		CreatedAt:   link.CreatedAt,
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeLink accepts either a JSON record or the legacy comma-joined form.
func DecodeLink(key, raw string) (*domain.Link, error) {
	if IsLegacy(raw) {
		return decodeLegacy(key, raw)
	}
	var rec linkRecord
	if err := json.UnmarshalFromString(raw, &rec); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrMalformedRecord, key, err)
	}
	if rec.TargetURL == "" {
		return nil, fmt.Errorf("%w: %s: missing targetUrl", domain.ErrMalformedRecord, key)
	}
	return &domain.Link{
		Key:         key,
		TargetURL:   rec.TargetURL,
		Image:       rec.Image,
		Title:       rec.Title,
		Description: rec.Description,
		CreatedAt:   rec.CreatedAt,
	}, nil
}

// IsLegacy reports whether raw is a comma-joined record rather than JSON.
func IsLegacy(raw string) bool {
	return !strings.HasPrefix(strings.TrimSpace(raw), "{")
}

// encodeLegacy writes targetUrl,image,title,createdAt. The format has no
// escaping, so any field holding a comma is refused, and it has no slot for
// the description.
func encodeLegacy(link *domain.Link) (string, error) {
	fields := []string{link.TargetURL, link.Image, link.Title}
	for _, f := range fields {
		if strings.Contains(f, ",") {
			return "", fmt.Errorf("%w: %s: legacy format cannot hold a comma in %q", domain.ErrMalformedRecord, link.Key, f)
		}
	}
	return strings.Join(append(fields, strconv.FormatInt(link.CreatedAt, 10)), ","), nil
}

// decodeLegacy reads up to 4 fields. A numeric 4th field is the creation
// time; anything else there is a description. Older writers never escaped
// commas, so everything past the title is kept as the description.
func decodeLegacy(key, raw string) (*domain.Link, error) {
	parts := strings.SplitN(raw, ",", 4)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	for len(parts) < 4 {
		parts = append(parts, "")
	}
	if parts[0] == "" {
		return nil, fmt.Errorf("%w: %s: empty target url", domain.ErrMalformedRecord, key)
	}

	link := &domain.Link{
		Key:       key,
		TargetURL: parts[0],
		Image:     parts[1],
		Title:     parts[2],
	}
	if ts, err := strconv.ParseInt(parts[3], 10, 64); err == nil {
		link.CreatedAt = ts
	} else {
		link.Description = parts[3]
	}
	return link, nil
}

// HasLegacyOverflow reports whether a legacy record has more than 4
// comma-separated fields.
func HasLegacyOverflow(raw string) bool {
	return IsLegacy(raw) && strings.Count(raw, ",") > 3
}
