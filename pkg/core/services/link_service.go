package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/wadjakorntonsri/kv-shortener/pkg/core/classifier"
	"github.com/wadjakorntonsri/kv-shortener/pkg/core/domain"
	"github.com/wadjakorntonsri/kv-shortener/pkg/ports"
)

const (
	shortCodeLength = 6
	defaultPageSize = 30
)

type Options struct {
	PageSize int
	// AllowOverwrite lets a custom path replace an existing link.
	AllowOverwrite bool
	Classifier     *classifier.Classifier
}

type LinkService struct {
	links          ports.LinkRepository
	stats          ports.StatsRepository
	classifier     *classifier.Classifier
	validate       *validator.Validate
	pageSize       int
	allowOverwrite bool
	now            func() time.Time
}

func NewLinkService(links ports.LinkRepository, stats ports.StatsRepository, opts Options) *LinkService {
	if opts.PageSize < 1 {
		opts.PageSize = defaultPageSize
	}
	if opts.Classifier == nil {
		opts.Classifier = classifier.Default()
	}
	return &LinkService{
		links:          links,
		stats:          stats,
		classifier:     opts.Classifier,
		validate:       newValidator(),
		pageSize:       opts.PageSize,
		allowOverwrite: opts.AllowOverwrite,
		now:            time.Now,
	}
}

func (s *LinkService) Shorten(ctx context.Context, in domain.ShortenInput) (*domain.Link, error) {
	in.URL = strings.TrimSpace(in.URL)
	in.Image = strings.TrimSpace(in.Image)
	in.CustomPath = strings.Trim(strings.TrimSpace(in.CustomPath), "/")

	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	if domain.IsStatsKey(in.CustomPath) {
		return nil, fmt.Errorf("%w: customPath must not start with %q", domain.ErrInvalidInput, domain.StatsKeyPrefix)
	}

	key := in.CustomPath
	if key == "" {
		var err error
		key, err = generateShortCode(shortCodeLength)
		if err != nil {
			return nil, err
		}
	} else if !s.allowOverwrite {
		existing, err := s.links.Get(ctx, key)
		if err != nil && !errors.Is(err, domain.ErrMalformedRecord) {
			return nil, err
		}
		if existing != nil || err != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrKeyExists, key)
		}
	}

	title := in.Title
	if title == "" {
		title = in.URL
	}

	link := &domain.Link{
		Key:         key,
		TargetURL:   in.URL,
		Image:       in.Image,
		Title:       title,
		Description: in.Description,
		CreatedAt:   s.now().UnixMilli(),
	}
	if err := s.links.Create(ctx, link); err != nil {
		return nil, err
	}
	return link, nil
}

// GetLink resolves a key; a missing link is ErrNotFound.
func (s *LinkService) GetLink(ctx context.Context, key string) (*domain.Link, error) {
	link, err := s.links.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, domain.ErrNotFound
	}
	return link, nil
}

func (s *LinkService) ListLinks(ctx context.Context, page int) (*domain.LinkPage, error) {
	if page < 1 {
		page = 1
	}
	return s.links.ListPage(ctx, page, s.pageSize)
}

func (s *LinkService) DeleteLink(ctx context.Context, key string) error {
	return s.links.Delete(ctx, key)
}

// RecordVisit appends a visit stamped with the current time and the
// referrer's platform. The caller is expected to have resolved the key.
func (s *LinkService) RecordVisit(ctx context.Context, key string, in domain.VisitInput) error {
	visit := domain.Visit{
		IP:        in.IP,
		Country:   in.Country,
		Timestamp: s.now().UnixMilli(),
		Referrer:  in.Referrer,
		Platform:  s.classifier.Platform(in.Referrer),
	}
	return s.stats.RecordVisit(ctx, key, visit)
}

func (s *LinkService) GetStats(ctx context.Context, key string) (*domain.Stats, error) {
	return s.stats.Get(ctx, key)
}

func (s *LinkService) ReplaceStats(ctx context.Context, key string, visits []domain.Visit) error {
	return s.stats.Replace(ctx, key, visits)
}

func (s *LinkService) DeleteStats(ctx context.Context, key string) error {
	return s.stats.Delete(ctx, key)
}

func (s *LinkService) IsCrawler(userAgent string) bool {
	return s.classifier.IsCrawler(userAgent)
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("shortpath", validShortPath)
	return v
}

// validShortPath accepts paths that GET /<key> can reach unchanged: no query
// or fragment markers, no whitespace, and no segments the mux would clean.
func validShortPath(fl validator.FieldLevel) bool {
	path := fl.Field().String()
	if strings.ContainsAny(path, "?#") || strings.ContainsFunc(path, unicode.IsSpace) {
		return false
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}
	return true
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "http_url":
			msgs = append(msgs, fe.Field()+" must be an absolute http or https URL")
		case "shortpath":
			msgs = append(msgs, fe.Field()+" must not contain ?, #, whitespace, empty segments or dot segments")
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fe.Field()+" is invalid")
		}
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(msgs, "; "))
}

const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func generateShortCode(length int) (string, error) {
	b := make([]byte, length)
	for i := range b {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		b[i] = charset[num.Int64()]
	}
	return string(b), nil
}

var _ ports.LinkService = (*LinkService)(nil)
