package ports

import (
	"context"

	"github.com/wadjakorntonsri/kv-shortener/pkg/core/domain"
)

// ListResult is one batch of a cursored key listing.
type ListResult struct {
	Keys     []string
	Cursor   string
	Complete bool
}

// KeyValueStore is the flat string-to-string store every record lives in.
// An absent key is reported by found=false, never by an error.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// List returns the batch following cursor. An empty cursor starts a new scan.
	List(ctx context.Context, cursor string) (ListResult, error)
	Close() error
}

// LinkRepository defines storage operations for links
type LinkRepository interface {
	Create(ctx context.Context, link *domain.Link) error
	// Get returns nil, nil when the key holds no link.
	Get(ctx context.Context, key string) (*domain.Link, error)
	ListPage(ctx context.Context, page, pageSize int) (*domain.LinkPage, error)
	Delete(ctx context.Context, key string) error
	Dump(ctx context.Context) ([]domain.Link, error) // For export
}

// StatsRepository stores the visit log of each link.
type StatsRepository interface {
	RecordVisit(ctx context.Context, key string, visit domain.Visit) error
	Get(ctx context.Context, key string) (*domain.Stats, error)
	Replace(ctx context.Context, key string, visits []domain.Visit) error
	Delete(ctx context.Context, key string) error
}

// Locker serializes read-modify-write cycles on a single key.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// LinkService defines business logic for links
type LinkService interface {
	Shorten(ctx context.Context, in domain.ShortenInput) (*domain.Link, error)
	GetLink(ctx context.Context, key string) (*domain.Link, error)
	ListLinks(ctx context.Context, page int) (*domain.LinkPage, error)
	DeleteLink(ctx context.Context, key string) error
	RecordVisit(ctx context.Context, key string, in domain.VisitInput) error
	GetStats(ctx context.Context, key string) (*domain.Stats, error)
	ReplaceStats(ctx context.Context, key string, visits []domain.Visit) error
	DeleteStats(ctx context.Context, key string) error
	IsCrawler(userAgent string) bool
}
