package domain

// Link is a short link record as exposed over the API.
type Link struct {
	Key         string `json:"key"`
	TargetURL   string `json:"url"`
	Image       string `json:"image"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	CreatedAt   int64  `json:"timestamp"` // unix milliseconds, 0 when unknown
}

// LinkPage is one window of the dashboard listing.
type LinkPage struct {
	Links      []Link     `json:"links"`
	Pagination Pagination `json:"pagination"`
}

type Pagination struct {
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
	TotalLinks  int `json:"totalLinks"`
}

// ShortenInput carries a create request into the service.
type ShortenInput struct {
	URL         string `json:"url" validate:"required,http_url,max=2048"`
	CustomPath  string `json:"customPath" validate:"omitempty,max=256,shortpath"`
	Image       string `json:"image" validate:"omitempty,http_url,max=2048"`
	Title       string `json:"title" validate:"max=512"`
	Description string `json:"description" validate:"max=1024"`
}
