package domain

import "strings"

// StatsKeyPrefix namespaces visit records in the shared keyspace.
const StatsKeyPrefix = "stats:"

const (
	PlatformTwitter  = "Twitter"
	PlatformFacebook = "Facebook"
	PlatformDirect   = "Direct"
)

// Platform is the referrer classification attached to a visit.
type Platform struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Visit represents one resolution of a short link
type Visit struct {
	IP        string   `json:"ip"`
	Country   string   `json:"country"`
	Timestamp int64    `json:"timestamp"`
	Referrer  string   `json:"referrer"`
	Platform  Platform `json:"platform"`
}

// Stats holds every visit recorded for a key, oldest first.
type Stats struct {
	Visits []Visit `json:"visits"`
}

// VisitInput is what the transport layer knows about a visitor.
type VisitInput struct {
	IP       string
	Country  string
	Referrer string
}

func StatsKey(key string) string {
	return StatsKeyPrefix + key
}

func IsStatsKey(key string) bool {
	return strings.HasPrefix(key, StatsKeyPrefix)
}
