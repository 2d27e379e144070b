// Package classifier decides whether a request comes from a link-preview
// crawler and which platform referred a visitor.
package classifier

import (
	"strings"

	"github.com/wadjakorntonsri/kv-shortener/pkg/core/domain"
)

// ReferrerRule maps any of Patterns found in a referrer to a platform name.
type ReferrerRule struct {
	Name     string
	Patterns []string
}

// CrawlerSignatures are matched case-sensitively against the User-Agent.
var CrawlerSignatures = []string{"facebookexternalhit", "Twitterbot"}

// ReferrerRules are evaluated in order; the first match wins.
var ReferrerRules = []ReferrerRule{
	{Name: domain.PlatformTwitter, Patterns: []string{"twitter.com", "t.co"}},
	{Name: domain.PlatformFacebook, Patterns: []string{"facebook.com"}},
}

type Classifier struct {
	crawlers []string
	rules    []ReferrerRule
}

func New(crawlers []string, rules []ReferrerRule) *Classifier {
	return &Classifier{crawlers: crawlers, rules: rules}
}

// Default uses the built-in tables plus any extra crawler signatures.
func Default(extraCrawlers ...string) *Classifier {
	crawlers := make([]string, 0, len(CrawlerSignatures)+len(extraCrawlers))
	crawlers = append(crawlers, CrawlerSignatures...)
	crawlers = append(crawlers, extraCrawlers...)
	return New(crawlers, ReferrerRules)
}

func (c *Classifier) IsCrawler(userAgent string) bool {
	if userAgent == "" {
		return false
	}
	for _, sig := range c.crawlers {
		if sig != "" && strings.Contains(userAgent, sig) {
			return true
		}
	}
	return false
}

func (c *Classifier) Platform(referrer string) domain.Platform {
	if referrer != "" {
		for _, rule := range c.rules {
			for _, p := range rule.Patterns {
				if strings.Contains(referrer, p) {
					return domain.Platform{Name: rule.Name, URL: referrer}
				}
			}
		}
	}
	return domain.Platform{Name: domain.PlatformDirect}
}
