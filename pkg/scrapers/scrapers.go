// Package scrapers holds what the per-platform search adapters share.
package scrapers

import (
	"context"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog"

	"price-compare/pkg/logger"
	"price-compare/pkg/models"
)

const (
	UserAgent      = "Mozilla/5.0"
	DefaultLimit   = 5
	DefaultTimeout = 10 * time.Second
)

// Source turns a keyword into offers for one platform. Fetch never fails:
// when nothing usable comes back it returns a single fallback offer, the
// same one Fallback builds.
type Source interface {
	Name() string
	Fetch(ctx context.Context, keyword string) []models.Offer
	Fallback(keyword string) models.Offer
}

// NewCollector returns a collector bound to ctx that identifies itself like
// a browser coming from referer.
func NewCollector(ctx context.Context, timeout time.Duration, referer string, domains ...string) *colly.Collector {
	c := colly.NewCollector(
		colly.AllowedDomains(domains...),
		colly.UserAgent(UserAgent),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(timeout)
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Referer", referer)
		zerolog.Ctx(ctx).Debug().Str("url", r.URL.String()).Msg("Navigating")
	})
	return c
}

// Fallback reports err and returns the single offer pointing at the
// platform's own search page.
func Fallback(err error, offer models.Offer) []models.Offer {
	logger.Dedup(zerolog.WarnLevel, "%s: falling back to search link: %v", offer.Platform, err)
	return []models.Offer{offer}
}
