// Package aggregator fans a keyword out to every configured source and
// joins the results in source priority order.
package aggregator

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"price-compare/pkg/models"
	"price-compare/pkg/scrapers"
)

type Aggregator struct {
	sources []scrapers.Source
}

// New returns an Aggregator that queries sources in the given order of
// priority. At least one source is required.
func New(sources ...scrapers.Source) (*Aggregator, error) {
	if len(sources) == 0 {
		return nil, models.ErrNoSources
	}
	return &Aggregator{sources: append([]scrapers.Source(nil), sources...)}, nil
}

// Sources lists the configured source names in priority order.
func (a *Aggregator) Sources() []string {
	if a == nil {
		return nil
	}
	names := make([]string, len(a.sources))
	for i, src := range a.sources {
		names[i] = src.Name()
	}
	return names
}

// Aggregate runs every source concurrently and concatenates their offers in
// priority order, regardless of which source finishes first. Each source
// handles its own failures; a source that panics contributes its fallback
// offer. The only error is models.ErrNoSources.
func (a *Aggregator) Aggregate(ctx context.Context, keyword string) ([]models.Offer, error) {
	if a == nil || len(a.sources) == 0 {
		return nil, models.ErrNoSources
	}

	log := zerolog.Ctx(ctx)
	start := time.Now()

	results := make([][]models.Offer, len(a.sources))
	var g errgroup.Group
	for i, src := range a.sources {
		g.Go(func() (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					results[i] = []models.Offer{src.Fallback(keyword)}
					err = fmt.Errorf("%s: panic: %v", src.Name(), rec)
					log.Error().
						Str("source", src.Name()).
						Interface("reason", rec).
						Bytes("stack", debug.Stack()).
						Msg("source panicked")
				}
			}()

			began := time.Now()
			results[i] = src.Fetch(ctx, keyword)
			log.Debug().
				Str("source", src.Name()).
				Int("offers", len(results[i])).
				Dur("took", time.Since(began)).
				Msg("source done")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Warn().Err(err).Msg("aggregation degraded")
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}
	offers := make([]models.Offer, 0, total)
	for _, r := range results {
		offers = append(offers, r...)
	}

	log.Info().
		Str("keyword", keyword).
		Int("offers", len(offers)).
		Dur("took", time.Since(start)).
		Msg("aggregated")

	return offers, nil
}
