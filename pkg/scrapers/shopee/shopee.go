// Package shopee links to the Shopee search page. Shopee has no scrapable
// search results, so the adapter never calls the network.
package shopee

import (
	"context"
	"fmt"
	"net/url"

	"price-compare/pkg/models"
)

const (
	Source    = "Shopee"
	SearchURL = "https://shopee.tw/search"
	Title     = "點此前往 Shopee 搜尋該商品"
)

type Scraper struct{}

func NewScraper() *Scraper {
	return &Scraper{}
}

func (s *Scraper) Name() string {
	return Source
}

func (s *Scraper) Fetch(_ context.Context, keyword string) []models.Offer {
	return []models.Offer{s.Fallback(keyword)}
}

func (s *Scraper) Fallback(keyword string) models.Offer {
	return models.Offer{
		Platform: Source,
		Title:    Title,
		Link:     fmt.Sprintf("%s?keyword=%s", SearchURL, url.QueryEscape(keyword)),
	}
}
