package pchome

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"price-compare/pkg/models"
	"price-compare/pkg/price"
	"price-compare/pkg/scrapers"
)

const (
	Source        = "PChome"
	SearchURL     = "https://ecapi.pchome.com.tw/ecshop/prodapi/v2/search/all"
	ProductURL    = "https://24h.pchome.com.tw/prod/"
	FallbackURL   = "https://24h.pchome.com.tw/search/v3.3/"
	Referer       = "https://24h.pchome.com.tw"
	FallbackTitle = "無法抓取 PChome 商品，請點連結自行查閱"
)

type Scraper struct {
	SearchURL      string
	AllowedDomains []string
	Limit          int
	Timeout        time.Duration
}

func NewScraper() *Scraper {
	return &Scraper{
		SearchURL:      SearchURL,
		AllowedDomains: []string{"ecapi.pchome.com.tw"},
		Limit:          scrapers.DefaultLimit,
		Timeout:        scrapers.DefaultTimeout,
	}
}

type searchResponse struct {
	// decoded entry by entry so one odd product cannot sink the rest
	Prods []json.RawMessage `json:"prods"`
}

type product struct {
	ID    json.RawMessage `json:"Id"`
	Name  json.RawMessage `json:"name"`
	Price json.RawMessage `json:"price"` // number, occasionally a string
}

func (s *Scraper) Name() string {
	return Source
}

func (s *Scraper) Fallback(keyword string) models.Offer {
	return Fallback(keyword)
}

func (s *Scraper) Fetch(ctx context.Context, keyword string) []models.Offer {
	offers, err := s.Search(ctx, keyword)
	if err != nil {
		return scrapers.Fallback(err, Fallback(keyword))
	}
	return offers
}

// Search queries the product search API. It returns models.ErrNoResults
// when the API answers with no usable products.
func (s *Scraper) Search(ctx context.Context, keyword string) ([]models.Offer, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	params := url.Values{}
	params.Set("q", keyword)
	params.Set("page", "1")
	params.Set("sort", "sale/dc")
	target := s.SearchURL + "?" + params.Encode()

	var (
		data     searchResponse
		parseErr error
	)

	c := scrapers.NewCollector(ctx, s.Timeout, Referer, s.AllowedDomains...)
	c.OnResponse(func(r *colly.Response) {
		parseErr = json.Unmarshal(r.Body, &data)
	})

	if err := c.Visit(target); err != nil {
		return nil, &models.FetchError{Source: Source, Op: "visit", Err: err}
	}
	if parseErr != nil {
		return nil, &models.FetchError{Source: Source, Op: "decode", Err: parseErr}
	}

	var offers []models.Offer
	for i, raw := range data.Prods {
		if i >= s.Limit {
			break
		}
		var prod product
		if err := json.Unmarshal(raw, &prod); err != nil {
			continue
		}
		id := scalarText(prod.ID)
		name := scalarText(prod.Name)
		if name == "" || id == "" {
			continue
		}

		offer := models.Offer{
			Platform: Source,
			Title:    name,
			Link:     ProductURL + url.PathEscape(id),
		}
		if val, ok := price.Parse(string(prod.Price)); ok {
			offer.Price = &val
		}
		offers = append(offers, offer)
	}

	if len(offers) == 0 {
		return nil, &models.FetchError{Source: Source, Op: "parse", Err: models.ErrNoResults}
	}

	return offers, nil
}

// scalarText reads a JSON string or number as trimmed text. Anything else
// yields "".
func scalarText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// Fallback is the offer shown when the API yields nothing.
func Fallback(keyword string) models.Offer {
	return models.Offer{
		Platform: Source,
		Title:    FallbackTitle,
		Link:     fmt.Sprintf("%s?q=%s", FallbackURL, url.QueryEscape(keyword)),
	}
}
