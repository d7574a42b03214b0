package momo

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/gocolly/colly/v2"

	"price-compare/pkg/models"
	"price-compare/pkg/price"
	"price-compare/pkg/scrapers"
)

const (
	Source        = "momo"
	SearchURL     = "https://m.momoshop.com.tw/mosearch/Search.jsp"
	BaseURL       = "https://www.momoshop.com.tw"
	FallbackURL   = "https://www.momoshop.com.tw/search/searchShop.jsp"
	Referer       = "https://m.momoshop.com.tw"
	FallbackTitle = "無法抓取 momo 商品，請點連結自行查閱"
)

const (
	itemSelector  = "li.goodsItem"
	titleSelector = "h3.prdName"
	priceSelector = "b.price"
)

type Scraper struct {
	SearchURL      string
	BaseURL        string
	AllowedDomains []string
	Limit          int
	Timeout        time.Duration
	// Render loads the search page in headless Chrome instead of plain HTTP,
	// for when the result list is built by scripts.
	Render bool
}

func NewScraper() *Scraper {
	return &Scraper{
		SearchURL:      SearchURL,
		BaseURL:        BaseURL,
		AllowedDomains: []string{"m.momoshop.com.tw"},
		Limit:          scrapers.DefaultLimit,
		Timeout:        scrapers.DefaultTimeout,
	}
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

// Search scrapes the mobile search page. Only the first Limit result
// entries are examined; entries missing a title, price or link are skipped.
func (s *Scraper) Search(ctx context.Context, keyword string) ([]models.Offer, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	base, err := url.Parse(s.BaseURL)
	if err != nil {
		return nil, &models.FetchError{Source: Source, Op: "base_url", Err: err}
	}

	target := s.SearchURL + "?" + url.Values{"searchKeyword": {keyword}}.Encode()

	var offers []models.Offer
	if s.Render {
		offers, err = s.render(ctx, target, base)
	} else {
		offers, err = s.collect(ctx, target, base)
	}
	if err != nil {
		return nil, err
	}

	if len(offers) == 0 {
		return nil, &models.FetchError{Source: Source, Op: "parse", Err: models.ErrNoResults}
	}

	return offers, nil
}

func (s *Scraper) collect(ctx context.Context, target string, base *url.URL) ([]models.Offer, error) {
	var (
		offers []models.Offer
		seen   int
	)

	c := scrapers.NewCollector(ctx, s.Timeout, Referer, s.AllowedDomains...)
	c.OnHTML(itemSelector, func(e *colly.HTMLElement) {
		seen++
		if seen > s.Limit {
			return
		}
		if offer, ok := parseItem(e.DOM, base); ok {
			offers = append(offers, offer)
		}
	})

	if err := c.Visit(target); err != nil {
		return nil, &models.FetchError{Source: Source, Op: "visit", Err: err}
	}

	return offers, nil
}

func (s *Scraper) render(ctx context.Context, target string, base *url.URL) ([]models.Offer, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(scrapers.UserAgent),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	var html string
	err := chromedp.Run(browserCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Referer": Referer}),
		chromedp.Navigate(target),
		chromedp.WaitReady(`body`, chromedp.ByQuery),
		chromedp.OuterHTML(`html`, &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, &models.FetchError{Source: Source, Op: "render", Err: err}
	}

	return s.parseDocument(strings.NewReader(html), base)
}

func (s *Scraper) parseDocument(r io.Reader, base *url.URL) ([]models.Offer, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, &models.FetchError{Source: Source, Op: "parse", Err: err}
	}

	var offers []models.Offer
	doc.Find(itemSelector).EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if i >= s.Limit {
			return false
		}
		if offer, ok := parseItem(sel, base); ok {
			offers = append(offers, offer)
		}
		return true
	})

	return offers, nil
}

func parseItem(sel *goquery.Selection, base *url.URL) (models.Offer, bool) {
	titleTag := sel.Find(titleSelector).First()
	priceTag := sel.Find(priceSelector).First()
	linkTag := sel.Find("a").First()
	if titleTag.Length() == 0 || priceTag.Length() == 0 || linkTag.Length() == 0 {
		return models.Offer{}, false
	}

	title := strings.TrimSpace(titleTag.Text())
	href, _ := linkTag.Attr("href")
	href = strings.TrimSpace(href)
	if title == "" || href == "" {
		return models.Offer{}, false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return models.Offer{}, false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return models.Offer{}, false
	}

	offer := models.Offer{
		Platform: Source,
		Title:    title,
		Link:     abs.String(),
	}
	if val, ok := price.Parse(priceTag.Text()); ok {
		offer.Price = &val
	}

	return offer, true
}

// Fallback is the offer shown when the search page yields nothing.
func Fallback(keyword string) models.Offer {
	return models.Offer{
		Platform: Source,
		Title:    FallbackTitle,
		Link:     fmt.Sprintf("%s?keyword=%s", FallbackURL, url.QueryEscape(keyword)),
	}
}
