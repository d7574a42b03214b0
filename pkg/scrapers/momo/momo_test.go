package momo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price-compare/pkg/models"
)

const searchPage = `
<!DOCTYPE html>
<html>
<body>
<ul class="prdListArea">
    <li class="goodsItem">
        <a href="/goods/GoodsDetail.jsp?i_code=1001">
            <h3 class="prdName"> Apple iPad 10.9吋 Wi-Fi 64G </h3>
            <p class="money"><b class="price">$12,990</b></p>
        </a>
    </li>
    <li class="goodsItem">
        <a href="https://www.momoshop.com.tw/goods/GoodsDetail.jsp?i_code=1002">
            <h3 class="prdName">iPad 保護殼</h3>
            <b class="price">洽詢</b>
        </a>
    </li>
    <li class="goodsItem">
        <h3 class="prdName">missing link</h3>
        <b class="price">$100</b>
    </li>
    <li class="goodsItem">
        <a href="/goods/GoodsDetail.jsp?i_code=1004"><h3 class="prdName">missing price</h3></a>
    </li>
    <li class="goodsItem">
        <a href="/goods/GoodsDetail.jsp?i_code=1005">
            <h3 class="prdName">Apple Pencil</h3>
            <b class="price">$3,990</b>
        </a>
    </li>
    <li class="goodsItem">
        <a href="/goods/GoodsDetail.jsp?i_code=1006">
            <h3 class="prdName">sixth entry</h3>
            <b class="price">$1</b>
        </a>
    </li>
</ul>
</body>
</html>
`

func htmlServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newTestScraper(ts *httptest.Server) *Scraper {
	scraper := NewScraper()
	scraper.SearchURL = ts.URL + "/mosearch/Search.jsp"
	scraper.AllowedDomains = nil
	return scraper
}

func requireFallback(t *testing.T, offers []models.Offer, keyword string) {
	t.Helper()
	require.Len(t, offers, 1)
	assert.Equal(t, Source, offers[0].Platform)
	assert.Equal(t, FallbackTitle, offers[0].Title)
	assert.Nil(t, offers[0].Price)
	assert.Equal(t, FallbackURL+"?keyword="+url.QueryEscape(keyword), offers[0].Link)
}

func requireSearchPageOffers(t *testing.T, offers []models.Offer) {
	t.Helper()

	// the sixth entry is past the cap, two of the first five are incomplete
	require.Len(t, offers, 3)

	assert.Equal(t, "Apple iPad 10.9吋 Wi-Fi 64G", offers[0].Title)
	require.NotNil(t, offers[0].Price)
	assert.Equal(t, 12990, *offers[0].Price)
	assert.Equal(t, "https://www.momoshop.com.tw/goods/GoodsDetail.jsp?i_code=1001", offers[0].Link)

	assert.Equal(t, "iPad 保護殼", offers[1].Title)
	assert.Nil(t, offers[1].Price)
	assert.Equal(t, "https://www.momoshop.com.tw/goods/GoodsDetail.jsp?i_code=1002", offers[1].Link)

	assert.Equal(t, "Apple Pencil", offers[2].Title)
	require.NotNil(t, offers[2].Price)
	assert.Equal(t, 3990, *offers[2].Price)

	for _, o := range offers {
		assert.Equal(t, Source, o.Platform)
	}
}

func TestScraper_Fetch(t *testing.T) {
	var got *http.Request
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, searchPage)
	}))
	defer ts.Close()

	offers := newTestScraper(ts).Fetch(context.Background(), "ipad")

	require.NotNil(t, got)
	assert.Equal(t, "ipad", got.URL.Query().Get("searchKeyword"))
	assert.Equal(t, "Mozilla/5.0", got.Header.Get("User-Agent"))
	assert.Equal(t, Referer, got.Header.Get("Referer"))

	requireSearchPageOffers(t, offers)
}

func TestScraper_parseDocument(t *testing.T) {
	scraper := NewScraper()
	base, err := url.Parse(BaseURL)
	require.NoError(t, err)

	offers, err := scraper.parseDocument(strings.NewReader(searchPage), base)
	require.NoError(t, err)
	requireSearchPageOffers(t, offers)
}

func TestScraper_parseDocument_SkipsNonHTTPLinks(t *testing.T) {
	page := `<ul>
    <li class="goodsItem"><a href="javascript:void(0)"><h3 class="prdName">script link</h3><b class="price">$10</b></a></li>
    <li class="goodsItem"><a href="mailto:shop@example.com"><h3 class="prdName">mail link</h3><b class="price">$20</b></a></li>
    <li class="goodsItem"><a href="//cdn.example.com/goods?i_code=7"><h3 class="prdName">protocol relative</h3><b class="price">$30</b></a></li>
    <li class="goodsItem"><a href="/goods/GoodsDetail.jsp?i_code=8"><h3 class="prdName">relative</h3><b class="price">$40</b></a></li>
</ul>`
	scraper := NewScraper()
	base, err := url.Parse(BaseURL)
	require.NoError(t, err)

	offers, err := scraper.parseDocument(strings.NewReader(page), base)
	require.NoError(t, err)
	require.Len(t, offers, 2)
	assert.Equal(t, "protocol relative", offers[0].Title)
	assert.Equal(t, "https://cdn.example.com/goods?i_code=7", offers[0].Link)
	assert.Equal(t, "relative", offers[1].Title)
	assert.Equal(t, BaseURL+"/goods/GoodsDetail.jsp?i_code=8", offers[1].Link)
}

func TestScraper_Fetch_Fallbacks(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "no result entries", status: http.StatusOK, body: `<html><body><p>查無商品</p></body></html>`},
		{name: "only incomplete entries", status: http.StatusOK, body: `<html><body><ul><li class="goodsItem"><h3 class="prdName">x</h3></li></ul></body></html>`},
		{name: "not found", status: http.StatusNotFound, body: `<html></html>`},
		{name: "bad gateway", status: http.StatusBadGateway, body: ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := htmlServer(t, tt.status, tt.body)
			offers := newTestScraper(ts).Fetch(context.Background(), "iphone 15 pro")
			requireFallback(t, offers, "iphone 15 pro")
		})
	}
}

func TestScraper_Search_NoResults(t *testing.T) {
	ts := htmlServer(t, http.StatusOK, `<html><body></body></html>`)

	_, err := newTestScraper(ts).Search(context.Background(), "ipad")
	require.ErrorIs(t, err, models.ErrNoResults)
}

func TestScraper_Fetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	scraper := newTestScraper(ts)
	scraper.Timeout = 50 * time.Millisecond

	start := time.Now()
	offers := scraper.Fetch(context.Background(), "ipad")

	requireFallback(t, offers, "ipad")
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestScraper_Fetch_Limit(t *testing.T) {
	ts := htmlServer(t, http.StatusOK, searchPage)

	scraper := newTestScraper(ts)
	scraper.Limit = 1

	offers := scraper.Fetch(context.Background(), "ipad")
	require.Len(t, offers, 1)
	assert.Equal(t, "Apple iPad 10.9吋 Wi-Fi 64G", offers[0].Title)
}
