// Package web serves the search page, the JSON search API and its docs.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	scalargo "github.com/bdpiprava/scalar-go"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"price-compare/pkg/api"
	"price-compare/pkg/models"
)

var errBusy = errors.New("too many searches in progress")

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(
	template.New("index.html").
		Funcs(template.FuncMap{"price": formatPrice}).
		ParseFS(templateFS, "templates/index.html"),
)

// Searcher is what the server needs from the aggregation engine.
type Searcher interface {
	Aggregate(ctx context.Context, keyword string) ([]models.Offer, error)
}

type Options struct {
	// MaxConcurrent bounds searches in flight across all requests.
	MaxConcurrent  int
	RequestTimeout time.Duration
	DocsDir        string
	Logger         zerolog.Logger
}

type Server struct {
	search Searcher
	slots  chan struct{}
	opts   Options
}

func NewServer(search Searcher, opts Options) *Server {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	return &Server{
		search: search,
		slots:  make(chan struct{}, opts.MaxConcurrent),
		opts:   opts,
	}
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(
		RequestID(),
		Logging(s.opts.Logger),
		Recover(),
		Timeout(s.opts.RequestTimeout),
	)

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/api/search", s.handleSearch).Methods(http.MethodGet)
	r.HandleFunc("/docs", s.handleDocs).Methods(http.MethodGet)
	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)

	return r
}

// aggregate waits for a free search slot, giving up when ctx ends first.
func (s *Server) aggregate(ctx context.Context, keyword string) ([]models.Offer, error) {
	select {
	case s.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, errBusy
	}
	defer func() { <-s.slots }()

	return s.search.Aggregate(ctx, keyword)
}

type indexPage struct {
	Keyword string
	Offers  []models.Offer
	Error   string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var page indexPage
	status := http.StatusOK

	if r.Method == http.MethodPost || r.URL.Query().Has("keyword") {
		page.Keyword = r.FormValue("keyword")

		offers, err := s.aggregate(r.Context(), page.Keyword)
		switch {
		case errors.Is(err, errBusy):
			status = http.StatusServiceUnavailable
			page.Error = "搜尋人數過多，請稍後再試"
		case err != nil:
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("search failed")
			status = http.StatusInternalServerError
			page.Error = "搜尋服務暫時無法使用"
		default:
			page.Offers = offers
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := indexTemplate.Execute(w, page); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to render page")
	}
}

type searchResponse struct {
	Keyword string         `json:"keyword"`
	Offers  []models.Offer `json:"offers"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if !query.Has("q") {
		api.WriteBadRequest(w, r, "Missing query parameter q. Expected /api/search?q={keyword}")
		return
	}
	keyword := query.Get("q")

	offers, err := s.aggregate(r.Context(), keyword)
	switch {
	case errors.Is(err, errBusy):
		api.WriteServiceUnavailable(w, r, fmt.Sprintf("No search slot freed up: %v", err))
		return
	case err != nil:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("search failed")
		api.WriteInternalServerError(w, r, err)
		return
	}

	api.WriteJSON(w, r, http.StatusOK, searchResponse{Keyword: keyword, Offers: offers})
}

func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	html, err := scalargo.NewV2(
		scalargo.WithSpecDir(s.opts.DocsDir),
		scalargo.WithMetaDataOpts(
			scalargo.WithTitle("Price Compare API"),
		),
	)
	if err != nil {
		api.WriteInternalServerError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, html)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, "ok")
}

func formatPrice(p *int) string {
	if p == nil {
		return "無資料"
	}
	return strconv.Itoa(*p)
}
