package serve

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/zvonler/wallspider/graph"
	"github.com/zvonler/wallspider/model"
)

// Server exposes crawls over HTTP as JSON.
type Server struct {
	crawler graph.NodeCrawler
	logger  *slog.Logger
	router  chi.Router
}

func NewServer(crawler graph.NodeCrawler, logger *slog.Logger) *Server {
	s := &Server{crawler: crawler, logger: logger}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/nodes/{nodeType}/{nodeID}", s.handleCrawl)

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// crawlOptions reads since, until and since_days_ago from the query string.
func crawlOptions(r *http.Request) (model.CrawlOptions, error) {
	var opts model.CrawlOptions
	q := r.URL.Query()

	var err error
	if v := q.Get("since"); v != "" {
		if opts.Since, err = strconv.ParseInt(v, 10, 64); err != nil {
			return opts, &graph.ValidationError{Field: "since", Value: v, Err: graph.ErrInvalidOption}
		}
	}
	if v := q.Get("until"); v != "" {
		if opts.Until, err = strconv.ParseInt(v, 10, 64); err != nil {
			return opts, &graph.ValidationError{Field: "until", Value: v, Err: graph.ErrInvalidOption}
		}
	}
	if v := q.Get("since_days_ago"); v != "" {
		if opts.SinceDaysAgo, err = strconv.Atoi(v); err != nil {
			return opts, &graph.ValidationError{Field: "since_days_ago", Value: v, Err: graph.ErrInvalidOption}
		}
	}
	return opts, nil
}

// StatusCode maps a crawl error onto the response status.
func StatusCode(err error) int {
	var ve *graph.ValidationError
	var te *graph.TransportError
	var me *graph.MalformedResponseError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	case errors.As(err, &te), errors.As(err, &me), errors.Is(err, graph.ErrPageLimit):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) handleCrawl(w http.ResponseWriter, r *http.Request) {
	nodeType := chi.URLParam(r, "nodeType")
	nodeID := chi.URLParam(r, "nodeID")

	opts, err := crawlOptions(r)
	if err == nil {
		var records []model.Record
		if records, err = s.crawler.Crawl(r.Context(), nodeID, nodeType, opts); err == nil {
			if records == nil {
				records = []model.Record{}
			}
			writeJSON(w, http.StatusOK, records)
			return
		}
	}

	status := StatusCode(err)
	s.logger.Warn("crawl request failed",
		"request_id", middleware.GetReqID(r.Context()),
		"status", status,
		"error", err)
	writeJSON(w, status, errorBody{Error: err.Error()})
}
