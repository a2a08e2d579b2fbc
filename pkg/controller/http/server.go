package http

import (
	"encoding/json"
	"maps"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gridcore/pkg/domain/model"
	"github.com/secmon-lab/gridcore/pkg/usecase"
	"github.com/secmon-lab/gridcore/pkg/utils/errutil"
	"github.com/secmon-lab/gridcore/pkg/utils/logging"
)

type Server struct {
	router *chi.Mux
	grids  map[string]*usecase.GridService
	hub    *Hub
	// originPatterns are the foreign origins allowed to open the feed
	originPatterns []string
}

type Options func(*Server)

// WithHub serves the record change feed of every grid from hub
func WithHub(hub *Hub) Options {
	return func(s *Server) {
		s.hub = hub
	}
}

// WithOriginPatterns lets pages of the given host patterns open the change
// feed. Without it only same origin pages can connect.
func WithOriginPatterns(patterns ...string) Options {
	return func(s *Server) {
		s.originPatterns = append(s.originPatterns, patterns...)
	}
}

// New routes the grid endpoints under /api/{table}
func New(grids []*usecase.GridService, opts ...Options) (*Server, error) {
	r := chi.NewRouter()

	s := &Server{
		router: r,
		grids:  make(map[string]*usecase.GridService, len(grids)),
	}
	for _, g := range grids {
		id := g.Grid().ID
		if _, dup := s.grids[id]; dup {
			return nil, goerr.Wrap(model.ErrConfiguration, "duplicated grid ID", goerr.V(model.TableIDKey, id))
		}
		s.grids[id] = g
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/api/grids", s.gridsHandler)
	r.Route("/api/{table}", func(r chi.Router) {
		r.Use(s.gridContext)
		r.Post(model.GridListPath, listHandler)
		r.Get(model.GridListPath, listHandler)
		r.Post(model.GridCreatePath, createHandler)
		r.Post(model.GridUpdatePath, updateHandler)
		r.Post(model.GridDeletePath, deleteHandler)
		r.Post(model.GridOptionsPath+"{field}", optionsHandler)
		r.Get(model.GridOptionsPath+"{field}", optionsHandler)
		if s.hub != nil {
			r.Get(model.GridFeedPath, s.hub.Handler(s.originPatterns...))
		}
	})

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.Default().Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// gridsHandler lists the served grids
func (s *Server) gridsHandler(w http.ResponseWriter, r *http.Request) {
	type gridResponse struct {
		ID     string   `json:"id"`
		Title  string   `json:"title"`
		Fields []string `json:"fields"`
	}
	type response struct {
		Grids []gridResponse `json:"grids"`
	}

	resp := response{Grids: []gridResponse{}}
	for _, id := range slices.Sorted(maps.Keys(s.grids)) {
		g := s.grids[id]
		resp.Grids = append(resp.Grids, gridResponse{
			ID:     g.Grid().ID,
			Title:  g.Grid().Title,
			Fields: g.Schema().Names(),
		})
	}
	writeJSON(w, r, resp)
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "failed to marshal response"), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data) //nolint:errcheck // header already committed
}
