package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gridcore/pkg/domain/model"
	"github.com/secmon-lab/gridcore/pkg/usecase"
	"github.com/secmon-lab/gridcore/pkg/utils/errutil"
	"github.com/secmon-lab/gridcore/pkg/utils/logging"
)

type gridCtxKey struct{}

func gridFrom(ctx context.Context) *usecase.GridService {
	g, _ := ctx.Value(gridCtxKey{}).(*usecase.GridService)
	return g
}

// gridContext resolves {table} and parses the form of the request
func (s *Server) gridContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "table")
		g, ok := s.grids[id]
		if !ok {
			errutil.HandleHTTP(r.Context(), w, goerr.New("unknown grid", goerr.V(model.TableIDKey, id)), http.StatusNotFound)
			return
		}
		if err := r.ParseForm(); err != nil {
			errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "failed to parse form"), http.StatusBadRequest)
			return
		}

		ctx := context.WithValue(r.Context(), gridCtxKey{}, g)
		ctx = logging.With(ctx, logging.From(ctx).With("table", id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func listHandler(w http.ResponseWriter, r *http.Request) {
	q, err := model.ParseListQuery(r.Form)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	resp, err := gridFrom(r.Context()).List(r.Context(), q)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, r, resp)
}

func createHandler(w http.ResponseWriter, r *http.Request) {
	record, err := gridFrom(r.Context()).Create(r.Context(), usecase.FormDataFromValues(r.Form))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, r, model.NewRecordResponse(record))
}

func updateHandler(w http.ResponseWriter, r *http.Request) {
	record, err := gridFrom(r.Context()).Update(r.Context(), usecase.FormDataFromValues(r.Form))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, r, model.NewRecordResponse(record))
}

func deleteHandler(w http.ResponseWriter, r *http.Request) {
	g := gridFrom(r.Context())
	if err := g.Delete(r.Context(), r.Form.Get(g.Schema().KeyField())); err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, r, model.NewRecordResponse(nil))
}

func optionsHandler(w http.ResponseWriter, r *http.Request) {
	values := make(map[string]string, len(r.Form))
	for k := range r.Form {
		values[k] = r.Form.Get(k)
	}

	opts, err := gridFrom(r.Context()).Options(r.Context(), chi.URLParam(r, "field"), values)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, r, struct {
		model.Envelope
		Options model.ResolvedOptions `json:"Options"`
	}{
		Envelope: model.Envelope{Result: model.ResultOK},
		Options:  opts,
	})
}

// userErrors are answered with a failure envelope and status 200, so that
// clients show the message instead of a communication error
var userErrors = []error{
	model.ErrValidation,
	model.ErrRecordNotFound,
	model.ErrNoKeyField,
	model.ErrUnknownField,
}

func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	for _, target := range userErrors {
		if errors.Is(err, target) {
			logging.From(r.Context()).Warn("request rejected", logging.ErrAttr(err))
			writeJSON(w, r, model.ErrorEnvelope(err.Error()))
			return
		}
	}
	errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
}
