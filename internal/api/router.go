package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/siphon/internal/builder"
	"github.com/starford/siphon/internal/collection"
)

// Service is what the API needs from the builder.
type Service interface {
	Build(ctx context.Context) (*builder.Report, error)
	Collections(ctx context.Context) (*collection.Index, error)
	Preview(ctx context.Context, name string) (collection.Record, string, error)
	MemberOf(ctx context.Context, document string) ([]string, error)
	Poem(ctx context.Context, name string) (builder.PoemView, error)
}

var _ Service = (*builder.Builder)(nil)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth guards POST /build.
// events, when non-nil, is served at GET /events.
func NewRouter(svc Service, authEnabled bool, token string, events http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()

	r.Get("/collections", h.ListCollections)
	r.Get("/collections/{name}", h.GetCollection)
	r.Get("/poems/{name}", h.GetPoem)
	r.Get("/poems/{name}/collections", h.PoemCollections)
	r.Post("/parse", h.ParseFrontMatter)
	if events != nil {
		r.Get("/events", events.ServeHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(authEnabled, token))
		r.Post("/build", h.Build)
	})

	return r
}
