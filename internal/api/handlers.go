package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/starford/siphon/internal/apperr"
	"github.com/starford/siphon/internal/collection"
	"github.com/starford/siphon/internal/frontmatter"
	"github.com/starford/siphon/internal/poem"
)

// Handler holds API route handlers.
type Handler struct {
	svc Service
}

// NewHandler creates a new Handler.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// ListCollections handles GET /api/collections.
//
//	@Summary	List collections from the latest build
//	@Tags		collections
//	@Produce	json
//	@Success	200	{object}	CollectionListResponse
//	@Router		/collections [get]
func (h *Handler) ListCollections(w http.ResponseWriter, r *http.Request) {
	idx, err := h.svc.Collections(r.Context())
	if err != nil {
		slog.Error("list collections failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, summarize(idx))
}

// GetCollection handles GET /api/collections/{name}. With ?format=text the
// rendered document is returned as is.
//
//	@Summary	Preview one collection document
//	@Tags		collections
//	@Produce	json
//	@Param		name	path		string	true	"Collection name"
//	@Param		format	query		string	false	"Response format"	Enums(json, text)
//	@Success	200		{object}	CollectionDetail
//	@Failure	404		{object}	errResponse
//	@Router		/collections/{name} [get]
func (h *Handler) GetCollection(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil || name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("collection name is required"))
		return
	}
	rec, text, err := h.svc.Preview(r.Context(), name)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		case frontmatter.KindOf(err) != 0, errors.Is(err, collection.ErrMissingRequiredField):
			writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
		default:
			slog.Error("preview collection failed", slog.String("collection", name), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	if r.URL.Query().Get("format") == "text" {
		writeText(w, http.StatusOK, text)
		return
	}
	writeJSON(w, http.StatusOK, CollectionDetail{Name: name, Record: rec, Rendered: text})
}

// GetPoem handles GET /api/poems/{name}. With source.clean_drafts set the
// text stops before the first draft section. ?format=text returns the text
// alone.
//
//	@Summary	Read one poem
//	@Tags		documents
//	@Produce	json
//	@Param		name	path		string	true	"Member name"
//	@Param		format	query		string	false	"Response format"	Enums(json, text)
//	@Success	200		{object}	builder.PoemView
//	@Failure	404		{object}	errResponse
//	@Router		/poems/{name} [get]
func (h *Handler) GetPoem(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil || name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("poem name is required"))
		return
	}
	view, err := h.svc.Poem(r.Context(), name)
	if errors.Is(err, apperr.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	if err != nil {
		slog.Error("get poem failed", slog.String("poem", name), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if r.URL.Query().Get("format") == "text" {
		writeText(w, http.StatusOK, view.Text)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// PoemCollections handles GET /api/poems/{name}/collections. name is the
// member name, as listed in collection documents.
//
//	@Summary	Collections a poem was built into
//	@Tags		collections
//	@Produce	json
//	@Param		name	path		string	true	"Member name"
//	@Success	200		{object}	PoemCollectionsResponse
//	@Router		/poems/{name}/collections [get]
func (h *Handler) PoemCollections(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil || name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("poem name is required"))
		return
	}
	cols, err := h.svc.MemberOf(r.Context(), name)
	if err != nil {
		slog.Error("poem collections failed", slog.String("poem", name), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if cols == nil {
		cols = []string{}
	}
	writeJSON(w, http.StatusOK, PoemCollectionsResponse{Name: name, Collections: cols})
}

// ParseFrontMatter handles POST /api/parse.
//
//	@Summary	Parse the header of a document
//	@Tags		documents
//	@Accept		json
//	@Produce	json
//	@Param		body	body		ParseRequest	true	"Document"
//	@Success	200		{object}	ParseResponse
//	@Failure	422		{object}	ParseErrorResponse
//	@Router		/parse [post]
func (h *Handler) ParseFrontMatter(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req ParseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	md, err := frontmatter.Parse(req.Content)
	if err != nil {
		resp := ParseErrorResponse{Error: err.Error(), Kind: frontmatter.KindOf(err).String()}
		var pe *frontmatter.ParseError
		if errors.As(err, &pe) {
			resp.Line = pe.Line
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}
	resp := ParseResponse{
		Fields:      make([]Field, 0, md.Len()),
		Published:   poem.IsPublished(md),
		Collections: poem.Collections(md),
	}
	for _, k := range md.Keys() {
		v, _ := md.Get(k)
		resp.Fields = append(resp.Fields, Field{Key: k, Value: v})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Build handles POST /api/build.
//
//	@Summary	Run a build now
//	@Tags		collections
//	@Produce	json
//	@Success	200	{object}	builder.Report
//	@Security	BearerAuth
//	@Router		/build [post]
func (h *Handler) Build(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Build(r.Context())
	if err != nil {
		slog.Error("build failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func summarize(idx *collection.Index) CollectionListResponse {
	out := CollectionListResponse{Collections: []CollectionSummary{}}
	for _, name := range idx.Names() {
		out.Collections = append(out.Collections, CollectionSummary{Name: name, Members: idx.Members(name)})
	}
	out.Total = len(out.Collections)
	return out
}
