package search

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/dealsourcer/orgsearch/pkg/httputil"
	"github.com/dealsourcer/orgsearch/pkg/observability"
	"github.com/dealsourcer/orgsearch/pkg/orgs"
)

// Handlers serves the search endpoint.
type Handlers struct {
	service *Service
	logger  *observability.Logger
}

// NewHandlers creates search handlers.
func NewHandlers(service *Service, logger *observability.Logger) *Handlers {
	return &Handlers{service: service, logger: logger}
}

// RegisterRoutes registers search routes
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/search", h.search).Methods("GET")
}

// search handles GET /search
func (h *Handlers) search(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}

	resp, err := h.service.Search(r.Context(), filter)
	if err != nil {
		var validationErr *orgs.ValidationError
		switch {
		case errors.As(err, &validationErr):
			httputil.WriteValidationError(w, validationErr.Error())
		case errors.Is(err, orgs.ErrBackendUnavailable):
			h.logger.WithError(err).Error("search backend failure")
			httputil.WriteServiceUnavailable(w, "search backend unavailable")
		default:
			h.logger.WithError(err).Error("search failed")
			httputil.WriteInternalError(w, errors.New("internal server error"))
		}
		return
	}

	httputil.WriteSuccess(w, resp)
}

// parseFilter reads the query string into a Filter, rejecting non-integer
// limit and offset before anything reaches the query builder.
func parseFilter(w http.ResponseWriter, r *http.Request) (Filter, bool) {
	limit, err := httputil.ParseQueryInt(r, "limit", 0)
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return Filter{}, false
	}

	offset, err := httputil.ParseQueryInt(r, "offset", 0)
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return Filter{}, false
	}

	return Filter{
		Name:         httputil.ParseQueryString(r, "name", ""),
		Description:  httputil.ParseQueryString(r, "description", ""),
		Jurisdiction: httputil.ParseQueryString(r, "jurisdiction", ""),
		LegalForm:    httputil.ParseQueryString(r, "legal_form", ""),
		Status:       httputil.ParseQueryString(r, "status", ""),
		Limit:        limit,
		Offset:       offset,
	}, true
}
