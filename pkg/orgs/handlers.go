package orgs

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/dealsourcer/orgsearch/pkg/httputil"
	"github.com/dealsourcer/orgsearch/pkg/observability"
)

// Handlers serves the organization detail and stats endpoints.
type Handlers struct {
	store  *Store
	logger *observability.Logger
}

// NewHandlers creates organization handlers backed by the given store.
func NewHandlers(store *Store, logger *observability.Logger) *Handlers {
	return &Handlers{store: store, logger: logger}
}

// RegisterRoutes registers organization routes
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/organization/{id}", h.getOrganization).Methods("GET")
	r.HandleFunc("/stats", h.getStats).Methods("GET")
}

// getOrganization handles GET /organization/{id}
func (h *Handlers) getOrganization(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	org, err := h.store.GetOrganization(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		httputil.WriteNotFoundError(w, "organization not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("openregisters_id", id).Error("failed to get organization")
		writeStoreError(w, err)
		return
	}

	httputil.WriteSuccess(w, org)
}

// getStats handles GET /stats
func (h *Handlers) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("failed to compute stats")
		writeStoreError(w, err)
		return
	}

	httputil.WriteSuccess(w, stats)
}

// writeStoreError maps store errors onto HTTP statuses. Backend failures
// become 503 so clients can distinguish them from bad requests; driver
// details stay in the logs.
func writeStoreError(w http.ResponseWriter, err error) {
	var validationErr *ValidationError
	switch {
	case errors.As(err, &validationErr):
		httputil.WriteValidationError(w, validationErr.Error())
	case errors.Is(err, ErrBackendUnavailable):
		httputil.WriteServiceUnavailable(w, "search backend unavailable")
	default:
		httputil.WriteInternalError(w, errors.New("internal server error"))
	}
}
