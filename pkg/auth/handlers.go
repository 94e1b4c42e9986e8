package auth

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/dealsourcer/orgsearch/pkg/httputil"
	"github.com/dealsourcer/orgsearch/pkg/orgs"
)

// Handlers serves the signup and verification endpoints.
type Handlers struct {
	service *Service
	logger  *logrus.Logger
}

// NewHandlers creates auth handlers.
func NewHandlers(service *Service, logger *logrus.Logger) *Handlers {
	return &Handlers{service: service, logger: logger}
}

// RegisterRoutes registers auth routes
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/signup", h.signup).Methods("POST")
	r.HandleFunc("/verify-code", h.verifyCode).Methods("POST")
	r.HandleFunc("/request-login-code", h.requestLoginCode).Methods("POST")
}

// SignupResponse acknowledges a signup without echoing the code.
type SignupResponse struct {
	Message string `json:"message"`
}

// signup handles POST /signup
func (h *Handlers) signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := h.service.Signup(r.Context(), req); err != nil {
		h.writeServiceError(w, err, "signup failed")
		return
	}

	httputil.WriteCreated(w, SignupResponse{
		Message: "verification code sent",
	})
}

// VerifyCodeRequest is the payload for POST /verify-code.
type VerifyCodeRequest struct {
	Email      string `json:"email"`
	AccessCode string `json:"access_code"`
}

// VerifyCodeResponse carries the one-time plaintext token.
type VerifyCodeResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// verifyCode handles POST /verify-code
func (h *Handlers) verifyCode(w http.ResponseWriter, r *http.Request) {
	var req VerifyCodeRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user, token, err := h.service.VerifyCode(r.Context(), req.Email, req.AccessCode)
	if err != nil {
		if errors.Is(err, ErrInvalidCode) {
			httputil.WriteUnauthorized(w, ErrInvalidCode.Error())
			return
		}
		h.writeServiceError(w, err, "verification failed")
		return
	}

	httputil.WriteSuccess(w, VerifyCodeResponse{Token: token, User: user})
}

// RequestLoginCodeRequest is the payload for POST /request-login-code.
type RequestLoginCodeRequest struct {
	Email string `json:"email"`
}

// requestLoginCode handles POST /request-login-code
func (h *Handlers) requestLoginCode(w http.ResponseWriter, r *http.Request) {
	var req RequestLoginCodeRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := h.service.RequestLoginCode(r.Context(), req.Email); err != nil {
		h.writeServiceError(w, err, "login code request failed")
		return
	}

	// The acknowledgment is identical whether or not the email exists.
	httputil.WriteSuccess(w, SignupResponse{
		Message: "verification code sent if the account exists",
	})
}

func (h *Handlers) writeServiceError(w http.ResponseWriter, err error, logMsg string) {
	var validationErr *orgs.ValidationError
	switch {
	case errors.As(err, &validationErr):
		httputil.WriteValidationError(w, validationErr.Error())
	case errors.Is(err, orgs.ErrBackendUnavailable):
		h.logger.WithError(err).Error(logMsg)
		httputil.WriteServiceUnavailable(w, "service temporarily unavailable")
	default:
		h.logger.WithError(err).Error(logMsg)
		httputil.WriteInternalError(w, errors.New("internal server error"))
	}
}
