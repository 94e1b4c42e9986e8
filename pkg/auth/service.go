package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dealsourcer/orgsearch/pkg/observability"
	"github.com/dealsourcer/orgsearch/pkg/orgs"
)

// ErrInvalidCode covers every verification failure: unknown email, wrong
// code, expired code. One error keeps responses from leaking which emails
// have pending signups.
var ErrInvalidCode = errors.New("invalid or expired code")

// ErrInvalidToken indicates a malformed, unknown or expired API token.
var ErrInvalidToken = errors.New("invalid or expired token")

// User is a verified account.
type User struct {
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Company   string    `json:"company,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// SignupRequest is the payload for POST /signup.
type SignupRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company,omitempty"`
}

// userInfo is the signup payload persisted alongside the access code so
// the users row can be created at verification time.
type userInfo struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company,omitempty"`
}

// Service implements signup, verification and token issuance.
type Service struct {
	db      *sql.DB
	mailer  Mailer
	tokens  *TokenGenerator
	logger  *logrus.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewService creates the auth service.
func NewService(db *sql.DB, mailer Mailer, logger *logrus.Logger) *Service {
	return &Service{
		db:     db,
		mailer: mailer,
		tokens: NewTokenGenerator(),
		logger: logger,
		now:    time.Now,
	}
}

// SetMetrics enables signup and verification counters. A nil value is
// allowed.
func (s *Service) SetMetrics(m *observability.Metrics) {
	s.metrics = m
}

// Signup validates the request, stores a fresh access code and mails it.
// The code is never returned to the caller.
func (s *Service) Signup(ctx context.Context, req SignupRequest) error {
	if err := validateEmail(req.Email); err != nil {
		return err
	}
	if req.FirstName == "" {
		return orgs.NewValidationError("first_name", "is required")
	}
	if req.LastName == "" {
		return orgs.NewValidationError("last_name", "is required")
	}

	info, err := json.Marshal(userInfo{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Company:   req.Company,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal signup payload: %w", err)
	}

	return s.issueCode(ctx, req.Email, info)
}

// RequestLoginCode re-issues a code for an existing user. An unknown email
// succeeds without side effects so the endpoint cannot be used to probe
// registrations.
func (s *Service) RequestLoginCode(ctx context.Context, email string) error {
	if err := validateEmail(email); err != nil {
		return err
	}

	var info userInfo
	err := s.db.QueryRowContext(ctx,
		"SELECT first_name, last_name, coalesce(company, '') FROM users WHERE email = $1",
		email,
	).Scan(&info.FirstName, &info.LastName, &info.Company)
	if err == sql.ErrNoRows {
		s.logger.WithField("email", email).Info("login code requested for unknown email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup user: %w: %v", orgs.ErrBackendUnavailable, err)
	}

	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal user info: %w", err)
	}

	return s.issueCode(ctx, email, data)
}

func (s *Service) issueCode(ctx context.Context, email string, info []byte) error {
	code, err := GenerateAccessCode()
	if err != nil {
		return err
	}

	expiresAt := s.now().Add(AccessCodeTTL)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO access_credentials (email, code, user_info, expires_at)
		VALUES ($1, $2, $3::jsonb, $4)
	`, email, code, string(info), expiresAt)
	if err != nil {
		return fmt.Errorf("store access code: %w: %v", orgs.ErrBackendUnavailable, err)
	}

	if err := s.mailer.SendAccessCode(ctx, email, code); err != nil {
		s.logger.WithError(err).WithField("email", email).Error("failed to send access code")
		return fmt.Errorf("failed to deliver access code: %w", err)
	}

	s.metrics.AccessCodeIssued()
	s.logger.WithField("email", email).Info("access code issued")
	return nil
}

// VerifyCode exchanges a valid access code for a bearer token. The newest
// credential for the email is checked; expired or non-matching codes fail
// with ErrInvalidCode. A consumed code is deleted along with any older
// codes for the same email.
func (s *Service) VerifyCode(ctx context.Context, email, code string) (*User, string, error) {
	if err := validateEmail(email); err != nil {
		return nil, "", err
	}
	if code == "" {
		return nil, "", orgs.NewValidationError("access_code", "is required")
	}

	var (
		storedCode string
		infoJSON   []byte
		expiresAt  time.Time
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT code, user_info, expires_at
		FROM access_credentials
		WHERE email = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, email).Scan(&storedCode, &infoJSON, &expiresAt)
	if err == sql.ErrNoRows {
		s.metrics.VerificationAttempt("failure")
		return nil, "", ErrInvalidCode
	}
	if err != nil {
		return nil, "", fmt.Errorf("load credential: %w: %v", orgs.ErrBackendUnavailable, err)
	}

	if s.now().After(expiresAt) {
		// Expired codes are dead either way; removing them keeps the table
		// from accumulating between purge runs.
		s.db.ExecContext(ctx, "DELETE FROM access_credentials WHERE email = $1", email)
		s.metrics.VerificationAttempt("failure")
		return nil, "", ErrInvalidCode
	}

	if !CompareAccessCodes(storedCode, code) {
		s.metrics.VerificationAttempt("failure")
		return nil, "", ErrInvalidCode
	}

	var info userInfo
	if err := json.Unmarshal(infoJSON, &info); err != nil {
		return nil, "", fmt.Errorf("failed to decode signup payload: %w", err)
	}

	token, tokenHash, tokenPrefix, err := s.tokens.GenerateToken()
	if err != nil {
		return nil, "", err
	}

	// Consume the code, create the user and persist the token hash in one
	// transaction so a partial failure cannot leave a spent code behind.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, "", fmt.Errorf("begin verification: %w: %v", orgs.ErrBackendUnavailable, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM access_credentials WHERE email = $1", email,
	); err != nil {
		return nil, "", fmt.Errorf("consume access code: %w: %v", orgs.ErrBackendUnavailable, err)
	}

	user := &User{
		Email:     email,
		FirstName: info.FirstName,
		LastName:  info.LastName,
		Company:   info.Company,
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO users (email, first_name, last_name, company)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO NOTHING
	`, user.Email, user.FirstName, user.LastName, nullIfEmpty(user.Company)); err != nil {
		return nil, "", fmt.Errorf("create user: %w: %v", orgs.ErrBackendUnavailable, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO api_tokens (token_hash, token_prefix, email)
		VALUES ($1, $2, $3)
	`, tokenHash, tokenPrefix, email); err != nil {
		return nil, "", fmt.Errorf("store token: %w: %v", orgs.ErrBackendUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, "", fmt.Errorf("commit verification: %w: %v", orgs.ErrBackendUnavailable, err)
	}

	s.metrics.VerificationAttempt("success")
	s.logger.WithFields(logrus.Fields{
		"email":        email,
		"token_prefix": tokenPrefix,
	}).Info("access code verified, token issued")

	return user, token, nil
}

// CountUsers returns the number of verified users, for the users gauge.
func (s *Service) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w: %v", orgs.ErrBackendUnavailable, err)
	}
	return n, nil
}

// ValidateToken resolves a bearer token to its user.
func (s *Service) ValidateToken(ctx context.Context, token string) (*User, error) {
	if err := s.tokens.ValidateTokenFormat(token); err != nil {
		return nil, ErrInvalidToken
	}

	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT u.email, u.first_name, u.last_name, coalesce(u.company, ''), u.created_at
		FROM api_tokens t
		JOIN users u ON u.email = t.email
		WHERE t.token_hash = $1
		  AND (t.expires_at IS NULL OR t.expires_at > NOW())
	`, s.tokens.HashToken(token)).Scan(
		&user.Email, &user.FirstName, &user.LastName, &user.Company, &user.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("lookup token: %w: %v", orgs.ErrBackendUnavailable, err)
	}

	return &user, nil
}

// PurgeExpiredCredentials deletes access codes past their expiry. Run
// periodically by the maintenance binary.
func (s *Service) PurgeExpiredCredentials(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM access_credentials WHERE expires_at < NOW()")
	if err != nil {
		return 0, fmt.Errorf("purge credentials: %w: %v", orgs.ErrBackendUnavailable, err)
	}
	return res.RowsAffected()
}

func validateEmail(email string) error {
	if email == "" {
		return orgs.NewValidationError("email", "is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return orgs.NewValidationError("email", "is not a valid address")
	}
	return nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
