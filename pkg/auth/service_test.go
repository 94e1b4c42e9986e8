package auth

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealsourcer/orgsearch/pkg/observability"
	"github.com/dealsourcer/orgsearch/pkg/orgs"
)

type captureMailer struct {
	email string
	code  string
	err   error
}

func (m *captureMailer) SendAccessCode(ctx context.Context, email, code string) error {
	m.email = email
	m.code = code
	return m.err
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, *captureMailer, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mailer := &captureMailer{}
	svc := NewService(db, mailer, testLogger())

	return svc, mock, mailer, func() { db.Close() }
}

func TestServiceSignup(t *testing.T) {
	svc, mock, mailer, cleanup := newTestService(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO access_credentials").
		WithArgs("ada@example.com", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := svc.Signup(context.Background(), SignupRequest{
		Email:     "ada@example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Company:   "Analytical Engines Ltd",
	})
	require.NoError(t, err)

	assert.Equal(t, "ada@example.com", mailer.email)
	assert.Regexp(t, "^[0-9A-F]{6}$", mailer.code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceSignup_Validation(t *testing.T) {
	svc, _, _, cleanup := newTestService(t)
	defer cleanup()

	tests := []struct {
		name      string
		req       SignupRequest
		wantField string
	}{
		{"missing email", SignupRequest{FirstName: "Ada", LastName: "Lovelace"}, "email"},
		{"malformed email", SignupRequest{Email: "not-an-address", FirstName: "Ada", LastName: "Lovelace"}, "email"},
		{"missing first name", SignupRequest{Email: "a@b.com", LastName: "Lovelace"}, "first_name"},
		{"missing last name", SignupRequest{Email: "a@b.com", FirstName: "Ada"}, "last_name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Signup(context.Background(), tt.req)

			var validationErr *orgs.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.wantField, validationErr.Field)
		})
	}
}

func TestServiceSignup_MailerFailure(t *testing.T) {
	svc, mock, mailer, cleanup := newTestService(t)
	defer cleanup()

	mailer.err = errors.New("smtp unreachable")

	mock.ExpectExec("INSERT INTO access_credentials").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := svc.Signup(context.Background(), SignupRequest{
		Email:     "ada@example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	assert.Error(t, err)
}

func credentialRow(code string, expiresAt time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"code", "user_info", "expires_at"}).
		AddRow(code, []byte(`{"first_name":"Ada","last_name":"Lovelace","company":"AE Ltd"}`), expiresAt)
}

func TestServiceVerifyCode(t *testing.T) {
	svc, mock, _, cleanup := newTestService(t)
	defer cleanup()

	mock.ExpectQuery("SELECT code, user_info, expires_at").
		WithArgs("ada@example.com").
		WillReturnRows(credentialRow("A1B2C3", time.Now().Add(30*time.Minute)))

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM access_credentials").
		WithArgs("ada@example.com").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO users").
		WithArgs("ada@example.com", "Ada", "Lovelace", "AE Ltd").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO api_tokens").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "ada@example.com").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	user, token, err := svc.VerifyCode(context.Background(), "ada@example.com", "a1b2c3")
	require.NoError(t, err)

	assert.Equal(t, "Ada", user.FirstName)
	assert.Equal(t, "AE Ltd", user.Company)
	assert.Contains(t, token, TokenPrefix)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceVerifyCode_WrongCode(t *testing.T) {
	svc, mock, _, cleanup := newTestService(t)
	defer cleanup()

	mock.ExpectQuery("SELECT code, user_info, expires_at").
		WithArgs("ada@example.com").
		WillReturnRows(credentialRow("A1B2C3", time.Now().Add(30*time.Minute)))

	_, _, err := svc.VerifyCode(context.Background(), "ada@example.com", "FFFFFF")
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestServiceVerifyCode_Expired(t *testing.T) {
	svc, mock, _, cleanup := newTestService(t)
	defer cleanup()

	mock.ExpectQuery("SELECT code, user_info, expires_at").
		WithArgs("ada@example.com").
		WillReturnRows(credentialRow("A1B2C3", time.Now().Add(-time.Minute)))
	mock.ExpectExec("DELETE FROM access_credentials").
		WithArgs("ada@example.com").
		WillReturnResult(sqlmock.NewResult(0, 1))

	// Even the right code fails once expired.
	_, _, err := svc.VerifyCode(context.Background(), "ada@example.com", "A1B2C3")
	assert.ErrorIs(t, err, ErrInvalidCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceVerifyCode_UnknownEmail(t *testing.T) {
	svc, mock, _, cleanup := newTestService(t)
	defer cleanup()

	mock.ExpectQuery("SELECT code, user_info, expires_at").
		WithArgs("ghost@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"code", "user_info", "expires_at"}))

	_, _, err := svc.VerifyCode(context.Background(), "ghost@example.com", "A1B2C3")
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestServiceVerifyCode_SingleUse(t *testing.T) {
	svc, mock, _, cleanup := newTestService(t)
	defer cleanup()

	mock.ExpectQuery("SELECT code, user_info, expires_at").
		WithArgs("ada@example.com").
		WillReturnRows(credentialRow("A1B2C3", time.Now().Add(30*time.Minute)))
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM access_credentials").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO users").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO api_tokens").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, _, err := svc.VerifyCode(context.Background(), "ada@example.com", "A1B2C3")
	require.NoError(t, err)

	// The consumed code is gone, so a replay sees no credential.
	mock.ExpectQuery("SELECT code, user_info, expires_at").
		WithArgs("ada@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"code", "user_info", "expires_at"}))

	_, _, err = svc.VerifyCode(context.Background(), "ada@example.com", "A1B2C3")
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestServiceRequestLoginCode_ExistingUser(t *testing.T) {
	svc, mock, mailer, cleanup := newTestService(t)
	defer cleanup()

	mock.ExpectQuery("SELECT first_name, last_name").
		WithArgs("ada@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"first_name", "last_name", "company"}).
			AddRow("Ada", "Lovelace", "AE Ltd"))
	mock.ExpectExec("INSERT INTO access_credentials").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := svc.RequestLoginCode(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, mailer.code)
}

func TestServiceRequestLoginCode_UnknownEmail(t *testing.T) {
	svc, mock, mailer, cleanup := newTestService(t)
	defer cleanup()

	mock.ExpectQuery("SELECT first_name, last_name").
		WithArgs("ghost@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"first_name", "last_name", "company"}))

	// Succeeds without issuing anything.
	err := svc.RequestLoginCode(context.Background(), "ghost@example.com")
	require.NoError(t, err)
	assert.Empty(t, mailer.code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceValidateToken(t *testing.T) {
	svc, mock, _, cleanup := newTestService(t)
	defer cleanup()

	token, tokenHash, _, err := NewTokenGenerator().GenerateToken()
	require.NoError(t, err)

	mock.ExpectQuery("SELECT u.email").
		WithArgs(tokenHash).
		WillReturnRows(sqlmock.NewRows([]string{"email", "first_name", "last_name", "company", "created_at"}).
			AddRow("ada@example.com", "Ada", "Lovelace", "", time.Now()))

	user, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
}

func TestServiceValidateToken_Invalid(t *testing.T) {
	svc, mock, _, cleanup := newTestService(t)
	defer cleanup()

	_, err := svc.ValidateToken(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	token, _, _, err := NewTokenGenerator().GenerateToken()
	require.NoError(t, err)

	mock.ExpectQuery("SELECT u.email").
		WillReturnRows(sqlmock.NewRows([]string{"email", "first_name", "last_name", "company", "created_at"}))

	_, err = svc.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestServicePurgeExpiredCredentials(t *testing.T) {
	svc, mock, _, cleanup := newTestService(t)
	defer cleanup()

	mock.ExpectExec("DELETE FROM access_credentials WHERE expires_at").
		WillReturnResult(sqlmock.NewResult(0, 5))

	purged, err := svc.PurgeExpiredCredentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), purged)
}

func TestServiceCountUsers(t *testing.T) {
	svc, mock, _, cleanup := newTestService(t)
	defer cleanup()

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	n, err := svc.CountUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
}

func TestServiceMetrics(t *testing.T) {
	svc, mock, _, cleanup := newTestService(t)
	defer cleanup()

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	svc.SetMetrics(metrics)

	mock.ExpectExec("INSERT INTO access_credentials").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := svc.Signup(context.Background(), SignupRequest{
		Email:     "ada@example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AccessCodesIssuedTotal))

	mock.ExpectQuery("SELECT code, user_info, expires_at").
		WithArgs("ada@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"code", "user_info", "expires_at"}).
			AddRow("ABC123", `{"first_name":"Ada","last_name":"Lovelace"}`, time.Now().Add(time.Hour)))

	_, _, err = svc.VerifyCode(context.Background(), "ada@example.com", "WRONG1")
	assert.ErrorIs(t, err, ErrInvalidCode)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.VerificationsTotal.WithLabelValues("failure")))
}
