// Package auth implements email-verified signup and API token issuance.
//
// # Overview
//
// Signup stores a short-lived access code and mails it to the requester;
// verification exchanges a valid code for a bearer API token. Codes are
// 6 upper-case hex characters from crypto/rand, expire after one hour,
// and are single use. Verification failures are reported with one generic
// error so callers cannot probe which emails are registered.
//
// # API Tokens
//
//	// Token format: orgsearch_[base64url(32 random bytes)]
//	// Stored as SHA256 hash; the plaintext is returned exactly once.
//
// # Key Components
//
// Service: signup, code verification, login-code reissue, expired-code purge
//
//	svc := auth.NewService(db, mailer, logger)
//	err := svc.Signup(ctx, auth.SignupRequest{Email: "a@b.com", ...})
//
// Middleware: bearer-token guard for protected read endpoints
//
//	router.Use(auth.Middleware(svc))
package auth
