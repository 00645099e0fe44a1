// Package gate decides who may enter the portal. It runs the admission policy, provisions
// the directory record and issues the session token, failing closed at every step.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"placement/internal/auth"
	"placement/internal/directory"
	"placement/internal/session"
)

// Provisioner creates or touches the directory record of an admitted user.
type Provisioner interface {
	ProvisionOrTouch(ctx context.Context, identity auth.Identity, role auth.Role) (directory.User, error)
}

// Result is the outcome of a successful sign-in.
type Result struct {
	Token  string
	Claims session.Claims
	User   directory.User
}

// Gate composes the policy, directory and session issuer.
type Gate struct {
	policy    *auth.Policy
	directory Provisioner
	issuer    *session.Issuer
	logger    *slog.Logger
}

// New wires a Gate.
func New(policy *auth.Policy, dir Provisioner, issuer *session.Issuer, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		policy:    policy,
		directory: dir,
		issuer:    issuer,
		logger:    logger,
	}
}

// Issuer exposes the session issuer for cookie lifetimes and refresh checks.
func (g *Gate) Issuer() *session.Issuer {
	return g.issuer
}

// SignIn admits identity, provisions its record and issues a session.
// Denials return auth.ErrAccessDenied; store failures return directory.ErrUnavailable.
// No token is issued unless every step succeeds.
func (g *Gate) SignIn(ctx context.Context, identity auth.Identity) (Result, error) {
	email := auth.NormalizeEmail(identity.Email)
	if email == "" {
		signInsTotal.WithLabelValues(outcomeDenied, "").Inc()
		g.logger.Info("sign-in denied", "reason", "missing email")
		return Result{}, auth.ErrAccessDenied
	}
	if !identity.EmailVerified {
		signInsTotal.WithLabelValues(outcomeDenied, "").Inc()
		g.logger.Info("sign-in denied", "email", email, "reason", "email not verified")
		return Result{}, auth.ErrAccessDenied
	}

	decision := g.policy.Evaluate(email)
	if !decision.Admit {
		signInsTotal.WithLabelValues(outcomeDenied, "").Inc()
		g.logger.Info("sign-in denied", "email", email, "reason", "policy")
		return Result{}, auth.ErrAccessDenied
	}

	identity.Email = email
	user, err := g.directory.ProvisionOrTouch(ctx, identity, decision.Role)
	if err != nil {
		if errors.Is(err, directory.ErrUnavailable) {
			signInsTotal.WithLabelValues(outcomeDirectoryUnavailable, string(decision.Role)).Inc()
			g.logger.Error("sign-in denied: directory unavailable", "op", "provision", "email", email, "error", err)
			return Result{}, err
		}
		if errors.Is(err, auth.ErrAccessDenied) {
			signInsTotal.WithLabelValues(outcomeDenied, "").Inc()
			return Result{}, err
		}
		signInsTotal.WithLabelValues(outcomeError, string(decision.Role)).Inc()
		g.logger.Error("sign-in failed", "op", "provision", "email", email, "error", err)
		return Result{}, fmt.Errorf("provision %s: %w", email, err)
	}

	token, claims, err := g.issuer.Issue(email, decision.Role)
	if err != nil {
		signInsTotal.WithLabelValues(outcomeError, string(decision.Role)).Inc()
		g.logger.Error("sign-in failed", "op", "issue", "email", email, "error", err)
		return Result{}, err
	}

	signInsTotal.WithLabelValues(outcomeAdmitted, string(decision.Role)).Inc()
	g.logger.Info("sign-in admitted", "email", email, "role", decision.Role)
	return Result{Token: token, Claims: claims, User: user}, nil
}

// CurrentSession returns the verified claims of token, or nil when it is missing or invalid.
func (g *Gate) CurrentSession(token string) *session.Claims {
	if token == "" {
		return nil
	}
	claims, err := g.issuer.Verify(token)
	if err != nil {
		sessionVerifyFailuresTotal.Inc()
		g.logger.Debug("session rejected", "error", err)
		return nil
	}
	return &claims
}

// Refresh re-issues a session for the same email with the role the policy assigns now.
// It returns auth.ErrAccessDenied when the email is no longer admitted.
func (g *Gate) Refresh(claims session.Claims) (string, session.Claims, error) {
	decision := g.policy.Evaluate(claims.Email)
	if !decision.Admit {
		g.logger.Info("session refresh denied", "email", claims.Email)
		return "", session.Claims{}, auth.ErrAccessDenied
	}

	token, refreshed, err := g.issuer.Issue(claims.Email, decision.Role)
	if err != nil {
		return "", session.Claims{}, err
	}
	sessionRefreshesTotal.Inc()
	return token, refreshed, nil
}
