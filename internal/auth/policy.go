package auth

import (
	"strings"
)

// Decision is the outcome of evaluating an email against the access policy.
type Decision struct {
	Admit bool
	Role  Role
}

// Policy admits members of the institution domain as students and members of the
// admin allow-list as admins. Everyone else is denied.
type Policy struct {
	domain string
	admins map[string]struct{}
}

// NewPolicy builds a Policy for the given institution domain and admin emails.
// The domain may be given with or without a leading "@".
func NewPolicy(domain string, adminEmails []string) *Policy {
	domain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "@")

	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		e = NormalizeEmail(e)
		if e != "" {
			admins[e] = struct{}{}
		}
	}

	return &Policy{domain: domain, admins: admins}
}

// Evaluate decides whether email may sign in and with which role.
// It never touches storage.
func (p *Policy) Evaluate(email string) Decision {
	email = NormalizeEmail(email)
	if email == "" {
		return Decision{}
	}

	if _, ok := p.admins[email]; ok {
		return Decision{Admit: true, Role: RoleAdmin}
	}

	if p.domain == "" {
		return Decision{}
	}

	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || strings.Contains(domain, "@") || domain != p.domain {
		return Decision{}
	}

	return Decision{Admit: true, Role: RoleStudent}
}

// Domain returns the institution domain without the "@".
func (p *Policy) Domain() string {
	return p.domain
}

// AdminCount returns the size of the allow-list, for startup logging.
func (p *Policy) AdminCount() int {
	return len(p.admins)
}
