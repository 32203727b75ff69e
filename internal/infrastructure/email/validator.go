package email

import (
	"context"
	"net"
	"net/http"
	"net/mail"
	"strings"

	domainerrors "nexuspay.backend/internal/domain/errors"
)

// Validation error codes surfaced in the error envelope
const (
	CodeInvalidEmail       = "INVALID_EMAIL"
	CodeDisposableEmail    = "DISPOSABLE_EMAIL"
	CodeUndeliverableEmail = "UNDELIVERABLE_EMAIL"
)

// Domains that hand out throwaway inboxes. Registration rejects these
// outright instead of wasting a verification email.
var disposableDomains = map[string]struct{}{
	"mailinator.com":    {},
	"guerrillamail.com": {},
	"10minutemail.com":  {},
	"tempmail.com":      {},
	"temp-mail.org":     {},
	"throwawaymail.com": {},
	"yopmail.com":       {},
	"getnada.com":       {},
	"trashmail.com":     {},
	"sharklasers.com":   {},
	"dispostable.com":   {},
	"maildrop.cc":       {},
}

// Validator checks address shape, disposable domains, and deliverability.
type Validator struct {
	lookupMX func(ctx context.Context, domain string) ([]*net.MX, error)
}

// NewValidator creates a validator backed by live DNS MX lookups
func NewValidator() *Validator {
	var resolver net.Resolver
	return &Validator{
		lookupMX: func(ctx context.Context, domain string) ([]*net.MX, error) {
			return resolver.LookupMX(ctx, domain)
		},
	}
}

// NewValidatorWithLookup creates a validator with a custom MX resolver
func NewValidatorWithLookup(lookup func(ctx context.Context, domain string) ([]*net.MX, error)) *Validator {
	return &Validator{lookupMX: lookup}
}

// Validate returns the normalized (lowercased) address or a validation error.
// DNS failures are treated as non-deliverable rather than upstream errors:
// a domain we cannot resolve is a domain we cannot mail.
func (v *Validator) Validate(ctx context.Context, address string) (string, error) {
	address = strings.ToLower(strings.TrimSpace(address))

	parsed, err := mail.ParseAddress(address)
	if err != nil || parsed.Address != address {
		return "", validationError(CodeInvalidEmail, "invalid email address")
	}

	at := strings.LastIndex(address, "@")
	domain := address[at+1:]
	if _, disposable := disposableDomains[domain]; disposable {
		return "", validationError(CodeDisposableEmail, "disposable email addresses are not allowed")
	}

	records, err := v.lookupMX(ctx, domain)
	if err != nil || len(records) == 0 {
		return "", validationError(CodeUndeliverableEmail, "email domain cannot receive mail")
	}
	return address, nil
}

func validationError(code, message string) *domainerrors.AppError {
	return domainerrors.NewAppError(http.StatusBadRequest, code, message, domainerrors.ErrInvalidInput).
		WithField("email")
}
