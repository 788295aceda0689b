package service

import (
	"context"
	"errors"
	"strings"

	"github.com/lumenboard/lumenboard/platform/go/persistence"
)

// reservedSlugs can never become workspace slugs: they collide with product
// subdomains or invite abuse (admin impersonation, mail spoofing).
var reservedSlugs = map[string]struct{}{
	"app":       {},
	"api":       {},
	"admin":     {},
	"www":       {},
	"mail":      {},
	"smtp":      {},
	"help":      {},
	"support":   {},
	"docs":      {},
	"blog":      {},
	"status":    {},
	"assets":    {},
	"static":    {},
	"cdn":       {},
	"dashboard": {},
	"billing":   {},
	"login":     {},
	"signup":    {},
}

// Availability is the advisory result of a slug check.
type Availability struct {
	Available bool
	Reason    string
}

// CheckAvailability validates slug format, rejects reserved words, and checks
// the catalog for an existing workspace. The check is advisory only: the
// unique constraint hit at catalog insert time is the actual guard (see
// Create).
func (s *Service) CheckAvailability(ctx context.Context, slug string) (Availability, error) {
	normalized, err := persistence.NormalizeSlug(slug)
	if err != nil {
		return Availability{Available: false, Reason: "slug may only contain lowercase letters, digits and inner hyphens"}, nil
	}

	if _, ok := reservedSlugs[normalized]; ok {
		return Availability{Available: false, Reason: "this name is reserved"}, nil
	}

	if _, err := s.repo.GetBySlug(ctx, normalized); err == nil {
		return Availability{Available: false, Reason: "this name is already taken"}, nil
	} else if !errors.Is(err, ErrNotFound) {
		return Availability{}, err
	}

	return Availability{Available: true}, nil
}

// normalizeSlugInput lowercases eagerly so the advisory check and the insert
// agree on the canonical form.
func normalizeSlugInput(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}
