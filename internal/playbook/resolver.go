// Package playbook matches classified detections to response playbooks
// and manages the resulting incident assignments.
package playbook

import (
	"regexp"
	"strings"

	"github.com/snakeguard/snakeguard-go/internal/datastore"
)

var (
	parenthetical = regexp.MustCompile(`\([^)]*\)`)
	nonAlnum      = regexp.MustCompile(`[^a-z0-9 ]+`)
	spaces        = regexp.MustCompile(`\s+`)
)

// NormalizeSpecies canonicalizes a species name for matching:
// lowercase, parenthetical text stripped, non-alphanumerics stripped,
// whitespace collapsed.
func NormalizeSpecies(species string) string {
	s := strings.ToLower(species)
	s = parenthetical.ReplaceAllString(s, " ")
	s = nonAlnum.ReplaceAllString(s, " ")
	s = spaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Resolver finds the best playbook for a risk level and species.
type Resolver struct {
	ds datastore.Interface
}

// NewResolver returns a resolver backed by the given store.
func NewResolver(ds datastore.Interface) *Resolver {
	return &Resolver{ds: ds}
}

// Resolve picks a playbook by the fallback chain: exact species match,
// then the generic (nil species) playbook for the risk level, then any
// playbook with the risk level. Returns nil when riskLevel is empty or
// nothing matches; neither case is an error, callers treat a missing
// playbook as optional.
func (r *Resolver) Resolve(riskLevel, species string) (*datastore.Playbook, error) {
	if riskLevel == "" {
		return nil, nil
	}

	playbooks, err := r.ds.FindPlaybooks(riskLevel)
	if err != nil {
		return nil, err
	}
	if len(playbooks) == 0 {
		return nil, nil
	}

	return Match(playbooks, species), nil
}

// Match applies the fallback chain to an already loaded playbook list.
// First match wins at each tier.
func Match(playbooks []datastore.Playbook, species string) *datastore.Playbook {
	if len(playbooks) == 0 {
		return nil
	}

	if normalized := NormalizeSpecies(species); normalized != "" {
		for i := range playbooks {
			if playbooks[i].Species == nil {
				continue
			}
			if NormalizeSpecies(*playbooks[i].Species) == normalized {
				return &playbooks[i]
			}
		}
	}

	for i := range playbooks {
		if playbooks[i].Species == nil || strings.TrimSpace(*playbooks[i].Species) == "" {
			return &playbooks[i]
		}
	}

	return &playbooks[0]
}
