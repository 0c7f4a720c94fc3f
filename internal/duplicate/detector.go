// Package duplicate implements the heuristic duplicate-candidate detector
// used at intake.
//
// The phone, email and name criteria are evaluated independently and the
// results are grouped per candidate, keeping only the highest-confidence
// match when a candidate hits more than one criterion.
package duplicate

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	id "passage/pkg/domain"
	dErrors "passage/pkg/domain-errors"
)

// MatchType names the criterion that produced a match.
type MatchType string

const (
	MatchPhone MatchType = "phone"
	MatchEmail MatchType = "email"
	MatchName  MatchType = "name"
)

// Confidence levels. Phone and email matches are near-certain; name matches
// carry the similarity ratio itself.
const (
	phoneConfidence = 95
	emailConfidence = 100

	// nameSimilarityThreshold is the minimum similarity ratio (0..100) for a
	// name match to be reported.
	nameSimilarityThreshold = 80

	// minNameQueryLen guards the fuzzy pass against trivially short queries.
	minNameQueryLen = 3

	// phoneSuffixLen is the number of trailing digits compared when the full
	// normalized numbers differ (handles country-code prefixes).
	phoneSuffixLen = 10
)

// Record is the directory's view of an existing candidate.
type Record struct {
	ID       id.CandidateID
	FullName string
	Phone    string
	Email    string
}

// Directory is the narrow read access the detector needs over existing
// candidates. Implementations pre-filter server-side; the detector applies
// the final matching rules.
type Directory interface {
	// FindByPhone returns candidates whose normalized phone equals the
	// normalized query or whose last phoneSuffixLen digits equal suffix.
	FindByPhone(ctx context.Context, normalized, suffix string) ([]Record, error)

	// FindByEmail returns candidates with exactly this email, case-sensitive
	// as stored.
	FindByEmail(ctx context.Context, email string) ([]Record, error)

	// FindByNamePrefix returns candidates whose full name starts with the
	// given first-word prefix, case-insensitive.
	FindByNamePrefix(ctx context.Context, prefix string) ([]Record, error)
}

// Query carries the intake fields to match against. Empty fields are
// skipped. ExcludeID drops the candidate being edited from the results.
type Query struct {
	Phone     string
	Email     string
	Name      string
	ExcludeID id.CandidateID
}

// Match is one potential duplicate.
type Match struct {
	CandidateID id.CandidateID
	FullName    string
	MatchType   MatchType
	Confidence  int
}

// Detector runs the duplicate heuristics over a candidate directory.
type Detector struct {
	directory Directory
}

// NewDetector constructs a detector over the given directory.
func NewDetector(directory Directory) *Detector {
	return &Detector{directory: directory}
}

// Find returns potential duplicates grouped per candidate, highest
// confidence first. Output order beyond that grouping is not contractual.
func (d *Detector) Find(ctx context.Context, q Query) ([]Match, error) {
	best := make(map[id.CandidateID]Match)

	keep := func(m Match) {
		if m.CandidateID == q.ExcludeID {
			return
		}
		if existing, ok := best[m.CandidateID]; !ok || m.Confidence > existing.Confidence {
			best[m.CandidateID] = m
		}
	}

	if phone := NormalizePhone(q.Phone); phone != "" {
		records, err := d.directory.FindByPhone(ctx, phone, phoneSuffix(phone))
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "phone lookup failed")
		}
		for _, r := range records {
			keep(Match{CandidateID: r.ID, FullName: r.FullName, MatchType: MatchPhone, Confidence: phoneConfidence})
		}
	}

	if q.Email != "" {
		records, err := d.directory.FindByEmail(ctx, q.Email)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "email lookup failed")
		}
		for _, r := range records {
			keep(Match{CandidateID: r.ID, FullName: r.FullName, MatchType: MatchEmail, Confidence: emailConfidence})
		}
	}

	if name := strings.TrimSpace(q.Name); len([]rune(name)) >= minNameQueryLen {
		prefix := firstWord(name)
		records, err := d.directory.FindByNamePrefix(ctx, prefix)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "name lookup failed")
		}
		for _, r := range records {
			sim := Similarity(name, r.FullName)
			if sim >= nameSimilarityThreshold {
				keep(Match{CandidateID: r.ID, FullName: r.FullName, MatchType: MatchName, Confidence: int(math.Round(sim))})
			}
		}
	}

	matches := make([]Match, 0, len(best))
	for _, m := range best {
		matches = append(matches, m)
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		return matches[i].CandidateID.String() < matches[j].CandidateID.String()
	})
	return matches, nil
}

// NormalizePhone strips spaces and dashes from a phone number.
func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, phone)
}

func phoneSuffix(normalized string) string {
	if len(normalized) <= phoneSuffixLen {
		return normalized
	}
	return normalized[len(normalized)-phoneSuffixLen:]
}

func firstWord(name string) string {
	if i := strings.IndexByte(name, ' '); i > 0 {
		return name[:i]
	}
	return name
}

// Similarity returns a character-similarity ratio between two names in the
// range 0..100, case-insensitive. 100 means identical.
func Similarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == b {
		return 100
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return (1 - float64(dist)/float64(longest)) * 100
}
