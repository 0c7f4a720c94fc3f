package duplicate

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "passage/pkg/domain"
)

// stubDirectory applies the documented pre-filters over a fixed record set.
type stubDirectory struct {
	records []Record
}

func (d *stubDirectory) FindByPhone(_ context.Context, normalized, suffix string) ([]Record, error) {
	var out []Record
	for _, r := range d.records {
		p := NormalizePhone(r.Phone)
		if p == normalized || (len(p) >= len(suffix) && strings.HasSuffix(p, suffix)) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (d *stubDirectory) FindByEmail(_ context.Context, email string) ([]Record, error) {
	var out []Record
	for _, r := range d.records {
		if r.Email == email {
			out = append(out, r)
		}
	}
	return out, nil
}

func (d *stubDirectory) FindByNamePrefix(_ context.Context, prefix string) ([]Record, error) {
	var out []Record
	for _, r := range d.records {
		if strings.HasPrefix(strings.ToLower(r.FullName), strings.ToLower(prefix)) {
			out = append(out, r)
		}
	}
	return out, nil
}

func TestDetectorFind(t *testing.T) {
	ctx := context.Background()
	aliRaza := Record{ID: id.NewCandidateID(), FullName: "Ali Raza", Phone: "0300-1234567", Email: "ali.raza@example.com"}
	aliRaja := Record{ID: id.NewCandidateID(), FullName: "Ali Raja", Phone: "0301-7654321", Email: "ali.raja@example.com"}
	bilal := Record{ID: id.NewCandidateID(), FullName: "Bilal Khan", Phone: "+92 300 1234567", Email: "bilal@example.com"}

	detector := NewDetector(&stubDirectory{records: []Record{aliRaza, aliRaja, bilal}})

	t.Run("phone match ignores spaces and dashes", func(t *testing.T) {
		matches, err := detector.Find(ctx, Query{Phone: "0300 1234567"})
		require.NoError(t, err)
		require.Len(t, matches, 2)
		for _, m := range matches {
			assert.Equal(t, MatchPhone, m.MatchType)
			assert.Equal(t, 95, m.Confidence)
		}
	})

	t.Run("phone suffix bridges country-code prefixes", func(t *testing.T) {
		matches, err := detector.Find(ctx, Query{Phone: "+92-300-1234567"})
		require.NoError(t, err)
		ids := make(map[string]bool)
		for _, m := range matches {
			ids[m.CandidateID.String()] = true
		}
		assert.True(t, ids[bilal.ID.String()], "exact normalized match expected")
		assert.True(t, ids[aliRaza.ID.String()], "suffix match expected across prefixes")
	})

	t.Run("email match is exact with confidence 100", func(t *testing.T) {
		matches, err := detector.Find(ctx, Query{Email: "ali.raza@example.com"})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, aliRaza.ID, matches[0].CandidateID)
		assert.Equal(t, MatchEmail, matches[0].MatchType)
		assert.Equal(t, 100, matches[0].Confidence)
	})

	t.Run("similar names match above the threshold", func(t *testing.T) {
		matches, err := detector.Find(ctx, Query{Name: "Ali Raza"})
		require.NoError(t, err)
		require.Len(t, matches, 2)
		// Exact name first, then the one-edit variant.
		assert.Equal(t, aliRaza.ID, matches[0].CandidateID)
		assert.Equal(t, 100, matches[0].Confidence)
		assert.Equal(t, aliRaja.ID, matches[1].CandidateID)
		assert.Equal(t, MatchName, matches[1].MatchType)
		assert.Equal(t, 88, matches[1].Confidence)
	})

	t.Run("short name queries are skipped", func(t *testing.T) {
		matches, err := detector.Find(ctx, Query{Name: "Al"})
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("one candidate matching several criteria appears once at highest confidence", func(t *testing.T) {
		matches, err := detector.Find(ctx, Query{
			Phone: "0300-1234567",
			Email: "ali.raza@example.com",
			Name:  "Ali Raza",
		})
		require.NoError(t, err)

		count := 0
		for _, m := range matches {
			if m.CandidateID == aliRaza.ID {
				count++
				assert.Equal(t, MatchEmail, m.MatchType)
				assert.Equal(t, 100, m.Confidence)
			}
		}
		assert.Equal(t, 1, count, "candidate must be reported once")
	})

	t.Run("exclude drops the candidate being edited", func(t *testing.T) {
		matches, err := detector.Find(ctx, Query{Email: "ali.raza@example.com", ExcludeID: aliRaza.ID})
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("empty query matches nothing", func(t *testing.T) {
		matches, err := detector.Find(ctx, Query{})
		require.NoError(t, err)
		assert.Empty(t, matches)
	})
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, float64(100), Similarity("Ali Raza", "ali raza"))
	assert.InDelta(t, 87.5, Similarity("Ali Raza", "Ali Raja"), 0.01)
	assert.Less(t, Similarity("Ali Raza", "Zubair Ahmed"), 50.0)
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "+923001234567", NormalizePhone("+92 300-123 4567"))
	assert.Equal(t, "", NormalizePhone(" - "))
}
