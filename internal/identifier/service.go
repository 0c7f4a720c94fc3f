// Package identifier issues and validates the system's human-facing
// identifiers: yearly application IDs, check-digit candidate codes, and the
// 13-digit national-ID checksum.
//
// Generation is deterministic given the sequence read; the sequence store
// serializes issuance per (scheme, year) so concurrent intakes never receive
// the same number.
package identifier

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Sequence schemes. Each scheme keeps an independent per-year counter.
const (
	SchemeApplication = "application"
	SchemeCandidate   = "candidate"
)

// SequenceStore hands out the next value of a monotonically increasing
// per-year counter. Values are never reused, even across deletions.
type SequenceStore interface {
	Next(ctx context.Context, scheme string, year int) (int, error)
}

// Service generates and validates identifiers.
type Service struct {
	sequences SequenceStore
	prefix    string
}

// New constructs the identifier service. prefix is the PFX segment of
// candidate codes.
func New(sequences SequenceStore, prefix string) (*Service, error) {
	if sequences == nil {
		return nil, fmt.Errorf("sequence store is required")
	}
	if prefix == "" {
		return nil, fmt.Errorf("candidate code prefix is required")
	}
	return &Service{sequences: sequences, prefix: prefix}, nil
}

// GenerateApplicationID issues the next application identifier for the
// year: "APP" + 4-digit year + zero-padded 6-digit sequence.
func (s *Service) GenerateApplicationID(ctx context.Context, year int) (string, error) {
	seq, err := s.sequences.Next(ctx, SchemeApplication, year)
	if err != nil {
		return "", fmt.Errorf("next application sequence: %w", err)
	}
	return fmt.Sprintf("APP%04d%06d", year, seq), nil
}

// GenerateCandidateCode issues the next check-digit candidate code for the
// year: PFX-YYYY-SSSSS-C, where C is a Luhn-style check digit over the
// 9-digit payload YYYY+SSSSS.
func (s *Service) GenerateCandidateCode(ctx context.Context, year int) (string, error) {
	seq, err := s.sequences.Next(ctx, SchemeCandidate, year)
	if err != nil {
		return "", fmt.Errorf("next candidate sequence: %w", err)
	}
	if seq > 99999 {
		return "", fmt.Errorf("candidate sequence %d exceeds the 5-digit space for year %d", seq, year)
	}
	payload := fmt.Sprintf("%04d%05d", year, seq)
	return fmt.Sprintf("%s-%04d-%05d-%d", s.prefix, year, seq, checkDigit(payload)), nil
}

// ValidateCandidateCode re-derives the check digit from the parsed
// year+sequence payload and compares. Malformed input returns false, never
// an error.
func (s *Service) ValidateCandidateCode(code string) bool {
	parts := strings.Split(code, "-")
	if len(parts) != 4 {
		return false
	}
	if parts[0] != s.prefix {
		return false
	}
	year, seq, check := parts[1], parts[2], parts[3]
	if len(year) != 4 || len(seq) != 5 || len(check) != 1 {
		return false
	}
	payload := year + seq
	if !digitsOnly(payload) || !digitsOnly(check) {
		return false
	}
	want := checkDigit(payload)
	got, _ := strconv.Atoi(check)
	return got == want
}

// ValidateNationalID verifies the 13-digit national-ID checksum: a weighted
// sum over the first 12 digits modulo 11, with a remainder of 10 mapping to
// 0, must equal the 13th digit.
func ValidateNationalID(id string) bool {
	if len(id) != 13 || !digitsOnly(id) {
		return false
	}
	weights := [12]int{1, 2, 3, 4, 5, 6, 7, 8, 9, 1, 2, 3}
	sum := 0
	for i := 0; i < 12; i++ {
		sum += int(id[i]-'0') * weights[i]
	}
	expected := sum % 11
	if expected == 10 {
		expected = 0
	}
	return int(id[12]-'0') == expected
}

// ValidateNationalID satisfies the service interface; the check itself is a
// pure function.
func (s *Service) ValidateNationalID(id string) bool {
	return ValidateNationalID(id)
}

// checkDigit computes the Luhn-style check digit over a digit string:
// double every digit at an even position counting from the right, subtract
// 9 from doubled values above 9, sum everything, and take (10 - sum mod 10)
// mod 10.
func checkDigit(payload string) int {
	sum := 0
	n := len(payload)
	for i := 0; i < n; i++ {
		d := int(payload[i] - '0')
		position := n - i // 1-based from the right
		if position%2 == 0 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	return (10 - sum%10) % 10
}

func digitsOnly(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
