package service

import (
	"context"
	"time"

	"passage/internal/screening/models"
	id "passage/pkg/domain"
)

// Collaborator eligibility facts. Each interface is a narrow existence or
// aggregate query against a collaborator aggregate (documents,
// undertakings, training records, visa processing, departure logistics). The
// lifecycle validator evaluates these facts and never mutates them.

// DocumentStage selects which mandatory document set a query is about.
type DocumentStage string

const (
	// StagePreDeparture is the document set required before screening starts.
	StagePreDeparture DocumentStage = "pre_departure"
	// StageRegistration is the document set required before training.
	StageRegistration DocumentStage = "registration"
)

// DocumentFacts answers document-presence queries.
type DocumentFacts interface {
	// MissingMandatory returns the document type names from the stage's
	// mandatory set that the candidate has not uploaded.
	MissingMandatory(ctx context.Context, candidateID id.CandidateID, stage DocumentStage) ([]string, error)
}

// NextOfKinFacts answers whether a next-of-kin record is on file.
type NextOfKinFacts interface {
	HasNextOfKin(ctx context.Context, candidateID id.CandidateID) (bool, error)
}

// ScreeningFacts answers which screening types the candidate has passed.
type ScreeningFacts interface {
	PassedTypes(ctx context.Context, candidateID id.CandidateID) (map[models.ScreeningType]bool, error)
}

// UndertakingFacts answers whether at least one undertaking is completed.
type UndertakingFacts interface {
	HasCompletedUndertaking(ctx context.Context, candidateID id.CandidateID) (bool, error)
}

// TrainingFacts answers assessment and certificate queries.
type TrainingFacts interface {
	FinalAssessmentPassed(ctx context.Context, candidateID id.CandidateID) (bool, error)
	CertificateIssued(ctx context.Context, candidateID id.CandidateID) (bool, error)
}

// VisaSnapshot is the visa-process milestone state as of the query.
type VisaSnapshot struct {
	VisaIssued      bool
	TradeTestPassed bool
	MedicalPassed   bool
}

// VisaFacts returns the visa-process snapshot, or nil when no record exists.
type VisaFacts interface {
	Snapshot(ctx context.Context, candidateID id.CandidateID) (*VisaSnapshot, error)
}

// DepartureSnapshot is the departure-logistics state as of the query.
type DepartureSnapshot struct {
	DepartureDate     *time.Time
	FlightNumber      string
	BriefingCompleted bool
}

// DepartureFacts returns the departure snapshot, or nil when no record
// exists.
type DepartureFacts interface {
	Snapshot(ctx context.Context, candidateID id.CandidateID) (*DepartureSnapshot, error)
}

// Facts bundles the collaborator queries the validator consumes.
type Facts struct {
	Documents    DocumentFacts
	NextOfKin    NextOfKinFacts
	Screenings   ScreeningFacts
	Undertakings UndertakingFacts
	Training     TrainingFacts
	Visa         VisaFacts
	Departure    DepartureFacts
}
