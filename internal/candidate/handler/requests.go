package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	dErrors "passage/pkg/domain-errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type intakeRequest struct {
	FullName   string `json:"full_name" validate:"required,max=128"`
	NationalID string `json:"national_id" validate:"required,len=13,numeric"`
	Phone      string `json:"phone" validate:"required,max=32"`
	Email      string `json:"email" validate:"omitempty,email"`
	BatchID    string `json:"batch_id" validate:"omitempty,uuid"`
	CampusID   string `json:"campus_id" validate:"omitempty,uuid"`
	TradeID    string `json:"trade_id" validate:"omitempty,uuid"`
	ProgramID  string `json:"program_id" validate:"omitempty,uuid"`
}

type transitionRequest struct {
	Target  string `json:"target" validate:"required"`
	Remarks string `json:"remarks" validate:"omitempty,max=512"`
}

type atRiskRequest struct {
	// Empty reason clears the flag.
	Reason string `json:"reason" validate:"omitempty,max=256"`
}

func checkRequest(req any) error {
	if err := validate.Struct(req); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid request")
	}
	return nil
}

func optionalUUID(s string) uuid.UUID {
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return u
}
