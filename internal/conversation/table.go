package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/ashureev/onboard-chat/internal/domain"
	"github.com/ashureev/onboard-chat/internal/nhtsa"
	"github.com/ashureev/onboard-chat/internal/validate"
)

// verification names the external check a step needs after extraction.
type verification int

const (
	verifyNone verification = iota
	verifyVIN
	verifyMake
)

// step is one row of the transition table.
type step struct {
	// field is the user-facing name of what the state collects.
	field   string
	extract validate.Extractor
	verify  verification
	// commit writes the accepted value into the session.
	commit func(s *domain.Session, v validate.Value, verdict nhtsa.Verdict)
	// next picks the following state once commit has run.
	next func(s *domain.Session, v validate.Value) domain.State
}

func goTo(state domain.State) func(*domain.Session, validate.Value) domain.State {
	return func(*domain.Session, validate.Value) domain.State { return state }
}

// transitions builds the full transition table. now feeds the year range check.
func transitions(now func() time.Time) map[domain.State]step {
	return map[domain.State]step{
		domain.StateZipCode: {
			field:   "ZIP code",
			extract: validate.ZipCode,
			commit:  func(s *domain.Session, v validate.Value, _ nhtsa.Verdict) { s.ZipCode = v.Text },
			next:    goTo(domain.StateFullName),
		},
		domain.StateFullName: {
			field:   "full name",
			extract: validate.FullName,
			commit:  func(s *domain.Session, v validate.Value, _ nhtsa.Verdict) { s.FullName = v.Text },
			next:    goTo(domain.StateEmail),
		},
		domain.StateEmail: {
			field:   "email address",
			extract: validate.Email,
			commit:  func(s *domain.Session, v validate.Value, _ nhtsa.Verdict) { s.Email = v.Text },
			next:    goTo(domain.StateVehicleChoice),
		},
		domain.StateVehicleChoice: {
			field:   "choice between VIN and year/make/body type",
			extract: validate.VehicleChoice,
			commit: func(s *domain.Session, v validate.Value, _ nhtsa.Verdict) {
				mode := domain.ModeManual
				if v.Text == validate.ChoiceVIN {
					mode = domain.ModeVIN
				}
				s.Draft = &domain.Vehicle{Mode: mode}
			},
			next: func(_ *domain.Session, v validate.Value) domain.State {
				if v.Text == validate.ChoiceVIN {
					return domain.StateVehicleVIN
				}
				return domain.StateVehicleYear
			},
		},
		domain.StateVehicleVIN: {
			field:   "17-character VIN",
			extract: validate.VIN,
			verify:  verifyVIN,
			commit: func(s *domain.Session, v validate.Value, verdict nhtsa.Verdict) {
				d := s.DraftVehicle()
				d.Mode = domain.ModeVIN
				d.VIN = v.Text
				d.Make = verdict.Make
				d.Model = verdict.Model
				d.Year = verdict.Year
				d.BodyType = verdict.BodyClass
				d.Warning = verdict.Warning
			},
			next: goTo(domain.StateVehicleUse),
		},
		domain.StateVehicleYear: {
			field:   "vehicle year",
			extract: validate.Year(now),
			commit: func(s *domain.Session, v validate.Value, _ nhtsa.Verdict) {
				d := s.DraftVehicle()
				d.Mode = domain.ModeManual
				d.Year = v.Int
			},
			next: goTo(domain.StateVehicleMake),
		},
		domain.StateVehicleMake: {
			field:   "vehicle make",
			extract: validate.Make,
			verify:  verifyMake,
			commit: func(s *domain.Session, v validate.Value, verdict nhtsa.Verdict) {
				d := s.DraftVehicle()
				d.Make = v.Text
				d.Warning = verdict.Warning
			},
			next: goTo(domain.StateVehicleBody),
		},
		domain.StateVehicleBody: {
			field:   "vehicle body type",
			extract: validate.BodyType,
			commit:  func(s *domain.Session, v validate.Value, _ nhtsa.Verdict) { s.DraftVehicle().BodyType = v.Text },
			next:    goTo(domain.StateVehicleUse),
		},
		domain.StateVehicleUse: {
			field:   "vehicle use",
			extract: validate.VehicleUse,
			commit: func(s *domain.Session, v validate.Value, _ nhtsa.Verdict) {
				s.DraftVehicle().Use = domain.VehicleUse(v.Text)
			},
			next: goTo(domain.StateBlindSpotWarning),
		},
		domain.StateBlindSpotWarning: {
			field:   "blind spot warning answer",
			extract: validate.YesNo("blind spot warning"),
			commit: func(s *domain.Session, v validate.Value, _ nhtsa.Verdict) {
				has := validate.Affirmative(v)
				s.DraftVehicle().BlindSpotWarning = &has
			},
			next: func(s *domain.Session, _ validate.Value) domain.State {
				if s.DraftVehicle().Use == domain.UseCommuting {
					return domain.StateCommuteDays
				}
				return domain.StateAnnualMileage
			},
		},
		domain.StateCommuteDays: {
			field:   "commute days per week",
			extract: validate.CommuteDays,
			commit: func(s *domain.Session, v validate.Value, _ nhtsa.Verdict) {
				days := v.Int
				s.DraftVehicle().DaysPerWeek = &days
			},
			next: goTo(domain.StateCommuteMiles),
		},
		domain.StateCommuteMiles: {
			field:   "one-way commute miles",
			extract: validate.CommuteMiles,
			commit: func(s *domain.Session, v validate.Value, _ nhtsa.Verdict) {
				miles := v.Int
				s.DraftVehicle().OneWayMiles = &miles
			},
			next: finalizeVehicle,
		},
		domain.StateAnnualMileage: {
			field:   "annual mileage",
			extract: validate.AnnualMileage,
			commit: func(s *domain.Session, v validate.Value, _ nhtsa.Verdict) {
				miles := v.Int
				s.DraftVehicle().AnnualMileage = &miles
			},
			next: finalizeVehicle,
		},
		domain.StateAddAnotherVehicle: {
			field:   "answer about adding another vehicle",
			extract: validate.YesNo("add another vehicle"),
			commit: func(s *domain.Session, v validate.Value, _ nhtsa.Verdict) {
				if validate.Affirmative(v) {
					s.Draft = nil
				}
			},
			next: func(_ *domain.Session, v validate.Value) domain.State {
				if validate.Affirmative(v) {
					return domain.StateVehicleChoice
				}
				return domain.StateLicenseType
			},
		},
		domain.StateLicenseType: {
			field:   "license type",
			extract: validate.LicenseType,
			commit:  func(s *domain.Session, v validate.Value, _ nhtsa.Verdict) { s.LicenseType = v.Text },
			next:    goTo(domain.StateLicenseStatus),
		},
		domain.StateLicenseStatus: {
			field:   "license status",
			extract: validate.LicenseStatus,
			commit:  func(s *domain.Session, v validate.Value, _ nhtsa.Verdict) { s.LicenseStatus = v.Text },
			next:    goTo(domain.StateComplete),
		},
	}
}

// finalizeVehicle moves the completed draft into the vehicle list. An
// incomplete draft routes back to its first missing field.
func finalizeVehicle(s *domain.Session, _ validate.Value) domain.State {
	if s.FinalizeDraft() {
		return domain.StateAddAnotherVehicle
	}
	return missingVehicleState(s.Draft)
}

func missingVehicleState(v *domain.Vehicle) domain.State {
	switch {
	case v == nil || v.Mode == "":
		return domain.StateVehicleChoice
	case v.Mode == domain.ModeVIN && v.VIN == "":
		return domain.StateVehicleVIN
	case v.Mode == domain.ModeManual && v.Year == 0:
		return domain.StateVehicleYear
	case v.Mode == domain.ModeManual && v.Make == "":
		return domain.StateVehicleMake
	case v.Mode == domain.ModeManual && v.BodyType == "":
		return domain.StateVehicleBody
	case v.Use == "":
		return domain.StateVehicleUse
	case v.BlindSpotWarning == nil:
		return domain.StateBlindSpotWarning
	case v.Use == domain.UseCommuting && v.DaysPerWeek == nil:
		return domain.StateCommuteDays
	case v.Use == domain.UseCommuting && v.OneWayMiles == nil:
		return domain.StateCommuteMiles
	case v.Use != domain.UseCommuting && v.AnnualMileage == nil:
		return domain.StateAnnualMileage
	default:
		return domain.StateAddAnotherVehicle
	}
}

// Outcome is the result of applying one message to the state machine.
type Outcome struct {
	From domain.State
	To   domain.State
	// Field is what From collects.
	Field    string
	Advanced bool
	// Reason explains a rejected answer in user-facing words.
	Reason string
	// Warning is set when the answer was accepted without external verification.
	Warning string
}

// Machine applies messages to sessions using the transition table.
type Machine struct {
	steps    map[domain.State]step
	verifier nhtsa.Verifier
}

// NewMachine creates a state machine. now defaults to time.Now.
func NewMachine(verifier nhtsa.Verifier, now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	return &Machine{steps: transitions(now), verifier: verifier}
}

// Field returns the user-facing name of what state collects.
func (m *Machine) Field(state domain.State) string {
	return m.steps[state].field
}

// Next interprets msg for the session's current state. On success the value
// is committed and the state advances one step; otherwise s is untouched.
// The terminal state never changes.
func (m *Machine) Next(ctx context.Context, s *domain.Session, msg string) Outcome {
	out := Outcome{From: s.State, To: s.State}
	st, ok := m.steps[s.State]
	if !ok {
		return out
	}
	out.Field = st.field

	v, err := st.extract.Extract(msg)
	if err != nil {
		out.Reason = reasonOf(err)
		return out
	}

	verdict := nhtsa.Verdict{Valid: true}
	switch st.verify {
	case verifyVIN:
		verdict = m.verifier.DecodeVIN(ctx, v.Text)
	case verifyMake:
		verdict = m.verifier.ValidateYearMake(ctx, s.DraftVehicle().Year, v.Text)
	}
	if !verdict.Valid {
		out.Reason = verdict.Reason
		return out
	}

	st.commit(s, v, verdict)
	out.To = st.next(s, v)
	out.Advanced = true
	out.Warning = verdict.Warning
	s.State = out.To
	return out
}

func reasonOf(err error) string {
	var verr *validate.Error
	if errors.As(err, &verr) {
		return verr.Reason
	}
	return err.Error()
}
