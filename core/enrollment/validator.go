package enrollment

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

// MaxTermCredits is the credit ceiling per student per term. Fixed policy, not
// configuration; callers cannot override it through this contract.
const MaxTermCredits float64 = 21

var (
	// errors
	ErrLoadExceeded = errors.New(
		"enrolling in this course would exceed the maximum credit load for the term; " +
			"please consult your academic advisor before adding more units",
	)

	errStudentIDRequired = errors.New("student_id is required")
	errCreditsNotFinite  = errors.New("proposed_credits must be a finite number")
	errTermRequired      = errors.New("semester and academic_year are both required")
)

type (
	// Repository is the read model over enrollments; each record comes joined
	// with its Course and Schedule where those still exist.
	Repository interface {
		FindEnrollmentsForStudent(ctx context.Context, studentID string) ([]Enrollment, error)
	}

	// Validator enforces the per-term credit ceiling on prospective enrollments.
	Validator struct {
		repo Repository
	}
)

func NewValidator(repo Repository) *Validator {
	return &Validator{repo: repo}
}

// Validate computes the student's committed credit load for the term, projects the
// proposed credits on top and enforces the ceiling. Precondition violations fail
// before any store access.
func (v *Validator) Validate(ctx context.Context, studentID string, proposedCredits float64, term Term) (Load, error) {
	studentID = core.CleanString(studentID)
	if studentID == "" {
		return Load{}, core.NewValidationError(errStudentIDRequired,
			core.FieldError{Field: "student_id", Error: errStudentIDRequired.Error()})
	}
	if !isFinite(proposedCredits) {
		return Load{}, core.NewValidationError(errCreditsNotFinite,
			core.FieldError{Field: "proposed_credits", Error: errCreditsNotFinite.Error()})
	}
	if term.Semester == "" || term.AcademicYear == "" {
		return Load{}, core.NewValidationError(errTermRequired,
			core.FieldError{Field: "term", Error: errTermRequired.Error()})
	}

	enrollments, err := v.repo.FindEnrollmentsForStudent(ctx, studentID)
	if err != nil {
		return Load{}, errors.Wrap(err, "fetching enrollments")
	}

	var current float64
	for _, enr := range enrollments {
		// a dangling enrollment cannot contribute units
		if enr.Course == nil || enr.Schedule == nil {
			continue
		}
		if enr.Schedule.Semester == term.Semester && enr.Schedule.AcademicYear == term.AcademicYear {
			current += finiteOrZero(enr.Course.Credits)
		}
	}

	projected := current + finiteOrZero(proposedCredits)
	if projected > MaxTermCredits {
		return Load{}, ErrLoadExceeded
	}
	return Load{
		CurrentUnits:   current,
		ProjectedUnits: projected,
		RemainingUnits: math.Max(0, MaxTermCredits-projected),
	}, nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func finiteOrZero(f float64) float64 {
	if !isFinite(f) {
		return 0
	}
	return f
}
