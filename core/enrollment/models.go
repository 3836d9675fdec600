package enrollment

// Term is the (semester, academicYear) pair scoping a credit-load computation.
// Matching is exact string equality on both fields.
type Term struct {
	Semester     string `json:"semester" validate:"required"`
	AcademicYear string `json:"academic_year" validate:"required"`
}

type Course struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Credits float64 `json:"credits"`
}

type Schedule struct {
	ID           string `json:"id"`
	CourseID     string `json:"course_id"`
	Semester     string `json:"semester"`
	AcademicYear string `json:"academic_year"`
	Room         string `json:"room"`
}

// Enrollment is a foreign read model relating a student to a Course via a Schedule.
// The joins may be missing when the referenced records have been removed; consumers
// must tolerate nil Course/Schedule.
type Enrollment struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	Course    *Course   `json:"course,omitempty"`
	Schedule  *Schedule `json:"schedule,omitempty"`
}

// Load is the credit-load triple reported for a validated enrollment attempt.
type Load struct {
	CurrentUnits   float64 `json:"current_units"`
	ProjectedUnits float64 `json:"projected_units"`
	RemainingUnits float64 `json:"remaining_units"`
}
