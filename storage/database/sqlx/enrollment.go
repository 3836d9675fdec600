package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core/enrollment"
)

type enrollmentRepository struct {
	db *sqlx.DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *sql.DB) *enrollmentRepository {
	return &enrollmentRepository{db: sqlx.NewDb(db, "postgres")}
}

// enrollmentRow carries the LEFT JOINed course and schedule columns; either side
// may be entirely NULL when the referenced record is gone.
type enrollmentRow struct {
	ID        string `db:"id"`
	StudentID string `db:"student_id"`

	CourseID      null.String  `db:"course_id"`
	CourseName    null.String  `db:"course_name"`
	CourseCredits null.Float64 `db:"course_credits"`

	ScheduleID       null.String `db:"schedule_id"`
	ScheduleCourseID null.String `db:"schedule_course_id"`
	Semester         null.String `db:"semester"`
	AcademicYear     null.String `db:"academic_year"`
	Room             null.String `db:"room"`
}

func (r enrollmentRow) toCore() enrollment.Enrollment {
	enr := enrollment.Enrollment{
		ID:        r.ID,
		StudentID: r.StudentID,
	}
	if r.CourseID.Valid {
		enr.Course = &enrollment.Course{
			ID:      r.CourseID.String,
			Name:    r.CourseName.String,
			Credits: r.CourseCredits.Float64,
		}
	}
	if r.ScheduleID.Valid {
		enr.Schedule = &enrollment.Schedule{
			ID:           r.ScheduleID.String,
			CourseID:     r.ScheduleCourseID.String,
			Semester:     r.Semester.String,
			AcademicYear: r.AcademicYear.String,
			Room:         r.Room.String,
		}
	}
	return enr
}

func (repo *enrollmentRepository) FindEnrollmentsForStudent(ctx context.Context, studentID string) ([]enrollment.Enrollment, error) {
	var rows []enrollmentRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT e.id, e.student_id,
		       c.id   AS course_id, c.name AS course_name, c.credits AS course_credits,
		       s.id   AS schedule_id, s.course_id AS schedule_course_id,
		       s.semester, s.academic_year, s.room
		FROM enrollment e
		LEFT JOIN course c ON c.id = e.course_id
		LEFT JOIN schedule s ON s.id = e.schedule_id
		WHERE e.student_id = $1`,
		studentID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	enrollments := make([]enrollment.Enrollment, 0, len(rows))
	for _, row := range rows {
		enrollments = append(enrollments, row.toCore())
	}
	return enrollments, nil
}
