package dummydb

import (
	"context"

	"github.com/trezcool/academia/core/enrollment"
)

type enrollmentRepository struct {
	db *enrollmentTable
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

// NewEnrollmentRepository returns the concrete type so tests can seed the read
// model through SetEnrollments.
func NewEnrollmentRepository(db *DB) *enrollmentRepository {
	return &enrollmentRepository{db: db.enrollment}
}

func (repo *enrollmentRepository) FindEnrollmentsForStudent(_ context.Context, studentID string) ([]enrollment.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	enrollments := make([]enrollment.Enrollment, len(repo.db.table[studentID]))
	copy(enrollments, repo.db.table[studentID])
	return enrollments, nil
}

// SetEnrollments seeds the read model; the core never writes enrollments.
func (repo *enrollmentRepository) SetEnrollments(studentID string, enrollments []enrollment.Enrollment) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.table[studentID] = enrollments
}
