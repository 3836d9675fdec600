package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core/user"
)

const pqUniqueViolation = "23505"

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sql.DB) *userRepository {
	return &userRepository{db: sqlx.NewDb(db, "postgres")}
}

type userRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	Role         string    `db:"role"`
	Department   string    `db:"department"`
	IsActive     bool      `db:"is_active"`
	PasswordHash []byte    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	LastLogin    null.Time `db:"last_login"`
}

func (r userRow) toCore() user.User {
	usr := user.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		Role:         user.Role(r.Role),
		Department:   r.Department,
		IsActive:     r.IsActive,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if r.LastLogin.Valid {
		usr.LastLogin = r.LastLogin.Time.UTC()
	}
	return usr
}

func newUserRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Email:        usr.Email,
		Role:         usr.Role.String(),
		Department:   usr.Department,
		IsActive:     usr.IsActive,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt,
		UpdatedAt:    usr.UpdatedAt,
		LastLogin:    null.NewTime(usr.LastLogin, !usr.LastLogin.IsZero()),
	}
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	query := `SELECT COUNT(*) FROM "user" WHERE email = ?`
	args := []interface{}{email}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, usr := range excludedUsers {
			ids = append(ids, usr.ID)
		}
		inQuery, inArgs, err := sqlx.In(`SELECT COUNT(*) FROM "user" WHERE email = ? AND id NOT IN (?)`, email, ids)
		if err != nil {
			return errors.Wrap(err, "building uniqueness query")
		}
		query, args = inQuery, inArgs
	}

	var count int
	if err := repo.db.GetContext(ctx, &count, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if count > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.NewString()
	row := newUserRow(usr)

	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO "user" (id, name, email, role, department, is_active, password_hash, created_at, updated_at, last_login)
		VALUES (:id, :name, :email, :role, :department, :is_active, :password_hash, :created_at, :updated_at, :last_login)`,
		row,
	)
	if err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == pqUniqueViolation {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) QueryAllUsers(ctx context.Context) ([]user.User, error) {
	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM "user" ORDER BY created_at DESC`); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toCore())
	}
	return users, nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	var row userRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM "user" WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user by id")
	}
	return row.toCore(), nil
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var row userRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM "user" WHERE email = $1`, email); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user by email")
	}
	return row.toCore(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE "user"
		SET name = :name, email = :email, role = :role, department = :department,
		    is_active = :is_active, password_hash = :password_hash,
		    updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`,
		newUserRow(usr),
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo *userRepository) DeleteUser(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM "user" WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.ErrNotFound
	}
	return nil
}

type instructorProfileRow struct {
	UserID          string         `db:"user_id"`
	MaxHoursPerWeek int            `db:"max_hours_per_week"`
	Specializations pq.StringArray `db:"specializations"`
	Availability    []byte         `db:"availability"`
}

func (r instructorProfileRow) toCore() (user.InstructorProfile, error) {
	prof := user.InstructorProfile{
		UserID:          r.UserID,
		MaxHoursPerWeek: r.MaxHoursPerWeek,
		Specializations: r.Specializations,
		Availability:    make(map[string]user.TimeRange),
	}
	if len(r.Availability) > 0 {
		if err := json.Unmarshal(r.Availability, &prof.Availability); err != nil {
			return user.InstructorProfile{}, errors.Wrap(err, "decoding availability")
		}
	}
	return prof, nil
}

func (repo *userRepository) CreateInstructorProfile(ctx context.Context, prof user.InstructorProfile) (user.InstructorProfile, error) {
	availability, err := json.Marshal(prof.Availability)
	if err != nil {
		return user.InstructorProfile{}, errors.Wrap(err, "encoding availability")
	}
	_, err = repo.db.ExecContext(ctx, `
		INSERT INTO instructor_profile (user_id, max_hours_per_week, specializations, availability)
		VALUES ($1, $2, $3, $4)`,
		prof.UserID, prof.MaxHoursPerWeek, pq.StringArray(prof.Specializations), availability,
	)
	if err != nil {
		return user.InstructorProfile{}, errors.Wrap(err, "inserting instructor profile")
	}
	return prof, nil
}

func (repo *userRepository) GetInstructorProfile(ctx context.Context, userID string) (user.InstructorProfile, error) {
	var row instructorProfileRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM instructor_profile WHERE user_id = $1`, userID); err != nil {
		if err == sql.ErrNoRows {
			return user.InstructorProfile{}, user.ErrNotFound
		}
		return user.InstructorProfile{}, errors.Wrap(err, "getting instructor profile")
	}
	return row.toCore()
}

func (repo *userRepository) DeleteInstructorProfile(ctx context.Context, userID string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM instructor_profile WHERE user_id = $1`, userID)
	if err != nil {
		return errors.Wrap(err, "deleting instructor profile")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.ErrNotFound
	}
	return nil
}

type studentProfileRow struct {
	UserID          string         `db:"user_id"`
	StudentNumber   string         `db:"student_number"`
	Department      string         `db:"department"`
	Year            int            `db:"year"`
	Section         string         `db:"section"`
	EnrolledCourses pq.StringArray `db:"enrolled_courses"`
}

func (r studentProfileRow) toCore() user.StudentProfile {
	return user.StudentProfile{
		UserID:          r.UserID,
		StudentNumber:   r.StudentNumber,
		Department:      r.Department,
		Year:            r.Year,
		Section:         r.Section,
		EnrolledCourses: r.EnrolledCourses,
	}
}

func (repo *userRepository) CreateStudentProfile(ctx context.Context, prof user.StudentProfile) (user.StudentProfile, error) {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO student_profile (user_id, student_number, department, year, section, enrolled_courses)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		prof.UserID, prof.StudentNumber, prof.Department, prof.Year, prof.Section, pq.StringArray(prof.EnrolledCourses),
	)
	if err != nil {
		return user.StudentProfile{}, errors.Wrap(err, "inserting student profile")
	}
	return prof, nil
}

func (repo *userRepository) GetStudentProfile(ctx context.Context, userID string) (user.StudentProfile, error) {
	var row studentProfileRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM student_profile WHERE user_id = $1`, userID); err != nil {
		if err == sql.ErrNoRows {
			return user.StudentProfile{}, user.ErrNotFound
		}
		return user.StudentProfile{}, errors.Wrap(err, "getting student profile")
	}
	return row.toCore(), nil
}

func (repo *userRepository) DeleteStudentProfile(ctx context.Context, userID string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM student_profile WHERE user_id = $1`, userID)
	if err != nil {
		return errors.Wrap(err, "deleting student profile")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.ErrNotFound
	}
	return nil
}
