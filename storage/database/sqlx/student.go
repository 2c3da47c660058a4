package sqlxrepos

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/daruliman/pondok/core/student"
)

func itoa(i int) string { return strconv.Itoa(i) }

type studentRepository struct {
	db *sqlx.DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *sqlx.DB) student.Repository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) GetStudent(ctx context.Context, id uuid.UUID) (student.Student, error) {
	var s student.Student
	err := repo.db.GetContext(ctx, &s, `SELECT * FROM student WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return student.Student{}, student.ErrNotFound
	}
	return s, err
}

func (repo *studentRepository) QueryActiveResident(ctx context.Context) ([]student.Student, error) {
	students := make([]student.Student, 0)
	err := repo.db.SelectContext(ctx, &students,
		`SELECT * FROM student WHERE category = $1 AND status = $2 ORDER BY full_name`,
		student.CategoryResident, student.StatusActive)
	return students, err
}

func (repo *studentRepository) FilterStudents(ctx context.Context, filter student.QueryFilter) ([]student.Student, error) {
	q := `SELECT * FROM student WHERE 1=1`
	args := make([]interface{}, 0, 3)
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		idx := itoa(len(args))
		q += ` AND (full_name ILIKE $` + idx + ` OR code ILIKE $` + idx + `)`
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		q += ` AND category = $` + itoa(len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		q += ` AND status = $` + itoa(len(args))
	}
	q += ` ORDER BY full_name`

	students := make([]student.Student, 0)
	err := repo.db.SelectContext(ctx, &students, q, args...)
	return students, err
}
