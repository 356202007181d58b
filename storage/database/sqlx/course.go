package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/unicourses/core"
	"github.com/trezcool/unicourses/core/course"
)

const pqUniqueViolation = "23505"

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) *courseRepository {
	return &courseRepository{db: db}
}

func (repo courseRepository) getExec(svcExec []core.DBExecutor) sqlx.ExtContext {
	if len(svcExec) > 0 {
		if ext, ok := svcExec[0].(sqlx.ExtContext); ok {
			return ext
		}
	}
	return repo.db
}

func (repo courseRepository) trapNoRowsErr(err, sentinel error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return errors.Wrap(err, msg)
}

// Courses

type courseRow struct {
	ID              string       `db:"id"`
	Name            string       `db:"name"`
	Code            string       `db:"code"`
	Description     string       `db:"description"`
	Category        string       `db:"category"`
	AssignedTeacher string       `db:"assigned_teacher"`
	Capacity        int          `db:"capacity"`
	Active          bool         `db:"active"`
	CreatedAt       sql.NullTime `db:"created_at"`
	UpdatedAt       sql.NullTime `db:"updated_at"`
}

func (repo courseRepository) courseFromRow(row courseRow) course.Course {
	return course.Course{
		ID:              row.ID,
		Name:            row.Name,
		Code:            row.Code,
		Description:     row.Description,
		Category:        row.Category,
		AssignedTeacher: row.AssignedTeacher,
		Capacity:        row.Capacity,
		Active:          row.Active,
		CreatedAt:       row.CreatedAt.Time,
		UpdatedAt:       row.UpdatedAt.Time,
	}
}

const courseColumns = `id, name, code, description, category, assigned_teacher, capacity, active, created_at, updated_at`

func (repo courseRepository) CreateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	if crs.ID == "" {
		crs.ID = uuid.New().String()
	}
	query := `
		INSERT INTO course (` + courseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := repo.getExec(exec).ExecContext(ctx, query,
		crs.ID, crs.Name, crs.Code, crs.Description, crs.Category, crs.AssignedTeacher,
		crs.Capacity, crs.Active, crs.CreatedAt.UTC(), crs.UpdatedAt.UTC(),
	)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return crs, nil
}

func (repo courseRepository) QueryCourses(ctx context.Context, filter *course.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]course.Course, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if filter.Search != "" {
			p := arg("%" + filter.Search + "%")
			conds = append(conds, fmt.Sprintf("(name ILIKE %s OR code ILIKE %s OR description ILIKE %s)", p, p, p))
		}
		if filter.Category != "" {
			conds = append(conds, "category ILIKE "+arg(filter.Category))
		}
		if filter.Active != nil {
			conds = append(conds, "active = "+arg(*filter.Active))
		}
		if filter.Teacher != "" {
			conds = append(conds, "assigned_teacher ILIKE "+arg(filter.Teacher))
		}
	}

	query := `SELECT ` + courseColumns + ` FROM course`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += orderByClause(ordering, map[string]bool{"name": true, "code": true, "created_at": true})

	var rows []courseRow
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, repo.courseFromRow(row))
	}
	return courses, nil
}

func (repo courseRepository) GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (course.Course, error) {
	var row courseRow
	query := `SELECT ` + courseColumns + ` FROM course WHERE id = $1`
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &row, query, id); err != nil {
		return course.Course{}, repo.trapNoRowsErr(err, course.ErrNotFound, "getting course")
	}
	return repo.courseFromRow(row), nil
}

func (repo courseRepository) UpdateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	query := `
		UPDATE course
		SET name = $2, code = $3, description = $4, category = $5, assigned_teacher = $6,
		    capacity = $7, active = $8, updated_at = $9
		WHERE id = $1`

	res, err := repo.getExec(exec).ExecContext(ctx, query,
		crs.ID, crs.Name, crs.Code, crs.Description, crs.Category, crs.AssignedTeacher,
		crs.Capacity, crs.Active, crs.UpdatedAt.UTC(),
	)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.Course{}, course.ErrNotFound
	}
	return crs, nil
}

func (repo courseRepository) DeleteCoursesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	res, err := repo.getExec(exec).ExecContext(ctx, `DELETE FROM course WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting courses")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting courses")
	}
	return int(n), nil
}

// Enrollments

type enrollmentRow struct {
	ID        string       `db:"id"`
	ProfileID string       `db:"profile_id"`
	CourseID  string       `db:"course_id"`
	CreatedAt sql.NullTime `db:"created_at"`
}

func (repo courseRepository) enrollmentFromRow(row enrollmentRow) course.Enrollment {
	return course.Enrollment{
		ID:        row.ID,
		ProfileID: row.ProfileID,
		CourseID:  row.CourseID,
		CreatedAt: row.CreatedAt.Time,
	}
}

func (repo courseRepository) GetEnrollment(ctx context.Context, profileID, courseID string, exec ...core.DBExecutor) (course.Enrollment, error) {
	var row enrollmentRow
	query := `SELECT id, profile_id, course_id, created_at FROM enrollment WHERE profile_id = $1 AND course_id = $2`
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &row, query, profileID, courseID); err != nil {
		return course.Enrollment{}, repo.trapNoRowsErr(err, course.ErrNotFound, "getting enrollment")
	}
	return repo.enrollmentFromRow(row), nil
}

// CreateEnrollment locks the course row and inserts the enrollment in a
// single statement, so the seat check cannot race another enrollment.
// No row inserted means the course is gone or out of seats; a unique
// violation means another request enrolled the same student first.
func (repo courseRepository) CreateEnrollment(ctx context.Context, enr course.Enrollment, exec ...core.DBExecutor) (course.Enrollment, error) {
	if enr.ID == "" {
		enr.ID = uuid.New().String()
	}
	query := `
		INSERT INTO enrollment (id, profile_id, course_id, created_at)
		SELECT $1, $2, c.id, $4
		FROM course c
		WHERE c.id = $3
		  AND (SELECT COUNT(*) FROM enrollment e WHERE e.course_id = c.id) < c.capacity
		FOR UPDATE`

	e := repo.getExec(exec)
	res, err := e.ExecContext(ctx, query, enr.ID, enr.ProfileID, enr.CourseID, enr.CreatedAt.UTC())
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return course.Enrollment{}, course.ErrAlreadyEnrolled
		}
		return course.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// figure out which guard refused us
		if _, err = repo.GetCourse(ctx, enr.CourseID, exec...); err != nil {
			return course.Enrollment{}, err
		}
		return course.Enrollment{}, course.ErrCourseFull
	}
	return enr, nil
}

func (repo courseRepository) DeleteEnrollment(ctx context.Context, profileID, courseID string, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx,
		`DELETE FROM enrollment WHERE profile_id = $1 AND course_id = $2`, profileID, courseID)
	if err != nil {
		return errors.Wrap(err, "deleting enrollment")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.ErrNotFound
	}
	return nil
}

func (repo courseRepository) CountEnrollments(ctx context.Context, courseID string, exec ...core.DBExecutor) (int, error) {
	var cnt int
	query := `SELECT COUNT(*) FROM enrollment WHERE course_id = $1`
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &cnt, query, courseID); err != nil {
		return 0, errors.Wrap(err, "counting enrollments")
	}
	return cnt, nil
}

func (repo courseRepository) EnrollmentsByProfile(ctx context.Context, profileID string, exec ...core.DBExecutor) ([]course.Enrollment, error) {
	return repo.queryEnrollments(ctx, "profile_id", profileID, exec)
}

func (repo courseRepository) EnrollmentsByCourse(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]course.Enrollment, error) {
	return repo.queryEnrollments(ctx, "course_id", courseID, exec)
}

func (repo courseRepository) queryEnrollments(ctx context.Context, col, val string, exec []core.DBExecutor) ([]course.Enrollment, error) {
	var rows []enrollmentRow
	query := `SELECT id, profile_id, course_id, created_at FROM enrollment WHERE ` + col + ` = $1 ORDER BY created_at`
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, query, val); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	enrs := make([]course.Enrollment, 0, len(rows))
	for _, row := range rows {
		enrs = append(enrs, repo.enrollmentFromRow(row))
	}
	return enrs, nil
}

// Modules

type moduleRow struct {
	ID          int    `db:"id"`
	CourseID    string `db:"course_id"`
	Title       string `db:"title"`
	Description string `db:"description"`
	Ord         int    `db:"ord"`
	Visible     bool   `db:"visible"`
}

func (repo courseRepository) moduleFromRow(row moduleRow) course.Module {
	return course.Module{
		ID:          row.ID,
		CourseID:    row.CourseID,
		Title:       row.Title,
		Description: row.Description,
		Order:       row.Ord,
		Visible:     row.Visible,
	}
}

func (repo courseRepository) CreateModule(ctx context.Context, mod course.Module, exec ...core.DBExecutor) (course.Module, error) {
	query := `
		INSERT INTO course_module (course_id, title, description, ord, visible)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err := repo.getExec(exec).
		QueryRowxContext(ctx, query, mod.CourseID, mod.Title, mod.Description, mod.Order, mod.Visible).
		Scan(&mod.ID)
	if err != nil {
		return course.Module{}, errors.Wrap(err, "inserting module")
	}
	return mod, nil
}

func (repo courseRepository) QueryModules(ctx context.Context, courseID string, visibleOnly bool, exec ...core.DBExecutor) ([]course.Module, error) {
	query := `SELECT id, course_id, title, description, ord, visible FROM course_module WHERE course_id = $1`
	if visibleOnly {
		query += ` AND visible`
	}
	query += ` ORDER BY ord`

	var rows []moduleRow
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, query, courseID); err != nil {
		return nil, errors.Wrap(err, "querying modules")
	}
	mods := make([]course.Module, 0, len(rows))
	for _, row := range rows {
		mods = append(mods, repo.moduleFromRow(row))
	}
	return mods, nil
}

func (repo courseRepository) GetModule(ctx context.Context, id int, exec ...core.DBExecutor) (course.Module, error) {
	var row moduleRow
	query := `SELECT id, course_id, title, description, ord, visible FROM course_module WHERE id = $1`
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &row, query, id); err != nil {
		return course.Module{}, repo.trapNoRowsErr(err, course.ErrModuleNotFound, "getting module")
	}
	return repo.moduleFromRow(row), nil
}

func (repo courseRepository) UpdateModule(ctx context.Context, mod course.Module, exec ...core.DBExecutor) (course.Module, error) {
	query := `UPDATE course_module SET title = $2, description = $3, ord = $4, visible = $5 WHERE id = $1`
	res, err := repo.getExec(exec).ExecContext(ctx, query, mod.ID, mod.Title, mod.Description, mod.Order, mod.Visible)
	if err != nil {
		return course.Module{}, errors.Wrap(err, "updating module")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.Module{}, course.ErrModuleNotFound
	}
	return mod, nil
}

func (repo courseRepository) DeleteModule(ctx context.Context, id int, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx, `DELETE FROM course_module WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting module")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.ErrModuleNotFound
	}
	return nil
}

func (repo courseRepository) MaxModuleOrder(ctx context.Context, courseID string, exec ...core.DBExecutor) (int, error) {
	var max int
	query := `SELECT COALESCE(MAX(ord), 0) FROM course_module WHERE course_id = $1`
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &max, query, courseID); err != nil {
		return 0, errors.Wrap(err, "getting max module order")
	}
	return max, nil
}

// Contents

type contentRow struct {
	ID          int          `db:"id"`
	ModuleID    int          `db:"module_id"`
	Kind        string       `db:"kind"`
	Title       string       `db:"title"`
	Description string       `db:"description"`
	URL         string       `db:"url"`
	FileName    string       `db:"file_name"`
	FileSize    int64        `db:"file_size"`
	Ord         int          `db:"ord"`
	Visible     bool         `db:"visible"`
	CreatedAt   sql.NullTime `db:"created_at"`
}

func (repo courseRepository) contentFromRow(row contentRow) course.Content {
	return course.Content{
		ID:          row.ID,
		ModuleID:    row.ModuleID,
		Kind:        course.ContentKind(row.Kind),
		Title:       row.Title,
		Description: row.Description,
		URL:         row.URL,
		FileName:    row.FileName,
		FileSize:    row.FileSize,
		Order:       row.Ord,
		Visible:     row.Visible,
		CreatedAt:   row.CreatedAt.Time,
	}
}

const contentColumns = `id, module_id, kind, title, description, url, file_name, file_size, ord, visible, created_at`

func (repo courseRepository) CreateContent(ctx context.Context, cnt course.Content, exec ...core.DBExecutor) (course.Content, error) {
	query := `
		INSERT INTO module_content (module_id, kind, title, description, url, file_name, file_size, ord, visible, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	err := repo.getExec(exec).
		QueryRowxContext(ctx, query, cnt.ModuleID, string(cnt.Kind), cnt.Title, cnt.Description,
			cnt.URL, cnt.FileName, cnt.FileSize, cnt.Order, cnt.Visible, cnt.CreatedAt.UTC()).
		Scan(&cnt.ID)
	if err != nil {
		return course.Content{}, errors.Wrap(err, "inserting content")
	}
	return cnt, nil
}

func (repo courseRepository) QueryContents(ctx context.Context, moduleID int, visibleOnly bool, exec ...core.DBExecutor) ([]course.Content, error) {
	query := `SELECT ` + contentColumns + ` FROM module_content WHERE module_id = $1`
	if visibleOnly {
		query += ` AND visible`
	}
	query += ` ORDER BY ord`

	var rows []contentRow
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, query, moduleID); err != nil {
		return nil, errors.Wrap(err, "querying contents")
	}
	cnts := make([]course.Content, 0, len(rows))
	for _, row := range rows {
		cnts = append(cnts, repo.contentFromRow(row))
	}
	return cnts, nil
}

func (repo courseRepository) GetContent(ctx context.Context, id int, exec ...core.DBExecutor) (course.Content, error) {
	var row contentRow
	query := `SELECT ` + contentColumns + ` FROM module_content WHERE id = $1`
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &row, query, id); err != nil {
		return course.Content{}, repo.trapNoRowsErr(err, course.ErrContentNotFound, "getting content")
	}
	return repo.contentFromRow(row), nil
}

func (repo courseRepository) UpdateContent(ctx context.Context, cnt course.Content, exec ...core.DBExecutor) (course.Content, error) {
	query := `
		UPDATE module_content
		SET kind = $2, title = $3, description = $4, url = $5, file_name = $6, file_size = $7, ord = $8, visible = $9
		WHERE id = $1`

	res, err := repo.getExec(exec).ExecContext(ctx, query,
		cnt.ID, string(cnt.Kind), cnt.Title, cnt.Description, cnt.URL, cnt.FileName, cnt.FileSize, cnt.Order, cnt.Visible)
	if err != nil {
		return course.Content{}, errors.Wrap(err, "updating content")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.Content{}, course.ErrContentNotFound
	}
	return cnt, nil
}

func (repo courseRepository) DeleteContent(ctx context.Context, id int, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx, `DELETE FROM module_content WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting content")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.ErrContentNotFound
	}
	return nil
}

func (repo courseRepository) MaxContentOrder(ctx context.Context, moduleID int, exec ...core.DBExecutor) (int, error) {
	var max int
	query := `SELECT COALESCE(MAX(ord), 0) FROM module_content WHERE module_id = $1`
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &max, query, moduleID); err != nil {
		return 0, errors.Wrap(err, "getting max content order")
	}
	return max, nil
}
