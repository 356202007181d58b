package course

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/unicourses/core"
)

var (
	// errors
	ErrNotFound        = errors.New("course not found")
	ErrModuleNotFound  = errors.New("module not found")
	ErrContentNotFound = errors.New("content not found")
	ErrAlreadyEnrolled = errors.New("already enrolled in this course")
	ErrCourseFull      = errors.New("course is full")
	ErrCourseInactive  = errors.New("course is not active")
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, crs Course, exec ...core.DBExecutor) (Course, error)
		// QueryCourses applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on Course.Name, Course.Code or Course.Description.
		QueryCourses(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Course, error)
		GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (Course, error)
		UpdateCourse(ctx context.Context, crs Course, exec ...core.DBExecutor) (Course, error)
		DeleteCoursesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)

		GetEnrollment(ctx context.Context, profileID, courseID string, exec ...core.DBExecutor) (Enrollment, error)
		// CreateEnrollment inserts the enrollment only if the course still has
		// a free seat; the seat check and the insert happen atomically.
		// Returns ErrAlreadyEnrolled on a duplicate (profile, course) pair and
		// ErrCourseFull when no seat is left.
		CreateEnrollment(ctx context.Context, enr Enrollment, exec ...core.DBExecutor) (Enrollment, error)
		DeleteEnrollment(ctx context.Context, profileID, courseID string, exec ...core.DBExecutor) error
		CountEnrollments(ctx context.Context, courseID string, exec ...core.DBExecutor) (int, error)
		EnrollmentsByProfile(ctx context.Context, profileID string, exec ...core.DBExecutor) ([]Enrollment, error)
		EnrollmentsByCourse(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]Enrollment, error)

		CreateModule(ctx context.Context, mod Module, exec ...core.DBExecutor) (Module, error)
		QueryModules(ctx context.Context, courseID string, visibleOnly bool, exec ...core.DBExecutor) ([]Module, error)
		GetModule(ctx context.Context, id int, exec ...core.DBExecutor) (Module, error)
		UpdateModule(ctx context.Context, mod Module, exec ...core.DBExecutor) (Module, error)
		DeleteModule(ctx context.Context, id int, exec ...core.DBExecutor) error
		MaxModuleOrder(ctx context.Context, courseID string, exec ...core.DBExecutor) (int, error)

		CreateContent(ctx context.Context, cnt Content, exec ...core.DBExecutor) (Content, error)
		QueryContents(ctx context.Context, moduleID int, visibleOnly bool, exec ...core.DBExecutor) ([]Content, error)
		GetContent(ctx context.Context, id int, exec ...core.DBExecutor) (Content, error)
		UpdateContent(ctx context.Context, cnt Content, exec ...core.DBExecutor) (Content, error)
		DeleteContent(ctx context.Context, id int, exec ...core.DBExecutor) error
		MaxContentOrder(ctx context.Context, moduleID int, exec ...core.DBExecutor) (int, error)
	}

	Service struct {
		db   core.DB
		repo Repository
	}
)

func NewService(db core.DB, repo Repository) *Service {
	return &Service{db: db, repo: repo}
}

// Courses

func (svc *Service) Create(ctx context.Context, nc NewCourse) (Course, error) {
	now := time.Now().UTC()
	crs := Course{
		ID:              uuid.New().String(),
		Name:            nc.Name,
		Code:            nc.Code,
		Description:     nc.Description,
		Category:        nc.Category,
		AssignedTeacher: nc.AssignedTeacher,
		Capacity:        nc.Capacity,
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return svc.repo.CreateCourse(ctx, crs)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Course, error) {
	return svc.repo.QueryCourses(ctx, filter, ordering)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

func (svc *Service) Update(ctx context.Context, id string, uc UpdateCourse) (Course, error) {
	crs, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}

	if uc.Name != "" {
		crs.Name = uc.Name
	}
	if uc.Code != "" {
		crs.Code = uc.Code
	}
	if uc.Description != nil {
		crs.Description = *uc.Description
	}
	if uc.Category != "" {
		crs.Category = uc.Category
	}
	if uc.AssignedTeacher != "" {
		crs.AssignedTeacher = uc.AssignedTeacher
	}
	if uc.Capacity != nil {
		crs.Capacity = *uc.Capacity
	}
	if uc.Active != nil {
		crs.Active = *uc.Active
	}
	crs.UpdatedAt = time.Now().UTC()

	return svc.repo.UpdateCourse(ctx, crs)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteCoursesByID(ctx, ids)
	return err
}

// Catalog returns courses matching the filter together with their seat usage.
func (svc *Service) Catalog(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]CourseWithOccupancy, error) {
	courses, err := svc.repo.QueryCourses(ctx, filter, ordering)
	if err != nil {
		return nil, err
	}

	catalog := make([]CourseWithOccupancy, 0, len(courses))
	for _, crs := range courses {
		cnt, err := svc.repo.CountEnrollments(ctx, crs.ID)
		if err != nil {
			return nil, err
		}
		catalog = append(catalog, CourseWithOccupancy{
			Course:    crs,
			Occupancy: Occupancy{Enrolled: cnt, Capacity: crs.Capacity},
		})
	}
	return catalog, nil
}

// CoursesByTeacher returns the courses assigned to the given teacher name.
func (svc *Service) CoursesByTeacher(ctx context.Context, teacherName string) ([]CourseWithOccupancy, error) {
	return svc.Catalog(ctx, &QueryFilter{Teacher: core.CleanString(teacherName)})
}

// Modules

func (svc *Service) CreateModule(ctx context.Context, courseID string, nm NewModule) (Module, error) {
	if _, err := svc.repo.GetCourse(ctx, courseID); err != nil {
		return Module{}, err
	}

	maxOrd, err := svc.repo.MaxModuleOrder(ctx, courseID)
	if err != nil {
		return Module{}, err
	}
	return svc.repo.CreateModule(ctx, Module{
		CourseID:    courseID,
		Title:       nm.Title,
		Description: nm.Description,
		Order:       maxOrd + 1,
		Visible:     true,
	})
}

func (svc *Service) Modules(ctx context.Context, courseID string) ([]Module, error) {
	return svc.repo.QueryModules(ctx, courseID, false)
}

// VisibleModules returns only the modules students may see.
func (svc *Service) VisibleModules(ctx context.Context, courseID string) ([]Module, error) {
	return svc.repo.QueryModules(ctx, courseID, true)
}

func (svc *Service) UpdateModule(ctx context.Context, id int, um UpdateModule) (Module, error) {
	mod, err := svc.repo.GetModule(ctx, id)
	if err != nil {
		return Module{}, err
	}

	if um.Title != "" {
		mod.Title = core.CleanString(um.Title)
	}
	if um.Description != nil {
		mod.Description = *um.Description
	}
	if um.Visible != nil {
		mod.Visible = *um.Visible
	}
	return svc.repo.UpdateModule(ctx, mod)
}

func (svc *Service) DeleteModule(ctx context.Context, id int) error {
	return svc.repo.DeleteModule(ctx, id)
}

// MoveModule swaps the module's position with its neighbor in the given
// direction. Moving past either end is a no-op.
func (svc *Service) MoveModule(ctx context.Context, id int, up bool) (Module, error) {
	mod, err := svc.repo.GetModule(ctx, id)
	if err != nil {
		return Module{}, err
	}

	mods, err := svc.repo.QueryModules(ctx, mod.CourseID, false)
	if err != nil {
		return Module{}, err
	}

	idx := -1
	for i, m := range mods {
		if m.ID == mod.ID {
			idx = i
			break
		}
	}
	other := idx + 1
	if up {
		other = idx - 1
	}
	if idx < 0 || other < 0 || other >= len(mods) {
		return mod, nil
	}

	neighbor := mods[other]
	mod.Order, neighbor.Order = neighbor.Order, mod.Order
	if _, err = svc.repo.UpdateModule(ctx, neighbor); err != nil {
		return Module{}, err
	}
	return svc.repo.UpdateModule(ctx, mod)
}

// Contents

func (svc *Service) CreateContent(ctx context.Context, moduleID int, nc NewContent) (Content, error) {
	if _, err := svc.repo.GetModule(ctx, moduleID); err != nil {
		return Content{}, err
	}

	maxOrd, err := svc.repo.MaxContentOrder(ctx, moduleID)
	if err != nil {
		return Content{}, err
	}
	return svc.repo.CreateContent(ctx, Content{
		ModuleID:    moduleID,
		Kind:        nc.Kind,
		Title:       nc.Title,
		Description: nc.Description,
		URL:         nc.URL,
		FileName:    nc.FileName,
		FileSize:    nc.FileSize,
		Order:       maxOrd + 1,
		Visible:     true,
		CreatedAt:   time.Now().UTC(),
	})
}

func (svc *Service) Contents(ctx context.Context, moduleID int) ([]Content, error) {
	return svc.repo.QueryContents(ctx, moduleID, false)
}

// VisibleContents returns only the contents students may see.
func (svc *Service) VisibleContents(ctx context.Context, moduleID int) ([]Content, error) {
	return svc.repo.QueryContents(ctx, moduleID, true)
}

func (svc *Service) UpdateContent(ctx context.Context, id int, uc UpdateContent) (Content, error) {
	cnt, err := svc.repo.GetContent(ctx, id)
	if err != nil {
		return Content{}, err
	}

	if uc.Title != "" {
		cnt.Title = core.CleanString(uc.Title)
	}
	if uc.Description != nil {
		cnt.Description = *uc.Description
	}
	if uc.URL != "" {
		cnt.URL = uc.URL
	}
	if uc.Visible != nil {
		cnt.Visible = *uc.Visible
	}
	return svc.repo.UpdateContent(ctx, cnt)
}

func (svc *Service) DeleteContent(ctx context.Context, id int) error {
	return svc.repo.DeleteContent(ctx, id)
}

// MoveContent swaps the content's position with its neighbor in the given
// direction. Moving past either end is a no-op.
func (svc *Service) MoveContent(ctx context.Context, id int, up bool) (Content, error) {
	cnt, err := svc.repo.GetContent(ctx, id)
	if err != nil {
		return Content{}, err
	}

	cnts, err := svc.repo.QueryContents(ctx, cnt.ModuleID, false)
	if err != nil {
		return Content{}, err
	}

	idx := -1
	for i, c := range cnts {
		if c.ID == cnt.ID {
			idx = i
			break
		}
	}
	other := idx + 1
	if up {
		other = idx - 1
	}
	if idx < 0 || other < 0 || other >= len(cnts) {
		return cnt, nil
	}

	neighbor := cnts[other]
	cnt.Order, neighbor.Order = neighbor.Order, cnt.Order
	if _, err = svc.repo.UpdateContent(ctx, neighbor); err != nil {
		return Content{}, err
	}
	return svc.repo.UpdateContent(ctx, cnt)
}
