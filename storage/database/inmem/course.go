package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/unicourses/core"
	"github.com/trezcool/unicourses/core/course"
)

type courseRepository struct {
	db *DB
}

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

// Courses

func (repo *courseRepository) queryCourses() []course.Course {
	courses := make([]course.Course, 0, len(repo.db.courses))
	for _, crs := range repo.db.courses {
		courses = append(courses, *crs)
	}
	return courses
}

func (repo *courseRepository) CreateCourse(_ context.Context, crs course.Course, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if crs.ID == "" {
		crs.ID = uuid.New().String()
	}
	repo.db.courses[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) QueryCourses(_ context.Context, filter *course.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	courses := repo.queryCourses()
	if filter != nil && !filter.IsEmpty() {
		matched := courses[:0]
		for _, crs := range courses {
			if matchCourse(crs, filter) {
				matched = append(matched, crs)
			}
		}
		courses = matched
	}
	sortCourses(courses, ordering)
	return courses, nil
}

func matchCourse(crs course.Course, filter *course.QueryFilter) bool {
	if filter.Search != "" {
		search := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(crs.Name), search) &&
			!strings.Contains(strings.ToLower(crs.Code), search) &&
			!strings.Contains(strings.ToLower(crs.Description), search) {
			return false
		}
	}
	if filter.Category != "" && !strings.EqualFold(crs.Category, filter.Category) {
		return false
	}
	if filter.Active != nil && crs.Active != *filter.Active {
		return false
	}
	if filter.Teacher != "" && !strings.EqualFold(crs.AssignedTeacher, filter.Teacher) {
		return false
	}
	return true
}

func sortCourses(courses []course.Course, ordering []core.DBOrdering) {
	less := func(i, j int) bool { return courses[i].CreatedAt.Before(courses[j].CreatedAt) }
	if len(ordering) > 0 {
		ord := ordering[0]
		switch ord.Field {
		case "name":
			less = func(i, j int) bool { return courses[i].Name < courses[j].Name }
		case "code":
			less = func(i, j int) bool { return courses[i].Code < courses[j].Code }
		}
		if !ord.Ascending {
			asc := less
			less = func(i, j int) bool { return asc(j, i) }
		}
	}
	sort.SliceStable(courses, less)
}

func (repo *courseRepository) GetCourse(_ context.Context, id string, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if crs, ok := repo.db.courses[id]; ok {
		return *crs, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) UpdateCourse(_ context.Context, crs course.Course, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.courses[crs.ID]; !ok {
		return course.Course{}, course.ErrNotFound
	}
	repo.db.courses[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) DeleteCoursesByID(_ context.Context, ids []string, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.courses[id]; ok {
			delete(repo.db.courses, id)
			n++
			for key, enr := range repo.db.enrollments {
				if enr.CourseID == id {
					delete(repo.db.enrollments, key)
				}
			}
		}
	}
	return n, nil
}

// Enrollments

func (repo *courseRepository) GetEnrollment(_ context.Context, profileID, courseID string, _ ...core.DBExecutor) (course.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if enr, ok := repo.db.enrollments[enrollmentKey(profileID, courseID)]; ok {
		return *enr, nil
	}
	return course.Enrollment{}, course.ErrNotFound
}

// CreateEnrollment holds the write lock across the duplicate check, the seat
// count and the insert, mirroring the guarded INSERT the SQL repository does.
func (repo *courseRepository) CreateEnrollment(_ context.Context, enr course.Enrollment, _ ...core.DBExecutor) (course.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	key := enrollmentKey(enr.ProfileID, enr.CourseID)
	if _, ok := repo.db.enrollments[key]; ok {
		return course.Enrollment{}, course.ErrAlreadyEnrolled
	}
	crs, ok := repo.db.courses[enr.CourseID]
	if !ok {
		return course.Enrollment{}, course.ErrNotFound
	}
	if repo.countEnrollments(enr.CourseID) >= crs.Capacity {
		return course.Enrollment{}, course.ErrCourseFull
	}

	if enr.ID == "" {
		enr.ID = uuid.New().String()
	}
	if enr.CreatedAt.IsZero() {
		enr.CreatedAt = time.Now().UTC()
	}
	repo.db.enrollments[key] = &enr
	return enr, nil
}

func (repo *courseRepository) DeleteEnrollment(_ context.Context, profileID, courseID string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	key := enrollmentKey(profileID, courseID)
	if _, ok := repo.db.enrollments[key]; !ok {
		return course.ErrNotFound
	}
	delete(repo.db.enrollments, key)
	return nil
}

func (repo *courseRepository) countEnrollments(courseID string) int {
	var n int
	for _, enr := range repo.db.enrollments {
		if enr.CourseID == courseID {
			n++
		}
	}
	return n
}

func (repo *courseRepository) CountEnrollments(_ context.Context, courseID string, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.countEnrollments(courseID), nil
}

func (repo *courseRepository) EnrollmentsByProfile(_ context.Context, profileID string, _ ...core.DBExecutor) ([]course.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	enrs := make([]course.Enrollment, 0)
	for _, enr := range repo.db.enrollments {
		if enr.ProfileID == profileID {
			enrs = append(enrs, *enr)
		}
	}
	sortEnrollments(enrs)
	return enrs, nil
}

func (repo *courseRepository) EnrollmentsByCourse(_ context.Context, courseID string, _ ...core.DBExecutor) ([]course.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	enrs := make([]course.Enrollment, 0)
	for _, enr := range repo.db.enrollments {
		if enr.CourseID == courseID {
			enrs = append(enrs, *enr)
		}
	}
	sortEnrollments(enrs)
	return enrs, nil
}

func sortEnrollments(enrs []course.Enrollment) {
	sort.SliceStable(enrs, func(i, j int) bool { return enrs[i].CreatedAt.Before(enrs[j].CreatedAt) })
}

// Modules

func (repo *courseRepository) CreateModule(_ context.Context, mod course.Module, _ ...core.DBExecutor) (course.Module, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.modulePK++
	mod.ID = repo.db.modulePK
	repo.db.modules[mod.ID] = &mod
	return mod, nil
}

func (repo *courseRepository) QueryModules(_ context.Context, courseID string, visibleOnly bool, _ ...core.DBExecutor) ([]course.Module, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	mods := make([]course.Module, 0)
	for _, mod := range repo.db.modules {
		if mod.CourseID != courseID {
			continue
		}
		if visibleOnly && !mod.Visible {
			continue
		}
		mods = append(mods, *mod)
	}
	sort.SliceStable(mods, func(i, j int) bool { return mods[i].Order < mods[j].Order })
	return mods, nil
}

func (repo *courseRepository) GetModule(_ context.Context, id int, _ ...core.DBExecutor) (course.Module, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if mod, ok := repo.db.modules[id]; ok {
		return *mod, nil
	}
	return course.Module{}, course.ErrModuleNotFound
}

func (repo *courseRepository) UpdateModule(_ context.Context, mod course.Module, _ ...core.DBExecutor) (course.Module, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.modules[mod.ID]; !ok {
		return course.Module{}, course.ErrModuleNotFound
	}
	repo.db.modules[mod.ID] = &mod
	return mod, nil
}

func (repo *courseRepository) DeleteModule(_ context.Context, id int, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.modules[id]; !ok {
		return course.ErrModuleNotFound
	}
	delete(repo.db.modules, id)
	for cid, cnt := range repo.db.contents {
		if cnt.ModuleID == id {
			delete(repo.db.contents, cid)
		}
	}
	return nil
}

func (repo *courseRepository) MaxModuleOrder(_ context.Context, courseID string, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var max int
	for _, mod := range repo.db.modules {
		if mod.CourseID == courseID && mod.Order > max {
			max = mod.Order
		}
	}
	return max, nil
}

// Contents

func (repo *courseRepository) CreateContent(_ context.Context, cnt course.Content, _ ...core.DBExecutor) (course.Content, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.contentPK++
	cnt.ID = repo.db.contentPK
	repo.db.contents[cnt.ID] = &cnt
	return cnt, nil
}

func (repo *courseRepository) QueryContents(_ context.Context, moduleID int, visibleOnly bool, _ ...core.DBExecutor) ([]course.Content, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	cnts := make([]course.Content, 0)
	for _, cnt := range repo.db.contents {
		if cnt.ModuleID != moduleID {
			continue
		}
		if visibleOnly && !cnt.Visible {
			continue
		}
		cnts = append(cnts, *cnt)
	}
	sort.SliceStable(cnts, func(i, j int) bool { return cnts[i].Order < cnts[j].Order })
	return cnts, nil
}

func (repo *courseRepository) GetContent(_ context.Context, id int, _ ...core.DBExecutor) (course.Content, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if cnt, ok := repo.db.contents[id]; ok {
		return *cnt, nil
	}
	return course.Content{}, course.ErrContentNotFound
}

func (repo *courseRepository) UpdateContent(_ context.Context, cnt course.Content, _ ...core.DBExecutor) (course.Content, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.contents[cnt.ID]; !ok {
		return course.Content{}, course.ErrContentNotFound
	}
	repo.db.contents[cnt.ID] = &cnt
	return cnt, nil
}

func (repo *courseRepository) DeleteContent(_ context.Context, id int, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.contents[id]; !ok {
		return course.ErrContentNotFound
	}
	delete(repo.db.contents, id)
	return nil
}

func (repo *courseRepository) MaxContentOrder(_ context.Context, moduleID int, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var max int
	for _, cnt := range repo.db.contents {
		if cnt.ModuleID == moduleID && cnt.Order > max {
			max = cnt.Order
		}
	}
	return max, nil
}
