package course

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Enroll registers a student in a course, refusing duplicates and
// over-capacity enrollments.
//
// The pre-checks exist to fail fast with a precise error; they are not what
// enforces the invariants. Two concurrent attempts may both pass them, so the
// repository's CreateEnrollment performs the seat check atomically with the
// insert, and a uniqueness violation raced in by another request maps to
// ErrAlreadyEnrolled rather than a generic failure.
func (svc *Service) Enroll(ctx context.Context, profileID, courseID string) (Enrollment, error) {
	if _, err := svc.repo.GetEnrollment(ctx, profileID, courseID); err == nil {
		return Enrollment{}, ErrAlreadyEnrolled
	} else if !errors.Is(err, ErrNotFound) {
		return Enrollment{}, errors.Wrap(err, "checking existing enrollment")
	}

	crs, err := svc.repo.GetCourse(ctx, courseID)
	if err != nil {
		return Enrollment{}, err
	}
	if !crs.Active {
		return Enrollment{}, ErrCourseInactive
	}

	cnt, err := svc.repo.CountEnrollments(ctx, courseID)
	if err != nil {
		return Enrollment{}, errors.Wrap(err, "counting enrollments")
	}
	if cnt >= crs.Capacity {
		return Enrollment{}, ErrCourseFull
	}

	return svc.repo.CreateEnrollment(ctx, Enrollment{
		ID:        uuid.New().String(),
		ProfileID: profileID,
		CourseID:  courseID,
		CreatedAt: time.Now().UTC(),
	})
}

// Unenroll removes a student's enrollment; admins use it when dropping
// students from a course.
func (svc *Service) Unenroll(ctx context.Context, profileID, courseID string) error {
	return svc.repo.DeleteEnrollment(ctx, profileID, courseID)
}

// IsEnrolled reports whether the student holds a seat in the course.
func (svc *Service) IsEnrolled(ctx context.Context, profileID, courseID string) (bool, error) {
	if _, err := svc.repo.GetEnrollment(ctx, profileID, courseID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Occupancy reports the seat usage of a course.
func (svc *Service) Occupancy(ctx context.Context, courseID string) (Occupancy, error) {
	crs, err := svc.repo.GetCourse(ctx, courseID)
	if err != nil {
		return Occupancy{}, err
	}
	cnt, err := svc.repo.CountEnrollments(ctx, courseID)
	if err != nil {
		return Occupancy{}, errors.Wrap(err, "counting enrollments")
	}
	return Occupancy{Enrolled: cnt, Capacity: crs.Capacity}, nil
}

// EnrolledCourses returns the courses the student has joined.
func (svc *Service) EnrolledCourses(ctx context.Context, profileID string) ([]Course, error) {
	enrs, err := svc.repo.EnrollmentsByProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}

	courses := make([]Course, 0, len(enrs))
	for _, enr := range enrs {
		crs, err := svc.repo.GetCourse(ctx, enr.CourseID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue // course deleted from under the enrollment
			}
			return nil, err
		}
		courses = append(courses, crs)
	}
	return courses, nil
}

// CourseEnrollments returns the enrollments of a course, oldest first.
func (svc *Service) CourseEnrollments(ctx context.Context, courseID string) ([]Enrollment, error) {
	return svc.repo.EnrollmentsByCourse(ctx, courseID)
}
