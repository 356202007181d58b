package course_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/unicourses/core/course"
	testutil "github.com/trezcool/unicourses/tests"
)

func TestServiceCreate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newCourseService(t)

	crs, err := svc.Create(ctx, course.NewCourse{
		Name:            "Algebra",
		Code:            "MATH101",
		Category:        "Math",
		AssignedTeacher: "Ms. Jones",
		Capacity:        25,
	})
	assert.NoError(t, err)
	assert.NotEmpty(t, crs.ID)
	assert.True(t, crs.Active)
	assert.Equal(t, 25, crs.Capacity)
	assert.False(t, crs.CreatedAt.IsZero())
}

func TestServiceUpdate(t *testing.T) {
	ctx := context.Background()
	svc, repo := newCourseService(t)
	crs := testutil.CreateCourse(t, repo, "Algebra", "MATH101", "Ms. Jones", 30, true)

	desc := "Linear algebra basics"
	inactive := false
	got, err := svc.Update(ctx, crs.ID, course.UpdateCourse{
		Description: &desc,
		Active:      &inactive,
	})
	assert.NoError(t, err)
	assert.Equal(t, desc, got.Description)
	assert.False(t, got.Active)
	// untouched fields keep their values
	assert.Equal(t, crs.Name, got.Name)
	assert.Equal(t, crs.Capacity, got.Capacity)

	_, err = svc.Update(ctx, "nope", course.UpdateCourse{})
	assert.ErrorIs(t, err, course.ErrNotFound)
}

func TestServiceCatalog(t *testing.T) {
	ctx := context.Background()
	svc, repo := newCourseService(t)

	crs1 := testutil.CreateCourse(t, repo, "Algebra", "MATH101", "Ms. Jones", 2, true)
	crs2 := testutil.CreateCourse(t, repo, "Biology", "BIO210", "Mr. Smith", 30, true)
	testutil.EnrollUser(t, repo, "student1", crs1.ID)
	testutil.EnrollUser(t, repo, "student2", crs1.ID)

	catalog, err := svc.Catalog(ctx, nil)
	assert.NoError(t, err)
	if assert.Len(t, catalog, 2) {
		byID := make(map[string]course.CourseWithOccupancy, len(catalog))
		for _, row := range catalog {
			byID[row.ID] = row
		}
		assert.Equal(t, course.Occupancy{Enrolled: 2, Capacity: 2}, byID[crs1.ID].Occupancy)
		assert.True(t, byID[crs1.ID].Occupancy.Full())
		assert.Equal(t, course.Occupancy{Enrolled: 0, Capacity: 30}, byID[crs2.ID].Occupancy)
	}

	active := true
	filtered, err := svc.Catalog(ctx, &course.QueryFilter{Search: "bio", Active: &active})
	assert.NoError(t, err)
	if assert.Len(t, filtered, 1) {
		assert.Equal(t, crs2.ID, filtered[0].ID)
	}
}

func TestServiceCoursesByTeacher(t *testing.T) {
	ctx := context.Background()
	svc, repo := newCourseService(t)

	testutil.CreateCourse(t, repo, "Algebra", "MATH101", "Ms. Jones", 30, true)
	crs := testutil.CreateCourse(t, repo, "Biology", "BIO210", "Mr. Smith", 30, true)

	courses, err := svc.CoursesByTeacher(ctx, "Mr. Smith")
	assert.NoError(t, err)
	if assert.Len(t, courses, 1) {
		assert.Equal(t, crs.ID, courses[0].ID)
	}
}

func TestServiceModules(t *testing.T) {
	ctx := context.Background()
	svc, repo := newCourseService(t)
	crs := testutil.CreateCourse(t, repo, "Algebra", "MATH101", "Ms. Jones", 30, true)

	mod1, err := svc.CreateModule(ctx, crs.ID, course.NewModule{Title: "Intro"})
	assert.NoError(t, err)
	assert.Equal(t, 1, mod1.Order)
	assert.True(t, mod1.Visible)

	mod2, err := svc.CreateModule(ctx, crs.ID, course.NewModule{Title: "Matrices"})
	assert.NoError(t, err)
	assert.Equal(t, 2, mod2.Order)

	_, err = svc.CreateModule(ctx, "nope", course.NewModule{Title: "Orphan"})
	assert.ErrorIs(t, err, course.ErrNotFound)

	// hide the first module
	hidden := false
	_, err = svc.UpdateModule(ctx, mod1.ID, course.UpdateModule{Visible: &hidden})
	assert.NoError(t, err)

	all, err := svc.Modules(ctx, crs.ID)
	assert.NoError(t, err)
	assert.Len(t, all, 2)

	visible, err := svc.VisibleModules(ctx, crs.ID)
	assert.NoError(t, err)
	if assert.Len(t, visible, 1) {
		assert.Equal(t, mod2.ID, visible[0].ID)
	}

	assert.NoError(t, svc.DeleteModule(ctx, mod1.ID))
	assert.ErrorIs(t, svc.DeleteModule(ctx, mod1.ID), course.ErrModuleNotFound)
}

func TestServiceContents(t *testing.T) {
	ctx := context.Background()
	svc, repo := newCourseService(t)
	crs := testutil.CreateCourse(t, repo, "Algebra", "MATH101", "Ms. Jones", 30, true)
	mod, err := svc.CreateModule(ctx, crs.ID, course.NewModule{Title: "Intro"})
	assert.NoError(t, err)

	cnt1, err := svc.CreateContent(ctx, mod.ID, course.NewContent{
		Kind:  course.KindVideo,
		Title: "Welcome",
		URL:   "https://example.com/welcome.mp4",
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, cnt1.Order)
	assert.True(t, cnt1.Visible)

	cnt2, err := svc.CreateContent(ctx, mod.ID, course.NewContent{
		Kind:  course.KindText,
		Title: "Syllabus",
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, cnt2.Order)

	_, err = svc.CreateContent(ctx, 999, course.NewContent{Kind: course.KindText, Title: "Orphan"})
	assert.ErrorIs(t, err, course.ErrModuleNotFound)

	hidden := false
	_, err = svc.UpdateContent(ctx, cnt2.ID, course.UpdateContent{Visible: &hidden})
	assert.NoError(t, err)

	visible, err := svc.VisibleContents(ctx, mod.ID)
	assert.NoError(t, err)
	if assert.Len(t, visible, 1) {
		assert.Equal(t, cnt1.ID, visible[0].ID)
	}

	assert.NoError(t, svc.DeleteContent(ctx, cnt1.ID))
	assert.ErrorIs(t, svc.DeleteContent(ctx, cnt1.ID), course.ErrContentNotFound)
}

func TestServiceReorder(t *testing.T) {
	ctx := context.Background()
	svc, repo := newCourseService(t)
	crs := testutil.CreateCourse(t, repo, "Algebra", "MATH101", "Ms. Jones", 30, true)

	mod1, err := svc.CreateModule(ctx, crs.ID, course.NewModule{Title: "Intro"})
	assert.NoError(t, err)
	mod2, err := svc.CreateModule(ctx, crs.ID, course.NewModule{Title: "Matrices"})
	assert.NoError(t, err)
	mod3, err := svc.CreateModule(ctx, crs.ID, course.NewModule{Title: "Determinants"})
	assert.NoError(t, err)

	t.Run("moving up swaps with the previous module", func(t *testing.T) {
		moved, err := svc.MoveModule(ctx, mod3.ID, true)
		assert.NoError(t, err)
		assert.Equal(t, 2, moved.Order)

		mods, err := svc.Modules(ctx, crs.ID)
		assert.NoError(t, err)
		if assert.Len(t, mods, 3) {
			assert.Equal(t, []int{mod1.ID, mod3.ID, mod2.ID}, []int{mods[0].ID, mods[1].ID, mods[2].ID})
		}
	})

	t.Run("moving the first module up is a no-op", func(t *testing.T) {
		moved, err := svc.MoveModule(ctx, mod1.ID, true)
		assert.NoError(t, err)
		assert.Equal(t, 1, moved.Order)
	})

	t.Run("moving the last module down is a no-op", func(t *testing.T) {
		moved, err := svc.MoveModule(ctx, mod2.ID, false)
		assert.NoError(t, err)
		assert.Equal(t, 3, moved.Order)
	})

	t.Run("unknown module", func(t *testing.T) {
		_, err := svc.MoveModule(ctx, 999, true)
		assert.ErrorIs(t, err, course.ErrModuleNotFound)
	})

	t.Run("contents reorder the same way", func(t *testing.T) {
		cnt1, err := svc.CreateContent(ctx, mod1.ID, course.NewContent{Kind: course.KindText, Title: "Notes"})
		assert.NoError(t, err)
		cnt2, err := svc.CreateContent(ctx, mod1.ID, course.NewContent{Kind: course.KindLink, Title: "Reading", URL: "https://example.com"})
		assert.NoError(t, err)

		moved, err := svc.MoveContent(ctx, cnt2.ID, true)
		assert.NoError(t, err)
		assert.Equal(t, 1, moved.Order)

		cnts, err := svc.Contents(ctx, mod1.ID)
		assert.NoError(t, err)
		if assert.Len(t, cnts, 2) {
			assert.Equal(t, cnt2.ID, cnts[0].ID)
			assert.Equal(t, cnt1.ID, cnts[1].ID)
		}
	})
}
