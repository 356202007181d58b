package echoapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/unicourses/core"
	"github.com/trezcool/unicourses/core/course"
	"github.com/trezcool/unicourses/core/user"
)

type courseApi struct {
	svc      *course.Service
	usrSvc   *user.Service
	validate *validator.Validate
}

func registerCourseAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *course.Service,
	usrSvc *user.Service,
	validate *validator.Validate,
) {
	api := courseApi{
		svc:      svc,
		usrSvc:   usrSvc,
		validate: validate,
	}

	staff := roleMiddleware(user.RoleTeacher, user.RoleAdmin)

	cg := g.Group("/courses", jwt)
	cg.GET("", api.catalog)
	cg.POST("", api.create, adminMiddleware())
	cg.GET("/mine", api.enrolled, roleMiddleware(user.RoleStudent))
	cg.GET("/teaching", api.teaching, roleMiddleware(user.RoleTeacher))

	dg := cg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, adminMiddleware())
	dg.DELETE("", api.destroy, adminMiddleware())
	dg.GET("/occupancy", api.occupancy)
	dg.POST("/enroll", api.enroll, roleMiddleware(user.RoleStudent))
	dg.DELETE("/enroll", api.unenroll, roleMiddleware(user.RoleStudent))
	dg.GET("/students", api.students, staff)
	dg.DELETE("/students/:profileID", api.dropStudent, adminMiddleware())
	dg.GET("/modules", api.modules)
	dg.POST("/modules", api.createModule, staff)

	mg := g.Group("/modules/:id", jwt)
	mg.PUT("", api.updateModule, staff)
	mg.DELETE("", api.destroyModule, staff)
	mg.POST("/move", api.moveModule, staff)
	mg.GET("/contents", api.contents)
	mg.POST("/contents", api.createContent, staff)

	ctg := g.Group("/contents/:id", jwt, staff)
	ctg.PUT("", api.updateContent)
	ctg.DELETE("", api.destroyContent)
	ctg.POST("/move", api.moveContent)
}

// Handlers

func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	crs, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, crs)
}

// catalog lists courses with their seat usage; students only see active ones.
func (api *courseApi) catalog(ctx echo.Context) error {
	filter := new(course.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []course.CourseWithOccupancy{})
	}
	filter.Clean()
	if getContextState(ctx).Role == user.RoleStudent {
		active := true
		filter.Active = &active
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	catalog, err := api.svc.Catalog(ctx.Request().Context(), filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying catalog")
	}
	if catalog == nil {
		catalog = []course.CourseWithOccupancy{}
	}
	return ctx.JSON(http.StatusOK, catalog)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	crs, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) update(ctx echo.Context) error {
	var data course.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	crs, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) destroy(ctx echo.Context) error {
	if _, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "getting course")
	}
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) occupancy(ctx echo.Context) error {
	occ, err := api.svc.Occupancy(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting occupancy")
	}
	return ctx.JSON(http.StatusOK, occ)
}

func (api *courseApi) enroll(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	enr, err := api.svc.Enroll(ctx.Request().Context(), claims.Subject, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return ctx.JSON(http.StatusCreated, enr)
}

func (api *courseApi) unenroll(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	if err := api.svc.Unenroll(ctx.Request().Context(), claims.Subject, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "unenrolling")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// enrolled lists the courses the calling student has joined.
func (api *courseApi) enrolled(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	courses, err := api.svc.EnrolledCourses(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "listing enrolled courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

// teaching lists the courses assigned to the calling teacher.
func (api *courseApi) teaching(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	courses, err := api.svc.CoursesByTeacher(ctx.Request().Context(), usr.Name)
	if err != nil {
		return errors.Wrap(err, "listing taught courses")
	}
	if courses == nil {
		courses = []course.CourseWithOccupancy{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

// students lists the enrolled students of a course.
func (api *courseApi) students(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	if _, err := api.svc.GetByID(reqCtx, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "getting course")
	}

	enrs, err := api.svc.CourseEnrollments(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing enrollments")
	}

	students := make([]EnrolledStudent, 0, len(enrs))
	for _, enr := range enrs {
		usr, err := api.usrSvc.GetByID(reqCtx, enr.ProfileID)
		if err != nil {
			if errors.Cause(err) == user.ErrNotFound {
				continue // profile deleted from under the enrollment
			}
			return errors.Wrap(err, "getting student profile")
		}
		students = append(students, EnrolledStudent{
			ProfileID:  usr.ID,
			Name:       usr.Name,
			Email:      usr.Email,
			EnrolledAt: enr.CreatedAt,
		})
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *courseApi) dropStudent(ctx echo.Context) error {
	err := api.svc.Unenroll(ctx.Request().Context(), ctx.Param("profileID"), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "dropping student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// modules lists a course's modules; students only get the visible ones.
func (api *courseApi) modules(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	if _, err := api.svc.GetByID(reqCtx, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "getting course")
	}

	var mods []course.Module
	var err error
	if getContextState(ctx).Role == user.RoleStudent {
		mods, err = api.svc.VisibleModules(reqCtx, ctx.Param("id"))
	} else {
		mods, err = api.svc.Modules(reqCtx, ctx.Param("id"))
	}
	if err != nil {
		return errors.Wrap(err, "listing modules")
	}
	if mods == nil {
		mods = []course.Module{}
	}
	return ctx.JSON(http.StatusOK, mods)
}

func (api *courseApi) createModule(ctx echo.Context) error {
	var data course.NewModule
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewModule")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	mod, err := api.svc.CreateModule(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "creating module")
	}
	return ctx.JSON(http.StatusCreated, mod)
}

func (api *courseApi) updateModule(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}

	var data course.UpdateModule
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateModule")
	}

	mod, err := api.svc.UpdateModule(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating module")
	}
	return ctx.JSON(http.StatusOK, mod)
}

func (api *courseApi) moveModule(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}

	var data MoveRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MoveRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	mod, err := api.svc.MoveModule(ctx.Request().Context(), id, data.Direction == "up")
	if err != nil {
		return errors.Wrap(err, "moving module")
	}
	return ctx.JSON(http.StatusOK, mod)
}

func (api *courseApi) destroyModule(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}

	if err := api.svc.DeleteModule(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting module")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// contents lists a module's contents; students only get the visible ones.
func (api *courseApi) contents(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()

	var cnts []course.Content
	if getContextState(ctx).Role == user.RoleStudent {
		cnts, err = api.svc.VisibleContents(reqCtx, id)
	} else {
		cnts, err = api.svc.Contents(reqCtx, id)
	}
	if err != nil {
		return errors.Wrap(err, "listing contents")
	}
	if cnts == nil {
		cnts = []course.Content{}
	}
	return ctx.JSON(http.StatusOK, cnts)
}

func (api *courseApi) createContent(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}

	var data course.NewContent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewContent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cnt, err := api.svc.CreateContent(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "creating content")
	}
	return ctx.JSON(http.StatusCreated, cnt)
}

func (api *courseApi) updateContent(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}

	var data course.UpdateContent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateContent")
	}

	cnt, err := api.svc.UpdateContent(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating content")
	}
	return ctx.JSON(http.StatusOK, cnt)
}

func (api *courseApi) moveContent(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}

	var data MoveRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MoveRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cnt, err := api.svc.MoveContent(ctx.Request().Context(), id, data.Direction == "up")
	if err != nil {
		return errors.Wrap(err, "moving content")
	}
	return ctx.JSON(http.StatusOK, cnt)
}

func (api *courseApi) destroyContent(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}

	if err := api.svc.DeleteContent(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting content")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func intParam(ctx echo.Context, name string) (int, error) {
	id, err := strconv.Atoi(ctx.Param(name))
	if err != nil {
		return 0, errHttpNotFound
	}
	return id, nil
}

type MoveRequest struct {
	Direction string `json:"direction" validate:"required,oneof=up down"`
}

func (m *MoveRequest) Validate(validate *validator.Validate) error {
	m.Direction = core.CleanString(m.Direction, true /* lower */)
	return validate.Struct(m)
}

type EnrolledStudent struct {
	ProfileID  string    `json:"profile_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	EnrolledAt time.Time `json:"enrolled_at"`
}
