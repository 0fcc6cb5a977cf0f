package controller

import (
	"time"

	"english_edu_backend/internal/model"
	"english_edu_backend/internal/service"
	"english_edu_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// DashboardController serves the staff read surfaces. Every endpoint is
// scoped: a teacher only ever sees their classroom, a coordinator only
// the teachers they manage.
type DashboardController struct {
	DashboardService *service.DashboardService
	ScopeService     *service.ScopeService
}

func NewDashboardController(dashboardService *service.DashboardService, scopeService *service.ScopeService) *DashboardController {
	return &DashboardController{
		DashboardService: dashboardService,
		ScopeService:     scopeService,
	}
}

func dateOrToday(ctx *gin.Context) string {
	date := ctx.Query("date")
	if date == "" {
		return time.Now().UTC().Format(model.DateLayout)
	}
	return date
}

// TeacherDashboard godoc
// @Summary Class teacher dashboard
// @Tags dashboards
// @Produce  json
// @Security BearerAuth
// @Param   date query string false "local date, defaults to today"
// @Success 200 {object} util.Response{data=service.TeacherDashboard}
// @Failure 403 {object} util.Response
// @Router /api/dashboards/teacher [get]
func (c *DashboardController) TeacherDashboard(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	dash, err := c.DashboardService.GetTeacherDashboard(ctx.Request.Context(), claims.UserID, dateOrToday(ctx))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, dash)
}

// CoordinatorDashboard godoc
// @Summary Coordinator dashboard
// @Tags dashboards
// @Produce  json
// @Security BearerAuth
// @Param   date query string false "local date, defaults to today"
// @Param   trendDays query int false "trend window, default 14"
// @Success 200 {object} util.Response{data=service.CoordinatorDashboard}
// @Failure 403 {object} util.Response
// @Router /api/dashboards/coordinator [get]
func (c *DashboardController) CoordinatorDashboard(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	trendDays := util.MustParseInt(ctx.DefaultQuery("trendDays", "14"))
	dash, err := c.DashboardService.GetCoordinatorDashboard(ctx.Request.Context(), claims.UserID, dateOrToday(ctx), trendDays)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, dash)
}

// GradePerformance godoc
// @Summary Classroom comparison within a grade
// @Tags dashboards
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "grade id"
// @Param   date query string false "local date, defaults to today"
// @Success 200 {object} util.Response{data=service.GradePerformance}
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/dashboards/grades/{id} [get]
func (c *DashboardController) GradePerformance(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	gradeID := util.MustParseUint(ctx.Param("id"))
	perf, err := c.DashboardService.GetGradePerformance(ctx.Request.Context(), claims.UserID, gradeID, dateOrToday(ctx))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, perf)
}

// ScopedStudents godoc
// @Summary Students visible to the caller
// @Tags dashboards
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.Student}
// @Router /api/dashboards/students [get]
func (c *DashboardController) ScopedStudents(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	filter, err := c.ScopeService.Resolve(claims.UserID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	students, err := c.ScopeService.ListStudents(filter)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, students)
}

// StudentDetail godoc
// @Summary Detailed progress of one student in scope
// @Tags dashboards
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "identity id of the student"
// @Success 200 {object} util.Response{data=service.ProgressOverview}
// @Failure 403 {object} util.Response
// @Router /api/dashboards/students/{id} [get]
func (c *DashboardController) StudentDetail(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	targetID := util.MustParseUint(ctx.Param("id"))

	filter, err := c.ScopeService.Resolve(claims.UserID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	ok, err := c.ScopeService.ContainsUser(filter, targetID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	if !ok {
		util.Forbidden(ctx)
		return
	}

	overview, err := c.DashboardService.GetProgressOverview(ctx.Request.Context(), targetID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, overview)
}
