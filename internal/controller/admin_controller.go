package controller

import (
	"english_edu_backend/internal/model"
	"english_edu_backend/internal/service"
	"english_edu_backend/internal/util"
	"english_edu_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
)

// AdminController covers the back-office surface: the school hierarchy,
// people, curriculum imports and the rollup rebuild.
type AdminController struct {
	IdentityService  *service.IdentityService
	CatalogService   *service.CatalogService
	Aggregator       *service.AggregatorService
	DashboardService *service.DashboardService
}

func NewAdminController(
	identityService *service.IdentityService,
	catalogService *service.CatalogService,
	aggregator *service.AggregatorService,
	dashboardService *service.DashboardService,
) *AdminController {
	return &AdminController{
		IdentityService:  identityService,
		CatalogService:   catalogService,
		Aggregator:       aggregator,
		DashboardService: dashboardService,
	}
}

// CreateCampus godoc
// @Summary Create a campus
// @Tags admin
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body service.CreateCampusInput true "campus"
// @Success 201 {object} util.Response{data=model.Campus}
// @Failure 409 {object} util.Response
// @Router /api/admin/campuses [post]
func (c *AdminController) CreateCampus(ctx *gin.Context) {
	var req service.CreateCampusInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	campus, err := c.IdentityService.CreateCampus(req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, campus)
}

// ListCampuses godoc
// @Summary List campuses
// @Tags admin
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.Campus}
// @Router /api/admin/campuses [get]
func (c *AdminController) ListCampuses(ctx *gin.Context) {
	campuses, err := c.IdentityService.ListCampuses()
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, campuses)
}

type CampusStatusRequest struct {
	Status model.CampusStatus `json:"status" binding:"required"`
}

// SetCampusStatus godoc
// @Summary Change a campus status
// @Tags admin
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "campus id"
// @Param   body body CampusStatusRequest true "status"
// @Success 200 {object} util.Response{data=model.Campus}
// @Failure 404 {object} util.Response
// @Router /api/admin/campuses/{id}/status [put]
func (c *AdminController) SetCampusStatus(ctx *gin.Context) {
	var req CampusStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	campus, err := c.IdentityService.SetCampusStatus(util.MustParseUint(ctx.Param("id")), req.Status)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, campus)
}

// CreateGrade godoc
// @Summary Create a grade on a campus shift
// @Tags admin
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body service.CreateGradeInput true "grade"
// @Success 201 {object} util.Response{data=model.Grade}
// @Failure 422 {object} util.Response
// @Router /api/admin/grades [post]
func (c *AdminController) CreateGrade(ctx *gin.Context) {
	var req service.CreateGradeInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	grade, err := c.IdentityService.CreateGrade(req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, grade)
}

// CreateClassroom godoc
// @Summary Create a classroom section
// @Tags admin
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body service.CreateClassroomInput true "classroom"
// @Success 201 {object} util.Response{data=model.Classroom}
// @Failure 422 {object} util.Response
// @Router /api/admin/classrooms [post]
func (c *AdminController) CreateClassroom(ctx *gin.Context) {
	var req service.CreateClassroomInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	classroom, err := c.IdentityService.CreateClassroom(req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, classroom)
}

type AssignTeacherRequest struct {
	TeacherID uint `json:"teacherId" binding:"required"`
}

// AssignClassTeacher godoc
// @Summary Assign a class teacher
// @Tags admin
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "classroom id"
// @Param   body body AssignTeacherRequest true "teacher"
// @Success 200 {object} util.Response{data=model.Classroom}
// @Failure 409 {object} util.Response
// @Router /api/admin/classrooms/{id}/teacher [put]
func (c *AdminController) AssignClassTeacher(ctx *gin.Context) {
	var req AssignTeacherRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	classroom, err := c.IdentityService.AssignClassTeacher(util.MustParseUint(ctx.Param("id")), req.TeacherID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, classroom)
}

// CreateStudent godoc
// @Summary Enroll a student and issue their ID
// @Tags admin
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body service.CreateStudentInput true "student"
// @Success 201 {object} util.Response{data=model.Student}
// @Failure 422 {object} util.Response
// @Router /api/admin/students [post]
func (c *AdminController) CreateStudent(ctx *gin.Context) {
	var req service.CreateStudentInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	student, err := c.IdentityService.CreateStudent(req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, student)
}

// DeactivateStudent godoc
// @Summary Deactivate a student
// @Description Keeps the row and its progress; the ID is never reissued
// @Tags admin
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "student id"
// @Success 200 {object} util.Response{data=model.Student}
// @Failure 404 {object} util.Response
// @Router /api/admin/students/{id} [delete]
func (c *AdminController) DeactivateStudent(ctx *gin.Context) {
	student, err := c.IdentityService.DeactivateStudent(util.MustParseUint(ctx.Param("id")))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, student)
}

// CreateTeacher godoc
// @Summary Register a teacher
// @Tags admin
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body service.CreateTeacherInput true "teacher"
// @Success 201 {object} util.Response{data=model.Staff}
// @Failure 409 {object} util.Response
// @Router /api/admin/teachers [post]
func (c *AdminController) CreateTeacher(ctx *gin.Context) {
	var req service.CreateTeacherInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	staff, err := c.IdentityService.CreateTeacher(req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, staff)
}

// CreateCoordinator godoc
// @Summary Register an English coordinator
// @Tags admin
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body service.CreateCoordinatorInput true "coordinator"
// @Success 201 {object} util.Response{data=model.Staff}
// @Failure 409 {object} util.Response
// @Router /api/admin/coordinators [post]
func (c *AdminController) CreateCoordinator(ctx *gin.Context) {
	var req service.CreateCoordinatorInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	staff, err := c.IdentityService.CreateCoordinator(req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, staff)
}

// ImportCurriculum godoc
// @Summary Import curriculum content
// @Description Applies a JSON payload atomically under the import deadline
// @Tags admin
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body service.ImportPayload true "payload"
// @Success 200 {object} util.Response{data=service.ImportStats}
// @Failure 400 {object} util.Response
// @Failure 408 {object} util.Response
// @Router /api/admin/curriculum/import [post]
func (c *AdminController) ImportCurriculum(ctx *gin.Context) {
	var payload service.ImportPayload
	if err := ctx.ShouldBindJSON(&payload); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	stats, err := c.CatalogService.ImportInline(ctx.Request.Context(), &payload)
	if err != nil {
		monitoring.CurriculumImports.WithLabelValues("rejected").Inc()
		util.RespondError(ctx, err)
		return
	}
	monitoring.CurriculumImports.WithLabelValues("applied").Inc()
	util.Success(ctx, stats)
}

type ImportObjectRequest struct {
	Object string `json:"object" binding:"required"`
}

// ImportCurriculumObject godoc
// @Summary Import curriculum from the content bucket
// @Description Fetches a .json or .csv object from object storage and applies it
// @Tags admin
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body ImportObjectRequest true "object name"
// @Success 200 {object} util.Response{data=service.ImportStats}
// @Failure 404 {object} util.Response
// @Failure 408 {object} util.Response
// @Router /api/admin/curriculum/import-object [post]
func (c *AdminController) ImportCurriculumObject(ctx *gin.Context) {
	var req ImportObjectRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	stats, err := c.CatalogService.ImportFromMinio(ctx.Request.Context(), req.Object)
	if err != nil {
		monitoring.CurriculumImports.WithLabelValues("rejected").Inc()
		util.RespondError(ctx, err)
		return
	}
	monitoring.CurriculumImports.WithLabelValues("applied").Inc()
	util.Success(ctx, stats)
}

type RebuildRequest struct {
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
}

// RebuildAggregates godoc
// @Summary Rebuild analytics rollups
// @Description Recomputes the rollup tables from primary progress rows for a date range
// @Tags admin
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body RebuildRequest true "date range"
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response
// @Router /api/admin/analytics/rebuild [post]
func (c *AdminController) RebuildAggregates(ctx *gin.Context) {
	var req RebuildRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if err := c.Aggregator.RebuildAggregates(req.From, req.To); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"from": req.From, "to": req.To})
}

// AdminDashboard godoc
// @Summary Platform-wide dashboard
// @Tags admin
// @Produce  json
// @Security BearerAuth
// @Param   date query string false "date, defaults to today"
// @Success 200 {object} util.Response{data=service.AdminDashboard}
// @Router /api/admin/dashboard [get]
func (c *AdminController) AdminDashboard(ctx *gin.Context) {
	dash, err := c.DashboardService.GetAdminDashboard(ctx.Request.Context(), dateOrToday(ctx))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, dash)
}
