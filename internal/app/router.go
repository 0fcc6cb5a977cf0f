package app

import (
	"english_edu_backend/internal/config"
	"english_edu_backend/internal/middleware"
	"english_edu_backend/internal/model"
	"english_edu_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))
	router.GET("/metrics", monitoring.PrometheusHandler())

	// Public routes
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/login", c.auth.Login)
	}

	// Authenticated routes
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.identity))
	{
		authGroup.GET("/me", c.auth.Me)
		authGroup.PUT("/me/password", c.auth.ChangePassword)

		a.registerLearningRoutes(authGroup, c)
		a.registerStaffRoutes(authGroup, c)
	}

	a.registerAdminRoutes(router, c, cfg)
}

// Student play loop. Staff accounts can browse the curriculum too, so
// only the write endpoints are student-gated.
func (a *App) registerLearningRoutes(rg *gin.RouterGroup, c *controllers) {
	learning := rg.Group("/learning")
	{
		learning.GET("/groups", c.learning.ListGroups)
		learning.GET("/groups/:id/levels", c.learning.ListLevels)
		learning.GET("/groups/:id/unlock-test", c.learning.GetUnlockTest)
		learning.GET("/levels/:id", c.learning.GetLevel)
		learning.GET("/leaderboard", c.learning.GetLeaderboard)

		student := learning.Group("")
		student.Use(middleware.RoleMiddleware(model.RoleStudent))
		{
			student.POST("/answers", c.learning.SubmitAnswer)
			student.POST("/levels/:id/complete", c.learning.CompleteLevel)
			student.POST("/groups/:id/unlock-test", c.learning.SubmitUnlockTest)
			student.GET("/overview", c.learning.GetOverview)
			student.GET("/plant", c.learning.GetPlant)
			student.POST("/plant/care", c.learning.CarePlant)
		}
	}
}

func (a *App) registerStaffRoutes(rg *gin.RouterGroup, c *controllers) {
	dashboards := rg.Group("/dashboards")
	dashboards.Use(middleware.RoleMiddleware(model.RoleTeacher, model.RoleCoordinator))
	{
		dashboards.GET("/teacher", c.dashboard.TeacherDashboard)
		dashboards.GET("/coordinator", c.dashboard.CoordinatorDashboard)
		dashboards.GET("/grades/:id", c.dashboard.GradePerformance)
		dashboards.GET("/students", c.dashboard.ScopedStudents)
		dashboards.GET("/students/:id", c.dashboard.StudentDetail)
	}
}

func (a *App) registerAdminRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(cfg), middleware.RoleMiddleware(model.RoleAdmin))
	{
		admin.POST("/campuses", c.admin.CreateCampus)
		admin.GET("/campuses", c.admin.ListCampuses)
		admin.PUT("/campuses/:id/status", c.admin.SetCampusStatus)
		admin.POST("/grades", c.admin.CreateGrade)
		admin.POST("/classrooms", c.admin.CreateClassroom)
		admin.PUT("/classrooms/:id/teacher", c.admin.AssignClassTeacher)

		admin.POST("/students", c.admin.CreateStudent)
		admin.DELETE("/students/:id", c.admin.DeactivateStudent)
		admin.POST("/teachers", c.admin.CreateTeacher)
		admin.POST("/coordinators", c.admin.CreateCoordinator)

		admin.POST("/curriculum/import", c.admin.ImportCurriculum)
		admin.POST("/curriculum/import-object", c.admin.ImportCurriculumObject)
		admin.POST("/analytics/rebuild", c.admin.RebuildAggregates)
		admin.GET("/dashboard", c.admin.AdminDashboard)
	}
}
