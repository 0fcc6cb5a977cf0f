package controller

import (
	"time"

	"english_edu_backend/internal/model"
	"english_edu_backend/internal/service"
	"english_edu_backend/internal/util"
	"english_edu_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
)

// LearningController serves the student-facing play loop: browsing the
// curriculum, answering questions, completing levels and tending the plant.
type LearningController struct {
	CatalogService   *service.CatalogService
	AttemptService   *service.AttemptService
	Progression      *service.ProgressionService
	DashboardService *service.DashboardService
	AuthService      *service.AuthService
}

func NewLearningController(
	catalogService *service.CatalogService,
	attemptService *service.AttemptService,
	progression *service.ProgressionService,
	dashboardService *service.DashboardService,
	authService *service.AuthService,
) *LearningController {
	return &LearningController{
		CatalogService:   catalogService,
		AttemptService:   attemptService,
		Progression:      progression,
		DashboardService: dashboardService,
		AuthService:      authService,
	}
}

// ListGroups godoc
// @Summary List curriculum groups
// @Tags learning
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.Group}
// @Router /api/learning/groups [get]
func (c *LearningController) ListGroups(ctx *gin.Context) {
	groups, err := c.CatalogService.ListGroups()
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, groups)
}

// ListLevels godoc
// @Summary List the levels of a group with the caller's unlock state
// @Tags learning
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "group id"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/learning/groups/{id}/levels [get]
func (c *LearningController) ListLevels(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	groupID := util.MustParseUint(ctx.Param("id"))

	levels, err := c.CatalogService.ListLevels(groupID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	type levelEntry struct {
		model.Level
		IsUnlocked bool `json:"isUnlocked"`
	}
	entries := make([]levelEntry, 0, len(levels))
	for i := range levels {
		unlocked, err := c.Progression.IsLevelUnlocked(claims.UserID, &levels[i])
		if err != nil {
			util.RespondError(ctx, err)
			return
		}
		entries = append(entries, levelEntry{Level: levels[i], IsUnlocked: unlocked})
	}
	util.Success(ctx, entries)
}

// GetLevel godoc
// @Summary Fetch a level's questions for play
// @Description Locked levels return 403. Correct answers are never included.
// @Tags learning
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "level id"
// @Success 200 {object} util.Response
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/learning/levels/{id} [get]
func (c *LearningController) GetLevel(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	levelID := util.MustParseUint(ctx.Param("id"))

	level, questions, err := c.CatalogService.GetLevelQuestions(levelID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	unlocked, err := c.Progression.IsLevelUnlocked(claims.UserID, level)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	if !unlocked {
		util.Forbidden(ctx)
		return
	}
	util.Success(ctx, gin.H{"level": level, "questions": questions})
}

type SubmitAnswerRequest struct {
	QuestionID uint   `json:"questionId" binding:"required"`
	Answer     string `json:"answer" binding:"required"`
}

// SubmitAnswer godoc
// @Summary Submit one answer
// @Description Grades server-side; XP is credited on the first correct answer only
// @Tags learning
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body SubmitAnswerRequest true "answer"
// @Success 200 {object} util.Response{data=service.SubmitAnswerResult}
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/learning/answers [post]
func (c *LearningController) SubmitAnswer(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var req SubmitAnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.AttemptService.SubmitAnswer(claims.UserID, req.QuestionID, req.Answer)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	monitoring.AnswersGraded.WithLabelValues(gradeOutcome(result.Correct)).Inc()
	monitoring.XPCredited.Add(float64(result.XPAwarded))
	util.Success(ctx, result)
}

func gradeOutcome(correct bool) string {
	if correct {
		return "correct"
	}
	return "incorrect"
}

type CompleteLevelRequest struct {
	TimeSpentSeconds int `json:"timeSpentSeconds" binding:"min=0"`
}

// CompleteLevel godoc
// @Summary Complete a level
// @Description Scores the level from recorded answers and applies pass/XP rules
// @Tags learning
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "level id"
// @Param   body body CompleteLevelRequest true "completion"
// @Success 200 {object} util.Response{data=service.CompleteLevelResult}
// @Failure 403 {object} util.Response
// @Failure 408 {object} util.Response
// @Router /api/learning/levels/{id}/complete [post]
func (c *LearningController) CompleteLevel(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	levelID := util.MustParseUint(ctx.Param("id"))

	var req CompleteLevelRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.AttemptService.CompleteLevel(claims.UserID, levelID, req.TimeSpentSeconds)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	outcome := "failed"
	if result.Passed {
		outcome = "passed"
	}
	monitoring.LevelsCompleted.WithLabelValues(outcome).Inc()
	monitoring.XPCredited.Add(float64(result.XPAwarded))
	util.Success(ctx, result)
}

// GetUnlockTest godoc
// @Summary Fetch a group's unlock test
// @Tags learning
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "group id"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/learning/groups/{id}/unlock-test [get]
func (c *LearningController) GetUnlockTest(ctx *gin.Context) {
	groupID := util.MustParseUint(ctx.Param("id"))
	test, questions, err := c.CatalogService.GetUnlockTest(groupID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"test": test, "questions": questions})
}

type SubmitUnlockTestRequest struct {
	Answers          []service.TestAnswer `json:"answers" binding:"required,dive"`
	TimeTakenSeconds int                  `json:"timeTakenSeconds" binding:"min=0"`
}

// SubmitUnlockTest godoc
// @Summary Submit a group unlock test
// @Tags learning
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "group id"
// @Param   body body SubmitUnlockTestRequest true "answers"
// @Success 200 {object} util.Response{data=service.UnlockTestResult}
// @Failure 404 {object} util.Response
// @Failure 408 {object} util.Response
// @Router /api/learning/groups/{id}/unlock-test [post]
func (c *LearningController) SubmitUnlockTest(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	groupID := util.MustParseUint(ctx.Param("id"))

	var req SubmitUnlockTestRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.AttemptService.SubmitUnlockTest(claims.UserID, groupID, req.Answers, req.TimeTakenSeconds)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// GetOverview godoc
// @Summary Student progress overview
// @Tags learning
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=service.ProgressOverview}
// @Router /api/learning/overview [get]
func (c *LearningController) GetOverview(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	overview, err := c.DashboardService.GetProgressOverview(ctx.Request.Context(), claims.UserID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, overview)
}

// GetPlant godoc
// @Summary Current plant state
// @Tags learning
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=model.UserPlant}
// @Router /api/learning/plant [get]
func (c *LearningController) GetPlant(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	identity, err := c.AuthService.GetCurrentUser(claims.UserID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	today := model.LocalDate(time.Now(), identity.Location())

	plant, err := c.Progression.PlantRepo.GetOrCreate(claims.UserID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	c.Progression.RefreshWilting(plant, today)
	util.Success(ctx, plant)
}

// CarePlant godoc
// @Summary Care for the plant
// @Description Restores health once per local day
// @Tags learning
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=model.UserPlant}
// @Failure 409 {object} util.Response
// @Router /api/learning/plant/care [post]
func (c *LearningController) CarePlant(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	identity, err := c.AuthService.GetCurrentUser(claims.UserID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	today := model.LocalDate(time.Now(), identity.Location())

	plant, err := c.Progression.CarePlant(claims.UserID, today)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, plant)
}

// GetLeaderboard godoc
// @Summary XP leaderboard
// @Tags learning
// @Produce  json
// @Security BearerAuth
// @Param   limit query int false "row count, default 20"
// @Success 200 {object} util.Response{data=[]service.LeaderboardEntry}
// @Router /api/learning/leaderboard [get]
func (c *LearningController) GetLeaderboard(ctx *gin.Context) {
	limit := util.MustParseInt(ctx.DefaultQuery("limit", "20"))
	entries, err := c.DashboardService.GetLeaderboard(ctx.Request.Context(), limit)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, entries)
}
