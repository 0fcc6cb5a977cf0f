package service

import (
	"encoding/json"
	"time"

	"english_edu_backend/internal/model"
	"english_edu_backend/internal/repository"
	"english_edu_backend/internal/util"

	"gorm.io/gorm"
)

// AttemptService handles the student write path: answering questions,
// completing levels and sitting group unlock tests. All XP awards are
// one-shot; retries and replays never double-credit.
type AttemptService struct {
	IdentityRepo *repository.IdentityRepository
	LevelRepo    *repository.LevelRepository
	QuestionRepo *repository.QuestionRepository
	ProgressRepo *repository.ProgressRepository
	TestRepo     *repository.TestAttemptRepository
	GroupRepo    *repository.GroupRepository
	Progression  *ProgressionService
	Aggregator   *AggregatorService
	DB           *gorm.DB
}

func NewAttemptService(
	identityRepo *repository.IdentityRepository,
	levelRepo *repository.LevelRepository,
	questionRepo *repository.QuestionRepository,
	progressRepo *repository.ProgressRepository,
	testRepo *repository.TestAttemptRepository,
	groupRepo *repository.GroupRepository,
	progression *ProgressionService,
	aggregator *AggregatorService,
	db *gorm.DB,
) *AttemptService {
	return &AttemptService{
		IdentityRepo: identityRepo,
		LevelRepo:    levelRepo,
		QuestionRepo: questionRepo,
		ProgressRepo: progressRepo,
		TestRepo:     testRepo,
		GroupRepo:    groupRepo,
		Progression:  progression,
		Aggregator:   aggregator,
		DB:           db,
	}
}

func (s *AttemptService) localDate(userID uint) (string, error) {
	identity, err := s.IdentityRepo.FindByID(userID)
	if err != nil {
		return "", err
	}
	return model.LocalDate(time.Now(), identity.Location()), nil
}

// SubmitAnswerResult is returned to the client after grading.
type SubmitAnswerResult struct {
	Correct     bool   `json:"correct"`
	XPAwarded   int    `json:"xpAwarded"`
	Attempts    int    `json:"attempts"`
	Explanation string `json:"explanation,omitempty"`
}

// SubmitAnswer grades one answer and records it. The question's XP is
// credited on the first correct answer only; later correct submissions
// update the attempt record without awarding anything.
func (s *AttemptService) SubmitAnswer(userID, questionID uint, answer string) (*SubmitAnswerResult, error) {
	question, err := s.QuestionRepo.FindByID(questionID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.NotFoundf("question %d", questionID)
		}
		return nil, err
	}
	if !question.Active {
		return nil, util.NotFoundf("question %d", questionID)
	}
	level, err := s.LevelRepo.FindByID(question.LevelID)
	if err != nil {
		return nil, err
	}
	unlocked, err := s.Progression.IsLevelUnlocked(userID, level)
	if err != nil {
		return nil, err
	}
	if !unlocked {
		return nil, util.Forbiddenf("level %d is locked", level.LevelNumber)
	}

	date, err := s.localDate(userID)
	if err != nil {
		return nil, err
	}

	grade := GradeQuestion(question, answer)
	now := time.Now()

	var result SubmitAnswerResult
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		var qp model.QuestionProgress
		err := tx.Where("user_id = ? AND question_id = ?", userID, questionID).First(&qp).Error
		if err == gorm.ErrRecordNotFound {
			qp = model.QuestionProgress{
				UserID:     userID,
				QuestionID: questionID,
				LevelID:    question.LevelID,
			}
		} else if err != nil {
			return err
		}

		firstAnswer := !qp.IsAnswered
		firstCorrect := grade.Correct && qp.XPEarned == 0

		qp.IsAnswered = true
		qp.IsCorrect = grade.Correct
		qp.UserAnswer = answer
		qp.Attempts++
		if firstCorrect {
			qp.XPEarned = question.XPValue
			qp.AnsweredAt = &now
		}
		if err := tx.Save(&qp).Error; err != nil {
			return err
		}

		// Running counters on the level record, nudged at most once per
		// question. Test levels are scored wholesale at completion.
		if !level.IsTestLevel && (firstAnswer || firstCorrect) {
			if err := s.nudgeLevelProgress(tx, userID, level, firstAnswer, firstCorrect, now); err != nil {
				return err
			}
		}

		if firstCorrect {
			if err := s.Aggregator.ApplyQuestionCredited(tx, QuestionCredited{
				UserID:     userID,
				QuestionID: questionID,
				LevelID:    question.LevelID,
				XP:         question.XPValue,
				Date:       date,
			}); err != nil {
				return err
			}
			result.XPAwarded = question.XPValue
		}

		result.Correct = grade.Correct
		result.Attempts = qp.Attempts
		if grade.Correct {
			result.Explanation = question.Explanation
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *AttemptService) nudgeLevelProgress(tx *gorm.DB, userID uint, level *model.Level, firstAnswer, firstCorrect bool, now time.Time) error {
	var lp model.LevelProgress
	err := tx.Where("user_id = ? AND level_id = ?", userID, level.ID).First(&lp).Error
	if err == gorm.ErrRecordNotFound {
		lp = model.LevelProgress{
			UserID:    userID,
			LevelID:   level.ID,
			StartedAt: &now,
		}
	} else if err != nil {
		return err
	}
	if firstAnswer {
		lp.QuestionsAnswered++
	}
	if firstCorrect {
		lp.CorrectAnswers++
	}
	return tx.Save(&lp).Error
}

// CompleteLevelResult reports a completion outcome.
type CompleteLevelResult struct {
	Passed               bool              `json:"passed"`
	CompletionPercentage float64           `json:"completionPercentage"`
	CorrectAnswers       int               `json:"correctAnswers"`
	QuestionCount        int               `json:"questionCount"`
	XPAwarded            int               `json:"xpAwarded"`
	GroupCompleted       bool              `json:"groupCompleted"`
	NextLevel            *NextLevelPointer `json:"nextLevel,omitempty"`
}

// CompleteLevel scores a level from the recorded per-question results,
// never from client-supplied counts. The first passing completion
// credits the level XP and flips is_completed permanently; a later
// worse run can not un-complete the level or claw XP back.
func (s *AttemptService) CompleteLevel(userID, levelID uint, timeSpentSeconds int) (*CompleteLevelResult, error) {
	level, err := s.LevelRepo.FindByID(levelID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.NotFoundf("level %d", levelID)
		}
		return nil, err
	}
	unlocked, err := s.Progression.IsLevelUnlocked(userID, level)
	if err != nil {
		return nil, err
	}
	if !unlocked {
		return nil, util.Forbiddenf("level %d is locked", level.LevelNumber)
	}

	questionCount, err := s.QuestionRepo.CountByLevel(levelID)
	if err != nil {
		return nil, err
	}
	if questionCount == 0 {
		return nil, util.Invalidf("level %d has no questions", level.LevelNumber)
	}

	date, err := s.localDate(userID)
	if err != nil {
		return nil, err
	}
	now := time.Now()

	var result CompleteLevelResult
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		var correct int64
		if err := tx.Model(&model.QuestionProgress{}).
			Where("user_id = ? AND level_id = ? AND is_correct = ?", userID, levelID, true).
			Count(&correct).Error; err != nil {
			return err
		}

		pct := float64(correct) / float64(questionCount) * 100
		passed := pct >= float64(level.PassPercentage)

		var lp model.LevelProgress
		err := tx.Where("user_id = ? AND level_id = ?", userID, levelID).First(&lp).Error
		if err == gorm.ErrRecordNotFound {
			lp = model.LevelProgress{
				UserID:    userID,
				LevelID:   levelID,
				StartedAt: &now,
			}
		} else if err != nil {
			return err
		}

		firstPass := passed && !lp.IsCompleted

		lp.QuestionsAnswered = int(questionCount)
		lp.CorrectAnswers = int(correct)
		if pct > lp.CompletionPercentage {
			lp.CompletionPercentage = pct
		}
		if firstPass {
			lp.IsCompleted = true
			lp.CompletedAt = &now
			lp.XPEarned = level.XPReward
			lp.TimeSpentSeconds = timeSpentSeconds
			result.XPAwarded = level.XPReward
		}
		if err := tx.Save(&lp).Error; err != nil {
			return err
		}

		result.Passed = passed
		result.CompletionPercentage = lp.CompletionPercentage
		result.CorrectAnswers = int(correct)
		result.QuestionCount = int(questionCount)

		if !firstPass {
			return nil
		}

		groupDone, err := s.rollGroupProgress(tx, userID, level, now)
		if err != nil {
			return err
		}
		result.GroupCompleted = groupDone

		if err := s.Aggregator.ApplyLevelCompleted(tx, LevelCompleted{
			UserID:           userID,
			LevelID:          levelID,
			GroupID:          level.GroupID,
			XPDelta:          level.XPReward,
			Passed:           true,
			TimeSpentSeconds: timeSpentSeconds,
			CompletedAt:      now,
			Date:             date,
		}); err != nil {
			return err
		}
		if groupDone {
			if err := s.Aggregator.ApplyGroupCompleted(tx, GroupCompleted{
				UserID:  userID,
				GroupID: level.GroupID,
				Date:    date,
			}); err != nil {
				return err
			}
		}
		broken, err := s.Progression.AfterLevelCompleted(tx, userID, level, date)
		if err != nil {
			return err
		}
		if broken != nil {
			if err := s.Aggregator.ApplyStreakBroken(tx, *broken); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	next, err := s.Progression.NextLevel(userID)
	if err == nil {
		result.NextLevel = next
	}
	return &result, nil
}

// rollGroupProgress refreshes the per-group rollup after a completion and
// reports whether the group just crossed its completion threshold.
func (s *AttemptService) rollGroupProgress(tx *gorm.DB, userID uint, level *model.Level, now time.Time) (bool, error) {
	group, err := s.GroupRepo.WithTx(tx).FindByID(level.GroupID)
	if err != nil {
		return false, err
	}

	var completed int64
	if err := tx.Model(&model.LevelProgress{}).
		Joins("JOIN levels ON levels.id = level_progress.level_id").
		Where("level_progress.user_id = ? AND level_progress.is_completed = ? AND levels.group_id = ?",
			userID, true, group.ID).
		Count(&completed).Error; err != nil {
		return false, err
	}
	var xp int64
	if err := tx.Model(&model.LevelProgress{}).
		Joins("JOIN levels ON levels.id = level_progress.level_id").
		Where("level_progress.user_id = ? AND levels.group_id = ?", userID, group.ID).
		Select("COALESCE(SUM(level_progress.xp_earned), 0)").
		Scan(&xp).Error; err != nil {
		return false, err
	}

	pct := float64(0)
	if group.TotalLevels > 0 {
		pct = float64(completed) / float64(group.TotalLevels) * 100
	}

	var gp model.GroupProgress
	err = tx.Where("user_id = ? AND group_id = ?", userID, group.ID).First(&gp).Error
	if err == gorm.ErrRecordNotFound {
		gp = model.GroupProgress{
			UserID:      userID,
			GroupID:     group.ID,
			GroupNumber: group.GroupNumber,
			IsUnlocked:  true,
			UnlockedAt:  &now,
		}
	} else if err != nil {
		return false, err
	}

	wasCompleted := gp.IsCompleted
	gp.LevelsCompleted = int(completed)
	gp.CompletionPercentage = pct
	gp.TotalXPEarned = int(xp)
	if pct >= float64(model.GroupCompletePercent) && !gp.IsCompleted {
		gp.IsCompleted = true
		gp.CompletedAt = &now
		gp.TotalXPEarned += group.XPReward
	}
	if err := tx.Save(&gp).Error; err != nil {
		return false, err
	}
	return gp.IsCompleted && !wasCompleted, nil
}

// TestAnswer is one answer in an unlock test submission.
type TestAnswer struct {
	QuestionOrder int    `json:"questionOrder" binding:"required"`
	Answer        string `json:"answer"`
}

// UnlockTestResult reports a graded unlock test attempt.
type UnlockTestResult struct {
	Score         int     `json:"score"`
	Total         int     `json:"total"`
	Percentage    float64 `json:"percentage"`
	Passed        bool    `json:"passed"`
	XPAwarded     int     `json:"xpAwarded"`
	GroupUnlocked bool    `json:"groupUnlocked"`
}

// SubmitUnlockTest grades a group unlock test server-side and records the
// attempt. Passing on a repeat attempt is allowed but the test XP is paid
// out once.
func (s *AttemptService) SubmitUnlockTest(userID, groupID uint, answers []TestAnswer, timeTakenSeconds int) (*UnlockTestResult, error) {
	test, err := s.TestRepo.FindUnlockTest(groupID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.NotFoundf("group %d has no unlock test", groupID)
		}
		return nil, err
	}
	if test.TimeLimitSeconds > 0 && timeTakenSeconds > test.TimeLimitSeconds {
		return nil, util.ErrTimeoutExceeded
	}

	questions, err := s.TestRepo.ListTestQuestions(test.ID)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, util.Invalidf("unlock test %d has no questions", test.ID)
	}

	byOrder := make(map[int]string, len(answers))
	for _, a := range answers {
		byOrder[a.QuestionOrder] = a.Answer
	}

	score := 0
	for i := range questions {
		q := &questions[i]
		var accepted []string
		var one string
		if err := json.Unmarshal(q.CorrectAnswer, &one); err == nil {
			accepted = []string{one}
		} else {
			json.Unmarshal(q.CorrectAnswer, &accepted)
		}
		if GradeAgainst(accepted, byOrder[q.QuestionOrder]).Correct {
			score++
		}
	}

	pct := float64(score) / float64(len(questions)) * 100
	passed := pct >= float64(test.PassPercentage)

	alreadyPassed, err := s.TestRepo.HasPassed(userID, test.ID)
	if err != nil {
		return nil, err
	}

	xp := 0
	if passed && !alreadyPassed {
		xp = test.XPReward
	}

	answersJSON, _ := json.Marshal(byOrder)
	now := time.Now()
	attempt := model.TestAttempt{
		UserID:           userID,
		TestID:           test.ID,
		Score:            score,
		Total:            len(questions),
		Percentage:       pct,
		Passed:           passed,
		TimeTakenSeconds: timeTakenSeconds,
		Answers:          answersJSON,
		XPEarned:         xp,
		StartedAt:        now.Add(-time.Duration(timeTakenSeconds) * time.Second),
		SubmittedAt:      now,
	}
	if err := s.TestRepo.Create(&attempt); err != nil {
		return nil, err
	}

	result := &UnlockTestResult{
		Score:      score,
		Total:      len(questions),
		Percentage: pct,
		Passed:     passed,
		XPAwarded:  xp,
	}
	if passed {
		unlocked, err := s.Progression.IsGroupUnlocked(userID, groupID)
		if err != nil {
			return nil, err
		}
		result.GroupUnlocked = unlocked
	}
	return result, nil
}
