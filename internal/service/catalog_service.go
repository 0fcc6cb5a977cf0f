package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"english_edu_backend/internal/config"
	"english_edu_backend/internal/model"
	"english_edu_backend/internal/repository"
	"english_edu_backend/internal/util"
	"english_edu_backend/pkg/logger"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CatalogService serves curriculum reads and owns the bulk importer. An
// import is one transaction under a configurable deadline: it lands
// completely or not at all.
type CatalogService struct {
	GroupRepo    *repository.GroupRepository
	LevelRepo    *repository.LevelRepository
	QuestionRepo *repository.QuestionRepository
	TestRepo     *repository.TestAttemptRepository
	Minio        *minio.Client
	Cfg          *config.Config
	DB           *gorm.DB
}

func NewCatalogService(
	groupRepo *repository.GroupRepository,
	levelRepo *repository.LevelRepository,
	questionRepo *repository.QuestionRepository,
	testRepo *repository.TestAttemptRepository,
	minioClient *minio.Client,
	cfg *config.Config,
	db *gorm.DB,
) *CatalogService {
	return &CatalogService{
		GroupRepo:    groupRepo,
		LevelRepo:    levelRepo,
		QuestionRepo: questionRepo,
		TestRepo:     testRepo,
		Minio:        minioClient,
		Cfg:          cfg,
		DB:           db,
	}
}

func (s *CatalogService) ListGroups() ([]model.Group, error) {
	return s.GroupRepo.List()
}

func (s *CatalogService) GetGroup(id uint) (*model.Group, error) {
	group, err := s.GroupRepo.FindByID(id)
	if err == gorm.ErrRecordNotFound {
		return nil, util.NotFoundf("group %d", id)
	}
	return group, err
}

func (s *CatalogService) ListLevels(groupID uint) ([]model.Level, error) {
	if _, err := s.GetGroup(groupID); err != nil {
		return nil, err
	}
	return s.LevelRepo.ListByGroup(groupID)
}

// GetLevelQuestions returns the playable questions of a level. Correct
// answers never serialize; grading is server-side only.
func (s *CatalogService) GetLevelQuestions(levelID uint) (*model.Level, []model.Question, error) {
	level, err := s.LevelRepo.FindByID(levelID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, util.NotFoundf("level %d", levelID)
		}
		return nil, nil, err
	}
	questions, err := s.QuestionRepo.ListByLevel(levelID)
	if err != nil {
		return nil, nil, err
	}
	return level, questions, nil
}

// GetUnlockTest returns a group's unlock test and its questions.
func (s *CatalogService) GetUnlockTest(groupID uint) (*model.GroupUnlockTest, []model.UnlockTestQuestion, error) {
	test, err := s.TestRepo.FindUnlockTest(groupID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, util.NotFoundf("group %d has no unlock test", groupID)
		}
		return nil, nil, err
	}
	questions, err := s.TestRepo.ListTestQuestions(test.ID)
	if err != nil {
		return nil, nil, err
	}
	return test, questions, nil
}

// Import payload shapes. CSV uploads are converted into the same shape
// before validation so both sources share one code path.

type ImportQuestion struct {
	QuestionOrder    int                `json:"questionOrder"`
	QuestionType     model.QuestionType `json:"questionType"`
	Prompt           string             `json:"prompt"`
	Options          []string           `json:"options,omitempty"`
	CorrectAnswers   []string           `json:"correctAnswers"`
	Hint             string             `json:"hint,omitempty"`
	Explanation      string             `json:"explanation,omitempty"`
	XPValue          int                `json:"xpValue"`
	TimeLimitSeconds int                `json:"timeLimitSeconds"`
}

type ImportLevel struct {
	LevelNumber      int              `json:"levelNumber"`
	Title            string           `json:"title"`
	PassPercentage   int              `json:"passPercentage"`
	XPReward         int              `json:"xpReward"`
	TimeLimitSeconds int              `json:"timeLimitSeconds"`
	Questions        []ImportQuestion `json:"questions"`
}

type ImportUnlockTest struct {
	Title            string           `json:"title"`
	PassPercentage   int              `json:"passPercentage"`
	TimeLimitSeconds int              `json:"timeLimitSeconds"`
	XPReward         int              `json:"xpReward"`
	Questions        []ImportQuestion `json:"questions"`
}

type ImportGroup struct {
	GroupNumber     int                   `json:"groupNumber"`
	Title           string                `json:"title"`
	Description     string                `json:"description,omitempty"`
	UnlockCondition model.UnlockCondition `json:"unlockCondition,omitempty"`
	XPReward        int                   `json:"xpReward"`
	Badge           string                `json:"badge,omitempty"`
	Levels          []ImportLevel         `json:"levels"`
	UnlockTest      *ImportUnlockTest     `json:"unlockTest,omitempty"`
}

type ImportPayload struct {
	Groups []ImportGroup `json:"groups"`
}

// ImportStats summarizes an applied import.
type ImportStats struct {
	Groups    int `json:"groups"`
	Levels    int `json:"levels"`
	Questions int `json:"questions"`
	Tests     int `json:"tests"`
}

// ImportInline applies a JSON payload.
func (s *CatalogService) ImportInline(ctx context.Context, payload *ImportPayload) (*ImportStats, error) {
	return s.applyImport(ctx, payload)
}

// ImportFromMinio fetches a payload object dropped in the content bucket
// and applies it. The extension picks the decoder.
func (s *CatalogService) ImportFromMinio(ctx context.Context, objectName string) (*ImportStats, error) {
	if s.Minio == nil {
		return nil, util.Invalidf("object storage is not configured")
	}
	obj, err := s.Minio.GetObject(ctx, s.Cfg.Storage.MinioBucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, util.NotFoundf("object %s", objectName)
	}

	var payload *ImportPayload
	switch {
	case strings.HasSuffix(objectName, ".csv"):
		payload, err = ParseImportCSV(strings.NewReader(string(data)))
	case strings.HasSuffix(objectName, ".json"):
		payload = &ImportPayload{}
		err = json.Unmarshal(data, payload)
		if err != nil {
			err = util.Invalidf("bad JSON payload: %v", err)
		}
	default:
		return nil, util.Invalidf("unsupported object type %s", objectName)
	}
	if err != nil {
		return nil, err
	}
	return s.applyImport(ctx, payload)
}

// ParseImportCSV converts the content team's flat CSV into the payload
// shape. Columns: group_number, group_title, level_number, level_title,
// question_order, question_type, prompt, options, correct_answers, hint,
// explanation, xp_value, time_limit_seconds. List columns use | as the
// separator.
func ParseImportCSV(r io.Reader) (*ImportPayload, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 13

	records, err := reader.ReadAll()
	if err != nil {
		return nil, util.Invalidf("bad CSV: %v", err)
	}
	if len(records) < 2 {
		return nil, util.Invalidf("CSV has no data rows")
	}

	groups := make(map[int]*ImportGroup)
	levels := make(map[int]map[int]*ImportLevel)
	var groupOrder []int

	for i, rec := range records[1:] {
		line := i + 2
		groupNumber, err := strconv.Atoi(strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, util.Invalidf("line %d: bad group_number %q", line, rec[0])
		}
		levelNumber, err := strconv.Atoi(strings.TrimSpace(rec[2]))
		if err != nil {
			return nil, util.Invalidf("line %d: bad level_number %q", line, rec[2])
		}
		questionOrder, err := strconv.Atoi(strings.TrimSpace(rec[4]))
		if err != nil {
			return nil, util.Invalidf("line %d: bad question_order %q", line, rec[4])
		}
		xpValue, err := strconv.Atoi(strings.TrimSpace(rec[11]))
		if err != nil {
			return nil, util.Invalidf("line %d: bad xp_value %q", line, rec[11])
		}
		timeLimit, err := strconv.Atoi(strings.TrimSpace(rec[12]))
		if err != nil {
			return nil, util.Invalidf("line %d: bad time_limit_seconds %q", line, rec[12])
		}

		if _, ok := groups[groupNumber]; !ok {
			groups[groupNumber] = &ImportGroup{GroupNumber: groupNumber, Title: strings.TrimSpace(rec[1])}
			levels[groupNumber] = make(map[int]*ImportLevel)
			groupOrder = append(groupOrder, groupNumber)
		}
		lv, ok := levels[groupNumber][levelNumber]
		if !ok {
			// Level-scoped tuning is not part of the CSV; imports that
			// need custom rewards or limits use the JSON payload.
			lv = &ImportLevel{LevelNumber: levelNumber, Title: strings.TrimSpace(rec[3]), XPReward: 10}
			levels[groupNumber][levelNumber] = lv
		}

		var options []string
		if strings.TrimSpace(rec[7]) != "" {
			options = strings.Split(rec[7], "|")
		}
		lv.Questions = append(lv.Questions, ImportQuestion{
			QuestionOrder:    questionOrder,
			QuestionType:     model.QuestionType(strings.TrimSpace(rec[5])),
			Prompt:           rec[6],
			Options:          options,
			CorrectAnswers:   strings.Split(rec[8], "|"),
			Hint:             rec[9],
			Explanation:      rec[10],
			XPValue:          xpValue,
			TimeLimitSeconds: timeLimit,
		})
	}

	payload := &ImportPayload{}
	for _, n := range groupOrder {
		g := groups[n]
		numbers := make([]int, 0, len(levels[n]))
		for ln := range levels[n] {
			numbers = append(numbers, ln)
		}
		sort.Ints(numbers)
		for _, ln := range numbers {
			g.Levels = append(g.Levels, *levels[n][ln])
		}
		payload.Groups = append(payload.Groups, *g)
	}
	return payload, nil
}

func (s *CatalogService) applyImport(ctx context.Context, payload *ImportPayload) (*ImportStats, error) {
	if len(payload.Groups) == 0 {
		return nil, util.Invalidf("import payload has no groups")
	}
	if err := validateImport(payload); err != nil {
		return nil, err
	}

	deadline := time.Duration(s.Cfg.Import.DeadlineSeconds) * time.Second
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	start := time.Now()
	stats := &ImportStats{}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range payload.Groups {
			if err := s.importGroup(tx, &payload.Groups[i], stats); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, util.ErrTimeoutExceeded
		}
		return nil, err
	}

	logger.Log.Info("curriculum import applied",
		zap.Int("groups", stats.Groups),
		zap.Int("levels", stats.Levels),
		zap.Int("questions", stats.Questions),
		zap.Duration("took", time.Since(start)))
	return stats, nil
}

func validateImport(payload *ImportPayload) error {
	seenGroups := make(map[int]bool)
	for gi := range payload.Groups {
		g := &payload.Groups[gi]
		if g.GroupNumber < model.MinGroupNumber || g.GroupNumber > model.MaxGroupNumber {
			return util.Invalidf("group number %d out of range", g.GroupNumber)
		}
		if seenGroups[g.GroupNumber] {
			return util.Invalidf("group %d appears twice", g.GroupNumber)
		}
		seenGroups[g.GroupNumber] = true
		if strings.TrimSpace(g.Title) == "" {
			return util.Invalidf("group %d has no title", g.GroupNumber)
		}
		if g.UnlockCondition != "" {
			switch g.UnlockCondition {
			case model.UnlockCompletePrevious, model.UnlockPassTest, model.UnlockBoth:
			default:
				return util.Invalidf("group %d: unknown unlock condition %q", g.GroupNumber, g.UnlockCondition)
			}
		}

		want := model.LevelCountFor(g.GroupNumber)
		if len(g.Levels) != want {
			return util.Invalidf("group %d must have %d levels, got %d", g.GroupNumber, want, len(g.Levels))
		}
		seenLevels := make(map[int]bool, len(g.Levels))
		for li := range g.Levels {
			lv := &g.Levels[li]
			if lv.LevelNumber < 1 || lv.LevelNumber > want {
				return util.Invalidf("group %d: level number %d out of range", g.GroupNumber, lv.LevelNumber)
			}
			if seenLevels[lv.LevelNumber] {
				return util.Invalidf("group %d: level %d appears twice", g.GroupNumber, lv.LevelNumber)
			}
			seenLevels[lv.LevelNumber] = true
			if err := validateImportLevel(g.GroupNumber, lv); err != nil {
				return err
			}
		}

		if g.UnlockTest != nil {
			if len(g.UnlockTest.Questions) == 0 {
				return util.Invalidf("group %d: unlock test has no questions", g.GroupNumber)
			}
			if g.UnlockTest.PassPercentage < 0 || g.UnlockTest.PassPercentage > 100 {
				return util.Invalidf("group %d: unlock test pass percentage %d out of range", g.GroupNumber, g.UnlockTest.PassPercentage)
			}
			for qi := range g.UnlockTest.Questions {
				if err := validateImportQuestion(fmt.Sprintf("group %d unlock test", g.GroupNumber), qi+1, &g.UnlockTest.Questions[qi]); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func validateImportLevel(groupNumber int, lv *ImportLevel) error {
	where := fmt.Sprintf("group %d level %d", groupNumber, lv.LevelNumber)
	isTest := model.IsTestNumber(lv.LevelNumber)

	if !isTest && len(lv.Questions) != model.RegularQuestions {
		return util.Invalidf("%s: regular levels need %d questions, got %d", where, model.RegularQuestions, len(lv.Questions))
	}
	if isTest && len(lv.Questions) == 0 {
		return util.Invalidf("%s: test level has no questions", where)
	}
	if lv.PassPercentage < 0 || lv.PassPercentage > 100 {
		return util.Invalidf("%s: pass percentage %d out of range", where, lv.PassPercentage)
	}
	if lv.XPReward < 1 {
		return util.Invalidf("%s: xp reward must be at least 1", where)
	}
	if lv.TimeLimitSeconds < 0 {
		return util.Invalidf("%s: negative time limit", where)
	}

	seen := make(map[int]bool, len(lv.Questions))
	for qi := range lv.Questions {
		q := &lv.Questions[qi]
		if q.QuestionOrder < 1 || q.QuestionOrder > len(lv.Questions) {
			return util.Invalidf("%s: question order %d out of range", where, q.QuestionOrder)
		}
		if seen[q.QuestionOrder] {
			return util.Invalidf("%s: question order %d appears twice", where, q.QuestionOrder)
		}
		seen[q.QuestionOrder] = true
		if err := validateImportQuestion(where, q.QuestionOrder, q); err != nil {
			return err
		}
	}
	return nil
}

func validateImportQuestion(where string, order int, q *ImportQuestion) error {
	if !model.ValidQuestionType(q.QuestionType) {
		return util.Invalidf("%s question %d: unknown type %q", where, order, q.QuestionType)
	}
	if strings.TrimSpace(q.Prompt) == "" {
		return util.Invalidf("%s question %d: empty prompt", where, order)
	}
	if len(q.CorrectAnswers) == 0 {
		return util.Invalidf("%s question %d: no correct answer", where, order)
	}
	for _, a := range q.CorrectAnswers {
		if strings.TrimSpace(a) == "" {
			return util.Invalidf("%s question %d: blank correct answer", where, order)
		}
	}
	if q.XPValue < 1 {
		return util.Invalidf("%s question %d: xp value must be at least 1", where, order)
	}
	if q.TimeLimitSeconds < 5 || q.TimeLimitSeconds > 300 {
		return util.Invalidf("%s question %d: time limit %d outside 5..300", where, order, q.TimeLimitSeconds)
	}
	if q.QuestionType == model.QuestionMCQ {
		if len(q.Options) < 2 {
			return util.Invalidf("%s question %d: mcq needs at least 2 options", where, order)
		}
		for _, a := range q.CorrectAnswers {
			found := false
			for _, opt := range q.Options {
				if NormalizeAnswer(opt) == NormalizeAnswer(a) {
					found = true
					break
				}
			}
			if !found {
				return util.Invalidf("%s question %d: correct answer %q is not an option", where, order, a)
			}
		}
	}
	return nil
}

func (s *CatalogService) importGroup(tx *gorm.DB, in *ImportGroup, stats *ImportStats) error {
	unlock := in.UnlockCondition
	if unlock == "" {
		unlock = model.UnlockCompletePrevious
	}

	var group model.Group
	err := tx.Where("group_number = ?", in.GroupNumber).First(&group).Error
	if err == gorm.ErrRecordNotFound {
		group = model.Group{GroupNumber: in.GroupNumber}
	} else if err != nil {
		return err
	}
	group.Title = in.Title
	group.Description = in.Description
	group.UnlockCondition = unlock
	group.TotalLevels = model.LevelCountFor(in.GroupNumber)
	group.XPReward = in.XPReward
	group.Badge = in.Badge
	if err := tx.Save(&group).Error; err != nil {
		return err
	}
	stats.Groups++

	for li := range in.Levels {
		if err := s.importLevel(tx, &group, &in.Levels[li], stats); err != nil {
			return err
		}
	}

	if in.UnlockTest != nil {
		if err := s.importUnlockTest(tx, &group, in.UnlockTest, stats); err != nil {
			return err
		}
	}
	return nil
}

func (s *CatalogService) importLevel(tx *gorm.DB, group *model.Group, in *ImportLevel, stats *ImportStats) error {
	pass := in.PassPercentage
	if pass == 0 {
		pass = model.RegularPassPercent
	}

	var level model.Level
	err := tx.Where("group_id = ? AND level_number = ?", group.ID, in.LevelNumber).First(&level).Error
	if err == gorm.ErrRecordNotFound {
		level = model.Level{GroupID: group.ID, LevelNumber: in.LevelNumber}
	} else if err != nil {
		return err
	}
	level.GroupNumber = group.GroupNumber
	level.Title = in.Title
	level.IsTestLevel = model.IsTestNumber(in.LevelNumber)
	level.QuestionCount = len(in.Questions)
	level.PassPercentage = pass
	level.XPReward = in.XPReward
	level.TimeLimitSeconds = in.TimeLimitSeconds
	level.Active = true
	if err := tx.Save(&level).Error; err != nil {
		return err
	}
	stats.Levels++

	for qi := range in.Questions {
		q := &in.Questions[qi]
		options, answers, err := encodeQuestionJSON(q)
		if err != nil {
			return err
		}

		var row model.Question
		err = tx.Where("level_id = ? AND question_order = ?", level.ID, q.QuestionOrder).First(&row).Error
		if err == gorm.ErrRecordNotFound {
			row = model.Question{LevelID: level.ID, QuestionOrder: q.QuestionOrder}
		} else if err != nil {
			return err
		}
		row.QuestionType = q.QuestionType
		row.Prompt = q.Prompt
		row.Options = options
		row.CorrectAnswer = answers
		row.Hint = q.Hint
		row.Explanation = q.Explanation
		row.XPValue = q.XPValue
		row.TimeLimitSeconds = q.TimeLimitSeconds
		row.Active = true
		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		stats.Questions++
	}
	return nil
}

func (s *CatalogService) importUnlockTest(tx *gorm.DB, group *model.Group, in *ImportUnlockTest, stats *ImportStats) error {
	pass := in.PassPercentage
	if pass == 0 {
		pass = 100
	}

	var test model.GroupUnlockTest
	err := tx.Where("group_id = ?", group.ID).First(&test).Error
	if err == gorm.ErrRecordNotFound {
		test = model.GroupUnlockTest{GroupID: group.ID}
	} else if err != nil {
		return err
	}
	test.Title = in.Title
	test.PassPercentage = pass
	test.TimeLimitSeconds = in.TimeLimitSeconds
	test.XPReward = in.XPReward
	if err := tx.Save(&test).Error; err != nil {
		return err
	}
	stats.Tests++

	for qi := range in.Questions {
		q := &in.Questions[qi]
		options, answers, err := encodeQuestionJSON(q)
		if err != nil {
			return err
		}

		var row model.UnlockTestQuestion
		err = tx.Where("test_id = ? AND question_order = ?", test.ID, q.QuestionOrder).First(&row).Error
		if err == gorm.ErrRecordNotFound {
			row = model.UnlockTestQuestion{TestID: test.ID, QuestionOrder: q.QuestionOrder}
		} else if err != nil {
			return err
		}
		row.QuestionType = q.QuestionType
		row.Prompt = q.Prompt
		row.Options = options
		row.CorrectAnswer = answers
		row.XPValue = q.XPValue
		row.TimeLimitSeconds = q.TimeLimitSeconds
		if err := tx.Save(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

func encodeQuestionJSON(q *ImportQuestion) (json.RawMessage, json.RawMessage, error) {
	var options json.RawMessage
	if len(q.Options) > 0 {
		b, err := json.Marshal(q.Options)
		if err != nil {
			return nil, nil, err
		}
		options = b
	}
	answers, err := json.Marshal(q.CorrectAnswers)
	if err != nil {
		return nil, nil, err
	}
	return options, answers, nil
}
