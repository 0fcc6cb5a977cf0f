package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"english_edu_backend/internal/model"
	"english_edu_backend/internal/util"
)

// validImportGroup builds a payload group with the exact level count its
// group number requires.
func validImportGroup(groupNumber int) ImportGroup {
	count := model.LevelCountFor(groupNumber)
	g := ImportGroup{
		GroupNumber: groupNumber,
		Title:       fmt.Sprintf("Group %d", groupNumber),
	}
	for n := 1; n <= count; n++ {
		lv := ImportLevel{
			LevelNumber:    n,
			Title:          fmt.Sprintf("Level %d", n),
			PassPercentage: model.RegularPassPercent,
			XPReward:       10,
		}
		questions := model.RegularQuestions
		if model.IsTestNumber(n) {
			questions = 10
		}
		for q := 1; q <= questions; q++ {
			lv.Questions = append(lv.Questions, ImportQuestion{
				QuestionOrder:    q,
				QuestionType:     model.QuestionMCQ,
				Prompt:           fmt.Sprintf("L%d Q%d", n, q),
				Options:          []string{"yes", "no"},
				CorrectAnswers:   []string{"yes"},
				XPValue:          1,
				TimeLimitSeconds: 30,
			})
		}
		g.Levels = append(g.Levels, lv)
	}
	return g
}

func TestValidateImportRejections(t *testing.T) {
	mutate := func(fn func(g *ImportGroup)) *ImportPayload {
		g := validImportGroup(0)
		fn(&g)
		return &ImportPayload{Groups: []ImportGroup{g}}
	}

	tests := []struct {
		name    string
		payload *ImportPayload
	}{
		{
			name: "group number out of range",
			payload: mutate(func(g *ImportGroup) {
				g.GroupNumber = model.MaxGroupNumber + 1
			}),
		},
		{
			name: "missing title",
			payload: mutate(func(g *ImportGroup) {
				g.Title = "   "
			}),
		},
		{
			name: "bad unlock condition",
			payload: mutate(func(g *ImportGroup) {
				g.UnlockCondition = "bribe_the_teacher"
			}),
		},
		{
			name: "wrong level count",
			payload: mutate(func(g *ImportGroup) {
				g.Levels = g.Levels[:len(g.Levels)-1]
			}),
		},
		{
			name: "duplicate level number",
			payload: mutate(func(g *ImportGroup) {
				g.Levels[1].LevelNumber = 1
			}),
		},
		{
			name: "regular level with wrong question count",
			payload: mutate(func(g *ImportGroup) {
				g.Levels[0].Questions = g.Levels[0].Questions[:3]
			}),
		},
		{
			name: "xp reward below one",
			payload: mutate(func(g *ImportGroup) {
				g.Levels[0].XPReward = 0
			}),
		},
		{
			name: "duplicate question order",
			payload: mutate(func(g *ImportGroup) {
				g.Levels[0].Questions[1].QuestionOrder = 1
			}),
		},
		{
			name: "mcq answer not an option",
			payload: mutate(func(g *ImportGroup) {
				g.Levels[0].Questions[0].CorrectAnswers = []string{"maybe"}
			}),
		},
		{
			name: "mcq with one option",
			payload: mutate(func(g *ImportGroup) {
				g.Levels[0].Questions[0].Options = []string{"yes"}
			}),
		},
		{
			name: "question time limit out of range",
			payload: mutate(func(g *ImportGroup) {
				g.Levels[0].Questions[0].TimeLimitSeconds = 301
			}),
		},
		{
			name: "blank correct answer",
			payload: mutate(func(g *ImportGroup) {
				g.Levels[0].Questions[0].CorrectAnswers = []string{" "}
				g.Levels[0].Questions[0].Options = []string{" ", "no"}
			}),
		},
		{
			name: "unknown question type",
			payload: mutate(func(g *ImportGroup) {
				g.Levels[0].Questions[0].QuestionType = "interpretive_dance"
			}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := validateImport(tt.payload); !errors.Is(err, util.ErrInvalid) {
				t.Errorf("validateImport error = %v, want invalid", err)
			}
		})
	}

	good := &ImportPayload{Groups: []ImportGroup{validImportGroup(0)}}
	if err := validateImport(good); err != nil {
		t.Errorf("valid payload rejected: %v", err)
	}
}

func TestImportInlineUpsert(t *testing.T) {
	s := newTestStack(t)
	payload := &ImportPayload{Groups: []ImportGroup{validImportGroup(0)}}

	stats, err := s.catalog.ImportInline(context.Background(), payload)
	if err != nil {
		t.Fatalf("first import: %v", err)
	}
	wantLevels := model.StarterGroupLevels
	if stats.Groups != 1 || stats.Levels != wantLevels {
		t.Errorf("stats = %+v", stats)
	}

	// Re-importing with a changed title updates in place, no duplicates.
	payload.Groups[0].Title = "Starter, revised"
	payload.Groups[0].Levels[0].Title = "Hello again"
	if _, err := s.catalog.ImportInline(context.Background(), payload); err != nil {
		t.Fatalf("second import: %v", err)
	}

	var groupCount, levelCount int64
	if err := s.db.Model(&model.Group{}).Count(&groupCount).Error; err != nil {
		t.Fatalf("count groups: %v", err)
	}
	if err := s.db.Model(&model.Level{}).Count(&levelCount).Error; err != nil {
		t.Fatalf("count levels: %v", err)
	}
	if groupCount != 1 || levelCount != int64(wantLevels) {
		t.Errorf("groups = %d levels = %d after re-import", groupCount, levelCount)
	}

	group, err := s.groupRepo.FindByNumber(0)
	if err != nil {
		t.Fatalf("find group: %v", err)
	}
	if group.Title != "Starter, revised" {
		t.Errorf("group title = %q", group.Title)
	}
	level, err := s.levelRepo.FindByGroupAndNumber(group.ID, 1)
	if err != nil {
		t.Fatalf("find level: %v", err)
	}
	if level.Title != "Hello again" {
		t.Errorf("level title = %q", level.Title)
	}
	if level.IsTestLevel {
		t.Error("level 1 marked as test level")
	}
}

func TestImportInlineAtomic(t *testing.T) {
	s := newTestStack(t)

	bad := validImportGroup(0)
	bad.Levels[5].Questions[2].Prompt = " " // fails validation
	if _, err := s.catalog.ImportInline(context.Background(), &ImportPayload{Groups: []ImportGroup{bad}}); err == nil {
		t.Fatal("invalid payload accepted")
	}

	var groupCount int64
	if err := s.db.Model(&model.Group{}).Count(&groupCount).Error; err != nil {
		t.Fatalf("count groups: %v", err)
	}
	if groupCount != 0 {
		t.Errorf("rejected import left %d groups behind", groupCount)
	}
}

func TestParseImportCSV(t *testing.T) {
	const header = "group_number,group_title,level_number,level_title,question_order,question_type,prompt,options,correct_answers,hint,explanation,xp_value,time_limit_seconds\n"

	var b strings.Builder
	b.WriteString(header)
	// Two questions on level 2 listed before level 1 to prove ordering.
	b.WriteString("0,Starter,2,Colours,1,mcq,Pick red,red|blue,red,,,1,30\n")
	b.WriteString("0,Starter,2,Colours,2,fill_blank,The sky is __,,blue|azure,,Look up,1,30\n")
	b.WriteString("0,Starter,1,Greetings,1,mcq,Say hi,hi|bye,hi,,,2,45\n")

	payload, err := ParseImportCSV(strings.NewReader(b.String()))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(payload.Groups) != 1 {
		t.Fatalf("groups = %d", len(payload.Groups))
	}
	g := payload.Groups[0]
	if g.GroupNumber != 0 || g.Title != "Starter" {
		t.Errorf("group = %+v", g)
	}
	if len(g.Levels) != 2 {
		t.Fatalf("levels = %d", len(g.Levels))
	}
	if g.Levels[0].LevelNumber != 1 || g.Levels[1].LevelNumber != 2 {
		t.Errorf("levels out of order: %d then %d", g.Levels[0].LevelNumber, g.Levels[1].LevelNumber)
	}
	if g.Levels[0].Questions[0].XPValue != 2 || g.Levels[0].Questions[0].TimeLimitSeconds != 45 {
		t.Errorf("level 1 question = %+v", g.Levels[0].Questions[0])
	}
	q2 := g.Levels[1].Questions[1]
	if q2.QuestionType != model.QuestionFillBlank {
		t.Errorf("question type = %q", q2.QuestionType)
	}
	if len(q2.CorrectAnswers) != 2 || q2.CorrectAnswers[0] != "blue" || q2.CorrectAnswers[1] != "azure" {
		t.Errorf("correct answers = %v", q2.CorrectAnswers)
	}
	if q2.Explanation != "Look up" {
		t.Errorf("explanation = %q", q2.Explanation)
	}

	if _, err := ParseImportCSV(strings.NewReader(header)); !errors.Is(err, util.ErrInvalid) {
		t.Errorf("header-only CSV error = %v, want invalid", err)
	}
	if _, err := ParseImportCSV(strings.NewReader(header + "x,Starter,1,L,1,mcq,p,a|b,a,,,1,30\n")); !errors.Is(err, util.ErrInvalid) {
		t.Errorf("bad group_number error = %v, want invalid", err)
	}
}

func TestGetLevelQuestionsHidesAnswers(t *testing.T) {
	s := newTestStack(t)
	_, levels := s.seedGroup(t, 0, 1, 2)

	level, questions, err := s.catalog.GetLevelQuestions(levels[0].ID)
	if err != nil {
		t.Fatalf("get questions: %v", err)
	}
	if level.ID != levels[0].ID || len(questions) != 2 {
		t.Fatalf("level %d questions %d", level.ID, len(questions))
	}
	// The answer column is json:"-": clients must never see it.
	out, err := json.Marshal(questions[0])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(strings.ToLower(string(out)), "correctanswer") {
		t.Errorf("serialized question leaks the answer: %s", out)
	}
}
