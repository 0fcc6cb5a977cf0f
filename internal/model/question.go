package model

import "encoding/json"

type QuestionType string

const (
	QuestionMCQ                QuestionType = "mcq"
	QuestionFillBlank          QuestionType = "fill_blank"
	QuestionSynonyms           QuestionType = "synonyms"
	QuestionAntonyms           QuestionType = "antonyms"
	QuestionSentenceCompletion QuestionType = "sentence_completion"
	QuestionPronunciation      QuestionType = "pronunciation"
	QuestionListening          QuestionType = "listening"
	QuestionReading            QuestionType = "reading"
	QuestionWriting            QuestionType = "writing"
	QuestionGrammar            QuestionType = "grammar"
)

// ValidQuestionType reports whether t is one of the supported kinds.
func ValidQuestionType(t QuestionType) bool {
	switch t {
	case QuestionMCQ, QuestionFillBlank, QuestionSynonyms, QuestionAntonyms,
		QuestionSentenceCompletion, QuestionPronunciation, QuestionListening,
		QuestionReading, QuestionWriting, QuestionGrammar:
		return true
	}
	return false
}

// Question is a single prompt within a level. CorrectAnswer holds either a
// JSON string or a JSON array of acceptable strings.
// swagger:model Question
type Question struct {
	BaseModel
	LevelID          uint            `gorm:"index:idx_level_order,unique;not null" json:"levelId"`
	QuestionOrder    int             `gorm:"index:idx_level_order,unique;not null" json:"questionOrder"`
	QuestionType     QuestionType    `gorm:"size:30;not null" json:"questionType"`
	Prompt           string          `gorm:"type:text;not null" json:"prompt"`
	Options          json.RawMessage `gorm:"type:json" json:"options,omitempty"`
	CorrectAnswer    json.RawMessage `gorm:"type:json;not null" json:"-"`
	Hint             string          `gorm:"type:text" json:"hint,omitempty"`
	Explanation      string          `gorm:"type:text" json:"explanation,omitempty"`
	XPValue          int             `gorm:"default:1" json:"xpValue"`
	TimeLimitSeconds int             `gorm:"default:30" json:"timeLimitSeconds"`
	Active           bool            `json:"active"`
}

func (Question) TableName() string {
	return "questions"
}

// AcceptedAnswers decodes CorrectAnswer into the list of acceptable strings.
func (q *Question) AcceptedAnswers() []string {
	if len(q.CorrectAnswer) == 0 {
		return nil
	}
	var one string
	if err := json.Unmarshal(q.CorrectAnswer, &one); err == nil {
		return []string{one}
	}
	var many []string
	if err := json.Unmarshal(q.CorrectAnswer, &many); err == nil {
		return many
	}
	return nil
}

// OptionList decodes the MCQ options array, nil when absent.
func (q *Question) OptionList() []string {
	if len(q.Options) == 0 {
		return nil
	}
	var opts []string
	if err := json.Unmarshal(q.Options, &opts); err != nil {
		return nil
	}
	return opts
}
