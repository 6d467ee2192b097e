package entities

// QuestionType is the format of a question as it appears in the test booklet.
type QuestionType string

const (
	QuestionTrueFalseNotGiven  QuestionType = "TRUE_FALSE_NOT_GIVEN"
	QuestionYesNoNotGiven      QuestionType = "YES_NO_NOT_GIVEN"
	QuestionMultipleChoice     QuestionType = "MULTIPLE_CHOICE"
	QuestionMatching           QuestionType = "MATCHING"
	QuestionSentenceCompletion QuestionType = "SENTENCE_COMPLETION"
	QuestionSummaryCompletion  QuestionType = "SUMMARY_COMPLETION"
	QuestionNoteCompletion     QuestionType = "NOTE_COMPLETION"
	QuestionFillBlank          QuestionType = "FILL_BLANK"
	QuestionShortAnswer        QuestionType = "SHORT_ANSWER"
	QuestionEssay              QuestionType = "ESSAY"
)

// MatchCategory groups question types by how answers are compared.
type MatchCategory int

const (
	MatchExactChoice MatchCategory = iota // option letter / label, exact match
	MatchCompletion                       // free text, punctuation and whitespace tolerant
	MatchManual                           // scored outside the engine (essays)
)

// Category returns the matching policy for the question type.
func (t QuestionType) Category() MatchCategory {
	switch t {
	case QuestionTrueFalseNotGiven, QuestionYesNoNotGiven, QuestionMultipleChoice, QuestionMatching:
		return MatchExactChoice
	case QuestionEssay:
		return MatchManual
	default:
		return MatchCompletion
	}
}

// Question is immutable reference data attached to a test.
type Question struct {
	ID                string       `json:"id"`
	TestID            string       `json:"testId"`
	SectionID         string       `json:"sectionId"` // section (listening), passage (reading) or task (writing)
	QuestionNumber    int          `json:"questionNumber"`
	Type              QuestionType `json:"type"`
	Prompt            string       `json:"prompt"`
	Options           []string     `json:"options,omitempty"`
	CorrectAnswer     string       `json:"correctAnswer,omitempty"`
	AcceptableAnswers []string     `json:"acceptableAnswers,omitempty"`
	CaseSensitive     bool         `json:"caseSensitive"`
	Points            float64      `json:"points"`
}

// Public returns a copy safe to send to a learner, without accepted answers.
func (q Question) Public() Question {
	q.CorrectAnswer = ""
	q.AcceptableAnswers = nil
	return q
}

// Section is a listening section, reading passage or writing task.
type Section struct {
	ID       string `json:"id"`
	Number   int    `json:"number"`
	Title    string `json:"title"`
	Body     string `json:"body,omitempty"`     // passage text or task prompt
	AudioURL string `json:"audioUrl,omitempty"` // listening only
	MinWords int    `json:"minWords,omitempty"` // writing only
}

// Test is a single test instance of one module.
type Test struct {
	ID                   string     `json:"id"`
	Module               Module     `json:"module"`
	Title                string     `json:"title"`
	TimeLimitSeconds     int        `json:"timeLimitSeconds"`
	AudioDurationSeconds int        `json:"audioDurationSeconds,omitempty"`
	IsActive             bool       `json:"isActive"`
	Sections             []Section  `json:"sections"`
	Questions            []Question `json:"questions"`
}

// Public returns a copy of the test with every question stripped of its answers.
func (t Test) Public() Test {
	qs := make([]Question, len(t.Questions))
	for i, q := range t.Questions {
		qs[i] = q.Public()
	}
	t.Questions = qs
	return t
}

// QuestionByID finds a question of the test.
func (t Test) QuestionByID(id string) (Question, bool) {
	for _, q := range t.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// SectionByID finds a section of the test.
func (t Test) SectionByID(id string) (Section, bool) {
	for _, s := range t.Sections {
		if s.ID == id {
			return s, true
		}
	}
	return Section{}, false
}
