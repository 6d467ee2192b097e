package scoring

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/aliskhannn/ielts-mock-engine/internal/domain/entities"
)

const (
	strengthThreshold = 70.0
	weaknessThreshold = 50.0

	writingStrengthBand = 7.0
	defaultTask1Words   = 150
	defaultTask2Words   = 250
)

var ErrMissingTaskBand = errors.New("writing task band missing or out of range")

// Aggregator turns per-question evaluations into a TestResult.
type Aggregator struct {
	table *BandTable
}

// NewAggregator creates an Aggregator using the given band table.
func NewAggregator(table *BandTable) *Aggregator {
	if table == nil {
		table = StandardBandTable
	}
	return &Aggregator{table: table}
}

// ObjectiveInput is everything needed to score a listening or reading attempt.
type ObjectiveInput struct {
	Test           entities.Test
	Answers        map[string]*entities.Answer // by question id
	Evaluations    map[string]Evaluation       // by question id
	TimeSpent      int
	AudioTimeSpent int
}

// Objective scores a listening or reading attempt.
func (a *Aggregator) Objective(in ObjectiveInput) (*entities.TestResult, error) {
	res := newResult(in.Test, in.TimeSpent)

	sections := newGroups()
	types := newGroups()

	for _, q := range in.Test.Questions {
		ev, ok := in.Evaluations[q.ID]
		if !ok {
			return nil, fmt.Errorf("question %s: missing evaluation", q.ID)
		}
		res.TotalScore += q.Points
		res.Score += ev.PointsEarned

		switch {
		case ev.IsCorrect:
			res.CorrectAnswers++
		case ev.Skipped:
			res.SkippedAnswers++
		default:
			res.WrongAnswers++
		}

		sections.add(sectionLabel(in.Test, q.SectionID), ev.IsCorrect)
		types.add(string(q.Type), ev.IsCorrect)
	}

	res.BandScore = a.table.Band(res.CorrectAnswers)
	res.Percentage = percent(res.CorrectAnswers, res.TotalQuestions)
	res.CompletionRate = percent(answeredCount(in.Test, in.Answers), res.TotalQuestions)

	if in.Test.Module == entities.ModuleListening && in.Test.AudioDurationSeconds > 0 {
		u := AudioUtilization(in.AudioTimeSpent, in.Test.AudioDurationSeconds)
		res.AudioUtilization = &u
	}

	res.SectionStats = sections.stats()
	res.TypeStats = types.stats()
	res.Strengths, res.Weaknesses = classify(res.SectionStats, res.TypeStats)
	res.Recommendations = recommend(res)

	return res, nil
}

// WritingInput is everything needed to score a writing attempt.
// TaskBands are produced outside the engine, keyed by task number (1, 2).
type WritingInput struct {
	Test      entities.Test
	Answers   map[string]*entities.Answer
	TaskBands map[int]float64
	TimeSpent int
}

// Writing combines the two task bands and records word counts.
func (a *Aggregator) Writing(in WritingInput) (*entities.TestResult, error) {
	res := newResult(in.Test, in.TimeSpent)

	for _, task := range []int{1, 2} {
		band, ok := in.TaskBands[task]
		if !ok || !ValidBand(band) {
			return nil, fmt.Errorf("task %d: %w", task, ErrMissingTaskBand)
		}

		ts := entities.TaskScore{Task: task, BandScore: band, MinWords: defaultTask1Words}
		if task == 2 {
			ts.MinWords = defaultTask2Words
		}
		for _, s := range in.Test.Sections {
			if s.Number != task {
				continue
			}
			if s.MinWords > 0 {
				ts.MinWords = s.MinWords
			}
			for _, q := range in.Test.Questions {
				if q.SectionID != s.ID {
					continue
				}
				if ans, ok := in.Answers[q.ID]; ok {
					ts.WordCount += len(strings.Fields(ans.UserAnswer))
				}
			}
		}
		res.TaskScores = append(res.TaskScores, ts)

		label := fmt.Sprintf("Task %d", task)
		if band >= writingStrengthBand {
			res.Strengths = append(res.Strengths, label)
		}
		if ts.WordCount < ts.MinWords {
			res.Weaknesses = append(res.Weaknesses, label+" under length")
		}
	}

	for _, q := range in.Test.Questions {
		if ans, ok := in.Answers[q.ID]; !ok || ans.IsBlank() {
			res.SkippedAnswers++
		}
	}

	res.BandScore = CombineWritingBands(in.TaskBands[1], in.TaskBands[2])
	res.Score = res.BandScore
	res.TotalScore = 9
	res.Percentage = round2(res.BandScore / 9 * 100)
	res.CompletionRate = percent(answeredCount(in.Test, in.Answers), res.TotalQuestions)
	res.Recommendations = recommend(res)

	return res, nil
}

// AudioUtilization returns listened/duration as a percentage, capped at 100.
func AudioUtilization(listened, duration int) float64 {
	if duration <= 0 || listened <= 0 {
		return 0
	}
	return round2(math.Min(float64(listened)/float64(duration)*100, 100))
}

func newResult(t entities.Test, timeSpent int) *entities.TestResult {
	var utilization float64
	if t.TimeLimitSeconds > 0 && timeSpent > 0 {
		utilization = round2(math.Min(float64(timeSpent)/float64(t.TimeLimitSeconds)*100, 100))
	}
	return &entities.TestResult{
		TestID:          t.ID,
		Module:          t.Module,
		TotalQuestions:  len(t.Questions),
		TimeSpent:       timeSpent,
		TimeUtilization: utilization,
		SectionStats:    map[string]entities.GroupStats{},
		TypeStats:       map[string]entities.GroupStats{},
		Strengths:       []string{},
		Weaknesses:      []string{},
	}
}

func answeredCount(t entities.Test, answers map[string]*entities.Answer) int {
	n := 0
	for _, q := range t.Questions {
		if a, ok := answers[q.ID]; ok && !a.IsBlank() {
			n++
		}
	}
	return n
}

func sectionLabel(t entities.Test, sectionID string) string {
	if s, ok := t.SectionByID(sectionID); ok {
		if s.Title != "" {
			return s.Title
		}
		return fmt.Sprintf("Section %d", s.Number)
	}
	if sectionID == "" {
		return "Unsectioned"
	}
	return sectionID
}

type groups map[string]*entities.GroupStats

func newGroups() groups { return groups{} }

func (g groups) add(key string, correct bool) {
	s, ok := g[key]
	if !ok {
		s = &entities.GroupStats{}
		g[key] = s
	}
	s.Total++
	if correct {
		s.Correct++
	}
}

func (g groups) stats() map[string]entities.GroupStats {
	out := make(map[string]entities.GroupStats, len(g))
	for k, s := range g {
		s.Accuracy = percent(s.Correct, s.Total)
		out[k] = *s
	}
	return out
}

// classify lists groupings at or above 70% as strengths and below 50% as weaknesses.
func classify(sets ...map[string]entities.GroupStats) (strengths, weaknesses []string) {
	strengths, weaknesses = []string{}, []string{}
	for _, set := range sets {
		keys := make([]string, 0, len(set))
		for k := range set {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			s := set[k]
			if s.Total == 0 {
				continue
			}
			switch {
			case s.Accuracy >= strengthThreshold:
				strengths = append(strengths, k)
			case s.Accuracy < weaknessThreshold:
				weaknesses = append(weaknesses, k)
			}
		}
	}
	return strengths, weaknesses
}

func recommend(res *entities.TestResult) []string {
	out := []string{}
	for _, w := range res.Weaknesses {
		if s, ok := res.TypeStats[w]; ok {
			out = append(out, fmt.Sprintf("Practise %s questions (accuracy %.0f%%)", humanize(w), s.Accuracy))
			continue
		}
		if s, ok := res.SectionStats[w]; ok {
			out = append(out, fmt.Sprintf("Review %s (accuracy %.0f%%)", w, s.Accuracy))
			continue
		}
		out = append(out, fmt.Sprintf("Work on %s", strings.ToLower(w)))
	}
	if res.SkippedAnswers > 0 {
		out = append(out, fmt.Sprintf("Answer every question: %d left blank", res.SkippedAnswers))
	}
	if res.AudioUtilization != nil && *res.AudioUtilization < 100 {
		out = append(out, "Listen to the full recording before submitting")
	}
	return out
}

func humanize(t string) string {
	return strings.ToLower(strings.ReplaceAll(t, "_", " "))
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(n) / float64(total) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
