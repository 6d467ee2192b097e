// Package catalog loads test content and learner tiers from a JSON file and writes them to storage.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aliskhannn/ielts-mock-engine/internal/domain/entities"
)

var ErrInvalidCatalog = errors.New("invalid catalog")

// File is the on-disk layout of a catalog.
type File struct {
	Tests []entities.Test `json:"tests"`
	Users []entities.User `json:"users"`
}

// Writer persists catalog entries. Saving an existing id replaces it.
type Writer interface {
	SaveTest(ctx context.Context, t *entities.Test) error
	SaveUser(ctx context.Context, u *entities.User) error
}

// Load reads and validates a catalog file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	if err := f.normalize(); err != nil {
		return nil, err
	}

	return &f, nil
}

// Seed writes every test and user of the catalog.
func Seed(ctx context.Context, w Writer, f *File) error {
	for i := range f.Tests {
		if err := w.SaveTest(ctx, &f.Tests[i]); err != nil {
			return fmt.Errorf("seed test %s: %w", f.Tests[i].ID, err)
		}
	}

	for i := range f.Users {
		if err := w.SaveUser(ctx, &f.Users[i]); err != nil {
			return fmt.Errorf("seed user %s: %w", f.Users[i].ID, err)
		}
	}

	return nil
}

// normalize fills defaults and rejects content the engine cannot score.
func (f *File) normalize() error {
	questionIDs := make(map[string]string)
	testIDs := make(map[string]struct{}, len(f.Tests))

	for i := range f.Tests {
		t := &f.Tests[i]
		if t.ID == "" {
			return fmt.Errorf("%w: test #%d has no id", ErrInvalidCatalog, i+1)
		}
		if _, dup := testIDs[t.ID]; dup {
			return fmt.Errorf("%w: duplicate test %s", ErrInvalidCatalog, t.ID)
		}
		testIDs[t.ID] = struct{}{}

		m, ok := entities.ParseModule(string(t.Module))
		if !ok {
			return fmt.Errorf("%w: test %s: unknown module %q", ErrInvalidCatalog, t.ID, t.Module)
		}
		t.Module = m

		if t.TimeLimitSeconds <= 0 {
			return fmt.Errorf("%w: test %s: time limit must be positive", ErrInvalidCatalog, t.ID)
		}
		if len(t.Questions) == 0 {
			return fmt.Errorf("%w: test %s has no questions", ErrInvalidCatalog, t.ID)
		}

		for j := range t.Questions {
			q := &t.Questions[j]
			if q.ID == "" {
				return fmt.Errorf("%w: test %s: question #%d has no id", ErrInvalidCatalog, t.ID, j+1)
			}
			if owner, dup := questionIDs[q.ID]; dup {
				return fmt.Errorf("%w: question %s used by tests %s and %s", ErrInvalidCatalog, q.ID, owner, t.ID)
			}
			questionIDs[q.ID] = t.ID

			if q.Type == "" {
				return fmt.Errorf("%w: question %s has no type", ErrInvalidCatalog, q.ID)
			}
			if t.Module != entities.ModuleWriting {
				if q.Type.Category() == entities.MatchManual {
					return fmt.Errorf("%w: question %s: %s is not auto-scored in %s", ErrInvalidCatalog, q.ID, q.Type, t.Module)
				}
				if !hasAnswerKey(*q) {
					return fmt.Errorf("%w: question %s has no answer key", ErrInvalidCatalog, q.ID)
				}
			}
			q.TestID = t.ID
			if q.QuestionNumber == 0 {
				q.QuestionNumber = j + 1
			}
			if q.Points == 0 && q.Type != entities.QuestionEssay {
				q.Points = 1
			}
		}
	}

	for i := range f.Users {
		u := &f.Users[i]
		if u.ID == "" {
			return fmt.Errorf("%w: user #%d has no id", ErrInvalidCatalog, i+1)
		}
		switch u.Tier {
		case "":
			u.Tier = entities.TierFree
		case entities.TierFree, entities.TierPremium, entities.TierEnterprise, entities.TierUnlimited:
		default:
			return fmt.Errorf("%w: user %s: unknown tier %q", ErrInvalidCatalog, u.ID, u.Tier)
		}
	}

	return nil
}

func hasAnswerKey(q entities.Question) bool {
	if strings.TrimSpace(q.CorrectAnswer) != "" {
		return true
	}
	for _, a := range q.AcceptableAnswers {
		if strings.TrimSpace(a) != "" {
			return true
		}
	}
	return false
}
