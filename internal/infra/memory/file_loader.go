package memory

import (
	"context"
	"fmt"
	"os"
	"strings"

	"chat-quiz-bot/internal/domain"
	"gopkg.in/yaml.v3"
)

type questionFile struct {
	Questions []domain.QuizItem `yaml:"questions"`
}

// FileQuestionLoader reads the catalog from a YAML file:
//
//	questions:
//	  - prompt: "Ar-Rahman"
//	    meaning: "The Beneficent"
//
// Items without an id use their prompt as id.
type FileQuestionLoader struct {
	path string
}

func NewFileQuestionLoader(path string) *FileQuestionLoader {
	return &FileQuestionLoader{path: path}
}

func (l *FileQuestionLoader) LoadQuestions(_ context.Context) ([]domain.QuizItem, error) {
	return ReadQuestionFile(l.path)
}

// ReadQuestionFile parses and validates a YAML question file.
func ReadQuestionFile(path string) ([]domain.QuizItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read questions: %w", err)
	}
	return ParseQuestions(data)
}

// ParseQuestions decodes YAML question data.
func ParseQuestions(data []byte) ([]domain.QuizItem, error) {
	var file questionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse questions: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Questions))
	items := make([]domain.QuizItem, 0, len(file.Questions))
	for i, item := range file.Questions {
		item.Prompt = strings.TrimSpace(item.Prompt)
		item.CorrectMeaning = strings.TrimSpace(item.CorrectMeaning)
		item.ID = strings.TrimSpace(item.ID)
		if item.Prompt == "" || item.CorrectMeaning == "" {
			return nil, fmt.Errorf("question %d: prompt and meaning are required", i+1)
		}
		if item.ID == "" {
			item.ID = item.Prompt
		}
		if _, dup := seen[item.ID]; dup {
			return nil, fmt.Errorf("question %d: duplicate id %q", i+1, item.ID)
		}
		seen[item.ID] = struct{}{}
		items = append(items, item)
	}
	return items, nil
}
