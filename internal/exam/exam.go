// Package exam loads the ordered question definitions for an exam.
package exam

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rahibchy/exam-grading-system/internal/model"
)

// File is the on-disk layout of a question definition file. JSON files parse
// as well, since YAML is a superset of JSON.
type File struct {
	Questions []model.Question `yaml:"questions"`
}

// Default returns the built-in three-question exam.
func Default() []model.Question {
	return []model.Question{
		{ID: "Q1", Name: "Chart Summary", MaxMarks: 15, Marker: "Summarize the information", MinLength: 40},
		{ID: "Q2", Name: "Public Transport in Dhaka", MaxMarks: 7, Marker: "Public Transportation In Dhaka", MinLength: 40},
		{ID: "Q3", Name: "Online Shopping A&D", MaxMarks: 8, Marker: "An increasing number of people are buying", MinLength: 40},
	}
}

// Load reads questions from path. An empty path selects Default.
func Load(path string) ([]model.Question, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a question definition file and validates it.
func Parse(data []byte) ([]model.Question, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse questions: %w", err)
	}
	if err := model.DefaultGradingConfig(f.Questions).Validate(); err != nil {
		return nil, err
	}
	return f.Questions, nil
}
