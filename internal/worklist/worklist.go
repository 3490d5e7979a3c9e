// Package worklist loads batch import tasks from a YAML file.
package worklist

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"skatescore/internal"
	"skatescore/internal/pipeline"
	"skatescore/internal/util"
)

// Entry is one document. Empty competition fields fall back to the file's
// defaults block.
type Entry struct {
	PDF      string `yaml:"pdf"`
	Name     string `yaml:"name"`
	Season   string `yaml:"season"`
	Program  string `yaml:"program"`
	Category string `yaml:"category"`
	Location string `yaml:"location"`
	Date     string `yaml:"date"`
}

type File struct {
	Defaults Entry   `yaml:"defaults"`
	Tasks    []Entry `yaml:"tasks"`
}

// Load reads a worklist. Relative document paths are resolved against the
// directory of the worklist file.
func Load(path string) ([]pipeline.Task, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(blob, filepath.Dir(path))
}

func Parse(blob []byte, baseDir string) ([]pipeline.Task, error) {
	var f File
	if err := yaml.Unmarshal(blob, &f); err != nil {
		return nil, fmt.Errorf("parse worklist: %w", err)
	}
	if len(f.Tasks) == 0 {
		return nil, fmt.Errorf("worklist has no tasks")
	}

	tasks := make([]pipeline.Task, 0, len(f.Tasks))
	for i, e := range f.Tasks {
		task, err := e.withDefaults(f.Defaults).task(baseDir)
		if err != nil {
			return nil, fmt.Errorf("task %d (%s): %w", i+1, e.PDF, err)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (e Entry) withDefaults(d Entry) Entry {
	pick := func(v, fallback string) string {
		if strings.TrimSpace(v) == "" {
			return fallback
		}
		return v
	}
	e.Name = pick(e.Name, d.Name)
	e.Season = pick(e.Season, d.Season)
	e.Program = pick(e.Program, d.Program)
	e.Category = pick(e.Category, d.Category)
	e.Location = pick(e.Location, d.Location)
	e.Date = pick(e.Date, d.Date)
	return e
}

func (e Entry) task(baseDir string) (pipeline.Task, error) {
	program, err := internal.ParseProgramType(e.Program)
	if err != nil {
		return pipeline.Task{}, err
	}
	category, err := internal.ParseCategory(e.Category)
	if err != nil {
		return pipeline.Task{}, err
	}
	doc := strings.TrimSpace(e.PDF)
	if doc != "" && !filepath.IsAbs(doc) && baseDir != "" {
		doc = filepath.Join(baseDir, doc)
	}
	t := pipeline.Task{
		DocumentPath:    doc,
		CompetitionName: strings.TrimSpace(e.Name),
		Season:          strings.TrimSpace(e.Season),
		ProgramType:     program,
		Category:        category,
		Location:        util.OptionalString(e.Location),
		Date:            util.OptionalString(e.Date),
	}
	if err := t.Validate(); err != nil {
		return pipeline.Task{}, err
	}
	return t, nil
}
