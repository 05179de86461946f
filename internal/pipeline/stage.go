package pipeline

import (
	"context"
)

// Stage names, in pipeline order.
const (
	StageFetch    = "fetch"
	StageGenerate = "generate"
	StageDeep     = "deep"
	StageWrite    = "write"
	StageReview   = "stage"
)

// Stage is one step of the chapter pipeline.
type Stage interface {
	Name() string
	Dependencies() []string // Stages that must run first
	Description() string

	// Enabled reports whether the stage runs under opts. A disabled stage is
	// skipped but still satisfies the ordering of its dependents.
	Enabled(opts Options) bool

	// Run advances the chapter. An error stops the chapter.
	Run(ctx context.Context, run *ChapterRun) error
}
