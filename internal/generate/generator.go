// Package generate turns chapters into quiz questions and summaries through a
// chat completion provider.
package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"github.com/jackzampolin/itihasa/internal/llmcall"
	"github.com/jackzampolin/itihasa/internal/prompts"
	"github.com/jackzampolin/itihasa/internal/prompts/questions"
	"github.com/jackzampolin/itihasa/internal/prompts/summary"
	"github.com/jackzampolin/itihasa/internal/providers"
	"github.com/jackzampolin/itihasa/internal/quiz"
	"github.com/jackzampolin/itihasa/internal/types"
)

// Defaults for provider requests.
const (
	DefaultMaxTokens   = 4000
	DefaultTemperature = 0.3
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = time.Second
)

// Stage names used in errors, logs and call records.
const (
	StageStandard  = "standard"
	StageSummary   = "summary"
	StageQuestions = "questions"
	StagePass      = "pass"
	StageHard      = "hard"
)

// Config configures a Generator.
type Config struct {
	Client  providers.LLMClient
	Prompts *prompts.Resolver // Nil uses the embedded prompts

	Model       string // Empty uses the client default
	MaxTokens   int
	Temperature *float64 // Nil uses DefaultTemperature; zero is sent as zero

	StandardCount int
	PassCount     int
	Limits        prompts.Limits

	// PassDelay is slept between consecutive provider calls of one chapter.
	PassDelay time.Duration

	// MaxAttempts and RetryDelay bound the retries of retryable provider
	// failures (429, 5xx, network). Unparseable replies are never retried.
	MaxAttempts uint
	RetryDelay  time.Duration

	RateLimiter    *providers.RateLimiter
	DiagnosticsDir string
	Recorder       *llmcall.Recorder
	Logger         *slog.Logger

	// Sleep waits between calls; replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Generator runs generation requests for chapters.
type Generator struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Generator.
func New(cfg Config) (*Generator, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("generator requires an LLM client")
	}
	if cfg.Prompts == nil {
		cfg.Prompts = DefaultResolver(cfg.Logger)
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Temperature == nil {
		temp := DefaultTemperature
		cfg.Temperature = &temp
	}
	if cfg.StandardCount <= 0 {
		cfg.StandardCount = questions.DefaultStandardCount
	}
	if cfg.PassCount <= 0 {
		cfg.PassCount = questions.DefaultPassCount
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleep
	}
	return &Generator{cfg: cfg, logger: cfg.Logger}, nil
}

// DefaultResolver returns a resolver with every generation prompt registered.
func DefaultResolver(logger *slog.Logger) *prompts.Resolver {
	r := prompts.NewResolver(logger)
	questions.RegisterPrompts(r)
	summary.RegisterPrompts(r)
	return r
}

// Prompts returns the resolver the generator renders from.
func (g *Generator) Prompts() *prompts.Resolver {
	return g.cfg.Prompts
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// callSpec describes one provider call.
type callSpec struct {
	stage    string
	pass     string
	chapter  types.ChapterKey
	prompt   *prompts.Rendered
	format   *providers.ResponseFormat
	validate bool // check the reply against format's schema
}

// call sends one request and returns the reply as JSON. Retryable provider
// failures are retried with exponential backoff; the reply is parsed once.
func (g *Generator) call(ctx context.Context, spec callSpec, rep *Report) (json.RawMessage, error) {
	rep.Calls++

	system, err := questions.System(g.cfg.Prompts)
	if err != nil {
		rep.callFailed(err)
		return nil, err
	}

	req := &providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "system", Content: system.Text},
			{Role: "user", Content: spec.prompt.Text},
		},
		Model:          g.cfg.Model,
		Temperature:    g.cfg.Temperature,
		MaxTokens:      g.cfg.MaxTokens,
		ResponseFormat: spec.format,
		RequestID:      uuid.New().String(),
	}

	logger := g.logger.With("stage", spec.stage, "book", spec.chapter.Book, "sarga", spec.chapter.Sarga)
	if spec.pass != "" {
		logger = logger.With("pass", spec.pass)
	}

	var result *providers.ChatResult
	err = retry.Do(
		func() error {
			if g.cfg.RateLimiter != nil {
				if err := g.cfg.RateLimiter.Wait(ctx); err != nil {
					return err
				}
			}
			var callErr error
			result, callErr = g.cfg.Client.Chat(ctx, req)
			g.record(result, spec)
			if se, ok := providers.AsStatusError(callErr); ok && se.StatusCode == 429 && g.cfg.RateLimiter != nil {
				g.cfg.RateLimiter.Record429(providers.ParseRetryAfter(se.Header))
			}
			return callErr
		},
		retry.Context(ctx),
		retry.Attempts(g.cfg.MaxAttempts),
		retry.Delay(g.cfg.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("retrying provider call", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		genErr := &GenerationError{Stage: spec.stage, PromptKey: spec.prompt.Key, Kind: KindTransport, Err: err}
		if se, ok := providers.AsStatusError(err); ok {
			genErr.Kind = KindStatus
			genErr.StatusCode = se.StatusCode
			genErr.Payload = se.Body
		}
		logger.Error("provider call failed", "error", genErr)
		rep.callFailed(genErr)
		return nil, genErr
	}

	parsed, rec := result.ParsedJSON, result.Recovery
	if len(parsed) == 0 {
		parsed, rec, err = providers.RecoverStructuredJSON(result.Content)
	}
	if err == nil && rec != providers.RecoveryNone {
		logger.Warn("repaired malformed reply", "recovery", rec, "request_id", result.RequestID)
	}
	if err == nil && spec.validate && spec.format != nil {
		err = providers.ValidateStructuredJSON(spec.format.JSONSchema, parsed)
	}
	if err != nil {
		err = g.parseFailure(spec, result.Content, err, logger)
		rep.callFailed(err)
		return nil, err
	}
	return parsed, nil
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if se, ok := providers.AsStatusError(err); ok {
		return se.Retryable()
	}
	return true
}

// parseFailure saves the raw reply for offline diagnosis and returns the
// matching GenerationError.
func (g *Generator) parseFailure(spec callSpec, raw string, cause error, logger *slog.Logger) error {
	genErr := &GenerationError{Stage: spec.stage, PromptKey: spec.prompt.Key, Kind: KindParse, Err: cause}

	if g.cfg.DiagnosticsDir != "" {
		name := fmt.Sprintf("%s_sarga_%d_%s", spec.chapter.Book, spec.chapter.Sarga, spec.stage)
		if spec.pass != "" {
			name += "_" + spec.pass
		}
		name += "_" + time.Now().UTC().Format("20060102T150405.000000000") + "_raw.txt"
		path := filepath.Join(g.cfg.DiagnosticsDir, name)

		if err := os.MkdirAll(g.cfg.DiagnosticsDir, 0o755); err != nil {
			logger.Error("failed to create diagnostics dir", "error", err)
		} else if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
			logger.Error("failed to write diagnostic file", "error", err)
		} else {
			genErr.DiagnosticPath = path
		}
	}

	logger.Error("unparseable provider reply", "error", cause, "diagnostic", genErr.DiagnosticPath)
	return genErr
}

func (g *Generator) record(result *providers.ChatResult, spec callSpec) {
	if result == nil {
		return
	}
	temp := *g.cfg.Temperature
	g.cfg.Recorder.Record(result, llmcall.RecordOptions{
		EpicID:      spec.chapter.EpicID,
		Book:        spec.chapter.Book,
		Sarga:       spec.chapter.Sarga,
		Stage:       spec.stage,
		Pass:        spec.pass,
		PromptKey:   spec.prompt.Key,
		PromptCID:   spec.prompt.CID,
		Temperature: &temp,
	})
}

// parseQuestions turns a reply into validated records. Records that fail
// normalization or validation are dropped and counted as rejected.
func (g *Generator) parseQuestions(raw json.RawMessage, src *types.ChapterSource, expected int, pass *types.PassTag, spec callSpec, rep *Report) ([]types.QuestionRecord, error) {
	items, itemErrs, err := quiz.DecodeList(raw)
	if err != nil {
		return nil, g.parseFailure(spec, string(raw), err, g.logger)
	}

	for _, e := range itemErrs {
		rep.Rejected++
		rep.addError(fmt.Errorf("%s: %w", spec.stage, e))
	}

	key := src.Key()
	ref := src.SourceReference()
	records := make([]types.QuestionRecord, 0, len(items))
	for i, item := range items {
		q, err := quiz.Normalize(item, key, ref)
		if err == nil {
			q.Pass = pass
			err = quiz.Validate(&q)
		}
		if err != nil {
			rep.Rejected++
			rep.addError(fmt.Errorf("%s question %d: %w", spec.stage, i, err))
			g.logger.Warn("rejected generated question", "stage", spec.stage, "pass", spec.pass, "index", i, "error", err)
			continue
		}
		records = append(records, q)
	}

	if len(records) != expected {
		g.logger.Warn("question count mismatch",
			"stage", spec.stage, "pass", spec.pass, "book", key.Book, "sarga", key.Sarga,
			"expected", expected, "got", len(records))
	}
	return records, nil
}

func jsonObject() *providers.ResponseFormat {
	return &providers.ResponseFormat{Type: "json_object"}
}

func jsonSchema(schema json.RawMessage) *providers.ResponseFormat {
	return &providers.ResponseFormat{Type: "json_schema", JSONSchema: schema}
}

func passName(p *types.PassTag) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(p.Name)
}
