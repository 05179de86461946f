package review

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/jackzampolin/itihasa/internal/home"
	"github.com/jackzampolin/itihasa/internal/types"
)

// listSep joins list cells. Reviewers edit these by hand.
const listSep = "; "

var questionHeader = []string{
	"row_id", "status", "category", "difficulty", "question_text",
	"option_1", "option_2", "option_3", "option_4", "correct_answer_id",
	"basic_explanation", "original_quote", "quote_translation",
	"tags", "cross_epic_tags", "source_reference", "pass",
}

var summaryHeader = []string{
	"row_id", "status", "title", "key_events", "main_characters", "themes",
	"cultural_significance", "narrative_summary", "source_reference",
}

// CSVSurface keeps one questions sheet and one summary sheet per chapter in
// a directory. Reviewers change the status column in a spreadsheet editor.
type CSVSurface struct {
	dir string
	mu  sync.Mutex
}

// NewCSVSurface creates a surface rooted at dir.
func NewCSVSurface(dir string) *CSVSurface {
	return &CSVSurface{dir: dir}
}

func (s *CSVSurface) path(key types.ChapterKey, kind string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s_sarga_%d_%s.csv", key.EpicID, key.Book, key.Sarga, kind))
}

// Location returns the questions sheet of a chapter.
func (s *CSVSurface) Location(key types.ChapterKey) string {
	return s.path(key, "questions")
}

// sheet is a parsed CSV file addressed by header name.
type sheet struct {
	header []string
	index  map[string]int
	rows   [][]string
}

func newSheet(header []string) *sheet {
	sh := &sheet{header: header, index: map[string]int{}}
	for i, h := range header {
		sh.index[h] = i
	}
	return sh
}

func (sh *sheet) get(row []string, col string) string {
	i, ok := sh.index[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (sh *sheet) set(row []string, col, v string) {
	if i, ok := sh.index[col]; ok && i < len(row) {
		row[i] = v
	}
}

func readSheet(path string, header []string) (*sheet, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return newSheet(header), nil
	}
	if err != nil {
		return nil, err
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	if len(records) == 0 {
		return newSheet(header), nil
	}
	sh := newSheet(records[0])
	if _, ok := sh.index["row_id"]; !ok {
		return nil, fmt.Errorf("%s has no row_id column", filepath.Base(path))
	}
	for _, row := range records[1:] {
		// Pad short rows so column lookups stay in range.
		for len(row) < len(sh.header) {
			row = append(row, "")
		}
		sh.rows = append(sh.rows, row)
	}
	return sh, nil
}

func (sh *sheet) write(path string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(sh.header); err != nil {
		return err
	}
	if err := w.WriteAll(sh.rows); err != nil {
		return err
	}
	return home.WriteFile(path, buf.Bytes())
}

func (sh *sheet) has(rowID string) bool {
	for _, row := range sh.rows {
		if sh.get(row, "row_id") == rowID {
			return true
		}
	}
	return false
}

// appendRow adds a row given as column name -> value.
func (sh *sheet) appendRow(values map[string]string) {
	row := make([]string, len(sh.header))
	for col, v := range values {
		sh.set(row, col, v)
	}
	sh.rows = append(sh.rows, row)
}

func (s *CSVSurface) AppendQuestions(ctx context.Context, key types.ChapterKey, qs []types.QuestionRecord) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(key, "questions")
	sh, err := readSheet(path, questionHeader)
	if err != nil {
		return 0, err
	}

	added := 0
	for i := range qs {
		id := RowID(&qs[i])
		if sh.has(id) {
			continue
		}
		sh.appendRow(questionRow(id, &qs[i]))
		added++
	}
	if added == 0 {
		return 0, nil
	}
	return added, sh.write(path)
}

func questionRow(id string, q *types.QuestionRecord) map[string]string {
	row := map[string]string{
		"row_id":            id,
		"status":            string(StatusPending),
		"category":          string(q.Category),
		"difficulty":        string(q.Difficulty),
		"question_text":     q.QuestionText,
		"correct_answer_id": strconv.Itoa(q.CorrectAnswerID),
		"basic_explanation": q.Explanation,
		"original_quote":    q.OriginalQuote,
		"quote_translation": q.QuoteTranslation,
		"tags":              strings.Join(q.Tags, listSep),
		"cross_epic_tags":   strings.Join(q.CrossEpicTags, listSep),
		"source_reference":  q.SourceReference,
	}
	for i, opt := range q.Options {
		if i < types.OptionCount {
			row["option_"+strconv.Itoa(i+1)] = opt
		}
	}
	if q.Pass != nil {
		row["pass"] = q.Pass.Name
	}
	return row
}

func (s *CSVSurface) AppendSummary(ctx context.Context, sum *types.ChapterSummary) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(sum.Key(), "summary")
	sh, err := readSheet(path, summaryHeader)
	if err != nil {
		return false, err
	}
	if sh.has(SummaryRowID) {
		return false, nil
	}
	sh.appendRow(map[string]string{
		"row_id":                SummaryRowID,
		"status":                string(StatusPending),
		"title":                 sum.Title,
		"key_events":            strings.Join(sum.KeyEvents, listSep),
		"main_characters":       strings.Join(sum.MainCharacters, listSep),
		"themes":                strings.Join(sum.Themes, listSep),
		"cultural_significance": sum.CulturalSignificance,
		"narrative_summary":     sum.NarrativeSummary,
		"source_reference":      sum.SourceReference,
	})
	return true, sh.write(path)
}

func (s *CSVSurface) ApprovedQuestions(ctx context.Context, key types.ChapterKey) ([]types.QuestionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, err := readSheet(s.path(key, "questions"), questionHeader)
	if err != nil {
		return nil, err
	}
	var out []types.QuestionRecord
	for _, row := range sh.rows {
		if st, _ := ParseStatus(sh.get(row, "status")); st != StatusApproved {
			continue
		}
		out = append(out, sh.question(key, row))
	}
	return out, nil
}

func (sh *sheet) question(key types.ChapterKey, row []string) types.QuestionRecord {
	correct, err := strconv.Atoi(sh.get(row, "correct_answer_id"))
	if err != nil {
		correct = -1
	}
	q := types.QuestionRecord{
		EpicID:           key.EpicID,
		Book:             key.Book,
		Sarga:            key.Sarga,
		Category:         types.Category(sh.get(row, "category")),
		Difficulty:       types.Difficulty(sh.get(row, "difficulty")),
		QuestionText:     sh.get(row, "question_text"),
		CorrectAnswerID:  correct,
		Explanation:      sh.get(row, "basic_explanation"),
		OriginalQuote:    sh.get(row, "original_quote"),
		QuoteTranslation: sh.get(row, "quote_translation"),
		Tags:             splitList(sh.get(row, "tags")),
		CrossEpicTags:    splitList(sh.get(row, "cross_epic_tags")),
		SourceReference:  sh.get(row, "source_reference"),
	}
	for i := 1; i <= types.OptionCount; i++ {
		if opt := sh.get(row, "option_"+strconv.Itoa(i)); opt != "" {
			q.Options = append(q.Options, opt)
		}
	}
	if p := sh.get(row, "pass"); p != "" {
		q.Pass = &types.PassTag{Name: p}
	}
	return q
}

func (s *CSVSurface) ApprovedSummary(ctx context.Context, key types.ChapterKey) (*types.ChapterSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, err := readSheet(s.path(key, "summary"), summaryHeader)
	if err != nil {
		return nil, err
	}
	for _, row := range sh.rows {
		if sh.get(row, "row_id") != SummaryRowID {
			continue
		}
		if st, _ := ParseStatus(sh.get(row, "status")); st != StatusApproved {
			return nil, nil
		}
		return &types.ChapterSummary{
			EpicID:               key.EpicID,
			Book:                 key.Book,
			Sarga:                key.Sarga,
			Title:                sh.get(row, "title"),
			KeyEvents:            splitList(sh.get(row, "key_events")),
			MainCharacters:       splitList(sh.get(row, "main_characters")),
			Themes:               splitList(sh.get(row, "themes")),
			CulturalSignificance: sh.get(row, "cultural_significance"),
			NarrativeSummary:     sh.get(row, "narrative_summary"),
			SourceReference:      sh.get(row, "source_reference"),
		}, nil
	}
	return nil, nil
}

func (s *CSVSurface) SetStatus(ctx context.Context, key types.ChapterKey, rowID string, status Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	kind, header := "questions", questionHeader
	if rowID == SummaryRowID {
		kind, header = "summary", summaryHeader
	}
	path := s.path(key, kind)
	sh, err := readSheet(path, header)
	if err != nil {
		return err
	}
	for _, row := range sh.rows {
		if sh.get(row, "row_id") == rowID {
			sh.set(row, "status", string(status))
			return sh.write(path)
		}
	}
	return fmt.Errorf("%w: %s", ErrRowNotFound, rowID)
}

func (s *CSVSurface) Close(ctx context.Context) error {
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var _ Surface = (*CSVSurface)(nil)
