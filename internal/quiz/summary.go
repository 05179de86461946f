package quiz

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackzampolin/itihasa/internal/types"
)

// RawSummary is the generated summary object before the chapter context is attached.
type RawSummary struct {
	Title                string   `json:"title"`
	KeyEvents            []string `json:"key_events"`
	MainCharacters       []string `json:"main_characters"`
	Themes               []string `json:"themes"`
	CulturalSignificance string   `json:"cultural_significance"`
	NarrativeSummary     string   `json:"narrative_summary"`
}

// DecodeSummary accepts either a bare summary object or one wrapped in {"summary": {...}}.
func DecodeSummary(data []byte) (RawSummary, error) {
	var wrapper struct {
		Summary *RawSummary `json:"summary"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return RawSummary{}, fmt.Errorf("decode summary: %w", err)
	}
	if wrapper.Summary != nil {
		return *wrapper.Summary, nil
	}
	var s RawSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return RawSummary{}, fmt.Errorf("decode summary: %w", err)
	}
	return s, nil
}

// NormalizeSummary attaches the chapter context to a generated summary.
func NormalizeSummary(raw RawSummary, key types.ChapterKey, sourceRef string) types.ChapterSummary {
	return types.ChapterSummary{
		EpicID:               key.EpicID,
		Book:                 key.Book,
		Sarga:                key.Sarga,
		Title:                strings.TrimSpace(raw.Title),
		KeyEvents:            cleanList(raw.KeyEvents),
		MainCharacters:       cleanList(raw.MainCharacters),
		Themes:               cleanList(raw.Themes),
		CulturalSignificance: strings.TrimSpace(raw.CulturalSignificance),
		NarrativeSummary:     strings.TrimSpace(raw.NarrativeSummary),
		SourceReference:      sourceRef,
	}
}

// ValidateSummary requires a title and a narrative.
func ValidateSummary(s *types.ChapterSummary) error {
	switch {
	case s.EpicID == "" || s.Book == "" || s.Sarga < 1:
		return &ValidationError{Field: "chapter", Reason: "epic, book and sarga are required"}
	case s.Title == "":
		return &ValidationError{Field: "title", Reason: "required"}
	case s.NarrativeSummary == "":
		return &ValidationError{Field: "narrative_summary", Reason: "required"}
	}
	return nil
}
