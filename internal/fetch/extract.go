package fetch

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/jackzampolin/itihasa/internal/types"
)

// MinTranslationLen is the minimum rune length of a line without original
// script for it to count as translation text.
const MinTranslationLen = 20

var verseStart = regexp.MustCompile(`^(\d+)\s*[.):|\-]\s*(.*)$`)

// blockSelector lists elements after which a line break is forced when the
// page is flattened to text.
const blockSelector = "p, div, li, tr, td, h1, h2, h3, h4, h5, h6, table, blockquote, pre, center"

// IsOriginalScript reports whether r is in the Devanagari block.
func IsOriginalScript(r rune) bool {
	return r >= 0x0900 && r <= 0x097F
}

func hasOriginalScript(s string) bool {
	for _, r := range s {
		if IsOriginalScript(r) {
			return true
		}
	}
	return false
}

// PageText strips script, style and comment nodes and returns the document
// text with a line break after every block element.
func PageText(doc *goquery.Document) string {
	doc.Find("script, style, noscript").Remove()
	doc.Find("*").Contents().FilterFunction(func(_ int, s *goquery.Selection) bool {
		return goquery.NodeName(s) == "#comment"
	}).Remove()

	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	body := doc.Find("body")
	if body.Length() == 0 {
		return doc.Text()
	}
	return body.Text()
}

// ExtractVerses line-scans page text into verses. A line starting with a
// number and a delimiter opens a new verse; lines with original script are
// appended to the verse's original text; other lines of at least
// MinTranslationLen runes are appended to its translation. Verses missing
// either field are dropped.
func ExtractVerses(text string) []types.Verse {
	var (
		verses  []types.Verse
		current *types.Verse
	)

	closeVerse := func() {
		if current != nil && current.Usable() {
			verses = append(verses, *current)
		}
		current = nil
	}

	add := func(line string) {
		if current == nil || line == "" {
			return
		}
		if hasOriginalScript(line) {
			current.Original = joinLine(current.Original, line)
			return
		}
		if utf8.RuneCountInString(line) >= MinTranslationLen {
			current.Translation = joinLine(current.Translation, line)
		}
	}

	for _, raw := range strings.Split(text, "\n") {
		line := normalizeSpace(raw)
		if line == "" {
			continue
		}
		if m := verseStart.FindStringSubmatch(line); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				closeVerse()
				current = &types.Verse{Number: n}
				add(m[2])
				continue
			}
		}
		add(line)
	}
	closeVerse()
	return verses
}

func joinLine(existing, line string) string {
	if existing == "" {
		return line
	}
	return existing + " " + line
}

func normalizeSpace(s string) string {
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == ' '
	}), " ")
}
