package quiz

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/jackzampolin/itihasa/internal/types"
)

// SignatureRunes is how much of the question text takes part in the dedup signature.
const SignatureRunes = 40

// Signature is the case-normalized (category, question prefix) key used by Dedup.
func Signature(q *types.QuestionRecord) string {
	text := []rune(strings.ToLower(strings.TrimSpace(q.QuestionText)))
	if len(text) > SignatureRunes {
		text = text[:SignatureRunes]
	}
	return strings.ToLower(string(q.Category)) + "|" + string(text)
}

// Dedup drops records whose signature was already seen. The first occurrence
// wins and order is preserved.
func Dedup(records []types.QuestionRecord) []types.QuestionRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]types.QuestionRecord, 0, len(records))
	for i := range records {
		sig := Signature(&records[i])
		if _, dup := seen[sig]; dup {
			continue
		}
		seen[sig] = struct{}{}
		out = append(out, records[i])
	}
	return out
}

// NormalizeText lower-cases and collapses whitespace.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// ContentHash is the write-time uniqueness key of a question: chapter key plus
// normalized question text.
func ContentHash(key types.ChapterKey, questionText string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%s", key.EpicID, key.Book, key.Sarga, NormalizeText(questionText))))
	return hex.EncodeToString(h[:])
}
