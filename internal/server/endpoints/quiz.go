package endpoints

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/itihasa/internal/api"
	"github.com/jackzampolin/itihasa/internal/quiz"
	"github.com/jackzampolin/itihasa/internal/store"
	"github.com/jackzampolin/itihasa/internal/svcctx"
	"github.com/jackzampolin/itihasa/internal/types"
)

// Quiz size bounds.
const (
	DefaultQuizCount = 10
	MaxQuizCount     = 50
)

// QuizRequest is the body of POST /api/quiz.
type QuizRequest struct {
	EpicID     string           `json:"epic_id"`
	Book       string           `json:"book,omitempty"`
	Sarga      int              `json:"sarga,omitempty"`
	Category   types.Category   `json:"category,omitempty"`
	Difficulty types.Difficulty `json:"difficulty,omitempty"`
	Count      int              `json:"count,omitempty"`
}

// QuizResponse holds questions with their answers removed.
type QuizResponse struct {
	Questions []quiz.PublicQuestion `json:"questions"`
	Count     int                   `json:"count"`
}

// QuizEndpoint handles POST /api/quiz.
type QuizEndpoint struct{}

func (e *QuizEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/quiz", e.handler
}

func (e *QuizEndpoint) RequiresStore() bool { return true }

// handler godoc
//
//	@Summary		Generate a quiz
//	@Description	Pick random questions matching the filters. Answers are not included.
//	@Tags			quiz
//	@Accept			json
//	@Produce		json
//	@Param			request	body		QuizRequest	true	"Quiz filters"
//	@Success		200		{object}	QuizResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/quiz [post]
func (e *QuizEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req QuizRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter, err := req.filter()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	st := svcctx.StoreFrom(r.Context())
	records, err := st.ListQuestions(r.Context(), filter)
	if err != nil {
		svcctx.LoggerFrom(r.Context()).Error("quiz query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load questions")
		return
	}
	if len(records) == 0 {
		writeError(w, http.StatusNotFound, "no questions match the filters")
		return
	}

	resp := QuizResponse{Questions: make([]quiz.PublicQuestion, len(records)), Count: len(records)}
	for i := range records {
		resp.Questions[i] = quiz.Public(&records[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

func (req QuizRequest) filter() (store.QuestionFilter, error) {
	f := store.QuestionFilter{
		EpicID:     strings.TrimSpace(req.EpicID),
		Book:       strings.ToLower(strings.TrimSpace(req.Book)),
		Sarga:      req.Sarga,
		Category:   req.Category,
		Difficulty: req.Difficulty,
		Limit:      req.Count,
		Random:     true,
	}
	if f.EpicID == "" {
		f.EpicID = types.DefaultEpicID
	}
	if f.Sarga < 0 {
		return f, fmt.Errorf("sarga must be positive, got %d", f.Sarga)
	}
	if f.Category != "" && !f.Category.Valid() {
		return f, fmt.Errorf("unknown category %q", f.Category)
	}
	if f.Difficulty != "" && !f.Difficulty.Valid() {
		return f, fmt.Errorf("unknown difficulty %q", f.Difficulty)
	}
	switch {
	case f.Limit == 0:
		f.Limit = DefaultQuizCount
	case f.Limit < 0 || f.Limit > MaxQuizCount:
		return f, fmt.Errorf("count must be between 1 and %d, got %d", MaxQuizCount, f.Limit)
	}
	return f, nil
}

func (e *QuizEndpoint) Command(getServerURL func() string) *cobra.Command {
	var req QuizRequest
	var category, difficulty string
	cmd := &cobra.Command{
		Use:   "quiz",
		Short: "Get a random quiz from the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Category = types.Category(category)
			req.Difficulty = types.Difficulty(difficulty)
			client := api.NewClient(getServerURL())
			var resp QuizResponse
			if err := client.Post(cmd.Context(), "/api/quiz", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&req.EpicID, "epic", types.DefaultEpicID, "Epic id")
	cmd.Flags().StringVar(&req.Book, "book", "", "Filter by kanda")
	cmd.Flags().IntVar(&req.Sarga, "sarga", 0, "Filter by sarga")
	cmd.Flags().StringVar(&category, "category", "", "Filter by category")
	cmd.Flags().StringVar(&difficulty, "difficulty", "", "Filter by difficulty")
	cmd.Flags().IntVarP(&req.Count, "count", "n", DefaultQuizCount, "Number of questions")
	return cmd
}

// SubmitRequest is the body of POST /api/quiz/submit.
type SubmitRequest struct {
	Answers []quiz.Answer `json:"answers"`
}

// SubmitEndpoint handles POST /api/quiz/submit.
type SubmitEndpoint struct{}

func (e *SubmitEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/quiz/submit", e.handler
}

func (e *SubmitEndpoint) RequiresStore() bool { return true }

// handler godoc
//
//	@Summary		Score a quiz
//	@Description	Grade the selected options and return explanations for every known question
//	@Tags			quiz
//	@Accept			json
//	@Produce		json
//	@Param			request	body		SubmitRequest	true	"Answers"
//	@Success		200		{object}	quiz.Score
//	@Failure		400		{object}	ErrorResponse
//	@Router			/api/quiz/submit [post]
func (e *SubmitEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Answers) == 0 {
		writeError(w, http.StatusBadRequest, "answers required")
		return
	}
	if len(req.Answers) > MaxQuizCount {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d answers per submission", MaxQuizCount))
		return
	}

	st := svcctx.StoreFrom(r.Context())
	var lookupErr error
	score := quiz.Grade(req.Answers, func(id string) (*types.QuestionRecord, bool) {
		q, err := st.GetQuestion(r.Context(), id)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) && lookupErr == nil {
				lookupErr = err
			}
			return nil, false
		}
		return q, true
	})
	if lookupErr != nil {
		svcctx.LoggerFrom(r.Context()).Error("answer lookup failed", "error", lookupErr)
		writeError(w, http.StatusInternalServerError, "failed to load questions")
		return
	}
	writeJSON(w, http.StatusOK, score)
}

func (e *SubmitEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <question-id>=<option>...",
		Short: "Submit answers and print the score",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			answers, err := parseAnswers(args)
			if err != nil {
				return err
			}
			client := api.NewClient(getServerURL())
			var resp quiz.Score
			if err := client.Post(cmd.Context(), "/api/quiz/submit", SubmitRequest{Answers: answers}, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// parseAnswers reads "id=option" pairs.
func parseAnswers(args []string) ([]quiz.Answer, error) {
	answers := make([]quiz.Answer, 0, len(args))
	for _, arg := range args {
		id, opt, ok := strings.Cut(arg, "=")
		if !ok || id == "" {
			return nil, fmt.Errorf("invalid answer %q, want <question-id>=<option>", arg)
		}
		n, err := strconv.Atoi(opt)
		if err != nil {
			return nil, fmt.Errorf("invalid option in %q: %w", arg, err)
		}
		answers = append(answers, quiz.Answer{QuestionID: id, Selected: n})
	}
	return answers, nil
}
