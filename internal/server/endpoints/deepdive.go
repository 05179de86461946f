package endpoints

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/itihasa/internal/api"
	"github.com/jackzampolin/itihasa/internal/store"
	"github.com/jackzampolin/itihasa/internal/svcctx"
	"github.com/jackzampolin/itihasa/internal/types"
)

// Deep-dive cache defaults.
const (
	DefaultDeepDiveCacheSize = 256
	DefaultDeepDiveCacheTTL  = 5 * time.Minute
)

// DeepDiveResponse is the study view of one chapter: its summary and every
// imported question with answers and explanations.
type DeepDiveResponse struct {
	EpicID    string                 `json:"epic_id"`
	Book      string                 `json:"kanda"`
	Sarga     int                    `json:"sarga"`
	Summary   *types.ChapterSummary  `json:"summary,omitempty"`
	Questions []types.QuestionRecord `json:"questions"`
	Count     int                    `json:"count"`
}

type cachedDeepDive struct {
	resp DeepDiveResponse
	at   time.Time
}

// DeepDiveEndpoint handles GET /api/chapters/{book}/{sarga}/deep-dive.
// Responses are cached per chapter; imports are rare, so entries expire
// after TTL instead of being invalidated.
type DeepDiveEndpoint struct {
	TTL   time.Duration
	cache *lru.Cache
	now   func() time.Time
}

// NewDeepDiveEndpoint creates the endpoint with an LRU cache of size
// entries. A non-positive size or ttl uses the defaults.
func NewDeepDiveEndpoint(size int, ttl time.Duration) *DeepDiveEndpoint {
	if size <= 0 {
		size = DefaultDeepDiveCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultDeepDiveCacheTTL
	}
	cache, _ := lru.New(size)
	return &DeepDiveEndpoint{TTL: ttl, cache: cache, now: time.Now}
}

func (e *DeepDiveEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/chapters/{book}/{sarga}/deep-dive", e.handler
}

func (e *DeepDiveEndpoint) RequiresStore() bool { return true }

// handler godoc
//
//	@Summary		Chapter deep dive
//	@Description	Get the summary and all questions of a chapter
//	@Tags			chapters
//	@Produce		json
//	@Param			book	path		string	true	"Kanda id (e.g., bala)"
//	@Param			sarga	path		int		true	"Sarga number"
//	@Param			epic_id	query		string	false	"Epic id (default ramayana)"
//	@Success		200		{object}	DeepDiveResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/chapters/{book}/{sarga}/deep-dive [get]
func (e *DeepDiveEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	key, err := chapterKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if v, ok := e.cache.Get(key); ok {
		entry := v.(cachedDeepDive)
		if e.now().Sub(entry.at) < e.TTL {
			writeJSON(w, http.StatusOK, entry.resp)
			return
		}
		e.cache.Remove(key)
	}

	st := svcctx.StoreFrom(r.Context())
	logger := svcctx.LoggerFrom(r.Context())

	resp := DeepDiveResponse{EpicID: key.EpicID, Book: key.Book, Sarga: key.Sarga}

	sum, err := st.GetSummary(r.Context(), key)
	switch {
	case err == nil:
		resp.Summary = sum
	case !errors.Is(err, store.ErrNotFound):
		logger.Error("summary lookup failed", "chapter", key, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load chapter")
		return
	}

	qs, err := st.ListQuestions(r.Context(), store.ForChapter(key))
	if err != nil {
		logger.Error("question lookup failed", "chapter", key, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load chapter")
		return
	}
	if resp.Summary == nil && len(qs) == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no content for %s", key))
		return
	}
	if qs == nil {
		qs = []types.QuestionRecord{}
	}
	resp.Questions = qs
	resp.Count = len(qs)

	e.cache.Add(key, cachedDeepDive{resp: resp, at: e.now()})
	writeJSON(w, http.StatusOK, resp)
}

func chapterKey(r *http.Request) (types.ChapterKey, error) {
	key := types.ChapterKey{
		EpicID: strings.TrimSpace(r.URL.Query().Get("epic_id")),
		Book:   strings.ToLower(r.PathValue("book")),
	}
	if key.EpicID == "" {
		key.EpicID = types.DefaultEpicID
	}
	if key.Book == "" {
		return key, fmt.Errorf("book required")
	}
	n, err := strconv.Atoi(r.PathValue("sarga"))
	if err != nil || n < 1 {
		return key, fmt.Errorf("invalid sarga %q", r.PathValue("sarga"))
	}
	key.Sarga = n
	return key, nil
}

func (e *DeepDiveEndpoint) Command(getServerURL func() string) *cobra.Command {
	var epicID string
	cmd := &cobra.Command{
		Use:   "deep-dive <book> <sarga>",
		Short: "Get the summary and questions of a chapter",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/api/chapters/%s/%s/deep-dive", url.PathEscape(args[0]), url.PathEscape(args[1]))
			if epicID != "" {
				path += "?" + url.Values{"epic_id": {epicID}}.Encode()
			}
			client := api.NewClient(getServerURL())
			var resp DeepDiveResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&epicID, "epic", "", "Epic id (server default when empty)")
	return cmd
}
