package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// MaxProbeCalls bounds how many concurrent calls a rate-limit probe may issue.
const MaxProbeCalls = 5

// ProbeResult is the outcome of one probe call.
type ProbeResult struct {
	Index      int               `json:"index"`
	Success    bool              `json:"success"`
	StatusCode int               `json:"status_code,omitempty"`
	Latency    time.Duration     `json:"latency"`
	RateLimit  map[string]string `json:"rate_limit,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// ProbeReport summarizes a probe run.
type ProbeReport struct {
	Provider  string        `json:"provider"`
	Calls     int           `json:"calls"`
	Succeeded int           `json:"succeeded"`
	Limited   int           `json:"rate_limited"`
	Results   []ProbeResult `json:"results"`
}

// Probe sends n minimal chat requests concurrently (at most MaxProbeCalls) and
// collects the rate-limit headers returned with each reply. Results are
// ordered by probe index. Individual failures are recorded, not returned.
func Probe(ctx context.Context, client LLMClient, model string, n int) (*ProbeReport, error) {
	if n < 1 {
		return nil, fmt.Errorf("probe needs at least one call, got %d", n)
	}
	if n > MaxProbeCalls {
		n = MaxProbeCalls
	}

	results := make([]ProbeResult, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n)

	for i := 0; i < n; i++ {
		g.Go(func() error {
			start := time.Now()
			res, err := client.Chat(gctx, &ChatRequest{
				Model:     model,
				MaxTokens: 1,
				Messages:  []Message{{Role: "user", Content: "ping"}},
			})

			pr := ProbeResult{Index: i, Latency: time.Since(start)}
			if res != nil {
				pr.RateLimit = RateLimitHeaders(res.Headers)
			}
			if err != nil {
				pr.Error = err.Error()
				if se, ok := AsStatusError(err); ok {
					pr.StatusCode = se.StatusCode
					if pr.RateLimit == nil {
						pr.RateLimit = RateLimitHeaders(se.Header)
					}
				}
			} else {
				pr.Success = true
				pr.StatusCode = http.StatusOK
			}
			results[i] = pr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &ProbeReport{Provider: client.Name(), Calls: n, Results: results}
	for _, r := range results {
		if r.Success {
			report.Succeeded++
		}
		if r.StatusCode == http.StatusTooManyRequests {
			report.Limited++
		}
	}
	return report, nil
}

// RateLimitHeaders extracts x-ratelimit-* and retry-after headers, keyed in lower case.
func RateLimitHeaders(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string)
	for k, v := range h {
		lk := strings.ToLower(k)
		if (strings.HasPrefix(lk, "x-ratelimit-") || lk == "retry-after") && len(v) > 0 {
			out[lk] = v[0]
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
