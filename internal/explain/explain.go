/*
Package explain turns ranked search results into a short human-readable
explanation.

A Generator is any text capability that answers a prompt. Its output is
treated as opaque prose and is never parsed. The Explainer bounds each call
with a timeout and a circuit breaker, and falls back to a deterministic
template sentence whenever the generator is missing, fails, times out or
returns nothing usable.
*/
package explain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/khanglvm/event-hub/internal/metrics"
	"github.com/khanglvm/event-hub/internal/models"
)

// ErrEmptyResponse is returned when a generator produced no text.
var ErrEmptyResponse = errors.New("generator returned no text")

const (
	defaultTimeout         = 10 * time.Second
	defaultBreakerFailures = 3
	defaultBreakerCooldown = time.Minute

	// promptResults is how many results are summarized in the prompt.
	promptResults = 3
)

// Generator produces free text for a prompt.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Result is the part of a search hit an explanation talks about.
type Result struct {
	Name     string
	Category string
	Location string
	Price    float64
}

// Request is everything needed to explain one search.
type Request struct {
	Query  string
	Intent models.SearchIntent
	// Results are the top ranked results, best first.
	Results []Result
	// TotalFound is the filtered result count before truncation.
	TotalFound int
	// Keyword marks results that came from the keyword fallback.
	Keyword bool
}

// Config tunes the Explainer.
type Config struct {
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// Explainer wraps a Generator with a timeout, a breaker and a template fallback.
type Explainer struct {
	gen     Generator
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker[string]
	log     zerolog.Logger
}

// New creates an Explainer. A nil generator always uses the template.
func New(gen Generator, cfg Config, log zerolog.Logger) *Explainer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = defaultBreakerFailures
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = defaultBreakerCooldown
	}

	e := &Explainer{
		gen:     gen,
		timeout: cfg.Timeout,
		log:     log.With().Str("component", "explain").Logger(),
	}

	if gen != nil {
		name := "explain:" + gen.Name()
		e.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     cfg.BreakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.BreakerFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				metrics.BreakerState.WithLabelValues(name).Set(float64(to))
				e.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
					Msg("explanation generator breaker changed state")
			},
		})
		metrics.BreakerState.WithLabelValues(name).Set(float64(gobreaker.StateClosed))
	}

	return e
}

// Explain returns an explanation for req. It never fails.
func (e *Explainer) Explain(ctx context.Context, req Request) string {
	if e.gen == nil || len(req.Results) == 0 {
		return Template(req)
	}

	text, err := e.breaker.Execute(func() (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		out, err := e.gen.Generate(callCtx, BuildPrompt(req))
		if err != nil {
			return "", err
		}
		out = strings.TrimSpace(out)
		if out == "" || !utf8.ValidString(out) {
			return "", ErrEmptyResponse
		}
		return out, nil
	})
	if err != nil {
		metrics.ExplanationFallbacks.Inc()
		e.log.Warn().Err(err).Str("generator", e.gen.Name()).Msg("explanation generator failed, using template")
		return Template(req)
	}
	return text
}

// Template is the deterministic explanation used when no generator answers.
func Template(req Request) string {
	msg := fmt.Sprintf("Found %d events matching '%s'", req.TotalFound, req.Query)
	if req.Keyword {
		msg += " (keyword search)"
	}
	return msg
}

// BuildPrompt renders the query, the parsed intent and the top results.
func BuildPrompt(req Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "User searched for: '%s'\n", req.Query)
	b.WriteString(req.Intent.Summary())
	b.WriteString("\n\nTop results found:\n")
	for i, r := range req.Results {
		if i == promptResults {
			break
		}
		fmt.Fprintf(&b, "%d. **%s** - %s event in %s for $%.2f\n", i+1, r.Name, r.Category, r.Location, r.Price)
	}
	b.WriteString("\nExplain in a few friendly sentences why these events match the search, ")
	b.WriteString("mentioning prices and locations where useful.")

	return b.String()
}
