package embedding

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/khanglvm/event-hub/internal/metrics"
)

var (
	// ErrProviderUnavailable wraps every provider failure (network, auth,
	// quota, timeout, open breaker).
	ErrProviderUnavailable = errors.New("embedding provider unavailable")

	// ErrDimensionMismatch means the provider returned vectors of the wrong length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Provider is an external embedding service.
type Provider interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// HTTPProviderConfig configures an OpenAI-compatible embeddings endpoint.
type HTTPProviderConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int
	Timeout   time.Duration

	// RateLimit is requests per second; 0 disables limiting.
	RateLimit float64
	RateBurst int

	BreakerFailures uint32
	BreakerCooldown time.Duration

	// Client overrides the HTTP client (tests).
	Client *http.Client
}

// HTTPProvider calls POST {BaseURL}/v1/embeddings behind a rate limiter and
// a circuit breaker. Each call is bounded by Timeout.
type HTTPProvider struct {
	cfg     HTTPProviderConfig
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[][]float32]
	log     zerolog.Logger
}

// NewHTTPProvider creates an HTTPProvider.
func NewHTTPProvider(cfg HTTPProviderConfig, log zerolog.Logger) *HTTPProvider {
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	p := &HTTPProvider{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
		log:     log.With().Str("provider", cfg.Model).Logger(),
	}

	name := "embedding:" + cfg.Model
	p.breaker = gobreaker.NewCircuitBreaker[[][]float32](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
			p.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("embedding provider breaker changed state")
		},
	})
	metrics.BreakerState.WithLabelValues(name).Set(float64(gobreaker.StateClosed))

	return p
}

// Name identifies the provider in logs.
func (p *HTTPProvider) Name() string {
	return "http:" + p.cfg.Model
}

// Embed returns one vector per text, or an error wrapping ErrProviderUnavailable.
func (p *HTTPProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	if err := p.limiter.Wait(ctx); err != nil {
		metrics.EmbeddingProviderFailures.WithLabelValues("timeout").Inc()
		return nil, fmt.Errorf("%w: rate limit wait: %w", ErrProviderUnavailable, err)
	}

	vecs, err := p.breaker.Execute(func() ([][]float32, error) {
		return p.do(ctx, texts)
	})
	if err != nil {
		metrics.EmbeddingProviderFailures.WithLabelValues(failureReason(err)).Inc()
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	return vecs, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "breaker_open"
	case errors.Is(err, ErrDimensionMismatch):
		return "dimension"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

type embeddingRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

func (p *HTTPProvider) do(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embeddingRequest{
		Input:      texts,
		Model:      p.cfg.Model,
		Dimensions: p.cfg.Dimension,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(p.cfg.BaseURL, "/") + "/v1/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embeddings API error: %s", resp.Status)
	}

	var apiResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response mismatch: got %d vectors, want %d", len(apiResp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for i, d := range apiResp.Data {
		if p.cfg.Dimension > 0 && len(d.Embedding) != p.cfg.Dimension {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(d.Embedding), p.cfg.Dimension)
		}
		idx := d.Index
		if idx < 0 || idx >= len(out) || out[idx] != nil {
			idx = i
		}
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		out[idx] = vec
	}
	return out, nil
}
