package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"fic-recs-bot/internal/domain"
	"fic-recs-bot/internal/infra/metrics"
)

// Client выполняет JSON-запросы к внутренним сервисам с ограничением частоты,
// повторами и предохранителем. Любой сетевой отказ приводит к domain.ErrServiceUnavailable.
type Client struct {
	name       string
	baseURL    *url.URL
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
	retries    uint64
	log        zerolog.Logger
}

// Option настраивает клиент.
type Option func(*Client)

// WithHTTPClient подменяет HTTP клиент. Переданный клиент не изменяется другими опциями.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout задаёт общий таймаут одного запроса.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			client := *c.httpClient
			client.Timeout = timeout
			c.httpClient = &client
		}
	}
}

// WithRateLimit ограничивает число запросов в секунду. Ноль снимает ограничение.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetries задаёт число повторов после первой неудачной попытки.
func WithRetries(retries uint64) Option {
	return func(c *Client) {
		c.retries = retries
	}
}

// WithLogger задаёт логгер для смены состояния предохранителя.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// StatusError — ответ сервиса с кодом ошибки.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status=%d message=%s", e.Status, e.Message)
}

// New создаёт клиента сервиса name по адресу baseURL.
func New(name, baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%s: baseURL is required", name)
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Scheme == "" {
		parsed.Scheme = "http"
	}
	c := &Client{
		name:       name,
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Inf, 0),
		retries:    2,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			var statusErr *StatusError
			return err == nil || (errors.As(err, &statusErr) && statusErr.Status < 500)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn().Str("service", name).Str("from", from.String()).Str("to", to.String()).Msg("предохранитель сменил состояние")
		},
	})
	return c, nil
}

// Post отправляет body и декодирует ответ в out. out может быть nil.
func (c *Client) Post(ctx context.Context, operation, endpoint string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	start := time.Now()
	data, err := c.call(ctx, endpoint, raw)
	metrics.ObserveNetworkRequest(c.name, operation, endpoint, start, err)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func (c *Client) call(ctx context.Context, endpoint string, raw []byte) ([]byte, error) {
	policy := backoff.WithContext(backoff.WithMaxRetries(newBackOff(), c.retries), ctx)
	var data []byte
	err := backoff.Retry(func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		res, err := c.breaker.Execute(func() ([]byte, error) {
			return c.do(ctx, endpoint, raw)
		})
		if err != nil {
			var statusErr *StatusError
			if errors.As(err, &statusErr) && statusErr.Status < 500 {
				return backoff.Permanent(err)
			}
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(err)
			}
			return err
		}
		data = res
		return nil
	}, policy)
	if err == nil {
		return data, nil
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Status < 500 {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}
	return nil, fmt.Errorf("%s: %w: %v", c.name, domain.ErrServiceUnavailable, err)
}

func (c *Client) do(ctx context.Context, endpoint string, raw []byte) ([]byte, error) {
	resolved := *c.baseURL
	resolved.Path = path.Clean(strings.TrimSuffix(c.baseURL.Path, "/") + endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, resolved.String(), bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &apiErr)
		if apiErr.Error == "" {
			apiErr.Error = strings.TrimSpace(string(data))
		}
		return nil, &StatusError{Status: resp.StatusCode, Message: apiErr.Error}
	}
	return data, nil
}

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 10 * time.Second
	return b
}
