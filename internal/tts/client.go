package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/rs/zerolog/log"

	"github.com/vocalize/tts-gateway/internal/observability"
	"github.com/vocalize/tts-gateway/internal/resilience"
)

const defaultRequestTimeout = 60 * time.Second

// Client wraps the OpenAI speech endpoint. It is constructed once at startup;
// a missing credential fails construction instead of the first request.
type Client struct {
	api     openai.Client
	retry   *resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// Option configures a Client
type Option func(*clientOptions)

type clientOptions struct {
	httpClient  *http.Client
	retry       *resilience.RetryConfig
	breaker     *resilience.CircuitBreaker
	requestOpts []option.RequestOption
}

// WithHTTPClient overrides the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = hc }
}

// WithRetry overrides the retry policy for transient transport failures
func WithRetry(cfg *resilience.RetryConfig) Option {
	return func(o *clientOptions) { o.retry = cfg }
}

// WithBreaker installs a circuit breaker around provider calls
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(o *clientOptions) { o.breaker = cb }
}

// WithBaseURL points the client at a different API host (used in tests)
func WithBaseURL(baseURL string) Option {
	return func(o *clientOptions) {
		o.requestOpts = append(o.requestOpts, option.WithBaseURL(baseURL))
	}
}

// NewClient creates a synthesis client. Returns ErrMissingAPIKey when apiKey
// is empty so startup fails fast rather than on the first request.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}

	o := &clientOptions{
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		retry:      resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(o)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(o.httpClient),
		// The SDK has its own retry loop; resilience.Retry owns that concern here
		option.WithMaxRetries(0),
	}
	reqOpts = append(reqOpts, o.requestOpts...)

	return &Client{
		api:     openai.NewClient(reqOpts...),
		retry:   o.retry,
		breaker: o.breaker,
	}, nil
}

// Synthesize converts text into MP3 audio bytes using the given voice and
// speed. Both must come from the reference tables; the validator runs before
// any request reaches this method. Failures are returned as *SynthesisError
// so the handler layers can map them without parsing message text.
func (c *Client) Synthesize(ctx context.Context, text, voice string, speed float64) ([]byte, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}
	if !ValidVoice(voice) {
		return nil, fmt.Errorf("unknown voice %q", voice)
	}
	if !ValidSpeed(speed) {
		return nil, fmt.Errorf("unknown speed %v", speed)
	}

	params := openai.AudioSpeechNewParams{
		Model:          openai.SpeechModelTTS1,
		Input:          trimmed,
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
		Speed:          openai.Float(speed),
	}

	start := time.Now()

	var audio []byte
	attempt := func() error {
		res, err := c.api.Audio.Speech.New(ctx, params)
		if err != nil {
			return classify(err)
		}
		defer res.Body.Close()

		data, err := io.ReadAll(res.Body)
		if err != nil {
			return &SynthesisError{Kind: KindProvider, Err: fmt.Errorf("reading audio response: %w", err)}
		}
		if len(data) == 0 {
			return &SynthesisError{Kind: KindProvider, Err: errors.New("provider returned empty audio")}
		}

		audio = data
		return nil
	}

	call := func() error { return resilience.Retry(attempt, c.retry, retryable) }

	var err error
	if c.breaker != nil {
		err = c.breaker.Call(call)
		if errors.Is(err, resilience.ErrCircuitOpen) {
			err = &SynthesisError{Kind: KindProvider, Err: err}
		}
	} else {
		err = call()
	}

	observability.RecordSynthesis(voice, err == nil, time.Since(start), len(audio))
	if c.breaker != nil {
		observability.UpdateCircuitBreakerState("openai", int(c.breaker.State()))
	}

	if err != nil {
		log.Error().Err(err).Str("voice", voice).Float64("speed", speed).Msg("Speech synthesis failed")
		return nil, err
	}

	log.Debug().
		Str("voice", voice).
		Float64("speed", speed).
		Int("bytes", len(audio)).
		Dur("elapsed", time.Since(start)).
		Msg("Speech synthesized")

	return audio, nil
}

// classify maps an SDK error onto the synthesis error taxonomy. The API error
// status code is the tag; message content is never inspected.
func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &SynthesisError{Kind: KindCredential, Err: err}
		case http.StatusTooManyRequests:
			return &SynthesisError{Kind: KindQuota, Err: err}
		default:
			return &SynthesisError{Kind: KindProvider, Err: err}
		}
	}

	return &SynthesisError{Kind: KindProvider, Err: err}
}

// retryable allows another attempt only for transient transport failures;
// tagged provider rejections are final.
func retryable(err error) bool {
	var synthErr *SynthesisError
	if errors.As(err, &synthErr) && synthErr.Kind != KindProvider {
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusInternalServerError
	}

	return resilience.IsRetryableNetworkError(err)
}
