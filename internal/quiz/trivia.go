// Package quiz broadcasts trivia quiz polls to every active chat behind a
// global cooldown and a store-side in-flight lock.
package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/edgard/chattop/internal/resilience"
)

// Telegram poll limits.
const (
	MaxQuestionLen    = 300
	MaxOptionLen      = 100
	MaxExplanationLen = 200
	MinOptions        = 2
	MaxOptions        = 10
)

// ErrNoQuestion is returned when the trivia source yields no usable question.
var ErrNoQuestion = errors.New("no trivia question available")

// Question is one multiple-choice quiz, options already shuffled.
type Question struct {
	Text         string
	Options      []string
	CorrectIndex int
	Explanation  string
	Category     string
}

// Fetcher supplies trivia questions.
type Fetcher interface {
	Fetch(ctx context.Context) (*Question, error)
}

// NewQuestion assembles a question from the correct answer and distractors,
// shuffles the options and validates the result against Telegram's poll limits.
func NewQuestion(text, correct string, incorrect []string, shuffle func(n int, swap func(i, j int))) (*Question, error) {
	options := make([]string, 0, len(incorrect)+1)
	options = append(options, correct)
	options = append(options, incorrect...)
	if shuffle != nil {
		shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })
	}

	q := &Question{
		Text:        text,
		Options:     options,
		Explanation: truncateRunes("Correct Answer: "+correct, MaxExplanationLen),
	}
	for i, o := range options {
		if o == correct {
			q.CorrectIndex = i
			break
		}
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return q, nil
}

// Validate checks the question against Telegram's poll limits.
func (q *Question) Validate() error {
	if n := utf8.RuneCountInString(q.Text); n == 0 || n > MaxQuestionLen {
		return fmt.Errorf("%w: question length %d out of range", ErrNoQuestion, n)
	}
	if len(q.Options) < MinOptions || len(q.Options) > MaxOptions {
		return fmt.Errorf("%w: %d options", ErrNoQuestion, len(q.Options))
	}
	seen := make(map[string]bool, len(q.Options))
	for _, o := range q.Options {
		if n := utf8.RuneCountInString(o); n == 0 || n > MaxOptionLen {
			return fmt.Errorf("%w: option length %d out of range", ErrNoQuestion, n)
		}
		if seen[o] {
			return fmt.Errorf("%w: duplicate option %q", ErrNoQuestion, o)
		}
		seen[o] = true
	}
	if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
		return fmt.Errorf("%w: correct option out of range", ErrNoQuestion)
	}
	return nil
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

// TriviaClient fetches questions from an Open Trivia DB compatible API.
type TriviaClient struct {
	baseURL    string
	httpClient *http.Client
	shuffle    func(n int, swap func(i, j int))
	breaker    *resilience.Breaker
	retry      resilience.RetryConfig
}

// NewTriviaClient creates a client for baseURL with the given request timeout.
func NewTriviaClient(baseURL string, timeout time.Duration) *TriviaClient {
	return &TriviaClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		shuffle:    rand.Shuffle,
		retry: resilience.RetryConfig{
			MaxAttempts:     2,
			InitialInterval: time.Second,
			// Only transport failures are retried; a bad answer stays bad.
			Retryable: func(err error) bool { return !errors.Is(err, ErrNoQuestion) },
		},
	}
}

// WithBreaker routes every fetch through b, so a dead trivia source is not
// hammered once per cooldown.
func (c *TriviaClient) WithBreaker(b *resilience.Breaker) *TriviaClient {
	c.breaker = b
	return c
}

type triviaResponse struct {
	ResponseCode int `json:"response_code"`
	Results      []struct {
		Category         string   `json:"category"`
		Question         string   `json:"question"`
		CorrectAnswer    string   `json:"correct_answer"`
		IncorrectAnswers []string `json:"incorrect_answers"`
	} `json:"results"`
}

// Fetch retrieves one multiple-choice question.
func (c *TriviaClient) Fetch(ctx context.Context) (*Question, error) {
	var q *Question
	err := resilience.Retry(ctx, c.retry, func(ctx context.Context) error {
		fetch := func(ctx context.Context) error {
			var err error
			q, err = c.fetchOnce(ctx)
			return err
		}
		if c.breaker == nil {
			return fetch(ctx)
		}
		return c.breaker.Execute(ctx, fetch)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return nil, fmt.Errorf("%w: %v", ErrNoQuestion, err)
	}
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (c *TriviaClient) fetchOnce(ctx context.Context) (*Question, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid trivia url: %w", err)
	}
	query := u.Query()
	query.Set("amount", "1")
	query.Set("type", "multiple")
	query.Set("encode", "url3986")
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build trivia request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trivia request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: trivia source returned status %d", ErrNoQuestion, resp.StatusCode)
	}

	var body triviaResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: malformed trivia response: %v", ErrNoQuestion, err)
	}
	if body.ResponseCode != 0 || len(body.Results) == 0 {
		return nil, fmt.Errorf("%w: trivia response code %d", ErrNoQuestion, body.ResponseCode)
	}

	r := body.Results[0]
	incorrect := make([]string, 0, len(r.IncorrectAnswers))
	for _, a := range r.IncorrectAnswers {
		incorrect = append(incorrect, decodeField(a))
	}
	q, err := NewQuestion(decodeField(r.Question), decodeField(r.CorrectAnswer), incorrect, c.shuffle)
	if err != nil {
		return nil, err
	}
	q.Category = decodeField(r.Category)
	return q, nil
}

// decodeField undoes the RFC 3986 encoding and any HTML entities inside it.
func decodeField(s string) string {
	if decoded, err := url.PathUnescape(s); err == nil {
		s = decoded
	}
	return strings.TrimSpace(html.UnescapeString(s))
}
