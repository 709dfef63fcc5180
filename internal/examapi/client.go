// Package examapi is the HTTP client for the exam service collaborator.
// The agent consumes exactly two endpoints: the exam definition fetch
// and the scoring submission.
package examapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/quizora/exam-agent/internal/model"
)

// Client talks to the exam service REST API.
type Client struct {
	baseURL string
	httpc   *http.Client
	log     zerolog.Logger
}

// NewClient creates a Client for the given API base URL, e.g.
// "http://localhost:5000/api".
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "examapi").Logger(),
	}
}

// errorBody is the service's error response shape.
type errorBody struct {
	Error string `json:"error"`
}

// CheckCredential performs the pre-flight credential check. The token is
// opaque to the agent, but when it happens to be a well-formed JWT an
// already-passed expiry is rejected locally instead of burning a round
// trip on a guaranteed 401. Tokens that do not parse as JWTs are left
// for the service to judge.
func CheckCredential(token string) error {
	if token == "" {
		return ErrCredentialMissing
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if exp.Before(time.Now()) {
		return ErrCredentialExpired
	}
	return nil
}

// GetExam fetches the raw exam definition for the given identifier.
// The body is returned undecoded; shape normalization is the loader's job.
func (c *Client) GetExam(ctx context.Context, examID, token string) (json.RawMessage, error) {
	if examID == "" {
		return nil, fmt.Errorf("exam id is required")
	}
	if err := CheckCredential(token); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/exams/"+examID, nil)
	if err != nil {
		return nil, fmt.Errorf("build exam request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: "exam fetch", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: "exam fetch", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.classify(resp.StatusCode, body)
	}

	c.log.Debug().Str("exam_id", examID).Int("bytes", len(body)).Msg("Exam definition fetched")
	return body, nil
}

// Submit transmits a submission record to the scoring endpoint and
// returns the scored result.
func (c *Client) Submit(ctx context.Context, record *model.SubmissionRecord, token string) (*model.ExamResult, error) {
	if err := CheckCredential(token); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode submission: %w", err)
	}

	url := c.baseURL + "/exams/" + record.ExamID + "/submit"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: "submission", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: "submission", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.classify(resp.StatusCode, body)
	}

	var result model.ExamResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode scored result: %w", err)
	}

	c.log.Info().
		Str("exam_id", record.ExamID).
		Float64("score", result.Score).
		Float64("percentage", result.Percentage).
		Msg("Submission accepted")
	return &result, nil
}

// classify maps a non-2xx response onto the error taxonomy.
func (c *Client) classify(status int, body []byte) error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		if eb.Error != "" {
			return fmt.Errorf("%w: %s", ErrUnauthorized, eb.Error)
		}
		return ErrUnauthorized
	case status == http.StatusNotFound:
		return ErrExamNotFound
	case status == http.StatusBadRequest && strings.Contains(strings.ToLower(eb.Error), "already submitted"):
		return ErrAlreadySubmitted
	default:
		return &StatusError{StatusCode: status, Message: eb.Error}
	}
}
