// Package detectclient calls the classification, feedback, and news
// endpoints of the TruthGuard API over HTTP.
package detectclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"truthguard/pkg/domain"
)

// Client calls the detection side of the TruthGuard API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// APIError represents a detection service error response. Detail is empty
// when the service returned no structured message.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return http.StatusText(e.Status)
}

// NewClient constructs a detection service client. Classification of a long
// passage can take a while, hence the generous timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Predict submits a passage for classification.
func (c *Client) Predict(ctx context.Context, text string) (domain.AnalysisResult, error) {
	payload := map[string]string{"text": text}
	var result domain.AnalysisResult
	if err := c.doJSON(ctx, http.MethodPost, "/predict", "", payload, &result); err != nil {
		return domain.AnalysisResult{}, err
	}
	return result, nil
}

// SubmitFeedback posts a rating for a prior analysis. Bearer-authenticated.
func (c *Client) SubmitFeedback(ctx context.Context, token, analysisID string, rating int) error {
	payload := domain.Feedback{AnalysisID: analysisID, Rating: rating}
	return c.doJSON(ctx, http.MethodPost, "/feedback", token, payload, nil)
}

// News fetches the current headline list.
func (c *Client) News(ctx context.Context) ([]domain.NewsItem, error) {
	var resp struct {
		News []domain.NewsItem `json:"news"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/news", "", nil, &resp); err != nil {
		return nil, err
	}
	return resp.News, nil
}

func (c *Client) doJSON(ctx context.Context, method, path, token string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Detail string `json:"detail"`
			Error  string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := errResp.Detail
		if msg == "" {
			msg = errResp.Error
		}
		return &APIError{Status: resp.StatusCode, Detail: msg}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
