package explain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const (
	defaultBaseURL = "https://api.openai.com"
	defaultModel   = "gpt-4o-mini"
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=explain_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ChatClient talks to an OpenAI-compatible chat-completions endpoint.
type ChatClient struct {
	// baseURL is the base URL for the API.
	baseURL string
	// apiKey authenticates every request.
	apiKey string
	// model is the completion model to request.
	model string
	// httpClient is the HTTP httpClient.
	httpClient HTTPClient
}

// ChatClientOption is a configuration option for the chat client.
type ChatClientOption func(*ChatClient)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) ChatClientOption {
	return func(c *ChatClient) {
		c.baseURL = baseURL
	}
}

// WithModel sets the completion model.
func WithModel(model string) ChatClientOption {
	return func(c *ChatClient) {
		c.model = model
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) ChatClientOption {
	return func(c *ChatClient) {
		c.httpClient = httpClient
	}
}

// NewChatClient creates a new chat-completions client.
func NewChatClient(apiKey string, options ...ChatClientOption) *ChatClient {
	var chatClient = &ChatClient{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		model:      defaultModel,
		httpClient: http.DefaultClient,
	}
	for _, option := range options {
		option(chatClient)
	}
	return chatClient
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends a system and user message and returns the assistant's
// raw text content.
func (c *ChatClient) Complete(ctx context.Context, system, user string) (string, error) {
	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.7,
	}

	body := &bytes.Buffer{}
	if err := json.NewEncoder(body).Encode(payload); err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/chat/completions", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		break

	case http.StatusUnauthorized, http.StatusForbidden:
		return "", fmt.Errorf("unauthorized")

	case http.StatusTooManyRequests:
		return "", fmt.Errorf("rate limited")

	default:
		return "", fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}

	var decoded chatResponse
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decoding completion response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}
	return decoded.Choices[0].Message.Content, nil
}
