package explain_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"marketdata/internal/explain"
)

func completionBody(t *testing.T, content string) io.ReadCloser {
	t.Helper()
	buffer := &bytes.Buffer{}
	require.NoError(t, json.NewEncoder(buffer).Encode(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}))
	return io.NopCloser(buffer)
}

func TestComplete(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller
	ctrl := gomock.NewController(t)

	// Arrange: create a mock HTTP client
	httpClient := NewMockHTTPClient(ctrl)

	// Assert: stub the Do method
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, http.MethodPost, req.Method)
			require.Equal(t, "/v1/chat/completions", req.URL.Path)
			require.Equal(t, "Bearer test-key", req.Header.Get("Authorization"))

			var payload map[string]any
			require.NoError(t, json.NewDecoder(req.Body).Decode(&payload))
			require.Equal(t, "test-model", payload["model"])
			require.Len(t, payload["messages"], 2)

			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       completionBody(t, "the answer"),
			}, nil
		}).
		Times(1)

	// Arrange: setup a new chat client
	client := explain.NewChatClient("test-key",
		explain.WithHTTPClient(httpClient),
		explain.WithModel("test-model"))

	// Act: call Complete
	content, err := client.Complete(context.Background(), "system prompt", "user prompt")
	require.NoError(t, err)

	// Assert: the assistant content is returned verbatim
	require.Equal(t, "the answer", content)
}

func TestComplete_ErrPerformingRequest(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller
	ctrl := gomock.NewController(t)

	// Arrange: create a mock HTTP client
	httpClient := NewMockHTTPClient(ctrl)

	// Assert: stub the Do method
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			return nil, fmt.Errorf("error")
		}).
		Times(1)

	// Arrange: setup a new chat client
	client := explain.NewChatClient("test-key", explain.WithHTTPClient(httpClient))

	// Act: call Complete
	_, err := client.Complete(context.Background(), "system", "user")
	require.Error(t, err)
}

func TestComplete_ErrUnexpectedStatusCode(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller
	ctrl := gomock.NewController(t)

	// Arrange: create a mock HTTP client
	httpClient := NewMockHTTPClient(ctrl)

	// Assert: stub the Do method
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusInternalServerError,
				Body:       io.NopCloser(bytes.NewReader(nil)),
			}, nil
		}).
		Times(1)

	// Arrange: setup a new chat client
	client := explain.NewChatClient("test-key", explain.WithHTTPClient(httpClient))

	// Act: call Complete
	_, err := client.Complete(context.Background(), "system", "user")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unexpected status code")
}

func TestComplete_ErrEmptyChoices(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller
	ctrl := gomock.NewController(t)

	// Arrange: create a mock HTTP client
	httpClient := NewMockHTTPClient(ctrl)

	// Assert: stub the Do method
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(bytes.NewBufferString(`{"choices":[]}`)),
			}, nil
		}).
		Times(1)

	// Arrange: setup a new chat client
	client := explain.NewChatClient("test-key", explain.WithHTTPClient(httpClient))

	// Act: call Complete
	_, err := client.Complete(context.Background(), "system", "user")
	require.Error(t, err)
}
