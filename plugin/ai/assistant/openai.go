package assistant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"
)

// assistantVersion selects the Assistants API beta; go-openai sends it as the OpenAI-Beta header.
const assistantVersion = "v2"

// KeySource resolves the upstream API key for each request.
type KeySource interface {
	APIKey(ctx context.Context) (string, error)
}

// KeySourceFunc adapts a function to KeySource.
type KeySourceFunc func(ctx context.Context) (string, error)

func (f KeySourceFunc) APIKey(ctx context.Context) (string, error) {
	return f(ctx)
}

// StaticKey is a fixed API key.
type StaticKey string

func (k StaticKey) APIKey(_ context.Context) (string, error) {
	return string(k), nil
}

// Config holds the upstream client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// HTTPClient overrides the transport; Timeout is ignored when set.
	HTTPClient *http.Client
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL: "https://api.openai.com/v1",
		Timeout: 30 * time.Second,
	}
}

// Client talks to the Assistants API through go-openai.
// The underlying client is rebuilt whenever the resolved key changes.
type Client struct {
	config Config
	keys   KeySource

	mu     sync.Mutex
	key    string
	client *openai.Client
}

// NewClient creates a new upstream client.
func NewClient(keys KeySource, cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultConfig().BaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Client{
		config: cfg,
		keys:   keys,
	}
}

func (c *Client) upstream(ctx context.Context) (*openai.Client, error) {
	key, err := c.keys.APIKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve api key: %w", err)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrNoAPIKey
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil && c.key == key {
		return c.client, nil
	}

	clientConfig := openai.DefaultConfig(key)
	clientConfig.BaseURL = strings.TrimRight(c.config.BaseURL, "/")
	clientConfig.AssistantVersion = assistantVersion
	if c.config.HTTPClient != nil {
		clientConfig.HTTPClient = c.config.HTTPClient
	} else {
		clientConfig.HTTPClient = &http.Client{Timeout: c.config.Timeout}
	}

	c.key = key
	c.client = openai.NewClientWithConfig(clientConfig)
	return c.client, nil
}

// CreateThread creates an empty thread.
func (c *Client) CreateThread(ctx context.Context) (openai.Thread, error) {
	client, err := c.upstream(ctx)
	if err != nil {
		return openai.Thread{}, err
	}
	return client.CreateThread(ctx, openai.ThreadRequest{})
}

// CreateMessage appends a user message to a thread.
func (c *Client) CreateMessage(ctx context.Context, threadID, content string) (openai.Message, error) {
	client, err := c.upstream(ctx)
	if err != nil {
		return openai.Message{}, err
	}
	return client.CreateMessage(ctx, threadID, openai.MessageRequest{
		Role:    string(openai.ThreadMessageRoleUser),
		Content: content,
	})
}

// ListMessages lists thread messages, most recent first.
func (c *Client) ListMessages(ctx context.Context, threadID string) (openai.MessagesList, error) {
	client, err := c.upstream(ctx)
	if err != nil {
		return openai.MessagesList{}, err
	}
	order := "desc"
	return client.ListMessage(ctx, threadID, nil, &order, nil, nil, nil)
}

// CreateRun starts an assistant run on a thread.
func (c *Client) CreateRun(ctx context.Context, threadID, assistantID string) (openai.Run, error) {
	client, err := c.upstream(ctx)
	if err != nil {
		return openai.Run{}, err
	}
	return client.CreateRun(ctx, threadID, openai.RunRequest{
		AssistantID: assistantID,
	})
}

// RetrieveRun fetches a run.
func (c *Client) RetrieveRun(ctx context.Context, threadID, runID string) (openai.Run, error) {
	client, err := c.upstream(ctx)
	if err != nil {
		return openai.Run{}, err
	}
	return client.RetrieveRun(ctx, threadID, runID)
}

// Gateway returns the turn-facing view of the client.
func (c *Client) Gateway() Gateway {
	return &openAIGateway{client: c}
}

type openAIGateway struct {
	client *Client
}

func (g *openAIGateway) CreateThread(ctx context.Context) (string, error) {
	thread, err := g.client.CreateThread(ctx)
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	if thread.ID == "" {
		return "", errors.New("create thread: empty thread id")
	}
	return thread.ID, nil
}

func (g *openAIGateway) AppendMessage(ctx context.Context, threadID, content string) error {
	if _, err := g.client.CreateMessage(ctx, threadID, content); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (g *openAIGateway) StartRun(ctx context.Context, threadID, assistantID string) (Run, error) {
	run, err := g.client.CreateRun(ctx, threadID, assistantID)
	if err != nil {
		return Run{}, fmt.Errorf("start run: %w", err)
	}
	if run.ID == "" {
		return Run{}, errors.New("start run: empty run id")
	}
	return convertRun(run, threadID), nil
}

func (g *openAIGateway) GetRun(ctx context.Context, threadID, runID string) (Run, error) {
	run, err := g.client.RetrieveRun(ctx, threadID, runID)
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	return convertRun(run, threadID), nil
}

func (g *openAIGateway) ListMessages(ctx context.Context, threadID string) ([]Message, error) {
	list, err := g.client.ListMessages(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	messages := make([]Message, 0, len(list.Messages))
	for _, m := range list.Messages {
		msg := Message{ID: m.ID, Role: Role(m.Role)}
		for _, content := range m.Content {
			if content.Text != nil {
				msg.Texts = append(msg.Texts, content.Text.Value)
			}
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func convertRun(run openai.Run, threadID string) Run {
	result := Run{
		ID:       run.ID,
		ThreadID: run.ThreadID,
		Status:   RunStatus(run.Status),
	}
	if result.ThreadID == "" {
		result.ThreadID = threadID
	}
	if run.LastError != nil {
		result.LastError = run.LastError.Message
	}
	return result
}

// UpstreamError extracts the HTTP status and message of a failed upstream call.
// ok is false when the failure never reached the upstream (transport, credential).
func UpstreamError(err error) (status int, message string, ok bool) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode, apiErr.Message, apiErr.HTTPStatusCode != 0
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode, "", reqErr.HTTPStatusCode != 0
	}
	return 0, "", false
}
