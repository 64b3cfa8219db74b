package registry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/lyoneil/Botpress/pkg/domain"
	"github.com/lyoneil/Botpress/pkg/ports"
)

// DefaultRemoteTimeout bounds one call to an action server.
const DefaultRemoteTimeout = 30 * time.Second

// RemoteClient runs actions on action servers over HTTP.
type RemoteClient struct {
	client *resty.Client
	token  string
}

type RemoteOption func(*RemoteClient)

// WithTimeout overrides DefaultRemoteTimeout.
func WithTimeout(d time.Duration) RemoteOption {
	return func(c *RemoteClient) {
		c.client.SetTimeout(d)
	}
}

// WithToken authenticates calls with a bearer token shared with the action servers.
func WithToken(token string) RemoteOption {
	return func(c *RemoteClient) {
		c.token = token
	}
}

// WithRetries retries failed calls; actions must then be idempotent.
func WithRetries(n int) RemoteOption {
	return func(c *RemoteClient) {
		c.client.SetRetryCount(n)
	}
}

func NewRemoteClient(opts ...RemoteOption) *RemoteClient {
	c := &RemoteClient{
		client: resty.New().
			SetTimeout(DefaultRemoteTimeout).
			SetHeader("Content-Type", "application/json"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type runRequest struct {
	BotID         string         `json:"botId"`
	ActionName    string         `json:"actionName"`
	ActionArgs    map[string]any `json:"actionArgs"`
	IncomingEvent *domain.Event  `json:"incomingEvent"`
}

type runError struct {
	Message string `json:"message"`
}

// Run posts the call to <baseUrl>/action/run. Any non-2xx answer is an error.
func (c *RemoteClient) Run(ctx context.Context, call ports.ActionCall) error {
	if call.ActionServer == nil {
		return fmt.Errorf("action %q: no action server", call.ActionName)
	}
	url := strings.TrimRight(call.ActionServer.BaseURL, "/") + "/action/run"

	req := c.client.R().
		SetContext(ctx).
		SetBody(runRequest{
			BotID:         call.BotID,
			ActionName:    call.ActionName,
			ActionArgs:    call.ActionArgs,
			IncomingEvent: call.IncomingEvent,
		}).
		SetError(&runError{})
	if c.token != "" {
		req.SetAuthToken(c.token)
	}

	resp, err := req.Post(url)
	if err != nil {
		return fmt.Errorf("action server %s: %w", call.ActionServer.ID, err)
	}
	if resp.IsError() {
		msg := resp.Status()
		if e, ok := resp.Error().(*runError); ok && e.Message != "" {
			msg = e.Message
		}
		return fmt.Errorf("action server %s: action %q failed: %s", call.ActionServer.ID, call.ActionName, msg)
	}
	return nil
}
