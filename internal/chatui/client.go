// Package chatui is the terminal front-end of the chat API.
package chatui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/mohammad-safakhou/headliner/models"
)

// Reply is the server's answer to one chat message.
type Reply struct {
	Reply     string `json:"reply"`
	RunID     string `json:"run_id"`
	State     string `json:"state"`
	Steps     int    `json:"steps"`
	SessionID string `json:"session_id"`
}

// Client talks to a running headliner server.
type Client struct {
	BaseURL   string
	SessionID string
	HTTP      *http.Client
}

func NewClient(baseURL, sessionID string) *Client {
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), SessionID: sessionID, HTTP: http.DefaultClient}
}

// Send posts message and waits for the agent's reply.
func (c *Client) Send(ctx context.Context, message string) (Reply, error) {
	body, err := json.Marshal(map[string]string{"message": message, "session_id": c.SessionID})
	if err != nil {
		return Reply{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return Reply{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	var out Reply
	if err := c.do(req, &out); err != nil {
		return Reply{}, err
	}
	return out, nil
}

// History loads the stored conversation.
func (c *Client) History(ctx context.Context) ([]models.Message, error) {
	u := c.BaseURL + "/api/chat/history"
	if c.SessionID != "" {
		u += "?session_id=" + url.QueryEscape(c.SessionID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Messages []models.Message `json:"messages"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (c *Client) do(req *http.Request, v interface{}) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, e.Error)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return json.Unmarshal(raw, v)
}
