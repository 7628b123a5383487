// Package notify forwards panel toasts to an ntfy topic.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dgnsrekt/twintype/internal/types"
)

const defaultTitle = "TwinType"

// Send sends a message to the requested endpoint using HTTP POST.
func Send(ctx context.Context, client *http.Client, endpoint, title, priority, message string) error {
	if strings.TrimSpace(endpoint) == "" {
		return errors.New("ntfy notification failed: endpoint is required")
	}
	c := client
	if c == nil {
		c = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(message))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "text/plain")
	if title != "" {
		req.Header.Set("Title", title)
	}
	if priority != "" {
		req.Header.Set("Priority", priority)
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy notification failed: status=%d", resp.StatusCode)
	}
	return nil
}

// Forwarder posts toasts of at least MinLevel to Endpoint.
type Forwarder struct {
	Client   *http.Client
	Endpoint string
	MinLevel types.Level
}

// Forward sends t unless its level is below the forwarder's minimum.
func (f *Forwarder) Forward(ctx context.Context, t types.Toast) error {
	if rank(t.Level) < rank(f.MinLevel) {
		return nil
	}
	return Send(ctx, f.Client, f.Endpoint, defaultTitle, priority(t.Level), t.Message)
}

func rank(l types.Level) int {
	switch l {
	case types.LevelSuccess:
		return 1
	case types.LevelWarning:
		return 2
	case types.LevelError:
		return 3
	}
	return 0
}

func priority(l types.Level) string {
	switch l {
	case types.LevelError:
		return "high"
	case types.LevelWarning:
		return "default"
	}
	return "low"
}
