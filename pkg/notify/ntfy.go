package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/pricewatch/pkg/common"
)

// Ntfy publishes push notifications to an ntfy server topic.
type Ntfy struct {
	baseURL  string
	priority string
	tags     string
	client   *http.Client
}

// NewNtfy returns an Ntfy publishing to baseURL.
func NewNtfy(baseURL string) *Ntfy {
	return &Ntfy{
		baseURL:  strings.TrimRight(baseURL, "/"),
		priority: "high",
		tags:     "zap",
		client:   common.HTTPClient(0),
	}
}

func configuredNtfy() *Ntfy {
	n := NewNtfy("")
	baseURL := lflag.String("ntfy-url", "https://ntfy.sh", "Base URL of the ntfy server")
	priority := lflag.String("ntfy-priority", n.priority, "Priority header sent with ntfy messages")
	tags := lflag.String("ntfy-tags", n.tags, "Tags header sent with ntfy messages")

	lflag.Do(func() {
		u, err := url.Parse(*baseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			panic(fmt.Sprintf("invalid ntfy-url: %q", *baseURL))
		}
		n.baseURL = strings.TrimRight(*baseURL, "/")
		n.priority = *priority
		n.tags = *tags
	})
	return n
}

// Send publishes body to the topic with the title as a header.
func (n *Ntfy) Send(ctx context.Context, topic, title, body string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/"+url.PathEscape(topic), strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create ntfy request: %w", err)
	}
	req.Header.Set("Title", title)
	if n.priority != "" {
		req.Header.Set("Priority", n.priority)
	}
	if n.tags != "" {
		req.Header.Set("Tags", n.tags)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to publish to ntfy: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("ntfy returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return nil
}
