package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// FriendDirectory is the friend-graph collaborator. The core only consumes
// remark names to override how a private conversation's peer is displayed.
type FriendDirectory interface {
	Remark(ctx context.Context, userID, otherID string) (string, error)
}

// HTTPFriendDirectory calls the friend service over its internal REST API.
type HTTPFriendDirectory struct {
	baseURL string
	client  *http.Client
}

// NewFriendDirectory returns an HTTP-backed directory, or a noop one when no
// base URL is configured.
func NewFriendDirectory(baseURL string) FriendDirectory {
	if baseURL == "" {
		return noopFriendDirectory{}
	}
	return &HTTPFriendDirectory{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 3 * time.Second},
	}
}

// Remark returns the remark userID has set for otherID, or "" when none.
func (d *HTTPFriendDirectory) Remark(ctx context.Context, userID, otherID string) (string, error) {
	endpoint := fmt.Sprintf("%s/internal/friends/%s/remarks/%s",
		d.baseURL, url.PathEscape(userID), url.PathEscape(otherID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("friend service returned %d", resp.StatusCode)
	}

	var body struct {
		Remark string `json:"remark"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.Remark, nil
}

type noopFriendDirectory struct{}

func (noopFriendDirectory) Remark(ctx context.Context, userID, otherID string) (string, error) {
	return "", nil
}
