package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/framecut/timeline/internal/api"
)

// Watch follows a project's revision feed and calls onRevision for every
// event, starting with the revision at connect time. It blocks until ctx is
// cancelled (returning nil) or the connection fails.
func (c *Client) Watch(ctx context.Context, projectID string, onRevision func(int64)) error {
	wsURL, err := c.feedURL(projectID)
	if err != nil {
		return err
	}

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial feed: HTTP %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("dial feed: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	log := c.logger.With("project_id", projectID)
	log.Debug("watching revision feed")

	for {
		var ev api.FeedEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read feed: %w", err)
		}
		onRevision(ev.Revision)
	}
}

func (c *Client) feedURL(projectID string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/projects/" + projectID + "/feed"
	return u.String(), nil
}
