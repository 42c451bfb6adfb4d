package media_info_client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mcdev12/watchroom/go/clients"
)

// ErrNotFound is returned when the service does not know the video id.
var ErrNotFound = errors.New("video not found")

// VideoInfo is the metadata the room needs before loading a video.
type VideoInfo struct {
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	LiveNow bool    `json:"liveNow"`
}

// GetVideo fetches the metadata for a single video id.
func (c *MediaInfoClient) GetVideo(ctx context.Context, id string) (*VideoInfo, error) {
	if id == "" {
		return nil, fmt.Errorf("video id is required")
	}

	endpoint := fmt.Sprintf(VideoEndpoint, url.PathEscape(id))
	body, err := c.Get(ctx, endpoint)
	if err != nil {
		var statusErr *clients.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("video %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch video %s: %w", id, err)
	}

	var info VideoInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to unmarshal video info: %w", err)
	}
	// Live streams often report no dimensions. The room falls back to the
	// default aspect for unusable ones, so they are passed through as is.
	return &info, nil
}
