package videosource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Video is one recently published item on a creator's channel. PublishedAtMs
// marks the VOD publish moment; for a finished stream that is the stream end.
type Video struct {
	ExternalID      string
	Title           string
	PublishedAtMs   int64
	DurationSeconds int64
}

// Source lists a channel's most recently published videos, newest first.
type Source interface {
	ListRecent(ctx context.Context, channelID string, page, size int) ([]Video, error)
}

var errMissingBaseURL = errors.New("videosource: base URL is required")

// ClientConfig configures the HTTP client against the video aggregation API.
type ClientConfig struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client fetches recent-video listings over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient validates the configuration and returns a Client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errMissingBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{baseURL: cfg.BaseURL, httpClient: httpClient, logger: logger}, nil
}

type videoPayload struct {
	ExternalVideoID string `json:"external_video_id"`
	Title           string `json:"title"`
	PublishedAtMs   int64  `json:"published_at_ms"`
	DurationSeconds int64  `json:"duration_s"`
}

// ListRecent fetches one page of a channel's recent videos.
func (c *Client) ListRecent(ctx context.Context, channelID string, page, size int) ([]Video, error) {
	endpoint := fmt.Sprintf("%s/channels/%s/videos", c.baseURL, url.PathEscape(channelID))
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	query := request.URL.Query()
	query.Set("page", strconv.Itoa(page))
	query.Set("size", strconv.Itoa(size))
	request.URL.RawQuery = query.Encode()

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("videosource: unexpected status %d for channel %s", response.StatusCode, channelID)
	}

	var payload []videoPayload
	if err := json.NewDecoder(response.Body).Decode(&payload); err != nil {
		return nil, err
	}

	videos := make([]Video, 0, len(payload))
	for _, item := range payload {
		videos = append(videos, Video{
			ExternalID:      item.ExternalVideoID,
			Title:           item.Title,
			PublishedAtMs:   item.PublishedAtMs,
			DurationSeconds: item.DurationSeconds,
		})
	}
	return videos, nil
}
