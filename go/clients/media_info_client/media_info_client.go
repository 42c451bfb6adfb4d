package media_info_client

import (
	"github.com/mcdev12/watchroom/go/clients"
)

type MediaInfoClient struct {
	*clients.BaseClient
}

// NewMediaInfoClient creates a client for the metadata service at baseURL.
// An empty apiKey sends no key header.
func NewMediaInfoClient(baseURL, apiKey string) *MediaInfoClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := &MediaInfoClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}

	if apiKey != "" {
		client.SetHeader(APIKeyHeader, apiKey)
	}
	client.SetHeader("Accept", "application/json")

	return client
}
