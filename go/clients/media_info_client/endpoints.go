package media_info_client

const (
	// Base URL
	DefaultBaseURL = "https://api.desk.link:1776"

	// API Endpoints
	VideoEndpoint = "/v1/youtube/%s"

	// Headers
	APIKeyHeader = "X-API-Key"
)
