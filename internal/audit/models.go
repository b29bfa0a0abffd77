package audit

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"
)

// Record is an immutable snapshot of one API request/response exchange.
//
// Invariants:
// - Exactly one record per request handled by the intake boundary.
// - Records are never updated; they leave storage only through retention.
// - Sensitive header values are redacted before the record is built.
// - ProcessingTime is in seconds and never negative.
//
// Storage: api_logs, range-partitioned by created_at (see migrations).
type Record struct {
	ID             int64            `json:"id" db:"id"`
	Method         string           `json:"method" db:"method"`
	Endpoint       string           `json:"endpoint" db:"endpoint"`
	Request        RequestSnapshot  `json:"requestData" db:"request_data"`
	Response       ResponseSnapshot `json:"responseData" db:"response_data"`
	StatusCode     int              `json:"statusCode" db:"status_code"`
	IPAddress      string           `json:"ipAddress,omitempty" db:"ip_address"`
	UserAgent      string           `json:"userAgent,omitempty" db:"user_agent"`
	CreatedAt      time.Time        `json:"createdAt" db:"created_at"`
	ProcessingTime float64          `json:"processingTime" db:"processing_time"`
}

type RequestSnapshot struct {
	Headers map[string][]string `json:"headers"`
	Query   map[string][]string `json:"query"`
	// Body is the parsed JSON body, or a JSON string when the body was not JSON.
	Body   json.RawMessage `json:"body"`
	Client *ClientInfo     `json:"client,omitempty"`
}

type ResponseSnapshot struct {
	StatusCode int             `json:"statusCode"`
	Body       json.RawMessage `json:"body"`
}

// ClientInfo is derived from the User-Agent header.
type ClientInfo struct {
	Browser        string `json:"browser,omitempty"`
	BrowserVersion string `json:"browserVersion,omitempty"`
	OS             string `json:"os,omitempty"`
	Platform       string `json:"platform,omitempty"`
	Mobile         bool   `json:"mobile"`
	Bot            bool   `json:"bot"`
}

// Exchange is what the boundary hands to RecordExchange once a response is known.
// StartedAt is captured when the request is received.
type Exchange struct {
	Method    string
	Path      string
	Header    http.Header
	Query     url.Values
	Body      []byte
	ClientIP  string
	UserAgent string
	StartedAt time.Time

	StatusCode   int
	ResponseBody []byte
}

// Stats summarizes the recent segment.
type Stats struct {
	Since             time.Time `json:"since"`
	TotalRequests     int64     `json:"totalRequests"`
	AvgProcessingTime float64   `json:"avgProcessingTime"`
	ErrorCount        int64     `json:"errorCount"`
	SlowCount         int64     `json:"slowCount"`
	SlowThreshold     float64   `json:"slowThresholdSeconds"`
}
