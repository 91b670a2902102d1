// Package entity defines the JSON shapes returned by the usage API.
package entity

// Status values of UserTraffic.
const (
	StatusActive  = "active"
	StatusExpired = "expired"
)

// UserTraffic is the derived traffic view of one user. ExpiryTime is omitted when the
// user never expires.
type UserTraffic struct {
	Username   string  `json:"username"`
	UUID       string  `json:"uuid"`
	Upload     int64   `json:"upload"`
	Download   int64   `json:"download"`
	Total      int64   `json:"total"`
	UploadGB   float64 `json:"upload_gb"`
	DownloadGB float64 `json:"download_gb"`
	TotalGB    float64 `json:"total_gb"`
	Inbound    string  `json:"inbound"`
	ExpiryTime string  `json:"expiry_time,omitempty"`
	Status     string  `json:"status"`
}

// ErrorMsg is the two-field body of every error response.
type ErrorMsg struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// SpeedTestResult is returned by the speed-test endpoint. Note is set whenever the
// numbers are not a real measurement.
type SpeedTestResult struct {
	Download float64 `json:"download"` // Mbps
	Upload   float64 `json:"upload"`   // Mbps
	Ping     float64 `json:"ping"`     // ms
	Success  bool    `json:"success"`
	Note     string  `json:"note,omitempty"`
}

// AdminContact is the body of the admin-contact endpoint.
type AdminContact struct {
	TelegramURL string `json:"telegram_url"`
}
