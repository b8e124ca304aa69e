package domain

import "time"

// CallbackLog is the record of one webhook HTTP attempt.
type CallbackLog struct {
	ID            int64
	TargetURL     string
	Payload       string // JSON object of the form fields sent
	StatusCode    *int   // nil when no HTTP response was received
	ResponseBody  string
	AttemptNumber int
	CreatedAt     time.Time
}
