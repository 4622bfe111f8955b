package audit

import (
	"encoding/json"
	"time"
)

// maxBody caps the request body kept in an entry.
const maxBody = 64 << 10

// Entry is one handled HTTP request. UserId is 0 for anonymous or rejected callers.
type Entry struct {
	Id          int64
	Method      string
	Path        string
	UserId      int
	Status      int
	IpAddress   string
	RequestBody json.RawMessage
	Duration    time.Duration
	CreatedAt   time.Time
}

// Body returns the part of a request body worth keeping: valid JSON up to maxBody,
// nil otherwise.
func Body(data []byte) json.RawMessage {
	if len(data) == 0 || len(data) > maxBody || !json.Valid(data) {
		return nil
	}
	return json.RawMessage(data)
}
