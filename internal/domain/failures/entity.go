package failures

import "time"

// Failure is a persisted record of a pipeline run that stopped at some stage.
type Failure struct {
	ID          int64     `json:"id"`
	Stage       string    `json:"stage"` // extract | classify | analyze | persist
	Source      string    `json:"source"`
	UserID      string    `json:"user_id,omitempty"`
	Message     string    `json:"message"`
	DetailsJSON string    `json:"details_json,omitempty"` // raw JSON string
	CreatedAt   time.Time `json:"created_at"`
}
