package reminder

import "time"

type QuietHoursResponse struct {
	Start    int       `json:"start"`
	End      int       `json:"end"`
	QuietNow bool      `json:"quiet_now"`
	At       time.Time `json:"at"`
}

type BriefingRequest struct {
	Key     string       `json:"key"`
	Title   string       `json:"title"`
	Body    string       `json:"body"`
	Weekly  bool         `json:"weekly"`
	Hour    int          `json:"hour"`
	Minute  int          `json:"minute"`
	Weekday time.Weekday `json:"weekday"`
}
