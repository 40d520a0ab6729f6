package session

import "time"

// Mode selects how an audit session targets items.
type Mode string

const (
	ModeTargetedByLocation Mode = "TARGETED_BY_LOCATION"
	ModeTargetedByList     Mode = "TARGETED_BY_LIST"
	ModeInstant            Mode = "INSTANT"
)

// Valid reports whether m is a known session mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeTargetedByLocation, ModeTargetedByList, ModeInstant:
		return true
	}
	return false
}

// Counters accumulate write outcomes for one session. They are bumped only by
// the write pipeline, never by UI actions.
type Counters struct {
	Audited   int `json:"audited"`
	Relocated int `json:"relocated"`
	Failed    int `json:"failed"`
}

// Session is one bounded period of audit activity attributed to an operator.
// Exactly one session is active process-wide at a time.
type Session struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Mode              Mode       `json:"mode"`
	OperatorID        string     `json:"operatorId"`
	OperatorName      string     `json:"operatorName,omitempty"`
	Note              string     `json:"note,omitempty"`
	TargetRackLayerID string     `json:"targetRackLayerId,omitempty"` // normalized
	CompareEnabled    bool       `json:"compareEnabled"`
	StartedAt         time.Time  `json:"startedAt"`
	EndedAt           *time.Time `json:"endedAt,omitempty"`
	EndReason         string     `json:"endReason,omitempty"`
	Counters          Counters   `json:"counters"`
}

// Operator is the convenience record remembered across sessions.
type Operator struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}
