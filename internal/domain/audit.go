package domain

import "time"

// ItemType distinguishes the two catalog families an audit can target.
type ItemType string

const (
	ItemMold   ItemType = "MOLD"
	ItemCutter ItemType = "CUTTER"
)

// Valid reports whether t is a known item type.
func (t ItemType) Valid() bool {
	return t == ItemMold || t == ItemCutter
}

// AuditType tags whether an audit stood alone or rode along with a relocation.
type AuditType string

const (
	AuditOnly           AuditType = "AUDIT_ONLY"
	AuditWithRelocation AuditType = "AUDIT_WITH_RELOCATION"
)

// AuditRecord is the write payload confirming a physical item was observed.
// Exactly one of MoldID/CutterID is populated based on ItemType. Immutable
// once constructed; submitted verbatim to the system of record.
type AuditRecord struct {
	Status      string    `json:"status"`
	ItemType    ItemType  `json:"itemType"`
	MoldID      string    `json:"moldId,omitempty"`
	CutterID    string    `json:"cutterId,omitempty"`
	EmployeeID  string    `json:"employeeId"`
	Timestamp   time.Time `json:"timestamp"`
	AuditDate   string    `json:"auditDate"` // calendar date, distinct from Timestamp
	AuditType   AuditType `json:"auditType"`
	Notes       string    `json:"notes,omitempty"`
	SessionID   string    `json:"sessionId"`
	SessionName string    `json:"sessionName"`
	SessionMode string    `json:"sessionMode"`
}

// StatusAudit is the fixed status marker carried by every audit record.
const StatusAudit = "AUDIT"

// NewAuditRecord builds an audit payload, routing the item id into the field
// matching its type.
func NewAuditRecord(itemID string, itemType ItemType, employeeID string, at time.Time, auditType AuditType) AuditRecord {
	rec := AuditRecord{
		Status:     StatusAudit,
		ItemType:   itemType,
		EmployeeID: employeeID,
		Timestamp:  at,
		AuditDate:  at.Format("2006-01-02"),
		AuditType:  auditType,
	}
	if itemType == ItemCutter {
		rec.CutterID = itemID
	} else {
		rec.MoldID = itemID
	}
	return rec
}

// ItemID returns whichever of MoldID/CutterID is populated.
func (r AuditRecord) ItemID() string {
	if r.ItemType == ItemCutter {
		return r.CutterID
	}
	return r.MoldID
}

// LocationChangeRecord captures a storage location move. Always paired 1:1
// with an AuditRecord when produced by the relocate transaction.
type LocationChangeRecord struct {
	ItemID         string    `json:"itemId"`
	ItemType       ItemType  `json:"itemType"`
	OldRackLayerID string    `json:"oldRackLayerId,omitempty"`
	NewRackLayerID string    `json:"newRackLayerId"`
	EmployeeID     string    `json:"employeeId"`
	Timestamp      time.Time `json:"timestamp"`
	Notes          string    `json:"notes,omitempty"`
	SessionID      string    `json:"sessionId"`
}

// BatchPayload groups audits and location changes into one submission so the
// pairing survives replay: a location change must never land without its
// audit, or vice versa.
type BatchPayload struct {
	Items           []AuditRecord          `json:"items"`
	LocationChanges []LocationChangeRecord `json:"locationChanges,omitempty"`
}
