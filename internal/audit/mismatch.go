package audit

import (
	"stocktake/internal/racklayer"
	"stocktake/internal/selection"
)

// Mismatch flags one item whose snapshot location disagrees with the target.
type Mismatch struct {
	Item      selection.Item `json:"item"`
	Target    string         `json:"target"`
	Candidate string         `json:"candidate"`
}

// CollectMismatches compares each item's snapshot location against the
// normalized target. Items with no resolvable location count as unknown and
// are never classified as mismatched.
func CollectMismatches(items []selection.Item, targetRackLayerID string) ([]Mismatch, int) {
	var mismatches []Mismatch
	unknown := 0

	for _, item := range items {
		if racklayer.Normalize(item.Snapshot.RackLayerID) == "" {
			unknown++
			continue
		}
		m := racklayer.Compare(targetRackLayerID, item.Snapshot.RackLayerID)
		if m.Mismatch {
			mismatches = append(mismatches, Mismatch{
				Item:      item,
				Target:    m.Target,
				Candidate: m.Candidate,
			})
		}
	}
	return mismatches, unknown
}
