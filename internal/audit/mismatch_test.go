package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stocktake/internal/domain"
	"stocktake/internal/selection"
)

func TestCollectMismatches(t *testing.T) {
	t.Run("flags only items at another location", func(t *testing.T) {
		items := []selection.Item{
			{ID: "M1", Type: domain.ItemMold, Snapshot: selection.Snapshot{RackLayerID: "5"}},
			{ID: "C2", Type: domain.ItemCutter, Snapshot: selection.Snapshot{RackLayerID: "13"}},
		}

		mismatches, unknown := CollectMismatches(items, "1-3")

		require.Len(t, mismatches, 1)
		assert.Equal(t, "M1", mismatches[0].Item.ID)
		assert.Equal(t, "13", mismatches[0].Target)
		assert.Equal(t, "5", mismatches[0].Candidate)
		assert.Equal(t, 0, unknown)
	})

	t.Run("unresolvable locations count as unknown", func(t *testing.T) {
		items := []selection.Item{
			{ID: "M1", Type: domain.ItemMold, Snapshot: selection.Snapshot{RackLayerID: ""}},
			{ID: "M2", Type: domain.ItemMold, Snapshot: selection.Snapshot{RackLayerID: "n/a"}},
			{ID: "M3", Type: domain.ItemMold, Snapshot: selection.Snapshot{RackLayerID: "7"}},
		}

		mismatches, unknown := CollectMismatches(items, "7")

		assert.Empty(t, mismatches)
		assert.Equal(t, 2, unknown)
	})

	t.Run("empty target never mismatches", func(t *testing.T) {
		items := []selection.Item{
			{ID: "M1", Type: domain.ItemMold, Snapshot: selection.Snapshot{RackLayerID: "5"}},
		}

		mismatches, unknown := CollectMismatches(items, "")

		assert.Empty(t, mismatches)
		assert.Equal(t, 0, unknown)
	})
}
