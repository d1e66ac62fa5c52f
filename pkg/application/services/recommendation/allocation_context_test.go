package recommendation

import (
	"testing"

	"github.com/vsinha/relief/pkg/domain/entities"
)

func TestAllocationMap_TakeBoundedByRemaining(t *testing.T) {
	am := NewAllocationMap()
	am.Track(&entities.Resource{ID: "R", StockLevel: 15})

	if got := am.Take("R", 10); got != 10 {
		t.Errorf("Expected to take 10, got %d", got)
	}
	if got := am.Take("R", 10); got != 5 {
		t.Errorf("Expected to take 5, got %d", got)
	}
	if got := am.Take("R", 10); got != 0 {
		t.Errorf("Expected to take 0, got %d", got)
	}

	ctx := am.Get("R")
	if ctx.AllocatedQty != 15 || ctx.Remaining != 0 {
		t.Errorf("Expected allocated=15 remaining=0, got allocated=%d remaining=%d", ctx.AllocatedQty, ctx.Remaining)
	}
	if ratio := am.GetCoverageRatio(); ratio != 1.0 {
		t.Errorf("Expected coverage 1.0, got %f", ratio)
	}
}

func TestAllocationMap_TrackKeepsExistingCounter(t *testing.T) {
	am := NewAllocationMap()
	am.Track(&entities.Resource{ID: "R", StockLevel: 8})
	am.Take("R", 3)
	am.Track(&entities.Resource{ID: "R", StockLevel: 8})

	if remaining := am.Get("R").Remaining; remaining != 5 {
		t.Errorf("Expected remaining 5, got %d", remaining)
	}
}

func TestAllocationMap_UntrackedAndNonPositive(t *testing.T) {
	am := NewAllocationMap()
	if got := am.Take("missing", 4); got != 0 {
		t.Errorf("Expected 0 from untracked resource, got %d", got)
	}

	am.Track(&entities.Resource{ID: "R", StockLevel: 5})
	if got := am.Take("R", 0); got != 0 {
		t.Errorf("Expected 0 for zero request, got %d", got)
	}
	if am.GetTotalAllocated() != 0 {
		t.Errorf("Expected nothing allocated, got %d", am.GetTotalAllocated())
	}
}

func TestAllocationMap_String(t *testing.T) {
	am := NewAllocationMap()
	if am.String() != "AllocationMap{empty}" {
		t.Errorf("Unexpected empty string: %s", am.String())
	}

	am.Track(&entities.Resource{ID: "B", StockLevel: 2})
	am.Track(&entities.Resource{ID: "A", StockLevel: 1})
	want := "AllocationMap{2 entries:\n  A: snapshot=1, allocated=0, remaining=1\n  B: snapshot=2, allocated=0, remaining=2\n}"
	if am.String() != want {
		t.Errorf("Expected %q, got %q", want, am.String())
	}
}
