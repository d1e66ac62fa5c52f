package recommendation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vsinha/relief/pkg/domain/entities"
)

// AllocationContext tracks what the greedy pass has promised from one resource
type AllocationContext struct {
	SnapshotStock entities.Quantity
	AllocatedQty  entities.Quantity
	Remaining     entities.Quantity
}

// AllocationMap holds the running remaining-stock counter per resource. It is
// advisory bookkeeping for one Generate call and reserves nothing in the store.
type AllocationMap map[entities.ResourceID]*AllocationContext

// NewAllocationMap creates a new empty allocation map
func NewAllocationMap() AllocationMap {
	return make(AllocationMap)
}

// Track starts tracking a resource at its snapshot stock level. Tracking an
// already tracked resource keeps the existing counter.
func (am AllocationMap) Track(resource *entities.Resource) *AllocationContext {
	if ctx, ok := am[resource.ID]; ok {
		return ctx
	}
	stock := resource.StockLevel
	if stock < 0 {
		stock = 0
	}
	ctx := &AllocationContext{SnapshotStock: stock, Remaining: stock}
	am[resource.ID] = ctx
	return ctx
}

// Get retrieves the allocation context for a resource
func (am AllocationMap) Get(resourceID entities.ResourceID) *AllocationContext {
	return am[resourceID]
}

// Take allocates up to want units from the resource and returns the amount taken
func (am AllocationMap) Take(resourceID entities.ResourceID, want entities.Quantity) entities.Quantity {
	ctx, ok := am[resourceID]
	if !ok || want <= 0 {
		return 0
	}
	taken := entities.MinQuantity(want, ctx.Remaining)
	ctx.AllocatedQty += taken
	ctx.Remaining -= taken
	return taken
}

// GetTotalAllocated returns the total allocated quantity across all resources
func (am AllocationMap) GetTotalAllocated() entities.Quantity {
	var total entities.Quantity
	for _, ctx := range am {
		total += ctx.AllocatedQty
	}
	return total
}

// GetCoverageRatio returns allocated over snapshot stock (0.0 to 1.0)
func (am AllocationMap) GetCoverageRatio() float64 {
	var snapshot entities.Quantity
	for _, ctx := range am {
		snapshot += ctx.SnapshotStock
	}
	if snapshot == 0 {
		return 0.0
	}
	return float64(am.GetTotalAllocated()) / float64(snapshot)
}

// String returns a string representation of the allocation map for debugging
func (am AllocationMap) String() string {
	if len(am) == 0 {
		return "AllocationMap{empty}"
	}

	ids := make([]string, 0, len(am))
	for id := range am {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)

	var b strings.Builder
	fmt.Fprintf(&b, "AllocationMap{%d entries:\n", len(am))
	for _, id := range ids {
		ctx := am[entities.ResourceID(id)]
		fmt.Fprintf(&b, "  %s: snapshot=%d, allocated=%d, remaining=%d\n",
			id, ctx.SnapshotStock, ctx.AllocatedQty, ctx.Remaining)
	}
	b.WriteString("}")
	return b.String()
}
