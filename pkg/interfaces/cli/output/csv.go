package output

import (
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/vsinha/relief/pkg/application/dto"
	"github.com/vsinha/relief/pkg/domain/entities"
)

// generateCSVOutput writes tabular results as CSV with a header row
func generateCSVOutput(result any, config Config) error {
	var records [][]string

	switch r := result.(type) {
	case []entities.Recommendation:
		records = append(records, []string{
			"request_id", "shelter_id", "resource_id", "priority", "outstanding",
			"recommended_quantity", "shortfall", "urgency_score", "variant", "reason",
		})
		for _, rec := range r {
			records = append(records, []string{
				string(rec.Request.ID),
				string(rec.Request.ShelterID),
				string(rec.Request.ResourceID),
				strconv.Itoa(int(rec.Request.Priority)),
				formatQty(rec.Request.Outstanding()),
				formatQty(rec.RecommendedQuantity),
				formatQty(rec.Shortfall),
				rec.UrgencyScore.String(),
				string(rec.Variant),
				rec.Reason,
			})
		}
	case []*entities.Resource:
		records = append(records, []string{
			"id", "disaster_id", "name", "type", "unit", "stock_level", "minimum_threshold", "critical",
		})
		for _, res := range r {
			records = append(records, []string{
				string(res.ID),
				string(res.DisasterID),
				res.Name,
				res.Type.String(),
				res.Unit,
				formatQty(res.StockLevel),
				formatQty(res.MinimumThreshold),
				strconv.FormatBool(res.IsCritical()),
			})
		}
	case []dto.ShelterCapacity:
		records = append(records, []string{
			"id", "disaster_id", "name", "capacity", "current_occupancy", "utilization", "status",
		})
		for _, sc := range r {
			records = append(records, []string{
				string(sc.Shelter.ID),
				string(sc.Shelter.DisasterID),
				sc.Shelter.Name,
				formatQty(sc.Shelter.Capacity),
				formatQty(sc.Shelter.CurrentOccupancy),
				sc.Utilization.String(),
				sc.Shelter.Status.String(),
			})
		}
	case []entities.RequestView:
		records = append(records, []string{
			"id", "shelter_id", "resource_id", "quantity", "fulfilled", "priority", "status", "requested_at",
		})
		for _, v := range r {
			records = append(records, []string{
				string(v.Request.ID),
				string(v.Request.ShelterID),
				string(v.Request.ResourceID),
				formatQty(v.Request.QuantityRequested),
				formatQty(v.Request.QuantityFulfilled),
				strconv.Itoa(int(v.Request.Priority)),
				v.Request.Status.String(),
				v.Request.RequestedAt.UTC().Format("2006-01-02T15:04:05Z"),
			})
		}
	default:
		return fmt.Errorf("no CSV rendering for %T", result)
	}

	writer := csv.NewWriter(config.Writer)
	if err := writer.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}

func formatQty(q entities.Quantity) string {
	return strconv.FormatInt(int64(q), 10)
}
