package output

import (
	"fmt"
	"io"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/vsinha/relief/pkg/application/dto"
	"github.com/vsinha/relief/pkg/domain/entities"
)

var hundred = decimal.NewFromInt(100)

// generateTextOutput creates human-readable text output
func generateTextOutput(result any, config Config) error {
	w := config.Writer
	switch r := result.(type) {
	case []entities.Recommendation:
		writeRecommendations(w, r, config.Verbose)
	case []*entities.Resource:
		writeResources(w, r)
	case []dto.ShelterCapacity:
		writeShelterCapacity(w, r)
	case []*entities.Shelter:
		capacities := make([]dto.ShelterCapacity, len(r))
		for i, sh := range r {
			capacities[i] = dto.NewShelterCapacity(sh)
		}
		writeShelterCapacity(w, capacities)
	case []entities.RequestView:
		writePending(w, r)
	case *dto.DisasterSummary:
		writeSummary(w, r)
	case dto.ActionResult:
		writeAction(w, r)
	default:
		return fmt.Errorf("no text rendering for %T", result)
	}
	return nil
}

func writeRecommendations(w io.Writer, recs []entities.Recommendation, verbose bool) {
	fmt.Fprintf(w, "📋 Allocation Recommendations: %d\n", len(recs))
	if len(recs) == 0 {
		return
	}
	fmt.Fprintf(w, "%-38s %-15s %-12s %-9s %-11s %-9s %-8s %-9s\n",
		"Request", "Shelter", "Resource", "Priority", "Recommend", "Shortfall", "Urgency", "Variant")
	fmt.Fprintf(w, "%-38s %-15s %-12s %-9s %-11s %-9s %-8s %-9s\n",
		"--------------------------------------", "---------------", "------------", "---------",
		"-----------", "---------", "--------", "---------")

	for _, rec := range recs {
		fmt.Fprintf(w, "%-38s %-15s %-12s %-9s %-11d %-9d %-8s %-9s\n",
			rec.Request.ID,
			rec.Request.ShelterID,
			rec.Request.ResourceID,
			rec.Request.Priority,
			rec.RecommendedQuantity,
			rec.Shortfall,
			rec.UrgencyScore.StringFixed(2),
			rec.Variant)
		if verbose {
			fmt.Fprintf(w, "    %s\n", rec.Reason)
		}
	}
}

func writeResources(w io.Writer, resources []*entities.Resource) {
	fmt.Fprintf(w, "📦 Resources: %d\n", len(resources))
	if len(resources) == 0 {
		return
	}
	fmt.Fprintf(w, "%-15s %-20s %-10s %-8s %-10s %-10s %-8s\n",
		"Resource", "Name", "Type", "Unit", "Stock", "Minimum", "Critical")
	fmt.Fprintf(w, "%-15s %-20s %-10s %-8s %-10s %-10s %-8s\n",
		"---------------", "--------------------", "----------", "--------", "----------", "----------", "--------")

	for _, res := range resources {
		critical := ""
		if res.IsCritical() {
			critical = "⚠️"
		}
		fmt.Fprintf(w, "%-15s %-20s %-10s %-8s %-10d %-10d %-8s\n",
			res.ID, res.Name, res.Type, res.Unit, res.StockLevel, res.MinimumThreshold, critical)
	}
}

func writeShelterCapacity(w io.Writer, shelters []dto.ShelterCapacity) {
	fmt.Fprintf(w, "🏠 Shelters: %d\n", len(shelters))
	if len(shelters) == 0 {
		return
	}
	fmt.Fprintf(w, "%-15s %-20s %-10s %-10s %-12s %-14s\n",
		"Shelter", "Name", "Occupancy", "Capacity", "Utilization", "Status")
	fmt.Fprintf(w, "%-15s %-20s %-10s %-10s %-12s %-14s\n",
		"---------------", "--------------------", "----------", "----------", "------------", "--------------")

	for _, sc := range shelters {
		fmt.Fprintf(w, "%-15s %-20s %-10d %-10d %-12s %-14s\n",
			sc.Shelter.ID,
			sc.Shelter.Name,
			sc.Shelter.CurrentOccupancy,
			sc.Shelter.Capacity,
			sc.Utilization.Mul(hundred).StringFixed(1)+"%",
			sc.Shelter.Status)
	}
}

func writePending(w io.Writer, views []entities.RequestView) {
	fmt.Fprintf(w, "📥 Open Requests: %d\n", len(views))
	if len(views) == 0 {
		return
	}
	fmt.Fprintf(w, "%-38s %-15s %-12s %-9s %-11s %-9s %-20s\n",
		"Request", "Shelter", "Resource", "Priority", "Outstanding", "Status", "Requested At")
	fmt.Fprintf(w, "%-38s %-15s %-12s %-9s %-11s %-9s %-20s\n",
		"--------------------------------------", "---------------", "------------", "---------",
		"-----------", "---------", "--------------------")

	for _, v := range views {
		fmt.Fprintf(w, "%-38s %-15s %-12s %-9s %-11d %-9s %-20s\n",
			v.Request.ID,
			v.Request.ShelterID,
			v.Request.ResourceID,
			v.Request.Priority,
			v.Request.Outstanding(),
			v.Request.Status,
			v.Request.RequestedAt.Format("2006-01-02 15:04"))
	}
}

func writeSummary(w io.Writer, s *dto.DisasterSummary) {
	fmt.Fprintf(w, "📊 Disaster Summary\n")
	fmt.Fprintf(w, "===================\n\n")

	if s.Disaster != nil {
		fmt.Fprintf(w, "Disaster: %s (%s, severity %d, %s)\n",
			s.Disaster.Name, s.Disaster.Type, s.Disaster.Severity, s.Disaster.Status)
	} else {
		fmt.Fprintf(w, "Disaster: all\n")
	}
	fmt.Fprintf(w, "Shelters: %d\n", s.ShelterCount)
	fmt.Fprintf(w, "Occupancy: %d / %d (%s%%)\n",
		s.TotalOccupancy, s.TotalCapacity, s.Utilization.Mul(hundred).StringFixed(1))
	fmt.Fprintf(w, "Open Requests: %d\n", s.PendingRequests)
	fmt.Fprintf(w, "Critical Resources: %d\n", s.CriticalResources)

	if len(s.SheltersByStatus) > 0 {
		statuses := make([]string, 0, len(s.SheltersByStatus))
		for status := range s.SheltersByStatus {
			statuses = append(statuses, status)
		}
		sort.Strings(statuses)

		fmt.Fprintf(w, "\nShelters by status:\n")
		for _, status := range statuses {
			fmt.Fprintf(w, "  %-14s %d\n", status, s.SheltersByStatus[status])
		}
	}
}

func writeAction(w io.Writer, r dto.ActionResult) {
	if r.Success {
		fmt.Fprintf(w, "✅ %s\n", r.Message)
		return
	}
	fmt.Fprintf(w, "❌ %s\n", r.Message)
	if r.Retryable {
		fmt.Fprintf(w, "   (retryable)\n")
	}
}
