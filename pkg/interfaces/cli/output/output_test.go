package output

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/vsinha/relief/pkg/application/dto"
	"github.com/vsinha/relief/pkg/domain/entities"
)

func sampleRecommendations() []entities.Recommendation {
	shelter := &entities.Shelter{ID: "EAST_GYM", Name: "East Gym", Capacity: 80, CurrentOccupancy: 70}
	resource := &entities.Resource{ID: "WATER", Name: "Water", Type: entities.Water, Unit: "L", StockLevel: 500}
	return []entities.Recommendation{
		{
			RequestView: entities.RequestView{
				Request: &entities.Request{
					ID:                "WAT-2",
					ShelterID:         "EAST_GYM",
					ResourceID:        "WATER",
					QuantityRequested: 250,
					Priority:          entities.PriorityUrgent,
					RequestedAt:       time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC),
				},
				Shelter:  shelter,
				Resource: resource,
			},
			RecommendedQuantity: 250,
			UrgencyScore:        decimal.RequireFromString("44.375"),
			Variant:             entities.VariantWarning,
			Reason:              "priority Urgent",
		},
	}
}

func TestGenerate_Text(t *testing.T) {
	var buf bytes.Buffer
	err := Generate(sampleRecommendations(), Config{Format: FormatText, Writer: &buf, Verbose: true})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Allocation Recommendations: 1")
	assert.Contains(t, out, "WAT-2")
	assert.Contains(t, out, "44.38")
	assert.Contains(t, out, "priority Urgent")
}

func TestGenerate_YAMLKeepsJSONKeys(t *testing.T) {
	var buf bytes.Buffer
	err := Generate(sampleRecommendations(), Config{Format: FormatYAML, Writer: &buf})
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, 250, decoded[0]["recommended_quantity"])
	assert.Equal(t, "44.375", decoded[0]["urgency_score"])
	assert.Equal(t, "warning", decoded[0]["variant"])
	assert.NotContains(t, buf.String(), "{")
}

func TestGenerate_CSV(t *testing.T) {
	var buf bytes.Buffer
	err := Generate(sampleRecommendations(), Config{Format: FormatCSV, Writer: &buf})
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "request_id", records[0][0])
	assert.Equal(t, []string{"WAT-2", "EAST_GYM", "WATER", "4", "250", "250", "0", "44.375", "warning", "priority Urgent"}, records[1])
}

func TestGenerate_Summary(t *testing.T) {
	summary := &dto.DisasterSummary{
		ShelterCount:     2,
		TotalCapacity:    280,
		TotalOccupancy:   190,
		Utilization:      decimal.NewFromInt(190).Div(decimal.NewFromInt(280)),
		SheltersByStatus: map[string]int{"Available": 1, "Near Capacity": 1},
		PendingRequests:  5,
	}

	var buf bytes.Buffer
	require.NoError(t, Generate(summary, Config{Format: FormatText, Writer: &buf}))
	assert.Contains(t, buf.String(), "Occupancy: 190 / 280 (67.9%)")
	assert.Contains(t, buf.String(), "Near Capacity")

	err := Generate(summary, Config{Format: FormatCSV, Writer: &buf})
	assert.Error(t, err)
}

func TestGenerate_UnsupportedFormat(t *testing.T) {
	err := Generate(dto.ActionResult{Success: true}, Config{Format: "xml", Writer: &bytes.Buffer{}})
	assert.EqualError(t, err, "unsupported output format: xml")
	assert.False(t, ValidFormat("xml"))
}
