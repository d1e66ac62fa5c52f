package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/vsinha/relief/pkg/application/dto"
	"github.com/vsinha/relief/pkg/domain/entities"
)

// Scenario file names inside a scenario directory. Only shelters.csv and
// resources.csv are required.
const (
	DisastersFile = "disasters.csv"
	SheltersFile  = "shelters.csv"
	ResourcesFile = "resources.csv"
	RequestsFile  = "requests.csv"
)

// Loader handles loading relief records from CSV files
type Loader struct {
	// Now stamps requests with a blank requested_at; defaults to time.Now
	Now func() time.Time
}

// NewLoader creates a new CSV loader
func NewLoader() *Loader {
	return &Loader{Now: time.Now}
}

// LoadScenario loads every scenario file found in dir
func (l *Loader) LoadScenario(dir string) (*dto.Scenario, error) {
	scenario := &dto.Scenario{}
	var err error

	if scenario.Disasters, err = optional(l.LoadDisasters, filepath.Join(dir, DisastersFile)); err != nil {
		return nil, err
	}
	if scenario.Shelters, err = l.LoadShelters(filepath.Join(dir, SheltersFile)); err != nil {
		return nil, err
	}
	if scenario.Resources, err = l.LoadResources(filepath.Join(dir, ResourcesFile)); err != nil {
		return nil, err
	}
	if scenario.Requests, err = optional(l.LoadRequests, filepath.Join(dir, RequestsFile)); err != nil {
		return nil, err
	}
	return scenario, nil
}

func optional[T any](load func(string) ([]T, error), filename string) ([]T, error) {
	if _, err := os.Stat(filename); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return load(filename)
}

// LoadDisasters loads disasters from a CSV file
func (l *Loader) LoadDisasters(filename string) ([]*entities.Disaster, error) {
	records, err := readCSV(filename, "disasters", []string{"id", "name", "type", "severity", "status", "started_at"})
	if err != nil {
		return nil, err
	}

	var disasters []*entities.Disaster
	for i, record := range records {
		disaster, err := parseDisaster(record)
		if err != nil {
			return nil, fmt.Errorf("disasters CSV row %d: %w", i+2, err)
		}
		disasters = append(disasters, disaster)
	}
	return disasters, nil
}

// LoadShelters loads shelters from a CSV file
func (l *Loader) LoadShelters(filename string) ([]*entities.Shelter, error) {
	records, err := readCSV(filename, "shelters", []string{"id", "disaster_id", "name", "location", "capacity", "status"})
	if err != nil {
		return nil, err
	}

	var shelters []*entities.Shelter
	for i, record := range records {
		shelter, err := parseShelter(record)
		if err != nil {
			return nil, fmt.Errorf("shelters CSV row %d: %w", i+2, err)
		}
		shelters = append(shelters, shelter)
	}
	return shelters, nil
}

// LoadResources loads resources from a CSV file
func (l *Loader) LoadResources(filename string) ([]*entities.Resource, error) {
	records, err := readCSV(filename, "resources", []string{"id", "disaster_id", "name", "type", "unit", "stock_level", "minimum_threshold"})
	if err != nil {
		return nil, err
	}

	var resources []*entities.Resource
	for i, record := range records {
		resource, err := parseResource(record)
		if err != nil {
			return nil, fmt.Errorf("resources CSV row %d: %w", i+2, err)
		}
		resources = append(resources, resource)
	}
	return resources, nil
}

// LoadRequests loads requests from a CSV file. Rows with a blank id get a
// generated one.
func (l *Loader) LoadRequests(filename string) ([]*entities.Request, error) {
	records, err := readCSV(filename, "requests", []string{"id", "shelter_id", "resource_id", "quantity", "priority", "status", "requested_at"})
	if err != nil {
		return nil, err
	}

	now := l.Now
	if now == nil {
		now = time.Now
	}

	var requests []*entities.Request
	for i, record := range records {
		request, err := parseRequest(record, now)
		if err != nil {
			return nil, fmt.Errorf("requests CSV row %d: %w", i+2, err)
		}
		requests = append(requests, request)
	}
	return requests, nil
}

// readCSV returns the data rows of a file after checking its header
func readCSV(filename, kind string, expectedHeader []string) ([][]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s file %s: %w", kind, filename, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = len(expectedHeader)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s CSV: %w", kind, err)
	}

	if len(records) < 2 {
		return nil, fmt.Errorf("%s CSV must have header and at least one data row", kind)
	}

	header := records[0]
	if !validateHeader(header, expectedHeader) {
		return nil, fmt.Errorf("%s CSV header mismatch. Expected: %v, Got: %v", kind, expectedHeader, header)
	}
	return records[1:], nil
}

func validateHeader(actual, expected []string) bool {
	if len(actual) != len(expected) {
		return false
	}

	for i, col := range expected {
		if strings.ToLower(strings.TrimSpace(actual[i])) != col {
			return false
		}
	}

	return true
}

func parseDisaster(record []string) (*entities.Disaster, error) {
	severity, err := strconv.Atoi(strings.TrimSpace(record[3]))
	if err != nil {
		return nil, fmt.Errorf("invalid severity: %s", record[3])
	}
	startedAt, err := parseTimestamp(record[5])
	if err != nil {
		return nil, fmt.Errorf("invalid started_at: %w", err)
	}
	disaster, err := entities.NewDisaster(entities.DisasterID(record[0]), record[1], record[2], severity, startedAt)
	if err != nil {
		return nil, err
	}
	if disaster.Status, err = entities.ParseDisasterStatus(record[4]); err != nil {
		return nil, err
	}
	return disaster, nil
}

func parseShelter(record []string) (*entities.Shelter, error) {
	capacity, err := parseQuantity(record[4])
	if err != nil {
		return nil, fmt.Errorf("invalid capacity: %s", record[4])
	}
	shelter, err := entities.NewShelter(
		entities.ShelterID(record[0]),
		entities.DisasterID(record[1]),
		record[2],
		record[3],
		capacity,
	)
	if err != nil {
		return nil, err
	}
	if shelter.Status, err = entities.ParseOperationalStatus(record[5]); err != nil {
		return nil, err
	}
	return shelter, nil
}

func parseResource(record []string) (*entities.Resource, error) {
	resourceType, err := entities.ParseResourceType(record[3])
	if err != nil {
		return nil, err
	}
	stock, err := parseQuantity(record[5])
	if err != nil {
		return nil, fmt.Errorf("invalid stock_level: %s", record[5])
	}
	threshold, err := parseQuantity(record[6])
	if err != nil {
		return nil, fmt.Errorf("invalid minimum_threshold: %s", record[6])
	}
	resource, err := entities.NewResource(
		entities.ResourceID(record[0]),
		entities.DisasterID(record[1]),
		record[2],
		resourceType,
		stock,
		threshold,
	)
	if err != nil {
		return nil, err
	}
	resource.Unit = strings.TrimSpace(record[4])
	return resource, nil
}

func parseRequest(record []string, now func() time.Time) (*entities.Request, error) {
	quantity, err := parseQuantity(record[3])
	if err != nil {
		return nil, fmt.Errorf("invalid quantity: %s", record[3])
	}
	priority, err := entities.ParsePriority(record[4])
	if err != nil {
		return nil, err
	}
	status, err := entities.ParseRequestStatus(record[5])
	if err != nil {
		return nil, err
	}
	requestedAt, err := parseTimestamp(record[6])
	if err != nil {
		return nil, fmt.Errorf("invalid requested_at: %w", err)
	}
	if requestedAt.IsZero() {
		requestedAt = now().UTC()
	}

	request, err := entities.NewRequest(
		entities.ShelterID(record[1]),
		entities.ResourceID(record[2]),
		quantity,
		priority,
		requestedAt,
	)
	if err != nil {
		return nil, err
	}
	if id := strings.TrimSpace(record[0]); id != "" {
		request.ID = entities.RequestID(id)
	}
	request.Status = status
	if status == entities.RequestFulfilled {
		request.QuantityFulfilled = quantity
	}
	return request, nil
}

func parseQuantity(s string) (entities.Quantity, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, err
	}
	return entities.Quantity(n), nil
}

// parseTimestamp accepts RFC 3339 or a bare YYYY-MM-DD date. Blank is zero.
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s (expected RFC 3339 or YYYY-MM-DD)", s)
	}
	return t, nil
}
