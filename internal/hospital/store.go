package hospital

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrDataSource indicates the dataset file was missing or malformed. Callers
// are expected to fall back to SampleRecords rather than abort.
var ErrDataSource = errors.New("hospital dataset unavailable")

// Canonical column names after header normalization.
const (
	colName    = "name"
	colCity    = "city"
	colAddress = "address"
	colNetwork = "network"
)

// columnSynonyms maps normalized header variants seen in provider exports to
// the canonical field set. Unknown headers are preserved in Record.Extra.
var columnSynonyms = map[string]string{
	"name":            colName,
	"hospital name":   colName,
	"hospital_name":   colName,
	"provider name":   colName,
	"city":            colCity,
	"location":        colCity,
	"town":            colCity,
	"address":         colAddress,
	"street":          colAddress,
	"full address":    colAddress,
	"network":         colNetwork,
	"network status":  colNetwork,
	"network_status":  colNetwork,
	"in network":      colNetwork,
	"empanelled":      colNetwork,
}

// Store holds the loaded hospital records for the process lifetime. It is
// read-only after construction and safe for concurrent use.
type Store struct {
	records []Record
	logger  *logrus.Logger
}

// NewStore loads the dataset at path. On any load failure it logs the problem
// and serves the built-in sample dataset so the assistant stays demonstrable.
func NewStore(path string, logger *logrus.Logger) *Store {
	records, err := LoadCSV(path)
	if err != nil {
		logger.WithError(err).WithField("path", path).Warn("Falling back to built-in sample dataset")
		records = SampleRecords()
	}

	logger.WithField("records", len(records)).Info("Hospital dataset loaded")
	return &Store{records: records, logger: logger}
}

// NewStoreFromRecords wraps a fixed record set, used by tests and fixtures.
func NewStoreFromRecords(records []Record, logger *logrus.Logger) *Store {
	for i := range records {
		records[i].ID = i
	}
	return &Store{records: records, logger: logger}
}

// Records returns the full record set in load order.
func (s *Store) Records() []Record {
	return s.records
}

// Get returns the record with the given id.
func (s *Store) Get(id int) (Record, bool) {
	if id < 0 || id >= len(s.records) {
		return Record{}, false
	}
	return s.records[id], true
}

// Cities returns the distinct city names present in the dataset.
func (s *Store) Cities() []string {
	seen := make(map[string]bool)
	var cities []string
	for _, r := range s.records {
		key := Normalize(r.City)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		cities = append(cities, r.City)
	}
	return cities
}

// LoadCSV parses the dataset file into records. The first row is the header;
// header names are trimmed, lower-cased and mapped through columnSynonyms.
// Rows whose name is empty after normalization are skipped.
func LoadCSV(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataSource, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataSource, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: no data rows in %s", ErrDataSource, path)
	}

	header := rows[0]
	canonical := make([]string, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if mapped, ok := columnSynonyms[key]; ok {
			canonical[i] = mapped
		} else {
			canonical[i] = key
		}
	}

	nameSeen := false
	for _, c := range canonical {
		if c == colName {
			nameSeen = true
		}
	}
	if !nameSeen {
		return nil, fmt.Errorf("%w: missing hospital name column", ErrDataSource)
	}

	var records []Record
	for _, row := range rows[1:] {
		rec := Record{Extra: map[string]string{}}
		for i, value := range row {
			if i >= len(canonical) {
				break
			}
			value = strings.TrimSpace(value)
			switch canonical[i] {
			case colName:
				rec.Name = value
			case colCity:
				rec.City = value
			case colAddress:
				rec.Address = value
			case colNetwork:
				rec.InNetwork = parseNetworkStatus(value)
			default:
				if value != "" {
					rec.Extra[canonical[i]] = value
				}
			}
		}
		if Normalize(rec.Name) == "" {
			continue
		}
		rec.ID = len(records)
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no usable rows in %s", ErrDataSource, path)
	}
	return records, nil
}

func parseNetworkStatus(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "yes", "y", "true", "1", "in", "in-network", "in network", "empanelled":
		return true
	}
	return false
}

// SampleRecords is the built-in fallback dataset used when the CSV cannot be
// loaded.
func SampleRecords() []Record {
	return []Record{
		{ID: 0, Name: "Apollo Hospital", Address: "123 Main St", City: "Bangalore", InNetwork: true},
		{ID: 1, Name: "Manipal Hospital, Sarjapur Road", Address: "456 Park Ave", City: "Bangalore", InNetwork: true},
		{ID: 2, Name: "Fortis Hospital", Address: "789 Lake Rd", City: "Delhi", InNetwork: true},
		{ID: 3, Name: "Manipal Hospital", Address: "12 Airport Rd", City: "Delhi", InNetwork: false},
		{ID: 4, Name: "Cloudnine Hospital", Address: "34 Old Madras Rd", City: "Bangalore", InNetwork: true},
	}
}
