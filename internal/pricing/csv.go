package pricing

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/procost/enquiry-api/internal/domain"
)

// Column names of the rate sheets accepted by the catalog importer
var (
	FilingColumns    = []string{"product", "trim_type", "rm_spec", "rate_per_kg"}
	PackagingColumns = []string{"production_type", "product", "packaging_type", "transport_mode", "box_quantity", "rate_per_kg"}
	ChargeColumns    = []string{"factory_id", "charge_kind", "production_type", "product", "method", "rate_value", "currency"}
)

// columnAliases maps the headers of the legacy packaging sheet
var columnAliases = map[string]string{
	"prod_type":      "production_type",
	"box_qty":        "box_quantity",
	"pack":           "packaging_type",
	"packaging_rate": "rate_per_kg",
}

var optionalColumns = map[string]bool{
	"box_quantity": true,
	"method":       true,
	"currency":     true,
}

// sheet is a header-addressed CSV reader
type sheet struct {
	r      *csv.Reader
	index  map[string]int
	record []string
	line   int
}

func newSheet(r io.Reader, columns []string) (*sheet, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty rate sheet")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if alias, ok := columnAliases[name]; ok {
			name = alias
		}
		index[name] = i
	}
	for _, col := range columns {
		if _, ok := index[col]; !ok && !optionalColumns[col] {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}
	return &sheet{r: cr, index: index, line: 1}, nil
}

func (s *sheet) next() (bool, error) {
	for {
		record, err := s.r.Read()
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		s.line++
		if err != nil {
			return false, fmt.Errorf("line %d: %w", s.line, err)
		}
		if isBlank(record) {
			continue
		}
		s.record = record
		return true, nil
	}
}

func (s *sheet) text(col string) string {
	i, ok := s.index[col]
	if !ok || i >= len(s.record) {
		return ""
	}
	return strings.TrimSpace(s.record[i])
}

func (s *sheet) required(col string) (string, error) {
	v := s.text(col)
	if v == "" {
		return "", fmt.Errorf("line %d: %s is required", s.line, col)
	}
	return v, nil
}

func (s *sheet) number(col string) (float64, error) {
	v, err := s.required(col)
	if err != nil {
		return 0, err
	}
	// rate sheets exported with a decimal comma
	f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: %s %q is not a number", s.line, col, v)
	}
	if f < 0 {
		return 0, fmt.Errorf("line %d: %s must not be negative", s.line, col)
	}
	return f, nil
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// ParseFilingRates reads a filing rate sheet
func ParseFilingRates(r io.Reader) ([]domain.FilingRate, error) {
	s, err := newSheet(r, FilingColumns)
	if err != nil {
		return nil, err
	}

	var rates []domain.FilingRate
	for {
		ok, err := s.next()
		if err != nil || !ok {
			return rates, err
		}
		product, err := s.required("product")
		if err != nil {
			return nil, err
		}
		rate, err := s.number("rate_per_kg")
		if err != nil {
			return nil, err
		}
		rates = append(rates, domain.FilingRate{
			Product:   product,
			TrimType:  s.text("trim_type"),
			RMSpec:    s.text("rm_spec"),
			RatePerKg: rate,
		})
	}
}

// ParsePackagingRates reads a packaging rate sheet
func ParsePackagingRates(r io.Reader) ([]domain.PackagingRate, error) {
	s, err := newSheet(r, PackagingColumns)
	if err != nil {
		return nil, err
	}

	var rates []domain.PackagingRate
	for {
		ok, err := s.next()
		if err != nil || !ok {
			return rates, err
		}
		product, err := s.required("product")
		if err != nil {
			return nil, err
		}
		rate, err := s.number("rate_per_kg")
		if err != nil {
			return nil, err
		}
		rates = append(rates, domain.PackagingRate{
			ProductionType: s.text("production_type"),
			Product:        product,
			PackagingType:  s.text("packaging_type"),
			TransportMode:  s.text("transport_mode"),
			BoxQuantity:    s.text("box_quantity"),
			RatePerKg:      rate,
		})
	}
}

// ParseChargeRates reads a factory charge sheet
func ParseChargeRates(r io.Reader) ([]domain.ChargeRate, error) {
	s, err := newSheet(r, ChargeColumns)
	if err != nil {
		return nil, err
	}

	var rates []domain.ChargeRate
	for {
		ok, err := s.next()
		if err != nil || !ok {
			return rates, err
		}
		raw, err := s.required("factory_id")
		if err != nil {
			return nil, err
		}
		factoryID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || factoryID <= 0 {
			return nil, fmt.Errorf("line %d: factory_id %q is not a positive integer", s.line, raw)
		}
		kind, err := s.required("charge_kind")
		if err != nil {
			return nil, err
		}
		rate, err := s.number("rate_value")
		if err != nil {
			return nil, err
		}
		rates = append(rates, domain.ChargeRate{
			FactoryID:      factoryID,
			ChargeKind:     kind,
			ProductionType: s.text("production_type"),
			Product:        s.text("product"),
			Method:         s.text("method"),
			RateValue:      rate,
			Currency:       s.text("currency"),
		})
	}
}
