package models

// Batch is the canonical result set of one prediction call.
type Batch struct {
	Records []ResultRecord `json:"records"`
	// Columns is Class, Confidence, then extension columns in first-seen order.
	Columns []string `json:"columns"`
	// DriftColumns lists columns that did not appear in the first record.
	DriftColumns []string `json:"driftColumns,omitempty"`
}

// NewBatch wraps records and discovers their columns.
func NewBatch(records []ResultRecord) *Batch {
	if records == nil {
		records = make([]ResultRecord, 0)
	}
	cols, drift := DiscoverColumns(records)
	return &Batch{
		Records:      records,
		Columns:      cols,
		DriftColumns: drift,
	}
}

// Len returns the number of records.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Records)
}

// DiscoverColumns returns the export column order and the columns that
// later rows introduced beyond the first record's schema.
func DiscoverColumns(records []ResultRecord) (columns, drift []string) {
	columns = []string{FieldClass, FieldConfidence}
	seen := map[string]struct{}{
		FieldClass:      {},
		FieldConfidence: {},
	}
	for i, r := range records {
		for _, f := range r.Fields {
			if _, ok := seen[f.Name]; ok {
				continue
			}
			seen[f.Name] = struct{}{}
			columns = append(columns, f.Name)
			if i > 0 {
				drift = append(drift, f.Name)
			}
		}
	}
	return columns, drift
}
