package models

// NotAvailable is reported as the most common class of an empty batch.
const NotAvailable = "N/A"

// ClassCount is one row of the class distribution.
type ClassCount struct {
	Class       string `json:"type" msgpack:"type"`
	DisplayName string `json:"displayName" msgpack:"displayName"`
	Color       string `json:"color,omitempty" msgpack:"color,omitempty"`
	Count       int    `json:"count" msgpack:"count"`
	Percentage  int    `json:"percentage" msgpack:"percentage"`
}

// SummaryView holds summary statistics derived from a batch.
type SummaryView struct {
	Total                    int          `json:"total"`
	Classes                  []ClassCount `json:"countsWithPercentage"`
	DistinctClasses          int          `json:"distinctClasses"`
	MostCommon               string       `json:"mostCommon"`
	MostCommonDisplayName    string       `json:"mostCommonDisplayName"`
	AverageConfidence        float64      `json:"averageConfidence"`
	HighConfidencePercentage float64      `json:"highConfidencePercentage"`
}
