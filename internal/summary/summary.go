// Package summary computes summary statistics over a prediction batch.
package summary

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"github.com/oncoscope/backend/internal/models"
)

// HighConfidenceThreshold is the confidence at or above which a prediction
// counts as high confidence.
const HighConfidenceThreshold = 0.9

// Summarize groups records by class and computes the summary view. It never
// fails: an empty input yields zero counts, "N/A" and zero averages.
// A nil catalog leaves display names equal to the class labels.
func Summarize(records []models.ResultRecord, catalog *models.Catalog) models.SummaryView {
	total := len(records)
	view := models.SummaryView{
		Total:                 total,
		Classes:               make([]models.ClassCount, 0),
		MostCommon:            models.NotAvailable,
		MostCommonDisplayName: models.NotAvailable,
	}
	if total == 0 {
		return view
	}

	counts := make(map[string]int)
	order := make([]string, 0)
	confidences := make([]float64, 0, total)
	high := 0

	for _, r := range records {
		if _, ok := counts[r.Class]; !ok {
			order = append(order, r.Class)
		}
		counts[r.Class]++

		confidences = append(confidences, r.Confidence)
		if r.Confidence >= HighConfidenceThreshold {
			high++
		}
	}

	groups := make([]models.ClassCount, 0, len(order))
	for _, class := range order {
		count := counts[class]
		groups = append(groups, models.ClassCount{
			Class:       class,
			DisplayName: catalog.DisplayName(class),
			Color:       catalog.Color(class),
			Count:       count,
			Percentage:  Percentage(count, total),
		})
	}
	// stable keeps first-seen order among equal counts
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Count > groups[j].Count
	})

	view.Classes = groups
	view.DistinctClasses = len(groups)
	view.MostCommon = groups[0].Class
	view.MostCommonDisplayName = groups[0].DisplayName

	if mean, err := stats.Mean(confidences); err == nil && !math.IsNaN(mean) {
		view.AverageConfidence = mean
	}
	view.HighConfidencePercentage = float64(high) / float64(total) * 100

	return view
}

// Percentage returns count/total as a whole percentage, rounding halves up.
// It returns 0 when total is 0.
func Percentage(count, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Floor(float64(count)/float64(total)*100 + 0.5))
}
