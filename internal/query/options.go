package query

import "github.com/oncoscope/backend/internal/models"

// ClassOption is one entry of the class filter.
type ClassOption struct {
	Value string `json:"value" msgpack:"value"`
	Count int    `json:"count" msgpack:"count"`
}

// ClassOptions returns AllClasses followed by each distinct class in
// first-seen order, with counts over records.
func ClassOptions(records []models.ResultRecord) []ClassOption {
	opts := []ClassOption{{Value: AllClasses, Count: len(records)}}
	index := make(map[string]int)
	for _, r := range records {
		if i, ok := index[r.Class]; ok {
			opts[i].Count++
			continue
		}
		index[r.Class] = len(opts)
		opts = append(opts, ClassOption{Value: r.Class, Count: 1})
	}
	return opts
}
