// Package query derives filtered, searched and sorted views of a
// prediction batch without touching the batch itself.
package query

import (
	"cmp"
	"slices"
	"strings"

	"github.com/oncoscope/backend/internal/models"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// DefaultLocale is used for string ordering when none is configured.
const DefaultLocale = "en"

// Engine runs queries with a fixed collation locale.
type Engine struct {
	tag language.Tag
}

// NewEngine creates an engine for the given BCP 47 locale.
func NewEngine(locale string) (*Engine, error) {
	if locale == "" {
		locale = DefaultLocale
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, err
	}
	return &Engine{tag: tag}, nil
}

var defaultEngine = &Engine{tag: language.English}

// Query applies the class filter, then the search, then the sort, using
// English collation.
func Query(records []models.ResultRecord, p Params) []models.ResultRecord {
	return defaultEngine.Query(records, p)
}

// Query returns a new slice; records is never reordered.
func (e *Engine) Query(records []models.ResultRecord, p Params) []models.ResultRecord {
	p = p.Normalize()
	out := FilterClass(records, p.Class)
	out = Search(out, p.Search)
	return e.Sort(out, p.Sort)
}

// FilterClass keeps records whose Class equals class exactly. AllClasses
// keeps everything.
func FilterClass(records []models.ResultRecord, class string) []models.ResultRecord {
	out := make([]models.ResultRecord, 0, len(records))
	for _, r := range records {
		if class == "" || class == AllClasses || r.Class == class {
			out = append(out, r)
		}
	}
	return out
}

// Search keeps records where any value contains text, ignoring case.
func Search(records []models.ResultRecord, text string) []models.ResultRecord {
	out := make([]models.ResultRecord, 0, len(records))
	if text == "" {
		return append(out, records...)
	}
	needle := strings.ToLower(text)
	for _, r := range records {
		if matches(r, needle) {
			out = append(out, r)
		}
	}
	return out
}

func matches(r models.ResultRecord, needle string) bool {
	for _, v := range r.Values() {
		if strings.Contains(strings.ToLower(v.String()), needle) {
			return true
		}
	}
	return false
}

// Sort returns a stably sorted copy. Records lacking the key compare as
// empty strings.
func (e *Engine) Sort(records []models.ResultRecord, s SortState) []models.ResultRecord {
	out := slices.Clone(records)
	if out == nil {
		out = make([]models.ResultRecord, 0)
	}
	if s.Key == "" {
		return out
	}

	// collators keep internal buffers, so each sort gets its own
	col := collate.New(e.tag)
	slices.SortStableFunc(out, func(a, b models.ResultRecord) int {
		c := compareValues(col, lookup(a, s.Key), lookup(b, s.Key))
		if s.Direction == Descending {
			return -c
		}
		return c
	})
	return out
}

func lookup(r models.ResultRecord, key string) models.Value {
	v, ok := r.Get(key)
	if !ok {
		return models.StringValue("")
	}
	return v
}

// compareValues compares numerically when both values are numbers and by
// collated lower-case text otherwise.
func compareValues(col *collate.Collator, a, b models.Value) int {
	if a.IsNumber() && b.IsNumber() {
		return cmp.Compare(a.Number(), b.Number())
	}
	return col.CompareString(strings.ToLower(a.String()), strings.ToLower(b.String()))
}
