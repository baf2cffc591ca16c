package query

import "github.com/oncoscope/backend/internal/models"

// View is one rendered query: the visible rows plus the counts shown above
// the table.
type View struct {
	Rows    []models.ResultRecord `json:"rows"`
	Shown   int                   `json:"shown"`
	Total   int                   `json:"total"`
	Params  Params                `json:"params"`
	Columns []string              `json:"columns"`
	Options []ClassOption         `json:"classOptions"`
}

// View runs Query and packages the result with its counts and the class
// filter options of the full record set.
func (e *Engine) View(records []models.ResultRecord, p Params) View {
	p = p.Normalize()
	rows := e.Query(records, p)
	cols, _ := models.DiscoverColumns(records)
	return View{
		Rows:    rows,
		Shown:   len(rows),
		Total:   len(records),
		Params:  p,
		Columns: cols,
		Options: ClassOptions(records),
	}
}
