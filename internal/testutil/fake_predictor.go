// fake_predictor.go - In-process prediction service for tests
package testutil

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/oncoscope/backend/internal/intake"
	"github.com/oncoscope/backend/internal/tabular"
)

// FakePredictor serves /predict and /template the way the real model
// service does. Each uploaded row becomes one record: its own columns plus
// a Class and Confidence derived from the row content.
type FakePredictor struct {
	Server *httptest.Server

	mu       sync.Mutex
	uploads  []string
	status   int
	body     string
	canned   string
	classes  []string
	template []byte
	gate     chan struct{}
}

// DefaultClasses cycles through a few catalog labels.
var DefaultClasses = []string{"Lung", "Breast", "Liver", "Normal"}

// NewFakePredictor starts the service; callers must Close it.
func NewFakePredictor() *FakePredictor {
	f := &FakePredictor{
		classes:  DefaultClasses,
		template: []byte("PK\x03\x04template"),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/predict", f.handlePredict)
	mux.HandleFunc("/template", f.handleTemplate)
	f.Server = httptest.NewServer(mux)
	return f
}

// URL is the service base URL.
func (f *FakePredictor) URL() string { return f.Server.URL }

// Close stops the server and releases any held request.
func (f *FakePredictor) Close() {
	f.Release()
	f.Server.Close()
}

// FailWith makes /predict and /template answer status with body.
func (f *FakePredictor) FailWith(status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status, f.body = status, body
}

// RespondWith makes /predict answer 200 with a fixed JSON body instead of
// deriving records from the upload.
func (f *FakePredictor) RespondWith(body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canned = body
}

// Hold blocks /predict until Release is called.
func (f *FakePredictor) Hold() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
}

// Release unblocks held requests.
func (f *FakePredictor) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gate != nil {
		close(f.gate)
		f.gate = nil
	}
}

// Uploads returns the file names received so far.
func (f *FakePredictor) Uploads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.uploads...)
}

func (f *FakePredictor) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeDetail(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	f.mu.Lock()
	f.uploads = append(f.uploads, hdr.Filename)
	status, body, canned, gate, classes := f.status, f.body, f.canned, f.gate, f.classes
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}
	if status != 0 {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
		return
	}
	if canned != "" {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, canned)
		return
	}

	sel := intake.NewSelection(hdr.Filename, hdr.Size, hdr.Header.Get("Content-Type"))
	table, err := tabular.GetGlobalRegistry().Read(intake.Format(sel), file, 0)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, fmt.Sprintf("Could not read file: %v", err))
		return
	}

	out := make([]json.RawMessage, 0, len(table.Rows))
	for _, row := range table.Rows {
		h := fnv.New32a()
		for _, cell := range row {
			_, _ = h.Write([]byte(cell))
		}
		sum := h.Sum32()
		class := classes[int(sum)%len(classes)]
		conf := 0.5 + float64(sum%500)/1000

		rec := []byte(fmt.Sprintf(`{"Class":%q,"Confidence":%g`, class, conf))
		for i, col := range table.Header {
			rec = append(rec, fmt.Sprintf(",%q:%s", col, cellJSON(row[i]))...)
		}
		rec = append(rec, '}')
		out = append(out, rec)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (f *FakePredictor) handleTemplate(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	status, body, data := f.status, f.body, f.template
	f.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="cancer_prediction_template.xlsx"`)
	_, _ = w.Write(data)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

// cellJSON emits numeric cells as numbers, like a dataframe-backed service.
func cellJSON(cell string) []byte {
	if f, err := strconv.ParseFloat(cell, 64); err == nil {
		return []byte(strconv.FormatFloat(f, 'g', -1, 64))
	}
	b, _ := json.Marshal(cell)
	return b
}
