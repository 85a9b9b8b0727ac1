package intervene

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// Record is one resolved intervention request.
type Record struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Kind         Kind      `json:"intervention_type"`
	StepNumber   int       `json:"step_number"`
	StepTitle    string    `json:"step_title"`
	ErrorMessage string    `json:"error_message"`
	RetryCount   int       `json:"retry_count"`
	Response     Response  `json:"response"`
}

// History is an append-only log of intervention requests and their
// outcomes, shared by all gateway implementations.
type History struct {
	mu      sync.Mutex
	records []Record
}

func NewHistory() *History {
	return &History{}
}

func (h *History) Append(r Record) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
}

// Records returns a copy of the log in append order.
func (h *History) Records() []Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Record, len(h.records))
	copy(out, h.records)
	return out
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

// SaveTo writes the log as indented JSON.
func (h *History) SaveTo(path string) error {
	data, err := json.MarshalIndent(h.Records(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
