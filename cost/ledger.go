package cost

import (
	"sync"

	"go.uber.org/zap"
)

// Record is the cost of one provider call
type Record struct {
	Provider     string  `json:"provider"`
	Tier         string  `json:"tier,omitempty"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	SearchCount  int     `json:"search_count"`
	DollarCost   float64 `json:"dollar_cost"`
}

// Ledger accumulates the cost records of one user turn
type Ledger struct {
	mu      sync.Mutex
	table   Table
	records []Record
}

// NewLedger creates an empty ledger priced with table (defaults when nil)
func NewLedger(table Table) *Ledger {
	if table == nil {
		table = DefaultTable()
	}
	return &Ledger{table: table}
}

// Price computes a record without appending it
func (l *Ledger) Price(provider string, inputTokens, outputTokens, searches int) Record {
	rec := Record{
		Provider:     provider,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		SearchCount:  searches,
	}

	tier, pricing, ok := l.table.Resolve(provider)
	if !ok {
		zap.S().Warnw("cost_unknown_provider", "provider", provider)
		return rec
	}
	rec.Tier = tier
	rec.DollarCost = pricing.Cost(inputTokens, outputTokens, searches)
	return rec
}

// Record prices a provider call and appends it. It never fails: unknown
// providers are recorded at zero cost.
func (l *Ledger) Record(provider string, inputTokens, outputTokens, searches int) Record {
	return l.Append(l.Price(provider, inputTokens, outputTokens, searches))
}

// Append adds an already priced record, such as a sub-agent call
func (l *Ledger) Append(rec Record) Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)

	zap.S().Debugw("cost_recorded",
		"provider", rec.Provider,
		"tier", rec.Tier,
		"input_tokens", rec.InputTokens,
		"output_tokens", rec.OutputTokens,
		"searches", rec.SearchCount,
		"dollar_cost", rec.DollarCost,
	)
	return rec
}

// Total returns the summed dollar cost
func (l *Ledger) Total() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var total float64
	for _, r := range l.records {
		total += r.DollarCost
	}
	return total
}

// Totals returns summed token and search counts
func (l *Ledger) Totals() (inputTokens, outputTokens, searches int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.records {
		inputTokens += r.InputTokens
		outputTokens += r.OutputTokens
		searches += r.SearchCount
	}
	return
}

// Records returns a copy of the recorded calls in order
func (l *Ledger) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// Table returns the pricing table backing this ledger
func (l *Ledger) Table() Table {
	return l.table
}
