package cost

import (
	"bytes"
	"math"
	"strings"
	"testing"
)

const epsilon = 1e-9

func TestLedgerAccumulatesAcrossProviders(t *testing.T) {
	table := DefaultTable()
	ledger := NewLedger(table)

	ledger.Record(TierClaudeSonnet, 1_000_000, 0, 0)
	ledger.Record(TierClaudeSonnet, 0, 1_000_000, 0)
	ledger.Record(TierPerplexity, 0, 0, 1000)

	a := table[TierClaudeSonnet]
	b := table[TierPerplexity]
	expected := a.PerMillionInput + a.PerMillionOutput + b.PerThousandSearches

	if got := ledger.Total(); math.Abs(got-expected) > epsilon {
		t.Errorf("Expected total %f, got %f", expected, got)
	}

	records := ledger.Records()
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}
	if records[2].Provider != TierPerplexity {
		t.Errorf("Expected records in call order, got %s last", records[2].Provider)
	}
}

func TestLedgerUnknownProviderCostsZero(t *testing.T) {
	ledger := NewLedger(nil)

	rec := ledger.Record("mystery-model", 5000, 5000, 3)
	if rec.DollarCost != 0 {
		t.Errorf("Expected zero cost for unknown provider, got %f", rec.DollarCost)
	}
	if rec.Tier != "" {
		t.Errorf("Expected no tier, got %s", rec.Tier)
	}
	if len(ledger.Records()) != 1 {
		t.Error("Expected unknown provider call to still be recorded")
	}
}

func TestLedgerResolvesModelIDs(t *testing.T) {
	ledger := NewLedger(nil)

	tests := []struct {
		provider string
		tier     string
	}{
		{"claude-sonnet-4-20250514", TierClaudeSonnet4},
		{"anthropic/claude-sonnet-4-20250514", TierClaudeSonnet4},
		{"claude-3-7-sonnet-latest", TierClaudeSonnet},
		{"claude-3-5-haiku-latest", TierClaudeHaiku},
		{"gemini-2.0-flash", TierGeminiFlash},
		{"grok-3-mini-fast", TierGrok3Mini},
		{"grok-3-latest", TierGrok3},
		{"sonar", TierPerplexity},
	}

	for _, tt := range tests {
		rec := ledger.Record(tt.provider, 10, 10, 0)
		if rec.Tier != tt.tier {
			t.Errorf("Expected %s to resolve to %s, got %s", tt.provider, tt.tier, rec.Tier)
		}
	}
}

func TestLedgerAppendKeepsPricedRecord(t *testing.T) {
	ledger := NewLedger(nil)
	ledger.Append(Record{Provider: "sonar", DollarCost: 0.0123})

	if got := ledger.Total(); math.Abs(got-0.0123) > epsilon {
		t.Errorf("Expected total 0.0123, got %f", got)
	}
}

func TestLedgerTotals(t *testing.T) {
	ledger := NewLedger(nil)
	ledger.Record(TierGeminiFlash, 100, 20, 0)
	ledger.Record(TierClaudeSonnet4, 50, 30, 2)

	in, out, searches := ledger.Totals()
	if in != 150 || out != 50 || searches != 2 {
		t.Errorf("Expected totals 150/50/2, got %d/%d/%d", in, out, searches)
	}
}

func TestWriteSummary(t *testing.T) {
	ledger := NewLedger(nil)
	ledger.Record(TierClaudeSonnet4, 1000, 200, 1)

	var buf bytes.Buffer
	WriteSummary(&buf, ledger)

	out := buf.String()
	if !strings.Contains(out, TierClaudeSonnet4) {
		t.Errorf("Expected provider row in summary, got:\n%s", out)
	}
	if !strings.Contains(out, FormatDollars(ledger.Total())) {
		t.Errorf("Expected total in summary, got:\n%s", out)
	}
}

func TestWriteSummaryEmpty(t *testing.T) {
	var buf bytes.Buffer
	WriteSummary(&buf, NewLedger(nil))

	if !strings.Contains(buf.String(), "(no calls)") {
		t.Errorf("Expected empty marker, got:\n%s", buf.String())
	}
}
