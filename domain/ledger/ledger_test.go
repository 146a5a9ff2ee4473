package ledger_test

import (
	"testing"

	"github.com/revlens/revlens/domain/ledger"
)

func TestSummarize(t *testing.T) {
	records := []ledger.Record{
		{Source: "content-generation", Cost: 2.50, TokensUsed: 800},
		{Source: "content-generation", Cost: 1.25, TokensUsed: 400},
		{Source: "news", Cost: 0.75, TokensUsed: 0},
	}

	s := ledger.Summarize(records)

	if s.Records != 3 {
		t.Errorf("Records = %d, want 3", s.Records)
	}
	if s.TokensUsed != 1200 { // 800 + 400
		t.Errorf("TokensUsed = %d, want 1200", s.TokensUsed)
	}
	if s.TotalCost != 4.50 { // 2.50 + 1.25 + 0.75
		t.Errorf("TotalCost = %v, want 4.50", s.TotalCost)
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := ledger.Summarize(nil)
	if s.Records != 0 || s.TokensUsed != 0 || s.TotalCost != 0 {
		t.Errorf("Summarize(nil) = %+v, want zero summary", s)
	}
}

func TestSummarizeBySource(t *testing.T) {
	records := []ledger.Record{
		{Source: "news", Cost: 0.75},
		{Source: "content-generation", Cost: 2.50, TokensUsed: 800},
		{Source: "news", Cost: 0.25},
	}

	bySource, order := ledger.SummarizeBySource(records)

	if len(order) != 2 || order[0] != "news" || order[1] != "content-generation" {
		t.Errorf("order = %v, want [news content-generation]", order)
	}
	if bySource["news"].Records != 2 || bySource["news"].TotalCost != 1.00 {
		t.Errorf("news summary = %+v, want 2 records costing 1.00", bySource["news"])
	}
	if bySource["content-generation"].TokensUsed != 800 {
		t.Errorf("content-generation TokensUsed = %d, want 800", bySource["content-generation"].TokensUsed)
	}
}

func TestCountCoerced(t *testing.T) {
	records := []ledger.Record{
		{Cost: 1.0},
		{Cost: 0, CostCoerced: true},
	}
	if got := ledger.CountCoerced(records); got != 1 {
		t.Errorf("CountCoerced = %d, want 1", got)
	}
}
