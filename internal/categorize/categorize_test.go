package categorize

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/dvloznov/budget-ledger/internal/statement"
	"github.com/shopspring/decimal"
	"google.golang.org/genai"
)

type mockGenerator struct {
	calls    int
	lastText string
	reply    string
	err      error
}

func (m *mockGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.calls++
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		m.lastText = contents[0].Parts[0].Text
	}
	if m.err != nil {
		return nil, m.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: m.reply}}},
		}},
	}, nil
}

var candidates = []domain.Category{
	{ID: "food", Name: "Food", Direction: domain.DirectionExpense},
	{ID: "transport", Name: "Transport", Direction: domain.DirectionExpense},
}

func uberTrip() statement.Transaction {
	return statement.Transaction{
		Kind:        statement.KindDebit,
		Amount:      decimal.RequireFromString("23.40"),
		Description: "UBER *TRIP 12/01",
		Merchant:    "UBER TRIP",
	}
}

func TestFirst(t *testing.T) {
	got, err := First{}.PickCategory(context.Background(), uberTrip(), candidates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "food" {
		t.Errorf("expected first candidate, got %s", got.ID)
	}
}

func TestGeminiPicksAndCaches(t *testing.T) {
	gen := &mockGenerator{reply: "```json\n{\"category\": \"transport\"}\n```"}
	picker := NewGeminiWithGenerator(gen, "")

	for i := 0; i < 2; i++ {
		got, err := picker.PickCategory(context.Background(), uberTrip(), candidates)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.ID != "transport" {
			t.Errorf("expected transport, got %s", got.ID)
		}
	}

	if gen.calls != 1 {
		t.Errorf("expected one model call, got %d", gen.calls)
	}
	if !strings.Contains(gen.lastText, "  - Transport") || !strings.Contains(gen.lastText, "UBER TRIP") {
		t.Errorf("prompt missing candidates or merchant: %s", gen.lastText)
	}
}

func TestGeminiErrors(t *testing.T) {
	tests := []struct {
		name string
		gen  *mockGenerator
	}{
		{"backend error", &mockGenerator{err: errors.New("quota")}},
		{"empty response", &mockGenerator{reply: ""}},
		{"not json", &mockGenerator{reply: "Transport"}},
		{"unknown category", &mockGenerator{reply: `{"category": "Travel"}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			picker := NewGeminiWithGenerator(tt.gen, "gemini-test")
			if _, err := picker.PickCategory(context.Background(), uberTrip(), candidates); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestCleanModelJSON(t *testing.T) {
	tests := map[string]string{
		`{"category":"Food"}`:                     `{"category":"Food"}`,
		"```json\n{\"category\":\"Food\"}\n```":   `{"category":"Food"}`,
		"Sure! {\"category\":\"Food\"} Hope this": `{"category":"Food"}`,
	}
	for in, want := range tests {
		if got := cleanModelJSON(in); got != want {
			t.Errorf("cleanModelJSON(%q) = %q, want %q", in, got, want)
		}
	}
}
