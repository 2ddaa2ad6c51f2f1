package categorize

import (
	"fmt"
	"strings"

	"github.com/dvloznov/budget-ledger/internal/statement"
)

func buildPrompt(tx statement.Transaction, names []string) string {
	var b strings.Builder

	b.WriteString("You classify personal bank transactions into budget categories.\n\n")
	b.WriteString("Transaction:\n")
	fmt.Fprintf(&b, "- description: %s\n", tx.Description)
	fmt.Fprintf(&b, "- merchant: %s\n", tx.Merchant)
	fmt.Fprintf(&b, "- kind: %s\n", tx.Kind)
	fmt.Fprintf(&b, "- amount: %s\n\n", tx.Amount.StringFixed(2))

	b.WriteString("Use ONLY one of the following categories:\n")
	for _, n := range names {
		b.WriteString("  - " + n + "\n")
	}

	b.WriteString("\nRules:\n")
	b.WriteString("1. Category must be EXACTLY one of the names above.\n")
	b.WriteString("2. If you are unsure, choose the most generic category.\n")
	b.WriteString("Return ONLY a JSON object like {\"category\": \"<name>\"}.\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")

	return b.String()
}

// cleanModelJSON strips Markdown fences and text around the JSON object if
// the model ignored the instructions.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
