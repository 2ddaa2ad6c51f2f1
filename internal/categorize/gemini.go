package categorize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/dvloznov/budget-ledger/internal/logger"
	"github.com/dvloznov/budget-ledger/internal/statement"
	"google.golang.org/genai"
)

// DefaultModelName is the Gemini model used when none is configured.
const DefaultModelName = "gemini-2.5-flash"

// Generator is the part of the genai client the picker calls.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini asks a Gemini model to choose among the candidate categories.
// Answers are cached per merchant label and direction for the lifetime of
// the picker.
type Gemini struct {
	gen   Generator
	model string

	mu    sync.Mutex
	cache map[string]string
}

// NewGemini creates a picker backed by a new genai client. Credentials come
// from the environment, as for every genai client.
func NewGemini(ctx context.Context, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGemini: create genai client: %w", err)
	}
	return NewGeminiWithGenerator(client.Models, model), nil
}

// NewGeminiWithGenerator creates a picker over an existing generator.
func NewGeminiWithGenerator(gen Generator, model string) *Gemini {
	if model == "" {
		model = DefaultModelName
	}
	return &Gemini{gen: gen, model: model, cache: make(map[string]string)}
}

type modelAnswer struct {
	Category string `json:"category"`
}

// PickCategory implements statement.CategoryPicker.
func (g *Gemini) PickCategory(ctx context.Context, tx statement.Transaction, candidates []domain.Category) (domain.Category, error) {
	key := string(tx.Kind) + "|" + strings.ToLower(tx.Merchant)

	g.mu.Lock()
	name, cached := g.cache[key]
	g.mu.Unlock()

	if !cached {
		answer, err := g.ask(ctx, tx, candidates)
		if err != nil {
			return domain.Category{}, err
		}
		name = answer
	}

	for _, c := range candidates {
		if strings.EqualFold(c.Name, name) {
			if !cached {
				g.mu.Lock()
				g.cache[key] = c.Name
				g.mu.Unlock()
			}
			return c, nil
		}
	}
	return domain.Category{}, fmt.Errorf("PickCategory: model answered unknown category %q", name)
}

func (g *Gemini) ask(ctx context.Context, tx statement.Transaction, candidates []domain.Category) (string, error) {
	names := make([]string, 0, len(candidates))
	for _, c := range candidates {
		names = append(names, c.Name)
	}

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0),
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"category": {Type: genai.TypeString, Enum: names},
			},
			Required: []string{"category"},
		},
	}
	contents := []*genai.Content{
		genai.NewContentFromText(buildPrompt(tx, names), genai.RoleUser),
	}

	resp, err := g.gen.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("PickCategory: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return "", fmt.Errorf("PickCategory: empty response from model")
	}

	var answer modelAnswer
	if err := json.Unmarshal([]byte(cleanModelJSON(rawText)), &answer); err != nil {
		return "", fmt.Errorf("PickCategory: unmarshal JSON: %w\nraw response: %s", err, rawText)
	}

	log := logger.FromContext(ctx)

	log.Debug().
		Str("merchant", tx.Merchant).
		Str("category", answer.Category).
		Msg("Model picked category")

	return answer.Category, nil
}

var _ statement.CategoryPicker = (*Gemini)(nil)
