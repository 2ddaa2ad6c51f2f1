package app

import (
	"context"
	"testing"

	"github.com/dvloznov/budget-ledger/internal/categorize"
	"github.com/dvloznov/budget-ledger/internal/config"
	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_MemoryBackend(t *testing.T) {
	cfg := &config.Config{StoreBackend: config.BackendMemory, Categorizer: "first", Workers: 1}

	a, err := New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, "memory", cfg.Bucket)

	ctx := context.Background()
	s := domain.NewSession("u1")
	n, err := a.Engine.SeedDefaultCategories(ctx, s)
	require.NoError(t, err)
	assert.Positive(t, n)

	rec, dup, err := a.Ingestor.Register(ctx, s, "jan.ofx", []byte("<OFX></OFX>"))
	require.NoError(t, err)
	assert.False(t, dup)
	assert.Equal(t, domain.StatementPending, rec.Status)
}

func TestNew_UnknownCategorizer(t *testing.T) {
	cfg := &config.Config{StoreBackend: config.BackendMemory, Categorizer: "oracle", Workers: 1}

	_, err := New(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestNewPicker_Default(t *testing.T) {
	p, err := newPicker(context.Background(), &config.Config{})
	require.NoError(t, err)
	assert.IsType(t, categorize.First{}, p)
}
