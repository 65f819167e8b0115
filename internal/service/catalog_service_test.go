package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Eddy0415/PharmaMap-sub000/internal/domain"
	"github.com/Eddy0415/PharmaMap-sub000/internal/repository"
)

func TestCatalogService(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	svc := NewCatalogService(f.catalog)

	_, err := svc.RegisterItem(ctx, domain.Item{Name: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = svc.RegisterItem(ctx, domain.Item{Name: "Aspirin", BasePrice: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = svc.RegisterItem(ctx, domain.Item{Name: "Aspirin", BasePrice: decimal.RequireFromString("0.125")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = svc.RegisterPharmacy(ctx, domain.Pharmacy{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	aspirin, err := svc.RegisterItem(ctx, domain.Item{Name: "Aspirin", Category: "Analgesic", BasePrice: decimal.NewFromInt(3)})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, aspirin.ID)
	_, err = svc.RegisterItem(ctx, domain.Item{Name: "Amoxicillin", Category: "Antibiotic", BasePrice: decimal.NewFromInt(7)})
	require.NoError(t, err)

	got, err := svc.GetItem(ctx, aspirin.ID)
	require.NoError(t, err)
	assert.Equal(t, "Aspirin", got.Name)

	_, err = svc.GetItem(ctx, uuid.Nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = svc.GetPharmacy(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	list, err := svc.ListItems(ctx, repository.ItemFilter{NameSubstring: "A"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Amoxicillin", list[0].Name)

	list, err = svc.ListItems(ctx, repository.ItemFilter{Category: "analgesic"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, aspirin.ID, list[0].ID)
}
