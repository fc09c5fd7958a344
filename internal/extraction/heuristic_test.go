package extraction_test

import (
	"context"
	"testing"

	"github.com/procost/enquiry-api/internal/domain"
	"github.com/procost/enquiry-api/internal/extraction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeuristicExtractor_ExtractsLinesPerProduct(t *testing.T) {
	body := "Hi,\nWe need 5 tons of frozen salmon fillets 2-3 kg, vacuum packed, by air.\n" +
		"Also 500 kg fresh cod loins in 10kg boxes.\nRegards, Anna"

	items, err := extraction.NewHeuristicExtractor().Extract(context.Background(), body)
	require.NoError(t, err)
	require.Len(t, items, 2)

	salmon := items[0]
	assert.Equal(t, "Salmon", salmon.Product)
	assert.Equal(t, "Fillet", salmon.TrimType)
	assert.Equal(t, "2-3 kg", salmon.RMSpec)
	assert.Equal(t, "Frozen", salmon.ProductionType)
	assert.Equal(t, "Vacuum", salmon.PackagingType)
	assert.Equal(t, "Air", salmon.TransportMode)
	require.NotNil(t, salmon.Quantity)
	assert.Equal(t, 5000, *salmon.Quantity)
	assert.Equal(t, domain.ConfidenceHigh, salmon.Confidence)

	cod := items[1]
	assert.Equal(t, "Cod", cod.Product)
	assert.Equal(t, "Loin", cod.TrimType)
	assert.Equal(t, "Fresh", cod.ProductionType)
	assert.Equal(t, "Box", cod.PackagingType)
	assert.Equal(t, "10kg", cod.BoxQuantity)
	assert.Equal(t, "Air", cod.TransportMode, "falls back to email-wide transport")
	require.NotNil(t, cod.Quantity)
	assert.Equal(t, 500, *cod.Quantity)
}

func TestHeuristicExtractor_SizeBeforeQuantity(t *testing.T) {
	items, err := extraction.NewHeuristicExtractor().Extract(context.Background(), "Salmon 4-5 kg, 2.5 tonnes please")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "4-5 kg", items[0].RMSpec)
	require.NotNil(t, items[0].Quantity)
	assert.Equal(t, 2500, *items[0].Quantity)
}

func TestHeuristicExtractor_QuantitySeparators(t *testing.T) {
	tests := []struct {
		body string
		want int
	}{
		{"We need 5,000 kg of salmon fillets fresh, price please", 5000},
		{"Fresh cod loins, 2,5 tons", 2500},
		{"Frozen salmon 1,250,000 kg", 1250000},
		{"Fresh haddock 12,75 kg", 13},
		{"Fresh salmon 1.5 tons", 1500},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			items, err := extraction.NewHeuristicExtractor().Extract(context.Background(), tt.body)
			require.NoError(t, err)
			require.Len(t, items, 1)
			require.NotNil(t, items[0].Quantity)
			assert.Equal(t, tt.want, *items[0].Quantity)
		})
	}
}

func TestHeuristicExtractor_NoProducts(t *testing.T) {
	items, err := extraction.NewHeuristicExtractor().Extract(context.Background(), "Please use discount code ABC for the invoice")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestHeuristicExtractor_GyroInstruction(t *testing.T) {
	items, err := extraction.NewHeuristicExtractor().Extract(context.Background(), "Frozen mackerel, gyro frozen, 20 tons")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Gyro freezing", items[0].SpecialInstructions)
	assert.Nil(t, nilIfEmpty(items[0].RMSpec))
	assert.Equal(t, domain.ConfidenceMedium, items[0].Confidence)
}

func TestHeuristicExtractor_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := extraction.NewHeuristicExtractor().Extract(ctx, "salmon")
	assert.ErrorIs(t, err, context.Canceled)
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
