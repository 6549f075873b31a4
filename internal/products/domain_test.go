package products

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/shared"
)

func TestValidateSKU(t *testing.T) {
	for _, ok := range []string{"SKU-001", "AB12", " MASK-10 "} {
		_, err := ValidateSKU(ok)
		require.NoError(t, err, ok)
	}
	for _, bad := range []string{"", "sku-1", "A B", "SKU_1", "크림"} {
		_, err := ValidateSKU(bad)
		require.ErrorIs(t, err, shared.ErrValidation, bad)
	}
}
