package catalogmodel_test

import (
	"strings"
	"testing"

	"github.com/jrsteele09/go-admin-console/catalogmodel"
	errs "github.com/jrsteele09/go-admin-console/internal/errors"
	"github.com/jrsteele09/go-admin-console/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestValidate_ProductInput(t *testing.T) {
	tests := []struct {
		name    string
		input   catalogmodel.ProductInput
		wantErr bool
	}{
		{"valid", catalogmodel.ProductInput{Name: "Desk Lamp", Price: 24.5, Stock: 3, Status: catalogmodel.ProductActive}, false},
		{"missing name", catalogmodel.ProductInput{Price: 1}, true},
		{"negative price", catalogmodel.ProductInput{Name: "Lamp", Price: -1}, true},
		{"negative stock", catalogmodel.ProductInput{Name: "Lamp", Stock: -2}, true},
		{"unknown status", catalogmodel.ProductInput{Name: "Lamp", Status: "sold"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := catalogmodel.Validate(tt.input)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, errs.ErrInvalidRequest)
		})
	}
}

func TestValidate_ProductUpdate(t *testing.T) {
	require.True(t, catalogmodel.ProductUpdate{}.IsEmpty())

	update := catalogmodel.ProductUpdate{Price: utils.Ptr(12.0)}
	require.False(t, update.IsEmpty())
	require.NoError(t, catalogmodel.Validate(update))

	require.Error(t, catalogmodel.Validate(catalogmodel.ProductUpdate{Name: utils.Ptr(strings.Repeat("x", 201))}))
	require.Error(t, catalogmodel.Validate(catalogmodel.ProductUpdate{Stock: utils.Ptr(-1)}))
}

func TestValidate_ProductImageInput(t *testing.T) {
	require.NoError(t, catalogmodel.Validate(catalogmodel.ProductImageInput{
		URL: "https://cdn.example.com/products/a.png", StorageKey: "products/a.png",
	}))
	require.Error(t, catalogmodel.Validate(catalogmodel.ProductImageInput{URL: "not a url", StorageKey: "k"}))
	require.Error(t, catalogmodel.Validate(catalogmodel.ProductImageInput{URL: "https://cdn.example.com/a.png"}))
}

func TestOrderStatus_Valid(t *testing.T) {
	require.True(t, catalogmodel.OrderShipped.Valid())
	require.False(t, catalogmodel.OrderStatus("lost").Valid())

	require.NoError(t, catalogmodel.Validate(catalogmodel.OrderStatusUpdate{Status: catalogmodel.OrderCancelled}))
	require.Error(t, catalogmodel.Validate(catalogmodel.OrderStatusUpdate{Status: "lost"}))
}

func TestListOptions_Query(t *testing.T) {
	require.Empty(t, catalogmodel.ListOptions{}.Query())

	q := catalogmodel.ListOptions{Page: 2, PageSize: 25, Sort: "created_at", Order: catalogmodel.SortDesc, Status: "pending"}.Query()
	require.Equal(t, "order=desc&page=2&page_size=25&sort=created_at&status=pending", q.Encode())

	require.Error(t, catalogmodel.Validate(catalogmodel.ListOptions{PageSize: 500}))
	require.Error(t, catalogmodel.Validate(catalogmodel.ListOptions{Order: "sideways"}))
}
