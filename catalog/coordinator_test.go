package catalog_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jrsteele09/go-admin-console/api"
	"github.com/jrsteele09/go-admin-console/catalog"
	"github.com/jrsteele09/go-admin-console/catalog/backendfake"
	"github.com/jrsteele09/go-admin-console/catalogmodel"
	"github.com/jrsteele09/go-admin-console/internal/utils"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var _ catalog.Backend = (*api.Client)(nil)

var errBackend = &api.HTTPError{StatusCode: 500, Message: "storage unavailable"}

func setupCoordinator(t *testing.T) (*backendfake.FakeBackend, *catalog.Coordinator) {
	t.Helper()
	backend := backendfake.NewFakeBackend(backendfake.WithNextProductID(42))
	coordinator, err := catalog.NewCoordinator(backend,
		catalog.WithLogger(zerolog.Nop()),
		catalog.WithTransactionIDs(func() string { return "tx-1" }),
	)
	require.NoError(t, err)
	return backend, coordinator
}

func threeImageRequest(primary int) catalog.CreateProductRequest {
	return catalog.CreateProductRequest{
		Product: catalogmodel.ProductInput{Name: "Desk Lamp", Price: 24.5, Stock: 10},
		Images: []catalog.ImageUpload{
			{Filename: "a.png", ContentType: "image/png", Data: strings.NewReader("a")},
			{Filename: "b.png", ContentType: "image/png", Data: strings.NewReader("b")},
			{Filename: "c.png", ContentType: "image/png", Data: strings.NewReader("c")},
		},
		PrimaryImage: primary,
	}
}

func requireStepError(t *testing.T, err error, step catalog.Step, index int) *catalog.TransactionStepError {
	t.Helper()
	require.ErrorIs(t, err, catalog.ErrTransactionStep)
	var stepErr *catalog.TransactionStepError
	require.True(t, errors.As(err, &stepErr))
	require.Equal(t, step, stepErr.Step)
	require.Equal(t, index, stepErr.Index)
	require.Equal(t, "tx-1", stepErr.TransactionID)
	return stepErr
}

func TestNewCoordinator_RequiresBackend(t *testing.T) {
	_, err := catalog.NewCoordinator(nil)
	require.Error(t, err)
}

func TestCreateProductWithImages_Success(t *testing.T) {
	backend, coordinator := setupCoordinator(t)

	result, err := coordinator.CreateProductWithImages(context.Background(), threeImageRequest(1))
	require.NoError(t, err)
	require.Equal(t, "tx-1", result.TransactionID)
	require.Equal(t, int64(42), result.Product.ID)
	require.Len(t, result.Images, 3)
	require.Equal(t, result.Images, result.Product.Images)

	for i, img := range result.Images {
		require.Equal(t, i, img.Position)
		require.Equal(t, int64(42), img.ProductID)
		require.Equal(t, i == 1, img.IsPrimary)
	}

	require.Equal(t, []string{
		"CreateProduct Desk Lamp",
		"UploadImage a.png",
		"UploadImage b.png",
		"UploadImage c.png",
		"CreateProductImage 0",
		"CreateProductImage 1",
		"CreateProductImage 2",
	}, backend.Journal())
	require.Len(t, backend.ImageRecords(42), 3)
}

func TestCreateProductWithImages_NoImages(t *testing.T) {
	backend, coordinator := setupCoordinator(t)

	result, err := coordinator.CreateProductWithImages(context.Background(), catalog.CreateProductRequest{
		Product: catalogmodel.ProductInput{Name: "Gift Card"},
	})
	require.NoError(t, err)
	require.Empty(t, result.Images)
	require.Equal(t, 1, backend.Calls(backendfake.OpCreateProduct))
	require.Equal(t, 0, backend.Calls(backendfake.OpUploadImage))
}

func TestCreateProductWithImages_CreatePrimaryFails(t *testing.T) {
	backend, coordinator := setupCoordinator(t)
	backend.FailOn(backendfake.OpCreateProduct, 0, errBackend)

	_, err := coordinator.CreateProductWithImages(context.Background(), threeImageRequest(0))
	stepErr := requireStepError(t, err, catalog.StepCreatePrimary, -1)
	require.Nil(t, stepErr.Report)
	require.Nil(t, stepErr.Rollback)
	require.Contains(t, err.Error(), "storage unavailable")

	require.Equal(t, 0, backend.Calls(backendfake.OpUploadImage))
	require.Equal(t, 0, backend.Calls(backendfake.OpDeleteProduct))
}

func TestCreateProductWithImages_UploadFails(t *testing.T) {
	backend, coordinator := setupCoordinator(t)
	backend.FailOn(backendfake.OpUploadImage, 3, errBackend)

	_, err := coordinator.CreateProductWithImages(context.Background(), threeImageRequest(0))
	stepErr := requireStepError(t, err, catalog.StepUploadDependent, 2)
	require.Equal(t, int64(42), stepErr.PrimaryID)
	require.Nil(t, stepErr.Rollback)
	require.False(t, errors.Is(err, catalog.ErrRollbackIncomplete))

	require.Equal(t, catalog.RolledBack, stepErr.Report.Outcome)
	require.Equal(t, []string{
		"product 42",
		"upload products/1-a.png",
		"upload products/2-b.png",
	}, stepErr.Report.Compensated)

	require.Empty(t, backend.Products())
	require.Empty(t, backend.StoredKeys())
	require.Equal(t, 0, backend.Calls(backendfake.OpCreateProductImage))

	journal := backend.Journal()
	require.Equal(t, "DeleteProduct 42", journal[4])
}

func TestCreateProductWithImages_UploadFailsAndPrimaryDeleteFails(t *testing.T) {
	backend, coordinator := setupCoordinator(t)
	backend.FailOn(backendfake.OpUploadImage, 3, errBackend)
	backend.FailOn(backendfake.OpDeleteProduct, 0, errors.New("delete timed out"))

	_, err := coordinator.CreateProductWithImages(context.Background(), threeImageRequest(0))
	stepErr := requireStepError(t, err, catalog.StepUploadDependent, 2)

	// The original failure is still the primary error.
	require.ErrorIs(t, err, errBackend)
	require.ErrorIs(t, err, catalog.ErrRollbackIncomplete)

	var warning *catalog.RollbackWarning
	require.True(t, errors.As(err, &warning))
	require.Equal(t, int64(42), warning.PrimaryID)
	require.Contains(t, warning.Error(), "product 42")
	require.Equal(t, catalog.PrimaryDeleteFailed, stepErr.Report.Outcome)

	// Dependents are still cleaned up on a best effort basis.
	require.Empty(t, backend.StoredKeys())
	require.Contains(t, backend.Products(), int64(42))
	require.Equal(t, 0, backend.Calls(backendfake.OpDeleteProductImages))
}

func TestCreateProductWithImages_MetadataFails(t *testing.T) {
	backend, coordinator := setupCoordinator(t)
	backend.FailOn(backendfake.OpCreateProductImage, 2, errBackend)

	_, err := coordinator.CreateProductWithImages(context.Background(), threeImageRequest(0))
	stepErr := requireStepError(t, err, catalog.StepPersistDependents, 1)
	require.Nil(t, stepErr.Rollback)
	require.Equal(t, catalog.RolledBack, stepErr.Report.Outcome)

	require.Empty(t, backend.Products())
	require.Empty(t, backend.ImageRecords(42))
	require.Empty(t, backend.StoredKeys())
	require.Equal(t, 2, backend.Calls(backendfake.OpCreateProductImage))
}

func TestCreateProductWithImages_MetadataFailsAndPrimaryDeleteFails(t *testing.T) {
	backend, coordinator := setupCoordinator(t)
	backend.FailOn(backendfake.OpCreateProductImage, 3, errBackend)
	backend.FailOn(backendfake.OpDeleteProduct, 0, errBackend)

	_, err := coordinator.CreateProductWithImages(context.Background(), threeImageRequest(0))
	stepErr := requireStepError(t, err, catalog.StepPersistDependents, 2)
	require.NotNil(t, stepErr.Rollback)

	// Without the cascade the persisted image records are removed explicitly.
	require.Equal(t, 1, backend.Calls(backendfake.OpDeleteProductImages))
	require.Empty(t, backend.ImageRecords(42))
	require.Contains(t, stepErr.Report.Compensated, "product 42 images")
}

func TestCreateProductWithImages_DependentCleanupFailureIsNotEscalated(t *testing.T) {
	backend, coordinator := setupCoordinator(t)
	backend.FailOn(backendfake.OpUploadImage, 3, errBackend)
	backend.FailOn(backendfake.OpDeleteStoredObject, 1, errors.New("object store down"))

	_, err := coordinator.CreateProductWithImages(context.Background(), threeImageRequest(0))
	stepErr := requireStepError(t, err, catalog.StepUploadDependent, 2)
	require.Nil(t, stepErr.Rollback)
	require.False(t, errors.Is(err, catalog.ErrRollbackIncomplete))

	require.Equal(t, catalog.PartiallyRolledBack, stepErr.Report.Outcome)
	require.Equal(t, []string{"upload products/1-a.png"}, stepErr.Report.Failed)
	require.Equal(t, []string{"products/1-a.png"}, backend.StoredKeys())
	require.Contains(t, stepErr.Report.String(), "left behind: upload products/1-a.png")
}

func TestCreateProductWithImages_CanceledUpload(t *testing.T) {
	backend, coordinator := setupCoordinator(t)
	backend.FailOn(backendfake.OpUploadImage, 2, context.Canceled)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := coordinator.CreateProductWithImages(ctx, threeImageRequest(0))
	requireStepError(t, err, catalog.StepUploadDependent, 1)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, backend.Products())
}

func TestCreateProductWithImages_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  catalog.CreateProductRequest
	}{
		{"missing product name", catalog.CreateProductRequest{Product: catalogmodel.ProductInput{Price: 1}}},
		{"primary image out of range", threeImageRequest(3)},
		{"negative primary image", threeImageRequest(-1)},
		{"image without data", catalog.CreateProductRequest{
			Product: catalogmodel.ProductInput{Name: "Lamp"},
			Images:  []catalog.ImageUpload{{Filename: "a.png"}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, coordinator := setupCoordinator(t)
			_, err := coordinator.CreateProductWithImages(context.Background(), tt.req)
			require.ErrorIs(t, err, catalog.ErrInvalidRequest)
			require.Empty(t, backend.Journal())
		})
	}
}

func TestCoordinator_Passthrough(t *testing.T) {
	backend, coordinator := setupCoordinator(t)
	ctx := context.Background()

	result, err := coordinator.CreateProductWithImages(ctx, catalog.CreateProductRequest{
		Product: catalogmodel.ProductInput{Name: "Lamp", Price: 10},
	})
	require.NoError(t, err)
	id := result.Product.ID

	_, err = coordinator.UpdateProduct(ctx, id, catalogmodel.ProductUpdate{})
	require.ErrorIs(t, err, catalog.ErrInvalidRequest)

	updated, err := coordinator.UpdateProduct(ctx, id, catalogmodel.ProductUpdate{Price: utils.Ptr(12.5)})
	require.NoError(t, err)
	require.Equal(t, 12.5, updated.Price)
	require.Equal(t, "Lamp", updated.Name)

	backend.FailOn(backendfake.OpUpdateProduct, 0, errBackend)
	_, err = coordinator.UpdateProduct(ctx, id, catalogmodel.ProductUpdate{Stock: utils.Ptr(3)})
	require.ErrorIs(t, err, errBackend)
	require.Equal(t, 0, backend.Calls(backendfake.OpDeleteProduct))

	require.NoError(t, coordinator.DeleteProduct(ctx, id))
	require.True(t, api.IsStatus(coordinator.DeleteProduct(ctx, id), 404))
}
