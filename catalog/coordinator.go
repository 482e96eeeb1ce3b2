// Package catalog coordinates catalog mutations that span several backend
// calls and undoes the completed ones when a later call fails.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/jrsteele09/go-admin-console/catalogmodel"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/ksuid"
)

// Backend is the part of the REST client the coordinator drives.
type Backend interface {
	CreateProduct(ctx context.Context, in catalogmodel.ProductInput) (*catalogmodel.Product, error)
	UpdateProduct(ctx context.Context, id int64, update catalogmodel.ProductUpdate) (*catalogmodel.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	UploadImage(ctx context.Context, filename, contentType string, data io.Reader) (*catalogmodel.StoredObject, error)
	CreateProductImage(ctx context.Context, productID int64, in catalogmodel.ProductImageInput) (*catalogmodel.ProductImage, error)
	DeleteProductImages(ctx context.Context, productID int64) error
	DeleteStoredObject(ctx context.Context, key string) error
}

// ImageUpload is one image to attach to a new product.
type ImageUpload struct {
	Filename    string
	ContentType string
	Data        io.Reader
}

// CreateProductRequest creates a product with its images. PrimaryImage is the
// index of the cover image and is ignored when there are no images.
type CreateProductRequest struct {
	Product      catalogmodel.ProductInput
	Images       []ImageUpload
	PrimaryImage int
}

type CreateProductResult struct {
	TransactionID string
	Product       *catalogmodel.Product
	Images        []catalogmodel.ProductImage
}

// Coordinator keeps no state between calls; each create is its own transaction.
type Coordinator struct {
	backend Backend
	logger  zerolog.Logger
	newID   func() string
}

type Option func(*Coordinator)

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithTransactionIDs replaces the transaction id generator (primarily for testing)
func WithTransactionIDs(newID func() string) Option {
	return func(c *Coordinator) {
		c.newID = newID
	}
}

func NewCoordinator(backend Backend, opts ...Option) (*Coordinator, error) {
	if backend == nil {
		return nil, errors.New("[NewCoordinator] backend is required")
	}
	c := &Coordinator{
		backend: backend,
		logger:  log.Logger,
		newID:   func() string { return ksuid.New().String() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// transaction is the step log of one create. Only steps recorded here are
// compensated on rollback.
type transaction struct {
	id        string
	primaryID int64
	uploaded  []catalogmodel.StoredObject
	persisted []catalogmodel.ProductImage
}

// CreateProductWithImages creates the product, uploads every image in order and
// then persists one image record per upload. If any step after the product
// create fails, the product and the uploaded objects are deleted again.
func (c *Coordinator) CreateProductWithImages(ctx context.Context, req CreateProductRequest) (*CreateProductResult, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	tx := &transaction{id: c.newID()}
	logger := c.logger.With().Str("transaction", tx.id).Logger()

	product, err := c.backend.CreateProduct(ctx, req.Product)
	if err != nil {
		logger.Warn().Err(err).Msg("product create failed")
		return nil, &TransactionStepError{TransactionID: tx.id, Step: StepCreatePrimary, Index: -1, Err: err}
	}
	tx.primaryID = product.ID
	logger = logger.With().Int64("product", product.ID).Logger()

	for i, image := range req.Images {
		stored, err := c.backend.UploadImage(ctx, image.Filename, image.ContentType, image.Data)
		if err != nil {
			return nil, c.fail(ctx, logger, tx, StepUploadDependent, i, err)
		}
		tx.uploaded = append(tx.uploaded, *stored)
	}

	for i, stored := range tx.uploaded {
		record, err := c.backend.CreateProductImage(ctx, tx.primaryID, catalogmodel.ProductImageInput{
			URL:        stored.URL,
			StorageKey: stored.Key,
			Position:   i,
			IsPrimary:  i == req.PrimaryImage,
		})
		if err != nil {
			return nil, c.fail(ctx, logger, tx, StepPersistDependents, i, err)
		}
		tx.persisted = append(tx.persisted, *record)
	}

	product.Images = tx.persisted
	logger.Info().Int("images", len(tx.persisted)).Msg("product created")
	return &CreateProductResult{TransactionID: tx.id, Product: product, Images: tx.persisted}, nil
}

func (c *Coordinator) fail(ctx context.Context, logger zerolog.Logger, tx *transaction, step Step, index int, err error) error {
	logger.Warn().Err(err).Str("step", string(step)).Int("index", index).Msg("transaction step failed, rolling back")

	report, primaryErr := c.rollback(context.WithoutCancel(ctx), logger, tx)
	stepErr := &TransactionStepError{
		TransactionID: tx.id,
		Step:          step,
		Index:         index,
		PrimaryID:     tx.primaryID,
		Err:           err,
		Report:        &report,
	}
	if primaryErr != nil {
		stepErr.Rollback = &RollbackWarning{PrimaryID: tx.primaryID, Err: primaryErr, Report: report}
	}
	return stepErr
}

// rollback deletes the primary, which cascades to its image records, and then
// the uploaded objects. Only the primary delete failure is returned; dependent
// failures are logged and listed in the report.
func (c *Coordinator) rollback(ctx context.Context, logger zerolog.Logger, tx *transaction) (RollbackReport, error) {
	report := RollbackReport{PrimaryID: tx.primaryID, Outcome: RolledBack}
	primary := "product " + strconv.FormatInt(tx.primaryID, 10)

	primaryErr := c.backend.DeleteProduct(ctx, tx.primaryID)
	if primaryErr != nil {
		logger.Error().Err(primaryErr).Msg("rollback could not delete product")
		report.Outcome = PrimaryDeleteFailed
		report.Failed = append(report.Failed, primary)

		// Without the cascade the image records have to go explicitly.
		if len(tx.persisted) > 0 {
			if err := c.backend.DeleteProductImages(ctx, tx.primaryID); err != nil {
				logger.Error().Err(err).Msg("rollback could not delete image records")
				report.Failed = append(report.Failed, primary+" images")
			} else {
				report.Compensated = append(report.Compensated, primary+" images")
			}
		}
	} else {
		report.Compensated = append(report.Compensated, primary)
	}

	for _, stored := range tx.uploaded {
		if err := c.backend.DeleteStoredObject(ctx, stored.Key); err != nil {
			logger.Error().Err(err).Str("key", stored.Key).Msg("rollback could not delete upload")
			report.Failed = append(report.Failed, "upload "+stored.Key)
			if report.Outcome == RolledBack {
				report.Outcome = PartiallyRolledBack
			}
			continue
		}
		report.Compensated = append(report.Compensated, "upload "+stored.Key)
	}

	logger.Info().Str("outcome", string(report.Outcome)).Msg(report.String())
	return report, primaryErr
}

// UpdateProduct passes an update straight to the backend.
func (c *Coordinator) UpdateProduct(ctx context.Context, id int64, update catalogmodel.ProductUpdate) (*catalogmodel.Product, error) {
	if update.IsEmpty() {
		return nil, fmt.Errorf("%w: update changes nothing", ErrInvalidRequest)
	}
	if err := catalogmodel.Validate(update); err != nil {
		return nil, err
	}
	return c.backend.UpdateProduct(ctx, id, update)
}

// DeleteProduct passes a delete straight to the backend.
func (c *Coordinator) DeleteProduct(ctx context.Context, id int64) error {
	return c.backend.DeleteProduct(ctx, id)
}

func validateCreate(req CreateProductRequest) error {
	if err := catalogmodel.Validate(req.Product); err != nil {
		return err
	}
	if len(req.Images) > 0 && (req.PrimaryImage < 0 || req.PrimaryImage >= len(req.Images)) {
		return fmt.Errorf("%w: primary image %d out of range for %d images", ErrInvalidRequest, req.PrimaryImage, len(req.Images))
	}
	for i, image := range req.Images {
		if image.Data == nil {
			return fmt.Errorf("%w: image %d has no data", ErrInvalidRequest, i)
		}
	}
	return nil
}
