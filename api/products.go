package api

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jrsteele09/go-admin-console/catalogmodel"
)

func productPath(id int64) string {
	return "/products/" + strconv.FormatInt(id, 10)
}

// ListProducts fetches one page of products.
func (c *Client) ListProducts(ctx context.Context, opts catalogmodel.ListOptions) (*catalogmodel.Page[catalogmodel.Product], error) {
	path := "/products"
	if q := opts.Query(); len(q) > 0 {
		path += "?" + q.Encode()
	}

	var page catalogmodel.Page[catalogmodel.Product]
	if err := c.get(ctx, path, &page); err != nil {
		return nil, fmt.Errorf("client.ListProducts: %w", err)
	}
	return &page, nil
}

// GetProduct fetches a single product by ID.
func (c *Client) GetProduct(ctx context.Context, id int64) (*catalogmodel.Product, error) {
	var product catalogmodel.Product
	if err := c.get(ctx, productPath(id), &product); err != nil {
		return nil, fmt.Errorf("client.GetProduct: %w", err)
	}
	return &product, nil
}

// CreateProduct creates a product and returns it with its backend assigned ID.
func (c *Client) CreateProduct(ctx context.Context, in catalogmodel.ProductInput) (*catalogmodel.Product, error) {
	var created catalogmodel.Product
	if err := c.post(ctx, "/products", in, &created); err != nil {
		return nil, fmt.Errorf("client.CreateProduct: %w", err)
	}
	return &created, nil
}

func (c *Client) UpdateProduct(ctx context.Context, id int64, update catalogmodel.ProductUpdate) (*catalogmodel.Product, error) {
	var updated catalogmodel.Product
	if err := c.put(ctx, productPath(id), update, &updated); err != nil {
		return nil, fmt.Errorf("client.UpdateProduct: %w", err)
	}
	return &updated, nil
}

// DeleteProduct deletes a product. The backend cascades to its image records.
func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	if err := c.delete(ctx, productPath(id)); err != nil {
		return fmt.Errorf("client.DeleteProduct: %w", err)
	}
	return nil
}

// CreateProductImage persists an image metadata record for a product.
func (c *Client) CreateProductImage(ctx context.Context, productID int64, in catalogmodel.ProductImageInput) (*catalogmodel.ProductImage, error) {
	var created catalogmodel.ProductImage
	if err := c.post(ctx, productPath(productID)+"/images", in, &created); err != nil {
		return nil, fmt.Errorf("client.CreateProductImage: %w", err)
	}
	return &created, nil
}

func (c *Client) ListProductImages(ctx context.Context, productID int64) ([]catalogmodel.ProductImage, error) {
	var images []catalogmodel.ProductImage
	if err := c.get(ctx, productPath(productID)+"/images", &images); err != nil {
		return nil, fmt.Errorf("client.ListProductImages: %w", err)
	}
	return images, nil
}

// DeleteProductImages removes every image record of a product.
func (c *Client) DeleteProductImages(ctx context.Context, productID int64) error {
	if err := c.delete(ctx, productPath(productID)+"/images"); err != nil {
		return fmt.Errorf("client.DeleteProductImages: %w", err)
	}
	return nil
}
