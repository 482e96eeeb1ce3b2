package api

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jrsteele09/go-admin-console/catalogmodel"
)

func orderPath(id int64) string {
	return "/orders/" + strconv.FormatInt(id, 10)
}

// ListOrders fetches one page of orders.
func (c *Client) ListOrders(ctx context.Context, opts catalogmodel.ListOptions) (*catalogmodel.Page[catalogmodel.Order], error) {
	path := "/orders"
	if q := opts.Query(); len(q) > 0 {
		path += "?" + q.Encode()
	}

	var page catalogmodel.Page[catalogmodel.Order]
	if err := c.get(ctx, path, &page); err != nil {
		return nil, fmt.Errorf("client.ListOrders: %w", err)
	}
	return &page, nil
}

// GetOrder fetches a single order by ID.
func (c *Client) GetOrder(ctx context.Context, id int64) (*catalogmodel.Order, error) {
	var order catalogmodel.Order
	if err := c.get(ctx, orderPath(id), &order); err != nil {
		return nil, fmt.Errorf("client.GetOrder: %w", err)
	}
	return &order, nil
}

func (c *Client) UpdateOrderStatus(ctx context.Context, id int64, status catalogmodel.OrderStatus) (*catalogmodel.Order, error) {
	var order catalogmodel.Order
	if err := c.put(ctx, orderPath(id)+"/status", catalogmodel.OrderStatusUpdate{Status: status}, &order); err != nil {
		return nil, fmt.Errorf("client.UpdateOrderStatus: %w", err)
	}
	return &order, nil
}

func (c *Client) DeleteOrder(ctx context.Context, id int64) error {
	if err := c.delete(ctx, orderPath(id)); err != nil {
		return fmt.Errorf("client.DeleteOrder: %w", err)
	}
	return nil
}

// DashboardSummary returns the figures shown on the dashboard cards.
func (c *Client) DashboardSummary(ctx context.Context) (*catalogmodel.DashboardSummary, error) {
	var summary catalogmodel.DashboardSummary
	if err := c.get(ctx, "/dashboard/summary", &summary); err != nil {
		return nil, fmt.Errorf("client.DashboardSummary: %w", err)
	}
	return &summary, nil
}
