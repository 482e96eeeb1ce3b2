package backendfake

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jrsteele09/go-admin-console/api"
	"github.com/jrsteele09/go-admin-console/catalog"
	"github.com/jrsteele09/go-admin-console/catalogmodel"
	"github.com/jrsteele09/go-admin-console/internal/utils"
)

var _ catalog.Backend = (*FakeBackend)(nil)

// Operation names a backend method so that failures can be scripted per call.
type Operation string

const (
	OpCreateProduct       Operation = "CreateProduct"
	OpUpdateProduct       Operation = "UpdateProduct"
	OpDeleteProduct       Operation = "DeleteProduct"
	OpUploadImage         Operation = "UploadImage"
	OpCreateProductImage  Operation = "CreateProductImage"
	OpDeleteProductImages Operation = "DeleteProductImages"
	OpDeleteStoredObject  Operation = "DeleteStoredObject"
	OpListProducts        Operation = "ListProducts"
	OpListOrders          Operation = "ListOrders"
	OpGetOrder            Operation = "GetOrder"
	OpUpdateOrderStatus   Operation = "UpdateOrderStatus"
	OpDeleteOrder         Operation = "DeleteOrder"
	OpDashboardSummary    Operation = "DashboardSummary"
)

type failure struct {
	call int // 1 based; 0 fails every call
	err  error
}

// FakeBackend is an in-memory catalog and order store.
type FakeBackend struct {
	products      map[int64]*catalogmodel.Product
	images        map[int64][]catalogmodel.ProductImage
	objects       map[string]catalogmodel.StoredObject
	orders        map[int64]*catalogmodel.Order
	nextProductID int64
	nextImageID   int64
	failures      map[Operation]failure
	calls         map[Operation]int
	journal       []string
	lock          sync.RWMutex
}

type Option func(*FakeBackend)

// WithNextProductID sets the ID the next created product receives.
func WithNextProductID(id int64) Option {
	return func(b *FakeBackend) {
		b.nextProductID = id
	}
}

func NewFakeBackend(options ...Option) *FakeBackend {
	b := &FakeBackend{
		products:      make(map[int64]*catalogmodel.Product),
		images:        make(map[int64][]catalogmodel.ProductImage),
		objects:       make(map[string]catalogmodel.StoredObject),
		orders:        make(map[int64]*catalogmodel.Order),
		nextProductID: 1,
		nextImageID:   1,
		failures:      make(map[Operation]failure),
		calls:         make(map[Operation]int),
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

// FailOn makes the call-th invocation of op return err. A call of 0 fails
// every invocation.
func (b *FakeBackend) FailOn(op Operation, call int, err error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.failures[op] = failure{call: call, err: err}
}

func (b *FakeBackend) Calls(op Operation) int {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return b.calls[op]
}

// Journal returns every call made, in order, as "Operation arg".
func (b *FakeBackend) Journal() []string {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return append([]string(nil), b.journal...)
}

func (b *FakeBackend) Products() map[int64]catalogmodel.Product {
	b.lock.RLock()
	defer b.lock.RUnlock()
	products := make(map[int64]catalogmodel.Product, len(b.products))
	for id, p := range b.products {
		products[id] = *p
	}
	return products
}

// StoredKeys lists the keys of the objects currently in storage.
func (b *FakeBackend) StoredKeys() []string {
	b.lock.RLock()
	defer b.lock.RUnlock()
	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (b *FakeBackend) ImageRecords(productID int64) []catalogmodel.ProductImage {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return append([]catalogmodel.ProductImage(nil), b.images[productID]...)
}

func (b *FakeBackend) AddOrder(order catalogmodel.Order) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.orders[order.ID] = &order
}

// record must be called with the lock held.
func (b *FakeBackend) record(op Operation, arg any) error {
	b.calls[op]++
	b.journal = append(b.journal, fmt.Sprintf("%s %v", op, arg))
	f, ok := b.failures[op]
	if !ok || (f.call != 0 && f.call != b.calls[op]) {
		return nil
	}
	return f.err
}

func notFound(what string, id any) error {
	return &api.HTTPError{StatusCode: 404, Message: fmt.Sprintf("%s %v not found", what, id)}
}

func (b *FakeBackend) CreateProduct(_ context.Context, in catalogmodel.ProductInput) (*catalogmodel.Product, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if err := b.record(OpCreateProduct, in.Name); err != nil {
		return nil, err
	}

	now := time.Now()
	p := &catalogmodel.Product{
		ID:          b.nextProductID,
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		Category:    in.Category,
		Status:      in.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	b.nextProductID++
	b.products[p.ID] = p
	created := *p
	return &created, nil
}

func (b *FakeBackend) UpdateProduct(_ context.Context, id int64, update catalogmodel.ProductUpdate) (*catalogmodel.Product, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if err := b.record(OpUpdateProduct, id); err != nil {
		return nil, err
	}

	p, ok := b.products[id]
	if !ok {
		return nil, notFound("product", id)
	}
	if update.Name != nil {
		p.Name = utils.Value(update.Name)
	}
	if update.Description != nil {
		p.Description = utils.Value(update.Description)
	}
	if update.Price != nil {
		p.Price = utils.Value(update.Price)
	}
	if update.Stock != nil {
		p.Stock = utils.Value(update.Stock)
	}
	if update.Category != nil {
		p.Category = utils.Value(update.Category)
	}
	if update.Status != nil {
		p.Status = utils.Value(update.Status)
	}
	p.UpdatedAt = time.Now()
	updated := *p
	return &updated, nil
}

// DeleteProduct cascades to the product's image records like the real backend.
func (b *FakeBackend) DeleteProduct(_ context.Context, id int64) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	if err := b.record(OpDeleteProduct, id); err != nil {
		return err
	}
	if _, ok := b.products[id]; !ok {
		return notFound("product", id)
	}
	delete(b.products, id)
	delete(b.images, id)
	return nil
}

func (b *FakeBackend) UploadImage(_ context.Context, filename, _ string, data io.Reader) (*catalogmodel.StoredObject, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if err := b.record(OpUploadImage, filename); err != nil {
		return nil, err
	}
	if _, err := io.Copy(io.Discard, data); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("products/%d-%s", b.calls[OpUploadImage], filename)
	obj := catalogmodel.StoredObject{URL: "https://cdn.example.com/" + key, Key: key}
	b.objects[key] = obj
	return &obj, nil
}

func (b *FakeBackend) CreateProductImage(_ context.Context, productID int64, in catalogmodel.ProductImageInput) (*catalogmodel.ProductImage, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if err := b.record(OpCreateProductImage, in.Position); err != nil {
		return nil, err
	}
	if _, ok := b.products[productID]; !ok {
		return nil, notFound("product", productID)
	}

	img := catalogmodel.ProductImage{
		ID:         b.nextImageID,
		ProductID:  productID,
		URL:        in.URL,
		StorageKey: in.StorageKey,
		Position:   in.Position,
		IsPrimary:  in.IsPrimary,
		CreatedAt:  time.Now(),
	}
	b.nextImageID++
	b.images[productID] = append(b.images[productID], img)
	return &img, nil
}

func (b *FakeBackend) DeleteProductImages(_ context.Context, productID int64) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	if err := b.record(OpDeleteProductImages, productID); err != nil {
		return err
	}
	delete(b.images, productID)
	return nil
}

func (b *FakeBackend) DeleteStoredObject(_ context.Context, key string) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	if err := b.record(OpDeleteStoredObject, key); err != nil {
		return err
	}
	if _, ok := b.objects[key]; !ok {
		return notFound("object", key)
	}
	delete(b.objects, key)
	return nil
}

func (b *FakeBackend) ListProducts(_ context.Context, opts catalogmodel.ListOptions) (*catalogmodel.Page[catalogmodel.Product], error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if err := b.record(OpListProducts, opts.Page); err != nil {
		return nil, err
	}

	items := make([]catalogmodel.Product, 0, len(b.products))
	for _, p := range b.products {
		items = append(items, *p)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return paginate(items, opts), nil
}

func (b *FakeBackend) ListOrders(_ context.Context, opts catalogmodel.ListOptions) (*catalogmodel.Page[catalogmodel.Order], error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if err := b.record(OpListOrders, opts.Page); err != nil {
		return nil, err
	}

	items := make([]catalogmodel.Order, 0, len(b.orders))
	for _, o := range b.orders {
		if opts.Status == "" || string(o.Status) == opts.Status {
			items = append(items, *o)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return paginate(items, opts), nil
}

func (b *FakeBackend) GetOrder(_ context.Context, id int64) (*catalogmodel.Order, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if err := b.record(OpGetOrder, id); err != nil {
		return nil, err
	}
	o, ok := b.orders[id]
	if !ok {
		return nil, notFound("order", id)
	}
	order := *o
	return &order, nil
}

func (b *FakeBackend) UpdateOrderStatus(_ context.Context, id int64, status catalogmodel.OrderStatus) (*catalogmodel.Order, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if err := b.record(OpUpdateOrderStatus, id); err != nil {
		return nil, err
	}
	o, ok := b.orders[id]
	if !ok {
		return nil, notFound("order", id)
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	order := *o
	return &order, nil
}

func (b *FakeBackend) DeleteOrder(_ context.Context, id int64) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	if err := b.record(OpDeleteOrder, id); err != nil {
		return err
	}
	if _, ok := b.orders[id]; !ok {
		return notFound("order", id)
	}
	delete(b.orders, id)
	return nil
}

func (b *FakeBackend) DashboardSummary(context.Context) (*catalogmodel.DashboardSummary, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if err := b.record(OpDashboardSummary, ""); err != nil {
		return nil, err
	}

	summary := &catalogmodel.DashboardSummary{TotalProducts: len(b.products)}
	for _, o := range b.orders {
		summary.TotalOrders++
		if o.Status == catalogmodel.OrderPending {
			summary.PendingOrders++
		}
		if o.Status != catalogmodel.OrderCancelled {
			summary.TotalRevenue += o.Total
		}
	}
	for _, p := range b.products {
		if p.Stock < 5 {
			summary.LowStockProducts++
		}
	}
	return summary, nil
}

func paginate[T any](items []T, opts catalogmodel.ListOptions) *catalogmodel.Page[T] {
	page, size := opts.Page, opts.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	start := min((page-1)*size, len(items))
	end := min(start+size, len(items))
	return &catalogmodel.Page[T]{Items: items[start:end], Total: len(items), Page: page, PageSize: size}
}
