package service

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/fjod/go_shop/orders-service/internal/cache"
	"github.com/fjod/go_shop/orders-service/internal/domain"
	"github.com/fjod/go_shop/orders-service/internal/repository"
)

var errInjected = errors.New("injected failure")

type memState struct {
	users     map[int64]bool
	products  map[int64]domain.Product
	cart      map[int64][]domain.CartLine
	orders    map[int64]domain.Order
	items     map[int64][]domain.OrderItem
	shipments map[int64]domain.Shipment
	outbox    []repository.OutboxEvent
	tradeNos  map[string]int64 // every issued trade number -> order id
	nextID    int64
}

func (s *memState) clone() *memState {
	c := &memState{
		users:     maps.Clone(s.users),
		products:  maps.Clone(s.products),
		cart:      make(map[int64][]domain.CartLine, len(s.cart)),
		orders:    maps.Clone(s.orders),
		items:     make(map[int64][]domain.OrderItem, len(s.items)),
		shipments: maps.Clone(s.shipments),
		outbox:    slices.Clone(s.outbox),
		tradeNos:  maps.Clone(s.tradeNos),
		nextID:    s.nextID,
	}
	for k, v := range s.cart {
		c.cart[k] = slices.Clone(v)
	}
	for k, v := range s.items {
		c.items[k] = slices.Clone(v)
	}
	return c
}

// MockStore is an in-memory repository.Store. Transactions are serialized and work on a copy
// of the state that is swapped in only on commit.
type MockStore struct {
	mu    sync.Mutex
	state *memState

	FailOn    map[string]bool // operation name -> return errInjected
	StaleCAS  bool            // compare-and-swap updates report a lost race
	TxCount   int
	Committed int
	cartReads int
}

var _ repository.Store = (*MockStore)(nil)

func NewMockStore() *MockStore {
	return &MockStore{
		state: &memState{
			users:     map[int64]bool{},
			products:  map[int64]domain.Product{},
			cart:      map[int64][]domain.CartLine{},
			orders:    map[int64]domain.Order{},
			items:     map[int64][]domain.OrderItem{},
			shipments: map[int64]domain.Shipment{},
			tradeNos:  map[string]int64{},
			nextID:    100,
		},
		FailOn: map[string]bool{},
	}
}

func (m *MockStore) AddUser(id int64) {
	m.state.users[id] = true
}

func (m *MockStore) AddProduct(p domain.Product) {
	m.state.products[p.ID] = p
}

func (m *MockStore) PutInCart(userID, productID int64, qty int) {
	m.state.cart[userID] = append(m.state.cart[userID], domain.CartLine{
		ID: int64(len(m.state.cart[userID]) + 1), UserID: userID, ProductID: productID, Quantity: qty,
	})
}

func (m *MockStore) PutOrder(o domain.Order, items []domain.OrderItem, shipment domain.ShipmentStatus) {
	m.state.orders[o.ID] = o
	m.state.items[o.ID] = items
	m.state.shipments[o.ID] = domain.Shipment{ID: o.ID, OrderID: o.ID, Status: shipment}
}

func (m *MockStore) Stock(productID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.products[productID].Stock
}

func (m *MockStore) Order(id int64) domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.orders[id]
}

func (m *MockStore) Shipment(orderID int64) domain.Shipment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.shipments[orderID]
}

func (m *MockStore) OrderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.orders)
}

func (m *MockStore) CartSize(userID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.cart[userID])
}

func (m *MockStore) Events() []repository.OutboxEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.state.outbox)
}

func (m *MockStore) InTx(_ context.Context, fn func(tx repository.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TxCount++

	work := m.state.clone()
	if err := fn(&memTx{st: work, store: m}); err != nil {
		return err
	}
	m.state = work
	m.Committed++
	return nil
}

func (m *MockStore) live() *memTx {
	return &memTx{st: m.state, store: m}
}

func (m *MockStore) OrderByID(ctx context.Context, orderID int64) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live().OrderByID(ctx, orderID)
}

func (m *MockStore) OrderForUser(ctx context.Context, orderID, userID int64) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live().OrderForUser(ctx, orderID, userID)
}

func (m *MockStore) OrderByMerchantTradeNo(ctx context.Context, no string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live().OrderByMerchantTradeNo(ctx, no)
}

func (m *MockStore) OrderItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live().OrderItems(ctx, orderID)
}

func (m *MockStore) ShipmentByOrderID(ctx context.Context, orderID int64) (*domain.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live().ShipmentByOrderID(ctx, orderID)
}

func (m *MockStore) OrdersByUser(_ context.Context, userID int64) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Order, 0)
	for _, id := range slices.Sorted(maps.Keys(m.state.orders)) {
		if o := m.state.orders[id]; o.UserID == userID {
			out = append(out, &o)
		}
	}
	slices.Reverse(out)
	return out, nil
}

func (m *MockStore) UserExists(ctx context.Context, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live().UserExists(ctx, userID)
}

func (m *MockStore) Product(_ context.Context, productID int64) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.state.products[productID]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return &p, nil
}

func (m *MockStore) CartLines(ctx context.Context, userID int64) ([]domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cartReads++
	if m.FailOn["CartLines"] {
		return nil, errInjected
	}
	return m.live().CartLines(ctx, userID)
}

func (m *MockStore) CartReads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cartReads
}

func (m *MockStore) AddCartQuantity(_ context.Context, userID, productID int64, delta int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lines := m.state.cart[userID]
	for i := range lines {
		if lines[i].ProductID == productID {
			lines[i].Quantity += delta
			return lines[i].Quantity, nil
		}
	}
	m.state.cart[userID] = append(lines, domain.CartLine{
		ID: int64(len(lines) + 1), UserID: userID, ProductID: productID, Quantity: delta,
	})
	return delta, nil
}

func (m *MockStore) SetCartQuantity(_ context.Context, userID, productID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lines := m.state.cart[userID]
	for i := range lines {
		if lines[i].ProductID == productID {
			lines[i].Quantity = quantity
			return nil
		}
	}
	return repository.ErrCartLineNotFound
}

func (m *MockStore) DeleteCartLine(_ context.Context, userID, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lines := m.state.cart[userID]
	for i := range lines {
		if lines[i].ProductID == productID {
			m.state.cart[userID] = slices.Delete(lines, i, i+1)
			return nil
		}
	}
	return repository.ErrCartLineNotFound
}

func (m *MockStore) UnpublishedEvents(context.Context, int) ([]*repository.OutboxEvent, error) {
	return nil, nil
}

func (m *MockStore) MarkEventPublished(context.Context, int64) error {
	return nil
}

func (m *MockStore) Ping(context.Context) error                  { return nil }
func (m *MockStore) RunMigrations(*repository.Credentials) error { return nil }
func (m *MockStore) Close() error                                { return nil }

type memTx struct {
	st    *memState
	store *MockStore
}

var _ repository.Tx = (*memTx)(nil)

func (t *memTx) fail(op string) error {
	if t.store.FailOn[op] {
		return errInjected
	}
	return nil
}

func (t *memTx) Reserve(_ context.Context, productID int64, quantity int) (bool, error) {
	if err := t.fail("Reserve"); err != nil {
		return false, err
	}
	p, ok := t.st.products[productID]
	if !ok || p.Stock < quantity {
		return false, nil
	}
	p.Stock -= quantity
	t.st.products[productID] = p
	return true, nil
}

func (t *memTx) Release(_ context.Context, productID int64, quantity int) error {
	if err := t.fail("Release"); err != nil {
		return err
	}
	p := t.st.products[productID]
	p.Stock += quantity
	t.st.products[productID] = p
	return nil
}

func (t *memTx) UserExists(_ context.Context, userID int64) (bool, error) {
	return t.st.users[userID], nil
}

func (t *memTx) CartLines(_ context.Context, userID int64) ([]domain.CartLine, error) {
	var out []domain.CartLine
	for _, l := range t.st.cart[userID] {
		p := t.st.products[l.ProductID]
		l.Name = p.Name
		l.UnitPrice = p.Price
		out = append(out, l)
	}
	return out, nil
}

func (t *memTx) LockCartLines(ctx context.Context, userID int64) ([]domain.CartLine, error) {
	return t.CartLines(ctx, userID)
}

func (t *memTx) ClearCart(_ context.Context, userID int64, lineIDs []int64) error {
	kept := t.st.cart[userID][:0:0]
	deleted := 0
	for _, l := range t.st.cart[userID] {
		if slices.Contains(lineIDs, l.ID) {
			deleted++
			continue
		}
		kept = append(kept, l)
	}
	if deleted != len(lineIDs) {
		return repository.ErrCartChanged
	}
	t.st.cart[userID] = kept
	if len(kept) == 0 {
		delete(t.st.cart, userID)
	}
	return nil
}

func (t *memTx) InsertOrder(_ context.Context, o *domain.Order) (int64, error) {
	t.st.nextID++
	stored := *o
	stored.ID = t.st.nextID
	t.st.orders[stored.ID] = stored
	return stored.ID, nil
}

func (t *memTx) InsertOrderItems(_ context.Context, orderID int64, items []domain.OrderItem) error {
	if err := t.fail("InsertOrderItems"); err != nil {
		return err
	}
	for i := range items {
		items[i].ID = int64(i + 1)
	}
	t.st.items[orderID] = slices.Clone(items)
	return nil
}

func (t *memTx) InsertShipment(_ context.Context, orderID int64, status domain.ShipmentStatus) error {
	t.st.shipments[orderID] = domain.Shipment{ID: orderID, OrderID: orderID, Status: status, UpdatedAt: time.Now()}
	return nil
}

func (t *memTx) OrderByID(_ context.Context, orderID int64) (*domain.Order, error) {
	o, ok := t.st.orders[orderID]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return &o, nil
}

func (t *memTx) OrderForUser(ctx context.Context, orderID, userID int64) (*domain.Order, error) {
	o, err := t.OrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, repository.ErrOrderNotFound
	}
	return o, nil
}

func (t *memTx) OrderByMerchantTradeNo(_ context.Context, no string) (*domain.Order, error) {
	if err := t.fail("OrderByMerchantTradeNo"); err != nil {
		return nil, err
	}
	if id, ok := t.st.tradeNos[no]; ok {
		o := t.st.orders[id]
		return &o, nil
	}
	for _, o := range t.st.orders {
		if o.Payment.MerchantTradeNo != nil && *o.Payment.MerchantTradeNo == no {
			return &o, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (t *memTx) OrderItems(_ context.Context, orderID int64) ([]domain.OrderItem, error) {
	return slices.Clone(t.st.items[orderID]), nil
}

func (t *memTx) ShipmentByOrderID(_ context.Context, orderID int64) (*domain.Shipment, error) {
	s, ok := t.st.shipments[orderID]
	if !ok {
		return nil, repository.ErrShipmentNotFound
	}
	return &s, nil
}

func (t *memTx) CompareAndSetOrderStatus(_ context.Context, orderID int64, from, to domain.OrderStatus) (bool, error) {
	o, ok := t.st.orders[orderID]
	if !ok || o.Status != from || (t.store.StaleCAS && from != domain.OrderStatusPending) {
		return false, nil
	}
	o.Status = to
	t.st.orders[orderID] = o
	return true, nil
}

func (t *memTx) CompareAndSetShipmentStatus(_ context.Context, orderID int64, from, to domain.ShipmentStatus) (bool, error) {
	s, ok := t.st.shipments[orderID]
	if !ok || s.Status != from || t.store.StaleCAS {
		return false, nil
	}
	s.Status = to
	t.st.shipments[orderID] = s
	return true, nil
}

func (t *memTx) SetMerchantTradeNo(_ context.Context, orderID int64, no string) error {
	if _, issued := t.st.tradeNos[no]; issued {
		return repository.ErrDuplicateMerchantTradeNo
	}
	for id, o := range t.st.orders {
		if id != orderID && o.Payment.MerchantTradeNo != nil && *o.Payment.MerchantTradeNo == no {
			return repository.ErrDuplicateMerchantTradeNo
		}
	}
	o, ok := t.st.orders[orderID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.Payment.MerchantTradeNo = &no
	t.st.orders[orderID] = o
	t.st.tradeNos[no] = orderID
	return nil
}

func (t *memTx) ApplyPayment(_ context.Context, orderID int64, u repository.PaymentUpdate) (bool, error) {
	o, ok := t.st.orders[orderID]
	if !ok || t.store.StaleCAS || o.Status != u.ExpectedStatus || o.Payment.Status != u.ExpectedPaymentStatus {
		return false, nil
	}
	o.Status = u.Status
	o.Payment.Status = u.PaymentStatus
	if u.MerchantTradeNo != nil {
		o.Payment.MerchantTradeNo = u.MerchantTradeNo
	}
	if u.Method != nil {
		o.Payment.Method = *u.Method
	}
	if u.GatewayTradeNo != nil {
		o.Payment.GatewayTradeNo = u.GatewayTradeNo
	}
	o.Payment.ReturnCode = u.ReturnCode
	o.Payment.ReturnMessage = u.ReturnMessage
	if u.ConfirmedAt != nil {
		o.Payment.ConfirmedAt = u.ConfirmedAt
	}
	t.st.orders[orderID] = o
	return true, nil
}

func (t *memTx) EnqueueEvent(_ context.Context, e *repository.OutboxEvent) error {
	if err := t.fail("EnqueueEvent"); err != nil {
		return err
	}
	t.st.outbox = append(t.st.outbox, *e)
	return nil
}

// MockCartCache records invalidations and serves whatever was Set.
type MockCartCache struct {
	mu      sync.Mutex
	carts   map[int64]*domain.Cart
	GetErr  error
	Deleted []int64
	Gets    int

	BeforeSet func(userID int64) // runs before a Set is stored
}

var _ cache.CartCache = (*MockCartCache)(nil)

func NewMockCartCache() *MockCartCache {
	return &MockCartCache{carts: map[int64]*domain.Cart{}}
}

func (c *MockCartCache) Get(_ context.Context, userID int64) (*domain.Cart, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Gets++
	if c.GetErr != nil {
		return nil, c.GetErr
	}
	cart, ok := c.carts[userID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return cart, nil
}

func (c *MockCartCache) Set(_ context.Context, userID int64, cart *domain.Cart) error {
	if c.BeforeSet != nil {
		c.BeforeSet(userID)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.carts[userID] = cart
	return nil
}

func (c *MockCartCache) Delete(_ context.Context, userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.carts, userID)
	c.Deleted = append(c.Deleted, userID)
	return nil
}

func (c *MockCartCache) Cached(userID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.carts[userID]
	return ok
}

func (c *MockCartCache) DeletedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Deleted)
}
