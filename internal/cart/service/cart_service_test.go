package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meatline/internal/cart/cache"
	"meatline/internal/cart/repository"
	"meatline/internal/domain"
)

type mockRepository struct {
	m    sync.RWMutex
	cart *domain.Cart
	err  error
}

func (m *mockRepository) GetCart(context.Context, string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.cart == nil {
		return nil, repository.ErrCartNotFound
	}
	return m.cart, nil
}

func (m *mockRepository) AddLine(_ context.Context, userID string, product domain.Product) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.cart == nil {
		m.cart = &domain.Cart{UserID: userID}
	}
	if line := m.cart.Line(product.ID); line != nil {
		line.Quantity++
		return nil
	}
	m.cart.Items = append(m.cart.Items, domain.NewCartLine(product, time.Now()))
	return nil
}

func (m *mockRepository) DecrementLine(_ context.Context, _ string, productID int64) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.cart == nil {
		return nil
	}
	for i := range m.cart.Items {
		if m.cart.Items[i].ProductID != productID {
			continue
		}
		if m.cart.Items[i].Quantity <= 1 {
			m.cart.Items = append(m.cart.Items[:i], m.cart.Items[i+1:]...)
		} else {
			m.cart.Items[i].Quantity--
		}
		return nil
	}
	return nil
}

func (m *mockRepository) RemoveLine(_ context.Context, _ string, productID int64) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.cart == nil {
		return nil
	}
	for i, item := range m.cart.Items {
		if item.ProductID == productID {
			m.cart.Items = append(m.cart.Items[:i], m.cart.Items[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *mockRepository) RemoveLines(ctx context.Context, userID string, productIDs []int64) error {
	for _, id := range productIDs {
		if err := m.RemoveLine(ctx, userID, id); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockRepository) DeleteCart(context.Context, string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.cart == nil {
		return repository.ErrCartNotFound
	}
	m.cart = nil
	return nil
}

type mockCache struct {
	m    sync.RWMutex
	cart *domain.Cart
	err  error
}

func (m *mockCache) Get(context.Context, string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.cart == nil {
		return nil, cache.ErrCacheMiss
	}
	return m.cart, nil
}

func (m *mockCache) Set(_ context.Context, _ string, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.cart = cart
	return m.err
}

func (m *mockCache) Delete(context.Context, string) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.cart = nil
	return m.err
}

func testProduct(id int64) domain.Product {
	return domain.Product{
		ID:              id,
		Name:            "Marinated Beef Bulgogi",
		Price:           decimal.RequireFromString("89.99"),
		DiscountedPrice: decimal.RequireFromString("79.99"),
		Spec:            "10 lb - 5 lb x 2 packs",
		Style:           domain.StyleMarinated,
		Ingredients:     "beef, soy sauce, pear",
	}
}

func TestGetCart_MissingCartReadsAsEmpty(t *testing.T) {
	svc := NewCartService(&mockRepository{}, &mockCache{})

	cart, err := svc.GetCart(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Equal(t, "user-1", cart.UserID)
	assert.True(t, cart.IsEmpty())
}

func TestGetCart_CacheHitSkipsRepository(t *testing.T) {
	cached := &domain.Cart{UserID: "user-1", Items: []domain.CartLine{
		domain.NewCartLine(testProduct(1), time.Now()),
	}}
	repo := &mockRepository{err: assert.AnError} // repo would fail if reached
	svc := NewCartService(repo, &mockCache{cart: cached})

	cart, err := svc.GetCart(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
}

func TestAddProduct_NewLineStartsAtOne(t *testing.T) {
	repo := &mockRepository{}
	svc := NewCartService(repo, &mockCache{})

	require.NoError(t, svc.AddProduct(context.Background(), "user-1", testProduct(1)))

	cart, err := svc.GetCart(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 1, cart.Items[0].Quantity)
	assert.Equal(t, domain.StyleMarinated, cart.Items[0].Style)
	assert.Equal(t, "10 lb - 5 lb x 2 packs", cart.Items[0].Spec)
}

func TestAddProduct_RepeatedAddIncrementsQuantity(t *testing.T) {
	repo := &mockRepository{}
	svc := NewCartService(repo, &mockCache{})

	require.NoError(t, svc.AddProduct(context.Background(), "user-1", testProduct(1)))
	require.NoError(t, svc.AddProduct(context.Background(), "user-1", testProduct(1)))

	cart, err := svc.GetCart(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)
}

func TestAddProduct_InvalidatesCache(t *testing.T) {
	stale := &domain.Cart{UserID: "user-1"}
	cacheMock := &mockCache{cart: stale}
	svc := NewCartService(&mockRepository{}, cacheMock)

	require.NoError(t, svc.AddProduct(context.Background(), "user-1", testProduct(1)))

	cacheMock.m.RLock()
	defer cacheMock.m.RUnlock()
	assert.Nil(t, cacheMock.cart)
}

func TestSubtract_DecrementsQuantityAboveOne(t *testing.T) {
	repo := &mockRepository{}
	svc := NewCartService(repo, &mockCache{})

	require.NoError(t, svc.AddProduct(context.Background(), "user-1", testProduct(1)))
	require.NoError(t, svc.AddProduct(context.Background(), "user-1", testProduct(1)))
	require.NoError(t, svc.Subtract(context.Background(), "user-1", 1))

	cart, err := svc.GetCart(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 1, cart.Items[0].Quantity)
}

func TestSubtract_LastUnitRemovesLine(t *testing.T) {
	repo := &mockRepository{}
	svc := NewCartService(repo, &mockCache{})

	require.NoError(t, svc.AddProduct(context.Background(), "user-1", testProduct(1)))
	require.NoError(t, svc.Subtract(context.Background(), "user-1", 1))

	cart, err := svc.GetCart(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}

func TestSubtract_MissingLineIsNoOp(t *testing.T) {
	svc := NewCartService(&mockRepository{}, &mockCache{})

	assert.NoError(t, svc.Subtract(context.Background(), "user-1", 99))
}

func TestRemove_DropsWholeLine(t *testing.T) {
	repo := &mockRepository{}
	svc := NewCartService(repo, &mockCache{})

	require.NoError(t, svc.AddProduct(context.Background(), "user-1", testProduct(1)))
	require.NoError(t, svc.AddProduct(context.Background(), "user-1", testProduct(1)))
	require.NoError(t, svc.Remove(context.Background(), "user-1", 1))

	cart, err := svc.GetCart(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}

func TestRemove_RepeatedRemovalLeavesCartUnchanged(t *testing.T) {
	repo := &mockRepository{}
	svc := NewCartService(repo, &mockCache{})

	require.NoError(t, svc.AddProduct(context.Background(), "user-1", testProduct(1)))
	require.NoError(t, svc.AddProduct(context.Background(), "user-1", testProduct(2)))

	require.NoError(t, svc.Remove(context.Background(), "user-1", 1))
	require.NoError(t, svc.Remove(context.Background(), "user-1", 1))
	require.NoError(t, svc.Remove(context.Background(), "user-1", 99))

	cart, err := svc.GetCart(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, int64(2), cart.Items[0].ProductID)
}

func TestRemoveMany_DropsOnlyNamedLines(t *testing.T) {
	repo := &mockRepository{}
	svc := NewCartService(repo, &mockCache{})

	require.NoError(t, svc.AddProduct(context.Background(), "user-1", testProduct(1)))
	require.NoError(t, svc.AddProduct(context.Background(), "user-1", testProduct(2)))
	require.NoError(t, svc.AddProduct(context.Background(), "user-1", testProduct(3)))

	require.NoError(t, svc.RemoveMany(context.Background(), "user-1", []int64{1, 3}))

	cart, err := svc.GetCart(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, int64(2), cart.Items[0].ProductID)
}

func TestClear_NeverStoredCartCountsAsCleared(t *testing.T) {
	svc := NewCartService(&mockRepository{}, &mockCache{})

	assert.NoError(t, svc.Clear(context.Background(), "user-1"))
}
