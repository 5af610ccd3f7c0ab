package api

import (
	"context"

	"github.com/stretchr/testify/mock"

	"solar-store-service/internal/domain"
	"solar-store-service/internal/service"
)

// MockCatalogService is a mock of CatalogService and ProductCatalog.
type MockCatalogService struct {
	mock.Mock
}

func (m *MockCatalogService) Home(ctx context.Context) (*service.HomeFeed, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.HomeFeed), args.Error(1)
}

func (m *MockCatalogService) ListProducts(ctx context.Context, q service.ProductQuery) (*service.ProductPage, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ProductPage), args.Error(1)
}

func (m *MockCatalogService) ProductDetail(ctx context.Context, slug string) (*service.ProductDetail, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ProductDetail), args.Error(1)
}

func (m *MockCatalogService) CategoryPage(ctx context.Context, slug string, page int) (*service.CategoryPage, error) {
	args := m.Called(ctx, slug, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CategoryPage), args.Error(1)
}

func (m *MockCatalogService) Search(ctx context.Context, q string, page int) (*service.SearchResults, error) {
	args := m.Called(ctx, q, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SearchResults), args.Error(1)
}

func (m *MockCatalogService) Filter(ctx context.Context, q service.FilterQuery) ([]service.ProductCard, error) {
	args := m.Called(ctx, q)
	var cards []service.ProductCard
	if arg0 := args.Get(0); arg0 != nil {
		cards = arg0.([]service.ProductCard)
	}
	return cards, args.Error(1)
}

func (m *MockCatalogService) Categories(ctx context.Context) ([]domain.Category, error) {
	args := m.Called(ctx)
	var categories []domain.Category
	if arg0 := args.Get(0); arg0 != nil {
		categories = arg0.([]domain.Category)
	}
	return categories, args.Error(1)
}

func (m *MockCatalogService) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *MockCatalogService) CheckAvailability(ctx context.Context, lines []service.AvailabilityLine) ([]service.Shortage, error) {
	args := m.Called(ctx, lines)
	var shortages []service.Shortage
	if arg0 := args.Get(0); arg0 != nil {
		shortages = arg0.([]service.Shortage)
	}
	return shortages, args.Error(1)
}

// MockCartService is a mock of CartService.
type MockCartService struct {
	mock.Mock
}

func (m *MockCartService) View(ctx context.Context, owner domain.CartOwner) (*service.CartView, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CartView), args.Error(1)
}

func (m *MockCartService) AddItem(ctx context.Context, owner domain.CartOwner, productID int64, quantity int) (*service.CartMutation, error) {
	args := m.Called(ctx, owner, productID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CartMutation), args.Error(1)
}

func (m *MockCartService) UpdateItem(ctx context.Context, owner domain.CartOwner, itemID int64, quantity int) (*service.CartUpdate, error) {
	args := m.Called(ctx, owner, itemID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CartUpdate), args.Error(1)
}

func (m *MockCartService) RemoveItem(ctx context.Context, owner domain.CartOwner, itemID int64) (*service.CartMutation, error) {
	args := m.Called(ctx, owner, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CartMutation), args.Error(1)
}

func (m *MockCartService) Summary(ctx context.Context, owner domain.CartOwner) (*service.CartSummary, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CartSummary), args.Error(1)
}

// MockCheckoutService is a mock of CheckoutService and OrderStatusUpdater.
type MockCheckoutService struct {
	mock.Mock
}

func (m *MockCheckoutService) Prepare(ctx context.Context, userID int64) (*service.CheckoutView, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CheckoutView), args.Error(1)
}

func (m *MockCheckoutService) PlaceOrder(ctx context.Context, userID int64, req service.CheckoutRequest) (*domain.Order, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockCheckoutService) ListOrders(ctx context.Context, userID int64) ([]domain.Order, error) {
	args := m.Called(ctx, userID)
	var orders []domain.Order
	if arg0 := args.Get(0); arg0 != nil {
		orders = arg0.([]domain.Order)
	}
	return orders, args.Error(1)
}

func (m *MockCheckoutService) GetOrder(ctx context.Context, userID, orderID int64) (*domain.Order, error) {
	args := m.Called(ctx, userID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockCheckoutService) UpdateStatus(ctx context.Context, orderID int64, next domain.OrderStatus) (*domain.Order, error) {
	args := m.Called(ctx, orderID, next)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

// MockReviewService is a mock of ReviewService.
type MockReviewService struct {
	mock.Mock
}

func (m *MockReviewService) Submit(ctx context.Context, userID int64, slug string, in service.ReviewInput) (*domain.Review, error) {
	args := m.Called(ctx, userID, slug, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Review), args.Error(1)
}

// MockWishlistService is a mock of WishlistService.
type MockWishlistService struct {
	mock.Mock
}

func (m *MockWishlistService) Toggle(ctx context.Context, userID, productID int64) (*service.WishlistToggle, error) {
	args := m.Called(ctx, userID, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.WishlistToggle), args.Error(1)
}

func (m *MockWishlistService) List(ctx context.Context, userID int64) ([]service.ProductCard, error) {
	args := m.Called(ctx, userID)
	var cards []service.ProductCard
	if arg0 := args.Get(0); arg0 != nil {
		cards = arg0.([]service.ProductCard)
	}
	return cards, args.Error(1)
}

// MockAccountService is a mock of AccountService.
type MockAccountService struct {
	mock.Mock
}

func (m *MockAccountService) Register(ctx context.Context, in service.RegisterInput, sessionKey string) (*domain.User, error) {
	args := m.Called(ctx, in, sessionKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockAccountService) Login(ctx context.Context, username, password, sessionKey string) (*domain.User, error) {
	args := m.Called(ctx, username, password, sessionKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockAccountService) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

// testMocks bundles one mock per service.
type testMocks struct {
	catalog   *MockCatalogService
	carts     *MockCartService
	checkout  *MockCheckoutService
	reviews   *MockReviewService
	wishlists *MockWishlistService
	accounts  *MockAccountService
}

func newTestMocks() *testMocks {
	return &testMocks{
		catalog:   new(MockCatalogService),
		carts:     new(MockCartService),
		checkout:  new(MockCheckoutService),
		reviews:   new(MockReviewService),
		wishlists: new(MockWishlistService),
		accounts:  new(MockAccountService),
	}
}

func (m *testMocks) services() Services {
	return Services{
		Catalog:   m.catalog,
		Carts:     m.carts,
		Checkout:  m.checkout,
		Reviews:   m.reviews,
		Wishlists: m.wishlists,
		Accounts:  m.accounts,
	}
}

func (m *testMocks) assertExpectations(t mock.TestingT) {
	m.catalog.AssertExpectations(t)
	m.carts.AssertExpectations(t)
	m.checkout.AssertExpectations(t)
	m.reviews.AssertExpectations(t)
	m.wishlists.AssertExpectations(t)
	m.accounts.AssertExpectations(t)
}
