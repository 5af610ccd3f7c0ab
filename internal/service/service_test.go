package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"solar-store-service/internal/auth"
	"solar-store-service/internal/domain"
	"solar-store-service/internal/notify"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.OrderConfirmation
	err  error
}

func (n *recordingNotifier) OrderPlaced(_ context.Context, c notify.OrderConfirmation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, c)
	return n.err
}

type memoryCache struct {
	data map[string][]byte
	gets int
	hits int
}

func (c *memoryCache) Get(_ context.Context, key string, dest any) (bool, error) {
	c.gets++
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	c.hits++
	return true, json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(_ context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = raw
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	delete(c.data, key)
	return nil
}

type testServices struct {
	store    *fakeStore
	notifier *recordingNotifier
	cache    *memoryCache
	catalog  *CatalogService
	carts    *CartService
	checkout *CheckoutService
	reviews  *ReviewService
	wishlist *WishlistService
	accounts *AccountService
}

func newTestServices(t *testing.T) *testServices {
	t.Helper()
	fs := newFakeStore()
	logger := zerolog.Nop()
	notifier := &recordingNotifier{}
	cache := &memoryCache{data: map[string][]byte{}}
	carts := NewCartService(fs, fs, logger)
	return &testServices{
		store:    fs,
		notifier: notifier,
		cache:    cache,
		catalog:  NewCatalogService(fs, fs, fs, cache, logger, CatalogOptions{PageSize: 2, FilterAPICap: 3}),
		carts:    carts,
		checkout: NewCheckoutService(fs, fs, fs, notifier, cache, logger),
		reviews:  NewReviewService(fs, fs, logger),
		wishlist: NewWishlistService(fs, logger),
		accounts: NewAccountService(fs, auth.NewPasswordHasher(bcrypt.MinCost), carts, logger),
	}
}

func newAddress() *domain.ShippingAddress {
	return &domain.ShippingAddress{
		FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Phone: "555-0100",
		AddressLine1: "1 Sun Street", City: "Austin", State: "TX", PostalCode: "73301",
		Country: "United States", IsDefault: true,
	}
}

func quantities(view *CartView) map[int64]int {
	out := map[int64]int{}
	for _, line := range view.Items {
		out[line.ProductID] = line.Quantity
	}
	return out
}

func TestCartService_AddSameProductTwiceIncrementsQuantity(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	owner := domain.SessionOwner("visitor-1")
	mono := s.store.addProduct("Mono 400W", "299.99", 5)

	_, err := s.carts.AddItem(ctx, owner, mono, 1)
	require.NoError(t, err)
	res, err := s.carts.AddItem(ctx, owner, mono, 1)
	require.NoError(t, err)

	require.Len(t, res.Cart.Items, 1)
	assert.Equal(t, 2, res.Cart.Items[0].Quantity)
	assert.Equal(t, "Added Mono 400W to cart", res.Message)
	assert.True(t, decimal.RequireFromString("599.98").Equal(res.Cart.Total))
}

func TestCartService_AddThenRemoveRoundTrip(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	owner := domain.UserOwner(1)
	mono := s.store.addProduct("Mono 400W", "299.99", 5)
	poly := s.store.addProduct("Poly 300W", "199.00", 5)

	_, err := s.carts.AddItem(ctx, owner, mono, 1)
	require.NoError(t, err)
	before, err := s.carts.View(ctx, owner)
	require.NoError(t, err)

	added, err := s.carts.AddItem(ctx, owner, poly, 1)
	require.NoError(t, err)
	var itemID int64
	for _, line := range added.Cart.Items {
		if line.ProductID == poly {
			itemID = line.ID
		}
	}
	removed, err := s.carts.RemoveItem(ctx, owner, itemID)
	require.NoError(t, err)

	assert.Equal(t, before.Count, removed.Cart.Count)
	assert.Equal(t, quantities(before), quantities(removed.Cart))
	assert.Equal(t, "Removed Poly 300W from cart", removed.Message)
}

func TestCartService_AddItemStockErrors(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	owner := domain.SessionOwner("visitor-1")
	soldOut := s.store.addProduct("Sold Out", "100.00", 0)
	scarce := s.store.addProduct("Scarce", "100.00", 2)

	_, err := s.carts.AddItem(ctx, owner, soldOut, 1)
	assert.True(t, domain.IsKind(err, domain.KindOutOfStock))
	assert.Equal(t, "This product is out of stock.", domain.MessageOf(err, ""))

	_, err = s.carts.AddItem(ctx, owner, scarce, 2)
	require.NoError(t, err)
	_, err = s.carts.AddItem(ctx, owner, scarce, 1)
	assert.True(t, domain.IsKind(err, domain.KindInsufficientStock))
	assert.Equal(t, "Not enough stock available.", domain.MessageOf(err, ""))

	_, err = s.carts.AddItem(ctx, owner, scarce, 0)
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	_, err = s.carts.AddItem(ctx, owner, 9999, 1)
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestCartService_MutationsRequireOwnership(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	owner := domain.SessionOwner("visitor-1")
	mono := s.store.addProduct("Mono 400W", "299.99", 5)

	res, err := s.carts.AddItem(ctx, owner, mono, 1)
	require.NoError(t, err)
	itemID := res.Cart.Items[0].ID

	for _, intruder := range []domain.CartOwner{domain.SessionOwner("visitor-2"), domain.UserOwner(7), {}} {
		_, err = s.carts.UpdateItem(ctx, intruder, itemID, 3)
		assert.True(t, domain.IsKind(err, domain.KindUnauthorized), "update by %v", intruder)
		assert.Equal(t, "Unauthorized", domain.MessageOf(err, ""))
		_, err = s.carts.RemoveItem(ctx, intruder, itemID)
		assert.True(t, domain.IsKind(err, domain.KindUnauthorized), "remove by %v", intruder)
	}

	view, err := s.carts.View(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Items[0].Quantity)
}

func TestCartService_UpdateItem(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	owner := domain.SessionOwner("visitor-1")
	mono := s.store.addProduct("Mono 400W", "100.00", 3)

	res, err := s.carts.AddItem(ctx, owner, mono, 1)
	require.NoError(t, err)
	itemID := res.Cart.Items[0].ID

	update, err := s.carts.UpdateItem(ctx, owner, itemID, 3)
	require.NoError(t, err)
	assert.True(t, update.Success)
	assert.True(t, decimal.NewFromInt(300).Equal(update.ItemTotal))
	assert.True(t, decimal.NewFromInt(300).Equal(update.Total))

	_, err = s.carts.UpdateItem(ctx, owner, itemID, 4)
	assert.True(t, domain.IsKind(err, domain.KindInsufficientStock))
	assert.Equal(t, "Only 3 items available", domain.MessageOf(err, ""))

	update, err = s.carts.UpdateItem(ctx, owner, itemID, 0)
	require.NoError(t, err)
	assert.True(t, update.Removed)
	assert.Empty(t, update.Cart.Items)
	assert.True(t, update.Total.IsZero())

	_, err = s.carts.UpdateItem(ctx, owner, itemID, 1)
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestCartService_SummaryAndWarnings(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	owner := domain.SessionOwner("visitor-1")

	summary, err := s.carts.Summary(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Count)
	assert.Equal(t, "$0.00", summary.FormattedTotal)
	assert.False(t, s.store.hasSessionCart("visitor-1"), "summary must not create a cart")

	mono := s.store.addProduct("Mono 400W", "100.50", 5)
	poly := s.store.addProduct("Poly 300W", "49.00", 5)
	_, err = s.carts.AddItem(ctx, owner, mono, 2)
	require.NoError(t, err)
	_, err = s.carts.AddItem(ctx, owner, poly, 1)
	require.NoError(t, err)

	summary, err = s.carts.Summary(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Count)
	assert.Equal(t, "$250.00", summary.FormattedTotal)

	s.store.setStock(mono, 1)
	view, err := s.carts.View(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, []string{"Only 1 of Mono 400W available"}, view.Warnings)
}

func TestCartService_MergeSessionCart(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	a := s.store.addProduct("Product A", "10.00", 10)
	b := s.store.addProduct("Product B", "20.00", 10)
	anon := domain.SessionOwner("visitor-1")
	user := domain.UserOwner(42)

	_, err := s.carts.AddItem(ctx, anon, a, 2)
	require.NoError(t, err)
	_, err = s.carts.AddItem(ctx, user, a, 1)
	require.NoError(t, err)
	_, err = s.carts.AddItem(ctx, user, b, 1)
	require.NoError(t, err)

	require.NoError(t, s.carts.MergeSessionCart(ctx, "visitor-1", 42))

	view, err := s.carts.View(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{a: 3, b: 1}, quantities(view))
	assert.False(t, s.store.hasSessionCart("visitor-1"))

	// Nothing left to merge.
	require.NoError(t, s.carts.MergeSessionCart(ctx, "visitor-1", 42))
}

func TestCartService_MergeCreatesUserCart(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	a := s.store.addProduct("Product A", "10.00", 1)

	_, err := s.carts.AddItem(ctx, domain.SessionOwner("visitor-1"), a, 1)
	require.NoError(t, err)
	require.NoError(t, s.carts.MergeSessionCart(ctx, "visitor-1", 9))

	view, err := s.carts.View(ctx, domain.UserOwner(9))
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{a: 1}, quantities(view))
}

func TestCheckoutService_PlaceOrder(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	user := domain.UserOwner(7)
	mono := s.store.addProduct("Mono 400W", "299.99", 10)
	bifacial := s.store.addProduct("Bifacial 550W", "450.00", 1)

	_, err := s.carts.AddItem(ctx, user, mono, 2)
	require.NoError(t, err)
	_, err = s.carts.AddItem(ctx, user, bifacial, 1)
	require.NoError(t, err)
	before, err := s.carts.View(ctx, user)
	require.NoError(t, err)

	order, err := s.checkout.PlaceOrder(ctx, 7, CheckoutRequest{Address: newAddress()})
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.True(t, before.Total.Equal(order.Total), "order total %s, cart total %s", order.Total, before.Total)
	require.Len(t, order.Items, 2)
	for _, item := range order.Items {
		assert.Equal(t, quantities(before)[item.ProductID], item.Quantity)
	}
	assert.Equal(t, 8, s.store.stockOf(mono))
	assert.Equal(t, 0, s.store.stockOf(bifacial))

	after, err := s.carts.View(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, after.Items)

	require.Len(t, s.notifier.sent, 1)
	assert.Equal(t, order.ID, s.notifier.sent[0].OrderID)
	assert.Equal(t, "Ada Lovelace", s.notifier.sent[0].Name)
	assert.Equal(t, 3, s.notifier.sent[0].ItemCount)

	view, err := s.checkout.Prepare(ctx, 7)
	assert.Nil(t, view)
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestCheckoutService_StockShortfallHasNoSideEffects(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	user := domain.UserOwner(7)
	mono := s.store.addProduct("Mono 400W", "299.99", 5)

	_, err := s.carts.AddItem(ctx, user, mono, 5)
	require.NoError(t, err)
	s.store.setStock(mono, 2)

	_, err = s.checkout.PlaceOrder(ctx, 7, CheckoutRequest{Address: newAddress()})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindStockUnavailable))
	assert.Equal(t, "Only 2 of Mono 400W available. Please update your cart.", domain.MessageOf(err, ""))

	assert.Equal(t, 0, s.store.orderTotal())
	assert.Equal(t, 2, s.store.stockOf(mono))
	view, err := s.carts.View(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 5, view.Items[0].Quantity)
	assert.Empty(t, s.notifier.sent)
}

func TestCheckoutService_EmptyCartAndMissingAddress(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	_, err := s.checkout.PlaceOrder(ctx, 7, CheckoutRequest{Address: newAddress()})
	assert.True(t, domain.IsKind(err, domain.KindValidation))
	assert.Equal(t, "Your cart is empty.", domain.MessageOf(err, ""))

	_, err = s.checkout.PlaceOrder(ctx, 7, CheckoutRequest{})
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	mono := s.store.addProduct("Mono 400W", "299.99", 5)
	_, err = s.carts.AddItem(ctx, domain.UserOwner(7), mono, 1)
	require.NoError(t, err)
	_, err = s.checkout.PlaceOrder(ctx, 7, CheckoutRequest{AddressID: 12345})
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestCheckoutService_NotificationFailureDoesNotFailOrder(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	s.notifier.err = errors.New("broker down")
	mono := s.store.addProduct("Mono 400W", "299.99", 5)

	_, err := s.carts.AddItem(ctx, domain.UserOwner(7), mono, 1)
	require.NoError(t, err)
	order, err := s.checkout.PlaceOrder(ctx, 7, CheckoutRequest{Address: newAddress()})

	require.NoError(t, err)
	assert.NotZero(t, order.ID)
	assert.Equal(t, 4, s.store.stockOf(mono))
}

func TestCheckoutService_ConcurrentCheckoutsNeverOversell(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	mono := s.store.addProduct("Mono 400W", "299.99", 3)

	const buyers = 5
	for uid := int64(1); uid <= buyers; uid++ {
		_, err := s.carts.AddItem(ctx, domain.UserOwner(uid), mono, 2)
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	placed := 0
	for uid := int64(1); uid <= buyers; uid++ {
		wg.Add(1)
		go func(uid int64) {
			defer wg.Done()
			_, err := s.checkout.PlaceOrder(ctx, uid, CheckoutRequest{Address: newAddress()})
			if err == nil {
				mu.Lock()
				placed++
				mu.Unlock()
				return
			}
			assert.True(t, domain.IsKind(err, domain.KindStockUnavailable), "unexpected error: %v", err)
		}(uid)
	}
	wg.Wait()

	assert.Equal(t, 1, placed)
	assert.Equal(t, 1, s.store.stockOf(mono))
	assert.GreaterOrEqual(t, s.store.stockOf(mono), 0)
}

func TestCheckoutService_PrepareAndOrders(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	mono := s.store.addProduct("Mono 400W", "299.99", 5)

	_, err := s.carts.AddItem(ctx, domain.UserOwner(7), mono, 1)
	require.NoError(t, err)
	view, err := s.checkout.Prepare(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, view.DefaultAddress)
	assert.Equal(t, 1, view.Cart.Count)

	order, err := s.checkout.PlaceOrder(ctx, 7, CheckoutRequest{Address: newAddress()})
	require.NoError(t, err)

	_, err = s.carts.AddItem(ctx, domain.UserOwner(7), mono, 1)
	require.NoError(t, err)
	view, err = s.checkout.Prepare(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, view.DefaultAddress)
	assert.Equal(t, order.ShippingAddressID, view.DefaultAddress.ID)

	orders, err := s.checkout.ListOrders(ctx, 7)
	require.NoError(t, err)
	require.Len(t, orders, 1)

	got, err := s.checkout.GetOrder(ctx, 7, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	_, err = s.checkout.GetOrder(ctx, 8, order.ID)
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestCheckoutService_UpdateStatus(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	mono := s.store.addProduct("Mono 400W", "299.99", 5)
	_, err := s.carts.AddItem(ctx, domain.UserOwner(7), mono, 1)
	require.NoError(t, err)
	order, err := s.checkout.PlaceOrder(ctx, 7, CheckoutRequest{Address: newAddress()})
	require.NoError(t, err)

	updated, err := s.checkout.UpdateStatus(ctx, order.ID, domain.OrderStatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProcessing, updated.Status)

	_, err = s.checkout.UpdateStatus(ctx, order.ID, domain.OrderStatusPending)
	assert.True(t, domain.IsKind(err, domain.KindConflict))

	_, err = s.checkout.UpdateStatus(ctx, order.ID, "lost")
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	_, err = s.checkout.UpdateStatus(ctx, 9999, domain.OrderStatusShipped)
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestReviewService_Submit(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	s.store.addProduct("Mono 400W", "299.99", 5)

	_, err := s.reviews.Submit(ctx, 0, "mono-400w", ReviewInput{Rating: 5, Comment: "Great"})
	assert.True(t, domain.IsKind(err, domain.KindUnauthenticated))
	assert.Equal(t, "Please login to submit a review.", domain.MessageOf(err, ""))

	for _, rating := range []int{0, 6} {
		_, err = s.reviews.Submit(ctx, 7, "mono-400w", ReviewInput{Rating: rating, Comment: "Great"})
		assert.True(t, domain.IsKind(err, domain.KindValidation), "rating %d", rating)
	}

	_, err = s.reviews.Submit(ctx, 7, "mono-400w", ReviewInput{Rating: 5})
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	review, err := s.reviews.Submit(ctx, 7, "mono-400w", ReviewInput{Rating: 5, Title: " Solid ", Comment: "Works well"})
	require.NoError(t, err)
	assert.Equal(t, "Solid", review.Title)

	_, err = s.reviews.Submit(ctx, 7, "mono-400w", ReviewInput{Rating: 4, Comment: "Again"})
	assert.True(t, domain.IsKind(err, domain.KindDuplicateReview))

	_, err = s.reviews.Submit(ctx, 7, "missing", ReviewInput{Rating: 4, Comment: "?"})
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestWishlistService_ToggleIsMembershipFlip(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	mono := s.store.addProduct("Mono 400W", "299.99", 5)

	res, err := s.wishlist.Toggle(ctx, 7, mono)
	require.NoError(t, err)
	assert.Equal(t, &WishlistToggle{Added: true, Message: "Added to wishlist"}, res)
	products, err := s.wishlist.List(ctx, 7)
	require.NoError(t, err)
	require.Len(t, products, 1)

	res, err = s.wishlist.Toggle(ctx, 7, mono)
	require.NoError(t, err)
	assert.Equal(t, &WishlistToggle{Added: false, Message: "Removed from wishlist"}, res)
	products, err = s.wishlist.List(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, products)

	_, err = s.wishlist.Toggle(ctx, 7, 9999)
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestAccountService_RegisterAndLoginMergeCart(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	a := s.store.addProduct("Product A", "10.00", 10)

	_, err := s.carts.AddItem(ctx, domain.SessionOwner("visitor-1"), a, 2)
	require.NoError(t, err)

	user, err := s.accounts.Register(ctx, RegisterInput{
		Username: "ada", Email: "ada@example.com", Password: "s3cretpass", PasswordConfirm: "s3cretpass",
	}, "visitor-1")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cretpass", user.PasswordHash)

	view, err := s.carts.View(ctx, domain.UserOwner(user.ID))
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{a: 2}, quantities(view))
	assert.False(t, s.store.hasSessionCart("visitor-1"))

	_, err = s.carts.AddItem(ctx, domain.SessionOwner("visitor-2"), a, 1)
	require.NoError(t, err)
	loggedIn, err := s.accounts.Login(ctx, "ada", "s3cretpass", "visitor-2")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)

	view, err = s.carts.View(ctx, domain.UserOwner(user.ID))
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{a: 3}, quantities(view))
}

func TestAccountService_GetUser(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	user, err := s.accounts.Register(ctx, RegisterInput{
		Username: "ada", Email: "ada@example.com", Password: "s3cretpass", PasswordConfirm: "s3cretpass",
	}, "")
	require.NoError(t, err)

	got, err := s.accounts.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", got.Email)

	_, err = s.accounts.GetUser(ctx, user.ID+100)
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestAccountService_Failures(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	valid := RegisterInput{Username: "ada", Email: "ada@example.com", Password: "s3cretpass", PasswordConfirm: "s3cretpass"}

	invalid := []RegisterInput{
		{Username: "ab", Email: valid.Email, Password: valid.Password, PasswordConfirm: valid.Password},
		{Username: "ada", Email: "not-an-email", Password: valid.Password, PasswordConfirm: valid.Password},
		{Username: "ada", Email: valid.Email, Password: "short", PasswordConfirm: "short"},
		{Username: "ada", Email: valid.Email, Password: valid.Password, PasswordConfirm: "different1"},
	}
	for _, in := range invalid {
		_, err := s.accounts.Register(ctx, in, "")
		assert.True(t, domain.IsKind(err, domain.KindValidation), "input %+v", in)
	}

	_, err := s.accounts.Register(ctx, valid, "")
	require.NoError(t, err)
	_, err = s.accounts.Register(ctx, valid, "")
	assert.True(t, domain.IsKind(err, domain.KindConflict))

	_, err = s.accounts.Login(ctx, "ada", "wrong-password", "")
	assert.True(t, domain.IsKind(err, domain.KindUnauthenticated))
	_, err = s.accounts.Login(ctx, "nobody", "s3cretpass", "")
	assert.True(t, domain.IsKind(err, domain.KindUnauthenticated))
}

func TestCatalogService_ListProductsClampsPage(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	s.store.addProduct("A Panel", "10.00", 1)
	s.store.addProduct("B Panel", "20.00", 1)
	s.store.addProduct("C Panel", "30.00", 1)
	s.store.addProduct("D Panel", "40.00", 0)

	page, err := s.catalog.ListProducts(ctx, ProductQuery{Page: 99})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 3, page.TotalCount)
	require.Len(t, page.Products, 1)
	assert.Equal(t, "C Panel", page.Products[0].Name)
	assert.True(t, page.HasPrevious)
	assert.False(t, page.HasNext)

	page, err = s.catalog.ListProducts(ctx, ProductQuery{Page: -1, Sort: "price_low"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, "A Panel", page.Products[0].Name)
}

func TestCatalogService_SearchAndFilter(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	for _, name := range []string{"Mono A", "Mono B", "Mono C", "Mono D"} {
		s.store.addProduct(name, "100.00", 2)
	}

	_, err := s.catalog.Search(ctx, "   ", 1)
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	results, err := s.catalog.Search(ctx, "mono", 1)
	require.NoError(t, err)
	assert.Equal(t, "mono", results.Query)
	assert.Equal(t, 4, results.TotalCount)

	cards, err := s.catalog.Filter(ctx, FilterQuery{})
	require.NoError(t, err)
	assert.Len(t, cards, 3)
	assert.Equal(t, domain.DefaultProductImage, cards[0].Image)
	assert.Equal(t, "/products/mono-a/", cards[0].URL)
}

func TestCatalogService_HomeIsCached(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	s.store.addProduct("Mono 400W", "299.99", 5)

	first, err := s.catalog.Home(ctx)
	require.NoError(t, err)
	require.Len(t, first.NewArrivals, 1)

	s.store.addProduct("Poly 300W", "199.00", 5)
	second, err := s.catalog.Home(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, s.cache.hits)
	assert.Len(t, second.NewArrivals, 1)
	assert.True(t, first.NewArrivals[0].Price.Equal(second.NewArrivals[0].Price))
}

func TestCheckoutService_PlaceOrderRefreshesHomeFeed(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	user := domain.UserOwner(7)
	last := s.store.addProduct("Bifacial 550W", "450.00", 1)

	warm, err := s.catalog.Home(ctx)
	require.NoError(t, err)
	require.Len(t, warm.NewArrivals, 1)

	_, err = s.carts.AddItem(ctx, user, last, 1)
	require.NoError(t, err)
	_, err = s.checkout.PlaceOrder(ctx, 7, CheckoutRequest{Address: newAddress()})
	require.NoError(t, err)
	require.Equal(t, 0, s.store.stockOf(last))

	home, err := s.catalog.Home(ctx)
	require.NoError(t, err)
	assert.Empty(t, home.NewArrivals, "sold out products leave the home feed")
	assert.Empty(t, home.BestSellers)
	assert.Equal(t, 0, s.cache.hits)
}

func TestCatalogService_ProductDetail(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	s.store.addProduct("Mono 400W", "300.00", 5)
	s.store.addProduct("Mono 450W", "320.00", 0)

	detail, err := s.catalog.ProductDetail(ctx, "mono-400w")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.75").Equal(detail.PricePerWatt))
	require.Len(t, detail.Related, 1, "related products include out of stock ones")
	assert.Equal(t, "Mono 450W", detail.Related[0].Name)
	assert.False(t, detail.Related[0].InStock)
	assert.Equal(t, "Monocrystalline", detail.Related[0].PanelLabel)
	assert.Equal(t, 0, detail.ReviewCount)

	_, err = s.catalog.ProductDetail(ctx, "missing")
	assert.True(t, domain.IsKind(err, domain.KindNotFound))

	_, err = s.catalog.CategoryPage(ctx, "missing", 1)
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestCatalogService_CheckAvailability(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	mono := s.store.addProduct("Mono 400W", "300.00", 2)

	shortages, err := s.catalog.CheckAvailability(ctx, []AvailabilityLine{{ProductID: mono, Quantity: 2}})
	require.NoError(t, err)
	assert.Empty(t, shortages)

	shortages, err = s.catalog.CheckAvailability(ctx, []AvailabilityLine{
		{ProductID: mono, Quantity: 3},
		{ProductID: 9999, Quantity: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, []Shortage{
		{ProductID: mono, Name: "Mono 400W", Requested: 3, Available: 2},
		{ProductID: 9999, Requested: 1},
	}, shortages)
}
