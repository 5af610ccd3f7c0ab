package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"solar-store-service/internal/domain"
	"solar-store-service/internal/store"
)

// fakeStore is an in-memory implementation of every storer interface. Each
// method holds the lock for its whole duration, which gives PlaceOrder and
// MergeCarts the all-or-nothing behaviour of the database transactions.
type fakeStore struct {
	mu sync.Mutex

	nextID     int64
	categories map[int64]*domain.Category
	products   map[int64]*domain.Product
	carts      map[int64]*domain.Cart
	cartItems  map[int64]*domain.CartItem
	addresses  map[int64]*domain.ShippingAddress
	orders     map[int64]*domain.Order
	reviews    []domain.Review
	users      map[int64]*domain.User
	wishlists  map[int64][]int64 // user id -> product ids, newest first
	orderCount map[int64]int     // product id -> units ordered
}

var (
	_ store.CategoryStorer = (*fakeStore)(nil)
	_ store.ProductStorer  = (*fakeStore)(nil)
	_ store.CartStorer     = (*fakeStore)(nil)
	_ store.OrderStorer    = (*fakeStore)(nil)
	_ store.ReviewStorer   = (*fakeStore)(nil)
	_ store.WishlistStorer = (*fakeStore)(nil)
	_ store.UserStorer     = (*fakeStore)(nil)
)

func newFakeStore() *fakeStore {
	return &fakeStore{
		categories: map[int64]*domain.Category{},
		products:   map[int64]*domain.Product{},
		carts:      map[int64]*domain.Cart{},
		cartItems:  map[int64]*domain.CartItem{},
		addresses:  map[int64]*domain.ShippingAddress{},
		orders:     map[int64]*domain.Order{},
		users:      map[int64]*domain.User{},
		wishlists:  map[int64][]int64{},
		orderCount: map[int64]int{},
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

// addProduct seeds a product and returns its id.
func (f *fakeStore) addProduct(name, price string, stock int) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &domain.Product{
		ID:        f.id(),
		Name:      name,
		Slug:      domain.Slugify(name),
		Price:     decimal.RequireFromString(price),
		PanelType: domain.PanelMono,
		Wattage:   400,
		Stock:     stock,
		CreatedAt: time.Now(),
	}
	f.products[p.ID] = p
	return p.ID
}

func (f *fakeStore) stockOf(productID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[productID].Stock
}

func (f *fakeStore) setStock(productID int64, stock int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products[productID].Stock = stock
}

func (f *fakeStore) orderTotal() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

func (f *fakeStore) hasSessionCart(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.findCart(domain.SessionOwner(key))
	return ok
}

// --- categories ---

func (f *fakeStore) CreateCategory(_ context.Context, c *domain.Category) (*domain.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.categories {
		if existing.Slug == c.Slug {
			return nil, store.ErrSlugExists
		}
	}
	created := *c
	created.ID = f.id()
	f.categories[created.ID] = &created
	return &created, nil
}

func (f *fakeStore) GetCategoryBySlug(_ context.Context, slug string) (*domain.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.categories {
		if c.Slug == slug {
			found := *c
			return &found, nil
		}
	}
	return nil, store.ErrCategoryNotFound
}

func (f *fakeStore) ListCategories(_ context.Context, params store.ListCategoriesParams) ([]domain.Category, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := make([]domain.Category, 0, len(f.categories))
	for _, c := range f.categories {
		all = append(all, *c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return window(all, params.Offset, params.Limit), len(all), nil
}

// --- products ---

func (f *fakeStore) CreateProduct(_ context.Context, p *domain.Product) (*domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.categories[p.CategoryID]; !ok && p.CategoryID != 0 {
		return nil, store.ErrCategoryNotFound
	}
	created := *p
	created.ID = f.id()
	f.products[created.ID] = &created
	return &created, nil
}

func (f *fakeStore) GetProductByID(_ context.Context, id int64) (*domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, store.ErrProductNotFound
	}
	found := *p
	return &found, nil
}

func (f *fakeStore) GetProductBySlug(_ context.Context, slug string) (*domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.products {
		if p.Slug == slug {
			found := *p
			return &found, nil
		}
	}
	return nil, store.ErrProductNotFound
}

func (f *fakeStore) ListProducts(_ context.Context, params store.ListProductsParams) ([]domain.Product, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []domain.Product
	for _, p := range f.products {
		if params.InStockOnly && p.Stock <= 0 {
			continue
		}
		if params.FeaturedOnly && !p.IsFeatured {
			continue
		}
		if params.CategoryID != nil && p.CategoryID != *params.CategoryID {
			continue
		}
		if params.CategorySlug != nil {
			c, ok := f.categories[p.CategoryID]
			if !ok || c.Slug != *params.CategorySlug {
				continue
			}
		}
		if params.ExcludeID != nil && p.ID == *params.ExcludeID {
			continue
		}
		if params.PanelType != nil && p.PanelType != *params.PanelType {
			continue
		}
		if params.MinPrice != nil && p.Price.LessThan(*params.MinPrice) {
			continue
		}
		if params.MaxPrice != nil && p.Price.GreaterThan(*params.MaxPrice) {
			continue
		}
		if params.SearchQuery != nil {
			q := strings.ToLower(*params.SearchQuery)
			hit := strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.Description), q)
			if params.SearchPanel && strings.Contains(string(p.PanelType), q) {
				hit = true
			}
			if !hit {
				continue
			}
		}
		matched = append(matched, *p)
	}
	switch params.SortBy {
	case store.SortPriceLow:
		sort.Slice(matched, func(i, j int) bool { return matched[i].Price.LessThan(matched[j].Price) })
	case store.SortNewest:
		sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	case store.SortPopular:
		sort.Slice(matched, func(i, j int) bool {
			return f.orderCount[matched[i].ID] > f.orderCount[matched[j].ID]
		})
	default:
		sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	}
	return window(matched, params.Offset, params.Limit), len(matched), nil
}

func (f *fakeStore) ListProductImages(_ context.Context, _ int64) ([]domain.ProductImage, error) {
	return []domain.ProductImage{}, nil
}

func window[T any](all []T, offset, limit int) []T {
	if offset >= len(all) {
		return []T{}
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end]
}

// --- carts ---

func (f *fakeStore) findCart(owner domain.CartOwner) (*domain.Cart, bool) {
	for _, c := range f.carts {
		if c.Owner() == owner {
			return c, true
		}
	}
	return nil, false
}

func (f *fakeStore) newCart(owner domain.CartOwner) *domain.Cart {
	c := &domain.Cart{ID: f.id(), CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if owner.IsUser() {
		uid := owner.UserID()
		c.UserID = &uid
	} else {
		key := owner.SessionKey()
		c.SessionKey = &key
	}
	f.carts[c.ID] = c
	return c
}

// loadCart returns a copy of the cart with its items and live products.
func (f *fakeStore) loadCart(c *domain.Cart) *domain.Cart {
	loaded := *c
	loaded.Items = []domain.CartItem{}
	for _, item := range f.cartItems {
		if item.CartID != c.ID {
			continue
		}
		line := *item
		product := *f.products[item.ProductID]
		line.Product = &product
		loaded.Items = append(loaded.Items, line)
	}
	sort.Slice(loaded.Items, func(i, j int) bool { return loaded.Items[i].ID > loaded.Items[j].ID })
	return &loaded
}

func (f *fakeStore) GetOrCreateCart(_ context.Context, owner domain.CartOwner) (*domain.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.findCart(owner)
	if !ok {
		c = f.newCart(owner)
	}
	return f.loadCart(c), nil
}

func (f *fakeStore) FindCart(_ context.Context, owner domain.CartOwner) (*domain.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.findCart(owner)
	if !ok {
		return nil, store.ErrCartNotFound
	}
	return f.loadCart(c), nil
}

func (f *fakeStore) GetCartItem(_ context.Context, itemID int64) (*domain.CartItem, *domain.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.cartItems[itemID]
	if !ok {
		return nil, nil, store.ErrCartItemNotFound
	}
	line := *item
	product := *f.products[item.ProductID]
	line.Product = &product
	cart := *f.carts[item.CartID]
	cart.Items = nil
	return &line, &cart, nil
}

func (f *fakeStore) AddCartItem(_ context.Context, cartID, productID int64, quantity, maxQuantity int) (*domain.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[productID]; !ok {
		return nil, store.ErrProductNotFound
	}
	for _, item := range f.cartItems {
		if item.CartID == cartID && item.ProductID == productID {
			if item.Quantity+quantity > maxQuantity {
				return nil, store.ErrQuantityExceeded
			}
			item.Quantity += quantity
			line := *item
			return &line, nil
		}
	}
	if quantity > maxQuantity {
		return nil, store.ErrQuantityExceeded
	}
	item := &domain.CartItem{ID: f.id(), CartID: cartID, ProductID: productID, Quantity: quantity, AddedAt: time.Now()}
	f.cartItems[item.ID] = item
	line := *item
	return &line, nil
}

func (f *fakeStore) SetCartItemQuantity(_ context.Context, itemID int64, quantity int) (*domain.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.cartItems[itemID]
	if !ok {
		return nil, store.ErrCartItemNotFound
	}
	item.Quantity = quantity
	line := *item
	return &line, nil
}

func (f *fakeStore) DeleteCartItem(_ context.Context, itemID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.cartItems[itemID]; !ok {
		return store.ErrCartItemNotFound
	}
	delete(f.cartItems, itemID)
	return nil
}

func (f *fakeStore) MergeCarts(_ context.Context, sessionKey string, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	anon, ok := f.findCart(domain.SessionOwner(sessionKey))
	if !ok {
		return store.ErrCartNotFound
	}
	target, ok := f.findCart(domain.UserOwner(userID))
	if !ok {
		target = f.newCart(domain.UserOwner(userID))
	}
	for id, item := range f.cartItems {
		if item.CartID != anon.ID {
			continue
		}
		merged := false
		for _, existing := range f.cartItems {
			if existing.CartID == target.ID && existing.ProductID == item.ProductID {
				existing.Quantity += item.Quantity
				merged = true
				break
			}
		}
		if merged {
			delete(f.cartItems, id)
		} else {
			item.CartID = target.ID
		}
	}
	delete(f.carts, anon.ID)
	return nil
}

// --- orders ---

func (f *fakeStore) DefaultShippingAddress(_ context.Context, userID int64) (*domain.ShippingAddress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.addresses {
		if a.UserID == userID && a.IsDefault {
			found := *a
			return &found, nil
		}
	}
	return nil, store.ErrAddressNotFound
}

func (f *fakeStore) PlaceOrder(_ context.Context, params store.PlaceOrderParams) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var address domain.ShippingAddress
	switch {
	case params.Address != nil:
		address = *params.Address
		address.ID = 0
	default:
		a, ok := f.addresses[params.AddressID]
		if !ok || a.UserID != params.UserID {
			return nil, store.ErrAddressNotFound
		}
		address = *a
	}

	cart := f.loadCart(f.carts[params.CartID])
	if cart.IsEmpty() {
		return nil, store.ErrCartEmpty
	}
	for _, item := range cart.Items {
		if item.Quantity > item.Product.Stock {
			return nil, &store.StockError{
				ProductID: item.ProductID, ProductName: item.Product.Name,
				Requested: item.Quantity, Available: item.Product.Stock,
			}
		}
	}

	// Every check passed: apply all writes.
	if address.ID == 0 {
		if address.IsDefault {
			for _, a := range f.addresses {
				if a.UserID == params.UserID {
					a.IsDefault = false
				}
			}
		}
		address.ID = f.id()
		address.UserID = params.UserID
		saved := address
		f.addresses[saved.ID] = &saved
	}
	order := &domain.Order{
		ID:                f.id(),
		UserID:            params.UserID,
		ShippingAddressID: address.ID,
		ShippingAddress:   &address,
		Status:            domain.OrderStatusPending,
		Total:             cart.TotalPrice(),
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	for _, item := range cart.Items {
		f.products[item.ProductID].Stock -= item.Quantity
		f.orderCount[item.ProductID] += item.Quantity
		order.Items = append(order.Items, domain.OrderItem{
			ID:          f.id(),
			OrderID:     order.ID,
			ProductID:   item.ProductID,
			ProductName: item.Product.Name,
			ProductSlug: item.Product.Slug,
			Quantity:    item.Quantity,
			Price:       item.Product.Price,
		})
		delete(f.cartItems, item.ID)
	}
	f.orders[order.ID] = order
	placed := *order
	return &placed, nil
}

func (f *fakeStore) ListOrders(_ context.Context, userID int64) ([]domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	orders := []domain.Order{}
	for _, o := range f.orders {
		if o.UserID == userID {
			orders = append(orders, *o)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID > orders[j].ID })
	return orders, nil
}

func (f *fakeStore) GetOrder(_ context.Context, orderID int64) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return nil, store.ErrOrderNotFound
	}
	found := *o
	return &found, nil
}

func (f *fakeStore) UpdateOrderStatus(_ context.Context, orderID int64, from, to domain.OrderStatus) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return nil, store.ErrOrderNotFound
	}
	if o.Status != from {
		return nil, store.ErrStatusConflict
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	updated := *o
	return &updated, nil
}

// --- reviews ---

func (f *fakeStore) CreateReview(_ context.Context, r *domain.Review) (*domain.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[r.ProductID]; !ok {
		return nil, store.ErrProductNotFound
	}
	for _, existing := range f.reviews {
		if existing.ProductID == r.ProductID && existing.UserID == r.UserID {
			return nil, store.ErrReviewExists
		}
	}
	created := *r
	created.ID = f.id()
	created.CreatedAt = time.Now()
	f.reviews = append(f.reviews, created)
	return &created, nil
}

func (f *fakeStore) ListReviews(_ context.Context, productID int64) ([]domain.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reviews := []domain.Review{}
	for i := len(f.reviews) - 1; i >= 0; i-- {
		if f.reviews[i].ProductID == productID {
			reviews = append(reviews, f.reviews[i])
		}
	}
	return reviews, nil
}

func (f *fakeStore) RatingSummary(_ context.Context, productID int64) (domain.RatingSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sum, n int
	for _, r := range f.reviews {
		if r.ProductID == productID {
			sum += r.Rating
			n++
		}
	}
	if n == 0 {
		return domain.RatingSummary{}, nil
	}
	return domain.RatingSummary{Average: float64(sum) / float64(n), Count: n}, nil
}

// --- wishlists ---

func (f *fakeStore) GetWishlist(_ context.Context, userID int64) (*domain.Wishlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := &domain.Wishlist{ID: userID, UserID: userID, Products: []domain.Product{}}
	for _, id := range f.wishlists[userID] {
		w.Products = append(w.Products, *f.products[id])
	}
	return w, nil
}

func (f *fakeStore) ToggleWishlistProduct(_ context.Context, userID, productID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := f.wishlists[userID]
	for i, id := range ids {
		if id == productID {
			f.wishlists[userID] = append(ids[:i:i], ids[i+1:]...)
			return false, nil
		}
	}
	if _, ok := f.products[productID]; !ok {
		return false, store.ErrProductNotFound
	}
	f.wishlists[userID] = append([]int64{productID}, ids...)
	return true, nil
}

// --- users ---

func (f *fakeStore) CreateUser(_ context.Context, u *domain.User) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Username == u.Username {
			return nil, store.ErrUsernameExists
		}
	}
	created := *u
	created.ID = f.id()
	created.CreatedAt = time.Now()
	f.users[created.ID] = &created
	f.wishlists[created.ID] = nil
	return &created, nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id int64) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	found := *u
	return &found, nil
}

func (f *fakeStore) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			found := *u
			return &found, nil
		}
	}
	return nil, store.ErrUserNotFound
}
