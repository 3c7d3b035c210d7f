package service

import (
	"fmt"
	"sync"
	"time"

	"context"

	"github.com/rs/zerolog"

	"github.com/dukerupert/freyja/internal/breaker"
	"github.com/dukerupert/freyja/internal/domain"
	"github.com/dukerupert/freyja/internal/events"
	"github.com/dukerupert/freyja/internal/money"
	"github.com/dukerupert/freyja/internal/provider"
	"github.com/dukerupert/freyja/internal/repository"
)

// CartService owns cart and cart-item mutation, coupon application, and
// the guest-to-user merge procedure (§4.2).
type CartService struct {
	carts       repository.CartRepository
	pricing     provider.Pricing
	revalidator *Revalidator
	breakers    *breaker.Manager
	events      events.Publisher
	log         zerolog.Logger

	lockMu    sync.Mutex
	ownerLock map[string]*sync.Mutex
}

func NewCartService(carts repository.CartRepository, pricing provider.Pricing, revalidator *Revalidator, breakers *breaker.Manager, pub events.Publisher, log zerolog.Logger) *CartService {
	return &CartService{
		carts:       carts,
		pricing:     pricing,
		revalidator: revalidator,
		breakers:    breakers,
		events:      pub,
		log:         log.With().Str("component", "cart_service").Logger(),
		ownerLock:   make(map[string]*sync.Mutex),
	}
}

// lockFor returns the mutex guarding owner, creating it on first use.
// Per §4.2/§5, the guest-to-user merge acquires this across both carts
// involved so concurrent merges for the same pair serialize.
func (s *CartService) lockFor(owner string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	m, ok := s.ownerLock[owner]
	if !ok {
		m = &sync.Mutex{}
		s.ownerLock[owner] = m
	}
	return m
}

func (s *CartService) publish(ctx context.Context, e events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, e); err != nil {
		s.log.Warn().Err(err).Str("event_type", e.Type).Msg("failed to publish cart event")
	}
}

// GetOrCreateCart returns the owner's active cart, creating one if none
// exists.
func (s *CartService) GetOrCreateCart(ctx context.Context, ownerType domain.CartOwnerType, ownerID string) (*domain.Cart, error) {
	var (
		cart *domain.Cart
		err  error
	)
	switch ownerType {
	case domain.OwnerRegistered:
		cart, err = s.carts.GetActiveByUser(ctx, ownerID)
	case domain.OwnerGuest:
		cart, err = s.carts.GetActiveBySession(ctx, ownerID)
	default:
		return nil, domain.Invalid("cart.GetOrCreateCart", "unknown cart owner type")
	}
	if err == nil {
		return cart, nil
	}
	if !domain.IsCode(err, domain.ENOTFOUND) {
		return nil, fmt.Errorf("cart.GetOrCreateCart: %w", err)
	}

	cart = &domain.Cart{ID: domain.NewID(), OwnerType: ownerType, Status: domain.CartActive}
	if ownerType == domain.OwnerRegistered {
		cart.UserID = ownerID
	} else {
		cart.SessionID = ownerID
	}
	now := time.Now()
	cart.CreatedAt, cart.UpdatedAt = now, now
	if err := s.carts.Create(ctx, cart); err != nil {
		return nil, fmt.Errorf("cart.GetOrCreateCart: create: %w", err)
	}
	return cart, nil
}

// AddItem coalesces into an existing (variantId, bundleId) line when
// present, otherwise inserts a freshly priced line (§4.2).
func (s *CartService) AddItem(ctx context.Context, cartID, productID, variantID, bundleID string, quantity int) (*domain.Cart, error) {
	if quantity < 1 {
		return nil, domain.ErrInvalidQuantity
	}

	cart, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if cart.Status != domain.CartActive {
		return nil, domain.ErrCartNotActive
	}

	items, err := s.carts.ListItems(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("cart.AddItem: list items: %w", err)
	}

	key := variantID + "|" + bundleID
	var existing *domain.CartItem
	for i := range items {
		if items[i].Key() == key {
			existing = &items[i]
			break
		}
	}

	now := time.Now()
	if existing != nil {
		newQty := existing.Quantity + quantity
		if newQty > domain.MaxLineQuantity {
			return nil, domain.ErrLineQuantityCap
		}
		if totalQuantity(items)-existing.Quantity+newQty > domain.MaxCartItems {
			return nil, domain.ErrCartItemCapReached
		}
		existing.Quantity = newQty
		existing.RecomputeLineTotal()
		existing.UpdatedAt = now
		if err := s.carts.UpsertItem(ctx, existing); err != nil {
			return nil, fmt.Errorf("cart.AddItem: upsert: %w", err)
		}
	} else {
		if quantity > domain.MaxLineQuantity {
			return nil, domain.ErrLineQuantityCap
		}
		if totalQuantity(items)+quantity > domain.MaxCartItems {
			return nil, domain.ErrCartItemCapReached
		}

		quote, err := s.quoteOne(ctx, productID, variantID)
		if err != nil {
			return nil, err
		}

		item := &domain.CartItem{
			ID: domain.NewID(), CartID: cartID, ProductID: productID, VariantID: variantID, BundleID: bundleID,
			Quantity:  quantity,
			UnitPrice: quote.UnitPrice, UnitMRP: quote.UnitMRP,
			PriceSnapshot: domain.PriceSnapshot{UnitPrice: quote.UnitPrice, UnitMRP: quote.UnitMRP, CapturedAt: now, DiscountPercent: quote.DiscountPercent},
			Timestamps:    domain.Timestamps{CreatedAt: now, UpdatedAt: now},
		}
		item.RecomputeLineTotal()
		if err := s.carts.UpsertItem(ctx, item); err != nil {
			return nil, fmt.Errorf("cart.AddItem: insert: %w", err)
		}
	}

	if err := s.recompute(ctx, cart); err != nil {
		return nil, err
	}
	s.publish(ctx, events.NewCartEvent(events.EventCartItemAdded, cart.ID, map[string]any{"variantId": variantID, "quantity": quantity}))
	return cart, nil
}

func (s *CartService) quoteOne(ctx context.Context, productID, variantID string) (provider.PriceQuote, error) {
	var quotes map[string]provider.PriceQuote
	err := s.breakers.Do(breaker.Pricing, func() error {
		var doErr error
		quotes, doErr = s.pricing.GetPrices(ctx, []provider.PriceLookup{{ProductID: productID, VariantID: variantID}})
		return doErr
	})
	if err != nil {
		return provider.PriceQuote{}, domain.Unavailable("cart.quoteOne", "pricing service unavailable", err)
	}
	quote, ok := quotes[variantID]
	if !ok || !quote.Available {
		return provider.PriceQuote{}, domain.Invalid("cart.quoteOne", "item is not currently purchasable")
	}
	return quote, nil
}

// UpdateQuantity sets a line's quantity directly, enforcing the per-line
// and global caps against the cart's other lines.
func (s *CartService) UpdateQuantity(ctx context.Context, cartID, itemID string, quantity int) (*domain.Cart, error) {
	if quantity < 1 {
		return nil, domain.ErrInvalidQuantity
	}
	if quantity > domain.MaxLineQuantity {
		return nil, domain.ErrLineQuantityCap
	}

	cart, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}

	items, err := s.carts.ListItems(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("cart.UpdateQuantity: %w", err)
	}

	var target *domain.CartItem
	othersQty := 0
	for i := range items {
		if items[i].ID == itemID {
			target = &items[i]
		} else {
			othersQty += items[i].Quantity
		}
	}
	if target == nil {
		return nil, domain.ErrCartItemNotFound
	}
	if othersQty+quantity > domain.MaxCartItems {
		return nil, domain.ErrCartItemCapReached
	}

	target.Quantity = quantity
	target.RecomputeLineTotal()
	target.UpdatedAt = time.Now()
	if err := s.carts.UpsertItem(ctx, target); err != nil {
		return nil, fmt.Errorf("cart.UpdateQuantity: %w", err)
	}

	if err := s.recompute(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// RemoveItem deletes a single line and recomputes totals.
func (s *CartService) RemoveItem(ctx context.Context, cartID, itemID string) (*domain.Cart, error) {
	cart, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if err := s.carts.DeleteItem(ctx, cartID, itemID); err != nil {
		return nil, fmt.Errorf("cart.RemoveItem: %w", err)
	}
	if err := s.recompute(ctx, cart); err != nil {
		return nil, err
	}
	s.publish(ctx, events.NewCartEvent(events.EventCartItemRemoved, cart.ID, map[string]any{"itemId": itemID}))
	return cart, nil
}

// Clear removes every line from the cart.
func (s *CartService) Clear(ctx context.Context, cartID string) (*domain.Cart, error) {
	cart, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	items, err := s.carts.ListItems(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("cart.Clear: list items: %w", err)
	}
	for _, it := range items {
		if err := s.carts.DeleteItem(ctx, cartID, it.ID); err != nil {
			return nil, fmt.Errorf("cart.Clear: %w", err)
		}
	}
	if err := s.recompute(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// ApplyCoupon records a pre-validated coupon against the cart. Its
// discountAmount is trusted as supplied, here and at checkout entry; it
// is not re-derived against any coupon engine.
func (s *CartService) ApplyCoupon(ctx context.Context, cartID string, coupon domain.AppliedCoupon) (*domain.Cart, error) {
	cart, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	for _, c := range cart.AppliedCoupons {
		if c.Code == coupon.Code {
			return nil, domain.ErrCouponAlreadyApplied
		}
	}
	cart.AppliedCoupons = append(cart.AppliedCoupons, coupon)
	if err := s.recompute(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// recompute reloads items, recomputes cart totals, and persists the cart.
func (s *CartService) recompute(ctx context.Context, cart *domain.Cart) error {
	items, err := s.carts.ListItems(ctx, cart.ID)
	if err != nil {
		return fmt.Errorf("cart.recompute: list items: %w", err)
	}
	recomputeTotals(cart, items)
	cart.UpdatedAt = time.Now()
	if err := s.carts.Update(ctx, cart); err != nil {
		return fmt.Errorf("cart.recompute: update: %w", err)
	}
	return nil
}

func totalQuantity(items []domain.CartItem) int {
	total := 0
	for _, it := range items {
		total += it.Quantity
	}
	return total
}

// recomputeTotals derives cart.Subtotal/DiscountTotal/ItemCount/GrandTotal
// from items and applied coupons (§4.2, invariant 1 of §8).
func recomputeTotals(cart *domain.Cart, items []domain.CartItem) {
	var subtotal money.Amount
	count := 0
	for _, it := range items {
		subtotal += it.LineTotal
		count += it.Quantity
	}
	var discount money.Amount
	for _, c := range cart.AppliedCoupons {
		discount += c.DiscountAmount
	}
	cart.Subtotal = subtotal
	cart.DiscountTotal = discount
	cart.ItemCount = count
	cart.GrandTotal = (subtotal - discount + cart.ShippingTotal + cart.TaxTotal).NonNegative()
}

// MergeGuestIntoUser folds a guest cart into a user's cart on login
// (§4.2). A per-owner mutex pair serializes concurrent merges for the
// same (guest, user) so the procedure behaves as a single atomic step
// even though it spans multiple row writes with no cross-aggregate
// transaction.
func (s *CartService) MergeGuestIntoUser(ctx context.Context, guestSessionID, userID string) (*domain.Cart, error) {
	first, second := guestSessionID, userID
	if first > second {
		first, second = second, first
	}
	l1 := s.lockFor(first)
	l1.Lock()
	defer l1.Unlock()
	if l2 := s.lockFor(second); l2 != l1 {
		l2.Lock()
		defer l2.Unlock()
	}

	guestCart, err := s.carts.GetActiveBySession(ctx, guestSessionID)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return nil, nil // nothing to merge
		}
		return nil, fmt.Errorf("cart.MergeGuestIntoUser: get guest cart: %w", err)
	}

	userCart, err := s.carts.GetActiveByUser(ctx, userID)
	if err != nil && !domain.IsCode(err, domain.ENOTFOUND) {
		return nil, fmt.Errorf("cart.MergeGuestIntoUser: get user cart: %w", err)
	}

	if userCart == nil {
		guestCart.OwnerType = domain.OwnerRegistered
		guestCart.UserID = userID
		guestCart.SessionID = ""
		guestCart.UpdatedAt = time.Now()
		if err := s.carts.Update(ctx, guestCart); err != nil {
			return nil, fmt.Errorf("cart.MergeGuestIntoUser: reparent: %w", err)
		}
		s.publish(ctx, events.NewCartEvent(events.EventCartMerged, guestCart.ID, map[string]any{"reparented": true}))
		return guestCart, nil
	}

	guestItems, err := s.carts.ListItems(ctx, guestCart.ID)
	if err != nil {
		return nil, fmt.Errorf("cart.MergeGuestIntoUser: list guest items: %w", err)
	}
	userItems, err := s.carts.ListItems(ctx, userCart.ID)
	if err != nil {
		return nil, fmt.Errorf("cart.MergeGuestIntoUser: list user items: %w", err)
	}

	byKey := make(map[string]*domain.CartItem, len(userItems))
	for i := range userItems {
		byKey[userItems[i].Key()] = &userItems[i]
	}

	// Every upsert and the guest cart's removal commit in a single
	// transaction (CartRepository.MergeItems) so a crash between lines
	// can never leave the retry to double-count an already-applied
	// quantity bump (§4.2/§8 idempotence).
	now := time.Now()
	upserts := make([]domain.CartItem, 0, len(guestItems))
	for _, guestItem := range guestItems {
		if existing, ok := byKey[guestItem.Key()]; ok {
			existing.Quantity += guestItem.Quantity
			if guestItem.PriceSnapshot.CapturedAt.After(existing.PriceSnapshot.CapturedAt) {
				existing.UnitPrice = guestItem.UnitPrice
				existing.UnitMRP = guestItem.UnitMRP
				existing.LineDiscount = guestItem.LineDiscount
				existing.PriceSnapshot = guestItem.PriceSnapshot
				existing.ProductStatus = guestItem.ProductStatus
			}
			existing.RecomputeLineTotal()
			existing.UpdatedAt = now
			upserts = append(upserts, *existing)
			continue
		}
		moved := guestItem
		moved.ID = domain.NewID()
		moved.CartID = userCart.ID
		moved.UpdatedAt = now
		upserts = append(upserts, moved)
	}

	if err := s.carts.MergeItems(ctx, upserts, guestCart.ID); err != nil {
		return nil, fmt.Errorf("cart.MergeGuestIntoUser: %w", err)
	}

	if err := s.recompute(ctx, userCart); err != nil {
		return nil, err
	}
	s.publish(ctx, events.NewCartEvent(events.EventCartMerged, userCart.ID, map[string]any{"guestCartId": guestCart.ID}))
	return userCart, nil
}

// MarkStaleAbandoned flips every active cart untouched since olderThan
// to abandoned, for the scheduled cart-cleanup sweep (§6).
func (s *CartService) MarkStaleAbandoned(ctx context.Context, olderThan time.Time) (int, error) {
	carts, err := s.carts.ListExpired(ctx, olderThan)
	if err != nil {
		return 0, fmt.Errorf("cart.MarkStaleAbandoned: %w", err)
	}
	count := 0
	for i := range carts {
		c := &carts[i]
		c.Status = domain.CartAbandoned
		c.UpdatedAt = time.Now()
		if err := s.carts.Update(ctx, c); err != nil {
			s.log.Error().Err(err).Str("cart_id", c.ID).Msg("failed to mark cart abandoned")
			continue
		}
		s.publish(ctx, events.NewCartEvent(events.EventCartAbandoned, c.ID, nil))
		count++
	}
	return count, nil
}

// PurgeAbandoned hard-deletes abandoned carts untouched since olderThan,
// for the scheduled cart-cleanup sweep (§6).
func (s *CartService) PurgeAbandoned(ctx context.Context, olderThan time.Time) (int, error) {
	carts, err := s.carts.ListAbandonedOlderThan(ctx, olderThan)
	if err != nil {
		return 0, fmt.Errorf("cart.PurgeAbandoned: %w", err)
	}
	count := 0
	for _, c := range carts {
		if err := s.carts.Delete(ctx, c.ID); err != nil {
			s.log.Error().Err(err).Str("cart_id", c.ID).Msg("failed to purge abandoned cart")
			continue
		}
		count++
	}
	return count, nil
}

// NotifyAbandonedCandidates sends the abandoned-cart reminder to every
// active, non-empty cart that has gone quiet since inactiveSince and
// hasn't been reminded yet, then marks it sent so the next sweep skips
// it.
func (s *CartService) NotifyAbandonedCandidates(ctx context.Context, inactiveSince time.Time, notify provider.Notification) (int, error) {
	carts, err := s.carts.ListAbandonedCandidates(ctx, inactiveSince)
	if err != nil {
		return 0, fmt.Errorf("cart.NotifyAbandonedCandidates: %w", err)
	}
	count := 0
	for i := range carts {
		c := &carts[i]
		owner := c.UserID
		if owner == "" {
			owner = c.SessionID
		}
		if notify != nil {
			if err := notify.Send(ctx, provider.NotificationRequest{
				UserID: owner, Template: "cart_abandoned_reminder",
				Data: map[string]any{"cartId": c.ID, "itemCount": c.ItemCount},
			}); err != nil {
				s.log.Warn().Err(err).Str("cart_id", c.ID).Msg("failed to send abandoned cart reminder")
				continue
			}
		}
		c.ReminderSent = true
		c.ReminderSentAt = time.Now()
		c.UpdatedAt = c.ReminderSentAt
		if err := s.carts.Update(ctx, c); err != nil {
			s.log.Error().Err(err).Str("cart_id", c.ID).Msg("failed to record reminder sent")
			continue
		}
		count++
	}
	return count, nil
}

// RevalidateActiveCarts runs §4.1's revalidation pass over every active
// cart's lines, persisting any detected price drift and stamping
// productStatus.lastCheckedAt, for the scheduled cart-item-validation
// worker (§4.6). A collaborator failure on one cart is logged and
// skipped rather than aborting the whole sweep.
func (s *CartService) RevalidateActiveCarts(ctx context.Context) (int, error) {
	carts, err := s.carts.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("cart.RevalidateActiveCarts: %w", err)
	}

	count := 0
	for i := range carts {
		c := &carts[i]
		items, err := s.carts.ListItems(ctx, c.ID)
		if err != nil {
			s.log.Error().Err(err).Str("cart_id", c.ID).Msg("failed to list items for revalidation")
			continue
		}
		if len(items) == 0 {
			continue
		}

		result, revalidated, err := s.revalidator.Revalidate(ctx, items)
		if err != nil {
			s.log.Warn().Err(err).Str("cart_id", c.ID).Msg("failed to revalidate cart")
			continue
		}

		for j := range revalidated {
			if err := s.carts.UpsertItem(ctx, &revalidated[j]); err != nil {
				s.log.Error().Err(err).Str("cart_id", c.ID).Str("item_id", revalidated[j].ID).Msg("failed to persist revalidated item")
			}
		}
		if err := s.recompute(ctx, c); err != nil {
			s.log.Error().Err(err).Str("cart_id", c.ID).Msg("failed to recompute cart after revalidation")
		}
		if len(result.PriceChanges) > 0 || len(result.Unavailable) > 0 {
			s.publish(ctx, events.NewCartEvent(events.EventCartRevalidated, c.ID, map[string]any{
				"priceChanges": len(result.PriceChanges), "unavailable": len(result.Unavailable),
			}))
		}
		count++
	}
	return count, nil
}
