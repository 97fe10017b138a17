package order

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/storefront/internal/domain/product"
)

// Checkout outcomes reported on the checkout counter.
const (
	OutcomeCompleted         = "completed"
	OutcomeEmptyCart         = "empty_cart"
	OutcomeInsufficientStock = "insufficient_stock"
	OutcomeFailed            = "failed"
)

// Option configures a Service.
type Option func(*Service)

// WithTracerProvider sets the provider used for checkout spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer("storefront/order") }
}

// WithMeterProvider sets the provider used for checkout metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meter = mp.Meter("storefront/order") }
}

// Service implements checkout and order history.
type Service struct {
	store  Store
	tracer trace.Tracer
	meter  metric.Meter
	now    func() time.Time

	checkouts metric.Int64Counter
	duration  metric.Float64Histogram
}

// NewService creates an order Service.
func NewService(store Store, opts ...Option) (*Service, error) {
	s := &Service{
		store:  store,
		tracer: tracenoop.NewTracerProvider().Tracer("storefront/order"),
		meter:  metricnoop.NewMeterProvider().Meter("storefront/order"),
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}

	var err error
	s.checkouts, err = s.meter.Int64Counter("storefront.checkout.count",
		metric.WithDescription("Checkout attempts by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "checkout counter")
	}
	s.duration, err = s.meter.Float64Histogram("storefront.checkout.duration",
		metric.WithDescription("Checkout transaction duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "checkout histogram")
	}
	return s, nil
}

// Checkout converts the user's cart into a completed order. The order, its
// lines, the stock decrements, the cart clearing and the outbox event are
// committed together or not at all.
//
// Business failures are ErrEmptyCart and *product.InsufficientStockError.
// Anything else is wrapped in ErrCommitFailed and is safe to retry.
func (s *Service) Checkout(ctx context.Context, userID string) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.Checkout",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	start := s.now()
	o, err := s.checkout(ctx, userID)

	outcome := outcomeOf(err)
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	s.checkouts.Add(ctx, 1, attrs)
	s.duration.Record(ctx, s.now().Sub(start).Seconds(), attrs)

	if err != nil {
		span.RecordError(err)
		if outcome == OutcomeFailed {
			span.SetStatus(codes.Error, "checkout failed")
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("order.id", o.ID))
	return o, nil
}

func (s *Service) checkout(ctx context.Context, userID string) (*Order, error) {
	var created *Order
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		cartID, lines, err := tx.CartLines(ctx, userID)
		if err != nil {
			return fmt.Errorf("read cart: %w", err)
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}

		// Fail fast with the product name; the guarded decrement below is
		// what actually prevents overselling.
		for _, l := range lines {
			if l.Stock < l.Quantity {
				return &product.InsufficientStockError{ProductID: l.ProductID, Name: l.Name}
			}
		}

		o := newOrder(userID, lines, s.now())
		if err := tx.InsertOrder(ctx, o); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for _, l := range lockOrder(lines) {
			ok, err := tx.DecrementStock(ctx, l.ProductID, l.Quantity)
			if err != nil {
				return fmt.Errorf("decrement stock of %s: %w", l.ProductID, err)
			}
			if !ok {
				return &product.InsufficientStockError{ProductID: l.ProductID, Name: l.Name}
			}
		}

		if err := tx.ClearCart(ctx, cartID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		if err := tx.Enqueue(ctx, completedEvent(o)); err != nil {
			return fmt.Errorf("enqueue event: %w", err)
		}

		created = o
		return nil
	})
	if err != nil {
		if isBusinessError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrCommitFailed, err)
	}
	return created, nil
}

// lockOrder returns a copy of lines sorted by product id, so concurrent
// checkouts of overlapping carts lock product rows in the same order.
func lockOrder(lines []Line) []Line {
	sorted := slices.Clone(lines)
	slices.SortFunc(sorted, func(a, b Line) int { return strings.Compare(a.ProductID, b.ProductID) })
	return sorted
}

// History returns the user's orders, newest first, with current product
// rows attached to each line.
func (s *Service) History(ctx context.Context, userID string) ([]Order, error) {
	orders, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if orders == nil {
		orders = []Order{}
	}
	return orders, nil
}

func newOrder(userID string, lines []Line, now time.Time) *Order {
	items := make([]Item, len(lines))
	total := decimal.Zero
	for i, l := range lines {
		items[i] = Item{
			ID:        uuid.New().String(),
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Price:     l.Price,
		}
		total = total.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return &Order{
		ID:        uuid.New().String(),
		UserID:    userID,
		Total:     total.Round(2),
		Status:    StatusCompleted,
		CreatedAt: now.UTC(),
		Items:     items,
	}
}

func isBusinessError(err error) bool {
	var stockErr *product.InsufficientStockError
	return errors.Is(err, ErrEmptyCart) || errors.As(err, &stockErr)
}

func outcomeOf(err error) string {
	var stockErr *product.InsufficientStockError
	switch {
	case err == nil:
		return OutcomeCompleted
	case errors.Is(err, ErrEmptyCart):
		return OutcomeEmptyCart
	case errors.As(err, &stockErr):
		return OutcomeInsufficientStock
	default:
		return OutcomeFailed
	}
}
