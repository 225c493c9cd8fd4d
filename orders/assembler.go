package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iMDK-cs/SmoothFLow-Store-sub001/cart"
	"github.com/iMDK-cs/SmoothFLow-Store-sub001/coupons"
	"github.com/iMDK-cs/SmoothFLow-Store-sub001/database"
	"github.com/iMDK-cs/SmoothFLow-Store-sub001/kafka"
	"github.com/iMDK-cs/SmoothFLow-Store-sub001/models"
)

// Assembler snapshots line items into an immutable order. Service validation,
// stock decrement, coupon consumption, order/items/tracking inserts and cart
// clearing commit as one transaction.
type Assembler struct {
	db       *sql.DB
	coupons  *coupons.Repo
	producer sarama.SyncProducer
	logger   *zap.Logger
}

func NewAssembler(db *sql.DB, couponRepo *coupons.Repo, producer sarama.SyncProducer, logger *zap.Logger) *Assembler {
	return &Assembler{db: db, coupons: couponRepo, producer: producer, logger: logger}
}

func (a *Assembler) CreateOrder(ctx context.Context, userID int, req models.CreateOrderRequest) (*models.Order, error) {
	if len(req.Items) == 0 {
		return nil, models.NewValidationError("order must contain at least one item")
	}
	for _, it := range req.Items {
		if it.Quantity < 1 {
			return nil, models.NewValidationError("invalid quantity for service %d", it.ServiceID)
		}
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	order := models.Order{
		UserID:        userID,
		Status:        models.OrderStatusReceived,
		PaymentStatus: models.PaymentStatusPending,
		Notes:         req.Notes,
		ScheduledDate: req.ScheduledDate,
	}

	// Authoritative revalidation: the row lock makes the availability check
	// and the stock decrement one atomic step, regardless of what the
	// metadata cache said while the item sat in the cart.
	for _, it := range req.Items {
		var title string
		var price float64
		var active, available bool
		var stock sql.NullInt64
		err := tx.QueryRowContext(ctx,
			`SELECT title, price, active, available, stock FROM services WHERE id = $1 FOR UPDATE`,
			it.ServiceID).Scan(&title, &price, &active, &available, &stock)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.NewValidationError("service %d does not exist", it.ServiceID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load service %d: %w", it.ServiceID, err)
		}
		if !active || !available {
			return nil, models.NewValidationError("service %q is not available", title)
		}
		if stock.Valid {
			if int64(it.Quantity) > stock.Int64 {
				return nil, &models.StockExceededError{ServiceTitle: title, Remaining: int(stock.Int64)}
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE services SET stock = stock - $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`,
				it.Quantity, it.ServiceID); err != nil {
				return nil, fmt.Errorf("failed to decrement stock for service %d: %w", it.ServiceID, err)
			}
		}

		unitPrice := price
		if it.OptionID != nil {
			err := tx.QueryRowContext(ctx,
				`SELECT price FROM service_options WHERE id = $1 AND service_id = $2`,
				*it.OptionID, it.ServiceID).Scan(&unitPrice)
			if errors.Is(err, sql.ErrNoRows) {
				return nil, models.NewValidationError("option %d does not belong to service %d", *it.OptionID, it.ServiceID)
			}
			if err != nil {
				return nil, fmt.Errorf("failed to load option %d: %w", *it.OptionID, err)
			}
		}

		lineTotal := coupons.RoundMoney(unitPrice * float64(it.Quantity))
		order.Items = append(order.Items, models.OrderItem{
			ServiceID:  it.ServiceID,
			OptionID:   it.OptionID,
			Quantity:   it.Quantity,
			UnitPrice:  unitPrice,
			TotalPrice: lineTotal,
			Notes:      it.Notes,
		})
		order.TotalAmount += lineTotal
	}
	order.TotalAmount = coupons.RoundMoney(order.TotalAmount)

	if req.CouponCode != "" {
		coupon, result, err := a.coupons.ApplyTx(ctx, tx, req.CouponCode, order.TotalAmount, time.Now())
		if err != nil {
			return nil, err
		}
		order.CouponID = &coupon.ID
		order.CouponCode = coupon.Code
		order.DiscountAmount = result.Discount
	}

	order.OrderNumber = newOrderNumber()
	err = tx.QueryRowContext(ctx,
		`INSERT INTO orders (order_number, user_id, total_amount, discount_amount,
		                     coupon_id, coupon_code, status, payment_status, notes, scheduled_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, created_at, updated_at`,
		order.OrderNumber, order.UserID, order.TotalAmount, order.DiscountAmount,
		order.CouponID, order.CouponCode, order.Status, order.PaymentStatus,
		order.Notes, order.ScheduledDate).
		Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if database.IsConflict(err) {
			return nil, fmt.Errorf("order number collision: %w", models.ErrPersistenceConflict)
		}
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		err := tx.QueryRowContext(ctx,
			`INSERT INTO order_items (order_id, service_id, option_id, quantity, unit_price, total_price, notes)
			 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
			item.OrderID, item.ServiceID, item.OptionID, item.Quantity,
			item.UnitPrice, item.TotalPrice, item.Notes).Scan(&item.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	if err := AppendTrackingTx(ctx, tx, order.ID, order.Status, "Order received",
		"Order placed and awaiting payment", nil); err != nil {
		return nil, err
	}

	if err := cart.ClearByUserTx(ctx, tx, userID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit order: %w", err)
	}

	a.logger.Info("Order created",
		zap.Int("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Float64("total", order.GrandTotal()),
	)

	// Best-effort confirmation event; a notification failure never fails the
	// order.
	if a.producer != nil {
		event := models.OrderEvent{
			EventType:     "order_created",
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			UserID:        order.UserID,
			Status:        order.Status,
			PaymentStatus: order.PaymentStatus,
			Amount:        order.GrandTotal(),
		}
		if err := kafka.PublishOrderEvent(ctx, a.producer, kafka.TopicOrderEvents, event, a.logger); err != nil {
			a.logger.Error("Failed to publish order_created event", zap.Error(err))
		}
	}

	return &order, nil
}

func newOrderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("BK-%d-%s", time.Now().UnixMilli(), suffix)
}
