package webhooks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/iMDK-cs/SmoothFLow-Store-sub001/kafka"
	"github.com/iMDK-cs/SmoothFLow-Store-sub001/models"
	"github.com/iMDK-cs/SmoothFLow-Store-sub001/orders"
)

// Engine reconciles asynchronous gateway notifications with the order/payment
// state machine. All three providers funnel through Reconcile, so idempotency
// and transition rules are written and tested once.
type Engine struct {
	db       *sql.DB
	secrets  map[models.PaymentMethod]string
	currency string
	producer sarama.SyncProducer
	logger   *zap.Logger
}

func NewEngine(db *sql.DB, secrets map[models.PaymentMethod]string, currency string, producer sarama.SyncProducer, logger *zap.Logger) *Engine {
	return &Engine{db: db, secrets: secrets, currency: currency, producer: producer, logger: logger}
}

// Outcome tells the HTTP layer what happened; every non-error outcome is
// acked with 200 so the gateway stops re-delivering.
type Outcome struct {
	OrderID       int
	OrderNumber   string
	Applied       bool
	Duplicate     bool
	NoOp          bool
	Anomaly       bool
	OrderStatus   models.OrderStatus
	PaymentStatus models.PaymentStatus
}

func (e *Engine) Reconcile(ctx context.Context, gateway models.PaymentMethod, body []byte, signature string) (*Outcome, error) {
	secret, ok := e.secrets[gateway]
	if !ok {
		return nil, models.NewValidationError("unknown gateway %q", gateway)
	}

	// Authenticity first, on the exact raw bytes, before any business field
	// is even parsed.
	if !VerifySignature(secret, body, signature) {
		e.logger.Warn("Webhook signature verification failed",
			zap.String("gateway", string(gateway)),
		)
		return nil, models.ErrInvalidSignature
	}

	parse := parsers[gateway]
	event, err := parse(body)
	if err != nil {
		return nil, err
	}
	if event.Ignore {
		return &Outcome{NoOp: true}, nil
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Dedup before the state machine runs. The insert only commits together
	// with the transition, so a failure here leaves the event replayable.
	res, err := tx.ExecContext(ctx,
		`INSERT INTO webhook_events (event_id, gateway) VALUES ($1, $2)
		 ON CONFLICT (event_id, gateway) DO NOTHING`,
		event.ID, gateway)
	if err != nil {
		return nil, fmt.Errorf("failed to record webhook event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &Outcome{Duplicate: true}, nil
	}

	// Resolve the order by the stored correlation id; the payload's own idea
	// of "order id" is never trusted on its own.
	query := fmt.Sprintf(
		`SELECT id, order_number, user_id, status, payment_status,
		        total_amount - discount_amount
		 FROM orders WHERE %s = $1 FOR UPDATE`, correlationColumn(gateway))
	var (
		orderID, userID      int
		orderNumber          string
		currentStatus        models.OrderStatus
		currentPaymentStatus models.PaymentStatus
		amount               float64
	)
	err = tx.QueryRowContext(ctx, query, event.CorrelationID).
		Scan(&orderID, &orderNumber, &userID, &currentStatus, &currentPaymentStatus, &amount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve order: %w", err)
	}

	outcome := &Outcome{
		OrderID:       orderID,
		OrderNumber:   orderNumber,
		OrderStatus:   currentStatus,
		PaymentStatus: currentPaymentStatus,
	}

	// Idempotent application: a re-delivered or late event that does not
	// move the order forward is acked without touching state.
	if currentStatus == event.Order && currentPaymentStatus == event.Payment {
		outcome.NoOp = true
		return outcome, tx.Commit()
	}
	if orders.Rank(currentStatus) > orders.Rank(event.Order) {
		e.logger.Warn("Webhook would move order backward, ignoring",
			zap.Int("order_id", orderID),
			zap.String("current", string(currentStatus)),
			zap.String("target", string(event.Order)),
		)
		outcome.Anomaly = true
		return outcome, tx.Commit()
	}
	if !orders.CanTransition(currentStatus, event.Order) {
		e.logger.Warn("Webhook requested invalid transition, ignoring",
			zap.Int("order_id", orderID),
			zap.String("current", string(currentStatus)),
			zap.String("target", string(event.Order)),
		)
		outcome.Anomaly = true
		return outcome, tx.Commit()
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = $1, payment_status = $2, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $3`,
		event.Order, event.Payment, orderID); err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	// The raw payload is kept with the payment record for audit.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO payments (order_id, amount, currency, gateway, transaction_id, status, raw_payload)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (order_id, gateway)
		 DO UPDATE SET transaction_id = EXCLUDED.transaction_id,
		               status = EXCLUDED.status,
		               raw_payload = EXCLUDED.raw_payload,
		               updated_at = CURRENT_TIMESTAMP`,
		orderID, amount, e.currency, gateway, event.TransactionID,
		event.Payment, string(body)); err != nil {
		return nil, fmt.Errorf("failed to update payment: %w", err)
	}

	title := fmt.Sprintf("Payment %s", event.Payment)
	description := fmt.Sprintf("Gateway %s reported transaction %s", gateway, event.TransactionID)
	if err := orders.AppendTrackingTx(ctx, tx, orderID, event.Order, title, description, nil); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reconciliation: %w", err)
	}

	outcome.Applied = true
	outcome.OrderStatus = event.Order
	outcome.PaymentStatus = event.Payment

	e.logger.Info("Webhook reconciled",
		zap.String("gateway", string(gateway)),
		zap.Int("order_id", orderID),
		zap.String("status", string(event.Order)),
		zap.String("payment_status", string(event.Payment)),
	)

	// Notification dispatch stays outside the transaction; a failure is
	// logged and never reverses the transition.
	if e.producer != nil {
		eventType := "order_status_changed"
		switch event.Payment {
		case models.PaymentStatusCompleted:
			eventType = "payment_completed"
		case models.PaymentStatusFailed:
			eventType = "payment_failed"
		}
		notification := models.OrderEvent{
			EventType:     eventType,
			OrderID:       orderID,
			OrderNumber:   orderNumber,
			UserID:        userID,
			Status:        event.Order,
			PaymentStatus: event.Payment,
			Amount:        amount,
		}
		if err := kafka.PublishOrderEvent(ctx, e.producer, kafka.TopicOrderEvents, notification, e.logger); err != nil {
			e.logger.Error("Failed to publish webhook notification", zap.Error(err))
		}
	}

	return outcome, nil
}

func correlationColumn(gateway models.PaymentMethod) string {
	switch gateway {
	case models.MethodPayTabs:
		return "paytabs_tran_ref"
	case models.MethodPaymob:
		return "paymob_order_id"
	default:
		return "stripe_intent_id"
	}
}
