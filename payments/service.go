package payments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/iMDK-cs/SmoothFLow-Store-sub001/kafka"
	"github.com/iMDK-cs/SmoothFLow-Store-sub001/models"
	"github.com/iMDK-cs/SmoothFLow-Store-sub001/orders"
)

// Service orchestrates payment initiation and the manual bank-transfer path.
// Idempotency lives here, not in the gateway clients: an order that already
// carries a correlation id for the requested method gets its stored checkout
// artifact back instead of a second remote payment.
type Service struct {
	db       *sql.DB
	registry *Registry
	orders   *orders.Repo
	currency string
	producer sarama.SyncProducer
	logger   *zap.Logger
}

func NewService(db *sql.DB, registry *Registry, orderRepo *orders.Repo, currency string, producer sarama.SyncProducer, logger *zap.Logger) *Service {
	return &Service{
		db:       db,
		registry: registry,
		orders:   orderRepo,
		currency: currency,
		producer: producer,
		logger:   logger,
	}
}

func (s *Service) InitiatePayment(ctx context.Context, orderID, userID int, method models.PaymentMethod, billing *BillingData) (*InitiationResult, error) {
	order, err := s.orders.GetOrder(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus == models.PaymentStatusCompleted {
		return nil, models.NewValidationError("order %s is already paid", order.OrderNumber)
	}
	if orders.IsTerminal(order.Status) {
		return nil, models.NewValidationError("order %s is %s", order.OrderNumber, order.Status)
	}

	if method == models.MethodBankTransfer {
		return s.initiateBankTransfer(ctx, order)
	}

	gateway, ok := s.registry.Get(method)
	if !ok {
		return nil, models.NewValidationError("unknown payment method %q", method)
	}

	// Client retries and page reloads land here; the stored correlation id
	// short-circuits before any outbound call.
	if corr := correlationID(order, method); corr != "" {
		return s.storedResult(ctx, order, method, corr)
	}

	result, err := gateway.Initiate(ctx, order, billing)
	if err != nil {
		// Order state is untouched; the caller may retry.
		return nil, err
	}

	persisted, err := s.persistInitiation(ctx, order, result)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Payment initiated",
		zap.Int("order_id", order.ID),
		zap.String("gateway", string(method)),
		zap.String("correlation_id", persisted.CorrelationID),
	)
	return persisted, nil
}

func correlationID(o *models.Order, method models.PaymentMethod) string {
	switch method {
	case models.MethodPayTabs:
		return o.PayTabsTranRef
	case models.MethodPaymob:
		return o.PaymobOrderID
	case models.MethodStripe:
		return o.StripeIntentID
	}
	return ""
}

func correlationColumn(method models.PaymentMethod) string {
	switch method {
	case models.MethodPayTabs:
		return "paytabs_tran_ref"
	case models.MethodPaymob:
		return "paymob_order_id"
	default:
		return "stripe_intent_id"
	}
}

func (s *Service) storedResult(ctx context.Context, order *models.Order, method models.PaymentMethod, corr string) (*InitiationResult, error) {
	var checkoutRef string
	err := s.db.QueryRowContext(ctx,
		`SELECT checkout_ref FROM payments WHERE order_id = $1 AND gateway = $2`,
		order.ID, method).Scan(&checkoutRef)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to load stored payment: %w", err)
	}

	return artifactResult(method, corr, checkoutRef), nil
}

func artifactResult(method models.PaymentMethod, corr, checkoutRef string) *InitiationResult {
	result := &InitiationResult{Method: method, CorrelationID: corr}
	switch method {
	case models.MethodPayTabs:
		result.RedirectURL = checkoutRef
	case models.MethodPaymob:
		result.IframeURL = checkoutRef
	case models.MethodStripe:
		result.ClientSecret = checkoutRef
	}
	return result
}

// persistInitiation stores the gateway artifact under a row lock. Two requests
// racing past the empty-correlation check both reach the gateway, but only the
// first writer's correlation id survives; the loser's remote object is dropped
// and the caller gets the surviving artifact, so every stored correlation id
// can still be resolved by its webhook.
func (s *Service) persistInitiation(ctx context.Context, order *models.Order, result *InitiationResult) (*InitiationResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	column := correlationColumn(result.Method)
	var stored string
	err = tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM orders WHERE id = $1 FOR UPDATE`, column),
		order.ID).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}
	if stored != "" && stored != result.CorrelationID {
		var checkoutRef string
		err := tx.QueryRowContext(ctx,
			`SELECT checkout_ref FROM payments WHERE order_id = $1 AND gateway = $2`,
			order.ID, result.Method).Scan(&checkoutRef)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to load stored payment: %w", err)
		}
		s.logger.Warn("Discarding losing payment initiation",
			zap.Int("order_id", order.ID),
			zap.String("gateway", string(result.Method)),
			zap.String("discarded_correlation_id", result.CorrelationID),
		)
		return artifactResult(result.Method, stored, checkoutRef), nil
	}

	query := fmt.Sprintf(
		`UPDATE orders SET payment_method = $1, %s = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $3`,
		column)
	if _, err := tx.ExecContext(ctx, query, result.Method, result.CorrelationID, order.ID); err != nil {
		return nil, fmt.Errorf("failed to store correlation id: %w", err)
	}
	if result.PaymentKey != "" {
		if _, err := tx.ExecContext(ctx,
			`UPDATE orders SET paymob_payment_key = $1 WHERE id = $2`,
			result.PaymentKey, order.ID); err != nil {
			return nil, fmt.Errorf("failed to store payment key: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO payments (order_id, amount, currency, gateway, status, checkout_ref)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (order_id, gateway)
		 DO UPDATE SET checkout_ref = EXCLUDED.checkout_ref, updated_at = CURRENT_TIMESTAMP`,
		order.ID, order.GrandTotal(), s.currency, result.Method,
		models.PaymentStatusPending, result.CheckoutRef()); err != nil {
		return nil, fmt.Errorf("failed to store payment record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit initiation: %w", err)
	}
	return result, nil
}

func (s *Service) initiateBankTransfer(ctx context.Context, order *models.Order) (*InitiationResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET payment_method = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`,
		models.MethodBankTransfer, order.ID); err != nil {
		return nil, fmt.Errorf("failed to set payment method: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO payments (order_id, amount, currency, gateway, status)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (order_id, gateway) DO NOTHING`,
		order.ID, order.GrandTotal(), s.currency, models.MethodBankTransfer,
		models.PaymentStatusPending); err != nil {
		return nil, fmt.Errorf("failed to store payment record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	// The order id itself is the idempotency key: no remote object exists
	// until an admin approves the submitted receipt.
	return &InitiationResult{Method: models.MethodBankTransfer, CorrelationID: order.OrderNumber}, nil
}

// SubmitReceipt records the customer's bank receipt reference and parks the
// order for admin review.
func (s *Service) SubmitReceipt(ctx context.Context, orderID, userID int, receiptRef string) error {
	if receiptRef == "" {
		return models.NewValidationError("receipt reference is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current models.OrderStatus
	var method string
	err = tx.QueryRowContext(ctx,
		`SELECT status, payment_method FROM orders WHERE id = $1 AND user_id = $2 FOR UPDATE`,
		orderID, userID).Scan(&current, &method)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock order: %w", err)
	}
	if method != "" && method != string(models.MethodBankTransfer) {
		return models.NewValidationError("order is not a bank transfer order")
	}
	if !orders.CanTransition(current, models.OrderStatusPendingApproval) {
		return &models.InvalidTransitionError{From: current, To: models.OrderStatusPendingApproval}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = $1, payment_method = $2, bank_receipt_ref = $3,
		        bank_transfer_status = $4, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $5`,
		models.OrderStatusPendingApproval, models.MethodBankTransfer, receiptRef,
		models.BankTransferSubmitted, orderID); err != nil {
		return fmt.Errorf("failed to record receipt: %w", err)
	}
	if err := orders.AppendTrackingTx(ctx, tx, orderID, models.OrderStatusPendingApproval,
		"Bank receipt submitted", "Awaiting manual verification", nil); err != nil {
		return err
	}
	return tx.Commit()
}

// AdminDecide approves or rejects a submitted bank transfer. It runs through
// the same transition table as webhook-driven changes and appends to the same
// tracking log, so manual and automated paths cannot diverge.
func (s *Service) AdminDecide(ctx context.Context, orderID int, approve bool, notes string, adminID int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current models.OrderStatus
	var orderNumber string
	var userID int
	var amount float64
	err = tx.QueryRowContext(ctx,
		`SELECT status, order_number, user_id, total_amount - discount_amount
		 FROM orders WHERE id = $1 FOR UPDATE`, orderID).
		Scan(&current, &orderNumber, &userID, &amount)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock order: %w", err)
	}
	if current != models.OrderStatusPendingApproval {
		return &models.InvalidTransitionError{From: current, To: models.OrderStatusConfirmed}
	}

	target := models.OrderStatusConfirmed
	paymentStatus := models.PaymentStatusCompleted
	bankStatus := models.BankTransferApproved
	title := "Bank transfer approved"
	if !approve {
		target = models.OrderStatusCancelled
		paymentStatus = models.PaymentStatusFailed
		bankStatus = models.BankTransferRejected
		title = "Bank transfer rejected"
	}

	now := time.Now()
	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = $1, payment_status = $2, bank_transfer_status = $3,
		        approved_by = $4, approved_at = $5, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $6`,
		target, paymentStatus, bankStatus, adminID, now, orderID); err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE payments SET status = $1, updated_at = CURRENT_TIMESTAMP
		 WHERE order_id = $2 AND gateway = $3`,
		paymentStatus, orderID, models.MethodBankTransfer); err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if err := orders.AppendTrackingTx(ctx, tx, orderID, target, title, notes, &adminID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit decision: %w", err)
	}

	s.logger.Info("Bank transfer decided",
		zap.Int("order_id", orderID),
		zap.Bool("approved", approve),
		zap.Int("admin_id", adminID),
	)

	if s.producer != nil {
		eventType := "payment_completed"
		if !approve {
			eventType = "payment_failed"
		}
		event := models.OrderEvent{
			EventType:     eventType,
			OrderID:       orderID,
			OrderNumber:   orderNumber,
			UserID:        userID,
			Status:        target,
			PaymentStatus: paymentStatus,
			Amount:        amount,
		}
		if err := kafka.PublishOrderEvent(ctx, s.producer, kafka.TopicOrderEvents, event, s.logger); err != nil {
			s.logger.Error("Failed to publish bank transfer event", zap.Error(err))
		}
	}
	return nil
}
