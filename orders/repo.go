package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iMDK-cs/SmoothFLow-Store-sub001/models"
)

const orderColumns = `id, order_number, user_id, total_amount, discount_amount,
	coupon_id, coupon_code, status, payment_status, payment_method,
	paytabs_tran_ref, paymob_order_id, paymob_payment_key, stripe_intent_id,
	bank_receipt_ref, bank_transfer_status, approved_by, approved_at,
	notes, scheduled_date, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var o models.Order
	var couponID, approvedBy sql.NullInt64
	var approvedAt, scheduled sql.NullTime
	var method, bankStatus string
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.TotalAmount, &o.DiscountAmount,
		&couponID, &o.CouponCode, &o.Status, &o.PaymentStatus, &method,
		&o.PayTabsTranRef, &o.PaymobOrderID, &o.PaymobPaymentKey, &o.StripeIntentID,
		&o.BankReceiptRef, &bankStatus, &approvedBy, &approvedAt,
		&o.Notes, &scheduled, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.PaymentMethod = models.PaymentMethod(method)
	o.BankTransferStatus = models.BankTransferStatus(bankStatus)
	if couponID.Valid {
		n := int(couponID.Int64)
		o.CouponID = &n
	}
	if approvedBy.Valid {
		n := int(approvedBy.Int64)
		o.ApprovedBy = &n
	}
	if approvedAt.Valid {
		t := approvedAt.Time
		o.ApprovedAt = &t
	}
	if scheduled.Valid {
		t := scheduled.Time
		o.ScheduledDate = &t
	}
	return &o, nil
}

type Repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db}
}

// GetOrder loads an order with its items, payment record and tracking history.
// When userID > 0 the order must belong to that user; admins pass 0.
func (r *Repo) GetOrder(ctx context.Context, orderID, userID int) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	args := []any{orderID}
	if userID > 0 {
		query += ` AND user_id = $2`
		args = append(args, userID)
	}

	o, err := scanOrder(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	if o.Items, err = r.loadItems(ctx, o.ID); err != nil {
		return nil, err
	}
	if o.Payment, err = r.loadPayment(ctx, o.ID); err != nil {
		return nil, err
	}
	if o.Tracking, err = r.loadTracking(ctx, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repo) ListOrders(ctx context.Context, userID int) ([]models.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var out []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (r *Repo) loadItems(ctx context.Context, orderID int) ([]models.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, order_id, service_id, option_id, quantity, unit_price, total_price, notes
		 FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var it models.OrderItem
		var optionID sql.NullInt64
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ServiceID, &optionID,
			&it.Quantity, &it.UnitPrice, &it.TotalPrice, &it.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		if optionID.Valid {
			n := int(optionID.Int64)
			it.OptionID = &n
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *Repo) loadPayment(ctx context.Context, orderID int) (*models.Payment, error) {
	var p models.Payment
	var raw sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, order_id, amount, currency, gateway, transaction_id, status,
		        checkout_ref, raw_payload, created_at, updated_at
		 FROM payments WHERE order_id = $1 ORDER BY id DESC LIMIT 1`, orderID).
		Scan(&p.ID, &p.OrderID, &p.Amount, &p.Currency, &p.Gateway, &p.TransactionID,
			&p.Status, &p.CheckoutRef, &raw, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	if raw.Valid {
		p.RawPayload = []byte(raw.String)
	}
	return &p, nil
}

func (r *Repo) loadTracking(ctx context.Context, orderID int) ([]models.OrderTracking, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, order_id, status, title, description, admin_id, created_at
		 FROM order_tracking WHERE order_id = $1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tracking: %w", err)
	}
	defer rows.Close()

	var out []models.OrderTracking
	for rows.Next() {
		var t models.OrderTracking
		var adminID sql.NullInt64
		if err := rows.Scan(&t.ID, &t.OrderID, &t.Status, &t.Title, &t.Description,
			&adminID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tracking entry: %w", err)
		}
		if adminID.Valid {
			n := int(adminID.Int64)
			t.AdminID = &n
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// AppendTrackingTx appends one row to the append-only tracking log.
func AppendTrackingTx(ctx context.Context, tx *sql.Tx, orderID int, status models.OrderStatus, title, description string, adminID *int) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO order_tracking (order_id, status, title, description, admin_id)
		 VALUES ($1, $2, $3, $4, $5)`,
		orderID, status, title, description, adminID)
	if err != nil {
		return fmt.Errorf("failed to append tracking entry: %w", err)
	}
	return nil
}

// AdminUpdateStatus applies a manual status change through the same transition
// table the webhook path uses, with a tracking entry in the same transaction.
func (r *Repo) AdminUpdateStatus(ctx context.Context, orderID int, to models.OrderStatus, title, description string, adminID int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current models.OrderStatus
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock order: %w", err)
	}

	if !CanTransition(current, to) {
		return &models.InvalidTransitionError{From: current, To: to}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`,
		to, orderID); err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if err := AppendTrackingTx(ctx, tx, orderID, to, title, description, &adminID); err != nil {
		return err
	}
	return tx.Commit()
}
