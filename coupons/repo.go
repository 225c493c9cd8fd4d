package coupons

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iMDK-cs/SmoothFLow-Store-sub001/models"
)

type Repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db}
}

const couponColumns = `id, code, discount_type, discount_value, min_order_amount,
	max_discount, max_uses, used_count, valid_from, valid_until, active,
	created_at, updated_at`

func scanCoupon(row *sql.Row) (*models.Coupon, error) {
	var c models.Coupon
	var minAmount, maxDiscount sql.NullFloat64
	var maxUses sql.NullInt64
	err := row.Scan(
		&c.ID, &c.Code, &c.DiscountType, &c.DiscountValue, &minAmount,
		&maxDiscount, &maxUses, &c.UsedCount, &c.ValidFrom, &c.ValidUntil,
		&c.Active, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if minAmount.Valid {
		c.MinOrderAmount = &minAmount.Float64
	}
	if maxDiscount.Valid {
		c.MaxDiscount = &maxDiscount.Float64
	}
	if maxUses.Valid {
		n := int(maxUses.Int64)
		c.MaxUses = &n
	}
	return &c, nil
}

// GetByCode looks a coupon up case-insensitively.
func (r *Repo) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE LOWER(code) = LOWER($1)`, code)
	c, err := scanCoupon(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.CouponRejectedError{Code: code, Reason: models.CouponInvalidCode}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load coupon: %w", err)
	}
	return c, nil
}

// Validate is the dry-run used by the storefront while the user is still in
// the cart. It never mutates state, so a user can try several codes.
func (r *Repo) Validate(ctx context.Context, code string, orderTotal float64, now time.Time) (*Result, error) {
	c, err := r.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return Calculate(c, orderTotal, now)
}

// ApplyTx re-validates the coupon under a row lock and consumes one use. It
// must run inside the transaction that creates the order, so a code cannot be
// over-consumed by concurrent checkouts.
func (r *Repo) ApplyTx(ctx context.Context, tx *sql.Tx, code string, orderTotal float64, now time.Time) (*models.Coupon, *Result, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE LOWER(code) = LOWER($1) FOR UPDATE`, code)
	c, err := scanCoupon(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, &models.CouponRejectedError{Code: code, Reason: models.CouponInvalidCode}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock coupon: %w", err)
	}

	result, err := Calculate(c, orderTotal, now)
	if err != nil {
		return nil, nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE coupons SET used_count = used_count + 1, updated_at = CURRENT_TIMESTAMP WHERE id = $1`,
		c.ID); err != nil {
		return nil, nil, fmt.Errorf("failed to consume coupon use: %w", err)
	}
	return c, result, nil
}
