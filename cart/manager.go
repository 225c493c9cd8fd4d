package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/iMDK-cs/SmoothFLow-Store-sub001/cache"
	"github.com/iMDK-cs/SmoothFLow-Store-sub001/database"
	"github.com/iMDK-cs/SmoothFLow-Store-sub001/models"
)

// Manager owns per-user cart mutation. Every mutation runs in one transaction
// so concurrent requests for the same user cannot lose updates.
type Manager struct {
	db     *sql.DB
	cache  cache.MetadataCache
	logger *zap.Logger
}

func NewManager(db *sql.DB, metadataCache cache.MetadataCache, logger *zap.Logger) *Manager {
	return &Manager{db: db, cache: metadataCache, logger: logger}
}

// GetService reads service metadata through the cache. Only active/available
// prechecks use this; stock decisions always re-read the database inside a
// transaction.
func (m *Manager) GetService(ctx context.Context, serviceID int) (*models.Service, error) {
	if m.cache != nil {
		if svc, ok := m.cache.Get(ctx, serviceID); ok {
			return svc, nil
		}
	}

	svc, err := m.loadService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if m.cache != nil {
		m.cache.Set(ctx, serviceID, svc)
	}
	return svc, nil
}

func (m *Manager) loadService(ctx context.Context, serviceID int) (*models.Service, error) {
	var svc models.Service
	var stock sql.NullInt64
	err := m.db.QueryRowContext(ctx,
		`SELECT id, title, price, active, available, stock, created_at, updated_at
		 FROM services WHERE id = $1`, serviceID).
		Scan(&svc.ID, &svc.Title, &svc.Price, &svc.Active, &svc.Available, &stock,
			&svc.CreatedAt, &svc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load service: %w", err)
	}
	if stock.Valid {
		n := int(stock.Int64)
		svc.Stock = &n
	}
	return &svc, nil
}

// AddItem merges into an existing (cart, service, option) row or inserts a new
// one. Cart lookup/creation, the merge and the stock ceiling check share one
// transaction.
func (m *Manager) AddItem(ctx context.Context, userID, serviceID int, optionID *int, quantity int) (*models.CartItem, error) {
	if quantity < 1 {
		return nil, models.NewValidationError("quantity must be at least 1")
	}

	svc, err := m.GetService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if !svc.Active || !svc.Available {
		return nil, models.NewValidationError("service %q is not available", svc.Title)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var cartID int
	err = tx.QueryRowContext(ctx,
		`INSERT INTO carts (user_id) VALUES ($1)
		 ON CONFLICT (user_id) DO UPDATE SET updated_at = CURRENT_TIMESTAMP
		 RETURNING id`, userID).Scan(&cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cart: %w", err)
	}

	unitPrice := svc.Price
	if optionID != nil {
		err = tx.QueryRowContext(ctx,
			`SELECT price FROM service_options WHERE id = $1 AND service_id = $2`,
			*optionID, serviceID).Scan(&unitPrice)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.NewValidationError("option %d does not belong to service %d", *optionID, serviceID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load service option: %w", err)
		}
	}

	// Lock the existing line so two concurrent adds cannot both pass the
	// stock check against the same base quantity.
	var itemID, existingQty int
	err = tx.QueryRowContext(ctx,
		`SELECT id, quantity FROM cart_items
		 WHERE cart_id = $1 AND service_id = $2 AND COALESCE(option_id, 0) = COALESCE($3, 0)
		 FOR UPDATE`, cartID, serviceID, optionID).Scan(&itemID, &existingQty)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to look up cart item: %w", err)
	}

	newQty := existingQty + quantity

	// Authoritative stock read inside the transaction; the cached copy is
	// only trusted for the cheap availability precheck above.
	var title string
	var stock sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT title, stock FROM services WHERE id = $1`, serviceID).
		Scan(&title, &stock); err != nil {
		return nil, fmt.Errorf("failed to read service stock: %w", err)
	}
	if stock.Valid && int64(newQty) > stock.Int64 {
		return nil, &models.StockExceededError{
			ServiceTitle: title,
			Remaining:    int(stock.Int64) - existingQty,
		}
	}

	item := models.CartItem{
		CartID:       cartID,
		ServiceID:    serviceID,
		OptionID:     optionID,
		Quantity:     newQty,
		ServiceTitle: title,
		UnitPrice:    unitPrice,
	}
	if itemID > 0 {
		_, err = tx.ExecContext(ctx,
			`UPDATE cart_items SET quantity = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`,
			newQty, itemID)
		item.ID = itemID
	} else {
		err = tx.QueryRowContext(ctx,
			`INSERT INTO cart_items (cart_id, service_id, option_id, quantity)
			 VALUES ($1, $2, $3, $4) RETURNING id`,
			cartID, serviceID, optionID, quantity).Scan(&item.ID)
	}
	if err != nil {
		// Two concurrent first-adds of the same line both miss the FOR
		// UPDATE lookup; the loser's INSERT trips idx_cart_items_line.
		if database.IsConflict(err) {
			return nil, fmt.Errorf("concurrent cart update: %w", models.ErrPersistenceConflict)
		}
		return nil, fmt.Errorf("failed to write cart item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit cart update: %w", err)
	}

	m.logger.Info("Cart item added",
		zap.Int("user_id", userID),
		zap.Int("service_id", serviceID),
		zap.Int("quantity", newQty),
	)
	return &item, nil
}

// UpdateQuantity sets an item's quantity after verifying the item belongs to
// the caller's cart. Items of other users answer NotFound.
func (m *Manager) UpdateQuantity(ctx context.Context, userID, itemID, quantity int) error {
	if quantity < 1 {
		return models.NewValidationError("quantity must be at least 1")
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var serviceID, currentQty int
	err = tx.QueryRowContext(ctx,
		`SELECT ci.service_id, ci.quantity FROM cart_items ci
		 JOIN carts c ON c.id = ci.cart_id
		 WHERE ci.id = $1 AND c.user_id = $2
		 FOR UPDATE OF ci`, itemID, userID).Scan(&serviceID, &currentQty)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to look up cart item: %w", err)
	}

	var title string
	var stock sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT title, stock FROM services WHERE id = $1`, serviceID).
		Scan(&title, &stock); err != nil {
		return fmt.Errorf("failed to read service stock: %w", err)
	}
	if stock.Valid && int64(quantity) > stock.Int64 {
		return &models.StockExceededError{ServiceTitle: title, Remaining: int(stock.Int64)}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE cart_items SET quantity = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`,
		quantity, itemID); err != nil {
		return fmt.Errorf("failed to update cart item: %w", err)
	}
	return tx.Commit()
}

func (m *Manager) RemoveItem(ctx context.Context, userID, itemID int) error {
	result, err := m.db.ExecContext(ctx,
		`DELETE FROM cart_items ci USING carts c
		 WHERE ci.id = $1 AND ci.cart_id = c.id AND c.user_id = $2`,
		itemID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// GetCart returns the user's cart with line details. A user who never added an
// item gets an empty cart; carts are only created on first add.
func (m *Manager) GetCart(ctx context.Context, userID int) (*models.Cart, error) {
	c := models.Cart{UserID: userID, Items: []models.CartItem{}}
	err := m.db.QueryRowContext(ctx,
		`SELECT id, created_at, updated_at FROM carts WHERE user_id = $1`, userID).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	rows, err := m.db.QueryContext(ctx,
		`SELECT ci.id, ci.cart_id, ci.service_id, ci.option_id, ci.quantity,
		        s.title, COALESCE(o.price, s.price), ci.created_at, ci.updated_at
		 FROM cart_items ci
		 JOIN services s ON s.id = ci.service_id
		 LEFT JOIN service_options o ON o.id = ci.option_id
		 WHERE ci.cart_id = $1
		 ORDER BY ci.id`, c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.CartItem
		var optionID sql.NullInt64
		if err := rows.Scan(&item.ID, &item.CartID, &item.ServiceID, &optionID,
			&item.Quantity, &item.ServiceTitle, &item.UnitPrice,
			&item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		if optionID.Valid {
			n := int(optionID.Int64)
			item.OptionID = &n
		}
		c.Items = append(c.Items, item)
	}
	return &c, rows.Err()
}

// ClearByUserTx empties the user's cart inside an existing transaction. The
// order assembler calls this so order creation and cart clearing commit as one
// unit.
func ClearByUserTx(ctx context.Context, tx *sql.Tx, userID int) error {
	_, err := tx.ExecContext(ctx,
		`DELETE FROM cart_items WHERE cart_id = (SELECT id FROM carts WHERE user_id = $1)`,
		userID)
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}
