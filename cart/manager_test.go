package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/iMDK-cs/SmoothFLow-Store-sub001/cache"
	"github.com/iMDK-cs/SmoothFLow-Store-sub001/models"
)

func setupManagerTest(t *testing.T) (*Manager, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}

	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	manager := NewManager(db, cache.NewMemoryCache(time.Minute, 100), logger)

	return manager, mock, func() { db.Close() }
}

func expectServiceLoad(mock sqlmock.Sqlmock, id int, title string, price float64, stock int) {
	mock.ExpectQuery("SELECT id, title, price, active, available, stock, created_at, updated_at").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "title", "price", "active", "available", "stock", "created_at", "updated_at"}).
			AddRow(id, title, price, true, true, stock, time.Now(), time.Now()))
}

func TestManager_AddItem_NewLine(t *testing.T) {
	manager, mock, cleanup := setupManagerTest(t)
	defer cleanup()

	expectServiceLoad(mock, 5, "Deep Clean", 80.0, 10)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO carts").
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectQuery("SELECT id, quantity FROM cart_items").
		WithArgs(11, 5, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "quantity"}))
	mock.ExpectQuery("SELECT title, stock FROM services").
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"title", "stock"}).AddRow("Deep Clean", 10))
	mock.ExpectQuery("INSERT INTO cart_items").
		WithArgs(11, 5, nil, 2).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(21))
	mock.ExpectCommit()

	item, err := manager.AddItem(context.Background(), 3, 5, nil, 2)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if item.ID != 21 || item.Quantity != 2 {
		t.Errorf("Unexpected item: %+v", item)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestManager_AddItem_MergesExistingLine(t *testing.T) {
	manager, mock, cleanup := setupManagerTest(t)
	defer cleanup()

	expectServiceLoad(mock, 5, "Deep Clean", 80.0, 10)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO carts").
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectQuery("SELECT id, quantity FROM cart_items").
		WithArgs(11, 5, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "quantity"}).AddRow(21, 2))
	mock.ExpectQuery("SELECT title, stock FROM services").
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"title", "stock"}).AddRow("Deep Clean", 10))
	mock.ExpectExec("UPDATE cart_items SET quantity").
		WithArgs(5, 21).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	item, err := manager.AddItem(context.Background(), 3, 5, nil, 3)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if item.ID != 21 {
		t.Errorf("Expected merge into item 21, got %d", item.ID)
	}
	if item.Quantity != 5 {
		t.Errorf("Expected merged quantity 5, got %d", item.Quantity)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestManager_AddItem_StockExceeded(t *testing.T) {
	manager, mock, cleanup := setupManagerTest(t)
	defer cleanup()

	expectServiceLoad(mock, 5, "Deep Clean", 80.0, 3)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO carts").
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectQuery("SELECT id, quantity FROM cart_items").
		WithArgs(11, 5, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "quantity"}).AddRow(21, 2))
	mock.ExpectQuery("SELECT title, stock FROM services").
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"title", "stock"}).AddRow("Deep Clean", 3))
	mock.ExpectRollback()

	_, err := manager.AddItem(context.Background(), 3, 5, nil, 2)
	var stockErr *models.StockExceededError
	if !errors.As(err, &stockErr) {
		t.Fatalf("Expected StockExceededError, got %v", err)
	}
	if stockErr.Remaining != 1 {
		t.Errorf("Expected remaining 1, got %d", stockErr.Remaining)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestManager_AddItem_ConcurrentInsertIsPersistenceConflict(t *testing.T) {
	manager, mock, cleanup := setupManagerTest(t)
	defer cleanup()

	expectServiceLoad(mock, 5, "Deep Clean", 80.0, 10)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO carts").
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectQuery("SELECT id, quantity FROM cart_items").
		WithArgs(11, 5, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "quantity"}))
	mock.ExpectQuery("SELECT title, stock FROM services").
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"title", "stock"}).AddRow("Deep Clean", 10))
	// A racing request inserted the same line first; FOR UPDATE locked
	// nothing because the row did not exist yet.
	mock.ExpectQuery("INSERT INTO cart_items").
		WithArgs(11, 5, nil, 2).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "idx_cart_items_line"})
	mock.ExpectRollback()

	_, err := manager.AddItem(context.Background(), 3, 5, nil, 2)
	if !errors.Is(err, models.ErrPersistenceConflict) {
		t.Fatalf("Expected ErrPersistenceConflict, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestManager_UpdateQuantity_OtherUsersItemIsNotFound(t *testing.T) {
	manager, mock, cleanup := setupManagerTest(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT ci.service_id, ci.quantity FROM cart_items ci").
		WithArgs(21, 99).
		WillReturnRows(sqlmock.NewRows([]string{"service_id", "quantity"}))
	mock.ExpectRollback()

	err := manager.UpdateQuantity(context.Background(), 99, 21, 4)
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestManager_RemoveItem_NotFound(t *testing.T) {
	manager, mock, cleanup := setupManagerTest(t)
	defer cleanup()

	mock.ExpectExec("DELETE FROM cart_items ci USING carts c").
		WithArgs(404, 3).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := manager.RemoveItem(context.Background(), 3, 404)
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestManager_GetCart_EmptyWhenNoCartRow(t *testing.T) {
	manager, mock, cleanup := setupManagerTest(t)
	defer cleanup()

	mock.ExpectQuery("SELECT id, created_at, updated_at FROM carts").
		WithArgs(42).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}))

	c, err := manager.GetCart(context.Background(), 42)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(c.Items) != 0 {
		t.Errorf("Expected empty cart, got %d items", len(c.Items))
	}
	if c.UserID != 42 {
		t.Errorf("Expected user id 42, got %d", c.UserID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestManager_GetService_UsesCache(t *testing.T) {
	manager, mock, cleanup := setupManagerTest(t)
	defer cleanup()

	expectServiceLoad(mock, 5, "Deep Clean", 80.0, 10)

	if _, err := manager.GetService(context.Background(), 5); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	// Second read must come from the cache and hit the database zero times.
	svc, err := manager.GetService(context.Background(), 5)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if svc.Title != "Deep Clean" {
		t.Errorf("Expected cached title, got %q", svc.Title)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}
