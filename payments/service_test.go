package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/iMDK-cs/SmoothFLow-Store-sub001/models"
	"github.com/iMDK-cs/SmoothFLow-Store-sub001/orders"
)

type stubGateway struct {
	method models.PaymentMethod
	result *InitiationResult
	err    error
	calls  int
}

func (g *stubGateway) Method() models.PaymentMethod { return g.method }

func (g *stubGateway) Initiate(ctx context.Context, order *models.Order, billing *BillingData) (*InitiationResult, error) {
	g.calls++
	return g.result, g.err
}

func setupServiceTest(t *testing.T, gateways ...Gateway) (*Service, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}

	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	service := NewService(db, NewRegistry(gateways...), orders.NewRepo(db), "USD", nil, logger)

	return service, mock, func() { db.Close() }
}

var orderCols = []string{
	"id", "order_number", "user_id", "total_amount", "discount_amount",
	"coupon_id", "coupon_code", "status", "payment_status", "payment_method",
	"paytabs_tran_ref", "paymob_order_id", "paymob_payment_key", "stripe_intent_id",
	"bank_receipt_ref", "bank_transfer_status", "approved_by", "approved_at",
	"notes", "scheduled_date", "created_at", "updated_at",
}

// expectOrderFetch mocks the full order load: the order row plus its empty
// items, payment and tracking sub-queries.
func expectOrderFetch(mock sqlmock.Sqlmock, orderID, userID int,
	status models.OrderStatus, paymentStatus models.PaymentStatus, stripeIntentID string) {
	mock.ExpectQuery("FROM orders WHERE id").
		WithArgs(orderID, userID).
		WillReturnRows(sqlmock.NewRows(orderCols).
			AddRow(orderID, "BK-1709290800000-ABCDEF12", userID, 120.50, 0.0,
				nil, "", status, paymentStatus, "",
				"", "", "", stripeIntentID,
				"", "", nil, nil,
				"", nil, time.Now(), time.Now()))
	mock.ExpectQuery("FROM order_items").
		WithArgs(orderID).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "order_id", "service_id", "option_id", "quantity", "unit_price", "total_price", "notes"}))
	mock.ExpectQuery("FROM payments WHERE order_id").
		WithArgs(orderID).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "order_id", "amount", "currency", "gateway", "transaction_id",
				"status", "checkout_ref", "raw_payload", "created_at", "updated_at"}))
	mock.ExpectQuery("FROM order_tracking").
		WithArgs(orderID).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "order_id", "status", "title", "description", "admin_id", "created_at"}))
}

func TestInitiatePayment_CallsGatewayAndPersists(t *testing.T) {
	gw := &stubGateway{
		method: models.MethodStripe,
		result: &InitiationResult{
			Method:        models.MethodStripe,
			CorrelationID: "pi_new",
			ClientSecret:  "pi_new_secret_abc",
		},
	}
	service, mock, cleanup := setupServiceTest(t, gw)
	defer cleanup()

	expectOrderFetch(mock, 7, 3, models.OrderStatusReceived, models.PaymentStatusPending, "")

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT stripe_intent_id FROM orders").
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"stripe_intent_id"}).AddRow(""))
	mock.ExpectExec("UPDATE orders SET payment_method").
		WithArgs(models.MethodStripe, "pi_new", 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO payments").
		WithArgs(7, 120.50, "USD", models.MethodStripe, models.PaymentStatusPending, "pi_new_secret_abc").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	result, err := service.InitiatePayment(context.Background(), 7, 3, models.MethodStripe, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if gw.calls != 1 {
		t.Errorf("Expected one gateway call, got %d", gw.calls)
	}
	if result.ClientSecret != "pi_new_secret_abc" {
		t.Errorf("Unexpected client secret: %s", result.ClientSecret)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestInitiatePayment_RaceLoserGetsWinnersArtifact(t *testing.T) {
	gw := &stubGateway{
		method: models.MethodStripe,
		result: &InitiationResult{
			Method:        models.MethodStripe,
			CorrelationID: "pi_late",
			ClientSecret:  "pi_late_secret",
		},
	}
	service, mock, cleanup := setupServiceTest(t, gw)
	defer cleanup()

	// The unlocked read sees no correlation id, so the gateway is called.
	expectOrderFetch(mock, 7, 3, models.OrderStatusReceived, models.PaymentStatusPending, "")

	// By the time the row lock is taken, a concurrent initiation has already
	// committed its own intent. The winner's artifact must come back and the
	// late intent must never reach the orders row.
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT stripe_intent_id FROM orders").
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"stripe_intent_id"}).AddRow("pi_first"))
	mock.ExpectQuery("SELECT checkout_ref FROM payments").
		WithArgs(7, models.MethodStripe).
		WillReturnRows(sqlmock.NewRows([]string{"checkout_ref"}).AddRow("pi_first_secret"))
	mock.ExpectRollback()

	result, err := service.InitiatePayment(context.Background(), 7, 3, models.MethodStripe, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.CorrelationID != "pi_first" {
		t.Errorf("Expected winning correlation id pi_first, got %s", result.CorrelationID)
	}
	if result.ClientSecret != "pi_first_secret" {
		t.Errorf("Expected winning client secret, got %s", result.ClientSecret)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestInitiatePayment_ReinitiationReturnsStoredArtifact(t *testing.T) {
	gw := &stubGateway{method: models.MethodStripe}
	service, mock, cleanup := setupServiceTest(t, gw)
	defer cleanup()

	expectOrderFetch(mock, 7, 3, models.OrderStatusReceived, models.PaymentStatusPending, "pi_existing")

	mock.ExpectQuery("SELECT checkout_ref FROM payments").
		WithArgs(7, models.MethodStripe).
		WillReturnRows(sqlmock.NewRows([]string{"checkout_ref"}).AddRow("pi_existing_secret"))

	result, err := service.InitiatePayment(context.Background(), 7, 3, models.MethodStripe, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if gw.calls != 0 {
		t.Errorf("Expected no gateway call on re-initiation, got %d", gw.calls)
	}
	if result.CorrelationID != "pi_existing" {
		t.Errorf("Expected stored correlation id, got %s", result.CorrelationID)
	}
	if result.ClientSecret != "pi_existing_secret" {
		t.Errorf("Expected stored client secret, got %s", result.ClientSecret)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestInitiatePayment_RejectsPaidOrder(t *testing.T) {
	gw := &stubGateway{method: models.MethodStripe}
	service, mock, cleanup := setupServiceTest(t, gw)
	defer cleanup()

	expectOrderFetch(mock, 7, 3, models.OrderStatusProcessing, models.PaymentStatusCompleted, "pi_done")

	_, err := service.InitiatePayment(context.Background(), 7, 3, models.MethodStripe, nil)
	var validationErr *models.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("Expected ValidationError for paid order, got %v", err)
	}
	if gw.calls != 0 {
		t.Errorf("Expected no gateway call, got %d", gw.calls)
	}
}

func TestInitiatePayment_RejectsCancelledOrder(t *testing.T) {
	service, mock, cleanup := setupServiceTest(t)
	defer cleanup()

	expectOrderFetch(mock, 7, 3, models.OrderStatusCancelled, models.PaymentStatusFailed, "")

	_, err := service.InitiatePayment(context.Background(), 7, 3, models.MethodStripe, nil)
	var validationErr *models.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("Expected ValidationError for cancelled order, got %v", err)
	}
}

func TestInitiatePayment_GatewayFailureLeavesOrderUntouched(t *testing.T) {
	gw := &stubGateway{method: models.MethodStripe, err: models.ErrGatewayUnavailable}
	service, mock, cleanup := setupServiceTest(t, gw)
	defer cleanup()

	expectOrderFetch(mock, 7, 3, models.OrderStatusReceived, models.PaymentStatusPending, "")

	_, err := service.InitiatePayment(context.Background(), 7, 3, models.MethodStripe, nil)
	if !errors.Is(err, models.ErrGatewayUnavailable) {
		t.Fatalf("Expected ErrGatewayUnavailable, got %v", err)
	}

	// No writes may happen when the gateway call fails.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestInitiatePayment_BankTransfer(t *testing.T) {
	service, mock, cleanup := setupServiceTest(t)
	defer cleanup()

	expectOrderFetch(mock, 7, 3, models.OrderStatusReceived, models.PaymentStatusPending, "")

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE orders SET payment_method").
		WithArgs(models.MethodBankTransfer, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO payments").
		WithArgs(7, 120.50, "USD", models.MethodBankTransfer, models.PaymentStatusPending).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	result, err := service.InitiatePayment(context.Background(), 7, 3, models.MethodBankTransfer, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.CorrelationID != "BK-1709290800000-ABCDEF12" {
		t.Errorf("Expected order number as correlation id, got %s", result.CorrelationID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestSubmitReceipt_ParksOrderForReview(t *testing.T) {
	service, mock, cleanup := setupServiceTest(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status, payment_method FROM orders").
		WithArgs(7, 3).
		WillReturnRows(sqlmock.NewRows([]string{"status", "payment_method"}).
			AddRow(models.OrderStatusReceived, models.MethodBankTransfer))
	mock.ExpectExec("UPDATE orders SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO order_tracking").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := service.SubmitReceipt(context.Background(), 7, 3, "TRF-20260301-991"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestSubmitReceipt_RequiresReference(t *testing.T) {
	service, _, cleanup := setupServiceTest(t)
	defer cleanup()

	err := service.SubmitReceipt(context.Background(), 7, 3, "")
	var validationErr *models.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
}

func TestAdminDecide_RejectsOrderNotAwaitingApproval(t *testing.T) {
	service, mock, cleanup := setupServiceTest(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM orders WHERE id").
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows(
			[]string{"status", "order_number", "user_id", "amount"}).
			AddRow(models.OrderStatusConfirmed, "BK-1709290800000-ABCDEF12", 3, 120.50))
	mock.ExpectRollback()

	err := service.AdminDecide(context.Background(), 7, true, "", 1)
	var transitionErr *models.InvalidTransitionError
	if !errors.As(err, &transitionErr) {
		t.Fatalf("Expected InvalidTransitionError, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestAdminDecide_ApprovalConfirmsOrder(t *testing.T) {
	service, mock, cleanup := setupServiceTest(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM orders WHERE id").
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows(
			[]string{"status", "order_number", "user_id", "amount"}).
			AddRow(models.OrderStatusPendingApproval, "BK-1709290800000-ABCDEF12", 3, 120.50))
	mock.ExpectExec("UPDATE orders SET status").
		WithArgs(models.OrderStatusConfirmed, models.PaymentStatusCompleted,
			models.BankTransferApproved, 1, sqlmock.AnyArg(), 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE payments SET status").
		WithArgs(models.PaymentStatusCompleted, 7, models.MethodBankTransfer).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO order_tracking").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := service.AdminDecide(context.Background(), 7, true, "verified against statement", 1); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}
