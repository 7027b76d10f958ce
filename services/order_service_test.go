package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/kendall-kelly/cosmetics-store-api/models"
	"github.com/kendall-kelly/cosmetics-store-api/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testCustomerID = "user-customer-1"

type OrderServiceSuite struct {
	suite.Suite
	db       *gorm.DB
	images   *MockImageService
	events   *MockEventPublisher
	notifier *CartNotifier
	svc      *OrderService
	ctx      context.Context
}

func TestOrderServiceSuite(t *testing.T) {
	suite.Run(t, new(OrderServiceSuite))
}

func (s *OrderServiceSuite) SetupTest() {
	s.db = testutil.NewTestDB(s.T())
	s.images = NewMockImageService()
	s.events = NewMockEventPublisher()
	s.notifier = NewCartNotifier()
	s.svc = NewOrderService(s.db, s.images, s.events, s.notifier, nil)
	s.svc.SetRetryDelays(nil)
	s.ctx = context.Background()
}

func checkoutInput(method models.PaymentMethod) PlaceOrderInput {
	return PlaceOrderInput{
		FullName:      "Jane Doe",
		Email:         "jane@example.com",
		Phone:         "0812345678",
		Address:       "12 Rose Street",
		City:          "Bangkok",
		Country:       "TH",
		PostalCode:    "10110",
		PaymentMethod: method,
	}
}

// placeOrder puts one product in the customer's cart and checks out by credit card
func (s *OrderServiceSuite) placeOrder() *models.Order {
	product := testutil.CreateProduct(s.T(), s.db, "Rose Serum", "250.00", 10)
	testutil.AddCartItem(s.T(), s.db, testCustomerID, product.ID, 2)
	order, err := s.svc.PlaceOrder(s.ctx, testCustomerID, checkoutInput(models.PaymentMethodCreditCard))
	s.Require().NoError(err)
	return order
}

func (s *OrderServiceSuite) reload(id string) models.Order {
	var order models.Order
	s.Require().NoError(s.db.First(&order, "id = ?", id).Error)
	return order
}

func (s *OrderServiceSuite) paymentRecords(orderID string) []models.PaymentRecord {
	var records []models.PaymentRecord
	s.Require().NoError(s.db.Where("order_id = ?", orderID).Order("sequence").Find(&records).Error)
	return records
}

func (s *OrderServiceSuite) TestPlaceOrder_CreatesOrderItemsAndPayment() {
	serum := testutil.CreateProduct(s.T(), s.db, "Rose Serum", "120.50", 5)
	balm := testutil.CreateProduct(s.T(), s.db, "Lip Balm", "99.99", 3)
	testutil.AddCartItem(s.T(), s.db, testCustomerID, serum.ID, 2)
	testutil.AddCartItem(s.T(), s.db, testCustomerID, balm.ID, 1)

	order, err := s.svc.PlaceOrder(s.ctx, testCustomerID, checkoutInput(models.PaymentMethodCreditCard))
	s.Require().NoError(err)

	s.True(decimal.RequireFromString("340.99").Equal(order.TotalAmount), "total was %s", order.TotalAmount)
	s.Equal(models.OrderPending, order.Status)
	s.Equal(models.PaymentPending, order.PaymentStatus)
	s.Equal("12 Rose Street, Bangkok, TH, 10110", order.ShippingAddress)
	s.Equal(models.DefaultShippingMethod, order.ShippingMethod)
	s.Equal(1, order.Version)
	s.Len(order.Items, 2)

	records := s.paymentRecords(order.ID)
	s.Require().Len(records, 1)
	s.Equal(1, records[0].Sequence)
	s.Equal(models.PaymentPending, records[0].PaymentStatus)
	s.Require().NotNil(order.CurrentPaymentID)
	s.Equal(records[0].ID, *order.CurrentPaymentID)
	s.Require().NotNil(records[0].Notes)
	s.Equal("Credit card payment", *records[0].Notes)

	var cartLines int64
	s.db.Model(&models.CartItem{}).Where("user_id = ?", testCustomerID).Count(&cartLines)
	s.Zero(cartLines)

	var reloadedSerum, reloadedBalm models.Product
	s.Require().NoError(s.db.First(&reloadedSerum, "id = ?", serum.ID).Error)
	s.Equal(3, reloadedSerum.StockQuantity)
	s.Require().NoError(s.db.First(&reloadedBalm, "id = ?", balm.ID).Error)
	s.Equal(2, reloadedBalm.StockQuantity)

	s.Equal([]OrderEventType{EventOrderPlaced}, s.events.Types())
}

func (s *OrderServiceSuite) TestPlaceOrder_NotifiesEmptyCart() {
	product := testutil.CreateProduct(s.T(), s.db, "Toner", "80.00", 4)
	testutil.AddCartItem(s.T(), s.db, testCustomerID, product.ID, 1)

	events, unsubscribe := s.notifier.Subscribe(UserCart(testCustomerID).Key())
	defer unsubscribe()

	_, err := s.svc.PlaceOrder(s.ctx, testCustomerID, checkoutInput(models.PaymentMethodCreditCard))
	s.Require().NoError(err)

	select {
	case ev := <-events:
		s.Equal(0, ev.Count)
	default:
		s.Fail("expected a cart count event after checkout")
	}
}

func (s *OrderServiceSuite) TestPlaceOrder_BankTransferWithProof() {
	product := testutil.CreateProduct(s.T(), s.db, "Night Cream", "450.00", 2)
	testutil.AddCartItem(s.T(), s.db, testCustomerID, product.ID, 1)

	in := checkoutInput(models.PaymentMethodBankTransfer)
	in.BankType = "scb"
	in.PaymentProof = testutil.NewFileHeader(s.T(), "slip.png", testutil.PNGBytes)

	order, err := s.svc.PlaceOrder(s.ctx, testCustomerID, in)
	s.Require().NoError(err)

	s.Require().NotNil(order.PaymentProofKey)
	s.True(s.images.ImageExists(*order.PaymentProofKey))
	s.Require().NotNil(order.PaymentProofURL)
	s.Require().NotNil(order.BankType)
	s.Equal(models.BankType("scb"), *order.BankType)

	records := s.paymentRecords(order.ID)
	s.Require().Len(records, 1)
	s.Require().NotNil(records[0].Notes)
	s.Equal("Bank transfer via Siam Commercial Bank", *records[0].Notes)
	s.Require().NotNil(records[0].ProofKey)
	s.Equal(*order.PaymentProofKey, *records[0].ProofKey)
}

func (s *OrderServiceSuite) TestPlaceOrder_EmptyCart() {
	_, err := s.svc.PlaceOrder(s.ctx, testCustomerID, checkoutInput(models.PaymentMethodCreditCard))
	s.ErrorIs(err, ErrEmptyCart)

	var orders int64
	s.db.Model(&models.Order{}).Count(&orders)
	s.Zero(orders)
	s.Empty(s.events.Events())
}

func (s *OrderServiceSuite) TestPlaceOrder_InsufficientStockRollsBackAndDeletesProof() {
	plenty := testutil.CreateProduct(s.T(), s.db, "Cleanser", "60.00", 10)
	scarce := testutil.CreateProduct(s.T(), s.db, "Sun Cream", "300.00", 1)
	testutil.AddCartItem(s.T(), s.db, testCustomerID, plenty.ID, 2)
	testutil.AddCartItem(s.T(), s.db, testCustomerID, scarce.ID, 3)

	in := checkoutInput(models.PaymentMethodQRCode)
	in.PaymentProof = testutil.NewFileHeader(s.T(), "qr.jpg", []byte("jpeg"))

	_, err := s.svc.PlaceOrder(s.ctx, testCustomerID, in)
	var stockErr *InsufficientStockError
	s.Require().ErrorAs(err, &stockErr)
	s.Equal(scarce.ID, stockErr.ProductID)
	s.Equal(3, stockErr.Requested)
	s.Equal(1, stockErr.Available)

	var reloaded models.Product
	s.db.First(&reloaded, "id = ?", plenty.ID)
	s.Equal(10, reloaded.StockQuantity, "stock of earlier lines must be restored")

	var cartLines int64
	s.db.Model(&models.CartItem{}).Where("user_id = ?", testCustomerID).Count(&cartLines)
	s.EqualValues(2, cartLines)

	s.Len(s.images.DeletedKeys(), 1)
	s.Empty(s.images.GetUploadedImages())
}

func (s *OrderServiceSuite) TestPlaceOrder_Validation() {
	tests := []struct {
		name   string
		mutate func(in *PlaceOrderInput)
		field  string
	}{
		{"short name", func(in *PlaceOrderInput) { in.FullName = "Jo" }, "full_name"},
		{"bad email", func(in *PlaceOrderInput) { in.Email = "not-an-email" }, "email"},
		{"short phone", func(in *PlaceOrderInput) { in.Phone = "0812" }, "phone"},
		{"unknown method", func(in *PlaceOrderInput) { in.PaymentMethod = "cash" }, "payment_method"},
		{"bank transfer without bank", func(in *PlaceOrderInput) { in.PaymentMethod = models.PaymentMethodBankTransfer }, "bank_type"},
		{"bank for credit card", func(in *PlaceOrderInput) { in.BankType = "scb" }, "bank_type"},
		{"proof for credit card", func(in *PlaceOrderInput) {
			in.PaymentProof = testutil.NewFileHeader(s.T(), "slip.png", testutil.PNGBytes)
		}, "payment_proof"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			in := checkoutInput(models.PaymentMethodCreditCard)
			tt.mutate(&in)
			_, err := s.svc.PlaceOrder(s.ctx, testCustomerID, in)
			var verr *ValidationError
			s.Require().ErrorAs(err, &verr)
			s.Equal(tt.field, verr.Field)
		})
	}
}

func (s *OrderServiceSuite) TestPlaceOrder_ConcurrentCheckoutCreatesOneOrder() {
	product := testutil.CreateProduct(s.T(), s.db, "Face Mist", "150.00", 10)
	testutil.AddCartItem(s.T(), s.db, testCustomerID, product.ID, 1)

	var wg sync.WaitGroup
	results := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = s.svc.PlaceOrder(s.ctx, testCustomerID, checkoutInput(models.PaymentMethodCreditCard))
		}(i)
	}
	wg.Wait()

	for _, err := range results {
		if err != nil {
			s.ErrorIs(err, ErrEmptyCart)
		}
	}
	var orders int64
	s.db.Model(&models.Order{}).Count(&orders)
	s.EqualValues(1, orders)
}

func (s *OrderServiceSuite) TestPlaceOrder_ConcurrentDifferentFormsAreNotShared() {
	product := testutil.CreateProduct(s.T(), s.db, "Face Mist", "150.00", 10)
	testutil.AddCartItem(s.T(), s.db, testCustomerID, product.ID, 1)

	names := []string{"Jane Doe", "June Doe"}
	var wg sync.WaitGroup
	orders := make([]*models.Order, 8)
	errs := make([]error, 8)
	for i := range orders {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := checkoutInput(models.PaymentMethodCreditCard)
			in.FullName = names[i%2]
			orders[i], errs[i] = s.svc.PlaceOrder(s.ctx, testCustomerID, in)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			s.ErrorIs(err, ErrEmptyCart)
			continue
		}
		s.Equal(names[i%2], orders[i].FullName)
	}
	var count int64
	s.db.Model(&models.Order{}).Count(&count)
	s.EqualValues(1, count)
}

func (s *OrderServiceSuite) TestConfirmPayment_CascadesPendingOrder() {
	order := s.placeOrder()

	updated, err := s.svc.ConfirmPayment(s.ctx, order.ID, nil)
	s.Require().NoError(err)
	s.Equal(models.PaymentConfirmed, updated.PaymentStatus)
	s.Equal(models.OrderConfirmed, updated.Status)
	s.Equal(2, updated.Version)

	records := s.paymentRecords(order.ID)
	s.Require().Len(records, 1)
	s.Equal(models.PaymentConfirmed, records[0].PaymentStatus)

	s.Equal([]OrderEventType{EventOrderPlaced, EventPaymentConfirmed}, s.events.Types())
}

func (s *OrderServiceSuite) TestConfirmPayment_DoesNotTouchAdvancedOrder() {
	order := s.placeOrder()
	s.Require().NoError(s.db.Model(&models.Order{}).Where("id = ?", order.ID).Update("status", models.OrderShipped).Error)

	updated, err := s.svc.ConfirmPayment(s.ctx, order.ID, nil)
	s.Require().NoError(err)
	s.Equal(models.PaymentConfirmed, updated.PaymentStatus)
	s.Equal(models.OrderShipped, updated.Status)
}

func (s *OrderServiceSuite) TestCancelPayment_LeavesOrderStatus() {
	order := s.placeOrder()

	updated, err := s.svc.CancelPayment(s.ctx, order.ID, nil)
	s.Require().NoError(err)
	s.Equal(models.PaymentCancelled, updated.PaymentStatus)
	s.Equal(models.OrderPending, updated.Status)
	s.Equal(models.PaymentCancelled, s.paymentRecords(order.ID)[0].PaymentStatus)
}

func (s *OrderServiceSuite) TestRefundPayment() {
	order := s.placeOrder()

	_, err := s.svc.RefundPayment(s.ctx, order.ID, nil)
	s.ErrorIs(err, models.ErrInvalidTransition, "pending payments cannot be refunded")

	_, err = s.svc.ConfirmPayment(s.ctx, order.ID, nil)
	s.Require().NoError(err)
	updated, err := s.svc.RefundPayment(s.ctx, order.ID, nil)
	s.Require().NoError(err)
	s.Equal(models.PaymentRefunded, updated.PaymentStatus)
	s.Equal(models.OrderConfirmed, updated.Status)
}

func (s *OrderServiceSuite) TestConfirmPayment_RepeatIsNoop() {
	order := s.placeOrder()

	_, err := s.svc.ConfirmPayment(s.ctx, order.ID, nil)
	s.Require().NoError(err)
	again, err := s.svc.ConfirmPayment(s.ctx, order.ID, nil)
	s.Require().NoError(err)

	s.Equal(2, again.Version)
	s.Equal([]OrderEventType{EventOrderPlaced, EventPaymentConfirmed}, s.events.Types())
}

func (s *OrderServiceSuite) TestConfirmPayment_StaleVersionWritesNothing() {
	order := s.placeOrder()
	stale := order.Version + 1

	_, err := s.svc.ConfirmPayment(s.ctx, order.ID, &stale)
	s.ErrorIs(err, ErrVersionConflict)

	reloaded := s.reload(order.ID)
	s.Equal(models.PaymentPending, reloaded.PaymentStatus)
	s.Equal(models.OrderPending, reloaded.Status)
	s.Equal(order.Version, reloaded.Version)
	s.Equal(models.PaymentPending, s.paymentRecords(order.ID)[0].PaymentStatus)
}

func (s *OrderServiceSuite) TestConfirmPayment_MatchingVersion() {
	order := s.placeOrder()
	current := order.Version

	updated, err := s.svc.ConfirmPayment(s.ctx, order.ID, &current)
	s.Require().NoError(err)
	s.Equal(current+1, updated.Version)
}

func (s *OrderServiceSuite) TestConfirmPayment_MissingPaymentRecordRollsBackOrder() {
	order := s.placeOrder()
	s.Require().NoError(s.db.Model(&models.Order{}).Where("id = ?", order.ID).Update("current_payment_id", "missing-record").Error)

	_, err := s.svc.ConfirmPayment(s.ctx, order.ID, nil)
	s.ErrorIs(err, ErrPaymentRecordMissing)

	reloaded := s.reload(order.ID)
	s.Equal(models.PaymentPending, reloaded.PaymentStatus)
	s.Equal(models.OrderPending, reloaded.Status)
	s.Equal(order.Version, reloaded.Version)
}

func (s *OrderServiceSuite) TestConfirmPayment_NotFound() {
	_, err := s.svc.ConfirmPayment(s.ctx, "no-such-order", nil)
	s.ErrorIs(err, ErrOrderNotFound)
}

func (s *OrderServiceSuite) TestConfirmPayment_ConcurrentRequestsWriteOnce() {
	order := s.placeOrder()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.svc.ConfirmPayment(s.ctx, order.ID, nil)
			assert.NoError(s.T(), err)
		}()
	}
	wg.Wait()

	s.Equal(2, s.reload(order.ID).Version)
	s.Equal([]OrderEventType{EventOrderPlaced, EventPaymentConfirmed}, s.events.Types())
}

func (s *OrderServiceSuite) TestUpdateStatus_ForwardSteps() {
	order := s.placeOrder()

	for _, next := range []models.OrderStatus{models.OrderConfirmed, models.OrderProcessing, models.OrderShipped, models.OrderDelivered} {
		updated, err := s.svc.UpdateStatus(s.ctx, order.ID, next, nil)
		s.Require().NoError(err)
		s.Equal(next, updated.Status)
		s.Equal(models.PaymentPending, updated.PaymentStatus, "status changes never touch the payment")
	}
	s.Equal(5, s.reload(order.ID).Version)
}

func (s *OrderServiceSuite) TestUpdateStatus_IllegalTransitionLeavesOrderUnchanged() {
	order := s.placeOrder()
	s.Require().NoError(s.db.Model(&models.Order{}).Where("id = ?", order.ID).Update("status", models.OrderShipped).Error)

	for _, target := range []models.OrderStatus{models.OrderPending, models.OrderCancelled, models.OrderProcessing} {
		_, err := s.svc.UpdateStatus(s.ctx, order.ID, target, nil)
		s.ErrorIs(err, models.ErrInvalidTransition, "shipped -> %s", target)
	}
	reloaded := s.reload(order.ID)
	s.Equal(models.OrderShipped, reloaded.Status)
	s.Equal(order.Version, reloaded.Version)
}

func (s *OrderServiceSuite) TestUpdateStatus_CancelRestocks() {
	product := testutil.CreateProduct(s.T(), s.db, "Eye Gel", "199.00", 5)
	testutil.AddCartItem(s.T(), s.db, testCustomerID, product.ID, 3)
	order, err := s.svc.PlaceOrder(s.ctx, testCustomerID, checkoutInput(models.PaymentMethodCreditCard))
	s.Require().NoError(err)

	var reloaded models.Product
	s.db.First(&reloaded, "id = ?", product.ID)
	s.Equal(2, reloaded.StockQuantity)

	updated, err := s.svc.UpdateStatus(s.ctx, order.ID, models.OrderCancelled, nil)
	s.Require().NoError(err)
	s.Equal(models.OrderCancelled, updated.Status)

	s.db.First(&reloaded, "id = ?", product.ID)
	s.Equal(5, reloaded.StockQuantity)

	// a second cancel is a no-op and must not restock twice
	_, err = s.svc.UpdateStatus(s.ctx, order.ID, models.OrderCancelled, nil)
	s.Require().NoError(err)
	s.db.First(&reloaded, "id = ?", product.ID)
	s.Equal(5, reloaded.StockQuantity)
}

func (s *OrderServiceSuite) TestSubmitPaymentProof_AppendsRecord() {
	product := testutil.CreateProduct(s.T(), s.db, "Hair Oil", "320.00", 5)
	testutil.AddCartItem(s.T(), s.db, testCustomerID, product.ID, 1)
	in := checkoutInput(models.PaymentMethodBankTransfer)
	in.BankType = "kbank"
	order, err := s.svc.PlaceOrder(s.ctx, testCustomerID, in)
	s.Require().NoError(err)

	updated, err := s.svc.SubmitPaymentProof(s.ctx, testCustomerID, order.ID, testutil.NewFileHeader(s.T(), "slip.png", testutil.PNGBytes))
	s.Require().NoError(err)

	records := s.paymentRecords(order.ID)
	s.Require().Len(records, 2)
	s.Equal(2, records[1].Sequence)
	s.Equal(models.PaymentPending, records[1].PaymentStatus)
	s.Require().NotNil(updated.CurrentPaymentID)
	s.Equal(records[1].ID, *updated.CurrentPaymentID)
	s.Require().NotNil(updated.PaymentProofKey)
	s.Equal(order.Version+1, updated.Version)
	s.Require().Len(updated.Payments, 2)
	s.Equal(2, updated.Payments[0].Sequence, "payment history is newest first")

	confirmed, err := s.svc.ConfirmPayment(s.ctx, order.ID, nil)
	s.Require().NoError(err)
	records = s.paymentRecords(confirmed.ID)
	s.Equal(models.PaymentPending, records[0].PaymentStatus)
	s.Equal(models.PaymentConfirmed, records[1].PaymentStatus, "only the current record is confirmed")
}

func (s *OrderServiceSuite) TestSubmitPaymentProof_Rejections() {
	order := s.placeOrder()

	_, err := s.svc.SubmitPaymentProof(s.ctx, testCustomerID, order.ID, testutil.NewFileHeader(s.T(), "slip.png", testutil.PNGBytes))
	s.ErrorIs(err, ErrProofNotAccepted, "credit card orders take no proof")

	_, err = s.svc.SubmitPaymentProof(s.ctx, "someone-else", order.ID, testutil.NewFileHeader(s.T(), "slip.png", testutil.PNGBytes))
	s.ErrorIs(err, ErrOrderNotFound)
}

func (s *OrderServiceSuite) TestGetCustomerOrder_EnforcesOwnership() {
	order := s.placeOrder()

	own, err := s.svc.GetCustomerOrder(s.ctx, testCustomerID, order.ID)
	s.Require().NoError(err)
	s.Equal(order.ID, own.ID)
	s.Require().Len(own.Items, 1)
	s.Require().NotNil(own.Items[0].Product)
	s.Equal("Rose Serum", own.Items[0].Product.Name)

	_, err = s.svc.GetCustomerOrder(s.ctx, "someone-else", order.ID)
	s.ErrorIs(err, ErrOrderNotFound)
}

func (s *OrderServiceSuite) TestListOrders_FiltersAndPaginates() {
	first := s.placeOrder()
	second := s.placeOrder()
	_, err := s.svc.ConfirmPayment(s.ctx, second.ID, nil)
	s.Require().NoError(err)

	page, err := s.svc.ListOrders(s.ctx, OrderFilter{})
	s.Require().NoError(err)
	s.EqualValues(2, page.Total)
	s.Equal(1, page.Page)
	s.Equal(20, page.PageSize)

	page, err = s.svc.ListOrders(s.ctx, OrderFilter{PaymentStatus: models.PaymentConfirmed})
	s.Require().NoError(err)
	s.Require().Len(page.Orders, 1)
	s.Equal(second.ID, page.Orders[0].ID)

	page, err = s.svc.ListOrders(s.ctx, OrderFilter{Status: models.OrderPending})
	s.Require().NoError(err)
	s.Require().Len(page.Orders, 1)
	s.Equal(first.ID, page.Orders[0].ID)

	page, err = s.svc.ListOrders(s.ctx, OrderFilter{Search: "JANE@"})
	s.Require().NoError(err)
	s.EqualValues(2, page.Total)

	page, err = s.svc.ListOrders(s.ctx, OrderFilter{PageSize: 1, Page: 2})
	s.Require().NoError(err)
	s.EqualValues(2, page.Total)
	s.Len(page.Orders, 1)

	page, err = s.svc.ListOrders(s.ctx, OrderFilter{UserID: "nobody"})
	s.Require().NoError(err)
	s.Zero(page.Total)
	s.Empty(page.Orders)
}

func (s *OrderServiceSuite) TestPublishFailureDoesNotFailMutation() {
	order := s.placeOrder()
	s.events.FailWith(errors.New("broker down"))

	updated, err := s.svc.ConfirmPayment(s.ctx, order.ID, nil)
	s.Require().NoError(err)
	s.Equal(models.PaymentConfirmed, updated.PaymentStatus)
}

// A failure writing the payment record must roll back the order update in the same transaction.
func TestConfirmPayment_PaymentRecordFailureRollsBack(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	orderRows := sqlmock.NewRows([]string{"id", "user_id", "status", "payment_status", "total_amount", "current_payment_id", "version"}).
		AddRow("order-1", testCustomerID, "pending", "pending", "500.00", "payment-1", 3)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "orders"`).WillReturnRows(orderRows)
	mock.ExpectExec(`UPDATE "orders" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "payment_history" SET`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	svc := NewOrderService(db, NewMockImageService(), NewMockEventPublisher(), NewCartNotifier(), nil)
	svc.SetRetryDelays(nil)

	_, err = svc.ConfirmPayment(context.Background(), "order-1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithRetry_RetriesDeadlocks(t *testing.T) {
	svc := NewOrderService(nil, nil, nil, nil, nil)
	svc.SetRetryDelays([]time.Duration{0, 0})

	attempts := 0
	err := svc.withRetry(context.Background(), func() error {
		attempts++
		return errors.New("database is locked")
	})
	assert.Error(t, err)
	assert.Equal(t, 3, attempts)

	attempts = 0
	err = svc.withRetry(context.Background(), func() error {
		attempts++
		return ErrEmptyCart
	})
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Equal(t, 1, attempts)
}

func TestCheckoutKey(t *testing.T) {
	in := checkoutInput(models.PaymentMethodCreditCard)
	assert.Equal(t, checkoutKey("user-1", in), checkoutKey("user-1", in))
	assert.NotEqual(t, checkoutKey("user-1", in), checkoutKey("user-2", in))

	other := in
	other.Address = "14 Rose Street"
	assert.NotEqual(t, checkoutKey("user-1", in), checkoutKey("user-1", other))

	other = in
	other.PaymentMethod = models.PaymentMethodBankTransfer
	assert.NotEqual(t, checkoutKey("user-1", in), checkoutKey("user-1", other))

	// field boundaries are kept apart
	a, b := in, in
	a.City, a.Country = "Bangkok", "TH"
	b.City, b.Country = "BangkokT", "H"
	assert.NotEqual(t, checkoutKey("user-1", a), checkoutKey("user-1", b))
}
