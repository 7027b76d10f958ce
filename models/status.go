package models

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a status change is not allowed from the current status
var ErrInvalidTransition = errors.New("invalid status transition")

// OrderStatus is the fulfilment status of an order
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

// Orders move forward one step at a time. Cancelling is only possible before shipping.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderConfirmed, OrderCancelled},
	OrderConfirmed:  {OrderProcessing, OrderCancelled},
	OrderProcessing: {OrderShipped, OrderCancelled},
	OrderShipped:    {OrderDelivered},
	OrderDelivered:  {},
	OrderCancelled:  {},
}

// ParseOrderStatus converts a raw string into an OrderStatus
func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("unknown order status %q", s)
	}
	return status, nil
}

// IsValid reports whether the status is one of the known order statuses
func (s OrderStatus) IsValid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// IsTerminal reports whether no further transitions are possible
func (s OrderStatus) IsTerminal() bool {
	next, ok := orderTransitions[s]
	return ok && len(next) == 0
}

// CanTransitionTo reports whether the order may move from s to next
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentStatus is the settlement status of an order's payment
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentConfirmed PaymentStatus = "confirmed"
	PaymentCancelled PaymentStatus = "cancelled"
	PaymentRefunded  PaymentStatus = "refunded"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:   {PaymentConfirmed, PaymentCancelled},
	PaymentConfirmed: {PaymentRefunded},
	PaymentCancelled: {},
	PaymentRefunded:  {},
}

// ParsePaymentStatus converts a raw string into a PaymentStatus
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	status := PaymentStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("unknown payment status %q", s)
	}
	return status, nil
}

// IsValid reports whether the status is one of the known payment statuses
func (s PaymentStatus) IsValid() bool {
	_, ok := paymentTransitions[s]
	return ok
}

// CanTransitionTo reports whether the payment may move from s to next
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// OrderState is the pair of statuses an order carries
type OrderState struct {
	Status        OrderStatus
	PaymentStatus PaymentStatus
}

// StateChange is the outcome of applying a transition to an OrderState
type StateChange struct {
	OrderState
	Changed bool
}

// ApplyPaymentStatus computes the order state after moving its payment to target.
// Confirming a payment also confirms an order that is still pending; no other
// payment change touches the order status. Asking for the current payment
// status again is a no-op.
func ApplyPaymentStatus(current OrderState, target PaymentStatus) (StateChange, error) {
	if current.PaymentStatus == target {
		return StateChange{OrderState: current}, nil
	}
	if !current.PaymentStatus.CanTransitionTo(target) {
		return StateChange{OrderState: current}, fmt.Errorf("%w: payment %s -> %s", ErrInvalidTransition, current.PaymentStatus, target)
	}

	next := OrderState{Status: current.Status, PaymentStatus: target}
	if target == PaymentConfirmed && current.Status == OrderPending {
		next.Status = OrderConfirmed
	}
	return StateChange{OrderState: next, Changed: true}, nil
}

// ApplyOrderStatus computes the order state after moving the order to target.
// The payment status is never touched.
func ApplyOrderStatus(current OrderState, target OrderStatus) (StateChange, error) {
	if current.Status == target {
		return StateChange{OrderState: current}, nil
	}
	if !current.Status.CanTransitionTo(target) {
		return StateChange{OrderState: current}, fmt.Errorf("%w: order %s -> %s", ErrInvalidTransition, current.Status, target)
	}
	return StateChange{
		OrderState: OrderState{Status: target, PaymentStatus: current.PaymentStatus},
		Changed:    true,
	}, nil
}

// PaymentMethod is how the customer chose to pay
type PaymentMethod string

const (
	PaymentMethodCreditCard   PaymentMethod = "credit_card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodQRCode       PaymentMethod = "qr_code"
)

// IsValid reports whether the method is supported
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCreditCard, PaymentMethodBankTransfer, PaymentMethodQRCode:
		return true
	}
	return false
}

// AcceptsProof reports whether a transfer slip can be attached for this method
func (m PaymentMethod) AcceptsProof() bool {
	return m == PaymentMethodBankTransfer || m == PaymentMethodQRCode
}

// BankType identifies the bank or wallet a transfer is made from
type BankType string

var bankNames = map[BankType]string{
	"abc":         "Agricultural Bank of China",
	"acleda":      "ACLEDA Bank",
	"agribank":    "Agribank",
	"bay":         "Bank of Ayudhya (Krungsri)",
	"bbl":         "Bangkok Bank",
	"bcel":        "BCEL",
	"bidv":        "BIDV",
	"boc":         "Bank of China",
	"ccb":         "China Construction Bank",
	"china":       "China (other bank)",
	"icbc":        "ICBC",
	"jdb":         "Joint Development Bank",
	"kbank":       "Kasikornbank",
	"ktb":         "Krungthai Bank",
	"laos":        "Laos (other bank)",
	"ldb":         "Lao Development Bank",
	"momo":        "MoMo",
	"onepay":      "OnePay",
	"scb":         "Siam Commercial Bank",
	"thailand":    "Thailand (other bank)",
	"unionpay":    "UnionPay",
	"vietcombank": "Vietcombank",
	"vietinbank":  "VietinBank",
	"vietnam":     "Vietnam (other bank)",
	"zalopay":     "ZaloPay",
}

// IsValid reports whether the bank code is known
func (b BankType) IsValid() bool {
	_, ok := bankNames[b]
	return ok
}

// DisplayName returns the human readable bank name, falling back to the code
func (b BankType) DisplayName() string {
	if name, ok := bankNames[b]; ok {
		return name
	}
	return string(b)
}
