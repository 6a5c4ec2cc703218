package main

import (
	"testing"
	"time"
)

func TestNewPayment(t *testing.T) {
	// Arrange
	orderID := "order-123"
	userID := "user-456"
	amount := 300

	// Act
	payment := NewPayment(orderID, userID, amount)

	// Assert
	if payment.TransactionRef == "" {
		t.Error("Expected TransactionRef to be generated")
	}
	if payment.OrderID != orderID {
		t.Errorf("Expected OrderID %s, got %s", orderID, payment.OrderID)
	}
	if payment.UserID != userID {
		t.Errorf("Expected UserID %s, got %s", userID, payment.UserID)
	}
	if payment.Amount != amount {
		t.Errorf("Expected Amount %d, got %d", amount, payment.Amount)
	}
	if payment.Status != PaymentStatusPending {
		t.Errorf("Expected Status %s, got %s", PaymentStatusPending, payment.Status)
	}
	if payment.SettledAt != nil {
		t.Error("Expected SettledAt to be unset on creation")
	}
	if payment.CreatedAt.IsZero() || payment.UpdatedAt.IsZero() {
		t.Error("Expected CreatedAt and UpdatedAt to be set")
	}
}

func TestNewPayment_UniqueTransactionRef(t *testing.T) {
	a := NewPayment("order-1", "user-1", 100)
	b := NewPayment("order-1", "user-1", 100)

	if a.TransactionRef == b.TransactionRef {
		t.Errorf("Expected distinct transaction refs, both were %s", a.TransactionRef)
	}
}

func TestPaymentStatus_Terminal(t *testing.T) {
	if PaymentStatusPending.Terminal() {
		t.Error("Expected PENDING to be non-terminal")
	}
	for _, s := range []PaymentStatus{PaymentStatusSuccess, PaymentStatusFailed, PaymentStatusRefunded} {
		if !s.Terminal() {
			t.Errorf("Expected %s to be terminal", s)
		}
	}
}

func TestParsePaymentStatus(t *testing.T) {
	status, err := ParsePaymentStatus("SUCCESS")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if status != PaymentStatusSuccess {
		t.Errorf("Expected SUCCESS, got %s", status)
	}

	if _, err := ParsePaymentStatus("APPROVED"); err == nil {
		t.Error("Expected error for unknown status")
	}
}

func TestPayment_Resolve(t *testing.T) {
	payment := NewPayment("order-1", "user-1", 100)
	now := time.Now()

	err := payment.Resolve(PaymentStatusSuccess, now)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if payment.Status != PaymentStatusSuccess {
		t.Errorf("Expected SUCCESS, got %s", payment.Status)
	}
	if !payment.UpdatedAt.Equal(now) {
		t.Error("Expected UpdatedAt to be stamped")
	}
}

func TestPayment_Resolve_RejectsSecondTransition(t *testing.T) {
	payment := NewPayment("order-1", "user-1", 100)
	_ = payment.Resolve(PaymentStatusFailed, time.Now())

	err := payment.Resolve(PaymentStatusSuccess, time.Now())
	if err != ErrNotPending {
		t.Errorf("Expected ErrNotPending, got %v", err)
	}
	if payment.Status != PaymentStatusFailed {
		t.Errorf("Expected status to stay FAILED, got %s", payment.Status)
	}
}

func TestPayment_Resolve_RejectsNonTerminalTarget(t *testing.T) {
	payment := NewPayment("order-1", "user-1", 100)

	err := payment.Resolve(PaymentStatusPending, time.Now())
	if err != ErrNotTerminalTarget {
		t.Errorf("Expected ErrNotTerminalTarget, got %v", err)
	}
	if payment.Status != PaymentStatusPending {
		t.Errorf("Expected status to stay PENDING, got %s", payment.Status)
	}
}
