package errors

import (
	"errors"
	"testing"
)

func TestResourceError_Error(t *testing.T) {
	err := &ResourceError{Code: ErrCodeInvalidArgument, Message: "size must be non-negative"}
	if err.Error() != "size must be non-negative" {
		t.Errorf("Unexpected message: %s", err.Error())
	}

	withOp := &ResourceError{Code: ErrCodeInvalidArgument, Op: "pool.Allocate", Message: "size must be non-negative"}
	expected := "pool.Allocate: size must be non-negative"
	if withOp.Error() != expected {
		t.Errorf("Expected %s, got %s", expected, withOp.Error())
	}
}

func TestResourceError_Wrap(t *testing.T) {
	inner := errors.New("device busy")
	err := NewCleanupFailure("handle.Close", inner)

	if !errors.Is(err, inner) {
		t.Error("Expected wrapped error to match inner error")
	}
	if !IsCleanupFailure(err) {
		t.Error("Expected cleanup_failure classification")
	}
}

func TestIsAlreadyClosed(t *testing.T) {
	if !IsAlreadyClosed(ErrManagerClosed) {
		t.Error("Expected ErrManagerClosed to be identified as closed error")
	}
	if !IsAlreadyClosed(ErrHandleClosed) {
		t.Error("Expected ErrHandleClosed to be identified as closed error")
	}

	wrapped := Wrap(ErrManagerClosed, ErrCodeAlreadyClosed, "manager.AllocateMemory")
	if !IsAlreadyClosed(wrapped) {
		t.Error("Expected wrapped closed error to be identified as closed error")
	}

	if IsAlreadyClosed(errors.New("unrelated")) {
		t.Error("Did not expect unrelated error to be classified as closed")
	}
}

func TestIsInvalidArgument(t *testing.T) {
	err := NewInvalidArgumentf("config.Validate", "low watermark %.2f above high watermark %.2f", 0.9, 0.7)
	if !IsInvalidArgument(err) {
		t.Error("Expected invalid_argument classification")
	}
	if IsCleanupFailure(err) {
		t.Error("Did not expect cleanup_failure classification")
	}
}

func TestErrorIsByCode(t *testing.T) {
	a := New(ErrCodeLimitExceeded, "registry full")
	b := New(ErrCodeLimitExceeded, "different message")
	if !errors.Is(a, b) {
		t.Error("Expected errors with the same code to match via errors.Is")
	}
	if !IsLimitExceeded(a) {
		t.Error("Expected limit_exceeded classification")
	}
}
