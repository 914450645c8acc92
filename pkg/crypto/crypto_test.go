package crypto

import (
	"errors"
	"testing"
)

func TestVerifyPassword(t *testing.T) {
	salt, err := GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt: %v", err)
	}
	hash := HashPassword("hunter2", salt)

	if err := VerifyPassword("hunter2", salt, hash); err != nil {
		t.Fatalf("VerifyPassword(correct): %v", err)
	}
	if err := VerifyPassword("hunter3", salt, hash); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("VerifyPassword(wrong) = %v, want %v", err, ErrPasswordMismatch)
	}
	if err := VerifyPassword("hunter2", salt, nil); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("VerifyPassword(empty hash) = %v, want %v", err, ErrPasswordMismatch)
	}
}
