package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("row not found")
	err := Wrap(CodeNotFound, cause, "order lookup")

	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause to survive errors.Is")
	}
	if err.Code() != CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %s", err.Code())
	}
}

func TestAsFindsCodedErrorInChain(t *testing.T) {
	inner := New(CodeStateConflict, "already checked in")
	wrapped := fmt.Errorf("handler: %w", inner)

	typed := As(wrapped)
	if typed == nil {
		t.Fatal("expected coded error in chain")
	}
	if typed.Code() != CodeStateConflict {
		t.Fatalf("unexpected code %s", typed.Code())
	}
}

func TestAsReturnsNilForPlainErrors(t *testing.T) {
	if As(errors.New("plain")) != nil {
		t.Fatal("expected nil for plain error")
	}
	if As(nil) != nil {
		t.Fatal("expected nil for nil error")
	}
}

func TestMetadataForUnknownCodeFallsBackToInternal(t *testing.T) {
	meta := MetadataFor(Code("SOMETHING_ELSE"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", meta.HTTPStatus)
	}
}

func TestWithDetails(t *testing.T) {
	err := New(CodeValidation, "bad input").WithDetails(map[string]string{"qty": "must be positive"})
	details, ok := err.Details().(map[string]string)
	if !ok {
		t.Fatalf("unexpected details type %T", err.Details())
	}
	if details["qty"] != "must be positive" {
		t.Fatalf("unexpected detail %q", details["qty"])
	}
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeConflict, "sold out"))
	if !Is(err, CodeConflict) {
		t.Fatal("expected CONFLICT match")
	}
	if Is(err, CodeNotFound) {
		t.Fatal("did not expect NOT_FOUND match")
	}
}

func TestDumpCollectsChain(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(CodeDependency, cause, "gateway call")

	dump := Dump(err)
	if dump.Code != CodeDependency {
		t.Fatalf("unexpected code %s", dump.Code)
	}
	if len(dump.Chain) < 2 {
		t.Fatalf("expected full chain, got %v", dump.Chain)
	}
}
