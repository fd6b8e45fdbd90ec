package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeCapacityExceeded, "party p1 is full"))
	if !errors.Is(err, New(CodeCapacityExceeded, "")) {
		t.Fatal("expected errors.Is to match by code")
	}
	if errors.Is(err, New(CodeNotFound, "")) {
		t.Fatal("expected different code to not match")
	}
}

func TestSentinelsSharingCodeStayDistinct(t *testing.T) {
	party := Sentinel(CodeNotFound, "party not found")
	participation := Sentinel(CodeNotFound, "participation not found")
	if errors.Is(participation, party) || errors.Is(fmt.Errorf("get: %w", party), participation) {
		t.Fatal("expected distinct sentinels to not match")
	}
	if !errors.Is(fmt.Errorf("get: %w", party), party) {
		t.Fatal("expected sentinel to match itself")
	}
	if !errors.Is(New(CodeNotFound, "party p1 not found"), party) {
		t.Fatal("expected non-sentinel to match sentinel by code")
	}
	if !errors.Is(party, New(CodeNotFound, "")) {
		t.Fatal("expected sentinel to match non-sentinel target by code")
	}
}

func TestWrapUnwrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(CodeUnknown, "store party", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable")
	}
	if err.Error() != "store party" {
		t.Fatalf("Error() = %q, want %q", err.Error(), "store party")
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(fmt.Errorf("wrap: %w", New(CodeForbidden, "nope"))); got != CodeForbidden {
		t.Fatalf("CodeOf = %q, want %q", got, CodeForbidden)
	}
	if got := CodeOf(errors.New("plain")); got != CodeUnknown {
		t.Fatalf("CodeOf = %q, want %q", got, CodeUnknown)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := map[Code]int{
		CodeNotFound:            http.StatusNotFound,
		CodeForbidden:           http.StatusForbidden,
		CodeSelfJoinForbidden:   http.StatusForbidden,
		CodeInvalidTransition:   http.StatusConflict,
		CodeAlreadyRequested:    http.StatusConflict,
		CodeCapacityExceeded:    http.StatusConflict,
		CodeInvalidNotification: http.StatusBadRequest,
		CodeInvalidArgument:     http.StatusBadRequest,
		CodeUnauthenticated:     http.StatusUnauthorized,
		CodeUnknown:             http.StatusInternalServerError,
		Code("SOMETHING_ELSE"):  http.StatusInternalServerError,
	}
	for code, want := range tests {
		if got := code.HTTPStatus(); got != want {
			t.Fatalf("%s.HTTPStatus() = %d, want %d", code, got, want)
		}
	}
}

func TestUserMessageLocalized(t *testing.T) {
	en := UserMessage(message.NewPrinter(language.AmericanEnglish), CodeCapacityExceeded)
	if en != "This party is full." {
		t.Fatalf("en message = %q", en)
	}
	pt := UserMessage(message.NewPrinter(language.BrazilianPortuguese), CodeCapacityExceeded)
	if pt != "Esta festa está lotada." {
		t.Fatalf("pt-BR message = %q", pt)
	}
}

func TestUserMessageFallsBackToUnknown(t *testing.T) {
	got := UserMessage(message.NewPrinter(language.AmericanEnglish), Code("NOT_A_CODE"))
	if got != "Something went wrong. Please try again." {
		t.Fatalf("fallback message = %q", got)
	}
	if got := UserMessage(nil, CodeNotFound); got != "NOT_FOUND" {
		t.Fatalf("nil printer message = %q, want code", got)
	}
}
