package response

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorIsMatchesCodeAndMessage(t *testing.T) {
	t.Parallel()

	sentinel := NewError(http.StatusServiceUnavailable, "can't reach the server")
	wrapped := fmt.Errorf("%w: %w", sentinel, errors.New("dial tcp: refused"))

	if !errors.Is(wrapped, NewError(http.StatusServiceUnavailable, "can't reach the server")) {
		t.Fatalf("expected equal code+message errors to match")
	}
	if errors.Is(wrapped, NewError(http.StatusGatewayTimeout, "can't reach the server")) {
		t.Fatalf("expected different code not to match")
	}
}

func TestStatusCodeFromWrappedCollaboratorError(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("transcribe: %w", Wrap(http.StatusUnauthorized, errors.New("token expired")))
	code, ok := StatusCode(err)
	if !ok || code != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: %d ok=%v", code, ok)
	}
	if !IsUnauthorized(code) {
		t.Fatalf("expected 401 to be unauthorized")
	}
	if _, ok := StatusCode(errors.New("plain")); ok {
		t.Fatalf("plain error should not carry a code")
	}
	if Wrap(http.StatusOK, nil) != nil {
		t.Fatalf("wrapping nil should stay nil")
	}
}
