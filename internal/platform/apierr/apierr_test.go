package apierr

import (
	"errors"
	"net/http"
	"testing"
)

func TestErrorMessageAndUnwrap(t *testing.T) {
	cause := errors.New("bad date")
	err := BadRequest("invalid_filters", cause)
	if err.Status != http.StatusBadRequest {
		t.Fatalf("status: want=%d got=%d", http.StatusBadRequest, err.Status)
	}
	if err.Error() != "bad date" {
		t.Fatalf("message: want=%q got=%q", "bad date", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Fatalf("errors.Is: want cause to unwrap")
	}
	if got := New(http.StatusConflict, "", nil).Error(); got != "api error (409)" {
		t.Fatalf("status-only message: got=%q", got)
	}
	if got := New(0, "busy", nil).Error(); got != "busy" {
		t.Fatalf("code-only message: got=%q", got)
	}
}
