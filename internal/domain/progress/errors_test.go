package progress

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
)

func TestCodeOfPartialSyncIgnoresTargetCodes(t *testing.T) {
	target := Occurrence{Kind: OccurrencePostRequisite, ID: uuid.New()}
	partial := &PartialSyncError{
		Source: Occurrence{Kind: OccurrencePrerequisite, ID: uuid.New()},
		Failures: []TargetFailure{
			{Target: target, Err: NotFound("submissions", "assignment archived"), Reason: "archived"},
			{Target: target, Err: ValidationError("sync", []FieldError{{Field: "payload", Reason: "bad"}})},
		},
	}
	wrapped := fmt.Errorf("retry: %w", partial)

	if got := CodeOf(wrapped); got != CodePartialSync {
		t.Fatalf("code: want=%s got=%s", CodePartialSync, got)
	}
	if IsCode(wrapped, CodeNotFound) {
		t.Fatalf("partial sync reported as not_found")
	}
	if fields := FieldsOf(wrapped); fields != nil {
		t.Fatalf("fields: want nil got=%+v", fields)
	}
	var nf *Error
	if !errors.As(wrapped, &nf) || nf.Code != CodeNotFound {
		t.Fatalf("target errors should stay reachable: %v", nf)
	}
}

func TestCodeOfPlainErrors(t *testing.T) {
	if got := CodeOf(NotFound("op", "missing")); got != CodeNotFound {
		t.Fatalf("not found: got=%s", got)
	}
	if got := CodeOf(errors.New("x")); got != "" {
		t.Fatalf("uncoded: got=%q", got)
	}
	if got := CodeOf(nil); got != "" {
		t.Fatalf("nil: got=%q", got)
	}
}
