package errors

import (
	"fmt"
	"testing"
)

func TestKindSurvivesWrapping(t *testing.T) {
	base := E(CorruptArchive, "open", "/tmp/se.fsta", "bad magic")

	wrapped := fmt.Errorf("loading se: %w", Tag(base, "cache"))

	if KindOf(wrapped) != CorruptArchive {
		t.Fatalf("expected kind CorruptArchive, got %s", KindOf(wrapped))
	}
	if !IsCorruptArchive(wrapped) {
		t.Error("IsCorruptArchive should see through Tag and fmt wrapping")
	}
	if IsResourceNotFound(wrapped) {
		t.Error("IsResourceNotFound should be false")
	}
	if !Is(wrapped, &Error{Kind: CorruptArchive}) {
		t.Error("errors.Is should match on kind")
	}
}

func TestKindOfPlainError(t *testing.T) {
	if KindOf(New("boom")) != Unknown {
		t.Error("expected Unknown for plain errors")
	}
	if IsKind(nil, Unknown) {
		t.Error("nil error should not match any kind")
	}
}

func TestErrorMessage(t *testing.T) {
	err := Wrap(ResourceNotFound, "open", "/x/se.fsta", New("no such file"))
	want := "open /x/se.fsta: resourcenotfound: no such file"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}

func TestGetCause(t *testing.T) {
	base := New("root")
	tagged := Tag(Tag(base, "inner"), "outer")
	if GetCause(tagged) != base {
		t.Error("expected GetCause to unwind all tags")
	}
	if tagged.Error() != "outer: inner: root" {
		t.Errorf("unexpected message %q", tagged.Error())
	}
}

func TestMerge(t *testing.T) {
	if Merge(nil, nil) != nil {
		t.Error("expected nil for no errors")
	}
	one := New("one")
	if Merge(nil, one) != one {
		t.Error("expected single error to be returned as is")
	}
	merged := Merge(one, E(UseAfterInvalidate, "close", "", ""))
	if merged.Error() != "merged: one + close useafterinvalidate" {
		t.Errorf("unexpected merged message %q", merged.Error())
	}
	if !IsUseAfterInvalidate(merged) {
		t.Error("expected merged error to expose inner kinds")
	}
}

func TestPublicMessage(t *testing.T) {
	if got := GetPublicMessage(New("internal detail"), "failed"); got != "failed" {
		t.Errorf("expected fallback, got %q", got)
	}
	err := E(InvalidArgument, "suggest", "", "empty token")
	if got := GetPublicMessage(err, "failed"); got != err.Error() {
		t.Errorf("expected public message, got %q", got)
	}
}

func TestParseKind(t *testing.T) {
	for k := ResourceNotFound; k <= InvalidArgument; k++ {
		if got := ParseKind(k.String()); got != k {
			t.Errorf("ParseKind(%s) = %v", k, got)
		}
	}
	if ParseKind("Bogus") != Unknown {
		t.Error("expected Unknown for an unrecognized name")
	}
}
