package pipeline

import (
	"errors"
	"testing"
)

func TestErrorKindMapping(t *testing.T) {
	cases := []struct {
		err  error
		kind string
	}{
		{nil, ""},
		{ErrAssetLoad("missing"), "asset_load"},
		{ErrInvalidRequest("bad width"), "invalid_request"},
		{ErrEncoding("control char"), "encoding"},
		{errSampling("sampling", "nan"), "sampling"},
		{ErrDecode("shape"), "decode"},
		{errTimeout("sampling"), "timeout"},
		{errCancelled("sampling"), "cancelled"},
		{tooBusyError{}, "too_busy"},
		{errOutput("disk full"), "output"},
		{errors.New("plain"), "internal"},
	}
	for _, c := range cases {
		if got := ErrorKind(c.err); got != c.kind {
			t.Errorf("ErrorKind(%v) = %q, want %q", c.err, got, c.kind)
		}
	}
}

func TestPredicatesDoNotOverlap(t *testing.T) {
	if IsCancelled(errTimeout("x")) {
		t.Fatalf("plain timeout must not read as cancelled")
	}
	if !IsTimeout(errCancelled("x")) {
		t.Fatalf("cancellation is a timeout-family error")
	}
	if IsSampling(ErrDecode("x")) || IsDecode(errSampling("s", "x")) {
		t.Fatalf("sampling and decode kinds must be distinct")
	}
	if IsAssetLoad(errors.New("asset load: lookalike")) {
		t.Fatalf("predicate must match by type, not message")
	}
}
