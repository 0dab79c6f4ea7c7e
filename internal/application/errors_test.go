package application

import (
	"errors"
	"fmt"
	"testing"

	"dspacegw/internal/domain"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorKind
	}{
		{&domain.DecodeError{Field: "To", Err: domain.ErrBadLength}, KindInvalidInput},
		{fmt.Errorf("%w: empty", domain.ErrInvalidName), KindInvalidInput},
		{fmt.Errorf("lookup: %w", domain.ErrReceiptNotFound), KindNotFound},
		{fmt.Errorf("%w: alice", domain.ErrAccountExists), KindConflict},
		{fmt.Errorf("%w: send after 30s", ErrBridgeTimeout), KindTimeout},
		{errors.New("connection refused"), KindInternal},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Errorf("%v: got %s want %s", tc.err, got, tc.want)
		}
	}
}
