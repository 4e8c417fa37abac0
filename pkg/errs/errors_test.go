package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestToHTTP(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{ErrInvalidInput, http.StatusBadRequest},
		{fmt.Errorf("%w: room id", ErrInvalidInput), http.StatusBadRequest},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrConflict, http.StatusConflict},
		{fmt.Errorf("%w: insert message: boom", ErrUpstream), http.StatusBadGateway},
		{ErrMediaUnavailable, http.StatusUnprocessableEntity},
		{ErrNotImplemented, http.StatusNotImplemented},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := ToHTTP(c.err); got != c.want {
			t.Fatalf("ToHTTP(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}
