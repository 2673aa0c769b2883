package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{InvalidErr("bad", nil), http.StatusBadRequest},
		{NotFoundErr("missing"), http.StatusNotFound},
		{ConflictErr("dup"), http.StatusConflict},
		{UnauthorizedErr("no"), http.StatusUnauthorized},
		{ForbiddenErr("no"), http.StatusForbidden},
		{ErrInvalidSignature, http.StatusBadRequest},
		{ProviderUnavailableErr("down", errors.New("timeout")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
		{fmt.Errorf("context: %w", NotFoundErr("order not found")), http.StatusNotFound},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err), tc.err.Error())
	}
}

func TestSentinelsMatchThroughWrapping(t *testing.T) {
	err := fmt.Errorf("checkout: %w", ErrEmptyCart)
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.NotErrorIs(t, err, ErrAlreadyEnrolled)
	assert.Equal(t, Invalid, KindOf(err))
}

func TestPublicMessageRedactsInternal(t *testing.T) {
	err := Wrap(errors.New("pq: connection refused"))
	assert.Equal(t, internalMessage, PublicMessage(err, false))
	assert.Contains(t, PublicMessage(err, true), "connection refused")
	assert.Equal(t, "Cart is empty", PublicMessage(ErrEmptyCart, false))
}

func TestWrapKeepsClassifiedErrors(t *testing.T) {
	assert.Nil(t, Wrap(nil))
	nf := NotFoundErr("x")
	assert.Same(t, nf, Wrap(nf))
	assert.Equal(t, Internal, KindOf(Wrap(errors.New("y"))))
}
