package errorx

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ErrEmptyMessage, http.StatusBadRequest},
		{ErrForbidden, http.StatusForbidden},
		{ErrGroupNotFound, http.StatusNotFound},
		{New(CodeUnauthorized, "login first"), http.StatusUnauthorized},
		{ErrStorageFailure, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, HTTPStatus(tc.err), tc.err.Error())
	}
}

func TestWrapKeepsCauseAndCode(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(cause, CodeStorageError, "store file")

	require.ErrorIs(t, err, cause)
	require.Equal(t, CodeStorageError, GetCode(err))
	require.Equal(t, "store file: disk full", err.Error())
}

func TestIsMatchesPredefined(t *testing.T) {
	var err error = ErrForbidden
	require.True(t, errors.Is(err, ErrForbidden))
	require.False(t, errors.Is(err, ErrGroupNotFound))
	require.True(t, IsNotFound(ErrFileNotFound))
	require.False(t, IsNotFound(ErrForbidden))
}
