package usecase

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestError_FormatAndUnwrap(t *testing.T) {
	cause := errors.New("underlying failure")
	err := newError(ErrorStorage, "manifest_write", cause)

	require.Equal(t, "journal: STORAGE_ERROR (manifest_write): underlying failure", err.Error())
	require.ErrorIs(t, err, cause)

	bare := newError(ErrorNotFound, "conversation_not_found", nil)
	require.Equal(t, "journal: NOT_FOUND (conversation_not_found)", bare.Error())
}

func TestCodeOf(t *testing.T) {
	require.Equal(t, ErrorValidation, CodeOf(newError(ErrorValidation, "x", nil)))
	require.Equal(t, ErrorConflict, CodeOf(fmt.Errorf("wrapped: %w", newError(ErrorConflict, "x", nil))))
	require.Equal(t, ErrorInternal, CodeOf(errors.New("untyped")))
}

func TestHTTPStatus(t *testing.T) {
	require.Equal(t, http.StatusBadRequest, HTTPStatus(newError(ErrorValidation, "x", nil)))
	require.Equal(t, http.StatusNotFound, HTTPStatus(newError(ErrorNotFound, "x", nil)))
	require.Equal(t, http.StatusConflict, HTTPStatus(newError(ErrorConflict, "x", nil)))
	require.Equal(t, http.StatusServiceUnavailable, HTTPStatus(newError(ErrorNotConfigured, "x", nil)))
	require.Equal(t, http.StatusInternalServerError, HTTPStatus(newError(ErrorStorage, "x", nil)))
	require.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("untyped")))
}
