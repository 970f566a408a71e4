package store

import (
	"net/http"

	"github.com/makerhub/makerhub/internal/common/apperrors"
)

var (
	ErrStore               apperrors.Error = apperrors.New("store error").SetStatusCode(http.StatusInternalServerError)
	ErrNotFound            apperrors.Error = ErrStore.New("not found").SetStatusCode(http.StatusNotFound)
	ErrAlreadyExists       apperrors.Error = ErrStore.New("already exists").SetStatusCode(http.StatusConflict)
	ErrActiveSessionExists apperrors.Error = ErrStore.New("resource already has an active session").SetStatusCode(http.StatusBadRequest)
	ErrInvalidInput        apperrors.Error = ErrStore.New("invalid input").SetStatusCode(http.StatusBadRequest)
)
