package usage

import (
	"net/http"

	"github.com/makerhub/makerhub/internal/common/apperrors"
)

var (
	ErrUsage                apperrors.Error = apperrors.New("usage error").SetStatusCode(http.StatusInternalServerError)
	ErrIntroductionRequired apperrors.Error = ErrUsage.New("introduction required").SetStatusCode(http.StatusBadRequest)
	ErrSessionActive        apperrors.Error = ErrUsage.New("resource already has an active session").SetStatusCode(http.StatusBadRequest)
	ErrNoActiveSession      apperrors.Error = ErrUsage.New("no active session").SetStatusCode(http.StatusBadRequest)
	ErrNotSessionOwner      apperrors.Error = ErrUsage.New("only the session owner may end the session").SetStatusCode(http.StatusForbidden)
)
