package introductions

import (
	"net/http"

	"github.com/makerhub/makerhub/internal/common/apperrors"
)

var (
	ErrIntroduction     apperrors.Error = apperrors.New("introduction error").SetStatusCode(http.StatusInternalServerError)
	ErrNotIntroducer    apperrors.Error = ErrIntroduction.New("user is not authorized to give introductions").SetStatusCode(http.StatusForbidden)
	ErrNotAuthorized    apperrors.Error = ErrIntroduction.New("not authorized").SetStatusCode(http.StatusForbidden)
	ErrAlreadyCompleted apperrors.Error = ErrIntroduction.New("receiver already has a completed introduction").SetStatusCode(http.StatusConflict)
	ErrAlreadyRevoked   apperrors.Error = ErrIntroduction.New("introduction is already revoked").SetStatusCode(http.StatusBadRequest)
	ErrNotRevoked       apperrors.Error = ErrIntroduction.New("introduction is not revoked").SetStatusCode(http.StatusBadRequest)
)
