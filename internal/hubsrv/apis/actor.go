package apis

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/makerhub/makerhub/internal/common/httpx"
	"github.com/makerhub/makerhub/internal/hubsrv/policy"
)

// Actor headers injected by the fronting auth layer. Authentication itself is
// out of scope for this service; requests arriving without an actor are
// rejected.
const (
	ActorIDHeader     = "X-Actor-ID"
	ActorManageHeader = "X-Actor-Can-Manage"
)

func ActorContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawID := r.Header.Get(ActorIDHeader)
		if rawID == "" {
			httpx.ErrUnAuthorized("missing actor identity").Send(w)
			return
		}
		userID, err := uuid.Parse(rawID)
		if err != nil {
			httpx.ErrUnAuthorized("invalid actor identity").Send(w)
			return
		}
		actor := policy.Actor{
			UserID:             userID,
			CanManageResources: r.Header.Get(ActorManageHeader) == "true",
		}
		next.ServeHTTP(w, r.WithContext(policy.WithActor(r.Context(), actor)))
	})
}

func actorFromRequest(r *http.Request) (policy.Actor, error) {
	actor, ok := policy.ActorFrom(r.Context())
	if !ok {
		return policy.Actor{}, httpx.ErrUnAuthorized()
	}
	return actor, nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, httpx.ErrInvalidRequest("invalid " + name)
	}
	return id, nil
}
