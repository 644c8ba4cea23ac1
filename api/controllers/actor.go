package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/oakline/cabinetry-backend/api/middleware"
	pkgerrors "github.com/oakline/cabinetry-backend/pkg/errors"
	"github.com/oakline/cabinetry-backend/pkg/outbox"
)

// actorFromRequest builds the event actor from the authenticated context.
func actorFromRequest(r *http.Request) (*outbox.ActorRef, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return &outbox.ActorRef{
		UserID: userID,
		Role:   middleware.RoleFromContext(r.Context()),
	}, nil
}
