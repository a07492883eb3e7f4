package controllers

import (
	"net/http"

	"github.com/auricjewels/auric-backend/api/middleware"
	"github.com/auricjewels/auric-backend/api/responses"
	"github.com/auricjewels/auric-backend/api/validators"
	checkoutsvc "github.com/auricjewels/auric-backend/internal/checkout"
	pkgerrors "github.com/auricjewels/auric-backend/pkg/errors"
	"github.com/auricjewels/auric-backend/pkg/logger"
)

// Checkout turns the submitted cart into an order. Gateway orders come back
// with the client checkout handle; COD and BNPL orders come back confirmed.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutsvc.Input
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Execute(r.Context(), userID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
