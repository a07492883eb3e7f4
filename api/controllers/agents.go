package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/auricjewels/auric-backend/api/middleware"
	"github.com/auricjewels/auric-backend/api/responses"
	"github.com/auricjewels/auric-backend/api/validators"
	"github.com/auricjewels/auric-backend/internal/agents"
	"github.com/auricjewels/auric-backend/internal/orders"
	"github.com/auricjewels/auric-backend/pkg/enums"
	pkgerrors "github.com/auricjewels/auric-backend/pkg/errors"
	"github.com/auricjewels/auric-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// AdminAgentRegister adds a delivery agent to the roster.
func AdminAgentRegister(svc agents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "agent service unavailable"))
			return
		}

		var payload agents.RegisterInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		agent, err := svc.Register(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, agent)
	}
}

func AdminAgentList(svc agents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "agent service unavailable"))
			return
		}

		roster, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, roster)
	}
}

// AdminAgentStats reads one agent's workload counters.
func AdminAgentStats(svc agents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "agent service unavailable"))
			return
		}

		raw := strings.TrimSpace(chi.URLParam(r, "agentId"))
		agentID, err := uuid.Parse(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid agent id"))
			return
		}

		agent, err := svc.Stats(r.Context(), agentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, agent)
	}
}

type assignRequest struct {
	AgentID uuid.UUID `json:"agent_id" validate:"required"`
}

// AdminOrderAssign reroutes an order to a specific agent, retiring any
// existing assignment and updating the order row in the same transaction.
func AdminOrderAssign(svc agents.Service, repo orders.Repository, tx txRunner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || repo == nil || tx == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "agent assignment unavailable"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload assignRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actorID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var result *agents.AssignResult
		txErr := tx.WithTx(r.Context(), func(conn *gorm.DB) error {
			txRepo := repo.WithTx(conn)
			order, err := txRepo.GetByID(r.Context(), orderID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
			}
			if order.Status.Rank() >= enums.OrderStatusShipped.Rank() || order.Status == enums.OrderStatusCancelled {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be reassigned")
			}

			res, err := svc.Reassign(r.Context(), conn, orderID, payload.AgentID, &actorID)
			if err != nil {
				return err
			}
			result = res
			return txRepo.SetAgent(r.Context(), orderID, &payload.AgentID)
		})
		if txErr != nil {
			responses.WriteError(r.Context(), logg, w, txErr)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
