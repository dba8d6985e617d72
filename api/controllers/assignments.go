package controllers

import (
	"net/http"

	"github.com/Amrkhafagii/mealverse-backend/api/responses"
	"github.com/Amrkhafagii/mealverse-backend/api/validators"
	"github.com/Amrkhafagii/mealverse-backend/internal/assignment"
	"github.com/Amrkhafagii/mealverse-backend/pkg/logger"
)

type respondRequest struct {
	Accept *bool `json:"accept" validate:"required"`
}

// RespondToOffer records a restaurant's accept or reject decision on an
// open assignment offer.
func RespondToOffer(svc assignment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		restaurantID, err := actorUUID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		assignmentID, err := pathUUID(r, "assignmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req respondRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		outcome, err := svc.Respond(r.Context(), assignment.RespondInput{
			AssignmentID: assignmentID,
			RestaurantID: restaurantID,
			Accept:       *req.Accept,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, outcome)
	}
}

// ListOrderAssignments returns every offer made for an order, oldest first.
func ListOrderAssignments(svc assignment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ListOrderAssignments(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"assignments": rows})
	}
}
