package controllers

import (
	"net/http"
	"strings"

	"github.com/Amrkhafagii/mealverse-backend/api/responses"
	"github.com/Amrkhafagii/mealverse-backend/api/validators"
	"github.com/Amrkhafagii/mealverse-backend/internal/syncqueue"
	pkgerrors "github.com/Amrkhafagii/mealverse-backend/pkg/errors"
	"github.com/Amrkhafagii/mealverse-backend/pkg/logger"
)

const maxSyncListLimit = 500

// ListSyncEntries returns stuck queue entries by status for operator review.
func ListSyncEntries(svc syncqueue.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 100, 1, maxSyncListLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var rows any
		switch status := strings.TrimSpace(r.URL.Query().Get("status")); status {
		case "suspended", "":
			rows, err = svc.ListSuspended(r.Context(), limit)
		case "failed":
			rows, err = svc.ListFailed(r.Context(), limit)
		default:
			err = pkgerrors.New(pkgerrors.CodeValidation, "status must be suspended or failed")
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"entries": rows})
	}
}

type resolveSyncRequest struct {
	Apply *bool `json:"apply" validate:"required"`
}

// ResolveSyncEntry settles a manually-suspended entry: apply it as queued
// or discard it.
func ResolveSyncEntry(svc syncqueue.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entryID, err := pathUUID(r, "entryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req resolveSyncRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.ResolveSuspended(r.Context(), entryID, *req.Apply); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"resolved": true})
	}
}

// FlushSyncQueue drains pending entries. Clients call it when connectivity
// returns; the cron sweep covers the rest.
func FlushSyncQueue(svc syncqueue.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.Flush(r.Context(), true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}
