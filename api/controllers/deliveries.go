package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Amrkhafagii/mealverse-backend/api/middleware"
	"github.com/Amrkhafagii/mealverse-backend/api/responses"
	"github.com/Amrkhafagii/mealverse-backend/api/validators"
	"github.com/Amrkhafagii/mealverse-backend/internal/delivery"
	"github.com/Amrkhafagii/mealverse-backend/internal/tracking"
	"github.com/Amrkhafagii/mealverse-backend/pkg/db/models"
	"github.com/Amrkhafagii/mealverse-backend/pkg/logger"
)

type deliveryAction func(ctx context.Context, deliveryID, driverID uuid.UUID) (*models.DeliveryAssignment, error)

func deliveryTransition(action deliveryAction, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		driverID, err := actorUUID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		deliveryID, err := pathUUID(r, "deliveryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		updated, err := action(r.Context(), deliveryID, driverID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}

// AcceptDelivery lets a driver claim a pending delivery.
func AcceptDelivery(svc delivery.Service, logg *logger.Logger) http.HandlerFunc {
	return deliveryTransition(svc.Accept, logg)
}

// PickupDelivery marks the meal as collected from the restaurant.
func PickupDelivery(svc delivery.Service, logg *logger.Logger) http.HandlerFunc {
	return deliveryTransition(svc.MarkPickedUp, logg)
}

// DepartDelivery marks the driver en route to the customer.
func DepartDelivery(svc delivery.Service, logg *logger.Logger) http.HandlerFunc {
	return deliveryTransition(svc.MarkOnTheWay, logg)
}

// CompleteDelivery marks the order delivered.
func CompleteDelivery(svc delivery.Service, logg *logger.Logger) http.HandlerFunc {
	return deliveryTransition(svc.MarkDelivered, logg)
}

// DeliveryDetail returns one delivery assignment.
func DeliveryDetail(svc delivery.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deliveryID, err := pathUUID(r, "deliveryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		row, err := svc.GetDelivery(r.Context(), deliveryID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, row)
	}
}

type locationSampleRequest struct {
	Latitude   float64   `json:"latitude" validate:"latitude"`
	Longitude  float64   `json:"longitude" validate:"longitude"`
	AccuracyM  float64   `json:"accuracy_m" validate:"min=0"`
	AltitudeM  *float64  `json:"altitude_m,omitempty"`
	HeadingDeg *float64  `json:"heading_deg,omitempty"`
	SpeedMps   *float64  `json:"speed_mps,omitempty"`
	Source     string    `json:"source,omitempty"`
	RecordedAt time.Time `json:"recorded_at" validate:"required"`
	Online     *bool     `json:"online" validate:"required"`
}

type sampleRecorder interface {
	RecordSample(ctx context.Context, input tracking.RecordInput) (*tracking.RecordResult, error)
}

// ReportLocation ingests one driver location sample. Offline samples are
// queued for later sync instead of applied directly.
func ReportLocation(svc delivery.Service, recorder sampleRecorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		driverID, err := actorUUID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		deliveryID, err := pathUUID(r, "deliveryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req locationSampleRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.GetDelivery(r.Context(), deliveryID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := recorder.RecordSample(r.Context(), tracking.RecordInput{
			OrderID:  row.OrderID,
			DriverID: driverID,
			DeviceID: middleware.DeviceIDFromContext(r.Context()),
			Online:   *req.Online,
			Sample: tracking.LocationSample{
				ClientID:   middleware.DeviceIDFromContext(r.Context()),
				Latitude:   req.Latitude,
				Longitude:  req.Longitude,
				AccuracyM:  req.AccuracyM,
				AltitudeM:  req.AltitudeM,
				HeadingDeg: req.HeadingDeg,
				SpeedMps:   req.SpeedMps,
				Source:     req.Source,
				RecordedAt: req.RecordedAt,
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, result)
	}
}
