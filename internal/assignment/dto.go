package assignment

import (
	"github.com/google/uuid"

	"github.com/Amrkhafagii/mealverse-backend/pkg/db/models"
	"github.com/Amrkhafagii/mealverse-backend/pkg/enums"
)

// RespondInput is a restaurant's answer to one offer.
type RespondInput struct {
	AssignmentID uuid.UUID
	RestaurantID uuid.UUID
	Accept       bool
}

// OfferOutcome reports what CreateOffers did for an order.
type OfferOutcome struct {
	// Assignment is the pending offer now on the table, nil when the order
	// terminated without one.
	Assignment  *models.RestaurantAssignment
	OrderStatus enums.OrderStatus
}

// RespondOutcome reports the state after a restaurant response.
type RespondOutcome struct {
	Assignment  *models.RestaurantAssignment
	OrderStatus enums.OrderStatus
	// NextOffer is set when a rejection triggered a re-offer.
	NextOffer *models.RestaurantAssignment
}

// SweepStats summarizes one expiry sweep pass.
type SweepStats struct {
	Expired   int
	ReOffered int
	Exhausted int
}

type candidate struct {
	restaurant models.Restaurant
	distanceKm float64
}
