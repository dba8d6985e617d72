package maps

import (
	"context"
	"errors"
	"fmt"
	"time"

	gmaps "googlemaps.github.io/maps"
)

var errAPIKeyRequired = errors.New("google maps api key is required")

// directionsAPI is the slice of the Google Maps client this package uses.
type directionsAPI interface {
	Directions(ctx context.Context, r *gmaps.DirectionsRequest) ([]gmaps.Route, []gmaps.GeocodedWaypoint, error)
}

// Client wraps the Google Maps Directions API for travel time estimates.
type Client struct {
	api directionsAPI
}

// TravelEstimate is a single driving route summary.
type TravelEstimate struct {
	Duration   time.Duration
	DistanceM  int
	DistanceHR string
}

// NewClient builds a Directions client with the given API key.
func NewClient(apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	api, err := gmaps.NewClient(gmaps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating maps client: %w", err)
	}
	return &Client{api: api}, nil
}

// EstimateDriving returns the driving duration and distance between two coordinates.
func (c *Client) EstimateDriving(ctx context.Context, originLat, originLng, destLat, destLng float64) (*TravelEstimate, error) {
	if c == nil || c.api == nil {
		return nil, errors.New("maps client not initialized")
	}
	req := &gmaps.DirectionsRequest{
		Origin:      fmt.Sprintf("%f,%f", originLat, originLng),
		Destination: fmt.Sprintf("%f,%f", destLat, destLng),
		Mode:        gmaps.TravelModeDriving,
	}
	routes, _, err := c.api.Directions(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return nil, errors.New("no route found")
	}
	leg := routes[0].Legs[0]
	return &TravelEstimate{
		Duration:   leg.Duration,
		DistanceM:  leg.Distance.Meters,
		DistanceHR: leg.Distance.HumanReadable,
	}, nil
}
