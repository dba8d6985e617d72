package maps

import (
	"context"
	"errors"
	"testing"
	"time"

	gmaps "googlemaps.github.io/maps"
)

type fakeDirections struct {
	routes []gmaps.Route
	err    error
}

func (f *fakeDirections) Directions(ctx context.Context, r *gmaps.DirectionsRequest) ([]gmaps.Route, []gmaps.GeocodedWaypoint, error) {
	return f.routes, nil, f.err
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient(""); err == nil {
		t.Fatalf("expected error for empty api key")
	}
}

func TestEstimateDrivingReturnsLeg(t *testing.T) {
	client := &Client{api: &fakeDirections{
		routes: []gmaps.Route{
			{
				Legs: []*gmaps.Leg{
					{
						Duration: 14 * time.Minute,
						Distance: gmaps.Distance{Meters: 6200, HumanReadable: "6.2 km"},
					},
				},
			},
		},
	}}

	estimate, err := client.EstimateDriving(context.Background(), 30.04, 31.23, 30.08, 31.25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if estimate.Duration != 14*time.Minute {
		t.Fatalf("unexpected duration %v", estimate.Duration)
	}
	if estimate.DistanceM != 6200 {
		t.Fatalf("unexpected distance %d", estimate.DistanceM)
	}
}

func TestEstimateDrivingNoRoute(t *testing.T) {
	client := &Client{api: &fakeDirections{}}
	if _, err := client.EstimateDriving(context.Background(), 0, 0, 1, 1); err == nil {
		t.Fatalf("expected error when no routes returned")
	}
}

func TestEstimateDrivingAPIError(t *testing.T) {
	client := &Client{api: &fakeDirections{err: errors.New("quota exceeded")}}
	if _, err := client.EstimateDriving(context.Background(), 0, 0, 1, 1); err == nil {
		t.Fatalf("expected wrapped api error")
	}
}
