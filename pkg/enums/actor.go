package enums

import "fmt"

// Actor identifies which role caused an order transition.
type Actor string

const (
	ActorSystem     Actor = "system"
	ActorCustomer   Actor = "customer"
	ActorRestaurant Actor = "restaurant"
	ActorDriver     Actor = "driver"
)

var validActors = []Actor{
	ActorSystem,
	ActorCustomer,
	ActorRestaurant,
	ActorDriver,
}

// String implements fmt.Stringer.
func (a Actor) String() string {
	return string(a)
}

// IsValid reports whether the value is a known Actor.
func (a Actor) IsValid() bool {
	for _, candidate := range validActors {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseActor converts raw input into an Actor.
func ParseActor(value string) (Actor, error) {
	for _, candidate := range validActors {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor %q", value)
}
