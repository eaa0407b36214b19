package enums

import "fmt"

// TrackingStatus is the shipment's stage in the fixed carrier sequence.
type TrackingStatus string

const (
	TrackingStatusProcessing     TrackingStatus = "processing"
	TrackingStatusShipped        TrackingStatus = "shipped"
	TrackingStatusInTransit      TrackingStatus = "in_transit"
	TrackingStatusOutForDelivery TrackingStatus = "out_for_delivery"
	TrackingStatusDelivered      TrackingStatus = "delivered"
)

var validTrackingStatuses = []TrackingStatus{
	TrackingStatusProcessing,
	TrackingStatusShipped,
	TrackingStatusInTransit,
	TrackingStatusOutForDelivery,
	TrackingStatusDelivered,
}

// trackingStatusRank orders statuses along the forward-only sequence.
var trackingStatusRank = map[TrackingStatus]int{
	TrackingStatusProcessing:     0,
	TrackingStatusShipped:        1,
	TrackingStatusInTransit:      2,
	TrackingStatusOutForDelivery: 3,
	TrackingStatusDelivered:      4,
}

// String implements fmt.Stringer.
func (t TrackingStatus) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TrackingStatus.
func (t TrackingStatus) IsValid() bool {
	for _, candidate := range validTrackingStatuses {
		if candidate == t {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the shipment has reached its final stage.
func (t TrackingStatus) IsTerminal() bool {
	return t == TrackingStatusDelivered
}

// CanTransitionTo reports whether next is a strictly forward move from t.
func (t TrackingStatus) CanTransitionTo(next TrackingStatus) bool {
	from, ok := trackingStatusRank[t]
	if !ok {
		return false
	}
	to, ok := trackingStatusRank[next]
	if !ok {
		return false
	}
	return to > from
}

// ParseTrackingStatus converts raw input into a TrackingStatus.
func ParseTrackingStatus(value string) (TrackingStatus, error) {
	for _, candidate := range validTrackingStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid tracking status %q", value)
}
