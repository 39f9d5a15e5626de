package types

import "time"

// DiscoveryRecord is one PDC entry: a runtime observation that a provider
// rejected a parameter for a given model.
type DiscoveryRecord struct {
	Parameter   ParameterName
	Provider    string
	Model       string
	DiscoveredAt time.Time
	Reason      string
}
