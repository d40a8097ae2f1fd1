package routing

import "time"

// WabaRoute re-points all traffic for one business account at an alternate
// processing environment. While enabled, the local pipeline forwards the raw
// carrier payload to TargetURL and stops.
type WabaRoute struct {
	WabaID    string    `bson:"wabaId" json:"wabaId"`
	TargetURL string    `bson:"targetUrl" json:"targetUrl"`
	Enabled   bool      `bson:"enabled" json:"enabled"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}
