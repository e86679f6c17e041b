package models

// ResourceGroup is one pool of capacity: an organizational unit accepting
// interns, a meeting room, an equipment type, a vehicle class. Quota is
// the hard ceiling of simultaneous approved bookings per calendar day;
// zero means "use the configured default".
type ResourceGroup struct {
	Name      string `json:"name" yaml:"name"`
	Type      string `json:"type" yaml:"type"`
	Quota     int    `json:"quota" yaml:"quota"`
	IsActive  bool   `json:"is_active" yaml:"is_active"`
	SortOrder int64  `json:"sort_order" yaml:"sort_order"`
}
