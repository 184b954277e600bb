package types

// Location represents where an issue was reported
type Location struct {
	Address string  `json:"address,omitempty"`
	Zone    string  `json:"zone,omitempty"`
	Lat     float64 `json:"lat,omitempty"`
	Lng     float64 `json:"lng,omitempty"`
}

// HasCoordinates reports whether the location carries a GPS fix
func (l Location) HasCoordinates() bool {
	return l.Lat != 0 || l.Lng != 0
}

// GeoVerification is the GPS fix captured alongside proof-of-work media.
// AccuracyMeters is the device-reported accuracy radius.
type GeoVerification struct {
	Lat            float64 `json:"lat"`
	Lng            float64 `json:"lng"`
	AccuracyMeters float64 `json:"accuracy_meters,omitempty"`
}
