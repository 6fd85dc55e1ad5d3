package publisher

import "net/url"

const (
	mapsSearchURL     = "https://www.google.com/maps/search/"
	mapsDirectionsURL = "https://www.google.com/maps/dir/"
)

// MapsSearchURL links to a Google Maps search for query, optionally
// disambiguated by location ("Ichiran Shinjuku, Tokyo").
func MapsSearchURL(query, location string) string {
	if location != "" {
		query += ", " + location
	}
	return mapsSearchURL + "?" + url.Values{"api": {"1"}, "query": {query}}.Encode()
}

// MapsDirectionsURL links to directions between two places. mode is one of
// transit, driving, walking, bicycling; empty means transit.
func MapsDirectionsURL(origin, destination, mode string) string {
	if mode == "" {
		mode = "transit"
	}
	return mapsDirectionsURL + "?" + url.Values{
		"api":         {"1"},
		"origin":      {origin},
		"destination": {destination},
		"travelmode":  {mode},
	}.Encode()
}
