// Package locations maps the free-text location token a client types into
// the TCP protocol to the coordinates and bidding zone the remote weather
// and price APIs need. The command protocol itself never requires
// coordinates — this table only exists to reach those HTTPS endpoints.
package locations

import "strings"

// Entry is one named location's geographic and market coordinates.
type Entry struct {
	Name      string
	Latitude  float64
	Longitude float64
	Timezone  string
	Region    string // default Swedish bidding zone for this location
}

var table = map[string]Entry{
	"stockholm": {Name: "stockholm", Latitude: 59.3293, Longitude: 18.0686, Timezone: "Europe/Stockholm", Region: "SE3"},
	"goteborg":  {Name: "goteborg", Latitude: 57.7089, Longitude: 11.9746, Timezone: "Europe/Stockholm", Region: "SE3"},
	"malmo":     {Name: "malmo", Latitude: 55.6050, Longitude: 13.0038, Timezone: "Europe/Stockholm", Region: "SE4"},
	"lulea":     {Name: "lulea", Latitude: 65.5848, Longitude: 22.1567, Timezone: "Europe/Stockholm", Region: "SE1"},
	"sundsvall": {Name: "sundsvall", Latitude: 62.3908, Longitude: 17.3069, Timezone: "Europe/Stockholm", Region: "SE2"},
}

// Lookup resolves a location token case-insensitively. Unknown locations
// fall back to Stockholm's coordinates, matching the command parser's own
// default of "stockholm"/"SE3".
func Lookup(name string) Entry {
	if e, ok := table[strings.ToLower(strings.TrimSpace(name))]; ok {
		return e
	}
	return table["stockholm"]
}

// ValidRegion reports whether region is one of the four Swedish bidding
// zones accepted by the price API.
func ValidRegion(region string) bool {
	switch strings.ToUpper(region) {
	case "SE1", "SE2", "SE3", "SE4":
		return true
	default:
		return false
	}
}
