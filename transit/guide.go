// Package transit builds the local pass and inter-city travel guide that the
// planning step works from.
package transit

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed passes.yaml
var builtin []byte

type Pass struct {
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind"`
	Cost     string `yaml:"cost"`
	Coverage string `yaml:"coverage"`
	Where    string `yaml:"where"`
	Notes    string `yaml:"notes"`
}

type City struct {
	Country string   `yaml:"country"`
	Passes  []Pass   `yaml:"passes"`
	Tips    []string `yaml:"tips"`
}

type RailPassOption struct {
	Days int    `yaml:"days"`
	Cost string `yaml:"cost"`
}

type RailPass struct {
	Name     string           `yaml:"name"`
	Coverage string           `yaml:"coverage"`
	Booking  string           `yaml:"booking"`
	Options  []RailPassOption `yaml:"options"`
}

// Leg is a point-to-point fare; it applies in both directions.
type Leg struct {
	From     string `yaml:"from"`
	To       string `yaml:"to"`
	Cost     string `yaml:"cost"`
	Duration string `yaml:"duration"`
}

type Country struct {
	RailPass *RailPass `yaml:"rail_pass"`
	Legs     []Leg     `yaml:"legs"`
	Tips     []string  `yaml:"tips"`
}

// Table is the decoded pass data. It implements generator.TransitGuide.
type Table struct {
	General   []string           `yaml:"general"`
	Cities    map[string]City    `yaml:"cities"`
	Countries map[string]Country `yaml:"countries"`
}

// Builtin decodes the table shipped with the binary.
func Builtin() (*Table, error) {
	return Parse(builtin)
}

// Parse decodes a pass table. City and country keys are matched lower-case.
func Parse(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode transit table: %w", err)
	}
	for name, c := range t.Cities {
		if _, ok := t.Countries[c.Country]; c.Country != "" && !ok {
			return nil, fmt.Errorf("transit table: city %q refers to unknown country %q", name, c.Country)
		}
	}
	return &t, nil
}

// key reduces "Kyoto, Japan" to "kyoto".
func key(s string) string {
	name, _, _ := strings.Cut(s, ",")
	return strings.ToLower(strings.TrimSpace(name))
}

// country resolves the country of a city from the table, or from a
// "City, Country" suffix when the city is not listed.
func (t *Table) country(city string) string {
	if c, ok := t.Cities[key(city)]; ok && c.Country != "" {
		return c.Country
	}
	if _, ok := t.Countries[key(city)]; ok {
		return key(city)
	}
	if _, rest, ok := strings.Cut(city, ","); ok {
		if name := strings.ToLower(strings.TrimSpace(rest)); t.Countries[name].RailPass != nil || len(t.Countries[name].Legs) > 0 {
			return name
		}
	}
	return ""
}

// Guide renders transit advice for the route. A multi-city trip inside one
// listed country gets the inter-city strategy plus each city's main pass;
// otherwise every city gets its full pass list. days sizes the rail pass.
func (t *Table) Guide(cities []string, days int) string {
	if len(cities) == 0 {
		return ""
	}
	var b strings.Builder
	if country := t.sharedCountry(cities); country != "" && len(cities) > 1 {
		t.writeCountry(&b, country, cities, days)
		return strings.TrimSpace(b.String())
	}
	unknown := false
	for _, c := range cities {
		info, ok := t.Cities[key(c)]
		if !ok {
			unknown = true
			continue
		}
		writeCity(&b, c, info)
	}
	if unknown && len(t.General) > 0 {
		b.WriteString("General advice for other cities:\n")
		writeList(&b, t.General)
	}
	return strings.TrimSpace(b.String())
}

// sharedCountry returns the country every city belongs to, if any.
func (t *Table) sharedCountry(cities []string) string {
	first := t.country(cities[0])
	if first == "" {
		return ""
	}
	for _, c := range cities[1:] {
		if t.country(c) != first {
			return ""
		}
	}
	return first
}

func (t *Table) writeCountry(b *strings.Builder, country string, cities []string, days int) {
	info := t.Countries[country]
	if rp := info.RailPass; rp != nil && len(rp.Options) > 0 {
		opt := rp.Options[len(rp.Options)-1]
		for _, o := range rp.Options {
			if o.Days >= days {
				opt = o
				break
			}
		}
		fmt.Fprintf(b, "Inter-city: %s, %d-day %s, covers %s.\n", rp.Name, opt.Days, opt.Cost, rp.Coverage)
		if rp.Booking != "" {
			fmt.Fprintf(b, "Booking: %s.\n", rp.Booking)
		}
	}
	var fares []string
	for i := 1; i < len(cities); i++ {
		if leg, ok := info.leg(cities[i-1], cities[i]); ok {
			fares = append(fares, fmt.Sprintf("%s -> %s: %s (%s)", cities[i-1], cities[i], leg.Cost, leg.Duration))
		}
	}
	if len(fares) > 0 {
		b.WriteString("Single tickets for comparison:\n")
		writeList(b, fares)
	}
	for _, c := range cities {
		if city, ok := t.Cities[key(c)]; ok && len(city.Passes) > 0 {
			p := city.Passes[0]
			fmt.Fprintf(b, "In %s: get a %s (%s) for local transit.\n", c, p.Name, p.Cost)
		}
	}
	if len(info.Tips) > 0 {
		b.WriteString("Tips:\n")
		writeList(b, info.Tips)
	}
}

func (c Country) leg(from, to string) (Leg, bool) {
	f, t := key(from), key(to)
	for _, l := range c.Legs {
		if (l.From == f && l.To == t) || (l.From == t && l.To == f) {
			return l, true
		}
	}
	return Leg{}, false
}

func writeCity(b *strings.Builder, name string, c City) {
	fmt.Fprintf(b, "%s passes:\n", name)
	for _, p := range c.Passes {
		fmt.Fprintf(b, "- %s (%s, %s): %s; buy at %s.", p.Name, p.Kind, p.Cost, p.Coverage, p.Where)
		if p.Notes != "" {
			fmt.Fprintf(b, " %s", p.Notes)
		}
		b.WriteString("\n")
	}
	writeList(b, c.Tips)
}

func writeList(b *strings.Builder, items []string) {
	for _, s := range items {
		fmt.Fprintf(b, "- %s\n", s)
	}
}
