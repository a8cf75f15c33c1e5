package listing

import (
	"net/url"
	"strings"
	"time"

	"github.com/realpulse/bds-harvester/internal/textutil"
)

// FilterSpec carries the user-supplied constraints for one crawl invocation.
// Location is applied through the site's interactive search; the remaining
// fields translate into query-string parameters. The zero value of every
// field means "unconstrained": empty filters are omitted from the URL, never
// defaulted to a wildcard.
type FilterSpec struct {
	Location string `mapstructure:"location" json:"location,omitempty"`

	PriceFrom string `mapstructure:"price_from" json:"price_from,omitempty"`
	PriceTo   string `mapstructure:"price_to" json:"price_to,omitempty"`
	AreaFrom  string `mapstructure:"area_from" json:"area_from,omitempty"`
	AreaTo    string `mapstructure:"area_to" json:"area_to,omitempty"`

	Direction string `mapstructure:"direction" json:"direction,omitempty"`
	// Frontage and Road are site bucket codes (1 = under 5m ... 6 = over 15m).
	Frontage string `mapstructure:"frontage" json:"frontage,omitempty"`
	Road     string `mapstructure:"road" json:"road,omitempty"`
	Rooms    string `mapstructure:"rooms" json:"rooms,omitempty"`

	PostedFrom string `mapstructure:"posted_date_from" json:"posted_date_from,omitempty"`
	PostedTo   string `mapstructure:"posted_date_to" json:"posted_date_to,omitempty"`

	MaxPages        int `mapstructure:"max_pages" json:"max_pages,omitempty"`
	MaxItemsPerPage int `mapstructure:"max_items_per_page" json:"max_items_per_page,omitempty"`
}

// queryKeys maps FilterSpec fields to the site's query parameters.
var queryKeys = []struct {
	key   string
	value func(FilterSpec) string
}{
	{"gtn", func(f FilterSpec) string { return f.PriceFrom }},
	{"gcn", func(f FilterSpec) string { return f.PriceTo }},
	{"dtnn", func(f FilterSpec) string { return f.AreaFrom }},
	{"dtln", func(f FilterSpec) string { return f.AreaTo }},
	{"h", func(f FilterSpec) string { return f.Direction }},
	{"frontage", func(f FilterSpec) string { return f.Frontage }},
	{"road", func(f FilterSpec) string { return f.Road }},
	{"roomq", func(f FilterSpec) string { return f.Rooms }},
}

// QueryValues renders the structured filters as query parameters.
func (f FilterSpec) QueryValues() url.Values {
	values := url.Values{}
	for _, q := range queryKeys {
		if v := strings.TrimSpace(q.value(f)); v != "" {
			values.Set(q.key, v)
		}
	}
	return values
}

// ApplyToURL merges the structured filter parameters into raw's query string.
func (f FilterSpec) ApplyToURL(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	query := parsed.Query()
	for key, vals := range f.QueryValues() {
		query.Set(key, vals[0])
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// DateWindow returns the posted-date window bounds. A bound is the zero time
// when the corresponding filter is empty or malformed.
func (f FilterSpec) DateWindow() (from, to time.Time) {
	if t, ok := textutil.ParseDate(f.PostedFrom); ok {
		from = t
	}
	if t, ok := textutil.ParseDate(f.PostedTo); ok {
		to = t
	}
	return from, to
}

// HasDateWindow reports whether both window bounds are set.
func (f FilterSpec) HasDateWindow() bool {
	from, to := f.DateWindow()
	return !from.IsZero() && !to.IsZero()
}
