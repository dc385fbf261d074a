package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/tartampluch/go-skycal/internal/config"
)

// ErrEventNotFound is returned by Catalog.Lookup for unknown IDs.
var ErrEventNotFound = errors.New(config.ErrEventNotFound)

// EventDefinition describes a recurring in-world event.
type EventDefinition struct {
	ID   string
	Name string
	Icon string // Optional image URI
	Rule Recurrence
}

// DisplayConfig maps event IDs to their visibility.
// Missing IDs are visible; a nil DisplayConfig shows everything.
type DisplayConfig map[string]bool

// Visible reports whether the event should be displayed.
func (d DisplayConfig) Visible(id string) bool {
	visible, ok := d[id]
	return !ok || visible
}

// Catalog is an immutable, ordered registry of event definitions.
// Insertion order is the display order.
type Catalog struct {
	defs  []EventDefinition
	index map[string]int
}

// NewCatalog validates the definitions and freezes them.
func NewCatalog(defs ...EventDefinition) (*Catalog, error) {
	c := &Catalog{
		defs:  make([]EventDefinition, 0, len(defs)),
		index: make(map[string]int, len(defs)),
	}
	for _, def := range defs {
		if def.ID == "" {
			return nil, errors.New(config.ErrEmptyEventID)
		}
		if _, dup := c.index[def.ID]; dup {
			return nil, fmt.Errorf("%s: %q", config.ErrDuplicateEvent, def.ID)
		}
		if def.Rule == nil {
			return nil, fmt.Errorf("%w: event %q has no rule", ErrInvalidRule, def.ID)
		}
		if err := def.Rule.Validate(config.DaysPerMonth); err != nil {
			return nil, fmt.Errorf("event %q: %w", def.ID, err)
		}
		if def.Name == "" {
			def.Name = def.ID
		}
		c.index[def.ID] = len(c.defs)
		c.defs = append(c.defs, def)
	}
	return c, nil
}

// List returns the definitions in insertion order.
func (c *Catalog) List() []EventDefinition {
	return slices.Clone(c.defs)
}

// Len returns the number of definitions.
func (c *Catalog) Len() int {
	return len(c.defs)
}

// Lookup finds a definition by ID.
func (c *Catalog) Lookup(id string) (EventDefinition, error) {
	i, ok := c.index[id]
	if !ok {
		return EventDefinition{}, fmt.Errorf("%w: %q", ErrEventNotFound, id)
	}
	return c.defs[i], nil
}

// Visible returns the definitions enabled by display, in catalog order.
func (c *Catalog) Visible(display DisplayConfig) []EventDefinition {
	out := make([]EventDefinition, 0, len(c.defs))
	for _, def := range c.defs {
		if display.Visible(def.ID) {
			out = append(out, def)
		}
	}
	return out
}

type eventSpec struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Icon string   `json:"icon,omitempty"`
	Rule RuleSpec `json:"rule"`
}

type catalogSpec struct {
	Events []eventSpec `json:"events"`
}

// LoadCatalog decodes a JSON catalog:
//
//	{"events": [{"id": "dark_auction", "name": "Dark Auction",
//	             "rule": {"kind": "every_n_days", "n": 3, "phase": 0}}]}
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var spec catalogSpec
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrCatalogDecode, err)
	}

	defs := make([]EventDefinition, 0, len(spec.Events))
	for _, e := range spec.Events {
		rule, err := e.Rule.Build()
		if err != nil {
			return nil, fmt.Errorf("event %q: %w", e.ID, err)
		}
		defs = append(defs, EventDefinition{ID: e.ID, Name: e.Name, Icon: e.Icon, Rule: rule})
	}
	return NewCatalog(defs...)
}

// LoadCatalogFile reads a JSON catalog from disk.
func LoadCatalogFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrCatalogOpen, err)
	}
	defer func() { _ = f.Close() }()
	return LoadCatalog(f)
}

// Months, 0-indexed.
const (
	earlySpring = iota
	spring
	lateSpring
	earlySummer
	summer
	lateSummer
	earlyAutumn
	autumn
	lateAutumn
	earlyWinter
	winter
	lateWinter
)

// dwarvenKings rotate one per virtual day.
var dwarvenKings = []string{"Brammor", "Emkam", "Redros", "Erren", "Thormyr", "Emmor", "Grandan"}

// DefaultCatalog returns the built-in in-world events.
// Dark Auction starts with day 0, which begins at :55 of every real hour.
func DefaultCatalog() *Catalog {
	defs := []EventDefinition{
		{
			ID:   "dark_auction",
			Name: "Dark Auction",
			Icon: "https://mc-heads.net/head/7ab83858ebc8ee85c3e54ab13aabfcc1ef2ad446d6a900e471c3f33b78906a5b",
			Rule: EveryNDays{N: 3, Phase: 0},
		},
		{
			ID:   "jacobs_contest",
			Name: "Jacob's Event",
			Icon: "https://static.wikia.nocookie.net/hypixel-skyblock/images/5/5c/Enchanted_Wheat.png",
			Rule: EveryNDays{N: 3, Phase: 1},
		},
		{ID: "cult_fallen_star", Name: "Cult of the Fallen Star", Rule: DaysOfMonth{Days: []int{6, 13, 20, 27}}},
		{ID: "hoppity_hunt", Name: "Hoppity's Hunt", Rule: MonthRestricted{Months: []int{earlySpring, spring, lateSpring}}},
		{ID: "election_close", Name: "Election Closes", Rule: MonthRestricted{Months: []int{lateSpring}, Within: DaysOfMonth{Days: []int{26}}}},
		{ID: "traveling_zoo", Name: "Traveling Zoo", Rule: MonthRestricted{Months: []int{earlySummer, earlyWinter}, Within: DayRange{First: 0, Last: 2}}},
		{ID: "election_open", Name: "Election Booth Opens", Rule: MonthRestricted{Months: []int{lateSummer}, Within: DaysOfMonth{Days: []int{26}}}},
		{ID: "spooky_festival", Name: "Spooky Festival", Rule: MonthRestricted{Months: []int{autumn}, Within: DayRange{First: 28, Last: 30}}},
		{ID: "jerry_workshop", Name: "Jerry's Workshop", Rule: MonthRestricted{Months: []int{lateWinter}}},
		{ID: "season_of_jerry", Name: "Season of Jerry", Rule: MonthRestricted{Months: []int{lateWinter}, Within: DayRange{First: 23, Last: 25}}},
		{ID: "new_year", Name: "New Year Celebration", Rule: MonthRestricted{Months: []int{lateWinter}, Within: DayRange{First: 28, Last: 30}}},
	}
	for i, king := range dwarvenKings {
		defs = append(defs, EventDefinition{
			ID:   "king_" + strings.ToLower(king),
			Name: "King " + king,
			Rule: EveryNDays{N: len(dwarvenKings), Phase: i},
		})
	}

	c, err := NewCatalog(defs...)
	if err != nil {
		panic(fmt.Sprintf("default catalog: %v", err))
	}
	return c
}
