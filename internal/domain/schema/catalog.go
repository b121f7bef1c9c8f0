// Package schema holds the fixed test catalog and the per-athlete test
// record derived from it. The catalog is the only place test fields are
// declared; every record in the system is built from it.
package schema

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Category groups related base tests.
type Category string

// Test categories, in the order they are entered during a session.
const (
	CategoryAnthropometry  Category = "anthropometry"
	CategoryFlexibility    Category = "flexibility"
	CategoryBalance        Category = "balance"
	CategoryJumpAndReach   Category = "jump_and_reach"
	CategoryJumps          Category = "jumps"
	CategorySprint         Category = "sprint"
	CategoryAgilityStamina Category = "agility_stamina"
)

const attemptSuffix = "_try"

// Definition describes one base test and its numbered attempt slots.
// A definition with a single attempt stores its value under Name itself.
type Definition struct {
	Name          string   `json:"name"`
	Label         string   `json:"label"`
	Category      Category `json:"category"`
	Unit          string   `json:"unit"`
	Attempts      int      `json:"attempts"`
	LowerIsBetter bool     `json:"lowerIsBetter"`
}

// Fields returns the record keys of d in attempt order.
func (d Definition) Fields() []string {
	if d.Attempts <= 1 {
		return []string{d.Name}
	}
	out := make([]string, d.Attempts)
	for i := range out {
		out[i] = AttemptField(d.Name, i+1)
	}
	return out
}

// AttemptField returns the record key for attempt n (1-based) of base.
func AttemptField(base string, n int) string {
	return base + attemptSuffix + strconv.Itoa(n)
}

// Slot ties a record key to its base test and attempt index (1-based).
type Slot struct {
	Field   string
	Test    string
	Attempt int
}

var catalog = []Definition{
	{Name: "body_height", Label: "Body Height", Category: CategoryAnthropometry, Unit: "cm", Attempts: 1},
	{Name: "body_mass", Label: "Body Mass", Category: CategoryAnthropometry, Unit: "kg", Attempts: 1},
	{Name: "fat_free_mass", Label: "Fat-Free Mass", Category: CategoryAnthropometry, Unit: "kg", Attempts: 1},
	{Name: "body_fat_percentage", Label: "Body Fat", Category: CategoryAnthropometry, Unit: "%", Attempts: 1},
	{Name: "arm_span", Label: "Arm Span", Category: CategoryAnthropometry, Unit: "cm", Attempts: 1},
	{Name: "leg_length_left", Label: "Left Leg Length", Category: CategoryAnthropometry, Unit: "cm", Attempts: 1},
	{Name: "leg_length_right", Label: "Right Leg Length", Category: CategoryAnthropometry, Unit: "cm", Attempts: 1},

	{Name: "sit_and_reach", Label: "Sit and Reach", Category: CategoryFlexibility, Unit: "cm", Attempts: 2},

	{Name: "jump_and_reach_counter_movement", Label: "Jump and Reach - Counter Movement", Category: CategoryJumpAndReach, Unit: "cm", Attempts: 1},
	{Name: "jump_and_reach_standing_reach", Label: "Jump and Reach - Standing Reach", Category: CategoryJumpAndReach, Unit: "cm", Attempts: 1},
	{Name: "jump_and_reach_running", Label: "Jump and Reach - With Running", Category: CategoryJumpAndReach, Unit: "cm", Attempts: 1},

	{Name: "counter_movement", Label: "Counter Movement Jump", Category: CategoryJumps, Unit: "cm", Attempts: 3},
	{Name: "drop_jump_height", Label: "Drop Jump Height", Category: CategoryJumps, Unit: "cm", Attempts: 3},
	{Name: "drop_jump_contact", Label: "Drop Jump Contact Time", Category: CategoryJumps, Unit: "s", Attempts: 3, LowerIsBetter: true},
	{Name: "squat_jump", Label: "Squat Jump", Category: CategoryJumps, Unit: "cm", Attempts: 3},

	{Name: "sprint_5m", Label: "Sprint 5 m", Category: CategorySprint, Unit: "s", Attempts: 3, LowerIsBetter: true},
	{Name: "sprint_10m", Label: "Sprint 10 m", Category: CategorySprint, Unit: "s", Attempts: 3, LowerIsBetter: true},
	{Name: "sprint_30m", Label: "Sprint 30 m", Category: CategorySprint, Unit: "s", Attempts: 3, LowerIsBetter: true},

	{Name: "lane_agility", Label: "Lane Agility", Category: CategoryAgilityStamina, Unit: "s", Attempts: 1, LowerIsBetter: true},
	{Name: "yoyo_II", Label: "Yo-Yo Intermittent Recovery II", Category: CategoryAgilityStamina, Unit: "m", Attempts: 1},

	{Name: "y_balance_front_right_leg", Label: "Y-Balance Front - Right Leg", Category: CategoryBalance, Unit: "cm", Attempts: 1},
	{Name: "y_balance_front_left_leg", Label: "Y-Balance Front - Left Leg", Category: CategoryBalance, Unit: "cm", Attempts: 1},
	{Name: "y_balance_right_right_leg", Label: "Y-Balance Right - Right Leg", Category: CategoryBalance, Unit: "cm", Attempts: 1},
	{Name: "y_balance_right_left_leg", Label: "Y-Balance Right - Left Leg", Category: CategoryBalance, Unit: "cm", Attempts: 1},
	{Name: "y_balance_left_right_leg", Label: "Y-Balance Left - Right Leg", Category: CategoryBalance, Unit: "cm", Attempts: 1},
	{Name: "y_balance_left_left_leg", Label: "Y-Balance Left - Left Leg", Category: CategoryBalance, Unit: "cm", Attempts: 1},
}

type index struct {
	fields []string
	pos    map[string]int
	slots  map[string]Slot
	tests  map[string]int
}

var idx = buildIndex(catalog)

func buildIndex(defs []Definition) index {
	ix := index{
		pos:   make(map[string]int),
		slots: make(map[string]Slot),
		tests: make(map[string]int, len(defs)),
	}
	for i, d := range defs {
		ix.tests[d.Name] = i
		for n, f := range d.Fields() {
			ix.pos[f] = len(ix.fields)
			ix.fields = append(ix.fields, f)
			ix.slots[f] = Slot{Field: f, Test: d.Name, Attempt: n + 1}
		}
	}
	return ix
}

// Catalog returns every base test definition in entry order.
func Catalog() []Definition {
	out := make([]Definition, len(catalog))
	copy(out, catalog)
	return out
}

// Fields returns every record key in catalog order.
func Fields() []string {
	out := make([]string, len(idx.fields))
	copy(out, idx.fields)
	return out
}

// FieldCount is the number of keys in every record.
func FieldCount() int { return len(idx.fields) }

// Lookup resolves a catalog field to its slot.
func Lookup(field string) (Slot, bool) {
	s, ok := idx.slots[field]
	return s, ok
}

// DefinitionOf returns the catalog entry for a base test.
func DefinitionOf(test string) (Definition, bool) {
	i, ok := idx.tests[test]
	if !ok {
		return Definition{}, false
	}
	return catalog[i], true
}

// TestOrder reports the catalog position of a base test, or -1.
func TestOrder(test string) int {
	if i, ok := idx.tests[test]; ok {
		return i
	}
	return -1
}

var attemptPattern = regexp.MustCompile(`^(\w+)_try(\d+)$`)

// ParseField resolves any record key to a slot. Catalog keys use the
// explicit association; foreign keys fall back to the `<base>_try<n>`
// naming convention, and keys without the suffix are their own base test.
func ParseField(key string) Slot {
	if s, ok := idx.slots[key]; ok {
		return s
	}
	if m := attemptPattern.FindStringSubmatch(key); m != nil {
		n, err := strconv.Atoi(m[2])
		if err == nil {
			return Slot{Field: key, Test: m[1], Attempt: n}
		}
	}
	return Slot{Field: key, Test: key, Attempt: 1}
}

var timeMarkers = []string{"sprint", "contact", "agility"}

// TimeBased reports whether lower values are better for a base test name.
func TimeBased(test string) bool {
	for _, m := range timeMarkers {
		if strings.Contains(test, m) {
			return true
		}
	}
	return false
}

// LowerIsBetter prefers the catalog definition and falls back to TimeBased.
func LowerIsBetter(test string) bool {
	if d, ok := DefinitionOf(test); ok {
		return d.LowerIsBetter
	}
	return TimeBased(test)
}

// SortTests orders base test names by catalog position, unknown names last
// in lexical order.
func SortTests(tests []string) {
	sort.SliceStable(tests, func(i, j int) bool {
		oi, oj := TestOrder(tests[i]), TestOrder(tests[j])
		switch {
		case oi >= 0 && oj >= 0:
			return oi < oj
		case oi >= 0:
			return true
		case oj >= 0:
			return false
		default:
			return tests[i] < tests[j]
		}
	})
}
