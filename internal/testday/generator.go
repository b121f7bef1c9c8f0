package testday

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/wintality/athlete-testing/internal/domain/schema"
)

// skipChance is the probability that a field is left unmeasured.
const skipChance = 0.1

// valueRange bounds generated results per category.
var valueRange = map[schema.Category][2]float64{
	schema.CategoryAnthropometry:  {10, 200},
	schema.CategoryFlexibility:    {-10, 40},
	schema.CategoryJumpAndReach:   {200, 330},
	schema.CategoryJumps:          {20, 70},
	schema.CategorySprint:         {0.9, 5.0},
	schema.CategoryAgilityStamina: {8, 15},
	schema.CategoryBalance:        {50, 110},
}

// testRange overrides valueRange where one category mixes scales.
var testRange = map[string][2]float64{
	"body_height":         {160, 205},
	"body_mass":           {55, 105},
	"fat_free_mass":       {45, 90},
	"body_fat_percentage": {6, 22},
	"arm_span":            {160, 215},
	"leg_length_left":     {80, 110},
	"leg_length_right":    {80, 110},
	"drop_jump_contact":   {0.15, 0.35},
	"sprint_5m":           {0.9, 1.4},
	"sprint_10m":          {1.6, 2.2},
	"sprint_30m":          {3.8, 4.9},
	"yoyo_II":             {320, 1600},
}

type generator struct {
	rng *rand.Rand
}

func newGenerator(seed uint64) *generator {
	return &generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// athlete returns a sign-up request for the i-th simulated athlete.
func (g *generator) athlete(i int) athleteRequest {
	return athleteRequest{
		FirstName:    fmt.Sprintf("Athlete%03d", i+1),
		LastName:     "Testday",
		Team:         fmt.Sprintf("Team %c", 'A'+rune(i%4)),
		JerseyNumber: i%99 + 1,
	}
}

// results returns a full patch for one athlete with some fields left out.
// The patch is never empty.
func (g *generator) results() schema.Patch {
	patch := make(schema.Patch, schema.FieldCount())
	for _, def := range schema.Catalog() {
		lo, hi := bounds(def)
		for _, field := range def.Fields() {
			if g.rng.Float64() < skipChance {
				continue
			}
			v := lo + g.rng.Float64()*(hi-lo)
			patch[field] = schema.Float(math.Round(v*100) / 100)
		}
	}
	if len(patch) == 0 {
		patch[schema.Fields()[0]] = schema.Float(180)
	}
	return patch
}

func bounds(def schema.Definition) (float64, float64) {
	if r, ok := testRange[def.Name]; ok {
		return r[0], r[1]
	}
	if r, ok := valueRange[def.Category]; ok {
		return r[0], r[1]
	}
	return 0, 100
}
