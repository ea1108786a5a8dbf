package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fodder-analyzer/internal/domain"
)

var regions = []string{
	"ALLURI SITARAMA RAJU",
	"ANAKAPALLI",
	"ANANTAPUR",
	"DR B.R. AMBEDKAR KONASEEMA",
	"EAST GODAVARI",
	"ELURU",
	"KADAPA",
	"PRAKASAM",
	"VISAKHAPATNAM",
	"WEST GODAVARI",
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Dr B.R. Ambedkar Konaseema", "DRBRAMBEDKARKONASEEMA"},
		{"  west   godavari ", "WESTGODAVARI"},
		{"Sri-Satyasai", "SRISATYASAI"},
		{"ＫＡＤＡＰＡ", "KADAPA"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Normalize(tt.input), "Normalize(%q)", tt.input)
	}
}

func TestResolve(t *testing.T) {
	r := New(nil)

	tests := []struct {
		name     string
		query    string
		expected string
		found    bool
	}{
		{"Direct", "How is Prakasam doing?", "PRAKASAM", true},
		{"Spacing and case", "tell me about west  godavari", "WEST GODAVARI", true},
		{"Punctuation in candidate", "status of dr br ambedkar konaseema", "DR B.R. AMBEDKAR KONASEEMA", true},
		{"Alias", "What about Vizag?", "VISAKHAPATNAM", true},
		{"Alias short", "YSR district", "KADAPA", true},
		{"Alias misspelling", "Ananthapuramu report", "ANANTAPUR", true},
		{"Fragment of canonical name", "konaseema", "DR B.R. AMBEDKAR KONASEEMA", true},
		{"Fragment of canonical name without alias", "sitarama", "ALLURI SITARAMA RAJU", true},
		{"Short fragment rejected", "ELUR", "", false},
		{"Ambiguous fragment uses candidate order", "GODAVARI", "EAST GODAVARI", true},
		{"No match", "hello there", "", false},
		{"Empty query", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.Resolve(tt.query, regions)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestResolveAliasRequiresCandidate(t *testing.T) {
	r := New(nil)
	// VISAKHAPATNAM is not loaded, so the alias must not fire
	got, ok := r.Resolve("vizag and eluru", []string{"ELURU", "KADAPA"})
	assert.True(t, ok)
	assert.Equal(t, "ELURU", got)
}

// Aliases are checked before direct names and spaces are dropped first, so a
// short alias can match across word boundaries ahead of a named district.
func TestResolveAliasBeatsDirectAcrossWords(t *testing.T) {
	r := New(nil)
	got, ok := r.Resolve("Tell me how Kadapa has reserves", regions)
	assert.True(t, ok)
	assert.Equal(t, "ALLURI SITARAMA RAJU", got)

	got, ok = r.Resolve("Tell me how Kadapa is doing", regions)
	assert.True(t, ok)
	assert.Equal(t, "KADAPA", got)
}

func TestResolveEmptyCandidates(t *testing.T) {
	r := New(nil)
	_, ok := r.Resolve("Prakasam", nil)
	assert.False(t, ok)
	assert.Empty(t, r.ResolveAll("Prakasam and Eluru", nil))
}

func TestResolveDeterministic(t *testing.T) {
	r := New(nil)
	first, _ := r.Resolve("compare godavari districts", regions)
	for i := 0; i < 10; i++ {
		got, _ := r.Resolve("compare godavari districts", regions)
		assert.Equal(t, first, got)
	}
}

func TestResolveAll(t *testing.T) {
	r := New(nil)

	tests := []struct {
		name     string
		query    string
		expected []string
	}{
		{"Candidate order not query order", "Compare Prakasam and Eluru", []string{"ELURU", "PRAKASAM"}},
		{"Alias counts", "Vizag vs Kadapa", []string{"KADAPA", "VISAKHAPATNAM"}},
		{"Single", "Kadapa only", []string{"KADAPA"}},
		{"None", "statewide", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, r.ResolveAll(tt.query, regions))
		})
	}
}

func TestCustomAliases(t *testing.T) {
	r := New([]Alias{{Token: "cuddapah", Target: "KADAPA"}})
	got, ok := r.Resolve("Cuddapah supply", regions)
	assert.True(t, ok)
	assert.Equal(t, "KADAPA", got)
}

func TestResolveCrop(t *testing.T) {
	tests := []struct {
		query    string
		expected string
		found    bool
	}{
		{"Which district grows most Paddy?", domain.CropPaddy, true},
		{"rice straw output", domain.CropPaddy, true},
		{"corn production", domain.CropMaize, true},
		{"peanut haulms", domain.CropGroundnut, true},
		{"sugar cane tops", domain.CropSugarcane, true},
		{"how much cotton", domain.CropCotton, true},
		{"buffalo feed", "", false},
	}

	for _, tt := range tests {
		got, ok := ResolveCrop(tt.query)
		assert.Equal(t, tt.found, ok, tt.query)
		assert.Equal(t, tt.expected, got, tt.query)
	}
}

func TestResolveAnimal(t *testing.T) {
	tests := []struct {
		query    string
		expected domain.AnimalCategory
		found    bool
	}{
		{"Who needs the second most buffalo feed?", domain.Buffalo, true},
		{"cows in the state", domain.Cattle, true},
		{"chicken demand", domain.Poultry, true},
		{"goat", domain.Goat, true},
		{"paddy", "", false},
	}

	for _, tt := range tests {
		got, ok := ResolveAnimal(tt.query)
		assert.Equal(t, tt.found, ok, tt.query)
		assert.Equal(t, tt.expected, got, tt.query)
	}
}

func TestContainsAny(t *testing.T) {
	assert.True(t, ContainsAny("SUPPLY TO KADAPA", "SEND", "SUPPLY TO"))
	assert.False(t, ContainsAny("SUPPLY", "SUPPLY TO"))
	assert.False(t, ContainsAny("ANYTHING"))
}
