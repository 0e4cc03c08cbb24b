package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeSource struct {
	unsuitable map[string]bool
	rates      map[string]float64
}

func (f *fakeSource) Suitable(name, _, _, _ string, _ float64) bool {
	return !f.unsuitable[name]
}

func (f *fakeSource) SuccessRate(name string) float64 {
	if r, ok := f.rates[name]; ok {
		return r
	}
	return 100
}

func europeTable() Table {
	return Table{
		Default: []string{"paypal", "stripe"},
		Regions: map[string]Tiers{
			"de": {
				Primary:  []string{"stripe", "adyen"},
				Regional: []string{"paypal", "stripe"},
				Fallback: []string{"worldpay"},
			},
		},
	}
}

func TestRoute(t *testing.T) {
	tests := []struct {
		name       string
		source     *fakeSource
		country    string
		preference []string
		want       []string
	}{
		{
			name:    "tiers concatenated and deduplicated",
			source:  &fakeSource{},
			country: "DE",
			want:    []string{"stripe", "adyen", "paypal", "worldpay"},
		},
		{
			name:    "country lookup is case insensitive",
			source:  &fakeSource{},
			country: "de",
			want:    []string{"stripe", "adyen", "paypal", "worldpay"},
		},
		{
			name:    "sorted by success rate within tier",
			source:  &fakeSource{rates: map[string]float64{"stripe": 70, "adyen": 95}},
			country: "DE",
			want:    []string{"adyen", "stripe", "paypal", "worldpay"},
		},
		{
			name:    "tier order beats success rate",
			source:  &fakeSource{rates: map[string]float64{"stripe": 10, "adyen": 20, "worldpay": 100}},
			country: "DE",
			want:    []string{"adyen", "stripe", "paypal", "worldpay"},
		},
		{
			name:    "unsuitable providers filtered",
			source:  &fakeSource{unsuitable: map[string]bool{"adyen": true, "worldpay": true}},
			country: "DE",
			want:    []string{"stripe", "paypal"},
		},
		{
			name:       "unknown country uses tenant preference",
			source:     &fakeSource{rates: map[string]float64{"adyen": 50}},
			country:    "BR",
			preference: []string{"adyen", "stripe"},
			want:       []string{"stripe", "adyen"},
		},
		{
			name:    "unknown country without preference uses default",
			source:  &fakeSource{},
			country: "BR",
			want:    []string{"paypal", "stripe"},
		},
		{
			name:    "nothing suitable",
			source:  &fakeSource{unsuitable: map[string]bool{"paypal": true, "stripe": true}},
			country: "BR",
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(tt.source, europeTable())
			assert.Equal(t, tt.want, r.Route(tt.country, "EUR", "card", 100, tt.preference))
		})
	}
}

func TestRouteTiesKeepInsertionOrder(t *testing.T) {
	src := &fakeSource{rates: map[string]float64{"a": 90, "b": 90, "c": 90}}
	r := New(src, Table{Regions: map[string]Tiers{"US": {Primary: []string{"c", "a", "b"}}}})
	assert.Equal(t, []string{"c", "a", "b"}, r.Route("US", "USD", "card", 1, nil))
}

func TestSetTable(t *testing.T) {
	r := New(&fakeSource{}, europeTable())
	r.SetTable(Table{Default: []string{"adyen"}})

	assert.Equal(t, []string{"adyen"}, r.Route("DE", "EUR", "card", 1, nil))
	assert.Empty(t, r.Table().Regions)
}

func TestTableIsCopied(t *testing.T) {
	table := europeTable()
	r := New(&fakeSource{}, table)
	table.Regions["de"].Primary[0] = "mutated"

	assert.Equal(t, "stripe", r.Route("DE", "EUR", "card", 1, nil)[0])
}
