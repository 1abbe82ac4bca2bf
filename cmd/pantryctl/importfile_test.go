package main

import (
	"strings"
	"testing"
)

func TestParseItemFile(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{
			name: "toml",
			file: "pantry.toml",
			body: `
[[items]]
name = "Milk"
quantity = 2
unit = "l"
category = "dairy"
expirationDate = "05/10/24"

[[items]]
name = "Rice"
quantity = "500 g"
`,
		},
		{
			name: "yaml",
			file: "pantry.yml",
			body: `
items:
  - name: Milk
    quantity: 2
    unit: l
    category: dairy
    expirationDate: 05/10/24
  - name: Rice
    quantity: 500 g
`,
		},
		{
			name: "json",
			file: "pantry.json",
			body: `{"items":[
				{"name":"Milk","quantity":2,"unit":"l","category":"dairy","expirationDate":"05/10/24"},
				{"name":"Rice","quantity":"500 g"}
			]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := parseItemFile(tt.file, strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("parseItemFile: %v", err)
			}
			if len(items) != 2 {
				t.Fatalf("got %d items, want 2", len(items))
			}
			milk := items[0]
			if milk.Name != "Milk" || milk.Quantity != "2" || milk.Unit != "l" || milk.Category != "dairy" {
				t.Errorf("milk = %+v", milk)
			}
			if milk.ExpirationDate != "05/10/24" {
				t.Errorf("expirationDate = %q", milk.ExpirationDate)
			}
			if items[1].Quantity != "500 g" {
				t.Errorf("rice quantity = %q, want \"500 g\"", items[1].Quantity)
			}
		})
	}
}

func TestParseItemFileErrors(t *testing.T) {
	tests := []struct {
		name, file, body string
	}{
		{"unknown extension", "pantry.csv", "name,quantity"},
		{"empty list", "pantry.yaml", "items: []"},
		{"unknown yaml field", "pantry.yaml", "items:\n  - name: Milk\n    colour: white\n"},
		{"bad toml", "pantry.toml", "[[items]\nname="},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseItemFile(tt.file, strings.NewReader(tt.body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
