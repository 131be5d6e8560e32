package models

import (
	"testing"

	json "github.com/goccy/go-json"
)

func TestIDUnmarshal(t *testing.T) {
	cases := []struct {
		in   string
		want ID
	}{
		{`"a1b2"`, "a1b2"},
		{`42`, "42"},
		{`3.5`, "3.5"},
		{`null`, ""},
	}
	for _, c := range cases {
		var id ID
		if err := json.Unmarshal([]byte(c.in), &id); err != nil {
			t.Errorf("%s: unexpected error %v", c.in, err)
			continue
		}
		if id != c.want {
			t.Errorf("%s: expected %q, got %q", c.in, c.want, id)
		}
	}

	var id ID
	if err := json.Unmarshal([]byte(`{"x":1}`), &id); err == nil {
		t.Error("Expected an error for an object id")
	}
}

func TestCultivated(t *testing.T) {
	for _, typ := range []LocationType{Field, Garden, Greenhouse} {
		if !typ.Cultivated() {
			t.Errorf("%s should be cultivated", typ)
		}
	}
	for _, typ := range []LocationType{Barn, Residence, NaturalArea, FarmSiteBoundary, CeremonialArea, "pond"} {
		if typ.Cultivated() {
			t.Errorf("%s should not be cultivated", typ)
		}
	}
}

func TestNode(t *testing.T) {
	root := &Node{Name: "root", Children: []*Node{
		{Name: "a", Children: []*Node{{Name: "a1", Value: 2}, {Name: "a2", Value: 3}}},
		{Name: "b", Value: 5},
	}}

	if got := root.Sum(); got != 10 {
		t.Errorf("Expected sum 10, got %v", got)
	}
	if got := root.Child("a").Child("a2"); got == nil || got.Value != 3 {
		t.Errorf("Expected a2 with value 3, got %+v", got)
	}
	if root.Child("zzz").Child("a") != nil {
		t.Error("Child on a missing node should be nil")
	}
	leaves := root.Leaves()
	if len(leaves) != 3 || leaves[0].Name != "a1" || leaves[2].Name != "b" {
		t.Errorf("Unexpected leaves %+v", leaves)
	}
}

func TestFarmLabel(t *testing.T) {
	if got := (Farm{FarmID: "f1", FarmName: "North"}).Label(); got != "North" {
		t.Errorf("Expected North, got %s", got)
	}
	if got := (Farm{FarmID: "f1"}).Label(); got != "f1" {
		t.Errorf("Expected f1, got %s", got)
	}
}
