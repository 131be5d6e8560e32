package models

import (
	"bytes"
	"fmt"
	"strconv"

	json "github.com/goccy/go-json"
)

// ID is a primary or foreign key. Exports mix numeric and string keys
// (crop_id is an integer, farm_id a UUID), so both decode to the same type.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	if _, err := strconv.ParseFloat(string(b), 64); err != nil {
		return fmt.Errorf("id: expected string or number, got %s", b)
	}
	*id = ID(b)
	return nil
}

type GridPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Farm struct {
	FarmID        ID         `json:"farm_id"`
	FarmName      string     `json:"farm_name,omitempty"`
	CountryName   string     `json:"country_name"`
	NumberOfUsers int        `json:"number_of_users"`
	Certification string     `json:"certification,omitempty"`
	Certifier     string     `json:"certifier,omitempty"`
	GridPoints    *GridPoint `json:"grid_points,omitempty"`
}

// Label is the display name used for the farm's node in hierarchies.
func (f Farm) Label() string {
	if f.FarmName != "" {
		return f.FarmName
	}
	return string(f.FarmID)
}

type LocationType string

const (
	Field            LocationType = "field"
	Garden           LocationType = "garden"
	Greenhouse       LocationType = "greenhouse"
	Barn             LocationType = "barn"
	Residence        LocationType = "residence"
	NaturalArea      LocationType = "natural_area"
	FarmSiteBoundary LocationType = "farm_site_boundary"
	CeremonialArea   LocationType = "ceremonial_area"
)

// Cultivated reports whether the location counts toward a farm's area.
func (t LocationType) Cultivated() bool {
	return t == Field || t == Garden || t == Greenhouse
}

type Location struct {
	LocationID ID           `json:"location_id"`
	FarmID     ID           `json:"farm_id"`
	Type       LocationType `json:"type"`
	TotalArea  float64      `json:"total_area"`
	GridPoints *GridPoint   `json:"grid_points,omitempty"`
}

type Crop struct {
	CropID         ID     `json:"crop_id"`
	CropGroup      string `json:"crop_group"`
	CropCommonName string `json:"crop_common_name"`
}

type CropVariety struct {
	CropVarietyName string `json:"crop_variety_name"`
	CropID          ID     `json:"crop_id"`
	FarmID          ID     `json:"farm_id"`
}

// Country is one region of the reference geometry collection, reduced to
// the fields the engine joins on.
type Country struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FarmWithArea is a farm plus the summed area of its cultivated locations.
type FarmWithArea struct {
	Farm
	TotalArea float64 `json:"total_area"`
}

// Node is one level of a chart hierarchy. Leaves carry Value, inner nodes
// carry Children.
type Node struct {
	Name     string  `json:"name"`
	ID       string  `json:"id,omitempty"`
	Value    float64 `json:"value,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

// Child returns the direct child with the given name, or nil.
func (n *Node) Child(name string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Sum is the total of all leaf values below n.
func (n *Node) Sum() float64 {
	if n == nil {
		return 0
	}
	if len(n.Children) == 0 {
		return n.Value
	}
	var total float64
	for _, c := range n.Children {
		total += c.Sum()
	}
	return total
}

// Leaves returns the leaf nodes in depth-first order.
func (n *Node) Leaves() []*Node {
	if n == nil {
		return nil
	}
	if len(n.Children) == 0 {
		return []*Node{n}
	}
	var out []*Node
	for _, c := range n.Children {
		out = append(out, c.Leaves()...)
	}
	return out
}
