package engine

import (
	"sort"

	"farmviz/internal/models"
)

// Drill is the certification drill path of the bubble chart. Empty fields
// are unset.
type Drill struct {
	Certification string
	Certifier     string
}

func (d Drill) IsEmpty() bool { return d.Certification == "" && d.Certifier == "" }

// Match reports whether f lies on the drill path.
func (d Drill) Match(f models.Farm) bool {
	if d.Certification != "" && f.Certification != d.Certification {
		return false
	}
	if d.Certifier != "" && f.Certifier != d.Certifier {
		return false
	}
	return true
}

// Narrow cuts a certification tree down to the drill path.
func (d Drill) Narrow(root *models.Node) *models.Node {
	if d.IsEmpty() {
		return root
	}
	out := &models.Node{Name: root.Name}
	for _, cert := range root.Children {
		if d.Certification != "" && cert.Name != d.Certification {
			continue
		}
		if d.Certifier == "" {
			out.Children = append(out.Children, cert)
			continue
		}
		if c := cert.Child(d.Certifier); c != nil {
			out.Children = append(out.Children, &models.Node{Name: cert.Name, Children: []*models.Node{c}})
		}
	}
	return out
}

// Predicates is the filter predicate set: the only mutable state of a
// session. Unknown keys are created on first toggle.
type Predicates struct {
	AreaBuckets   map[float64]bool
	UserCounts    map[int]bool
	SelectedFarms map[models.ID]struct{}
	Drill         Drill
}

// NewPredicates enables every breakpoint and every user count of farms.
func NewPredicates(breakpoints []float64, farms []models.Farm) Predicates {
	p := Predicates{
		AreaBuckets:   make(map[float64]bool, len(breakpoints)),
		UserCounts:    make(map[int]bool),
		SelectedFarms: make(map[models.ID]struct{}),
	}
	for _, b := range breakpoints {
		p.AreaBuckets[b] = true
	}
	for _, f := range farms {
		p.UserCounts[f.NumberOfUsers] = true
	}
	return p
}

// Pass reports whether a farm survives the bucket and user-count toggles.
// Drill and selection are not part of this test.
func (p Predicates) Pass(f models.FarmWithArea, breakpoints []float64) bool {
	return p.AreaBuckets[AreaBucket(f.TotalArea, breakpoints)] && p.UserCounts[f.NumberOfUsers]
}

// Selected reports whether id is in the selection.
func (p Predicates) Selected(id models.ID) bool {
	_, ok := p.SelectedFarms[id]
	return ok
}

// State copies the predicates into their read-only form.
func (p Predicates) State() models.FilterState {
	s := models.FilterState{
		Certification: p.Drill.Certification,
		Certifier:     p.Drill.Certifier,
	}
	for b, on := range p.AreaBuckets {
		s.AreaBuckets = append(s.AreaBuckets, models.BucketToggle{Bucket: b, Enabled: on})
	}
	sort.Slice(s.AreaBuckets, func(i, j int) bool { return s.AreaBuckets[i].Bucket > s.AreaBuckets[j].Bucket })
	for u, on := range p.UserCounts {
		s.UserCounts = append(s.UserCounts, models.UserCountToggle{Users: u, Enabled: on})
	}
	sort.Slice(s.UserCounts, func(i, j int) bool { return s.UserCounts[i].Users < s.UserCounts[j].Users })
	s.SelectedFarms = make([]models.ID, 0, len(p.SelectedFarms))
	for id := range p.SelectedFarms {
		s.SelectedFarms = append(s.SelectedFarms, id)
	}
	sort.Slice(s.SelectedFarms, func(i, j int) bool { return s.SelectedFarms[i] < s.SelectedFarms[j] })
	return s
}

// ApplyFilters returns the farms passing p, ordered by farm id.
func ApplyFilters(farms map[models.ID]models.FarmWithArea, p Predicates, breakpoints []float64) []models.FarmWithArea {
	out := make([]models.FarmWithArea, 0, len(farms))
	for _, f := range farms {
		if p.Pass(f, breakpoints) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FarmID < out[j].FarmID })
	return out
}
