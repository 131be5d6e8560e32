package engine

import (
	"fmt"
	"math"
	"sort"

	"github.com/aclements/go-moremath/stats"

	"farmviz/internal/models"
)

// DefaultAreaBreakpoints are the farm-size bucket lower bounds, largest
// first. Each bucket is [breakpoint, next larger breakpoint).
var DefaultAreaBreakpoints = []float64{100000, 10000, 0}

// DefaultChoroplethDomain are the farm-count thresholds of the map colors.
var DefaultChoroplethDomain = []float64{1, 5, 10, 50, 100}

// Marker radius range of the map's square-root symbol scale.
const (
	MinMarkerRadius = 100
	MaxMarkerRadius = 500
)

// --- 1. AREA ---

// FarmArea sums the cultivated locations of one farm.
func FarmArea(locations []models.Location) float64 {
	var total float64
	for _, l := range locations {
		if l.Type.Cultivated() {
			total += l.TotalArea
		}
	}
	return total
}

// FarmAreaByFarmID returns every farm merged with its cultivated area.
// Farms without locations get 0. The result is a fresh map on every call.
func FarmAreaByFarmID(farms []models.Farm, locationsByFarmID map[models.ID][]models.Location) map[models.ID]models.FarmWithArea {
	out := make(map[models.ID]models.FarmWithArea, len(farms))
	for _, f := range farms {
		out[f.FarmID] = models.FarmWithArea{Farm: f, TotalArea: FarmArea(locationsByFarmID[f.FarmID])}
	}
	return out
}

// AreaBucket returns the greatest breakpoint <= area. breakpoints must be
// sorted descending; if none matches, the smallest breakpoint is returned.
func AreaBucket(area float64, breakpoints []float64) float64 {
	for _, b := range breakpoints {
		if b <= area {
			return b
		}
	}
	if len(breakpoints) == 0 {
		return 0
	}
	return breakpoints[len(breakpoints)-1]
}

// --- 2. COUNTRY ---

func FarmCountByCountryID(farmsByCountryID map[string][]models.Farm) map[string]int {
	out := make(map[string]int, len(farmsByCountryID))
	for id, farms := range farmsByCountryID {
		out[id] = len(farms)
	}
	return out
}

func TotalAreaByCountryID(farmsByCountryID map[string][]models.Farm, areas map[models.ID]models.FarmWithArea) map[string]float64 {
	out := make(map[string]float64, len(farmsByCountryID))
	for id, farms := range farmsByCountryID {
		var total float64
		for _, f := range farms {
			total += areas[f.FarmID].TotalArea
		}
		out[id] = total
	}
	return out
}

// ChoroplethClass is the number of thresholds <= value, so values below the
// first threshold are class 0.
func ChoroplethClass(value float64, domain []float64) int {
	return sort.Search(len(domain), func(i int) bool { return domain[i] > value })
}

// ChoroplethLegend labels each threshold class: "1–5", ..., "100+".
func ChoroplethLegend(domain []float64) []string {
	out := make([]string, len(domain))
	for i, g := range domain {
		if i+1 < len(domain) {
			out[i] = fmt.Sprintf("%g–%g", g, domain[i+1])
		} else {
			out[i] = fmt.Sprintf("%g+", g)
		}
	}
	return out
}

// CountryStats joins farm count and area per country, most farms first.
func CountryStats(idx *Indices, areas map[models.ID]models.FarmWithArea, domain []float64) []models.CountryStat {
	counts := FarmCountByCountryID(idx.FarmsByCountryID)
	totals := TotalAreaByCountryID(idx.FarmsByCountryID, areas)

	out := make([]models.CountryStat, 0, len(counts))
	for id, n := range counts {
		out = append(out, models.CountryStat{
			CountryID:   id,
			CountryName: idx.FarmsByCountryID[id][0].CountryName,
			FarmCount:   n,
			TotalArea:   totals[id],
			Class:       ChoroplethClass(float64(n), domain),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FarmCount != out[j].FarmCount {
			return out[i].FarmCount > out[j].FarmCount
		}
		return out[i].CountryID < out[j].CountryID
	})
	return out
}

// --- 3. FARM SIZE BY USER COUNT ---

// UserCountGroup holds the farms with one exact number_of_users, split by
// area bucket.
type UserCountGroup struct {
	Users   int
	Buckets map[float64][]models.FarmWithArea
}

// Len is the number of farms in the group.
func (g UserCountGroup) Len() int {
	n := 0
	for _, farms := range g.Buckets {
		n += len(farms)
	}
	return n
}

// FarmsByUserCountAreaBucket groups farms by number_of_users, then by area
// bucket. Groups are ordered by ascending user count.
func FarmsByUserCountAreaBucket(farms []models.FarmWithArea, breakpoints []float64) []UserCountGroup {
	byUsers := make(map[int]map[float64][]models.FarmWithArea)
	for _, f := range farms {
		buckets, ok := byUsers[f.NumberOfUsers]
		if !ok {
			buckets = make(map[float64][]models.FarmWithArea)
			byUsers[f.NumberOfUsers] = buckets
		}
		b := AreaBucket(f.TotalArea, breakpoints)
		buckets[b] = append(buckets[b], f)
	}

	out := make([]UserCountGroup, 0, len(byUsers))
	for users, buckets := range byUsers {
		out = append(out, UserCountGroup{Users: users, Buckets: buckets})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Users < out[j].Users })
	return out
}

// FarmPercentageByUserCountGroup turns each group into one stacked bar:
// the share of the group's farms per bucket, in breakpoint order. Groups
// are built from real farms, so Total is never zero.
func FarmPercentageByUserCountGroup(groups []UserCountGroup, breakpoints []float64) []models.UserCountRow {
	out := make([]models.UserCountRow, 0, len(groups))
	for _, g := range groups {
		total := g.Len()
		areas := make([]float64, 0, total)
		row := models.UserCountRow{Users: g.Users, Total: total}
		for _, b := range breakpoints {
			n := len(g.Buckets[b])
			row.Buckets = append(row.Buckets, models.BucketShare{
				Bucket:  b,
				Count:   n,
				Percent: 100 * float64(n) / float64(total),
			})
			for _, f := range g.Buckets[b] {
				areas = append(areas, f.TotalArea)
			}
		}
		row.MeanArea = stats.Mean(areas)
		out = append(out, row)
	}
	return out
}

// --- 4. HIERARCHIES ---

// childByName finds or appends the named child, keeping first-seen order.
func childByName(n *models.Node, name string) *models.Node {
	if c := n.Child(name); c != nil {
		return c
	}
	c := &models.Node{Name: name}
	n.Children = append(n.Children, c)
	return c
}

func sortChildren(n *models.Node) {
	sort.SliceStable(n.Children, func(i, j int) bool { return n.Children[i].Name < n.Children[j].Name })
}

// CertifierGroups builds certification -> certifier -> farm -> location,
// each location a leaf of value 1. Farms missing either certification or
// certifier are left out of this tree only.
func CertifierGroups(farms []models.Farm, locationsByFarmID map[models.ID][]models.Location) *models.Node {
	root := &models.Node{Name: "certification"}
	for _, f := range farms {
		if f.Certification == "" || f.Certifier == "" {
			continue
		}
		certifier := childByName(childByName(root, f.Certification), f.Certifier)
		farm := &models.Node{Name: f.Label(), ID: string(f.FarmID)}
		for _, l := range locationsByFarmID[f.FarmID] {
			farm.Children = append(farm.Children, &models.Node{
				Name:  string(l.Type),
				ID:    string(l.LocationID),
				Value: 1,
			})
		}
		certifier.Children = append(certifier.Children, farm)
	}
	sortChildren(root)
	for _, c := range root.Children {
		sortChildren(c)
	}
	return root
}

// CropGroups builds crop_group -> crop common name, each leaf valued by the
// number of varieties the farms grow.
func CropGroups(farms []models.Farm, varietiesByFarmID map[models.ID][]models.CropVariety, crop func(models.ID) (models.Crop, bool)) *models.Node {
	root := &models.Node{Name: "crop_group"}
	for _, f := range farms {
		for _, v := range varietiesByFarmID[f.FarmID] {
			c, ok := crop(v.CropID)
			if !ok {
				continue
			}
			leaf := childByName(childByName(root, c.CropGroup), c.CropCommonName)
			leaf.Value++
		}
	}
	sortChildren(root)
	for _, c := range root.Children {
		sortChildren(c)
	}
	return root
}

// FarmLocation is one location tagged with its owning farm.
type FarmLocation struct {
	Farm     models.FarmWithArea
	Location models.Location
}

// FarmLocations flattens the locations of the given farms, all types.
func FarmLocations(farms []models.FarmWithArea, locationsByFarmID map[models.ID][]models.Location) []FarmLocation {
	var out []FarmLocation
	for _, f := range farms {
		for _, l := range locationsByFarmID[f.FarmID] {
			out = append(out, FarmLocation{Farm: f, Location: l})
		}
	}
	return out
}

// LandUseTotals sums location area per type, largest first.
func LandUseTotals(records []FarmLocation) []models.LandUseTotal {
	byType := make(map[models.LocationType]*models.LandUseTotal)
	var order []models.LocationType
	for _, r := range records {
		t, ok := byType[r.Location.Type]
		if !ok {
			t = &models.LandUseTotal{Type: r.Location.Type}
			byType[r.Location.Type] = t
			order = append(order, r.Location.Type)
		}
		t.Area += r.Location.TotalArea
		t.Locations++
	}
	out := make([]models.LandUseTotal, 0, len(order))
	for _, typ := range order {
		out = append(out, *byType[typ])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Area > out[j].Area })
	return out
}

// LandUseByType groups locations by type for the treemap. Each leaf is one
// location weighted by its area and named after its farm.
func LandUseByType(records []FarmLocation) *models.Node {
	root := &models.Node{Name: "land_use"}
	for _, r := range records {
		typ := childByName(root, string(r.Location.Type))
		typ.Children = append(typ.Children, &models.Node{
			Name:  r.Farm.Label(),
			ID:    string(r.Location.LocationID),
			Value: r.Location.TotalArea,
		})
	}
	sort.SliceStable(root.Children, func(i, j int) bool { return root.Children[i].Sum() > root.Children[j].Sum() })
	return root
}

// --- 5. MAP ---

// AreaExtent is the min and max farm area, the domain of the marker scale.
func AreaExtent(farms []models.FarmWithArea) (float64, float64) {
	if len(farms) == 0 {
		return 0, 0
	}
	xs := make([]float64, len(farms))
	for i, f := range farms {
		xs[i] = f.TotalArea
	}
	return stats.Sample{Xs: xs}.Bounds()
}

// MarkerRadius maps area onto [MinMarkerRadius, MaxMarkerRadius] with a
// square-root scale over [lo, hi]. A degenerate domain yields the minimum.
func MarkerRadius(area, lo, hi float64) float64 {
	d0, d1 := math.Sqrt(lo), math.Sqrt(hi)
	if d1 <= d0 {
		return MinMarkerRadius
	}
	t := (math.Sqrt(area) - d0) / (d1 - d0)
	return MinMarkerRadius + t*(MaxMarkerRadius-MinMarkerRadius)
}

// MapMarkers returns one marker per farm with grid points.
func MapMarkers(farms []models.FarmWithArea, lo, hi float64) []models.MapMarker {
	out := make([]models.MapMarker, 0, len(farms))
	for _, f := range farms {
		if f.GridPoints == nil {
			continue
		}
		out = append(out, models.MapMarker{
			FarmID:    f.FarmID,
			Lat:       f.GridPoints.Lat,
			Lng:       f.GridPoints.Lng,
			TotalArea: f.TotalArea,
			Radius:    MarkerRadius(f.TotalArea, lo, hi),
		})
	}
	return out
}
