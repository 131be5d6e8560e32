package engine

import (
	"math"
	"testing"

	"farmviz/internal/models"
)

// scenario builds three Canadian farms:
// farm1: 5000 m2 field (+ a barn that does not count), 2 users, Organic/X
// farm2: 15000 m2 split over garden and greenhouse, 2 users, no certifier
// farm3: 150000 m2 field, 5 users
func scenario() Collections {
	return Collections{
		Farms: []models.Farm{
			{FarmID: "farm1", CountryName: "Canada", NumberOfUsers: 2, Certification: "Organic", Certifier: "X", GridPoints: &models.GridPoint{Lat: 49.2, Lng: -123.1}},
			{FarmID: "farm2", CountryName: "Canada", NumberOfUsers: 2, Certification: "Organic", GridPoints: &models.GridPoint{Lat: 43.6, Lng: -79.3}},
			{FarmID: "farm3", CountryName: "Canada", NumberOfUsers: 5, GridPoints: &models.GridPoint{Lat: 53.5, Lng: -113.5}},
		},
		Locations: []models.Location{
			{LocationID: "l1", FarmID: "farm1", Type: models.Field, TotalArea: 5000},
			{LocationID: "l2", FarmID: "farm1", Type: models.Barn, TotalArea: 999},
			{LocationID: "l3", FarmID: "farm2", Type: models.Garden, TotalArea: 10000},
			{LocationID: "l4", FarmID: "farm2", Type: models.Greenhouse, TotalArea: 5000},
			{LocationID: "l5", FarmID: "farm3", Type: models.Field, TotalArea: 150000},
		},
		Crops: []models.Crop{
			{CropID: "1", CropGroup: "Cereals", CropCommonName: "Wheat"},
			{CropID: "2", CropGroup: "Cereals", CropCommonName: "Barley"},
			{CropID: "3", CropGroup: "Fruit and nuts", CropCommonName: "Apple"},
		},
		Varieties: []models.CropVariety{
			{CropVarietyName: "Red Fife", CropID: "1", FarmID: "farm1"},
			{CropVarietyName: "Marquis", CropID: "1", FarmID: "farm2"},
			{CropVarietyName: "Conlon", CropID: "2", FarmID: "farm3"},
			{CropVarietyName: "Gala", CropID: "3", FarmID: "farm3"},
		},
		Countries: []models.Country{
			{ID: "CA", Name: "Canada"},
			{ID: "US", Name: "United States of America"},
		},
	}
}

func scenarioDataset(t *testing.T) *Dataset {
	t.Helper()
	return NewDataset(scenario(), WithLogger(quiet))
}

func TestFarmAreaByFarmID(t *testing.T) {
	ds := scenarioDataset(t)
	want := map[models.ID]float64{"farm1": 5000, "farm2": 15000, "farm3": 150000}

	areas := ds.FarmsWithArea()
	if len(areas) != 3 {
		t.Fatalf("Expected 3 farms, got %d", len(areas))
	}
	for id, a := range want {
		if areas[id].TotalArea != a {
			t.Errorf("%s: expected area %v, got %v", id, a, areas[id].TotalArea)
		}
	}

	// A farm with no locations still appears, with area 0.
	farms := []models.Farm{{FarmID: "bare", CountryName: "Canada"}}
	got := FarmAreaByFarmID(farms, map[models.ID][]models.Location{})
	if f, ok := got["bare"]; !ok || f.TotalArea != 0 {
		t.Errorf("Expected bare farm with area 0, got %+v (present=%v)", f, ok)
	}
}

func TestFarmAreaReturnsFreshMap(t *testing.T) {
	ds := scenarioDataset(t)
	a := ds.FarmsWithArea()
	delete(a, "farm1")
	if _, ok := ds.FarmsWithArea()["farm1"]; !ok {
		t.Error("mutating a returned map changed the dataset")
	}
}

func TestAreaBucket(t *testing.T) {
	bp := DefaultAreaBreakpoints
	cases := []struct {
		area float64
		want float64
	}{
		{0, 0},
		{5000, 0},
		{9999.99, 0},
		{10000, 10000},
		{15000, 10000},
		{99999, 10000},
		{100000, 100000},
		{150000, 100000},
	}
	for _, c := range cases {
		if got := AreaBucket(c.area, bp); got != c.want {
			t.Errorf("AreaBucket(%v): expected %v, got %v", c.area, c.want, got)
		}
	}

	// Property: the bucket is the greatest breakpoint <= area.
	for area := 0.0; area < 300000; area += 777 {
		b := AreaBucket(area, bp)
		if b > area {
			t.Fatalf("bucket %v above area %v", b, area)
		}
		for _, other := range bp {
			if other <= area && other > b {
				t.Fatalf("area %v: bucket %v but %v also fits", area, b, other)
			}
		}
	}
}

func TestCountryAggregates(t *testing.T) {
	ds := scenarioDataset(t)
	idx := ds.Indices()

	if idx.CountryNameToID["Canada"] != "CA" {
		t.Fatalf("Expected Canada -> CA, got %q", idx.CountryNameToID["Canada"])
	}
	counts := FarmCountByCountryID(idx.FarmsByCountryID)
	if counts["CA"] != 3 {
		t.Errorf("Expected 3 farms in CA, got %d", counts["CA"])
	}
	if _, ok := counts["US"]; ok {
		t.Error("US has no farms and should not be counted")
	}
	totals := TotalAreaByCountryID(idx.FarmsByCountryID, ds.FarmsWithArea())
	if totals["CA"] != 170000 {
		t.Errorf("Expected CA area 170000, got %v", totals["CA"])
	}

	stats := ds.Countries()
	if len(stats) != 1 {
		t.Fatalf("Expected 1 country stat, got %d", len(stats))
	}
	if stats[0].CountryName != "Canada" || stats[0].Class != 1 {
		t.Errorf("Unexpected country stat %+v", stats[0])
	}
}

func TestChoropleth(t *testing.T) {
	domain := DefaultChoroplethDomain
	cases := map[float64]int{0: 0, 1: 1, 3: 1, 5: 2, 49: 3, 50: 4, 100: 5, 1000: 5}
	for v, want := range cases {
		if got := ChoroplethClass(v, domain); got != want {
			t.Errorf("ChoroplethClass(%v): expected %d, got %d", v, want, got)
		}
	}

	legend := ChoroplethLegend(domain)
	if legend[0] != "1–5" || legend[len(legend)-1] != "100+" {
		t.Errorf("Unexpected legend %v", legend)
	}
}

func TestFarmsByUserCountAreaBucket(t *testing.T) {
	ds := scenarioDataset(t)
	bp := ds.Breakpoints()
	farms := ApplyFilters(ds.FarmsWithArea(), NewPredicates(bp, ds.Store().Farms()), bp)

	groups := FarmsByUserCountAreaBucket(farms, bp)
	if len(groups) != 2 {
		t.Fatalf("Expected 2 user-count groups, got %d", len(groups))
	}
	if groups[0].Users != 2 || groups[1].Users != 5 {
		t.Fatalf("Groups out of order: %d, %d", groups[0].Users, groups[1].Users)
	}
	two := groups[0]
	if len(two.Buckets[0]) != 1 || two.Buckets[0][0].FarmID != "farm1" {
		t.Errorf("Expected farm1 in the 0 bucket, got %+v", two.Buckets[0])
	}
	if len(two.Buckets[10000]) != 1 || two.Buckets[10000][0].FarmID != "farm2" {
		t.Errorf("Expected farm2 in the 10000 bucket, got %+v", two.Buckets[10000])
	}
	if len(groups[1].Buckets[100000]) != 1 {
		t.Errorf("Expected farm3 in the 100000 bucket")
	}

	// Every farm lands in exactly one bucket.
	total := 0
	for _, g := range groups {
		total += g.Len()
	}
	if total != len(farms) {
		t.Errorf("Expected %d bucketed farms, got %d", len(farms), total)
	}
}

func TestFarmPercentageByUserCountGroup(t *testing.T) {
	ds := scenarioDataset(t)
	bp := ds.Breakpoints()
	groups := FarmsByUserCountAreaBucket(NewSession(ds).FilteredFarms(), bp)

	rows := FarmPercentageByUserCountGroup(groups, bp)
	for _, r := range rows {
		var sum float64
		for _, b := range r.Buckets {
			sum += b.Percent
		}
		if math.Abs(sum-100) > 1e-9 {
			t.Errorf("users=%d: percentages sum to %v", r.Users, sum)
		}
		if len(r.Buckets) != len(bp) {
			t.Errorf("users=%d: expected %d buckets, got %d", r.Users, len(bp), len(r.Buckets))
		}
	}
	if rows[0].Buckets[1].Percent != 50 || rows[0].Buckets[2].Percent != 50 {
		t.Errorf("users=2: expected 50/50 split, got %+v", rows[0].Buckets)
	}
	if rows[0].MeanArea != 10000 {
		t.Errorf("users=2: expected mean area 10000, got %v", rows[0].MeanArea)
	}
}

func TestCertifierGroups(t *testing.T) {
	ds := scenarioDataset(t)
	root := CertifierGroups(ds.Store().Farms(), ds.Indices().LocationsByFarmID)

	farm := root.Child("Organic").Child("X").Child("farm1")
	if farm == nil {
		t.Fatal("Missing path Organic -> X -> farm1")
	}
	if len(farm.Children) != 2 {
		t.Fatalf("Expected 2 location leaves, got %d", len(farm.Children))
	}
	if farm.Children[0].Name != "field" || farm.Children[0].Value != 1 {
		t.Errorf("Expected {field 1}, got %+v", farm.Children[0])
	}

	// farm2 has no certifier, farm3 no certification: both absent.
	for _, leaf := range root.Leaves() {
		if leaf.ID == "l3" || leaf.ID == "l5" {
			t.Errorf("Location %s should not be in the certification tree", leaf.ID)
		}
	}
	if len(root.Children) != 1 {
		t.Errorf("Expected a single certification, got %d", len(root.Children))
	}
}

func TestCropGroups(t *testing.T) {
	ds := scenarioDataset(t)
	root := CropGroups(ds.Store().Farms(), ds.Indices().CropVarietiesByFarmID, ds.Store().Crop)

	if got := root.Child("Cereals").Child("Wheat").Value; got != 2 {
		t.Errorf("Expected 2 wheat varieties, got %v", got)
	}
	if got := root.Sum(); got != 4 {
		t.Errorf("Expected 4 varieties in total, got %v", got)
	}
	// Children are sorted by name.
	if root.Child("Cereals").Children[0].Name != "Barley" {
		t.Errorf("Expected Barley first, got %s", root.Child("Cereals").Children[0].Name)
	}
}

func TestLandUse(t *testing.T) {
	ds := scenarioDataset(t)
	farms := NewSession(ds).FilteredFarms()
	records := FarmLocations(farms, ds.Indices().LocationsByFarmID)
	if len(records) != 5 {
		t.Fatalf("Expected 5 flattened locations, got %d", len(records))
	}

	totals := LandUseTotals(records)
	if totals[0].Type != models.Field || totals[0].Area != 155000 || totals[0].Locations != 2 {
		t.Errorf("Expected field first with 155000 over 2 locations, got %+v", totals[0])
	}
	// Non-cultivated types are still counted here.
	foundBarn := false
	for _, tot := range totals {
		if tot.Type == models.Barn {
			foundBarn = tot.Area == 999
		}
	}
	if !foundBarn {
		t.Error("Expected barn area 999 in land use totals")
	}

	root := LandUseByType(records)
	if root.Sum() != 170999 {
		t.Errorf("Expected treemap total 170999, got %v", root.Sum())
	}
	if root.Children[0].Name != string(models.Field) {
		t.Errorf("Expected largest type first, got %s", root.Children[0].Name)
	}
}

func TestMarkers(t *testing.T) {
	ds := scenarioDataset(t)
	lo, hi := ds.AreaExtent()
	if lo != 5000 || hi != 150000 {
		t.Fatalf("Expected extent [5000, 150000], got [%v, %v]", lo, hi)
	}
	if r := MarkerRadius(lo, lo, hi); r != MinMarkerRadius {
		t.Errorf("Expected min radius at lo, got %v", r)
	}
	if r := MarkerRadius(hi, lo, hi); math.Abs(r-MaxMarkerRadius) > 1e-9 {
		t.Errorf("Expected max radius at hi, got %v", r)
	}
	if r := MarkerRadius(7, 7, 7); r != MinMarkerRadius {
		t.Errorf("Expected min radius for a degenerate extent, got %v", r)
	}

	farms := []models.FarmWithArea{
		{Farm: models.Farm{FarmID: "a", GridPoints: &models.GridPoint{Lat: 1, Lng: 2}}, TotalArea: 5000},
		{Farm: models.Farm{FarmID: "b"}, TotalArea: 5000},
	}
	markers := MapMarkers(farms, lo, hi)
	if len(markers) != 1 || markers[0].FarmID != "a" {
		t.Errorf("Expected only farm a to get a marker, got %+v", markers)
	}
}
