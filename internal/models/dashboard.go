package models

// DashboardData is everything the charts draw for one session, computed
// from the same predicate snapshot.
type DashboardData struct {
	Filters       FilterState    `json:"filters"`
	FilteredFarms int            `json:"filtered_farms"`
	Countries     []CountryStat  `json:"countries"`
	Legend        []string       `json:"legend"`
	Markers       []MapMarker    `json:"markers"`
	FarmSizes     []UserCountRow `json:"farm_sizes"`
	LandUse       *Node          `json:"land_use"`
	LandUseTotals []LandUseTotal `json:"land_use_totals"`
	Certification *Node          `json:"certification"`
	CropGroups    *Node          `json:"crop_groups"`
	LocationTypes []LocationType `json:"location_types"`
	Farms         []FarmWithArea `json:"-"`
}

type CountryStat struct {
	CountryID   string  `json:"country_id"`
	CountryName string  `json:"country_name"`
	FarmCount   int     `json:"farm_count"`
	TotalArea   float64 `json:"total_area"`
	Class       int     `json:"class"`
}

type MapMarker struct {
	FarmID    ID      `json:"farm_id"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	TotalArea float64 `json:"total_area"`
	Radius    float64 `json:"radius"`
}

// BucketShare is one stacked segment of a farm-size bar.
type BucketShare struct {
	Bucket  float64 `json:"bucket"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

type UserCountRow struct {
	Users    int           `json:"number_of_users"`
	Total    int           `json:"total"`
	MeanArea float64       `json:"mean_area"`
	Buckets  []BucketShare `json:"buckets"`
}

type LandUseTotal struct {
	Type      LocationType `json:"type"`
	Area      float64      `json:"area"`
	Locations int          `json:"locations"`
}

type BucketToggle struct {
	Bucket  float64 `json:"bucket"`
	Enabled bool    `json:"enabled"`
}

type UserCountToggle struct {
	Users   int  `json:"number_of_users"`
	Enabled bool `json:"enabled"`
}

// FilterState is a read-only copy of a session's predicates.
type FilterState struct {
	AreaBuckets   []BucketToggle    `json:"area_buckets"`
	UserCounts    []UserCountToggle `json:"user_counts"`
	SelectedFarms []ID              `json:"selected_farms"`
	Certification string            `json:"certification,omitempty"`
	Certifier     string            `json:"certifier,omitempty"`
}
