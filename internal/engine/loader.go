package engine

import (
	"log/slog"
	"math"
	"time"

	json "github.com/goccy/go-json"

	"farmviz/internal/models"
)

// Collections are the typed raw inputs, as produced by a source.
type Collections struct {
	Farms     []models.Farm
	Crops     []models.Crop
	Varieties []models.CropVariety
	Locations []models.Location
	Countries []models.Country
}

// RawCollections are undecoded records, one JSON object per element.
// Countries holds GeoJSON features.
type RawCollections struct {
	Farms     []json.RawMessage
	Crops     []json.RawMessage
	Varieties []json.RawMessage
	Locations []json.RawMessage
	Countries []json.RawMessage
}

// --- 1. WIRE SHAPES ---
// Pointers tell "absent" from "zero".

type farmWire struct {
	FarmID        *models.ID        `json:"farm_id"`
	FarmName      *string           `json:"farm_name"`
	CountryName   *string           `json:"country_name"`
	NumberOfUsers *float64          `json:"number_of_users"`
	Certification *string           `json:"certification"`
	Certifier     *string           `json:"certifier"`
	GridPoints    *models.GridPoint `json:"grid_points"`
}

type locationWire struct {
	LocationID *models.ID        `json:"location_id"`
	FarmID     *models.ID        `json:"farm_id"`
	Type       *string           `json:"type"`
	TotalArea  *float64          `json:"total_area"`
	GridPoints *models.GridPoint `json:"grid_points"`
}

type cropWire struct {
	CropID         *models.ID `json:"crop_id"`
	CropGroup      *string    `json:"crop_group"`
	CropCommonName *string    `json:"crop_common_name"`
}

type varietyWire struct {
	CropVarietyName *string    `json:"crop_variety_name"`
	CropID          *models.ID `json:"crop_id"`
	FarmID          *models.ID `json:"farm_id"`
}

type featureWire struct {
	ID         *models.ID `json:"id"`
	Properties *struct {
		Name *string `json:"name"`
	} `json:"properties"`
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func idOf(p *models.ID) string {
	if p == nil {
		return ""
	}
	return string(*p)
}

// num applies the missing-numeric-is-zero policy.
func num(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// MaxUsers bounds number_of_users.
const MaxUsers = math.MaxInt32

// UserCount validates a decoded number_of_users: a whole number in
// [0, MaxUsers]. NaN and infinities fail.
func UserCount(v float64) (int, bool) {
	if !(v >= 0 && v <= MaxUsers) || v != math.Trunc(v) {
		return 0, false
	}
	return int(v), true
}

// --- 2. DECODE ---

// DecodeJSON turns raw records into typed ones. A record that fails to
// decode or lacks a required field is reported and skipped.
func DecodeJSON(raw RawCollections) (Collections, *LoadReport) {
	var c Collections
	report := &LoadReport{}

	for _, msg := range raw.Farms {
		var w farmWire
		if err := json.Unmarshal(msg, &w); err != nil {
			report.Add(invalidShape(CollectionFarms, idOf(w.FarmID), "", err))
			continue
		}
		key := idOf(w.FarmID)
		switch {
		case key == "":
			report.Add(invalidShape(CollectionFarms, key, "farm_id", nil))
			continue
		case w.CountryName == nil:
			report.Add(invalidShape(CollectionFarms, key, "country_name", nil))
			continue
		}
		users, ok := UserCount(num(w.NumberOfUsers))
		if !ok {
			report.Add(invalidShape(CollectionFarms, key, "number_of_users", nil))
			continue
		}
		c.Farms = append(c.Farms, models.Farm{
			FarmID:        models.ID(key),
			FarmName:      str(w.FarmName),
			CountryName:   *w.CountryName,
			NumberOfUsers: users,
			Certification: str(w.Certification),
			Certifier:     str(w.Certifier),
			GridPoints:    w.GridPoints,
		})
	}

	for _, msg := range raw.Locations {
		var w locationWire
		if err := json.Unmarshal(msg, &w); err != nil {
			report.Add(invalidShape(CollectionLocations, idOf(w.LocationID), "", err))
			continue
		}
		key := idOf(w.LocationID)
		switch {
		case key == "":
			report.Add(invalidShape(CollectionLocations, key, "location_id", nil))
			continue
		case idOf(w.FarmID) == "":
			report.Add(invalidShape(CollectionLocations, key, "farm_id", nil))
			continue
		case str(w.Type) == "":
			report.Add(invalidShape(CollectionLocations, key, "type", nil))
			continue
		}
		c.Locations = append(c.Locations, models.Location{
			LocationID: models.ID(key),
			FarmID:     *w.FarmID,
			Type:       models.LocationType(*w.Type),
			TotalArea:  num(w.TotalArea),
			GridPoints: w.GridPoints,
		})
	}

	for _, msg := range raw.Crops {
		var w cropWire
		if err := json.Unmarshal(msg, &w); err != nil {
			report.Add(invalidShape(CollectionCrops, idOf(w.CropID), "", err))
			continue
		}
		key := idOf(w.CropID)
		switch {
		case key == "":
			report.Add(invalidShape(CollectionCrops, key, "crop_id", nil))
			continue
		case w.CropGroup == nil:
			report.Add(invalidShape(CollectionCrops, key, "crop_group", nil))
			continue
		case w.CropCommonName == nil:
			report.Add(invalidShape(CollectionCrops, key, "crop_common_name", nil))
			continue
		}
		c.Crops = append(c.Crops, models.Crop{
			CropID:         models.ID(key),
			CropGroup:      *w.CropGroup,
			CropCommonName: *w.CropCommonName,
		})
	}

	for _, msg := range raw.Varieties {
		var w varietyWire
		if err := json.Unmarshal(msg, &w); err != nil {
			report.Add(invalidShape(CollectionVarieties, str(w.CropVarietyName), "", err))
			continue
		}
		key := str(w.CropVarietyName)
		switch {
		case idOf(w.CropID) == "":
			report.Add(invalidShape(CollectionVarieties, key, "crop_id", nil))
			continue
		case idOf(w.FarmID) == "":
			report.Add(invalidShape(CollectionVarieties, key, "farm_id", nil))
			continue
		}
		c.Varieties = append(c.Varieties, models.CropVariety{
			CropVarietyName: key,
			CropID:          *w.CropID,
			FarmID:          *w.FarmID,
		})
	}

	for _, msg := range raw.Countries {
		var w featureWire
		if err := json.Unmarshal(msg, &w); err != nil {
			report.Add(invalidShape(CollectionCountries, idOf(w.ID), "", err))
			continue
		}
		key := idOf(w.ID)
		switch {
		case key == "":
			report.Add(invalidShape(CollectionCountries, key, "id", nil))
			continue
		case w.Properties == nil || str(w.Properties.Name) == "":
			report.Add(invalidShape(CollectionCountries, key, "properties.name", nil))
			continue
		}
		c.Countries = append(c.Countries, models.Country{ID: key, Name: *w.Properties.Name})
	}

	return c, report
}

// --- 3. INGEST ---

// Ingest validates typed records and fills a RecordStore. Records that
// break a shape rule are reported and skipped; foreign keys are checked
// later, by BuildIndices.
func Ingest(c Collections, logger *slog.Logger) (*RecordStore, *LoadReport) {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()
	store := newRecordStore()
	report := &LoadReport{}

	for _, f := range c.Farms {
		switch {
		case f.FarmID == "":
			report.Add(invalidShape(CollectionFarms, "", "farm_id", nil))
		case f.NumberOfUsers < 0 || f.NumberOfUsers > MaxUsers:
			report.Add(invalidShape(CollectionFarms, string(f.FarmID), "number_of_users", nil))
		default:
			store.putFarm(f)
		}
	}
	for _, cr := range c.Crops {
		if cr.CropID == "" {
			report.Add(invalidShape(CollectionCrops, "", "crop_id", nil))
			continue
		}
		store.putCrop(cr)
	}
	for _, l := range c.Locations {
		key := string(l.LocationID)
		switch {
		case key == "":
			report.Add(invalidShape(CollectionLocations, "", "location_id", nil))
		case l.FarmID == "":
			report.Add(invalidShape(CollectionLocations, key, "farm_id", nil))
		case l.Type == "":
			report.Add(invalidShape(CollectionLocations, key, "type", nil))
		case l.TotalArea < 0 || math.IsNaN(l.TotalArea) || math.IsInf(l.TotalArea, 0):
			report.Add(invalidShape(CollectionLocations, key, "total_area", nil))
		default:
			store.putLocation(l)
		}
	}
	for _, v := range c.Varieties {
		switch {
		case v.CropID == "":
			report.Add(invalidShape(CollectionVarieties, v.CropVarietyName, "crop_id", nil))
		case v.FarmID == "":
			report.Add(invalidShape(CollectionVarieties, v.CropVarietyName, "farm_id", nil))
		default:
			store.varieties = append(store.varieties, v)
		}
	}
	for _, ct := range c.Countries {
		if ct.ID == "" || ct.Name == "" {
			report.Add(invalidShape(CollectionCountries, ct.ID, "name", nil))
			continue
		}
		store.countries = append(store.countries, ct)
	}

	logSkips(logger, report)
	farms, crops, varieties, locations, countries := store.Len()
	logger.Info("records ingested",
		"farms", farms,
		"crops", crops,
		"crop_varieties", varieties,
		"locations", locations,
		"countries", countries,
		"skipped", len(report.Skipped),
		"duration", time.Since(start),
	)
	return store, report
}

func logSkips(logger *slog.Logger, report *LoadReport) {
	for _, re := range report.Skipped {
		logger.Warn("record skipped",
			"collection", re.Collection,
			"key", re.Key,
			"field", re.Field,
			"reason", reason(re),
		)
	}
}
