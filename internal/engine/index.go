package engine

import (
	"log/slog"

	"farmviz/internal/models"
)

// Indices are the lookup structures derived once from a RecordStore.
// Slices keep the store's insertion order.
type Indices struct {
	LocationsByFarmID     map[models.ID][]models.Location
	CropVarietiesByFarmID map[models.ID][]models.CropVariety
	CropVarietiesByCropID map[models.ID][]models.CropVariety
	CountryNameToID       map[string]string
	FarmsByCountryID      map[string][]models.Farm

	// Distinct location types, first-seen order.
	LocationTypes []models.LocationType

	// Farms whose country_name matched no country. Kept out of
	// FarmsByCountryID only.
	UnresolvedCountries []models.ID
}

// BuildIndices derives every index in one pass per collection. Records with
// a dangling foreign key are left out of the affected index and reported.
func BuildIndices(store *RecordStore, logger *slog.Logger) (*Indices, *LoadReport) {
	if logger == nil {
		logger = slog.Default()
	}
	report := &LoadReport{}
	idx := &Indices{
		LocationsByFarmID:     make(map[models.ID][]models.Location),
		CropVarietiesByFarmID: make(map[models.ID][]models.CropVariety),
		CropVarietiesByCropID: make(map[models.ID][]models.CropVariety),
		CountryNameToID:       make(map[string]string),
		FarmsByCountryID:      make(map[string][]models.Farm),
	}

	seenTypes := make(map[models.LocationType]bool)
	for _, l := range store.Locations() {
		if !seenTypes[l.Type] {
			seenTypes[l.Type] = true
			idx.LocationTypes = append(idx.LocationTypes, l.Type)
		}
		if _, ok := store.Farm(l.FarmID); !ok {
			report.Add(missingRef(CollectionLocations, string(l.LocationID), "farm_id"))
			continue
		}
		idx.LocationsByFarmID[l.FarmID] = append(idx.LocationsByFarmID[l.FarmID], l)
	}

	// Each foreign key gates only its own index.
	for _, v := range store.Varieties() {
		if _, ok := store.Farm(v.FarmID); ok {
			idx.CropVarietiesByFarmID[v.FarmID] = append(idx.CropVarietiesByFarmID[v.FarmID], v)
		} else {
			report.Add(missingRef(CollectionVarieties, v.CropVarietyName, "farm_id"))
		}
		if _, ok := store.Crop(v.CropID); ok {
			idx.CropVarietiesByCropID[v.CropID] = append(idx.CropVarietiesByCropID[v.CropID], v)
		} else {
			report.Add(missingRef(CollectionVarieties, v.CropVarietyName, "crop_id"))
		}
	}

	for _, c := range store.Countries() {
		idx.CountryNameToID[c.Name] = c.ID
	}

	for _, f := range store.Farms() {
		id, ok := idx.CountryNameToID[f.CountryName]
		if !ok {
			idx.UnresolvedCountries = append(idx.UnresolvedCountries, f.FarmID)
			continue
		}
		idx.FarmsByCountryID[id] = append(idx.FarmsByCountryID[id], f)
	}

	logSkips(logger, report)
	if n := len(idx.UnresolvedCountries); n > 0 {
		logger.Debug("farms without a matching country", "count", n)
	}
	return idx, report
}
