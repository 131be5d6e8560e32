package engine

import "farmviz/internal/models"

// RecordStore holds the raw collections keyed by primary key, keeping the
// order records arrived in. It is filled once by Ingest and read-only after.
type RecordStore struct {
	farms     map[models.ID]models.Farm
	farmOrder []models.ID

	crops     map[models.ID]models.Crop
	cropOrder []models.ID

	locations     map[models.ID]models.Location
	locationOrder []models.ID

	// No primary key on these two; kept as sequences.
	varieties []models.CropVariety
	countries []models.Country
}

func newRecordStore() *RecordStore {
	return &RecordStore{
		farms:     make(map[models.ID]models.Farm),
		crops:     make(map[models.ID]models.Crop),
		locations: make(map[models.ID]models.Location),
	}
}

// A repeated key replaces the earlier record but keeps its position.
func (s *RecordStore) putFarm(f models.Farm) {
	if _, ok := s.farms[f.FarmID]; !ok {
		s.farmOrder = append(s.farmOrder, f.FarmID)
	}
	s.farms[f.FarmID] = f
}

func (s *RecordStore) putCrop(c models.Crop) {
	if _, ok := s.crops[c.CropID]; !ok {
		s.cropOrder = append(s.cropOrder, c.CropID)
	}
	s.crops[c.CropID] = c
}

func (s *RecordStore) putLocation(l models.Location) {
	if _, ok := s.locations[l.LocationID]; !ok {
		s.locationOrder = append(s.locationOrder, l.LocationID)
	}
	s.locations[l.LocationID] = l
}

func (s *RecordStore) Farm(id models.ID) (models.Farm, bool) {
	f, ok := s.farms[id]
	return f, ok
}

func (s *RecordStore) Crop(id models.ID) (models.Crop, bool) {
	c, ok := s.crops[id]
	return c, ok
}

func (s *RecordStore) Location(id models.ID) (models.Location, bool) {
	l, ok := s.locations[id]
	return l, ok
}

// Farms returns every farm in load order.
func (s *RecordStore) Farms() []models.Farm {
	out := make([]models.Farm, 0, len(s.farmOrder))
	for _, id := range s.farmOrder {
		out = append(out, s.farms[id])
	}
	return out
}

func (s *RecordStore) Crops() []models.Crop {
	out := make([]models.Crop, 0, len(s.cropOrder))
	for _, id := range s.cropOrder {
		out = append(out, s.crops[id])
	}
	return out
}

func (s *RecordStore) Locations() []models.Location {
	out := make([]models.Location, 0, len(s.locationOrder))
	for _, id := range s.locationOrder {
		out = append(out, s.locations[id])
	}
	return out
}

func (s *RecordStore) Varieties() []models.CropVariety {
	return append([]models.CropVariety(nil), s.varieties...)
}

func (s *RecordStore) Countries() []models.Country {
	return append([]models.Country(nil), s.countries...)
}

func (s *RecordStore) Len() (farms, crops, varieties, locations, countries int) {
	return len(s.farmOrder), len(s.cropOrder), len(s.varieties), len(s.locationOrder), len(s.countries)
}
