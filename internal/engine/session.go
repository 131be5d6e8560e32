package engine

import (
	"sync"
	"time"

	"farmviz/internal/models"
)

// Session owns one filter predicate set over a shared Dataset and keeps the
// filtered farm set in step with it.
//
// Entry points are serialized; each one mutates the predicates and
// recomputes before returning, so a read right after a mutation sees the
// new state. Listeners run after the lock is released, in registration
// order, and may call any read accessor.
type Session struct {
	ds      *Dataset
	metrics *Metrics

	mu        sync.Mutex
	pred      Predicates
	filtered  []models.FarmWithArea
	listeners []listener
	nextID    int
}

type listener struct {
	id int
	fn func(*Session)
}

func NewSession(ds *Dataset) *Session {
	s := &Session{
		ds:      ds,
		metrics: ds.metrics,
		pred:    NewPredicates(ds.breakpoints, ds.store.Farms()),
	}
	s.recomputeLocked()
	return s
}

func (s *Session) Dataset() *Dataset { return s.ds }

// --- ENTRY POINTS ---

func (s *Session) ToggleAreaBucket(bucket float64) {
	s.mutate(EntryToggleAreaBucket, func(p *Predicates) {
		p.AreaBuckets[bucket] = !p.AreaBuckets[bucket]
	})
}

func (s *Session) ToggleUserCount(count int) {
	s.mutate(EntryToggleUserCount, func(p *Predicates) {
		p.UserCounts[count] = !p.UserCounts[count]
	})
}

func (s *Session) SelectFarm(id models.ID) {
	s.mutate(EntrySelectFarm, func(p *Predicates) {
		p.SelectedFarms[id] = struct{}{}
	})
}

func (s *Session) DeselectFarm(id models.ID) {
	s.mutate(EntryDeselectFarm, func(p *Predicates) {
		delete(p.SelectedFarms, id)
	})
}

// SetCertificationDrill replaces the drill path. The zero Drill clears it.
func (s *Session) SetCertificationDrill(d Drill) {
	s.mutate(EntrySetDrill, func(p *Predicates) {
		p.Drill = d
	})
}

// Recompute rebuilds the filtered farm set from the current predicates.
// With no mutation in between, the result is unchanged.
func (s *Session) Recompute() {
	s.mu.Lock()
	s.recomputeLocked()
	s.mu.Unlock()
}

func (s *Session) mutate(entry string, fn func(*Predicates)) {
	s.mu.Lock()
	fn(&s.pred)
	s.recomputeLocked()
	ls := append([]listener(nil), s.listeners...)
	s.mu.Unlock()

	s.metrics.incMutation(entry)
	for _, l := range ls {
		l.fn(s)
	}
}

func (s *Session) recomputeLocked() {
	start := time.Now()
	s.filtered = ApplyFilters(s.ds.farms, s.pred, s.ds.breakpoints)
	s.metrics.observeRecompute(time.Since(start).Seconds(), len(s.filtered))
}

// Subscribe registers fn to run after every mutation. The returned func
// removes it.
func (s *Session) Subscribe(fn func(*Session)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners = append(s.listeners, listener{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// --- READ ACCESSORS ---

// FilteredFarms is the filtered farm set, ordered by farm id.
func (s *Session) FilteredFarms() []models.FarmWithArea {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.FarmWithArea(nil), s.filtered...)
}

func (s *Session) Filters() models.FilterState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pred.State()
}

func (s *Session) Drill() Drill {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pred.Drill
}

// MapFarms is the map's scope: the filtered set narrowed by the drill path
// and, when any farm is selected, by the selection.
func (s *Session) MapFarms() []models.FarmWithArea {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapFarmsLocked()
}

func (s *Session) mapFarmsLocked() []models.FarmWithArea {
	out := make([]models.FarmWithArea, 0, len(s.filtered))
	for _, f := range s.filtered {
		if !s.pred.Drill.Match(f.Farm) {
			continue
		}
		if len(s.pred.SelectedFarms) > 0 && !s.pred.Selected(f.FarmID) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// CertificationTree is the bubble chart's hierarchy: the selected farms, or
// all farms when nothing is selected, narrowed to the drill path.
func (s *Session) CertificationTree() *models.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.certificationTreeLocked()
}

func (s *Session) certificationTreeLocked() *models.Node {
	farms := s.ds.store.Farms()
	if len(s.pred.SelectedFarms) > 0 {
		selected := farms[:0:0]
		for _, f := range farms {
			if s.pred.Selected(f.FarmID) {
				selected = append(selected, f)
			}
		}
		farms = selected
	}
	return s.pred.Drill.Narrow(CertifierGroups(farms, s.ds.idx.LocationsByFarmID))
}

// Dashboard computes every chart series from one consistent snapshot.
func (s *Session) Dashboard() *models.DashboardData {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds := s.ds
	mapFarms := s.mapFarmsLocked()
	mapPlain := make([]models.Farm, len(mapFarms))
	for i, f := range mapFarms {
		mapPlain[i] = f.Farm
	}
	landUse := FarmLocations(s.filtered, ds.idx.LocationsByFarmID)

	return &models.DashboardData{
		Filters:       s.pred.State(),
		FilteredFarms: len(s.filtered),
		Countries:     ds.Countries(),
		Legend:        ChoroplethLegend(ds.domain),
		Markers:       MapMarkers(mapFarms, ds.areaLo, ds.areaHi),
		FarmSizes:     FarmPercentageByUserCountGroup(FarmsByUserCountAreaBucket(s.filtered, ds.breakpoints), ds.breakpoints),
		LandUse:       LandUseByType(landUse),
		LandUseTotals: LandUseTotals(landUse),
		Certification: s.certificationTreeLocked(),
		CropGroups:    CropGroups(mapPlain, ds.idx.CropVarietiesByFarmID, ds.store.Crop),
		LocationTypes: append([]models.LocationType(nil), ds.idx.LocationTypes...),
		Farms:         append([]models.FarmWithArea(nil), s.filtered...),
	}
}
