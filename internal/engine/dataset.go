package engine

import (
	"log/slog"
	"sort"
	"time"

	"farmviz/internal/models"
)

// Dataset is the immutable part of the engine: raw records, indices and
// everything derived from them alone. Sessions share one Dataset.
type Dataset struct {
	store       *RecordStore
	idx         *Indices
	breakpoints []float64
	domain      []float64

	farms          map[models.ID]models.FarmWithArea
	areaLo, areaHi float64
	countries      []models.CountryStat

	report  *LoadReport
	logger  *slog.Logger
	metrics *Metrics
}

type Option func(*Dataset)

// WithBreakpoints sets the area bucket lower bounds. They are copied and
// sorted largest first.
func WithBreakpoints(b []float64) Option {
	return func(d *Dataset) {
		d.breakpoints = append([]float64(nil), b...)
	}
}

func WithChoroplethDomain(domain []float64) Option {
	return func(d *Dataset) {
		d.domain = append([]float64(nil), domain...)
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Dataset) { d.logger = l }
}

// WithMetrics records ingest skips here and is inherited by sessions.
func WithMetrics(m *Metrics) Option {
	return func(d *Dataset) { d.metrics = m }
}

// NewDataset ingests c, builds the indices and the per-farm areas. It
// never fails: bad records are skipped and listed in Report.
func NewDataset(c Collections, opts ...Option) *Dataset {
	d := &Dataset{
		breakpoints: append([]float64(nil), DefaultAreaBreakpoints...),
		domain:      append([]float64(nil), DefaultChoroplethDomain...),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(d.breakpoints)))
	sort.Float64s(d.domain)

	start := time.Now()
	store, report := Ingest(c, d.logger)
	idx, idxReport := BuildIndices(store, d.logger)
	report.Merge(idxReport)

	d.store = store
	d.idx = idx
	d.report = report
	d.farms = FarmAreaByFarmID(store.Farms(), idx.LocationsByFarmID)
	all := make([]models.FarmWithArea, 0, len(d.farms))
	for _, f := range d.farms {
		all = append(all, f)
	}
	d.areaLo, d.areaHi = AreaExtent(all)
	d.countries = CountryStats(idx, d.farms, d.domain)
	d.metrics.RecordSkipped(report)

	d.logger.Info("dataset ready",
		"farms", len(d.farms),
		"countries", len(d.countries),
		"skipped", len(report.Skipped),
		"duration", time.Since(start),
	)
	return d
}

func (d *Dataset) Store() *RecordStore { return d.store }

func (d *Dataset) Indices() *Indices { return d.idx }

func (d *Dataset) Report() *LoadReport { return d.report }

func (d *Dataset) Breakpoints() []float64 {
	return append([]float64(nil), d.breakpoints...)
}

func (d *Dataset) ChoroplethDomain() []float64 {
	return append([]float64(nil), d.domain...)
}

// FarmWithArea looks up one derived farm record.
func (d *Dataset) FarmWithArea(id models.ID) (models.FarmWithArea, bool) {
	f, ok := d.farms[id]
	return f, ok
}

// FarmsWithArea returns a copy of the per-farm area mapping.
func (d *Dataset) FarmsWithArea() map[models.ID]models.FarmWithArea {
	out := make(map[models.ID]models.FarmWithArea, len(d.farms))
	for id, f := range d.farms {
		out[id] = f
	}
	return out
}

// Countries returns farm count and area per resolved country.
func (d *Dataset) Countries() []models.CountryStat {
	return append([]models.CountryStat(nil), d.countries...)
}

// AreaExtent is the min and max area over all farms.
func (d *Dataset) AreaExtent() (float64, float64) { return d.areaLo, d.areaHi }
