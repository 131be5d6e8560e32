package source

import (
	"context"
	"fmt"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"farmviz/internal/engine"
	"farmviz/internal/models"
)

// Row types mirror the visualization tables. Nullable numeric columns are
// pointers so that NULL becomes 0, not a failed scan.

type farmRow struct {
	FarmID        string `gorm:"column:farm_id;primaryKey"`
	FarmName      string
	CountryName   string `gorm:"index"`
	NumberOfUsers *float64
	Certification *string
	Certifier     *string
	Lat           *float64
	Lng           *float64
}

func (farmRow) TableName() string { return "farm" }

type locationRow struct {
	LocationID string `gorm:"column:location_id;primaryKey"`
	FarmID     string `gorm:"index"`
	Type       string
	TotalArea  *float64
	Lat        *float64
	Lng        *float64
}

func (locationRow) TableName() string { return "location" }

type cropRow struct {
	CropID         string `gorm:"column:crop_id;primaryKey"`
	CropGroup      string
	CropCommonName string
}

func (cropRow) TableName() string { return "crop" }

// A variety has no id of its own; the farm, crop and name together are
// its key.
type varietyRow struct {
	FarmID          string `gorm:"primaryKey"`
	CropID          string `gorm:"primaryKey;index"`
	CropVarietyName string `gorm:"primaryKey"`
}

func (varietyRow) TableName() string { return "crop_variety" }

type countryRow struct {
	CountryID string `gorm:"column:country_id;primaryKey"`
	Name      string
}

func (countryRow) TableName() string { return "country" }

// SQLite reads the collections from a database file.
type SQLite struct {
	db *gorm.DB
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return &SQLite{db: db}, nil
}

// Migrate creates the tables if they do not exist.
func (s *SQLite) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(
		&farmRow{}, &locationRow{}, &cropRow{}, &varietyRow{}, &countryRow{},
	); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func zero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func gridPoint(lat, lng *float64) *models.GridPoint {
	if lat == nil || lng == nil {
		return nil
	}
	return &models.GridPoint{Lat: *lat, Lng: *lng}
}

// Load reads every table. A farm whose number_of_users is not a whole
// non-negative count is reported and skipped; other shape and reference
// checks happen at ingest.
func (s *SQLite) Load(ctx context.Context) (engine.Collections, *engine.LoadReport, error) {
	db := s.db.WithContext(ctx)

	var farms []farmRow
	var locations []locationRow
	var crops []cropRow
	var varieties []varietyRow
	var countries []countryRow
	for _, q := range []struct {
		table string
		dst   any
	}{
		{"farm", &farms},
		{"location", &locations},
		{"crop", &crops},
		{"crop_variety", &varieties},
		{"country", &countries},
	} {
		if err := db.Find(q.dst).Error; err != nil {
			return engine.Collections{}, nil, fmt.Errorf("load %s: %w", q.table, err)
		}
	}

	var c engine.Collections
	report := &engine.LoadReport{}
	for _, r := range farms {
		users, ok := engine.UserCount(zero(r.NumberOfUsers))
		if !ok {
			report.Add(&engine.RecordError{
				Collection: engine.CollectionFarms,
				Key:        r.FarmID,
				Field:      "number_of_users",
				Err:        engine.ErrInvalidInputShape,
			})
			continue
		}
		c.Farms = append(c.Farms, models.Farm{
			FarmID:        models.ID(r.FarmID),
			FarmName:      r.FarmName,
			CountryName:   r.CountryName,
			NumberOfUsers: users,
			Certification: deref(r.Certification),
			Certifier:     deref(r.Certifier),
			GridPoints:    gridPoint(r.Lat, r.Lng),
		})
	}
	for _, r := range locations {
		c.Locations = append(c.Locations, models.Location{
			LocationID: models.ID(r.LocationID),
			FarmID:     models.ID(r.FarmID),
			Type:       models.LocationType(r.Type),
			TotalArea:  zero(r.TotalArea),
			GridPoints: gridPoint(r.Lat, r.Lng),
		})
	}
	for _, r := range crops {
		c.Crops = append(c.Crops, models.Crop{
			CropID:         models.ID(r.CropID),
			CropGroup:      r.CropGroup,
			CropCommonName: r.CropCommonName,
		})
	}
	for _, r := range varieties {
		c.Varieties = append(c.Varieties, models.CropVariety{
			CropVarietyName: r.CropVarietyName,
			CropID:          models.ID(r.CropID),
			FarmID:          models.ID(r.FarmID),
		})
	}
	for _, r := range countries {
		c.Countries = append(c.Countries, models.Country{ID: r.CountryID, Name: r.Name})
	}
	return c, report, nil
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optFloat(f float64) *float64 { return &f }

// Import writes c into the tables in one transaction, replacing rows with
// the same key. A variety already present is left as is.
func (s *SQLite) Import(ctx context.Context, c engine.Collections) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, f := range c.Farms {
			r := farmRow{
				FarmID:        string(f.FarmID),
				FarmName:      f.FarmName,
				CountryName:   f.CountryName,
				NumberOfUsers: optFloat(float64(f.NumberOfUsers)),
				Certification: optString(f.Certification),
				Certifier:     optString(f.Certifier),
			}
			if f.GridPoints != nil {
				r.Lat, r.Lng = optFloat(f.GridPoints.Lat), optFloat(f.GridPoints.Lng)
			}
			if err := tx.Save(&r).Error; err != nil {
				return fmt.Errorf("save farm %s: %w", f.FarmID, err)
			}
		}
		for _, l := range c.Locations {
			r := locationRow{
				LocationID: string(l.LocationID),
				FarmID:     string(l.FarmID),
				Type:       string(l.Type),
				TotalArea:  optFloat(l.TotalArea),
			}
			if l.GridPoints != nil {
				r.Lat, r.Lng = optFloat(l.GridPoints.Lat), optFloat(l.GridPoints.Lng)
			}
			if err := tx.Save(&r).Error; err != nil {
				return fmt.Errorf("save location %s: %w", l.LocationID, err)
			}
		}
		for _, cr := range c.Crops {
			r := cropRow{CropID: string(cr.CropID), CropGroup: cr.CropGroup, CropCommonName: cr.CropCommonName}
			if err := tx.Save(&r).Error; err != nil {
				return fmt.Errorf("save crop %s: %w", cr.CropID, err)
			}
		}
		for _, v := range c.Varieties {
			r := varietyRow{CropVarietyName: v.CropVarietyName, CropID: string(v.CropID), FarmID: string(v.FarmID)}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&r).Error; err != nil {
				return fmt.Errorf("save crop variety %q: %w", v.CropVarietyName, err)
			}
		}
		for _, ct := range c.Countries {
			r := countryRow{CountryID: ct.ID, Name: ct.Name}
			if err := tx.Save(&r).Error; err != nil {
				return fmt.Errorf("save country %s: %w", ct.ID, err)
			}
		}
		return nil
	})
}
