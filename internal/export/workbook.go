// Package export writes a dashboard snapshot as a spreadsheet.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"farmviz/internal/models"
)

// Sheet names, in workbook order.
const (
	SheetCountries = "Countries"
	SheetFarmSizes = "FarmSizes"
	SheetLandUse   = "LandUse"
	SheetFarms     = "Farms"
)

// Workbook lays out d on one sheet per chart. The caller closes the file.
func Workbook(d *models.DashboardData) (*excelize.File, error) {
	f := excelize.NewFile()

	// NewFile starts with "Sheet1"; rename it instead of leaving it empty.
	if err := f.SetSheetName("Sheet1", SheetCountries); err != nil {
		f.Close()
		return nil, err
	}
	for _, name := range []string{SheetFarmSizes, SheetLandUse, SheetFarms} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, err
		}
	}

	rows := map[string][][]any{
		SheetCountries: countryRows(d.Countries),
		SheetFarmSizes: farmSizeRows(d.FarmSizes),
		SheetLandUse:   landUseRows(d.LandUseTotals),
		SheetFarms:     farmRows(d.Farms),
	}
	for sheet, rs := range rows {
		if err := writeRows(f, sheet, rs); err != nil {
			f.Close()
			return nil, err
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func countryRows(stats []models.CountryStat) [][]any {
	rows := [][]any{{"country_id", "country_name", "farm_count", "total_area", "class"}}
	for _, s := range stats {
		rows = append(rows, []any{s.CountryID, s.CountryName, s.FarmCount, s.TotalArea, s.Class})
	}
	return rows
}

func farmSizeRows(sizes []models.UserCountRow) [][]any {
	rows := [][]any{{"number_of_users", "bucket", "count", "percent"}}
	for _, r := range sizes {
		for _, b := range r.Buckets {
			rows = append(rows, []any{r.Users, b.Bucket, b.Count, b.Percent})
		}
	}
	return rows
}

func landUseRows(totals []models.LandUseTotal) [][]any {
	rows := [][]any{{"type", "area", "locations"}}
	for _, t := range totals {
		rows = append(rows, []any{string(t.Type), t.Area, t.Locations})
	}
	return rows
}

func farmRows(farms []models.FarmWithArea) [][]any {
	rows := [][]any{{"farm_id", "farm_name", "country_name", "number_of_users", "certification", "certifier", "total_area"}}
	for _, f := range farms {
		rows = append(rows, []any{
			string(f.FarmID), f.FarmName, f.CountryName, f.NumberOfUsers, f.Certification, f.Certifier, f.TotalArea,
		})
	}
	return rows
}
