package ingest

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/example/visit-trip-linker/internal/models"
)

const (
	VisitsSheet   = "visits"
	TripLegsSheet = "trip_legs"
	MatchesSheet  = "matches"
)

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02 15:04"}

// matchColumns mirrors the column names downstream modeling scripts read.
var matchColumns = []interface{}{
	"VisitID", "CareEpisodeID", "CarStartTime", "CarEndTime", "DurationMin",
	"DistanceM", "SpanDistanceM", "SpanCarStartTime", "Information",
}

// informationLabels are the Information values those scripts filter on.
var informationLabels = map[models.Classification]string{
	models.Matched:        "match",
	models.Unmatched:      "no match",
	models.NoTripsThisDay: "no car trips this date",
}

func informationLabel(c models.Classification) string {
	if label, ok := informationLabels[c]; ok {
		return label
	}
	return string(c)
}

// ReadWorkbook loads the visits and trip_legs sheets. Columns are located by
// header name. Rows with an empty required cell are skipped and counted.
func ReadWorkbook(path string) (models.Batch, Rejected, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return models.Batch{}, Rejected{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var b models.Batch
	var rej Rejected

	visits, err := sheetRecords(f, VisitsSheet, []string{"VisitID", "CareEpisodeID", "Latitude", "Longitude", "FinishedAt"})
	if err != nil {
		return b, rej, err
	}
	for _, r := range visits {
		if r.missing {
			rej.Visits++
			continue
		}
		v := models.Visit{VisitID: r.str("VisitID"), CareEpisodeID: r.str("CareEpisodeID")}
		if err = r.parseInto(
			floatField("Latitude", &v.Location.Lat),
			floatField("Longitude", &v.Location.Lon),
			timeField("FinishedAt", &v.FinishedAt),
		); err != nil {
			return b, rej, fmt.Errorf("%s row %d: %w", VisitsSheet, r.row, err)
		}
		b.Visits = append(b.Visits, v)
	}

	legs, err := sheetRecords(f, TripLegsSheet, []string{"TripGroupID", "StartLatitude", "StartLongitude", "StartTime", "EndLatitude", "EndLongitude", "EndTime"})
	if err != nil {
		return b, rej, err
	}
	for _, r := range legs {
		if r.missing {
			rej.TripLegs++
			continue
		}
		l := models.TripLeg{TripGroupID: r.str("TripGroupID"), Role: models.LegRole(strings.ToLower(r.str("Role")))}
		if err = r.parseInto(
			floatField("StartLatitude", &l.StartLocation.Lat),
			floatField("StartLongitude", &l.StartLocation.Lon),
			timeField("StartTime", &l.StartTime),
			floatField("EndLatitude", &l.EndLocation.Lat),
			floatField("EndLongitude", &l.EndLocation.Lon),
			timeField("EndTime", &l.EndTime),
		); err != nil {
			return b, rej, fmt.Errorf("%s row %d: %w", TripLegsSheet, r.row, err)
		}
		b.TripLegs = append(b.TripLegs, l)
	}
	return b, rej, nil
}

// WriteWorkbook writes records to the matches sheet of a new workbook.
func WriteWorkbook(path string, records []models.MatchRecord) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", MatchesSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(MatchesSheet, "A1", &matchColumns); err != nil {
		return err
	}
	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			r.VisitID, r.CareEpisodeID, r.CarStartTime, r.CarEndTime, r.DurationMinutes,
			r.DistanceMeters, r.DistanceBucket, r.StartTimeBucket, informationLabel(r.Classification),
		}
		if err := f.SetSheetRow(MatchesSheet, cell, &row); err != nil {
			return err
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

type sheetRow struct {
	row     int
	cells   map[string]string
	missing bool
}

func sheetRecords(f *excelize.File, sheet string, required []string) ([]sheetRow, error) {
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	header := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		header[strings.TrimSpace(h)] = i
	}
	for _, name := range required {
		if _, ok := header[name]; !ok {
			return nil, fmt.Errorf("sheet %s: missing column %s", sheet, name)
		}
	}

	out := make([]sheetRow, 0, len(rows)-1)
	for i, cols := range rows[1:] {
		r := sheetRow{row: i + 2, cells: make(map[string]string, len(header))}
		empty := true
		for name, idx := range header {
			if idx < len(cols) {
				r.cells[name] = strings.TrimSpace(cols[idx])
				if r.cells[name] != "" {
					empty = false
				}
			}
		}
		if empty {
			continue
		}
		for _, name := range required {
			if r.cells[name] == "" {
				r.missing = true
			}
		}
		out = append(out, r)
	}
	return out, nil
}

func (r sheetRow) str(name string) string { return r.cells[name] }

func (r sheetRow) float(name string) (float64, error) {
	v, err := strconv.ParseFloat(r.cells[name], 64)
	if err != nil {
		return 0, fmt.Errorf("column %s: %w", name, err)
	}
	return v, nil
}

// timestamp accepts text timestamps or Excel serial dates.
func (r sheetRow) timestamp(name string) (time.Time, error) {
	raw := r.cells[name]
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	serial, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("column %s: unrecognised time %q", name, raw)
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, fmt.Errorf("column %s: %w", name, err)
	}
	return t.Round(time.Second), nil
}

type fieldParser func(r sheetRow) error

func floatField(name string, dst *float64) fieldParser {
	return func(r sheetRow) (err error) {
		*dst, err = r.float(name)
		return err
	}
}

func timeField(name string, dst *time.Time) fieldParser {
	return func(r sheetRow) (err error) {
		*dst, err = r.timestamp(name)
		return err
	}
}

func (r sheetRow) parseInto(fields ...fieldParser) error {
	for _, p := range fields {
		if err := p(r); err != nil {
			return err
		}
	}
	return nil
}
