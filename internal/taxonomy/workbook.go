package taxonomy

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Header columns recognized in each sheet. ID and VALUE are required; SLUG
// and the parent-id columns are optional and dimension specific.
const (
	colID         = "ID"
	colValue      = "VALUE"
	colSlug       = "SLUG"
	colProvinceID = "PROVINCE_ID"
	colDistrictID = "DISTRICT_ID"
)

// Load reads the reference workbook once and builds a Resolver. Each sheet
// is one dimension; its first row containing both ID and VALUE headers
// (case-insensitive) declares the column layout. Headerless or otherwise
// malformed sheets are skipped with a diagnostic, never a failure.
func Load(path string, logger *zap.Logger) (*Resolver, error) {
	book, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open taxonomy workbook: %w", err)
	}
	defer book.Close()

	dims := make(map[string][]Entry)
	for _, sheet := range book.GetSheetList() {
		rows, err := book.GetRows(sheet)
		if err != nil {
			logger.Warn("skipping unreadable sheet", zap.String("sheet", sheet), zap.Error(err))
			continue
		}
		entries, err := parseSheet(rows)
		if err != nil {
			logger.Warn("skipping malformed sheet", zap.String("sheet", sheet), zap.Error(err))
			continue
		}
		if len(entries) == 0 {
			logger.Warn("sheet has no usable rows", zap.String("sheet", sheet))
			continue
		}
		dims[strings.TrimSpace(sheet)] = entries
		logger.Info("loaded taxonomy dimension",
			zap.String("dimension", strings.TrimSpace(sheet)),
			zap.Int("entries", len(entries)))
	}

	if len(dims) == 0 {
		return nil, fmt.Errorf("taxonomy workbook %s contains no usable sheets", path)
	}
	return New(dims), nil
}

type columnLayout struct {
	id, value, slug, provinceID, districtID int
}

func parseSheet(rows [][]string) ([]Entry, error) {
	layout, start, ok := findHeader(rows)
	if !ok {
		return nil, fmt.Errorf("no header row declaring ID and VALUE columns")
	}

	var entries []Entry
	for _, row := range rows[start:] {
		id, ok := cellID(cell(row, layout.id))
		if !ok {
			continue
		}
		value := strings.TrimSpace(cell(row, layout.value))
		if value == "" {
			continue
		}
		entry := Entry{ID: id, Value: value}
		if layout.slug >= 0 {
			entry.Slug = strings.TrimSpace(cell(row, layout.slug))
		}
		if layout.provinceID >= 0 {
			if pid, ok := cellID(cell(row, layout.provinceID)); ok {
				entry.ProvinceID = &pid
			}
		}
		if layout.districtID >= 0 {
			if did, ok := cellID(cell(row, layout.districtID)); ok {
				entry.DistrictID = &did
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// findHeader scans for the first row naming both ID and VALUE and returns
// the column layout plus the index of the first data row.
func findHeader(rows [][]string) (columnLayout, int, bool) {
	for i, row := range rows {
		layout := columnLayout{id: -1, value: -1, slug: -1, provinceID: -1, districtID: -1}
		for col, raw := range row {
			switch strings.ToUpper(strings.TrimSpace(raw)) {
			case colID:
				if layout.id < 0 {
					layout.id = col
				}
			case colValue:
				layout.value = col
			case colSlug:
				layout.slug = col
			case colProvinceID:
				layout.provinceID = col
			case colDistrictID:
				layout.districtID = col
			}
		}
		if layout.id >= 0 && layout.value >= 0 {
			return layout, i + 1, true
		}
	}
	return columnLayout{}, 0, false
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// cellID parses an id cell, tolerating the float rendering spreadsheets
// apply to numeric columns ("79.0").
func cellID(raw string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return id, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != float64(int64(f)) {
		return 0, false
	}
	return int64(f), true
}
