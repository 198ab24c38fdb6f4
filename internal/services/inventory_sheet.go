package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"merchant-panel-service/internal/mapping"
	"merchant-panel-service/internal/models"
)

const (
	inventorySheetName = "Inventory"
	maxImportBytes     = 5 << 20
)

// ErrInvalidSheet is returned when an uploaded sheet cannot be parsed
var ErrInvalidSheet = errors.New("invalid inventory sheet")

var inventorySheetColumns = []string{"locationId", "name", "address", "unavailable", "committed", "available", "onHand", "quantity"}

// SheetRowError reports a spreadsheet row that could not be applied
type SheetRowError struct {
	Row     int    `json:"row"`
	Column  string `json:"column,omitempty"`
	Message string `json:"message"`
}

// SheetImportResult summarizes a bulk quantity import
type SheetImportResult struct {
	TotalRows int                      `json:"totalRows"`
	Applied   int                      `json:"applied"`
	Errors    []SheetRowError          `json:"errors"`
	Session   *models.InventorySession `json:"session,omitempty"`
}

// ExportSession renders the session's locations and pending quantities as
// an XLSX workbook. The "quantity" column can be edited and imported back.
func (s *InventoryService) ExportSession(ctx context.Context, merchantID string, sessionID uuid.UUID) ([]byte, error) {
	session, err := s.getOwned(ctx, merchantID, sessionID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", inventorySheetName)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	changedStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"FFF2CC"}, Pattern: 1},
	})

	for i, name := range inventorySheetColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(inventorySheetName, cell, name)
		f.SetCellStyle(inventorySheetName, cell, cell, headerStyle)

		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(inventorySheetName, colName, colName, 18)
	}

	for rowIdx, loc := range session.Locations {
		quantity := session.Quantities[loc.LocationID]
		values := []interface{}{loc.LocationID, loc.Name, loc.Address, loc.Unavailable, loc.Committed, loc.Available, loc.OnHand, quantity}
		for colIdx, value := range values {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(inventorySheetName, cell, value)
		}

		if original, ok := session.OriginalQuantities[loc.LocationID]; !ok || original != quantity {
			first, _ := excelize.CoordinatesToCellName(1, rowIdx+2)
			last, _ := excelize.CoordinatesToCellName(len(inventorySheetColumns), rowIdx+2)
			f.SetCellStyle(inventorySheetName, first, last, changedStyle)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// ImportQuantities applies a CSV or XLSX sheet of locationId/quantity rows
// as edits. Rows naming unknown locations are reported and skipped; the
// rest are applied together.
func (s *InventoryService) ImportQuantities(ctx context.Context, merchantID string, sessionID uuid.UUID, filename string, file io.Reader) (*SheetImportResult, error) {
	data, err := readAllLimited(file, maxImportBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSheet, err)
	}

	var rows []map[string]string
	if strings.HasSuffix(strings.ToLower(filename), ".xlsx") {
		rows, err = parseXLSX(data)
	} else {
		rows, err = parseCSV(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSheet, err)
	}

	result := &SheetImportResult{TotalRows: len(rows), Errors: []SheetRowError{}}

	session, err := s.updateSession(ctx, merchantID, sessionID, func(session *models.InventorySession) error {
		if session.Loading {
			return ErrSessionLoading
		}

		result.Applied = 0
		result.Errors = result.Errors[:0]
		quantities := session.Quantities
		for _, row := range rows {
			rowNum, _ := strconv.Atoi(row["_row"])

			locationID, err := strconv.ParseInt(row["locationid"], 10, 64)
			if err != nil {
				result.Errors = append(result.Errors, SheetRowError{Row: rowNum, Column: "locationId", Message: "locationId must be a number"})
				continue
			}
			if !session.HasLocation(locationID) {
				result.Errors = append(result.Errors, SheetRowError{Row: rowNum, Column: "locationId", Message: ErrUnknownLocation.Error()})
				continue
			}

			quantities = mapping.ApplyQuantityEdit(quantities, locationID, row["quantity"])
			result.Applied++
		}
		session.Quantities = quantities
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"sessionId": sessionID,
		"rows":      result.TotalRows,
		"applied":   result.Applied,
	}).Info("Imported inventory quantities")

	result.Session = session
	return result, nil
}

func normalizeHeaders(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		out[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}
	return out
}

func parseCSV(file io.Reader) ([]map[string]string, error) {
	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	return sheetRows(records)
}

func parseXLSX(file io.Reader) ([]map[string]string, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets found in Excel file")
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}
	return sheetRows(records)
}

func sheetRows(records [][]string) ([]map[string]string, error) {
	if len(records) < 2 {
		return nil, fmt.Errorf("file must have a header row and at least one data row")
	}

	headers := normalizeHeaders(records[0])
	if !contains(headers, "locationid") || !contains(headers, "quantity") {
		return nil, fmt.Errorf("file must have locationId and quantity columns")
	}

	rows := make([]map[string]string, 0, len(records)-1)
	for idx, record := range records[1:] {
		row := make(map[string]string, len(headers)+1)
		for i, value := range record {
			if i < len(headers) {
				row[headers[i]] = strings.TrimSpace(value)
			}
		}
		row["_row"] = strconv.Itoa(idx + 2)
		rows = append(rows, row)
	}
	return rows, nil
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

// readAllLimited guards uploads against unbounded reads
func readAllLimited(r io.Reader, limit int64) (*bytes.Reader, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("file exceeds %d bytes", limit)
	}
	return bytes.NewReader(data), nil
}
