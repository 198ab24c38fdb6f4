package mapping

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"merchant-panel-service/internal/models"
)

// DecodeLocationRows unwraps a per-location inventory response. Both a bare
// JSON array and a {"data": [...]} envelope are accepted; any other shape
// yields an empty list. Rows are decoded one by one: numeric fields may be
// numbers or numeric strings, unreadable values default to zero, and rows
// that are not objects are skipped and counted.
func DecodeLocationRows(body []byte) ([]models.RawLocationInventory, int) {
	elements := locationElements(bytes.TrimSpace(body))

	rows := make([]models.RawLocationInventory, 0, len(elements))
	skipped := 0
	for _, element := range elements {
		row, ok := decodeLocationRow(element)
		if !ok {
			skipped++
			continue
		}
		rows = append(rows, row)
	}
	return rows, skipped
}

func locationElements(trimmed []byte) []json.RawMessage {
	if len(trimmed) == 0 {
		return nil
	}

	var elements []json.RawMessage
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &elements); err != nil {
			return nil
		}
	case '{':
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil
		}
		data := bytes.TrimSpace(envelope.Data)
		if len(data) == 0 || data[0] != '[' {
			return nil
		}
		if err := json.Unmarshal(data, &elements); err != nil {
			return nil
		}
	}
	return elements
}

type looseLocationRow struct {
	ID                  json.RawMessage `json:"id"`
	LocationID          json.RawMessage `json:"locationId"`
	Location            json.RawMessage `json:"location"`
	QuantityUnavailable json.RawMessage `json:"quantityUnavailable"`
	QuantityCommitted   json.RawMessage `json:"quantityCommitted"`
	QuantityAvailable   json.RawMessage `json:"quantityAvailable"`
	QuantityOnHand      json.RawMessage `json:"quantityOnHand"`
}

type looseLocationInfo struct {
	ID        json.RawMessage `json:"id"`
	Name      json.RawMessage `json:"name"`
	Address   json.RawMessage `json:"address"`
	Apartment json.RawMessage `json:"apartment"`
	City      json.RawMessage `json:"city"`
	State     json.RawMessage `json:"state"`
	Country   json.RawMessage `json:"country"`
}

func decodeLocationRow(element json.RawMessage) (models.RawLocationInventory, bool) {
	var loose looseLocationRow
	if isJSONNull(element) {
		return models.RawLocationInventory{}, false
	}
	if err := json.Unmarshal(element, &loose); err != nil {
		return models.RawLocationInventory{}, false
	}

	row := models.RawLocationInventory{
		ID:                  looseID(loose.ID),
		LocationID:          looseID(loose.LocationID),
		QuantityUnavailable: looseQuantity(loose.QuantityUnavailable),
		QuantityCommitted:   looseQuantity(loose.QuantityCommitted),
		QuantityAvailable:   looseQuantity(loose.QuantityAvailable),
		QuantityOnHand:      looseQuantity(loose.QuantityOnHand),
	}

	var info looseLocationInfo
	if len(loose.Location) > 0 && json.Unmarshal(loose.Location, &info) == nil && !isJSONNull(loose.Location) {
		row.Location = &models.LocationInfo{
			ID:        looseID(info.ID),
			Name:      looseString(info.Name),
			Address:   looseString(info.Address),
			Apartment: looseString(info.Apartment),
			City:      looseString(info.City),
			State:     looseString(info.State),
			Country:   looseString(info.Country),
		}
	}
	return row, true
}

func isJSONNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

// looseNumber reads a JSON number or a numeric string in plain decimal form.
func looseNumber(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || isJSONNull(raw) {
		return 0, false
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, false
		}
	}
	return parseDecimal(text)
}

func looseID(raw json.RawMessage) *int64 {
	f, ok := looseNumber(raw)
	if !ok || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return nil
	}
	id := int64(f)
	return &id
}

func looseQuantity(raw json.RawMessage) int {
	f, ok := looseNumber(raw)
	if !ok {
		return 0
	}
	return clampQuantity(f)
}

func looseString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// MapLocationsToViewModel maps raw rows to view models and seeds the
// quantities map with each location's available stock, keyed by location ID.
// The caller keeps a clone of the quantities as the original snapshot.
func MapLocationsToViewModel(rows []models.RawLocationInventory) ([]models.InventoryLocation, models.Quantities) {
	locations := make([]models.InventoryLocation, 0, len(rows))
	quantities := make(models.Quantities, len(rows))

	for _, row := range rows {
		loc := models.InventoryLocation{
			ID:          row.ID,
			LocationID:  rowLocationID(row),
			Unavailable: row.QuantityUnavailable,
			Committed:   row.QuantityCommitted,
			Available:   row.QuantityAvailable,
			OnHand:      row.QuantityOnHand,
		}
		if row.Location != nil {
			loc.Name = row.Location.Name
			loc.Address = formatAddress(row.Location)
		}

		locations = append(locations, loc)
		quantities[loc.LocationID] = loc.Available
	}

	return locations, quantities
}

func rowLocationID(row models.RawLocationInventory) int64 {
	if row.LocationID != nil {
		return *row.LocationID
	}
	if row.Location != nil && row.Location.ID != nil {
		return *row.Location.ID
	}
	return 0
}

func formatAddress(loc *models.LocationInfo) string {
	parts := make([]string, 0, 5)
	for _, p := range []string{loc.Address, loc.Apartment, loc.City, loc.State, loc.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// ParseQuantityInput clamps raw merchant input to a stock quantity.
// Only plain decimal input counts; anything else, including exponents and
// hex, becomes 0. Negative numbers become 0 and fractions are truncated.
// There is no upper bound beyond the int range.
func ParseQuantityInput(raw string) int {
	f, ok := parseDecimal(raw)
	if !ok {
		return 0
	}
	return clampQuantity(f)
}

var plainDecimal = regexp.MustCompile(`^[+-]?[0-9]+(\.[0-9]+)?$`)

// parseDecimal accepts an optionally signed integer or fixed-point number
// with surrounding whitespace. Exponents, hex and digit separators are rejected.
func parseDecimal(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if !plainDecimal.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func clampQuantity(f float64) int {
	if f <= 0 {
		return 0
	}
	if f >= math.MaxInt64 {
		return math.MaxInt
	}
	return int(f)
}

// ApplyQuantityEdit returns a new quantities map with locationID set to the
// clamped value of raw. q is not modified.
func ApplyQuantityEdit(q models.Quantities, locationID int64, raw string) models.Quantities {
	next := q.Clone()
	next[locationID] = ParseQuantityInput(raw)
	return next
}

// ComputeChangedLocations lists every location in current whose quantity
// differs from original, or that original never saw. The result is ordered
// by location ID.
func ComputeChangedLocations(current, original models.Quantities) []models.LocationQuantity {
	changes := make([]models.LocationQuantity, 0)
	for locationID, qty := range current {
		prev, ok := original[locationID]
		if ok && prev == qty {
			continue
		}
		changes = append(changes, models.LocationQuantity{LocationID: locationID, Quantity: qty})
	}
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].LocationID < changes[j].LocationID
	})
	return changes
}

// ResetQuantities discards pending edits by copying the snapshot
func ResetQuantities(original models.Quantities) models.Quantities {
	return original.Clone()
}

// AdvanceSnapshot returns the snapshot that should follow a save, and
// whether it moved at all. changed is the diff that was attempted and
// succeeded lists the location IDs the platform accepted.
func AdvanceSnapshot(original, current models.Quantities, changed []models.LocationQuantity, succeeded []int64, policy models.SavePolicy) (models.Quantities, bool) {
	if len(changed) == 0 || len(succeeded) == 0 {
		return original.Clone(), false
	}

	ok := make(map[int64]struct{}, len(succeeded))
	for _, id := range succeeded {
		ok[id] = struct{}{}
	}

	switch policy {
	case models.SavePolicyAdvanceSucceeded:
		next := original.Clone()
		for _, c := range changed {
			if _, done := ok[c.LocationID]; done {
				next[c.LocationID] = c.Quantity
			}
		}
		return next, true
	default:
		for _, c := range changed {
			if _, done := ok[c.LocationID]; !done {
				return original.Clone(), false
			}
		}
		return current.Clone(), true
	}
}
