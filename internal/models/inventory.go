package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// LocationInfo is the nested location object of a per-location inventory row
type LocationInfo struct {
	ID        *int64 `json:"id,omitempty"`
	Name      string `json:"name"`
	Address   string `json:"address,omitempty"`
	Apartment string `json:"apartment,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	Country   string `json:"country,omitempty"`
}

// RawLocationInventory is a per-location inventory row as returned by the
// platform API. ID is nil when stock was never recorded at the location.
type RawLocationInventory struct {
	ID                  *int64        `json:"id"`
	LocationID          *int64        `json:"locationId,omitempty"`
	Location            *LocationInfo `json:"location,omitempty"`
	QuantityUnavailable int           `json:"quantityUnavailable,omitempty"`
	QuantityCommitted   int           `json:"quantityCommitted,omitempty"`
	QuantityAvailable   int           `json:"quantityAvailable,omitempty"`
	QuantityOnHand      int           `json:"quantityOnHand,omitempty"`
}

// InventoryLocation is the view model of a location's stock for a product
// or variant. Only Available is editable by the merchant.
type InventoryLocation struct {
	ID          *int64 `json:"id"`
	LocationID  int64  `json:"locationId"`
	Name        string `json:"name"`
	Address     string `json:"address,omitempty"`
	Unavailable int    `json:"unavailable"`
	Committed   int    `json:"committed"`
	Available   int    `json:"available"`
	OnHand      int    `json:"onHand"`
}

// Quantities maps a location ID to its available quantity. Keys are always
// location IDs, never inventory record IDs, which may be nil.
type Quantities map[int64]int

// Clone returns an independent copy of q
func (q Quantities) Clone() Quantities {
	out := make(Quantities, len(q))
	for k, v := range q {
		out[k] = v
	}
	return out
}

// LocationQuantity is a single changed location to write back
type LocationQuantity struct {
	LocationID int64 `json:"locationId"`
	Quantity   int   `json:"quantity"`
}

// LocationInventoryUpdate is the body of the platform's
// update-location-inventory call
type LocationInventoryUpdate struct {
	ProductID         int64  `json:"productId"`
	LocationID        int64  `json:"locationId"`
	QuantityAvailable int    `json:"quantityAvailable"`
	VariantID         *int64 `json:"variantId,omitempty"`
}

// InventorySession is a merchant's in-progress edit of a product's stock
// across locations. Generation increases every time the selected product or
// variant changes; Version increases on every write of the session.
type InventorySession struct {
	ID                 uuid.UUID           `json:"id"`
	MerchantID         string              `json:"merchantId"`
	UserID             string              `json:"userId,omitempty"`
	ProductID          int64               `json:"productId"`
	VariantID          *int64              `json:"variantId,omitempty"`
	Generation         int64               `json:"generation"`
	Version            int64               `json:"version"`
	Loading            bool                `json:"loading"`
	Locations          []InventoryLocation `json:"locations"`
	Quantities         Quantities          `json:"quantities"`
	OriginalQuantities Quantities          `json:"originalQuantities"`
	CreatedAt          time.Time           `json:"createdAt"`
	UpdatedAt          time.Time           `json:"updatedAt"`
	ExpiresAt          time.Time           `json:"expiresAt"`
}

// HasLocation reports whether the session loaded a row for locationID
func (s *InventorySession) HasLocation(locationID int64) bool {
	for _, loc := range s.Locations {
		if loc.LocationID == locationID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of s
func (s *InventorySession) Clone() *InventorySession {
	if s == nil {
		return nil
	}
	out := *s
	if s.VariantID != nil {
		v := *s.VariantID
		out.VariantID = &v
	}
	out.Locations = make([]InventoryLocation, len(s.Locations))
	for i, loc := range s.Locations {
		if loc.ID != nil {
			id := *loc.ID
			loc.ID = &id
		}
		out.Locations[i] = loc
	}
	out.Quantities = s.Quantities.Clone()
	out.OriginalQuantities = s.OriginalQuantities.Clone()
	return &out
}

// SavePolicy decides how the original snapshot moves after a save
type SavePolicy string

const (
	// SavePolicyAllOrNothing advances the snapshot only when every changed
	// location was written.
	SavePolicyAllOrNothing SavePolicy = "all_or_nothing"
	// SavePolicyAdvanceSucceeded advances the snapshot for written locations
	// and leaves failed ones pending.
	SavePolicyAdvanceSucceeded SavePolicy = "advance_succeeded"
)

// IsValid reports whether p is a known policy
func (p SavePolicy) IsValid() bool {
	return p == SavePolicyAllOrNothing || p == SavePolicyAdvanceSucceeded
}

// LocationSaveOutcome is the result of writing a single location
type LocationSaveOutcome struct {
	LocationID       int64  `json:"locationId"`
	PreviousQuantity int    `json:"previousQuantity"`
	Quantity         int    `json:"quantity"`
	Succeeded        bool   `json:"succeeded"`
	Error            string `json:"error,omitempty"`
}

// SaveResult reports every attempted location so the caller can see
// partial successes
type SaveResult struct {
	SessionID        uuid.UUID             `json:"sessionId"`
	Policy           SavePolicy            `json:"policy"`
	Attempted        int                   `json:"attempted"`
	Succeeded        []LocationSaveOutcome `json:"succeeded"`
	Failed           []LocationSaveOutcome `json:"failed"`
	SnapshotAdvanced bool                  `json:"snapshotAdvanced"`
	Session          *InventorySession     `json:"session,omitempty"`
}

// SucceededLocationIDs returns the location IDs written successfully
func (r *SaveResult) SucceededLocationIDs() []int64 {
	ids := make([]int64, 0, len(r.Succeeded))
	for _, o := range r.Succeeded {
		ids = append(ids, o.LocationID)
	}
	return ids
}

// InventorySaveRecord is the audit row written for every attempted
// location update
type InventorySaveRecord struct {
	ID               uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	MerchantID       string         `json:"merchantId" gorm:"type:varchar(255);not null;index:idx_save_records_merchant_product"`
	UserID           string         `json:"userId,omitempty" gorm:"type:varchar(255)"`
	SessionID        uuid.UUID      `json:"sessionId" gorm:"type:uuid;not null;index"`
	ProductID        int64          `json:"productId" gorm:"not null;index:idx_save_records_merchant_product"`
	VariantID        *int64         `json:"variantId,omitempty"`
	LocationID       int64          `json:"locationId" gorm:"not null"`
	PreviousQuantity int            `json:"previousQuantity"`
	Quantity         int            `json:"quantity"`
	Succeeded        bool           `json:"succeeded" gorm:"not null"`
	Error            *string        `json:"error,omitempty" gorm:"type:text"`
	Metadata         datatypes.JSON `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt        time.Time      `json:"createdAt"`
}

func (InventorySaveRecord) TableName() string {
	return "inventory_save_records"
}

// OpenSessionRequest starts or reloads an inventory edit session
type OpenSessionRequest struct {
	ProductID int64  `json:"productId" binding:"required"`
	VariantID *int64 `json:"variantId,omitempty"`
}

// QuantityEditRequest carries the merchant's raw input, which is clamped
// server-side. Quantity may be a JSON string or number.
type QuantityEditRequest struct {
	Quantity json.RawMessage `json:"quantity"`
}

// RawInput returns the quantity as the text the merchant typed
func (r QuantityEditRequest) RawInput() string {
	var s string
	if err := json.Unmarshal(r.Quantity, &s); err == nil {
		return s
	}
	raw := strings.TrimSpace(string(r.Quantity))
	if raw == "null" {
		return ""
	}
	return raw
}

type InventorySessionResponse struct {
	Success bool              `json:"success"`
	Data    *InventorySession `json:"data,omitempty"`
	Message *string           `json:"message,omitempty"`
}

type SaveResultResponse struct {
	Success bool        `json:"success"`
	Data    *SaveResult `json:"data,omitempty"`
	Message *string     `json:"message,omitempty"`
}

type SaveRecordListResponse struct {
	Success    bool                  `json:"success"`
	Data       []InventorySaveRecord `json:"data"`
	Pagination *PaginationMeta       `json:"pagination,omitempty"`
}
