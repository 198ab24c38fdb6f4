package models

// DiscountType represents the type of discount
type DiscountType string

const (
	DiscountPercentage   DiscountType = "percentage"
	DiscountFixedAmount  DiscountType = "fixed_amount"
	DiscountFreeShipping DiscountType = "free_shipping"
	DiscountBuyXGetY     DiscountType = "buy_x_get_y"
)

// CouponStatus represents the status of a coupon
type CouponStatus string

const (
	CouponStatusActive    CouponStatus = "active"
	CouponStatusScheduled CouponStatus = "scheduled"
	CouponStatusPaused    CouponStatus = "paused"
	CouponStatusExpired   CouponStatus = "expired"
	CouponStatusArchived  CouponStatus = "archived"
)

// IsValid reports whether s is one of the known coupon statuses.
func (s CouponStatus) IsValid() bool {
	switch s {
	case CouponStatusActive, CouponStatusScheduled, CouponStatusPaused, CouponStatusExpired, CouponStatusArchived:
		return true
	}
	return false
}

// TargetScope holds the include/exclude ID sets a coupon is restricted to.
// Empty lists are omitted.
type TargetScope struct {
	ProductIDs         []int64 `json:"productIds,omitempty"`
	ExcludeProductIDs  []int64 `json:"excludeProductIds,omitempty"`
	CategoryIDs        []int64 `json:"categoryIds,omitempty"`
	ExcludeCategoryIDs []int64 `json:"excludeCategoryIds,omitempty"`
	BrandIDs           []int64 `json:"brandIds,omitempty"`
	ExcludeBrandIDs    []int64 `json:"excludeBrandIds,omitempty"`
}

// BuyXGetYConfig describes a buy-X-get-Y promotion
type BuyXGetYConfig struct {
	BuyQuantity      int     `json:"buyQuantity"`
	GetQuantity      int     `json:"getQuantity"`
	GetDiscountType  string  `json:"getDiscountType"`
	GetDiscountValue float64 `json:"getDiscountValue"`
	TargetProductIDs []int64 `json:"targetProductIds,omitempty"`
}

// Coupon is the canonical coupon shape served to the merchant panel.
// TargetScope is nil when the coupon has no targeting rules and
// BuyXGetYConfig is set only for buy_x_get_y coupons.
type Coupon struct {
	ID              int64           `json:"id"`
	Code            string          `json:"code"`
	Name            string          `json:"name"`
	Description     *string         `json:"description,omitempty"`
	DiscountType    DiscountType    `json:"discountType"`
	DiscountValue   float64         `json:"discountValue"`
	TargetScope     *TargetScope    `json:"targetScope,omitempty"`
	BuyXGetYConfig  *BuyXGetYConfig `json:"buyXGetYConfig,omitempty"`
	Status          CouponStatus    `json:"status"`
	TotalUsageCount int             `json:"totalUsageCount"`
	MaxUsageTotal   *int            `json:"maxUsageTotal,omitempty"`
	StartDate       string          `json:"startDate,omitempty"`
	EndDate         string          `json:"endDate,omitempty"`
}

// AsRaw converts a canonical coupon back into the wire shape, with no
// relation arrays, so it can be fed through normalization again.
func (c *Coupon) AsRaw() *RawCoupon {
	if c == nil {
		return nil
	}
	raw := &RawCoupon{
		ID:              c.ID,
		Code:            c.Code,
		Name:            c.Name,
		Description:     c.Description,
		DiscountType:    c.DiscountType,
		DiscountValue:   c.DiscountValue,
		Status:          c.Status,
		TotalUsageCount: c.TotalUsageCount,
		MaxUsageTotal:   c.MaxUsageTotal,
		StartDate:       c.StartDate,
		EndDate:         c.EndDate,
	}
	if c.TargetScope != nil {
		scope := *c.TargetScope
		raw.TargetScope = &scope
	}
	if c.BuyXGetYConfig != nil {
		cfg := *c.BuyXGetYConfig
		raw.BuyXGetYConfig = &cfg
	}
	return raw
}

// TargetProductRelation is a coupon to product relation row
type TargetProductRelation struct {
	ProductID  int64 `json:"productId"`
	IsExcluded bool  `json:"isExcluded"`
}

// TargetCategoryRelation is a coupon to category relation row
type TargetCategoryRelation struct {
	CategoryID int64 `json:"categoryId"`
	IsExcluded bool  `json:"isExcluded"`
}

// TargetBrandRelation is a coupon to brand relation row
type TargetBrandRelation struct {
	BrandID    int64 `json:"brandId"`
	IsExcluded bool  `json:"isExcluded"`
}

// BxgyProduct is a product eligible for the "get" side of a BXGY coupon
type BxgyProduct struct {
	ProductID int64 `json:"productId"`
}

// RawCoupon is a coupon as returned by the platform API. The list and
// detail endpoints do not agree on a shape: a relation array may be present,
// or the already structured TargetScope / BuyXGetYConfig may be sent instead.
// A relation slice that is nil was absent on the wire; a non-nil empty slice
// was sent as [].
type RawCoupon struct {
	ID              int64        `json:"id"`
	Code            string       `json:"code"`
	Name            string       `json:"name"`
	Description     *string      `json:"description,omitempty"`
	DiscountType    DiscountType `json:"discountType"`
	DiscountValue   float64      `json:"discountValue"`
	Status          CouponStatus `json:"status"`
	TotalUsageCount int          `json:"totalUsageCount"`
	MaxUsageTotal   *int         `json:"maxUsageTotal,omitempty"`
	StartDate       string       `json:"startDate,omitempty"`
	EndDate         string       `json:"endDate,omitempty"`

	TargetProducts   []TargetProductRelation  `json:"targetProducts,omitempty"`
	TargetCategories []TargetCategoryRelation `json:"targetCategories,omitempty"`
	TargetBrands     []TargetBrandRelation    `json:"targetBrands,omitempty"`
	BxgyProducts     []BxgyProduct            `json:"bxgyProducts,omitempty"`

	// Legacy flat BXGY fields
	BuyQuantity      int     `json:"buyQuantity,omitempty"`
	GetQuantity      int     `json:"getQuantity,omitempty"`
	GetDiscountType  string  `json:"getDiscountType,omitempty"`
	GetDiscountValue float64 `json:"getDiscountValue,omitempty"`

	TargetScope    *TargetScope    `json:"targetScope,omitempty"`
	BuyXGetYConfig *BuyXGetYConfig `json:"buyXGetYConfig,omitempty"`
}

// CouponListQuery carries list filters forwarded to the platform API
type CouponListQuery struct {
	Page   int    `form:"page"`
	Limit  int    `form:"limit"`
	Status string `form:"status"`
	Search string `form:"search"`
}

// UpdateCouponStatusRequest is the body of a status change
type UpdateCouponStatusRequest struct {
	Status CouponStatus `json:"status" binding:"required"`
}

type CouponResponse struct {
	Success bool    `json:"success"`
	Data    *Coupon `json:"data,omitempty"`
	Message *string `json:"message,omitempty"`
}

type CouponListResponse struct {
	Success    bool            `json:"success"`
	Data       []*Coupon       `json:"data"`
	Pagination *PaginationMeta `json:"pagination,omitempty"`
}
