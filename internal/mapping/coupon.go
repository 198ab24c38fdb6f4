// Package mapping holds the pure data-shaping functions between the
// platform API wire formats and the merchant panel view models.
package mapping

import (
	"merchant-panel-service/internal/models"
)

// scopeSourceKind tells where a kind's include/exclude IDs come from
type scopeSourceKind int

const (
	// scopeFromRelations means the relation array was on the wire, even empty
	scopeFromRelations scopeSourceKind = iota
	// scopeFromStructured means the relation array was absent and the raw
	// targetScope is used instead
	scopeFromStructured
)

// scopeSource is the parsed source of one scoped entity kind
type scopeSource struct {
	kind     scopeSourceKind
	included []int64
	excluded []int64
}

func (s scopeSource) ids() (included, excluded []int64) {
	return dedupIDs(s.included), dedupIDs(s.excluded)
}

// bxgySourceKind tells where a BXGY coupon's config comes from
type bxgySourceKind int

const (
	bxgyNone bxgySourceKind = iota
	bxgyNested
	bxgyLegacyFlat
)

type bxgySource struct {
	kind   bxgySourceKind
	nested *models.BuyXGetYConfig
	flat   models.BuyXGetYConfig
}

// NormalizeCoupon converts a raw platform coupon into the canonical shape.
// It never fails: missing or malformed relation data degrades to "no
// targeting rules". Normalizing the AsRaw form of a result yields the same
// result again.
func NormalizeCoupon(raw *models.RawCoupon) *models.Coupon {
	if raw == nil {
		return nil
	}

	coupon := &models.Coupon{
		ID:              raw.ID,
		Code:            raw.Code,
		Name:            raw.Name,
		Description:     raw.Description,
		DiscountType:    raw.DiscountType,
		DiscountValue:   raw.DiscountValue,
		Status:          raw.Status,
		TotalUsageCount: raw.TotalUsageCount,
		MaxUsageTotal:   raw.MaxUsageTotal,
		StartDate:       raw.StartDate,
		EndDate:         raw.EndDate,
	}

	coupon.TargetScope = normalizeTargetScope(raw)
	coupon.BuyXGetYConfig = buildBuyXGetYConfig(parseBxgySource(raw))
	return coupon
}

// NormalizeCoupons normalizes a list, dropping nil entries
func NormalizeCoupons(raws []*models.RawCoupon) []*models.Coupon {
	out := make([]*models.Coupon, 0, len(raws))
	for _, raw := range raws {
		if c := NormalizeCoupon(raw); c != nil {
			out = append(out, c)
		}
	}
	return out
}

func normalizeTargetScope(raw *models.RawCoupon) *models.TargetScope {
	products, categories, brands := parseScopeSources(raw)

	productIDs, excludeProductIDs := products.ids()
	categoryIDs, excludeCategoryIDs := categories.ids()
	brandIDs, excludeBrandIDs := brands.ids()

	hasScopeData := len(productIDs) > 0 || len(excludeProductIDs) > 0 ||
		len(categoryIDs) > 0 || len(excludeCategoryIDs) > 0 ||
		len(brandIDs) > 0 || len(excludeBrandIDs) > 0
	if !hasScopeData {
		return canonicalScope(raw.TargetScope)
	}

	return &models.TargetScope{
		ProductIDs:         nilIfEmpty(productIDs),
		ExcludeProductIDs:  nilIfEmpty(excludeProductIDs),
		CategoryIDs:        nilIfEmpty(categoryIDs),
		ExcludeCategoryIDs: nilIfEmpty(excludeCategoryIDs),
		BrandIDs:           nilIfEmpty(brandIDs),
		ExcludeBrandIDs:    nilIfEmpty(excludeBrandIDs),
	}
}

// parseScopeSources decides, per entity kind, whether relation rows or the
// structured targetScope feed the scope.
func parseScopeSources(raw *models.RawCoupon) (products, categories, brands scopeSource) {
	var structured models.TargetScope
	if raw.TargetScope != nil {
		structured = *raw.TargetScope
	}

	if raw.TargetProducts != nil {
		products.kind = scopeFromRelations
		for _, rel := range raw.TargetProducts {
			if rel.IsExcluded {
				products.excluded = append(products.excluded, rel.ProductID)
			} else {
				products.included = append(products.included, rel.ProductID)
			}
		}
	} else {
		products = scopeSource{kind: scopeFromStructured, included: structured.ProductIDs, excluded: structured.ExcludeProductIDs}
	}

	if raw.TargetCategories != nil {
		categories.kind = scopeFromRelations
		for _, rel := range raw.TargetCategories {
			if rel.IsExcluded {
				categories.excluded = append(categories.excluded, rel.CategoryID)
			} else {
				categories.included = append(categories.included, rel.CategoryID)
			}
		}
	} else {
		categories = scopeSource{kind: scopeFromStructured, included: structured.CategoryIDs, excluded: structured.ExcludeCategoryIDs}
	}

	if raw.TargetBrands != nil {
		brands.kind = scopeFromRelations
		for _, rel := range raw.TargetBrands {
			if rel.IsExcluded {
				brands.excluded = append(brands.excluded, rel.BrandID)
			} else {
				brands.included = append(brands.included, rel.BrandID)
			}
		}
	} else {
		brands = scopeSource{kind: scopeFromStructured, included: structured.BrandIDs, excluded: structured.ExcludeBrandIDs}
	}

	return products, categories, brands
}

func parseBxgySource(raw *models.RawCoupon) bxgySource {
	if raw.DiscountType != models.DiscountBuyXGetY {
		return bxgySource{kind: bxgyNone}
	}
	if raw.BuyXGetYConfig != nil {
		return bxgySource{kind: bxgyNested, nested: raw.BuyXGetYConfig}
	}

	targets := make([]int64, 0, len(raw.BxgyProducts))
	for _, p := range raw.BxgyProducts {
		targets = append(targets, p.ProductID)
	}
	return bxgySource{
		kind: bxgyLegacyFlat,
		flat: models.BuyXGetYConfig{
			BuyQuantity:      raw.BuyQuantity,
			GetQuantity:      raw.GetQuantity,
			GetDiscountType:  raw.GetDiscountType,
			GetDiscountValue: raw.GetDiscountValue,
			TargetProductIDs: nilIfEmpty(dedupIDs(targets)),
		},
	}
}

func buildBuyXGetYConfig(src bxgySource) *models.BuyXGetYConfig {
	switch src.kind {
	case bxgyNested:
		cfg := *src.nested
		cfg.TargetProductIDs = nilIfEmpty(dedupIDs(cfg.TargetProductIDs))
		return &cfg
	case bxgyLegacyFlat:
		cfg := src.flat
		return &cfg
	default:
		return nil
	}
}

// canonicalScope returns scope itself unless one of its lists repeats an ID,
// in which case a deduplicated copy is returned with empty lists as nil.
func canonicalScope(scope *models.TargetScope) *models.TargetScope {
	if scope == nil {
		return nil
	}
	lists := []*[]int64{
		&scope.ProductIDs, &scope.ExcludeProductIDs,
		&scope.CategoryIDs, &scope.ExcludeCategoryIDs,
		&scope.BrandIDs, &scope.ExcludeBrandIDs,
	}
	repeated := false
	for _, ids := range lists {
		if len(dedupIDs(*ids)) != len(*ids) {
			repeated = true
			break
		}
	}
	if !repeated {
		return scope
	}

	out := *scope
	for _, ids := range []*[]int64{
		&out.ProductIDs, &out.ExcludeProductIDs,
		&out.CategoryIDs, &out.ExcludeCategoryIDs,
		&out.BrandIDs, &out.ExcludeBrandIDs,
	} {
		*ids = dedupIDs(*ids)
	}
	return &out
}

// dedupIDs removes duplicates keeping first-seen order
func dedupIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func nilIfEmpty(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	return ids
}
