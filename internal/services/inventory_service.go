package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"merchant-panel-service/internal/clients"
	"merchant-panel-service/internal/events"
	"merchant-panel-service/internal/mapping"
	"merchant-panel-service/internal/metrics"
	"merchant-panel-service/internal/models"
	"merchant-panel-service/internal/repository"
)

var (
	ErrSessionNotFound = errors.New("inventory session not found")
	ErrProductNotFound = errors.New("product not found")
	ErrStaleLoad       = errors.New("inventory load was superseded by a newer product or variant selection")
	ErrSessionLoading  = errors.New("inventory session is loading")
	ErrUnknownLocation = errors.New("location is not part of this inventory session")
	ErrInvalidPolicy   = errors.New("invalid save policy")
	ErrPartialSave     = errors.New("one or more location updates failed")
)

// maxUpdateAttempts bounds the read-modify-write retries on a session
// version conflict
const maxUpdateAttempts = 3

// loadSettleTimeout bounds the write that clears a session's loading flag
// once the request that started the load has gone away
const loadSettleTimeout = 5 * time.Second

// InventoryServiceConfig configures session lifetime and save fan-out
type InventoryServiceConfig struct {
	SessionTTL      time.Duration
	SaveConcurrency int
}

// InventoryService manages a merchant's multi-location stock edits. A
// session is loaded from the platform, edited in place and saved back one
// PATCH per changed location.
type InventoryService struct {
	client    clients.PlatformClient
	sessions  repository.SessionStore
	audit     repository.AuditRepositoryInterface
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *logrus.Entry

	sessionTTL      time.Duration
	saveConcurrency int
	now             func() time.Time
}

// NewInventoryService creates a new InventoryService
func NewInventoryService(
	client clients.PlatformClient,
	sessions repository.SessionStore,
	audit repository.AuditRepositoryInterface,
	publisher events.Publisher,
	m *metrics.Metrics,
	logger *logrus.Logger,
	cfg InventoryServiceConfig,
) *InventoryService {
	if audit == nil {
		audit = repository.NoopAuditRepository{}
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = time.Hour
	}
	if cfg.SaveConcurrency <= 0 {
		cfg.SaveConcurrency = 8
	}

	return &InventoryService{
		client:          client,
		sessions:        sessions,
		audit:           audit,
		publisher:       publisher,
		metrics:         m,
		logger:          logger.WithField("component", "inventory-service"),
		sessionTTL:      cfg.SessionTTL,
		saveConcurrency: cfg.SaveConcurrency,
		now:             time.Now,
	}
}

// OpenSession loads a product's (or variant's) per-location stock into a new
// edit session
func (s *InventoryService) OpenSession(ctx context.Context, creds clients.Credentials, userID string, productID int64, variantID *int64) (*models.InventorySession, error) {
	locations, quantities, err := s.fetchLocations(ctx, creds, productID, variantID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	session := &models.InventorySession{
		ID:                 uuid.New(),
		MerchantID:         creds.MerchantID,
		UserID:             userID,
		ProductID:          productID,
		VariantID:          variantID,
		Generation:         1,
		Locations:          locations,
		Quantities:         quantities,
		OriginalQuantities: quantities.Clone(),
		CreatedAt:          now,
		UpdatedAt:          now,
		ExpiresAt:          now.Add(s.sessionTTL),
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"sessionId":  session.ID,
		"merchantId": creds.MerchantID,
		"productId":  productID,
		"locations":  len(locations),
	}).Info("Inventory session opened")

	return session, nil
}

// GetSession returns a merchant's session
func (s *InventoryService) GetSession(ctx context.Context, merchantID string, sessionID uuid.UUID) (*models.InventorySession, error) {
	return s.getOwned(ctx, merchantID, sessionID)
}

// Reload switches the session to another product or variant. The
// generation is bumped before the fetch; if another Reload bumps it again
// before this fetch returns, this result is discarded with ErrStaleLoad.
// Pending edits are dropped.
func (s *InventoryService) Reload(ctx context.Context, creds clients.Credentials, sessionID uuid.UUID, productID int64, variantID *int64) (*models.InventorySession, error) {
	started, err := s.updateSession(ctx, creds.MerchantID, sessionID, func(session *models.InventorySession) error {
		session.Generation++
		session.ProductID = productID
		session.VariantID = variantID
		session.Loading = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	generation := started.Generation

	locations, quantities, fetchErr := s.fetchLocations(ctx, creds, productID, variantID)

	// The loading flag must be cleared even if the caller disconnected mid-fetch.
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadSettleTimeout)
	defer cancel()

	session, err := s.updateSession(settleCtx, creds.MerchantID, sessionID, func(session *models.InventorySession) error {
		if session.Generation != generation {
			return ErrStaleLoad
		}
		session.Loading = false
		if fetchErr != nil {
			session.Locations = []models.InventoryLocation{}
			session.Quantities = models.Quantities{}
			session.OriginalQuantities = models.Quantities{}
			return nil
		}
		session.Locations = locations
		session.Quantities = quantities
		session.OriginalQuantities = quantities.Clone()
		return nil
	})
	if errors.Is(err, ErrStaleLoad) {
		s.metrics.StaleLoadsDiscarded.Inc()
		s.logger.WithFields(logrus.Fields{
			"sessionId":  sessionID,
			"generation": generation,
		}).Debug("Discarded stale inventory load")
		return nil, ErrStaleLoad
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// ApplyEdit records the merchant's raw input for a location. The input is
// clamped to a non-negative whole number.
func (s *InventoryService) ApplyEdit(ctx context.Context, merchantID string, sessionID uuid.UUID, locationID int64, rawInput string) (*models.InventorySession, error) {
	var generation int64
	return s.updateSession(ctx, merchantID, sessionID, func(session *models.InventorySession) error {
		if generation == 0 {
			generation = session.Generation
		} else if session.Generation != generation {
			return ErrStaleLoad
		}
		if session.Loading {
			return ErrSessionLoading
		}
		if !session.HasLocation(locationID) {
			return ErrUnknownLocation
		}
		session.Quantities = mapping.ApplyQuantityEdit(session.Quantities, locationID, rawInput)
		return nil
	})
}

// Changes previews the locations a save would write
func (s *InventoryService) Changes(ctx context.Context, merchantID string, sessionID uuid.UUID) ([]models.LocationQuantity, error) {
	session, err := s.getOwned(ctx, merchantID, sessionID)
	if err != nil {
		return nil, err
	}
	return mapping.ComputeChangedLocations(session.Quantities, session.OriginalQuantities), nil
}

// Cancel discards pending edits
func (s *InventoryService) Cancel(ctx context.Context, merchantID string, sessionID uuid.UUID) (*models.InventorySession, error) {
	return s.updateSession(ctx, merchantID, sessionID, func(session *models.InventorySession) error {
		session.Quantities = mapping.ResetQuantities(session.OriginalQuantities)
		return nil
	})
}

// Close deletes the session
func (s *InventoryService) Close(ctx context.Context, merchantID string, sessionID uuid.UUID) error {
	if _, err := s.getOwned(ctx, merchantID, sessionID); err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		return err
	}
	return nil
}

// Save writes every changed location concurrently and waits for all of them
// to settle. Every outcome is reported; the snapshot moves according to
// policy. ErrPartialSave is returned alongside the result when any location
// failed.
func (s *InventoryService) Save(ctx context.Context, creds clients.Credentials, userID string, sessionID uuid.UUID, policy models.SavePolicy) (*models.SaveResult, error) {
	if policy == "" {
		policy = models.SavePolicyAllOrNothing
	}
	if !policy.IsValid() {
		return nil, ErrInvalidPolicy
	}

	session, err := s.getOwned(ctx, creds.MerchantID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Loading {
		return nil, ErrSessionLoading
	}

	result := &models.SaveResult{
		SessionID: sessionID,
		Policy:    policy,
		Succeeded: []models.LocationSaveOutcome{},
		Failed:    []models.LocationSaveOutcome{},
	}

	changed := mapping.ComputeChangedLocations(session.Quantities, session.OriginalQuantities)
	result.Attempted = len(changed)
	if len(changed) == 0 {
		result.Session = session
		return result, nil
	}

	start := s.now()
	outcomes := s.writeLocations(ctx, creds, session, changed)
	s.metrics.SaveDuration.Observe(time.Since(start).Seconds())

	for _, o := range outcomes {
		if o.Succeeded {
			result.Succeeded = append(result.Succeeded, o)
		} else {
			result.Failed = append(result.Failed, o)
		}
	}
	s.metrics.LocationUpdatesTotal.WithLabelValues("success").Add(float64(len(result.Succeeded)))
	s.metrics.LocationUpdatesTotal.WithLabelValues("failure").Add(float64(len(result.Failed)))

	succeeded := result.SucceededLocationIDs()
	updated, err := s.updateSession(ctx, creds.MerchantID, sessionID, func(current *models.InventorySession) error {
		if current.Generation != session.Generation {
			return ErrStaleLoad
		}
		next, advanced := mapping.AdvanceSnapshot(current.OriginalQuantities, session.Quantities, changed, succeeded, policy)
		current.OriginalQuantities = next
		result.SnapshotAdvanced = advanced
		return nil
	})
	switch {
	case err == nil:
		result.Session = updated
	case errors.Is(err, ErrStaleLoad):
		// The merchant switched product while the save was in flight; the
		// writes happened but there is no snapshot left to advance.
		result.SnapshotAdvanced = false
	default:
		s.logger.WithField("sessionId", sessionID).WithError(err).Error("Failed to advance inventory snapshot")
		return result, err
	}

	s.recordSave(ctx, creds.MerchantID, userID, session, outcomes, policy)
	s.announce(ctx, creds.MerchantID, userID, session, result.Succeeded)

	s.logger.WithFields(logrus.Fields{
		"sessionId": sessionID,
		"productId": session.ProductID,
		"attempted": result.Attempted,
		"succeeded": len(result.Succeeded),
		"failed":    len(result.Failed),
		"policy":    policy,
	}).Info("Inventory save finished")

	if len(result.Failed) > 0 {
		return result, ErrPartialSave
	}
	return result, nil
}

// History lists the save audit trail of a product
func (s *InventoryService) History(ctx context.Context, merchantID string, productID int64, page, limit int) ([]models.InventorySaveRecord, *models.PaginationMeta, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	records, total, err := s.audit.ListByProduct(ctx, merchantID, productID, limit, offset)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list inventory history: %w", err)
	}
	return records, models.NewPaginationMeta(page, limit, total), nil
}

// writeLocations issues one update per changed location, at most
// saveConcurrency at a time. Outcomes keep the order of changed.
func (s *InventoryService) writeLocations(ctx context.Context, creds clients.Credentials, session *models.InventorySession, changed []models.LocationQuantity) []models.LocationSaveOutcome {
	outcomes := make([]models.LocationSaveOutcome, len(changed))

	var g errgroup.Group
	g.SetLimit(s.saveConcurrency)

	for i, change := range changed {
		i, change := i, change
		g.Go(func() error {
			outcome := models.LocationSaveOutcome{
				LocationID:       change.LocationID,
				PreviousQuantity: session.OriginalQuantities[change.LocationID],
				Quantity:         change.Quantity,
			}

			err := s.client.UpdateLocationInventory(ctx, creds, models.LocationInventoryUpdate{
				ProductID:         session.ProductID,
				LocationID:        change.LocationID,
				QuantityAvailable: change.Quantity,
				VariantID:         session.VariantID,
			})
			if err != nil {
				outcome.Error = err.Error()
				s.logger.WithFields(logrus.Fields{
					"productId":  session.ProductID,
					"locationId": change.LocationID,
				}).WithError(err).Warn("Location inventory update failed")
			} else {
				outcome.Succeeded = true
			}

			outcomes[i] = outcome
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (s *InventoryService) recordSave(ctx context.Context, merchantID, userID string, session *models.InventorySession, outcomes []models.LocationSaveOutcome, policy models.SavePolicy) {
	metadata, _ := json.Marshal(map[string]interface{}{
		"policy":     policy,
		"generation": session.Generation,
	})

	records := make([]models.InventorySaveRecord, 0, len(outcomes))
	for _, o := range outcomes {
		record := models.InventorySaveRecord{
			MerchantID:       merchantID,
			UserID:           userID,
			SessionID:        session.ID,
			ProductID:        session.ProductID,
			VariantID:        session.VariantID,
			LocationID:       o.LocationID,
			PreviousQuantity: o.PreviousQuantity,
			Quantity:         o.Quantity,
			Succeeded:        o.Succeeded,
			Metadata:         datatypes.JSON(metadata),
		}
		if o.Error != "" {
			msg := o.Error
			record.Error = &msg
		}
		records = append(records, record)
	}

	if err := s.audit.RecordSave(ctx, records); err != nil {
		s.logger.WithField("sessionId", session.ID).WithError(err).Warn("Failed to record inventory save audit")
	}
}

func (s *InventoryService) announce(ctx context.Context, merchantID, userID string, session *models.InventorySession, succeeded []models.LocationSaveOutcome) {
	for _, o := range succeeded {
		event := &events.InventoryAdjustedEvent{
			MerchantID:       merchantID,
			UserID:           userID,
			SessionID:        session.ID.String(),
			ProductID:        session.ProductID,
			VariantID:        session.VariantID,
			LocationID:       o.LocationID,
			PreviousQuantity: o.PreviousQuantity,
			Quantity:         o.Quantity,
		}
		if err := s.publisher.PublishInventoryAdjusted(ctx, event); err != nil {
			s.logger.WithField("locationId", o.LocationID).WithError(err).Warn("Inventory adjusted but event was not published")
		}
	}
}

func (s *InventoryService) fetchLocations(ctx context.Context, creds clients.Credentials, productID int64, variantID *int64) ([]models.InventoryLocation, models.Quantities, error) {
	body, err := s.client.GetProductInventoryByLocation(ctx, creds, productID, variantID)
	if err != nil {
		s.logger.WithField("productId", productID).WithError(err).Error("Failed to fetch location inventory")
		return nil, nil, wrapUpstream(err, ErrProductNotFound)
	}

	rows, skipped := mapping.DecodeLocationRows(body)
	if skipped > 0 {
		s.logger.WithFields(logrus.Fields{
			"productId": productID,
			"skipped":   skipped,
		}).Warn("Skipped unreadable location inventory rows")
	}
	locations, quantities := mapping.MapLocationsToViewModel(rows)
	return locations, quantities, nil
}

func (s *InventoryService) getOwned(ctx context.Context, merchantID string, sessionID uuid.UUID) (*models.InventorySession, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if session.MerchantID != merchantID {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// updateSession applies mutate to the latest stored session and writes it
// back, re-reading and re-applying on a version conflict. An error from
// mutate aborts without writing.
func (s *InventoryService) updateSession(ctx context.Context, merchantID string, sessionID uuid.UUID, mutate func(*models.InventorySession) error) (*models.InventorySession, error) {
	var lastErr error
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		session, err := s.getOwned(ctx, merchantID, sessionID)
		if err != nil {
			return nil, err
		}
		if err := mutate(session); err != nil {
			return nil, err
		}
		session.ExpiresAt = s.now().Add(s.sessionTTL)

		err = s.sessions.Update(ctx, session)
		if err == nil {
			return session, nil
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}
