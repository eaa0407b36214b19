package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/dvillareal/automarket-backend/pkg/db"
	"github.com/dvillareal/automarket-backend/pkg/db/models"
	"github.com/dvillareal/automarket-backend/pkg/enums"
	pkgerrors "github.com/dvillareal/automarket-backend/pkg/errors"
	"github.com/dvillareal/automarket-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service manages shipment tracking. Each order has at most one tracking
// record; its status only ever moves forward, and every move appends an
// immutable history entry.
type Service interface {
	Create(ctx context.Context, input CreateTrackingInput) (*models.OrderTracking, error)
	UpdateStatus(ctx context.Context, trackingID uuid.UUID, input UpdateStatusInput) (*models.OrderTracking, error)

	GetByTrackingNumber(ctx context.Context, trackingNumber string) (*models.OrderTracking, error)
	GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.OrderTracking, error)

	Delete(ctx context.Context, trackingID, adminID uuid.UUID) error
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
}

// NewService wires the tracking service.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("tracking repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: outboxSvc}, nil
}

func (s *service) Create(ctx context.Context, input CreateTrackingInput) (*models.OrderTracking, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.TrackingNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tracking number required")
	}
	if input.Carrier == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "carrier required")
	}
	if input.ShippingMethod == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping method required")
	}
	if input.PartnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "partner id required")
	}
	if input.AdminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}

	tracking := &models.OrderTracking{
		ID:                uuid.New(),
		OrderID:           input.OrderID,
		TrackingNumber:    input.TrackingNumber,
		Carrier:           input.Carrier,
		ShippingMethod:    input.ShippingMethod,
		Status:            enums.TrackingStatusShipped,
		AdminID:           input.AdminID,
		PartnerID:         input.PartnerID,
		EstimatedDelivery: input.EstimatedDelivery,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := repo.FindOrder(ctx, input.OrderID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if err := repo.Create(ctx, tracking); err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "order already has a tracking record")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create tracking record")
		}

		// Shipment history begins at shipped; processing is the implicit
		// prior state and gets no backdated row.
		update := &models.TrackingUpdate{
			ID:         uuid.New(),
			TrackingID: tracking.ID,
			Status:     enums.TrackingStatusShipped,
			UpdatedBy:  input.AdminID,
		}
		if err := repo.AppendUpdate(ctx, update); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append tracking update")
		}
		tracking.Updates = []models.TrackingUpdate{*update}

		return s.emitStatusChanged(ctx, tx, tracking, input.AdminID)
	})
	if err != nil {
		return nil, err
	}
	return tracking, nil
}

func (s *service) UpdateStatus(ctx context.Context, trackingID uuid.UUID, input UpdateStatusInput) (*models.OrderTracking, error) {
	if trackingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tracking id required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown tracking status").
			WithDetails(map[string]any{"status": input.Status})
	}
	if input.AdminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}

	var tracking *models.OrderTracking
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		current, err := repo.FindByID(ctx, trackingID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "tracking record not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tracking record")
		}
		if !current.Status.CanTransitionTo(input.Status) {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "tracking status cannot move backwards").
				WithDetails(map[string]any{"from": current.Status, "to": input.Status})
		}

		var deliveredAt *time.Time
		if input.Status == enums.TrackingStatusDelivered {
			now := time.Now().UTC()
			deliveredAt = &now
		}

		advanced, err := repo.AdvanceStatus(ctx, current.ID, current.Status, input.Status, deliveredAt)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance tracking status")
		}
		if !advanced {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "tracking record changed concurrently")
		}

		update := &models.TrackingUpdate{
			ID:          uuid.New(),
			TrackingID:  current.ID,
			Status:      input.Status,
			Location:    input.Location,
			Description: input.Description,
			UpdatedBy:   input.AdminID,
		}
		if err := repo.AppendUpdate(ctx, update); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append tracking update")
		}

		current.Status = input.Status
		current.ActualDelivery = deliveredAt
		current.Updates = append(current.Updates, *update)
		tracking = current

		return s.emitStatusChanged(ctx, tx, current, input.AdminID)
	})
	if err != nil {
		return nil, err
	}
	return tracking, nil
}

func (s *service) GetByTrackingNumber(ctx context.Context, trackingNumber string) (*models.OrderTracking, error) {
	if trackingNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tracking number required")
	}
	tracking, err := s.repo.FindByTrackingNumber(ctx, trackingNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tracking record not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tracking record")
	}
	return tracking, nil
}

func (s *service) GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.OrderTracking, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	tracking, err := s.repo.FindByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tracking record not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tracking record")
	}
	return tracking, nil
}

func (s *service) Delete(ctx context.Context, trackingID, adminID uuid.UUID) error {
	if trackingID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "tracking id required")
	}
	if adminID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		// History rows go first so a failed delete leaves no orphans.
		if err := repo.DeleteUpdates(ctx, trackingID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete tracking history")
		}
		deleted, err := repo.Delete(ctx, trackingID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete tracking record")
		}
		if !deleted {
			return pkgerrors.New(pkgerrors.CodeNotFound, "tracking record not found")
		}
		return nil
	})
}

func (s *service) emitStatusChanged(ctx context.Context, tx *gorm.DB, tracking *models.OrderTracking, actorID uuid.UUID) error {
	event := outbox.DomainEvent{
		EventType:     enums.EventTrackingStatusChanged,
		AggregateType: enums.AggregateTracking,
		AggregateID:   tracking.ID,
		Version:       1,
		Actor:         &outbox.ActorRef{UserID: actorID},
		Data: StatusChangedEvent{
			TrackingID:     tracking.ID,
			OrderID:        tracking.OrderID,
			PartnerID:      tracking.PartnerID,
			TrackingNumber: tracking.TrackingNumber,
			Status:         tracking.Status,
			Delivered:      tracking.Status == enums.TrackingStatusDelivered,
		},
	}
	return s.outbox.Emit(ctx, tx, event)
}
