package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dvillareal/automarket-backend/api/middleware"
	"github.com/dvillareal/automarket-backend/api/responses"
	"github.com/dvillareal/automarket-backend/api/validators"
	"github.com/dvillareal/automarket-backend/internal/ledger"
	internalorders "github.com/dvillareal/automarket-backend/internal/orders"
	"github.com/dvillareal/automarket-backend/pkg/db/models"
	"github.com/dvillareal/automarket-backend/pkg/enums"
	pkgerrors "github.com/dvillareal/automarket-backend/pkg/errors"
	"github.com/dvillareal/automarket-backend/pkg/logger"
)

// CreateOrder opens a new order in pending state.
func CreateOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		var input internalorders.CreateOrderInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// GetOrder returns a single order after an ownership check.
func GetOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := uuidParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := authorizeOrderRead(r, order); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// GetOrderByNumber resolves an order by its human-facing order number.
func GetOrderByNumber(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderNumber := strings.TrimSpace(chi.URLParam(r, "orderNumber"))
		if orderNumber == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order number is required"))
			return
		}

		order, err := svc.GetByNumber(r.Context(), orderNumber)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := authorizeOrderRead(r, order); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// ShipOrder moves a paid order to shipped.
func ShipOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderTransition(svc, logg, func(r *http.Request, orderID, actorID uuid.UUID) error {
		return svc.MarkShipped(r.Context(), orderID, actorID)
	})
}

// CompleteOrder moves a shipped order to its terminal completed state.
func CompleteOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderTransition(svc, logg, func(r *http.Request, orderID, actorID uuid.UUID) error {
		return svc.MarkCompleted(r.Context(), orderID, actorID)
	})
}

// PayOrder settles an order from the owning partner's wallet.
func PayOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := uuidParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actorID, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		partnerID, err := resolveOrderPartner(r, svc, orderID, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.PayWithWallet(r.Context(), orderID, partnerID, actorID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

type cancelOrderRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// CancelOrder cancels an order, refunding the partner wallet when the order
// was already paid.
func CancelOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := uuidParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actorID, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cancelOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		partnerID, err := resolveOrderPartner(r, svc, orderID, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reason := validators.SanitizeString(payload.Reason, 500)
		if err := svc.Cancel(r.Context(), orderID, partnerID, reason, actorID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

// PayoutOrder releases commission earnings for a completed order into the
// partner wallet.
func PayoutOrder(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		orderID, err := uuidParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actorID, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		earnings, err := svc.ProcessPayout(r.Context(), orderID, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"earnings": earnings.StringFixed(2)})
	}
}

func orderTransition(svc internalorders.Service, logg *logger.Logger, apply func(r *http.Request, orderID, actorID uuid.UUID) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := uuidParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actorID, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := apply(r, orderID, actorID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

// resolveOrderPartner picks the wallet affected by a payment or refund. The
// order's owning partner wins when set; admins may act on any order, partners
// only on their own.
func resolveOrderPartner(r *http.Request, svc internalorders.Service, orderID, actorID uuid.UUID) (uuid.UUID, error) {
	order, err := svc.Get(r.Context(), orderID)
	if err != nil {
		return uuid.Nil, err
	}

	partnerID := actorID
	if order.PartnerID != nil {
		partnerID = *order.PartnerID
	}

	role := middleware.RoleFromContext(r.Context())
	if role != string(enums.ActorRoleAdmin) && partnerID != actorID {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to caller")
	}
	return partnerID, nil
}

func authorizeOrderRead(r *http.Request, order *models.Order) error {
	actorID, err := actorFromContext(r)
	if err != nil {
		return err
	}

	switch middleware.RoleFromContext(r.Context()) {
	case string(enums.ActorRoleAdmin):
		return nil
	case string(enums.ActorRolePartner):
		if order.PartnerID != nil && *order.PartnerID == actorID {
			return nil
		}
	case string(enums.ActorRoleCustomer):
		if order.CustomerID == actorID {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to caller")
}
