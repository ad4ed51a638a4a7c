package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"backend/internal/model"
	"backend/internal/policy"
	"backend/internal/repository"
	"backend/pkg/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Actor is the authenticated identity performing an operation.
type Actor struct {
	ID   uuid.UUID
	Name string
	Role string
}

// --- DTOs ---

type OrderItemInput struct {
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type OrderRequest struct {
	CustomerName string           `json:"customer_name"`
	Items        []OrderItemInput `json:"items"`
}

type OrderItemResponse struct {
	ID          string `json:"id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	LineTotal   string `json:"line_total"`
}

type OrderResponse struct {
	ID            string              `json:"id"`
	CustomerName  string              `json:"customer_name"`
	Amount        string              `json:"amount"`
	Status        string              `json:"status"`
	PaymentStatus string              `json:"payment_status"`
	CreatedBy     string              `json:"created_by"`
	CreatedByName string              `json:"created_by_name"`
	ApprovedBy    *string             `json:"approved_by"`
	ApproverName  string              `json:"approver_name,omitempty"`
	Items         []OrderItemResponse `json:"items"`
	CreatedAt     string              `json:"created_at"`
	UpdatedAt     string              `json:"updated_at"`
}

// --- Interface ---

type OrderService interface {
	List(ctx context.Context) ([]OrderResponse, error)
	Create(ctx context.Context, actor Actor, req OrderRequest) (*OrderResponse, error)
	Replace(ctx context.Context, actor Actor, id string, req OrderRequest) (*OrderResponse, error)
	Remove(ctx context.Context, actor Actor, id string) error
	Approve(ctx context.Context, actor Actor, id string) (*OrderResponse, error)
	Reject(ctx context.Context, actor Actor, id string) (*OrderResponse, error)
	MarkPaid(ctx context.Context, actor Actor, id string) (*OrderResponse, error)
}

type orderService struct {
	orders   repository.OrderRepository
	activity repository.ActivityRepository
	txm      repository.TransactionManager
	hub      interface{ GetBroadcast() chan []byte } // optional websocket hub
}

func NewOrderService(
	orders repository.OrderRepository,
	activity repository.ActivityRepository,
	txm repository.TransactionManager,
	hub interface{ GetBroadcast() chan []byte },
) OrderService {
	return &orderService{orders: orders, activity: activity, txm: txm, hub: hub}
}

// --- Validation & totals ---

const maxCustomerNameLen = 255

func validateOrderRequest(req OrderRequest) error {
	ve := &apperr.ValidationError{}

	if req.CustomerName == "" {
		ve.Add("customer_name", "is required")
	} else if len(req.CustomerName) > maxCustomerNameLen {
		ve.Add("customer_name", fmt.Sprintf("must be at most %d characters", maxCustomerNameLen))
	}

	if len(req.Items) == 0 {
		ve.Add("items", "at least one item is required")
	}

	for i, item := range req.Items {
		if item.ProductName == "" {
			ve.Add(fmt.Sprintf("items[%d].product_name", i), "is required")
		}
		if item.Quantity < 1 {
			ve.Add(fmt.Sprintf("items[%d].quantity", i), "must be at least 1")
		}
		if item.UnitPrice.IsNegative() {
			ve.Add(fmt.Sprintf("items[%d].unit_price", i), "must not be negative")
		}
	}

	if ve.HasErrors() {
		return ve
	}
	return nil
}

// computeTotals derives line totals and the order amount from the raw
// item inputs. Pure and deterministic; applied identically on create
// and replace so the amount invariant holds exactly.
func computeTotals(inputs []OrderItemInput) ([]model.OrderItem, decimal.Decimal) {
	items := make([]model.OrderItem, 0, len(inputs))
	amount := decimal.Zero
	for _, in := range inputs {
		lineTotal := in.UnitPrice.Mul(decimal.NewFromInt(int64(in.Quantity)))
		items = append(items, model.OrderItem{
			ProductName: in.ProductName,
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			LineTotal:   lineTotal,
		})
		amount = amount.Add(lineTotal)
	}
	return items, amount
}

// --- Implementation ---

func (s *orderService) List(ctx context.Context) ([]OrderResponse, error) {
	orders, err := s.orders.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	result := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		result = append(result, toOrderResponse(&orders[i]))
	}
	return result, nil
}

func (s *orderService) Create(ctx context.Context, actor Actor, req OrderRequest) (*OrderResponse, error) {
	if err := policy.Authorize(actor.Role, policy.IntentCreate, nil); err != nil {
		return nil, err
	}
	if err := validateOrderRequest(req); err != nil {
		return nil, err
	}

	items, amount := computeTotals(req.Items)
	order := model.Order{
		CustomerName:  req.CustomerName,
		Amount:        amount,
		Status:        model.OrderStatusPending,
		PaymentStatus: model.PaymentStatusUnpaid,
		UserID:        actor.ID,
		Items:         items,
	}

	err := s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.orders.Create(txCtx, &order); createErr != nil {
			return fmt.Errorf("failed to create order: %w", createErr)
		}

		entry := model.ActivityLog{
			UserID: &actor.ID,
			Action: model.ActionCreatedOrder,
			Description: fmt.Sprintf("Order #%s for %s created with %d items. Total: %s",
				order.ID, order.CustomerName, len(items), amount.StringFixed(2)),
		}
		if logErr := s.activity.Log(txCtx, &entry); logErr != nil {
			return fmt.Errorf("failed to write activity log: %w", logErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcast("order.created", &order)
	return s.reload(ctx, order.ID)
}

func (s *orderService) Replace(ctx context.Context, actor Actor, id string, req OrderRequest) (*OrderResponse, error) {
	orderID, err := parseOrderID(id)
	if err != nil {
		return nil, err
	}

	order, err := s.orders.FindByIDWithItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor.Role, policy.IntentEdit, order); err != nil {
		return nil, err
	}
	if err := validateOrderRequest(req); err != nil {
		return nil, err
	}

	items, amount := computeTotals(req.Items)
	order.CustomerName = req.CustomerName
	order.Amount = amount
	// Status is intentionally left unchanged: editing a rejected order
	// does not resubmit it as pending.

	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		if replaceErr := s.orders.Replace(txCtx, order, items); replaceErr != nil {
			return fmt.Errorf("failed to replace order: %w", replaceErr)
		}

		entry := model.ActivityLog{
			UserID: &actor.ID,
			Action: model.ActionUpdatedOrder,
			Description: fmt.Sprintf("Order #%s updated by %s. New Total: %s",
				order.ID, actor.Name, amount.StringFixed(2)),
		}
		if logErr := s.activity.Log(txCtx, &entry); logErr != nil {
			return fmt.Errorf("failed to write activity log: %w", logErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcast("order.updated", order)
	return s.reload(ctx, order.ID)
}

func (s *orderService) Remove(ctx context.Context, actor Actor, id string) error {
	orderID, err := parseOrderID(id)
	if err != nil {
		return err
	}

	order, err := s.orders.FindByIDWithItems(ctx, orderID)
	if err != nil {
		return err
	}
	if err := policy.Authorize(actor.Role, policy.IntentDelete, order); err != nil {
		return err
	}

	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		if delErr := s.orders.Delete(txCtx, order); delErr != nil {
			return fmt.Errorf("failed to delete order: %w", delErr)
		}

		entry := model.ActivityLog{
			UserID:      &actor.ID,
			Action:      model.ActionDeletedOrder,
			Description: fmt.Sprintf("Order #%s deleted by %s", order.ID, actor.Name),
		}
		if logErr := s.activity.Log(txCtx, &entry); logErr != nil {
			return fmt.Errorf("failed to write activity log: %w", logErr)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.broadcast("order.deleted", order)
	return nil
}

// Approve transitions a pending order to approved. The read, status
// re-check, and update run under an exclusive row lock so that two
// concurrent manager decisions on the same order serialize strictly:
// the loser observes the committed status and gets AlreadyProcessed.
func (s *orderService) Approve(ctx context.Context, actor Actor, id string) (*OrderResponse, error) {
	return s.decide(ctx, actor, id, policy.IntentApprove)
}

// Reject transitions a pending order to rejected under the same
// locking discipline as Approve.
func (s *orderService) Reject(ctx context.Context, actor Actor, id string) (*OrderResponse, error) {
	return s.decide(ctx, actor, id, policy.IntentReject)
}

func (s *orderService) decide(ctx context.Context, actor Actor, id string, intent policy.Intent) (*OrderResponse, error) {
	orderID, err := parseOrderID(id)
	if err != nil {
		return nil, err
	}

	var event string
	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		order, findErr := s.orders.FindForUpdate(txCtx, orderID)
		if findErr != nil {
			return findErr
		}

		// Re-check under the lock: the policy reports AlreadyProcessed
		// if another manager's decision committed first.
		if authErr := policy.Authorize(actor.Role, intent, order); authErr != nil {
			return authErr
		}

		entry := model.ActivityLog{UserID: &actor.ID}
		if intent == policy.IntentApprove {
			if updErr := s.orders.UpdateStatus(txCtx, orderID, model.OrderStatusApproved, &actor.ID); updErr != nil {
				return fmt.Errorf("failed to update order status: %w", updErr)
			}
			entry.Action = model.ActionApprovedOrder
			entry.Description = fmt.Sprintf("Order #%s approved by %s", orderID, actor.Name)
			event = "order.approved"
		} else {
			if updErr := s.orders.UpdateStatus(txCtx, orderID, model.OrderStatusRejected, nil); updErr != nil {
				return fmt.Errorf("failed to update order status: %w", updErr)
			}
			entry.Action = model.ActionRejectedOrder
			entry.Description = fmt.Sprintf("Order #%s rejected by %s", orderID, actor.Name)
			event = "order.rejected"
		}

		if logErr := s.activity.Log(txCtx, &entry); logErr != nil {
			return fmt.Errorf("failed to write activity log: %w", logErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp, err := s.reload(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.broadcastResponse(event, resp)
	return resp, nil
}

func (s *orderService) MarkPaid(ctx context.Context, actor Actor, id string) (*OrderResponse, error) {
	orderID, err := parseOrderID(id)
	if err != nil {
		return nil, err
	}

	order, err := s.orders.FindByIDWithItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor.Role, policy.IntentPay, order); err != nil {
		return nil, err
	}

	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		if updErr := s.orders.UpdatePaymentStatus(txCtx, orderID, model.PaymentStatusPaid); updErr != nil {
			return fmt.Errorf("failed to update payment status: %w", updErr)
		}

		entry := model.ActivityLog{
			UserID:      &actor.ID,
			Action:      model.ActionMarkedPaid,
			Description: fmt.Sprintf("Order #%s marked as paid by %s", orderID, actor.Name),
		}
		if logErr := s.activity.Log(txCtx, &entry); logErr != nil {
			return fmt.Errorf("failed to write activity log: %w", logErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	order.PaymentStatus = model.PaymentStatusPaid
	s.broadcast("order.paid", order)
	return s.reload(ctx, orderID)
}

// --- Helpers ---

func parseOrderID(id string) (uuid.UUID, error) {
	orderID, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, apperr.ErrNotFound
	}
	return orderID, nil
}

func (s *orderService) reload(ctx context.Context, id uuid.UUID) (*OrderResponse, error) {
	order, err := s.orders.FindByIDWithItems(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload order: %w", err)
	}
	resp := toOrderResponse(order)
	return &resp, nil
}

func (s *orderService) broadcast(event string, order *model.Order) {
	if s.hub == nil {
		return
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"event":          event,
		"order_id":       order.ID.String(),
		"status":         order.Status,
		"payment_status": order.PaymentStatus,
	})
	select {
	case s.hub.GetBroadcast() <- payload:
	default:
	}
}

func (s *orderService) broadcastResponse(event string, resp *OrderResponse) {
	if s.hub == nil {
		return
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"event":          event,
		"order_id":       resp.ID,
		"status":         resp.Status,
		"payment_status": resp.PaymentStatus,
	})
	select {
	case s.hub.GetBroadcast() <- payload:
	default:
	}
}

func toOrderResponse(o *model.Order) OrderResponse {
	resp := OrderResponse{
		ID:            o.ID.String(),
		CustomerName:  o.CustomerName,
		Amount:        o.Amount.StringFixed(2),
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		CreatedBy:     o.UserID.String(),
		Items:         make([]OrderItemResponse, 0, len(o.Items)),
		CreatedAt:     o.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     o.UpdatedAt.Format(time.RFC3339),
	}

	if o.User != nil {
		resp.CreatedByName = o.User.Username
	}
	if o.ApprovedBy != nil {
		id := o.ApprovedBy.String()
		resp.ApprovedBy = &id
	}
	if o.Approver != nil {
		resp.ApproverName = o.Approver.Username
	}

	for _, item := range o.Items {
		resp.Items = append(resp.Items, OrderItemResponse{
			ID:          item.ID.String(),
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice.StringFixed(2),
			LineTotal:   item.LineTotal.StringFixed(2),
		})
	}

	return resp
}
