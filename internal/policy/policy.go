// Package policy centralizes authorization as a pure decision table
// over role, intent, and current order state. It has no side effects
// and no implicit fallback allow: every combination not explicitly
// permitted is denied.
package policy

import (
	"backend/internal/model"
	"backend/pkg/apperr"
)

// Intent is the semantic operation a caller wants to perform.
type Intent string

const (
	IntentCreate  Intent = "create"
	IntentEdit    Intent = "edit"
	IntentDelete  Intent = "delete"
	IntentApprove Intent = "approve"
	IntentReject  Intent = "reject"
	IntentPay     Intent = "pay"
)

// Authorize decides whether an actor with the given role may perform
// intent on order. order is nil for IntentCreate, which has no target
// state; for every other intent it must be the current persisted order.
// Returns nil on allow, a ForbiddenError with the specific denial
// reason otherwise, and ErrAlreadyProcessed when a manager decision
// targets an order that is no longer pending.
func Authorize(role string, intent Intent, order *model.Order) error {
	switch intent {
	case IntentCreate:
		if role != model.RoleSales {
			return apperr.Forbidden("only sales team can create orders")
		}
		return nil

	case IntentEdit, IntentDelete:
		if role != model.RoleSales {
			if intent == IntentEdit {
				return apperr.Forbidden("only sales team can update orders")
			}
			return apperr.Forbidden("only sales team can delete orders")
		}
		if order.Status == model.OrderStatusApproved {
			if intent == IntentEdit {
				return apperr.Forbidden("cannot edit approved orders")
			}
			return apperr.Forbidden("cannot delete approved orders")
		}
		// pending and rejected orders remain editable by sales
		return nil

	case IntentApprove, IntentReject:
		if role != model.RoleManager {
			if intent == IntentApprove {
				return apperr.Forbidden("only managers can approve orders")
			}
			return apperr.Forbidden("only managers can reject orders")
		}
		if order.Status != model.OrderStatusPending {
			return apperr.ErrAlreadyProcessed
		}
		return nil

	case IntentPay:
		if role != model.RoleAccounts {
			return apperr.Forbidden("only accounts team can mark orders as paid")
		}
		if order.Status != model.OrderStatusApproved {
			return apperr.Forbidden("order must be approved before payment")
		}
		if order.PaymentStatus == model.PaymentStatusPaid {
			return apperr.Forbidden("order is already paid")
		}
		return nil

	default:
		return apperr.Forbidden("not permitted")
	}
}
