package domain

import (
	"fmt"
	"time"
)

// Return-related domain errors.
var (
	ErrReturnNotFound         = &Error{Code: ENOTFOUND, Message: "return not found"}
	ErrReturnWindowExpired    = &Error{Code: ECONFLICT, Message: "return window has expired for this order"}
	ErrReturnInvalidState     = &Error{Code: ECONFLICT, Message: "return is not in a state that allows this action"}
	ErrReturnQtyExceedsOrder  = &Error{Code: EINVALID, Message: "return quantity exceeds delivered quantity"}
	ErrReturnNotEligible      = &Error{Code: EINVALID, Message: "order item is not eligible for return"}
)

// ReturnStatus is the return lifecycle state (§4.5).
type ReturnStatus string

const (
	ReturnRequested       ReturnStatus = "requested"
	ReturnApproved        ReturnStatus = "approved"
	ReturnRejected        ReturnStatus = "rejected"
	ReturnPickupScheduled ReturnStatus = "pickup_scheduled"
	ReturnPickedUp        ReturnStatus = "picked_up"
	ReturnInTransit       ReturnStatus = "in_transit"
	ReturnReceived        ReturnStatus = "received"
	ReturnInspected       ReturnStatus = "inspected"
	ReturnRefundInitiated ReturnStatus = "refund_initiated"
	ReturnCompleted       ReturnStatus = "completed"
	ReturnCancelled       ReturnStatus = "cancelled"
)

var returnTransitions = map[ReturnStatus][]ReturnStatus{
	ReturnRequested:       {ReturnApproved, ReturnRejected, ReturnCancelled},
	ReturnApproved:        {ReturnPickupScheduled, ReturnCancelled},
	ReturnPickupScheduled: {ReturnPickedUp, ReturnCancelled},
	ReturnPickedUp:        {ReturnInTransit},
	ReturnInTransit:       {ReturnReceived},
	ReturnReceived:        {ReturnInspected},
	ReturnInspected:       {ReturnRefundInitiated, ReturnRejected, ReturnCancelled},
	ReturnRefundInitiated: {ReturnCompleted},
}

// CanTransitionReturn reports whether from -> to is a legal return edge.
func CanTransitionReturn(from, to ReturnStatus) bool {
	for _, next := range returnTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status is immutable.
func (s ReturnStatus) IsTerminal() bool {
	return s == ReturnCompleted || s == ReturnRejected || s == ReturnCancelled
}

// InspectionVerdict is the warehouse's outcome after receiving a return.
type InspectionVerdict string

const (
	InspectionAccepted         InspectionVerdict = "accepted"
	InspectionAcceptedPartial  InspectionVerdict = "accepted_partial"
	InspectionRejectedDamaged  InspectionVerdict = "rejected_damaged"
	InspectionRejectedMismatch InspectionVerdict = "rejected_mismatch"
)

// ReturnLineItem is the portion of an order line being returned.
type ReturnLineItem struct {
	OrderItemID string
	Quantity    int
	Reason      string
}

// Return is a customer-initiated return request against a delivered
// order (§3/§4.5).
type Return struct {
	ID          string
	ReturnNumber string // RET-YYYY-NNNNNN
	OrderID     string
	UserID      string

	Lines  []ReturnLineItem
	Reason string

	Status ReturnStatus

	PickupAddress      Address
	PickupScheduledFor time.Time
	CarrierAWB         string

	InspectionVerdict InspectionVerdict
	InspectionNotes   string
	InspectedAt       time.Time

	RefundID string

	Timestamps
}

// FormatReturnNumber renders a human-readable identifier such as
// RET-2026-000042 from a yearly sequence value.
func FormatReturnNumber(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%04d-%06d", prefix, year, seq)
}
