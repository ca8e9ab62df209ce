package model

import "time"

// Plan tags accepted on the confirmation path. One tag per role.
const (
	PlanDriverMonthly = "driver_monthly"
	PlanRiderMonthly  = "rider_monthly"
)

// RoleForPlan maps a plan tag to the role allowed to purchase it.
// Unknown tags map to the empty role.
func RoleForPlan(tag string) Role {
	switch tag {
	case PlanDriverMonthly:
		return RoleDriver
	case PlanRiderMonthly:
		return RoleRider
	default:
		return ""
	}
}

// PlanPrice is one row of the externally managed price table. Read-only from
// this core's perspective.
type PlanPrice struct {
	Tag       string // plan type tag, e.g. "rider_monthly"
	Amount    int64  // expected whole-GYD amount
	Currency  string
	UpdatedAt time.Time
}
