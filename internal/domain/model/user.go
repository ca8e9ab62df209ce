package model

import "time"

type Role string

const (
	RoleDriver Role = "driver"
	RoleRider  Role = "rider"
)

// User is the slice of the driver/rider account this core needs: identity,
// role, and the denormalized subscription projection kept on the role
// profile row.
type User struct {
	ID                    string
	Role                  Role
	Phone                 string
	SubscriptionStatus    *string
	SubscriptionStartDate *time.Time
	SubscriptionEndDate   *time.Time
	RegisteredAt          time.Time
}
