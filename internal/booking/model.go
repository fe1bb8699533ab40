package booking

import (
	"bytes"
	"time"
)

const (
	StatusReserved  = "reserved"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusNoShow    = "no_show"
	StatusCancelled = "cancelled"
)

var validStatuses = map[string]struct{}{
	StatusReserved:  {},
	StatusConfirmed: {},
	StatusCompleted: {},
	StatusNoShow:    {},
	StatusCancelled: {},
}

func IsValidStatus(value string) bool {
	_, ok := validStatuses[value]
	return ok
}

// IsActiveStatus reports whether a status counts against the daily
// capacity limit.
func IsActiveStatus(value string) bool {
	return value == StatusReserved || value == StatusConfirmed
}

type Appointment struct {
	ID              string    `bson:"_id,omitempty" json:"id"`
	BranchSlug      string    `bson:"branch_slug" json:"branch_slug"`
	Service         string    `bson:"service" json:"service"`
	AppointmentDate string    `bson:"appointment_date" json:"appointment_date"`
	FullName        string    `bson:"full_name" json:"full_name"`
	Mobile          string    `bson:"mobile" json:"mobile"`
	Reference       string    `bson:"reference" json:"reference"`
	Status          string    `bson:"status" json:"status"`
	PrivacyAgreed   bool      `bson:"privacy_agreed" json:"privacy_agreed"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
}

// Availability is the snapshot returned to the booking UI for one
// branch-day.
type Availability struct {
	BranchSlug string `json:"branch_slug"`
	Date       string `json:"date"`
	Count      int64  `json:"count"`
	Limit      int64  `json:"limit"`
	Remaining  int64  `json:"remaining"`
	IsFull     bool   `json:"isFull"`
	IsOffDay   bool   `json:"isOffDay"`
}

// TruthyBool accepts the consent encodings the booking form has sent
// over time: true, "true", 1 and "1".
type TruthyBool bool

func (b *TruthyBool) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true", `"true"`, "1", `"1"`:
		*b = true
	default:
		*b = false
	}
	return nil
}

func (b TruthyBool) Bool() bool {
	return bool(b)
}

type CreateRequest struct {
	BranchSlug      string     `json:"branch_slug"`
	Service         string     `json:"service"`
	AppointmentDate string     `json:"appointment_date"`
	FullName        string     `json:"full_name"`
	Mobile          string     `json:"mobile"`
	PrivacyAgreed   TruthyBool `json:"privacy_agreed"`
}

type AdminCreateRequest struct {
	Service         string     `json:"service"`
	AppointmentDate string     `json:"appointment_date"`
	FullName        string     `json:"full_name"`
	Mobile          string     `json:"mobile"`
	Status          string     `json:"status"`
	PrivacyAgreed   TruthyBool `json:"privacy_agreed"`
}

type StatusUpdateRequest struct {
	ID     string `json:"id" validate:"required"`
	Status string `json:"status" validate:"required"`
}

// ListFilter narrows the admin listing. Branch is always set from the
// admin scope, never from caller input.
type ListFilter struct {
	Branch string
	Status string
	From   string
	To     string
	Query  string
}
