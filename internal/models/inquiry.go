package models

import (
	"time"

	"kanzlei/insolvenzpanel/internal/utils"
)

// InquiryStatus enumerates the lifecycle states of an inquiry. The German
// labels are the stored values; they appear verbatim in the admin UI.
type InquiryStatus string

const (
	StatusNeu              InquiryStatus = "Neu"
	StatusMoechteRGKV      InquiryStatus = "Möchte RG/KV"
	StatusAmtsgericht      InquiryStatus = "Amtsgericht"
	StatusAmtsgerichtReady InquiryStatus = "Amtsgericht Ready"
	StatusRGKVGesendet     InquiryStatus = "RG/KV gesendet"
	StatusBezahlt          InquiryStatus = "Bezahlt"
	StatusExchanged        InquiryStatus = "Exchanged"
	StatusKeinInteresse    InquiryStatus = "Kein Interesse"
)

// AllInquiryStatuses lists every valid status. Status writes are gated on
// membership only; there is no transition graph beyond that.
var AllInquiryStatuses = []InquiryStatus{
	StatusNeu,
	StatusMoechteRGKV,
	StatusAmtsgericht,
	StatusAmtsgerichtReady,
	StatusRGKVGesendet,
	StatusBezahlt,
	StatusExchanged,
	StatusKeinInteresse,
}

// IsValid reports whether s is one of the enumerated statuses.
func (s InquiryStatus) IsValid() bool {
	for _, known := range AllInquiryStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsAmtsgericht reports whether s belongs to the Amtsgericht family.
// Transitions into or out of this family are logged to the history ledger.
func (s InquiryStatus) IsAmtsgericht() bool {
	return s == StatusAmtsgericht || s == StatusAmtsgerichtReady
}

// CustomerType distinguishes private customers from businesses.
type CustomerType string

const (
	CustomerPrivate  CustomerType = "private"
	CustomerBusiness CustomerType = "business"
)

// Customer is the identity block of an inquiry.
type Customer struct {
	Type       CustomerType `bson:"type" json:"type"`
	Salutation string       `bson:"salutation" json:"salutation"` // "Herr" or "Frau"
	FirstName  string       `bson:"first_name" json:"first_name"`
	LastName   string       `bson:"last_name" json:"last_name"`
	Company    string       `bson:"company,omitempty" json:"company,omitempty"`
	Street     string       `bson:"street" json:"street"`
	PostalCode string       `bson:"postal_code" json:"postal_code"`
	City       string       `bson:"city" json:"city"`
	Email      string       `bson:"email" json:"email"`
	Phone      string       `bson:"phone" json:"phone"`
}

// DisplayName is the denormalized name written into history rows.
func (c Customer) DisplayName() string {
	if c.Type == CustomerBusiness && c.Company != "" {
		return c.Company
	}
	return c.FirstName + " " + c.LastName
}

// SelectedVehicle is a by-value snapshot of a catalog vehicle, taken at
// submission or re-selection time. Later catalog edits do not touch it.
type SelectedVehicle struct {
	Chassis           string  `bson:"chassis" json:"chassis"`
	Brand             string  `bson:"brand" json:"brand"`
	Model             string  `bson:"model" json:"model"`
	Price             float64 `bson:"price" json:"price"`
	Kilometers        int     `bson:"kilometers" json:"kilometers"`
	FirstRegistration string  `bson:"first_registration" json:"first_registration"`
	ReportNr          string  `bson:"report_nr" json:"report_nr"`
}

// Inquiry is the central workflow object: a customer's request to purchase
// one or more vehicles. Inquiries are never deleted in-app.
type Inquiry struct {
	ID                 utils.SixID       `bson:"_id,omitempty" json:"id,omitempty"`
	BrandingID         *utils.SixID      `bson:"branding_id,omitempty" json:"branding_id,omitempty"`
	LeadID             *utils.SixID      `bson:"lead_id,omitempty" json:"lead_id,omitempty"`
	Customer           Customer          `bson:"customer" json:"customer"`
	SelectedVehicles   []SelectedVehicle `bson:"selected_vehicles" json:"selected_vehicles"`
	TotalPrice         float64           `bson:"total_price" json:"total_price"`
	Status             InquiryStatus     `bson:"status" json:"status"`
	StatusUpdatedAt    time.Time         `bson:"status_updated_at" json:"status_updated_at"`
	DiscountPercentage *float64          `bson:"discount_percentage,omitempty" json:"discount_percentage,omitempty"`
	DiscountGrantedAt  *time.Time        `bson:"discount_granted_at,omitempty" json:"discount_granted_at,omitempty"`
	DiscountGrantedBy  string            `bson:"discount_granted_by,omitempty" json:"discount_granted_by,omitempty"`
	CallPriority       bool              `bson:"call_priority" json:"call_priority"`
	CaseNumber         string            `bson:"case_number,omitempty" json:"case_number,omitempty"` // Aktenzeichen
	CreatedAt          time.Time         `bson:"created_at" json:"created_at"`
	UpdatedAt          time.Time         `bson:"updated_at" json:"updated_at"`
}

// SumVehiclePrices computes the invariant value of TotalPrice for a snapshot
// set. TotalPrice is only ever written as this sum, never edited on its own.
func SumVehiclePrices(vehicles []SelectedVehicle) float64 {
	var total float64
	for _, v := range vehicles {
		total += v.Price
	}
	return total
}
