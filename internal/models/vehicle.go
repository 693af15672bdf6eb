package models

import (
	"time"

	"kanzlei/insolvenzpanel/internal/utils"
)

// Vehicle is a canonical catalog entry. The chassis number is the natural
// key; inquiries snapshot vehicles by value and match them back by chassis.
type Vehicle struct {
	ID                utils.SixID  `bson:"_id,omitempty" json:"id,omitempty"`
	BrandingID        *utils.SixID `bson:"branding_id,omitempty" json:"branding_id,omitempty"`
	Brand             string       `bson:"brand" json:"brand" binding:"required"`
	Model             string       `bson:"model" json:"model" binding:"required"`
	Chassis           string       `bson:"chassis" json:"chassis" binding:"required,chassis"` // unique index
	ReportNr          string       `bson:"report_nr,omitempty" json:"report_nr,omitempty"`
	ReportURL         string       `bson:"report_url,omitempty" json:"report_url,omitempty"`
	Price             float64      `bson:"price" json:"price"`
	Kilometers        int          `bson:"kilometers" json:"kilometers"`
	FirstRegistration string       `bson:"first_registration" json:"first_registration"`
	FuelType          string       `bson:"fuel_type,omitempty" json:"fuel_type,omitempty"`
	Transmission      string       `bson:"transmission,omitempty" json:"transmission,omitempty"`
	PowerKW           int          `bson:"power_kw,omitempty" json:"power_kw,omitempty"`
	Color             string       `bson:"color,omitempty" json:"color,omitempty"`
	Images            []string     `bson:"images" json:"images"` // S3 keys
	CreatedAt         time.Time    `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time    `bson:"updated_at" json:"updated_at"`
	Deleted           bool         `bson:"deleted" json:"-"`
}

// Snapshot copies the fields an inquiry keeps by value.
func (v Vehicle) Snapshot() SelectedVehicle {
	return SelectedVehicle{
		Chassis:           v.Chassis,
		Brand:             v.Brand,
		Model:             v.Model,
		Price:             v.Price,
		Kilometers:        v.Kilometers,
		FirstRegistration: v.FirstRegistration,
		ReportNr:          v.ReportNr,
	}
}
