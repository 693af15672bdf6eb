package models

import (
	"time"

	"kanzlei/insolvenzpanel/internal/utils"
)

// LeadCampaign groups cold-call leads under one branding.
type LeadCampaign struct {
	ID         utils.SixID `bson:"_id,omitempty" json:"id,omitempty"`
	BrandingID utils.SixID `bson:"branding_id" json:"branding_id"`
	Name       string      `bson:"name" json:"name"`
	CreatedAt  time.Time   `bson:"created_at" json:"created_at"`
	Deleted    bool        `bson:"deleted" json:"-"`
}

// Lead is a prospect's pre-issued credential scoping access to one
// branding's vehicle catalog. Optionally linked 1:1 to the inquiry it
// produced.
type Lead struct {
	ID           utils.SixID  `bson:"_id,omitempty" json:"id,omitempty"`
	CampaignID   utils.SixID  `bson:"campaign_id" json:"campaign_id"`
	Email        string       `bson:"email" json:"email"`
	PasswordHash string       `bson:"password_hash" json:"-"`
	InquiryID    *utils.SixID `bson:"inquiry_id,omitempty" json:"inquiry_id,omitempty"`
	CreatedAt    time.Time    `bson:"created_at" json:"created_at"`
	Deleted      bool         `bson:"deleted" json:"-"`
}

// LeadReservedVehicle pins one catalog vehicle to a lead, so the prospect
// sees it held for them in the scoped storefront.
type LeadReservedVehicle struct {
	ID        utils.SixID `bson:"_id,omitempty" json:"id,omitempty"`
	LeadID    utils.SixID `bson:"lead_id" json:"lead_id"`
	Chassis   string      `bson:"chassis" json:"chassis"`
	CreatedAt time.Time   `bson:"created_at" json:"created_at"`
}
