package models

import (
	"time"

	"kanzlei/insolvenzpanel/internal/utils"
)

// Branding is a tenant configuration: one law firm's public identity and
// email-sending credentials. Read-mostly; it routes inquiries, emails and
// document templates.
type Branding struct {
	ID           utils.SixID `bson:"_id,omitempty" json:"id,omitempty"`
	FirmName     string      `bson:"firm_name" json:"firm_name"`
	AttorneyName string      `bson:"attorney_name" json:"attorney_name"`
	Street       string      `bson:"street" json:"street"`
	PostalCode   string      `bson:"postal_code" json:"postal_code"`
	City         string      `bson:"city" json:"city"`
	Phone        string      `bson:"phone" json:"phone"`
	Email        string      `bson:"email" json:"email"`
	URL          string      `bson:"url" json:"url"` // storefront domain match

	// Per-tenant SMTP identity. The password stays server-side only.
	SmtpHost        string `bson:"smtp_host,omitempty" json:"-"`
	SmtpPort        int    `bson:"smtp_port,omitempty" json:"-"`
	SmtpUsername    string `bson:"smtp_username,omitempty" json:"-"`
	SmtpPassword    string `bson:"smtp_password,omitempty" json:"-"`
	SmtpFromAddress string `bson:"smtp_from_address,omitempty" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
	Deleted   bool      `bson:"deleted" json:"-"`
}
