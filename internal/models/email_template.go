package models

// EmailTemplate defines the structure for email templates stored in the DB.
// Subject and body carry %TOKEN% placeholders (e.g. %AKTENZEICHEN%,
// %NACHNAME%, %ANWALT_NAME%) substituted at send time.
type EmailTemplate struct {
	Base       `bson:",inline"`
	TemplateID string `bson:"template_id" json:"template_id"` // e.g. "documents_single_male"
	Locale     string `bson:"locale" json:"locale"`           // e.g. "de-DE"
	Subject    string `bson:"subject" json:"subject"`
	Body       string `bson:"body" json:"body"`
}
