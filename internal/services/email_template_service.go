package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"kanzlei/insolvenzpanel/internal/models"
)

// Template IDs. Confirmation and document templates come in a single and a
// multiple vehicle variant; document templates additionally split by
// salutation because the German greeting is gendered.
const (
	TemplateConfirmationSingle   = "inquiry_confirmation_single"
	TemplateConfirmationMultiple = "inquiry_confirmation_multiple"
	TemplateDocumentsSingleM     = "documents_single_male"
	TemplateDocumentsSingleF     = "documents_single_female"
	TemplateDocumentsMultipleM   = "documents_multiple_male"
	TemplateDocumentsMultipleF   = "documents_multiple_female"
)

// Default email templates used as fallback when not found in database.
var defaultEmailTemplates = map[string]models.EmailTemplate{
	TemplateConfirmationSingle: {
		TemplateID: TemplateConfirmationSingle,
		Locale:     "de-DE",
		Subject:    "Ihre Anfrage zum Fahrzeug",
		Body: "Guten Tag,\r\n\r\nvielen Dank für Ihre Anfrage zum Fahrzeug. " +
			"Wir haben Ihre Angaben erhalten und melden uns in Kürze bei Ihnen.\r\n\r\n" +
			"Mit freundlichen Grüßen\r\n%ANWALT_NAME%",
	},
	TemplateConfirmationMultiple: {
		TemplateID: TemplateConfirmationMultiple,
		Locale:     "de-DE",
		Subject:    "Ihre Anfrage zu den Fahrzeugen",
		Body: "Guten Tag,\r\n\r\nvielen Dank für Ihre Anfrage zu den Fahrzeugen. " +
			"Wir haben Ihre Angaben erhalten und melden uns in Kürze bei Ihnen.\r\n\r\n" +
			"Mit freundlichen Grüßen\r\n%ANWALT_NAME%",
	},
	TemplateDocumentsSingleM: {
		TemplateID: TemplateDocumentsSingleM,
		Locale:     "de-DE",
		Subject:    "Unterlagen zu Ihrem Fahrzeugkauf - Az. %AKTENZEICHEN%",
		Body: "Sehr geehrter Herr %NACHNAME%,\r\n\r\nanbei erhalten Sie die Rechnung, " +
			"den Kaufvertrag und den Treuhandvertrag zu Ihrem Fahrzeugkauf.\r\n\r\n" +
			"Mit freundlichen Grüßen\r\n%ANWALT_NAME%",
	},
	TemplateDocumentsSingleF: {
		TemplateID: TemplateDocumentsSingleF,
		Locale:     "de-DE",
		Subject:    "Unterlagen zu Ihrem Fahrzeugkauf - Az. %AKTENZEICHEN%",
		Body: "Sehr geehrte Frau %NACHNAME%,\r\n\r\nanbei erhalten Sie die Rechnung, " +
			"den Kaufvertrag und den Treuhandvertrag zu Ihrem Fahrzeugkauf.\r\n\r\n" +
			"Mit freundlichen Grüßen\r\n%ANWALT_NAME%",
	},
	TemplateDocumentsMultipleM: {
		TemplateID: TemplateDocumentsMultipleM,
		Locale:     "de-DE",
		Subject:    "Unterlagen zu Ihrem Fahrzeugkauf - Az. %AKTENZEICHEN%",
		Body: "Sehr geehrter Herr %NACHNAME%,\r\n\r\nanbei erhalten Sie die Rechnung, " +
			"den Kaufvertrag und den Treuhandvertrag zu Ihren Fahrzeugen.\r\n\r\n" +
			"Mit freundlichen Grüßen\r\n%ANWALT_NAME%",
	},
	TemplateDocumentsMultipleF: {
		TemplateID: TemplateDocumentsMultipleF,
		Locale:     "de-DE",
		Subject:    "Unterlagen zu Ihrem Fahrzeugkauf - Az. %AKTENZEICHEN%",
		Body: "Sehr geehrte Frau %NACHNAME%,\r\n\r\nanbei erhalten Sie die Rechnung, " +
			"den Kaufvertrag und den Treuhandvertrag zu Ihren Fahrzeugen.\r\n\r\n" +
			"Mit freundlichen Grüßen\r\n%ANWALT_NAME%",
	},
}

// IEmailTemplateService defines the interface for email template operations.
type IEmailTemplateService interface {
	GetTemplate(ctx context.Context, templateID, locale string) (*models.EmailTemplate, error)
	SaveTemplate(ctx context.Context, template *models.EmailTemplate) error
}

const emailTemplatesCollection = "email_templates"

// EmailTemplateService handles operations related to email templates.
type EmailTemplateService struct {
	db *mongo.Database
}

// NewEmailTemplateService creates a new instance of EmailTemplateService.
func NewEmailTemplateService(db *mongo.Database) *EmailTemplateService {
	return &EmailTemplateService{db: db}
}

// GetTemplate retrieves an email template by ID and locale, falling back to
// the compiled-in defaults when no DB override exists.
func (s *EmailTemplateService) GetTemplate(ctx context.Context, templateID, locale string) (*models.EmailTemplate, error) {
	filter := bson.M{"template_id": templateID, "locale": locale}

	var template models.EmailTemplate
	err := s.db.Collection(emailTemplatesCollection).FindOne(ctx, filter).Decode(&template)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			if defaultTemplate, ok := defaultEmailTemplates[templateID]; ok {
				return &defaultTemplate, nil
			}
			return nil, fmt.Errorf("template not found: %s (locale: %s)", templateID, locale)
		}
		return nil, fmt.Errorf("error retrieving template: %w", err)
	}
	return &template, nil
}

// SaveTemplate upserts a template override into the database.
func (s *EmailTemplateService) SaveTemplate(ctx context.Context, template *models.EmailTemplate) error {
	filter := bson.M{"template_id": template.TemplateID, "locale": template.Locale}
	update := bson.M{"$set": template}
	opts := options.Update().SetUpsert(true)

	if _, err := s.db.Collection(emailTemplatesCollection).UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("error saving template: %w", err)
	}
	return nil
}

// ConfirmationTemplateID picks the confirmation template by vehicle count.
func ConfirmationTemplateID(vehicleCount int) string {
	if vehicleCount > 1 {
		return TemplateConfirmationMultiple
	}
	return TemplateConfirmationSingle
}

// DocumentsTemplateID picks the documents template by vehicle count and the
// salutation stored on the customer. Anything other than "Frau" falls back to
// the male form.
func DocumentsTemplateID(vehicleCount int, salutation string) string {
	female := strings.EqualFold(strings.TrimSpace(salutation), "Frau")
	if vehicleCount > 1 {
		if female {
			return TemplateDocumentsMultipleF
		}
		return TemplateDocumentsMultipleM
	}
	if female {
		return TemplateDocumentsSingleF
	}
	return TemplateDocumentsSingleM
}

// RenderTemplate substitutes the %TOKEN% placeholders in subject and body.
func RenderTemplate(template *models.EmailTemplate, tokens map[string]string) (subject, body string) {
	subject = template.Subject
	body = template.Body
	for token, value := range tokens {
		placeholder := "%" + token + "%"
		subject = strings.ReplaceAll(subject, placeholder, value)
		body = strings.ReplaceAll(body, placeholder, value)
	}
	return subject, body
}
