package tasks

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"log"
	"mime/multipart"
	"net/textproto"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"github.com/redis/go-redis/v9"

	"kanzlei/insolvenzpanel/internal/config"
	"kanzlei/insolvenzpanel/internal/email"
	"kanzlei/insolvenzpanel/internal/services"
	"kanzlei/insolvenzpanel/internal/utils"
)

// TaskType defines the type of a background task.
const (
	TypeEmailDelivery = "email:deliver"
	TypeImageProcess  = "image:process"
)

// --- Task Client (Enqueuing tasks) ---

func NewClient(rdb *redis.Client) *asynq.Client {
	clientOpt := asynq.RedisClientOpt{
		Addr:     rdb.Options().Addr,
		Password: rdb.Options().Password,
		DB:       rdb.Options().DB,
	}
	return asynq.NewClient(clientOpt)
}

// EmailAttachment references an already-uploaded S3 object to attach.
type EmailAttachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	S3Key       string `json:"s3_key"`
}

// EmailTaskPayload describes one outgoing email. Tokens are substituted into
// the template's %TOKEN% placeholders; BrandingID selects the tenant SMTP
// identity when set.
type EmailTaskPayload struct {
	To          string            `json:"to"`
	TemplateID  string            `json:"template_id"`
	Locale      string            `json:"locale,omitempty"`
	Tokens      map[string]string `json:"tokens,omitempty"`
	BrandingID  string            `json:"branding_id,omitempty"`
	Attachments []EmailAttachment `json:"attachments,omitempty"`
}

// NewEmailDeliveryTask builds an enqueueable email task.
func NewEmailDeliveryTask(payload EmailTaskPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal email task payload: %w", err)
	}
	return asynq.NewTask(TypeEmailDelivery, data), nil
}

// ImageTaskPayload describes one uploaded vehicle image to normalize.
type ImageTaskPayload struct {
	S3Key     string `json:"s3_key"`
	VehicleID string `json:"vehicle_id"`
}

// NewImageProcessTask builds an enqueueable image normalization task.
func NewImageProcessTask(payload ImageTaskPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal image task payload: %w", err)
	}
	return asynq.NewTask(TypeImageProcess, data, asynq.Queue("images")), nil
}

// --- Task Server (Processing tasks) ---

// TaskProcessor handles the processing of tasks. It holds the dependencies
// needed by task handlers.
type TaskProcessor struct {
	cfg                  *config.Config
	emailSender          email.Sender
	vehicleService       services.IVehicleService
	brandingService      services.IBrandingService
	emailTemplateService services.IEmailTemplateService
	s3Client             *s3.Client
	taskClient           *asynq.Client
}

func NewTaskProcessor(
	cfg *config.Config,
	emailSender email.Sender,
	vehicleService services.IVehicleService,
	brandingService services.IBrandingService,
	emailTemplateService services.IEmailTemplateService,
	s3Client *s3.Client,
	taskClient *asynq.Client,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:                  cfg,
		emailSender:          emailSender,
		vehicleService:       vehicleService,
		brandingService:      brandingService,
		emailTemplateService: emailTemplateService,
		s3Client:             s3Client,
		taskClient:           taskClient,
	}
}

// SetupServer configures and runs an Asynq server instance. Blocks until the
// server stops; returns the server so callers can Shutdown it.
func SetupServer(rdb *redis.Client, processor *TaskProcessor, isImageWorker bool, isBgWorker bool) *asynq.Server {
	serverOpt := asynq.RedisClientOpt{
		Addr:     rdb.Options().Addr,
		Password: rdb.Options().Password,
		DB:       rdb.Options().DB,
	}

	srv := asynq.NewServer(
		serverOpt,
		asynq.Config{
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
				"images":   5,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v", task.Type(), string(task.Payload()), err)
			}),
		},
	)

	mux := asynq.NewServeMux()

	if isBgWorker {
		mux.HandleFunc(TypeEmailDelivery, processor.HandleEmailDeliveryTask)
		log.Println("Registered email delivery task handler.")
	}

	if isImageWorker {
		mux.HandleFunc(TypeImageProcess, processor.HandleImageProcessTask)
		log.Println("Registered image processing task handler.")
	}

	if !isBgWorker && !isImageWorker {
		log.Println("Running in API mode, no task server started.")
		return nil
	}

	if err := srv.Run(mux); err != nil {
		log.Fatalf("Could not run Asynq server: %v", err)
	}

	return srv
}

// --- Task Handlers ---

// HandleEmailDeliveryTask renders the template, pulls attachments from S3,
// assembles the MIME message and hands it to the sender.
func (p *TaskProcessor) HandleEmailDeliveryTask(ctx context.Context, t *asynq.Task) error {
	var payload EmailTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal email task payload: %v: %w", err, asynq.SkipRetry)
	}

	locale := payload.Locale
	if locale == "" {
		locale = "de-DE"
	}

	tmpl, err := p.emailTemplateService.GetTemplate(ctx, payload.TemplateID, locale)
	if err != nil {
		log.Printf("Error getting email template %s/%s: %v", payload.TemplateID, locale, err)
		return fmt.Errorf("email template not found: %w", asynq.SkipRetry)
	}

	subject, body := services.RenderTemplate(tmpl, payload.Tokens)

	// Resolve the tenant sender identity, if any.
	var identity email.Identity
	fromAddress := p.cfg.SmtpFromAddress
	if payload.BrandingID != "" {
		brandingID, parseErr := utils.ParseSixID(payload.BrandingID)
		if parseErr != nil {
			return fmt.Errorf("invalid branding ID in email payload: %w", asynq.SkipRetry)
		}
		branding, findErr := p.brandingService.FindBrandingByID(ctx, brandingID)
		if findErr != nil {
			log.Printf("Error resolving branding %s for email to %s: %v", payload.BrandingID, payload.To, findErr)
			return findErr
		}
		identity = email.Identity{
			Host:        branding.SmtpHost,
			Port:        branding.SmtpPort,
			Username:    branding.SmtpUsername,
			Password:    branding.SmtpPassword,
			FromAddress: branding.SmtpFromAddress,
		}
		if identity.FromAddress != "" {
			fromAddress = identity.FromAddress
		}
	}

	attachments, err := p.fetchAttachments(ctx, payload.Attachments)
	if err != nil {
		return err
	}

	rawMessage, err := buildRawMessage(fromAddress, payload.To, subject, body, attachments)
	if err != nil {
		return fmt.Errorf("failed to assemble email message: %w", err)
	}

	if identitySender, ok := p.emailSender.(email.IdentitySender); ok && identity.Host != "" {
		err = identitySender.SendAs(ctx, identity, []string{payload.To}, subject, rawMessage)
	} else {
		err = p.emailSender.Send(ctx, []string{payload.To}, subject, rawMessage)
	}
	if err != nil {
		log.Printf("Email sending failed for %s (template %s): %v", payload.To, payload.TemplateID, err)
		return err
	}

	log.Printf("Email task processed: To=%s, Template=%s, Attachments=%d", payload.To, payload.TemplateID, len(attachments))
	return nil
}

type attachmentData struct {
	filename    string
	contentType string
	data        []byte
}

func (p *TaskProcessor) fetchAttachments(ctx context.Context, refs []EmailAttachment) ([]attachmentData, error) {
	attachments := make([]attachmentData, 0, len(refs))
	for _, ref := range refs {
		out, err := p.s3Client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(p.cfg.AwsS3Bucket),
			Key:    aws.String(ref.S3Key),
		})
		if err != nil {
			var nsk *types.NoSuchKey
			if errors.As(err, &nsk) {
				log.Printf("Attachment %s not found in S3, cannot send email.", ref.S3Key)
				return nil, fmt.Errorf("attachment object missing: %w", asynq.SkipRetry)
			}
			return nil, fmt.Errorf("failed to download attachment %s: %w", ref.S3Key, err)
		}
		data, readErr := io.ReadAll(out.Body)
		out.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("failed to read attachment %s: %w", ref.S3Key, readErr)
		}
		contentType := ref.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		attachments = append(attachments, attachmentData{
			filename:    ref.Filename,
			contentType: contentType,
			data:        data,
		})
	}
	return attachments, nil
}

// buildRawMessage assembles the full message with headers. Plain text when
// there are no attachments, multipart/mixed otherwise.
func buildRawMessage(from, to, subject, body string, attachments []attachmentData) ([]byte, error) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("To: %s\r\n", to))
	sb.WriteString(fmt.Sprintf("From: %s\r\n", from))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	sb.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")

	if len(attachments) == 0 {
		sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
		sb.WriteString("\r\n")
		sb.WriteString(body)
		sb.WriteString("\r\n")
		return []byte(sb.String()), nil
	}

	var mixed bytes.Buffer
	writer := multipart.NewWriter(&mixed)

	textHeader := textproto.MIMEHeader{}
	textHeader.Set("Content-Type", "text/plain; charset=\"UTF-8\"")
	textPart, err := writer.CreatePart(textHeader)
	if err != nil {
		return nil, err
	}
	if _, err := textPart.Write([]byte(body)); err != nil {
		return nil, err
	}

	for _, att := range attachments {
		header := textproto.MIMEHeader{}
		header.Set("Content-Type", att.contentType)
		header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", att.filename))
		header.Set("Content-Transfer-Encoding", "base64")
		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, err
		}
		if err := writeBase64Wrapped(part, att.data); err != nil {
			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}

	sb.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=%q\r\n", writer.Boundary()))
	sb.WriteString("\r\n")

	message := append([]byte(sb.String()), mixed.Bytes()...)
	return message, nil
}

// writeBase64Wrapped encodes data as base64 with RFC 2045 line length.
func writeBase64Wrapped(w io.Writer, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	const lineLen = 76
	for len(encoded) > 0 {
		n := lineLen
		if n > len(encoded) {
			n = len(encoded)
		}
		if _, err := io.WriteString(w, encoded[:n]+"\r\n"); err != nil {
			return err
		}
		encoded = encoded[n:]
	}
	return nil
}

// HandleImageProcessTask normalizes an uploaded vehicle image: enforces the
// size cap, resizes oversized images, re-uploads the result and records the
// key on the vehicle.
func (p *TaskProcessor) HandleImageProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ImageTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal image task payload: %v: %w", err, asynq.SkipRetry)
	}

	vehicleID, err := utils.ParseSixID(payload.VehicleID)
	if err != nil {
		log.Printf("Invalid VehicleID in image task payload: %s", payload.VehicleID)
		return fmt.Errorf("invalid vehicle ID in payload: %w", asynq.SkipRetry)
	}

	getObjectOutput, err := p.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.cfg.AwsS3Bucket),
		Key:    aws.String(payload.S3Key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			log.Printf("S3 object %s not found, likely upload failed or key incorrect.", payload.S3Key)
			return fmt.Errorf("s3 object not found: %w", asynq.SkipRetry)
		}
		return fmt.Errorf("failed to download image from S3: %w", err)
	}
	defer getObjectOutput.Body.Close()

	imgData, err := io.ReadAll(getObjectOutput.Body)
	if err != nil {
		return fmt.Errorf("failed to read image data: %w", err)
	}

	maxSizeBytes := int64(p.cfg.ImageMaxSizeMB) * 1024 * 1024
	if int64(len(imgData)) > maxSizeBytes {
		log.Printf("Image %s exceeds max size (%d > %d bytes). Skipping.", payload.S3Key, len(imgData), maxSizeBytes)
		return fmt.Errorf("image exceeds max size: %w", asynq.SkipRetry)
	}

	img, format, err := image.Decode(bytes.NewReader(imgData))
	if err != nil {
		log.Printf("Error decoding image for key %s: %v", payload.S3Key, err)
		return fmt.Errorf("unsupported image format or corrupt image: %w", asynq.SkipRetry)
	}
	log.Printf("Decoded image %s, format: %s, size: %dx%d", payload.S3Key, format, img.Bounds().Dx(), img.Bounds().Dy())

	maxDim := uint(p.cfg.ImageMaxDimension)
	needsResize := uint(img.Bounds().Dx()) > maxDim || uint(img.Bounds().Dy()) > maxDim

	processedImageData := imgData
	contentType := aws.ToString(getObjectOutput.ContentType)

	if needsResize {
		resizedImg := resize.Thumbnail(maxDim, maxDim, img, resize.Lanczos3)
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, resizedImg, &jpeg.Options{Quality: 85}); err != nil {
			return fmt.Errorf("failed to re-encode resized image: %w", err)
		}
		processedImageData = buf.Bytes()
		contentType = "image/jpeg"
		log.Printf("Resized image %s to %dx%d", payload.S3Key, resizedImg.Bounds().Dx(), resizedImg.Bounds().Dy())

		if int64(len(processedImageData)) > maxSizeBytes {
			log.Printf("Resized image %s still exceeds max size. Skipping.", payload.S3Key)
			return fmt.Errorf("resized image still exceeds max size: %w", asynq.SkipRetry)
		}
	}

	_, err = p.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.cfg.AwsS3Bucket),
		Key:         aws.String(payload.S3Key),
		Body:        bytes.NewReader(processedImageData),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload processed image: %w", err)
	}

	if err := p.vehicleService.AddImageToVehicle(ctx, vehicleID, payload.S3Key); err != nil {
		return fmt.Errorf("failed to update vehicle with processed image: %w", err)
	}

	log.Printf("Image task processed: Key=%s, VehicleID=%s", payload.S3Key, payload.VehicleID)
	return nil
}
