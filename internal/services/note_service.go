package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"kanzlei/insolvenzpanel/internal/models"
	"kanzlei/insolvenzpanel/internal/utils"
)

// INoteService defines the interface for inquiry note operations. Notes are
// write-once; there is no update or delete.
type INoteService interface {
	AddNote(ctx context.Context, inquiryID utils.SixID, authorEmail, body string) (*models.InquiryNote, error)
	AddMailboxMarker(ctx context.Context, inquiryID utils.SixID, authorEmail string) (*models.InquiryNote, error)
	ListNotes(ctx context.Context, inquiryID utils.SixID) ([]models.InquiryNote, error)
}

const notesCollection = "inquiry_notes"

type noteService struct {
	db *mongo.Database
}

// NewNoteService creates a new NoteService.
func NewNoteService(database *mongo.Database) INoteService {
	return &noteService{db: database}
}

func (s *noteService) insert(ctx context.Context, inquiryID utils.SixID, kind models.NoteKind, authorEmail, body string) (*models.InquiryNote, error) {
	if authorEmail == "" {
		return nil, fmt.Errorf("note author email is required")
	}

	note := &models.InquiryNote{
		ID:          utils.NewSixID(),
		InquiryID:   inquiryID,
		Kind:        kind,
		AuthorEmail: authorEmail,
		Body:        body,
		CreatedAt:   time.Now().UTC(),
	}
	if _, err := s.db.Collection(notesCollection).InsertOne(ctx, note); err != nil {
		return nil, fmt.Errorf("failed to insert %s for inquiry %s: %w", kind, inquiryID.String(), err)
	}
	return note, nil
}

// AddNote appends a freeform note to an inquiry.
func (s *noteService) AddNote(ctx context.Context, inquiryID utils.SixID, authorEmail, body string) (*models.InquiryNote, error) {
	if body == "" {
		return nil, fmt.Errorf("note body cannot be empty")
	}
	return s.insert(ctx, inquiryID, models.NoteKindNote, authorEmail, body)
}

// AddMailboxMarker appends a mailbox marker with its fixed body text.
func (s *noteService) AddMailboxMarker(ctx context.Context, inquiryID utils.SixID, authorEmail string) (*models.InquiryNote, error) {
	return s.insert(ctx, inquiryID, models.NoteKindMailbox, authorEmail, models.MailboxNoteBody)
}

// ListNotes returns all notes of an inquiry, newest first.
func (s *noteService) ListNotes(ctx context.Context, inquiryID utils.SixID) ([]models.InquiryNote, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(notesCollection).Find(ctx, bson.M{"inquiry_id": inquiryID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes for inquiry %s: %w", inquiryID.String(), err)
	}
	defer cursor.Close(ctx)

	var notes []models.InquiryNote
	if err = cursor.All(ctx, &notes); err != nil {
		return nil, fmt.Errorf("failed to decode note list: %w", err)
	}
	return notes, nil
}

// BadgeNumbers assigns per-subtype display numbers to a newest-first note
// list. Numbers count down from the subtype total, so the newest note of a
// kind carries the highest number. The numbering is derived at read time and
// never stored.
func BadgeNumbers(notes []models.InquiryNote) map[utils.SixID]int {
	totals := make(map[models.NoteKind]int, 2)
	for _, n := range notes {
		totals[n.Kind]++
	}
	seen := make(map[models.NoteKind]int, 2)
	numbers := make(map[utils.SixID]int, len(notes))
	for _, n := range notes {
		numbers[n.ID] = totals[n.Kind] - seen[n.Kind]
		seen[n.Kind]++
	}
	return numbers
}
