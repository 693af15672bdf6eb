package models

import (
	"time"

	"kanzlei/insolvenzpanel/internal/utils"
)

// NoteKind distinguishes freeform notes from one-click mailbox markers.
// Both kinds share the inquiry_notes collection.
type NoteKind string

const (
	NoteKindNote    NoteKind = "note"
	NoteKindMailbox NoteKind = "mailbox"
)

// MailboxNoteBody is the fixed body written by the one-click mailbox marker.
const MailboxNoteBody = "Mailbox besprochen"

// InquiryNote is a note attached to one inquiry. Notes are immutable once
// created: there is no update or delete path.
type InquiryNote struct {
	ID          utils.SixID `bson:"_id,omitempty" json:"id,omitempty"`
	InquiryID   utils.SixID `bson:"inquiry_id" json:"inquiry_id"`
	AuthorEmail string      `bson:"author_email" json:"author_email"`
	Kind        NoteKind    `bson:"kind" json:"kind"`
	Body        string      `bson:"body" json:"body"`
	CreatedAt   time.Time   `bson:"created_at" json:"created_at"`
}
