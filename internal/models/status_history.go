package models

import (
	"time"

	"kanzlei/insolvenzpanel/internal/utils"
)

// StatusHistoryEntry is one row of the append-only status ledger
// (amtsgericht_status_history). Rows are written when a transition enters or
// leaves the Amtsgericht family and are never edited or deleted.
type StatusHistoryEntry struct {
	ID          utils.SixID   `bson:"_id,omitempty" json:"id,omitempty"`
	InquiryID   utils.SixID   `bson:"inquiry_id" json:"inquiry_id"`
	OldStatus   InquiryStatus `bson:"old_status" json:"old_status"`
	NewStatus   InquiryStatus `bson:"new_status" json:"new_status"`
	Actor       string        `bson:"actor" json:"actor"` // staff email
	InquiryName string        `bson:"inquiry_name" json:"inquiry_name"`
	CreatedAt   time.Time     `bson:"created_at" json:"created_at"`
}
