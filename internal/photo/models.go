package photo

import (
	"time"

	"gorm.io/datatypes"
)

// Photo is one stored capture. The image bytes live on disk under the
// configured photo directory; the row carries the metadata and the
// human-readable pickup code shown to guests.
type Photo struct {
	ID          int64             `gorm:"primaryKey" json:"id"`
	Code        string            `gorm:"uniqueIndex;size:16" json:"code"`
	Filename    string            `json:"filename"`
	SizeBytes   int64             `json:"sizeBytes"`
	ContentType string            `json:"contentType"`
	Metadata    datatypes.JSONMap `json:"metadata"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// ImageURL is the API path serving this photo's bytes.
func (p Photo) ImageURL() string {
	return "/api/photos/" + p.Code + "/image"
}
