package eventdb

import (
	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/edgeclassify/pkg/decide"
)

// BaseModel is our base class for a GORM model.
// The default GORM Model uses int, but we prefer int64
type BaseModel struct {
	ID int64 `gorm:"primaryKey" json:"id"`
}

// Event is written when a class has been committed for a streak of consecutive cycles
type Event struct {
	BaseModel
	Time       dbh.IntTime                 `json:"time"`
	Class      int                         `json:"class"`
	Label      string                      `json:"label"`
	Confidence float32                     `json:"confidence"` // Confidence of the cycle that completed the streak
	Length     int                         `json:"length"`     // Number of consecutive cycles
	Detail     *dbh.JSONField[EventDetail] `json:"detail"`
}

// EventDetail is extra information that we don't need to query on
type EventDetail struct {
	Secondary *decide.Prediction `json:"secondary,omitempty"`
	Mode      string             `json:"mode"`      // "raw" or "aggregated"
	Threshold float32            `json:"threshold"` // Threshold in effect at the time
}
