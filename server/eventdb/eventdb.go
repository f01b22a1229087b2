package eventdb

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/edgeclassify/pkg/decide"
	"github.com/cyclopcam/edgeclassify/pkg/logprefix"
	"github.com/cyclopcam/logs"
	"gorm.io/gorm"
)

// Events older than this are deleted
const MaxEventAge = 90 * 24 * time.Hour

// Maximum number of events returned by Recent
const MaxRecentEvents = 1000

// EventDB stores the streak events that the monitor detects.
// Individual cycles are far too frequent to store, so only streaks are recorded.
type EventDB struct {
	log logs.Log
	DB  *gorm.DB

	lastPurge time.Time
}

// Open or create an event DB
func Open(logger logs.Log, dbFilename string) (*EventDB, error) {
	log := logprefix.NewSubsystem(logger, "EventDB")
	os.MkdirAll(filepath.Dir(dbFilename), 0777)
	log.Infof("Opening DB at '%v'", dbFilename)
	db, err := dbh.OpenDB(log, dbh.MakeSqliteConfig(dbFilename), Migrations(log), 0)
	if err != nil {
		return nil, fmt.Errorf("Failed to open database %v: %w", dbFilename, err)
	}
	return &EventDB{
		log: log,
		DB:  db,
	}, nil
}

func (e *EventDB) Close() {
	if sqlDB, err := e.DB.DB(); err == nil {
		sqlDB.Close()
	}
}

// AddStreak records that d.Primary was committed for 'length' consecutive cycles
func (e *EventDB) AddStreak(at time.Time, d decide.Decision, length int, mode decide.Mode, threshold float32) (*Event, error) {
	if !d.Committed() {
		return nil, fmt.Errorf("Cannot record a streak without a committed prediction")
	}
	e.purgeOldEvents(at)

	detail := dbh.MakeJSONField(EventDetail{
		Secondary: d.Secondary,
		Mode:      mode.String(),
		Threshold: threshold,
	})
	event := &Event{
		Time:       dbh.MakeIntTime(at),
		Class:      d.Primary.Class,
		Label:      d.Primary.Label,
		Confidence: d.Primary.Confidence,
		Length:     length,
		Detail:     &detail,
	}
	if err := e.DB.Create(event).Error; err != nil {
		return nil, err
	}
	return event, nil
}

// Recent returns the most recent events, newest first
func (e *EventDB) Recent(limit int) ([]*Event, error) {
	if limit <= 0 || limit > MaxRecentEvents {
		limit = MaxRecentEvents
	}
	var events []*Event
	if err := e.DB.Order("time DESC, id DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (e *EventDB) Count() (int64, error) {
	var n int64
	err := e.DB.Model(&Event{}).Count(&n).Error
	return n, err
}

// Delete events older than 'before'. Returns the number of events deleted.
func (e *EventDB) DeleteBefore(before time.Time) (int64, error) {
	res := e.DB.Where("time < ?", dbh.MakeIntTime(before)).Delete(&Event{})
	return res.RowsAffected, res.Error
}

// Purge at most once per hour
func (e *EventDB) purgeOldEvents(now time.Time) {
	if now.Sub(e.lastPurge) < time.Hour {
		return
	}
	e.lastPurge = now
	n, err := e.DeleteBefore(now.Add(-MaxEventAge))
	if err != nil {
		e.log.Errorf("Failed to purge old events: %v", err)
	} else if n != 0 {
		e.log.Infof("Purged %v old events", n)
	}
}
