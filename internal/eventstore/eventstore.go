// Package eventstore persists sensor.TriggerEvent records to a SQLite
// database (spec.md §1: trigger persistence is an external concern,
// outside the core's sensor dispatcher).
package eventstore

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"stairled-core/errcode"
	"stairled-core/sensor"
)

// Record is the persisted row shape for one trigger event.
type Record struct {
	ID            uint `gorm:"primaryKey"`
	SensorName    string
	Value         int32
	AnimationName string
	TimestampMs   int64
}

func (Record) TableName() string { return "trigger_events" }

// Store implements sensor.TriggerSink against a SQLite database.
type Store struct {
	db *gorm.DB
}

// Open opens (migrating if necessary) a SQLite database at path.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, errcode.Wrap(errcode.Fatal, "eventstore.Open", err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, errcode.Wrap(errcode.Fatal, "eventstore.Open", err)
	}
	return &Store{db: db}, nil
}

// Emit implements sensor.TriggerSink. Failures are swallowed into the
// caller-visible nothing sensor.Dispatcher expects of a sink (spec.md
// §4.7: persistence failures never block dispatch), but are still
// returned by EmitErr for callers that want them.
func (s *Store) Emit(ev sensor.TriggerEvent) {
	_ = s.EmitErr(ev)
}

// EmitErr persists ev and returns any database error.
func (s *Store) EmitErr(ev sensor.TriggerEvent) error {
	rec := Record{
		SensorName:    ev.SensorName,
		Value:         ev.Value,
		AnimationName: ev.AnimationName,
		TimestampMs:   ev.TimestampMs,
	}
	if err := s.db.Create(&rec).Error; err != nil {
		return errcode.Wrap(errcode.Error, "eventstore.Emit", err)
	}
	return nil
}

// Recent returns the most recent n trigger events, newest first, for
// the external designer UI's activity feed.
func (s *Store) Recent(n int) ([]Record, error) {
	var out []Record
	if err := s.db.Order("id desc").Limit(n).Find(&out).Error; err != nil {
		return nil, errcode.Wrap(errcode.Error, "eventstore.Recent", err)
	}
	return out, nil
}
