package inventory

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"inventoryd/pkg/db"
)

// Store persists check-in events and the derived per-machine state.
type Store struct {
	db *gorm.DB
}

// NewStore wraps an initialised database handle.
func NewStore(gdb *gorm.DB) (*Store, error) {
	if gdb == nil {
		return nil, errors.New("database handle is required")
	}
	return &Store{db: gdb}, nil
}

// RecordCheckin appends evt to the event log and overwrites the current-state
// row for state.LaptopSerial in one transaction. It returns the new event id.
// Client cancellation of ctx does not abort the write once started.
func (s *Store) RecordCheckin(ctx context.Context, evt Event, state State) (int64, error) {
	checkin := checkinFromEvent(evt)
	laptop := laptopFromState(state)

	err := db.WithTimeout(context.WithoutCancel(ctx), db.DefaultTimeout, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&checkin).Error; err != nil {
				return fmt.Errorf("insert checkin: %w", err)
			}
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "laptop_serial"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"hostname", "ip_address", "logged_in_user", "last_seen_utc", "drives_json",
				}),
			}).Create(&laptop).Error
			if err != nil {
				return fmt.Errorf("upsert laptop: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	return checkin.ID, nil
}

// ListCurrentState returns every machine, most recently seen first.
func (s *Store) ListCurrentState(ctx context.Context) ([]State, error) {
	var rows []laptopModel
	err := db.WithTimeout(ctx, db.DefaultTimeout, func(ctx context.Context) error {
		return s.db.WithContext(ctx).
			Order("last_seen_utc DESC").
			Order("laptop_serial ASC").
			Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list laptops: %w", err)
	}

	out := make([]State, 0, len(rows))
	for _, row := range rows {
		st, err := row.toState()
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// GetCurrentState returns the state of one machine or ErrNotFound.
func (s *Store) GetCurrentState(ctx context.Context, serial string) (State, error) {
	var row laptopModel
	err := db.WithTimeout(ctx, db.DefaultTimeout, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Where("laptop_serial = ?", serial).Take(&row).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return State{}, ErrNotFound
	}
	if err != nil {
		return State{}, fmt.Errorf("get laptop: %w", err)
	}
	return row.toState()
}

// ListHistory returns every event for serial, newest timestamp first. Events
// sharing a timestamp are ordered by descending id.
func (s *Store) ListHistory(ctx context.Context, serial string) ([]Event, error) {
	var rows []checkinModel
	err := db.WithTimeout(ctx, db.DefaultTimeout, func(ctx context.Context) error {
		return s.db.WithContext(ctx).
			Where("laptop_serial = ?", serial).
			Order("timestamp_utc DESC").
			Order("id DESC").
			Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list checkins: %w", err)
	}

	out := make([]Event, 0, len(rows))
	for _, row := range rows {
		evt, err := row.toEvent()
		if err != nil {
			return nil, err
		}
		out = append(out, evt)
	}
	return out, nil
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return db.Ping(ctx, s.db)
}

// Stats counts rows in both tables.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := db.WithTimeout(ctx, db.DefaultTimeout, func(ctx context.Context) error {
		if err := s.db.WithContext(ctx).Model(&laptopModel{}).Count(&st.Laptops).Error; err != nil {
			return fmt.Errorf("count laptops: %w", err)
		}
		if err := s.db.WithContext(ctx).Model(&checkinModel{}).Count(&st.Checkins).Error; err != nil {
			return fmt.Errorf("count checkins: %w", err)
		}
		return nil
	})
	if err != nil {
		return Stats{}, err
	}
	return st, nil
}

// Snapshot writes a transactionally consistent copy of the database to dest,
// which must not exist yet.
func (s *Store) Snapshot(ctx context.Context, dest string) error {
	if dest == "" {
		return errors.New("snapshot destination is required")
	}
	if err := s.db.WithContext(ctx).Exec("VACUUM INTO ?", dest).Error; err != nil {
		return fmt.Errorf("vacuum into %s: %w", dest, err)
	}
	return nil
}
