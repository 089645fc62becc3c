package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"inventoryd/pkg/db"
)

type StoreTestSuite struct {
	suite.Suite
	ctx   context.Context
	gdb   *gorm.DB
	store *Store
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (s *StoreTestSuite) SetupTest() {
	s.ctx = context.Background()
	gdb, err := db.Open(s.ctx, db.Config{Path: filepath.Join(s.T().TempDir(), "inventory.db")})
	s.Require().NoError(err)
	s.gdb = gdb
	s.store, err = NewStore(gdb)
	s.Require().NoError(err)
}

func (s *StoreTestSuite) TearDownTest() {
	s.Require().NoError(db.Close(s.gdb))
}

func checkinPair(serial, hostname string, ts time.Time, drives string) (Event, State) {
	user := "alice"
	evt := Event{
		LaptopSerial: serial,
		Hostname:     hostname,
		IPAddress:    "10.0.0.1",
		LoggedInUser: &user,
		Timestamp:    ts,
		Drives:       json.RawMessage(drives),
	}
	state := State{
		LaptopSerial: serial,
		Hostname:     hostname,
		IPAddress:    "10.0.0.1",
		LoggedInUser: &user,
		LastSeen:     ts,
		Drives:       json.RawMessage(drives),
	}
	return evt, state
}

func (s *StoreTestSuite) TestFirstCheckinCreatesBothRows() {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	evt, state := checkinPair("SN001", "host-v1", ts, `[{"model":"m","device_id":"d","size_bytes":10}]`)

	id, err := s.store.RecordCheckin(s.ctx, evt, state)
	s.Require().NoError(err)
	s.Positive(id)

	got, err := s.store.GetCurrentState(s.ctx, "SN001")
	s.Require().NoError(err)
	s.Equal("host-v1", got.Hostname)
	s.True(got.LastSeen.Equal(ts))
	s.JSONEq(`[{"model":"m","device_id":"d","size_bytes":10}]`, string(got.Drives))

	history, err := s.store.ListHistory(s.ctx, "SN001")
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal(id, history[0].ID)
	s.JSONEq(string(got.Drives), string(history[0].Drives))
}

func (s *StoreTestSuite) TestUpdateOverwritesStateAndAppendsHistory() {
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	evt, state := checkinPair("SN001", "host-v1", t1, `[]`)
	_, err := s.store.RecordCheckin(s.ctx, evt, state)
	s.Require().NoError(err)

	evt, state = checkinPair("SN001", "host-v2", t2, `[{"model":"m","device_id":"d"}]`)
	state.LoggedInUser = nil
	evt.LoggedInUser = nil
	_, err = s.store.RecordCheckin(s.ctx, evt, state)
	s.Require().NoError(err)

	got, err := s.store.GetCurrentState(s.ctx, "SN001")
	s.Require().NoError(err)
	s.Equal("host-v2", got.Hostname)
	s.Nil(got.LoggedInUser)
	s.True(got.LastSeen.Equal(t2))

	history, err := s.store.ListHistory(s.ctx, "SN001")
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal("host-v2", history[0].Hostname)
	s.Equal("host-v1", history[1].Hostname)

	stats, err := s.store.Stats(s.ctx)
	s.Require().NoError(err)
	s.Equal(Stats{Laptops: 1, Checkins: 2}, stats)
}

func (s *StoreTestSuite) TestArrivalOrderWinsOverTimestamp() {
	newer := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	older := newer.Add(-24 * time.Hour)

	evt, state := checkinPair("SN001", "newer", newer, `[]`)
	_, err := s.store.RecordCheckin(s.ctx, evt, state)
	s.Require().NoError(err)
	evt, state = checkinPair("SN001", "older", older, `[]`)
	_, err = s.store.RecordCheckin(s.ctx, evt, state)
	s.Require().NoError(err)

	got, err := s.store.GetCurrentState(s.ctx, "SN001")
	s.Require().NoError(err)
	s.Equal("older", got.Hostname)

	history, err := s.store.ListHistory(s.ctx, "SN001")
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal("newer", history[0].Hostname)
}

func (s *StoreTestSuite) TestHistoryTieBreaksOnID() {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []int64
	for i := 0; i < 3; i++ {
		evt, state := checkinPair("SN001", fmt.Sprintf("h%d", i), ts, `[]`)
		id, err := s.store.RecordCheckin(s.ctx, evt, state)
		s.Require().NoError(err)
		ids = append(ids, id)
	}

	history, err := s.store.ListHistory(s.ctx, "SN001")
	s.Require().NoError(err)
	s.Require().Len(history, 3)
	s.Equal([]int64{ids[2], ids[1], ids[0]}, []int64{history[0].ID, history[1].ID, history[2].ID})
}

func (s *StoreTestSuite) TestHistoryOrdersAcrossOffsets() {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	plusTwo := time.FixedZone("+02", 2*60*60)

	evt, state := checkinPair("SN001", "later", base.Add(time.Minute).In(plusTwo), `[]`)
	_, err := s.store.RecordCheckin(s.ctx, evt, state)
	s.Require().NoError(err)
	evt, state = checkinPair("SN001", "earlier", base, `[]`)
	_, err = s.store.RecordCheckin(s.ctx, evt, state)
	s.Require().NoError(err)

	history, err := s.store.ListHistory(s.ctx, "SN001")
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal("later", history[0].Hostname)
}

func (s *StoreTestSuite) TestListCurrentStateOrdering() {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, c := range []struct {
		serial string
		at     time.Time
	}{
		{"SN-B", ts},
		{"SN-A", ts},
		{"SN-C", ts.Add(time.Minute)},
	} {
		evt, state := checkinPair(c.serial, "h", c.at, `[]`)
		_, err := s.store.RecordCheckin(s.ctx, evt, state)
		s.Require().NoError(err)
	}

	list, err := s.store.ListCurrentState(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 3)
	s.Equal([]string{"SN-C", "SN-A", "SN-B"}, []string{list[0].LaptopSerial, list[1].LaptopSerial, list[2].LaptopSerial})
}

func (s *StoreTestSuite) TestEmptyStore() {
	list, err := s.store.ListCurrentState(s.ctx)
	s.Require().NoError(err)
	s.Empty(list)

	history, err := s.store.ListHistory(s.ctx, "missing")
	s.Require().NoError(err)
	s.Empty(history)

	_, err = s.store.GetCurrentState(s.ctx, "missing")
	s.ErrorIs(err, ErrNotFound)
	s.Equal(KindNotFound, KindOf(err))
}

func (s *StoreTestSuite) TestFailedUpsertRollsBackEvent() {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	evt, state := checkinPair("SN001", "host-v1", ts, `[]`)
	_, err := s.store.RecordCheckin(s.ctx, evt, state)
	s.Require().NoError(err)

	injected := errors.New("injected fault")
	s.Require().NoError(s.gdb.Callback().Create().Before("gorm:create").Register("test:fail_laptops", func(tx *gorm.DB) {
		if tx.Statement.Table == "laptops" {
			_ = tx.AddError(injected)
		}
	}))

	evt, state = checkinPair("SN001", "host-v2", ts.Add(time.Hour), `[]`)
	_, err = s.store.RecordCheckin(s.ctx, evt, state)
	s.Require().ErrorIs(err, injected)

	s.Require().NoError(s.gdb.Callback().Create().Remove("test:fail_laptops"))

	got, err := s.store.GetCurrentState(s.ctx, "SN001")
	s.Require().NoError(err)
	s.Equal("host-v1", got.Hostname)

	history, err := s.store.ListHistory(s.ctx, "SN001")
	s.Require().NoError(err)
	s.Len(history, 1)
}

func (s *StoreTestSuite) TestWriteSurvivesCancelledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	evt, state := checkinPair("SN001", "host-v1", time.Now(), `[]`)
	_, err := s.store.RecordCheckin(ctx, evt, state)
	s.Require().NoError(err)

	_, err = s.store.GetCurrentState(s.ctx, "SN001")
	s.NoError(err)
}

func (s *StoreTestSuite) TestConcurrentWriters() {
	const writers, perWriter = 8, 10
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	errs := make(chan error, writers*perWriter)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				serial := fmt.Sprintf("SN%02d", w%4)
				evt, state := checkinPair(serial, "h", ts.Add(time.Duration(i)*time.Second), `[]`)
				if _, err := s.store.RecordCheckin(s.ctx, evt, state); err != nil {
					errs <- err
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	stats, err := s.store.Stats(s.ctx)
	s.Require().NoError(err)
	s.Equal(Stats{Laptops: 4, Checkins: writers * perWriter}, stats)
}

func (s *StoreTestSuite) TestSnapshot() {
	evt, state := checkinPair("SN001", "host-v1", time.Now(), `[]`)
	_, err := s.store.RecordCheckin(s.ctx, evt, state)
	s.Require().NoError(err)

	dest := filepath.Join(s.T().TempDir(), "copy.db")
	s.Require().NoError(s.store.Snapshot(s.ctx, dest))

	copyDB, err := db.Open(s.ctx, db.Config{Path: dest})
	s.Require().NoError(err)
	defer func() { _ = db.Close(copyDB) }()

	copyStore, err := NewStore(copyDB)
	s.Require().NoError(err)
	got, err := copyStore.GetCurrentState(s.ctx, "SN001")
	s.Require().NoError(err)
	s.Equal("host-v1", got.Hostname)
}
