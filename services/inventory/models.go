package inventory

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

type laptopModel struct {
	LaptopSerial string         `gorm:"column:laptop_serial;type:text;primaryKey"`
	Hostname     string         `gorm:"column:hostname;type:text;not null"`
	IPAddress    string         `gorm:"column:ip_address;type:text;not null"`
	LoggedInUser *string        `gorm:"column:logged_in_user;type:text"`
	LastSeenUTC  string         `gorm:"column:last_seen_utc;type:text;not null"`
	DrivesJSON   datatypes.JSON `gorm:"column:drives_json;type:text;not null"`
}

func (laptopModel) TableName() string { return "laptops" }

type checkinModel struct {
	ID           int64          `gorm:"column:id;primaryKey;autoIncrement"`
	LaptopSerial string         `gorm:"column:laptop_serial;type:text;not null"`
	Hostname     string         `gorm:"column:hostname;type:text;not null"`
	IPAddress    string         `gorm:"column:ip_address;type:text;not null"`
	LoggedInUser *string        `gorm:"column:logged_in_user;type:text"`
	TimestampUTC string         `gorm:"column:timestamp_utc;type:text;not null"`
	DrivesJSON   datatypes.JSON `gorm:"column:drives_json;type:text;not null"`
}

func (checkinModel) TableName() string { return "checkins" }

func laptopFromState(s State) laptopModel {
	return laptopModel{
		LaptopSerial: s.LaptopSerial,
		Hostname:     s.Hostname,
		IPAddress:    s.IPAddress,
		LoggedInUser: s.LoggedInUser,
		LastSeenUTC:  formatTimestamp(s.LastSeen),
		DrivesJSON:   drivesColumn(s.Drives),
	}
}

func (m laptopModel) toState() (State, error) {
	seen, err := parseTimestamp(m.LastSeenUTC)
	if err != nil {
		return State{}, fmt.Errorf("laptop %s: last_seen_utc: %w", m.LaptopSerial, err)
	}
	return State{
		LaptopSerial: m.LaptopSerial,
		Hostname:     m.Hostname,
		IPAddress:    m.IPAddress,
		LoggedInUser: m.LoggedInUser,
		LastSeen:     seen,
		Drives:       json.RawMessage(m.DrivesJSON),
	}, nil
}

func checkinFromEvent(e Event) checkinModel {
	return checkinModel{
		LaptopSerial: e.LaptopSerial,
		Hostname:     e.Hostname,
		IPAddress:    e.IPAddress,
		LoggedInUser: e.LoggedInUser,
		TimestampUTC: formatTimestamp(e.Timestamp),
		DrivesJSON:   drivesColumn(e.Drives),
	}
}

func (m checkinModel) toEvent() (Event, error) {
	ts, err := parseTimestamp(m.TimestampUTC)
	if err != nil {
		return Event{}, fmt.Errorf("checkin %d: timestamp_utc: %w", m.ID, err)
	}
	return Event{
		ID:           m.ID,
		LaptopSerial: m.LaptopSerial,
		Hostname:     m.Hostname,
		IPAddress:    m.IPAddress,
		LoggedInUser: m.LoggedInUser,
		Timestamp:    ts,
		Drives:       json.RawMessage(m.DrivesJSON),
	}, nil
}

func drivesColumn(raw json.RawMessage) datatypes.JSON {
	if len(raw) == 0 {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(raw)
}
