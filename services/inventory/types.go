package inventory

import (
	"encoding/json"
	"strings"
	"time"
)

// TimestampLayout is the fixed-width UTC layout used for stored timestamps so
// that text ordering in SQLite matches chronological ordering.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

// Drive is one storage device reported by a client.
type Drive struct {
	Model        string  `json:"model" validate:"required,max=256,printascii"`
	SerialNumber *string `json:"serial_number,omitempty" validate:"omitempty,max=256,printascii"`
	DeviceID     string  `json:"device_id" validate:"required,max=256,printascii"`
}

// DisplayName returns the device id without the Windows `\\.\` namespace prefix.
func (d Drive) DisplayName() string {
	return strings.TrimPrefix(d.DeviceID, `\\.\`)
}

// CheckIn is a decoded, not yet validated, client report.
type CheckIn struct {
	Hostname     string  `json:"hostname" validate:"required,max=63,hostname_label"`
	IPAddress    string  `json:"ip_address" validate:"required,ip"`
	LoggedInUser *string `json:"logged_in_user" validate:"omitempty,max=512,printascii"`
	LaptopSerial string  `json:"laptop_serial" validate:"required,max=128,printascii"`
	Drives       []Drive `json:"drives" validate:"max=32,dive"`
	TimestampUTC string  `json:"timestamp_utc" validate:"required,rfc3339"`

	// rawDrives is the drive array exactly as sent, extra fields included.
	rawDrives json.RawMessage
}

// RawDrives returns the drive array as received from the client.
func (c *CheckIn) RawDrives() json.RawMessage {
	if len(c.rawDrives) == 0 {
		return json.RawMessage("[]")
	}
	return c.rawDrives
}

// Event is the immutable audit record of one accepted check-in.
type Event struct {
	ID           int64
	LaptopSerial string
	Hostname     string
	IPAddress    string
	LoggedInUser *string
	Timestamp    time.Time
	Drives       json.RawMessage
}

// DriveList decodes the stored drive snapshot. Malformed snapshots yield nil.
func (e Event) DriveList() []Drive {
	return parseDrives(e.Drives)
}

// State is the latest known state of one machine.
type State struct {
	LaptopSerial string
	Hostname     string
	IPAddress    string
	LoggedInUser *string
	LastSeen     time.Time
	Drives       json.RawMessage
}

// DriveList decodes the stored drive snapshot. Malformed snapshots yield nil.
func (s State) DriveList() []Drive {
	return parseDrives(s.Drives)
}

// DriveSerials lists the serial numbers of drives that reported one, empty
// strings included. Drives with a null or absent serial are skipped.
func (s State) DriveSerials() []string {
	var out []string
	for _, d := range s.DriveList() {
		if d.SerialNumber != nil {
			out = append(out, *d.SerialNumber)
		}
	}
	return out
}

// Device groups a machine's current state with its check-in history, newest first.
type Device struct {
	State   State
	History []Event
}

// Stats reports row counts of both tables.
type Stats struct {
	Laptops  int64 `json:"laptops" yaml:"laptops"`
	Checkins int64 `json:"checkins" yaml:"checkins"`
}

func parseDrives(raw json.RawMessage) []Drive {
	if len(raw) == 0 {
		return nil
	}
	var drives []Drive
	if err := json.Unmarshal(raw, &drives); err != nil {
		return nil
	}
	return drives
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
