package inventory

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateDriveSerials(t *testing.T) {
	tests := []struct {
		name   string
		drives string
		want   []string
	}{
		{name: "no drives", drives: `[]`, want: nil},
		{
			name:   "null and absent serials skipped",
			drives: `[{"model":"a","device_id":"0","serial_number":null},{"model":"b","device_id":"1"},{"model":"c","device_id":"2","serial_number":"S2"}]`,
			want:   []string{"S2"},
		},
		{
			name:   "empty serial kept",
			drives: `[{"model":"a","device_id":"0","serial_number":""},{"model":"b","device_id":"1","serial_number":"S1"}]`,
			want:   []string{"", "S1"},
		},
		{name: "malformed snapshot", drives: `{`, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := State{Drives: json.RawMessage(tt.drives)}
			assert.Equal(t, tt.want, st.DriveSerials())
		})
	}
}
