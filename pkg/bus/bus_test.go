package bus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNilBus(t *testing.T) {
	var b *Bus
	assert.Error(t, b.Publish(context.Background(), "inventory.checkin.recorded", map[string]any{}))
	assert.False(t, b.Connected())
	b.Close()
}

func TestNewRequiresURL(t *testing.T) {
	_, err := New("", "inventoryd")
	assert.Error(t, err)
}

func TestNewUnreachableServer(t *testing.T) {
	_, err := New("nats://127.0.0.1:1", "inventoryd")
	assert.Error(t, err)
}
