package channel

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frameflow/frameflow/control"
)

type busConfig struct{}

func (busConfig) GetControlBus() string { return BusName }
func (busConfig) GetNATSURL() string    { return "" }

func TestRegisteredWithDefaultRegistry(t *testing.T) {
	assert.True(t, control.DefaultRegistry.Has(BusName))
}

func TestBuild(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus, err := Build(ctx, busConfig{}, watermill.NopLogger{})
	require.NoError(t, err)
	require.NotNil(t, bus.Publisher)
	require.NotNil(t, bus.Subscriber)
	defer bus.Close()

	cmds, err := control.Listen(ctx, bus.Subscriber, "t.control", watermill.NopLogger{})
	require.NoError(t, err)

	pub := control.NewPublisher(bus.Publisher, "t.control")
	require.NoError(t, pub.Publish(control.Terminate))

	select {
	case cmd := <-cmds:
		assert.Equal(t, control.Terminate, cmd)
	case <-time.After(2 * time.Second):
		t.Fatal("command not delivered through channel bus")
	}
}

// TestCommandBurstsKeepPublishOrder guards the state machine against command
// reordering: a controller publishing PAUSE then RESUME must never have a
// relay observe RESUME first and stay paused forever.
func TestCommandBurstsKeepPublishOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus, err := Build(ctx, busConfig{}, watermill.NopLogger{})
	require.NoError(t, err)
	defer bus.Close()

	cmds, err := control.Listen(ctx, bus.Subscriber, "t.control", watermill.NopLogger{})
	require.NoError(t, err)

	pub := control.NewPublisher(bus.Publisher, "t.control")
	burst := []control.Command{control.Pause, control.Resume, control.Terminate}
	for round := 0; round < 10; round++ {
		for _, cmd := range burst {
			require.NoError(t, pub.Publish(cmd))
		}
		for _, want := range burst {
			select {
			case got := <-cmds:
				require.Equal(t, want, got, "round %d", round)
			case <-time.After(2 * time.Second):
				t.Fatalf("round %d: command %v not delivered", round, want)
			}
		}
	}
}
