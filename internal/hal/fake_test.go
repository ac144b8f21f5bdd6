package hal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeScriptedReadings(t *testing.T) {
	f := &Fake{
		Flames:    []FlameState{{Left: true}, {Center: true}},
		Distances: []Distance{10, 25.5},
	}

	assert.Equal(t, FlameState{Left: true}, f.ReadFlames())
	assert.Equal(t, Distance(10), f.MeasureDistance())

	assert.Equal(t, FlameState{Center: true}, f.ReadFlames())
	assert.Equal(t, Distance(25.5), f.MeasureDistance())

	// Exhausted scripts repeat the last sample.
	assert.Equal(t, FlameState{Center: true}, f.ReadFlames())
	assert.Equal(t, Distance(25.5), f.MeasureDistance())
}

func TestFakeNoScript(t *testing.T) {
	f := &Fake{}
	assert.Equal(t, FlameState{}, f.ReadFlames())
	assert.Equal(t, MaxDistance, f.MeasureDistance())
}

func TestFakeClampsDistance(t *testing.T) {
	f := &Fake{Distances: []Distance{-3, 900}}
	assert.Equal(t, Distance(0), f.MeasureDistance())
	assert.Equal(t, MaxDistance, f.MeasureDistance())
}

func TestFakeRecordsCalls(t *testing.T) {
	f := NewFake(FlameState{}, 100)

	f.ReadFlames()
	f.MeasureDistance()
	f.Drive(Forward(60))
	f.Pump(true)
	f.Buzz(3)
	f.Sleep(time.Second)
	f.Pump(false)

	want := []Call{
		{Op: OpFlames},
		{Op: OpMeasure},
		{Op: OpDrive, Command: Forward(60)},
		{Op: OpPump, On: true},
		{Op: OpBuzz, Pulses: 3},
		{Op: OpWait, Wait: time.Second},
		{Op: OpPump, On: false},
	}
	assert.Equal(t, want, f.Calls)
	assert.Equal(t, want[2:], f.Actuations())
}

func TestFakeDriveStopIdempotent(t *testing.T) {
	f := NewFake(FlameState{}, 100)
	f.Drive(Forward(90))

	f.Drive(Stop())
	once := f.State

	f.Drive(Stop())
	twice := f.State

	assert.Equal(t, once, twice)
	assert.Equal(t, Wheel{}, twice.Left)
	assert.Equal(t, Wheel{}, twice.Right)
}

func TestFakeClose(t *testing.T) {
	f := NewFake(FlameState{}, 100)
	f.Drive(Forward(70))
	f.Pump(true)

	require.NoError(t, f.Close())
	assert.True(t, f.State.Closed)
	assert.False(t, f.State.Pump)
	assert.Equal(t, Wheel{}, f.State.Left)
}

func TestFakeReset(t *testing.T) {
	f := &Fake{Flames: []FlameState{{Left: true}, {}}}
	f.ReadFlames()
	f.ReadFlames()

	f.Reset()

	assert.Empty(t, f.Calls)
	assert.Equal(t, FlameState{Left: true}, f.ReadFlames())
}

func TestCallString(t *testing.T) {
	assert.Equal(t, "FORWARD(70)", Call{Op: OpDrive, Command: Forward(70)}.String())
	assert.Equal(t, "PUMP_ON", Call{Op: OpPump, On: true}.String())
	assert.Equal(t, "PUMP_OFF", Call{Op: OpPump}.String())
	assert.Equal(t, "BUZZ(2)", Call{Op: OpBuzz, Pulses: 2}.String())
	assert.Equal(t, "WAIT(300ms)", Call{Op: OpWait, Wait: 300 * time.Millisecond}.String())
	assert.Equal(t, "MEASURE", Call{Op: OpMeasure}.String())
}

func TestFakeImplementsHAL(t *testing.T) {
	var _ HAL = (*Fake)(nil)
	var _ HAL = (*Driver)(nil)
}
