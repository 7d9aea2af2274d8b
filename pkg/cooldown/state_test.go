package cooldown

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/orneryd/navpath/pkg/snapshot"
)

func TestWaitStaysCooldownGatedAfterChargesExhausted(t *testing.T) {
	f := NewFamilyState(4, FamilyConfig{Enabled: true, InitialCharges: 1, CooldownMS: 1000})

	wait, ok := f.Wait(snapshot.NodeID(0), 0)
	assert.True(t, ok)
	assert.Equal(t, uint32(0), wait)

	f.Fire(snapshot.NodeID(1), 0, f.ChargesAt(snapshot.NodeID(0)))
	assert.Equal(t, int8(0), f.ChargesAt(snapshot.NodeID(1)), "single charge should be exhausted after firing once")

	wait, ok = f.Wait(snapshot.NodeID(1), 0)
	assert.True(t, ok, "exhausted charges must still allow further waits, gated by cooldown rather than denied")
	assert.Equal(t, uint32(1000), wait, "must wait out the full cooldown once charges are exhausted")

	wait, ok = f.Wait(snapshot.NodeID(1), 2000)
	assert.True(t, ok)
	assert.Equal(t, uint32(0), wait, "cooldown elapsed, no further wait required")
}

func TestInitialChargesClampsInsteadOfWrappingNegative(t *testing.T) {
	f := NewFamilyState(4, FamilyConfig{Enabled: true, InitialCharges: 200, CooldownMS: 1000})
	assert.Equal(t, int8(127), f.ChargesAt(snapshot.NodeID(0)), "charges above int8 range must clamp, not wrap negative")
}

func TestWaitUnlimitedChargesNeverExhaust(t *testing.T) {
	f := NewFamilyState(4, FamilyConfig{Enabled: true, InitialCharges: 0, CooldownMS: 500})

	for i := 0; i < 5; i++ {
		_, ok := f.Wait(snapshot.NodeID(2), 0)
		assert.True(t, ok)
		f.Fire(snapshot.NodeID(2), 0, f.ChargesAt(snapshot.NodeID(2)))
	}
}

func TestWaitFoldsCooldownIntoCost(t *testing.T) {
	f := NewFamilyState(4, FamilyConfig{Enabled: true, InitialCharges: 0, CooldownMS: 1000})
	f.Fire(snapshot.NodeID(0), 100, f.ChargesAt(snapshot.NodeID(0))) // ready at 100+1000=1100

	wait, ok := f.Wait(snapshot.NodeID(0), 500)
	assert.True(t, ok)
	assert.Equal(t, uint32(600), wait, "must wait until readyMS=1100 from g=500")

	wait, ok = f.Wait(snapshot.NodeID(0), 2000)
	assert.True(t, ok)
	assert.Equal(t, uint32(0), wait, "already past ready time, no extra wait")
}

func TestResetClearsAllNodes(t *testing.T) {
	f := NewFamilyState(4, FamilyConfig{Enabled: true, InitialCharges: 1, CooldownMS: 1000})
	f.Fire(snapshot.NodeID(0), 0, 1)

	_, _, touched := f.at(snapshot.NodeID(0))
	assert.True(t, touched)

	f.Reset()
	_, _, touched = f.at(snapshot.NodeID(0))
	assert.False(t, touched, "Reset must logically clear every node via generation bump")
}

func TestImprovesAlwaysTrueWhenUntouched(t *testing.T) {
	f := NewFamilyState(4, FamilyConfig{Enabled: true, CooldownMS: 1000})
	assert.True(t, f.Improves(snapshot.NodeID(0), 0, 999, 999, 50))
}

func TestImprovesOnLowerG(t *testing.T) {
	f := NewFamilyState(4, FamilyConfig{Enabled: true, CooldownMS: 1000})
	f.set(snapshot.NodeID(0), 1500, 0)
	assert.True(t, f.Improves(snapshot.NodeID(0), 500, 400, 2000, 50))
	assert.False(t, f.Improves(snapshot.NodeID(0), 500, 500, 2000, 50))
}

func TestImprovesOnLowerReadyWithinSlack(t *testing.T) {
	f := NewFamilyState(4, FamilyConfig{Enabled: true, CooldownMS: 1000})
	f.set(snapshot.NodeID(0), 1500, 0)

	assert.True(t, f.Improves(snapshot.NodeID(0), 500, 530, 1400, 50), "within slack and readyMS improves")
	assert.False(t, f.Improves(snapshot.NodeID(0), 500, 600, 1400, 50), "outside slack should not improve")
}
