package physics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTankBodyStepMovesForward(t *testing.T) {
	b := &TankBody{HullAngle: 0}
	b.Step(TrackedDriveInput{MoveDir: 1}, 0, 100, 1.0/30)
	assert.Greater(t, b.Position.X, 0.0)
	assert.InDelta(t, 0, b.Position.Y, 1e-9)
}

func TestTurretSlewsTowardTargetAndStops(t *testing.T) {
	b := &TankBody{TurretAngle: 0}
	for i := 0; i < 1000; i++ {
		b.stepTurret(math.Pi/2, 1.0/30)
	}
	assert.InDelta(t, math.Pi/2, b.TurretAngle, 0.05)
}

func TestTurretDeadZoneHoldsStill(t *testing.T) {
	b := &TankBody{TurretAngle: 0.1}
	b.stepTurret(0.1+turretDeadZoneRad/2, 1.0/30)
	assert.Equal(t, 0.1, b.TurretAngle)
}

func TestShortestAngleDeltaWrapsCorrectly(t *testing.T) {
	delta := ShortestAngleDelta(math.Pi-0.1, -math.Pi+0.1)
	assert.InDelta(t, 0.2, delta, 1e-9)
}

func TestProjectileStepAndOutOfBounds(t *testing.T) {
	p := &ProjectileBody{Position: Vec2{X: 990, Y: 500}, Velocity: Vec2{X: 100, Y: 0}}
	p.Step(1)
	assert.True(t, p.OutOfBounds(1000, 1000))
}

func TestCircleOverlap(t *testing.T) {
	assert.True(t, CircleOverlap(Vec2{0, 0}, 10, Vec2{5, 0}, 10))
	assert.False(t, CircleOverlap(Vec2{0, 0}, 1, Vec2{100, 0}, 1))
}

func TestContactNormalPointsFromAToB(t *testing.T) {
	n := ContactNormal(Vec2{0, 0}, Vec2{10, 0})
	assert.InDelta(t, 1, n.X, 1e-9)
	assert.InDelta(t, 0, n.Y, 1e-9)
}
