package physics

// ProjectileBody is the kinematic state of one projectile: straight-
// line motion at constant velocity (no drag, no gravity — a tank
// shell in this arena travels in a flat line until it hits something
// or expires).
type ProjectileBody struct {
	Position Vec2
	Velocity Vec2
}

// Step advances the projectile's position by one tick of dt. Callers
// must capture Velocity into a pre-step snapshot before calling Step,
// per the penetration rule's need for pre-collision speed.
func (p *ProjectileBody) Step(dt float64) {
	p.Position = p.Position.Add(p.Velocity.Scale(dt))
}

// OutOfBounds reports whether the projectile's position has left the
// rectangular map [0,mapWidth] x [0,mapHeight].
func (p *ProjectileBody) OutOfBounds(mapWidth, mapHeight float64) bool {
	return p.Position.X < 0 || p.Position.X > mapWidth || p.Position.Y < 0 || p.Position.Y > mapHeight
}
