package physics

// TankRadius and ProjectileRadius are the circle-collider radii used
// for contact detection. The hull is approximated as a circle, which
// is adequate at this game's scale and keeps contact tests O(1).
const (
	TankRadius       = 18.0
	ProjectileRadius = 2.5
	CrateRadius      = 22.0
	AmmoBoxRadius    = 14.0
)

// CircleOverlap reports whether two circles, given by center and
// radius, overlap.
func CircleOverlap(centerA Vec2, radiusA float64, centerB Vec2, radiusB float64) bool {
	d := centerA.Sub(centerB)
	r := radiusA + radiusB
	return d.Dot(d) <= r*r
}

// ContactNormal returns the unit normal pointing from center A toward
// center B, i.e. the direction a projectile at A is "moving into" a
// tank at B. If the centers coincide, returns the zero vector.
func ContactNormal(centerA, centerB Vec2) Vec2 {
	return centerB.Sub(centerA).Normalized()
}
