package overlay

// PlacePronouns positions the pronoun box next to the name box.
//
// The pronouns go to the right of the name, margin pixels away, as long as
// their right edge stays within maxX. Otherwise they drop below the name,
// centred under it. Only the position changes; the size is kept.
func PlacePronouns(name, pronouns Geometry, margin, maxX float64) Geometry {
	placed := pronouns

	right := name.Right() + margin
	if right+pronouns.Width <= maxX {
		placed.X = right
		placed.Y = name.Y
		return placed
	}

	placed.X = name.X + (name.Width-pronouns.Width)/2
	placed.Y = name.Y + name.Height
	return placed
}
