package condition

// ApplyDeadzone snaps value to center when |value-center| < width.
func ApplyDeadzone(value, center, width int) int {
	d := value - center
	if d < 0 {
		d = -d
	}
	if d < width {
		return center
	}
	return value
}
