package ui

// Config holds window chrome settings; everything else (palette, audio,
// save slots) is host-surface decoration out of this core's scope.
type Config struct {
	Title string // window title
	Scale int    // integer upscaling factor
}

// Defaults fills missing fields with reasonable defaults.
func (c *Config) Defaults() {
	if c.Title == "" {
		c.Title = "dmgcore"
	}
	if c.Scale <= 0 {
		c.Scale = 3
	}
}
