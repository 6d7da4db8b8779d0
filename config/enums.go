package config

// Visual variant of the annotation box.
// ENUM(classic, minimal, script)
type BoxStyle int
