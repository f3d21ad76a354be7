package sandbox

import (
	_ "embed"
)

// supportBundle is evaluated into every environment before the module
// script
//
//go:embed bundle/support.js
var supportBundle string
