// Package configs holds configuration templates embedded into the
// binary so `sentinel init` works from any install method.
package configs

import _ "embed"

// ConfigTemplate is the annotated sentinel.yaml starting point
// written by `sentinel init`.
//
//go:embed sentinel.example.yaml
var ConfigTemplate string
