// Package testhelper holds go-cmp options shared across test packages.
package testhelper

import (
	"github.com/google/go-cmp/cmp"
)

// IgnoreModel ignores the embedded gorm.Model when comparing persisted
// records, so assertions are not coupled to IDs and bookkeeping timestamps.
func IgnoreModel() cmp.Option {
	return cmp.FilterPath(func(p cmp.Path) bool {
		for _, step := range p {
			if field, ok := step.(cmp.StructField); ok && field.Name() == "Model" {
				return true
			}
		}
		return false
	}, cmp.Ignore())
}
