// Package module defines the persisted shape of an extension module: the
// immutable Descriptor published by a content source and the Record the
// registry stores for each installed module, plus the registry-side error
// taxonomy (creation and loading failures).
package module
