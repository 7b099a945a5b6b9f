// file: internal/tagger/taglib_stub.go
// version: 2.0.0
// guid: 4f3e2d1c-0b9a-8d7e-6c5b-4a3f2e1d0c9b

//go:build !taglib

package tagger

import (
	"errors"

	"github.com/walsoup/MusicMetadataFetcher/internal/models"
)

// ErrTaglibUnavailable is returned when the binary was built without TagLib.
var ErrTaglibUnavailable = errors.New("taglib support not compiled in")

// taglibAvailable false when not built with taglib
var taglibAvailable = false

// readWithTaglib stub when taglib not compiled in
func readWithTaglib(string) (models.TagFields, error) {
	return models.TagFields{}, ErrTaglibUnavailable
}
