// file: internal/tagger/taglib_support.go
// version: 2.0.0
// guid: 0c1d2e3f-4a5b-6c7d-8e9f-0a1b2c3d4e5f

//go:build taglib
// +build taglib

// TagLib native reader support (optional via build tag 'taglib'). Default build without tag excludes this file.

package tagger

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	taglib "go.senan.xyz/taglib"

	"github.com/walsoup/MusicMetadataFetcher/internal/models"
)

// ErrTaglibUnavailable is returned when the binary was built without TagLib.
var ErrTaglibUnavailable = errors.New("taglib support not compiled in")

// taglibAvailable indicates native taglib path compiled in
var taglibAvailable = true

// readWithTaglib reads the text fields TagLib exposes. Pictures are not
// returned by this path.
func readWithTaglib(path string) (models.TagFields, error) {
	abs, _ := filepath.Abs(path)
	tags, err := taglib.ReadTags(abs)
	if err != nil {
		return models.TagFields{}, fmt.Errorf("taglib read failed: %w", err)
	}

	first := func(keys ...string) string {
		for _, k := range keys {
			if v := tags[k]; len(v) > 0 && strings.TrimSpace(v[0]) != "" {
				return strings.TrimSpace(v[0])
			}
		}
		return ""
	}

	fields := models.TagFields{
		Artist:      first("ARTIST"),
		Title:       first("TITLE"),
		Album:       first(taglib.Album),
		AlbumArtist: first(taglib.AlbumArtist),
		Genre:       first("GENRE"),
		TrackNumber: first("TRACKNUMBER"),
		Comment:     first("COMMENT"),
		Lyrics:      first("LYRICS"),
	}
	if date := first("DATE"); len(date) >= 4 {
		fields.Year = date[:4]
	}
	return fields, nil
}
