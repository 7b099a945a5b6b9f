// file: internal/tagger/reader.go
// version: 2.1.0
// guid: 3b4c5d6e-7f8a-9b0c-1d2e-3f4a5b6c7d8e

package tagger

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/dhowden/tag"

	"github.com/walsoup/MusicMetadataFetcher/internal/models"
)

// ErrTagRead is returned when a file's tags cannot be parsed.
var ErrTagRead = errors.New("tag read failed")

// ReadTags reads the tag fields of an audio file. A file without tags
// yields empty fields and no error. When the pure-Go reader cannot parse
// the file and TagLib support is compiled in, TagLib is tried instead.
func ReadTags(path string) (models.TagFields, error) {
	fields, _, err := readTags(path)
	return fields, err
}

// readTags is ReadTags that also reports whether the fields came from an
// ID3v2 tag.
func readTags(path string) (models.TagFields, bool, error) {
	var fields models.TagFields

	f, err := os.Open(path)
	if err != nil {
		return fields, false, fmt.Errorf("error opening file: %w", err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if errors.Is(err, tag.ErrNoTagsFound) {
		return fields, false, nil
	}
	if err != nil {
		if taglibAvailable {
			if tf, tlErr := readWithTaglib(path); tlErr == nil {
				return tf, false, nil
			}
		}
		return fields, false, fmt.Errorf("%w: %s: %w", ErrTagRead, path, err)
	}

	fields = fieldsFromMetadata(m)
	isID3v2 := false
	switch m.Format() {
	case tag.ID3v2_2, tag.ID3v2_3, tag.ID3v2_4:
		isID3v2 = true
		if comment, year, err := id3v2Details(path); err == nil {
			fields.Comment = comment
			fields.Year = year
		}
	}
	return fields, isID3v2, nil
}

// id3v2Details reads the fields the generic reader flattens badly: the
// text of the first COMM frame without a description (described comments
// carry player data such as iTunNORM) and the year of a full TDRC date.
func id3v2Details(path string) (comment, year string, err error) {
	t, err := id3v2.Open(path, id3v2.Options{Parse: true, ParseFrames: []string{"COMM", "TDRC", "TYER"}})
	if err != nil {
		return "", "", err
	}
	defer t.Close()
	for _, f := range t.GetFrames("COMM") {
		if cf, ok := f.(id3v2.CommentFrame); ok && cf.Description == "" {
			comment = strings.TrimSpace(cf.Text)
			break
		}
	}
	for _, id := range []string{"TDRC", "TYER"} {
		if y := leadingYear(t.GetTextFrame(id).Text); y != "" {
			return comment, y, nil
		}
	}
	return comment, "", nil
}

func leadingYear(date string) string {
	date = strings.TrimSpace(date)
	if len(date) < 4 {
		return ""
	}
	if n, err := strconv.Atoi(date[:4]); err != nil || n <= 0 {
		return ""
	}
	return date[:4]
}

func fieldsFromMetadata(m tag.Metadata) models.TagFields {
	fields := models.TagFields{
		Artist:      strings.TrimSpace(m.Artist()),
		Title:       strings.TrimSpace(m.Title()),
		Album:       strings.TrimSpace(m.Album()),
		AlbumArtist: strings.TrimSpace(m.AlbumArtist()),
		Genre:       strings.TrimSpace(m.Genre()),
		Comment:     strings.TrimSpace(m.Comment()),
		Lyrics:      m.Lyrics(),
	}
	if y := m.Year(); y > 0 {
		fields.Year = strconv.Itoa(y)
	}
	fields.TrackNumber = formatTrack(m.Track())

	if p := m.Picture(); p != nil && len(p.Data) > 0 {
		mime := p.MIMEType
		if mime == "" {
			mime = mimeFromExt(p.Ext)
		}
		fields.CoverArt = &models.Picture{
			MIMEType:    mime,
			Description: p.Description,
			Data:        p.Data,
		}
	}
	return fields
}

func formatTrack(n, total int) string {
	switch {
	case n <= 0:
		return ""
	case total > 0:
		return strconv.Itoa(n) + "/" + strconv.Itoa(total)
	default:
		return strconv.Itoa(n)
	}
}

func mimeFromExt(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	default:
		return "image/jpeg"
	}
}
