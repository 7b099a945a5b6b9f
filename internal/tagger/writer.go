// file: internal/tagger/writer.go
// version: 2.1.0
// guid: 90aad5d2-e783-4e48-a327-5933d3d95d4b

package tagger

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/bogem/id3v2/v2"

	"github.com/walsoup/MusicMetadataFetcher/internal/fileops"
	"github.com/walsoup/MusicMetadataFetcher/internal/models"
)

// ErrTagWrite is returned when a tag set cannot be saved. The file is
// restored from its backup before the error is returned.
var ErrTagWrite = errors.New("tag write failed")

// Descriptions of the user-defined text frames carrying enrichment data.
const (
	txxxMood         = "Mood"
	txxxDanceability = "Danceability"
	txxxPopularity   = "Popularity"
)

// textFrames maps the plain text fields to their ID3v2.4 frame IDs.
var textFrames = []struct {
	id  string
	get func(models.TagFields) string
}{
	{"TPE1", func(t models.TagFields) string { return t.Artist }},
	{"TIT2", func(t models.TagFields) string { return t.Title }},
	{"TALB", func(t models.TagFields) string { return t.Album }},
	{"TPE2", func(t models.TagFields) string { return t.AlbumArtist }},
	{"TCON", func(t models.TagFields) string { return t.Genre }},
	{"TDRC", func(t models.TagFields) string { return t.Year }},
	{"TRCK", func(t models.TagFields) string { return t.TrackNumber }},
}

// WriteTags saves final into the ID3v2.4 tag of the file at path. Only the
// frames whose field differs from the file's current value are touched, so
// date precision, extra comments and unknown frames survive. Fields that
// are empty in final are removed. An exclusive set drops every other frame
// first. The file is backed up beforehand and restored on failure.
func WriteTags(path string, final models.FinalTagSet, backup fileops.OperationConfig) error {
	err := fileops.SafeModify(path, backup, func() error {
		return writeID3(path, final)
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTagWrite, path, err)
	}
	return nil
}

// currentFields returns what ReadTags reports for the file's ID3v2 tag.
// Anything else compares as empty so every field is written.
func currentFields(path string) models.TagFields {
	fields, isID3v2, err := readTags(path)
	if err != nil || !isID3v2 {
		return models.TagFields{}
	}
	return fields
}

func writeID3(path string, final models.FinalTagSet) error {
	var current models.TagFields
	if !final.Exclusive {
		current = currentFields(path)
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("open id3 tag: %w", err)
	}
	defer tag.Close()

	if final.Exclusive {
		tag.DeleteAllFrames()
	}
	tag.SetVersion(4)
	tag.SetDefaultEncoding(id3v2.EncodingUTF8)

	fields := final.Tags
	for _, tf := range textFrames {
		value := tf.get(fields)
		if value == tf.get(current) {
			continue
		}
		if tf.id == "TDRC" {
			// Years written by older taggers live in TYER.
			tag.DeleteFrames("TYER")
		}
		setText(tag, tf.id, value)
	}

	if fields.Comment != current.Comment {
		setPlainComment(tag, fields.Comment)
	}

	if fields.Lyrics != current.Lyrics {
		tag.DeleteFrames("USLT")
		if fields.Lyrics != "" {
			tag.AddUnsynchronisedLyricsFrame(id3v2.UnsynchronisedLyricsFrame{
				Encoding: id3v2.EncodingUTF8,
				Language: "eng",
				Lyrics:   fields.Lyrics,
			})
		}
	}

	if !fields.CoverArt.Equal(current.CoverArt) {
		setPicture(tag, fields.CoverArt)
	}

	if e := final.Enrichment; e != nil {
		setEnrichment(tag, e)
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("save id3 tag: %w", err)
	}
	return nil
}

// setPlainComment replaces the COMM frames without a description. Described
// comments are kept.
func setPlainComment(tag *id3v2.Tag, text string) {
	var keep []id3v2.CommentFrame
	for _, f := range tag.GetFrames("COMM") {
		if cf, ok := f.(id3v2.CommentFrame); ok && cf.Description != "" {
			keep = append(keep, cf)
		}
	}
	tag.DeleteFrames("COMM")
	for _, cf := range keep {
		tag.AddCommentFrame(cf)
	}
	if text != "" {
		tag.AddCommentFrame(id3v2.CommentFrame{
			Encoding: id3v2.EncodingUTF8,
			Language: "eng",
			Text:     text,
		})
	}
}

func setText(tag *id3v2.Tag, id, value string) {
	tag.DeleteFrames(id)
	if value != "" {
		tag.AddTextFrame(id, id3v2.EncodingUTF8, value)
	}
}

// setPicture leaves existing pictures alone when one of them already holds
// the wanted image; otherwise all pictures are replaced by pic.
func setPicture(tag *id3v2.Tag, pic *models.Picture) {
	if pic != nil && len(pic.Data) > 0 {
		for _, f := range tag.GetFrames("APIC") {
			if pf, ok := f.(id3v2.PictureFrame); ok && bytes.Equal(pf.Picture, pic.Data) {
				return
			}
		}
	}

	tag.DeleteFrames("APIC")
	if pic == nil || len(pic.Data) == 0 {
		return
	}
	mime := pic.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	desc := pic.Description
	if desc == "" {
		desc = "Cover"
	}
	tag.AddAttachedPicture(id3v2.PictureFrame{
		Encoding:    id3v2.EncodingUTF8,
		MimeType:    mime,
		PictureType: id3v2.PTFrontCover,
		Description: desc,
		Picture:     pic.Data,
	})
}

// setEnrichment writes the audio attribute frames. Zero values leave the
// corresponding frame out. Unrelated TXXX frames are kept.
func setEnrichment(tag *id3v2.Tag, e *models.Enrichment) {
	if e.BPM > 0 {
		setText(tag, "TBPM", strconv.Itoa(e.BPM))
	}
	if e.Key != "" {
		setText(tag, "TKEY", e.Key)
	}

	values := map[string]string{}
	if e.Mood != "" {
		values[txxxMood] = e.Mood
	}
	if e.Danceability > 0 {
		values[txxxDanceability] = strconv.Itoa(e.Danceability)
	}
	if e.Popularity > 0 {
		values[txxxPopularity] = strconv.Itoa(e.Popularity)
	}
	if len(values) == 0 {
		return
	}

	var keep []id3v2.UserDefinedTextFrame
	for _, f := range tag.GetFrames("TXXX") {
		udtf, ok := f.(id3v2.UserDefinedTextFrame)
		if !ok {
			continue
		}
		if _, replaced := values[udtf.Description]; !replaced {
			keep = append(keep, udtf)
		}
	}
	tag.DeleteFrames("TXXX")
	for _, udtf := range keep {
		tag.AddUserDefinedTextFrame(udtf)
	}
	for _, desc := range []string{txxxMood, txxxDanceability, txxxPopularity} {
		if v, ok := values[desc]; ok {
			tag.AddUserDefinedTextFrame(id3v2.UserDefinedTextFrame{
				Encoding:    id3v2.EncodingUTF8,
				Description: desc,
				Value:       v,
			})
		}
	}
}
