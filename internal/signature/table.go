package signature

import "github.com/Qwejay/Qconverto/models"

func sig(label string, cat models.Category, offset int, prefix string, markers ...Marker) Signature {
	return Signature{Label: label, Category: cat, Offset: offset, Prefix: []byte(prefix), Markers: markers}
}

func at(offset int, b string) Marker {
	return Marker{Offset: offset, Bytes: []byte(b)}
}

func anywhere(b string) Marker {
	return Marker{Offset: Anywhere, Bytes: []byte(b)}
}

// builtin is the signature table for every catalog input format that has a magic number.
func builtin() []Signature {
	img, aud, vid, doc := models.CategoryImage, models.CategoryAudio, models.CategoryVideo, models.CategoryDocument

	sigs := []Signature{
		sig("png", img, 0, "\x89PNG\r\n\x1a\n"),
		sig("jpg", img, 0, "\xff\xd8\xff"),
		sig("gif", img, 0, "GIF87a"),
		sig("gif", img, 0, "GIF89a"),
		sig("bmp", img, 0, "BM"),
		sig("ico", img, 0, "\x00\x00\x01\x00"),
		sig("webp", img, 0, "RIFF", at(8, "WEBP")),

		sig("wav", aud, 0, "RIFF", at(8, "WAVE")),
		sig("mp3", aud, 0, "ID3"),
		sig("mp3", aud, 0, "\xff\xfb"),
		sig("mp3", aud, 0, "\xff\xf3"),
		sig("mp3", aud, 0, "\xff\xf2"),
		sig("aac", aud, 0, "\xff\xf1"),
		sig("aac", aud, 0, "\xff\xf9"),
		sig("flac", aud, 0, "fLaC"),
		sig("ogg", aud, 0, "OggS"),
		sig("ape", aud, 0, "MAC "),
		sig("wv", aud, 0, "wvpk"),
		sig("m4a", aud, 4, "ftyp", at(8, "M4A ")),
	}

	for _, brand := range []string{"isom", "iso2", "mp41", "mp42", "avc1", "dash"} {
		sigs = append(sigs, sig("mp4", vid, 4, "ftyp", at(8, brand)))
	}

	sigs = append(sigs,
		sig("mov", vid, 4, "ftyp", at(8, "qt  ")),
		sig("mov", vid, 4, "moov"),
		sig("mov", vid, 4, "mdat"),
		sig("mov", vid, 4, "wide"),
		sig("avi", vid, 0, "RIFF", at(8, "AVI ")),
		sig("mkv", vid, 0, "\x1a\x45\xdf\xa3", anywhere("matroska")),
		sig("webm", vid, 0, "\x1a\x45\xdf\xa3", anywhere("webm")),
		sig("flv", vid, 0, "FLV\x01"),
		sig("wmv", vid, 0, "\x30\x26\xb2\x75\x8e\x66\xcf\x11"),

		sig("pdf", doc, 0, "%PDF-"),
		sig("doc", doc, 0, "\xd0\xcf\x11\xe0\xa1\xb1\x1a\xe1"),
		sig("docx", doc, 0, "PK\x03\x04", anywhere("word/")),
	)
	return sigs
}
