package uploads

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Extension allow-list: one archive format plus the text/config formats
// Minecraft server software actually ships.
var (
	archiveExtensions = map[string]struct{}{
		".zip": {},
	}
	textExtensions = map[string]struct{}{
		".yml":        {},
		".yaml":       {},
		".json":       {},
		".toml":       {},
		".txt":        {},
		".properties": {},
		".cfg":        {},
		".sk":         {},
	}
)

// CheckExtension validates the declared filename suffix against the
// allow-list. Pure, case-insensitive, runs before any content is read.
func CheckExtension(filename string) (string, *Rejection) {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := archiveExtensions[ext]; ok {
		return ext, nil
	}
	if _, ok := textExtensions[ext]; ok {
		return ext, nil
	}
	return ext, &Rejection{
		Reason:  ReasonDisallowedExtension,
		Message: fmt.Sprintf("file extension %q is not allowed; allowed extensions: %s", ext, allowedExtensionList()),
	}
}

// ClassifyContent sniffs the uploaded bytes and reconciles the result with the
// declared extension. It returns the sniffed media type (empty when the
// content has no recognizable magic bytes, which is normal for plain-text
// config formats) or a rejection.
func ClassifyContent(data []byte, ext string) (string, *Rejection) {
	mt := mimetype.Detect(data)

	// Plain text and opaque binary carry no distinguishing structure; the
	// declared extension is the only signal left.
	if mt.Is("text/plain") || mt.Is("application/octet-stream") {
		if _, ok := textExtensions[ext]; ok {
			return "", nil
		}
		return "", &Rejection{
			Reason:  ReasonUnverifiable,
			Message: fmt.Sprintf("content could not be verified for extension %q", ext),
		}
	}

	// Anti-disguise: archives and archive extensions must agree, in both
	// directions. A zip renamed to .yaml and a JPEG renamed to .zip are both
	// mismatches.
	isArchive := descendsFrom(mt, "application/zip")
	_, extIsArchive := archiveExtensions[ext]
	if isArchive != extIsArchive {
		return "", &Rejection{
			Reason:  ReasonContentMismatch,
			Message: fmt.Sprintf("content type %s does not match declared extension %q", mt.String(), ext),
		}
	}
	if isArchive {
		return mt.String(), nil
	}

	// Recognized structured text (JSON, CSV, ...) under a text extension.
	if descendsFrom(mt, "text/plain") {
		return mt.String(), nil
	}

	return "", &Rejection{
		Reason:  ReasonDisallowedContent,
		Message: fmt.Sprintf("content type %s is not allowed", mt.String()),
	}
}

// descendsFrom reports whether mt or any of its ancestors is the given type.
func descendsFrom(mt *mimetype.MIME, mime string) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is(mime) {
			return true
		}
	}
	return false
}

func allowedExtensionList() string {
	exts := make([]string, 0, len(archiveExtensions)+len(textExtensions))
	for ext := range archiveExtensions {
		exts = append(exts, ext)
	}
	for ext := range textExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return strings.Join(exts, ", ")
}
