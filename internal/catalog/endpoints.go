package catalog

import (
	"fmt"
	"strings"

	"pbimirror/internal/config"
)

// pathSafe are the characters left unescaped besides letters, digits and "_.-~".
const pathSafe = "/:?=&"

const upperhex = "0123456789ABCDEF"

// EncodePath percent-encodes an endpoint path byte by byte, leaving unreserved
// characters and the structural characters / : ? = & untouched. Non-ASCII
// characters are encoded as their UTF-8 bytes.
func EncodePath(path string) string {
	var b strings.Builder
	b.Grow(len(path))
	for i := 0; i < len(path); i++ {
		c := path[i]
		if shouldKeep(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

func shouldKeep(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '_' || c == '.' || c == '-' || c == '~':
		return true
	}
	return strings.IndexByte(pathSafe, c) >= 0
}

// FolderRef identifies a folder by path (the run root) or by id (sub-folders).
type FolderRef struct {
	path string
	id   string
}

// ByPath refers to a folder by its server path, e.g. "/Bio/Reports".
func ByPath(path string) FolderRef {
	return FolderRef{path: path}
}

// ByID refers to a folder by its catalog id.
func ByID(id string) FolderRef {
	return FolderRef{id: id}
}

// Endpoint returns the unencoded listing endpoint path.
func (r FolderRef) Endpoint() string {
	if r.id != "" {
		return fmt.Sprintf(config.FolderByIDPattern, r.id)
	}
	return fmt.Sprintf(config.FolderByPathPattern, r.path)
}

func (r FolderRef) String() string {
	if r.id != "" {
		return "id:" + r.id
	}
	return "path:" + r.path
}

// ListURL is the encoded listing URL for ref under baseURL.
func ListURL(baseURL string, ref FolderRef) string {
	return strings.TrimRight(baseURL, "/") + EncodePath(ref.Endpoint())
}

// ContentURL is the content URL for an item. It is not re-encoded.
func ContentURL(baseURL, itemID string) string {
	return strings.TrimRight(baseURL, "/") + fmt.Sprintf(config.ContentPattern, itemID)
}
