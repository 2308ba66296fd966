// Package catalog talks to the report server's REST catalog: it lists folder
// contents and fetches item content.
package catalog

import (
	"bytes"
	"encoding/json"

	apperrors "pbimirror/internal/errors"
)

// Kind classifies a catalog entry by how the mirror handles it.
type Kind int

const (
	KindUnknown Kind = iota
	KindFolder
	KindWorkbook
	KindResource
)

// Remote type strings returned in the Type field.
const (
	TypeFolder        = "Folder"
	TypeExcelWorkbook = "ExcelWorkbook"
	TypeResource      = "Resource"
	TypePdf           = "Pdf"
	TypePng           = "Png"
	TypeJpeg          = "Jpeg"
)

// WorkbookExtension is appended to workbook names to form the local filename.
const WorkbookExtension = ".xlsx"

// ParseKind maps a remote type string onto a Kind. Unrecognized types are KindUnknown.
func ParseKind(remoteType string) Kind {
	switch remoteType {
	case TypeFolder:
		return KindFolder
	case TypeExcelWorkbook:
		return KindWorkbook
	case TypeResource, TypePdf, TypePng, TypeJpeg:
		return KindResource
	default:
		return KindUnknown
	}
}

func (k Kind) String() string {
	switch k {
	case KindFolder:
		return "folder"
	case KindWorkbook:
		return "workbook"
	case KindResource:
		return "resource"
	default:
		return "unknown"
	}
}

// Item is one entry of a folder listing.
type Item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind Kind   `json:"-"`
	// Type is the raw remote type, kept for logging and resource subtypes.
	Type string `json:"type"`
}

// Filename is the local filename for a file item: workbooks gain an .xlsx
// extension, resources keep their name. Folders and unknown kinds return "".
func (i Item) Filename() string {
	switch i.Kind {
	case KindWorkbook:
		return i.Name + WorkbookExtension
	case KindResource:
		return i.Name
	default:
		return ""
	}
}

// MalformedEntry is a listing entry that lacks one of Id, Name or Type.
type MalformedEntry struct {
	Raw json.RawMessage
	Err error
}

// Listing is the decoded content of a folder.
type Listing struct {
	Items     []Item
	Malformed []MalformedEntry
}

// rawItem uses pointers so absent and null fields can be told apart from empty strings.
type rawItem struct {
	ID   *string `json:"Id"`
	Name *string `json:"Name"`
	Type *string `json:"Type"`
}

type listingEnvelope struct {
	Value []json.RawMessage `json:"value"`
}

// DecodeListing parses a folder-listing response body. A missing value key is
// an empty listing. Entries that are not objects with string Id, Name and Type
// are collected in Malformed; only an undecodable envelope is an error.
func DecodeListing(body []byte) (*Listing, error) {
	var env listingEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, apperrors.NewParsingError("failed to decode folder listing", err)
	}

	listing := &Listing{Items: make([]Item, 0, len(env.Value))}
	for _, raw := range env.Value {
		item, err := decodeItem(raw)
		if err != nil {
			listing.Malformed = append(listing.Malformed, MalformedEntry{Raw: raw, Err: err})
			continue
		}
		listing.Items = append(listing.Items, item)
	}
	return listing, nil
}

func decodeItem(raw json.RawMessage) (Item, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Item{}, apperrors.NewUnexpectedItemShapeError("entry is not an object")
	}

	var ri rawItem
	if err := json.Unmarshal(trimmed, &ri); err != nil {
		return Item{}, apperrors.NewUnexpectedItemShapeError("entry fields have unexpected types").
			WithContext("cause", err.Error())
	}

	switch {
	case ri.ID == nil:
		return Item{}, apperrors.NewUnexpectedItemShapeError("entry has no Id")
	case ri.Name == nil:
		return Item{}, apperrors.NewUnexpectedItemShapeError("entry has no Name")
	case ri.Type == nil:
		return Item{}, apperrors.NewUnexpectedItemShapeError("entry has no Type")
	}

	return Item{
		ID:   *ri.ID,
		Name: *ri.Name,
		Kind: ParseKind(*ri.Type),
		Type: *ri.Type,
	}, nil
}
