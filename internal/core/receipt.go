package core

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	// DataURLPrefix marks receipt references that still hold the image
	// itself and have not been uploaded yet.
	DataURLPrefix = "data:"

	// DriveViewURL is the public view link for an uploaded document id.
	DriveViewURL = "https://drive.google.com/uc?export=view&id="
)

var (
	ErrInvalidDataURL = errors.New("invalid data url")

	unsafeFilenameChars = regexp.MustCompile(`[^\w가-힣_.-]`)
)

// Receipt is an image payload on its way to document storage.
type Receipt struct {
	Filename string
	MimeType string
	Data     []byte
}

// IsPendingReceipt reports whether ref is an inline image that the mirror
// still has to upload.
func IsPendingReceipt(ref string) bool {
	return strings.HasPrefix(ref, DataURLPrefix)
}

// ParseDataURL decodes a base64 data URL into its mime type and payload.
func ParseDataURL(ref string) (string, []byte, error) {
	if !IsPendingReceipt(ref) {
		return "", nil, ErrInvalidDataURL
	}
	meta, payload, ok := strings.Cut(strings.TrimPrefix(ref, DataURLPrefix), ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return "", nil, ErrInvalidDataURL
	}
	mime := strings.TrimSuffix(meta, ";base64")
	if mime == "" {
		mime = "application/octet-stream"
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return mime, data, nil
}

// DataURL encodes the receipt as an inline base64 data URL.
func (r Receipt) DataURL() string {
	mime := r.MimeType
	if mime == "" {
		mime = "image/jpeg"
	}
	return DataURLPrefix + mime + ";base64," + base64.StdEncoding.EncodeToString(r.Data)
}

// ReceiptFilename names an uploaded receipt after the expense it belongs to,
// e.g. "2026-03-02_교육비_교재_구입_32,000원.jpg".
func ReceiptFilename(e Expense, mime string) string {
	desc := "receipt"
	if e.Description != "" {
		desc = unsafeFilenameChars.ReplaceAllString(e.Description, "_")
	}
	return fmt.Sprintf("%s_%s_%s_%s%s", e.Date, e.Category, desc, e.Amount.Won(), extensionFor(mime))
}

func extensionFor(mime string) string {
	switch strings.ToLower(mime) {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "application/pdf":
		return ".pdf"
	default:
		return ".jpg"
	}
}

// ReceiptViewURL turns an upload response into a public reference. An
// explicit view URL wins over a bare document id.
func ReceiptViewURL(viewURL, fileID string) string {
	if viewURL != "" {
		return viewURL
	}
	if fileID != "" {
		return DriveViewURL + fileID
	}
	return ""
}
