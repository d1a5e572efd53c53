package envelope

import (
	"fmt"
	"strings"

	"github.com/vincent-petithory/dataurl"
)

// Content is the decoded payload of a data URL: the content type written into
// the envelope and the raw body bytes.
type Content struct {
	// ContentType is the mime type, with a ";charset=" suffix when the
	// data URL carried one.
	ContentType string

	// Body is the decoded content.
	Body []byte
}

// DecodeDataURL parses an RFC 2397 data URL into envelope content.
func DecodeDataURL(rawURL string) (*Content, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("%w: empty data url", ErrInvalidContent)
	}

	du, err := dataurl.DecodeString(escapeDataPart(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}
	if len(du.Data) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidContent)
	}

	contentType := du.MediaType.ContentType()
	if charset, ok := du.MediaType.Params["charset"]; ok && charset != "" {
		contentType += ";charset=" + charset
	}

	return &Content{
		ContentType: contentType,
		Body:        du.Data,
	}, nil
}

// escapeDataPart percent-escapes the payload of a non base64 data URL so that
// bodies written verbatim, such as data:application/json,{"p":"brc-20"}, pass
// the strict RFC 2397 lexer. Escapes already present are decoded first so
// they are not escaped twice. Anything that is not a data URL is returned
// unchanged.
func escapeDataPart(rawURL string) string {
	header, data, ok := strings.Cut(rawURL, ",")
	if !ok || !strings.HasPrefix(strings.ToLower(header), "data:") ||
		strings.HasSuffix(strings.ToLower(header), ";base64") {

		return rawURL
	}

	body, err := dataurl.Unescape(data)
	if err != nil {
		// A stray '%' or raw UTF-8 is taken literally.
		body = []byte(data)
	}

	return header + "," + dataurl.Escape(body)
}
