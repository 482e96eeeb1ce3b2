package api

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-admin-console/catalogmodel"
)

const uploadField = "file"

// UploadImage streams an image to the object store and returns where it was stored.
func (c *Client) UploadImage(ctx context.Context, filename, contentType string, data io.Reader) (*catalogmodel.StoredObject, error) {
	body, writer := io.Pipe()
	form := multipart.NewWriter(writer)

	go func() {
		writer.CloseWithError(writeUploadForm(form, filename, contentType, data))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/uploads", body)
	if err != nil {
		body.Close() //nolint:errcheck // unblocks the writer goroutine
		return nil, fmt.Errorf("client.UploadImage: create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	var stored catalogmodel.StoredObject
	if err := c.send(req, &stored); err != nil {
		body.Close() //nolint:errcheck // unblocks the writer goroutine
		return nil, fmt.Errorf("client.UploadImage: %w", err)
	}
	return &stored, nil
}

func writeUploadForm(form *multipart.Writer, filename, contentType string, data io.Reader) error {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, uploadField, escapeQuotes(filename)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := form.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, data); err != nil {
		return err
	}
	return form.Close()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// DeleteStoredObject removes an uploaded object by its storage key.
func (c *Client) DeleteStoredObject(ctx context.Context, key string) error {
	if err := c.delete(ctx, "/uploads/"+url.PathEscape(key)); err != nil {
		return fmt.Errorf("client.DeleteStoredObject: %w", err)
	}
	return nil
}
