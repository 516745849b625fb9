package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/fivetwenty-io/qbo-client/internal/constants"
	qbohttp "github.com/fivetwenty-io/qbo-client/internal/http"
	"github.com/fivetwenty-io/qbo-client/pkg/qbo"
	"github.com/tidwall/gjson"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// Upload attaches a file, optionally linked to an entity through ref. The
// result is the created Attachable.
func (c *Client) Upload(ctx context.Context, filename, contentType string, content io.Reader, ref *qbo.AttachableRef) (*qbo.EntityResult, error) {
	if filename == "" {
		return nil, &qbo.ValidationError{Field: "FileName", Reason: "is required"}
	}

	if content == nil {
		return nil, &qbo.ValidationError{Field: "content", Reason: "is required"}
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	body, formType, err := uploadBody(filename, contentType, content, ref)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(ctx, &qbohttp.Request{
		Method:      http.MethodPost,
		Path:        "upload",
		Body:        body,
		ContentType: formType,
	})
	if err != nil {
		return nil, fmt.Errorf("uploading %s: %w", filename, err)
	}

	item := gjson.GetBytes(resp.Body, "AttachableResponse.0")
	if !item.Exists() {
		return nil, fmt.Errorf("%w: no AttachableResponse", qbo.ErrUnexpectedResponse)
	}

	if fault, ok := qbo.ParseFault([]byte(item.Raw)); ok {
		return nil, &qbo.FaultError{
			StatusCode: resp.StatusCode,
			Type:       fault.Type,
			Errors:     fault.Errors,
			IntuitTID:  resp.Headers.Get("intuit_tid"),
		}
	}

	attachable := item.Get(string(qbo.EntityAttachable))
	if !attachable.IsObject() {
		return nil, fmt.Errorf("%w: no Attachable in upload response", qbo.ErrUnexpectedResponse)
	}

	return &qbo.EntityResult{
		Entity:  qbo.EntityAttachable,
		Raw:     json.RawMessage(attachable.Raw),
		Time:    gjson.GetBytes(resp.Body, "time").String(),
		Headers: c.passthrough(resp),
	}, nil
}

func uploadBody(filename, contentType string, content io.Reader, ref *qbo.AttachableRef) ([]byte, string, error) {
	metadata := map[string]any{
		"FileName":    filename,
		"ContentType": contentType,
	}
	if ref != nil {
		metadata["AttachableRef"] = []qbo.AttachableRef{*ref}
	}

	var buf bytes.Buffer

	writer := multipart.NewWriter(&buf)

	part, err := writer.CreatePart(partHeader("file_metadata_01", "attachment.json", constants.ContentTypeJSON))
	if err != nil {
		return nil, "", fmt.Errorf("creating metadata part: %w", err)
	}

	err = json.NewEncoder(part).Encode(metadata)
	if err != nil {
		return nil, "", fmt.Errorf("encoding attachment metadata: %w", err)
	}

	part, err = writer.CreatePart(partHeader("file_content_01", filename, contentType))
	if err != nil {
		return nil, "", fmt.Errorf("creating content part: %w", err)
	}

	_, err = io.Copy(part, content)
	if err != nil {
		return nil, "", fmt.Errorf("reading upload content: %w", err)
	}

	err = writer.Close()
	if err != nil {
		return nil, "", fmt.Errorf("closing multipart body: %w", err)
	}

	return buf.Bytes(), writer.FormDataContentType(), nil
}

func partHeader(name, filename, contentType string) textproto.MIMEHeader {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(name), quoteEscaper.Replace(filename)))
	header.Set(constants.HeaderContentType, contentType)

	return header
}
