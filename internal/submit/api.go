package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"sheetintake/internal/intake"
	"sheetintake/internal/probe"
)

var (
	// ErrNothingSelected is returned when a spreadsheet upload has no sheet
	// selected for ingestion.
	ErrNothingSelected = errors.New("submit: no sheet selected")

	// ErrNoColumns is returned when a selected sheet has no columns.
	ErrNoColumns = errors.New("submit: selected sheet has no columns")

	// ErrNoFileID is returned when the upload response carries no id.
	ErrNoFileID = errors.New("submit: upload response missing id")
)

// FileRef identifies an uploaded file on the storage service.
type FileRef struct {
	ID string
}

// Result summarizes a SubmitWorkbook call.
type Result struct {
	FileID string `json:"fileId"`

	// Ingested lists the sheet names whose schema was accepted, in order.
	Ingested []string `json:"ingested"`
}

// IngestRequest is the body of POST /api/excel/ingest.
type IngestRequest struct {
	FileID string `json:"fileId"`
	probe.IngestPayload
}

// UploadFile sends the file and its metadata as multipart/form-data to
// POST /api/files. The upload is validated (and normalized) first.
func (c *Client) UploadFile(ctx context.Context, u *intake.Upload) (FileRef, error) {
	if err := u.Validate(); err != nil {
		return FileRef{}, err
	}

	body, contentType, err := multipartBody(u)
	if err != nil {
		return FileRef{}, fmt.Errorf("upload file: %w", err)
	}

	resp, err := c.do(ctx, request{
		op:          "upload file",
		method:      http.MethodPost,
		path:        "/api/files",
		contentType: contentType,
		body:        body,
	})
	if err != nil {
		return FileRef{}, err
	}

	id, err := parseFileID(resp)
	if err != nil {
		return FileRef{}, fmt.Errorf("upload file: %w", err)
	}
	return FileRef{ID: id}, nil
}

func multipartBody(u *intake.Upload) ([]byte, string, error) {
	tags, err := json.Marshal(tagsOrEmpty(u.Tags))
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", u.FileName)
	if err != nil {
		return nil, "", err
	}
	if _, err := fw.Write(u.Data); err != nil {
		return nil, "", err
	}
	fields := []struct{ k, v string }{
		{"type", string(u.Type)},
		{"subPractice", u.SubPractice},
		{"title", u.Title},
		{"description", u.Description},
		{"tags", string(tags)},
	}
	for _, f := range fields {
		if err := w.WriteField(f.k, f.v); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func tagsOrEmpty(t []string) []string {
	if t == nil {
		return []string{}
	}
	return t
}

// parseFileID accepts {"id": "abc"} as well as {"id": 42}.
func parseFileID(body []byte) (string, error) {
	var resp struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	raw := bytes.TrimSpace(resp.ID)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", ErrNoFileID
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s = strings.TrimSpace(s); s == "" {
			return "", ErrNoFileID
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10), nil
		}
		return n.String(), nil
	}
	return "", fmt.Errorf("%w: unexpected id %s", ErrNoFileID, raw)
}

// Ingest sends one sheet's schema to POST /api/excel/ingest.
func (c *Client) Ingest(ctx context.Context, fileID string, p probe.IngestPayload) error {
	body, err := json.Marshal(IngestRequest{FileID: fileID, IngestPayload: p})
	if err != nil {
		return fmt.Errorf("ingest %s: %w", p.SheetName, err)
	}
	_, err = c.do(ctx, request{
		op:          "ingest " + p.SheetName,
		method:      http.MethodPost,
		path:        "/api/excel/ingest",
		contentType: "application/json",
		body:        body,
	})
	return err
}

// SubmitWorkbook uploads the file once, then ingests each payload in order.
// Non-spreadsheet uploads skip ingestion.
//
// Errors:
//   - ErrNothingSelected / ErrNoColumns for a spreadsheet upload whose
//     payloads cannot be ingested; nothing is sent.
//   - On an ingest failure the returned Result still lists the file id and
//     the sheets ingested before it.
func (c *Client) SubmitWorkbook(ctx context.Context, u *intake.Upload, payloads []probe.IngestPayload) (Result, error) {
	if u.Type == intake.TypeExcel {
		if len(payloads) == 0 {
			return Result{}, ErrNothingSelected
		}
		for _, p := range payloads {
			if len(p.Columns) == 0 {
				return Result{}, fmt.Errorf("%w: %q", ErrNoColumns, p.SheetName)
			}
		}
	}

	ref, err := c.UploadFile(ctx, u)
	if err != nil {
		return Result{}, err
	}
	res := Result{FileID: ref.ID}
	if u.Type != intake.TypeExcel {
		return res, nil
	}

	logf := c.logger()
	for _, p := range payloads {
		if err := c.Ingest(ctx, ref.ID, p); err != nil {
			return res, err
		}
		res.Ingested = append(res.Ingested, p.SheetName)
		logf("submit: file %s sheet %q ingested as %s (%d columns)", ref.ID, p.SheetName, p.TableName, len(p.Columns))
	}
	return res, nil
}
