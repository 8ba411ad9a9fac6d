package intake

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/rotisserie/eris"

	"github.com/sells-group/venue-registry/internal/model"
)

// PayloadField is the form field carrying the JSON payload.
const PayloadField = "payload"

const maxPayloadBytes = 64 << 10

// ParseRequest reads a multipart intake request. File bodies are kept up to
// MaxFileSize+1 bytes; the remainder is counted, not buffered, so an
// oversized file is still reported with its real size.
func ParseRequest(r *http.Request) (model.Payload, map[string][]File, error) {
	var p model.Payload
	mr, err := r.MultipartReader()
	if err != nil {
		return p, nil, model.FieldError(model.CodeInvalidPayload, PayloadField, "multipart/form-data body required")
	}
	return ReadMultipart(mr)
}

// ReadMultipart consumes every part of mr.
func ReadMultipart(mr *multipart.Reader) (model.Payload, map[string][]File, error) {
	var (
		p          model.Payload
		sawPayload bool
		seq        int
		files      = map[string][]File{}
	)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return p, nil, &model.Error{Code: model.CodeInvalidPayload, Message: "malformed multipart body", Err: err}
		}

		name := part.FormName()
		switch {
		case part.FileName() != "":
			f, err := readFile(part)
			part.Close() //nolint:errcheck
			if err != nil {
				return p, nil, eris.Wrapf(err, "intake: read file %s", name)
			}
			f.Seq = seq
			seq++
			files[name] = append(files[name], f)
		case name == PayloadField:
			raw, err := io.ReadAll(io.LimitReader(part, maxPayloadBytes+1))
			part.Close() //nolint:errcheck
			if err != nil {
				return p, nil, eris.Wrap(err, "intake: read payload")
			}
			if len(raw) > maxPayloadBytes {
				return p, nil, model.FieldError(model.CodeInvalidPayload, PayloadField, "payload too large")
			}
			if err := json.Unmarshal(raw, &p); err != nil {
				return p, nil, model.FieldError(model.CodeInvalidPayload, PayloadField, "payload is not valid JSON: %v", err)
			}
			sawPayload = true
		default:
			part.Close() //nolint:errcheck
		}
	}
	if !sawPayload {
		return p, nil, model.FieldError(model.CodeInvalidPayload, PayloadField, "payload field missing")
	}
	return p, files, nil
}

func readFile(part *multipart.Part) (File, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(part, MaxFileSize+1))
	if err != nil {
		return File{}, err
	}
	if n > MaxFileSize {
		rest, err := io.Copy(io.Discard, part)
		if err != nil {
			return File{}, err
		}
		n += rest
	}
	return File{Name: part.FileName(), Size: n, Data: buf.Bytes()}, nil
}
