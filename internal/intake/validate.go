package intake

import (
	"net/http"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/sells-group/venue-registry/internal/model"
)

// MaxFileSize is the inclusive per-file ceiling.
const MaxFileSize = 2 << 20

// allowedTypes are the raster formats accepted, by sniffed content type.
var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// File is one uploaded file held in memory. Data holds at most
// MaxFileSize+1 bytes; Size is the size the client declared or streamed.
// Seq is the file's position among the request's file parts.
type File struct {
	Name string
	Size int64
	Data []byte
	Seq  int
}

// ContentType sniffs the file's type from its leading bytes.
func (f File) ContentType() string {
	return http.DetectContentType(f.Data)
}

// Validate checks a payload and its files against the kind's rule table.
// Checks run in a fixed order: payload fields, unknown file fields, file
// counts, then each file's type and size; the first failure is returned.
// Unknown fields and files are visited in submission order (File.Seq), with
// field name breaking ties.
func Validate(p model.Payload, files map[string][]File) (model.MediaSummary, error) {
	if !p.Kind.Valid() {
		return nil, model.FieldError(model.CodeInvalidPayload, "kind", "unknown kind %q", p.Kind)
	}
	rule, _ := RuleFor(p.Kind)
	if err := rule.Check(p); err != nil {
		return nil, err
	}

	ordered := inSubmissionOrder(files)
	for _, of := range ordered {
		if _, ok := rule.Files[model.MediaKind(of.field)]; !ok {
			return nil, model.FieldError(model.CodeUnknownFormField, of.field,
				"field not allowed for %s submissions", p.Kind)
		}
	}

	kinds := make([]string, 0, len(rule.Files))
	for k := range rule.Files {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fr := rule.Files[model.MediaKind(k)]
		n := len(files[k])
		if n < fr.Min {
			return nil, model.FieldError(model.CodeRequiredFileMissing, k,
				"at least %d file(s) required", fr.Min)
		}
		if n > fr.Max {
			return nil, model.FieldError(model.CodeTooManyFiles, k,
				"at most %d file(s) allowed, got %d", fr.Max, n)
		}
	}

	summary := model.MediaSummary{}
	for _, of := range ordered {
		if err := checkFile(of.field, of.file); err != nil {
			return nil, err
		}
		summary[model.MediaKind(of.field)]++
	}
	return summary, nil
}

type fieldFile struct {
	field string
	file  File
}

func inSubmissionOrder(files map[string][]File) []fieldFile {
	var out []fieldFile
	for field, fs := range files {
		for _, f := range fs {
			out = append(out, fieldFile{field: field, file: f})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].file.Seq != out[j].file.Seq {
			return out[i].file.Seq < out[j].file.Seq
		}
		return out[i].field < out[j].field
	})
	return out
}

func checkFile(field string, f File) error {
	size := f.Size
	if int64(len(f.Data)) > size {
		size = int64(len(f.Data))
	}
	if size > MaxFileSize {
		return model.FieldError(model.CodeFileTooLarge, field,
			"%s is %s, limit is %s", f.Name, humanize.IBytes(uint64(size)), humanize.IBytes(MaxFileSize))
	}
	if ct := f.ContentType(); !allowedTypes[ct] {
		return model.FieldError(model.CodeInvalidMediaType, field,
			"%s has unsupported type %s", f.Name, ct)
	}
	return nil
}
