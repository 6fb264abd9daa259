package echoapi

import (
	"io/ioutil"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var (
	orderingParam = "ordering"
	limitParam    = "limit"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// queryLimit reads the `limit` query param. Invalid or missing values yield 0, letting services
// apply their defaults.
func queryLimit(ctx echo.Context) int {
	n, err := strconv.Atoi(ctx.QueryParam(limitParam))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// upload is a multipart file read in memory, with its sniffed content type.
type upload struct {
	Name string
	Data []byte
	MIME *mimetype.MIME
}

// readUpload reads the `field` file of a multipart request. It returns nil when the field is absent.
// Files larger than maxSize or whose content type is not in allowed are rejected.
func readUpload(ctx echo.Context, field string, maxSize int64, allowed ...string) (*upload, error) {
	fh, err := ctx.FormFile(field)
	if err != nil {
		switch err {
		case http.ErrMissingFile, http.ErrNotMultipart:
			return nil, nil
		case multipart.ErrMessageTooLarge:
			return nil, core.NewValidationError(nil, core.FieldError{Field: field, Error: "file is too large"})
		}
		return nil, errors.Wrap(err, "reading multipart file")
	}
	if maxSize > 0 && fh.Size > maxSize {
		return nil, core.NewValidationError(nil, core.FieldError{Field: field, Error: "file is too large"})
	}

	f, err := fh.Open()
	if err != nil {
		return nil, errors.Wrap(err, "opening multipart file")
	}
	defer f.Close()
	data, err := ioutil.ReadAll(f)
	if err != nil {
		return nil, errors.Wrap(err, "reading multipart file")
	}

	mtype := mimetype.Detect(data)
	if len(allowed) > 0 && !mimetype.EqualsAny(mtype.String(), allowed...) {
		return nil, core.NewValidationError(nil, core.FieldError{
			Field: field,
			Error: "unsupported file type " + mtype.String(),
		})
	}
	return &upload{Name: fh.Filename, Data: data, MIME: mtype}, nil
}
