package echoapi

import (
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/attachment"
)

const (
	orderingParam = "ordering"
	sortParam     = "sort"
	orderParam    = "order"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads either "ordering=-created_at,title" or "sort=title&order=asc" (descending unless asc).
func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}

	if val := data.Get(orderingParam); val != "" {
		for _, field := range strings.Split(val, ",") {
			field = strings.TrimSpace(field)
			descending := strings.HasPrefix(field, "-")
			if descending {
				field = field[1:] // drop "-"
			}
			ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
		}
		return
	}

	if field := strings.TrimSpace(data.Get(sortParam)); field != "" {
		ord.Orderings = append(ord.Orderings, core.DBOrdering{
			Field:     field,
			Ascending: strings.EqualFold(data.Get(orderParam), "asc"),
		})
	}
}

// formUpload returns the file sent in field, or nil when the request carries none.
func formUpload(ctx echo.Context, field string) (*attachment.Upload, error) {
	fh, err := ctx.FormFile(field)
	switch {
	case err == http.ErrMissingFile || err == http.ErrNotMultipart:
		return nil, nil
	case err != nil:
		return nil, errors.Wrapf(err, "reading %s", field)
	}
	return &attachment.Upload{
		Field:       field,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}, nil
}

func isFormRequest(ctx echo.Context) bool {
	ctype := ctx.Request().Header.Get(echo.HeaderContentType)
	return strings.HasPrefix(ctype, echo.MIMEMultipartForm) || strings.HasPrefix(ctype, echo.MIMEApplicationForm)
}

// formValues tells absent form fields apart from empty ones.
type formValues url.Values

func (v formValues) str(key string) *string {
	if vals, ok := v[key]; ok && len(vals) > 0 {
		s := vals[0]
		return &s
	}
	return nil
}

func (v formValues) boolean(key string) (*bool, error) {
	s := v.str(key)
	if s == nil || *s == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(*s)
	if err != nil {
		return nil, core.NewValidationError(nil, core.FieldError{Field: key, Error: key + " must be a boolean"})
	}
	return &b, nil
}
