// Package listquery parses and validates the query string of list endpoints
// and shapes their paginated responses.
package listquery

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/dalemusser/tourdesk/internal/app/store/storeutil"
	"github.com/dalemusser/tourdesk/internal/app/system/inputval"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson"
)

// MaxLimit is the largest page size a caller may request.
const MaxLimit = 100

// MaxSearchLen bounds free-text search input.
const MaxSearchLen = 100

// Options configures Parse for one endpoint.
type Options struct {
	DefaultLimit int64
	// Statuses lists accepted values for ?status=. Nil means the parameter
	// is ignored (public paths fix the status themselves).
	Statuses []string
}

// Params holds the validated list parameters. Empty strings and a nil
// Featured mean "no filter".
type Params struct {
	Page     int64
	Limit    int64
	Status   string
	Featured *bool
	Search   string
	Category string
	Tag      string
}

// Parse reads page, limit, status, featured, search, category and tag.
// Out-of-range values are reported, never clamped.
func Parse(r *http.Request, opts Options) (Params, inputval.Errors) {
	var errs inputval.Errors
	p := Params{Page: 1, Limit: opts.DefaultLimit}
	if p.Limit <= 0 {
		p.Limit = 20
	}

	if raw := query.Get(r, "page"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 1 {
			errs = append(errs, queryErr("page", "page must be a positive integer", raw))
		} else {
			p.Page = n
		}
	}

	if raw := query.Get(r, "limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 1 || n > MaxLimit {
			errs = append(errs, queryErr("limit", "limit must be between 1 and "+strconv.Itoa(MaxLimit), raw))
		} else {
			p.Limit = n
		}
	}

	if !storeutil.PageInRange(p.Page, p.Limit) {
		errs = append(errs, queryErr("page", "page is too large", query.Get(r, "page")))
	}

	if raw := query.Get(r, "featured"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			errs = append(errs, queryErr("featured", "featured must be true or false", raw))
		} else {
			p.Featured = &b
		}
	}

	if opts.Statuses != nil {
		if raw := strings.ToUpper(query.Get(r, "status")); raw != "" {
			if !contains(opts.Statuses, raw) {
				errs = append(errs, queryErr("status", "status must be one of: "+strings.Join(opts.Statuses, ", "), raw))
			} else {
				p.Status = raw
			}
		}
	}

	p.Search = query.Get(r, "search")
	if len([]rune(p.Search)) > MaxSearchLen {
		errs = append(errs, queryErr("search", "search must be at most "+strconv.Itoa(MaxSearchLen)+" characters", ""))
	}
	p.Category = query.Get(r, "category")
	p.Tag = query.Get(r, "tag")

	return p, errs
}

func queryErr(path, msg, value string) inputval.FieldError {
	fe := inputval.Field(path, msg, inputval.LocationQuery)
	if value != "" {
		fe.Value = value
	}
	return fe
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// SearchFilter returns a case-insensitive substring match of term against
// any of fields, or nil when term is empty. term is matched literally.
func SearchFilter(term string, fields ...string) bson.M {
	if term == "" || len(fields) == 0 {
		return nil
	}
	pattern := regexp.QuoteMeta(term)
	or := make(bson.A, 0, len(fields))
	for _, f := range fields {
		or = append(or, bson.M{f: bson.M{"$regex": pattern, "$options": "i"}})
	}
	return bson.M{"$or": or}
}

// Page is the data payload of every list response.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Page       int64 `json:"page"`
	Limit      int64 `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}

// NewPage builds the list payload; items is never encoded as null.
func NewPage[T any](items []T, p Params, total int64) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:      items,
		Page:       p.Page,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: storeutil.TotalPages(total, p.Limit),
	}
}
