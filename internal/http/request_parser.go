package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"babybudget/internal/core"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names, not Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type periodBudgetRequest struct {
	Year       int                        `json:"year" validate:"required,min=1,max=9999"`
	Month      int                        `json:"month" validate:"required,min=1,max=12"`
	Categories map[string]decimal.Decimal `json:"categories" validate:"required"`
}

func (p periodBudgetRequest) toPeriod() core.PeriodBudget {
	return core.PeriodBudget{Year: p.Year, Month: p.Month, Categories: p.Categories}
}

type spendingRequest struct {
	Date     string           `json:"date" validate:"required,datetime=2006-01-02"`
	Category string           `json:"category" validate:"required"`
	ItemName string           `json:"itemName" validate:"required,max=200"`
	Amount   *decimal.Decimal `json:"amount" validate:"required"`
}

func (s spendingRequest) toNewSpending() core.NewSpending {
	n := core.NewSpending{
		Category: core.Category(strings.TrimSpace(s.Category)),
		Date:     strings.TrimSpace(s.Date),
		ItemName: sanitizeInput(s.ItemName),
	}
	if s.Amount != nil {
		n.Amount = *s.Amount
	}
	return n
}

type batchSpendingRequest struct {
	Spendings []spendingRequest `json:"spendings" validate:"required,min=1,dive"`
}

func (b batchSpendingRequest) toNewSpendings() []core.NewSpending {
	out := make([]core.NewSpending, 0, len(b.Spendings))
	for _, s := range b.Spendings {
		out = append(out, s.toNewSpending())
	}
	return out
}

// decodeJSON reads one JSON value from the body into dst and validates it.
// Every failure is a core.ErrValidation.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: request body is empty", core.ErrValidation)
		case errors.As(err, &maxErr):
			return fmt.Errorf("%w: request body exceeds %d bytes", core.ErrValidation, maxErr.Limit)
		default:
			return fmt.Errorf("%w: malformed JSON body: %v", core.ErrValidation, err)
		}
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: request body must contain a single JSON object", core.ErrValidation)
	}
	return validateStruct(dst)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", core.ErrValidation, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("%w: %s", core.ErrValidation, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), topLevel(fe.Namespace()))
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return field + " must contain at least " + fe.Param() + " item(s)"
		}
		return field + " must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return field + " must be at most " + fe.Param() + " characters"
		}
		return field + " must be at most " + fe.Param()
	case "datetime":
		return field + " must be a date in YYYY-MM-DD format"
	default:
		return field + " is invalid"
	}
}

// topLevel returns the struct name prefix of a validator namespace,
// e.g. "spendingRequest." for "spendingRequest.amount".
func topLevel(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[:i+1]
	}
	return ""
}

// parseMonthParams reads year and month from the query, defaulting to the
// current month. Present but malformed values are rejected.
func parseMonthParams(query url.Values, now time.Time) (year, month int, err error) {
	year, month = now.Year(), int(now.Month())

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		if year, err = strconv.Atoi(v); err != nil {
			return 0, 0, fmt.Errorf("%w: year must be a number", core.ErrValidation)
		}
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		if month, err = strconv.Atoi(v); err != nil {
			return 0, 0, fmt.Errorf("%w: month must be a number", core.ErrValidation)
		}
	}
	return year, month, nil
}

// sanitizeInput strips control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
