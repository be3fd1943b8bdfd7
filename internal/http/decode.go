package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const maxRequestBodySize = 1 << 20 // 1MB

var errInvalidBody = errors.New("invalid JSON body")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// report fields under their json names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	// prices are validated as numbers
	v.RegisterCustomTypeFunc(func(f reflect.Value) interface{} {
		d, ok := f.Interface().(decimal.Decimal)
		if !ok {
			return nil
		}
		value, _ := d.Float64()
		return value
	}, decimal.Decimal{})
	v.RegisterStructValidation(validateProductPrices, ProductDTO{})

	return v
}

// decodeJSON reads a JSON body into dst and validates it. An empty body is accepted
// when allowEmpty is set and leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if !(allowEmpty && errors.Is(err, io.EOF)) {
			return errInvalidBody
		}
	}
	return validate.Struct(dst)
}

func handleDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errInvalidBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	handleServiceError(w, r, err)
}

func productIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func uuidParam(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
