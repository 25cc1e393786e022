package service

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var looseEmailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)

// Сообщения для пар поле.тег; ключ поля берется из json-тега.
var fieldMessages = map[string]string{
	"name.required":            "Product name is required",
	"code.required":            "Product code is required",
	"image.required":           "Product image is required",
	"dailyPrice.gt":            "Please enter a valid price greater than 0",
	"productId.required":       "Product is required",
	"fromDate.required":        "From date is required",
	"toDate.required":          "To date is required",
	"customerName.required":    "Customer name is required",
	"customerEmail.required":   "Email is required",
	"customerEmail.looseemail": "Please enter a valid email address",
	"customerPhone.required":   "Phone is required",
}

const (
	msgPastFromDate   = "From date cannot be in the past"
	msgToBeforeFrom   = "To date must be after from date"
	msgInvalidDate    = "Please enter a valid date"
	msgUnknownProduct = "Product not found"
	msgInvalidStatus  = "Please choose a valid status"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	// \S+@\S+\.\S+ как в форме бронирования; строгая проверка email здесь не нужна
	_ = v.RegisterValidation("looseemail", func(fl validator.FieldLevel) bool {
		return looseEmailPattern.MatchString(fl.Field().String())
	})
	return v
}

var validate = newValidator()

// validateStruct переводит ошибки validator в ValidationError.
func validateStruct(s interface{}) *ValidationError {
	verr := &ValidationError{}
	err := validate.Struct(s)
	if err == nil {
		return verr
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.add("general", err.Error())
		return verr
	}
	for _, fe := range fieldErrs {
		msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = fe.Field() + " is invalid"
		}
		verr.add(fe.Field(), msg)
	}
	return verr
}
