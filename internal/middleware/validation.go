package middleware

import (
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/caregiver-api/internal/model"
)

var registerOnce sync.Once

// RegisterValidators reports json field names in validation errors and adds
// the "frequency" tag to gin's validator. Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
		if err := v.RegisterValidation("frequency", validFrequency); err != nil {
			panic(err)
		}
	})
}

func validFrequency(fl validator.FieldLevel) bool {
	switch model.NormalizeFrequency(fl.Field().String()) {
	case model.FrequencyDaily, model.FrequencyWeekly:
		return true
	}
	return false
}
