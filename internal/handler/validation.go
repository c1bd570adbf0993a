package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/noejunior792/hdl-ai-proteus/internal/domain"
)

// GenerateRequest is the body of POST /generate.
type GenerateRequest struct {
	Prompt           string                `json:"prompt" binding:"required,safeprompt"`
	CircuitName      string                `json:"circuit_name" binding:"required,circuitname"`
	ProviderConfig   domain.ProviderConfig `json:"provider_config"`
	GenerationParams domain.Tuning         `json:"generation_params"`
}

// TestProviderRequest is the body of POST /test-provider.
type TestProviderRequest struct {
	ProviderConfig domain.ProviderConfig `json:"provider_config"`
}

// RegisterValidators installs the circuitname and safeprompt tags on gin's
// validator. maxPrompt bounds prompt length in characters.
func RegisterValidators(maxPrompt int) error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin validator engine is not go-playground/validator")
	}

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("circuitname", func(fl validator.FieldLevel) bool {
		return domain.ValidateCircuitName(fl.Field().String()) == nil
	}); err != nil {
		return err
	}
	return v.RegisterValidation("safeprompt", func(fl validator.FieldLevel) bool {
		return domain.ValidatePrompt(fl.Field().String(), maxPrompt) == nil
	})
}

// bindingMessage turns a bind error into a message naming the field and rule.
func bindingMessage(err error, maxPrompt int) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid JSON body: " + err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		value, _ := fe.Value().(string)
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "circuitname":
			msgs = append(msgs, domainReason(domain.ValidateCircuitName(value), fe.Field()))
		case "safeprompt":
			msgs = append(msgs, domainReason(domain.ValidatePrompt(value, maxPrompt), fe.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

func domainReason(err error, field string) string {
	var ire *domain.InvalidRequestError
	if errors.As(err, &ire) {
		return ire.Error()
	}
	return "invalid " + field
}
