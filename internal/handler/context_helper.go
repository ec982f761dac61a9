package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/dto"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/middleware"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/models"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/service"
	appErrors "github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/errors"
)

func principalFromContext(c *gin.Context) *models.Principal {
	return middleware.Principal(c)
}

// newValidator reports query errors under their query parameter names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

func bindListQuery(c *gin.Context, validate *validator.Validate) (models.IncidentFilter, error) {
	var q dto.IncidentListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		return models.IncidentFilter{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query parameters")
	}
	q.SplitStatuses()
	if err := validate.Struct(q); err != nil {
		return models.IncidentFilter{}, validationError(err)
	}
	return q.Filter(), nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query parameters")
	}
	details := make([]appErrors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("failed on the '%s' rule", fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("failed on the '%s=%s' rule", fe.Tag(), fe.Param())
		}
		details = append(details, appErrors.FieldError{Field: fe.Field(), Message: msg})
	}
	return appErrors.Validation(details...)
}

// bindPayload reads a JSON object body. An empty body yields a nil payload.
func bindPayload(c *gin.Context) (service.Payload, error) {
	raw, err := c.GetRawData()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "could not read request body")
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	var payload service.Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "body must be a JSON object")
	}
	return payload, nil
}
