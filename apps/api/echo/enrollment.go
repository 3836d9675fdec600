package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/enrollment"
)

type enrollmentApi struct {
	validator *enrollment.Validator
}

func registerEnrollmentAPI(g *echo.Group, jwt echo.MiddlewareFunc, validator *enrollment.Validator) {
	api := enrollmentApi{validator: validator}

	eg := g.Group("/enrollments", jwt)
	eg.POST("/validate-load", api.validateLoad)
}

// Handlers

func (api *enrollmentApi) validateLoad(ctx echo.Context) error {
	var data LoadValidationRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoadValidationRequest")
	}

	load, err := api.validator.Validate(ctx.Request().Context(), data.StudentID, data.ProposedCredits, data.Term)
	if err != nil {
		if errors.Cause(err) == enrollment.ErrLoadExceeded {
			return err
		}
		return errors.Wrap(err, "validating credit load")
	}
	return ctx.JSON(http.StatusOK, load)
}

type LoadValidationRequest struct {
	StudentID       string          `json:"student_id"`
	ProposedCredits float64         `json:"proposed_credits"`
	Term            enrollment.Term `json:"term"`
}
