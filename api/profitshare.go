package echoapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/daruliman/pondok/core"
	"github.com/daruliman/pondok/core/profitshare"
)

type profitShareApi struct {
	svc *profitshare.Service
}

func registerProfitShareAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *profitshare.Service) {
	api := profitShareApi{svc: svc}

	pg := g.Group("/profit-share", jwt)
	pg.GET("/session", api.session)
	pg.POST("/preview", api.preview)
	pg.POST("/decisions", api.saveDecision, adminMiddleware())
	pg.GET("/decisions", api.queryDecisions)
	pg.GET("/decisions/:id", api.retrieveDecision)
}

func (api *profitShareApi) session(ctx echo.Context) error {
	from, err := time.Parse("2006-01-02", ctx.QueryParam("from"))
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "from", Error: "invalid date"})
	}
	to, err := time.Parse("2006-01-02", ctx.QueryParam("to"))
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "to", Error: "invalid date"})
	}
	mode := ctx.QueryParam("mode")
	if mode == "" {
		mode = profitshare.ModeCostBasis
	}

	in, err := api.svc.Session(ctx.Request().Context(), from, to.Add(24*time.Hour-time.Nanosecond), mode, profitshare.Scheme{})
	if err != nil {
		return errors.Wrap(err, "loading profit-share session")
	}
	return ctx.JSON(http.StatusOK, in)
}

func (api *profitShareApi) preview(ctx echo.Context) error {
	var in profitshare.Input
	if err := ctx.Bind(&in); err != nil {
		return errors.Wrap(err, "binding to Input")
	}
	res, err := api.svc.Preview(ctx.Request().Context(), in)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *profitShareApi) saveDecision(ctx echo.Context) error {
	var in profitshare.Input
	if err := ctx.Bind(&in); err != nil {
		return errors.Wrap(err, "binding to Input")
	}
	if claims, err := getContextClaims(ctx); err == nil && in.DecidedBy == "" {
		in.DecidedBy = claims.Username
	}

	dec, err := api.svc.SaveDecision(ctx.Request().Context(), in)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, dec)
}

func (api *profitShareApi) queryDecisions(ctx echo.Context) error {
	var filter profitshare.DecisionFilter
	filter.Mode = ctx.QueryParam("mode")
	if from := ctx.QueryParam("date_from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			return core.NewValidationError(err, core.FieldError{Field: "date_from", Error: "invalid date"})
		}
		filter.DateFrom = t
	}
	if to := ctx.QueryParam("date_to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			return core.NewValidationError(err, core.FieldError{Field: "date_to", Error: "invalid date"})
		}
		filter.DateTo = t
	}

	decs, err := api.svc.Decisions(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying decisions")
	}
	return ctx.JSON(http.StatusOK, decs)
}

func (api *profitShareApi) retrieveDecision(ctx echo.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}
	dec, err := api.svc.Decision(ctx.Request().Context(), id)
	if err != nil {
		if errors.Cause(err) == profitshare.ErrDecisionNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting decision")
	}
	return ctx.JSON(http.StatusOK, dec)
}
