package echoapi

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/daruliman/pondok/core/catalog"
)

type catalogApi struct {
	svc *catalog.Service
}

func registerCatalogAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *catalog.Service) {
	api := catalogApi{svc: svc}

	cg := g.Group("/catalog/items", jwt)
	cg.GET("", api.query)
	cg.GET("/:id", api.retrieve)
	cg.PUT("/:id/cost-basis", api.setCostBasis, adminMiddleware())
}

type CostBasisRequest struct {
	CostBasis decimal.Decimal `json:"cost_basis"`
}

func (api *catalogApi) query(ctx echo.Context) error {
	var filter catalog.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	items, err := api.svc.Filter(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying catalog items")
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *catalogApi) retrieve(ctx echo.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}
	item, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		if errors.Cause(err) == catalog.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting catalog item")
	}
	return ctx.JSON(http.StatusOK, item)
}

func (api *catalogApi) setCostBasis(ctx echo.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}
	var data CostBasisRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CostBasisRequest")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	item, err := api.svc.SetCostBasis(ctx.Request().Context(), id, data.CostBasis, claims.Username)
	if err != nil {
		if errors.Cause(err) == catalog.ErrNotFound {
			return errHttpNotFound
		}
		return err
	}
	return ctx.JSON(http.StatusOK, item)
}
