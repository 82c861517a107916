package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/somo/core/content"
)

type contentApi struct {
	svc      *content.Service
	validate *validator.Validate
}

func registerContentAPI(g *echo.Group, svc *content.Service, validate *validator.Validate) {
	api := contentApi{
		svc:      svc,
		validate: validate,
	}

	// public, slug addressed content
	g.GET("/content/:slug", api.resolve)

	kg := g.Group("/:kinds")
	kg.GET("", api.query)
	kg.POST("", api.create)

	// detail endpoints
	dg := kg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)

	// sections
	dg.POST("/sections", api.appendSection)
	dg.PUT("/sections", api.reorderSections)
	dg.PUT("/sections/:sectionId", api.replaceSection)
	dg.DELETE("/sections/:sectionId", api.destroySection)

	// lectures
	dg.PUT("/lectures", api.reorderLectures)
	dg.POST("/sections/:sectionId/lectures", api.appendLecture)
	dg.PUT("/sections/:sectionId/lectures/:lectureId", api.replaceLecture)
	dg.DELETE("/sections/:sectionId/lectures/:lectureId", api.destroyLecture)
}

// kindParam maps the `:kinds` path segment (eg: "courses") to its content.Kind.
func kindParam(ctx echo.Context) (content.Kind, error) {
	kind, ok := content.KindFromCollection(ctx.Param("kinds"))
	if !ok {
		return "", errHttpNotFound
	}
	return kind, nil
}

// Handlers

func (api *contentApi) resolve(ctx echo.Context) error {
	doc, err := api.svc.ResolveBySlug(ctx.Request().Context(), ctx.Param("slug"))
	if err != nil {
		return errors.Wrap(err, "resolving slug")
	}
	return ctx.JSON(http.StatusOK, doc)
}

func (api *contentApi) query(ctx echo.Context) error {
	kind, err := kindParam(ctx)
	if err != nil {
		return err
	}

	var filter content.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	var ordering Ordering
	ordering.Bind(ctx)

	docs, err := api.svc.Query(ctx.Request().Context(), kind, &filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying documents")
	}
	return ctx.JSON(http.StatusOK, docs)
}

func (api *contentApi) create(ctx echo.Context) error {
	kind, err := kindParam(ctx)
	if err != nil {
		return err
	}
	var data content.NewDocument
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDocument")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	doc, err := api.svc.Create(ctx.Request().Context(), kind, data)
	if err != nil {
		return errors.Wrap(err, "creating document")
	}
	return ctx.JSON(http.StatusCreated, doc)
}

func (api *contentApi) retrieve(ctx echo.Context) error {
	kind, err := kindParam(ctx)
	if err != nil {
		return err
	}
	doc, err := api.svc.GetByID(ctx.Request().Context(), kind, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting document")
	}
	return ctx.JSON(http.StatusOK, doc)
}

func (api *contentApi) update(ctx echo.Context) error {
	kind, err := kindParam(ctx)
	if err != nil {
		return err
	}
	var data content.UpdateDocument
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateDocument")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	doc, err := api.svc.Update(ctx.Request().Context(), kind, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating document")
	}
	return ctx.JSON(http.StatusOK, doc)
}

func (api *contentApi) destroy(ctx echo.Context) error {
	kind, err := kindParam(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), kind, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting document")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *contentApi) appendSection(ctx echo.Context) error {
	kind, err := kindParam(ctx)
	if err != nil {
		return err
	}
	var data content.NewSection
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSection")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	section, err := api.svc.AppendSection(ctx.Request().Context(), kind, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "appending section")
	}
	return ctx.JSON(http.StatusCreated, section)
}

func (api *contentApi) reorderSections(ctx echo.Context) error {
	kind, err := kindParam(ctx)
	if err != nil {
		return err
	}
	var data content.ReorderSections
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReorderSections")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	doc, err := api.svc.ReorderSections(ctx.Request().Context(), kind, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "reordering sections")
	}
	return ctx.JSON(http.StatusOK, doc)
}

func (api *contentApi) replaceSection(ctx echo.Context) error {
	kind, err := kindParam(ctx)
	if err != nil {
		return err
	}
	var data content.SectionPayload
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SectionPayload")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	doc, err := api.svc.ReplaceSection(ctx.Request().Context(), kind, ctx.Param("id"), ctx.Param("sectionId"), data)
	if err != nil {
		return errors.Wrap(err, "replacing section")
	}
	return ctx.JSON(http.StatusOK, doc)
}

func (api *contentApi) destroySection(ctx echo.Context) error {
	kind, err := kindParam(ctx)
	if err != nil {
		return err
	}
	doc, err := api.svc.DeleteSection(ctx.Request().Context(), kind, ctx.Param("id"), ctx.Param("sectionId"))
	if err != nil {
		return errors.Wrap(err, "deleting section")
	}
	return ctx.JSON(http.StatusOK, doc)
}

func (api *contentApi) reorderLectures(ctx echo.Context) error {
	kind, err := kindParam(ctx)
	if err != nil {
		return err
	}
	var data content.ReorderLectures
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReorderLectures")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	doc, err := api.svc.ReorderLectures(ctx.Request().Context(), kind, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "reordering lectures")
	}
	return ctx.JSON(http.StatusOK, doc)
}

func (api *contentApi) appendLecture(ctx echo.Context) error {
	kind, err := kindParam(ctx)
	if err != nil {
		return err
	}
	var data content.LecturePayload
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LecturePayload")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	lecture, err := api.svc.AppendLecture(ctx.Request().Context(), kind, ctx.Param("id"), ctx.Param("sectionId"), data)
	if err != nil {
		return errors.Wrap(err, "appending lecture")
	}
	return ctx.JSON(http.StatusCreated, lecture)
}

func (api *contentApi) replaceLecture(ctx echo.Context) error {
	kind, err := kindParam(ctx)
	if err != nil {
		return err
	}
	var data content.LectureContent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LectureContent")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	doc, err := api.svc.ReplaceLectureContent(
		ctx.Request().Context(), kind, ctx.Param("id"), ctx.Param("sectionId"), ctx.Param("lectureId"), data,
	)
	if err != nil {
		return errors.Wrap(err, "replacing lecture")
	}
	return ctx.JSON(http.StatusOK, doc)
}

func (api *contentApi) destroyLecture(ctx echo.Context) error {
	kind, err := kindParam(ctx)
	if err != nil {
		return err
	}
	doc, err := api.svc.DeleteLecture(ctx.Request().Context(), kind, ctx.Param("id"), ctx.Param("sectionId"), ctx.Param("lectureId"))
	if err != nil {
		return errors.Wrap(err, "deleting lecture")
	}
	return ctx.JSON(http.StatusOK, doc)
}
