package server

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/roach88/stocklog/internal/intake"
	"github.com/roach88/stocklog/internal/query"
	"github.com/roach88/stocklog/internal/record"
	"github.com/roach88/stocklog/internal/store"
)

func (s *Server) health(c *fiber.Ctx) error {
	if _, err := s.backend.SchemaVersion(c.UserContext()); err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "store unavailable")
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// POST /v1/units
func (s *Server) postUnit(c *fiber.Ctx) error {
	batch, err := intake.DecodeBytes(c.Body(), intake.FormatJSON)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if batch.Client.Address == "" {
		batch.Client.Address = intake.ClientAddress(func(name string) string { return c.Get(name) }, c.Context().RemoteIP().String())
	}
	if batch.Client.Agent == "" {
		batch.Client.Agent = c.Get(fiber.HeaderUserAgent)
	}

	sum, err := s.applier.Apply(c.UserContext(), batch)
	if err != nil {
		return err
	}
	return c.JSON(sum)
}

// GET /v1/records?entity_id=&sku=&name=&date_from=&date_to=&kind=&per_page=&page=&orderby=&order=
//
// Unparseable values fall back to their defaults.
func (s *Server) listRecords(c *fiber.Ctx) error {
	f := query.Filter{
		EntityID: queryInt64(c, "entity_id"),
		SKU:      c.Query("sku"),
		Name:     c.Query("name"),
		DateFrom: c.Query("date_from"),
		DateTo:   c.Query("date_to"),
		Kind:     c.Query("kind"),
	}
	sort := query.ParseSort(c.Query("orderby"), c.Query("order"))
	page := query.Page{
		Size:   c.QueryInt("per_page", query.DefaultPageSize),
		Number: c.QueryInt("page", 1),
	}

	res, err := s.backend.Query(c.UserContext(), f, sort, page)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

// GET /v1/records/:id
func (s *Server) getRecord(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid record id")
	}

	rec, err := s.backend.Get(c.UserContext(), id)
	if errors.Is(err, store.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "record not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(rec)
}

func (s *Server) getSettings(c *fiber.Ctx) error {
	settings, err := s.backend.Settings(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(settings)
}

func (s *Server) putSettings(c *fiber.Ctx) error {
	var settings record.Settings
	if err := json.Unmarshal(c.Body(), &settings); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid settings body")
	}
	if err := s.backend.SaveSettings(c.UserContext(), settings); err != nil {
		return err
	}
	s.logger.Info("settings updated", "trace_origin", settings.TraceOrigin)
	return c.JSON(settings)
}

func queryInt64(c *fiber.Ctx, key string) int64 {
	v, err := strconv.ParseInt(c.Query(key), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
