package server

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/edgecam/camrelay/pkg/camera"
)

// handleStatus reports the relay's live state.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"active_streams": s.streams.Active(),
		"cameras":        len(s.cams.List()),
	})
}

// handleParams returns the effective streaming parameters.
func (s *Server) handleParams(c *fiber.Ctx) error {
	return c.JSON(s.params())
}

// handleListCameras returns all configured cameras.
func (s *Server) handleListCameras(c *fiber.Ctx) error {
	return c.JSON(s.cams.List())
}

// UpsertCameraRequest is the body for PUT /api/cameras/:id.
type UpsertCameraRequest struct {
	Name          string `json:"name"`
	RTSPURL       string `json:"rtsp_url"`
	StreamEnabled *bool  `json:"stream_enabled"`
}

// handleUpsertCamera adds or replaces a camera and persists the registry.
func (s *Server) handleUpsertCamera(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid camera id",
		})
	}

	var req UpsertCameraRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	enabled := true
	if req.StreamEnabled != nil {
		enabled = *req.StreamEnabled
	}
	cam := camera.Camera{
		ID:            id,
		Name:          req.Name,
		RTSPURL:       req.RTSPURL,
		StreamEnabled: enabled,
	}
	s.cams.Put(cam)
	if err := s.cams.Save(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(cam)
}

// handleDeleteCamera removes a camera and persists the registry.
func (s *Server) handleDeleteCamera(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid camera id",
		})
	}

	s.cams.Delete(id)
	if err := s.cams.Save(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}
