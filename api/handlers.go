package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/psyche/pkg/dispatch"
	"github.com/papercomputeco/psyche/pkg/llm"
	"github.com/papercomputeco/psyche/pkg/mind"
	"github.com/papercomputeco/psyche/pkg/respond"
	"github.com/papercomputeco/psyche/pkg/snapshot"
	"github.com/papercomputeco/psyche/pkg/utils"
)

// zeroTime asks ListArcs for every arc regardless of recency.
var zeroTime time.Time

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleDispatch stores a new memory and runs its cascades.
func (s *Server) handleDispatch(c *fiber.Ctx) error {
	var in dispatch.Input
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "malformed request body"})
	}

	result, err := s.dispatcher.Dispatch(c.Context(), in)
	if err != nil {
		return s.pipelineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

// handlePatterns runs (or serves the cached) pattern detection for an owner.
func (s *Server) handlePatterns(c *fiber.Ctx) error {
	owner := c.Params("owner")
	if owner == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "owner parameter required"})
	}

	force := c.QueryBool("force")
	report, err := s.patterns.Detect(c.Context(), owner, force)
	if err != nil {
		return s.pipelineError(c, err)
	}

	return c.JSON(report)
}

// handleSnapshot runs snapshot trigger analysis for an owner.
func (s *Server) handleSnapshot(c *fiber.Ctx) error {
	owner := c.Params("owner")
	if owner == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "owner parameter required"})
	}

	outcome, err := s.snapshots.Capture(c.Context(), owner, snapshot.Options{
		Force: c.QueryBool("force"),
	})
	if err != nil {
		return s.pipelineError(c, err)
	}

	status := fiber.StatusOK
	if outcome.Status == snapshot.StatusCreated {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(outcome)
}

// handleListSnapshots returns an owner's snapshot chain, oldest first.
func (s *Server) handleListSnapshots(c *fiber.Ctx) error {
	owner := c.Params("owner")
	if owner == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "owner parameter required"})
	}

	snapshots, err := s.storer.ListSnapshots(c.Context(), owner)
	if err != nil {
		return s.pipelineError(c, err)
	}

	return c.JSON(map[string]any{
		"count":     len(snapshots),
		"snapshots": snapshots,
	})
}

// handleListArcs returns an owner's narrative arcs.
func (s *Server) handleListArcs(c *fiber.Ctx) error {
	owner := c.Params("owner")
	if owner == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "owner parameter required"})
	}

	arcs, err := s.storer.ListArcs(c.Context(), owner, zeroTime)
	if err != nil {
		return s.pipelineError(c, err)
	}

	return c.JSON(map[string]any{
		"count": len(arcs),
		"arcs":  arcs,
	})
}

// handleRespond answers a query over the owner's memory space.
func (s *Server) handleRespond(c *fiber.Ctx) error {
	owner := c.Params("owner")
	if owner == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "owner parameter required"})
	}

	var req respond.Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "malformed request body"})
	}
	req.OwnerID = owner

	s.logger.Debug("respond request",
		zap.String("owner_id", owner),
		zap.String("query", utils.Truncate(req.Query, 120)),
	)

	envelope, err := s.orchestrator.Respond(c.Context(), req)
	if err != nil {
		return s.pipelineError(c, err)
	}

	return c.JSON(envelope)
}

// pipelineError maps pipeline error envelopes onto HTTP statuses.
func (s *Server) pipelineError(c *fiber.Ctx, err error) error {
	var envelope *mind.Envelope
	if errors.As(err, &envelope) {
		switch envelope.Kind {
		case mind.ErrKindValidation:
			return c.Status(fiber.StatusBadRequest).JSON(envelope)
		case mind.ErrKindDependency:
			return c.Status(fiber.StatusBadGateway).JSON(envelope)
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(envelope)
		}
	}

	s.logger.Error("pipeline call failed", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "internal error"})
}
