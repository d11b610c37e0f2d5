package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	claimdomain "github.com/smallbiznis/coverdesk/internal/claim/domain"
	"github.com/smallbiznis/coverdesk/internal/permission"
	"github.com/smallbiznis/coverdesk/pkg/apperror"
)

type notesRequest struct {
	Notes string `json:"notes"`
}

type commentRequest struct {
	Text string `json:"text"`
}

type assignRequest struct {
	ID snowflake.ID `json:"id"`
}

func (s *Server) ListClaims(c *gin.Context) {
	var req claimdomain.ListClaimRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.claimSvc.List(c.Request.Context(), mustActor(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp.Claims, "page_info": resp.PageInfo})
}

func (s *Server) CreateClaim(c *gin.Context) {
	var req claimdomain.CreateClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	claim, err := s.claimSvc.Create(c.Request.Context(), mustActor(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": claim})
}

func (s *Server) GetClaim(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	claim, err := s.claimSvc.Get(c.Request.Context(), mustActor(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": claim})
}

func (s *Server) UpdateClaim(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req claimdomain.UpdateClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	claim, err := s.claimSvc.Update(c.Request.Context(), mustActor(c), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": claim})
}

func (s *Server) CanTransitionClaim(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	target := claimdomain.Status(strings.TrimSpace(c.Param("status")))

	allowed, err := s.claimSvc.CanTransition(c.Request.Context(), mustActor(c), id, target)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": target, "allowed": allowed}})
}

func (s *Server) TransitionClaim(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req claimdomain.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	claim, err := s.claimSvc.Transition(c.Request.Context(), mustActor(c), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": claim})
}

func (s *Server) AssignClaimCoverage(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ID == 0 {
		AbortWithError(c, apperror.NewValidationError("id", "required", "coverage id is required"))
		return
	}

	claim, err := s.claimSvc.AssignCoverage(c.Request.Context(), mustActor(c), id, req.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": claim})
}

func (s *Server) AssignClaimHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ID == 0 {
		AbortWithError(c, apperror.NewValidationError("id", "required", "user id is required"))
		return
	}

	claim, err := s.claimSvc.AssignHandler(c.Request.Context(), mustActor(c), id, req.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": claim})
}

func (s *Server) ArchiveClaim(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	claim, err := s.claimSvc.Archive(c.Request.Context(), mustActor(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": claim})
}

func (s *Server) ClaimTimeline(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	entries, err := s.claimSvc.Timeline(c.Request.Context(), mustActor(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}

func (s *Server) CommentOnClaim(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	entry, err := s.claimSvc.AddComment(c.Request.Context(), mustActor(c), id, req.Text)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": entry})
}

func (s *Server) ListClaimDocuments(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	docs, err := s.claimSvc.Documents(c.Request.Context(), mustActor(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": docs})
}

func (s *Server) AttachClaimDocument(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req claimdomain.AttachDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	doc, err := s.claimSvc.AttachDocument(c.Request.Context(), mustActor(c), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": doc})
}

func (s *Server) RequestClaimDocuments(c *gin.Context) {
	s.claimNotesAction(c, s.claimSvc.RequestDocuments)
}

func (s *Server) CompleteClaimDocuments(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	claim, err := s.claimSvc.CompleteDocuments(c.Request.Context(), mustActor(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": claim})
}

func (s *Server) SubmitClaimToInsurer(c *gin.Context) {
	s.claimNotesAction(c, s.claimSvc.SubmitToInsurer)
}

func (s *Server) RecordInsurerResponse(c *gin.Context) {
	s.claimNotesAction(c, s.claimSvc.RecordInsurerResponse)
}

func (s *Server) ClaimSLA(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	status, err := s.claimSvc.SLA(c.Request.Context(), mustActor(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": status})
}

type claimAction func(ctx context.Context, actor permission.Actor, id snowflake.ID, notes string) (claimdomain.Claim, error)

func (s *Server) claimNotesAction(c *gin.Context, action claimAction) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req notesRequest
	if !bindJSON(c, &req) {
		return
	}

	claim, err := action(c.Request.Context(), mustActor(c), id, strings.TrimSpace(req.Notes))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": claim})
}
