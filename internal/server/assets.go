package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	assetdomain "github.com/smallbiznis/coverdesk/internal/asset/domain"
)

func (s *Server) ListAssets(c *gin.Context) {
	assets, err := s.assetSvc.List(c.Request.Context(), mustActor(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": assets})
}

func (s *Server) CreateAsset(c *gin.Context) {
	var req assetdomain.CreateAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	asset, err := s.assetSvc.Create(c.Request.Context(), mustActor(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": asset})
}

func (s *Server) GetAsset(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	asset, err := s.assetSvc.Get(c.Request.Context(), mustActor(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	insured, err := s.assetSvc.HasValidInsurance(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": asset, "has_valid_insurance": insured})
}

func (s *Server) UpdateAsset(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req assetdomain.UpdateAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	asset, err := s.assetSvc.Update(c.Request.Context(), mustActor(c), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": asset})
}

func (s *Server) RevalueAsset(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	asset, err := s.assetSvc.RefreshValue(c.Request.Context(), mustActor(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": asset})
}
