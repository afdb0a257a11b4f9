package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	schemedomain "github.com/supa-modo/mwukenya-server-sub002/internal/scheme/domain"
)

type schemeRequest struct {
	Code                  string `json:"code"`
	Name                  string `json:"name"`
	Description           string `json:"description"`
	DailyPremium          int64  `json:"daily_premium"`
	DelegateCommission    int64  `json:"delegate_commission"`
	CoordinatorCommission int64  `json:"coordinator_commission"`
	SHAPortion            int64  `json:"sha_portion"`
	OrgPortion            int64  `json:"org_portion"`
	Active                *bool  `json:"active"`
}

func (s *Server) ListSchemes(c *gin.Context) {
	schemes, err := s.schemeSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": schemes})
}

func (s *Server) GetScheme(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	scheme, err := s.schemeSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": scheme})
}

func (s *Server) CreateScheme(c *gin.Context) {
	var req schemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	scheme := &schemedomain.Scheme{
		Code:                  strings.TrimSpace(req.Code),
		Name:                  strings.TrimSpace(req.Name),
		Description:           strings.TrimSpace(req.Description),
		DailyPremium:          req.DailyPremium,
		DelegateCommission:    req.DelegateCommission,
		CoordinatorCommission: req.CoordinatorCommission,
		SHAPortion:            req.SHAPortion,
		OrgPortion:            req.OrgPortion,
		Active:                true,
	}
	if req.Active != nil {
		scheme.Active = *req.Active
	}

	if err := s.schemeSvc.Create(c.Request.Context(), scheme); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": scheme})
}

func (s *Server) UpdateScheme(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req schemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	scheme := &schemedomain.Scheme{
		ID:                    id,
		Code:                  strings.TrimSpace(req.Code),
		Name:                  strings.TrimSpace(req.Name),
		Description:           strings.TrimSpace(req.Description),
		DailyPremium:          req.DailyPremium,
		DelegateCommission:    req.DelegateCommission,
		CoordinatorCommission: req.CoordinatorCommission,
		SHAPortion:            req.SHAPortion,
		OrgPortion:            req.OrgPortion,
		Active:                true,
	}
	if req.Active != nil {
		scheme.Active = *req.Active
	}

	if err := s.schemeSvc.Update(c.Request.Context(), scheme); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": scheme})
}
