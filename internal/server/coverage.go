package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	coveragedomain "github.com/supa-modo/mwukenya-server-sub002/internal/coverage/domain"
)

func (s *Server) GetMemberCoverage(c *gin.Context) {
	memberID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	sub, err := s.subscriptionSvc.FindActiveByMember(c.Request.Context(), nil, memberID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if sub == nil {
		c.JSON(http.StatusOK, gin.H{"data": gin.H{
			"member_id":  memberID.String(),
			"subscribed": false,
		}})
		return
	}

	scheme, err := s.schemeSvc.Get(c.Request.Context(), sub.SchemeID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	pol := s.policy.Get()
	from := coveragedomain.NormalizeDate(sub.EffectiveDate)
	to := pol.Today(s.clock.Now())
	if raw := strings.TrimSpace(c.Query("from")); raw != "" {
		from, err = time.Parse("2006-01-02", raw)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
	}
	if raw := strings.TrimSpace(c.Query("to")); raw != "" {
		to, err = time.Parse("2006-01-02", raw)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
	}
	if to.Before(from) {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	status, err := s.coverageSvc.Status(c.Request.Context(), memberID, sub.ID, from, to, scheme.DailyPremium)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"member_id":       memberID.String(),
		"subscribed":      true,
		"subscription_id": sub.ID.String(),
		"scheme_id":       scheme.ID.String(),
		"scheme_code":     scheme.Code,
		"daily_premium":   scheme.DailyPremium,
		"from":            from.Format("2006-01-02"),
		"to":              to.Format("2006-01-02"),
		"coverage":        status,
	}})
}
