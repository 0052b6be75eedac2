package claim

import (
	"net/http"

	"github.com/TabloHub/tablo-guest-backend/internal/guest"
	"github.com/TabloHub/tablo-guest-backend/internal/roster"
	"github.com/TabloHub/tablo-guest-backend/pkg/apperror"
	"github.com/gin-gonic/gin"
)

// rosterEntryView 是名册列表中一个条目的展示结构，附带认领概览
type rosterEntryView struct {
	roster.Entry
	Claimed      bool `json:"claimed"`
	PendingCount int  `json:"pending_count"`
}

// GetRoster 返回当前项目的名册，每个条目附带认领状态。
// pending计数让悬而未决的认领冲突对协调员可见。
func GetRoster(c *gin.Context) {
	session := guest.CurrentSession(c)

	entries, err := roster.ListByProject(session.ProjectID)
	if err != nil {
		c.JSON(apperror.HTTPStatus(err), apperror.Payload(err))
		return
	}
	summary, err := SummarizeProject(session.ProjectID)
	if err != nil {
		c.JSON(apperror.HTTPStatus(err), apperror.Payload(err))
		return
	}

	views := make([]rosterEntryView, 0, len(entries))
	for _, entry := range entries {
		s := summary[entry.ID]
		views = append(views, rosterEntryView{
			Entry:        entry,
			Claimed:      s.Claimed,
			PendingCount: s.PendingCount,
		})
	}

	counts, err := roster.CountByKind(session.ProjectID)
	if err != nil {
		c.JSON(apperror.HTTPStatus(err), apperror.Payload(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": views,
		"counts":  counts,
	})
}
