package claim

import (
	"errors"
	"fmt"

	"github.com/TabloHub/tablo-guest-backend/internal/guest"
	"github.com/TabloHub/tablo-guest-backend/internal/platform/database"
	"github.com/TabloHub/tablo-guest-backend/internal/roster"
	"github.com/TabloHub/tablo-guest-backend/pkg/apperror"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Claim 让一个访客会话宣告“我就是名册条目X”，并仲裁冲突。
//
// 仲裁规则：条目尚无verified认领者时，本次认领立即verified；
// 已有其他会话verified时，本次认领进入pending等待人工裁决——
// 系统不假设先到的认领就是合法的。同一会话对已被否决条目的重复认领
// 是幂等的no-op，返回当前的rejected状态。
//
// 并发安全：整个判定在一个事务中完成，且先对名册条目行加锁，
// 两个并发的Claim不可能都观察到“尚无verified认领者”。
// PostgreSQL上这是真实的行锁；SQLite上锁子句被驱动忽略，
// 由整库写串行化提供同等的互斥范围。
func Claim(sessionID string, entryID uint) (guest.VerificationStatus, error) {
	var resultStatus guest.VerificationStatus

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		// 1. 锁定名册条目，作为本条目所有认领操作的互斥范围
		var entry roster.Entry
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&entry, entryID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("名册条目 %d 不存在", entryID)
			}
			return fmt.Errorf("无法锁定名册条目 %d: %w", entryID, err)
		}

		// 2. 加载发起认领的会话
		var session guest.Session
		if err := tx.Where("uuid = ?", sessionID).First(&session).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("会话 %s 不存在", sessionID)
			}
			return fmt.Errorf("无法读取会话 %s: %w", sessionID, err)
		}
		if session.ProjectID != entry.ProjectID {
			return apperror.InvalidState("名册条目不属于当前项目").WithMeta("field", "entry_id")
		}

		// 3. 同一会话对同一条目的重复认领是幂等的
		if session.ClaimedEntryID != nil && *session.ClaimedEntryID == entryID {
			switch session.VerificationStatus {
			case guest.VerificationRejected, guest.VerificationVerified, guest.VerificationPending:
				resultStatus = session.VerificationStatus
				return nil
			}
		}

		// 4. 查找该条目当前的verified认领者
		var verifiedCount int64
		err := tx.Model(&guest.Session{}).
			Where("claimed_entry_id = ? AND verification_status = ? AND uuid <> ?",
				entryID, guest.VerificationVerified, sessionID).
			Count(&verifiedCount).Error
		if err != nil {
			return fmt.Errorf("无法查询条目 %d 的认领状态: %w", entryID, err)
		}

		// 5. 仲裁：空位直接verified，冲突进入pending
		newStatus := guest.VerificationVerified
		if verifiedCount > 0 {
			newStatus = guest.VerificationPending
		}

		err = tx.Model(&guest.Session{}).
			Where("uuid = ?", sessionID).
			Updates(map[string]interface{}{
				"claimed_entry_id":    entryID,
				"verification_status": newStatus,
			}).Error
		if err != nil {
			return fmt.Errorf("无法更新会话 %s 的认领: %w", sessionID, err)
		}

		resultStatus = newStatus
		return nil
	})
	if err != nil {
		return guest.VerificationNone, err
	}
	return resultStatus, nil
}

// Resolve 是管理侧的人工裁决：把胜出会话设为verified，
// 该条目上其余所有pending或verified的认领全部置为rejected。
// 与并发的Claim共用同一把条目级锁，裁决与认领不会交错观察到中间状态。
func Resolve(entryID uint, winningSessionID string) error {
	return database.DB.Transaction(func(tx *gorm.DB) error {
		// 1. 与Claim相同的互斥范围
		var entry roster.Entry
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&entry, entryID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("名册条目 %d 不存在", entryID)
			}
			return fmt.Errorf("无法锁定名册条目 %d: %w", entryID, err)
		}

		// 2. 胜出会话必须存在且确实认领了这个条目
		var winner guest.Session
		if err := tx.Where("uuid = ?", winningSessionID).First(&winner).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("会话 %s 不存在", winningSessionID)
			}
			return fmt.Errorf("无法读取会话 %s: %w", winningSessionID, err)
		}
		if winner.ClaimedEntryID == nil || *winner.ClaimedEntryID != entryID {
			return apperror.InvalidState("会话 %s 未认领条目 %d", winningSessionID, entryID)
		}

		// 3. 其余认领者全部置为rejected
		err := tx.Model(&guest.Session{}).
			Where("claimed_entry_id = ? AND verification_status IN ? AND uuid <> ?",
				entryID,
				[]guest.VerificationStatus{guest.VerificationPending, guest.VerificationVerified},
				winningSessionID).
			Update("verification_status", guest.VerificationRejected).Error
		if err != nil {
			return fmt.Errorf("无法否决条目 %d 的其他认领: %w", entryID, err)
		}

		// 4. 胜出者置为verified
		err = tx.Model(&guest.Session{}).
			Where("uuid = ?", winningSessionID).
			Update("verification_status", guest.VerificationVerified).Error
		if err != nil {
			return fmt.Errorf("无法确认会话 %s 的认领: %w", winningSessionID, err)
		}
		return nil
	})
}

// IsClaimed 判断一个名册条目当前是否存在verified的认领者。
func IsClaimed(entryID uint) (bool, error) {
	// 条目必须存在，区分“未认领”和“条目不存在”
	if _, err := roster.GetEntryByID(entryID); err != nil {
		return false, err
	}

	var count int64
	err := database.DB.Model(&guest.Session{}).
		Where("claimed_entry_id = ? AND verification_status = ?", entryID, guest.VerificationVerified).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("无法查询条目 %d 的认领状态: %w", entryID, err)
	}
	return count > 0, nil
}

// EntryClaimSummary 是名册列表中每个条目的认领概览。
type EntryClaimSummary struct {
	Claimed      bool `json:"claimed"`
	PendingCount int  `json:"pending_count"`
}

// SummarizeProject 为一个项目的全部名册条目生成认领概览。
// pending计数让悬而未决的冲突在管理视图中可见。
func SummarizeProject(projectID uint) (map[uint]EntryClaimSummary, error) {
	type row struct {
		ClaimedEntryID     uint
		VerificationStatus guest.VerificationStatus
		Count              int
	}
	var rows []row
	err := database.DB.Model(&guest.Session{}).
		Select("claimed_entry_id, verification_status, count(*) as count").
		Where("project_id = ? AND claimed_entry_id IS NOT NULL", projectID).
		Group("claimed_entry_id, verification_status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("无法统计项目 %d 的认领情况: %w", projectID, err)
	}

	summary := make(map[uint]EntryClaimSummary)
	for _, r := range rows {
		s := summary[r.ClaimedEntryID]
		switch r.VerificationStatus {
		case guest.VerificationVerified:
			s.Claimed = true
		case guest.VerificationPending:
			s.PendingCount += r.Count
		}
		summary[r.ClaimedEntryID] = s
	}
	return summary, nil
}
