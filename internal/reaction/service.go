package reaction

import (
	"errors"
	"fmt"
	"sort"

	"github.com/TabloHub/tablo-guest-backend/internal/content"
	"github.com/TabloHub/tablo-guest-backend/internal/gamification"
	"github.com/TabloHub/tablo-guest-backend/internal/guest"
	"github.com/TabloHub/tablo-guest-backend/internal/notify"
	"github.com/TabloHub/tablo-guest-backend/internal/platform/database"
	"github.com/TabloHub/tablo-guest-backend/pkg/actor"
	"github.com/TabloHub/tablo-guest-backend/pkg/apperror"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Outcome 描述一次切换操作的结果，三种分支只会落在其中一种：
// 新增 (Added=true, Previous为空)、移除 (Added=false)、换表情 (Added=true, Previous非空)。
type Outcome struct {
	Added    bool   `json:"added"`
	Reaction string `json:"reaction,omitempty"`
	Previous string `json:"previous,omitempty"`
}

// Toggle 对一个主体执行幂等的反应切换。
//
// 三路分支在一个事务中完成：无记录则创建并加计数；同表情则删除并减计数；
// 不同表情则原地更新、计数不变。同一 (主体, 身份) 上的并发切换通过
// 已有记录的行锁和唯一索引串行化——并发创建输掉竞争的一方得到Conflict，
// 由调用方重试，计数永远不会撕裂。
//
// 积分规则：新增反应给做出反应的访客记like_given，给主体作者记like_received
// （自己给自己的内容反应不产生like_received）。移除反应不回收积分。
// actorProjectID 是访客身份所属的项目，用于跨项目校验；联系人身份传0跳过。
func Toggle(act actor.Actor, actorProjectID uint, subjectKind content.SubjectKind, subjectID uint, emoji string) (Outcome, error) {
	if !act.Valid() {
		return Outcome{}, apperror.InvalidState("无效的反应身份")
	}
	if !IsAllowedReaction(emoji) {
		return Outcome{}, apperror.InvalidState("表情 %q 不在允许的集合内", emoji).
			WithMeta("field", "reaction").
			WithMeta("allowed", AllowedReactions)
	}

	// 主体必须存在；作者用于like_received归属和通知
	author, projectID, err := content.SubjectAuthor(subjectKind, subjectID)
	if err != nil {
		return Outcome{}, err
	}
	if actorProjectID != 0 && actorProjectID != projectID {
		return Outcome{}, apperror.InvalidState("不能对其他项目的内容做出反应")
	}

	var outcome Outcome
	var awardedSessions []*guest.Session
	var awardedBadges [][]gamification.Badge

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		var existing Record
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("subject_kind = ? AND subject_id = ? AND actor_kind = ? AND actor_id = ?",
				subjectKind, subjectID, act.Kind, act.ID).
			First(&existing).Error

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			// 分支一：创建新反应
			record := Record{
				SubjectKind: subjectKind,
				SubjectID:   subjectID,
				ActorKind:   act.Kind,
				ActorID:     act.ID,
				Emoji:       emoji,
			}
			if err := tx.Create(&record).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return apperror.Conflict("反应正在被并发修改，请重试").Wrap(err)
				}
				return fmt.Errorf("无法创建反应记录: %w", err)
			}
			if err := content.AdjustLikesCount(tx, subjectKind, subjectID, +1); err != nil {
				return err
			}
			var err error
			awardedSessions, awardedBadges, err = awardForNewReaction(tx, act, author)
			if err != nil {
				return err
			}
			outcome = Outcome{Added: true, Reaction: emoji}

		case err != nil:
			return fmt.Errorf("无法查询反应记录: %w", err)

		case existing.Emoji == emoji:
			// 分支二：重选同一表情，切换语义删除
			if err := tx.Unscoped().Delete(&existing).Error; err != nil {
				return fmt.Errorf("无法删除反应记录: %w", err)
			}
			if err := content.AdjustLikesCount(tx, subjectKind, subjectID, -1); err != nil {
				return err
			}
			outcome = Outcome{Added: false, Previous: emoji}

		default:
			// 分支三：换表情，原地更新，记录数不变所以计数不变
			previous := existing.Emoji
			if err := tx.Model(&existing).Update("emoji", emoji).Error; err != nil {
				return fmt.Errorf("无法更新反应记录: %w", err)
			}
			outcome = Outcome{Added: true, Reaction: emoji, Previous: previous}
		}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	for i, session := range awardedSessions {
		gamification.AfterAwardCommitted(session, awardedBadges[i])
	}
	if outcome.Added && outcome.Previous == "" && author.Kind == actor.KindGuest && author.ID != act.ID {
		notify.Emit(notify.Event{
			Kind:      notify.EventReactionReceived,
			SessionID: author.ID,
			ActorID:   act.ID,
			RefID:     fmt.Sprintf("%s:%d", subjectKind, subjectID),
		})
	}
	return outcome, nil
}

// awardForNewReaction 为一次新增反应发放积分。
// 两个会话行按UUID顺序加锁，避免交叉反应时的死锁。
func awardForNewReaction(tx *gorm.DB, act actor.Actor, author actor.Actor) ([]*guest.Session, [][]gamification.Badge, error) {
	type awardTask struct {
		sessionID string
		action    gamification.Action
		counter   string
	}

	var tasks []awardTask
	if act.Kind == actor.KindGuest {
		tasks = append(tasks, awardTask{act.ID, gamification.ActionLikeGiven, "likes_given"})
	}
	if author.Kind == actor.KindGuest && author.ID != act.ID {
		tasks = append(tasks, awardTask{author.ID, gamification.ActionLikeReceived, "likes_received"})
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].sessionID < tasks[j].sessionID })

	var sessions []*guest.Session
	var badges [][]gamification.Badge
	for _, task := range tasks {
		var session guest.Session
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("uuid = ?", task.sessionID).First(&session).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// 作者会话可能已不存在（如联系人迁移的数据），跳过而不是失败
				continue
			}
			return nil, nil, fmt.Errorf("无法锁定会话 %s: %w", task.sessionID, err)
		}

		switch task.counter {
		case "likes_given":
			session.LikesGiven++
		case "likes_received":
			session.LikesReceived++
		}
		if err := tx.Model(&guest.Session{}).Where("uuid = ?", session.UUID).
			UpdateColumn(task.counter, gorm.Expr(task.counter+" + 1")).Error; err != nil {
			return nil, nil, fmt.Errorf("无法更新会话 %s 的反应计数: %w", session.UUID, err)
		}

		earned, err := gamification.AwardInTx(tx, &session, task.action, string(act.Kind)+":"+act.ID)
		if err != nil {
			return nil, nil, err
		}
		sessions = append(sessions, &session)
		badges = append(badges, earned)
	}
	return sessions, badges, nil
}

// Summary 返回一个主体上每种表情的计数，用于前端展示。
func Summary(subjectKind content.SubjectKind, subjectID uint) (map[string]int64, error) {
	type row struct {
		Emoji string
		Count int64
	}
	var rows []row
	err := database.DB.Model(&Record{}).
		Select("emoji, count(*) as count").
		Where("subject_kind = ? AND subject_id = ?", subjectKind, subjectID).
		Group("emoji").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("无法统计反应: %w", err)
	}

	summary := make(map[string]int64, len(rows))
	for _, r := range rows {
		summary[r.Emoji] = r.Count
	}
	return summary, nil
}
