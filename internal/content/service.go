package content

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/TabloHub/tablo-guest-backend/internal/gamification"
	"github.com/TabloHub/tablo-guest-backend/internal/guest"
	"github.com/TabloHub/tablo-guest-backend/internal/platform/database"
	"github.com/TabloHub/tablo-guest-backend/pkg/actor"
	"github.com/TabloHub/tablo-guest-backend/pkg/apperror"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreatePost 以访客身份创建一条帖子，发帖积分在同一事务中入账。
func CreatePost(sessionID string, body string) (*Post, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperror.InvalidState("帖子内容不能为空").WithMeta("field", "body")
	}

	var post Post
	var session guest.Session
	var earned []gamification.Badge

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		// 会话行锁覆盖计数更新和积分入账
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("uuid = ?", sessionID).First(&session).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("会话 %s 不存在", sessionID)
			}
			return fmt.Errorf("无法锁定会话 %s: %w", sessionID, err)
		}

		post = Post{
			ProjectID:  session.ProjectID,
			AuthorKind: actor.KindGuest,
			AuthorID:   session.UUID,
			AuthorName: session.DisplayName,
			Body:       body,
		}
		if err := tx.Create(&post).Error; err != nil {
			return fmt.Errorf("无法创建帖子: %w", err)
		}

		// 计数更新是显式的事务内步骤，徽章判定会读取更新后的值
		session.PostsCount++
		if err := tx.Model(&guest.Session{}).Where("uuid = ?", session.UUID).
			Update("posts_count", session.PostsCount).Error; err != nil {
			return fmt.Errorf("无法更新发帖计数: %w", err)
		}

		var err error
		earned, err = gamification.AwardInTx(tx, &session, gamification.ActionPost,
			strconv.FormatUint(uint64(post.ID), 10))
		return err
	})
	if err != nil {
		return nil, err
	}

	gamification.AfterAwardCommitted(&session, earned)
	return &post, nil
}

// CreateComment 以访客身份在帖子下创建一条评论。
// 回复积分与帖子评论计数在同一事务中维护。
func CreateComment(sessionID string, postID uint, body string) (*Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperror.InvalidState("评论内容不能为空").WithMeta("field", "body")
	}

	var comment Comment
	var session guest.Session
	var earned []gamification.Badge

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var post Post
		if err := tx.First(&post, postID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("帖子 %d 不存在", postID)
			}
			return fmt.Errorf("无法读取帖子 %d: %w", postID, err)
		}

		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("uuid = ?", sessionID).First(&session).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("会话 %s 不存在", sessionID)
			}
			return fmt.Errorf("无法锁定会话 %s: %w", sessionID, err)
		}
		if session.ProjectID != post.ProjectID {
			return apperror.InvalidState("帖子不属于当前项目").WithMeta("field", "post_id")
		}

		comment = Comment{
			PostID:     post.ID,
			ProjectID:  post.ProjectID,
			AuthorKind: actor.KindGuest,
			AuthorID:   session.UUID,
			AuthorName: session.DisplayName,
			Body:       body,
		}
		if err := tx.Create(&comment).Error; err != nil {
			return fmt.Errorf("无法创建评论: %w", err)
		}

		if err := tx.Model(&Post{}).Where("id = ?", post.ID).
			UpdateColumn("comments_count", gorm.Expr("comments_count + 1")).Error; err != nil {
			return fmt.Errorf("无法更新帖子 %d 的评论计数: %w", post.ID, err)
		}

		session.RepliesCount++
		if err := tx.Model(&guest.Session{}).Where("uuid = ?", session.UUID).
			Update("replies_count", session.RepliesCount).Error; err != nil {
			return fmt.Errorf("无法更新回复计数: %w", err)
		}

		var err error
		earned, err = gamification.AwardInTx(tx, &session, gamification.ActionReply,
			strconv.FormatUint(uint64(comment.ID), 10))
		return err
	})
	if err != nil {
		return nil, err
	}

	gamification.AfterAwardCommitted(&session, earned)
	return &comment, nil
}

// GetPostByID 按主键读取一条帖子。
func GetPostByID(id uint) (*Post, error) {
	var post Post
	if err := database.DB.First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("帖子 %d 不存在", id)
		}
		return nil, fmt.Errorf("无法读取帖子 %d: %w", id, err)
	}
	return &post, nil
}

// GetCommentByID 按主键读取一条评论。
func GetCommentByID(id uint) (*Comment, error) {
	var comment Comment
	if err := database.DB.First(&comment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("评论 %d 不存在", id)
		}
		return nil, fmt.Errorf("无法读取评论 %d: %w", id, err)
	}
	return &comment, nil
}

// SubjectAuthor 返回一个反应主体的作者和所属项目。
// reaction模块用它来判定like_received的归属。
func SubjectAuthor(kind SubjectKind, id uint) (actor.Actor, uint, error) {
	switch kind {
	case SubjectPost:
		post, err := GetPostByID(id)
		if err != nil {
			return actor.Actor{}, 0, err
		}
		return actor.Actor{Kind: post.AuthorKind, ID: post.AuthorID}, post.ProjectID, nil
	case SubjectComment:
		comment, err := GetCommentByID(id)
		if err != nil {
			return actor.Actor{}, 0, err
		}
		return actor.Actor{Kind: comment.AuthorKind, ID: comment.AuthorID}, comment.ProjectID, nil
	default:
		return actor.Actor{}, 0, apperror.InvalidState("未知的反应主体类型: %s", kind)
	}
}

// AdjustLikesCount 在反应切换事务中显式调整主体的反规范化反应计数。
// 不走模型钩子，保证计数更新与反应记录的增删在同一个事务中可审计。
func AdjustLikesCount(tx *gorm.DB, kind SubjectKind, id uint, delta int) error {
	var model interface{}
	switch kind {
	case SubjectPost:
		model = &Post{}
	case SubjectComment:
		model = &Comment{}
	default:
		return apperror.InvalidState("未知的反应主体类型: %s", kind)
	}

	err := tx.Model(model).Where("id = ?", id).
		UpdateColumn("likes_count", gorm.Expr("likes_count + ?", delta)).Error
	if err != nil {
		return fmt.Errorf("无法更新%s %d 的反应计数: %w", kind, id, err)
	}
	return nil
}

// ListPosts 按时间倒序返回一个项目的帖子。
func ListPosts(projectID uint, limit int) ([]Post, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var posts []Post
	err := database.DB.
		Where("project_id = ?", projectID).
		Order("id desc").
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("无法读取项目 %d 的帖子: %w", projectID, err)
	}
	return posts, nil
}
