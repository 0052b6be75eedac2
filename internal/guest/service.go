package guest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/TabloHub/tablo-guest-backend/internal/platform/database"
	"github.com/TabloHub/tablo-guest-backend/pkg/apperror"
	"github.com/TabloHub/tablo-guest-backend/pkg/token"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Register 为一个项目创建新的访客会话，并返回签名后的会话令牌。
// 会话写入数据库后会被同步到Redis的已知会话集合；
// 如果缓存写入失败，数据库写入将被回滚，保证两边一致。
func Register(projectID uint, displayName, fingerprint string) (*Session, string, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, "", apperror.InvalidState("显示名不能为空").WithMeta("field", "display_name")
	}
	if projectID == 0 {
		return nil, "", apperror.InvalidState("缺少项目ID").WithMeta("field", "project_id")
	}

	newUUID, err := uuid.NewV7()
	if err != nil {
		return nil, "", fmt.Errorf("无法生成UUID v7: %w", err)
	}

	session := Session{
		UUID:        newUUID.String(),
		ProjectID:   projectID,
		DisplayName: displayName,
		Fingerprint: fingerprint,
		RankLevel:   1,
	}

	// 开启一个数据库事务
	tx := database.DB.Begin()
	if tx.Error != nil {
		return nil, "", fmt.Errorf("无法开始数据库事务: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Create(&session).Error; err != nil {
		tx.Rollback()
		return nil, "", fmt.Errorf("无法创建访客会话: %w", err)
	}

	// 尝试将新UUID同步到Redis缓存中
	if database.IsRedisHealthy() {
		if err := database.RDB.SAdd(database.Ctx, KnownSessionsKey, session.UUID).Err(); err != nil {
			tx.Rollback()
			return nil, "", fmt.Errorf("无法将新会话 %s 添加到Redis缓存: %w", session.UUID, err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, "", fmt.Errorf("无法提交会话注册事务: %w", err)
	}

	signed, err := token.Sign(token.SessionPayload{SessionID: session.UUID, ProjectID: projectID})
	if err != nil {
		return nil, "", err
	}
	return &session, signed, nil
}

// GetSessionByID 按UUID读取一个访客会话。
func GetSessionByID(id string) (*Session, error) {
	var session Session
	err := database.DB.Where("uuid = ?", id).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("会话 %s 不存在", id)
		}
		return nil, fmt.Errorf("无法读取会话 %s: %w", id, err)
	}
	return &session, nil
}

// IsKnownSession 检查一个UUID是否对应已注册的会话。
// 优先查询Redis集合，Redis不可用时退回数据库查询。
func IsKnownSession(id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	if database.IsRedisHealthy() {
		exists, err := database.RDB.SIsMember(database.Ctx, KnownSessionsKey, id).Result()
		if err == nil {
			return exists, nil
		}
		// 查询失败时继续走数据库路径
		fmt.Printf("检查Redis会话缓存时出错: %v\n", err)
	}

	var count int64
	if err := database.DB.Model(&Session{}).Where("uuid = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("无法查询会话 %s: %w", id, err)
	}
	return count > 0, nil
}

// Ban 封禁一个会话。封禁代替删除，历史数据全部保留。
func Ban(id string) error {
	result := database.DB.Model(&Session{}).Where("uuid = ?", id).Update("banned", true)
	if result.Error != nil {
		return fmt.Errorf("无法封禁会话 %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.NotFound("会话 %s 不存在", id)
	}
	return nil
}

// IsValidUUID 检查字符串是否是合法的UUID格式。
func IsValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
