package roster

import (
	"errors"
	"fmt"

	"github.com/TabloHub/tablo-guest-backend/internal/platform/database"
	"github.com/TabloHub/tablo-guest-backend/pkg/apperror"
	"gorm.io/gorm"
)

// GetEntryByID 按主键读取一个名册条目。
func GetEntryByID(id uint) (*Entry, error) {
	var entry Entry
	err := database.DB.First(&entry, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("名册条目 %d 不存在", id)
		}
		return nil, fmt.Errorf("无法读取名册条目 %d: %w", id, err)
	}
	return &entry, nil
}

// ListByProject 按Position顺序返回一个项目的全部名册条目。
func ListByProject(projectID uint) ([]Entry, error) {
	var entries []Entry
	err := database.DB.
		Where("project_id = ?", projectID).
		Order("position asc, id asc").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("无法读取项目 %d 的名册: %w", projectID, err)
	}
	return entries, nil
}

// CountByKind 返回项目名册中各身份类型的条目数量，用于项目人数统计。
func CountByKind(projectID uint) (map[EntryKind]int64, error) {
	type row struct {
		Kind  EntryKind
		Count int64
	}
	var rows []row
	err := database.DB.Model(&Entry{}).
		Select("kind, count(*) as count").
		Where("project_id = ?", projectID).
		Group("kind").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("无法统计项目 %d 的名册: %w", projectID, err)
	}

	counts := make(map[EntryKind]int64, len(rows))
	for _, r := range rows {
		counts[r.Kind] = r.Count
	}
	return counts, nil
}
