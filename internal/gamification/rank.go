package gamification

// rankThresholds 是各等级的累计积分门槛，下标i对应等级i+1。
// 等级是单调阶梯函数：积分只增不减，等级在一次发放内也永远不会下降。
var rankThresholds = []int{0, 25, 100, 250, 500, 1000}

// MaxRankLevel 是最高等级
const MaxRankLevel = 6

// RankForPoints 根据累计积分计算等级。
func RankForPoints(points int) int {
	level := 1
	for i, threshold := range rankThresholds {
		if points >= threshold {
			level = i + 1
		}
	}
	return level
}

// RankProgress 描述到下一等级的进度，派生数据，不做持久化。
type RankProgress struct {
	Level int `json:"level"`
	// PointsToNext 是距离下一等级还差的积分；已满级时为0
	PointsToNext int `json:"points_to_next"`
	// Percent 是当前等级区间内的进度百分比 [0,100]；已满级时为100
	Percent float64 `json:"percent"`
}

// ProgressForPoints 计算当前积分对应的等级进度。
func ProgressForPoints(points int) RankProgress {
	level := RankForPoints(points)
	if level >= MaxRankLevel {
		return RankProgress{Level: level, PointsToNext: 0, Percent: 100}
	}

	current := rankThresholds[level-1]
	next := rankThresholds[level]
	span := next - current

	progress := RankProgress{
		Level:        level,
		PointsToNext: next - points,
	}
	if span > 0 {
		progress.Percent = float64(points-current) / float64(span) * 100
	}
	return progress
}
