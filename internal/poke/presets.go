package poke

// presetMessages 是各分类下可用的预设消息目录。
// 普通访客只能从这里选取；自定义文本是协调员的特权。
var presetMessages = map[Category]map[string]string{
	CategoryVoting: {
		"vote_now":     "模板投票还没投哦，快去选一个吧！",
		"vote_closing": "投票马上截止了，就差你一票！",
	},
	CategoryPhotoshoot: {
		"confirm_date": "拍摄时间还没确认，记得回复一下！",
		"be_on_time":   "拍摄日快到了，别忘了准时到场！",
	},
	CategoryImageSelection: {
		"pick_photos": "你的照片还没选呢，快去挑一张最好看的！",
		"final_call":  "选片要截止啦，再不选就帮你随机挑了！",
	},
	CategoryGeneral: {
		"ping":       "戳一下，记得来看看班级项目的最新进展！",
		"check_wall": "留言墙有新动态，快来围观！",
	},
}

// PresetText 查找一个分类下预设消息的展示文本。
func PresetText(category Category, key string) (string, bool) {
	catalog, ok := presetMessages[category]
	if !ok {
		return "", false
	}
	text, ok := catalog[key]
	return text, ok
}

// PresetKeys 返回一个分类下的全部预设键，用于前端选单。
func PresetKeys(category Category) []string {
	catalog := presetMessages[category]
	keys := make([]string, 0, len(catalog))
	for key := range catalog {
		keys = append(keys, key)
	}
	return keys
}
