package service

import (
	"sort"

	"course-registration/backend/internal/model"
)

// BlocksOverlap 判断两个时间块是否冲突
// 同一天且节次区间按左闭右开重叠：[s1,e1) 与 [s2,e2) 冲突当且仅当 s1 < e2 && s2 < e1
// 因此第 3 节结束与第 3 节开始的连堂不冲突
func BlocksOverlap(a, b model.ScheduleBlock) bool {
	return a.DayOfWeek == b.DayOfWeek &&
		a.StartPeriod < b.EndPeriod &&
		b.StartPeriod < a.EndPeriod
}

// FindConflict 返回第一个与 candidate 冲突的已选教学班 ID
// 按教学班 ID 升序遍历，结果确定
func FindConflict(candidate []model.ScheduleBlock, existingBySection map[string][]model.ScheduleBlock) (string, bool) {
	if len(candidate) == 0 || len(existingBySection) == 0 {
		return "", false
	}

	sectionIDs := make([]string, 0, len(existingBySection))
	for id := range existingBySection {
		sectionIDs = append(sectionIDs, id)
	}
	sort.Strings(sectionIDs)

	for _, id := range sectionIDs {
		for _, existing := range existingBySection[id] {
			for _, c := range candidate {
				if BlocksOverlap(c, existing) {
					return id, true
				}
			}
		}
	}
	return "", false
}
