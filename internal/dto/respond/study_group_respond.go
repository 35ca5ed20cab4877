package respond

import "time"

// StudyGroupRespond 学习小组详情
// 使用位置:
//   - internal/service/group/service.go: CreateGroup / GetGroup / JoinGroup / LoadMyGroups
type StudyGroupRespond struct {
	Id          string    `json:"_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	SubjectId   string    `json:"subject"`
	Semester    int8      `json:"semester"`
	CreatorId   string    `json:"creator"`
	Members     []string  `json:"members,omitempty"`
	MemberCnt   int       `json:"memberCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// LeaveStudyGroupRespond 退出小组的结果
type LeaveStudyGroupRespond struct {
	GroupId string `json:"groupId"`
	// Deleted 最后一名成员退出，小组已解散
	Deleted bool `json:"deleted"`
	// CreatorId 小组仍存在时的当前创建者
	CreatorId string `json:"creator,omitempty"`
}
