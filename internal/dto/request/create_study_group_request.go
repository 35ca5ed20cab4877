package request

// CreateStudyGroupRequest 创建学习小组请求
// 使用位置:
//   - internal/handler/group_handler.go: CreateGroup
//   - internal/service/group/service.go: CreateGroup
type CreateStudyGroupRequest struct {
	Name        string `json:"name" binding:"required,max=50"`
	Description string `json:"description" binding:"max=500"`
	SubjectId   string `json:"subject" binding:"max=64"`
	Semester    int8   `json:"semester" binding:"required,min=1,max=8"`
}
