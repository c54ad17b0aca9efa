package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"course-registration/backend/pkg/jwt"
	"course-registration/backend/pkg/response"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// MustGetRole 从 Gin 上下文中安全提取 role。
func MustGetRole(c *gin.Context) (string, bool) {
	v, exists := c.Get("role")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// resolveStudentID 确定本次操作的学生
// 学生只能操作自己（requested 为空或等于本人）；管理员必须显式指定 student_id
func resolveStudentID(c *gin.Context, requested string) (string, bool) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return "", false
	}
	role, ok := MustGetRole(c)
	if !ok {
		return "", false
	}

	switch role {
	case jwt.RoleAdmin:
		if requested == "" {
			response.BadRequest(c, 10001, "student_id 不能为空")
			return "", false
		}
		return requested, true
	case jwt.RoleStudent:
		if requested != "" && requested != userID {
			response.Forbidden(c, 10003, "无权操作其他学生的选课")
			return "", false
		}
		return userID, true
	default:
		response.Forbidden(c, 10003, "无权限访问")
		return "", false
	}
}

// bindError 输出参数校验失败响应，details 列出未通过的字段与规则
func bindError(c *gin.Context, err error) {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		parts := make([]string, 0, len(ve))
		for _, fe := range ve {
			parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
		}
		response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "参数校验失败", strings.Join(parts, "; "))
		return
	}
	response.BadRequest(c, 10001, "请求格式错误")
}
