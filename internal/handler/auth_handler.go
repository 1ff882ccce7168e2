package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type registerPayload struct {
	Name     string `json:"name" binding:"required,min=2,max=255"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type loginPayload struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type profilePayload struct {
	Name     string `json:"name" binding:"omitempty,min=2,max=255"`
	Timezone string `json:"timezone"`
}

type changePasswordPayload struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=6"`
}

// Register 注册新用户并返回令牌
func (a *API) Register(c *gin.Context) {
	var payload registerPayload
	if !bindJSON(c, &payload, "注册信息不完整或格式错误") {
		return
	}

	user, token, err := a.auth.Register(payload.Name, payload.Email, payload.Password)
	if err != nil {
		handleServiceError(c, err, "注册失败")
		return
	}

	respondSuccess(c, http.StatusCreated, gin.H{
		"message": "注册成功",
		"user":    user,
		"token":   token,
	})
}

// Login 登录并返回令牌
func (a *API) Login(c *gin.Context) {
	var payload loginPayload
	if !bindJSON(c, &payload, "登录信息不完整或格式错误") {
		return
	}

	user, token, err := a.auth.Login(payload.Email, payload.Password)
	if err != nil {
		handleServiceError(c, err, "登录失败")
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"user":  user,
		"token": token,
	})
}

// Me 返回当前登录用户资料
func (a *API) Me(c *gin.Context) {
	user, err := a.auth.GetUser(currentUserID(c))
	if err != nil {
		handleServiceError(c, err, "获取用户信息失败")
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"user": user})
}

// UpdateProfile 更新当前用户资料，邮箱与密码不在此处修改
func (a *API) UpdateProfile(c *gin.Context) {
	var payload profilePayload
	if !bindJSON(c, &payload, "资料格式错误") {
		return
	}

	user, err := a.auth.UpdateProfile(currentUserID(c), payload.Name, payload.Timezone)
	if err != nil {
		handleServiceError(c, err, "更新资料失败")
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"message": "资料已更新",
		"user":    user,
	})
}

// ChangePassword 校验旧密码后更换密码
func (a *API) ChangePassword(c *gin.Context) {
	var payload changePasswordPayload
	if !bindJSON(c, &payload, "密码格式错误") {
		return
	}

	if err := a.auth.ChangePassword(currentUserID(c), payload.CurrentPassword, payload.NewPassword); err != nil {
		handleServiceError(c, err, "修改密码失败")
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"message": "密码已更新"})
}
