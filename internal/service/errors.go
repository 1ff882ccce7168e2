package service

import "errors"

// 引擎只抛类型化错误，由 handler 层负责映射到 HTTP 状态码
var (
	// ErrHabitNotFound 在指定习惯不存在或不属于该用户时返回
	ErrHabitNotFound = errors.New("habit not found")
	// ErrLogNotFound 在当天没有可撤销的打卡记录时返回
	ErrLogNotFound = errors.New("no cancellable habit log for that day")
	// ErrUserNotFound 在用户不存在时返回
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials 在邮箱或密码错误时返回
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailTaken 在注册邮箱已被占用时返回
	ErrEmailTaken = errors.New("email is already registered")
	// ErrValidation 在业务入参不合法时返回
	ErrValidation = errors.New("invalid input")
	// ErrConflict 预留给存储层探测到的多写冲突，当前不会主动抛出
	ErrConflict = errors.New("resource conflict")
)
