package netsim

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	// ErrFamilyMismatch 源地址与目标地址的地址族不一致
	ErrFamilyMismatch = errors.New("netsim: address family mismatch")

	// ErrInvalidAddress 地址无效
	ErrInvalidAddress = errors.New("netsim: invalid address")

	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("netsim: invalid config")

	// ErrPortsExhausted NAT 公网端口耗尽
	ErrPortsExhausted = errors.New("netsim: public ports exhausted")

	// ErrRunnerClosed Runner 已关闭
	ErrRunnerClosed = errors.New("netsim: runner closed")
)

// ConfigError 配置字段错误
type ConfigError struct {
	Field string
	Cause error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("netsim: invalid config field %s: %v", e.Field, e.Cause)
}

// Unwrap 解包错误
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// Is 使 errors.Is(err, ErrInvalidConfig) 对所有字段错误成立
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// FamilyMismatchError 地址族不一致的详细信息
//
// 作为 panic 值使用：地址族不一致是拓扑配置错误，不是运行时可恢复的情况。
type FamilyMismatchError struct {
	Source string
	Target string
}

func (e *FamilyMismatchError) Error() string {
	return fmt.Sprintf("netsim: address family mismatch: %s -> %s", e.Source, e.Target)
}

// Unwrap 解包错误
func (e *FamilyMismatchError) Unwrap() error {
	return ErrFamilyMismatch
}
