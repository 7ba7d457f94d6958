package netsim

import (
	"errors"

	simcore "github.com/dep2p/go-netsim/internal/core/netsim"
)

// 公共错误定义
var (
	// ────────────────────────────────────────────────────────────────────────
	// 生命周期错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrAlreadyStarted 仿真已启动
	ErrAlreadyStarted = errors.New("netsim: simulator already started")

	// ErrClosed 仿真已关闭
	ErrClosed = simcore.ErrRunnerClosed

	// ────────────────────────────────────────────────────────────────────────
	// 拓扑错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrFamilyMismatch 源地址与目标地址的地址族不一致（SendTo 以 panic 报告）
	ErrFamilyMismatch = simcore.ErrFamilyMismatch

	// ErrInvalidAddress 地址无效
	ErrInvalidAddress = simcore.ErrInvalidAddress

	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = simcore.ErrInvalidConfig

	// ErrPortsExhausted NAT 公网端口耗尽
	ErrPortsExhausted = simcore.ErrPortsExhausted
)
