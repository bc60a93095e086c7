// Package provider 实现审计、修复和合约生成的两种后端：
// 基于远程模型的实现，以及不依赖网络的确定性启发式实现。
package provider

import (
	"context"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/admi-n/nullshot-auditor/src/internal"
)

// Auditor 对源码执行安全审计
type Auditor interface {
	Audit(ctx context.Context, code string) (*internal.AuditReport, error)
}

// Fixer 为一个或一批漏洞生成修复
type Fixer interface {
	Fix(ctx context.Context, code string, v internal.Vulnerability) (*internal.FixSuggestion, error)
	// FixAll 一次性修复全部漏洞，结果的 VulnerabilityID 为 internal.FixAllID
	FixAll(ctx context.Context, code string, vs []internal.Vulnerability) (*internal.FixSuggestion, error)
}

// Generator 根据自然语言描述生成合约
type Generator interface {
	Generate(ctx context.Context, prompt string) (*internal.GeneratedContract, error)
}

// Completer 远程模型调用，*ai.Manager 实现了该接口
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CodeHash 返回源码的 keccak256 哈希
func CodeHash(code string) string {
	return crypto.Keccak256Hash([]byte(code)).Hex()
}

func newReportID() string {
	return "audit-" + uuid.NewString()
}
