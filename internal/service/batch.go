package service

import (
	"context"
	"fmt"
	"io"

	"whois/internal/command"

	"go.uber.org/zap"
)

// BatchRunner 按参数顺序逐条执行命令并输出结果
type BatchRunner struct {
	svc    *DirectoryService
	out    io.Writer
	logger *zap.Logger
}

// NewBatchRunner 创建批处理执行器
func NewBatchRunner(svc *DirectoryService, out io.Writer, logger *zap.Logger) *BatchRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchRunner{svc: svc, out: out, logger: logger}
}

// Run 顺序执行全部命令；单条命令失败不影响后续命令，只有输出失败才返回错误
func (b *BatchRunner) Run(ctx context.Context, commands []string) error {
	for i, raw := range commands {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.logger.Debug("command", zap.Int("index", i), zap.String("raw", raw))

		result := b.svc.Execute(ctx, command.Parse(raw))
		if _, err := fmt.Fprintln(b.out, result); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
	}
	return nil
}
