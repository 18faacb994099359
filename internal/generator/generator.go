// Package generator holds the prompt layout shared by answer generators and
// the fallback used when no generation backend is configured.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ragqa/internal/domain"
)

// DefaultSystemPrompt frames the model as a domain expert that answers only
// from the supplied fragments.
const DefaultSystemPrompt = `# Role: 红楼梦研究专家

## Profile
- language: 中文
- description: 精通《红楼梦》文本及红学研究，能够深入解析作品的人物、情节、诗词及文化内涵

## Rules
- 基于文本: 所有回答必须严格依据提供的文档片段
- 严谨准确: 不妄加猜测，不传播未经考证的观点
- 引经据典: 重要观点需引用原文佐证
- 层次分明: 回答要有逻辑性和条理性

## Initialization
作为红楼梦研究专家，你必须遵守上述Rules回答用户问题。`

// ErrNotConfigured is wrapped by Disabled when no backend is available.
var ErrNotConfigured = errors.New("no answer generator configured")

// Disabled is a Generator that always fails with KindUnavailable.
type Disabled struct {
	Reason string
}

func (d Disabled) Generate(_ context.Context, _ string, _ []domain.Chunk) (string, error) {
	err := ErrNotConfigured
	if d.Reason != "" {
		err = fmt.Errorf("%w: %s", ErrNotConfigured, d.Reason)
	}
	return "", &domain.GenerationError{Kind: domain.KindUnavailable, Err: err}
}

// FormatContext numbers the chunks as document fragments separated by blank
// lines.
func FormatContext(chunks []domain.Chunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = fmt.Sprintf("文档片段%d: %s", i+1, c.Content)
	}
	return strings.Join(parts, "\n\n")
}

// UserPrompt combines the question with the formatted context.
func UserPrompt(question string, chunks []domain.Chunk) string {
	return fmt.Sprintf("基于以下文档片段，回答用户问题：\n用户问题: %s\n文档片段:\n%s", question, FormatContext(chunks))
}
