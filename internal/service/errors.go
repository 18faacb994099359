package service

import (
	"errors"
	"fmt"

	"ragqa/internal/domain"
)

var (
	// ErrNotInitialized is returned when the engine is queried before Initialize.
	ErrNotInitialized = errors.New("engine not initialized")
)

const (
	// NoResultsAnswer is returned when retrieval finds nothing to ground an answer on.
	NoResultsAnswer = "抱歉，未找到相关文档。"
	failurePrefix   = "生成答案失败"
)

// FailureAnswer renders a generator error as an answer string.
func FailureAnswer(err error) string {
	var genErr *domain.GenerationError
	if errors.As(err, &genErr) {
		detail := "unknown error"
		if genErr.Err != nil && genErr.Err.Error() != "" {
			detail = genErr.Err.Error()
		}
		return fmt.Sprintf("%s: %s: %s", failurePrefix, genErr.Kind, detail)
	}
	if err == nil || err.Error() == "" {
		return fmt.Sprintf("%s: %s: unknown error", failurePrefix, domain.KindAPI)
	}
	return fmt.Sprintf("%s: %s: %v", failurePrefix, domain.KindAPI, err)
}
