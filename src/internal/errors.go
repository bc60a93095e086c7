package internal

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidSubmission 提交的源码或提示为空
	ErrInvalidSubmission = errors.New("invalid submission: code is empty")
	// ErrNoResponseContent 模型返回空文本
	ErrNoResponseContent = errors.New("no response content from model")
	// ErrUnparsableResponse 三种策略都无法提取 JSON
	ErrUnparsableResponse = errors.New("unparsable model response")
	// ErrSchemaMismatch JSON 可解析但缺少字段或类型错误
	ErrSchemaMismatch = errors.New("model response does not match schema")
	// ErrTimeout 远程调用超时
	ErrTimeout = errors.New("remote call timed out")
	// ErrRemoteProvider 传输、鉴权或限流等远程失败
	ErrRemoteProvider = errors.New("remote provider failure")
)

// RemoteProviderError 包装模型后端返回的原始错误
type RemoteProviderError struct {
	Provider string
	Err      error
}

func (e *RemoteProviderError) Error() string {
	return fmt.Sprintf("remote provider %s failed: %v", e.Provider, e.Err)
}

func (e *RemoteProviderError) Unwrap() error {
	return e.Err
}

func (e *RemoteProviderError) Is(target error) bool {
	return target == ErrRemoteProvider
}

// IsRemoteFailure 判断错误是否属于可降级的远程失败
func IsRemoteFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrRemoteProvider) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrNoResponseContent) ||
		errors.Is(err, ErrUnparsableResponse) ||
		errors.Is(err, ErrSchemaMismatch)
}
