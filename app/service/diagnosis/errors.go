package diagnosis

import (
	"errors"
	"fmt"
)

const (
	CodeEmptyInput        = "empty_input"
	CodeLimitExceeded     = "limit_exceeded"
	CodeMalformedResponse = "malformed_response"
	CodeCompletionFailed  = "completion_failed"
)

var (
	ErrEmptyInput        = errors.New("empty input")
	ErrLimitExceeded     = errors.New("diagnosis limit exceeded")
	ErrMalformedResponse = errors.New("malformed response")
	ErrCompletionFailed  = errors.New("completion failed")
)

const (
	MessageSuccess           = "診断結果"
	MessageEmptyInput        = "投稿内容を入力してください。"
	MessageMalformedResponse = "診断結果の解析に失敗しました。GPTの出力フォーマットを確認してください。"
	MessageCompletionFailed  = "診断サービスに接続できませんでした。しばらくしてから再度お試しください。"
	messageLimitExceeded     = "このプロトタイプでは、1人あたり最大%d回まで診断できます。"
	messageUnknown           = "診断中にエラーが発生しました。"
)

// LimitMessage is the warning shown once a session has used all its diagnoses.
func LimitMessage(limit int) string {
	return fmt.Sprintf(messageLimitExceeded, limit)
}

// UserMessage maps a Diagnose error to the text shown to the user.
func UserMessage(err error, limit int) string {
	switch {
	case errors.Is(err, ErrEmptyInput):
		return MessageEmptyInput
	case errors.Is(err, ErrLimitExceeded):
		return LimitMessage(limit)
	case errors.Is(err, ErrMalformedResponse):
		return MessageMalformedResponse
	case errors.Is(err, ErrCompletionFailed):
		return MessageCompletionFailed
	default:
		return messageUnknown
	}
}
