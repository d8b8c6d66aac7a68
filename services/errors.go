package services

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// TemplateNotFoundError は指定された名前のテンプレートが存在しない場合のエラーです
type TemplateNotFoundError struct {
	Name string
}

func (e *TemplateNotFoundError) Error() string {
	return fmt.Sprintf("テンプレート '%s' が見つかりません", e.Name)
}

// TemplateRenderError はプレースホルダーを置換できなかった場合のエラーです
type TemplateRenderError struct {
	Template string
	Field    string
	Key      string // 未定義のプレースホルダー名 (構文エラーの場合は空)
	Reason   string
}

func (e *TemplateRenderError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("テンプレート '%s' の %s: プレースホルダー {%s} が未定義です", e.Template, e.Field, e.Key)
	}
	return fmt.Sprintf("テンプレート '%s' の %s: %s", e.Template, e.Field, e.Reason)
}

// TrackerError はJIRA側で発生した失敗を表します
type TrackerError struct {
	Op  string
	Key string
	Err error
}

func (e *TrackerError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("JIRA %s 失敗 (%s): %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("JIRA %s 失敗: %v", e.Op, e.Err)
}

func (e *TrackerError) Unwrap() error {
	return e.Err
}

// IsTemplateNotFound はエラーチェーンに TemplateNotFoundError が含まれるかを返します
func IsTemplateNotFound(err error) bool {
	var target *TemplateNotFoundError
	return errors.As(err, &target)
}

// IsRenderError はエラーチェーンに TemplateRenderError が含まれるかを返します
func IsRenderError(err error) bool {
	var target *TemplateRenderError
	return errors.As(err, &target)
}

// IsTrackerError はエラーチェーンに TrackerError が含まれるかを返します
func IsTrackerError(err error) bool {
	var target *TrackerError
	return errors.As(err, &target)
}
