// Package check 提供两类失败原语
//
//   - Assume: 软校验，条件不成立时记录（限流）告警并返回 false，调用方可恢复
//   - Assert: 硬不变量，条件不成立时以 *Violation panic，表示进程状态已不可信
//
// 两者不可混用：跨进程可能出现的竞态（如对端进程崩溃）只能用 Assume，
// 仅本进程代码错误才可能触发的条件使用 Assert。
package check

import (
	"fmt"
	"time"

	"github.com/directfb2/DirectFB2-sub002/pkg/lib/log"
)

var softLog = log.Throttled("util/check", 100*time.Millisecond, 10)

// Violation 硬不变量被破坏
type Violation struct {
	Component string
	Message   string
}

// Error 实现 error 接口
func (v *Violation) Error() string {
	return fmt.Sprintf("%s: invariant violated: %s", v.Component, v.Message)
}

// Assume 软校验
//
// cond 为 false 时输出告警，返回 cond。
func Assume(cond bool, component, msg string, args ...any) bool {
	if !cond {
		softLog.Warn(msg, append([]any{"where", component}, args...)...)
	}
	return cond
}

// Assert 硬不变量校验
//
// cond 为 false 时记录错误日志并 panic。
func Assert(cond bool, component, msg string, args ...any) {
	if cond {
		return
	}
	log.Logger(component).Error("不变量被破坏", append([]any{"reason", msg}, args...)...)
	panic(&Violation{Component: component, Message: msg})
}
