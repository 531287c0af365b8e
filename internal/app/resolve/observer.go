package resolve

import (
	"time"

	"github.com/John-Robertt/JPEX/internal/domain"
)

// Observer 用于把「运行进度/阶段/行结果」从核心编排流程中解耦出来。
//
// 约束：
// - resolve 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - Observer 的实现必须并发安全：事件可能来自多个 goroutine。
type Observer interface {
	// OnStart 在 Run 开始时调用（应尽量早，保证用户 1 秒内看到输出）。
	OnStart(workers int)
	// OnPhaseDone 在阶段结束/就绪时调用（用于打印阶段统计与耗时）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnRowDone 在某行到达终态或消歧暂停时调用（用于每条结果的一行输出）。
	// cached 表示该行的详情是否来自缓存命中。
	OnRowDone(done, total int, row domain.Row, cached bool, dur time.Duration)
	// OnProgress 用于 keepalive（通常由 CLI 自己 ticker 触发；resolve 层不强制调用）。
	OnProgress(done, total int, elapsed time.Duration)
}
