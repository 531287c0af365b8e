package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/John-Robertt/JPEX/internal/app/resolve"
	"github.com/John-Robertt/JPEX/internal/domain"
	"github.com/John-Robertt/JPEX/internal/store"
)

// promptDisambiguations 逐行询问所有待消歧的行。
// 输入序号选中对应候选；空行或 "s" 跳过（保持 paused，之后可用 jpex select 补选）。
func promptDisambiguations(ctx context.Context, rn *resolve.Runner, st *store.Store, in io.Reader, w io.Writer) {
	if w == nil {
		return
	}
	sc := bufio.NewScanner(in)

	for _, r := range st.Rows() {
		if r.State.Status != domain.StatusDisambiguation {
			continue
		}

		fmt.Fprintf(w, "\n行 %s %q 有 %d 个候选：\n", r.ID, r.Candidate.MainName, len(r.State.Matches))
		for i, m := range r.State.Matches {
			fmt.Fprintf(w, "  [%d] %s — %s\n", i+1, m.Name, m.Address)
		}

		n, ok := readChoice(sc, w, len(r.State.Matches))
		if !ok {
			fmt.Fprintf(w, "已跳过（jpex select %s <n> 可稍后补选）\n", r.ID)
			continue
		}
		if err := rn.Select(ctx, r.ID, r.State.Matches[n-1].ExternalID); err != nil {
			fmt.Fprintf(w, "选择失败：%v\n", err)
			continue
		}
		if done, found := st.Get(r.ID); found && done.State.Status == domain.StatusError {
			fmt.Fprintf(w, "补全失败：%s\n", firstSentence(done.State.Message))
		}
	}
}

// readChoice 读取一个 [1, max] 的序号；空行/"s" 表示跳过，非法输入重试。
// 输入流耗尽（EOF）也视为跳过。
func readChoice(sc *bufio.Scanner, w io.Writer, max int) (int, bool) {
	for {
		fmt.Fprintf(w, "选择 [1-%d]（回车跳过）：", max)
		if !sc.Scan() {
			return 0, false
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.EqualFold(line, "s") {
			return 0, false
		}
		n, err := strconv.Atoi(line)
		if err != nil || n < 1 || n > max {
			fmt.Fprintf(w, "无效输入 %q，请输入 1 到 %d 之间的序号\n", line, max)
			continue
		}
		return n, true
	}
}
