// Package render 在终端上绘制会话记录快照。
//
// 快照只保留最新的，中间状态可能被跳过。渲染器只记录进行中的消息已经输出了多少，
// 每次输出新增的后缀。
package render

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"floatai/internal/model"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

type Terminal struct {
	mu  sync.Mutex
	out io.Writer

	markdown  *glamour.TermRenderer
	reasoning lipgloss.Style

	done       int // 已完整输出的消息数
	reasoningN int
	contentN   int
	partial    bool
}

// NewTerminal 创建输出到 out 的渲染器，markdown 为 true 时回复封存后用 glamour 渲染，不再原样流式输出
func NewTerminal(out io.Writer, markdown bool, wordWrap int) (*Terminal, error) {
	t := &Terminal{
		out:       out,
		reasoning: lipgloss.NewStyle().Faint(true).Italic(true),
	}
	if markdown {
		if wordWrap <= 0 {
			wordWrap = 80
		}
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(wordWrap),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create markdown renderer: %w", err)
		}
		t.markdown = r
	}
	return t, nil
}

// Follow 持续渲染快照，直到通道关闭或 ctx 结束
func (t *Terminal) Follow(ctx context.Context, snapshots <-chan model.Transcript) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tr, ok := <-snapshots:
			if !ok {
				return nil
			}
			if err := t.Render(tr); err != nil {
				return err
			}
		}
	}
}

// Render 输出 tr 相比已输出内容新增的部分
func (t *Terminal) Render(tr model.Transcript) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.partial && tr.Len() <= t.done {
		// 中止的轮次删除了临时消息
		if _, err := fmt.Fprintln(t.out); err != nil {
			return err
		}
		t.reset()
	}

	for t.done < tr.Len() {
		msg := tr.At(t.done)
		if msg.IsUser {
			if _, err := fmt.Fprintf(t.out, "> %s\n\n", msg.Content); err != nil {
				return err
			}
			t.done++
			continue
		}

		if err := t.writeAssistant(msg); err != nil {
			return err
		}
		if !msg.Sealed {
			return nil
		}
		if err := t.finish(msg); err != nil {
			return err
		}
		t.done++
		t.reset()
	}
	return nil
}

func (t *Terminal) reset() {
	t.reasoningN, t.contentN, t.partial = 0, 0, false
}

func (t *Terminal) writeAssistant(msg model.Message) error {
	t.partial = true

	if r := msg.Reasoning(); len(r) > t.reasoningN {
		if _, err := io.WriteString(t.out, t.dim(r[t.reasoningN:])); err != nil {
			return err
		}
		t.reasoningN = len(r)
	}

	if t.markdown != nil || len(msg.Content) <= t.contentN {
		return nil
	}
	if t.contentN == 0 && t.reasoningN > 0 {
		if _, err := io.WriteString(t.out, "\n\n"); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(t.out, msg.Content[t.contentN:]); err != nil {
		return err
	}
	t.contentN = len(msg.Content)
	return nil
}

func (t *Terminal) finish(msg model.Message) error {
	if t.markdown == nil {
		_, err := io.WriteString(t.out, "\n\n")
		return err
	}

	if t.reasoningN > 0 {
		if _, err := io.WriteString(t.out, "\n"); err != nil {
			return err
		}
	}
	rendered, err := t.markdown.Render(msg.Content)
	if err != nil {
		return fmt.Errorf("failed to render markdown: %w", err)
	}
	_, err = io.WriteString(t.out, rendered)
	return err
}

// dim 逐行设置样式，lipgloss 会把多行文本补齐到同一宽度
func (t *Terminal) dim(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = t.reasoning.Render(l)
		}
	}
	return strings.Join(lines, "\n")
}
