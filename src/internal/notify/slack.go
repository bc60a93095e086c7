// Package notify 在审计结论为 REJECT 时发送 Slack 通知
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/admi-n/nullshot-auditor/src/internal"
)

// Notifier 审计结论通知
type Notifier interface {
	NotifyVerdict(ctx context.Context, subject string, report *internal.AuditReport, verdict internal.Verdict) error
}

// SlackNotifier 通过 chat.postMessage 发送通知
type SlackNotifier struct {
	client  *slack.Client
	channel string
}

// NewSlackNotifier 创建通知器，opts 透传给 slack.New（测试中用于替换 API 地址）
func NewSlackNotifier(token, channel string, opts ...slack.Option) (*SlackNotifier, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("slack token is required")
	}
	if channel == "" {
		return nil, fmt.Errorf("slack channel is required")
	}
	return &SlackNotifier{client: slack.New(token, opts...), channel: channel}, nil
}

var verdictColor = map[internal.Verdict]string{
	internal.VerdictReject:  "danger",
	internal.VerdictWarn:    "warning",
	internal.VerdictApprove: "good",
}

// NotifyVerdict 发送一条带漏洞列表的消息，subject 为文件名或合约地址
func (n *SlackNotifier) NotifyVerdict(ctx context.Context, subject string, report *internal.AuditReport, verdict internal.Verdict) error {
	text := fmt.Sprintf(":rotating_light: *%s* audit of `%s`: score %d/100", verdict, subject, report.Score)

	var lines []string
	for _, v := range report.Vulnerabilities {
		lines = append(lines, fmt.Sprintf("• [%s] %s", v.Severity, v.Title))
	}
	att := slack.Attachment{
		Color:  verdictColor[verdict],
		Title:  report.Summary,
		Text:   strings.Join(lines, "\n"),
		Footer: fmt.Sprintf("report %s · source %s", report.ID, report.Source),
	}

	_, _, err := n.client.PostMessageContext(ctx, n.channel,
		slack.MsgOptionText(text, false),
		slack.MsgOptionAttachments(att),
	)
	if err != nil {
		return fmt.Errorf("slack notify %s: %w", report.ID, err)
	}
	return nil
}
