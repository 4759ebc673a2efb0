package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Anyuluo996/BotShepherd/botauth"
	"github.com/Anyuluo996/BotShepherd/store"
)

// SessionStatus is one live connection as the status command reports it.
type SessionStatus struct {
	ConnectionID  string
	ClientOnline  bool
	TargetsOnline int
	TargetsTotal  int
	Received      int64
	Sent          int64
}

// StatusSnapshot is the live service state rendered by the status command.
type StatusSnapshot struct {
	Version   string
	StartedAt time.Time
	Sessions  []SessionStatus
}

// NewAuth builds the key verification command. It is the one command
// that must work before a bot has authenticated.
func NewAuth(auth *botauth.Manager) *Command {
	return &Command{
		Name:        "auth",
		Aliases:     []string{"authenticate", "鉴权"},
		Description: "密钥验证（启用安全鉴权后必须先执行此指令）",
		Usage:       "auth [密钥]",
		AlwaysAllow: true,
		Execute: func(ctx context.Context, req *Request) (string, error) {
			if auth == nil {
				return "鉴权管理器未初始化", nil
			}
			if !auth.Enabled() {
				return "未启用密钥鉴权功能，无需验证", nil
			}
			if len(req.Args) == 0 {
				if _, _, err := auth.GenerateKey(req.BotID); err != nil {
					return "", err
				}
				return fmt.Sprintf(`已为Bot %s 生成临时验证密钥

✅ 密钥有效期3分钟
📱 请在WebUI系统设置页面查看密钥

请使用以下指令验证：
%sauth <密钥>`, req.BotID, req.Prefix), nil
			}
			_, message := auth.VerifyKey(ctx, req.BotID, req.Args[0])
			return message, nil
		},
	}
}

// NewHelp builds the command list command.
func NewHelp(registry *Registry) *Command {
	return &Command{
		Name:        "help",
		Aliases:     []string{"帮助"},
		Description: "查看指令列表",
		Usage:       "help",
		Execute: func(ctx context.Context, req *Request) (string, error) {
			var b strings.Builder
			b.WriteString("BotShepherd 指令列表")
			for _, cmd := range registry.Commands() {
				b.WriteString(fmt.Sprintf("\n%s%s - %s", req.Prefix, cmd.Usage, cmd.Description))
			}
			return b.String(), nil
		},
	}
}

// NewStatus builds the runtime status command. snapshot is polled at
// execution time so the reply reflects the moment it was asked.
func NewStatus(snapshot func() StatusSnapshot) *Command {
	return &Command{
		Name:        "status",
		Aliases:     []string{"状态"},
		Description: "查看运行状态",
		Usage:       "status",
		Execute: func(ctx context.Context, req *Request) (string, error) {
			s := snapshot()
			var b strings.Builder
			fmt.Fprintf(&b, "BotShepherd v%s", s.Version)
			if !s.StartedAt.IsZero() {
				fmt.Fprintf(&b, "\n运行时间: %s", time.Since(s.StartedAt).Round(time.Second))
			}
			if len(s.Sessions) == 0 {
				b.WriteString("\n当前没有活跃连接")
				return b.String(), nil
			}
			for _, sess := range s.Sessions {
				client := "在线"
				if !sess.ClientOnline {
					client = "离线"
				}
				fmt.Fprintf(&b, "\n连接 %s: 客户端%s, 目标 %d/%d 在线, 收 %d / 发 %d",
					sess.ConnectionID, client, sess.TargetsOnline, sess.TargetsTotal, sess.Received, sess.Sent)
			}
			return b.String(), nil
		},
	}
}

// NewStats builds the daily statistics command.
func NewStats(stats *store.StatsStore) *Command {
	return &Command{
		Name:        "stats",
		Aliases:     []string{"统计"},
		Description: "查看今日消息统计",
		Usage:       "stats",
		Execute: func(ctx context.Context, req *Request) (string, error) {
			if stats == nil {
				return "数据库未启用，无统计数据", nil
			}
			rows, err := stats.Today(ctx)
			if err != nil {
				return "", err
			}
			if len(rows) == 0 {
				return "今日暂无消息记录", nil
			}

			var recv, sent int64
			perConn := make(map[string][2]int64)
			order := make([]string, 0)
			for _, row := range rows {
				counts, seen := perConn[row.ConnectionID]
				if !seen {
					order = append(order, row.ConnectionID)
				}
				switch row.Direction {
				case store.DirectionRecv:
					recv += row.Count
					counts[0] += row.Count
				case store.DirectionSend:
					sent += row.Count
					counts[1] += row.Count
				}
				perConn[row.ConnectionID] = counts
			}

			var b strings.Builder
			fmt.Fprintf(&b, "今日消息统计 (%s)", store.DateKey(time.Now()))
			fmt.Fprintf(&b, "\n总计: 收 %d / 发 %d", recv, sent)
			for _, id := range order {
				counts := perConn[id]
				fmt.Fprintf(&b, "\n%s: 收 %d / 发 %d", id, counts[0], counts[1])
			}
			return b.String(), nil
		},
	}
}

// RegisterBuiltins registers the builtin command set.
func RegisterBuiltins(registry *Registry, auth *botauth.Manager, stats *store.StatsStore, snapshot func() StatusSnapshot) error {
	commands := []*Command{
		NewAuth(auth),
		NewHelp(registry),
		NewStatus(snapshot),
		NewStats(stats),
	}
	for _, cmd := range commands {
		if err := registry.Register(cmd); err != nil {
			return err
		}
	}
	return nil
}
