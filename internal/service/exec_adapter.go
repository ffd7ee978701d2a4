package service

import (
	"context"
	"fmt"
	"time"

	"github.com/telnetcollectorpro/telnetcollectorpro/internal/util"
	"github.com/telnetcollectorpro/telnetcollectorpro/pkg/ssh"
)

// executeSSHCollection 兼容协议路径：单次登录执行整批命令（SSH）
// 连接从服务级连接池获取并在结束后归还；获取失败按 retries 进行有限次重试
func (s *CollectorService) executeSSHCollection(ctx context.Context, request *CollectRequest, port int, commands []string, retries int) ([]*execResult, error) {
	s.logTaskInfo(request.TaskID, fmt.Sprintf("Starting SSH collection for %s:%d", request.DeviceIP, port))

	connInfo := &ssh.ConnectionInfo{
		Host:     request.DeviceIP,
		Port:     port,
		Username: request.UserName,
		Password: request.Password,
	}

	var client *ssh.Client
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		client, err = s.sshPool.GetConnection(ctx, connInfo)
		if err == nil {
			break
		}
		s.logTaskWarn(request.TaskID, fmt.Sprintf("ssh attempt %d/%d failed: %v", attempt+1, retries+1, err))
		time.Sleep(200 * time.Millisecond)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire SSH connection: %w", err)
	}
	defer s.sshPool.ReleaseConnection(connInfo)

	raw, err := client.ExecuteCommands(ctx, commands)
	if err != nil && len(raw) == 0 {
		return nil, err
	}

	results := make([]*execResult, 0, len(raw))
	for _, r := range raw {
		if r == nil {
			continue
		}
		results = append(results, &execResult{
			Command:    r.Command,
			Output:     util.EnsureUTF8(r.Output),
			Error:      r.Error,
			ExitCode:   r.ExitCode,
			DurationMS: r.Duration.Milliseconds(),
		})
	}

	s.logTaskInfo(request.TaskID, fmt.Sprintf("SSH collection completed, executed %d commands", len(results)))
	return results, nil
}
