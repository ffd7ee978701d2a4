package telnet

import "errors"

// 错误分类：调用方通过 errors.Is 判定错误种类并决定重试策略
// 引擎自身从不重试，也从不吞掉认证/超时类错误
var (
	// ErrHostRequired 连接配置缺少主机地址（未发起任何网络调用）
	ErrHostRequired = errors.New("telnet: host is required")

	// ErrConnectTimeout 在连接预算内未收到连接建立信号
	ErrConnectTimeout = errors.New("telnet: connect timeout")

	// ErrTransport 传输层错误（拒绝、重置、连接中断）
	ErrTransport = errors.New("telnet: transport error")

	// ErrCredentialsRequired 认证配置缺少用户名或密码（未写入任何字节）
	ErrCredentialsRequired = errors.New("telnet: credentials are required")

	// ErrAuthTimeout 整体认证预算耗尽
	ErrAuthTimeout = errors.New("telnet: authentication timeout")

	// ErrAuthFailed 登录或密码提示符未出现
	ErrAuthFailed = errors.New("telnet: authentication failed")

	// ErrInvalidCredentials 设备返回了认证失败提示
	ErrInvalidCredentials = errors.New("telnet: invalid credentials")

	// ErrPromptNotValidated 凭据已提交但未匹配到成功提示符
	ErrPromptNotValidated = errors.New("telnet: prompt not validated")

	// ErrSessionClosed 会话已关闭，不可复用，需要重新构造
	ErrSessionClosed = errors.New("telnet: session closed")
)
