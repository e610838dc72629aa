package stdio

import (
	"context"
	"fmt"
	"github.com/viant/gosh/runner"
	"github.com/viant/gosh/runner/local"
	"github.com/viant/gosh/runner/ssh"
	"github.com/viant/mcprpc"
	transport2 "github.com/viant/mcprpc/transport"
	"github.com/viant/mcprpc/transport/client/base"
	"github.com/viant/scy/cred/secret"
	cssh "golang.org/x/crypto/ssh"
	"strings"
	"time"
)

// defaultBufferSize is the stdout line cap applied when the client is not
// constructed with WithBufferSize, matching config.StdioConfig's default.
const defaultBufferSize = 64 * 1024

// Client represent a base
type Client struct {
	base       *base.Client
	client     runner.Runner
	secret     secret.Resource
	sshConfig  *cssh.ClientConfig
	host       string
	command    string
	args       []string
	env        map[string]string
	ctx        context.Context
	cancel     context.CancelFunc
	bufferSize int
}

func (c *Client) start(ctx context.Context) error {
	if err := c.ensureSSHConfig(ctx); err != nil {
		return err // ensure SSH config is set up before initializing the service
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.ctx = ctx
	var options = []runner.Option{
		runner.AsPipeline(),
	}
	if c.sshConfig != nil {
		c.client = ssh.New(c.host, c.sshConfig, options...) // create a new SSH client with the provided SSH config
	} else {
		c.client = local.New(options...) // fallback to local client if no SSH config is provided
	}
	c.base.Transport = &Transport{client: c.client}
	cmd := c.command
	if len(c.args) > 0 {
		cmd = fmt.Sprintf("%s %s", c.command, strings.Join(c.args, " "))
	}
	go c.startCommand(ctx, cmd)
	return nil
}

func (c *Client) startCommand(ctx context.Context, cmd string) {
	output, code, err := c.client.Run(ctx, cmd, runner.WithEnvironment(c.env), runner.WithListener(c.stdoutListener()))
	if err != nil {
		c.base.SetError(err)
	}
	if code != -1 {
		c.base.SetError(fmt.Errorf("command exited with code: %d %v", code, output))
	}
}

// stdoutListener accumulates raw child stdout into line-delimited JSON-RPC
// frames. A line that would exceed the configured buffer_size is never
// handed to the decoder: the connection is failed with MESSAGE_TOO_LARGE
// instead, per the stdio transport's line-length cap.
func (c *Client) stdoutListener() runner.Listener {
	var builder strings.Builder
	limit := c.bufferSize
	if limit <= 0 {
		limit = defaultBufferSize
	}
	tooLarge := func() {
		builder.Reset()
		err := jsonrpc.NewError(jsonrpc.MessageTooLarge, fmt.Sprintf("stdio line exceeds buffer_size (%d bytes)", limit), nil)
		c.base.SetError(err)
	}
	return func(stdout string, hasMore bool) {
		index := strings.Index(stdout, "\n")
		if index != -1 {
			if builder.Len()+index > limit {
				tooLarge()
				return
			}
			defer builder.Reset()
			builder.WriteString(stdout[:index])
			data := []byte(builder.String())
			c.base.HandleMessage(c.ctx, data)
			return

		} else {
			if builder.Len()+len(stdout) > limit {
				tooLarge()
				return
			}
			builder.WriteString(stdout)
		}
	}
}

func (c *Client) Notify(ctx context.Context, request *jsonrpc.Notification) error {
	return c.base.Notify(ctx, request)
}

func (c *Client) Send(ctx context.Context, request *jsonrpc.Request) (*jsonrpc.Response, error) {
	return c.base.Send(ctx, request)
}

// Close cancels the context the child process was started with, which
// unblocks runner.Runner.Run (gosh propagates ctx cancellation into the
// underlying process), and fails every round-trip still outstanding so a
// Session waiting on a response gets CANCELLED instead of hanging until its
// own timeout.
func (c *Client) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.base.CancelAll(jsonrpc.NewError(jsonrpc.Cancelled, "stdio client closed", nil))
	return nil
}

// CancelPending locally fails the pending round-trip for id, discarding a
// response that arrives later for the same id.
func (c *Client) CancelPending(id jsonrpc.RequestId, err *jsonrpc.Error) bool {
	return c.base.Cancel(id, err)
}

// CancelAllPending locally fails every round-trip still outstanding.
func (c *Client) CancelAllPending(err *jsonrpc.Error) {
	c.base.CancelAll(err)
}

func (c *Client) ensureSSHConfig(ctx context.Context) error {
	if c.sshConfig != nil || c.host == "" {
		return nil
	}
	if c.secret != "" {
		secrets := secret.New()
		cred, err := secrets.GetCredentials(ctx, string(c.secret))
		if err != nil {
			return err // unable to retrieve credentials for SSH config
		}
		c.sshConfig, err = cred.SSH.Config(ctx) // this will populate the SSH config from the secret
		// SSH config is required for remote connections, if host is specified but no sshConfig provided
		return err
	}
	return fmt.Errorf("sshConfig is required but not provided for host: %s", c.host)
}

func New(command string, options ...Option) (*Client, error) {
	c := &Client{
		command: command,
		ctx:     context.Background(),
		base: &base.Client{
			RoundTrips: transport2.NewRoundTrips(20),
			RunTimeout: 15 * time.Minute,
			Transport:  &Transport{},
			Handler:    &base.Handler{},
			Logger:     jsonrpc.DefaultLogger,
		},
	}
	for _, opt := range options {
		opt(c)
	}
	err := c.start(c.ctx)
	return c, err
}
