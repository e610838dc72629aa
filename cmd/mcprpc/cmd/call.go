package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/viant/mcprpc/config"
	"github.com/viant/mcprpc/mcp"
	"github.com/viant/mcprpc/transport/client/http/streamable"
	"github.com/viant/mcprpc/transport/client/stdio"
)

var (
	callEndpoint string
	callStdio    string
	callName     string
	callURI      string
	callArgsJSON string
)

var callCmd = &cobra.Command{
	Use:   "call <method>",
	Short: "Drive a demo MCP client against a running server",
	Long: `Dispatches one MCP operation against a server and prints the JSON result.

Supported methods: ping, tools/list, tools/call, resources/list,
resources/read, prompts/list, prompts/get.

Connects over streamable HTTP by default (--endpoint), or over stdio when
--command is given (spawns the server as a subprocess).`,
	Args: cobra.ExactArgs(1),
	RunE: runCall,
}

func init() {
	callCmd.Flags().StringVar(&callEndpoint, "endpoint", "", "streamable-HTTP endpoint, e.g. http://localhost:8080/mcp")
	callCmd.Flags().StringVar(&callStdio, "command", "", "command to spawn as a stdio MCP server instead of --endpoint")
	callCmd.Flags().StringVar(&callName, "name", "", "tool/prompt name for tools/call and prompts/get")
	callCmd.Flags().StringVar(&callURI, "uri", "", "resource URI for resources/read")
	callCmd.Flags().StringVar(&callArgsJSON, "arguments", "{}", "JSON object of arguments for tools/call or prompts/get")
	rootCmd.AddCommand(callCmd)
}

func runCall(cmd *cobra.Command, args []string) error {
	method := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	session := mcp.NewSession(mcp.WithClientInfo(mcp.ClientInfo{Name: "mcprpc-cli", Version: Version}))

	switch {
	case callStdio != "":
		client, err := stdio.New(callStdio, stdio.WithHandler(session))
		if err != nil {
			return fmt.Errorf("stdio client: %w", err)
		}
		session.Bind(client)
	case callEndpoint != "":
		client, err := streamable.New(ctx, callEndpoint,
			streamable.WithHandler(session),
			streamable.WithHTTPClient(cfg.HTTP.SecureHTTPClient()),
			streamable.WithRetryPolicy(cfg.HTTP.RetryPolicy()),
		)
		if err != nil {
			return fmt.Errorf("streamable client: %w", err)
		}
		session.Bind(client)
	default:
		return fmt.Errorf("either --endpoint or --command is required")
	}

	if _, err := session.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	result, err := dispatch(ctx, session, method)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func dispatch(ctx context.Context, session *mcp.Session, method string) (interface{}, error) {
	switch method {
	case "ping":
		return struct{}{}, session.Ping(ctx)
	case "tools/list":
		return session.ListTools(ctx)
	case "tools/call":
		var arguments map[string]interface{}
		if err := json.Unmarshal([]byte(callArgsJSON), &arguments); err != nil {
			return nil, fmt.Errorf("--arguments: %w", err)
		}
		return session.CallTool(ctx, callName, arguments)
	case "resources/list":
		return session.ListResources(ctx)
	case "resources/read":
		return session.ReadResource(ctx, callURI)
	case "prompts/list":
		return session.ListPrompts(ctx)
	case "prompts/get":
		var arguments map[string]string
		if err := json.Unmarshal([]byte(callArgsJSON), &arguments); err != nil {
			return nil, fmt.Errorf("--arguments: %w", err)
		}
		return session.GetPrompt(ctx, callName, arguments)
	default:
		return nil, fmt.Errorf("unsupported method %q", method)
	}
}
