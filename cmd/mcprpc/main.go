// Command mcprpc runs and exercises an MCP JSON-RPC 2.0 runtime: serve
// stdio/http starts a demo server, call drives a demo client against one.
package main

import "github.com/viant/mcprpc/cmd/mcprpc/cmd"

func main() {
	cmd.Execute()
}
