// Command opencrab-mcp exposes the built-in coding tools over MCP stdio,
// so any MCP client can discover and invoke them.
//
// Usage:
//
//	opencrab-mcp [-root DIR]
//
// File and search tools are confined to the root directory.
package main

import (
	"flag"
	"log"

	"github.com/adolfousier/opencrab/mcp"
	"github.com/adolfousier/opencrab/tool"
)

func main() {
	root := flag.String("root", ".", "base directory for file and search tools")
	flag.Parse()

	registry := tool.NewRegistry().Add(
		tool.ReadFileTool(tool.WithBasePath(*root)),
		tool.WriteFileTool(tool.WithBasePath(*root)),
		tool.ListDirTool(tool.WithBasePath(*root)),
		tool.SearchFilesTool(tool.WithSearchPath(*root)),
		tool.RunCommandTool(tool.WithWorkDir(*root)),
	)

	if err := mcp.ServeStdio(registry,
		mcp.WithName("opencrab-tools"),
		mcp.WithVersion("1.0.0"),
	); err != nil {
		log.Fatal(err)
	}
}
