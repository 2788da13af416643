// Package tools declares the operations exposed to clients as a static
// capability table.
//
// Each capability has a stable name, a typed parameter list and a handler
// closed over its dependencies, which are wired once through New. The MCP
// server and the chat agent both serve the same table, so a capability
// behaves identically whichever surface invokes it.
//
//	table := tools.New(tools.Deps{Retriever: r, Indexer: idx, Status: store, RepoPath: repo})
//	out, err := table.Call(ctx, tools.QueryRepository, map[string]any{"query": "config loading", "k": 3})
package tools
