// Package agent drives browser automation through an LLM tool loop with
// provider failover.
//
// Invariants:
// - One task runs at a time per Invoker; the tool loop is bounded.
// - Browser actions route through the Browser interface only.
// - Provider failures rotate through auth profiles by priority.
//
// Usage:
//
//	inv := agent.NewInvoker(agent.InvokerConfig{
//		Profiles: profiles,
//		Model:    agent.DefaultConfig(),
//		Browser:  session,
//	}, logger)
//	output, err := inv.Invoke(ctx, taskDescription, true)
//	_ = output
//	_ = err
package agent
