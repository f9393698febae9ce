// Package config loads a LangSwarm deployment from TOML: logging, engine
// limits, agents, MCP servers and workflows. NewRuntime turns a validated
// Config into agents registered with a ready engine.
//
//	cfg, err := config.Load("langswarm.toml")
//	if err != nil {
//	    return err
//	}
//	rt, err := config.NewRuntime(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer rt.Close()
package config
