// Package mcptool exposes the tools of a Model Context Protocol server as
// tool.Tool values so they can be bound to agents like local functions.
package mcptool

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/exec"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/langswarm/langswarm/internal/util"
	"github.com/langswarm/langswarm/logging"
	"github.com/langswarm/langswarm/tool"
)

// CodeRemote marks errors reported by the MCP server itself.
const CodeRemote = "MCP_ERROR"

// Options configure a Source.
type Options struct {
	Logger logging.Logger
	// Prefix is prepended to every remote tool name, e.g. "github_".
	Prefix  string
	Version string
}

// Source is a connection to one MCP server. The client session is opened
// lazily and shared by every tool the source produces.
type Source struct {
	name      string
	client    *mcp.Client
	transport func() mcp.Transport
	opts      Options

	mu      sync.Mutex
	session *mcp.ClientSession
}

// NewSource creates a source using a custom transport factory.
func NewSource(name string, transport func() mcp.Transport, optFns ...func(o *Options)) *Source {
	opts := Options{Version: "v0.1.0"}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	s := &Source{name: name, transport: transport, opts: opts}
	s.client = mcp.NewClient(
		&mcp.Implementation{Name: "langswarm", Version: opts.Version},
		&mcp.ClientOptions{
			LoggingMessageHandler: func(_ context.Context, msg *mcp.LoggingMessageRequest) {
				s.logMessage(msg)
			},
		},
	)
	return s
}

// NewCommandSource launches the server as a subprocess speaking stdio.
func NewCommandSource(name string, command []string, optFns ...func(o *Options)) (*Source, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("mcp server %q: empty command", name)
	}
	return NewSource(name, func() mcp.Transport {
		return &mcp.CommandTransport{
			Command: exec.Command(command[0], command[1:]...),
		}
	}, optFns...), nil
}

// NewHTTPSource connects to a server over streamable HTTP. Headers are added
// to every request (e.g. Authorization).
func NewHTTPSource(name, endpoint string, headers map[string]string, optFns ...func(o *Options)) *Source {
	var client *http.Client
	if len(headers) > 0 {
		h := http.Header{}
		for k, v := range headers {
			h.Add(k, v)
		}
		client = &http.Client{
			Transport: &headerAddingRoundTripper{
				headers:      h,
				roundTripper: http.DefaultTransport,
			},
		}
	}
	return NewSource(name, func() mcp.Transport {
		return &mcp.StreamableClientTransport{
			Endpoint:   endpoint,
			HTTPClient: client,
		}
	}, optFns...)
}

type headerAddingRoundTripper struct {
	headers      http.Header
	roundTripper http.RoundTripper
}

func (rt *headerAddingRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	for k, v := range rt.headers {
		if _, ok := r.Header[k]; !ok {
			r.Header[k] = v
		}
	}
	return rt.roundTripper.RoundTrip(r)
}

// Name returns the configured server name.
func (s *Source) Name() string { return s.name }

func (s *Source) logMessage(msg *mcp.LoggingMessageRequest) {
	p := msg.Params
	args := []any{"server", s.name, "logger", p.Logger, "data", p.Data}
	switch p.Level {
	case "debug":
		s.opts.Logger.Debug("mcp.server.log", args...)
	case "warning":
		s.opts.Logger.Warn("mcp.server.log", args...)
	case "error", "critical", "alert", "emergency":
		s.opts.Logger.Error("mcp.server.log", args...)
	default:
		s.opts.Logger.Info("mcp.server.log", args...)
	}
}

func (s *Source) getSession(ctx context.Context) (*mcp.ClientSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		return s.session, nil
	}
	cs, err := s.client.Connect(ctx, s.transport(), nil)
	if err != nil {
		return nil, fmt.Errorf("connect mcp server %q: %w", s.name, err)
	}
	s.session = cs
	s.opts.Logger.Info("mcp.server.connected", "server", s.name)
	return cs, nil
}

// Close terminates the client session, if any.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.session != nil {
		err = s.session.Close()
		s.session = nil
	}
	return err
}

// Tools lists every tool the server offers, following pagination cursors.
func (s *Source) Tools(ctx context.Context) ([]tool.Tool, error) {
	sess, err := s.getSession(ctx)
	if err != nil {
		return nil, err
	}
	var cursor string
	var results []tool.Tool
	for {
		page, err := sess.ListTools(ctx, &mcp.ListToolsParams{
			Cursor: cursor,
		})
		if err != nil {
			return nil, fmt.Errorf("list tools of %q: %w", s.name, err)
		}
		for _, t := range page.Tools {
			params, err := util.SchemaToMap(t.InputSchema)
			if err != nil {
				return nil, fmt.Errorf("decode schema of %s: %w", t.Name, err)
			}
			results = append(results, &Tool{
				source:      s,
				remoteName:  t.Name,
				name:        s.opts.Prefix + t.Name,
				description: t.Description,
				parameters:  params,
			})
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	return results, nil
}

// Tool is a single remote MCP tool.
type Tool struct {
	source      *Source
	remoteName  string
	name        string
	description string
	parameters  map[string]any
}

var _ tool.Tool = (*Tool)(nil)

func (t *Tool) Name() string               { return t.name }
func (t *Tool) Description() string        { return t.description }
func (t *Tool) Parameters() map[string]any { return t.parameters }

// Execute forwards the call to the server. Text content is joined into the
// result; structured content is returned when no text is present.
func (t *Tool) Execute(ctx tool.Context, args map[string]any) (any, error) {
	sess, err := t.source.getSession(ctx)
	if err != nil {
		return nil, err
	}
	result, err := sess.CallTool(ctx, &mcp.CallToolParams{
		Name:      t.remoteName,
		Arguments: args,
	})
	if err != nil {
		return nil, err
	}

	var texts []string
	for _, content := range result.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}

	if result.IsError {
		msg := strings.Join(texts, "\n")
		if msg == "" {
			msg = "remote tool failed"
		}
		return nil, &tool.ToolError{Tool: t.name, Message: msg, Code: CodeRemote, Details: errors.New(msg)}
	}

	if len(texts) == 0 && result.StructuredContent != nil {
		return result.StructuredContent, nil
	}
	return strings.Join(texts, "\n"), nil
}
