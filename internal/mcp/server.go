// Package mcp exposes Jarvis over the Model Context Protocol (stdio).
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/vthunder/jarvis/internal/assistant"
	"github.com/vthunder/jarvis/internal/integrations/media"
	"github.com/vthunder/jarvis/internal/intent"
	"github.com/vthunder/jarvis/internal/logging"
	"github.com/vthunder/jarvis/internal/persona"
	"github.com/vthunder/jarvis/internal/storage"
	"github.com/vthunder/jarvis/internal/tasks"
	"github.com/vthunder/jarvis/internal/types"
)

// Asker runs one utterance through the pipeline
type Asker interface {
	ProcessTurn(ctx context.Context, text string) (assistant.Result, error)
}

// TaskStore is the task list the tools read and write
type TaskStore interface {
	AddTask(ctx context.Context, title string, due *time.Time, priority string) (*storage.Task, error)
	ListTasks(ctx context.Context, filter string) ([]storage.Task, error)
}

// PersonalitySetter switches the active personality
type PersonalitySetter interface {
	SetPersonality(ctx context.Context, name string) (types.PersonalityProfile, error)
	Catalog() *persona.Catalog
}

// StatsSource reports pipeline activity
type StatsSource interface {
	Stats() assistant.Stats
}

// Playlist is the media player's play history
type Playlist interface {
	History() []media.Track
}

// Deps holds what the tools need. Any may be nil; the tool then reports an error.
type Deps struct {
	Assistant Asker
	Tasks     TaskStore
	Session   PersonalitySetter
	Stats     StatsSource
	Media     Playlist
	Now       func() time.Time

	// OnToolCall is invoked with the tool name before each call
	OnToolCall func(name string)
}

// Server wraps an MCP server with the Jarvis tools registered
type Server struct {
	deps Deps
	srv  *server.MCPServer
}

// NewServer creates the server and registers its tools
func NewServer(name, version string, deps Deps) *Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	s := &Server{
		deps: deps,
		srv: server.NewMCPServer(name, version,
			server.WithToolCapabilities(true),
		),
	}
	s.srv.AddTool(askTool(), s.wrap("ask", s.handleAsk))
	s.srv.AddTool(listTasksTool(), s.wrap("list_tasks", s.handleListTasks))
	s.srv.AddTool(addTaskTool(), s.wrap("add_task", s.handleAddTask))
	s.srv.AddTool(setPersonalityTool(s.personalities()), s.wrap("set_personality", s.handleSetPersonality))
	s.srv.AddTool(statsTool(), s.wrap("stats", s.handleStats))
	return s
}

// MCPServer returns the underlying server
func (s *Server) MCPServer() *server.MCPServer { return s.srv }

// ServeStdio serves requests on stdin/stdout until EOF
func (s *Server) ServeStdio() error {
	logging.Info("mcp", "serving tools on stdio")
	return server.ServeStdio(s.srv)
}

func (s *Server) wrap(name string, h server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if s.deps.OnToolCall != nil {
			s.deps.OnToolCall(name)
		}
		logging.Debug("mcp", "tool call: %s", name)
		return h(ctx, req)
	}
}

func arguments(req mcp.CallToolRequest) map[string]any {
	args, _ := req.Params.Arguments.(map[string]any)
	return args
}

func askTool() mcp.Tool {
	return mcp.NewTool("ask",
		mcp.WithDescription("Say something to Jarvis. Commands (reminders, search, tasks, music, ...) are executed; anything else gets a conversational reply. Returns the reply with its mood, animation and voice."),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The utterance, e.g. 'remind me to stretch in 30 minutes'"),
		),
	)
}

type askOutput struct {
	Reply     string               `json:"reply"`
	Mood      types.Mood           `json:"mood"`
	Animation string               `json:"animation"`
	Voice     types.Voice          `json:"voice"`
	Intent    string               `json:"intent"`
	Command   string               `json:"command,omitempty"`
	Result    *types.CommandResult `json:"result,omitempty"`
	Sentiment string               `json:"sentiment"`
}

func (s *Server) handleAsk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, _ := arguments(req)["text"].(string)
	if strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError("text is required"), nil
	}
	if s.deps.Assistant == nil {
		return mcp.NewToolResultError("assistant not configured"), nil
	}

	res, err := s.deps.Assistant.ProcessTurn(ctx, text)
	if errors.Is(err, assistant.ErrBusy) {
		return mcp.NewToolResultError("Jarvis is busy with another request, try again shortly"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to process: %v", err)), nil
	}

	out := askOutput{
		Reply:     res.Response.Text,
		Mood:      res.Response.Mood,
		Animation: res.Response.Animation,
		Voice:     res.Response.Voice,
		Intent:    res.Classification.Intent,
		Result:    res.Command,
		Sentiment: string(res.Sentiment.Label),
	}
	if res.Command != nil {
		out.Command = res.Classification.Command
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal reply: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func listTasksTool() mcp.Tool {
	return mcp.NewTool("list_tasks",
		mcp.WithDescription("List tasks. Open tasks are ordered by due date, undated last."),
		mcp.WithString("filter",
			mcp.Description("open (default), completed, all, or a priority: low, medium, high, urgent"),
		),
	)
}

func (s *Server) handleListTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.deps.Tasks == nil {
		return mcp.NewToolResultError("task list not configured"), nil
	}
	filter, _ := arguments(req)["filter"].(string)
	list, err := s.deps.Tasks.ListTasks(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list tasks: %v", err)), nil
	}
	if list == nil {
		list = []storage.Task{}
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal tasks: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func addTaskTool() mcp.Tool {
	return mcp.NewTool("add_task",
		mcp.WithDescription("Add a task to the task list."),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Task title"),
		),
		mcp.WithString("due",
			mcp.Description("Due date: RFC 3339, YYYY-MM-DD, or an expression like 'tomorrow', 'friday', 'in 2 hours'"),
		),
		mcp.WithString("priority",
			mcp.Description("low, medium (default), high or urgent"),
		),
	)
}

func (s *Server) handleAddTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(req)
	title, _ := args["title"].(string)
	dueRaw, _ := args["due"].(string)
	priority, _ := args["priority"].(string)

	if strings.TrimSpace(title) == "" {
		return mcp.NewToolResultError("title is required"), nil
	}
	if s.deps.Tasks == nil {
		return mcp.NewToolResultError("task list not configured"), nil
	}

	var due *time.Time
	if strings.TrimSpace(dueRaw) != "" {
		t, ok := parseDue(dueRaw, s.deps.Now())
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("could not understand due date %q", dueRaw)), nil
		}
		due = &t
	}

	task, err := s.deps.Tasks.AddTask(ctx, title, due, priority)
	if errors.Is(err, tasks.ErrTaskLimit) {
		return mcp.NewToolResultError("task list is full; complete some tasks first"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to add task: %v", err)), nil
	}

	data, err := json.MarshalIndent(task, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal task: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func parseDue(raw string, now time.Time) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	return intent.ParseDate(raw, now)
}

func (s *Server) personalities() []string {
	if s.deps.Session != nil {
		return s.deps.Session.Catalog().Names()
	}
	return persona.DefaultCatalog().Names()
}

func setPersonalityTool(names []string) mcp.Tool {
	return mcp.NewTool("set_personality",
		mcp.WithDescription("Switch Jarvis's personality. Affects the style, emoji and voice of later replies."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("One of: "+strings.Join(names, ", ")),
			mcp.Enum(names...),
		),
	)
}

func (s *Server) handleSetPersonality(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, _ := arguments(req)["name"].(string)
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return mcp.NewToolResultError("name is required"), nil
	}
	if s.deps.Session == nil {
		return mcp.NewToolResultError("personality session not configured"), nil
	}
	p, err := s.deps.Session.SetPersonality(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Personality changed to %s (style %s).", p.Name, p.ResponseStyle)), nil
}

func statsTool() mcp.Tool {
	return mcp.NewTool("stats",
		mcp.WithDescription("Report what Jarvis has done since the server started: registered commands, per-command counters, learning log totals, the conversation context and recently played tracks."),
	)
}

type statsOutput struct {
	assistant.Stats
	RecentlyPlayed []media.Track `json:"recently_played"`
}

func (s *Server) handleStats(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.deps.Stats == nil {
		return mcp.NewToolResultError("stats not configured"), nil
	}
	out := statsOutput{Stats: s.deps.Stats.Stats(), RecentlyPlayed: []media.Track{}}
	if s.deps.Media != nil {
		out.RecentlyPlayed = append(out.RecentlyPlayed, s.deps.Media.History()...)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal stats: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
