package reflex

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vthunder/jarvis/internal/integrations/email"
	"github.com/vthunder/jarvis/internal/integrations/media"
	"github.com/vthunder/jarvis/internal/integrations/websearch"
	"github.com/vthunder/jarvis/internal/persona"
	"github.com/vthunder/jarvis/internal/storage"
	"github.com/vthunder/jarvis/internal/sysinfo"
	"github.com/vthunder/jarvis/internal/tasks"
	"github.com/vthunder/jarvis/internal/types"
)

// Command names
const (
	CmdChangePersonality = "changePersonality"
	CmdSetReminder       = "setReminder"
	CmdSearchWeb         = "searchWeb"
	CmdPlayMusic         = "playMusic"
	CmdStopMusic         = "stopMusic"
	CmdSetVolume         = "setVolume"
	CmdReadEmails        = "readEmails"
	CmdDownloadFile      = "downloadFile"
	CmdSendEmail         = "sendEmail"
	CmdAddTask           = "addTask"
	CmdListTasks         = "listTasks"
	CmdChangeTheme       = "changeTheme"
	CmdStopSpeaking      = "stopSpeaking"
	CmdGetDate           = "getDate"
	CmdSystemStatus      = "systemStatus"
)

// TaskService is the task/reminder collaborator
type TaskService interface {
	AddTask(ctx context.Context, title string, due *time.Time, priority string) (*storage.Task, error)
	ListTasks(ctx context.Context, filter string) ([]storage.Task, error)
	AddReminder(ctx context.Context, text string, at time.Time) (*storage.Reminder, error)
}

// MediaService is the playback collaborator
type MediaService interface {
	Play(ctx context.Context, query, source string) (media.Track, error)
	Stop(ctx context.Context) error
	SetVolume(ctx context.Context, percent int) error
}

// EmailService is the mail collaborator
type EmailService interface {
	Send(ctx context.Context, to, subject, body string) (*email.Message, error)
	Recent(ctx context.Context, filter string, limit int) ([]email.Message, error)
}

// FileService downloads files
type FileService interface {
	Download(ctx context.Context, url, filename string) (string, error)
}

// SearchService searches the web
type SearchService interface {
	Search(ctx context.Context, query string) ([]websearch.Result, error)
}

// SystemService reports host status
type SystemService interface {
	Status(ctx context.Context) (sysinfo.Status, error)
}

// SpeechStopper silences speech in progress
type SpeechStopper interface {
	Stop() error
}

// Services are the collaborators the built-in commands call. Any may be nil;
// the command then reports that it is unavailable.
type Services struct {
	Tasks   TaskService
	Media   MediaService
	Email   EmailService
	Files   FileService
	Search  SearchService
	System  SystemService
	Speaker SpeechStopper
	Session *persona.Session
	Now     func() time.Time
}

func (s Services) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// RegisterBuiltins registers every built-in command on reg
func RegisterBuiltins(reg *ActionRegistry, svc Services) {
	reg.Register(CmdChangePersonality, ActionFunc(svc.changePersonality))
	reg.Register(CmdSetReminder, ActionFunc(svc.setReminder))
	reg.Register(CmdSearchWeb, ActionFunc(svc.searchWeb))
	reg.Register(CmdPlayMusic, ActionFunc(svc.playMusic))
	reg.Register(CmdStopMusic, ActionFunc(svc.stopMusic))
	reg.Register(CmdSetVolume, ActionFunc(svc.setVolume))
	reg.Register(CmdReadEmails, ActionFunc(svc.readEmails))
	reg.Register(CmdDownloadFile, ActionFunc(svc.downloadFile))
	reg.Register(CmdSendEmail, ActionFunc(svc.sendEmail))
	reg.Register(CmdAddTask, ActionFunc(svc.addTask))
	reg.Register(CmdListTasks, ActionFunc(svc.listTasks))
	reg.Register(CmdChangeTheme, ActionFunc(svc.changeTheme))
	reg.Register(CmdStopSpeaking, ActionFunc(svc.stopSpeaking))
	reg.Register(CmdGetDate, ActionFunc(svc.getDate))
	reg.Register(CmdSystemStatus, ActionFunc(svc.systemStatus))
}

func unavailable(what string) *types.CommandResult {
	return types.ValidationError(fmt.Sprintf("Sorry, %s isn't available right now.", what))
}

func couldNot(what string, err error) *types.CommandResult {
	return types.ValidationError(fmt.Sprintf("I couldn't %s: %v", what, err))
}

func (s Services) changePersonality(ctx context.Context, ents types.Entities) (*types.CommandResult, error) {
	if s.Session == nil {
		return unavailable("personality switching"), nil
	}
	options := strings.Join(s.Session.Catalog().Names(), ", ")
	name := ents.String("personality")
	if name == "" {
		return types.ValidationError("I need a personality name. Options: " + options + "."), nil
	}
	p, err := s.Session.SetPersonality(ctx, name)
	if errors.Is(err, persona.ErrUnknownPersonality) {
		return types.ValidationError(fmt.Sprintf("I don't know the personality %q. Options: %s.", name, options)), nil
	}
	if err != nil {
		return nil, err
	}
	return types.Success(CmdChangePersonality, "Personality changed to "+p.Name+".", map[string]any{
		"personality": p.Name,
		"color":       p.Color,
	}), nil
}

func (s Services) setReminder(ctx context.Context, ents types.Entities) (*types.CommandResult, error) {
	text := ents.String("text")
	if text == "" {
		return types.ValidationError("I need to know what to remind you about."), nil
	}
	if s.Tasks == nil {
		return unavailable("the reminder service"), nil
	}

	now := s.now()
	at := now.Add(time.Hour)
	if ms, ok := ents.Int64("time"); ok {
		at = time.UnixMilli(ms).In(now.Location())
	}
	r, err := s.Tasks.AddReminder(ctx, text, at)
	if err != nil {
		return couldNot("set that reminder", err), nil
	}

	msg := fmt.Sprintf("Reminder set: %s at %s.", r.Text, formatWhen(r.TriggerTime, now))
	if fallback, _ := ents[types.EntityTimeFallback].(bool); fallback {
		msg = fmt.Sprintf("Reminder set: %s in one hour, since I couldn't tell when you meant.", r.Text)
	}
	return types.Success(CmdSetReminder, msg, map[string]any{
		"id":   r.ID,
		"text": r.Text,
		"time": r.TriggerTime.UnixMilli(),
	}), nil
}

func (s Services) searchWeb(ctx context.Context, ents types.Entities) (*types.CommandResult, error) {
	query := ents.String("query")
	if query == "" {
		return types.ValidationError("I need something to search for."), nil
	}
	if s.Search == nil {
		return unavailable("web search"), nil
	}
	results, err := s.Search.Search(ctx, query)
	if err != nil {
		return couldNot("search the web", err), nil
	}
	msg := fmt.Sprintf("Here's what I found for %q:\n%s", query, websearch.Summarize(results))
	return types.Success(CmdSearchWeb, msg, map[string]any{
		"query":   query,
		"results": results,
	}), nil
}

func (s Services) playMusic(ctx context.Context, ents types.Entities) (*types.CommandResult, error) {
	query := ents.String("query")
	if query == "" {
		return types.ValidationError("I need to know what to play."), nil
	}
	if s.Media == nil {
		return unavailable("music playback"), nil
	}
	track, err := s.Media.Play(ctx, query, ents.String("source"))
	if err != nil {
		return couldNot("play that", err), nil
	}
	msg := "Playing " + track.Query + "."
	if track.Source != media.SourceLocal {
		msg = fmt.Sprintf("Playing %s on %s.", track.Query, track.Source)
	}
	return types.Success(CmdPlayMusic, msg, map[string]any{
		"query":  track.Query,
		"source": track.Source,
		"url":    track.URL,
	}), nil
}

func (s Services) stopMusic(ctx context.Context, _ types.Entities) (*types.CommandResult, error) {
	if s.Media == nil {
		return unavailable("music playback"), nil
	}
	if err := s.Media.Stop(ctx); err != nil {
		return couldNot("stop the music", err), nil
	}
	return types.Success(CmdStopMusic, "Music stopped.", nil), nil
}

func (s Services) setVolume(ctx context.Context, ents types.Entities) (*types.CommandResult, error) {
	level, ok := ents.Int64("volume")
	if !ok {
		return types.ValidationError("I need a volume level between 0 and 100."), nil
	}
	if level < 0 || level > 100 {
		return types.ValidationError("Volume must be between 0 and 100."), nil
	}
	if s.Media == nil {
		return unavailable("volume control"), nil
	}
	if err := s.Media.SetVolume(ctx, int(level)); err != nil {
		return couldNot("change the volume", err), nil
	}
	return types.Success(CmdSetVolume, fmt.Sprintf("Volume set to %d%%.", level), map[string]any{
		"volume": level,
	}), nil
}

func (s Services) readEmails(ctx context.Context, ents types.Entities) (*types.CommandResult, error) {
	if s.Email == nil {
		return unavailable("email"), nil
	}
	filter := ents.String("filter")
	msgs, err := s.Email.Recent(ctx, filter, 5)
	if err != nil {
		return couldNot("read your email", err), nil
	}
	if len(msgs) == 0 {
		if filter != "" {
			return types.Success(CmdReadEmails, "You have no emails from "+filter+".", nil), nil
		}
		return types.Success(CmdReadEmails, "You have no emails.", nil), nil
	}

	var sb strings.Builder
	sb.WriteString("Here are your latest emails:")
	for _, m := range msgs {
		fmt.Fprintf(&sb, "\n- %s: %s", m.From, m.Subject)
	}
	return types.Success(CmdReadEmails, sb.String(), map[string]any{"count": len(msgs)}), nil
}

func (s Services) downloadFile(ctx context.Context, ents types.Entities) (*types.CommandResult, error) {
	url := ents.String("url")
	if url == "" {
		return types.ValidationError("I need a URL to download a file."), nil
	}
	if s.Files == nil {
		return unavailable("downloading"), nil
	}
	path, err := s.Files.Download(ctx, url, ents.String("filename"))
	if err != nil {
		return couldNot("download that file", err), nil
	}
	return types.Success(CmdDownloadFile, "Downloaded to "+path+".", map[string]any{
		"url":  url,
		"path": path,
	}), nil
}

func (s Services) sendEmail(ctx context.Context, ents types.Entities) (*types.CommandResult, error) {
	to := ents.String("to")
	if to == "" {
		return types.ValidationError("I need a recipient to send an email."), nil
	}
	if s.Email == nil {
		return unavailable("email"), nil
	}
	m, err := s.Email.Send(ctx, to, ents.String("subject"), ents.String("body"))
	if err != nil {
		return couldNot("send that email", err), nil
	}
	msg := "Email to " + m.To + " queued."
	if m.Status == email.StatusSent {
		msg = "Email sent to " + m.To + "."
	}
	return types.Success(CmdSendEmail, msg, map[string]any{
		"id":     m.ID,
		"to":     m.To,
		"status": m.Status,
	}), nil
}

func (s Services) addTask(ctx context.Context, ents types.Entities) (*types.CommandResult, error) {
	title := ents.String("title")
	if title == "" {
		return types.ValidationError("I need a title for the task."), nil
	}
	if s.Tasks == nil {
		return unavailable("the task list"), nil
	}

	var due *time.Time
	if ms, ok := ents.Int64("dueDate"); ok {
		t := time.UnixMilli(ms).In(s.now().Location())
		due = &t
	}
	task, err := s.Tasks.AddTask(ctx, title, due, ents.String("priority"))
	if errors.Is(err, tasks.ErrTaskLimit) {
		return types.ValidationError("Your task list is full. Complete some tasks first."), nil
	}
	if err != nil {
		return couldNot("add that task", err), nil
	}

	msg := "Task added: " + task.Title
	if task.DueDate != nil {
		msg += ", due " + formatWhen(*task.DueDate, s.now())
	}
	if task.Priority != tasks.DefaultPriority {
		msg += " (" + task.Priority + " priority)"
	}
	return types.Success(CmdAddTask, msg+".", map[string]any{
		"id":       task.ID,
		"title":    task.Title,
		"priority": task.Priority,
	}), nil
}

func (s Services) listTasks(ctx context.Context, ents types.Entities) (*types.CommandResult, error) {
	if s.Tasks == nil {
		return unavailable("the task list"), nil
	}
	list, err := s.Tasks.ListTasks(ctx, ents.String("filter"))
	if errors.Is(err, tasks.ErrInvalidFilter) {
		return types.ValidationError("I can list open, completed, all, or low/medium/high/urgent tasks."), nil
	}
	if err != nil {
		return couldNot("list your tasks", err), nil
	}
	if len(list) == 0 {
		return types.Success(CmdListTasks, "You have no tasks.", map[string]any{"count": 0}), nil
	}

	now := s.now()
	var sb strings.Builder
	sb.WriteString("Your tasks:")
	for _, t := range list {
		fmt.Fprintf(&sb, "\n- %s", t.Title)
		var notes []string
		if t.Priority != tasks.DefaultPriority {
			notes = append(notes, t.Priority)
		}
		if t.DueDate != nil {
			notes = append(notes, "due "+formatWhen(*t.DueDate, now))
		}
		if t.Completed {
			notes = append(notes, "done")
		}
		if len(notes) > 0 {
			sb.WriteString(" (" + strings.Join(notes, ", ") + ")")
		}
	}
	return types.Success(CmdListTasks, sb.String(), map[string]any{"count": len(list)}), nil
}

func (s Services) changeTheme(ctx context.Context, ents types.Entities) (*types.CommandResult, error) {
	theme := strings.ToLower(ents.String("theme"))
	if theme == "" {
		return types.ValidationError("I need a theme: light, dark, auto or normal."), nil
	}
	if s.Session == nil {
		return unavailable("theme switching"), nil
	}
	err := s.Session.SetTheme(ctx, theme)
	if errors.Is(err, persona.ErrUnknownTheme) {
		return types.ValidationError(fmt.Sprintf("I don't know the theme %q. Options: %s.",
			theme, strings.Join(s.Session.Catalog().Themes(), ", "))), nil
	}
	if err != nil {
		return nil, err
	}
	return types.Success(CmdChangeTheme, "Theme changed to "+theme+".", map[string]any{"theme": theme}), nil
}

func (s Services) stopSpeaking(_ context.Context, _ types.Entities) (*types.CommandResult, error) {
	if s.Speaker != nil {
		if err := s.Speaker.Stop(); err != nil {
			return couldNot("stop speaking", err), nil
		}
	}
	return types.Success(CmdStopSpeaking, "Okay, I'll be quiet.", nil), nil
}

func (s Services) getDate(_ context.Context, ents types.Entities) (*types.CommandResult, error) {
	now := s.now()
	var msg string
	switch strings.ToLower(ents.String("what")) {
	case "time":
		msg = "It's " + now.Format("3:04 PM") + "."
	case "day":
		msg = "Today is " + now.Format("Monday") + "."
	default:
		msg = "Today is " + now.Format("Monday, January 2, 2006") + "."
	}
	return types.Success(CmdGetDate, msg, map[string]any{"time": now.UnixMilli()}), nil
}

func (s Services) systemStatus(ctx context.Context, _ types.Entities) (*types.CommandResult, error) {
	if s.System == nil {
		return unavailable("system status"), nil
	}
	st, err := s.System.Status(ctx)
	if err != nil {
		return couldNot("read the system status", err), nil
	}
	return types.Success(CmdSystemStatus, st.Summary(), map[string]any{"status": st}), nil
}

// formatWhen renders t relative to now: "3:04 PM", "tomorrow at 3:04 PM" or
// "Mon Jan 2 at 3:04 PM"
func formatWhen(t, now time.Time) string {
	t = t.In(now.Location())
	y1, m1, d1 := now.Date()
	y2, m2, d2 := t.Date()
	today := time.Date(y1, m1, d1, 0, 0, 0, 0, now.Location())
	day := time.Date(y2, m2, d2, 0, 0, 0, 0, now.Location())
	switch day.Sub(today) {
	case 0:
		return t.Format("3:04 PM")
	case 24 * time.Hour:
		return "tomorrow at " + t.Format("3:04 PM")
	}
	return t.Format("Mon Jan 2") + " at " + t.Format("3:04 PM")
}
