package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/doeshing/opsagent/internal/application/analyzer"
	"github.com/doeshing/opsagent/internal/application/planner"
	"github.com/doeshing/opsagent/internal/domain"
	"github.com/doeshing/opsagent/internal/infrastructure/history"
	"github.com/doeshing/opsagent/internal/pkg/logger"
	"github.com/doeshing/opsagent/internal/ports"
)

var web1 = domain.Target{
	Name: "web1", Host: "10.0.0.5", Port: 22, Username: "root",
	AuthType: domain.AuthPassword, Password: "hunter2",
}

func TestDiskSpaceScenario(t *testing.T) {
	provider := &stubProvider{
		plans:    []string{`{"thinking":["Check filesystem usage"],"actions":[{"command":"df -h","purpose":"disk usage"}]}`},
		analysis: "# Direct Answer\nRoot is 40% full.",
	}
	runner := &stubRunner{results: map[string]domain.ExecutionResult{
		"df -h": {Command: "df -h", Output: "/dev/sda1  40% /", ExitCode: domain.IntPtr(0)},
	}}
	svc, store := newService(provider, runner)
	sink := &recordingSink{}

	interaction, err := svc.Run(context.Background(), Request{
		SessionID: "s1", Instruction: "How much disk space is left?", Target: web1,
		Model: domain.ModelDefinition{Name: "gpt-4"},
	}, sink)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []domain.UpdateType{
		domain.UpdateThinking, domain.UpdateThinkingComplete,
		domain.UpdateExecuting, domain.UpdateExecutionResult,
		domain.UpdateAnalyzing, domain.UpdateComplete,
	}
	if diff := cmp.Diff(want, sink.types()); diff != "" {
		t.Fatalf("event order (-want +got):\n%s", diff)
	}

	complete := sink.last()
	if complete.Analysis != "# Direct Answer\nRoot is 40% full." {
		t.Fatalf("unexpected analysis %q", complete.Analysis)
	}
	if len(complete.History) != 1 || complete.History[0].Instruction != "How much disk space is left?" {
		t.Fatalf("complete must carry the session history, got %+v", complete.History)
	}

	result := sink.updates[3]
	if result.Index == nil || *result.Index != 0 || result.Result.Output != "/dev/sda1  40% /" {
		t.Fatalf("unexpected execution-result %+v", result)
	}
	if len(interaction.Results) != len(interaction.Actions) {
		t.Fatal("completed interaction must have one result per action")
	}
	if log, _ := store.Snapshot("s1"); len(log) != 1 || log[0].Model != "gpt-4" || log[0].Target != "web1" {
		t.Fatalf("unexpected stored history %+v", log)
	}
	if strings.Contains(provider.planPrompts[0].User, "hunter2") {
		t.Fatal("credentials leaked into the prompt")
	}
}

func TestSSHCommandsAreFiltered(t *testing.T) {
	provider := &stubProvider{
		plans: []string{`{"thinking":["t"],"actions":[
			{"command":"ssh root@10.0.0.5","purpose":"connect"},
			{"command":"uptime","purpose":"load"},
			{"command":"free -m","purpose":"memory"}]}`},
		analysis: "ok",
	}
	runner := &stubRunner{}
	svc, _ := newService(provider, runner)
	sink := &recordingSink{}

	if _, err := svc.Run(context.Background(), Request{SessionID: "s1", Instruction: "check load", Target: web1}, sink); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if diff := cmp.Diff([]string{"uptime", "free -m"}, runner.commands()); diff != "" {
		t.Fatalf("executed commands (-want +got):\n%s", diff)
	}
	thinking := sink.updates[1].Thinking
	if thinking[len(thinking)-1] != planner.ConnectionWarning {
		t.Fatalf("expected connection warning, got %v", thinking)
	}
	for _, cmd := range runner.commands() {
		if strings.Contains(strings.ToLower(cmd), "ssh") || strings.Contains(cmd, "@") {
			t.Fatalf("unsafe command executed: %q", cmd)
		}
	}
}

func TestTransportFailureStopsExecution(t *testing.T) {
	provider := &stubProvider{
		plans: []string{`{"thinking":["t"],"actions":[
			{"command":"nginx -t"},{"command":"systemctl restart nginx"},{"command":"systemctl status nginx"}]}`},
		analysis: "partial report",
	}
	connErr := &domain.ConnectionError{Target: "root@10.0.0.5", Err: errors.New("connection refused")}
	runner := &stubRunner{errs: map[string]error{"systemctl restart nginx": connErr}}
	svc, store := newService(provider, runner)
	sink := &recordingSink{}

	interaction, err := svc.Run(context.Background(), Request{SessionID: "s1", Instruction: "restart nginx", Target: web1}, sink)
	if !errors.Is(err, connErr) {
		t.Fatalf("expected connection error, got %v", err)
	}

	want := []domain.UpdateType{
		domain.UpdateThinking, domain.UpdateThinkingComplete,
		domain.UpdateExecuting, domain.UpdateExecutionResult,
		domain.UpdateExecuting, domain.UpdateError,
	}
	if diff := cmp.Diff(want, sink.types()); diff != "" {
		t.Fatalf("event order (-want +got):\n%s", diff)
	}
	if msg := sink.last().Message; !strings.HasPrefix(msg, "Failed to execute command:") {
		t.Fatalf("unexpected error message %q", msg)
	}
	if len(runner.commands()) != 2 {
		t.Fatalf("third action must not run, got %v", runner.commands())
	}

	if len(interaction.Results) != 1 || !interaction.Aborted() {
		t.Fatalf("expected prefix results with error marker, got %+v", interaction)
	}
	if interaction.Analysis != "partial report" {
		t.Fatalf("analysis should still run, got %q", interaction.Analysis)
	}
	if !strings.Contains(provider.analysisPrompts[0].User, "Execution stopped early") {
		t.Fatal("analyzer must be told execution stopped early")
	}
	if log, _ := store.Snapshot("s1"); len(log) != 1 || log[0].Error == "" {
		t.Fatalf("aborted interaction must be recorded, got %+v", log)
	}
}

func TestNonZeroExitContinues(t *testing.T) {
	provider := &stubProvider{
		plans:    []string{`{"thinking":[],"actions":[{"command":"false"},{"command":"true"}]}`},
		analysis: "done",
	}
	runner := &stubRunner{results: map[string]domain.ExecutionResult{
		"false": {Command: "false", Error: "nope", ExitCode: domain.IntPtr(1)},
	}}
	svc, _ := newService(provider, runner)
	sink := &recordingSink{}

	if _, err := svc.Run(context.Background(), Request{SessionID: "s1", Instruction: "x", Target: web1}, sink); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(runner.commands()) != 2 || sink.last().Type != domain.UpdateComplete {
		t.Fatalf("non-zero exit must not abort: %v %v", runner.commands(), sink.types())
	}
}

func TestPlanningFailureRecordsNothing(t *testing.T) {
	provider := &stubProvider{planErr: errors.New("rate limited")}
	runner := &stubRunner{}
	svc, store := newService(provider, runner)
	sink := &recordingSink{}

	_, err := svc.Run(context.Background(), Request{SessionID: "s1", Instruction: "x", Target: web1}, sink)
	var planningErr *domain.PlanningError
	if !errors.As(err, &planningErr) {
		t.Fatalf("expected PlanningError, got %v", err)
	}
	if diff := cmp.Diff([]domain.UpdateType{domain.UpdateThinking, domain.UpdateError}, sink.types()); diff != "" {
		t.Fatalf("event order (-want +got):\n%s", diff)
	}
	if sink.last().Message != "Failed to plan actions: rate limited" {
		t.Fatalf("unexpected message %q", sink.last().Message)
	}
	if _, ok := store.Snapshot("s1"); ok {
		t.Fatal("planning failure must not append history")
	}
	if len(runner.commands()) != 0 {
		t.Fatal("nothing should execute")
	}
}

func TestHistoryContextIsPerSessionAndExcludesInFlight(t *testing.T) {
	provider := &stubProvider{
		plans: []string{
			`{"thinking":[],"actions":[{"command":"uptime"}]}`,
			`{"thinking":[],"actions":[{"command":"uptime"}]}`,
			`{"thinking":[],"actions":[{"command":"uptime"}]}`,
		},
		analysis: "a",
	}
	svc, _ := newService(provider, &stubRunner{})

	run := func(session, instruction string) {
		t.Helper()
		if _, err := svc.Run(context.Background(), Request{SessionID: session, Instruction: instruction, Target: web1}, &recordingSink{}); err != nil {
			t.Fatalf("Run: %v", err)
		}
	}
	run("alpha", "first alpha question")
	run("beta", "first beta question")
	run("alpha", "second alpha question")

	first := provider.planPrompts[0].User
	if strings.Contains(first, "Previous Interactions") {
		t.Fatal("first instruction must have no history context")
	}
	beta := provider.planPrompts[1].User
	if strings.Contains(beta, "first alpha question") {
		t.Fatal("history leaked across sessions")
	}
	second := provider.planPrompts[2].User
	if !strings.Contains(second, "User: first alpha question") {
		t.Fatalf("expected prior alpha interaction in context:\n%s", second)
	}
	if strings.Contains(second, "User: second alpha question") {
		t.Fatal("in-flight instruction must not be part of its own context")
	}
}

func TestRecentInteractionsBound(t *testing.T) {
	var plans []string
	for i := 0; i < 8; i++ {
		plans = append(plans, `{"thinking":[],"actions":[]}`)
	}
	provider := &stubProvider{plans: plans, analysis: "a"}
	svc, _ := newService(provider, &stubRunner{})
	svc.RecentInteractions = 2

	for i := 0; i < 4; i++ {
		instruction := "question " + string(rune('A'+i))
		if _, err := svc.Run(context.Background(), Request{SessionID: "s", Instruction: instruction, Target: web1}, &recordingSink{}); err != nil {
			t.Fatal(err)
		}
	}
	last := provider.planPrompts[3].User
	if strings.Contains(last, "question A") || !strings.Contains(last, "question B") || !strings.Contains(last, "question C") {
		t.Fatalf("expected only the two most recent interactions:\n%s", last)
	}
}

func TestRiskAttachedToExecutingEvent(t *testing.T) {
	provider := &stubProvider{
		plans:    []string{`{"thinking":[],"actions":[{"command":"rm -rf /tmp/cache"},{"command":"ls"}]}`},
		analysis: "a",
	}
	runner := &stubRunner{}
	svc, _ := newService(provider, runner)
	svc.Security = stubSecurity{}
	sink := &recordingSink{}

	if _, err := svc.Run(context.Background(), Request{SessionID: "s", Instruction: "clean", Target: web1}, sink); err != nil {
		t.Fatal(err)
	}
	risky := sink.updates[2]
	if risky.Risk == nil || risky.Risk.Level != domain.RiskHigh {
		t.Fatalf("expected risk on executing event, got %+v", risky)
	}
	if safe := sink.updates[4]; safe.Risk != nil {
		t.Fatalf("safe command should carry no risk, got %+v", safe.Risk)
	}
	if len(runner.commands()) != 2 {
		t.Fatal("risk assessment is advisory and must not block")
	}
}

func TestSinkFailureDoesNotStopPipeline(t *testing.T) {
	provider := &stubProvider{
		plans:    []string{`{"thinking":[],"actions":[{"command":"uptime"}]}`},
		analysis: "a",
	}
	svc, store := newService(provider, &stubRunner{})
	archive := &stubArchive{}
	svc.Archive = archive

	if _, err := svc.Run(context.Background(), Request{SessionID: "s", Instruction: "x", Target: web1}, failingSink{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if log, _ := store.Snapshot("s"); len(log) != 1 {
		t.Fatal("interaction should be recorded even when the client is gone")
	}
	if len(archive.saved) != 1 || archive.saved[0] != "s" {
		t.Fatalf("interaction should be archived, got %v", archive.saved)
	}
}

func TestCancelledInstructionStillAnalyzed(t *testing.T) {
	provider := &stubProvider{
		plans:    []string{`{"thinking":["t"],"actions":[{"command":"uptime"},{"command":"apt-get upgrade -y"},{"command":"reboot"}]}`},
		analysis: "upgrade interrupted",
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner := &stubRunner{
		errs: map[string]error{"apt-get upgrade -y": &domain.CommandDispatchError{Command: "apt-get upgrade -y", Err: context.Canceled}},
		before: func(command string) {
			if command == "apt-get upgrade -y" {
				cancel()
			}
		},
	}
	svc, store := newService(provider, runner)

	interaction, err := svc.Run(ctx, Request{SessionID: "s1", Instruction: "upgrade packages", Target: web1}, &recordingSink{})
	if !domain.IsTransportError(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if len(provider.analysisCtxErrs) != 1 || provider.analysisCtxErrs[0] != nil {
		t.Fatalf("analysis must run on a live context, got %v", provider.analysisCtxErrs)
	}
	if interaction.Analysis != "upgrade interrupted" {
		t.Fatalf("unexpected analysis %q", interaction.Analysis)
	}
	if log, _ := store.Snapshot("s1"); len(log) != 1 || log[0].Analysis != "upgrade interrupted" {
		t.Fatalf("recorded interaction should carry the report, got %+v", log)
	}
}

func TestInterruptedOutputIsKept(t *testing.T) {
	provider := &stubProvider{
		plans:    []string{`{"thinking":["t"],"actions":[{"command":"tail -f /var/log/syslog"},{"command":"uptime"}]}`},
		analysis: "timed out",
	}
	timeout := &domain.CommandDispatchError{Command: "tail -f /var/log/syslog", Err: context.DeadlineExceeded}
	runner := &stubRunner{
		results: map[string]domain.ExecutionResult{
			"tail -f /var/log/syslog": {Command: "tail -f /var/log/syslog", Output: "Jun  1 kernel: oom-killer invoked\n"},
		},
		errs: map[string]error{"tail -f /var/log/syslog": timeout},
	}
	svc, _ := newService(provider, runner)

	interaction, err := svc.Run(context.Background(), Request{SessionID: "s1", Instruction: "watch syslog", Target: web1}, &recordingSink{})
	if err == nil {
		t.Fatal("expected dispatch error")
	}
	if len(interaction.Results) != 0 {
		t.Fatalf("failing action must not add a result, got %+v", interaction.Results)
	}
	if interaction.Interrupted == nil || interaction.Interrupted.Output != "Jun  1 kernel: oom-killer invoked\n" {
		t.Fatalf("partial output lost: %+v", interaction.Interrupted)
	}
	prompt := provider.analysisPrompts[0].User
	if !strings.Contains(prompt, "oom-killer invoked") {
		t.Fatalf("analysis prompt should include the partial output:\n%s", prompt)
	}
}

func TestConnectionFailureHasNoInterruptedOutput(t *testing.T) {
	provider := &stubProvider{
		plans:    []string{`{"thinking":["t"],"actions":[{"command":"uptime"}]}`},
		analysis: "unreachable",
	}
	connErr := &domain.ConnectionError{Target: "root@10.0.0.5", Err: errors.New("no route to host")}
	runner := &stubRunner{errs: map[string]error{"uptime": connErr}}
	svc, _ := newService(provider, runner)

	interaction, _ := svc.Run(context.Background(), Request{SessionID: "s1", Instruction: "load?", Target: web1}, &recordingSink{})
	if interaction.Interrupted != nil {
		t.Fatalf("error text alone is not captured output: %+v", interaction.Interrupted)
	}
}

func newService(provider *stubProvider, runner *stubRunner) (*Service, *history.MemoryStore) {
	log := logger.Nop()
	factory := stubFactory{provider: provider}
	store := history.NewMemoryStore()
	return &Service{
		Planner:  &planner.Service{ProviderFactory: factory, Logger: log},
		Analyzer: &analyzer.Service{ProviderFactory: factory, Logger: log},
		Runner:   runner,
		History:  store,
		Logger:   log,
		Now:      func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) },
	}, store
}

type recordingSink struct {
	mu      sync.Mutex
	updates []domain.AgentUpdate
}

func (s *recordingSink) Send(_ context.Context, envelope domain.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if envelope.Update != nil {
		s.updates = append(s.updates, *envelope.Update)
	}
	return nil
}

func (s *recordingSink) types() []domain.UpdateType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UpdateType, len(s.updates))
	for i, u := range s.updates {
		out[i] = u.Type
	}
	return out
}

func (s *recordingSink) last() domain.AgentUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates[len(s.updates)-1]
}

type failingSink struct{}

func (failingSink) Send(context.Context, domain.Envelope) error {
	return errors.New("websocket closed")
}

type stubFactory struct {
	provider ports.ReasoningProvider
}

func (f stubFactory) ForModel(domain.ModelDefinition) (ports.ReasoningProvider, error) {
	return f.provider, nil
}

type stubProvider struct {
	mu              sync.Mutex
	plans           []string
	planErr         error
	analysis        string
	planPrompts     []domain.PromptPair
	analysisPrompts []domain.PromptPair
	analysisCtxErrs []error
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) CreatePlan(_ context.Context, prompts domain.PromptPair, _ domain.GenerationParams) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.planPrompts = append(p.planPrompts, prompts)
	if p.planErr != nil {
		return "", p.planErr
	}
	if len(p.plans) == 0 {
		return "", errors.New("no plan scripted")
	}
	plan := p.plans[0]
	p.plans = p.plans[1:]
	return plan, nil
}

func (p *stubProvider) CreateAnalysis(ctx context.Context, prompts domain.PromptPair, _ domain.GenerationParams) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.analysisPrompts = append(p.analysisPrompts, prompts)
	p.analysisCtxErrs = append(p.analysisCtxErrs, ctx.Err())
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.analysis, nil
}

type stubRunner struct {
	mu       sync.Mutex
	results  map[string]domain.ExecutionResult
	errs     map[string]error
	executed []string
	// before runs ahead of each command, outside the lock.
	before func(command string)
}

func (r *stubRunner) Run(_ context.Context, _ domain.Target, command string) (domain.ExecutionResult, error) {
	if r.before != nil {
		r.before(command)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executed = append(r.executed, command)
	if err, ok := r.errs[command]; ok {
		if partial, ok := r.results[command]; ok {
			return partial, err
		}
		return domain.ExecutionResult{Command: command, Error: err.Error()}, err
	}
	if result, ok := r.results[command]; ok {
		return result, nil
	}
	return domain.ExecutionResult{Command: command, ExitCode: domain.IntPtr(0)}, nil
}

func (r *stubRunner) commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.executed...)
}

type stubSecurity struct{}

func (stubSecurity) Evaluate(command string) (domain.RiskAssessment, error) {
	if strings.HasPrefix(command, "rm -rf") {
		return domain.RiskAssessment{Level: domain.RiskHigh, Reasons: []string{"recursive delete"}}, nil
	}
	return domain.RiskAssessment{Level: domain.RiskSafe}, nil
}

type stubArchive struct {
	saved []string
}

func (a *stubArchive) Save(sessionID string, _ domain.Interaction) error {
	a.saved = append(a.saved, sessionID)
	return nil
}
