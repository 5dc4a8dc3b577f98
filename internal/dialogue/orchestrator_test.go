package dialogue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackzampolin/radreport/internal/llmcall"
	"github.com/jackzampolin/radreport/internal/prompts"
	"github.com/jackzampolin/radreport/internal/prompts/classify"
	"github.com/jackzampolin/radreport/internal/prompts/structure"
	"github.com/jackzampolin/radreport/internal/providers"
	"github.com/jackzampolin/radreport/internal/retry"
	"github.com/jackzampolin/radreport/internal/templates"
)

const appendicitisReport = `CT ABDOMEN AND PELVIS WITH CONTRAST
INDICATION: Right lower quadrant pain.
FINDINGS: The appendix is dilated to 12 mm with periappendiceal fat stranding.
No free air. Liver, spleen and pancreas are unremarkable.
IMPRESSION: Acute uncomplicated appendicitis.`

const appendicitisJSON = `{"INDICATION":"Right lower quadrant pain.","FINDINGS":{"APPENDIX":"Dilated to 12 mm with periappendiceal fat stranding."},"IMPRESSION":"Acute uncomplicated appendicitis."}`

// fakeTimer fires immediately and counts the waits requested.
type fakeTimer struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (f *fakeTimer) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	f.waits = append(f.waits, d)
	f.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func (f *fakeTimer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.waits)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCatalog(t *testing.T) *templates.Catalog {
	t.Helper()
	c, err := templates.Default()
	if err != nil {
		t.Fatalf("templates.Default() error = %v", err)
	}
	return c
}

// respondWith answers classification prompts with classification and every
// other prompt with structured.
func respondWith(catalog *templates.Catalog, classification, structured string) func(int, *providers.ChatRequest) (string, error) {
	classifyPrompt := classify.SystemPrompt(catalog.Keys())
	return func(_ int, req *providers.ChatRequest) (string, error) {
		if req.Messages[0].Content == classifyPrompt {
			return classification, nil
		}
		return structured, nil
	}
}

func newTestOrchestrator(t *testing.T, client providers.LLMClient, timer retry.Timer, recorder *llmcall.Recorder) *Orchestrator {
	t.Helper()
	o, err := New(Config{
		Client:   client,
		Catalog:  testCatalog(t),
		Model:    "test-model",
		Policy:   retry.Policy{MaxAttempts: 10, Delay: 10 * time.Second, Timer: timer},
		Logger:   testLogger(),
		Recorder: recorder,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return o
}

func TestNew(t *testing.T) {
	catalog := testCatalog(t)

	if _, err := New(Config{Catalog: catalog}); err == nil {
		t.Error("expected error without client")
	}
	if _, err := New(Config{Client: providers.NewMockClient()}); err == nil {
		t.Error("expected error without catalog")
	}

	o, err := New(Config{Client: providers.NewMockClient(), Catalog: catalog})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if o.Policy().Attempts() != retry.DefaultMaxAttempts || o.Policy().Delay != retry.DefaultDelay {
		t.Errorf("Policy() = %+v, want defaults", o.Policy())
	}
	if o.Provider() != providers.MockClientName {
		t.Errorf("Provider() = %q", o.Provider())
	}
}

func TestStructure_TemplatePath(t *testing.T) {
	catalog := testCatalog(t)
	client := providers.NewMockClient()
	client.Respond = respondWith(catalog,
		"MAIN FINDING: Acute appendicitis\nTEMPLATE: CT ABDOMEN PELVIS",
		"```json\n"+appendicitisJSON+"\n```")

	o := newTestOrchestrator(t, client, &fakeTimer{}, nil)
	result, err := o.Structure(context.Background(), appendicitisReport)
	if err != nil {
		t.Fatalf("Structure() error = %v", err)
	}

	if result.Kind != KindStructured {
		t.Fatalf("Kind = %q, want structured", result.Kind)
	}
	if result.Template() != "CT ABDOMEN PELVIS" {
		t.Errorf("Template() = %q", result.Template())
	}
	if result.MainFinding != "Acute appendicitis" {
		t.Errorf("MainFinding = %q", result.MainFinding)
	}
	if result.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", result.Attempts)
	}
	if string(result.Document) != appendicitisJSON {
		t.Errorf("Document = %s", result.Document)
	}
	if result.Data["IMPRESSION"] != "Acute uncomplicated appendicitis." {
		t.Errorf("Data = %v", result.Data)
	}
	if result.SessionID == "" {
		t.Error("expected session id")
	}

	reqs := client.Requests()
	if len(reqs) != 2 {
		t.Fatalf("requests = %d, want 2", len(reqs))
	}
	for i, req := range reqs {
		if len(req.Messages) != 2 {
			t.Fatalf("request %d has %d messages, want 2", i, len(req.Messages))
		}
		if req.Messages[0].Role != providers.RoleSystem || req.Messages[1].Role != providers.RoleUser {
			t.Errorf("request %d roles = %s, %s", i, req.Messages[0].Role, req.Messages[1].Role)
		}
		if req.Messages[1].Content != appendicitisReport {
			t.Errorf("request %d user message is not the report", i)
		}
		if req.Model != "test-model" {
			t.Errorf("request %d model = %q", i, req.Model)
		}
	}

	classifyPrompt := reqs[0].Messages[0].Content
	for _, key := range catalog.Keys() {
		if !strings.Contains(classifyPrompt, key) {
			t.Errorf("classification prompt missing template %q", key)
		}
	}

	structurePrompt := reqs[1].Messages[0].Content
	for _, want := range []string{`"CT ABDOMEN PELVIS"`, `"APPENDIX": "Normal."`, `"LIVER_AND_BILIARY_SYSTEM"`} {
		if !strings.Contains(structurePrompt, want) {
			t.Errorf("structuring prompt missing %s:\n%s", want, structurePrompt)
		}
	}
	if len(result.Exchanges) != 2 {
		t.Errorf("Exchanges = %d, want 2", len(result.Exchanges))
	}
}

func TestStructure_FreeForm(t *testing.T) {
	tests := []struct {
		name           string
		classification string
		wantFinding    string
	}{
		{"own template", "MAIN FINDING: Scaphoid fracture\nTEMPLATE: OWN", "Scaphoid fracture"},
		{"invented template", "MAIN FINDING: Lesion\nTEMPLATE: PET-CT WHOLE BODY ONCOLOGY STAGING", "Lesion"},
		{"not a report", "MAIN FINDING: ...\nTEMPLATE: ...", "..."},
		{"unparseable classification", "Sorry, I can't help with that.", FindingUnavailable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			catalog := testCatalog(t)
			client := providers.NewMockClient()
			client.Respond = respondWith(catalog, tc.classification, `{"Findings": {"Summary": "x"}}`)

			o := newTestOrchestrator(t, client, &fakeTimer{}, nil)
			result, err := o.Structure(context.Background(), "Wrist radiograph. Scaphoid waist fracture.")
			if err != nil {
				t.Fatalf("Structure() error = %v", err)
			}
			if !result.Resolution.IsFreeForm() {
				t.Errorf("Resolution = %+v, want free-form", result.Resolution)
			}
			if result.Template() != "free-form" {
				t.Errorf("Template() = %q", result.Template())
			}
			if result.MainFinding != tc.wantFinding {
				t.Errorf("MainFinding = %q, want %q", result.MainFinding, tc.wantFinding)
			}

			reqs := client.Requests()
			if len(reqs) != 2 {
				t.Fatalf("requests = %d, want 2", len(reqs))
			}
			if reqs[1].Messages[0].Content != structure.FreeFormPrompt() {
				t.Error("second call should use the free-form outline")
			}
		})
	}
}

func TestStructure_FuzzyTemplateName(t *testing.T) {
	catalog := testCatalog(t)
	client := providers.NewMockClient()
	client.Respond = respondWith(catalog, "MAIN FINDING: Appendicitis\nTEMPLATE: ct abdomen & pelvis", `{}`)

	o := newTestOrchestrator(t, client, &fakeTimer{}, nil)
	result, err := o.Structure(context.Background(), appendicitisReport)
	if err != nil {
		t.Fatalf("Structure() error = %v", err)
	}
	if result.Template() != "CT ABDOMEN PELVIS" {
		t.Errorf("Template() = %q, want fuzzy match", result.Template())
	}
	if result.RequestedTemplate != "ct abdomen & pelvis" {
		t.Errorf("RequestedTemplate = %q", result.RequestedTemplate)
	}
}

func TestStructure_DegradedReply(t *testing.T) {
	catalog := testCatalog(t)
	text := "I'm sorry, but I can only describe the findings in prose."
	client := providers.NewMockClient()
	client.Respond = respondWith(catalog, "MAIN FINDING: x\nTEMPLATE: CT CHEST", text)

	o := newTestOrchestrator(t, client, &fakeTimer{}, nil)
	result, err := o.Structure(context.Background(), "CT chest. Lungs clear.")
	if err != nil {
		t.Fatalf("Structure() error = %v", err)
	}
	if result.Kind != KindDegraded {
		t.Fatalf("Kind = %q, want degraded", result.Kind)
	}
	if result.Text != text {
		t.Errorf("Text = %q", result.Text)
	}
	if result.Attempts != 1 {
		t.Errorf("Attempts = %d, a degraded reply is not retried", result.Attempts)
	}
}

func TestStructure_Retry(t *testing.T) {
	for _, failures := range []int{1, 3, 9} {
		t.Run(fmt.Sprintf("%d classification failures", failures), func(t *testing.T) {
			catalog := testCatalog(t)
			client := providers.NewMockClient()
			client.FailFirst = failures
			client.Respond = respondWith(catalog, "MAIN FINDING: x\nTEMPLATE: CT CHEST", `{"IMPRESSION": "ok"}`)

			timer := &fakeTimer{}
			o := newTestOrchestrator(t, client, timer, nil)
			result, err := o.Structure(context.Background(), "CT chest.")
			if err != nil {
				t.Fatalf("Structure() error = %v", err)
			}
			if int(result.Attempts) != failures+1 {
				t.Errorf("Attempts = %d, want %d", result.Attempts, failures+1)
			}
			// Each failed attempt stops after its first call.
			if got := client.RequestCount(); got != int64(failures+2) {
				t.Errorf("requests = %d, want %d", got, failures+2)
			}
			if timer.count() != failures {
				t.Errorf("waits = %d, want %d", timer.count(), failures)
			}
		})
	}

	t.Run("failure in second call restarts the whole dialogue", func(t *testing.T) {
		catalog := testCatalog(t)
		classifyPrompt := classify.SystemPrompt(catalog.Keys())
		client := providers.NewMockClient()
		client.Respond = func(n int, req *providers.ChatRequest) (string, error) {
			if req.Messages[0].Content == classifyPrompt {
				return "MAIN FINDING: x\nTEMPLATE: CT CHEST", nil
			}
			if n == 2 {
				return "", errors.New("connection reset")
			}
			return `{"IMPRESSION": "ok"}`, nil
		}

		o := newTestOrchestrator(t, client, &fakeTimer{}, nil)
		result, err := o.Structure(context.Background(), "CT chest.")
		if err != nil {
			t.Fatalf("Structure() error = %v", err)
		}
		if result.Attempts != 2 {
			t.Errorf("Attempts = %d, want 2", result.Attempts)
		}
		reqs := client.Requests()
		if len(reqs) != 4 {
			t.Fatalf("requests = %d, want 4", len(reqs))
		}
		if reqs[2].Messages[0].Content != classifyPrompt {
			t.Error("retry should start again with the classification call")
		}
		if len(result.Exchanges) != 2 {
			t.Errorf("Exchanges = %d, failed attempts should be discarded", len(result.Exchanges))
		}
	})

	t.Run("exhausted attempts", func(t *testing.T) {
		client := providers.NewMockClient()
		client.ShouldFail = true

		timer := &fakeTimer{}
		o := newTestOrchestrator(t, client, timer, nil)
		_, err := o.Structure(context.Background(), "CT chest.")
		if err == nil {
			t.Fatal("expected error")
		}

		var remote *RemoteError
		if !errors.As(err, &remote) {
			t.Fatalf("expected *RemoteError, got %T: %v", err, err)
		}
		if remote.Attempts != 10 {
			t.Errorf("Attempts = %d, want 10", remote.Attempts)
		}
		if !errors.Is(err, ErrTransientRemote) {
			t.Error("expected ErrTransientRemote")
		}
		if !errors.Is(err, providers.ErrMockFailure) {
			t.Error("expected the last underlying failure to be preserved")
		}
		if !strings.Contains(err.Error(), "after 10 attempts") {
			t.Errorf("error = %q", err.Error())
		}
		if client.RequestCount() != 10 {
			t.Errorf("requests = %d, want 10", client.RequestCount())
		}
		if timer.count() != 9 {
			t.Errorf("waits = %d, want 9", timer.count())
		}
	})

	t.Run("retry hook sees every failure", func(t *testing.T) {
		client := providers.NewMockClient()
		client.FailFirst = 2
		client.ResponseText = "{}"

		var seen []uint
		o, err := New(Config{
			Client:  client,
			Catalog: testCatalog(t),
			Logger:  testLogger(),
			Policy: retry.Policy{
				MaxAttempts: 5,
				Delay:       time.Second,
				Timer:       &fakeTimer{},
				OnRetry:     func(attempt uint, err error) { seen = append(seen, attempt) },
			},
		})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := o.Structure(context.Background(), "CT chest."); err != nil {
			t.Fatalf("Structure() error = %v", err)
		}
		if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
			t.Errorf("OnRetry attempts = %v, want [1 2]", seen)
		}
	})
}

func TestStructure_EmptyReport(t *testing.T) {
	client := providers.NewMockClient()
	o := newTestOrchestrator(t, client, &fakeTimer{}, nil)

	for _, report := range []string{"", "   ", "\n\t\n"} {
		_, err := o.Structure(context.Background(), report)
		if !errors.Is(err, ErrEmptyReport) {
			t.Errorf("Structure(%q) error = %v, want ErrEmptyReport", report, err)
		}
	}
	if client.RequestCount() != 0 {
		t.Errorf("requests = %d, want none", client.RequestCount())
	}
}

func TestStructure_Cancelled(t *testing.T) {
	client := providers.NewMockClient()
	client.ShouldFail = true

	o, err := New(Config{
		Client:  client,
		Catalog: testCatalog(t),
		Logger:  testLogger(),
		Policy:  retry.Policy{MaxAttempts: 10, Delay: time.Hour},
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := o.Structure(ctx, "CT chest.")
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
		var remote *RemoteError
		if errors.As(err, &remote) {
			t.Error("cancellation should not be reported as a remote failure")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Structure() did not return after cancellation")
	}
	if client.RequestCount() != 1 {
		t.Errorf("requests = %d, want 1", client.RequestCount())
	}
}

func TestStructure_RecordsCalls(t *testing.T) {
	catalog := testCatalog(t)
	client := providers.NewMockClient()
	client.FailFirst = 1
	client.Respond = respondWith(catalog, "MAIN FINDING: x\nTEMPLATE: CT CHEST", `{"IMPRESSION": "ok"}`)

	store := llmcall.NewStore(0)
	o := newTestOrchestrator(t, client, &fakeTimer{}, llmcall.NewRecorder(store))

	result, err := o.Structure(context.Background(), "CT chest.")
	if err != nil {
		t.Fatalf("Structure() error = %v", err)
	}

	calls, err := store.List(context.Background(), llmcall.QueryFilter{SessionID: result.SessionID})
	if err != nil {
		t.Fatal(err)
	}
	if len(calls) != 3 {
		t.Fatalf("recorded calls = %d, want 3", len(calls))
	}

	// Newest first.
	if calls[0].Stage != llmcall.StageStructure || calls[0].PromptKey != structure.TemplatePromptKey {
		t.Errorf("calls[0] = %s/%s", calls[0].Stage, calls[0].PromptKey)
	}
	if calls[1].Stage != llmcall.StageClassify || calls[1].Attempt != 2 || !calls[1].Success {
		t.Errorf("calls[1] = %+v", calls[1])
	}
	if calls[2].Attempt != 1 || calls[2].Success || calls[2].Error == "" {
		t.Errorf("failed first attempt should be recorded, got %+v", calls[2])
	}
	if calls[1].PromptHash != prompts.HashText(classify.SystemPrompt(catalog.Keys())) {
		t.Error("classification call should carry the rendered prompt hash")
	}
	if result.Exchanges[0].CallID != calls[1].ID {
		t.Errorf("exchange call id = %q, want %q", result.Exchanges[0].CallID, calls[1].ID)
	}
}

func TestStructure_ForwardsRequestParameters(t *testing.T) {
	client := providers.NewMockClient()
	client.ResponseText = "{}"

	o, err := New(Config{
		Client:      client,
		Catalog:     testCatalog(t),
		Model:       "gpt-4o",
		Temperature: providers.Float(0.2),
		MaxTokens:   512,
		Options:     map[string]any{"seed": 7},
		Logger:      testLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := o.Structure(context.Background(), "CT chest."); err != nil {
		t.Fatal(err)
	}

	for _, req := range client.Requests() {
		if req.Model != "gpt-4o" || req.MaxTokens != 512 {
			t.Errorf("request = %+v", req)
		}
		if req.Temperature == nil || *req.Temperature != 0.2 {
			t.Errorf("Temperature = %v", req.Temperature)
		}
		if req.Options["seed"] != 7 {
			t.Errorf("Options = %v", req.Options)
		}
	}
}

func TestStructure_Concurrent(t *testing.T) {
	catalog := testCatalog(t)
	client := providers.NewMockClient()
	client.Respond = respondWith(catalog, "MAIN FINDING: x\nTEMPLATE: MRI BRAIN", `{"IMPRESSION": "ok"}`)
	o := newTestOrchestrator(t, client, &fakeTimer{}, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := o.Structure(context.Background(), "MRI brain."); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Structure() error = %v", err)
	}
	if client.RequestCount() != 16 {
		t.Errorf("requests = %d, want 16", client.RequestCount())
	}
}

func TestDryRunClient(t *testing.T) {
	catalog := testCatalog(t)

	t.Run("first line names a template", func(t *testing.T) {
		o := newTestOrchestrator(t, DryRunClient(catalog, nil), &fakeTimer{}, nil)
		result, err := o.Structure(context.Background(), "CT Abdomen Pelvis\nAppendix dilated.")
		if err != nil {
			t.Fatalf("Structure() error = %v", err)
		}
		if result.Template() != "CT ABDOMEN PELVIS" {
			t.Errorf("Template() = %q", result.Template())
		}
		skeleton, _ := catalog.Skeleton("CT ABDOMEN PELVIS")
		if string(result.Document) != string(skeleton) {
			t.Errorf("Document = %s, want skeleton", result.Document)
		}
		if result.MainFinding != "dry run" {
			t.Errorf("MainFinding = %q", result.MainFinding)
		}
	})

	t.Run("unknown study is free-form", func(t *testing.T) {
		o := newTestOrchestrator(t, DryRunClient(catalog, nil), &fakeTimer{}, nil)
		result, err := o.Structure(context.Background(), "Dental panoramic radiograph\nCaries.")
		if err != nil {
			t.Fatalf("Structure() error = %v", err)
		}
		if !result.Resolution.IsFreeForm() {
			t.Errorf("Resolution = %+v", result.Resolution)
		}
		if result.Kind != KindStructured || len(result.Data) != 0 {
			t.Errorf("result = %+v, want empty object", result)
		}
	})
}

func TestRegisterPrompts(t *testing.T) {
	r := prompts.NewRegistry(testLogger())
	RegisterPrompts(r)
	for _, key := range []string{classify.SystemPromptKey, structure.TemplatePromptKey, structure.FreeFormPromptKey} {
		if _, err := r.Get(key); err != nil {
			t.Errorf("Get(%q) error = %v", key, err)
		}
	}
}
