package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajkrsingh9/Gagan-Dhristi/internal/model"
	"github.com/rajkrsingh9/Gagan-Dhristi/internal/repository"
	"github.com/rajkrsingh9/Gagan-Dhristi/internal/service/worker"
)

// --- mocks ---

type mockInvoker struct {
	mu       sync.Mutex
	calls    []string
	invokeFn func(ctx context.Context, op string, args ...string) (worker.Output, error)
}

func (m *mockInvoker) Invoke(ctx context.Context, op string, args ...string) (worker.Output, error) {
	m.mu.Lock()
	m.calls = append(m.calls, op)
	m.mu.Unlock()
	return m.invokeFn(ctx, op, args...)
}

func (m *mockInvoker) called(op string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.calls {
		if c == op {
			return true
		}
	}
	return false
}

type mockStore struct {
	listFn   func(ctx context.Context) ([]model.MonitoringTask, error)
	appendFn func(ctx context.Context, task model.MonitoringTask) error
	clearFn  func(ctx context.Context) error
}

func (m *mockStore) List(ctx context.Context) ([]model.MonitoringTask, error) { return m.listFn(ctx) }
func (m *mockStore) Append(ctx context.Context, task model.MonitoringTask) error {
	return m.appendFn(ctx, task)
}
func (m *mockStore) Clear(ctx context.Context) error { return m.clearFn(ctx) }

type mockNotifier struct {
	mu               sync.Mutex
	enabled          bool
	defaultRecipient string
	notifyFn         func(ctx context.Context, a model.Alert, recipient string) error
	sent             []string
	alerts           []model.Alert
}

func (m *mockNotifier) Enabled() bool { return m.enabled }
func (m *mockNotifier) ResolveRecipient(explicit string) string {
	if explicit != "" {
		return explicit
	}
	return m.defaultRecipient
}
func (m *mockNotifier) Notify(ctx context.Context, a model.Alert, recipient string) error {
	m.mu.Lock()
	m.sent = append(m.sent, recipient)
	m.alerts = append(m.alerts, a)
	m.mu.Unlock()
	if m.notifyFn != nil {
		return m.notifyFn(ctx, a, recipient)
	}
	return nil
}

type mockSignaler struct {
	signalFn func(ctx context.Context, aoiID string) error
}

func (m *mockSignaler) Signal(ctx context.Context, aoiID string) error { return m.signalFn(ctx, aoiID) }

// --- helpers ---

var geometry = json.RawMessage(`{"type":"Polygon","coordinates":[[[77.1,28.6],[77.2,28.6],[77.2,28.7],[77.1,28.6]]]}`)

func submission(methods ...model.DetectionMethod) model.Submission {
	return model.Submission{
		Geometry:  geometry,
		StartDate: "2025-01-01",
		EndDate:   "2025-06-01",
		Threshold: 0.3,
		Methods:   methods,
	}
}

func acquired() worker.Output {
	return worker.Output{"status": "success", "t1_path": "/tmp/t1.tif", "t2_path": "/tmp/t2.tif", "temp_dir": "/tmp"}
}

func nested(pct float64) worker.Output {
	return worker.Output{"status": "success", "summary": map[string]any{"percentage_change": pct, "total_aoi_area_ha": 12.0}}
}

func flat(pct float64) worker.Output {
	return worker.Output{
		"status":              "success",
		"message":             "done",
		"percentage_change":   pct,
		"total_change_pixels": 420.0,
		"change_mask_path":    "mask.tif",
		"internal_debug":      "dropped",
	}
}

// scripted answers each operation from a table.
func scripted(replies map[string]func() (worker.Output, error)) *mockInvoker {
	return &mockInvoker{invokeFn: func(_ context.Context, op string, _ ...string) (worker.Output, error) {
		if f, ok := replies[op]; ok {
			return f()
		}
		return nil, errors.New("unexpected operation " + op)
	}}
}

func ok(out worker.Output) func() (worker.Output, error) {
	return func() (worker.Output, error) { return out, nil }
}

// --- Submit tests ---

func TestSubmit_NoMethods(t *testing.T) {
	inv := scripted(nil)
	o := New(inv, &mockStore{}, &mockNotifier{}, t.TempDir())

	_, err := o.Submit(context.Background(), submission())
	assert.ErrorIs(t, err, ErrNoDetectionMethod)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Empty(t, inv.calls, "no worker may run")
}

func TestSubmit_UnknownMethod(t *testing.T) {
	inv := scripted(nil)
	o := New(inv, &mockStore{}, &mockNotifier{}, t.TempDir())

	_, err := o.Submit(context.Background(), submission("thermal"))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "thermal")
	assert.Empty(t, inv.calls)
}

func TestSubmit_ThresholdOutOfRange(t *testing.T) {
	o := New(scripted(nil), &mockStore{}, &mockNotifier{}, t.TempDir())
	sub := submission(model.MethodVegetation)
	sub.Threshold = 1.5

	_, err := o.Submit(context.Background(), sub)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestSubmit_AcquisitionReportsError(t *testing.T) {
	inv := scripted(map[string]func() (worker.Output, error){
		acquisitionScript: ok(worker.Output{"status": "error", "message": "No images found"}),
	})
	o := New(inv, &mockStore{}, &mockNotifier{}, t.TempDir())

	_, err := o.Submit(context.Background(), submission(model.MethodVegetation, model.MethodStructural))
	var aerr *AcquisitionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "No images found", aerr.Payload["message"])
	assert.False(t, inv.called("gee_change_detection.py"))
	assert.False(t, inv.called("unet_inference.py"))
}

func TestSubmit_AcquisitionProcessFails(t *testing.T) {
	inv := scripted(map[string]func() (worker.Output, error){
		acquisitionScript: func() (worker.Output, error) {
			return nil, &worker.Error{
				Operation: acquisitionScript,
				Kind:      worker.ErrExecution,
				Message:   "Processing failed for gee_drive_download.py.",
				Details:   "Traceback",
			}
		},
	})
	o := New(inv, &mockStore{}, &mockNotifier{}, t.TempDir())

	_, err := o.Submit(context.Background(), submission(model.MethodCVA))
	var aerr *AcquisitionError
	require.ErrorAs(t, err, &aerr)
	assert.ErrorIs(t, err, worker.ErrExecution)
	assert.Equal(t, "error", aerr.Payload["status"])
	assert.Equal(t, "Traceback", aerr.Payload["details"])
	assert.False(t, inv.called("cva_change_detection.py"))
}

func TestSubmit_AcquisitionWithoutPaths(t *testing.T) {
	inv := scripted(map[string]func() (worker.Output, error){
		acquisitionScript: ok(worker.Output{"status": "success", "message": "Script completed with no output."}),
	})
	o := New(inv, &mockStore{}, &mockNotifier{}, t.TempDir())

	_, err := o.Submit(context.Background(), submission(model.MethodVegetation))
	var aerr *AcquisitionError
	assert.ErrorAs(t, err, &aerr)
}

func TestSubmit_PassesWorkerArguments(t *testing.T) {
	var mu sync.Mutex
	got := map[string][]string{}
	inv := &mockInvoker{invokeFn: func(_ context.Context, op string, args ...string) (worker.Output, error) {
		mu.Lock()
		got[op] = args
		mu.Unlock()
		switch op {
		case acquisitionScript:
			return acquired(), nil
		case "unet_inference.py":
			return flat(1), nil
		default:
			return nested(1), nil
		}
	}}
	o := New(inv, &mockStore{}, &mockNotifier{}, t.TempDir())

	_, err := o.Submit(context.Background(), submission(model.MethodVegetation, model.MethodStructural, model.MethodCVA))
	require.NoError(t, err)

	assert.Equal(t, []string{string(geometry), "2025-01-01", "2025-06-01"}, got[acquisitionScript])
	assert.Equal(t, []string{"/tmp/t1.tif", "/tmp/t2.tif", "0.3"}, got["gee_change_detection.py"])
	assert.Equal(t, []string{"/tmp/t1.tif", "/tmp/t2.tif"}, got["unet_inference.py"])
	assert.Equal(t, []string{"/tmp/t1.tif", "/tmp/t2.tif", "0.3"}, got["cva_change_detection.py"])
}

func TestSubmit_CombinesAndShapesSummaries(t *testing.T) {
	inv := scripted(map[string]func() (worker.Output, error){
		acquisitionScript:         ok(acquired()),
		"gee_change_detection.py": ok(nested(10)),
		"unet_inference.py":       ok(flat(20)),
	})
	o := New(inv, &mockStore{}, &mockNotifier{}, t.TempDir())

	resp, err := o.Submit(context.Background(), submission(model.MethodVegetation, model.MethodStructural))
	require.NoError(t, err)

	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "Change detection tasks completed.", resp.Message)
	assert.InDelta(t, 15.0, resp.CombinedChange, 1e-9)
	assert.Equal(t, 10.0, resp.NDVISummary["percentage_change"])
	assert.Equal(t, 12.0, resp.NDVISummary["total_aoi_area_ha"])
	assert.Equal(t, map[string]any{
		"message":             "done",
		"percentage_change":   20.0,
		"total_change_pixels": 420.0,
		"change_mask_path":    "mask.tif",
	}, resp.UNetSummary)
	assert.Nil(t, resp.CVASummary)
	assert.False(t, inv.called("cva_change_detection.py"))
	assert.False(t, resp.AlertTriggered)
}

func TestSubmit_PartialFailure(t *testing.T) {
	inv := scripted(map[string]func() (worker.Output, error){
		acquisitionScript: ok(acquired()),
		"gee_change_detection.py": func() (worker.Output, error) {
			return nil, &worker.Error{Operation: "gee_change_detection.py", Kind: worker.ErrExecution, Message: "boom"}
		},
		"unet_inference.py": ok(flat(40)),
		"cva_change_detection.py": func() (worker.Output, error) {
			return nil, &worker.Error{Operation: "cva_change_detection.py", Kind: worker.ErrParse, Message: "bad json"}
		},
	})
	n := &mockNotifier{enabled: true, defaultRecipient: "ops@example.com"}
	o := New(inv, &mockStore{}, n, t.TempDir())

	resp, err := o.Submit(context.Background(), submission(model.MethodVegetation, model.MethodStructural, model.MethodCVA))
	require.NoError(t, err)
	o.Wait()

	assert.Nil(t, resp.NDVISummary)
	assert.Nil(t, resp.CVASummary)
	assert.InDelta(t, 40.0, resp.CombinedChange, 1e-9)
	assert.True(t, resp.AlertTriggered)
	assert.Equal(t, []string{"ops@example.com"}, n.sent)
}

func TestSubmit_WorkerStatusErrorDoesNotContribute(t *testing.T) {
	inv := scripted(map[string]func() (worker.Output, error){
		acquisitionScript:         ok(acquired()),
		"gee_change_detection.py": ok(worker.Output{"status": "error", "message": "cloudy", "summary": map[string]any{"percentage_change": 99.0}}),
		"cva_change_detection.py": ok(nested(5)),
	})
	o := New(inv, &mockStore{}, &mockNotifier{}, t.TempDir())

	resp, err := o.Submit(context.Background(), submission(model.MethodVegetation, model.MethodCVA))
	require.NoError(t, err)
	assert.Nil(t, resp.NDVISummary)
	assert.InDelta(t, 5.0, resp.CombinedChange, 1e-9)
}

func TestSubmit_SoftSuccessDoesNotContribute(t *testing.T) {
	inv := scripted(map[string]func() (worker.Output, error){
		acquisitionScript:         ok(acquired()),
		"gee_change_detection.py": ok(worker.Output{"status": "success", "message": "Script completed with no output.", "details": ""}),
	})
	n := &mockNotifier{enabled: true, defaultRecipient: "ops@example.com"}
	o := New(inv, &mockStore{}, n, t.TempDir())

	sub := submission(model.MethodVegetation)
	sub.Threshold = 0
	resp, err := o.Submit(context.Background(), sub)
	require.NoError(t, err)
	o.Wait()

	assert.Nil(t, resp.NDVISummary)
	assert.Zero(t, resp.CombinedChange)
	assert.False(t, resp.AlertTriggered)
	assert.Empty(t, n.sent)
}

func TestSubmit_ThresholdIsStrict(t *testing.T) {
	inv := scripted(map[string]func() (worker.Output, error){
		acquisitionScript:         ok(acquired()),
		"gee_change_detection.py": ok(nested(30)),
	})
	n := &mockNotifier{enabled: true, defaultRecipient: "ops@example.com"}
	o := New(inv, &mockStore{}, n, t.TempDir())

	resp, err := o.Submit(context.Background(), submission(model.MethodVegetation))
	require.NoError(t, err)
	o.Wait()

	assert.False(t, resp.AlertTriggered)
	assert.Empty(t, n.sent)
}

func TestSubmit_AlertUsesExplicitRecipientAndComposes(t *testing.T) {
	inv := scripted(map[string]func() (worker.Output, error){
		acquisitionScript:         ok(acquired()),
		"gee_change_detection.py": ok(nested(50)),
		"unet_inference.py":       ok(flat(30)),
	})
	n := &mockNotifier{enabled: true, defaultRecipient: "ops@example.com"}
	now := time.Date(2026, 5, 5, 12, 0, 0, 0, time.UTC)
	o := New(inv, &mockStore{}, n, t.TempDir(), WithClock(func() time.Time { return now }))

	sub := submission(model.MethodStructural, model.MethodVegetation)
	sub.Recipient = "user@example.com"
	resp, err := o.Submit(context.Background(), sub)
	require.NoError(t, err)
	o.Wait()

	assert.True(t, resp.AlertTriggered)
	require.Len(t, n.alerts, 1)
	a := n.alerts[0]
	assert.Equal(t, []string{"user@example.com"}, n.sent)
	assert.Equal(t, "User-defined AOI", a.AOILabel)
	assert.InDelta(t, 40.0, a.CombinedChange, 1e-9)
	assert.Equal(t, 30.0, a.ThresholdPercent)
	assert.Equal(t, now, a.DetectedAt)
	assert.Equal(t, []model.MethodChange{
		{Method: model.MethodVegetation, Percentage: 50},
		{Method: model.MethodStructural, Percentage: 30},
	}, a.Changes)
}

func TestSubmit_VegetationOnlyAlertsDefaultRecipient(t *testing.T) {
	inv := scripted(map[string]func() (worker.Output, error){
		acquisitionScript:         ok(acquired()),
		"gee_change_detection.py": ok(nested(12.0)),
	})
	n := &mockNotifier{enabled: true, defaultRecipient: "ops@example.com"}
	o := New(inv, &mockStore{}, n, t.TempDir())

	sub := submission(model.MethodVegetation)
	sub.Threshold = 0.10
	resp, err := o.Submit(context.Background(), sub)
	require.NoError(t, err)
	o.Wait()

	assert.Equal(t, "success", resp.Status)
	require.NotNil(t, resp.NDVISummary)
	assert.Equal(t, 12.0, resp.NDVISummary["percentage_change"])
	assert.Nil(t, resp.UNetSummary)
	assert.Nil(t, resp.CVASummary)
	assert.Equal(t, 12.0, resp.CombinedChange)
	assert.True(t, resp.AlertTriggered)

	assert.False(t, inv.called("unet_inference.py"))
	assert.False(t, inv.called("cva_change_detection.py"))
	require.Len(t, n.alerts, 1)
	assert.Equal(t, []string{"ops@example.com"}, n.sent)
	assert.Equal(t, 12.0, n.alerts[0].CombinedChange)
}

func TestSubmit_NotificationFailureIsSwallowed(t *testing.T) {
	inv := scripted(map[string]func() (worker.Output, error){
		acquisitionScript:         ok(acquired()),
		"gee_change_detection.py": ok(nested(90)),
	})
	n := &mockNotifier{
		enabled:          true,
		defaultRecipient: "ops@example.com",
		notifyFn: func(context.Context, model.Alert, string) error {
			return errors.New("smtp unreachable")
		},
	}
	o := New(inv, &mockStore{}, n, t.TempDir())

	resp, err := o.Submit(context.Background(), submission(model.MethodVegetation))
	require.NoError(t, err)
	o.Wait()
	assert.True(t, resp.AlertTriggered)
	assert.Len(t, n.sent, 1)
}

func TestSubmit_NoRecipientSkipsDispatch(t *testing.T) {
	inv := scripted(map[string]func() (worker.Output, error){
		acquisitionScript:         ok(acquired()),
		"gee_change_detection.py": ok(nested(90)),
	})
	n := &mockNotifier{enabled: true}
	o := New(inv, &mockStore{}, n, t.TempDir())

	resp, err := o.Submit(context.Background(), submission(model.MethodVegetation))
	require.NoError(t, err)
	o.Wait()
	assert.True(t, resp.AlertTriggered)
	assert.Empty(t, n.sent)
}

func TestSubmit_ResultsMatchedByMethodNotArrival(t *testing.T) {
	inv := &mockInvoker{invokeFn: func(_ context.Context, op string, _ ...string) (worker.Output, error) {
		switch op {
		case acquisitionScript:
			return acquired(), nil
		case "gee_change_detection.py":
			time.Sleep(30 * time.Millisecond)
			return nested(11), nil
		case "cva_change_detection.py":
			return nested(33), nil
		}
		return flat(22), nil
	}}
	o := New(inv, &mockStore{}, &mockNotifier{}, t.TempDir())

	resp, err := o.Submit(context.Background(), submission(model.MethodCVA, model.MethodStructural, model.MethodVegetation))
	require.NoError(t, err)
	assert.Equal(t, 11.0, resp.NDVISummary["percentage_change"])
	assert.Equal(t, 22.0, resp.UNetSummary["percentage_change"])
	assert.Equal(t, 33.0, resp.CVASummary["percentage_change"])
	assert.InDelta(t, 22.0, resp.CombinedChange, 1e-9)
}

func TestSubmit_DuplicateMethodsRunOnce(t *testing.T) {
	inv := scripted(map[string]func() (worker.Output, error){
		acquisitionScript:         ok(acquired()),
		"gee_change_detection.py": ok(nested(10)),
	})
	o := New(inv, &mockStore{}, &mockNotifier{}, t.TempDir())

	_, err := o.Submit(context.Background(), submission(model.MethodVegetation, model.MethodVegetation))
	require.NoError(t, err)
	assert.Len(t, inv.calls, 2)
}

// --- monitoring tests ---

func TestStartMonitoring_RequiresRecipient(t *testing.T) {
	appended := false
	store := &mockStore{appendFn: func(context.Context, model.MonitoringTask) error {
		appended = true
		return nil
	}}
	o := New(scripted(nil), store, &mockNotifier{}, t.TempDir())

	_, err := o.StartMonitoring(context.Background(), model.MonitorRequest{
		Geometry: geometry, IntervalDays: 7, Threshold: 0.2,
	})
	assert.ErrorIs(t, err, ErrRecipientRequired)
	assert.False(t, appended)
}

func TestStartMonitoring_InvalidInterval(t *testing.T) {
	o := New(scripted(nil), &mockStore{}, &mockNotifier{}, t.TempDir())

	_, err := o.StartMonitoring(context.Background(), model.MonitorRequest{
		Geometry: geometry, IntervalDays: 0, Threshold: 0.2, Recipient: "u@example.com",
	})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestStartMonitoring_PersistsAndSignals(t *testing.T) {
	var stored model.MonitoringTask
	store := &mockStore{appendFn: func(_ context.Context, task model.MonitoringTask) error {
		stored = task
		return nil
	}}
	signaled := make(chan string, 1)
	sig := &mockSignaler{signalFn: func(_ context.Context, id string) error {
		signaled <- id
		return nil
	}}
	o := New(scripted(nil), store, &mockNotifier{}, t.TempDir(), WithSignaler(sig))

	task, err := o.StartMonitoring(context.Background(), model.MonitorRequest{
		Geometry: geometry, IntervalDays: 7, Threshold: 0.2, Recipient: "u@example.com",
	})
	require.NoError(t, err)
	o.Wait()

	assert.Regexp(t, `^aoi-[0-9a-f-]{36}$`, task.AOIID)
	assert.Equal(t, task.AOIID, stored.AOIID)
	assert.Nil(t, stored.LastCheckedDate)
	assert.Equal(t, 7, stored.MonitoringIntervalDays)
	assert.Equal(t, "u@example.com", stored.EmailRecipient)
	assert.Equal(t, task.AOIID, <-signaled)
}

func TestStartMonitoring_SignalFailureKeepsTask(t *testing.T) {
	store := &mockStore{appendFn: func(context.Context, model.MonitoringTask) error { return nil }}
	sig := &mockSignaler{signalFn: func(context.Context, string) error { return errors.New("broker down") }}
	o := New(scripted(nil), store, &mockNotifier{}, t.TempDir(), WithSignaler(sig))

	task, err := o.StartMonitoring(context.Background(), model.MonitorRequest{
		Geometry: geometry, IntervalDays: 1, Threshold: 0.2, Recipient: "u@example.com",
	})
	o.Wait()
	require.NoError(t, err)
	assert.NotEmpty(t, task.AOIID)
}

func TestStartMonitoring_StoreFailure(t *testing.T) {
	store := &mockStore{appendFn: func(context.Context, model.MonitoringTask) error { return errors.New("disk full") }}
	o := New(scripted(nil), store, &mockNotifier{}, t.TempDir())

	_, err := o.StartMonitoring(context.Background(), model.MonitorRequest{
		Geometry: geometry, IntervalDays: 1, Threshold: 0.2, Recipient: "u@example.com",
	})
	var serr *StoreError
	assert.ErrorAs(t, err, &serr)
}

func TestStopMonitoring(t *testing.T) {
	cleared := false
	o := New(scripted(nil), &mockStore{clearFn: func(context.Context) error {
		cleared = true
		return nil
	}}, &mockNotifier{}, t.TempDir())

	require.NoError(t, o.StopMonitoring(context.Background()))
	assert.True(t, cleared)
}

func TestStopMonitoring_Idempotent(t *testing.T) {
	store := repository.NewFileTaskStore(filepath.Join(t.TempDir(), "tasks.json"))
	o := New(scripted(nil), store, &mockNotifier{}, t.TempDir())
	ctx := context.Background()

	// absent document
	require.NoError(t, o.StopMonitoring(ctx))
	require.NoError(t, o.StopMonitoring(ctx))
	tasks, err := o.Tasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	_, err = o.StartMonitoring(ctx, model.MonitorRequest{
		Geometry: geometry, IntervalDays: 7, Threshold: 0.2, Recipient: "user@example.com",
	})
	require.NoError(t, err)
	require.NoError(t, o.StopMonitoring(ctx))
	require.NoError(t, o.StopMonitoring(ctx))

	tasks, err = o.Tasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestStopMonitoring_StoreFailure(t *testing.T) {
	o := New(scripted(nil), &mockStore{clearFn: func(context.Context) error {
		return errors.New("read-only fs")
	}}, &mockNotifier{}, t.TempDir())

	var serr *StoreError
	assert.ErrorAs(t, o.StopMonitoring(context.Background()), &serr)
}

// --- artifact tests ---

func TestResolveArtifact(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "artifacts")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "run1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "change_mask.tif"), []byte("tif"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "secret.txt"), []byte("x"), 0o644))

	o := New(scripted(nil), &mockStore{}, &mockNotifier{}, dir)

	path, err := o.ResolveArtifact("change_mask.tif")
	require.NoError(t, err)
	assert.Equal(t, "change_mask.tif", filepath.Base(path))

	for _, name := range []string{"", "missing.png", "../secret.txt", "run1/../../secret.txt", "run1", ".", ".."} {
		_, err := o.ResolveArtifact(name)
		assert.ErrorIs(t, err, ErrArtifactNotFound, name)
	}
}

func TestResolveArtifact_SymlinkLeavingDirIsNotFound(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "artifacts")
	outside := filepath.Join(root, "outside")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.MkdirAll(outside, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "overlay.png"), []byte("png"), 0o644))
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret.txt"), filepath.Join(dir, "leak.txt")))
	require.NoError(t, os.Symlink(outside, filepath.Join(dir, "linkdir")))
	require.NoError(t, os.Symlink(filepath.Join(dir, "overlay.png"), filepath.Join(dir, "latest.png")))

	o := New(scripted(nil), &mockStore{}, &mockNotifier{}, dir)

	for _, name := range []string{"leak.txt", "linkdir/secret.txt"} {
		_, err := o.ResolveArtifact(name)
		assert.ErrorIs(t, err, ErrArtifactNotFound, name)
	}

	path, err := o.ResolveArtifact("latest.png")
	require.NoError(t, err)
	assert.Equal(t, "overlay.png", filepath.Base(path))
}
