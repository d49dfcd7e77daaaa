package overlay_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"

	"github.com/nerrad567/overlay-core/internal/infrastructure/config"
	"github.com/nerrad567/overlay-core/internal/overlay"
	"github.com/nerrad567/overlay-core/internal/overlay/overlaytest"
	"github.com/nerrad567/overlay-core/internal/progression"
	"github.com/nerrad567/overlay-core/internal/rtmp"
	"github.com/nerrad567/overlay-core/internal/timeline"
)

var (
	amy = timeline.Person{ID: 1, Name: "amy", Pronouns: "she/her"}
	bob = timeline.Person{ID: 2, Name: "bob"}
	zed = timeline.Person{ID: 3, Name: "zed", Pronouns: "he/him"}

	nameBox = overlay.Geometry{X: 100, Y: 900, Width: 300, Height: 40}
	pronBox = overlay.Geometry{Width: 120, Height: 30}
	placed  = overlay.Geometry{X: 410, Y: 900, Width: 120, Height: 30}
)

func mapping() config.OverlayConfig {
	return config.OverlayConfig{
		Scenes: config.OverlayScenes{Run: "Run", Intermission: "Break", Idle: "Idle", Preview: true},
		Current: config.RunFields{
			Name: "cur_name", Category: "cur_cat", Estimate: "cur_est", Runners: "cur_runners",
		},
		Next:  config.RunFields{Name: "next_name"},
		Shift: "shift",
		Runners: []config.PersonSlot{
			{Scene: "Run", Name: "r1_name", Pronouns: "r1_pron", Stream: "r1_feed"},
			{Scene: "Run", Name: "r2_name", Pronouns: "r2_pron"},
		},
		Commentators: []config.PersonSlot{{Name: "c1_name", Pronouns: "c1_pron"}},
		Layout:       config.OverlayLayout{Margin: 10, MaxX: 1920},
	}
}

func running() *progression.Transition {
	return &progression.Transition{
		Action: progression.ActionAdvance,
		Event:  &timeline.Event{ID: 1, Name: "Marathon2024", Shift: 10 * time.Minute},
		Current: &timeline.Run{
			ID: 10, Name: "Celeste", Category: "Any%", Estimated: 30 * time.Minute,
			Runners: []timeline.Person{zed, amy, bob},
		},
		NextSlot: &timeline.Run{ID: 11, Name: "Break", IsIntermission: true},
		NextRun:  &timeline.Run{ID: 12, Name: "Hollow Knight"},
	}
}

// recordTexts accepts every SetText call and records the last value per input.
func recordTexts(m *overlaytest.MockSceneController) map[string]string {
	got := make(map[string]string)
	m.EXPECT().SetText(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, input, value string) error {
			got[input] = value
			return nil
		}).AnyTimes()
	return got
}

func expectLayout(m *overlaytest.MockSceneController) {
	gomock.InOrder(
		m.EXPECT().GetElementGeometry(gomock.Any(), "Run", "r1_name").Return(nameBox, nil),
		m.EXPECT().GetElementGeometry(gomock.Any(), "Run", "r1_pron").Return(pronBox, nil),
		m.EXPECT().SetElementGeometry(gomock.Any(), "Run", "r1_pron", placed).Return(nil),
	)
}

func TestSync_Running(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := overlaytest.NewMockSceneController(ctrl)

	gomock.InOrder(
		m.EXPECT().SetProgramScene(gomock.Any(), "Run").Return(nil),
		m.EXPECT().SetPreviewScene(gomock.Any(), "Break").Return(nil),
	)
	texts := recordTexts(m)
	expectLayout(m)

	report := overlay.NewAdapter(m, mapping()).Sync(context.Background(), running())

	want := map[string]string{
		"cur_name":    "Celeste",
		"cur_cat":     "Any%",
		"cur_est":     "0:30:00",
		"cur_runners": "amy, bob, zed",
		"next_name":   "Hollow Knight",
		"shift":       "10m",
		"r1_name":     "amy",
		"r1_pron":     "she/her",
		"r2_name":     "bob",
		"r2_pron":     "",
		"c1_name":     "",
		"c1_pron":     "",
	}
	for input, value := range want {
		got, ok := texts[input]
		if !ok {
			t.Errorf("input %q never set", input)
			continue
		}
		if got != value {
			t.Errorf("input %q = %q, want %q", input, got, value)
		}
	}
	if len(texts) != len(want) {
		t.Errorf("set %d inputs, want %d: %v", len(texts), len(want), texts)
	}

	if !report.OK() || report.Total != 17 || report.Completed != 17 {
		t.Errorf("report = %+v", report)
	}
	if report.Event != "Marathon2024" || report.Run != "Celeste" {
		t.Errorf("report names = %q / %q", report.Event, report.Run)
	}
}

func TestSync_FailuresDoNotAbort(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := overlaytest.NewMockSceneController(ctrl)

	m.EXPECT().SetProgramScene(gomock.Any(), "Run").Return(errors.New("obs offline"))
	m.EXPECT().SetPreviewScene(gomock.Any(), "Break").Return(errors.New("obs offline"))
	texts := recordTexts(m)
	expectLayout(m)

	report := overlay.NewAdapter(m, mapping()).Sync(context.Background(), running())

	if report.Failed != 2 || report.Completed != 15 {
		t.Errorf("report = %+v", report)
	}
	if report.Failures[0].Call != overlay.CallProgramScene || report.Failures[0].Scene != "Run" {
		t.Errorf("first failure = %+v", report.Failures[0])
	}
	if report.Failures[1].Step != 2 || report.Failures[1].Error != "obs offline" {
		t.Errorf("second failure = %+v", report.Failures[1])
	}
	if texts["cur_name"] != "Celeste" {
		t.Error("text fields skipped after a failed scene switch")
	}
}

func TestSync_Idle(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := overlaytest.NewMockSceneController(ctrl)

	m.EXPECT().SetProgramScene(gomock.Any(), "Idle").Return(nil)
	m.EXPECT().SetPreviewScene(gomock.Any(), "Run").Return(nil)
	texts := recordTexts(m)

	tr := &progression.Transition{
		Event:    &timeline.Event{Name: "Marathon2024"},
		NextSlot: &timeline.Run{Name: "Celeste"},
		NextRun:  &timeline.Run{Name: "Celeste"},
	}
	report := overlay.NewAdapter(m, mapping()).Sync(context.Background(), tr)

	if texts["cur_name"] != "" || texts["r1_name"] != "" || texts["next_name"] != "Celeste" {
		t.Errorf("texts = %v", texts)
	}
	if _, ok := texts["cur_name"]; !ok {
		t.Error("current run name not cleared")
	}
	if !report.OK() {
		t.Errorf("report = %+v", report)
	}
}

func TestSync_RunSceneOverride(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := overlaytest.NewMockSceneController(ctrl)

	cfg := mapping()
	cfg.Scenes.Preview = false
	cfg.Runners = nil
	cfg.Commentators = nil

	m.EXPECT().SetProgramScene(gomock.Any(), "Run 4p").Return(nil)
	recordTexts(m)

	tr := running()
	tr.Current.OBSScene = "Run 4p"
	overlay.NewAdapter(m, cfg).Sync(context.Background(), tr)
}

func TestSync_MissingElementSkipsLayout(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := overlaytest.NewMockSceneController(ctrl)

	m.EXPECT().SetProgramScene(gomock.Any(), gomock.Any()).Return(nil)
	m.EXPECT().SetPreviewScene(gomock.Any(), gomock.Any()).Return(nil)
	recordTexts(m)
	m.EXPECT().GetElementGeometry(gomock.Any(), "Run", "r1_name").Return(overlay.Geometry{}, overlay.ErrElementNotFound)

	report := overlay.NewAdapter(m, mapping()).Sync(context.Background(), running())
	if report.Skipped != 1 || report.Failed != 0 {
		t.Errorf("report = %+v", report)
	}
	if got := report.Completed + report.Skipped + report.Failed; got != report.Total {
		t.Errorf("completed %d + skipped %d + failed %d = %d, want total %d",
			report.Completed, report.Skipped, report.Failed, got, report.Total)
	}
}

type fakeStreams struct {
	streams []rtmp.Stream
	err     error
}

func (f fakeStreams) Streams(context.Context) ([]rtmp.Stream, error) { return f.streams, f.err }

func TestSync_StreamAssignment(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := overlaytest.NewMockSceneController(ctrl)

	m.EXPECT().SetProgramScene(gomock.Any(), gomock.Any()).Return(nil)
	m.EXPECT().SetPreviewScene(gomock.Any(), gomock.Any()).Return(nil)
	recordTexts(m)
	expectLayout(m)
	m.EXPECT().SetStreamURL(gomock.Any(), "r1_feed", "rtmp://x/live/amy-key").Return(nil)

	src := fakeStreams{streams: []rtmp.Stream{
		{ID: "stranger", URL: "rtmp://x/live/stranger"},
		{ID: "amy-key", URL: "rtmp://x/live/amy-key", Person: &amy},
		{ID: "zed", URL: "rtmp://x/live/zed", Person: &zed},
	}}
	report := overlay.NewAdapter(m, mapping(), overlay.WithStreams(src)).Sync(context.Background(), running())
	if !report.OK() {
		t.Errorf("report = %+v", report)
	}
}

func TestSync_StreamSourceFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := overlaytest.NewMockSceneController(ctrl)

	m.EXPECT().SetProgramScene(gomock.Any(), gomock.Any()).Return(nil)
	m.EXPECT().SetPreviewScene(gomock.Any(), gomock.Any()).Return(nil)
	texts := recordTexts(m)
	expectLayout(m)

	src := fakeStreams{err: rtmp.ErrCouldNotGetStats}
	report := overlay.NewAdapter(m, mapping(), overlay.WithStreams(src)).Sync(context.Background(), running())

	if report.Failed != 1 || report.Failures[0].Call != overlay.CallFetchStreams {
		t.Errorf("report = %+v", report)
	}
	if texts["r1_name"] != "amy" {
		t.Error("person slots skipped after stream lookup failed")
	}
}

func TestSync_IgnoresCallerCancellation(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := overlaytest.NewMockSceneController(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m.EXPECT().SetProgramScene(gomock.Any(), "Run").DoAndReturn(func(ctx context.Context, _ string) error {
		return ctx.Err()
	})
	m.EXPECT().SetPreviewScene(gomock.Any(), gomock.Any()).Return(nil)
	recordTexts(m)
	expectLayout(m)

	report := overlay.NewAdapter(m, mapping()).Sync(ctx, running())
	if !report.OK() {
		t.Errorf("calls saw the caller's cancellation: %+v", report.Failures)
	}
}

func TestSync_CallTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := overlaytest.NewMockSceneController(ctrl)

	cfg := config.OverlayConfig{Scenes: config.OverlayScenes{Run: "Run"}, Current: config.RunFields{Name: "cur_name"}}

	m.EXPECT().SetProgramScene(gomock.Any(), "Run").DoAndReturn(func(ctx context.Context, _ string) error {
		<-ctx.Done()
		return ctx.Err()
	})
	m.EXPECT().SetText(gomock.Any(), "cur_name", "Celeste").Return(nil)

	report := overlay.NewAdapter(m, cfg, overlay.WithCallTimeout(20*time.Millisecond)).Sync(context.Background(), running())
	if report.Failed != 1 || report.Completed != 1 {
		t.Errorf("report = %+v", report)
	}
}
