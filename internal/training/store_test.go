package training_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/MrWong99/voxcmd/internal/nlu"
	"github.com/MrWong99/voxcmd/internal/resilience"
	"github.com/MrWong99/voxcmd/internal/training"
)

func sampleRecord() *training.Record {
	rec := training.NewRecord()
	rec.TrainingData["open_app"] = training.IntentData{
		Utterances: []training.Utterance{{Text: "bring up spotify", Entities: nlu.Entities{"appName": "spotify"}, Timestamp: fixedNow}},
		TrainedAt:  fixedNow,
	}
	rec.TrainingData["set_volume"] = training.IntentData{
		Utterances: []training.Utterance{{
			Text:      "crank it to 50 percent",
			Entities:  nlu.Entities{"number": 50, "numbers": []int{50}, "percentage": 50},
			Timestamp: fixedNow,
		}},
		TrainedAt: fixedNow,
	}
	rec.AccuracyStats["open_app"] = training.AccuracyStats{TotalTests: 4, SuccessfulTests: 3, AverageConfidence: 0.82}
	return rec
}

// storeContract runs the behaviour every Store must share.
func storeContract(t *testing.T, s training.Store) {
	t.Helper()
	ctx := context.Background()

	rec, err := s.Load(ctx)
	if err != nil || rec != nil {
		t.Fatalf("Load on empty store = (%v, %v), want (nil, nil)", rec, err)
	}

	want := sampleRecord()
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	want.TrainingData["mutated"] = training.IntentData{}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := got.TrainingData["mutated"]; ok {
		t.Error("store shares maps with the caller")
	}
	u := got.TrainingData["open_app"].Utterances
	if len(u) != 1 || u[0].Text != "bring up spotify" || u[0].Entities.String("appName") != "spotify" {
		t.Errorf("loaded utterances = %+v", u)
	}
	if st := got.AccuracyStats["open_app"]; st.SuccessfulTests != 3 || st.AverageConfidence != 0.82 {
		t.Errorf("loaded stats = %+v", st)
	}
	if !reflect.DeepEqual(got, sampleRecord()) {
		t.Errorf("loaded record differs from saved:\n got %+v\nwant %+v", got, sampleRecord())
	}
}

func TestMemStore(t *testing.T) {
	t.Parallel()
	storeContract(t, &training.MemStore{})
}

func TestFileStore(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "training.json")
	storeContract(t, training.NewFileStore(path))

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries, want only the store file", len(entries))
	}
}

func TestFileStore_Corrupt(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "training.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := training.NewFileStore(path).Load(context.Background()); err == nil {
		t.Error("Load of corrupt file succeeded")
	}
}

func TestGuardedStore_FallsBack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fallback := &training.MemStore{}
	g := training.NewGuardedStore(
		training.NamedStore{Name: "primary", Store: failingStore{}},
		resilience.CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour},
		training.NamedStore{Name: "file", Store: fallback},
	)

	if err := g.Save(ctx, sampleRecord()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if rec, _ := fallback.Load(ctx); rec == nil {
		t.Fatal("fallback did not receive the save")
	}
	rec, err := g.Load(ctx)
	if err != nil || rec == nil {
		t.Fatalf("Load = (%v, %v), want fallback record", rec, err)
	}

	if got := g.Breakers()[0].State(); got != resilience.StateOpen {
		t.Errorf("primary breaker = %v, want open", got)
	}
	if err := g.Ping(ctx); !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("Ping = %v, want ErrCircuitOpen", err)
	}
}

func TestGuardedStore_AllFail(t *testing.T) {
	t.Parallel()

	g := training.NewGuardedStore(training.NamedStore{Name: "primary", Store: failingStore{}}, resilience.CircuitBreakerConfig{})
	err := g.Save(context.Background(), sampleRecord())
	if !errors.Is(err, resilience.ErrAllFailed) || !errors.Is(err, errStoreDown) {
		t.Errorf("err = %v, want ErrAllFailed wrapping the store error", err)
	}
	if err := g.Ping(context.Background()); err != nil {
		t.Errorf("Ping with closed breaker = %v, want nil", err)
	}
}

func TestValidateExportJSON(t *testing.T) {
	t.Parallel()

	valid := `{"version":"1.0","exportedAt":"2026-03-01T09:00:00Z","trainingData":{"open_app":{"utterances":[{"text":"bring up spotify","entities":{"appName":"spotify"},"timestamp":"2026-03-01T09:00:00Z"}],"trainedAt":"2026-03-01T09:00:00Z"}},"accuracyStats":{"open_app":{"totalTests":1,"successfulTests":1,"averageConfidence":0.9}}}`
	if err := training.ValidateExportJSON([]byte(valid)); err != nil {
		t.Errorf("valid document rejected: %v", err)
	}
	invalid := `{"version":1,"trainingData":[],"accuracyStats":{}}`
	if err := training.ValidateExportJSON([]byte(invalid)); !errors.Is(err, training.ErrInvalidExport) {
		t.Errorf("err = %v, want ErrInvalidExport", err)
	}
}
