package classify

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/kalambet/folio/internal/persona"
	"github.com/kalambet/folio/internal/storage"
)

// memStore is an in-memory Store.
type memStore struct {
	mu        sync.Mutex
	sessions  map[string]storage.Session
	behaviors map[string]storage.BehaviorRecord

	getSessionErr  error
	getBehaviorErr error
	writeErr       error

	behaviorReads int
	personaWrites int
	vectorWrites  int
}

func newMemStore() *memStore {
	return &memStore{
		sessions:  make(map[string]storage.Session),
		behaviors: make(map[string]storage.BehaviorRecord),
	}
}

func (m *memStore) GetSession(id string) (storage.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getSessionErr != nil {
		return storage.Session{}, m.getSessionErr
	}
	s, ok := m.sessions[id]
	if !ok {
		return storage.Session{}, storage.ErrNotFound
	}
	return s, nil
}

func (m *memStore) GetBehavior(id string) (storage.BehaviorRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.behaviorReads++
	if m.getBehaviorErr != nil {
		return storage.BehaviorRecord{}, m.getBehaviorErr
	}
	r, ok := m.behaviors[id]
	if !ok {
		return storage.BehaviorRecord{}, storage.ErrNotFound
	}
	return r, nil
}

func (m *memStore) UpdateSessionPersona(id string, c persona.Classification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.personaWrites++
	if m.writeErr != nil {
		return m.writeErr
	}
	s := m.sessions[id]
	s.Persona, s.Confidence, s.Mood = c.Persona, c.Confidence, c.Mood
	m.sessions[id] = s
	return nil
}

func (m *memStore) SaveBehaviorVector(id string, v persona.Vector) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectorWrites++
	if m.writeErr != nil {
		return m.writeErr
	}
	r := m.behaviors[id]
	r.Vector = &v
	m.behaviors[id] = r
	return nil
}

func (m *memStore) put(id string, b *persona.Behavior) {
	m.sessions[id] = storage.Session{ID: id}
	if b != nil {
		m.behaviors[id] = storage.BehaviorRecord{SessionID: id, Behavior: *b}
	}
}

// mockLLM implements Disambiguator.
type mockLLM struct {
	result persona.Classification
	err    error
	calls  int
}

func (m *mockLLM) Classify(_ context.Context, _ persona.Behavior) (persona.Classification, error) {
	m.calls++
	return m.result, m.err
}

// fixedHeuristic replaces the centroid classifier with a fixed answer.
func fixedHeuristic(p persona.Type, confidence float64) func(persona.Vector) persona.Result {
	return func(persona.Vector) persona.Result {
		return persona.Result{
			Persona:      p,
			Confidence:   confidence,
			Similarity:   0.5 + confidence/2,
			Similarities: map[persona.Type]float64{p: 0.5 + confidence/2},
		}
	}
}

// engineerBehavior classifies as engineer with high confidence.
func engineerBehavior() *persona.Behavior {
	return &persona.Behavior{
		TimeOnHomepage:  200,
		ScrollDepth:     0.8,
		CodeSampleViews: 6,
		ProjectViews:    3,
		SessionDuration: 300,
		NavigationPath:  []string{"/", "/code", "/github", "/projects/api", "/engineering"},
		HoveredKeywords: []string{"algorithm", "source"},
		EventCount:      25,
	}
}

func TestClassify_NewVisitor(t *testing.T) {
	o := New(newMemStore(), nil)

	for _, id := range []string{"", "unknown"} {
		res := o.Classify(context.Background(), id)
		if res.Source != SourceNewVisitor {
			t.Errorf("Classify(%q).Source = %q, want new_visitor", id, res.Source)
		}
		if res.Persona != persona.Curious || res.Confidence != newVisitorConfidence || res.Mood != persona.Exploratory {
			t.Errorf("Classify(%q) = %+v, want curious/0.3/exploratory", id, res.Classification)
		}
		if res.Disambiguation != nil || res.Vector != nil {
			t.Errorf("Classify(%q) ran the vector path: %+v", id, res)
		}
	}
}

func TestClassify_InsufficientData(t *testing.T) {
	store := newMemStore()
	store.put("no-behavior", nil)
	store.put("no-events", &persona.Behavior{})
	o := New(store, nil)

	for _, id := range []string{"no-behavior", "no-events"} {
		res := o.Classify(context.Background(), id)
		if res.Source != SourceInsufficientData {
			t.Errorf("Classify(%q).Source = %q, want insufficient_data", id, res.Source)
		}
		if res.Persona != persona.Curious || res.Confidence != insufficientDataConfidence {
			t.Errorf("Classify(%q) = %+v", id, res.Classification)
		}
	}
	if store.personaWrites != 0 {
		t.Errorf("insufficient data wrote back %d times", store.personaWrites)
	}
}

func TestClassify_CacheShortCircuit(t *testing.T) {
	store := newMemStore()
	store.sessions["s1"] = storage.Session{
		ID:         "s1",
		Persona:    persona.Designer,
		Confidence: 0.85,
		Mood:       persona.Playful,
	}
	store.behaviors["s1"] = storage.BehaviorRecord{Behavior: *engineerBehavior()}
	llm := &mockLLM{}
	o := New(store, llm)

	res := o.Classify(context.Background(), "s1")

	want := Result{
		Classification: persona.Classification{Persona: persona.Designer, Confidence: 0.85, Mood: persona.Playful},
		Source:         SourceCached,
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("Classify mismatch (-want +got):\n%s", diff)
	}
	if store.behaviorReads != 0 {
		t.Errorf("cached path read behavior %d times", store.behaviorReads)
	}
	if store.personaWrites != 0 || llm.calls != 0 {
		t.Errorf("cached path wrote back (%d) or called the llm (%d)", store.personaWrites, llm.calls)
	}
}

func TestClassify_CacheThresholdIsStrict(t *testing.T) {
	store := newMemStore()
	store.put("s1", engineerBehavior())
	s := store.sessions["s1"]
	s.Persona, s.Confidence = persona.Designer, CacheThreshold
	store.sessions["s1"] = s

	res := New(store, nil).Classify(context.Background(), "s1")
	if res.Source == SourceCached {
		t.Errorf("confidence exactly %v must not be served from cache", CacheThreshold)
	}
}

func TestReclassify_BypassesCache(t *testing.T) {
	store := newMemStore()
	store.put("s1", engineerBehavior())
	s := store.sessions["s1"]
	s.Persona, s.Confidence = persona.Gamer, 0.95
	store.sessions["s1"] = s

	o := New(store, nil)
	res := o.Reclassify(context.Background(), "s1")
	if res.Source != SourceVector || res.Persona != persona.Engineer {
		t.Errorf("Reclassify = %+v (source %s), want engineer from vector", res.Classification, res.Source)
	}
	if store.sessions["s1"].Persona != persona.Engineer {
		t.Errorf("reclassification not written back: %+v", store.sessions["s1"])
	}
}

func TestClassify_ConfidentVectorPath(t *testing.T) {
	store := newMemStore()
	b := engineerBehavior()
	store.put("s1", b)
	llm := &mockLLM{}
	o := New(store, llm)

	res := o.Classify(context.Background(), "s1")

	if res.Source != SourceVector {
		t.Fatalf("Source = %q, want vector", res.Source)
	}
	if res.Persona != persona.Engineer {
		t.Errorf("Persona = %q, want engineer", res.Persona)
	}
	if res.Confidence < DisambiguateBelow {
		t.Errorf("Confidence = %v, want >= %v", res.Confidence, DisambiguateBelow)
	}
	if diff := cmp.Diff(&Disambiguation{Kind: KindHeuristic}, res.Disambiguation); diff != "" {
		t.Errorf("Disambiguation mismatch (-want +got):\n%s", diff)
	}
	if llm.calls != 0 {
		t.Errorf("llm called %d times on a confident result", llm.calls)
	}
	if len(res.Matches) != topMatches || res.Matches[0].Persona != persona.Engineer {
		t.Errorf("Matches = %+v", res.Matches)
	}

	// Write-back: classification on the session, vector on the behavior.
	stored := store.sessions["s1"]
	if stored.Classification() != res.Classification {
		t.Errorf("stored classification = %+v, want %+v", stored.Classification(), res.Classification)
	}
	want := persona.Vectorize(*b)
	if got := store.behaviors["s1"].Vector; got == nil || *got != want {
		t.Errorf("stored vector = %+v, want %+v", got, want)
	}
}

func TestClassify_HybridBlend(t *testing.T) {
	store := newMemStore()
	store.put("s1", engineerBehavior())
	llm := &mockLLM{result: persona.Classification{Persona: persona.CTO, Confidence: 0.8, Mood: persona.Professional}}
	o := New(store, llm)
	o.heuristic = fixedHeuristic(persona.Engineer, 0.4)

	res := o.Classify(context.Background(), "s1")

	if res.Source != SourceHybrid {
		t.Fatalf("Source = %q, want hybrid", res.Source)
	}
	if math.Abs(res.Confidence-0.6) > 1e-9 {
		t.Errorf("Confidence = %v, want (0.4+0.8)/2 = 0.6", res.Confidence)
	}
	if res.Persona != persona.CTO || res.Mood != persona.Professional {
		t.Errorf("persona/mood = %s/%s, want cto/professional from the llm", res.Persona, res.Mood)
	}
	want := &Disambiguation{Kind: KindHybrid, LLMConfidence: 0.8}
	if diff := cmp.Diff(want, res.Disambiguation); diff != "" {
		t.Errorf("Disambiguation mismatch (-want +got):\n%s", diff)
	}
	if llm.calls != 1 {
		t.Errorf("llm called %d times, want 1", llm.calls)
	}
	if store.sessions["s1"].Persona != persona.CTO {
		t.Errorf("hybrid result not written back: %+v", store.sessions["s1"])
	}
}

func TestClassify_HybridKeepsHeuristicMoodWhenLLMHasNone(t *testing.T) {
	store := newMemStore()
	b := engineerBehavior()
	store.put("s1", b)
	o := New(store, &mockLLM{result: persona.Classification{Persona: persona.CTO, Confidence: 0.8}})
	o.heuristic = fixedHeuristic(persona.Engineer, 0.4)

	res := o.Classify(context.Background(), "s1")
	if want := persona.DetectMood(*b, persona.Vectorize(*b)); res.Mood != want {
		t.Errorf("Mood = %q, want heuristic mood %q", res.Mood, want)
	}
}

func TestClassify_HybridFallback(t *testing.T) {
	store := newMemStore()
	b := engineerBehavior()
	store.put("s1", b)
	llm := &mockLLM{err: errors.New("context deadline exceeded")}
	o := New(store, llm)
	o.heuristic = fixedHeuristic(persona.Engineer, 0.4)

	res := o.Classify(context.Background(), "s1")

	v := persona.Vectorize(*b)
	want := persona.Classification{Persona: persona.Engineer, Confidence: 0.4, Mood: persona.DetectMood(*b, v)}
	if res.Classification != want {
		t.Errorf("Classification = %+v, want heuristic %+v", res.Classification, want)
	}
	if res.Source != SourceVector {
		t.Errorf("Source = %q, want vector", res.Source)
	}
	if res.Disambiguation == nil || res.Disambiguation.Kind != KindFailed || res.Disambiguation.Reason == "" {
		t.Errorf("Disambiguation = %+v, want failed with a reason", res.Disambiguation)
	}
	if llm.calls != 1 {
		t.Errorf("llm called %d times, want exactly 1 (no retry)", llm.calls)
	}
}

func TestClassify_LowConfidenceWithoutLLM(t *testing.T) {
	store := newMemStore()
	store.put("s1", engineerBehavior())
	o := New(store, nil)
	o.heuristic = fixedHeuristic(persona.Gamer, 0.2)

	res := o.Classify(context.Background(), "s1")
	if res.Source != SourceVector || res.Persona != persona.Gamer || res.Confidence != 0.2 {
		t.Errorf("Classify = %+v (source %s)", res.Classification, res.Source)
	}
	if res.Disambiguation == nil || res.Disambiguation.Kind != KindFailed {
		t.Errorf("Disambiguation = %+v, want failed", res.Disambiguation)
	}
}

func TestClassify_WriteBackFailureDoesNotFail(t *testing.T) {
	store := newMemStore()
	store.put("s1", engineerBehavior())
	store.writeErr = errors.New("database is locked")

	res := New(store, nil).Classify(context.Background(), "s1")
	if res.Source != SourceVector || res.Persona != persona.Engineer {
		t.Errorf("Classify = %+v (source %s), want engineer from vector", res.Classification, res.Source)
	}
	if store.personaWrites != 1 || store.vectorWrites != 1 {
		t.Errorf("writes = %d/%d, want 1/1", store.personaWrites, store.vectorWrites)
	}
}

func TestClassify_StoreErrorsFallBack(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*memStore)
	}{
		{"session read", func(m *memStore) { m.getSessionErr = errors.New("disk I/O error") }},
		{"behavior read", func(m *memStore) { m.getBehaviorErr = errors.New("disk I/O error") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			store.put("s1", engineerBehavior())
			tt.setup(store)

			res := New(store, nil).Classify(context.Background(), "s1")
			want := defaultResult(SourceFallback, fallbackConfidence)
			if diff := cmp.Diff(want, res); diff != "" {
				t.Errorf("Classify mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestClassify_RecoversFromPanic(t *testing.T) {
	store := newMemStore()
	store.put("s1", engineerBehavior())
	o := New(store, nil)
	o.heuristic = func(persona.Vector) persona.Result { panic("centroid table corrupted") }

	res := o.Classify(context.Background(), "s1")
	if res.Source != SourceFallback || res.Persona != persona.Curious {
		t.Errorf("Classify after panic = %+v (source %s)", res.Classification, res.Source)
	}
}

func TestClassify_CachedAfterConfidentClassification(t *testing.T) {
	store := newMemStore()
	store.put("s1", engineerBehavior())
	o := New(store, nil)
	o.heuristic = fixedHeuristic(persona.Engineer, 0.9)

	first := o.Classify(context.Background(), "s1")
	second := o.Classify(context.Background(), "s1")

	if first.Source != SourceVector || second.Source != SourceCached {
		t.Errorf("sources = %s, %s; want vector, cached", first.Source, second.Source)
	}
	if diff := cmp.Diff(first.Classification, second.Classification, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("cached classification differs (-first +second):\n%s", diff)
	}
}

func TestClassify_RealStore(t *testing.T) {
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.CreateSession(storage.Session{ID: "s1", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := store.SaveBehavior("s1", *engineerBehavior()); err != nil {
		t.Fatalf("SaveBehavior: %v", err)
	}

	res := New(store, nil).Classify(context.Background(), "s1")
	if res.Persona != persona.Engineer {
		t.Errorf("Persona = %q, want engineer", res.Persona)
	}

	sess, err := store.GetSession("s1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.Classification() != res.Classification {
		t.Errorf("stored = %+v, want %+v", sess.Classification(), res.Classification)
	}
	rec, err := store.GetBehavior("s1")
	if err != nil {
		t.Fatalf("GetBehavior: %v", err)
	}
	if rec.Vector == nil {
		t.Error("vector not stored on aggregated behavior")
	}
}
