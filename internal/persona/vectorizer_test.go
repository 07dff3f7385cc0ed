package persona

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func sampleBehaviors() map[string]Behavior {
	return map[string]Behavior{
		"empty": {},
		"engineer": {
			TimeOnHomepage:  120,
			ScrollDepth:     0.8,
			CodeSampleViews: 7,
			ProjectViews:    3,
			SessionDuration: 300,
			NavigationPath:  []string{"/", "/projects", "/code/parser", "/github"},
			HoveredKeywords: []string{"Go", "API design", "architecture"},
			EventCount:      40,
		},
		"overflow": {
			TimeOnHomepage:           10000,
			ScrollDepth:              3,
			CodeSampleViews:          500,
			ProjectViews:             500,
			DemoPlays:                500,
			ClickedResume:            true,
			OpenedDesignShowcase:     true,
			OpenedIntakeForm:         true,
			InteractedWithAnimations: true,
			NavigationPath: []string{
				"/resume", "/cv", "/code", "/github", "/design", "/ui", "/team", "/system",
				"/game", "/demo", "/architecture", "/play", "/hire",
			},
			HoveredKeywords: []string{"resume", "code", "design", "lead", "game", "3d", "figma", "scale"},
		},
		"negative": {
			TimeOnHomepage:  -50,
			ScrollDepth:     -1,
			CodeSampleViews: -3,
			DemoPlays:       -1,
			IdleTime:        -10,
			SessionDuration: -1,
		},
	}
}

func TestVectorize_ShapeAndRange(t *testing.T) {
	for name, b := range sampleBehaviors() {
		a := Vectorize(b).Array()
		if len(a) != 12 {
			t.Fatalf("%s: got %d dimensions, want 12", name, len(a))
		}
		for i, x := range a {
			if x < 0 || x > 1 || math.IsNaN(x) {
				t.Errorf("%s: %s = %v, want value in [0,1]", name, DimensionNames[i], x)
			}
		}
	}
}

func TestVectorize_Deterministic(t *testing.T) {
	for name, b := range sampleBehaviors() {
		first := Vectorize(b)
		second := Vectorize(b)
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("%s: Vectorize not deterministic (-first +second):\n%s", name, diff)
		}
	}
}

func TestVectorize_HomepageReadingExample(t *testing.T) {
	b := Behavior{
		TimeOnHomepage: 280,
		ScrollDepth:    0.9,
		NavigationPath: []string{"/", "/projects", "/projects/x"},
	}
	v := Vectorize(b)

	if math.Abs(v.EngagementDepth-0.73) > 0.005 {
		t.Errorf("EngagementDepth = %.4f, want ~0.73", v.EngagementDepth)
	}
	if math.Abs(v.NavigationSpeed-0) > 0.005 {
		t.Errorf("NavigationSpeed = %.4f, want 0.00", v.NavigationSpeed)
	}

	want := Vector{
		ExplorationBreadth: 0.3,
		EngagementDepth:    0.4*280.0/300 + 0.4*0.9,
		IntentClarity:      0.3,
	}
	if diff := cmp.Diff(want, v, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("Vectorize mismatch (-want +got):\n%s", diff)
	}
}

func TestVectorize_FocusScores(t *testing.T) {
	tests := []struct {
		name string
		in   Behavior
		get  func(Vector) float64
		want float64
	}{
		{
			name: "resume click baseline",
			in:   Behavior{ClickedResume: true},
			get:  func(v Vector) float64 { return v.ResumeFocus },
			want: 0.5,
		},
		{
			name: "resume click plus path and hover",
			in: Behavior{
				ClickedResume:   true,
				NavigationPath:  []string{"/resume"},
				HoveredKeywords: []string{"Work Experience"},
			},
			get:  func(v Vector) float64 { return v.ResumeFocus },
			want: 0.75,
		},
		{
			name: "path matching several keywords counts once",
			in:   Behavior{NavigationPath: []string{"/team-lead-architecture"}},
			get:  func(v Vector) float64 { return v.LeadershipFocus },
			want: 0.15,
		},
		{
			name: "code view bonus",
			in:   Behavior{CodeSampleViews: 5},
			get:  func(v Vector) float64 { return v.CodeFocus },
			want: 0.25,
		},
		{
			name: "code view bonus capped",
			in:   Behavior{CodeSampleViews: 40},
			get:  func(v Vector) float64 { return v.CodeFocus },
			want: 0.5,
		},
		{
			name: "demo play bonus",
			in:   Behavior{DemoPlays: 1},
			get:  func(v Vector) float64 { return v.GameFocus },
			want: 0.1,
		},
		{
			name: "design showcase and hover",
			in:   Behavior{OpenedDesignShowcase: true, HoveredKeywords: []string{"Figma", "UX research"}},
			get:  func(v Vector) float64 { return v.DesignFocus },
			want: 0.7,
		},
		{
			name: "focus clamps at one",
			in: Behavior{
				ClickedResume:  true,
				NavigationPath: []string{"/resume", "/cv", "/hire", "/career", "/resume/pdf"},
			},
			get:  func(v Vector) float64 { return v.ResumeFocus },
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.get(Vectorize(tt.in))
			if !approx(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVectorize_ShortKeywordsMatchWords(t *testing.T) {
	design := func(v Vector) float64 { return v.DesignFocus }
	game := func(v Vector) float64 { return v.GameFocus }
	code := func(v Vector) float64 { return v.CodeFocus }
	resume := func(v Vector) float64 { return v.ResumeFocus }

	tests := []struct {
		path string
		get  func(Vector) float64
		want float64
	}{
		{"/guide", design, 0},
		{"/build", design, 0},
		{"/quiz", design, 0},
		{"/display", game, 0},
		{"/rapid-prototyping", code, 0},
		{"/ui-kit", design, 0.15},
		{"/playground", game, 0.15},
		{"/docs/apis", code, 0.15},
		{"/files/cv.pdf", resume, 0.15},
		{"/webdesign", design, 0.15},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := tt.get(Vectorize(Behavior{NavigationPath: []string{tt.path}}))
			if !approx(got, tt.want) {
				t.Errorf("focus for %q = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestVectorize_DerivedInterests(t *testing.T) {
	v := Vectorize(Behavior{
		CodeSampleViews:      10,
		OpenedIntakeForm:     true,
		OpenedDesignShowcase: true,
	})
	if !approx(v.TechnicalInterest, (0.5+0.5)/2) {
		t.Errorf("TechnicalInterest = %v, want 0.5", v.TechnicalInterest)
	}
	if !approx(v.VisualInterest, (0.5+0)/2) {
		t.Errorf("VisualInterest = %v, want 0.25", v.VisualInterest)
	}
}

func TestVectorize_ExplorationBreadthCountsUniquePaths(t *testing.T) {
	v := Vectorize(Behavior{NavigationPath: []string{"/", "/about", "/", "/about", "/blog"}})
	if !approx(v.ExplorationBreadth, 0.3) {
		t.Errorf("ExplorationBreadth = %v, want 0.3", v.ExplorationBreadth)
	}
}

func TestVectorize_InteractionRate(t *testing.T) {
	tests := []struct {
		name string
		in   Behavior
		want float64
	}{
		{
			name: "no interactions",
			in:   Behavior{SessionDuration: 600},
			want: 0,
		},
		{
			name: "six interactions over two minutes",
			in:   Behavior{CodeSampleViews: 5, ClickedResume: true, SessionDuration: 120},
			want: 0.6,
		},
		{
			name: "one minute floor",
			in:   Behavior{ProjectViews: 2, TimeOnHomepage: 10},
			want: 0.4,
		},
		{
			name: "falls back to homepage time",
			in:   Behavior{ProjectViews: 4, TimeOnHomepage: 240},
			want: 0.2,
		},
		{
			name: "saturates",
			in:   Behavior{DemoPlays: 30, SessionDuration: 60},
			want: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Vectorize(tt.in).InteractionRate
			if !approx(got, tt.want) {
				t.Errorf("InteractionRate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVectorize_NavigationSpeed(t *testing.T) {
	tests := []struct {
		name string
		in   Behavior
		want float64
	}{
		{"no time spent", Behavior{}, 1},
		{"five seconds per page", Behavior{TimeOnHomepage: 20, NavigationPath: []string{"/a", "/b", "/c", "/d"}}, 1},
		{"midpoint", Behavior{TimeOnHomepage: 65, NavigationPath: []string{"/a", "/b"}}, 1 - (32.5-5)/55},
		{"slow reader", Behavior{TimeOnHomepage: 600, NavigationPath: []string{"/"}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Vectorize(tt.in).NavigationSpeed
			if !approx(got, tt.want) {
				t.Errorf("NavigationSpeed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVectorize_IntentClarity(t *testing.T) {
	if got := Vectorize(Behavior{}).IntentClarity; !approx(got, 0.3) {
		t.Errorf("no signal: IntentClarity = %v, want 0.3", got)
	}
	if got := Vectorize(Behavior{ClickedResume: true}).IntentClarity; !approx(got, 1) {
		t.Errorf("single focus: IntentClarity = %v, want 1", got)
	}
	got := Vectorize(Behavior{ClickedResume: true, OpenedDesignShowcase: true}).IntentClarity
	if !approx(got, 0.5) {
		t.Errorf("two equal focus areas: IntentClarity = %v, want 0.5", got)
	}
}

func TestVectorArrayRoundTrip(t *testing.T) {
	var a [Dims]float64
	for i := range a {
		a[i] = float64(i+1) / 100
	}
	v := VectorFromArray(a)
	if v.ResumeFocus != 0.01 || v.IntentClarity != 0.12 || v.NavigationSpeed != 0.11 {
		t.Errorf("VectorFromArray put values in the wrong fields: %+v", v)
	}
	if v.Array() != a {
		t.Errorf("Array() = %v, want %v", v.Array(), a)
	}
}
