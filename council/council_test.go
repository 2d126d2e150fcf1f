package council

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hassan-khan-web/ScholarForge/llm"
	"github.com/hassan-khan-web/ScholarForge/llm/testutil"
	"github.com/hassan-khan-web/ScholarForge/model"
	"github.com/hassan-khan-web/ScholarForge/progress"
	"github.com/hassan-khan-web/ScholarForge/source"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var panel = []string{"panel/a", "panel/b", "panel/c"}

func long(s string) string {
	return s + " " + strings.Repeat("with dense analysis and statistics ", 5)
}

type fakeResearcher struct {
	mu       sync.Mutex
	gapCalls []string
	claims   []string
	records  []source.Record
}

func (r *fakeResearcher) GapCheck(_ context.Context, bundle *source.Bundle, _, sectionKey, _ string) ([]source.Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gapCalls = append(r.gapCalls, sectionKey)
	if !bundle.MarkResearched(sectionKey) || len(r.records) == 0 {
		return nil, false
	}
	return bundle.Append(r.records...), true
}

func (r *fakeResearcher) Verify(_ context.Context, claim string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.claims = append(r.claims, claim)
	return "CLAIM: " + claim + "\n- verified snippet\n"
}

// factChecker answers the claims call and the critique call from queued
// verdicts; the last verdict repeats.
func factChecker(claims string, verdicts ...string) func(llm.Call) testutil.Reply {
	var mu sync.Mutex
	return func(call llm.Call) testutil.Reply {
		if call.Role != model.RoleFactChecker {
			return testutil.Reply{Fail: true}
		}
		if strings.Contains(call.User, `{"claims"`) {
			return testutil.Reply{Content: claims}
		}
		mu.Lock()
		defer mu.Unlock()
		v := verdicts[0]
		if len(verdicts) > 1 {
			verdicts = verdicts[1:]
		}
		return testutil.Reply{Content: v}
	}
}

func newMock() *testutil.MockInvoker {
	mock := testutil.NewMockInvoker()
	for _, name := range panel {
		mock.OnModel(name, testutil.Reply{Content: long("draft from " + name)})
	}
	mock.OnRole(model.RoleSynthesizer, testutil.Reply{Content: "merged"})
	return mock
}

func brief() Brief {
	return Brief{
		Section:    "The Outer Planets",
		Topic:      "The Solar System",
		Context:    "evidence",
		WordTarget: 600,
		Bundle:     source.NewBundle(),
	}
}

func TestRun_ApprovedFirstCycle(t *testing.T) {
	mock := newMock()
	mock.OnRole(model.RoleArtisan, testutil.Reply{Content: "polished"})
	mock.Handler = factChecker(`{"claims": ["Jupiter has 95 moons"]}`, `{"status": "APPROVED", "score": 92}`)
	res := &fakeResearcher{}

	var msgs []string
	e := NewEngine(mock, res, panel)
	out := e.Run(context.Background(), brief(), progress.Func(func(m string) { msgs = append(msgs, m) }))

	assert.Equal(t, "polished", out.Content)
	assert.True(t, out.Approved)
	assert.Equal(t, 1, out.Cycles)
	assert.Equal(t, 92, out.Score)
	assert.Equal(t, 3, out.Drafts)
	assert.Equal(t, []State{StateDrafted, StateMerged, StateReviewed, StateApproved, StatePolished}, out.Trail)

	artisan := mock.CallsFor(model.RoleArtisan)
	require.Len(t, artisan, 1)
	assert.NotContains(t, artisan[0].User, "ADDRESS THIS CRITIQUE")

	assert.Equal(t, []string{"Jupiter has 95 moons"}, res.claims)
	assert.Equal(t, 1, mock.CountContaining("verified snippet"), "verification evidence reaches the critique")

	assert.Equal(t, []string{
		"The Legion is generating variants for 'The Outer Planets'...",
		"The Nexus is merging 3 drafts...",
		"Council Review Cycle 1: Inquisitor & Artisan working...",
	}, msgs)
}

func TestRun_CapExhaustion(t *testing.T) {
	mock := newMock()
	mock.OnRole(model.RoleArtisan,
		testutil.Reply{Content: "rev1"},
		testutil.Reply{Content: "rev2"},
		testutil.Reply{Content: "rev3"},
		testutil.Reply{Content: "rev4"},
	)
	mock.Handler = factChecker(`{"claims": []}`, `{"status": "REJECTED", "critique": "Needs sources", "score": 40}`)

	out := NewEngine(mock, &fakeResearcher{}, panel).Run(context.Background(), brief(), nil)

	assert.Equal(t, "rev3", out.Content, "last revision is accepted at the cap")
	assert.False(t, out.Approved)
	assert.Equal(t, 3, out.Cycles)
	assert.Len(t, mock.CallsFor(model.RoleArtisan), 3)
	assert.Len(t, out.Trail, 2+3*3)
	assert.Equal(t, StateRevised, out.Trail[len(out.Trail)-1])

	for _, c := range mock.CallsFor(model.RoleArtisan) {
		assert.Contains(t, c.User, "ADDRESS THIS CRITIQUE: Needs sources")
	}
}

func TestRun_RejectThenApprove(t *testing.T) {
	mock := newMock()
	mock.OnRole(model.RoleArtisan, testutil.Reply{Content: "rev1"}, testutil.Reply{Content: "final"})
	mock.Handler = factChecker(`{"claims": []}`,
		`{"status": "REJECTED", "score": 70}`,
		`{"status": "APPROVED", "score": 90}`,
	)

	out := NewEngine(mock, &fakeResearcher{}, panel).Run(context.Background(), brief(), nil)

	assert.Equal(t, "final", out.Content)
	assert.True(t, out.Approved)
	assert.Equal(t, 2, out.Cycles)

	artisan := mock.CallsFor(model.RoleArtisan)
	require.Len(t, artisan, 2)
	assert.Contains(t, artisan[0].User, "ADDRESS THIS CRITIQUE: "+DefaultCritique)
	assert.True(t, strings.HasPrefix(artisan[1].User, "rev1"), "polish pass works on the revision")
}

func TestRun_ScoreAtThresholdIsNotApproval(t *testing.T) {
	mock := newMock()
	mock.OnRole(model.RoleArtisan, testutil.Reply{Content: "rev"})
	mock.Handler = factChecker(`{"claims": []}`, `{"status": "APPROVED", "score": 85}`)

	out := NewEngine(mock, &fakeResearcher{}, panel).Run(context.Background(), brief(), nil)
	assert.False(t, out.Approved)
	assert.Equal(t, 3, out.Cycles)
}

func TestRun_UnparseableVerdict(t *testing.T) {
	t.Run("default approves", func(t *testing.T) {
		mock := newMock()
		mock.OnRole(model.RoleArtisan, testutil.Reply{Content: "polished"})
		mock.Handler = factChecker("no claims", "I think it is fine.")

		out := NewEngine(mock, &fakeResearcher{}, panel).Run(context.Background(), brief(), nil)
		assert.True(t, out.Approved)
		assert.Equal(t, 1, out.Cycles)
		assert.Equal(t, 100, out.Score)
	})

	t.Run("strict forces revision", func(t *testing.T) {
		mock := newMock()
		mock.OnRole(model.RoleArtisan, testutil.Reply{Content: "rev"})
		mock.Handler = factChecker("no claims", "I think it is fine.")

		e := NewEngine(mock, &fakeResearcher{}, panel, WithConfig(Config{StrictVerdicts: true, MaxCycles: 2}))
		out := e.Run(context.Background(), brief(), nil)
		assert.False(t, out.Approved)
		assert.Equal(t, 2, out.Cycles)
		assert.Len(t, mock.CallsFor(model.RoleArtisan), 2)
	})
}

func TestLegion_FiltersDrafts(t *testing.T) {
	mock := testutil.NewMockInvoker()
	mock.OnModel("a", testutil.Reply{Content: "too short"})
	mock.OnModel("b", testutil.Reply{Fail: true})
	mock.OnModel("c", testutil.Reply{Content: long(llm.FailureText("c"))})
	mock.OnModel("d", testutil.Reply{Content: long("good draft")})

	drafts := NewEngine(mock, nil, []string{"a", "b", "c", "d"}).Legion(context.Background(), brief())
	require.Len(t, drafts, 1)
	assert.Equal(t, "d", drafts[0].Model)
	assert.Len(t, mock.Calls(), 4)

	for _, c := range mock.Calls() {
		assert.Equal(t, model.RoleWriter, c.Role)
		assert.Contains(t, c.User, "The Outer Planets")
	}
}

func TestLegion_SerialFallback(t *testing.T) {
	mock := testutil.NewMockInvoker()
	mock.OnModel("a", testutil.Reply{Fail: true}, testutil.Reply{Content: "short but kept"})
	mock.OnModel("b", testutil.Reply{Fail: true})

	drafts := NewEngine(mock, nil, []string{"a", "b"}).Legion(context.Background(), brief())
	require.Len(t, drafts, 1)
	assert.Equal(t, Draft{Model: "a", Content: "short but kept"}, drafts[0])
	assert.Len(t, mock.Calls(), 3)
}

func TestRun_NoDrafts(t *testing.T) {
	mock := testutil.NewMockInvoker()
	mock.OnModel("a", testutil.Reply{Fail: true})

	out := NewEngine(mock, nil, []string{"a"}).Run(context.Background(), brief(), nil)
	assert.True(t, llm.IsFailureText(out.Content))
	assert.Zero(t, out.Cycles)
	assert.Empty(t, mock.CallsFor(model.RoleSynthesizer))
}

func TestLegion_EmptyPanelUsesWriterChain(t *testing.T) {
	mock := testutil.NewMockInvoker()
	mock.OnRole(model.RoleWriter, testutil.Reply{Content: long("writer")})

	drafts := NewEngine(mock, nil, nil).Legion(context.Background(), brief())
	require.Len(t, drafts, 1)
	assert.Equal(t, "mock/writer", drafts[0].Model)
}

func TestNexus(t *testing.T) {
	drafts := []Draft{{Model: "a", Content: "short"}, {Model: "b", Content: "the longest draft"}}

	t.Run("merge with supplementary research", func(t *testing.T) {
		mock := testutil.NewMockInvoker()
		mock.OnRole(model.RoleSynthesizer, testutil.Reply{Content: "merged"})
		res := &fakeResearcher{records: []source.Record{{Title: "New source", URL: "https://x"}}}

		b := brief()
		got := NewEngine(mock, res, panel).Nexus(context.Background(), b, drafts)
		assert.Equal(t, "merged", got)
		assert.Equal(t, []string{"The Outer Planets"}, res.gapCalls)
		assert.Equal(t, 1, b.Bundle.Len())

		calls := mock.CallsFor(model.RoleSynthesizer)
		require.Len(t, calls, 1)
		assert.Contains(t, calls[0].User, "--- DRAFT 2 ---")
		assert.Contains(t, calls[0].User, "SUPPLEMENTARY RESEARCH")
		assert.Contains(t, calls[0].User, "New source")
	})

	t.Run("failed merge keeps longest draft", func(t *testing.T) {
		mock := testutil.NewMockInvoker()
		mock.OnRole(model.RoleSynthesizer, testutil.Reply{Fail: true})

		got := NewEngine(mock, &fakeResearcher{}, panel).Nexus(context.Background(), brief(), drafts)
		assert.Equal(t, "the longest draft", got)
	})
}

func TestInquisitor_ClaimCap(t *testing.T) {
	mock := testutil.NewMockInvoker()
	mock.Handler = factChecker(`{"claims": ["one", "two", "three"]}`, `{"status": "APPROVED", "score": 99}`)
	res := &fakeResearcher{}

	v := NewEngine(mock, res, panel).Inquisitor(context.Background(), brief(), "content")
	assert.Equal(t, StatusApproved, v.Status)
	assert.Equal(t, []string{"one", "two"}, res.claims)
}

func TestRun_CanceledContext(t *testing.T) {
	mock := newMock()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := NewEngine(mock, &fakeResearcher{}, panel).Run(ctx, brief(), nil)
	assert.True(t, llm.IsFailureText(out.Content))
	assert.Zero(t, out.Cycles)
}
