package clustering

import (
	"context"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"axial/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

func newTestEngine(store *fakeStore) *Engine {
	e := NewEngine(store, store, DefaultEngineConfig())
	e.now = func() time.Time { return testNow }
	return e
}

func article(id, source, title string, age time.Duration) core.Article {
	return core.Article{
		ID:          id,
		SourceID:    source,
		Title:       title,
		Link:        "https://example.com/" + id,
		PublishedAt: testNow.Add(-age),
		State:       core.StateScored,
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("The Senate's NEW budget: $1.2T passes, 58-42 -- says report")
	assert.Equal(t, []string{"senate", "budget", "passes"}, got)
	assert.Empty(t, Tokenize("a an of to"))
}

func TestCosine(t *testing.T) {
	v := NewVector(Tokenize("senate budget vote passes senate"))
	assert.InDelta(t, 1.0, Cosine(v, v), 1e-9)

	empty := NewVector(nil)
	assert.Zero(t, Cosine(v, empty))
	assert.Zero(t, Cosine(empty, empty))

	other := NewVector(Tokenize("wildfire spreads northern hills"))
	assert.Zero(t, Cosine(v, other))
}

func TestCosineIsSymmetric(t *testing.T) {
	a := NewVector(Tokenize("senate passes trillion budget bill"))
	b := NewVector(Tokenize("senate approves budget package vote"))
	assert.Equal(t, Cosine(a, b), Cosine(b, a))
	assert.InDelta(t, 0.4, Cosine(a, b), 1e-9)
}

func TestVectorIsTermFrequency(t *testing.T) {
	v := NewVector([]string{"budget", "budget", "senate", "vote"})
	assert.Equal(t, 3, v.size())
	assert.InDelta(t, 0.5, v.Weight("budget"), 1e-12)
	assert.InDelta(t, 0.25, v.Weight("vote"), 1e-12)
	assert.Zero(t, v.Weight("missing"))
}

func TestAssignGroupsSimilarHeadlines(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store)
	ctx := context.Background()

	first := article("a1", "s1", "Senate passes $1.2 trillion budget bill, 58–42", 2*time.Hour)
	store.addArticle(first)
	r1, err := engine.Assign(ctx, first)
	require.NoError(t, err)
	require.True(t, r1.Created)

	second := article("a2", "s2", "Senate approves budget package by 58–42 vote", time.Hour)
	store.addArticle(second)
	r2, err := engine.Assign(ctx, second)
	require.NoError(t, err)

	assert.False(t, r2.Created)
	assert.Equal(t, r1.ClusterID, r2.ClusterID)
	assert.Greater(t, r2.Similarity, 0.35)

	c, err := store.Get(ctx, r1.ClusterID)
	require.NoError(t, err)
	assert.Equal(t, 2, c.ArticleCount)
	assert.Equal(t, store.memberCount(r1.ClusterID), c.ArticleCount)
	assert.Equal(t, first.Title, c.RepresentativeHeadline)
}

func TestAssignSeparatesUnrelatedHeadlines(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store)
	ctx := context.Background()

	first := article("a1", "s1", "Senate passes trillion budget bill after long debate", time.Hour)
	store.addArticle(first)
	r1, err := engine.Assign(ctx, first)
	require.NoError(t, err)

	second := article("a2", "s1", "Wildfire spreads across northern California hills overnight", time.Hour)
	store.addArticle(second)
	r2, err := engine.Assign(ctx, second)
	require.NoError(t, err)

	assert.True(t, r2.Created)
	assert.NotEqual(t, r1.ClusterID, r2.ClusterID)
}

func TestAssignLeavesShortTextUnclustered(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store)

	a := article("a1", "s1", "Big news today", time.Hour)
	store.addArticle(a)
	r, err := engine.Assign(context.Background(), a)
	require.NoError(t, err)

	assert.False(t, r.Clustered())
	assert.Zero(t, store.candidateCalls)
	assert.Empty(t, store.clusters)
}

func TestAssignUsesTrailingWindow(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store)
	ctx := context.Background()

	old := article("old", "s1", "Senate passes trillion budget bill", 80*time.Hour)
	store.addArticle(old)
	clusterID := "c-old"
	require.NoError(t, store.Create(ctx, &core.Cluster{ID: clusterID, Topic: "Senate passes trillion budget bill"}))
	require.NoError(t, store.AssignCluster(ctx, old.ID, clusterID))

	fresh := article("fresh", "s2", "Senate passes trillion budget bill", time.Hour)
	store.addArticle(fresh)
	r, err := engine.Assign(ctx, fresh)
	require.NoError(t, err)

	assert.True(t, r.Created)
	assert.NotEqual(t, clusterID, r.ClusterID)
	assert.Equal(t, testNow.Add(-72*time.Hour), store.lastSince)
}

func TestAssignPropagatesCandidateFailure(t *testing.T) {
	store := newFakeStore()
	store.failCandidates = true
	engine := newTestEngine(store)

	a := article("a1", "s1", "Senate passes trillion budget bill", time.Hour)
	store.addArticle(a)
	_, err := engine.Assign(context.Background(), a)
	require.Error(t, err)
	assert.Empty(t, store.clusters)
}

func TestAssignDiscardsClusterWhenAttachFails(t *testing.T) {
	store := newFakeStore()
	store.failAssign = true
	engine := newTestEngine(store)
	ctx := context.Background()

	a := article("a1", "s1", "Senate passes trillion budget bill after long debate", time.Hour)
	store.addArticle(a)
	_, err := engine.Assign(ctx, a)
	require.Error(t, err)

	assert.Zero(t, store.clusterCount())
	assert.Nil(t, store.articles["a1"].ClusterID)

	store.failAssign = false
	r, err := engine.Assign(ctx, a)
	require.NoError(t, err)
	assert.True(t, r.Created)
	assert.Equal(t, 1, store.clusterCount())
}

func TestAssignKeepsReferencedClusterWhenRecomputeFails(t *testing.T) {
	store := newFakeStore()
	store.failStats = true
	engine := newTestEngine(store)
	ctx := context.Background()

	a := article("a1", "s1", "Senate passes trillion budget bill after long debate", time.Hour)
	store.addArticle(a)
	_, err := engine.Assign(ctx, a)
	require.Error(t, err)

	require.NotNil(t, store.articles["a1"].ClusterID)
	clusterID := *store.articles["a1"].ClusterID
	c, err := store.Get(ctx, clusterID)
	require.NoError(t, err)
	assert.Zero(t, c.ArticleCount)

	store.failStats = false
	require.NoError(t, engine.Refresh(ctx, clusterID))
	c, err = store.Get(ctx, clusterID)
	require.NoError(t, err)
	assert.Equal(t, 1, c.ArticleCount)
	assert.Equal(t, store.memberCount(clusterID), c.ArticleCount)
}

func TestBestMatchKeepsFirstOnTies(t *testing.T) {
	c1, c2 := "c1", "c2"
	candidates := []core.Article{
		{ID: "x", Title: "senate budget vote passes", ClusterID: &c1},
		{ID: "y", Title: "senate budget vote passes", ClusterID: &c2},
	}
	vec := NewVector(Tokenize("senate budget vote passes"))

	best, ok := BestMatch(vec, candidates, 0.35)
	require.True(t, ok)
	assert.Equal(t, "c1", best.ClusterID)
	assert.InDelta(t, 1.0, best.Similarity, 1e-9)
}

func TestBestMatchIsStrictlyAboveThreshold(t *testing.T) {
	c1 := "c1"
	candidates := []core.Article{{ID: "x", Title: "alpha bravo charlie delta", ClusterID: &c1}}
	vec := NewVector(Tokenize("alpha bravo charlie delta"))

	_, ok := BestMatch(vec, candidates, 1.0)
	assert.False(t, ok)

	_, ok = BestMatch(vec, candidates, 0.99)
	assert.True(t, ok)
}

func TestConcurrentAssignmentsKeepCountsExact(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store)
	ctx := context.Background()

	seed := article("seed", "s0", "Senate passes trillion budget bill tonight", 3*time.Hour)
	store.addArticle(seed)
	r, err := engine.Assign(ctx, seed)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		a := article("a"+string(rune('a'+i)), "s1", "Senate passes trillion budget bill tonight", time.Hour)
		store.addArticle(a)
		wg.Add(1)
		go func(a core.Article) {
			defer wg.Done()
			_, err := engine.Assign(ctx, a)
			assert.NoError(t, err)
		}(a)
	}
	wg.Wait()

	c, err := store.Get(ctx, r.ClusterID)
	require.NoError(t, err)
	assert.Equal(t, store.memberCount(r.ClusterID), c.ArticleCount)
	assert.Equal(t, 0, engine.locks.size())
}

func TestComputeStats(t *testing.T) {
	base := testNow.Add(-10 * time.Hour)
	members := []core.ClusterMember{
		{ArticleID: "1", SourceID: "guardian", Title: "Second", BiasLabel: core.BiasLeft, HeatScore: 0.2, SubstanceScore: 0.6, PublishedAt: base.Add(time.Hour)},
		{ArticleID: "2", SourceID: "guardian", Title: "Third", BiasLabel: core.BiasLeft, HeatScore: 0.4, SubstanceScore: 0.2, PublishedAt: base.Add(2 * time.Hour)},
		{ArticleID: "3", SourceID: "forbes", Title: "First", BiasLabel: core.BiasCenterRight, HeatScore: 0.6, SubstanceScore: 0.4, PublishedAt: base},
		{ArticleID: "4", SourceID: "bbc", Title: "Fourth", BiasLabel: core.BiasCenter, HeatScore: 0, SubstanceScore: 0, PublishedAt: base.Add(3 * time.Hour)},
		{ArticleID: "5", SourceID: "aljazeera", Title: "Fifth", BiasLabel: core.BiasInternational, HeatScore: 0.3, SubstanceScore: 0.3, PublishedAt: base.Add(90 * time.Minute)},
	}

	stats := ComputeStats("Budget Showdown", members)

	assert.Equal(t, 5, stats.ArticleCount)
	assert.Equal(t, 4, stats.SourceCount)
	assert.Equal(t, 2, stats.LeftCount, "left bucket counts articles, not sources")
	assert.Equal(t, 1, stats.RightCount)
	assert.Equal(t, 1, stats.CenterCount)
	assert.Equal(t, 1, stats.InternationalCount)
	assert.InDelta(t, 0.3, stats.AvgHeat, 1e-9)
	assert.InDelta(t, 0.3, stats.AvgSubstance, 1e-9)
	assert.Equal(t, base, stats.FirstArticleAt)
	assert.Equal(t, base.Add(3*time.Hour), stats.LastArticleAt)
	assert.Equal(t, "First", stats.RepresentativeHeadline)
	assert.Equal(t, "budget-showdown", stats.TopicSlug)

	bucketSum := stats.LeftCount + stats.CenterCount + stats.RightCount + stats.InternationalCount
	assert.Greater(t, bucketSum, stats.SourceCount)
}

func TestComputeStatsSlugFallsBackToHeadline(t *testing.T) {
	members := []core.ClusterMember{{SourceID: "s", Title: "Storm Hits Coast", PublishedAt: testNow}}
	stats := ComputeStats("", members)
	assert.Equal(t, "storm-hits-coast", stats.TopicSlug)
}

func TestRecomputeRejectsEmptyCluster(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &core.Cluster{ID: "empty"}))

	err := NewAggregator(store, store).Recompute(ctx, "empty")
	assert.Error(t, err)
}

func TestExtractTopic(t *testing.T) {
	tests := map[string]string{
		"BREAKING: Senate passes budget - The Guardian": "Senate passes budget",
		"Exclusive:Fed holds rates | Reuters":           "Fed holds rates",
		"Year-over-year inflation cools — Bloomberg":    "Year-over-year inflation cools",
		"Plain headline":                                "Plain headline",
	}
	for in, want := range tests {
		assert.Equal(t, want, ExtractTopic(in), in)
	}

	long := ExtractTopic(repeat("word ", 40))
	assert.LessOrEqual(t, len([]rune(long)), 120)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "senate-passes-12-trillion-budget-5842", Slugify("Senate passes $1.2 trillion budget, 58–42"))
	assert.Equal(t, "already-hyphenated-words", Slugify("Already-hyphenated words"))
	assert.Len(t, Slugify(repeat("abcdefghij ", 20)), 80)
}

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	km := NewKeyedMutex()
	var mu sync.Mutex
	active, peak := 0, 0

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("cluster")
			mu.Lock()
			active++
			peak = int(math.Max(float64(peak), float64(active)))
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, peak)
	assert.Equal(t, 0, km.size())
}

func repeat(s string, n int) string {
	return strings.Repeat(s, n)
}
