package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"axial/internal/core"
	"axial/internal/persistence"
)

// memStore is an in-memory implementation of the repositories the pipeline uses
type memStore struct {
	mu       sync.Mutex
	sources  []*core.Source
	articles map[string]*core.Article
	order    []string
	links    map[string]string
	clusters map[string]*core.Cluster
	digests  map[string]*core.DailyDigest
	seq      int

	// failure injection
	failInsert  map[string]bool // by link
	failExists  bool
	failListing bool
	failAssign  bool
}

func newMemStore() *memStore {
	return &memStore{
		articles:   make(map[string]*core.Article),
		links:      make(map[string]string),
		clusters:   make(map[string]*core.Cluster),
		digests:    make(map[string]*core.DailyDigest),
		failInsert: make(map[string]bool),
	}
}

func (m *memStore) deps() Deps {
	return Deps{
		Sources:  memSources{m},
		Articles: memArticles{m},
		Clusters: memClusters{m},
		Digests:  memDigests{m},
		Status:   memStatus{m},
	}
}

func (m *memStore) addSource(name, url string, bias core.BiasLabel, active bool) core.Source {
	m.mu.Lock()
	defer m.mu.Unlock()
	src := &core.Source{
		ID:        persistence.SourceID(url),
		Name:      name,
		FeedURL:   url,
		BiasLabel: bias,
		IsActive:  active,
	}
	m.sources = append(m.sources, src)
	return *src
}

func (m *memStore) source(id string) *core.Source {
	for _, s := range m.sources {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (m *memStore) articleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.articles)
}

func (m *memStore) article(link string) *core.Article {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.links[link]
	if !ok {
		return nil
	}
	cp := *m.articles[id]
	return &cp
}

func (m *memStore) putArticle(a core.Article) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = persistence.ArticleID(a.Link)
	}
	m.articles[a.ID] = &a
	m.links[a.Link] = a.ID
	m.order = append(m.order, a.ID)
}

func (m *memStore) putCluster(c core.Cluster) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clusters[c.ID] = &c
}

func (m *memStore) cluster(id string) *core.Cluster {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clusters[id]
	if !ok {
		return nil
	}
	cp := *c
	return &cp
}

func (m *memStore) members(clusterID string) []core.ClusterMember {
	var out []core.ClusterMember
	for _, id := range m.order {
		a := m.articles[id]
		if a.ClusterID == nil || *a.ClusterID != clusterID {
			continue
		}
		member := core.ClusterMember{
			ArticleID:      a.ID,
			SourceID:       a.SourceID,
			Title:          a.Title,
			Description:    a.Description,
			HeatScore:      a.HeatScore,
			SubstanceScore: a.SubstanceScore,
			PublishedAt:    a.PublishedAt,
		}
		if src := m.source(a.SourceID); src != nil {
			member.BiasLabel = src.BiasLabel
		}
		out = append(out, member)
	}
	return out
}

type memSources struct{ m *memStore }

func (r memSources) Create(ctx context.Context, s *core.Source) error {
	ok, err := r.CreateIfAbsent(ctx, s)
	if err == nil && !ok {
		return persistence.ErrDuplicate
	}
	return err
}

func (r memSources) CreateIfAbsent(_ context.Context, s *core.Source) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, existing := range r.m.sources {
		if existing.FeedURL == s.FeedURL {
			return false, nil
		}
	}
	if s.ID == "" {
		s.ID = persistence.SourceID(s.FeedURL)
	}
	cp := *s
	r.m.sources = append(r.m.sources, &cp)
	return true, nil
}

func (r memSources) Get(_ context.Context, id string) (*core.Source, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if s := r.m.source(id); s != nil {
		cp := *s
		return &cp, nil
	}
	return nil, persistence.ErrNotFound
}

func (r memSources) List(_ context.Context, _ persistence.ListOptions) ([]core.Source, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := make([]core.Source, 0, len(r.m.sources))
	for _, s := range r.m.sources {
		out = append(out, *s)
	}
	return out, nil
}

func (r memSources) ListActive(_ context.Context) ([]core.Source, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failListing {
		return nil, fmt.Errorf("listing failed")
	}
	var out []core.Source
	for _, s := range r.m.sources {
		if s.IsActive {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r memSources) SetActive(_ context.Context, id string, active bool) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s := r.m.source(id)
	if s == nil {
		return persistence.ErrNotFound
	}
	s.IsActive = active
	return nil
}

func (r memSources) MarkFetched(_ context.Context, id string, at time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s := r.m.source(id)
	if s == nil {
		return persistence.ErrNotFound
	}
	s.LastFetchedAt = &at
	return nil
}

func (r memSources) Count(_ context.Context) (int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return len(r.m.sources), nil
}

type memArticles struct{ m *memStore }

func (r memArticles) ExistsByLink(_ context.Context, link string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failExists {
		return false, fmt.Errorf("exists query failed")
	}
	_, ok := r.m.links[link]
	return ok, nil
}

func (r memArticles) Insert(_ context.Context, a *core.Article) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failInsert[a.Link] {
		return false, fmt.Errorf("insert failed")
	}
	if _, ok := r.m.links[a.Link]; ok {
		return false, nil
	}
	if a.ID == "" {
		a.ID = persistence.ArticleID(a.Link)
	}
	a.State = core.StateFetched
	cp := *a
	r.m.articles[a.ID] = &cp
	r.m.links[a.Link] = a.ID
	r.m.order = append(r.m.order, a.ID)
	return true, nil
}

func (r memArticles) Get(_ context.Context, id string) (*core.Article, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, ok := r.m.articles[id]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r memArticles) transition(id string, from, to core.ArticleState, apply func(a *core.Article)) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, ok := r.m.articles[id]
	if !ok || a.State != from {
		return persistence.ErrStateConflict
	}
	if apply != nil {
		apply(a)
	}
	a.State = to
	a.IsProcessed = to == core.StateProcessed
	return nil
}

func (r memArticles) SaveScores(_ context.Context, id string, heat, substance float64, keywords []string) error {
	return r.transition(id, core.StateFetched, core.StateScored, func(a *core.Article) {
		a.HeatScore = heat
		a.SubstanceScore = substance
		a.Keywords = keywords
	})
}

func (r memArticles) AssignCluster(_ context.Context, articleID, clusterID string) error {
	r.m.mu.Lock()
	fail := r.m.failAssign
	r.m.mu.Unlock()
	if fail {
		return fmt.Errorf("assign failed")
	}
	return r.transition(articleID, core.StateScored, core.StateClustered, func(a *core.Article) {
		id := clusterID
		a.ClusterID = &id
	})
}

func (r memArticles) Transition(_ context.Context, id string, from, to core.ArticleState) error {
	if err := core.ValidateTransition(from, to); err != nil {
		return err
	}
	return r.transition(id, from, to, nil)
}

func (r memArticles) ListByStates(_ context.Context, states []core.ArticleState, limit int) ([]core.Article, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []core.Article
	for _, id := range r.m.order {
		a := r.m.articles[id]
		for _, s := range states {
			if a.State == s {
				out = append(out, *a)
				break
			}
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r memArticles) RecentClustered(_ context.Context, since time.Time, excludeID string, limit int) ([]core.Article, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []core.Article
	for _, id := range r.m.order {
		a := r.m.articles[id]
		if a.ID == excludeID || a.ClusterID == nil || !a.PublishedAt.After(since) {
			continue
		}
		out = append(out, *a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PublishedAt.After(out[j].PublishedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memArticles) ClusterMembers(_ context.Context, clusterID string) ([]core.ClusterMember, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.m.members(clusterID), nil
}

func (r memArticles) RecentClusterMembers(_ context.Context, clusterID string, limit int) ([]core.ClusterMember, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	members := r.m.members(clusterID)
	sort.SliceStable(members, func(i, j int) bool { return members[i].PublishedAt.After(members[j].PublishedAt) })
	if len(members) > limit {
		members = members[:limit]
	}
	return members, nil
}

type memClusters struct{ m *memStore }

func (r memClusters) Create(_ context.Context, c *core.Cluster) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if c.ID == "" {
		r.m.seq++
		c.ID = fmt.Sprintf("cluster-%d", r.m.seq)
	}
	cp := *c
	r.m.clusters[c.ID] = &cp
	return nil
}

func (r memClusters) Get(_ context.Context, id string) (*core.Cluster, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.clusters[id]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r memClusters) UpdateStats(_ context.Context, id string, stats core.ClusterStats) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.clusters[id]
	if !ok {
		return persistence.ErrNotFound
	}
	c.ClusterStats = stats
	return nil
}

func (r memClusters) DeleteEmpty(_ context.Context, id string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.clusters[id]; !ok || len(r.m.members(id)) > 0 {
		return false, nil
	}
	delete(r.m.clusters, id)
	return true, nil
}

func (r memClusters) sorted(keep func(c *core.Cluster) bool, limit int) []core.Cluster {
	var out []core.Cluster
	for _, c := range r.m.clusters {
		if keep(c) {
			out = append(out, *c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ArticleCount != out[j].ArticleCount {
			return out[i].ArticleCount > out[j].ArticleCount
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r memClusters) ListForEnrichment(_ context.Context, minArticles, limit int) ([]core.Cluster, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.sorted(func(c *core.Cluster) bool {
		return c.IsActive && c.ArticleCount >= minArticles && c.Summary == nil
	}, limit), nil
}

func (r memClusters) SaveEnrichment(_ context.Context, id, summary string, analysis core.BiasAnalysis, at time.Time) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.clusters[id]
	if !ok || c.Summary != nil {
		return false, nil
	}
	c.Summary = &summary
	c.BiasAnalysis = &analysis
	c.SummaryGeneratedAt = &at
	return true, nil
}

func (r memClusters) ListActiveSince(_ context.Context, since time.Time, limit int) ([]core.Cluster, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.sorted(func(c *core.Cluster) bool {
		return c.IsActive && c.ArticleCount > 0 && c.LastArticleAt.After(since)
	}, limit), nil
}

func (r memClusters) WindowTotals(_ context.Context, since time.Time) (int, int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	clusters, articles := 0, 0
	for _, c := range r.m.clusters {
		if !c.IsActive || !c.LastArticleAt.After(since) {
			continue
		}
		n := len(r.m.members(c.ID))
		if n > 0 {
			clusters++
			articles += n
		}
	}
	return clusters, articles, nil
}

type memDigests struct{ m *memStore }

func (r memDigests) ExistsForDate(_ context.Context, date string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	_, ok := r.m.digests[date]
	return ok, nil
}

func (r memDigests) Create(_ context.Context, d *core.DailyDigest) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.digests[d.DigestDate]; ok {
		return false, nil
	}
	if d.ID == "" {
		d.ID = persistence.DigestID(d.DigestDate)
	}
	cp := *d
	r.m.digests[d.DigestDate] = &cp
	return true, nil
}

func (r memDigests) Latest(_ context.Context) (*core.DailyDigest, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var latest *core.DailyDigest
	for _, d := range r.m.digests {
		if latest == nil || d.DigestDate > latest.DigestDate {
			latest = d
		}
	}
	if latest == nil {
		return nil, persistence.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

type memStatus struct{ m *memStore }

func (r memStatus) Counts(_ context.Context, now time.Time) (persistence.StatusCounts, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var counts persistence.StatusCounts
	for _, s := range r.m.sources {
		if s.IsActive {
			counts.ActiveSources++
		}
		if s.LastFetchedAt != nil && (counts.LastFetchAt == nil || s.LastFetchedAt.After(*counts.LastFetchAt)) {
			t := *s.LastFetchedAt
			counts.LastFetchAt = &t
		}
	}
	for _, a := range r.m.articles {
		counts.TotalArticles++
		if a.FetchedAt.After(now.Add(-24 * time.Hour)) {
			counts.ArticlesLast24h++
		}
		if !a.IsProcessed {
			counts.PendingArticles++
		}
	}
	for _, c := range r.m.clusters {
		if c.LastArticleAt.After(now.Add(-7 * 24 * time.Hour)) {
			counts.ActiveClusters++
		}
	}
	return counts, nil
}
