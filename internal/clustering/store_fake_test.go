package clustering

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"axial/internal/core"
)

// fakeStore is an in-memory ArticleStore and ClusterStore.
type fakeStore struct {
	mu       sync.Mutex
	articles map[string]*core.Article
	order    []string
	sources  map[string]core.BiasLabel
	clusters map[string]*core.Cluster

	candidateCalls int
	lastSince      time.Time
	failCandidates bool
	failAssign     bool
	failStats      bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		articles: make(map[string]*core.Article),
		sources:  make(map[string]core.BiasLabel),
		clusters: make(map[string]*core.Cluster),
	}
}

func (s *fakeStore) addArticle(a core.Article) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.State == "" {
		a.State = core.StateScored
	}
	s.articles[a.ID] = &a
	s.order = append(s.order, a.ID)
}

func (s *fakeStore) RecentClustered(ctx context.Context, since time.Time, excludeID string, limit int) ([]core.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidateCalls++
	s.lastSince = since
	if s.failCandidates {
		return nil, fmt.Errorf("candidate query failed")
	}

	var out []core.Article
	for _, id := range s.order {
		a := s.articles[id]
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

func (s *fakeStore) AssignCluster(ctx context.Context, articleID, clusterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAssign {
		return fmt.Errorf("assign failed")
	}
	a, ok := s.articles[articleID]
	if !ok {
		return fmt.Errorf("article %s not found", articleID)
	}
	id := clusterID
	a.ClusterID = &id
	a.State = core.StateClustered
	return nil
}

func (s *fakeStore) ClusterMembers(ctx context.Context, clusterID string) ([]core.ClusterMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.ClusterMember
	for _, id := range s.order {
		a := s.articles[id]
		if a.ClusterID == nil || *a.ClusterID != clusterID {
			continue
		}
		out = append(out, core.ClusterMember{
			ArticleID:      a.ID,
			SourceID:       a.SourceID,
			Title:          a.Title,
			Description:    a.Description,
			BiasLabel:      s.sources[a.SourceID],
			HeatScore:      a.HeatScore,
			SubstanceScore: a.SubstanceScore,
			PublishedAt:    a.PublishedAt,
		})
	}
	return out, nil
}

func (s *fakeStore) Create(ctx context.Context, c *core.Cluster) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.clusters[c.ID] = &cp
	return nil
}

func (s *fakeStore) Get(ctx context.Context, id string) (*core.Cluster, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clusters[id]
	if !ok {
		return nil, fmt.Errorf("cluster %s not found", id)
	}
	cp := *c
	return &cp, nil
}

func (s *fakeStore) UpdateStats(ctx context.Context, id string, stats core.ClusterStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failStats {
		return fmt.Errorf("stats update failed")
	}
	c, ok := s.clusters[id]
	if !ok {
		return fmt.Errorf("cluster %s not found", id)
	}
	c.ClusterStats = stats
	return nil
}

func (s *fakeStore) DeleteEmpty(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clusters[id]; !ok {
		return false, nil
	}
	for _, a := range s.articles {
		if a.ClusterID != nil && *a.ClusterID == id {
			return false, nil
		}
	}
	delete(s.clusters, id)
	return true, nil
}

func (s *fakeStore) clusterCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clusters)
}

func (s *fakeStore) memberCount(clusterID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.articles {
		if a.ClusterID != nil && *a.ClusterID == clusterID {
			n++
		}
	}
	return n
}
