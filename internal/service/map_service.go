package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/terrainkit/internal/repository"
	"github.com/freeeve/terrainkit/pkg/choke"
	"github.com/freeeve/terrainkit/pkg/geo"
	"github.com/freeeve/terrainkit/pkg/pathfind"
	"github.com/freeeve/terrainkit/pkg/region"
	"github.com/freeeve/terrainkit/pkg/terrain"
)

var (
	ErrMapNotFound    = errors.New("map not found")
	ErrRegionNotFound = errors.New("region not found")
	ErrOutOfBounds    = errors.New("position is outside the map")
)

// MapInfo summarizes an open map session.
type MapInfo struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	RunID       string    `json:"runId"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Regions     int       `json:"regions"`
	Expands     int       `json:"expands"`
	Chokepoints int       `json:"chokepoints"`
	Restored    bool      `json:"restored"`
	AnalyzedAt  time.Time `json:"analyzedAt"`
}

// PathResult is a cell-level path between two world positions.
type PathResult struct {
	Found    bool        `json:"found"`
	Points   []geo.Point `json:"points,omitempty"`
	Distance float64     `json:"distance"`
}

// UnitDestroyedResult reports what a destroyed unit changed.
type UnitDestroyedResult struct {
	Tag            uint64 `json:"tag"`
	Known          bool   `json:"known"`
	RegionsChanged []int  `json:"regionsChanged,omitempty"`
}

// session is one analyzed map. All access goes through mu: the core
// packages are single-threaded and HTTP handlers are not.
type session struct {
	mu       sync.Mutex
	info     MapInfo
	file     *terrain.MapFile
	grid     *terrain.Grid
	analysis *region.Analysis
	cells    *pathfind.CellPathfinder
	regions  *region.Pathfinder
	stale    bool // replaced by Reanalyze or removed by Close
}

// MapService owns the analyzed maps and the terrain mutations applied to them.
type MapService struct {
	store       repository.Store
	builder     *region.Builder
	opts        region.Options
	broadcaster Broadcaster

	mu       sync.RWMutex
	sessions map[string]*session
}

// NewMapService creates a MapService. Analyses are persisted to store.
func NewMapService(store repository.Store, opts region.Options, broadcaster Broadcaster) *MapService {
	if broadcaster == nil {
		broadcaster = NoopBroadcaster{}
	}
	return &MapService{
		store:       store,
		builder:     region.NewBuilder(opts, log.Logger),
		opts:        opts,
		broadcaster: broadcaster,
		sessions:    make(map[string]*session),
	}
}

// Open analyzes a map, reusing persisted vision lines and analysis when
// the store has them. Opening an already open map returns its info.
func (s *MapService) Open(ctx context.Context, mf *terrain.MapFile) (*MapInfo, error) {
	id := mf.Identity()
	s.mu.RLock()
	existing, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		existing.mu.Lock()
		info := existing.info
		existing.mu.Unlock()
		return &info, nil
	}

	own := *mf
	own.Units = slices.Clone(mf.Units)
	sess, err := s.analyze(ctx, &own, false)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	info := sess.info
	s.broadcaster.BroadcastMapEvent(id, EventAnalysisCompleted, info)
	return &info, nil
}

// Reanalyze discards the persisted analysis of an open map and rebuilds it
// from the map file without the units destroyed since. Persisted vision
// lines are kept. The old session stays locked until the new one replaces
// it, so destructions reported meanwhile land on the rebuilt analysis.
func (s *MapService) Reanalyze(ctx context.Context, id string) (*MapInfo, error) {
	old, err := s.lockSession(id)
	if err != nil {
		return nil, err
	}
	defer old.mu.Unlock()

	if err := s.store.Delete(ctx, repository.Key(repository.KindAnalysis, id)); err != nil {
		return nil, fmt.Errorf("delete analysis: %w", err)
	}
	own := *old.file
	own.Units = slices.Clone(old.file.Units)
	sess, err := s.analyze(ctx, &own, true)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.sessions[id] != old {
		s.mu.Unlock()
		return nil, ErrMapNotFound
	}
	s.sessions[id] = sess
	s.mu.Unlock()
	old.stale = true

	info := sess.info
	s.broadcaster.BroadcastMapEvent(id, EventAnalysisCompleted, info)
	return &info, nil
}

func (s *MapService) analyze(ctx context.Context, mf *terrain.MapFile, skipSnapshot bool) (*session, error) {
	id := mf.Identity()
	logger := log.With().Str("map", id).Logger()

	grid, err := mf.Grid()
	if err != nil {
		return nil, err
	}

	var a *region.Analysis
	restored := false
	if !skipSnapshot {
		a, err = s.restore(ctx, id, grid, mf.Units)
		if err != nil {
			return nil, err
		}
		restored = a != nil
	}

	if a == nil {
		lines, err := s.loadLines(ctx, id)
		if err != nil {
			return nil, err
		}
		fresh := lines == nil

		var used []choke.VisionLine
		a, used, err = s.builder.Build(ctx, region.Input{
			Model:      grid,
			Units:      mf.Units,
			SelfStart:  mf.Starts.Self,
			EnemyStart: mf.Starts.Enemy,
			Lines:      lines,
		})
		if err != nil {
			logger.Error().Err(err).Msg("Map analysis failed")
			return nil, fmt.Errorf("analyze %s: %w", mf.Name, err)
		}
		if fresh {
			if err := s.saveLines(ctx, id, used); err != nil {
				return nil, err
			}
		}
		if err := s.saveSnapshot(ctx, id, a); err != nil {
			return nil, err
		}
	} else {
		logger.Info().Str("run", a.RunID).Msg("Restored map analysis from store")
	}

	sess := &session{
		file:     mf,
		grid:     grid,
		analysis: a,
		cells:    pathfind.NewCellPathfinder(grid, s.opts.Paths, logger),
		regions:  region.NewPathfinder(a, s.opts.Paths, logger),
		info: MapInfo{
			ID:          id,
			Name:        mf.Name,
			RunID:       a.RunID,
			Width:       grid.MaxX(),
			Height:      grid.MaxY(),
			Regions:     len(a.Regions),
			Expands:     len(a.Expands),
			Chokepoints: len(a.Chokepoints),
			Restored:    restored,
			AnalyzedAt:  time.Now().UTC(),
		},
	}
	return sess, nil
}

func (s *MapService) restore(ctx context.Context, id string, grid *terrain.Grid, units []terrain.Unit) (*region.Analysis, error) {
	data, err := s.store.Load(ctx, repository.Key(repository.KindAnalysis, id))
	if err != nil {
		return nil, fmt.Errorf("load analysis: %w", err)
	}
	if data == nil {
		return nil, nil
	}
	var snap region.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Warn().Err(err).Str("map", id).Msg("Discarding unreadable analysis snapshot")
		return nil, nil
	}
	a, err := region.Restore(grid, snap, units)
	if errors.Is(err, region.ErrInvalidSnapshot) {
		log.Warn().Err(err).Str("map", id).Msg("Discarding stale analysis snapshot")
		return nil, nil
	}
	return a, err
}

func (s *MapService) loadLines(ctx context.Context, id string) ([]choke.VisionLine, error) {
	data, err := s.store.Load(ctx, repository.Key(repository.KindLines, id))
	if err != nil {
		return nil, fmt.Errorf("load vision lines: %w", err)
	}
	if data == nil {
		return nil, nil
	}
	lines, err := choke.DecodeLines(data)
	if err != nil {
		log.Warn().Err(err).Str("map", id).Msg("Discarding unreadable vision lines")
		return nil, nil
	}
	return lines, nil
}

func (s *MapService) saveLines(ctx context.Context, id string, lines []choke.VisionLine) error {
	data, err := choke.EncodeLines(lines)
	if err != nil {
		return fmt.Errorf("encode vision lines: %w", err)
	}
	if err := s.store.Save(ctx, repository.Key(repository.KindLines, id), data); err != nil {
		return fmt.Errorf("save vision lines: %w", err)
	}
	return nil
}

func (s *MapService) saveSnapshot(ctx context.Context, id string, a *region.Analysis) error {
	data, err := json.Marshal(a.Snapshot())
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	if err := s.store.Save(ctx, repository.Key(repository.KindAnalysis, id), data); err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}
	return nil
}

// lockSession returns the current session of id with its mutex held,
// retrying when the session it waited on was replaced meanwhile.
func (s *MapService) lockSession(id string) (*session, error) {
	for {
		sess, err := s.session(id)
		if err != nil {
			return nil, err
		}
		sess.mu.Lock()
		if !sess.stale {
			return sess, nil
		}
		sess.mu.Unlock()
	}
}

func (s *MapService) session(id string) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrMapNotFound
	}
	return sess, nil
}

// List returns the open maps sorted by name.
func (s *MapService) List() []MapInfo {
	s.mu.RLock()
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()

	out := make([]MapInfo, 0, len(sessions))
	for _, sess := range sessions {
		sess.mu.Lock()
		out = append(out, sess.info)
		sess.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// StoredMap is a map with persisted analysis artifacts.
type StoredMap struct {
	ID       string `json:"id"`
	Analysis bool   `json:"analysis"`
	Lines    bool   `json:"lines"`
	Open     bool   `json:"open"`
}

// Stored lists the maps the store holds artifacts for, sorted by ID. Maps
// listed here reopen without recasting their vision lines.
func (s *MapService) Stored(ctx context.Context) ([]StoredMap, error) {
	byID := map[string]*StoredMap{}
	get := func(id string) *StoredMap {
		if m, ok := byID[id]; ok {
			return m
		}
		m := &StoredMap{ID: id}
		byID[id] = m
		return m
	}
	for _, kind := range []string{repository.KindAnalysis, repository.KindLines} {
		keys, err := s.store.Keys(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("list stored %s: %w", kind, err)
		}
		for _, k := range keys {
			m := get(repository.MapID(k))
			if kind == repository.KindAnalysis {
				m.Analysis = true
			} else {
				m.Lines = true
			}
		}
	}

	s.mu.RLock()
	out := make([]StoredMap, 0, len(byID))
	for id, m := range byID {
		_, m.Open = s.sessions[id]
		out = append(out, *m)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Close forgets an open map. Its persisted analysis stays in the store.
func (s *MapService) Close(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return ErrMapNotFound
	}
	delete(s.sessions, id)
	s.mu.Unlock()

	sess.mu.Lock()
	sess.stale = true
	sess.mu.Unlock()
	return nil
}

// Info returns the summary of an open map.
func (s *MapService) Info(id string) (*MapInfo, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	info := sess.info
	return &info, nil
}

// Snapshot returns a copy of the current analysis of a map.
func (s *MapService) Snapshot(id string) (*region.Snapshot, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	snap := sess.analysis.Snapshot()
	return &snap, nil
}

// Region returns one region by ID.
func (s *MapService) Region(id string, regionID int) (*region.Region, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	r := sess.analysis.Region(regionID)
	if r == nil {
		return nil, ErrRegionNotFound
	}
	cp := *r
	return &cp, nil
}

// RegionAt returns the region containing a world position.
func (s *MapService) RegionAt(id string, p geo.Point) (*region.Region, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	r, ok := sess.analysis.RegionAt(p.Cell())
	if !ok {
		return nil, ErrRegionNotFound
	}
	cp := *r
	return &cp, nil
}

// FindPath finds a cell-level path between two world positions, avoiding
// the excluded cells.
func (s *MapService) FindPath(id string, from, to geo.Point, excluded []geo.Cell) (*PathResult, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if !sess.grid.InBounds(from.Cell()) || !sess.grid.InBounds(to.Cell()) {
		return nil, ErrOutOfBounds
	}

	points, ok := sess.cells.FindPointPath(from, to, excluded...)
	if !ok {
		return &PathResult{Found: false, Distance: -1}, nil
	}
	return &PathResult{Found: true, Points: points, Distance: pathfind.PathLength(points, geo.Point.Dist)}, nil
}

// FindRegionPath finds the regions a path between two world positions
// passes through, avoiding the excluded region IDs.
func (s *MapService) FindRegionPath(id string, from, to geo.Point, excluded []int) ([]region.Region, bool, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, false, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if !sess.grid.InBounds(from.Cell()) || !sess.grid.InBounds(to.Cell()) {
		return nil, false, ErrOutOfBounds
	}

	regions, ok := sess.regions.FindRegions(from, to, excluded...)
	if !ok {
		return nil, false, nil
	}
	out := make([]region.Region, len(regions))
	for i, r := range regions {
		out[i] = *r
	}
	return out, true, nil
}

// UnitDestroyed applies the destruction of a neutral unit to a map: expand
// resource and blocker sets shrink, obstructions lift, and both path caches
// are invalidated when anything changed.
func (s *MapService) UnitDestroyed(id string, tag uint64) (*UnitDestroyedResult, error) {
	sess, err := s.lockSession(id)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	before := obstructionFlags(sess.analysis)
	result := &UnitDestroyedResult{Tag: tag, Known: sess.analysis.OnUnitDestroyed(tag)}
	if !result.Known {
		return result, nil
	}
	sess.file.Units = slices.DeleteFunc(sess.file.Units, func(u terrain.Unit) bool { return u.Tag == tag })

	for i, r := range sess.analysis.Regions {
		if r.Obstructed != before[i] {
			result.RegionsChanged = append(result.RegionsChanged, r.ID)
		}
	}
	sess.cells.Invalidate()
	sess.regions.Invalidate()

	log.Info().Str("map", id).Uint64("tag", tag).Ints("regionsChanged", result.RegionsChanged).Msg("Unit destroyed")

	s.broadcaster.BroadcastMapEvent(id, EventUnitDestroyed, result)
	if len(result.RegionsChanged) > 0 {
		s.broadcaster.BroadcastMapEvent(id, EventRegionsChanged, result.RegionsChanged)
	}
	s.broadcaster.BroadcastMapEvent(id, EventCacheInvalidated, map[string]any{"mapId": id})
	return result, nil
}

// InvalidatePaths clears both path caches of a map without any terrain
// change, for callers that mutate terrain out of band.
func (s *MapService) InvalidatePaths(id string) error {
	sess, err := s.lockSession(id)
	if err != nil {
		return err
	}
	sess.cells.Invalidate()
	sess.regions.Invalidate()
	sess.mu.Unlock()
	s.broadcaster.BroadcastMapEvent(id, EventCacheInvalidated, map[string]any{"mapId": id})
	return nil
}

func obstructionFlags(a *region.Analysis) []bool {
	out := make([]bool, len(a.Regions))
	for i, r := range a.Regions {
		out[i] = r.Obstructed
	}
	return out
}
