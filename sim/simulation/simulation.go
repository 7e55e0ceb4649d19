// Package simulation holds the services that the levels of a hierarchy
// share: the registry of the levels, the id generator, the backing storage
// with its compression oracle and the logger.
package simulation

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/sarchlab/compcache/mem/compression"
	"github.com/sarchlab/compcache/mem/mem"
	"github.com/sarchlab/compcache/sim/id"
)

// A Simulation provides the service requires to define a simulation. Levels
// are registered while the hierarchy is built and are read-only once the
// requesters start.
type Simulation struct {
	idGenerator id.IDGenerator
	logger      *slog.Logger
	storage     *mem.Storage
	oracle      compression.Oracle

	levels    []mem.MemObject
	nameIndex map[string]mem.LevelID

	terminateOnce sync.Once
	terminators   []func()
}

// NewSimulation creates a new simulation.
func NewSimulation() *Simulation {
	return &Simulation{
		idGenerator: id.NewIDGenerator(),
		logger:      slog.Default(),
		nameIndex:   make(map[string]mem.LevelID),
	}
}

// ID returns the ID of the simulation.
func (s *Simulation) ID() string {
	return "simulation"
}

// SetIDGenerator replaces the id generator.
func (s *Simulation) SetIDGenerator(g id.IDGenerator) {
	s.idGenerator = g
}

// IDGenerator returns the id generator shared by the levels.
func (s *Simulation) IDGenerator() id.IDGenerator {
	return s.idGenerator
}

// SetLogger replaces the logger.
func (s *Simulation) SetLogger(l *slog.Logger) {
	s.logger = l
}

// Logger returns the logger shared by the levels.
func (s *Simulation) Logger() *slog.Logger {
	return s.logger
}

// SetStorage sets the backing storage and the compressor that turns the
// lines of the storage into compressed sizes.
func (s *Simulation) SetStorage(
	storage *mem.Storage,
	compressor compression.Compressor,
	lineSize int,
) {
	s.storage = storage
	s.oracle = compression.NewStorageOracle(storage, compressor, lineSize)
}

// SetOracle replaces the oracle, for example with a synthetic one.
func (s *Simulation) SetOracle(o compression.Oracle) {
	s.oracle = o
}

// Storage returns the backing storage.
func (s *Simulation) Storage() *mem.Storage {
	return s.storage
}

// Oracle returns the compression oracle.
func (s *Simulation) Oracle() compression.Oracle {
	return s.oracle
}

// RegisterLevel adds a level to the registry and returns its id.
func (s *Simulation) RegisterLevel(l mem.MemObject) mem.LevelID {
	name := l.Name()
	if _, ok := s.nameIndex[name]; ok {
		panic("level " + name + " already registered")
	}

	levelID := mem.LevelID(len(s.levels))
	s.levels = append(s.levels, l)
	s.nameIndex[name] = levelID

	return levelID
}

// MemObject returns the level with the given id.
func (s *Simulation) MemObject(levelID mem.LevelID) mem.MemObject {
	if levelID < 0 || int(levelID) >= len(s.levels) {
		panic(fmt.Sprintf("level %d is not registered", levelID))
	}

	return s.levels[levelID]
}

// Cache returns the level with the given id, which must be a cache.
func (s *Simulation) Cache(levelID mem.LevelID) mem.Cache {
	l := s.MemObject(levelID)

	c, ok := l.(mem.Cache)
	if !ok {
		panic(fmt.Sprintf("level %s is not a cache", l.Name()))
	}

	return c
}

// LevelID returns the id of the level with the given name.
func (s *Simulation) LevelID(name string) (mem.LevelID, bool) {
	levelID, ok := s.nameIndex[name]
	return levelID, ok
}

// GetLevelByName returns the level with the given name.
func (s *Simulation) GetLevelByName(name string) mem.MemObject {
	levelID, ok := s.nameIndex[name]
	if !ok {
		return nil
	}

	return s.levels[levelID]
}

// Levels returns all the levels in the order they are registered.
func (s *Simulation) Levels() []mem.MemObject {
	return s.levels
}

// RegisterTerminator adds a function that runs when the simulation
// terminates, for example to flush a recorder.
func (s *Simulation) RegisterTerminator(f func()) {
	s.terminators = append(s.terminators, f)
}

// Terminate runs the terminators once, in the reverse order of their
// registration.
func (s *Simulation) Terminate() {
	s.terminateOnce.Do(func() {
		for i := len(s.terminators) - 1; i >= 0; i-- {
			s.terminators[i]()
		}
	})
}
