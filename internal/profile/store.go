package profile

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"codeberg.org/mutker/framegov/internal/errors"
	"codeberg.org/mutker/framegov/internal/logger"
)

// SwitchFunc observes a completed profile switch.
type SwitchFunc func(from, to QualityProfile)

// Store owns the ordered profile ladder and the active profile. Mutations
// are serialized; Current may be called from any goroutine.
type Store struct {
	mu       sync.Mutex
	profiles []QualityProfile
	applier  Applier
	log      logger.Logger

	active   atomic.Pointer[QualityProfile]
	index    int
	floor    int
	ceiling  int
	switches atomic.Uint64

	initial    string
	floorLevel *int
	onSwitch   []SwitchFunc
}

// StoreOption configures a Store.
type StoreOption func(*Store)

func WithLogger(log logger.Logger) StoreOption {
	return func(s *Store) { s.log = log }
}

// WithInitial selects the starting profile by ID. The lowest level is used
// otherwise.
func WithInitial(id string) StoreOption {
	return func(s *Store) { s.initial = id }
}

// WithFloor sets the starting floor level. An initial profile below it is
// raised to the floor.
func WithFloor(level int) StoreOption {
	return func(s *Store) { s.floorLevel = &level }
}

// WithOnSwitch registers an observer called after every successful switch.
func WithOnSwitch(fn SwitchFunc) StoreOption {
	return func(s *Store) { s.onSwitch = append(s.onSwitch, fn) }
}

// NewStore validates profiles and builds a Store. IDs and levels must be
// unique and at least one profile is required.
func NewStore(profiles []QualityProfile, applier Applier, opts ...StoreOption) (*Store, error) {
	errFactory := errors.New()

	if len(profiles) == 0 {
		return nil, errFactory.WithMessage(errors.ErrInvalidProfile, "at least one quality profile is required")
	}
	if applier == nil {
		return nil, errFactory.WithMessage(errors.ErrInvalidArgument, "profile applier is nil")
	}

	var problems errors.FieldErrors
	ids := make(map[string]struct{}, len(profiles))
	levels := make(map[int]string, len(profiles))
	for _, p := range profiles {
		if p.ID == "" {
			problems = append(problems, errors.FieldError{Field: "id", Value: p.Name, Reason: "must not be empty"})
			continue
		}
		if _, dup := ids[p.ID]; dup {
			problems = append(problems, errors.FieldError{Field: "id", Value: p.ID, Reason: "duplicate profile id"})
		}
		if other, dup := levels[p.Level]; dup {
			problems = append(problems, errors.FieldError{
				Field:  p.ID + ".level",
				Value:  p.Level,
				Reason: fmt.Sprintf("level already used by %s", other),
			})
		}
		ids[p.ID] = struct{}{}
		levels[p.Level] = p.ID
	}
	if len(problems) > 0 {
		return nil, errFactory.WithData(errors.ErrInvalidProfile, problems)
	}

	s := &Store{
		profiles: make([]QualityProfile, 0, len(profiles)),
		applier:  applier,
		log:      logger.Default(),
	}
	for _, p := range profiles {
		s.profiles = append(s.profiles, p.clone())
	}
	sort.Slice(s.profiles, func(i, j int) bool {
		return s.profiles[i].Level < s.profiles[j].Level
	})
	s.ceiling = len(s.profiles) - 1

	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("profile")

	if s.initial != "" {
		idx, ok := s.indexOf(s.initial)
		if !ok {
			return nil, errFactory.WithData(errors.ErrProfileNotFound, s.initial)
		}
		s.index = idx
	}
	if s.floorLevel != nil {
		s.setFloor(*s.floorLevel)
	}
	if idx := s.clamp(s.index); idx != s.index {
		s.log.Info().
			Str("requested", s.profiles[s.index].ID).
			Str("profile", s.profiles[idx].ID).
			Msg("Initial profile below floor, starting at floor")
		s.index = idx
	}
	current := s.profiles[s.index].clone()
	s.active.Store(&current)

	return s, nil
}

// Current returns a copy of the active profile.
func (s *Store) Current() QualityProfile {
	return s.active.Load().clone()
}

// Profiles returns the ladder ordered by ascending level.
func (s *Store) Profiles() []QualityProfile {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]QualityProfile, len(s.profiles))
	for i, p := range s.profiles {
		out[i] = p.clone()
	}

	return out
}

func (s *Store) Floor() QualityProfile {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.profiles[s.floor].clone()
}

func (s *Store) Ceiling() QualityProfile {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.profiles[s.ceiling].clone()
}

// Switches counts successful profile switches.
func (s *Store) Switches() uint64 {
	return s.switches.Load()
}

// SetFloor moves the lower bound to the lowest profile at or above level.
// The ceiling is raised when it would fall under the new floor. The active
// profile is left alone until the next switch.
func (s *Store) SetFloor(level int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.setFloor(level)
}

func (s *Store) setFloor(level int) {
	s.floor = len(s.profiles) - 1
	for i, p := range s.profiles {
		if p.Level >= level {
			s.floor = i
			break
		}
	}
	if s.ceiling < s.floor {
		s.ceiling = s.floor
	}
}

// SetCeiling moves the upper bound to the highest profile at or below level.
// The floor is lowered when it would rise above the new ceiling.
func (s *Store) SetCeiling(level int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ceiling = 0
	for i := len(s.profiles) - 1; i >= 0; i-- {
		if s.profiles[i].Level <= level {
			s.ceiling = i
			break
		}
	}
	if s.floor > s.ceiling {
		s.floor = s.ceiling
	}
}

// SetActive switches to the profile with the given id, clamped into the
// floor and ceiling.
func (s *Store) SetActive(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.indexOf(id)
	if !ok {
		return errors.New().WithData(errors.ErrProfileNotFound, id)
	}

	_, err := s.switchTo(ctx, s.clamp(idx))

	return err
}

// Step moves steps rungs in dir, clamped into the floor and ceiling. It
// reports whether the active profile changed. Stepping past a bound is not
// an error, and a step never moves against dir.
func (s *Store) Step(ctx context.Context, dir Direction, steps int) (bool, error) {
	if steps <= 0 {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.clamp(s.index + int(dir)*steps)
	if (target-s.index)*int(dir) < 0 {
		return false, nil
	}

	return s.switchTo(ctx, target)
}

// Reapply pushes every parameter of the active profile to the applier
// without counting a switch. Hosts call it once the renderer is ready.
func (s *Store) Reapply(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.profiles[s.index]
	for _, name := range current.ParamNames() {
		if err := s.applier.ApplyParameter(ctx, name, current.Params[name]); err != nil {
			return errors.New().Wrap(errors.ErrApplyProfile, err).
				WithMessage(fmt.Sprintf("failed to apply profile %s (param %s)", current.ID, name))
		}
	}

	return nil
}

// ToFloor switches to the floor profile.
func (s *Store) ToFloor(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.switchTo(ctx, s.floor)
}

func (s *Store) clamp(idx int) int {
	if idx < s.floor {
		return s.floor
	}
	if idx > s.ceiling {
		return s.ceiling
	}
	return idx
}

func (s *Store) indexOf(id string) (int, bool) {
	for i, p := range s.profiles {
		if p.ID == id {
			return i, true
		}
	}
	return 0, false
}

// switchTo applies every parameter of the target before publishing it. A
// failure rolls back what was already applied and leaves the active profile
// unchanged. Caller holds mu.
func (s *Store) switchTo(ctx context.Context, idx int) (bool, error) {
	if idx == s.index {
		return false, nil
	}

	from := s.profiles[s.index]
	to := s.profiles[idx]

	applied := make([]string, 0, len(to.Params))
	for _, name := range to.ParamNames() {
		if err := s.applier.ApplyParameter(ctx, name, to.Params[name]); err != nil {
			s.rollback(ctx, from, applied)

			s.log.Error().
				Err(err).
				Str("from", from.ID).
				Str("to", to.ID).
				Str("param", name).
				Msg("Failed to apply quality profile, rolled back")

			return false, errors.New().Wrap(errors.ErrApplyProfile, err).
				WithMessage(fmt.Sprintf("failed to apply profile %s (param %s)", to.ID, name))
		}
		applied = append(applied, name)
	}

	next := to.clone()
	s.active.Store(&next)
	s.index = idx
	s.switches.Add(1)

	s.log.Info().
		Str("from", from.ID).
		Str("to", to.ID).
		Int("level", to.Level).
		Msg("Quality profile switched")

	for _, fn := range s.onSwitch {
		fn(from.clone(), to.clone())
	}

	return true, nil
}

func (s *Store) rollback(ctx context.Context, previous QualityProfile, applied []string) {
	for i := len(applied) - 1; i >= 0; i-- {
		name := applied[i]
		value, ok := previous.Params[name]
		if !ok {
			continue
		}
		if err := s.applier.ApplyParameter(ctx, name, value); err != nil {
			s.log.Warn().Err(err).Str("param", name).Msg("Rollback of parameter failed")
		}
	}
}
