// FILE: lixenwraith/linelog/location.go
package linelog

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// LocationKind names a storage tier
type LocationKind int

const (
	LocationPrivate LocationKind = iota
	LocationExternal
	LocationFallback
)

func (k LocationKind) String() string {
	switch k {
	case LocationPrivate:
		return "private"
	case LocationExternal:
		return "external"
	case LocationFallback:
		return "fallback"
	default:
		return fmt.Sprintf("location(%d)", int(k))
	}
}

// DirProvider returns a usable directory or an error wrapping ErrLocationNotAccessible
type DirProvider func() (string, error)

// Location is one candidate of the fallback chain
type Location struct {
	Kind    LocationKind
	Provide DirProvider
}

// CreatedDir provides path, creating it when missing
func CreatedDir(path string) DirProvider {
	return func() (string, error) {
		if strings.TrimSpace(path) == "" {
			return "", fmt.Errorf("%w: empty directory", ErrLocationNotAccessible)
		}
		if err := os.MkdirAll(path, dirPerm); err != nil {
			return "", fmt.Errorf("%w: failed to create '%s': %v", ErrLocationNotAccessible, path, err)
		}
		return path, nil
	}
}

// ExistingDir provides path only if it already is a directory, the way mounted
// external media is either there or not
func ExistingDir(path string) DirProvider {
	return func() (string, error) {
		if strings.TrimSpace(path) == "" {
			return "", fmt.Errorf("%w: empty directory", ErrLocationNotAccessible)
		}
		info, err := os.Stat(path)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrLocationNotAccessible, err)
		}
		if !info.IsDir() {
			return "", fmt.Errorf("%w: '%s' is not a directory", ErrLocationNotAccessible, path)
		}
		return path, nil
	}
}

// locationsFromConfig builds the fallback chain: external, fallback directory and
// private storage when external storage is enabled, private storage alone otherwise
func locationsFromConfig(cfg *Config) []Location {
	private := Location{Kind: LocationPrivate, Provide: CreatedDir(cfg.Directory)}
	if !cfg.UseExternalStorage {
		return []Location{private}
	}
	return []Location{
		{Kind: LocationExternal, Provide: ExistingDir(cfg.ExternalDirectory)},
		{Kind: LocationFallback, Provide: CreatedDir(cfg.FallbackDirectory)},
		private,
	}
}

// Resolver opens sinks through an ordered fallback chain. The first location that
// yields a writable file wins.
type Resolver struct {
	cfg       *Config
	locations []Location
	wrapper   WriterWrapper
	notifier  Notifier
	logger    Logger
	state     *State
	clock     Clock
}

// ResolverOption customizes a Resolver
type ResolverOption func(*Resolver)

// WithLocations replaces the configured fallback chain
func WithLocations(locations ...Location) ResolverOption {
	return func(r *Resolver) {
		r.locations = locations
	}
}

// WithWriterWrapper sets the encrypting writer used when encryption is required
func WithWriterWrapper(w WriterWrapper) ResolverOption {
	return func(r *Resolver) {
		r.wrapper = w
	}
}

// WithNotifier sets the operator notification collaborator
func WithNotifier(n Notifier) ResolverOption {
	return func(r *Resolver) {
		r.notifier = n
	}
}

// WithLogger sets the diagnostics logger
func WithLogger(l Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = l
	}
}

// WithClock sets the time source used for archive names and retention
func WithClock(c Clock) ResolverOption {
	return func(r *Resolver) {
		if c != nil {
			r.clock = c
		}
	}
}

func withState(s *State) ResolverOption {
	return func(r *Resolver) {
		r.state = s
	}
}

// NewResolver creates a resolver for cfg. Without options the chain comes from cfg
// and diagnostics are discarded.
func NewResolver(cfg *Config, opts ...ResolverOption) *Resolver {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	r := &Resolver{
		cfg:       cfg,
		locations: locationsFromConfig(cfg),
		state:     &State{},
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = NewConsoleLogger(cfg, nil)
	}
	if r.notifier == nil {
		r.notifier = logNotifier{logger: r.logger}
	}
	return r
}

// Open resolves a sink for the logical log name. Failed locations are recorded on
// the sink and logged; a successful fallback sends one combined failure notice.
// ErrStorageUnavailable is returned only when every location failed, and reporting
// it to the operator is left to the caller.
func (r *Resolver) Open(name string) (*Sink, error) {
	if r.cfg.Encrypt && r.wrapper == nil {
		return nil, fmt.Errorf("%w: encryption required but no writer wrapper configured", ErrStorageUnavailable)
	}

	var failures []error
	for _, loc := range r.locations {
		sink, err := r.openAt(loc, name)
		if err != nil {
			r.state.StorageFailures.Add(1)
			r.logger.Warn("log location not accessible", "buffer", name, "location", loc.Kind.String(), "error", err)
			failures = append(failures, err)
			continue
		}

		sink.failures = failures
		r.logger.Debug("log location resolved", "buffer", name, "location", loc.Kind.String(), "path", sink.Path())
		if len(failures) > 0 {
			r.notifier.NotifyFailure(name, fmt.Errorf("%w: fell back to %s location: %v",
				ErrLocationNotAccessible, loc.Kind, joinFailures(failures)))
		}
		r.notifier.NotifyLocation(name, sink.Path())
		return sink, nil
	}

	err := joinFailures(failures)
	if err == nil {
		return nil, fmt.Errorf("%w: no storage locations for '%s'", ErrStorageUnavailable, name)
	}
	return nil, fmt.Errorf("%w: '%s': %v", ErrStorageUnavailable, name, err)
}

func (r *Resolver) openAt(loc Location, name string) (*Sink, error) {
	if loc.Provide == nil {
		return nil, fmt.Errorf("%w: %s location has no provider", ErrLocationNotAccessible, loc.Kind)
	}
	dir, err := loc.Provide()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", loc.Kind, err)
	}

	if minFree := r.cfg.minDiskFreeBytes(); minFree > 0 {
		free, err := diskFreeSpace(dir)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %v", loc.Kind, ErrLocationNotAccessible, err)
		}
		if free < minFree {
			return nil, fmt.Errorf("%s: %w: %d bytes free in '%s', need %d",
				loc.Kind, ErrLocationNotAccessible, free, dir, minFree)
		}
	}

	sink := &Sink{
		name:      name,
		dir:       dir,
		kind:      loc.Kind,
		ext:       r.cfg.Extension,
		maxSize:   r.cfg.maxSizeBytes(),
		retention: r.cfg.retention(),
		wrapper:   r.wrapper,
		encrypt:   r.cfg.Encrypt,
		state:     r.state,
		logger:    r.logger,
		clock:     r.clock,
	}
	if err := sink.open(); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", loc.Kind, ErrLocationNotAccessible, err)
	}
	return sink, nil
}

func joinFailures(failures []error) error {
	var err error
	for _, f := range failures {
		err = combineErrors(err, f)
	}
	return err
}
