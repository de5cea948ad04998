// Package generation provides the video generation backends.
//
// The built-in backend simulates rendering: it waits a per-profile latency
// and returns placeholder artifact URLs. Profiles can be delegated to a
// real Backend, such as the HTTP backend used for the custom profile.
package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	ports "github.com/ZanzyTHEbar/video-studio/studio/pipeline/ports"
)

const (
	ProfileRunway = "runway-gen4"
	ProfileVeo3   = "veo3"
	ProfileBanana = "banana"
	ProfileCustom = "custom"

	placeholderBase = "/api/placeholder/640/360"
)

// Profile is a backend profile of the simulated service.
type Profile struct {
	ID          string
	DisplayName string
	Description string
	Latency     time.Duration
}

// DefaultProfiles is the built-in catalogue, in display order.
var DefaultProfiles = []Profile{
	{ID: ProfileRunway, DisplayName: "Runway Gen-4 Turbo", Description: "Latest high-quality model", Latency: 8 * time.Second},
	{ID: ProfileVeo3, DisplayName: "Veo3", Description: "Fast and creative", Latency: 6 * time.Second},
	{ID: ProfileBanana, DisplayName: "Banana", Description: "Artistic style", Latency: 5 * time.Second},
	{ID: ProfileCustom, DisplayName: "Custom API", Description: "Your own model", Latency: 10 * time.Second},
}

// Backend renders directives for profiles delegated away from the simulator.
type Backend interface {
	Generate(ctx context.Context, d ports.Directive, profile string) (ports.ArtifactResult, error)
}

// Option configures a Service.
type Option func(*Service)

// WithProfile adds or replaces a catalogue entry.
func WithProfile(p Profile) Option {
	return func(s *Service) {
		if _, ok := s.profiles[p.ID]; !ok {
			s.order = append(s.order, p.ID)
		}
		s.profiles[p.ID] = p
	}
}

// WithBackend routes a profile to b instead of the simulator.
func WithBackend(profile string, b Backend) Option {
	return func(s *Service) {
		if b != nil {
			s.backends[profile] = b
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides the artifact id source.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// Service is the generation service. It holds no per-request state and is
// safe for concurrent use.
type Service struct {
	profiles map[string]Profile
	order    []string
	fallback string
	backends map[string]Backend
	latency  ports.Latency
	now      func() time.Time
	newID    func() string
}

// NewService creates a generation service over the default catalogue.
func NewService(latency ports.Latency, opts ...Option) *Service {
	s := &Service{
		profiles: make(map[string]Profile, len(DefaultProfiles)),
		fallback: ProfileRunway,
		backends: make(map[string]Backend),
		latency:  latency,
		now:      time.Now,
		newID:    func() string { return strings.ToLower(ulid.Make().String()) },
	}
	for _, p := range DefaultProfiles {
		s.profiles[p.ID] = p
		s.order = append(s.order, p.ID)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate implements ports.Generator.
func (s *Service) Generate(ctx context.Context, d ports.Directive, profile string) (ports.ArtifactResult, error) {
	if b, ok := s.backends[profile]; ok {
		return b.Generate(ctx, d, profile)
	}

	if err := s.latency.Wait(ctx, s.lookup(profile).Latency); err != nil {
		return ports.ArtifactResult{}, fmt.Errorf("%w: %w", ports.ErrGenerationFailed, err)
	}

	id := s.newID()
	return ports.ArtifactResult{
		ArtifactURL:     videoURL(id),
		ThumbnailURL:    thumbnailURL(id),
		DurationSeconds: d.DurationSeconds,
		Resolution:      d.Resolution,
		Style:           d.Style,
		GeneratedAt:     s.now(),
	}, nil
}

// DisplayName implements ports.Generator. Unknown profiles report the default backend.
func (s *Service) DisplayName(profile string) string {
	return s.lookup(profile).DisplayName
}

// Known reports whether profile is in the catalogue.
func (s *Service) Known(profile string) bool {
	_, ok := s.profiles[profile]
	return ok
}

// Profiles implements ports.Generator.
func (s *Service) Profiles() []ports.ProfileInfo {
	infos := make([]ports.ProfileInfo, 0, len(s.order))
	for _, id := range s.order {
		p := s.profiles[id]
		infos = append(infos, ports.ProfileInfo{ID: p.ID, DisplayName: p.DisplayName, Description: p.Description})
	}
	return infos
}

func (s *Service) lookup(profile string) Profile {
	if p, ok := s.profiles[profile]; ok {
		return p
	}
	return s.profiles[s.fallback]
}

func videoURL(id string) string {
	return placeholderBase + "?video=" + id
}

func thumbnailURL(id string) string {
	return placeholderBase + "?thumb=" + id
}

var _ ports.Generator = (*Service)(nil)
