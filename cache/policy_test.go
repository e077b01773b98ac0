package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/jonwraymond/cropadvisor/artifact"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	want := map[artifact.Kind]time.Duration{
		artifact.KindSoil:    24 * time.Hour,
		artifact.KindWater:   24 * time.Hour,
		artifact.KindWeather: 6 * time.Hour,
		artifact.KindStage:   48 * time.Hour,
	}
	for k, d := range want {
		got, ok := p.MaxAgeFor(k)
		if !ok || got != d {
			t.Errorf("MaxAgeFor(%s) = %v, %v; want %v", k, got, ok, d)
		}
	}
	for _, k := range []artifact.Kind{artifact.KindNutrient, artifact.KindPest, artifact.KindDisease, artifact.KindIrrigation} {
		if _, ok := p.MaxAgeFor(k); ok {
			t.Errorf("expected %s to skip the store", k)
		}
	}
}

func TestPolicy_Since(t *testing.T) {
	p := DefaultPolicy()
	since, ok := p.Since(artifact.KindWeather, testNow)
	if !ok || !since.Equal(testNow.Add(-6*time.Hour)) {
		t.Errorf("Since(weather) = %v, %v", since, ok)
	}
	if _, ok := NoStorePolicy().Since(artifact.KindSoil, testNow); ok {
		t.Error("NoStorePolicy must skip the store")
	}
}

func TestPolicy_With(t *testing.T) {
	base := DefaultPolicy()
	p := base.With(artifact.KindPest, time.Hour).With(artifact.KindSoil, 0)

	if d, ok := p.MaxAgeFor(artifact.KindPest); !ok || d != time.Hour {
		t.Errorf("expected pest max-age 1h, got %v, %v", d, ok)
	}
	if _, ok := p.MaxAgeFor(artifact.KindSoil); ok {
		t.Error("zero max-age must disable the store tier")
	}
	if _, ok := base.MaxAgeFor(artifact.KindPest); ok {
		t.Error("With must not mutate the receiver")
	}
}

func TestPolicy_Validate(t *testing.T) {
	if err := DefaultPolicy().Validate(); err != nil {
		t.Errorf("default policy invalid: %v", err)
	}
	if err := DefaultPolicy().With(artifact.KindSoil, -time.Second).Validate(); !errors.Is(err, ErrInvalidPolicy) {
		t.Errorf("expected ErrInvalidPolicy for negative, got %v", err)
	}
	if err := DefaultPolicy().With(artifact.Kind("compost"), time.Hour).Validate(); !errors.Is(err, ErrInvalidPolicy) {
		t.Errorf("expected ErrInvalidPolicy for unknown kind, got %v", err)
	}
}
