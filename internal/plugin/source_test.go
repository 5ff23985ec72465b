// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	name      string
	locations []*url.URL
	err       error
	panics    bool
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) List(context.Context) ([]*url.URL, error) {
	if s.panics {
		panic("source blew up")
	}
	return s.locations, s.err
}

func loc(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func locStrings(locations []*url.URL) []string {
	out := make([]string, 0, len(locations))
	for _, l := range locations {
		out = append(out, l.String())
	}
	return out
}

func TestSources_ListAll(t *testing.T) {
	s := NewSources(
		&stubSource{name: "a", locations: []*url.URL{
			loc(t, "file:///plugins/mailer.hpk"),
			loc(t, "file:///plugins/reporting.hpk"),
		}},
		&stubSource{name: "b", locations: []*url.URL{
			loc(t, "https://example.com/mailer.hpk"),
		}},
	)

	got := s.ListAll(context.Background())

	assert.Equal(t, []string{
		"file:///plugins/mailer.hpk",
		"file:///plugins/reporting.hpk",
		"https://example.com/mailer.hpk",
	}, locStrings(got))
}

func TestSources_ListAll_Deduplicates(t *testing.T) {
	s := NewSources(
		&stubSource{name: "a", locations: []*url.URL{loc(t, "file:///p/mailer.hpk")}},
		&stubSource{name: "b", locations: []*url.URL{loc(t, "file:///p/mailer.hpk")}},
	)

	got := s.ListAll(context.Background())

	assert.Len(t, got, 1)
}

func TestSources_ListAll_DropsNilLocations(t *testing.T) {
	s := NewSources(&stubSource{name: "a", locations: []*url.URL{
		nil,
		loc(t, "file:///p/mailer.hpk"),
	}})

	got := s.ListAll(context.Background())

	assert.Equal(t, []string{"file:///p/mailer.hpk"}, locStrings(got))
}

func TestSources_ListAll_SkipsFailingSource(t *testing.T) {
	s := NewSources(
		&stubSource{name: "broken", err: errors.New("boom")},
		&stubSource{name: "panicky", panics: true},
		&stubSource{name: "ok", locations: []*url.URL{loc(t, "file:///p/mailer.hpk")}},
	)

	got := s.ListAll(context.Background())

	assert.Equal(t, []string{"file:///p/mailer.hpk"}, locStrings(got))
}

func TestSources_ListAll_Empty(t *testing.T) {
	assert.Empty(t, NewSources().ListAll(context.Background()))
}

func TestSources_Register(t *testing.T) {
	s := NewSources()
	s.Register(&stubSource{name: "a", locations: []*url.URL{loc(t, "file:///p/x.hpk")}})
	assert.Len(t, s.ListAll(context.Background()), 1)
}
