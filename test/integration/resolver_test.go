// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package integration

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/optplug/internal/plugin"
	"github.com/holomush/optplug/internal/plugin/filters"
	"github.com/holomush/optplug/internal/plugin/registry"
	"github.com/holomush/optplug/internal/plugin/sources"
	"github.com/holomush/optplug/internal/resolver"
)

// recordingLoader stands in for a live host, recording activation order.
type recordingLoader struct {
	mu     sync.Mutex
	loaded []string
}

func (l *recordingLoader) HotLoad(_ context.Context, c *plugin.Candidate, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loaded = append(l.loaded, c.ShortName)
	return nil
}

func (l *recordingLoader) order() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.loaded...)
}

// publishPlugin writes a plugin archive into the source directory.
func publishPlugin(dir, name, version string, depends ...string) {
	path := filepath.Join(dir, name+plugin.Ext)
	f, err := os.Create(path)
	Expect(err).NotTo(HaveOccurred())
	zw := zip.NewWriter(f)
	w, err := zw.Create(plugin.ManifestFileName)
	Expect(err).NotTo(HaveOccurred())
	manifest := fmt.Sprintf("name: %s\nversion: %s\ndynamic-load: \"yes\"\n", name, version)
	if len(depends) > 0 {
		manifest += "depends:\n"
		for _, d := range depends {
			manifest += "  - " + d + "\n"
		}
	}
	_, err = w.Write([]byte(manifest))
	Expect(err).NotTo(HaveOccurred())
	Expect(zw.Close()).To(Succeed())
	Expect(f.Close()).To(Succeed())
}

var _ = Describe("Resolution pipeline", func() {
	var (
		ctx        context.Context
		sourceDir  string
		stagingDir string
		pluginDir  string
		loader     *recordingLoader
	)

	BeforeEach(func() {
		ctx = context.Background()
		base := GinkgoT().TempDir()
		sourceDir = filepath.Join(base, "source")
		stagingDir = filepath.Join(base, "staging")
		pluginDir = filepath.Join(base, "plugins")
		Expect(os.MkdirAll(sourceDir, 0o750)).To(Succeed())
		loader = &recordingLoader{}
	})

	newResolver := func(opts ...resolver.Option) *resolver.Resolver {
		base := []resolver.Option{
			resolver.WithSources(plugin.NewSources(sources.NewDir(sourceDir))),
		}
		return resolver.New(stagingDir, pluginDir, append(base, opts...)...)
	}

	includeFilter := func(patterns ...string) *plugin.Filters {
		g, err := filters.NewGlob(patterns, nil)
		Expect(err).NotTo(HaveOccurred())
		return plugin.NewFilters(g)
	}

	Describe("opt-in model", func() {
		It("activates nothing when no filter opts in", func() {
			publishPlugin(sourceDir, "mailer", "1.0.0")

			restart, err := newResolver(resolver.WithHotLoader(loader)).Refresh(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(restart).To(BeFalse())
			Expect(loader.order()).To(BeEmpty())
			Expect(filepath.Join(pluginDir, "mailer.hpk")).NotTo(BeAnExistingFile())
		})

		It("hot loads an included plugin", func() {
			publishPlugin(sourceDir, "mailer", "1.0.0")

			res := newResolver(
				resolver.WithFilters(includeFilter("mailer")),
				resolver.WithHotLoader(loader),
			)
			restart, err := res.Refresh(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(restart).To(BeFalse())
			Expect(loader.order()).To(Equal([]string{"mailer"}))
			Expect(filepath.Join(pluginDir, "mailer.hpk")).To(BeAnExistingFile())
		})

		It("reports restart required when the host has no hot loader", func() {
			publishPlugin(sourceDir, "mailer", "1.0.0")

			restart, err := newResolver(resolver.WithFilters(includeFilter("mailer"))).Refresh(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(restart).To(BeTrue())
			Expect(filepath.Join(pluginDir, "mailer.hpk")).To(BeAnExistingFile())
		})
	})

	Describe("dependency closure", func() {
		It("promotes required dependencies and loads them first", func() {
			publishPlugin(sourceDir, "lib", "1.0.0")
			publishPlugin(sourceDir, "app", "1.0.0", "lib@1.0.0")

			res := newResolver(
				resolver.WithFilters(includeFilter("app")),
				resolver.WithHotLoader(loader),
			)
			restart, err := res.Refresh(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(restart).To(BeFalse())
			Expect(loader.order()).To(Equal([]string{"lib", "app"}))
		})

		It("respects a veto on a transitive dependency", func() {
			publishPlugin(sourceDir, "lib", "1.0.0")
			publishPlugin(sourceDir, "app", "1.0.0", "lib@1.0.0")

			g, err := filters.NewGlob([]string{"app"}, []string{"lib"})
			Expect(err).NotTo(HaveOccurred())

			res := newResolver(
				resolver.WithFilters(plugin.NewFilters(g)),
				resolver.WithHotLoader(loader),
			)
			restart, err := res.Refresh(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(restart).To(BeTrue())
			Expect(loader.order()).NotTo(ContainElement("lib"))
			Expect(filepath.Join(pluginDir, "lib.hpk")).NotTo(BeAnExistingFile())
		})
	})

	Describe("lua filter scripts", func() {
		It("drives inclusion from a script decision", func() {
			publishPlugin(sourceDir, "mailer", "1.0.0")
			publishPlugin(sourceDir, "reporting", "1.0.0")

			script := filepath.Join(GinkgoT().TempDir(), "policy.lua")
			code := `
function decide(name, version)
	if name == "mailer" then
		return "include"
	end
	return "no-opinion"
end
`
			Expect(os.WriteFile(script, []byte(code), 0o600)).To(Succeed())
			lf, err := filters.NewLua(script)
			Expect(err).NotTo(HaveOccurred())
			defer lf.Close()

			res := newResolver(
				resolver.WithFilters(plugin.NewFilters(lf)),
				resolver.WithHotLoader(loader),
			)
			restart, err := res.Refresh(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(restart).To(BeFalse())
			Expect(loader.order()).To(Equal([]string{"mailer"}))
		})
	})

	Describe("repeated passes", func() {
		It("is idempotent once a plugin is materialized", func() {
			publishPlugin(sourceDir, "mailer", "1.0.0")

			res := newResolver(
				resolver.WithFilters(includeFilter("mailer")),
				resolver.WithHotLoader(loader),
			)
			restart, err := res.Refresh(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(restart).To(BeFalse())

			restart, err = res.Refresh(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(restart).To(BeFalse())
			Expect(loader.order()).To(Equal([]string{"mailer"}))
		})

		It("picks up a published upgrade against the installed registry", func() {
			publishPlugin(sourceDir, "mailer", "1.0.0")

			res := newResolver(
				resolver.WithFilters(includeFilter("mailer")),
				resolver.WithHotLoader(loader),
			)
			_, err := res.Refresh(ctx)
			Expect(err).NotTo(HaveOccurred())

			publishPlugin(sourceDir, "mailer", "2.0.0")

			installed, err := registry.LoadDir(ctx, pluginDir)
			Expect(err).NotTo(HaveOccurred())
			res = newResolver(
				resolver.WithFilters(includeFilter("mailer")),
				resolver.WithHotLoader(loader),
				resolver.WithInstalledRegistry(installed),
			)
			restart, err := res.Refresh(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(restart).To(BeFalse())

			wrapped, err := plugin.NewArchiveWrapper().Wrap(ctx, filepath.Join(pluginDir, "mailer.hpk"))
			Expect(err).NotTo(HaveOccurred())
			Expect(wrapped.Version.String()).To(Equal("2.0.0"))
		})
	})

	Describe("pinned plugins", func() {
		It("never overwrites a pinned archive", func() {
			publishPlugin(sourceDir, "mailer", "2.0.0")

			Expect(os.MkdirAll(pluginDir, 0o750)).To(Succeed())
			publishPlugin(pluginDir, "mailer", "1.0.0")
			pinMarker := filepath.Join(pluginDir, "mailer.hpk"+plugin.PinnedSuffix)
			Expect(os.WriteFile(pinMarker, nil, 0o600)).To(Succeed())

			installed, err := registry.LoadDir(ctx, pluginDir)
			Expect(err).NotTo(HaveOccurred())

			res := newResolver(
				resolver.WithFilters(includeFilter("mailer")),
				resolver.WithHotLoader(loader),
				resolver.WithInstalledRegistry(installed),
			)
			restart, err := res.Refresh(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(restart).To(BeTrue())

			wrapped, err := plugin.NewArchiveWrapper().Wrap(ctx, filepath.Join(pluginDir, "mailer.hpk"))
			Expect(err).NotTo(HaveOccurred())
			Expect(wrapped.Version.String()).To(Equal("1.0.0"))
		})
	})
})
