package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

// setEnv sets an environment variable for the duration of one test. An
// empty value unsets it.
func setEnv(key, value string) {
	old, had := os.LookupEnv(key)
	if value == "" {
		gomega.Expect(os.Unsetenv(key)).To(gomega.Succeed())
	} else {
		gomega.Expect(os.Setenv(key, value)).To(gomega.Succeed())
	}
	ginkgo.DeferCleanup(func() {
		if had {
			os.Setenv(key, old)
		} else {
			os.Unsetenv(key)
		}
	})
}

var _ = ginkgo.Describe("Load", func() {
	var tmpDir string

	ginkgo.BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "datacube-config-test-*")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		ginkgo.DeferCleanup(os.RemoveAll, tmpDir)

		setEnv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "config"))
		setEnv("XDG_RUNTIME_DIR", filepath.Join(tmpDir, "run"))
		setEnv("XDG_DATA_HOME", filepath.Join(tmpDir, "data"))
		setEnv("XDG_DATA_DIRS", "/opt/share:/usr/share")
		setEnv("DATACUBE_SOCKET", "")
		setEnv("DATACUBE_MAX_RESULTS", "")
		setEnv("LC_ALL", "")
		setEnv("LC_MESSAGES", "")
		setEnv("LANG", "de_DE.UTF-8")
	})

	ginkgo.Context("when no config file exists", func() {
		var cfg *Config

		ginkgo.BeforeEach(func() {
			var err error
			cfg, err = Load("")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
		})

		ginkgo.It("should use built-in defaults", func() {
			gomega.Expect(cfg.MaxResults).To(gomega.Equal(50))
			gomega.Expect(cfg.Providers.Applications.Enabled).To(gomega.BeTrue())
			gomega.Expect(cfg.Providers.Calculator.Prefix).To(gomega.Equal("="))
			gomega.Expect(cfg.Providers.Command.Enabled).To(gomega.BeFalse())
		})

		ginkgo.It("should derive the socket path from the runtime directory", func() {
			gomega.Expect(cfg.SocketPath).To(gomega.Equal(filepath.Join(tmpDir, "run", "datacube.sock")))
		})

		ginkgo.It("should order application directories user first", func() {
			gomega.Expect(cfg.ApplicationDirs()).To(gomega.Equal([]string{
				filepath.Join(tmpDir, "data", "applications"),
				"/opt/share/applications",
				"/usr/share/applications",
			}))
		})

		ginkgo.It("should normalize the locale", func() {
			gomega.Expect(cfg.Locale).To(gomega.Equal("de_DE"))
		})

		ginkgo.It("should list the user flatpak installation first", func() {
			gomega.Expect(cfg.FlatpakInstallations()).To(gomega.Equal([]string{
				filepath.Join(tmpDir, "data", "flatpak"),
				"/var/lib/flatpak",
			}))
		})
	})

	ginkgo.Context("when a config file exists", func() {
		ginkgo.BeforeEach(func() {
			dir := filepath.Join(tmpDir, "config", "datacube")
			gomega.Expect(os.MkdirAll(dir, 0755)).To(gomega.Succeed())
			content := `
socket_path = "/tmp/dc-test.sock"
max_results = 7
refresh_interval = "30s"

[providers.calculator]
enabled = false

[providers.applications]
extra_dirs = ["/srv/apps"]
`
			gomega.Expect(os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644)).To(gomega.Succeed())
		})

		ginkgo.It("should apply file values over defaults", func() {
			cfg, err := Load("")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(cfg.SocketPath).To(gomega.Equal("/tmp/dc-test.sock"))
			gomega.Expect(cfg.MaxResults).To(gomega.Equal(7))
			gomega.Expect(cfg.RefreshInterval).To(gomega.Equal(30 * time.Second))
			gomega.Expect(cfg.Enabled(ProviderCalculator)).To(gomega.BeFalse())
			gomega.Expect(cfg.Providers.Calculator.Prefix).To(gomega.Equal("="))
			gomega.Expect(cfg.ApplicationDirs()).To(gomega.ContainElement("/srv/apps"))
		})

		ginkgo.It("should let the environment override the file", func() {
			setEnv("DATACUBE_SOCKET", "/tmp/env.sock")
			setEnv("DATACUBE_MAX_RESULTS", "12")
			cfg, err := Load("")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(cfg.SocketPath).To(gomega.Equal("/tmp/env.sock"))
			gomega.Expect(cfg.MaxResults).To(gomega.Equal(12))
		})
	})

	ginkgo.It("should fail when an explicit file is missing", func() {
		_, err := Load(filepath.Join(tmpDir, "nope.toml"))
		gomega.Expect(err).To(gomega.HaveOccurred())
	})

	ginkgo.It("should fail on malformed TOML", func() {
		path := filepath.Join(tmpDir, "bad.toml")
		gomega.Expect(os.WriteFile(path, []byte("max_results = ["), 0644)).To(gomega.Succeed())
		_, err := Load(path)
		gomega.Expect(err).To(gomega.HaveOccurred())
	})
})

var _ = ginkgo.Describe("Validate", func() {
	ginkgo.It("should reject a non-positive max_results", func() {
		cfg := Default()
		cfg.SocketPath = "/tmp/x.sock"
		cfg.MaxResults = 0
		gomega.Expect(cfg.Validate()).NotTo(gomega.Succeed())
	})

	ginkgo.It("should reject an empty prefix on an enabled provider", func() {
		cfg := Default()
		cfg.SocketPath = "/tmp/x.sock"
		cfg.Providers.Command.Enabled = true
		cfg.Providers.Command.Prefix = ""
		gomega.Expect(cfg.Validate()).NotTo(gomega.Succeed())
	})

	ginkgo.It("should accept the defaults once a socket is set", func() {
		cfg := Default()
		cfg.SocketPath = "/tmp/x.sock"
		gomega.Expect(cfg.Validate()).To(gomega.Succeed())
	})
})

var _ = ginkgo.Describe("ProvideConfig", func() {
	ginkgo.BeforeEach(func() {
		tmpDir, err := os.MkdirTemp("", "datacube-config-test-*")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		ginkgo.DeferCleanup(os.RemoveAll, tmpDir)

		setEnv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "config"))
		setEnv("XDG_RUNTIME_DIR", filepath.Join(tmpDir, "run"))
		setEnv("DATACUBE_SOCKET", "/tmp/env.sock")
		setEnv("DATACUBE_MAX_RESULTS", "")
	})

	ginkgo.It("should let flags override the environment", func() {
		cfg, err := ProvideConfig(Overrides{Socket: "/tmp/flag.sock", Debug: true})
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(cfg.SocketPath).To(gomega.Equal("/tmp/flag.sock"))
		gomega.Expect(cfg.Log.Level).To(gomega.Equal("debug"))
	})

	ginkgo.It("should keep the environment value without a flag", func() {
		cfg, err := ProvideConfig(Overrides{})
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(cfg.SocketPath).To(gomega.Equal("/tmp/env.sock"))
	})
})
