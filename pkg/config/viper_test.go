package config

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"
)

var _ = Describe("InitViper", func() {
	It("materializes defaults when nothing else is set", func() {
		v, err := InitViper(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())

		c := FromViper(v)
		d := NewDefaultConfig()
		Expect(c.Version).To(Equal(d.Version))
		Expect(c.Storage.Provider).To(Equal(d.Storage.Provider))
		Expect(c.API.Listen).To(Equal(d.API.Listen))
		Expect(c.Embedding.Model).To(Equal(d.Embedding.Model))
		Expect(c.Dispatch.Workers).To(Equal(d.Dispatch.Workers))
	})

	It("reads values from config.toml", func() {
		dir := GinkgoT().TempDir()
		toml := []byte("[storage]\nprovider = \"postgres\"\npostgres_dsn = \"postgres://localhost/psyche\"\n")
		Expect(os.WriteFile(filepath.Join(dir, "config.toml"), toml, 0o600)).To(Succeed())

		v, err := InitViper(dir)
		Expect(err).NotTo(HaveOccurred())

		c := FromViper(v)
		Expect(c.Storage.Provider).To(Equal("postgres"))
		Expect(c.Storage.PostgresDSN).To(Equal("postgres://localhost/psyche"))
		// Untouched sections keep their defaults.
		Expect(c.API.Listen).To(Equal(NewDefaultConfig().API.Listen))
	})

	It("lets environment variables override the config file", func() {
		dir := GinkgoT().TempDir()
		toml := []byte("[api]\nlisten = \":7000\"\n")
		Expect(os.WriteFile(filepath.Join(dir, "config.toml"), toml, 0o600)).To(Succeed())

		Expect(os.Setenv("PSYCHE_API_LISTEN", ":9999")).To(Succeed())
		DeferCleanup(os.Unsetenv, "PSYCHE_API_LISTEN")

		v, err := InitViper(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(FromViper(v).API.Listen).To(Equal(":9999"))
	})

	It("rejects a malformed config file", func() {
		dir := GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(dir, "config.toml"), []byte("not { toml"), 0o600)).To(Succeed())

		_, err := InitViper(dir)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("BindRegisteredFlags", func() {
	It("gives a set flag the highest precedence", func() {
		fs := FlagSet{
			FlagAPIListen: {
				Name:        "listen",
				ViperKey:    "api.listen",
				Description: "listen address",
			},
		}

		var listen string
		cmd := &cobra.Command{}
		AddStringFlag(cmd, fs, FlagAPIListen, &listen)
		Expect(cmd.Flags().Set("listen", ":4242")).To(Succeed())

		Expect(os.Setenv("PSYCHE_API_LISTEN", ":9999")).To(Succeed())
		DeferCleanup(os.Unsetenv, "PSYCHE_API_LISTEN")

		v, err := InitViper(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
		BindRegisteredFlags(v, cmd, fs, []string{FlagAPIListen})

		Expect(FromViper(v).API.Listen).To(Equal(":4242"))
	})

	It("registers defaults from the flag set definition", func() {
		fs := FlagSet{
			FlagAPIListen: {
				Name:     "listen",
				ViperKey: "api.listen",
			},
		}

		var listen string
		cmd := &cobra.Command{}
		AddStringFlag(cmd, fs, FlagAPIListen, &listen)

		Expect(listen).To(Equal(NewDefaultConfig().API.Listen))
	})
})
