package provider

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/0xADE/datacube/internal/config"
	"github.com/0xADE/datacube/internal/indexer"
	"github.com/0xADE/datacube/internal/indexer/executable"
	"github.com/0xADE/datacube/proto"
)

type fakeProvider struct {
	name     string
	prefix   string
	items    []proto.Item
	err      error
	lastText string
	calls    int
}

func (f *fakeProvider) Name() string        { return f.name }
func (f *fakeProvider) Description() string { return "fake " + f.name }
func (f *fakeProvider) Prefix() string      { return f.prefix }

func (f *fakeProvider) Query(_ context.Context, text string, _ int) (Result, error) {
	f.lastText = text
	f.calls++
	return Result{Items: f.items}, f.err
}

type fakeExecutables []executable.ExecutableInfo

func (f fakeExecutables) WithPrefix(prefix string, limit int) []executable.ExecutableInfo {
	var out []executable.ExecutableInfo
	for _, e := range f {
		if len(out) < limit && len(e.Name) >= len(prefix) && e.Name[:len(prefix)] == prefix {
			out = append(out, e)
		}
	}
	return out
}

func labels(items []proto.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Label
	}
	return out
}

var _ = Describe("Registry", func() {
	It("rejects duplicate names", func() {
		_, err := NewRegistry("a",
			Registration{Provider: &fakeProvider{name: "a"}, Enabled: true},
			Registration{Provider: &fakeProvider{name: "a", prefix: "="}, Enabled: true})
		Expect(err).To(MatchError(ErrInvalidRegistry))
	})

	It("rejects shared prefixes among enabled providers", func() {
		_, err := NewRegistry("a",
			Registration{Provider: &fakeProvider{name: "a"}, Enabled: true},
			Registration{Provider: &fakeProvider{name: "b", prefix: "="}, Enabled: true},
			Registration{Provider: &fakeProvider{name: "c", prefix: "="}, Enabled: true})
		Expect(err).To(MatchError(ErrInvalidRegistry))
	})

	It("allows a shared prefix when one provider is disabled", func() {
		_, err := NewRegistry("a",
			Registration{Provider: &fakeProvider{name: "a"}, Enabled: true},
			Registration{Provider: &fakeProvider{name: "b", prefix: "="}, Enabled: true},
			Registration{Provider: &fakeProvider{name: "c", prefix: "="}, Enabled: false})
		Expect(err).NotTo(HaveOccurred())
	})

	It("rejects an empty prefix on a non-default provider", func() {
		_, err := NewRegistry("a",
			Registration{Provider: &fakeProvider{name: "a"}, Enabled: true},
			Registration{Provider: &fakeProvider{name: "b"}, Enabled: true})
		Expect(err).To(MatchError(ErrInvalidRegistry))
	})

	It("rejects an unknown default", func() {
		_, err := NewRegistry("missing", Registration{Provider: &fakeProvider{name: "a", prefix: "!"}, Enabled: true})
		Expect(err).To(MatchError(ErrInvalidRegistry))
	})

	Describe("Route", func() {
		var (
			apps, calc, calc2, cmd *fakeProvider
			reg                    *Registry
		)

		BeforeEach(func() {
			apps = &fakeProvider{name: "applications"}
			calc = &fakeProvider{name: "calculator", prefix: "="}
			calc2 = &fakeProvider{name: "compare", prefix: "=="}
			cmd = &fakeProvider{name: "command", prefix: "/"}
			var err error
			reg, err = NewRegistry("applications",
				Registration{Provider: apps, Enabled: true},
				Registration{Provider: calc, Enabled: true},
				Registration{Provider: calc2, Enabled: true},
				Registration{Provider: cmd, Enabled: false})
			Expect(err).NotTo(HaveOccurred())
		})

		DescribeTable("selects by prefix",
			func(query, wantName, wantText string) {
				p, text := reg.Route(query)
				Expect(p).NotTo(BeNil())
				Expect(p.Name()).To(Equal(wantName))
				Expect(text).To(Equal(wantText))
			},
			Entry("calculator", "=1+2", "calculator", "1+2"),
			Entry("bare prefix", "=", "calculator", ""),
			Entry("longest prefix", "==3", "compare", "3"),
			Entry("default", "firefox", "applications", "firefox"),
			Entry("empty query", "", "applications", ""),
			Entry("disabled prefix falls back", "/ls", "applications", "/ls"),
		)

		It("routes nothing when the default is disabled", func() {
			r, err := NewRegistry("applications",
				Registration{Provider: apps, Enabled: false},
				Registration{Provider: calc, Enabled: true})
			Expect(err).NotTo(HaveOccurred())

			p, _ := r.Route("firefox")
			Expect(p).To(BeNil())
			p, _ = r.Route("=1")
			Expect(p).To(Equal(Provider(calc)))
		})

		It("lists providers in registration order", func() {
			Expect(reg.List()).To(Equal([]proto.ProviderInfo{
				{Name: "applications", Description: "fake applications", Prefix: "", Enabled: true},
				{Name: "calculator", Description: "fake calculator", Prefix: "=", Enabled: true},
				{Name: "compare", Description: "fake compare", Prefix: "==", Enabled: true},
				{Name: "command", Description: "fake command", Prefix: "/", Enabled: false},
			}))
		})
	})
})

var _ = Describe("Router", func() {
	var (
		ctx    context.Context
		apps   *fakeProvider
		cmd    *fakeProvider
		router *Router
	)

	BeforeEach(func() {
		ctx = context.Background()
		apps = &fakeProvider{name: config.ProviderApplications}
		cmd = &fakeProvider{name: config.ProviderCommand, prefix: "/"}
		reg, err := NewRegistry(config.ProviderApplications,
			Registration{Provider: apps, Enabled: true},
			Registration{Provider: NewCalculator("="), Enabled: true},
			Registration{Provider: cmd, Enabled: false})
		Expect(err).NotTo(HaveOccurred())
		router = NewRouter(reg, 5, nil)
	})

	It("never sends calculator queries to applications", func() {
		resp := router.Query(ctx, proto.QueryRequest{Query: "=1+2"})
		Expect(resp.Error).To(BeNil())
		Expect(resp.Provider).To(Equal(config.ProviderCalculator))
		Expect(labels(resp.Items)).To(Equal([]string{"3"}))
		Expect(resp.Items[0].Detail).To(Equal("1+2 ="))
		Expect(resp.Items[0].Icon).To(Equal("accessories-calculator"))
		Expect(resp.Items[0].Provider).To(Equal(config.ProviderCalculator))
		Expect(apps.calls).To(Equal(0))
	})

	DescribeTable("reports calculator errors without items",
		func(query, kind string, pos int) {
			resp := router.Query(ctx, proto.QueryRequest{Query: query})
			Expect(resp.Items).To(BeEmpty())
			Expect(resp.Error).NotTo(BeNil())
			Expect(resp.Error.Kind).To(Equal(kind))
			Expect(resp.Error.Position).To(Equal(pos))
		},
		Entry("empty", "=", proto.KindEmptyExpression, -1),
		Entry("blank", "=   ", proto.KindEmptyExpression, -1),
		Entry("division by zero", "=1/0", proto.KindDivisionByZero, 1),
		Entry("unbalanced", "=(1+2", proto.KindUnbalancedParentheses, 0),
		Entry("unexpected", "=1+*2", proto.KindUnexpectedToken, 2),
	)

	It("echoes the query and assigns a fresh query ID", func() {
		a := router.Query(ctx, proto.QueryRequest{Query: "=2*3"})
		b := router.Query(ctx, proto.QueryRequest{Query: "=2*3"})
		Expect(a.Query).To(Equal("=2*3"))
		Expect(a.QID).NotTo(BeEmpty())
		Expect(a.QID).NotTo(Equal(b.QID))
	})

	It("selects a provider by name with or without its prefix", func() {
		for _, q := range []string{"2*3", "=2*3"} {
			resp := router.Query(ctx, proto.QueryRequest{Query: q, Provider: config.ProviderCalculator})
			Expect(labels(resp.Items)).To(Equal([]string{"6"}))
		}
	})

	It("reports unknown providers", func() {
		resp := router.Query(ctx, proto.QueryRequest{Query: "x", Provider: "weather"})
		Expect(resp.Error).NotTo(BeNil())
		Expect(resp.Error.Kind).To(Equal(proto.KindUnknownProvider))
		Expect(resp.Items).To(BeEmpty())
	})

	It("reports disabled providers", func() {
		resp := router.Query(ctx, proto.QueryRequest{Query: "ls", Provider: config.ProviderCommand})
		Expect(resp.Error).NotTo(BeNil())
		Expect(resp.Error.Kind).To(Equal(proto.KindProviderDisabled))
		Expect(cmd.calls).To(Equal(0))
	})

	It("passes the empty remainder through", func() {
		resp := router.Query(ctx, proto.QueryRequest{Query: ""})
		Expect(resp.Error).To(BeNil())
		Expect(resp.Provider).To(Equal(config.ProviderApplications))
		Expect(apps.lastText).To(Equal(""))
	})

	It("sorts by score then label and caps the result", func() {
		for i := range 10 {
			apps.items = append(apps.items, proto.Item{Label: fmt.Sprintf("item-%d", i), Score: float64(i % 3)})
		}
		resp := router.Query(ctx, proto.QueryRequest{Query: "item"})
		Expect(labels(resp.Items)).To(Equal([]string{"item-2", "item-5", "item-8", "item-1", "item-4"}))
		for i := 1; i < len(resp.Items); i++ {
			Expect(resp.Items[i].Score).To(BeNumerically("<=", resp.Items[i-1].Score))
		}

		resp = router.Query(ctx, proto.QueryRequest{Query: "item", MaxResults: 2})
		Expect(labels(resp.Items)).To(Equal([]string{"item-2", "item-5"}))
	})

	It("turns provider failures into internal errors", func() {
		apps.err = errors.New("boom")
		resp := router.Query(ctx, proto.QueryRequest{Query: "x"})
		Expect(resp.Error).NotTo(BeNil())
		Expect(resp.Error.Kind).To(Equal(proto.KindInternal))
		Expect(resp.Provider).To(Equal(config.ProviderApplications))
	})

	It("builds a malformed request response", func() {
		resp := MalformedRequest(proto.ErrMalformedBody)
		Expect(resp.Error.Kind).To(Equal(proto.KindMalformedRequest))
		Expect(resp.QID).NotTo(BeEmpty())
	})

	It("lists providers", func() {
		list := router.ListProviders()
		Expect(list.Providers).To(HaveLen(3))
		Expect(list.Providers[1].Prefix).To(Equal("="))
		Expect(list.Providers[2].Enabled).To(BeFalse())
	})
})

var _ = Describe("Applications", func() {
	var router *Router

	BeforeEach(func() {
		dir := GinkgoT().TempDir()
		write := func(name, body string) {
			Expect(os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644)).To(Succeed())
		}
		write("firefox.desktop", "[Desktop Entry]\nName=Firefox\nComment=Browse the web\nExec=firefox %u\nIcon=firefox\nKeywords=browser;\n")
		write("fireplace.desktop", "[Desktop Entry]\nName=Fireplace\nExec=fireplace\nTerminal=true\n")
		write("term.desktop", "[Desktop Entry]\nName=Terminal\nExec=term\n")

		idx := indexer.New(indexer.Sources{DesktopDirs: []string{dir}}, indexer.Options{Workers: 1}, nil)
		_, err := idx.Refresh(context.Background())
		Expect(err).NotTo(HaveOccurred())

		cfg := config.Default()
		reg, err := NewRegistryFromConfig(cfg, idx, nil)
		Expect(err).NotTo(HaveOccurred())
		router = NewRouter(reg, cfg.MaxResults, nil)
	})

	It("answers from the index", func() {
		resp := router.Query(context.Background(), proto.QueryRequest{Query: "fire"})
		Expect(resp.Error).To(BeNil())
		Expect(labels(resp.Items)).To(Equal([]string{"Firefox", "Fireplace"}))

		ff := resp.Items[0]
		Expect(ff.ID).To(Equal("firefox"))
		Expect(ff.Detail).To(Equal("Browse the web"))
		Expect(ff.Payload).To(Equal("firefox %u"))
		Expect(ff.Icon).To(Equal("firefox"))
		Expect(ff.Provider).To(Equal(config.ProviderApplications))
		Expect(ff.Metadata).To(HaveKeyWithValue("desktop_id", "firefox"))
		Expect(resp.Items[1].Metadata).To(HaveKeyWithValue("terminal", "true"))
	})

	It("carries the launch command with field codes removed", func() {
		resp := router.Query(context.Background(), proto.QueryRequest{Query: "firefox"})
		Expect(resp.Items).NotTo(BeEmpty())
		Expect(resp.Items[0].Payload).To(Equal("firefox %u"))
		Expect(resp.Items[0].Metadata).To(HaveKeyWithValue("command", "firefox"))
	})

	It("returns nothing for an empty query", func() {
		resp := router.Query(context.Background(), proto.QueryRequest{Query: "  "})
		Expect(resp.Error).To(BeNil())
		Expect(resp.Items).To(BeEmpty())
	})

	It("keeps the command provider off by default", func() {
		resp := router.Query(context.Background(), proto.QueryRequest{Query: "/ls"})
		Expect(resp.Provider).To(Equal(config.ProviderApplications))
	})
})

var _ = Describe("Command", func() {
	var c *Command

	BeforeEach(func() {
		c = NewCommand("/", fakeExecutables{
			{Name: "gimp", Path: "/usr/bin/gimp"},
			{Name: "git", Path: "/usr/bin/git"},
			{Name: "gitk", Path: "/usr/bin/gitk"},
		})
	})

	It("offers the command line and matching executables", func() {
		res, err := c.Query(context.Background(), " git status ", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(labels(res.Items)).To(Equal([]string{"Run: git status", "git", "gitk"}))
		Expect(res.Items[0].Payload).To(Equal("git status"))
		Expect(res.Items[1].Payload).To(Equal("/usr/bin/git status"))
		for _, it := range res.Items {
			Expect(it.Icon).To(Equal("utilities-terminal"))
		}
	})

	It("returns nothing for an empty command", func() {
		res, err := c.Query(context.Background(), "", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Items).To(BeEmpty())
	})

	It("respects the limit", func() {
		res, err := c.Query(context.Background(), "g", 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Items).To(HaveLen(2))
	})
})
