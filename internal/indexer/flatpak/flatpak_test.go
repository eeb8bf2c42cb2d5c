package flatpak

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Scan", func() {
	var root string

	install := func(id string, exported bool) {
		active := filepath.Join(root, "app", id, "current", "active")
		Expect(os.MkdirAll(active, 0o755)).To(Succeed())
		if exported {
			apps := filepath.Join(active, "export", "share", "applications")
			Expect(os.MkdirAll(apps, 0o755)).To(Succeed())
			Expect(os.WriteFile(filepath.Join(apps, id+".desktop"), []byte("[Desktop Entry]\n"), 0o644)).To(Succeed())
		}
	}

	BeforeEach(func() {
		root = GinkgoT().TempDir()
	})

	It("lists installed applications sorted by ID", func() {
		install("org.mozilla.firefox", true)
		install("com.example.Tool", false)
		Expect(os.MkdirAll(filepath.Join(root, "app", "org.example.Broken"), 0o755)).To(Succeed())
		Expect(os.MkdirAll(filepath.Join(root, "app", "junk"), 0o755)).To(Succeed())

		apps, err := Scan(root)
		Expect(err).NotTo(HaveOccurred())
		Expect(apps).To(HaveLen(2))

		Expect(apps[0].ID).To(Equal("com.example.Tool"))
		Expect(apps[0].DesktopPath).To(BeEmpty())
		Expect(apps[1].ID).To(Equal("org.mozilla.firefox"))
		Expect(apps[1].DesktopPath).To(HaveSuffix("export/share/applications/org.mozilla.firefox.desktop"))
	})

	It("treats a missing installation as empty", func() {
		apps, err := Scan(filepath.Join(root, "nowhere"))
		Expect(err).NotTo(HaveOccurred())
		Expect(apps).To(BeEmpty())
	})

	It("looks up single applications across roots", func() {
		install("org.example.App", true)
		app, ok := Lookup([]string{filepath.Join(root, "nowhere"), root}, "org.example.App")
		Expect(ok).To(BeTrue())
		Expect(app.DesktopPath).NotTo(BeEmpty())

		_, ok = Lookup([]string{root}, "org.example.Missing")
		Expect(ok).To(BeFalse())
	})
})

var _ = DescribeTable("ParseRef",
	func(ref, want string, ok bool) {
		id, err := ParseRef(ref)
		if !ok {
			Expect(err).To(MatchError(ErrInvalidRef))
			return
		}
		Expect(err).NotTo(HaveOccurred())
		Expect(id).To(Equal(want))
	},
	Entry("full ref", "app/org.gimp.GIMP/x86_64/stable", "org.gimp.GIMP", true),
	Entry("bare ID", "org.gimp.GIMP", "org.gimp.GIMP", true),
	Entry("runtime ref", "runtime/org.gnome.Platform/x86_64/45", "", false),
	Entry("short ref", "app/org.gimp.GIMP", "", false),
	Entry("two elements", "org.gimp", "", false),
	Entry("bad characters", "org.gimp.GI MP", "", false),
)

var _ = Describe("names", func() {
	It("derives a display name from the last ID element", func() {
		Expect(DisplayName("org.mozilla.firefox")).To(Equal("firefox"))
		Expect(RunCommand("org.mozilla.firefox")).To(Equal("flatpak run org.mozilla.firefox"))
	})
})
