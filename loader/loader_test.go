package loader_test

import (
	"encoding/binary"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pqr5sim/emu"
	"github.com/sarchlab/pqr5sim/insts"
	"github.com/sarchlab/pqr5sim/loader"
)

var _ = Describe("Loader", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	writeFile := func(name string, data []byte) string {
		path := filepath.Join(dir, name)
		Expect(os.WriteFile(path, data, 0644)).To(Succeed())
		return path
	}

	Describe("LoadFlat", func() {
		It("should wrap the image in a single segment at the base", func() {
			var image []byte
			image = binary.LittleEndian.AppendUint32(image, insts.ADDI(1, 0, 5))
			image = binary.LittleEndian.AppendUint32(image, insts.EBREAK())
			path := writeFile("prog.bin", image)

			prog, err := loader.LoadFlat(path, 0x1000)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.EntryPoint).To(Equal(uint32(0x1000)))
			Expect(prog.Segments).To(HaveLen(1))
			Expect(prog.Segments[0].VirtAddr).To(Equal(uint32(0x1000)))
			Expect(prog.Segments[0].MemSize).To(Equal(uint32(8)))
		})

		It("should reject an empty image", func() {
			path := writeFile("empty.bin", nil)
			_, err := loader.LoadFlat(path, 0)
			Expect(err).To(HaveOccurred())
		})

		It("should reject a missing file", func() {
			_, err := loader.LoadFlat(filepath.Join(dir, "nope.bin"), 0)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Install", func() {
		It("should copy segment data into memory", func() {
			prog := &loader.Program{
				EntryPoint: 0x2000,
				Segments: []loader.Segment{{
					VirtAddr: 0x2000,
					Data:     []byte{0x11, 0x22, 0x33, 0x44},
					MemSize:  4,
				}},
			}

			memory := emu.NewMemory()
			prog.Install(memory)
			Expect(memory.Read32(0x2000)).To(Equal(uint32(0x44332211)))
		})
	})

	Describe("IsELF", func() {
		It("should recognize the ELF magic", func() {
			path := writeFile("elfish", []byte{0x7F, 'E', 'L', 'F', 0, 0})
			Expect(loader.IsELF(path)).To(BeTrue())
		})

		It("should reject other content", func() {
			path := writeFile("plain", []byte{0x13, 0x00, 0x00, 0x00})
			Expect(loader.IsELF(path)).To(BeFalse())
		})

		It("should reject short files", func() {
			path := writeFile("tiny", []byte{0x7F})
			Expect(loader.IsELF(path)).To(BeFalse())
		})
	})

	Describe("Load", func() {
		It("should reject a non-ELF file", func() {
			path := writeFile("junk.elf", []byte("not an elf at all"))
			_, err := loader.Load(path)
			Expect(err).To(HaveOccurred())
		})
	})
})
