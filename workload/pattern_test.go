package workload

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Generator", func() {
	var cfg Config

	BeforeEach(func() {
		cfg = DefaultConfig()
		cfg.FootprintLine = 1024
	})

	It("should reject an unknown pattern", func() {
		cfg.Pattern = "zigzag"

		_, err := NewGenerator(cfg, 0)

		Expect(err).To(HaveOccurred())
	})

	It("should reject an empty footprint", func() {
		cfg.FootprintLine = 0

		_, err := NewGenerator(cfg, 0)

		Expect(err).To(HaveOccurred())
	})

	It("should repeat the stream of a core", func() {
		g1, _ := NewGenerator(cfg, 3)
		g2, _ := NewGenerator(cfg, 3)

		for i := 0; i < 100; i++ {
			Expect(g1.Next()).To(Equal(g2.Next()))
		}
	})

	It("should keep uniform accesses inside the footprint", func() {
		g, _ := NewGenerator(cfg, 0)

		for i := 0; i < 1000; i++ {
			Expect(g.Next().LineAddr).To(BeNumerically("<", 1024))
		}
	})

	It("should walk the lines in order and wrap around", func() {
		cfg.Pattern = PatternStream
		cfg.FootprintLine = 16
		g, _ := NewGenerator(cfg, 0)

		for i := uint64(0); i < 20; i++ {
			Expect(g.Next().LineAddr).To(Equal(i % 16))
		}
	})

	It("should send most accesses to the hot set", func() {
		cfg.Pattern = PatternHotSet
		cfg.HotFraction = 0.1
		cfg.HotProb = 0.9
		g, _ := NewGenerator(cfg, 0)

		hot := 0
		for i := 0; i < 1000; i++ {
			if g.Next().LineAddr < 102 {
				hot++
			}
		}

		Expect(hot).To(BeNumerically(">", 850))
	})

	It("should issue no writes when the write fraction is zero", func() {
		cfg.WriteFraction = 0
		g, _ := NewGenerator(cfg, 0)

		for i := 0; i < 100; i++ {
			Expect(g.Next().Write).To(BeFalse())
		}
	})
})
