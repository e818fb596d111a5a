package receipt

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/receipt-parser/internal/parsing"
)

var _ = Describe("BoltDB", func() {
	var (
		tmpDir string
		dbPath string
		db     *BoltDB
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		dbPath = filepath.Join(tmpDir, "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	newReceipt := func(id string) *Receipt {
		r := &Receipt{
			ID:    id,
			Title: "Coffee",
			Date:  time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			Items: []parsing.Item{
				{Vendor: "Grande Latte", Amount: decimal.RequireFromString("5.45"), LineNumber: 1, Confidence: 0.95},
				{Vendor: "Blueberry Muffin", Amount: decimal.RequireFromString("3.25"), LineNumber: 2, Confidence: 0.95},
			},
			Text:        "Grande Latte $5.45\nBlueberry Muffin $3.25",
			Filename:    id + "_latte.jpg",
			ContentType: "image/jpeg",
			CreatedAt:   time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
			UpdatedAt:   time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
		}
		r.RecalculateTotal()
		return r
	}

	Describe("SaveReceipt and GetReceipt", func() {
		It("should round trip a receipt", func() {
			Expect(db.SaveReceipt(newReceipt("r1"))).To(Succeed())

			got, err := db.GetReceipt("r1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Title).To(Equal("Coffee"))
			Expect(got.Date).To(BeTemporally("==", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)))
			Expect(got.Items).To(HaveLen(2))
			Expect(got.Items[1].Vendor).To(Equal("Blueberry Muffin"))
			Expect(got.Items[1].Amount.StringFixed(2)).To(Equal("3.25"))
			Expect(got.Total.StringFixed(2)).To(Equal("8.70"))
			Expect(got.ContentType).To(Equal("image/jpeg"))
		})

		It("should replace a receipt with the same ID", func() {
			Expect(db.SaveReceipt(newReceipt("r1"))).To(Succeed())
			updated := newReceipt("r1")
			updated.Title = "Updated"
			Expect(db.SaveReceipt(updated)).To(Succeed())

			got, err := db.GetReceipt("r1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Title).To(Equal("Updated"))
		})

		It("should require an ID", func() {
			Expect(db.SaveReceipt(&Receipt{})).NotTo(Succeed())
		})

		It("should return ErrNotFound for a missing receipt", func() {
			_, err := db.GetReceipt("missing")
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})
	})

	Describe("ListReceipts", func() {
		It("should return an empty list for a new database", func() {
			receipts, err := db.ListReceipts()
			Expect(err).NotTo(HaveOccurred())
			Expect(receipts).NotTo(BeNil())
			Expect(receipts).To(BeEmpty())
		})

		It("should return every receipt", func() {
			Expect(db.SaveReceipt(newReceipt("r1"))).To(Succeed())
			Expect(db.SaveReceipt(newReceipt("r2"))).To(Succeed())

			receipts, err := db.ListReceipts()
			Expect(err).NotTo(HaveOccurred())
			Expect(receipts).To(HaveLen(2))
		})
	})

	Describe("DeleteReceipt", func() {
		It("should remove the receipt", func() {
			Expect(db.SaveReceipt(newReceipt("r1"))).To(Succeed())
			Expect(db.DeleteReceipt("r1")).To(Succeed())

			_, err := db.GetReceipt("r1")
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})

		It("should not fail for a missing receipt", func() {
			Expect(db.DeleteReceipt("missing")).To(Succeed())
		})
	})

	Describe("persistence", func() {
		It("should keep receipts across reopen", func() {
			Expect(db.SaveReceipt(newReceipt("r1"))).To(Succeed())
			Expect(db.Close()).To(Succeed())

			var err error
			db, err = NewBoltDB(dbPath)
			Expect(err).NotTo(HaveOccurred())

			got, err := db.GetReceipt("r1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Items).To(HaveLen(2))
		})
	})

	Describe("NewBoltDB", func() {
		It("should fail for a path in a missing directory", func() {
			_, err := NewBoltDB(filepath.Join(tmpDir, "missing", "test.db"))
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("Receipt", func() {
	It("should recalculate the total from items", func() {
		r := &Receipt{Items: []parsing.Item{
			{Amount: decimal.RequireFromString("1.10")},
			{Amount: decimal.RequireFromString("2.20")},
		}}
		r.RecalculateTotal()
		Expect(r.Total.StringFixed(2)).To(Equal("3.30"))
		Expect(r.ItemCount()).To(Equal(2))
	})

	It("should total zero without items", func() {
		r := &Receipt{Total: decimal.RequireFromString("9.99")}
		r.RecalculateTotal()
		Expect(r.Total.IsZero()).To(BeTrue())
	})
})
