package receipt

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/receipt-parser/internal/export"
	"github.com/zombor/receipt-parser/internal/parsing"
)

var anyPath = regexp.MustCompile(".*")

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		storage     *mockStorage
		scanner     *mockScanner
		auth        BasicAuth
		server      *Server
		ghttpServer *ghttp.Server
	)

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		scanner = newMockScanner()
		auth = BasicAuth{}
	})

	JustBeforeEach(func() {
		service := NewServiceWithDeps(db, scanner, storage, defaultParser(), export.NewExcelWriter(),
			&sequentialIDs{}, fixedClock{now: time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC)})
		server = NewServerWithMux(service, auth, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		ghttpServer.RouteToHandler(http.MethodGet, anyPath, server.ServeHTTP)
		ghttpServer.RouteToHandler(http.MethodPost, anyPath, server.ServeHTTP)
		ghttpServer.RouteToHandler(http.MethodDelete, anyPath, server.ServeHTTP)
		ghttpServer.RouteToHandler(http.MethodOptions, anyPath, server.ServeHTTP)
	})

	AfterEach(func() {
		ghttpServer.Close()
	})

	do := func(method, path string, body io.Reader, contentType string) *http.Response {
		req, err := http.NewRequest(method, ghttpServer.URL()+path, body)
		Expect(err).NotTo(HaveOccurred())
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	decode := func(resp *http.Response, v any) {
		defer resp.Body.Close()
		Expect(json.NewDecoder(resp.Body).Decode(v)).To(Succeed())
	}

	postText := func(body string) *http.Response {
		return do(http.MethodPost, "/api/receipts/text", strings.NewReader(body), "application/json")
	}

	upload := func(filename string, data []byte) *http.Response {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", filename)
		Expect(err).NotTo(HaveOccurred())
		_, err = fw.Write(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(mw.Close()).To(Succeed())
		return do(http.MethodPost, "/api/receipts", &buf, mw.FormDataContentType())
	}

	storedReceipt := func(id string) *Receipt {
		r := &Receipt{
			ID:    id,
			Title: "Coffee",
			Date:  time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			Items: []parsing.Item{{Vendor: "Grande Latte", Amount: decimal.RequireFromString("5.45")}},
		}
		r.RecalculateTotal()
		db.receipts[id] = r
		return r
	}

	Describe("CORS", func() {
		It("should answer preflight requests", func() {
			resp := do(http.MethodOptions, "/api/receipts", nil, "")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})

		It("should set headers on normal responses", func() {
			resp := do(http.MethodGet, "/api/receipts", nil, "")
			defer resp.Body.Close()
			Expect(resp.Header.Get("Access-Control-Allow-Methods")).To(ContainSubstring("DELETE"))
		})
	})

	Describe("authentication", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "admin", Password: "secret"}
		})

		It("should reject requests without credentials", func() {
			resp := do(http.MethodGet, "/api/receipts", nil, "")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
		})

		It("should reject wrong credentials", func() {
			req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/receipts", nil)
			Expect(err).NotTo(HaveOccurred())
			req.SetBasicAuth("admin", "wrong")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("should accept valid credentials", func() {
			req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/receipts", nil)
			Expect(err).NotTo(HaveOccurred())
			req.SetBasicAuth("admin", "secret")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Describe("POST /api/receipts/text", func() {
		It("should parse pasted text", func() {
			resp := postText(`{"title": "Coffee", "text": "Grande Latte      $5.45\nBlueberry Muffin  $3.25\nTotal:            $8.70"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var receipt Receipt
			decode(resp, &receipt)
			Expect(receipt.ID).To(Equal("id-1"))
			Expect(receipt.Items).To(HaveLen(2))
			Expect(receipt.Items[0].Vendor).To(Equal("Grande Latte"))
			Expect(receipt.Total.StringFixed(2)).To(Equal("8.70"))
		})

		It("should reject text that is not a string", func() {
			resp := postText(`{"title": "Bad", "text": 12345}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			var body map[string]string
			decode(resp, &body)
			Expect(body["field"]).To(Equal("text_type"))
			Expect(db.receipts).To(BeEmpty())
		})

		It("should reject a missing text field", func() {
			resp := postText(`{"title": "Bad"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			var body map[string]string
			decode(resp, &body)
			Expect(body["field"]).To(Equal("text"))
		})

		It("should reject malformed JSON", func() {
			resp := postText(`{"title":`)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("POST /api/receipts", func() {
		It("should scan and parse an upload", func() {
			resp := upload("latte.jpg", []byte("jpeg bytes"))
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var receipt Receipt
			decode(resp, &receipt)
			Expect(receipt.Items).To(HaveLen(2))
			Expect(receipt.ContentType).To(Equal("image/jpeg"))
			Expect(scanner.contentType).To(Equal("image/jpeg"))
			Expect(storage.files).To(HaveLen(1))
		})

		It("should reject a form without a file", func() {
			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			Expect(mw.WriteField("note", "no file")).To(Succeed())
			Expect(mw.Close()).To(Succeed())

			resp := do(http.MethodPost, "/api/receipts", &buf, mw.FormDataContentType())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		When("the scanner fails", func() {
			BeforeEach(func() {
				scanner.err = errors.New("ocr failed")
			})

			It("should return unprocessable entity", func() {
				resp := upload("latte.jpg", []byte("jpeg bytes"))
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
				Expect(storage.files).To(BeEmpty())
			})
		})
	})

	Describe("GET /api/receipts", func() {
		It("should return an empty array", func() {
			resp := do(http.MethodGet, "/api/receipts", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var receipts []Receipt
			decode(resp, &receipts)
			Expect(receipts).NotTo(BeNil())
			Expect(receipts).To(BeEmpty())
		})

		It("should return stored receipts", func() {
			storedReceipt("r1")
			storedReceipt("r2")

			resp := do(http.MethodGet, "/api/receipts", nil, "")
			var receipts []Receipt
			decode(resp, &receipts)
			Expect(receipts).To(HaveLen(2))
		})
	})

	Describe("GET /api/receipts/{id}", func() {
		It("should return the receipt", func() {
			storedReceipt("r1")
			resp := do(http.MethodGet, "/api/receipts/r1", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var receipt Receipt
			decode(resp, &receipt)
			Expect(receipt.Title).To(Equal("Coffee"))
		})

		It("should return not found", func() {
			resp := do(http.MethodGet, "/api/receipts/missing", nil, "")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("GET /api/receipts/{id}/file", func() {
		It("should return the uploaded file", func() {
			r := storedReceipt("r1")
			r.Filename = "r1_latte.png"
			r.ContentType = "image/png"
			storage.files["r1_latte.png"] = []byte("png bytes")

			resp := do(http.MethodGet, "/api/receipts/r1/file", nil, "")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("image/png"))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(Equal("png bytes"))
		})

		It("should return not found for pasted receipts", func() {
			storedReceipt("r1")
			resp := do(http.MethodGet, "/api/receipts/r1/file", nil, "")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("DELETE /api/receipts/{id}", func() {
		It("should delete the receipt", func() {
			storedReceipt("r1")
			resp := do(http.MethodDelete, "/api/receipts/r1", nil, "")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(db.receipts).To(BeEmpty())
		})

		It("should return not found for a missing receipt", func() {
			resp := do(http.MethodDelete, "/api/receipts/missing", nil, "")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("POST /api/receipts/{id}/items", func() {
		BeforeEach(func() {
			storedReceipt("r1")
		})

		It("should add the item", func() {
			resp := do(http.MethodPost, "/api/receipts/r1/items",
				strings.NewReader(`{"vendor": "Scone", "amount": "2.50", "category": "bakery"}`), "application/json")
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var receipt Receipt
			decode(resp, &receipt)
			Expect(receipt.Items).To(HaveLen(2))
			Expect(receipt.Total.StringFixed(2)).To(Equal("7.95"))
		})

		It("should reject an empty vendor", func() {
			resp := do(http.MethodPost, "/api/receipts/r1/items",
				strings.NewReader(`{"vendor": " ", "amount": 2.50}`), "application/json")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			var body map[string]string
			decode(resp, &body)
			Expect(body["field"]).To(Equal("vendor"))
		})

		It("should return not found for a missing receipt", func() {
			resp := do(http.MethodPost, "/api/receipts/missing/items",
				strings.NewReader(`{"vendor": "Scone", "amount": 2.50}`), "application/json")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("GET /api/summary", func() {
		BeforeEach(func() {
			storedReceipt("r1")
			storedReceipt("r2")
		})

		It("should default to a monthly summary", func() {
			resp := do(http.MethodGet, "/api/summary", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body struct {
				Type      string                     `json:"type"`
				Total     decimal.Decimal            `json:"total"`
				Average   decimal.Decimal            `json:"average"`
				Breakdown map[string]decimal.Decimal `json:"breakdown"`
			}
			decode(resp, &body)
			Expect(body.Type).To(Equal("monthly"))
			Expect(body.Total.StringFixed(2)).To(Equal("10.90"))
			Expect(body.Average.StringFixed(2)).To(Equal("5.45"))
			Expect(body.Breakdown).To(HaveKey("2024-01"))
		})

		It("should reject an unknown type", func() {
			resp := do(http.MethodGet, "/api/summary?type=hourly", nil, "")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /api/export", func() {
		It("should download a workbook", func() {
			storedReceipt("r1")

			resp := do(http.MethodGet, "/api/export", nil, "")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal(xlsxContentType))
			Expect(resp.Header.Get("Content-Disposition")).To(ContainSubstring("receipts-20240201.xlsx"))

			f, err := excelize.OpenReader(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			defer f.Close()
			Expect(f.GetSheetList()).To(ContainElement("Receipt 2024-01-15"))
		})
	})
})

var _ = DescribeTable("contentTypeFromExt",
	func(filename, expected string) {
		Expect(contentTypeFromExt(filename)).To(Equal(expected))
	},
	Entry("jpeg", "receipt.JPG", "image/jpeg"),
	Entry("webp", "receipt.webp", "image/webp"),
	Entry("heic", "IMG_0001.HEIC", "image/heic"),
	Entry("pdf", "scan.pdf", "application/pdf"),
)
