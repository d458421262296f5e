package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bull/semantic-search/internal/ingest"
	"github.com/bull/semantic-search/internal/ingest/pdf"
	"github.com/bull/semantic-search/internal/storage"
)

func (h *handler) createCollectionForm(c *gin.Context) {
	c.HTML(http.StatusOK, "create_collection.html", createCollectionPage{
		page:       page{Title: "Create Collection"},
		VectorSize: h.deps.VectorSize,
	})
}

func (h *handler) createCollection(c *gin.Context) {
	data := createCollectionPage{
		page:       page{Title: "Create Collection"},
		VectorSize: h.deps.VectorSize,
	}
	render := func(status int, msg string, success bool) {
		data.Message, data.Success = msg, success
		c.HTML(status, "create_collection.html", data)
	}

	name := strings.TrimSpace(c.PostForm("collection_name"))
	if name == "" {
		render(http.StatusOK, "Please enter a collection name.", false)
		return
	}
	if err := storage.ValidateCollectionName(name); err != nil {
		render(http.StatusOK, fmt.Sprintf("Collection name '%s' is not allowed.", name), false)
		return
	}

	size := h.deps.VectorSize
	if raw := strings.TrimSpace(c.PostForm("vector_size")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			render(http.StatusOK, "Vector size must be a positive integer.", false)
			return
		}
		size = n
	}
	data.VectorSize = size

	ctx := c.Request.Context()
	exists, err := h.deps.Store.CollectionExists(ctx, name)
	if err != nil {
		h.log(c).Error("check collection failed", zap.String("collection", name), zap.Error(err))
		render(http.StatusServiceUnavailable, UnavailableMessage, false)
		return
	}
	if exists {
		render(http.StatusOK, fmt.Sprintf("Collection '%s' already exists.", name), false)
		return
	}

	err = h.deps.Store.CreateCollection(ctx, name, size)
	switch {
	case errors.Is(err, storage.ErrCollectionExists):
		render(http.StatusOK, fmt.Sprintf("Collection '%s' already exists.", name), false)
	case err != nil:
		h.log(c).Error("create collection failed", zap.String("collection", name), zap.Error(err))
		render(http.StatusServiceUnavailable, UnavailableMessage, false)
	default:
		h.log(c).Info("collection created", zap.String("collection", name), zap.Int("vector_size", size))
		render(http.StatusOK, fmt.Sprintf("Collection '%s' created successfully!", name), true)
	}
}

func (h *handler) addDocumentForm(c *gin.Context) {
	c.HTML(http.StatusOK, "add_document.html", page{
		Title:       "Add Document",
		Collections: h.collections(c),
		Collection:  h.deps.DefaultCollection,
	})
}

func (h *handler) addDocument(c *gin.Context) {
	collection := h.formCollection(c)
	text := c.PostForm("text")
	category := strings.TrimSpace(c.PostForm("category"))

	data := page{Title: "Add Document", Collection: collection}
	status := http.StatusOK

	result, err := h.deps.Ingest.AddDocument(c.Request.Context(), collection, text, category)
	switch {
	case errors.Is(err, ingest.ErrEmptyText):
		data.Message = "Please enter some text."
	case errors.Is(err, storage.ErrCollectionNotFound):
		data.Message = missingCollectionMessage(collection)
	case err != nil:
		h.log(c).Error("add document failed", zap.String("collection", collection), zap.Error(err))
		data.Message = UnavailableMessage
		status = http.StatusServiceUnavailable
	default:
		data.Message = fmt.Sprintf("Document added to '%s' with ID %s.", collection, result.IDs[0])
		data.Success = true
	}

	data.Collections = h.collections(c)
	c.HTML(status, "add_document.html", data)
}

func (h *handler) uploadPDFForm(c *gin.Context) {
	c.HTML(http.StatusOK, "upload_pdf.html", page{
		Title:       "Upload PDF",
		Collections: h.collections(c),
		Collection:  h.deps.DefaultCollection,
	})
}

func (h *handler) uploadPDF(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.deps.MaxUploadBytes)

	data := page{Title: "Upload PDF"}
	render := func(status int, msg string, success bool) {
		data.Message, data.Success = msg, success
		data.Collections = h.collections(c)
		c.HTML(status, "upload_pdf.html", data)
	}

	fh, err := c.FormFile("file")
	data.Collection = h.formCollection(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			render(http.StatusRequestEntityTooLarge,
				fmt.Sprintf("File exceeds the %d MB upload limit.", h.deps.MaxUploadBytes>>20), false)
			return
		}
		render(http.StatusOK, "Please choose a PDF file to upload.", false)
		return
	}
	if !pdf.IsPDFFilename(fh.Filename) {
		render(http.StatusOK, "Only PDF files are supported.", false)
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.log(c).Error("open upload failed", zap.String("file", fh.Filename), zap.Error(err))
		render(http.StatusInternalServerError, "Could not read the uploaded file.", false)
		return
	}
	defer f.Close()

	ctx := c.Request.Context()
	text, err := h.deps.PDF.Extract(ctx, f)
	if err != nil {
		h.log(c).Error("pdf extraction failed", zap.String("file", fh.Filename), zap.Error(err))
		if errors.Is(err, pdf.ErrToolNotFound) {
			render(http.StatusServiceUnavailable, "PDF extraction is not available on this server.", false)
			return
		}
		render(http.StatusOK, fmt.Sprintf("Could not extract text from '%s'.", fh.Filename), false)
		return
	}

	meta := ingest.Metadata{
		Category: strings.TrimSpace(c.PostForm("category")),
		Source:   fh.Filename,
	}
	result, err := h.deps.Ingest.IngestText(ctx, data.Collection, text, meta)
	switch {
	case errors.Is(err, ingest.ErrEmptyText):
		render(http.StatusOK, fmt.Sprintf("No text could be extracted from '%s'.", fh.Filename), false)
	case errors.Is(err, storage.ErrCollectionNotFound):
		render(http.StatusOK, missingCollectionMessage(data.Collection), false)
	case err != nil:
		h.log(c).Error("pdf ingestion failed",
			zap.String("file", fh.Filename),
			zap.String("collection", data.Collection),
			zap.Error(err))
		render(http.StatusServiceUnavailable, UnavailableMessage, false)
	default:
		render(http.StatusOK, fmt.Sprintf("Uploaded '%s': %d chunks added to '%s'.",
			fh.Filename, result.Count, data.Collection), true)
	}
}

func missingCollectionMessage(collection string) string {
	return fmt.Sprintf("Collection '%s' not found. Please create it first.", collection)
}
