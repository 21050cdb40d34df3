package http

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"yesan/internal/core"
	applog "yesan/internal/log"
)

func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	list, err := s.expenses.List(r.Context())
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	NewResponse().JSON(nonNil(core.Receipts(list))).Write(w)
}

// handleUploadReceipt takes a multipart "file" part or a JSON body with a
// "dataUrl" field and answers with the reference to store on the expense.
func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	rec, err := s.readReceipt(w, r)
	if err != nil {
		s.fail(w, r, applog.OpUpload, err)
		return
	}
	ref, err := s.expenses.UploadReceipt(r.Context(), rec)
	if err != nil {
		s.fail(w, r, applog.OpUpload, err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		JSON(map[string]any{"receiptUrl": ref, "pending": core.IsPendingReceipt(ref)}).
		Write(w)
}

func (s *Server) readReceipt(w http.ResponseWriter, r *http.Request) (core.Receipt, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, hdr, err := r.FormFile("file")
		if err != nil {
			return core.Receipt{}, fmt.Errorf("%w: file part is required", errInvalidInput)
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return core.Receipt{}, fmt.Errorf("read receipt: %w", err)
		}
		mime := hdr.Header.Get("Content-Type")
		if mime == "" || mime == "application/octet-stream" {
			mime = http.DetectContentType(data)
		}
		name := sanitizeInput(r.FormValue("filename"))
		if name == "" {
			name = path.Base(hdr.Filename)
		}
		return newReceipt(name, mime, data)
	}

	p := NewRequestBodyParser(w, r, s.opts.MaxUploadBytes)
	if err := p.Parse(); err != nil {
		return core.Receipt{}, err
	}
	mime, data, err := core.ParseDataURL(p.Get("dataUrl"))
	if err != nil {
		return core.Receipt{}, err
	}
	return newReceipt(p.Get("filename"), mime, data)
}

func newReceipt(name, mime string, data []byte) (core.Receipt, error) {
	if !strings.HasPrefix(mime, "image/") && mime != "application/pdf" {
		return core.Receipt{}, fmt.Errorf("%w: unsupported receipt type %s", errInvalidInput, mime)
	}
	if name == "" || name == "." || name == "/" {
		name = "receipt"
	}
	return core.Receipt{Filename: name, MimeType: mime, Data: data}, nil
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.expenses.Export(r.Context(), &buf); err != nil {
		s.fail(w, r, applog.OpExport, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="expenses.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// handleImport accepts a multipart "file" part or a raw CSV body.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)

	var src io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			s.fail(w, r, applog.OpImport, fmt.Errorf("%w: file part is required", errInvalidInput))
			return
		}
		defer file.Close()
		src = file
	}

	res, err := s.expenses.Import(r.Context(), src)
	if err != nil {
		s.fail(w, r, applog.OpImport, err)
		return
	}
	NewResponse().JSON(map[string]int{
		"imported": len(res.Expenses),
		"rows":     res.Rows,
		"skipped":  res.Skipped,
	}).Write(w)
}

// handleReset wipes every expense. The body must carry {"confirm": true}.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r, maxBodyBytes)
	if err := p.Parse(); err != nil {
		s.fail(w, r, applog.OpReset, err)
		return
	}
	if ok, err := p.Bool("confirm"); err != nil || !ok {
		s.fail(w, r, applog.OpReset, fmt.Errorf("%w: confirm must be true", errInvalidInput))
		return
	}
	if err := s.expenses.Reset(r.Context()); err != nil {
		s.fail(w, r, applog.OpReset, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}
