// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/eqio/vnote/internal/render"
	"github.com/eqio/vnote/internal/util"
)

// =============================================================================
// MIME HTML ARCHIVE
// =============================================================================

// mhtmlPart is one body part of the archive.
type mhtmlPart struct {
	contentID   string
	contentType string
	data        []byte
}

// packageMIME writes a multipart/related archive: the HTML document first,
// then the stylesheet when it is linked, then every asset. Parts are
// referenced through cid: URLs. The boundary is derived from the content so
// identical input gives identical bytes.
func (p *HTMLPackager) packageMIME(doc *render.Result, opts HTMLOptions, outputPath string, sink Sink) error {
	var parts []mhtmlPart
	refs := make(map[string]string)

	for i, a := range doc.Assets {
		if a.Missing {
			warnMissing(sink, a)
			continue
		}
		data, err := os.ReadFile(a.Path)
		if err != nil {
			sink.LogLine(fmt.Sprintf("Warning: asset %s unreadable, reference kept: %v", a.Ref, err))
			continue
		}
		id := "asset-" + strconv.Itoa(i+1)
		refs[a.Ref] = "cid:" + id
		parts = append(parts, mhtmlPart{contentID: id, contentType: contentTypeOf(a.Path, data), data: data})
	}

	body, err := rewriteRefs(doc.HTML, refs)
	if err != nil {
		return fmt.Errorf("rewrite asset references: %w", err)
	}

	var page string
	switch {
	case !opts.CompleteHTML:
		page = body
	case opts.EmbedCSSStyle:
		page = buildDocument(doc.Title, body, doc.Stylesheet, "")
	default:
		page = buildDocument(doc.Title, body, "", "cid:style")
		parts = append([]mhtmlPart{{contentID: "style", contentType: "text/css; charset=utf-8", data: []byte(doc.Stylesheet)}}, parts...)
	}
	root := mhtmlPart{contentID: "document", contentType: "text/html; charset=utf-8", data: []byte(page)}
	parts = append([]mhtmlPart{root}, parts...)

	err = util.AtomicWrite(outputPath, 0644, func(w io.Writer) error {
		return writeMHTML(w, doc.Title, parts)
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(outputPath), err)
	}

	p.logger.Debug("packaged mhtml",
		zap.String("output", outputPath),
		zap.Int("parts", len(parts)),
	)
	return nil
}

func writeMHTML(w io.Writer, title string, parts []mhtmlPart) error {
	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(boundaryFor(parts)); err != nil {
		return err
	}

	header := fmt.Sprintf("From: <Saved by vnote-export>\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: multipart/related;\r\n\ttype=\"text/html\";\r\n\tboundary=\"%s\"\r\n\r\n"+
		"This is a multi-part message in MIME format.\r\n\r\n",
		mime.QEncoding.Encode("utf-8", title), mw.Boundary())
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}

	for _, part := range parts {
		if err := writePart(mw, part); err != nil {
			return fmt.Errorf("part %s: %w", part.contentID, err)
		}
	}
	return mw.Close()
}

func writePart(mw *multipart.Writer, part mhtmlPart) error {
	textual := strings.HasPrefix(part.contentType, "text/")

	h := make(textproto.MIMEHeader)
	h.Set("Content-Type", part.contentType)
	h.Set("Content-ID", "<"+part.contentID+">")
	if textual {
		h.Set("Content-Transfer-Encoding", "quoted-printable")
	} else {
		h.Set("Content-Transfer-Encoding", "base64")
	}

	pw, err := mw.CreatePart(h)
	if err != nil {
		return err
	}

	if textual {
		qp := quotedprintable.NewWriter(pw)
		if _, err := qp.Write(part.data); err != nil {
			return err
		}
		return qp.Close()
	}

	lw := &lineWrapper{w: pw, width: 76}
	enc := base64.NewEncoder(base64.StdEncoding, lw)
	if _, err := enc.Write(part.data); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return lw.finish()
}

// boundaryFor hashes every part so the boundary cannot occur in the content
// and stays stable across runs.
func boundaryFor(parts []mhtmlPart) string {
	h := sha256.New()
	for _, part := range parts {
		io.WriteString(h, part.contentID)
		h.Write([]byte{0})
		h.Write(part.data)
	}
	return "----=_vnote_" + hex.EncodeToString(h.Sum(nil))[:32]
}

func contentTypeOf(path string, data []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}

// lineWrapper inserts CRLF every width bytes, as base64 bodies require.
type lineWrapper struct {
	w     io.Writer
	width int
	col   int
}

func (l *lineWrapper) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		n := l.width - l.col
		if n > len(p) {
			n = len(p)
		}
		if _, err := l.w.Write(p[:n]); err != nil {
			return written, err
		}
		written += n
		l.col += n
		p = p[n:]
		if l.col == l.width {
			if _, err := io.WriteString(l.w, "\r\n"); err != nil {
				return written, err
			}
			l.col = 0
		}
	}
	return written, nil
}

func (l *lineWrapper) finish() error {
	if l.col == 0 {
		return nil
	}
	l.col = 0
	_, err := io.WriteString(l.w, "\r\n")
	return err
}
