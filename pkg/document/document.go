// Copyright 2026 © The Advisor Authors
// SPDX-License-Identifier: Apache-2.0

// Package document extracts plain text from uploaded files so it can be fed
// through admission checks and into a conversation.
package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/campusworks/advisor/pkg/errors"
)

// Parse extracts text from the raw bytes of an uploaded file. Supported
// types are "txt" (or "text") and "docx". The type comparison is
// case-insensitive.
func Parse(content []byte, fileType string) (string, error) {
	var (
		text string
		err  error
	)
	switch strings.ToLower(fileType) {
	case "txt", "text":
		text, err = parseText(content)
	case "docx":
		text, err = parseDocx(content)
	default:
		return "", errors.New(errors.CodeInvalidInput,
			fmt.Sprintf("unsupported file type: %s", fileType), nil).
			WithContext("file_type", fileType)
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New(errors.CodeInvalidInput,
			"no text could be extracted from the document", nil).
			WithContext("file_type", fileType)
	}
	return text, nil
}

func parseText(content []byte) (string, error) {
	if !utf8.Valid(content) {
		return "", errors.New(errors.CodeInvalidInput,
			"error parsing txt document: content is not valid UTF-8", nil)
	}
	text := string(content)
	slog.Debug("document.parsed", "file_type", "txt", "characters", len(text))
	return text, nil
}

// parseDocx pulls paragraph text out of the word/document.xml part of a
// .docx archive. Blank paragraphs are dropped, matching what a reader would
// consider the document's text.
func parseDocx(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", errors.New(errors.CodeInvalidInput,
			"error parsing docx document: not a valid docx archive", err)
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			if err != nil {
				return "", errors.New(errors.CodeInvalidInput,
					"error parsing docx document: cannot open document part", err)
			}
			docXML, err = io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return "", errors.New(errors.CodeInvalidInput,
					"error parsing docx document: cannot read document part", err)
			}
			break
		}
	}
	if docXML == nil {
		return "", errors.New(errors.CodeInvalidInput,
			"error parsing docx document: missing word/document.xml", nil)
	}

	paragraphs, err := extractParagraphs(docXML)
	if err != nil {
		return "", errors.New(errors.CodeInvalidInput,
			"error parsing docx document: malformed document XML", err)
	}

	text := strings.Join(paragraphs, "\n")
	slog.Debug("document.parsed", "file_type", "docx", "characters", len(text))
	return text, nil
}

// extractParagraphs walks the WordprocessingML token stream collecting the
// character data of <w:t> runs, grouped into paragraphs at <w:p> boundaries.
func extractParagraphs(docXML []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(docXML))

	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
	)
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			paragraphs = append(paragraphs, current.String())
		}
		current.Reset()
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				flush()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	flush()
	return paragraphs, nil
}
