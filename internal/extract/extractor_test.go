package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestParse_plain(t *testing.T) {
	e := NewExtractor()
	got, err := e.Parse([]byte("Hello world\nLine 2"), ".txt")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got != "Hello world\nLine 2" {
		t.Errorf("got %q", got)
	}
}

func TestParse_markdownUpperCaseExt(t *testing.T) {
	e := NewExtractor()
	got, err := e.Parse([]byte("# caf\xc3\xa9"), ".MD")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got != "# café" {
		t.Errorf("got %q", got)
	}
}

func TestParse_errors(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		ext     string
		wantErr error
	}{
		{"invalid utf8", []byte("hello\x80world"), ".txt", errInvalidUTF8},
		{"unsupported extension", []byte("raw content"), ".xyz", ErrUnsupportedFormat},
		{"no extension", []byte("raw content"), "", ErrUnsupportedFormat},
		{"empty file", nil, ".txt", ErrNoText},
		{"whitespace only", []byte(" \n\t "), ".md", ErrNoText},
		{"pdf garbage", []byte("not a pdf"), ".pdf", nil},
		{"docx not zip", []byte("not a zip"), ".docx", nil},
		{"legacy doc binary", []byte{0xD0, 0xCF, 0x11, 0xE0}, ".doc", nil},
		{"xlsx garbage", []byte("not a workbook"), ".xlsx", nil},
	}
	e := NewExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Parse(tt.content, tt.ext)
			if err == nil {
				t.Fatal("expected error")
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("error %T is not a *ParseError: %v", err, err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want wrapping %v", err, tt.wantErr)
			}
		})
	}
}

func TestParse_excel(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "Title")
	f.SetCellValue("Sheet1", "A2", "Value 1")
	f.SetCellValue("Sheet1", "B2", "Value 2")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	e := NewExtractor()
	got, err := e.Parse(buf.Bytes(), ".xlsx")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got != "Title\nValue 1\tValue 2" {
		t.Errorf("got %q", got)
	}
}

func TestParse_excelEmptyWorkbook(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	_, err := NewExtractor().Parse(buf.Bytes(), ".xlsx")
	if !errors.Is(err, ErrNoText) {
		t.Errorf("err = %v, want ErrNoText", err)
	}
}

func buildDocx(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("Write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return buf.Bytes()
}

const docxBody = `<?xml version="1.0" encoding="UTF-8"?>
<w:document><w:body>
<w:p><w:r><w:t>First </w:t></w:r><w:r><w:t xml:space="preserve">paragraph &amp; more</w:t></w:r></w:p>
<w:p><w:pPr/></w:p>
<w:p w:rsidR="00A1"><w:r><w:t>Second</w:t></w:r></w:p>
</w:body></w:document>`

func TestParse_docx(t *testing.T) {
	tests := []struct {
		name  string
		ext   string
		files map[string]string
	}{
		{"default part", ".docx", map[string]string{"word/document.xml": docxBody}},
		{"doc extension", ".doc", map[string]string{"word/document.xml": docxBody}},
		{"part from content types", ".docx", map[string]string{
			"[Content_Types].xml": `<Types><Override PartName="/word/main.xml" ContentType="` + docxMainContentType + `"/></Types>`,
			"word/main.xml":       docxBody,
		}},
	}
	e := NewExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Parse(buildDocx(t, tt.files), tt.ext)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if got != "First paragraph & more\nSecond" {
				t.Errorf("got %q", got)
			}
		})
	}
}

func TestParse_docxMissingBody(t *testing.T) {
	content := buildDocx(t, map[string]string{"docProps/app.xml": "<Properties/>"})
	_, err := NewExtractor().Parse(content, ".docx")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *ParseError", err)
	}
}
