package testutil

import (
	"bytes"
	"mime/multipart"
	"net/textproto"
)

// SampleCSV has three samples with two gene columns.
const SampleCSV = "Sample,GeneA,GeneB\nS1,1.5,0.2\nS2,2.5,0.7\nS3,0.1,3.3\n"

// MultipartFile builds a multipart body with one "file" part.
func MultipartFile(name, contentType, content string) (*bytes.Buffer, string) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, _ := w.CreatePart(h)
	_, _ = part.Write([]byte(content))
	_ = w.Close()
	return &buf, w.FormDataContentType()
}
