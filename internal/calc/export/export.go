package export

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html"

	"webnorm/internal/geochem"
)

const (
	ResultsFilename  = "normative_mineralogy.csv"
	TemplateFilename = "template.csv"
)

func CSV(t *geochem.Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.WriteCSV(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func XLSX(t *geochem.Table, sheet string) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.WriteXLSX(&buf, sheet); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DataURI embeds csv text in a data URI.
func DataURI(csv []byte) string {
	return "data:file/csv;base64," + base64.StdEncoding.EncodeToString(csv)
}

// DownloadLink is an anchor that downloads csv as filename without a
// round trip to the server.
func DownloadLink(csv []byte, filename, label string) string {
	return fmt.Sprintf(`<a href="%s" download="%s">%s</a>`,
		DataURI(csv), html.EscapeString(filename), html.EscapeString(label))
}

func ResultsLink(t *geochem.Table) (string, error) {
	b, err := CSV(t)
	if err != nil {
		return "", err
	}
	return DownloadLink(b, ResultsFilename, "Download results as csv file"), nil
}

func TemplateLink() (string, error) {
	b, err := CSV(geochem.Template())
	if err != nil {
		return "", err
	}
	return DownloadLink(b, TemplateFilename, "Click here to download an example template"), nil
}
