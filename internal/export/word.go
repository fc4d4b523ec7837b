package export

import (
	"html/template"
	"io"
	"time"
)

// Word opens HTML saved with a .doc extension; the mso-* rules switch the
// page to landscape A4.
var wordTemplate = template.Must(template.New("daily").Parse(`<!DOCTYPE html><html><head><meta charset="utf-8"><style>
@page WordSection1{size:29.7cm 21.0cm;mso-page-orientation:landscape;margin:1cm;}
div.WordSection1{page:WordSection1;} body{font-family:"Times New Roman",serif;font-size:14pt;}
table{border-collapse:collapse;width:100%;table-layout:fixed;}
th,td{border:1px solid #444;padding:4px;vertical-align:top;font-size:14pt;word-wrap:break-word;}
th{background:#f1f1f1;} .row-ok{background:#e6f4ea;} .row-miss{background:#fde7e9;}
</style></head><body><div class="WordSection1">
<h2>Дневная статистика за {{.Date}}</h2>
<table><thead><tr>{{range .Headers}}<th>{{.}}</th>{{end}}</tr></thead><tbody>
{{range .Rows}}<tr class="{{if .HasData}}row-ok{{else}}row-miss{{end}}">{{range .Cells}}<td>{{.}}</td>{{end}}</tr>
{{end}}</tbody></table></div></body></html>
`))

func WriteWord(w io.Writer, day time.Time, rows []Row) error {
	return wordTemplate.Execute(w, struct {
		Date    string
		Headers []string
		Rows    []Row
	}{
		Date:    day.Format("02.01.2006"),
		Headers: Headers,
		Rows:    rows,
	})
}
