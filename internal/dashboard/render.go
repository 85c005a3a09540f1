package dashboard

import (
	"embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed templates/dashboard.html
var templatesFS embed.FS

var page = template.Must(template.New("dashboard.html").Funcs(template.FuncMap{
	"fontSize": fontSize,
}).ParseFS(templatesFS, "templates/dashboard.html"))

// Render writes the dashboard page with the summary inlined for the charts.
func Render(w io.Writer, s Summary) error {
	return page.Execute(w, s)
}

func fontSize(count int) string {
	if count > 10 {
		count = 10
	}
	return fmt.Sprintf("%.1fem", 0.8+0.2*float64(count))
}
