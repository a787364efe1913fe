package controller

import (
	"html/template"
	"net/http"
	"strings"
)

var unsubscribeConfirmTmpl = template.Must(template.New("confirm").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Unsubscribe</title></head>
<body>
<h1>Unsubscribe from our newsletter</h1>
<p>Press the button below to stop receiving our emails.</p>
<form method="post" action="{{.Action}}">
<button type="submit">Unsubscribe</button>
</form>
</body></html>
`))

var unsubscribeResultTmpl = template.Must(template.New("result").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Unsubscribe</title></head>
<body>
<h1>{{.Message}}</h1>
{{if .Email}}<p>{{.Email}}</p>{{end}}
</body></html>
`))

// wantsHTML reports whether the caller is a browser, such as the
// confirmation form posting back.
func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func writeUnsubscribeConfirm(w http.ResponseWriter, action string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	unsubscribeConfirmTmpl.Execute(w, struct{ Action string }{action})
}

func writeUnsubscribeResult(w http.ResponseWriter, status int, message, email string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	unsubscribeResultTmpl.Execute(w, struct{ Message, Email string }{message, email})
}
