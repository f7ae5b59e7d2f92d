package render

import (
	"encoding/base64"
	"html/template"
	"strings"
)

var fragmentTmpl = template.Must(template.New("fragment").Funcs(template.FuncMap{
	"lines":   lines,
	"receipt": receiptIcon,
	"classes": func(c []string) string { return strings.Join(c, " ") },
	"peaks":   func(p []byte) string { return base64.StdEncoding.EncodeToString(p) },
}).Parse(
	`{{if .System}}<div class="system-message" data-id="{{.ID}}"><p>{{.Content}}</p></div>` +
		`{{else}}<div class="{{classes .Classes}}" data-id="{{.ID}}">` +
		`{{with .Reply}}<div class="reply-indicator"><span class="reply-sender">{{.Sender}}</span>` +
		`<span class="reply-content">{{.Content}}</span>` +
		`{{if .Media}}<span class="reply-media">{{.Media}}</span>{{end}}</div>{{end}}` +
		`{{if .Voice}}{{with .Voice}}<div class="voice-message-container">` +
		`<button class="play-pause-btn" id="{{.PlayButtonID}}"><i class="fas fa-play"></i></button>` +
		`<div id="{{.WaveformID}}" class="waveform" data-url="{{.URL}}" data-wave-color="{{.WaveColor}}" data-progress-color="{{.ProgressColor}}"{{if .Peaks}} data-peaks="{{peaks .Peaks}}"{{end}}></div>` +
		`<span id="{{.DurationID}}" class="duration">{{.Duration}}</span></div>{{end}}` +
		`{{else}}{{if .ImageURL}}<img src="{{.ImageURL}}" alt="Image" style="cursor:pointer;">` +
		`{{else if .VideoURL}}<video src="{{.VideoURL}}" controls></video>{{end}}` +
		`{{if .Content}}<p>{{lines .Content}}</p>{{end}}{{end}}` +
		`<span class="message-time">{{.Time}} {{receipt .Receipt}}</span></div>{{end}}`,
))

// HTML renders the fragment's markup. Message text is escaped; newlines
// become <br>.
func (f Fragment) HTML() (string, error) {
	var b strings.Builder
	if err := fragmentTmpl.Execute(&b, f); err != nil {
		return "", err
	}
	return b.String(), nil
}

func lines(s string) template.HTML {
	parts := strings.Split(s, "\n")
	for i, p := range parts {
		parts[i] = template.HTMLEscapeString(p)
	}
	return template.HTML(strings.Join(parts, "<br>"))
}

func receiptIcon(r Receipt) template.HTML {
	switch r {
	case ReceiptRead:
		return template.HTML(`<i class="fas fa-check-double" style="color: ` + ReadIconColor + `;"></i>`)
	case ReceiptSent:
		return template.HTML(`<i class="fas fa-check"></i>`)
	}
	return ""
}
